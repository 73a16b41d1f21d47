package content

import (
	"context"
	"io"
)

// contextReader aborts reads once its context is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

// NewContextReader wraps r so that every Read first checks ctx. Copies driven
// by io.Copy stop at the next chunk boundary after cancellation.
func NewContextReader(ctx context.Context, r io.Reader) io.Reader {
	return &contextReader{ctx: ctx, r: r}
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

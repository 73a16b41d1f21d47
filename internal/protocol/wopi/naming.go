package wopi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/marmos91/wopihost/pkg/resource"
)

// nameRequest is the target-name negotiation shared by PutRelativeFile,
// CreateChildFile and CreateChildContainer.
//
// Exactly one of suggested and relative is set:
//   - suggested: the host may adjust the name to avoid collisions; a bare
//     extension (".docx") borrows a base name
//   - relative: the name must be used as is; a collision is a 409 unless
//     overwrite is set
type nameRequest struct {
	suggested string
	relative  string
	overwrite bool
}

// readNameRequest parses the target headers. When both or neither name
// header is present it writes 501 and returns false.
func readNameRequest(c *gin.Context) (nameRequest, bool) {
	req := nameRequest{
		suggested: c.GetHeader(HeaderSuggestedTarget),
		relative:  c.GetHeader(HeaderRelativeTarget),
		overwrite: strings.EqualFold(strings.TrimSpace(c.GetHeader(HeaderOverwriteRelativeTarget)), "true"),
	}
	if (req.suggested == "") == (req.relative == "") {
		c.Status(http.StatusNotImplemented)
		return nameRequest{}, false
	}
	return req, true
}

// isBareExtension reports whether a suggested target only names an
// extension.
func isBareExtension(name string) bool {
	return strings.HasPrefix(name, ".") && !strings.Contains(name[1:], ".")
}

// nameOutcome is the result of negotiating a name inside a container.
type nameOutcome struct {
	// name is the final name to create.
	name string

	// taken is true when a relative target collides with an existing
	// resource; alternative then holds a free name for the client.
	taken       bool
	alternative string
}

// negotiateName resolves req into a final name inside containerID.
// fallbackBase is used when a suggested target is a bare extension.
//
// Validation failures are written as 400 with X-WOPI-InvalidFileNameError;
// other storage failures through writeError. The bool result reports
// whether the caller should continue.
func (h *Handler) negotiateName(c *gin.Context, operation, containerID string, req nameRequest, fallbackBase string) (nameOutcome, bool) {
	ctx := c.Request.Context()

	// ========================================================================
	// Suggested target: mint a collision-free name
	// ========================================================================

	if req.suggested != "" {
		name := req.suggested
		if isBareExtension(name) {
			name = fallbackBase + name
		}
		if err := resource.ValidateName(name); err != nil {
			writeError(c, operation, err)
			return nameOutcome{}, false
		}
		unique, err := h.provider.UniqueName(ctx, containerID, name)
		if err != nil {
			writeError(c, operation, err)
			return nameOutcome{}, false
		}
		return nameOutcome{name: unique}, true
	}

	// ========================================================================
	// Relative target: exact name or a reported collision
	// ========================================================================

	if err := resource.ValidateName(req.relative); err != nil {
		writeError(c, operation, err)
		return nameOutcome{}, false
	}
	free, err := h.provider.UniqueName(ctx, containerID, req.relative)
	if err != nil {
		writeError(c, operation, err)
		return nameOutcome{}, false
	}
	if free == req.relative {
		return nameOutcome{name: req.relative}, true
	}
	return nameOutcome{name: req.relative, taken: true, alternative: free}, true
}

// writeNameTaken answers 409 for a relative target that is in use.
func writeNameTaken(c *gin.Context, alternative string) {
	setHeader(c, HeaderValidRelativeTarget, alternative)
	c.Status(http.StatusConflict)
}

// overwriteTarget resolves the existing file a relative target collides
// with when the client asked to overwrite it. A locked target is answered
// with 409 and the lock token; a colliding container gets the plain
// name-taken 409.
func (h *Handler) overwriteTarget(c *gin.Context, operation, containerID string, out nameOutcome) (*resource.File, bool) {
	ctx := c.Request.Context()

	existing, err := h.provider.LookupFile(ctx, containerID, out.name)
	if resource.IsNotFound(err) {
		writeNameTaken(c, out.alternative)
		return nil, false
	}
	if err != nil {
		writeError(c, operation, err)
		return nil, false
	}

	current, err := h.locks.Current(ctx, existing.ID)
	if err != nil {
		writeError(c, operation, err)
		return nil, false
	}
	if current != nil {
		writeLockConflict(c, current.LockID, "")
		return nil, false
	}
	return existing, true
}

package wopi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/marmos91/wopihost/pkg/lock"
	"github.com/marmos91/wopihost/pkg/resource"
)

// Lock handles LOCK and unlock-and-relock (LOCK with X-WOPI-OldLock).
//
// Returns 400 without a lock token, 404 when the file does not exist, 409
// with the current lock (and a failure reason) on conflict.
func (h *Handler) Lock(c *gin.Context) {
	file, ok := h.lockTarget(c, OpLock)
	if !ok {
		return
	}

	res, err := h.locks.Lock(c.Request.Context(), file.ID, c.GetHeader(HeaderLock), c.GetHeader(HeaderOldLock))
	if err != nil {
		writeError(c, OpLock, err)
		return
	}
	if !writeLockResult(c, res) {
		return
	}

	c.Header(HeaderItemVersion, file.Version)
	c.Status(http.StatusOK)
}

// Unlock handles UNLOCK.
func (h *Handler) Unlock(c *gin.Context) {
	file, ok := h.lockTarget(c, OpUnlock)
	if !ok {
		return
	}

	res, err := h.locks.Unlock(c.Request.Context(), file.ID, c.GetHeader(HeaderLock))
	if err != nil {
		writeError(c, OpUnlock, err)
		return
	}
	if !writeLockResult(c, res) {
		return
	}

	c.Header(HeaderItemVersion, file.Version)
	c.Status(http.StatusOK)
}

// RefreshLock handles REFRESH_LOCK.
func (h *Handler) RefreshLock(c *gin.Context) {
	file, ok := h.lockTarget(c, OpRefreshLock)
	if !ok {
		return
	}

	res, err := h.locks.RefreshLock(c.Request.Context(), file.ID, c.GetHeader(HeaderLock))
	if err != nil {
		writeError(c, OpRefreshLock, err)
		return
	}
	if !writeLockResult(c, res) {
		return
	}
	c.Status(http.StatusOK)
}

// GetLock handles GET_LOCK. X-WOPI-Lock is always present in the response,
// empty when the file is unlocked.
func (h *Handler) GetLock(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	if _, err := h.provider.GetFile(ctx, id); err != nil {
		writeError(c, OpGetLock, err)
		return
	}

	res, err := h.locks.GetLock(ctx, id)
	if err != nil {
		writeError(c, OpGetLock, err)
		return
	}

	setHeader(c, HeaderLock, res.LockID())
	c.Status(http.StatusOK)
}

// lockTarget checks the request carries a lock token and resolves the file.
// It writes the error response itself and reports whether to continue.
func (h *Handler) lockTarget(c *gin.Context, operation string) (*resource.File, bool) {
	if c.GetHeader(HeaderLock) == "" {
		writeError(c, operation, lock.ErrInvalidLockID)
		return nil, false
	}

	file, err := h.provider.GetFile(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, operation, err)
		return nil, false
	}
	return file, true
}

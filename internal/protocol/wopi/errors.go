package wopi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/marmos91/wopihost/internal/logger"
	"github.com/marmos91/wopihost/pkg/lock"
	"github.com/marmos91/wopihost/pkg/resource"
	"github.com/marmos91/wopihost/pkg/userinfo"
)

// statusForError maps a collaborator error to the WOPI status code.
//
// Mapping:
//   - resource.ErrNotFound → 404
//   - resource.ErrAlreadyExists, resource.ErrNotEmpty → 409
//   - resource.ErrInvalidName, resource.ErrInvalidOperation → 400
//   - lock.ErrInvalidLockID, userinfo.ErrTooLong → 400
//   - anything else → 500
func statusForError(err error) int {
	if code, ok := resource.CodeOf(err); ok {
		switch code {
		case resource.ErrNotFound:
			return http.StatusNotFound
		case resource.ErrAlreadyExists, resource.ErrNotEmpty:
			return http.StatusConflict
		case resource.ErrInvalidName, resource.ErrInvalidOperation:
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	}

	switch {
	case errors.Is(err, lock.ErrInvalidLockID), errors.Is(err, userinfo.ErrTooLong):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError answers with the mapped status. Internal failures are always
// logged; expected outcomes (404, 409, ...) only at debug level.
func writeError(c *gin.Context, operation string, err error) {
	status := statusForError(err)

	switch {
	case status == http.StatusInternalServerError && errors.Is(err, context.Canceled):
		logger.Debug("WOPI %s cancelled: id=%s", operation, c.Param("id"))
	case status == http.StatusInternalServerError:
		logger.Error("WOPI %s failed: id=%s: %v", operation, c.Param("id"), err)
	default:
		logger.Debug("WOPI %s: id=%s status=%d: %v", operation, c.Param("id"), status, err)
	}

	if status == http.StatusBadRequest {
		if code, ok := resource.CodeOf(err); ok && code == resource.ErrInvalidName {
			setHeader(c, HeaderInvalidFileNameError, errorMessage(err))
		}
	}
	c.Status(status)
}

// errorMessage returns the human-readable part of a store error.
func errorMessage(err error) string {
	var se *resource.StoreError
	if errors.As(err, &se) {
		return se.Message
	}
	return err.Error()
}

// setHeader sets a response header even when value is empty. gin's
// c.Header deletes the header for empty values, but WOPI clients expect
// X-WOPI-Lock to be present (and empty) when a file is unlocked.
func setHeader(c *gin.Context, key, value string) {
	c.Writer.Header().Set(key, value)
}

// writeLockConflict answers 409 with the current lock token and reason.
func writeLockConflict(c *gin.Context, currentLockID, reason string) {
	setHeader(c, HeaderLock, currentLockID)
	if reason != "" {
		setHeader(c, HeaderLockFailureReason, reason)
	}
	c.Status(http.StatusConflict)
}

// writeLockResult answers a lock.Manager result: 200 on success, 409 with
// lock headers on conflict.
func writeLockResult(c *gin.Context, res lock.Result) bool {
	if !res.OK() {
		writeLockConflict(c, res.LockID(), res.Reason)
		return false
	}
	return true
}

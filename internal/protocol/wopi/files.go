package wopi

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/marmos91/wopihost/internal/logger"
	"github.com/marmos91/wopihost/pkg/auth"
	"github.com/marmos91/wopihost/pkg/lock"
)

// CheckFileInfo returns the properties, permissions and host capabilities
// for a file.
//
// Process:
//  1. Resolve the file (404 when absent)
//  2. Obtain the SHA-256 digest (stored, cached, or computed from content)
//  3. Resolve permission flags (read-only for anonymous principals)
//  4. Echo back the principal's stored user info, if any
//  5. Apply the optional post-processing hook
func (h *Handler) CheckFileInfo(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	principal := auth.PrincipalFrom(c)

	// ========================================================================
	// Step 1: Resolve file
	// ========================================================================

	file, err := h.provider.GetFile(ctx, id)
	if err != nil {
		writeError(c, OpCheckFileInfo, err)
		return
	}

	// ========================================================================
	// Step 2: Checksum
	// ========================================================================

	sum, err := h.checksums.Checksum(ctx, h.provider, file)
	if err != nil {
		writeError(c, OpCheckFileInfo, err)
		return
	}

	// ========================================================================
	// Step 3: Permissions
	// ========================================================================

	var perms auth.FilePermissions
	if principal.Anonymous {
		perms = auth.FilePermissions{ReadOnly: true, UserCanNotWriteRelative: true}
	} else {
		perms, err = h.perms.FilePermissions(ctx, principal, file)
		if err != nil {
			writeError(c, OpCheckFileInfo, err)
			return
		}
	}

	// ========================================================================
	// Step 4: User info
	// ========================================================================

	var info string
	if h.userInfo != nil && !principal.Anonymous {
		info, err = h.userInfo.Get(ctx, principal.UserID)
		if err != nil {
			writeError(c, OpCheckFileInfo, err)
			return
		}
	}

	// ========================================================================
	// Step 5: Assemble and post-process
	// ========================================================================

	resp := newCheckFileInfo(checkFileInfoParts{
		file:        file,
		checksum:    sum,
		principal:   principal,
		permissions: perms,
		userInfo:    info,
		caps:        h.caps,
		supportsUI:  h.userInfo != nil,
		hostViewURL: hostURL(h.hostViewURL, file.ID),
		hostEditURL: hostURL(h.hostEditURL, file.ID),
		brandName:   h.brandName,
	})
	if h.hook != nil {
		resp = h.hook(ctx, principal, resp)
	}

	c.JSON(http.StatusOK, resp)
}

// GetFile streams the file content.
//
// When X-WOPI-MaxExpectedSize is present and the file is larger, 412 is
// returned instead of the content. The version of the streamed bytes is
// reported in X-WOPI-ItemVersion; size and version come from the same
// snapshot as the reader, so a concurrent PutFile cannot mislabel them.
func (h *Handler) GetFile(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	file, r, err := h.provider.OpenRead(ctx, id)
	if err != nil {
		writeError(c, OpGetFile, err)
		return
	}
	defer r.Close()

	if raw := c.GetHeader(HeaderMaxExpectedSize); raw != "" {
		limit, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || limit < 0 {
			c.Status(http.StatusBadRequest)
			return
		}
		if file.Size > limit {
			c.Status(http.StatusPreconditionFailed)
			return
		}
	}

	c.Header(HeaderItemVersion, file.Version)
	c.Header("Content-Type", contentTypeOctetStream)
	c.Header("Content-Length", strconv.FormatInt(file.Size, 10))
	c.Status(http.StatusOK)

	n, err := io.Copy(c.Writer, r)
	h.metrics.RecordBytesTransferred("read", n)
	if err != nil {
		// Headers are gone; all that is left is to log
		logger.Warn("GetFile %s aborted after %d of %d bytes: %v", id, n, file.Size, err)
	}
}

// PutFile replaces the file content.
//
// Without an X-WOPI-Lock header the write is allowed only while the file is
// empty, which lets clients fill a freshly created file; otherwise 409. With
// a lock token the token is first driven through the lock manager as a LOCK
// (acquiring or refreshing it); the body is written only when that succeeds.
func (h *Handler) PutFile(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	if !h.allowed(c, auth.PermWrite) {
		return
	}

	// ========================================================================
	// Step 1: Resolve file
	// ========================================================================

	file, err := h.provider.GetFile(ctx, id)
	if err != nil {
		writeError(c, OpPutFile, err)
		return
	}

	// ========================================================================
	// Step 2: Lock agreement
	// ========================================================================

	lockID := c.GetHeader(HeaderLock)
	if lockID == "" {
		if file.Size != 0 {
			current, err := h.locks.Current(ctx, id)
			if err != nil {
				writeError(c, OpPutFile, err)
				return
			}
			writeLockConflict(c, currentLockID(current), "")
			return
		}
	} else {
		res, err := h.locks.Lock(ctx, id, lockID, "")
		if err != nil {
			writeError(c, OpPutFile, err)
			return
		}
		if !writeLockResult(c, res) {
			return
		}
	}

	// ========================================================================
	// Step 3: Write content
	// ========================================================================

	updated, err := h.provider.Write(ctx, id, c.Request.Body)
	if err != nil {
		writeError(c, OpPutFile, err)
		return
	}
	h.metrics.RecordBytesTransferred("write", updated.Size)

	c.Header(HeaderItemVersion, updated.Version)
	c.Status(http.StatusOK)
}

func currentLockID(l *lock.Lock) string {
	if l == nil {
		return ""
	}
	return l.LockID
}

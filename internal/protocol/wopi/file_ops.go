package wopi

import (
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/marmos91/wopihost/pkg/auth"
	"github.com/marmos91/wopihost/pkg/lock"
	"github.com/marmos91/wopihost/pkg/resource"
	"github.com/marmos91/wopihost/pkg/userinfo"
)

// RenameFile renames a file in place. X-WOPI-RequestedName carries the new
// base name; the file keeps its extension.
//
// A locked file is only renamed when X-WOPI-Lock matches the current lock.
// When the requested name is taken by another resource the first free
// "name (n)" variant is used. The response reports the final base name.
func (h *Handler) RenameFile(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	if !h.allowed(c, auth.PermRename) {
		return
	}

	requested := c.GetHeader(HeaderRequestedName)
	if requested == "" {
		writeError(c, OpRenameFile, resource.NewError(resource.ErrInvalidName, id, "requested name is empty"))
		return
	}

	file, err := h.provider.GetFile(ctx, id)
	if err != nil {
		writeError(c, OpRenameFile, err)
		return
	}

	// ========================================================================
	// Lock agreement
	// ========================================================================

	current, err := h.locks.Current(ctx, id)
	if err != nil {
		writeError(c, OpRenameFile, err)
		return
	}
	if current != nil && current.LockID != c.GetHeader(HeaderLock) {
		writeLockConflict(c, current.LockID, lock.ReasonMismatch)
		return
	}

	// ========================================================================
	// Name
	// ========================================================================

	name := requested + file.Extension
	if err := resource.ValidateName(name); err != nil {
		writeError(c, OpRenameFile, err)
		return
	}

	final := name
	if resource.NameKey(name) != resource.NameKey(file.Name) {
		final, err = h.provider.UniqueName(ctx, file.ContainerID, name)
		if err != nil {
			writeError(c, OpRenameFile, err)
			return
		}
	}

	if err := h.provider.Rename(ctx, resource.KindFile, id, final); err != nil {
		writeError(c, OpRenameFile, err)
		return
	}

	base, _ := resource.SplitName(final)
	c.JSON(http.StatusOK, RenameResponse{Name: base})
}

// DeleteFile removes an unlocked file. A locked file answers 409 with the
// current lock token.
func (h *Handler) DeleteFile(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	if !h.allowed(c, auth.PermDelete) {
		return
	}

	if _, err := h.provider.GetFile(ctx, id); err != nil {
		writeError(c, OpDeleteFile, err)
		return
	}

	current, err := h.locks.Current(ctx, id)
	if err != nil {
		writeError(c, OpDeleteFile, err)
		return
	}
	if current != nil {
		writeLockConflict(c, current.LockID, "")
		return
	}

	h.deleteResource(c, OpDeleteFile, resource.KindFile, id)
}

// deleteResource delegates a deletion and maps a declined deletion to 500.
func (h *Handler) deleteResource(c *gin.Context, operation string, kind resource.Kind, id string) {
	deleted, err := h.provider.Delete(c.Request.Context(), kind, id)
	if err != nil {
		writeError(c, operation, err)
		return
	}
	if !deleted {
		writeError(c, operation, fmt.Errorf("storage declined to delete %s %s", kind, id))
		return
	}
	c.Status(http.StatusOK)
}

// PutUserInfo stores the request body as the caller's user info blob.
// Hosts without a user info store, and anonymous callers, get 501.
func (h *Handler) PutUserInfo(c *gin.Context) {
	principal := auth.PrincipalFrom(c)
	if h.userInfo == nil || principal.Anonymous {
		c.Status(http.StatusNotImplemented)
		return
	}

	// A rune takes at most four bytes, so reading one byte past that bound
	// is enough for Validate to reject an oversized blob
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, userinfo.MaxLength*utf8.UTFMax+1))
	if err != nil {
		writeError(c, OpPutUserInfo, err)
		return
	}
	info := string(body)
	if err := userinfo.Validate(info); err != nil {
		writeError(c, OpPutUserInfo, err)
		return
	}

	if err := h.userInfo.Put(c.Request.Context(), principal.UserID, info); err != nil {
		writeError(c, OpPutUserInfo, err)
		return
	}
	c.Status(http.StatusOK)
}

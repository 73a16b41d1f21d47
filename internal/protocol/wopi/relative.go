package wopi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/marmos91/wopihost/pkg/auth"
	"github.com/marmos91/wopihost/pkg/resource"
)

// PutRelativeFile creates a new file next to the source file from the
// request body.
//
// Process:
//  1. Parse X-WOPI-SuggestedTarget / X-WOPI-RelativeTarget (501 unless
//     exactly one is present)
//  2. Resolve the source file (404)
//  3. Negotiate the target name in the source's container
//  4. On a relative-target collision: 409 with X-WOPI-ValidRelativeTarget,
//     or, with X-WOPI-OverwriteRelativeTarget, overwrite the existing file
//     unless it is locked (409 with X-WOPI-Lock)
//  5. Create the file, write the body and return its pointer
func (h *Handler) PutRelativeFile(c *gin.Context) {
	ctx := c.Request.Context()
	principal := auth.PrincipalFrom(c)

	if !h.allowed(c, auth.PermCreate) {
		return
	}

	// ========================================================================
	// Step 1: Target headers
	// ========================================================================

	req, ok := readNameRequest(c)
	if !ok {
		return
	}

	// ========================================================================
	// Step 2: Source file
	// ========================================================================

	source, err := h.provider.GetFile(ctx, c.Param("id"))
	if err != nil {
		writeError(c, OpPutRelativeFile, err)
		return
	}

	// ========================================================================
	// Step 3: Name negotiation
	// ========================================================================

	out, ok := h.negotiateName(c, OpPutRelativeFile, source.ContainerID, req, source.BaseName())
	if !ok {
		return
	}

	// ========================================================================
	// Step 4: Collisions
	// ========================================================================

	var target *resource.File
	if out.taken {
		if !req.overwrite {
			writeNameTaken(c, out.alternative)
			return
		}
		if target, ok = h.overwriteTarget(c, OpPutRelativeFile, source.ContainerID, out); !ok {
			return
		}
	}

	// ========================================================================
	// Step 5: Create and write
	// ========================================================================

	if target == nil {
		target, err = h.provider.CreateFile(ctx, source.ContainerID, out.name, principal.UserID)
		if err != nil {
			writeError(c, OpPutRelativeFile, err)
			return
		}
	}

	written, err := h.provider.Write(ctx, target.ID, c.Request.Body)
	if err != nil {
		writeError(c, OpPutRelativeFile, err)
		return
	}
	h.metrics.RecordBytesTransferred("write", written.Size)

	c.JSON(http.StatusOK, h.newFileResponse(c, written))
}

func (h *Handler) newFileResponse(c *gin.Context, f *resource.File) NewFileResponse {
	return NewFileResponse{
		Name:        f.Name,
		URL:         h.fileURL(c, f.ID),
		HostViewURL: hostURL(h.hostViewURL, f.ID),
		HostEditURL: hostURL(h.hostEditURL, f.ID),
	}
}

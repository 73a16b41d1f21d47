package wopi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/marmos91/wopihost/internal/logger"
)

// dispatchFileOverride routes POST /files/:id by X-WOPI-Override. Unknown
// or missing overrides answer 501.
func (h *Handler) dispatchFileOverride(c *gin.Context) {
	switch override := strings.ToUpper(strings.TrimSpace(c.GetHeader(HeaderOverride))); override {
	case OverrideLock:
		h.run(c, OpLock, h.Lock)
	case OverrideUnlock:
		h.run(c, OpUnlock, h.Unlock)
	case OverrideRefreshLock:
		h.run(c, OpRefreshLock, h.RefreshLock)
	case OverrideGetLock:
		h.run(c, OpGetLock, h.GetLock)
	case OverridePutRelative:
		h.run(c, OpPutRelativeFile, h.PutRelativeFile)
	case OverrideRenameFile:
		h.run(c, OpRenameFile, h.RenameFile)
	case OverrideDelete, OverrideDeleteFile:
		h.run(c, OpDeleteFile, h.DeleteFile)
	case OverridePutUserInfo:
		h.run(c, OpPutUserInfo, h.PutUserInfo)
	default:
		h.run(c, OpUnsupportedOverride, unsupportedOverride(override))
	}
}

// dispatchContainerOverride routes POST /containers/:id by X-WOPI-Override.
func (h *Handler) dispatchContainerOverride(c *gin.Context) {
	switch override := strings.ToUpper(strings.TrimSpace(c.GetHeader(HeaderOverride))); override {
	case OverrideCreateChildContainer:
		h.run(c, OpCreateChildContainer, h.CreateChildContainer)
	case OverrideCreateChildFile:
		h.run(c, OpCreateChildFile, h.CreateChildFile)
	case OverrideDeleteContainer:
		h.run(c, OpDeleteContainer, h.DeleteContainer)
	case OverrideRenameContainer:
		h.run(c, OpRenameContainer, h.RenameContainer)
	default:
		h.run(c, OpUnsupportedOverride, unsupportedOverride(override))
	}
}

func unsupportedOverride(override string) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger.Debug("Unsupported X-WOPI-Override %q on %s", override, c.Request.URL.Path)
		c.Status(http.StatusNotImplemented)
	}
}

package wopi

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/marmos91/wopihost/internal/logger"
	"github.com/marmos91/wopihost/pkg/auth"
	"github.com/marmos91/wopihost/pkg/lock"
	"github.com/marmos91/wopihost/pkg/metrics"
	"github.com/marmos91/wopihost/pkg/resource"
	"github.com/marmos91/wopihost/pkg/userinfo"
)

// CheckFileInfoHook post-processes a CheckFileInfo response before it is
// sent. It receives the assembled value and returns the value to send; it
// must not retain or mutate shared state.
type CheckFileInfoHook func(ctx context.Context, p *auth.Principal, info CheckFileInfo) CheckFileInfo

// Capabilities are the host capability flags asserted in CheckFileInfo.
type Capabilities struct {
	SupportsExtendedLockLength bool
	SupportsUpdate             bool
	SupportsRename             bool
	SupportsDeleteFile         bool
	SupportsContainers         bool
	SupportsEcosystem          bool
}

// DefaultCapabilities returns every capability this package implements.
func DefaultCapabilities() Capabilities {
	return Capabilities{
		SupportsExtendedLockLength: true,
		SupportsUpdate:             true,
		SupportsRename:             true,
		SupportsDeleteFile:         true,
		SupportsContainers:         true,
		SupportsEcosystem:          true,
	}
}

// Config holds the collaborators and options of a Handler.
type Config struct {
	// Provider and Locks are required.
	Provider resource.Provider
	Locks    *lock.Manager

	// Permissions defaults to auth.ClaimsPermissionResolver.
	Permissions auth.PermissionResolver

	// UserInfo is optional; without it PUT_USER_INFO answers 501.
	UserInfo userinfo.Store

	// Checksums memoises lazily computed SHA-256 digests. Optional.
	Checksums *resource.ChecksumCache

	Capabilities Capabilities

	// BaseURL is the public URL of the WOPI root, e.g.
	// "https://host.example.com/wopi". Empty derives it from each request.
	BaseURL string

	// HostViewURL and HostEditURL are optional templates; "{id}" is
	// replaced by the file ID.
	HostViewURL string
	HostEditURL string

	// BreadcrumbBrandName is reported in CheckFileInfo when set.
	BreadcrumbBrandName string

	// EnforcePermissions rejects mutating operations the principal lacks
	// the permission for with 401.
	EnforcePermissions bool

	// CheckFileInfoHook is optional.
	CheckFileInfoHook CheckFileInfoHook

	// Metrics is optional.
	Metrics metrics.WOPIMetrics
}

// Handler implements the WOPI operations.
//
// Thread Safety:
// Handler holds no mutable state of its own. Lock state lives in the
// lock.Manager, which linearises concurrent operations on the same file.
type Handler struct {
	provider  resource.Provider
	locks     *lock.Manager
	perms     auth.PermissionResolver
	userInfo  userinfo.Store
	checksums *resource.ChecksumCache
	caps      Capabilities
	metrics   metrics.WOPIMetrics
	hook      CheckFileInfoHook

	baseURL      string
	hostViewURL  string
	hostEditURL  string
	brandName    string
	enforcePerms bool
	routePrefix  string
}

// NewHandler creates a handler.
func NewHandler(cfg Config) *Handler {
	perms := cfg.Permissions
	if perms == nil {
		perms = auth.ClaimsPermissionResolver{}
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.NewNoopWOPIMetrics()
	}
	return &Handler{
		provider:     cfg.Provider,
		locks:        cfg.Locks,
		perms:        perms,
		userInfo:     cfg.UserInfo,
		checksums:    cfg.Checksums,
		caps:         cfg.Capabilities,
		metrics:      m,
		hook:         cfg.CheckFileInfoHook,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		hostViewURL:  cfg.HostViewURL,
		hostEditURL:  cfg.HostEditURL,
		brandName:    cfg.BreadcrumbBrandName,
		enforcePerms: cfg.EnforcePermissions,
	}
}

// RegisterRoutes mounts every operation on rg. The caller installs the
// access-token and proof middleware on rg beforehand.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	h.routePrefix = strings.TrimRight(rg.BasePath(), "/")

	files := rg.Group("/files/:id")
	files.GET("", h.route(OpCheckFileInfo, h.CheckFileInfo))
	files.GET("/contents", h.route(OpGetFile, h.GetFile))
	files.PUT("/contents", h.route(OpPutFile, h.PutFile))
	files.POST("/contents", h.route(OpPutFile, h.PutFile))
	files.POST("", h.dispatchFileOverride)
	files.GET("/ancestry", h.route(OpEnumerateAncestors, h.enumerateAncestors(resource.KindFile)))
	files.GET("/ecosystem_pointer", h.route(OpGetEcosystem, h.getEcosystem(resource.KindFile)))

	containers := rg.Group("/containers/:id")
	containers.GET("", h.route(OpCheckContainerInfo, h.CheckContainerInfo))
	containers.GET("/children", h.route(OpEnumerateChildren, h.EnumerateChildren))
	containers.POST("", h.dispatchContainerOverride)
	containers.GET("/ancestry", h.route(OpEnumerateAncestors, h.enumerateAncestors(resource.KindContainer)))
	containers.GET("/ecosystem_pointer", h.route(OpGetEcosystem, h.getEcosystem(resource.KindContainer)))

	rg.GET("/ecosystem", h.route(OpCheckEcosystem, h.CheckEcosystem))
	rg.GET("/ecosystem/root_container_pointer", h.route(OpGetRootContainer, h.GetRootContainer))
}

// route wraps fn with request metrics and logging under operation.
func (h *Handler) route(operation string, fn gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.run(c, operation, fn)
	}
}

func (h *Handler) run(c *gin.Context, operation string, fn gin.HandlerFunc) {
	start := time.Now()
	h.metrics.RecordRequestStart(operation)
	defer h.metrics.RecordRequestEnd(operation)

	fn(c)

	status := c.Writer.Status()
	duration := time.Since(start)
	h.metrics.RecordRequest(operation, status, duration)
	logger.Debug("WOPI %s: id=%s status=%d duration=%s", operation, c.Param("id"), status, duration)
}

// ============================================================================
// URL helpers
// ============================================================================

// wopiBase returns the absolute URL of the WOPI root.
func (h *Handler) wopiBase(c *gin.Context) string {
	if h.baseURL != "" {
		return h.baseURL
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host + h.routePrefix
}

// withToken appends the caller's access token so the client can follow the
// URL on the same principal's behalf.
func withToken(c *gin.Context, u string) string {
	token := auth.TokenFrom(c)
	if token == "" {
		return u
	}
	return u + "?" + accessTokenQueryParam + "=" + url.QueryEscape(token)
}

func (h *Handler) fileURL(c *gin.Context, id string) string {
	return withToken(c, h.wopiBase(c)+"/files/"+url.PathEscape(id))
}

func (h *Handler) containerURL(c *gin.Context, id string) string {
	return withToken(c, h.wopiBase(c)+"/containers/"+url.PathEscape(id))
}

func (h *Handler) ecosystemURL(c *gin.Context) string {
	return withToken(c, h.wopiBase(c)+"/ecosystem")
}

// hostURL expands a host page template, or returns "" when unset.
func hostURL(template, id string) string {
	if template == "" {
		return ""
	}
	return strings.ReplaceAll(template, "{id}", url.QueryEscape(id))
}

// allowed reports whether the principal may perform a mutation needing
// perm, writing a 401 when not.
func (h *Handler) allowed(c *gin.Context, perm string) bool {
	if !h.enforcePerms {
		return true
	}
	if auth.PrincipalFrom(c).Can(perm) {
		return true
	}
	c.Status(http.StatusUnauthorized)
	return false
}

package wopi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/marmos91/wopihost/pkg/resource"
)

// enumerateAncestors returns the EnumerateAncestors handler for kind. The
// chain is ordered root first and excludes the resource itself.
func (h *Handler) enumerateAncestors(kind resource.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		chain, err := h.provider.GetAncestors(c.Request.Context(), kind, c.Param("id"))
		if err != nil {
			writeError(c, OpEnumerateAncestors, err)
			return
		}

		resp := AncestorsResponse{AncestorsWithRootFirst: make([]Pointer, 0, len(chain))}
		for _, a := range chain {
			resp.AncestorsWithRootFirst = append(resp.AncestorsWithRootFirst, Pointer{
				Name: a.Name,
				URL:  h.containerURL(c, a.ID),
			})
		}
		c.JSON(http.StatusOK, resp)
	}
}

// getEcosystem returns the GetEcosystem handler for kind.
func (h *Handler) getEcosystem(kind resource.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id := c.Param("id")

		var err error
		if kind == resource.KindFile {
			_, err = h.provider.GetFile(ctx, id)
		} else {
			_, err = h.provider.GetContainer(ctx, id)
		}
		if err != nil {
			writeError(c, OpGetEcosystem, err)
			return
		}

		c.JSON(http.StatusOK, EcosystemPointerResponse{URL: h.ecosystemURL(c)})
	}
}

// CheckEcosystem reports ecosystem-wide capabilities.
func (h *Handler) CheckEcosystem(c *gin.Context) {
	c.JSON(http.StatusOK, CheckEcosystemResponse{SupportsContainers: h.caps.SupportsContainers})
}

// GetRootContainer returns a pointer to the root container.
func (h *Handler) GetRootContainer(c *gin.Context) {
	root, err := h.provider.GetRootContainer(c.Request.Context())
	if err != nil {
		writeError(c, OpGetRootContainer, err)
		return
	}
	c.JSON(http.StatusOK, ContainerPointerResponse{
		ContainerPointer: Pointer{Name: root.Name, URL: h.containerURL(c, root.ID)},
	})
}

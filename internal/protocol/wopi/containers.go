package wopi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/marmos91/wopihost/pkg/auth"
	"github.com/marmos91/wopihost/pkg/resource"
)

// CheckContainerInfo returns the name and permission flags of a container.
func (h *Handler) CheckContainerInfo(c *gin.Context) {
	ctx := c.Request.Context()
	principal := auth.PrincipalFrom(c)

	container, err := h.provider.GetContainer(ctx, c.Param("id"))
	if err != nil {
		writeError(c, OpCheckContainerInfo, err)
		return
	}

	var perms auth.ContainerPermissions
	if !principal.Anonymous {
		perms, err = h.perms.ContainerPermissions(ctx, principal, container)
		if err != nil {
			writeError(c, OpCheckContainerInfo, err)
			return
		}
	}

	c.JSON(http.StatusOK, newCheckContainerInfo(container, principal, perms))
}

// EnumerateChildren lists the files and child containers of a container.
// X-WOPI-FileExtensionFilterList, when present, is a comma-separated list
// of extensions ("docx,.xlsx"); only files matching one are returned.
// Child containers are never filtered.
func (h *Handler) EnumerateChildren(c *gin.Context) {
	files, containers, err := h.provider.ListChildren(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, OpEnumerateChildren, err)
		return
	}

	filter := parseExtensionFilter(c.GetHeader(HeaderFileExtensionFilterList))

	resp := ChildrenResponse{
		Children:        make([]ChildFile, 0, len(files)),
		ChildContainers: make([]Pointer, 0, len(containers)),
	}
	for _, f := range files {
		if filter != nil {
			if _, ok := filter[strings.ToLower(f.Extension)]; !ok {
				continue
			}
		}
		resp.Children = append(resp.Children, ChildFile{
			Name:             f.Name,
			URL:              h.fileURL(c, f.ID),
			LastModifiedTime: f.LastWriteTime.UTC().Format(wopiTimestampLayout),
			Size:             f.Size,
			Version:          f.Version,
		})
	}
	for _, ct := range containers {
		resp.ChildContainers = append(resp.ChildContainers, Pointer{
			Name: ct.Name,
			URL:  h.containerURL(c, ct.ID),
		})
	}

	c.JSON(http.StatusOK, resp)
}

// parseExtensionFilter returns the set of lowercased ".ext" values, or nil
// when the header is absent or lists nothing.
func parseExtensionFilter(header string) map[string]struct{} {
	var filter map[string]struct{}
	for _, ext := range strings.Split(header, ",") {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if filter == nil {
			filter = make(map[string]struct{})
		}
		filter[ext] = struct{}{}
	}
	return filter
}

// CreateChildContainer creates a child container. Target names follow the
// same negotiation as PutRelativeFile; an existing container is never
// overwritten.
func (h *Handler) CreateChildContainer(c *gin.Context) {
	ctx := c.Request.Context()

	if !h.allowed(c, auth.PermCreate) {
		return
	}

	req, ok := readNameRequest(c)
	if !ok {
		return
	}

	parent, err := h.provider.GetContainer(ctx, c.Param("id"))
	if err != nil {
		writeError(c, OpCreateChildContainer, err)
		return
	}

	out, ok := h.negotiateName(c, OpCreateChildContainer, parent.ID, req, defaultNewFileBaseName)
	if !ok {
		return
	}
	if out.taken {
		writeNameTaken(c, out.alternative)
		return
	}

	created, err := h.provider.CreateContainer(ctx, parent.ID, out.name)
	if err != nil {
		writeError(c, OpCreateChildContainer, err)
		return
	}

	c.JSON(http.StatusOK, ContainerPointerResponse{
		ContainerPointer: Pointer{Name: created.Name, URL: h.containerURL(c, created.ID)},
	})
}

// CreateChildFile creates an empty file in a container. A bare-extension
// suggestion is named "New Document.ext". Overwriting an existing unlocked
// file truncates it.
func (h *Handler) CreateChildFile(c *gin.Context) {
	ctx := c.Request.Context()
	principal := auth.PrincipalFrom(c)

	if !h.allowed(c, auth.PermCreate) {
		return
	}

	req, ok := readNameRequest(c)
	if !ok {
		return
	}

	parent, err := h.provider.GetContainer(ctx, c.Param("id"))
	if err != nil {
		writeError(c, OpCreateChildFile, err)
		return
	}

	out, ok := h.negotiateName(c, OpCreateChildFile, parent.ID, req, defaultNewFileBaseName)
	if !ok {
		return
	}

	var file *resource.File
	if out.taken {
		if !req.overwrite {
			writeNameTaken(c, out.alternative)
			return
		}
		existing, ok := h.overwriteTarget(c, OpCreateChildFile, parent.ID, out)
		if !ok {
			return
		}
		file, err = h.provider.Write(ctx, existing.ID, strings.NewReader(""))
	} else {
		file, err = h.provider.CreateFile(ctx, parent.ID, out.name, principal.UserID)
	}
	if err != nil {
		writeError(c, OpCreateChildFile, err)
		return
	}

	c.JSON(http.StatusOK, h.newFileResponse(c, file))
}

// DeleteContainer removes an empty container. A non-empty container
// answers 409; the root is never deleted (500).
func (h *Handler) DeleteContainer(c *gin.Context) {
	if !h.allowed(c, auth.PermDelete) {
		return
	}
	h.deleteResource(c, OpDeleteContainer, resource.KindContainer, c.Param("id"))
}

// RenameContainer renames a container in place. X-WOPI-RequestedName is
// the complete new name; a taken name is replaced by its first free
// "name (n)" variant. Renaming the root is rejected with 400.
func (h *Handler) RenameContainer(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	if !h.allowed(c, auth.PermRename) {
		return
	}

	name := c.GetHeader(HeaderRequestedName)
	if err := resource.ValidateName(name); err != nil {
		writeError(c, OpRenameContainer, err)
		return
	}

	container, err := h.provider.GetContainer(ctx, id)
	if err != nil {
		writeError(c, OpRenameContainer, err)
		return
	}
	if container.IsRoot() {
		writeError(c, OpRenameContainer, resource.NewError(resource.ErrInvalidOperation, id, "the root container cannot be renamed"))
		return
	}

	final := name
	if resource.NameKey(name) != resource.NameKey(container.Name) {
		final, err = h.provider.UniqueName(ctx, container.ParentID, name)
		if err != nil {
			writeError(c, OpRenameContainer, err)
			return
		}
	}

	if err := h.provider.Rename(ctx, resource.KindContainer, id, final); err != nil {
		writeError(c, OpRenameContainer, err)
		return
	}
	c.JSON(http.StatusOK, RenameResponse{Name: final})
}

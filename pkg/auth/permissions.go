package auth

import (
	"context"

	"github.com/marmos91/wopihost/pkg/resource"
)

// FilePermissions are the per-file flags reported by CheckFileInfo.
type FilePermissions struct {
	UserCanWrite            bool
	UserCanRename           bool
	UserCanNotWriteRelative bool
	ReadOnly                bool
}

// ContainerPermissions are the per-container flags reported by
// CheckContainerInfo.
type ContainerPermissions struct {
	UserCanCreateChildContainer bool
	UserCanCreateChildFile      bool
	UserCanDelete               bool
	UserCanRename               bool
}

// PermissionResolver decides what a principal may do with a resource.
type PermissionResolver interface {
	FilePermissions(ctx context.Context, p *Principal, f *resource.File) (FilePermissions, error)
	ContainerPermissions(ctx context.Context, p *Principal, c *resource.Container) (ContainerPermissions, error)
}

// ClaimsPermissionResolver derives flags from the permissions carried by the
// principal's token. Anonymous principals get read-only flags.
type ClaimsPermissionResolver struct{}

var _ PermissionResolver = ClaimsPermissionResolver{}

func (ClaimsPermissionResolver) FilePermissions(_ context.Context, p *Principal, _ *resource.File) (FilePermissions, error) {
	canWrite := p.Can(PermWrite)
	return FilePermissions{
		UserCanWrite:            canWrite,
		UserCanRename:           canWrite && p.Can(PermRename),
		UserCanNotWriteRelative: !p.Can(PermCreate),
		ReadOnly:                !canWrite,
	}, nil
}

func (ClaimsPermissionResolver) ContainerPermissions(_ context.Context, p *Principal, c *resource.Container) (ContainerPermissions, error) {
	return ContainerPermissions{
		UserCanCreateChildContainer: p.Can(PermCreate),
		UserCanCreateChildFile:      p.Can(PermCreate),
		UserCanDelete:               p.Can(PermDelete) && !c.IsRoot(),
		UserCanRename:               p.Can(PermRename) && !c.IsRoot(),
	}, nil
}

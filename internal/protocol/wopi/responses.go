package wopi

import (
	"encoding/base64"

	"github.com/marmos91/wopihost/pkg/auth"
	"github.com/marmos91/wopihost/pkg/resource"
)

// CheckFileInfo is the CheckFileInfo response body. Values are assembled
// once by newCheckFileInfo; optional fields are omitted when empty.
type CheckFileInfo struct {
	// Required properties
	BaseFileName string `json:"BaseFileName"`
	OwnerID      string `json:"OwnerId"`
	Size         int64  `json:"Size"`
	UserID       string `json:"UserId"`
	Version      string `json:"Version"`

	// File properties
	FileExtension    string `json:"FileExtension,omitempty"`
	LastModifiedTime string `json:"LastModifiedTime,omitempty"`
	SHA256           string `json:"SHA256,omitempty"`

	// User metadata
	UserFriendlyName string `json:"UserFriendlyName,omitempty"`
	IsAnonymousUser  bool   `json:"IsAnonymousUser"`
	UserInfo         string `json:"UserInfo,omitempty"`

	// Permissions
	ReadOnly                bool `json:"ReadOnly"`
	UserCanWrite            bool `json:"UserCanWrite"`
	UserCanRename           bool `json:"UserCanRename"`
	UserCanNotWriteRelative bool `json:"UserCanNotWriteRelative"`

	// Host capabilities
	SupportsLocks              bool `json:"SupportsLocks"`
	SupportsGetLock            bool `json:"SupportsGetLock"`
	SupportsExtendedLockLength bool `json:"SupportsExtendedLockLength"`
	SupportsUpdate             bool `json:"SupportsUpdate"`
	SupportsRename             bool `json:"SupportsRename"`
	SupportsDeleteFile         bool `json:"SupportsDeleteFile"`
	SupportsUserInfo           bool `json:"SupportsUserInfo"`
	SupportsContainers         bool `json:"SupportsContainers"`
	SupportsEcosystem          bool `json:"SupportsEcosystem"`

	// Host URLs
	HostViewURL         string `json:"HostViewUrl,omitempty"`
	HostEditURL         string `json:"HostEditUrl,omitempty"`
	BreadcrumbBrandName string `json:"BreadcrumbBrandName,omitempty"`
}

// checkFileInfoParts gathers everything newCheckFileInfo needs.
type checkFileInfoParts struct {
	file        *resource.File
	checksum    []byte
	principal   *auth.Principal
	permissions auth.FilePermissions
	userInfo    string
	caps        Capabilities
	supportsUI  bool
	hostViewURL string
	hostEditURL string
	brandName   string
}

func newCheckFileInfo(p checkFileInfoParts) CheckFileInfo {
	userID := p.principal.UserID
	if p.principal.Anonymous {
		userID = anonymousUserID
	}

	info := CheckFileInfo{
		BaseFileName:     p.file.Name,
		OwnerID:          p.file.OwnerID,
		Size:             p.file.Size,
		UserID:           userID,
		Version:          p.file.Version,
		FileExtension:    p.file.Extension,
		LastModifiedTime: p.file.LastWriteTime.UTC().Format(wopiTimestampLayout),
		UserFriendlyName: p.principal.FriendlyName,
		IsAnonymousUser:  p.principal.Anonymous,
		UserInfo:         p.userInfo,

		ReadOnly:                p.permissions.ReadOnly,
		UserCanWrite:            p.permissions.UserCanWrite,
		UserCanRename:           p.permissions.UserCanRename,
		UserCanNotWriteRelative: p.permissions.UserCanNotWriteRelative,

		SupportsLocks:              true,
		SupportsGetLock:            true,
		SupportsExtendedLockLength: p.caps.SupportsExtendedLockLength,
		SupportsUpdate:             p.caps.SupportsUpdate,
		SupportsRename:             p.caps.SupportsRename,
		SupportsDeleteFile:         p.caps.SupportsDeleteFile,
		SupportsUserInfo:           p.supportsUI,
		SupportsContainers:         p.caps.SupportsContainers,
		SupportsEcosystem:          p.caps.SupportsEcosystem,

		HostViewURL:         p.hostViewURL,
		HostEditURL:         p.hostEditURL,
		BreadcrumbBrandName: p.brandName,
	}
	if len(p.checksum) > 0 {
		info.SHA256 = base64.StdEncoding.EncodeToString(p.checksum)
	}
	return info
}

// CheckContainerInfo is the CheckContainerInfo response body.
type CheckContainerInfo struct {
	Name                        string `json:"Name"`
	UserCanCreateChildContainer bool   `json:"UserCanCreateChildContainer"`
	UserCanCreateChildFile      bool   `json:"UserCanCreateChildFile"`
	UserCanDelete               bool   `json:"UserCanDelete"`
	UserCanRename               bool   `json:"UserCanRename"`
	IsAnonymousUser             bool   `json:"IsAnonymousUser"`
}

func newCheckContainerInfo(c *resource.Container, p *auth.Principal, perms auth.ContainerPermissions) CheckContainerInfo {
	return CheckContainerInfo{
		Name:                        c.Name,
		UserCanCreateChildContainer: perms.UserCanCreateChildContainer,
		UserCanCreateChildFile:      perms.UserCanCreateChildFile,
		UserCanDelete:               perms.UserCanDelete,
		UserCanRename:               perms.UserCanRename,
		IsAnonymousUser:             p.Anonymous,
	}
}

// Pointer names a resource and the WOPI URL to reach it.
type Pointer struct {
	Name string `json:"Name,omitempty"`
	URL  string `json:"Url"`
}

// ContainerPointerResponse answers CreateChildContainer and GetRootContainer.
type ContainerPointerResponse struct {
	ContainerPointer Pointer `json:"ContainerPointer"`
}

// EcosystemPointerResponse answers GetEcosystem.
type EcosystemPointerResponse struct {
	URL string `json:"Url"`
}

// AncestorsResponse answers EnumerateAncestors.
type AncestorsResponse struct {
	AncestorsWithRootFirst []Pointer `json:"AncestorsWithRootFirst"`
}

// NewFileResponse answers PutRelativeFile and CreateChildFile.
type NewFileResponse struct {
	Name        string `json:"Name"`
	URL         string `json:"Url"`
	HostViewURL string `json:"HostViewUrl,omitempty"`
	HostEditURL string `json:"HostEditUrl,omitempty"`
}

// RenameResponse answers RenameFile and RenameContainer.
type RenameResponse struct {
	Name string `json:"Name"`
}

// ChildFile is one file entry of EnumerateChildren.
type ChildFile struct {
	Name             string `json:"Name"`
	URL              string `json:"Url"`
	LastModifiedTime string `json:"LastModifiedTime"`
	Size             int64  `json:"Size"`
	Version          string `json:"Version"`
}

// ChildrenResponse answers EnumerateChildren.
type ChildrenResponse struct {
	Children        []ChildFile `json:"Children"`
	ChildContainers []Pointer   `json:"ChildContainers"`
}

// CheckEcosystemResponse answers CheckEcosystem.
type CheckEcosystemResponse struct {
	SupportsContainers bool `json:"SupportsContainers"`
}

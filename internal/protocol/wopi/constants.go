package wopi

// Request headers.
const (
	HeaderOverride                = "X-WOPI-Override"
	HeaderLock                    = "X-WOPI-Lock"
	HeaderOldLock                 = "X-WOPI-OldLock"
	HeaderMaxExpectedSize         = "X-WOPI-MaxExpectedSize"
	HeaderSuggestedTarget         = "X-WOPI-SuggestedTarget"
	HeaderRelativeTarget          = "X-WOPI-RelativeTarget"
	HeaderOverwriteRelativeTarget = "X-WOPI-OverwriteRelativeTarget"
	HeaderRequestedName           = "X-WOPI-RequestedName"
	HeaderFileExtensionFilterList = "X-WOPI-FileExtensionFilterList"
)

// Response headers.
const (
	HeaderItemVersion          = "X-WOPI-ItemVersion"
	HeaderLockFailureReason    = "X-WOPI-LockFailureReason"
	HeaderInvalidFileNameError = "X-WOPI-InvalidFileNameError"
	HeaderValidRelativeTarget  = "X-WOPI-ValidRelativeTarget"
)

// X-WOPI-Override values.
const (
	OverrideLock                 = "LOCK"
	OverrideUnlock               = "UNLOCK"
	OverrideRefreshLock          = "REFRESH_LOCK"
	OverrideGetLock              = "GET_LOCK"
	OverridePutRelative          = "PUT_RELATIVE"
	OverrideRenameFile           = "RENAME_FILE"
	OverrideDelete               = "DELETE"
	OverrideDeleteFile           = "DELETE_FILE"
	OverridePutUserInfo          = "PUT_USER_INFO"
	OverrideCreateChildContainer = "CREATE_CHILD_CONTAINER"
	OverrideCreateChildFile      = "CREATE_CHILD_FILE"
	OverrideDeleteContainer      = "DELETE_CONTAINER"
	OverrideRenameContainer      = "RENAME_CONTAINER"
)

// Operation names used in logs and metrics.
const (
	OpCheckFileInfo        = "CheckFileInfo"
	OpGetFile              = "GetFile"
	OpPutFile              = "PutFile"
	OpLock                 = "Lock"
	OpUnlock               = "Unlock"
	OpRefreshLock          = "RefreshLock"
	OpGetLock              = "GetLock"
	OpPutRelativeFile      = "PutRelativeFile"
	OpRenameFile           = "RenameFile"
	OpDeleteFile           = "DeleteFile"
	OpPutUserInfo          = "PutUserInfo"
	OpEnumerateAncestors   = "EnumerateAncestors"
	OpGetEcosystem         = "GetEcosystem"
	OpCheckContainerInfo   = "CheckContainerInfo"
	OpEnumerateChildren    = "EnumerateChildren"
	OpCreateChildContainer = "CreateChildContainer"
	OpCreateChildFile      = "CreateChildFile"
	OpDeleteContainer      = "DeleteContainer"
	OpRenameContainer      = "RenameContainer"
	OpCheckEcosystem       = "CheckEcosystem"
	OpGetRootContainer     = "GetRootContainer"
	OpUnsupportedOverride  = "Unsupported"
)

const (
	// defaultNewFileBaseName names files created from a bare extension
	// when there is no source file to borrow a base name from.
	defaultNewFileBaseName = "New Document"

	// wopiTimestampLayout is the ISO 8601 form WOPI clients expect.
	wopiTimestampLayout = "2006-01-02T15:04:05.0000000Z"

	contentTypeOctetStream = "application/octet-stream"
	accessTokenQueryParam  = "access_token"
	anonymousUserID        = "anonymous"
)

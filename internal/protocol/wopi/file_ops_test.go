package wopi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/marmos91/wopihost/pkg/resource"
	"github.com/marmos91/wopihost/pkg/userinfo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// PutRelativeFile
// ============================================================================

func putRelative(env *testEnv, sourceID, body string, headers map[string]string) *httptest.ResponseRecorder {
	h := map[string]string{HeaderOverride: OverridePutRelative}
	for k, v := range headers {
		h[k] = v
	}
	return env.do(http.MethodPost, "/files/"+sourceID, body, h)
}

func TestPutRelativeFile_NameCollision(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.createFile(env.root.ID, "report.docx", "existing")
	source := env.createFile(env.root.ID, "draft.docx", "draft")

	w := putRelative(env, source.ID, "new", map[string]string{HeaderRelativeTarget: "report.docx"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "report (1).docx", w.Header().Get(HeaderValidRelativeTarget))

	existing, err := env.provider.LookupFile(context.Background(), env.root.ID, "report.docx")
	require.NoError(t, err)
	assert.Equal(t, "existing", env.readFile(existing.ID))
}

func TestPutRelativeFile_RelativeTarget(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	source := env.createFile(env.root.ID, "draft.docx", "draft")

	w := putRelative(env, source.ID, "exported", map[string]string{HeaderRelativeTarget: "export.pdf"})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[NewFileResponse](t, w)
	assert.Equal(t, "export.pdf", resp.Name)
	assert.Contains(t, resp.URL, "/wopi/files/")
	assert.Contains(t, resp.URL, "access_token="+aliceToken)

	created, err := env.provider.LookupFile(context.Background(), env.root.ID, "export.pdf")
	require.NoError(t, err)
	assert.Equal(t, "exported", env.readFile(created.ID))
	assert.Equal(t, "alice", created.OwnerID)
}

func TestPutRelativeFile_SuggestedTarget(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	source := env.createFile(env.root.ID, "report.docx", "report")

	tests := []struct {
		name      string
		suggested string
		want      string
	}{
		{name: "BareExtension", suggested: ".pdf", want: "report.pdf"},
		{name: "Collision", suggested: "report.docx", want: "report (1).docx"},
		{name: "FullName", suggested: "summary.txt", want: "summary.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := putRelative(env, source.ID, "body", map[string]string{HeaderSuggestedTarget: tt.suggested})
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.want, decode[NewFileResponse](t, w).Name)
		})
	}
}

func TestPutRelativeFile_HeaderCombinations(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	source := env.createFile(env.root.ID, "report.docx", "")

	w := putRelative(env, source.ID, "", nil)
	assert.Equal(t, http.StatusNotImplemented, w.Code)

	w = putRelative(env, source.ID, "", map[string]string{
		HeaderSuggestedTarget: ".pdf",
		HeaderRelativeTarget:  "other.pdf",
	})
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestPutRelativeFile_InvalidName(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	source := env.createFile(env.root.ID, "report.docx", "")

	for _, headers := range []map[string]string{
		{HeaderRelativeTarget: "bad:name.docx"},
		{HeaderSuggestedTarget: "what?.docx"},
	} {
		w := putRelative(env, source.ID, "", headers)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NotEmpty(t, w.Header().Get(HeaderInvalidFileNameError))
	}
}

func TestPutRelativeFile_Overwrite(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	target := env.createFile(env.root.ID, "report.docx", "old")
	source := env.createFile(env.root.ID, "draft.docx", "")
	headers := map[string]string{
		HeaderRelativeTarget:          "REPORT.docx",
		HeaderOverwriteRelativeTarget: "true",
	}

	require.Equal(t, http.StatusOK, env.override(target.ID, OverrideLock, map[string]string{HeaderLock: "A"}).Code)

	w := putRelative(env, source.ID, "new", headers)
	assert.Equal(t, http.StatusConflict, w.Code)
	current, _ := lockHeader(w)
	assert.Equal(t, "A", current)
	assert.Equal(t, "old", env.readFile(target.ID))

	require.Equal(t, http.StatusOK, env.override(target.ID, OverrideUnlock, map[string]string{HeaderLock: "A"}).Code)

	w = putRelative(env, source.ID, "new", headers)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "report.docx", decode[NewFileResponse](t, w).Name)
	assert.Equal(t, "new", env.readFile(target.ID))
}

func TestPutRelativeFile_OverwriteContainerName(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	_, err := env.provider.CreateContainer(context.Background(), env.root.ID, "archive")
	require.NoError(t, err)
	source := env.createFile(env.root.ID, "draft.docx", "")

	w := putRelative(env, source.ID, "", map[string]string{
		HeaderRelativeTarget:          "archive",
		HeaderOverwriteRelativeTarget: "true",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "archive (1)", w.Header().Get(HeaderValidRelativeTarget))
}

func TestPutRelativeFile_BaseURL(t *testing.T) {
	env := newTestEnv(t, envOptions{configure: func(cfg *Config) {
		cfg.BaseURL = "https://wopi.example.com/wopi/"
		cfg.HostViewURL = "https://host.example.com/view/{id}"
	}})
	source := env.createFile(env.root.ID, "report.docx", "")

	w := putRelative(env, source.ID, "", map[string]string{HeaderSuggestedTarget: ".xlsx"})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[NewFileResponse](t, w)
	assert.True(t, strings.HasPrefix(resp.URL, "https://wopi.example.com/wopi/files/"), resp.URL)
	assert.True(t, strings.HasPrefix(resp.HostViewURL, "https://host.example.com/view/"), resp.HostViewURL)
}

// ============================================================================
// RenameFile
// ============================================================================

func renameFile(env *testEnv, id, name string, headers map[string]string) *httptest.ResponseRecorder {
	h := map[string]string{HeaderOverride: OverrideRenameFile, HeaderRequestedName: name}
	for k, v := range headers {
		h[k] = v
	}
	return env.do(http.MethodPost, "/files/"+id, "", h)
}

func TestRenameFile(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	f := env.createFile(env.root.ID, "draft.docx", "")
	env.createFile(env.root.ID, "taken.docx", "")

	w := renameFile(env, f.ID, "final", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "final", decode[RenameResponse](t, w).Name)

	renamed, err := env.provider.GetFile(context.Background(), f.ID)
	require.NoError(t, err)
	assert.Equal(t, "final.docx", renamed.Name)

	t.Run("Collision", func(t *testing.T) {
		w := renameFile(env, f.ID, "taken", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "taken (1)", decode[RenameResponse](t, w).Name)
	})

	t.Run("CaseOnly", func(t *testing.T) {
		w := renameFile(env, f.ID, "Taken (1)", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Taken (1)", decode[RenameResponse](t, w).Name)
	})

	t.Run("InvalidName", func(t *testing.T) {
		w := renameFile(env, f.ID, "bad|name", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NotEmpty(t, w.Header().Get(HeaderInvalidFileNameError))
	})

	t.Run("NotFound", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, renameFile(env, "missing", "x", nil).Code)
	})
}

func TestRenameFile_Locked(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	f := env.createFile(env.root.ID, "draft.docx", "")
	require.Equal(t, http.StatusOK, env.override(f.ID, OverrideLock, map[string]string{HeaderLock: "A"}).Code)

	w := renameFile(env, f.ID, "final", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	current, _ := lockHeader(w)
	assert.Equal(t, "A", current)

	w = renameFile(env, f.ID, "final", map[string]string{HeaderLock: "B"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = renameFile(env, f.ID, "final", map[string]string{HeaderLock: "A"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "final", decode[RenameResponse](t, w).Name)
}

// ============================================================================
// DeleteFile
// ============================================================================

func TestDeleteFile(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	f := env.createFile(env.root.ID, "doomed.docx", "bytes")
	require.Equal(t, http.StatusOK, env.override(f.ID, OverrideLock, map[string]string{HeaderLock: "A"}).Code)

	w := env.override(f.ID, OverrideDelete, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	current, _ := lockHeader(w)
	assert.Equal(t, "A", current)

	require.Equal(t, http.StatusOK, env.override(f.ID, OverrideUnlock, map[string]string{HeaderLock: "A"}).Code)

	w = env.override(f.ID, OverrideDeleteFile, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	_, err := env.provider.GetFile(context.Background(), f.ID)
	assert.True(t, resource.IsNotFound(err))

	assert.Equal(t, http.StatusNotFound, env.override(f.ID, OverrideDelete, nil).Code)
}

// ============================================================================
// PutUserInfo
// ============================================================================

func TestPutUserInfo(t *testing.T) {
	env := newTestEnv(t, envOptions{allowAnonymous: true})
	f := env.createFile(env.root.ID, "a.docx", "")
	put := func(token, body string) int {
		return env.doAs(token, http.MethodPost, "/files/"+f.ID, body, map[string]string{HeaderOverride: OverridePutUserInfo}).Code
	}

	assert.Equal(t, http.StatusOK, put(aliceToken, `{"theme":"dark"}`))

	w := env.do(http.MethodGet, "/files/"+f.ID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"theme":"dark"}`, decode[CheckFileInfo](t, w).UserInfo)

	w = env.doAs(readerToken, http.MethodGet, "/files/"+f.ID, "", nil)
	assert.Empty(t, decode[CheckFileInfo](t, w).UserInfo, "user info is per user")

	assert.Equal(t, http.StatusBadRequest, put(aliceToken, strings.Repeat("é", userinfo.MaxLength+1)))
	assert.Equal(t, http.StatusOK, put(aliceToken, strings.Repeat("é", userinfo.MaxLength)))
	assert.Equal(t, http.StatusNotImplemented, put("", "anonymous"))
}

func TestPutUserInfo_NoStore(t *testing.T) {
	env := newTestEnv(t, envOptions{configure: func(cfg *Config) { cfg.UserInfo = nil }})
	f := env.createFile(env.root.ID, "a.docx", "")

	w := env.override(f.ID, OverridePutUserInfo, nil)
	assert.Equal(t, http.StatusNotImplemented, w.Code)

	w = env.do(http.MethodGet, "/files/"+f.ID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[CheckFileInfo](t, w).SupportsUserInfo)
}

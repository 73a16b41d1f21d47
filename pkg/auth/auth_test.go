package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/marmos91/wopihost/internal/testutil"
	"github.com/marmos91/wopihost/pkg/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolver(t *testing.T, c *testutil.StubClock) *JWTResolver {
	t.Helper()
	r, err := NewJWTResolver(JWTConfig{Secret: "s3cret", TTL: time.Hour, Clock: c})
	require.NoError(t, err)
	return r
}

func TestJWTResolver_IssueResolve(t *testing.T) {
	ctx := context.Background()
	c := testutil.NewStubClock(time.Now().UTC())
	r := newResolver(t, c)

	token, expires, err := r.Issue(Principal{
		UserID:       "alice",
		FriendlyName: "Alice",
		Email:        "alice@example.com",
		Permissions:  []string{PermWrite},
	})
	require.NoError(t, err)
	assert.WithinDuration(t, c.Now().Add(time.Hour), expires, time.Second)

	p, err := r.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.UserID)
	assert.Equal(t, "Alice", p.FriendlyName)
	assert.Equal(t, "alice@example.com", p.Email)
	assert.True(t, p.Can(PermWrite))
	assert.False(t, p.Can(PermDelete))
	assert.False(t, p.Anonymous)
}

func TestJWTResolver_Rejects(t *testing.T) {
	ctx := context.Background()
	c := testutil.NewStubClock(time.Now().UTC())
	r := newResolver(t, c)

	token, _, err := r.Issue(Principal{UserID: "alice"})
	require.NoError(t, err)

	_, err = r.Resolve(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewJWTResolver(JWTConfig{Secret: "different", Clock: c})
	require.NoError(t, err)
	_, err = other.Resolve(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong secret")

	foreign, err := NewJWTResolver(JWTConfig{Secret: "s3cret", Issuer: "someone-else", Clock: c})
	require.NoError(t, err)
	_, err = foreign.Resolve(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong issuer")

	c.Advance(2 * time.Hour)
	_, err = r.Resolve(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken, "expired")

	_, _, err = r.Issue(Principal{})
	assert.Error(t, err)
}

func TestNewJWTResolver_RequiresSecret(t *testing.T) {
	_, err := NewJWTResolver(JWTConfig{})
	assert.Error(t, err)
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name  string
		build func() *http.Request
		want  string
	}{
		{
			name: "query",
			build: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/wopi/files/1?access_token=q", nil)
				r.Header.Set("Authorization", "Bearer b")
				return r
			},
			want: "q",
		},
		{
			name: "form body",
			build: func() *http.Request {
				body := url.Values{"access_token": {"f"}}.Encode()
				r := httptest.NewRequest(http.MethodPost, "/wopi/files/1", strings.NewReader(body))
				r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
				r.Header.Set("Authorization", "Bearer b")
				return r
			},
			want: "f",
		},
		{
			name: "bearer",
			build: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/wopi/files/1", nil)
				r.Header.Set("Authorization", "bearer b")
				return r
			},
			want: "b",
		},
		{
			name: "file body is not parsed",
			build: func() *http.Request {
				r := httptest.NewRequest(http.MethodPost, "/wopi/files/1/contents", strings.NewReader("access_token=f"))
				r.Header.Set("Content-Type", "application/octet-stream")
				return r
			},
			want: "",
		},
		{
			name: "basic auth ignored",
			build: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/wopi/files/1", nil)
				r.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
				return r
			},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TokenFromRequest(tt.build()))
		})
	}
}

func TestClaimsPermissionResolver(t *testing.T) {
	ctx := context.Background()
	var resolver ClaimsPermissionResolver
	file := &resource.File{ID: "f1"}
	root := &resource.Container{ID: "root"}
	dir := &resource.Container{ID: "d1", ParentID: "root"}

	editor := &Principal{UserID: "alice", Permissions: AllPermissions}
	fp, err := resolver.FilePermissions(ctx, editor, file)
	require.NoError(t, err)
	assert.Equal(t, FilePermissions{UserCanWrite: true, UserCanRename: true}, fp)

	cp, err := resolver.ContainerPermissions(ctx, editor, dir)
	require.NoError(t, err)
	assert.Equal(t, ContainerPermissions{true, true, true, true}, cp)

	cp, err = resolver.ContainerPermissions(ctx, editor, root)
	require.NoError(t, err)
	assert.False(t, cp.UserCanDelete)
	assert.False(t, cp.UserCanRename)

	fp, err = resolver.FilePermissions(ctx, AnonymousPrincipal(), file)
	require.NoError(t, err)
	assert.Equal(t, FilePermissions{UserCanNotWriteRelative: true, ReadOnly: true}, fp)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c := testutil.NewStubClock(time.Now().UTC())
	resolver := newResolver(t, c)
	token, _, err := resolver.Issue(Principal{UserID: "alice"})
	require.NoError(t, err)

	newRouter := func(allowAnonymous bool) *gin.Engine {
		router := gin.New()
		router.Use(Middleware(resolver, allowAnonymous))
		router.GET("/whoami", func(c *gin.Context) {
			p := PrincipalFrom(c)
			if p.Anonymous {
				c.String(http.StatusOK, "anonymous")
				return
			}
			c.String(http.StatusOK, p.UserID+":"+TokenFrom(c))
		})
		return router
	}

	do := func(router *gin.Engine, target string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		return w
	}

	w := do(newRouter(false), "/whoami?access_token="+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice:"+token, w.Body.String())

	w = do(newRouter(false), "/whoami")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(newRouter(true), "/whoami")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "anonymous", w.Body.String())

	w = do(newRouter(true), "/whoami?access_token=bogus")
	assert.Equal(t, http.StatusUnauthorized, w.Code, "a bad token is never downgraded to anonymous")
}

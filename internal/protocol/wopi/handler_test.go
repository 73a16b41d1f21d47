package wopi

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/marmos91/wopihost/internal/testutil"
	"github.com/marmos91/wopihost/pkg/auth"
	"github.com/marmos91/wopihost/pkg/lock"
	"github.com/marmos91/wopihost/pkg/proof"
	"github.com/marmos91/wopihost/pkg/resource"
	"github.com/marmos91/wopihost/pkg/store"
	contentmemory "github.com/marmos91/wopihost/pkg/store/content/memory"
	metadatamemory "github.com/marmos91/wopihost/pkg/store/metadata/memory"
	"github.com/marmos91/wopihost/pkg/userinfo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	aliceToken  = "alice-token"
	readerToken = "reader-token"
)

// stubResolver resolves a fixed set of tokens.
type stubResolver map[string]*auth.Principal

func (r stubResolver) Resolve(_ context.Context, token string) (*auth.Principal, error) {
	if p, ok := r[token]; ok {
		return p, nil
	}
	return nil, auth.ErrInvalidToken
}

func testResolver() stubResolver {
	return stubResolver{
		aliceToken: {
			UserID:       "alice",
			FriendlyName: "Alice",
			Permissions:  auth.AllPermissions,
		},
		readerToken: {
			UserID:       "bob",
			FriendlyName: "Bob",
		},
	}
}

// testEnv is a handler mounted on a gin engine over in-memory stores.
type testEnv struct {
	t        *testing.T
	router   *gin.Engine
	provider *store.Provider
	root     *resource.Container
	clock    *testutil.StubClock
	locks    *lock.Manager
}

type envOptions struct {
	allowAnonymous bool
	configure      func(*Config)
	wrap           func(resource.Provider) resource.Provider
	middleware     []gin.HandlerFunc
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	clk := testutil.FixedClock()
	meta := metadatamemory.NewMemoryMetadataStore(metadatamemory.Config{
		Clock:       clk,
		IDGenerator: testutil.NewStubIDGenerator(),
	})
	blobs, err := contentmemory.NewMemoryContentStore(ctx)
	require.NoError(t, err)
	provider := store.NewProvider(meta, blobs)

	root, err := provider.GetRootContainer(ctx)
	require.NoError(t, err)

	locks := lock.NewManager(lock.NewMemoryStore(clk), nil)

	var p resource.Provider = provider
	if opts.wrap != nil {
		p = opts.wrap(provider)
	}

	cfg := Config{
		Provider:     p,
		Locks:        locks,
		UserInfo:     userinfo.NewMemoryStore(),
		Capabilities: DefaultCapabilities(),
	}
	if opts.configure != nil {
		opts.configure(&cfg)
	}

	router := gin.New()
	rg := router.Group("/wopi")
	rg.Use(opts.middleware...)
	rg.Use(auth.Middleware(testResolver(), opts.allowAnonymous))
	NewHandler(cfg).RegisterRoutes(rg)

	return &testEnv{t: t, router: router, provider: provider, root: root, clock: clk, locks: locks}
}

// do sends a request as alice.
func (e *testEnv) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	return e.doAs(aliceToken, method, path, body, headers)
}

// doAs sends a request with token; an empty token sends none.
func (e *testEnv) doAs(token, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	e.t.Helper()
	target := "/wopi" + path
	if token != "" {
		target += "?access_token=" + url.QueryEscape(token)
	}
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// override sends POST /files/:id with X-WOPI-Override.
func (e *testEnv) override(fileID, override string, headers map[string]string) *httptest.ResponseRecorder {
	h := map[string]string{HeaderOverride: override}
	for k, v := range headers {
		h[k] = v
	}
	return e.do(http.MethodPost, "/files/"+fileID, "", h)
}

func (e *testEnv) createFile(containerID, name, content string) *resource.File {
	e.t.Helper()
	ctx := context.Background()
	f, err := e.provider.CreateFile(ctx, containerID, name, "alice")
	require.NoError(e.t, err)
	if content != "" {
		f, err = e.provider.Write(ctx, f.ID, strings.NewReader(content))
		require.NoError(e.t, err)
	}
	return f
}

func (e *testEnv) readFile(id string) string {
	e.t.Helper()
	_, r, err := e.provider.OpenRead(context.Background(), id)
	require.NoError(e.t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(e.t, err)
	return string(data)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

// lockHeader returns X-WOPI-Lock and whether it was sent at all.
func lockHeader(w *httptest.ResponseRecorder) (string, bool) {
	values := w.Header().Values(HeaderLock)
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// ============================================================================
// CheckFileInfo
// ============================================================================

func TestCheckFileInfo(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	f := env.createFile(env.root.ID, "report.docx", "hello")

	w := env.do(http.MethodGet, "/files/"+f.ID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	info := decode[CheckFileInfo](t, w)
	sum := sha256.Sum256([]byte("hello"))

	assert.Equal(t, "report.docx", info.BaseFileName)
	assert.Equal(t, ".docx", info.FileExtension)
	assert.Equal(t, "alice", info.OwnerID)
	assert.Equal(t, "alice", info.UserID)
	assert.Equal(t, "Alice", info.UserFriendlyName)
	assert.Equal(t, int64(5), info.Size)
	assert.Equal(t, f.Version, info.Version)
	assert.Equal(t, base64.StdEncoding.EncodeToString(sum[:]), info.SHA256)
	assert.False(t, info.IsAnonymousUser)
	assert.True(t, info.UserCanWrite)
	assert.True(t, info.UserCanRename)
	assert.False(t, info.ReadOnly)
	assert.True(t, info.SupportsLocks)
	assert.True(t, info.SupportsGetLock)
	assert.True(t, info.SupportsUpdate)
	assert.True(t, info.SupportsUserInfo)
	assert.Equal(t, testutil.FixedClock().Now().UTC().Format(wopiTimestampLayout), info.LastModifiedTime)
}

func TestCheckFileInfo_NotFound(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w := env.do(http.MethodGet, "/files/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Container IDs never resolve as files
	w = env.do(http.MethodGet, "/files/"+env.root.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCheckFileInfo_Anonymous(t *testing.T) {
	env := newTestEnv(t, envOptions{allowAnonymous: true})
	f := env.createFile(env.root.ID, "public.xlsx", "")

	w := env.doAs("", http.MethodGet, "/files/"+f.ID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	info := decode[CheckFileInfo](t, w)
	assert.True(t, info.IsAnonymousUser)
	assert.Equal(t, anonymousUserID, info.UserID)
	assert.True(t, info.ReadOnly)
	assert.False(t, info.UserCanWrite)
	assert.True(t, info.UserCanNotWriteRelative)
}

func TestCheckFileInfo_RequiresTokenUnlessAnonymousAllowed(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	f := env.createFile(env.root.ID, "private.docx", "")

	assert.Equal(t, http.StatusUnauthorized, env.doAs("", http.MethodGet, "/files/"+f.ID, "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.doAs("forged", http.MethodGet, "/files/"+f.ID, "", nil).Code)
}

func TestCheckFileInfo_ReaderPermissions(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	f := env.createFile(env.root.ID, "shared.docx", "")

	w := env.doAs(readerToken, http.MethodGet, "/files/"+f.ID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	info := decode[CheckFileInfo](t, w)
	assert.Equal(t, "bob", info.UserID)
	assert.True(t, info.ReadOnly)
	assert.False(t, info.UserCanWrite)
	assert.False(t, info.UserCanRename)
}

func TestCheckFileInfo_HookAndHostURLs(t *testing.T) {
	env := newTestEnv(t, envOptions{configure: func(cfg *Config) {
		cfg.HostEditURL = "https://host.example.com/edit?file={id}"
		cfg.BreadcrumbBrandName = "Example"
		cfg.CheckFileInfoHook = func(_ context.Context, p *auth.Principal, info CheckFileInfo) CheckFileInfo {
			info.UserFriendlyName = p.FriendlyName + " (hooked)"
			return info
		}
	}})
	f := env.createFile(env.root.ID, "hooked.docx", "")

	w := env.do(http.MethodGet, "/files/"+f.ID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	info := decode[CheckFileInfo](t, w)
	assert.Equal(t, "Alice (hooked)", info.UserFriendlyName)
	assert.Equal(t, "https://host.example.com/edit?file="+f.ID, info.HostEditURL)
	assert.Empty(t, info.HostViewURL)
	assert.Equal(t, "Example", info.BreadcrumbBrandName)
}

// ============================================================================
// GetFile / PutFile
// ============================================================================

func TestGetFile(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	f := env.createFile(env.root.ID, "notes.txt", "some content")

	w := env.do(http.MethodGet, "/files/"+f.ID+"/contents", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "some content", w.Body.String())
	assert.Equal(t, f.Version, w.Header().Get(HeaderItemVersion))

	t.Run("MaxExpectedSize", func(t *testing.T) {
		w := env.do(http.MethodGet, "/files/"+f.ID+"/contents", "", map[string]string{HeaderMaxExpectedSize: "4"})
		assert.Equal(t, http.StatusPreconditionFailed, w.Code)
		assert.Empty(t, w.Body.String())

		w = env.do(http.MethodGet, "/files/"+f.ID+"/contents", "", map[string]string{HeaderMaxExpectedSize: "12"})
		assert.Equal(t, http.StatusOK, w.Code)

		w = env.do(http.MethodGet, "/files/"+f.ID+"/contents", "", map[string]string{HeaderMaxExpectedSize: "lots"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("NotFound", func(t *testing.T) {
		w := env.do(http.MethodGet, "/files/missing/contents", "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

// racingProvider lands a PutFile-sized write just as GetFile opens the
// content.
type racingProvider struct {
	resource.Provider
	body string
}

func (p *racingProvider) OpenRead(ctx context.Context, id string) (*resource.File, io.ReadCloser, error) {
	if _, err := p.Provider.Write(ctx, id, strings.NewReader(p.body)); err != nil {
		return nil, nil, err
	}
	return p.Provider.OpenRead(ctx, id)
}

func TestGetFile_ConcurrentWrite(t *testing.T) {
	body := strings.Repeat("y", 100)
	env := newTestEnv(t, envOptions{
		wrap: func(p resource.Provider) resource.Provider {
			return &racingProvider{Provider: p, body: body}
		},
	})
	f := env.createFile(env.root.ID, "busy.txt", "tiny")

	w := env.do(http.MethodGet, "/files/"+f.ID+"/contents", "", map[string]string{HeaderMaxExpectedSize: "10"})
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
	assert.Empty(t, w.Body.String())

	w = env.do(http.MethodGet, "/files/"+f.ID+"/contents", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, body, w.Body.String())
	assert.Equal(t, strconv.Itoa(len(body)), w.Header().Get("Content-Length"))

	current, err := env.provider.GetFile(context.Background(), f.ID)
	require.NoError(t, err)
	assert.Equal(t, current.Version, w.Header().Get(HeaderItemVersion))
}

func TestPutFile_WithoutLock(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	f := env.createFile(env.root.ID, "new.docx", "")
	body := strings.Repeat("x", 100)

	// An empty file accepts an unlocked first write
	w := env.do(http.MethodPut, "/files/"+f.ID+"/contents", body, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(HeaderItemVersion))
	assert.Equal(t, body, env.readFile(f.ID))

	// Now that it holds 100 bytes an unlocked write conflicts
	w = env.do(http.MethodPut, "/files/"+f.ID+"/contents", "overwrite", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	current, sent := lockHeader(w)
	assert.True(t, sent, "X-WOPI-Lock must be present even when empty")
	assert.Empty(t, current)
	assert.Equal(t, body, env.readFile(f.ID))
}

func TestPutFile_WithLock(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	f := env.createFile(env.root.ID, "locked.docx", "v1")

	require.Equal(t, http.StatusOK, env.override(f.ID, OverrideLock, map[string]string{HeaderLock: "A"}).Code)

	w := env.do(http.MethodPost, "/files/"+f.ID+"/contents", "v2", map[string]string{HeaderLock: "B"})
	assert.Equal(t, http.StatusConflict, w.Code)
	current, _ := lockHeader(w)
	assert.Equal(t, "A", current)
	assert.Equal(t, lock.ReasonMismatch, w.Header().Get(HeaderLockFailureReason))
	assert.Equal(t, "v1", env.readFile(f.ID))

	w = env.do(http.MethodPost, "/files/"+f.ID+"/contents", "v2", map[string]string{HeaderLock: "A"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "v2", env.readFile(f.ID))

	updated, err := env.provider.GetFile(context.Background(), f.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Version, w.Header().Get(HeaderItemVersion))
	assert.NotEqual(t, f.Version, updated.Version)
}

func TestPutFile_TokenAcquiresLock(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	f := env.createFile(env.root.ID, "fresh.docx", "v1")

	w := env.do(http.MethodPut, "/files/"+f.ID+"/contents", "v2", map[string]string{HeaderLock: "session-1"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.override(f.ID, OverrideGetLock, nil)
	current, _ := lockHeader(w)
	assert.Equal(t, "session-1", current)
}

// cancellingBody delivers a first chunk and then cancels the request.
type cancellingBody struct {
	chunk  string
	sent   bool
	cancel context.CancelFunc
}

func (b *cancellingBody) Read(p []byte) (int, error) {
	if b.sent {
		return 0, context.Canceled
	}
	b.sent = true
	n := copy(p, b.chunk)
	b.cancel()
	return n, nil
}

func TestPutFile_CancelledKeepsLock(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	f := env.createFile(env.root.ID, "upload.docx", "v1")

	require.Equal(t, http.StatusOK, env.override(f.ID, OverrideLock, map[string]string{HeaderLock: "A"}).Code)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodPost,
		"/wopi/files/"+f.ID+"/contents?access_token="+aliceToken,
		&cancellingBody{chunk: strings.Repeat("z", 64), cancel: cancel})
	req = req.WithContext(ctx)
	req.Header.Set(HeaderLock, "A")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.NotEqual(t, http.StatusOK, w.Code)

	w = env.override(f.ID, OverrideGetLock, nil)
	require.Equal(t, http.StatusOK, w.Code)
	current, _ := lockHeader(w)
	assert.Equal(t, "A", current)

	w = env.override(f.ID, OverrideLock, map[string]string{HeaderLock: "A"})
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "v1", env.readFile(f.ID))
	after, err := env.provider.GetFile(context.Background(), f.ID)
	require.NoError(t, err)
	assert.Equal(t, f.Version, after.Version)
}

func TestPutFile_EnforcedPermissions(t *testing.T) {
	env := newTestEnv(t, envOptions{configure: func(cfg *Config) { cfg.EnforcePermissions = true }})
	f := env.createFile(env.root.ID, "guarded.docx", "")

	w := env.doAs(readerToken, http.MethodPut, "/files/"+f.ID+"/contents", "data", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, env.readFile(f.ID))

	w = env.do(http.MethodPut, "/files/"+f.ID+"/contents", "data", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

// ============================================================================
// Locks
// ============================================================================

func TestLockRelockScenario(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	f := env.createFile(env.root.ID, "f1.docx", "")

	w := env.override(f.ID, OverrideLock, map[string]string{HeaderLock: "A"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.override(f.ID, OverrideLock, map[string]string{HeaderLock: "A"})
	assert.Equal(t, http.StatusOK, w.Code, "same token refreshes")

	w = env.override(f.ID, OverrideLock, map[string]string{HeaderLock: "B"})
	assert.Equal(t, http.StatusConflict, w.Code)
	current, _ := lockHeader(w)
	assert.Equal(t, "A", current)

	w = env.override(f.ID, OverrideLock, map[string]string{HeaderLock: "B", HeaderOldLock: "A"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.override(f.ID, OverrideGetLock, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	current, _ = lockHeader(w)
	assert.Equal(t, "B", current)
}

func TestLockOperations(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	f := env.createFile(env.root.ID, "ops.docx", "")

	t.Run("MissingToken", func(t *testing.T) {
		for _, op := range []string{OverrideLock, OverrideUnlock, OverrideRefreshLock} {
			w := env.override(f.ID, op, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code, op)
		}
	})

	t.Run("MissingFile", func(t *testing.T) {
		w := env.override("missing", OverrideLock, map[string]string{HeaderLock: "A"})
		assert.Equal(t, http.StatusNotFound, w.Code)
		w = env.override("missing", OverrideGetLock, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("NotLocked", func(t *testing.T) {
		for _, op := range []string{OverrideUnlock, OverrideRefreshLock} {
			w := env.override(f.ID, op, map[string]string{HeaderLock: "A"})
			assert.Equal(t, http.StatusConflict, w.Code, op)
			assert.Equal(t, lock.ReasonNotLocked, w.Header().Get(HeaderLockFailureReason), op)
			current, sent := lockHeader(w)
			assert.True(t, sent, op)
			assert.Empty(t, current, op)
		}

		w := env.override(f.ID, OverrideLock, map[string]string{HeaderLock: "B", HeaderOldLock: "A"})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, lock.ReasonNotLocked, w.Header().Get(HeaderLockFailureReason))
	})

	t.Run("GetLockUnlocked", func(t *testing.T) {
		w := env.override(f.ID, OverrideGetLock, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		current, sent := lockHeader(w)
		assert.True(t, sent)
		assert.Empty(t, current)
	})

	t.Run("RefreshAndUnlock", func(t *testing.T) {
		require.Equal(t, http.StatusOK, env.override(f.ID, OverrideLock, map[string]string{HeaderLock: "A"}).Code)

		w := env.override(f.ID, OverrideRefreshLock, map[string]string{HeaderLock: "Z"})
		assert.Equal(t, http.StatusConflict, w.Code)
		current, _ := lockHeader(w)
		assert.Equal(t, "A", current)

		assert.Equal(t, http.StatusOK, env.override(f.ID, OverrideRefreshLock, map[string]string{HeaderLock: "A"}).Code)

		w = env.override(f.ID, OverrideUnlock, map[string]string{HeaderLock: "Z"})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, lock.ReasonMismatch, w.Header().Get(HeaderLockFailureReason))

		w = env.override(f.ID, OverrideUnlock, map[string]string{HeaderLock: "A"})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, f.Version, w.Header().Get(HeaderItemVersion))

		current, _ = lockHeader(env.override(f.ID, OverrideGetLock, nil))
		assert.Empty(t, current)
	})

	t.Run("OversizedToken", func(t *testing.T) {
		w := env.override(f.ID, OverrideLock, map[string]string{HeaderLock: strings.Repeat("x", lock.MaxLockIDLength+1)})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestLockExpiry(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	f := env.createFile(env.root.ID, "expiring.docx", "")

	require.Equal(t, http.StatusOK, env.override(f.ID, OverrideLock, map[string]string{HeaderLock: "A"}).Code)

	env.clock.Advance(lock.TTL - time.Second)
	current, _ := lockHeader(env.override(f.ID, OverrideGetLock, nil))
	assert.Equal(t, "A", current)

	env.clock.Advance(time.Second)
	current, _ = lockHeader(env.override(f.ID, OverrideGetLock, nil))
	assert.Empty(t, current, "lock expires at exactly TTL")

	w := env.override(f.ID, OverrideLock, map[string]string{HeaderLock: "B"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUnsupportedOverride(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	f := env.createFile(env.root.ID, "x.docx", "")

	assert.Equal(t, http.StatusNotImplemented, env.override(f.ID, "COBALT", nil).Code)
	assert.Equal(t, http.StatusNotImplemented, env.do(http.MethodPost, "/files/"+f.ID, "", nil).Code)
	assert.Equal(t, http.StatusNotImplemented,
		env.do(http.MethodPost, "/containers/"+env.root.ID, "", map[string]string{HeaderOverride: OverrideLock}).Code)
}

// ============================================================================
// Origin validation
// ============================================================================

// countingProvider counts the provider calls the handlers make.
type countingProvider struct {
	resource.Provider
	calls atomic.Int64
}

func (p *countingProvider) GetFile(ctx context.Context, id string) (*resource.File, error) {
	p.calls.Add(1)
	return p.Provider.GetFile(ctx, id)
}

func (p *countingProvider) GetContainer(ctx context.Context, id string) (*resource.Container, error) {
	p.calls.Add(1)
	return p.Provider.GetContainer(ctx, id)
}

func (p *countingProvider) OpenRead(ctx context.Context, id string) (*resource.File, io.ReadCloser, error) {
	p.calls.Add(1)
	return p.Provider.OpenRead(ctx, id)
}

func (p *countingProvider) Write(ctx context.Context, id string, r io.Reader) (*resource.File, error) {
	p.calls.Add(1)
	return p.Provider.Write(ctx, id, r)
}

func TestRejectedRequestsNeverReachStorage(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	clk := testutil.FixedClock()
	validator := proof.NewValidator(proof.Config{
		Keys:  proof.NewStaticKeyProvider(proof.KeySet{Current: &key.PublicKey}),
		Clock: clk,
	})

	counter := &countingProvider{}
	env := newTestEnv(t, envOptions{
		middleware: []gin.HandlerFunc{
			proof.Middleware(validator, func(c *gin.Context) string { return auth.TokenFromRequest(c.Request) }, nil),
		},
		wrap: func(p resource.Provider) resource.Provider {
			counter.Provider = p
			return counter
		},
	})
	f := env.createFile(env.root.ID, "guarded.docx", "content")
	stamp := clk.Now().UnixMilli()

	newRequest := func(path string) *http.Request {
		return httptest.NewRequest(http.MethodGet, "/wopi"+path+"?access_token="+aliceToken, nil)
	}
	sign := func(r *http.Request) {
		sig, err := proof.Sign(key, aliceToken, proof.AbsoluteURL(r), stamp)
		require.NoError(t, err)
		r.Header.Set(proof.HeaderProof, sig)
		r.Header.Set(proof.HeaderTimestamp, strconv.FormatInt(stamp, 10))
	}

	t.Run("MissingHeaders", func(t *testing.T) {
		for _, path := range []string{"/files/" + f.ID, "/files/" + f.ID + "/contents"} {
			r := newRequest(path)
			sign(r)
			r.Header.Del(proof.HeaderTimestamp)

			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, r)
			assert.Equal(t, http.StatusInternalServerError, w.Code)
			assert.Empty(t, w.Body.String())

			r = newRequest(path)
			sign(r)
			r.Header.Del(proof.HeaderProof)

			w = httptest.NewRecorder()
			env.router.ServeHTTP(w, r)
			assert.Equal(t, http.StatusInternalServerError, w.Code)
		}
		assert.Zero(t, counter.calls.Load())
	})

	t.Run("ValidProof", func(t *testing.T) {
		r := newRequest("/files/" + f.ID)
		sign(r)

		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Positive(t, counter.calls.Load())
	})
}

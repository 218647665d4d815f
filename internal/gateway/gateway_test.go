package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/leavemaster/internal/domain"
	"github.com/sysu-ecnc-dev/leavemaster/internal/session"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newStore(t *testing.T) (*session.Store, *session.MemoryStorage) {
	t.Helper()
	storage := session.NewMemoryStorage()
	return session.NewStore(storage, session.WithLogger(discard)), storage
}

func employee() domain.Employee {
	return domain.Employee{ID: 1, Name: "Ari", RoleName: "employee"}
}

func TestRequestAttachesBearerToken(t *testing.T) {
	var gotAuth, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		assert.Equal(t, "/api/leave", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":5}`))
	}))
	defer srv.Close()

	store, _ := newStore(t)
	store.Login(context.Background(), employee(), "tok-1")
	gw := New(srv.URL+"/api/", store, WithLogger(discard))

	var out struct {
		ID int `json:"id"`
	}
	err := gw.Do(context.Background(), http.MethodPost, "/leave", map[string]string{"reason": "rest"}, &out)
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok-1", gotAuth)
	assert.Equal(t, "application/json", gotType)
	assert.JSONEq(t, `{"reason":"rest"}`, string(gotBody))
	assert.Equal(t, 5, out.ID)
}

func TestRequestWithoutSessionSendsNoAuthorization(t *testing.T) {
	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	store, _ := newStore(t)
	gw := New(srv.URL, store, WithLogger(discard))

	resp, err := gw.Request(context.Background(), http.MethodGet, "/roles", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "", gotAuth.Load())
}

func TestUnauthorizedEvictsSessionAndRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"token expired"}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	store, storage := newStore(t)
	store.Login(ctx, employee(), "looks-valid")

	var redirects int32
	gw := New(srv.URL, store,
		WithLogger(discard),
		WithRedirector(RedirectFunc(func() { atomic.AddInt32(&redirects, 1) })),
	)

	_, err := gw.Request(ctx, http.MethodGet, "/leave/my-requests", nil)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "token expired", authErr.Message)
	assert.Nil(t, store.Current())
	assert.Equal(t, int32(1), atomic.LoadInt32(&redirects))

	_, ok, _ := storage.Load(ctx, session.TokenKey)
	assert.False(t, ok)
	_, ok, _ = storage.Load(ctx, session.IdentityKey)
	assert.False(t, ok)
}

func TestUnauthorizedWithoutSessionDoesNotRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid credentials"}`))
	}))
	defer srv.Close()

	store, _ := newStore(t)
	var redirected bool
	gw := New(srv.URL, store, WithLogger(discard), WithRedirector(RedirectFunc(func() { redirected = true })))

	_, err := gw.Request(context.Background(), http.MethodPost, "/login", map[string]string{"email": "a@b.c"})

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.False(t, redirected)
	assert.Contains(t, err.Error(), "invalid credentials")
}

func TestStaleUnauthorizedKeepsNewSession(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)
	store.Login(ctx, employee(), "old")

	release := make(chan struct{})
	arrived := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(arrived)
		<-release
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	var redirected atomic.Bool
	gw := New(srv.URL, store, WithLogger(discard), WithRedirector(RedirectFunc(func() { redirected.Store(true) })))

	done := make(chan error, 1)
	go func() {
		_, err := gw.Request(ctx, http.MethodGet, "/leave/pending", nil)
		done <- err
	}()

	// 请求还在路上时用户重新登录
	<-arrived
	store.Login(ctx, employee(), "new")
	close(release)

	err := <-done
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "new", store.Token())
	assert.False(t, redirected.Load())
}

func TestResponseAfterSessionChangeIsStale(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)
	store.Login(ctx, employee(), "first")

	release := make(chan struct{})
	arrived := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(arrived)
		<-release
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	gw := New(srv.URL, store, WithLogger(discard))

	done := make(chan error, 1)
	go func() {
		_, err := gw.Request(ctx, http.MethodGet, "/leave/my-requests", nil)
		done <- err
	}()

	<-arrived
	store.Logout(ctx)
	close(release)

	assert.ErrorIs(t, <-done, ErrStaleResponse)
}

func TestServerErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"insufficient permissions"}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	store, _ := newStore(t)
	store.Login(ctx, employee(), "tok")
	gw := New(srv.URL, store, WithLogger(discard))

	err := gw.Do(ctx, http.MethodGet, "/employees", nil, nil)

	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, http.StatusForbidden, serverErr.Status)
	assert.Equal(t, "insufficient permissions", serverErr.Message)
	assert.True(t, IsStatus(err, http.StatusForbidden))
	assert.NotNil(t, store.Current(), "non-401 errors must not touch the session")
}

func TestServerErrorWithPlainBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	store, _ := newStore(t)
	gw := New(srv.URL, store, WithLogger(discard))

	_, err := gw.Request(context.Background(), http.MethodGet, "/departments", nil)

	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, "boom", serverErr.Message)
	assert.Contains(t, err.Error(), "500 boom")
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	store, _ := newStore(t)
	gw := New(url, store, WithLogger(discard))

	_, err := gw.Request(context.Background(), http.MethodGet, "/roles", nil)

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, "GET /roles", netErr.Op)
	assert.NotNil(t, errors.Unwrap(err))
}

func TestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	store, _ := newStore(t)
	gw := New(srv.URL, store, WithLogger(discard), WithTimeout(50*time.Millisecond))

	_, err := gw.Request(context.Background(), http.MethodGet, "/roles", nil)

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
}

func TestTimeoutDoesNotMutateSharedClient(t *testing.T) {
	store, _ := newStore(t)
	shared := &http.Client{Timeout: time.Minute}

	gw := New("http://leave.test", store, WithHTTPClient(shared), WithTimeout(50*time.Millisecond))

	assert.Equal(t, time.Minute, shared.Timeout)
	assert.NotSame(t, shared, gw.client)
	assert.Equal(t, 50*time.Millisecond, gw.client.Timeout)

	// 没有 WithTimeout 时直接使用传入的 client
	gw = New("http://leave.test", store, WithHTTPClient(shared))
	assert.Same(t, shared, gw.client)
}

func TestDoDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	store, _ := newStore(t)
	gw := New(srv.URL, store, WithLogger(discard))

	var out []domain.RoleInfo
	err := gw.Do(context.Background(), http.MethodGet, "/roles", nil, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nimbusdrive/nimbus-cli/internal/config"
	"github.com/nimbusdrive/nimbus-cli/internal/logging"
	"github.com/nimbusdrive/nimbus-cli/internal/store"
)

// authBackend is a scripted auth server: it counts refresh exchanges,
// treats any token outside validTokens as expired, and rotates the token
// pair on every exchange. With strictRotation set it also rejects any
// refresh token that is not the current one, like a backend that
// invalidates a refresh token the moment it is consumed.
type authBackend struct {
	mu             sync.Mutex
	validTokens    map[string]bool
	refreshCalls   int32
	rejectRefresh  bool
	strictRotation bool
	currentRefresh string
	rotation       int
	profileEmail   string
}

func newAuthBackend() *authBackend {
	return &authBackend{
		validTokens:    map[string]bool{"access-1": true},
		currentRefresh: "refresh-1",
		profileEmail:   "me@example.com",
	}
}

func (b *authBackend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if !b.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"id":          "u1",
			"email":       b.profileEmail,
			"displayName": "Me",
		})
	})

	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.refreshCalls, 1)
		// Give concurrent callers time to queue behind the exchange.
		time.Sleep(100 * time.Millisecond)
		if b.rejectRefresh {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		json.NewDecoder(r.Body).Decode(&body)

		b.mu.Lock()
		if b.strictRotation && body.RefreshToken != b.currentRefresh {
			b.mu.Unlock()
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		b.rotation++
		access := fmt.Sprintf("access-%d", b.rotation+1)
		refresh := fmt.Sprintf("refresh-%d", b.rotation+1)
		b.currentRefresh = refresh
		b.validTokens[access] = true
		b.mu.Unlock()

		json.NewEncoder(w).Encode(map[string]interface{}{
			"accessToken":  access,
			"refreshToken": refresh,
			"expiresIn":    3600,
		})
	})

	mux.HandleFunc("/auth/signout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/data", func(w http.ResponseWriter, r *http.Request) {
		if !b.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte("ok"))
	})

	return mux
}

func (b *authBackend) authorized(r *http.Request) bool {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.validTokens[token]
}

func (b *authBackend) expireAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.validTokens = map[string]bool{}
}

func newTestManager(t *testing.T, baseURL string) (*Manager, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := config.Default()
	cfg.APIBaseURL = baseURL
	m := NewManager(cfg, st, &http.Client{}, nil, logging.NewDefaultLogger())
	return m, st
}

func signIn(t *testing.T, m *Manager) {
	t.Helper()
	if err := m.CompleteSignIn(context.Background(), "access-1", "refresh-1"); err != nil {
		t.Fatalf("CompleteSignIn failed: %v", err)
	}
}

func TestCompleteSignInPersistsSessionAndIdentity(t *testing.T) {
	backend := newAuthBackend()
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	m, st := newTestManager(t, srv.URL)
	signIn(t, m)

	if !m.SignedIn() {
		t.Fatal("Expected signed in")
	}
	if user := m.User(); user == nil || user.Email != "me@example.com" {
		t.Errorf("Unexpected user: %+v", user)
	}

	ctx := context.Background()
	if tok, _ := st.Get(ctx, store.KeyAccessToken); tok != "access-1" {
		t.Errorf("Access token not persisted, got %q", tok)
	}
	if email, _ := st.Get(ctx, store.KeyUserEmail); email != "me@example.com" {
		t.Errorf("Identity not persisted, got %q", email)
	}
}

func TestCompleteSignInFailedProfilePersistsNothing(t *testing.T) {
	backend := newAuthBackend()
	backend.validTokens = map[string]bool{} // every token rejected
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	m, st := newTestManager(t, srv.URL)
	err := m.CompleteSignIn(context.Background(), "bad-token", "refresh-1")
	if !errors.Is(err, ErrIdentityFetch) {
		t.Fatalf("Expected ErrIdentityFetch, got %v", err)
	}
	if m.SignedIn() {
		t.Error("Must not be signed in after failed profile fetch")
	}
	if tok, _ := st.Get(context.Background(), store.KeyAccessToken); tok != "" {
		t.Error("Nothing should be persisted after failed profile fetch")
	}
}

func TestInitializeRestoresPersistedSession(t *testing.T) {
	backend := newAuthBackend()
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	m, st := newTestManager(t, srv.URL)
	signIn(t, m)

	// Fresh manager over the same store, as after a restart.
	cfg := config.Default()
	cfg.APIBaseURL = srv.URL
	m2 := NewManager(cfg, st, &http.Client{}, nil, logging.NewDefaultLogger())
	if err := m2.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if !m2.SignedIn() {
		t.Fatal("Expected restored session")
	}
	if m2.AccessToken() != "access-1" {
		t.Errorf("Unexpected restored token %q", m2.AccessToken())
	}
}

func TestInitializeDiscardsPartialWrite(t *testing.T) {
	backend := newAuthBackend()
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	m, st := newTestManager(t, srv.URL)
	ctx := context.Background()

	// Tokens without identity: a partial write.
	st.Set(ctx, store.KeyAccessToken, "at")
	st.Set(ctx, store.KeyRefreshToken, "rt")

	if err := m.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if m.SignedIn() {
		t.Error("Partial write must not produce a session")
	}
	if tok, _ := st.Get(ctx, store.KeyAccessToken); tok != "" {
		t.Error("Partial write should be cleared")
	}
}

func TestDoRefreshesOnceAndReplays(t *testing.T) {
	backend := newAuthBackend()
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	m, _ := newTestManager(t, srv.URL)
	signIn(t, m)

	backend.expireAll()

	req, _ := http.NewRequestWithContext(context.Background(), "GET", srv.URL+"/data", nil)
	resp, err := m.Do(req)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected replay to succeed, got %d", resp.StatusCode)
	}
	if calls := atomic.LoadInt32(&backend.refreshCalls); calls != 1 {
		t.Errorf("Expected exactly one refresh exchange, got %d", calls)
	}
	if m.AccessToken() != "access-2" {
		t.Errorf("Expected rotated token, got %q", m.AccessToken())
	}
}

func TestDoSecondUnauthorizedSurfacesSessionExpired(t *testing.T) {
	backend := newAuthBackend()
	backend.rejectRefresh = true
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	m, _ := newTestManager(t, srv.URL)
	signIn(t, m)
	backend.expireAll()

	req, _ := http.NewRequestWithContext(context.Background(), "GET", srv.URL+"/data", nil)
	_, err := m.Do(req)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("Expected ErrSessionExpired, got %v", err)
	}
	if m.SignedIn() {
		t.Error("Rejected refresh must sign the user out")
	}
}

func TestConcurrentRefreshCoalesces(t *testing.T) {
	backend := newAuthBackend()
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	m, _ := newTestManager(t, srv.URL)
	signIn(t, m)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = m.Refresh(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("Refresh %d failed: %v", i, err)
		}
	}
	if calls := atomic.LoadInt32(&backend.refreshCalls); calls != 1 {
		t.Errorf("Expected one coalesced exchange, got %d", calls)
	}
}

func TestQueuedRefreshNeverReplaysConsumedToken(t *testing.T) {
	backend := newAuthBackend()
	backend.strictRotation = true
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	m, _ := newTestManager(t, srv.URL)
	signIn(t, m)

	// Staggered callers: some queue behind the in-flight exchange, some
	// arrive right as it completes. Against a backend that invalidates a
	// refresh token on use, presenting a consumed token would sign the
	// user out.
	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			time.Sleep(time.Duration(i*30) * time.Millisecond)
			errs[i] = m.Refresh(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("Refresh %d failed: %v", i, err)
		}
	}
	if !m.SignedIn() {
		t.Fatal("A refresh replayed a consumed token and signed the user out")
	}
	if err := m.Refresh(context.Background()); err != nil {
		t.Errorf("Follow-up refresh with the rotated token failed: %v", err)
	}
}

func TestSignOutDuringRefreshStaysSignedOut(t *testing.T) {
	backend := newAuthBackend()
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	m, st := newTestManager(t, srv.URL)
	signIn(t, m)

	done := make(chan error, 1)
	go func() { done <- m.Refresh(context.Background()) }()

	// Let the exchange get in flight, then sign out underneath it.
	time.Sleep(30 * time.Millisecond)
	if err := m.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}

	if err := <-done; !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("Abandoned refresh should report ErrNotAuthenticated, got %v", err)
	}
	if m.SignedIn() {
		t.Error("Sign-out must stick even when a refresh completes afterwards")
	}
	if m.User() != nil {
		t.Error("No identity may remain after sign-out")
	}
	if tok, _ := st.Get(context.Background(), store.KeyAccessToken); tok != "" {
		t.Errorf("Cleared store must stay cleared, got token %q", tok)
	}
}

func TestSignOutClearsStateDespiteBackendFailure(t *testing.T) {
	backend := newAuthBackend()
	srv := httptest.NewServer(backend.handler())

	m, st := newTestManager(t, srv.URL)
	signIn(t, m)

	// Backend gone: sign-out notification will fail on the wire.
	srv.Close()

	if err := m.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut must succeed locally, got %v", err)
	}
	if m.SignedIn() {
		t.Error("Expected signed out")
	}
	if tok, _ := st.Get(context.Background(), store.KeyAccessToken); tok != "" {
		t.Error("Persisted tokens should be cleared")
	}
}

func TestRefreshWithoutSession(t *testing.T) {
	backend := newAuthBackend()
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	m, _ := newTestManager(t, srv.URL)
	if err := m.Refresh(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("Expected ErrNotAuthenticated, got %v", err)
	}
}

func TestDoWithoutSession(t *testing.T) {
	backend := newAuthBackend()
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	m, _ := newTestManager(t, srv.URL)
	req, _ := http.NewRequestWithContext(context.Background(), "GET", srv.URL+"/data", nil)
	if _, err := m.Do(req); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("Expected ErrNotAuthenticated, got %v", err)
	}
}

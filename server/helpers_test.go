package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/etnz/finntra/auth"
	"github.com/etnz/finntra/currency"
	"github.com/etnz/finntra/rates"
	"github.com/etnz/finntra/state"
	"github.com/etnz/finntra/store"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	testBase   = "https://project.supabase.co"
	testSecret = "super-secret"
)

type testAPI struct {
	router   *gin.Engine
	store    *store.Memory
	storage  *store.MemoryStorage
	registry *Registry
}

// newTestAPI serves a memory store. The rate cache holds the built-in rates.
func newTestAPI(t *testing.T, mod func(*RouterDependencies)) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())

	mem := store.NewMemory()
	storage := store.NewMemoryStorage()
	cache := rates.New(nil, zap.NewNop())
	conv := currency.NewConverter(cache)
	reg := NewRegistry(ctx, state.Options{Store: mem, Storage: storage, Format: conv, LoadTimeout: time.Second})
	t.Cleanup(func() {
		reg.Close()
		cancel()
	})

	deps := RouterDependencies{
		Health:         StoreHealth{Store: mem},
		Verifier:       auth.NewVerifier(testBase, testSecret),
		Registry:       reg,
		Rates:          cache,
		Converter:      conv,
		Monitor:        state.NewMonitor(mem, time.Minute, nil),
		AllowedOrigins: []string{"https://app.example.com"},
	}
	if mod != nil {
		mod(&deps)
	}
	return &testAPI{
		router:   NewRouter(zap.NewNop(), deps),
		store:    mem,
		storage:  storage,
		registry: reg,
	}
}

// token returns a valid access token for user.
func token(t *testing.T, user string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":   user,
		"email": user + "@example.com",
		"role":  "authenticated",
		"iss":   testBase + "/auth/v1",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("cannot sign token: %v", err)
	}
	return s
}

// do serves one request as user, an empty user sends no token.
func (a *testAPI) do(t *testing.T, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, user))
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
}

// eventually polls the snapshot of user until ok accepts it.
func (a *testAPI) eventually(t *testing.T, user, what string, ok func(state.View) bool) state.View {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var v state.View
	for time.Now().Before(deadline) {
		rec := a.do(t, http.MethodGet, "/api/snapshot", user, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("GET /api/snapshot status = %d, body %s", rec.Code, rec.Body.String())
		}
		v = state.View{}
		decode(t, rec, &v)
		if ok(v) {
			return v
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s, last view %+v", what, v)
	return v
}

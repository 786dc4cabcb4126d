package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/evecs/backend/internal/auth"
	"github.com/evecs/backend/internal/middleware"
	"github.com/evecs/backend/internal/store"
	"github.com/evecs/backend/internal/vocab"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Kind    string          `json:"kind"`
}

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	voc, err := vocab.New(context.Background(), vocab.Static{
		Groups: []string{"lecture", "society"},
		Tags:   []string{"music"},
	})
	if err != nil {
		t.Fatalf("vocab: %v", err)
	}
	repo := auth.NewRepository(store.NewMemory())
	jwtService := auth.NewJWTService("test-secret", 1)
	handler := auth.NewHandler(repo, jwtService, voc, zap.NewNop())

	r := gin.New()
	r.POST("/auth/register", handler.Register)
	r.POST("/auth/login", handler.Login)
	api := r.Group("")
	api.Use(middleware.JWT(jwtService))
	api.GET("/users/me", handler.Me)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope: %v (%s)", err, w.Body.String())
		}
	}
	return w, env
}

func TestRegisterLoginMe(t *testing.T) {
	r := newRouter(t)

	// Too few special symbols.
	w, _ := doJSON(t, r, http.MethodPost, "/auth/register", "", gin.H{
		"email":    "alice@example.com",
		"password": "plainpassword",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("weak password: status = %d, want 400", w.Code)
	}

	w, env := doJSON(t, r, http.MethodPost, "/auth/register", "", gin.H{
		"email":    "alice@example.com",
		"password": "s3cret!!pass",
		"groups":   []string{"society"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: status = %d (%s)", w.Code, env.Error)
	}
	var reg struct {
		Token string `json:"token"`
		User  struct {
			Email        string `json:"email"`
			PasswordHash string `json:"password_hash"`
		} `json:"user"`
	}
	if err := json.Unmarshal(env.Data, &reg); err != nil {
		t.Fatalf("decode register data: %v", err)
	}
	if reg.Token == "" {
		t.Fatal("register returned no token")
	}
	if reg.User.PasswordHash != "" {
		t.Fatal("password hash leaked in response")
	}

	// Duplicate email.
	w, env = doJSON(t, r, http.MethodPost, "/auth/register", "", gin.H{
		"email":    "alice@example.com",
		"password": "s3cret!!pass",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate email: status = %d, want 409", w.Code)
	}
	if env.Kind != "DuplicateEmail" {
		t.Errorf("kind = %q, want DuplicateEmail", env.Kind)
	}

	// Unknown group.
	w, env = doJSON(t, r, http.MethodPost, "/auth/register", "", gin.H{
		"email":    "bob@example.com",
		"password": "s3cret!!pass",
		"groups":   []string{"cabal"},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad group: status = %d, want 400", w.Code)
	}
	if env.Kind != "InvalidGroup" {
		t.Errorf("kind = %q, want InvalidGroup", env.Kind)
	}

	// Wrong password.
	w, _ = doJSON(t, r, http.MethodPost, "/auth/login", "", gin.H{
		"email":    "alice@example.com",
		"password": "wrong!!wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: status = %d, want 401", w.Code)
	}

	w, env = doJSON(t, r, http.MethodPost, "/auth/login", "", gin.H{
		"email":    "alice@example.com",
		"password": "s3cret!!pass",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login: status = %d (%s)", w.Code, env.Error)
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &login); err != nil {
		t.Fatalf("decode login data: %v", err)
	}

	// Token gates /users/me.
	w, _ = doJSON(t, r, http.MethodGet, "/users/me", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("me without token: status = %d, want 401", w.Code)
	}
	w, env = doJSON(t, r, http.MethodGet, "/users/me", login.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("me: status = %d (%s)", w.Code, env.Error)
	}
	var me struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(env.Data, &me); err != nil {
		t.Fatalf("decode me data: %v", err)
	}
	if me.Email != "alice@example.com" {
		t.Errorf("me email = %q", me.Email)
	}
}

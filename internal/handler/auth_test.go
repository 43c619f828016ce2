package handler_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Musicofilo701/splicy-api/internal/handler"
)

const testJWTSecret = "test-secret"

func newAuthRouter(store *memStore) *chi.Mux {
	h := handler.NewAuthHandler(store, testJWTSecret, time.Hour)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func registerBody(t *testing.T) []byte {
	t.Helper()
	return mustMarshal(t, map[string]string{
		"name":       "Trattoria da Mario",
		"email":      "mario@example.com",
		"password":   "correct-horse",
		"pos_system": "lightspeed",
	})
}

func TestRegisterRestaurant(t *testing.T) {
	store := newMemStore()
	r := newAuthRouter(store)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("POST", "/auth/register", bytes.NewReader(registerBody(t))))

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}
	resp := decodeBody(t, rr)
	restaurant := resp["restaurant"].(map[string]interface{})
	if !strings.HasPrefix(restaurant["api_key"].(string), "rest_") {
		t.Errorf("api_key: %v", restaurant["api_key"])
	}
	if resp["session_token"] == "" {
		t.Error("session_token missing")
	}

	// The password is stored hashed, never verbatim.
	stored := store.restaurants["mario@example.com"]
	if stored.PasswordHash == "correct-horse" {
		t.Error("password stored in plaintext")
	}
	if !stored.SessionToken.Valid {
		t.Error("session token not persisted")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	store := newMemStore()
	r := newAuthRouter(store)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("POST", "/auth/register", bytes.NewReader(registerBody(t))))
	if rr.Code != http.StatusCreated {
		t.Fatalf("first register: %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("POST", "/auth/register", bytes.NewReader(registerBody(t))))
	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want 409", rr.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	r := newAuthRouter(newMemStore())

	cases := []map[string]string{
		{"email": "a@b.com", "password": "longenough"},              // no name
		{"name": "X", "password": "longenough"},                     // no email
		{"name": "X", "email": "a@b.com"},                           // no password
		{"name": "X", "email": "a@b.com", "password": "short"},      // weak password
	}
	for i, c := range cases {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest("POST", "/auth/register", bytes.NewReader(mustMarshal(t, c))))
		if rr.Code != http.StatusBadRequest {
			t.Errorf("case %d: status %d, want 400", i, rr.Code)
		}
	}
}

func TestLoginRotatesSession(t *testing.T) {
	store := newMemStore()
	r := newAuthRouter(store)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("POST", "/auth/register", bytes.NewReader(registerBody(t))))
	firstToken := decodeBody(t, rr)["session_token"].(string)

	login := mustMarshal(t, map[string]string{
		"email":    "mario@example.com",
		"password": "correct-horse",
	})
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("POST", "/auth/login", bytes.NewReader(login)))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}
	newToken := decodeBody(t, rr)["session_token"].(string)
	if newToken == firstToken {
		t.Error("login should rotate the session token")
	}
	if store.restaurants["mario@example.com"].SessionToken.String != newToken {
		t.Error("stored token should match the newly issued one")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	store := newMemStore()
	r := newAuthRouter(store)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("POST", "/auth/register", bytes.NewReader(registerBody(t))))
	if rr.Code != http.StatusCreated {
		t.Fatalf("register: %d", rr.Code)
	}

	login := mustMarshal(t, map[string]string{
		"email":    "mario@example.com",
		"password": "wrong",
	})
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("POST", "/auth/login", bytes.NewReader(login)))

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rr.Code)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	r := newAuthRouter(newMemStore())

	login := mustMarshal(t, map[string]string{
		"email":    "nobody@example.com",
		"password": "whatever",
	})
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("POST", "/auth/login", bytes.NewReader(login)))

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rr.Code)
	}
}

package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCredentialFromRequest_PrefersCookie(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws/signal?token=from-query", nil)
	r.Header.Set("Authorization", "Bearer from-header")
	r.AddCookie(&http.Cookie{Name: "accessToken", Value: "from-cookie"})

	got, err := CredentialFromRequest(r, "accessToken")
	if err != nil {
		t.Fatalf("CredentialFromRequest: %v", err)
	}
	if got != "from-cookie" {
		t.Fatalf("credential=%q, want from-cookie", got)
	}
}

func TestCredentialFromRequest_FallsBackToBearerThenQuery(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws/signal?token=from-query", nil)
	r.Header.Set("Authorization", "Bearer from-header")

	got, err := CredentialFromRequest(r, "accessToken")
	if err != nil {
		t.Fatalf("CredentialFromRequest: %v", err)
	}
	if got != "from-header" {
		t.Fatalf("credential=%q, want from-header", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/ws/signal?token=from-query", nil)
	got, err = CredentialFromRequest(r, "accessToken")
	if err != nil {
		t.Fatalf("CredentialFromRequest: %v", err)
	}
	if got != "from-query" {
		t.Fatalf("credential=%q, want from-query", got)
	}
}

func TestCredentialFromRequest_MissingEverywhere(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws/signal", nil)

	if _, err := CredentialFromRequest(r, "accessToken"); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("err=%v, want ErrMissingCredentials", err)
	}
}

func TestCredentialFromRequest_RejectsNonBearerAuthorization(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws/signal", nil)
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

	if _, err := CredentialFromRequest(r, "accessToken"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err=%v, want ErrInvalidCredentials", err)
	}
}

func TestQueryAuthenticator(t *testing.T) {
	a := queryAuthenticator{}

	r := httptest.NewRequest(http.MethodGet, "/ws/signal?username=cam&roles=ROLE_RECEIVER", nil)
	p, err := a.Authenticate(r)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if p.Username != "cam" || !p.IsReceiver() {
		t.Fatalf("principal=%+v, want username cam with RECEIVER role", p)
	}

	r = httptest.NewRequest(http.MethodGet, "/ws/signal", nil)
	if _, err := a.Authenticate(r); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("err=%v, want ErrMissingCredentials", err)
	}
}

func TestJWTAuthenticator_EndToEnd(t *testing.T) {
	now := time.Now()
	a := jwtAuthenticator{verifier: NewJWTVerifier("secret"), cookie: "accessToken"}

	token := mustJWT(t, "secret", map[string]any{"alg": "HS256"}, map[string]any{
		"exp":   now.Add(time.Minute).Unix(),
		"sub":   "viewer",
		"roles": []string{"ROLE_RECEIVER"},
	})

	r := httptest.NewRequest(http.MethodGet, "/ws/signal", nil)
	r.AddCookie(&http.Cookie{Name: "accessToken", Value: token})

	p, err := a.Authenticate(r)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if p.Username != "viewer" || !p.IsReceiver() {
		t.Fatalf("principal=%+v, want receiver viewer", p)
	}
}

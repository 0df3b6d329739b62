package identity

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/gindriliunas/whatsapp-clone/internal/bus"
)

// makeIDToken builds an unsigned JWT with the given claims, enough for the
// claim-extraction path which does not verify signatures.
func makeIDToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatal(err)
	}
	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + "."
}

func TestAccountFromIDToken(t *testing.T) {
	raw := makeIDToken(t, map[string]any{
		"sub":     "uid-1",
		"email":   "Alice@Example.com",
		"name":    "Alice",
		"picture": "https://img.example.com/a.png",
	})
	acct, err := accountFromIDToken(raw)
	if err != nil {
		t.Fatal(err)
	}
	if acct.Email != "Alice@Example.com" || acct.Subject != "uid-1" {
		t.Errorf("acct = %+v", acct)
	}
	if acct.DisplayName != "Alice" || acct.AvatarURL != "https://img.example.com/a.png" {
		t.Errorf("profile fields = %+v", acct)
	}
}

func TestAccountFromIDTokenRequiresEmail(t *testing.T) {
	raw := makeIDToken(t, map[string]any{"sub": "uid-1"})
	if _, err := accountFromIDToken(raw); err == nil {
		t.Error("expected error for token without email claim")
	}
}

func TestTokenExpired(t *testing.T) {
	past := makeIDToken(t, map[string]any{"email": "a@x.com", "exp": time.Now().Add(-time.Hour).Unix()})
	future := makeIDToken(t, map[string]any{"email": "a@x.com", "exp": time.Now().Add(time.Hour).Unix()})
	noExp := makeIDToken(t, map[string]any{"email": "a@x.com"})

	if !tokenExpired(past) {
		t.Error("past exp should be expired")
	}
	if tokenExpired(future) {
		t.Error("future exp should not be expired")
	}
	if !tokenExpired(noExp) {
		t.Error("token without exp should be treated as expired")
	}
}

func newTestProvider(t *testing.T, deviceURL, tokenURL string, prompt Prompt) (*DeviceFlow, *bus.Bus) {
	t.Helper()
	b := bus.New()
	tokenPath := filepath.Join(t.TempDir(), "token.json")
	p := NewDeviceFlow("client-1", deviceURL, tokenURL, tokenPath, prompt, b, zap.NewNop())
	p.http = &http.Client{Timeout: 5 * time.Second}
	return p, b
}

func deviceEndpoint(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(deviceCodeResponse{
			DeviceCode:      "dev-code",
			UserCode:        "ABCD-1234",
			VerificationURI: "https://auth.example.com/activate",
			ExpiresIn:       300,
			Interval:        1, // keep test polling fast
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSignInPendingThenApproved(t *testing.T) {
	idToken := makeIDToken(t, map[string]any{"sub": "u1", "email": "alice@example.com", "name": "Alice"})

	var polls atomic.Int32
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(tokenResponse{Error: "authorization_pending"})
			return
		}
		_ = json.NewEncoder(w).Encode(tokenResponse{AccessToken: "at", IDToken: idToken})
	}))
	defer tokenSrv.Close()

	var promptedURL, promptedCode string
	p, b := newTestProvider(t, deviceEndpoint(t).URL, tokenSrv.URL, func(url, code string) {
		promptedURL, promptedCode = url, code
	})

	watch, cancelWatch := b.Subscribe("auth.changed", 4)
	defer cancelWatch()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	acct, err := p.SignIn(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if acct.Email != "alice@example.com" {
		t.Errorf("email = %q", acct.Email)
	}
	if promptedURL != "https://auth.example.com/activate" || promptedCode != "ABCD-1234" {
		t.Errorf("prompt = (%q, %q)", promptedURL, promptedCode)
	}
	if p.Current() == nil || p.Current().Email != "alice@example.com" {
		t.Error("Current() not set after sign-in")
	}

	select {
	case evt := <-watch:
		if evt.Kind != "auth.changed" {
			t.Errorf("event kind = %q", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Error("no auth.changed event after sign-in")
	}
}

func TestSignInDenied(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(tokenResponse{Error: "access_denied"})
	}))
	defer tokenSrv.Close()

	p, _ := newTestProvider(t, deviceEndpoint(t).URL, tokenSrv.URL, nil)

	_, err := p.SignIn(context.Background())
	if !errors.Is(err, ErrCancelled) {
		t.Errorf("err = %v, want ErrCancelled", err)
	}
}

func TestSignInExpiredCode(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(tokenResponse{Error: "expired_token"})
	}))
	defer tokenSrv.Close()

	p, _ := newTestProvider(t, deviceEndpoint(t).URL, tokenSrv.URL, nil)

	_, err := p.SignIn(context.Background())
	if !errors.Is(err, ErrBlocked) {
		t.Errorf("err = %v, want ErrBlocked", err)
	}
}

func TestRestoreAndSignOut(t *testing.T) {
	idToken := makeIDToken(t, map[string]any{
		"sub": "u1", "email": "alice@example.com",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	p, _ := newTestProvider(t, "", "", nil)
	if err := saveToken(p.tokenPath, &tokenFile{IDToken: idToken, ObtainedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}

	acct := p.Restore()
	if acct == nil || acct.Email != "alice@example.com" {
		t.Fatalf("Restore() = %+v", acct)
	}

	if err := p.SignOut(context.Background()); err != nil {
		t.Fatal(err)
	}
	if p.Current() != nil {
		t.Error("Current() not nil after sign-out")
	}
	if p.Restore() != nil {
		t.Error("Restore() should fail after sign-out removed the cache")
	}
}

func TestWatchDeliversAccountChanges(t *testing.T) {
	p, _ := newTestProvider(t, "", "", nil)

	ch, cancel := p.Watch()
	defer cancel()

	p.setCurrent(&Account{Email: "alice@example.com"})

	select {
	case acct := <-ch:
		if acct == nil || acct.Email != "alice@example.com" {
			t.Errorf("watched account = %+v", acct)
		}
	case <-time.After(time.Second):
		t.Fatal("no account delivered on Watch channel")
	}

	p.setCurrent(nil)
	select {
	case acct := <-ch:
		if acct != nil {
			t.Errorf("sign-out should deliver nil, got %+v", acct)
		}
	case <-time.After(time.Second):
		t.Fatal("no sign-out delivered on Watch channel")
	}
}

func TestRestoreIgnoresExpiredToken(t *testing.T) {
	idToken := makeIDToken(t, map[string]any{
		"sub": "u1", "email": "alice@example.com",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	p, _ := newTestProvider(t, "", "", nil)
	if err := saveToken(p.tokenPath, &tokenFile{IDToken: idToken, ObtainedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if p.Restore() != nil {
		t.Error("Restore() should reject an expired token")
	}
}

package identity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenFile is the on-disk shape of the cached credentials.
type tokenFile struct {
	IDToken     string    `json:"id_token"`
	AccessToken string    `json:"access_token"`
	ObtainedAt  time.Time `json:"obtained_at"`
}

// accountFromIDToken extracts the profile claims from an OpenID Connect ID
// token. The token arrives over TLS straight from the provider's token
// endpoint, so the claims are parsed without a local signature check;
// signature verification is the resource server's concern.
func accountFromIDToken(raw string) (*Account, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("parse id token: %w", err)
	}

	email, _ := claims["email"].(string)
	if email == "" {
		return nil, fmt.Errorf("id token has no email claim")
	}
	sub, _ := claims["sub"].(string)
	name, _ := claims["name"].(string)
	picture, _ := claims["picture"].(string)

	return &Account{
		Subject:     sub,
		Email:       email,
		DisplayName: name,
		AvatarURL:   picture,
	}, nil
}

// tokenExpired reports whether the ID token's exp claim is in the past.
// A token without exp is treated as expired.
func tokenExpired(raw string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return exp.Before(time.Now())
}

// CachedAccessToken returns the access token from the on-disk cache, or ""
// when no usable cache exists. Used to authenticate the remote store
// connection without forcing an interactive sign-in first.
func CachedAccessToken(path string) string {
	tf, err := loadToken(path)
	if err != nil || tokenExpired(tf.IDToken) {
		return ""
	}
	return tf.AccessToken
}

func saveToken(path string, tf *tokenFile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	raw, err := json.Marshal(tf)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0600)
}

func loadToken(path string) (*tokenFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tf tokenFile
	if err := json.Unmarshal(raw, &tf); err != nil {
		return nil, err
	}
	return &tf, nil
}

// Package identity abstracts the OAuth identity provider. The rest of the
// application only sees stable Account values and a currentUser-style
// observable; how the provider authenticates (device flow, cached token) is
// internal to the implementation.
package identity

import (
	"context"
	"errors"
)

// Account is the signed-in identity. Email is the participant identifier the
// messaging core keys on.
type Account struct {
	Subject     string
	Email       string
	DisplayName string
	AvatarURL   string
}

var (
	// ErrCancelled is returned when the user abandoned the sign-in.
	ErrCancelled = errors.New("sign-in cancelled by user")
	// ErrBlocked is returned when the sign-in could not complete (the
	// device code expired before the user approved it).
	ErrBlocked = errors.New("sign-in blocked: device code expired")
)

// Provider is the identity provider collaborator contract.
type Provider interface {
	// SignIn runs the interactive flow and returns the authenticated account.
	SignIn(ctx context.Context) (*Account, error)

	// SignOut clears the active account and any cached credentials.
	SignOut(ctx context.Context) error

	// Current returns the active account, or nil when signed out.
	Current() *Account

	// Watch observes account changes; emits the new account (nil on
	// sign-out). The returned func cancels the watch.
	Watch() (<-chan *Account, func())
}

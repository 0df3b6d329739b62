package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gindriliunas/whatsapp-clone/internal/bus"
)

const defaultScopes = "openid email profile"

// Prompt presents the device-flow verification details to the user: the URL
// to visit (rendered as a QR code in the TUI) and the code to enter there.
type Prompt func(verificationURL, userCode string)

// DeviceFlow implements Provider using the OAuth 2.0 device authorization
// grant. Credentials are cached on disk so restarts stay signed in.
type DeviceFlow struct {
	clientID  string
	deviceURL string
	tokenURL  string
	tokenPath string
	prompt    Prompt

	http   *http.Client
	bus    *bus.Bus
	logger *zap.Logger

	mu      sync.RWMutex
	current *Account
}

// NewDeviceFlow creates a device-flow provider. tokenPath is where the cached
// token lives; prompt is invoked once per SignIn with the verification
// details.
func NewDeviceFlow(clientID, deviceURL, tokenURL, tokenPath string, prompt Prompt, b *bus.Bus, logger *zap.Logger) *DeviceFlow {
	return &DeviceFlow{
		clientID:  clientID,
		deviceURL: deviceURL,
		tokenURL:  tokenURL,
		tokenPath: tokenPath,
		prompt:    prompt,
		http:      &http.Client{Timeout: 30 * time.Second},
		bus:       b,
		logger:    logger,
	}
}

// Restore loads the cached token, if any, and restores the signed-in account.
// Returns the account or nil without error when no valid cache exists.
func (d *DeviceFlow) Restore() *Account {
	tf, err := loadToken(d.tokenPath)
	if err != nil {
		return nil
	}
	if tokenExpired(tf.IDToken) {
		d.logger.Info("cached token expired, sign-in required")
		return nil
	}
	acct, err := accountFromIDToken(tf.IDToken)
	if err != nil {
		d.logger.Warn("cached token unreadable", zap.Error(err))
		return nil
	}
	d.setCurrent(acct)
	return acct
}

type deviceCodeResponse struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete"`
	ExpiresIn               int    `json:"expires_in"`
	Interval                int    `json:"interval"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
	Error       string `json:"error"`
}

// SignIn runs the device authorization flow: obtain a device code, hand the
// verification URL to the prompt, then poll the token endpoint until the user
// approves, cancels, or the code expires.
func (d *DeviceFlow) SignIn(ctx context.Context) (*Account, error) {
	dc, err := d.requestDeviceCode(ctx)
	if err != nil {
		return nil, err
	}

	verification := dc.VerificationURIComplete
	if verification == "" {
		verification = dc.VerificationURI
	}
	if d.prompt != nil {
		d.prompt(verification, dc.UserCode)
	}

	interval := time.Duration(dc.Interval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	deadline := time.Now().Add(time.Duration(dc.ExpiresIn) * time.Second)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		case <-ticker.C:
		}

		if dc.ExpiresIn > 0 && time.Now().After(deadline) {
			return nil, ErrBlocked
		}

		tr, err := d.pollToken(ctx, dc.DeviceCode)
		if err != nil {
			return nil, err
		}

		switch tr.Error {
		case "":
			return d.complete(tr)
		case "authorization_pending":
			continue
		case "slow_down":
			ticker.Reset(interval + 5*time.Second)
		case "access_denied":
			return nil, ErrCancelled
		case "expired_token":
			return nil, ErrBlocked
		default:
			return nil, fmt.Errorf("token endpoint error: %s", tr.Error)
		}
	}
}

func (d *DeviceFlow) complete(tr *tokenResponse) (*Account, error) {
	acct, err := accountFromIDToken(tr.IDToken)
	if err != nil {
		return nil, err
	}
	if err := saveToken(d.tokenPath, &tokenFile{
		IDToken:     tr.IDToken,
		AccessToken: tr.AccessToken,
		ObtainedAt:  time.Now(),
	}); err != nil {
		d.logger.Warn("could not cache token", zap.Error(err))
	}
	d.setCurrent(acct)
	d.logger.Info("signed in", zap.String("email", acct.Email))
	return acct, nil
}

// SignOut clears the cached token and the active account.
func (d *DeviceFlow) SignOut(_ context.Context) error {
	if err := os.Remove(d.tokenPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	d.setCurrent(nil)
	d.logger.Info("signed out")
	return nil
}

// Current returns the active account, or nil.
func (d *DeviceFlow) Current() *Account {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.current
}

// Watch observes account changes over the event bus.
func (d *DeviceFlow) Watch() (<-chan *Account, func()) {
	events, unsub := d.bus.Subscribe("auth.changed", 8)
	out := make(chan *Account, 8)
	done := make(chan struct{})
	go func() {
		defer close(out)
		for {
			select {
			case evt := <-events:
				acct, _ := evt.Payload.(*Account)
				select {
				case out <- acct:
				default:
				}
			case <-done:
				return
			}
		}
	}()
	return out, func() {
		unsub()
		close(done)
	}
}

func (d *DeviceFlow) setCurrent(acct *Account) {
	d.mu.Lock()
	d.current = acct
	d.mu.Unlock()
	if d.bus != nil {
		d.bus.Publish(bus.Event{Kind: "auth.changed", Timestamp: time.Now(), Payload: acct})
	}
}

func (d *DeviceFlow) requestDeviceCode(ctx context.Context) (*deviceCodeResponse, error) {
	form := url.Values{
		"client_id": {d.clientID},
		"scope":     {defaultScopes},
	}
	var dc deviceCodeResponse
	if err := d.postForm(ctx, d.deviceURL, form, &dc); err != nil {
		return nil, err
	}
	if dc.DeviceCode == "" {
		return nil, fmt.Errorf("device endpoint returned no device code")
	}
	return &dc, nil
}

func (d *DeviceFlow) pollToken(ctx context.Context, deviceCode string) (*tokenResponse, error) {
	form := url.Values{
		"client_id":   {d.clientID},
		"device_code": {deviceCode},
		"grant_type":  {"urn:ietf:params:oauth:grant-type:device_code"},
	}
	var tr tokenResponse
	if err := d.postForm(ctx, d.tokenURL, form, &tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

func (d *DeviceFlow) postForm(ctx context.Context, endpoint string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.http.Do(req)
	if err != nil {
		return fmt.Errorf("identity provider unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// OAuth error responses come back as 4xx with a JSON error field, which
	// the caller inspects; only decode failures are fatal here.
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", endpoint, err)
	}
	return nil
}

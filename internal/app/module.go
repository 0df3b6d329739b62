// Package app composes the client: config, logging, store backend, identity,
// the conversation reconciler and the TUI, wired through fx with lifecycle
// hooks for orderly teardown.
package app

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/gindriliunas/whatsapp-clone/internal/bus"
	"github.com/gindriliunas/whatsapp-clone/internal/chat"
	"github.com/gindriliunas/whatsapp-clone/internal/compose"
	"github.com/gindriliunas/whatsapp-clone/internal/config"
	"github.com/gindriliunas/whatsapp-clone/internal/docstore"
	"github.com/gindriliunas/whatsapp-clone/internal/docstore/remote"
	"github.com/gindriliunas/whatsapp-clone/internal/docstore/sqlitedoc"
	"github.com/gindriliunas/whatsapp-clone/internal/identity"
	"github.com/gindriliunas/whatsapp-clone/internal/lock"
	"github.com/gindriliunas/whatsapp-clone/internal/logging"
	"github.com/gindriliunas/whatsapp-clone/internal/paths"
	"github.com/gindriliunas/whatsapp-clone/internal/tui"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile string
}

// Module returns the fx module for the TUI client, composing all providers
// and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("app",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideComposeMachine,
			providePromptRelay,
			provideDeviceFlow,
			provideProvider,
			provideStore,
			provideReconciler,
			provideApp,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() (*config.Config, error) {
	return config.Load(paths.ConfigPath())
}

func provideLogger(p Params) (*zap.Logger, error) {
	if err := paths.EnsureProfileDir(p.Profile); err != nil {
		return nil, err
	}
	return logging.New(paths.LogPath(p.Profile), p.Profile)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideComposeMachine(b *bus.Bus) *compose.Machine {
	return compose.NewMachine(b)
}

// promptRelay breaks the construction cycle between the identity provider
// (which needs a prompt) and the TUI (which renders it but needs the
// provider). The provider is built against the relay; the TUI binds the real
// prompt once it exists.
type promptRelay struct {
	mu sync.RWMutex
	fn identity.Prompt
}

func (r *promptRelay) bind(fn identity.Prompt) {
	r.mu.Lock()
	r.fn = fn
	r.mu.Unlock()
}

func (r *promptRelay) prompt(verificationURL, userCode string) {
	r.mu.RLock()
	fn := r.fn
	r.mu.RUnlock()
	if fn != nil {
		fn(verificationURL, userCode)
	}
}

func providePromptRelay() *promptRelay {
	return &promptRelay{}
}

func provideDeviceFlow(p Params, cfg *config.Config, relay *promptRelay, b *bus.Bus, logger *zap.Logger) *identity.DeviceFlow {
	return identity.NewDeviceFlow(
		cfg.Auth.ClientID,
		cfg.Auth.DeviceURL,
		cfg.Auth.TokenURL,
		paths.TokenPath(p.Profile),
		relay.prompt,
		b,
		logger,
	)
}

func provideProvider(df *identity.DeviceFlow) identity.Provider {
	return df
}

// StoreHandle pairs the selected backend with its local-mode profile lock so
// teardown can release both.
type StoreHandle struct {
	docstore.Store
	lk *lock.Lock
}

// Shutdown closes the store and releases the profile lock.
func (h *StoreHandle) Shutdown() error {
	err := h.Close()
	if rerr := h.lk.Release(); err == nil {
		err = rerr
	}
	return err
}

func provideStore(p Params, cfg *config.Config, b *bus.Bus, logger *zap.Logger) (*StoreHandle, error) {
	return OpenStore(p, cfg, b, logger)
}

// OpenStore opens the configured store backend for a profile: embedded SQLite
// under the profile lock for "local", a websocket connection for "remote".
// Shared with wcctl, which talks to the same store without the TUI.
func OpenStore(p Params, cfg *config.Config, b *bus.Bus, logger *zap.Logger) (*StoreHandle, error) {
	switch cfg.Store {
	case "remote":
		if cfg.ServerURL == "" {
			return nil, fmt.Errorf("store is %q but server_url is not configured", cfg.Store)
		}
		token := identity.CachedAccessToken(paths.TokenPath(p.Profile))
		c, err := remote.Dial(context.Background(), cfg.ServerURL, token, b, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("remote store connected", zap.String("url", cfg.ServerURL))
		return &StoreHandle{Store: c}, nil

	case "local", "":
		lk, err := lock.Acquire(paths.ProfileDir(p.Profile))
		if err != nil {
			return nil, err
		}
		dbPath := paths.StoreDBPath(p.Profile)
		s, err := sqlitedoc.Open(dbPath, b)
		if err != nil {
			_ = lk.Release()
			return nil, err
		}
		result, err := s.Migrate()
		if err != nil {
			_ = s.Close()
			_ = lk.Release()
			return nil, err
		}
		if result.Changed {
			logger.Info("migrations applied", zap.Uint("version", result.Version))
		} else {
			logger.Info("migrations up to date", zap.Uint("version", result.Version))
		}
		logger.Info("local store initialized", zap.String("path", dbPath))
		return &StoreHandle{Store: s, lk: lk}, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store)
	}
}

func provideReconciler(h *StoreHandle, logger *zap.Logger) *chat.Reconciler {
	return chat.NewReconciler(h.Store, logger)
}

func provideApp(cfg *config.Config, r *chat.Reconciler, provider identity.Provider, m *compose.Machine, b *bus.Bus, logger *zap.Logger, relay *promptRelay) *tui.App {
	a := tui.NewApp(tui.Params{
		Reconciler: r,
		Provider:   provider,
		Compose:    m,
		Bus:        b,
		Logger:     logger,
		Mode:       cfg.Store,
	})
	relay.bind(a.Prompt())
	return a
}

func registerLifecycle(lc fx.Lifecycle, shutdowner fx.Shutdowner, a *tui.App, df *identity.DeviceFlow, h *StoreHandle, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			if acct := df.Restore(); acct != nil {
				logger.Info("session restored", zap.String("email", acct.Email))
			}
			go func() {
				if err := a.Run(); err != nil {
					logger.Error("tui error", zap.Error(err))
				}
				_ = shutdowner.Shutdown()
			}()
			return nil
		},
		OnStop: func(_ context.Context) error {
			a.Stop()
			if err := h.Shutdown(); err != nil {
				logger.Warn("store shutdown failed", zap.Error(err))
			}
			logger.Info("shutdown complete")
			return nil
		},
	})
}

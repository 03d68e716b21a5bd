package main

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/member-portal/pkg/auth"
	"github.com/Veraticus/member-portal/pkg/config"
	"github.com/Veraticus/member-portal/pkg/content"
	"github.com/Veraticus/member-portal/pkg/interfaces"
	"github.com/Veraticus/member-portal/pkg/log"
	"github.com/Veraticus/member-portal/pkg/membership"
	"github.com/Veraticus/member-portal/pkg/monitor"
	"github.com/Veraticus/member-portal/pkg/notification"
	"github.com/Veraticus/member-portal/pkg/portal"
	"github.com/Veraticus/member-portal/pkg/ratelimit"
	"github.com/Veraticus/member-portal/pkg/store"
)

// Dependencies holds all the dependencies for the application
type Dependencies struct {
	Config              *config.Config
	Store               *store.Store
	Content             *content.Content
	Toasts              *notification.Inbox
	Notifier            notification.Notifier
	RateLimiter         interfaces.RateLimiter
	NotificationManager *notification.Manager
	Auth                *auth.Service
	Monitors            *monitor.Registry
	Membership          *membership.Service
	Server              *portal.Server

	unsubscribe func()
}

// NewDependencies creates all dependencies with the given configuration
func NewDependencies(cfg *config.Config) (*Dependencies, error) {
	deps := &Dependencies{Config: cfg}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	deps.Store = st

	deps.Content, err = content.Load()
	if err != nil {
		deps.Close()
		return nil, err
	}

	// Admin alerts always reach the log; ntfy is added when a topic is set.
	alerts := notification.MultiNotifier{notification.NewLogNotifier(log.Logger())}
	if !cfg.Quiet && cfg.NtfyTopic != "" {
		alerts = append(alerts, notification.NewNtfyClient(cfg.NtfyServer, cfg.NtfyTopic))
	}
	deps.Notifier = alerts
	deps.RateLimiter = ratelimit.NewTokenBucketRateLimiter(cfg.RateLimit.MaxMessages, cfg.RateLimit.Window)
	deps.NotificationManager = notification.NewManager(cfg, deps.Notifier, deps.RateLimiter)

	// A toast nobody collects within a session timeout belongs to a browser
	// that is gone.
	deps.Toasts = notification.NewInbox(notification.DefaultInboxSize, notification.WithMaxAge(cfg.SessionTimeout))
	deps.Auth = auth.NewService(st,
		auth.WithSignInLimit(cfg.SignIn.MaxMessages, cfg.SignIn.Window),
		auth.WithToasts(deps.Toasts),
	)

	deps.Monitors = monitor.NewRegistry(cfg, nil, deps.Auth)
	deps.unsubscribe = deps.Auth.Subscribe(deps.Monitors.HandleAuthEvent)

	deps.Membership = membership.NewService(st, deps.Content, deps.NotificationManager)

	deps.Server = portal.New(cfg, portal.Deps{
		Auth:       deps.Auth,
		Monitors:   deps.Monitors,
		Membership: deps.Membership,
		Store:      st,
		Content:    deps.Content,
		Toasts:     deps.Toasts,
	})

	return deps, nil
}

// Close cleans up all dependencies. It is safe to call more than once.
func (d *Dependencies) Close() {
	if d.unsubscribe != nil {
		d.unsubscribe()
		d.unsubscribe = nil
	}
	if d.Auth != nil {
		_ = d.Auth.Close()
	}
	if d.Monitors != nil {
		d.Monitors.Close()
	}
	if d.NotificationManager != nil {
		_ = d.NotificationManager.Close()
		d.NotificationManager = nil
	}
	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			log.Warn("closing store", "error", err)
		}
		d.Store = nil
	}
}

// Application represents the main application
type Application struct {
	deps *Dependencies
}

// NewApplication creates a new application with the given dependencies
func NewApplication(deps *Dependencies) *Application {
	return &Application{
		deps: deps,
	}
}

// Run listens on the configured address and serves until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", a.deps.Config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.deps.Config.ListenAddr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve runs the auth dispatch loop and the HTTP server on ln. Either one
// failing stops the other.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.deps.Auth.Start(gctx)
	})
	g.Go(func() error {
		return a.deps.Server.Serve(gctx, ln)
	})

	if a.deps.Config.NtfyTopic != "" && !a.deps.Config.Quiet {
		log.Info("admin alerts enabled", "server", a.deps.Config.NtfyServer, "topic", a.deps.Config.NtfyTopic)
	}

	return g.Wait()
}

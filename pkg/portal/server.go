// Package portal serves the member portal's JSON API.
package portal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Veraticus/member-portal/pkg/auth"
	"github.com/Veraticus/member-portal/pkg/config"
	"github.com/Veraticus/member-portal/pkg/content"
	"github.com/Veraticus/member-portal/pkg/log"
	"github.com/Veraticus/member-portal/pkg/membership"
	"github.com/Veraticus/member-portal/pkg/monitor"
	"github.com/Veraticus/member-portal/pkg/notification"
	"github.com/Veraticus/member-portal/pkg/ratelimit"
	"github.com/Veraticus/member-portal/pkg/store"
)

const shutdownTimeout = 10 * time.Second

// Deps are the collaborators the server routes requests to.
type Deps struct {
	Auth       *auth.Service
	Monitors   *monitor.Registry
	Membership *membership.Service
	Store      *store.Store
	Content    *content.Content
	Toasts     *notification.Inbox
}

// Server is the portal's HTTP front end.
type Server struct {
	cfg        *config.Config
	auth       *auth.Service
	monitors   *monitor.Registry
	membership *membership.Service
	store      *store.Store
	content    *content.Content
	toasts     *notification.Inbox
	formLimit  *ratelimit.Keyed
	now        func() time.Time

	handler http.Handler
}

// New builds a server and its routes.
func New(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:        cfg,
		auth:       deps.Auth,
		monitors:   deps.Monitors,
		membership: deps.Membership,
		store:      deps.Store,
		content:    deps.Content,
		toasts:     deps.Toasts,
		now:        time.Now,
	}
	if cfg.FormRateLimit.MaxMessages > 0 {
		s.formLimit = ratelimit.NewKeyed(cfg.FormRateLimit.MaxMessages, cfg.FormRateLimit.Window, 0)
	}

	s.handler = Chain(
		Recovery(),
		Logging(),
	)(s.routes())
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Only form submissions share the per-IP budget. Activity reports must
	// always reach the idle monitor.
	form := LimitRequests(s.formLimit)

	mux.HandleFunc("GET /healthz", s.handleHealth)

	// Public
	mux.HandleFunc("GET /api/content", s.handleContent)
	mux.HandleFunc("GET /api/advertisements", s.handleAdvertisements)
	mux.Handle("POST /api/contact", form(http.HandlerFunc(s.handleContact)))
	mux.Handle("POST /api/auth/signup", form(http.HandlerFunc(s.handleSignUp)))
	mux.HandleFunc("POST /api/auth/signin", s.handleSignIn)

	// Signed in
	mux.HandleFunc("POST /api/auth/signout", s.requireSession(s.handleSignOut))
	mux.HandleFunc("GET /api/session", s.requireSession(s.handleSession))
	mux.HandleFunc("POST /api/session/activity", s.requireSession(s.handleActivity))
	mux.Handle("POST /api/membership/apply", form(s.requireSession(s.handleApply)))
	mux.HandleFunc("GET /api/me", s.requireSession(s.handleMe))
	mux.HandleFunc("PUT /api/me", s.requireSession(s.handleUpdateMe))

	// Admin
	mux.HandleFunc("GET /api/admin/overview", s.requireAdmin(s.handleOverview))
	mux.HandleFunc("GET /api/admin/activity", s.requireAdmin(s.handleActivityLog))
	mux.HandleFunc("GET /api/admin/users", s.requireAdmin(s.handleUsers))
	mux.HandleFunc("POST /api/admin/users/{id}/role", s.requireAdmin(s.handleSetRole))
	mux.HandleFunc("GET /api/admin/applications", s.requireAdmin(s.handleApplications))
	mux.HandleFunc("POST /api/admin/applications/{id}/status", s.requireAdmin(s.handleReview))
	mux.HandleFunc("GET /api/admin/advertisements", s.requireAdmin(s.handleAdminAdvertisements))
	mux.HandleFunc("POST /api/admin/advertisements", s.requireAdmin(s.handleCreateAdvertisement))
	mux.HandleFunc("PUT /api/admin/advertisements/{id}", s.requireAdmin(s.handleUpdateAdvertisement))
	mux.HandleFunc("DELETE /api/admin/advertisements/{id}", s.requireAdmin(s.handleDeleteAdvertisement))
	mux.HandleFunc("POST /api/admin/advertisements/{id}/toggle", s.requireAdmin(s.handleToggleAdvertisement))
	mux.HandleFunc("GET /api/admin/messages", s.requireAdmin(s.handleMessages))
	mux.HandleFunc("POST /api/admin/messages/{id}/read", s.requireAdmin(s.handleMarkRead))

	return mux
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	log.Info("portal listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	log.Info("portal shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.ListenAddr, err)
	}
	return s.Serve(ctx, ln)
}

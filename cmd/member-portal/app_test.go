package main

import (
	"context"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/member-portal/pkg/config"
	"github.com/Veraticus/member-portal/pkg/notification"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "portal.db")
	cfg.ListenAddr = "127.0.0.1:0"
	return cfg
}

func TestNewDependencies(t *testing.T) {
	cfg := testConfig(t)

	deps, err := NewDependencies(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer deps.Close()

	if deps.Config != cfg {
		t.Error("expected config to be set")
	}
	if deps.Store == nil {
		t.Error("expected store to be opened")
	}
	if deps.Content == nil || len(deps.Content.Tiers) == 0 {
		t.Error("expected content to be loaded")
	}
	if deps.NotificationManager == nil {
		t.Error("expected notification manager to be created")
	}
	if deps.Auth == nil || deps.Monitors == nil || deps.Membership == nil {
		t.Error("expected services to be created")
	}
	if deps.Server == nil {
		t.Error("expected server to be created")
	}
}

func TestNewDependencies_NtfyOnlyWithTopic(t *testing.T) {
	tests := []struct {
		name  string
		topic string
		quiet bool
		want  int
	}{
		{name: "no topic", want: 1},
		{name: "topic", topic: "ppswz-admin", want: 2},
		{name: "quiet", topic: "ppswz-admin", quiet: true, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.NtfyTopic = tt.topic
			cfg.Quiet = tt.quiet

			deps, err := NewDependencies(cfg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer deps.Close()

			multi, ok := deps.Notifier.(notification.MultiNotifier)
			if !ok {
				t.Fatalf("Notifier is %T, want MultiNotifier", deps.Notifier)
			}
			if len(multi) != tt.want {
				t.Errorf("got %d notifiers, want %d", len(multi), tt.want)
			}
		})
	}
}

func TestNewDependencies_BadDatabasePath(t *testing.T) {
	cfg := testConfig(t)
	cfg.DatabasePath = filepath.Join(t.TempDir(), "missing", "dir", "portal.db")

	if _, err := NewDependencies(cfg); err == nil {
		t.Error("expected error for unopenable database")
	}
}

func TestDependenciesCloseTwice(t *testing.T) {
	deps, err := NewDependencies(testConfig(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	deps.Close()
	deps.Close()
}

func TestApplication_ServeAndShutdown(t *testing.T) {
	deps, err := NewDependencies(testConfig(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer deps.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewApplication(deps).Serve(ctx, ln)
	}()

	url := "http://" + ln.Addr().String() + "/healthz"
	var resp *http.Response
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err = http.Get(url)
		if err == nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

package auth

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Veraticus/member-portal/pkg/notification"
	"github.com/Veraticus/member-portal/pkg/store"
	"github.com/Veraticus/member-portal/pkg/testutil"
	"github.com/Veraticus/member-portal/pkg/types"
)

type fixture struct {
	svc    *Service
	store  *store.Store
	toasts *testutil.MockNotifier
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	toasts := testutil.NewMockNotifier()
	opts = append([]Option{WithBcryptCost(bcrypt.MinCost), WithToasts(toasts)}, opts...)
	svc := NewService(st, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = svc.Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = svc.Close()
	})

	return &fixture{svc: svc, store: st, toasts: toasts}
}

func (f *fixture) signUp(t *testing.T, email string) *types.Profile {
	t.Helper()
	p, err := f.svc.SignUp(context.Background(), email, "secret123", "Zuhura Said")
	require.NoError(t, err)
	return p
}

func (f *fixture) settle(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.svc.Settle(ctx))
}

func TestSignUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.signUp(t, " Zuhura@Example.org ")
	assert.Equal(t, "zuhura@example.org", p.Email)
	assert.NotEqual(t, []byte("secret123"), p.PasswordHash)

	role, err := f.store.RoleFor(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RoleUser, role)

	logs, err := f.store.ListActivity(ctx, store.ActivityFilter{Action: types.ActionUserRegistered})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, p.ID, logs[0].UserID)

	_, err = f.svc.SignUp(ctx, "zuhura@example.org", "another1", "Someone Else")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestSignUp_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name      string
		email     string
		password  string
		fullName  string
		wantField string
	}{
		{name: "bad email", email: "nope", password: "secret123", fullName: "Valid Name", wantField: "email"},
		{name: "short password", email: "a@example.org", password: "12345", fullName: "Valid Name", wantField: "password"},
		{name: "short name", email: "a@example.org", password: "secret123", fullName: " A ", wantField: "full_name"},
		{name: "long password", email: "a@example.org", password: string(make([]byte, 73)), fullName: "Valid Name", wantField: "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SignUp(context.Background(), tt.email, tt.password, tt.fullName)
			var verrs types.ValidationErrors
			require.True(t, errors.As(err, &verrs), "got %v", err)
			assert.Contains(t, verrs, tt.wantField)
		})
	}
}

func TestSignIn_LoadsRoleDeferred(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.signUp(t, "admin@example.org")
	require.NoError(t, f.store.SetRole(ctx, p.ID, types.RoleAdmin))

	sess, err := f.svc.SignIn(ctx, "ADMIN@example.org", "secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, p.ID, sess.UserID)

	f.settle(t)

	got, err := f.svc.Session(sess.Token)
	require.NoError(t, err)
	assert.False(t, got.Loading)
	assert.Equal(t, types.RoleAdmin, got.Role)
	assert.True(t, got.IsAdmin())

	logs, err := f.store.ListActivity(ctx, store.ActivityFilter{Action: types.ActionLogin})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestSignIn_InvalidCredentials(t *testing.T) {
	f := newFixture(t)
	f.signUp(t, "member@example.org")

	_, err := f.svc.SignIn(context.Background(), "member@example.org", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.SignIn(context.Background(), "ghost@example.org", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignIn_RateLimited(t *testing.T) {
	f := newFixture(t, WithSignInLimit(2, time.Hour))
	f.signUp(t, "member@example.org")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.svc.SignIn(ctx, "member@example.org", "bad")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	_, err := f.svc.SignIn(ctx, "member@example.org", "secret123")
	assert.ErrorIs(t, err, ErrTooManyAttempts)

	// Other accounts keep their own budget.
	f.signUp(t, "other@example.org")
	_, err = f.svc.SignIn(ctx, "other@example.org", "secret123")
	assert.NoError(t, err)
}

func TestSignOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signUp(t, "member@example.org")

	sess, err := f.svc.SignIn(ctx, "member@example.org", "secret123")
	require.NoError(t, err)

	require.NoError(t, f.svc.SignOut(ctx, sess.Token))
	_, err = f.svc.Session(sess.Token)
	assert.ErrorIs(t, err, ErrNoSession)

	assert.ErrorIs(t, f.svc.SignOut(ctx, sess.Token), ErrNoSession)
	assert.Empty(t, f.toasts.GetNotifications())
}

func TestExpireSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signUp(t, "member@example.org")

	sess, err := f.svc.SignIn(ctx, "member@example.org", "secret123")
	require.NoError(t, err)

	require.NoError(t, f.svc.ExpireSession(ctx, sess.Token))
	_, err = f.svc.Session(sess.Token)
	assert.ErrorIs(t, err, ErrNoSession)

	toasts := f.toasts.GetNotifications()
	require.Len(t, toasts, 1)
	assert.Equal(t, ExpiredMessage, toasts[0].Message)
	assert.Equal(t, notification.KindSessionExpired, toasts[0].Kind)
	assert.Equal(t, sess.Token, toasts[0].Recipient)

	logs, err := f.store.ListActivity(ctx, store.ActivityFilter{Action: types.ActionSessionExpired})
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	assert.ErrorIs(t, f.svc.ExpireSession(ctx, sess.Token), ErrNoSession)
}

func TestExpireSession_ToastFailureStillSignsOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signUp(t, "member@example.org")
	f.toasts.SetError(errors.New("inbox unavailable"))

	sess, err := f.svc.SignIn(ctx, "member@example.org", "secret123")
	require.NoError(t, err)

	require.NoError(t, f.svc.ExpireSession(ctx, sess.Token))
	_, err = f.svc.Session(sess.Token)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSubscribe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signUp(t, "member@example.org")

	var mu sync.Mutex
	var events []Event
	unsubscribe := f.svc.Subscribe(func(evt Event) {
		mu.Lock()
		events = append(events, evt)
		mu.Unlock()
	})

	a, err := f.svc.SignIn(ctx, "member@example.org", "secret123")
	require.NoError(t, err)
	b, err := f.svc.SignIn(ctx, "member@example.org", "secret123")
	require.NoError(t, err)
	require.NoError(t, f.svc.SignOut(ctx, a.Token))
	require.NoError(t, f.svc.ExpireSession(ctx, b.Token))
	f.settle(t)

	mu.Lock()
	require.Len(t, events, 4)
	assert.Equal(t, EventSignedIn, events[0].Type)
	assert.Equal(t, a.Token, events[0].Session.Token)
	assert.Equal(t, EventSignedIn, events[1].Type)
	assert.Equal(t, EventSignedOut, events[2].Type)
	assert.Equal(t, EventExpired, events[3].Type)
	assert.Equal(t, b.Token, events[3].Session.Token)
	mu.Unlock()

	unsubscribe()
	_, err = f.svc.SignIn(ctx, "member@example.org", "secret123")
	require.NoError(t, err)
	f.settle(t)

	mu.Lock()
	assert.Len(t, events, 4)
	mu.Unlock()
}

func TestSetRole_UpdatesOpenSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.signUp(t, "member@example.org")

	sess, err := f.svc.SignIn(ctx, "member@example.org", "secret123")
	require.NoError(t, err)
	f.settle(t)

	require.NoError(t, f.svc.SetRole(ctx, "actor-1", p.ID, types.RoleAdmin))

	got, err := f.svc.Session(sess.Token)
	require.NoError(t, err)
	assert.True(t, got.IsAdmin())
	assert.Len(t, f.svc.ActiveSessions(), 1)

	logs, err := f.store.ListActivity(ctx, store.ActivityFilter{Action: types.ActionRoleChanged})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "admin", logs[0].Metadata["role"])
}

func TestClose(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.Close())
	require.NoError(t, f.svc.Close())

	assert.ErrorIs(t, f.svc.Settle(context.Background()), ErrClosed)
}

func TestEventType_String(t *testing.T) {
	assert.Equal(t, "signed_in", EventSignedIn.String())
	assert.Equal(t, "signed_out", EventSignedOut.String())
	assert.Equal(t, "expired", EventExpired.String())
	assert.Equal(t, "unknown", EventType(0).String())
}

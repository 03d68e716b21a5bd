package membership

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/member-portal/pkg/content"
	"github.com/Veraticus/member-portal/pkg/notification"
	"github.com/Veraticus/member-portal/pkg/store"
	"github.com/Veraticus/member-portal/pkg/testutil"
	"github.com/Veraticus/member-portal/pkg/types"
)

func newTestService(t *testing.T) (*Service, *store.Store, *testutil.MockNotifier) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "membership.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	catalog, err := content.Load()
	require.NoError(t, err)

	alerts := testutil.NewMockNotifier()
	return NewService(st, catalog, alerts), st, alerts
}

func validApplication() ApplicationForm {
	years := 4
	return ApplicationForm{
		FullName:        "  Fatma Ali Hassan ",
		Email:           "fatma@example.org",
		Phone:           "+255777123456",
		Profession:      "Social Worker",
		ExperienceYears: &years,
		Motivation:      "I want to grow my private practice with peer support.",
	}
}

func intPtr(n int) *int { return &n }

func TestApplicationForm_Validate(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*ApplicationForm)
		wantFields []string
	}{
		{name: "valid", mutate: func(*ApplicationForm) {}},
		{name: "optional fields empty", mutate: func(f *ApplicationForm) {
			f.Phone, f.Organization, f.ExperienceYears = "", "", nil
		}},
		{name: "short name", mutate: func(f *ApplicationForm) { f.FullName = "F" }, wantFields: []string{"full_name"}},
		{name: "long name", mutate: func(f *ApplicationForm) { f.FullName = strings.Repeat("a", 101) }, wantFields: []string{"full_name"}},
		{name: "bad email", mutate: func(f *ApplicationForm) { f.Email = "fatma" }, wantFields: []string{"email"}},
		{name: "short phone", mutate: func(f *ApplicationForm) { f.Phone = "12345" }, wantFields: []string{"phone"}},
		{name: "long phone", mutate: func(f *ApplicationForm) { f.Phone = strings.Repeat("1", 21) }, wantFields: []string{"phone"}},
		{name: "missing profession", mutate: func(f *ApplicationForm) { f.Profession = "" }, wantFields: []string{"profession"}},
		{name: "long organization", mutate: func(f *ApplicationForm) { f.Organization = strings.Repeat("o", 201) }, wantFields: []string{"organization"}},
		{name: "negative experience", mutate: func(f *ApplicationForm) { f.ExperienceYears = intPtr(-1) }, wantFields: []string{"experience_years"}},
		{name: "too much experience", mutate: func(f *ApplicationForm) { f.ExperienceYears = intPtr(51) }, wantFields: []string{"experience_years"}},
		{name: "boundary experience", mutate: func(f *ApplicationForm) { f.ExperienceYears = intPtr(50) }},
		{name: "short motivation", mutate: func(f *ApplicationForm) { f.Motivation = "Because." }, wantFields: []string{"motivation"}},
		{name: "whitespace motivation", mutate: func(f *ApplicationForm) { f.Motivation = "   short enough?      " }, wantFields: []string{"motivation"}},
		{name: "several", mutate: func(f *ApplicationForm) { f.FullName, f.Email = "", "" }, wantFields: []string{"full_name", "email"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validApplication()
			tt.mutate(&f)
			f.Normalize()

			err := f.Validate()
			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}

			var verrs types.ValidationErrors
			require.True(t, errors.As(err, &verrs), "got %v", err)
			assert.Len(t, verrs, len(tt.wantFields))
			for _, field := range tt.wantFields {
				assert.Contains(t, verrs, field)
			}
		})
	}
}

func TestContactForm_Validate(t *testing.T) {
	valid := ContactForm{Name: "Omar", Email: "omar@example.org", Message: "When is the next workshop?"}
	assert.NoError(t, valid.Validate())

	f := ContactForm{Name: "O", Email: "nope", Phone: "123", Message: "Hi"}
	var verrs types.ValidationErrors
	require.True(t, errors.As(f.Validate(), &verrs))
	assert.Len(t, verrs, 4)
}

func TestAdvertisementForm(t *testing.T) {
	f := AdvertisementForm{Title: "  ", Content: "Body"}
	var verrs types.ValidationErrors
	require.True(t, errors.As(f.Validate(), &verrs))
	assert.Contains(t, verrs, "title")

	f = AdvertisementForm{Title: " AGM ", Content: "Annual meeting", Priority: 3}
	require.NoError(t, f.Validate())
	ad := f.Advertisement()
	assert.Equal(t, "AGM", ad.Title)
	assert.True(t, ad.Active)
	assert.Equal(t, 3, ad.Priority)

	inactive := false
	f.Active = &inactive
	assert.False(t, f.Advertisement().Active)
}

func TestApply(t *testing.T) {
	svc, st, alerts := newTestService(t)
	ctx := context.Background()

	app, err := svc.Apply(ctx, "user-1", "Full Member", validApplication())
	require.NoError(t, err)
	assert.Equal(t, "Fatma Ali Hassan", app.FullName)
	assert.Equal(t, types.StatusPending, app.Status)

	apps, err := st.ListApplications(ctx, types.StatusPending)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "user-1", apps[0].UserID)
	assert.Equal(t, "Full Member", apps[0].Tier)

	logs, err := st.ListActivity(ctx, store.ActivityFilter{Action: types.ActionMembershipApplied})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, app.ID, logs[0].Metadata["application_id"])

	sent := alerts.GetNotifications()
	require.Len(t, sent, 1)
	assert.Equal(t, notification.KindMembershipApplied, sent[0].Kind)
	assert.Equal(t, "Fatma Ali Hassan applied for Full Member", sent[0].Message)
}

func TestApply_Rejected(t *testing.T) {
	svc, st, alerts := newTestService(t)
	ctx := context.Background()

	_, err := svc.Apply(ctx, "", "Honorary Member", validApplication())
	var verrs types.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Contains(t, verrs, "membership_type")

	bad := validApplication()
	bad.Motivation = "too short"
	_, err = svc.Apply(ctx, "", "Full Member", bad)
	require.True(t, errors.As(err, &verrs))

	apps, err := st.ListApplications(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, apps)
	assert.Empty(t, alerts.GetAttempts())
}

func TestApply_AlertFailureIgnored(t *testing.T) {
	svc, _, alerts := newTestService(t)
	alerts.SetError(errors.New("ntfy down"))

	_, err := svc.Apply(context.Background(), "", "Student Member", validApplication())
	assert.NoError(t, err)
	assert.Len(t, alerts.GetAttempts(), 1)
}

func TestContact(t *testing.T) {
	svc, st, alerts := newTestService(t)
	ctx := context.Background()

	msg, err := svc.Contact(ctx, ContactForm{
		Name:    " Asha ",
		Email:   "asha@example.org",
		Message: strings.Repeat("Tell me more about tiers. ", 10),
	})
	require.NoError(t, err)
	assert.Equal(t, "Asha", msg.Name)

	msgs, err := st.ListContactMessages(ctx, true)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	sent := alerts.GetNotifications()
	require.Len(t, sent, 1)
	assert.Equal(t, notification.KindContactSubmitted, sent[0].Kind)
	assert.True(t, strings.HasSuffix(sent[0].Message, "…"))

	_, err = svc.Contact(ctx, ContactForm{Name: "A"})
	assert.Error(t, err)
}

func TestReview(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	app, err := svc.Apply(ctx, "", "Associate Member", validApplication())
	require.NoError(t, err)

	require.NoError(t, svc.Review(ctx, "admin-1", app.ID, types.StatusApproved))
	apps, err := st.ListApplications(ctx, types.StatusApproved)
	require.NoError(t, err)
	assert.Len(t, apps, 1)

	assert.ErrorIs(t, svc.Review(ctx, "admin-1", "missing", types.StatusRejected), store.ErrNotFound)
}

func TestTiers(t *testing.T) {
	svc, _, _ := newTestService(t)
	assert.Len(t, svc.Tiers(), 4)
}

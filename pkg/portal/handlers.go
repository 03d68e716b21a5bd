package portal

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/Veraticus/member-portal/pkg/analytics"
	"github.com/Veraticus/member-portal/pkg/auth"
	"github.com/Veraticus/member-portal/pkg/idle"
	"github.com/Veraticus/member-portal/pkg/log"
	"github.com/Veraticus/member-portal/pkg/membership"
	"github.com/Veraticus/member-portal/pkg/monitor"
	"github.com/Veraticus/member-portal/pkg/store"
	"github.com/Veraticus/member-portal/pkg/types"
)

// overviewActivityLimit bounds the activity rows the admin overview reads.
const overviewActivityLimit = 1000

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		log.Error("health check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Public

func (s *Server) handleContent(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.content)
}

func (s *Server) handleAdvertisements(w http.ResponseWriter, r *http.Request) {
	ads, err := s.store.ListAdvertisements(r.Context(), true)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(ads))
}

func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	var form membership.ContactForm
	if err := decodeJSON(w, r, &form); err != nil {
		writeErr(w, r, err)
		return
	}
	msg, err := s.membership.Contact(r.Context(), form)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	profile, err := s.auth.SignUp(r.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInResponse struct {
	Token   string       `json:"token"`
	Session auth.Session `json:"session"`
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	sess, err := s.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	// Wait for the role lookup and the monitor to be armed so the client's
	// first authenticated request sees a complete session.
	if err := s.auth.Settle(r.Context()); err != nil {
		writeErr(w, r, err)
		return
	}
	if settled, err := s.auth.Session(sess.Token); err == nil {
		sess = settled
	}

	writeJSON(w, http.StatusOK, signInResponse{Token: sess.Token, Session: *sess})
}

// Signed in

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if err := s.auth.SignOut(r.Context(), sess.Token); err != nil {
		writeErr(w, r, err)
		return
	}
	s.toasts.Drain(sess.Token)
	w.WriteHeader(http.StatusNoContent)
}

type sessionResponse struct {
	Session auth.Session    `json:"session"`
	Monitor *monitor.Status `json:"monitor,omitempty"`
	Toasts  []toast         `json:"toasts,omitempty"`
}

func (s *Server) sessionResponse(sess *auth.Session) sessionResponse {
	resp := sessionResponse{
		Session: *sess,
		Toasts:  toToasts(s.toasts.Drain(sess.Token)),
	}
	if st, err := s.monitors.Status(sess.Token); err == nil {
		resp.Monitor = &st
	}
	return resp
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessionResponse(sessionFrom(r.Context())))
}

// activityRequest reports browser activity since the last report.
type activityRequest struct {
	Events     []string `json:"events"`
	Visibility string   `json:"visibility"`
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	var req activityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, r, err)
		return
	}

	signals := make([]idle.Signal, 0, len(req.Events))
	for _, name := range req.Events {
		sig, err := idle.ParseSignal(name)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		signals = append(signals, sig)
	}

	var visibility idle.Visibility
	if req.Visibility != "" {
		v, err := idle.ParseVisibility(req.Visibility)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		visibility = v
	}

	if visibility != 0 {
		if err := s.monitors.SetVisibility(sess.Token, visibility); err != nil {
			writeErr(w, r, err)
			return
		}
	}
	if len(signals) > 0 {
		if err := s.monitors.Deliver(sess.Token, signals); err != nil {
			writeErr(w, r, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, s.sessionResponse(sess))
}

type applyRequest struct {
	Tier string `json:"membership_type"`
	membership.ApplicationForm
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	var req applyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	app, err := s.membership.Apply(r.Context(), sess.UserID, req.Tier, req.ApplicationForm)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

type meResponse struct {
	Profile *types.Profile `json:"profile"`
	Role    types.Role     `json:"role,omitempty"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	profile, err := s.store.ProfileByID(r.Context(), sess.UserID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{Profile: profile, Role: sess.Role})
}

type updateMeRequest struct {
	FullName string `json:"full_name"`
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	var req updateMeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	name := strings.TrimSpace(req.FullName)
	verrs := types.ValidationErrors{}
	verrs.Length("full_name", name, 2, 100, "Name must be between 2 and 100 characters")
	if err := verrs.Err(); err != nil {
		writeErr(w, r, err)
		return
	}

	if err := s.store.UpdateProfile(r.Context(), sess.UserID, name); err != nil {
		writeErr(w, r, err)
		return
	}
	if err := s.store.LogActivity(r.Context(), &types.ActivityLog{
		UserID:      sess.UserID,
		Action:      types.ActionProfileUpdate,
		Description: "Updated profile",
	}); err != nil {
		log.Error("logging activity", "action", types.ActionProfileUpdate, "error", err)
	}

	s.handleMe(w, r)
}

// Admin

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	profiles, err := s.store.ListProfiles(ctx)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	activities, err := s.store.ListActivity(ctx, store.ActivityFilter{Limit: overviewActivityLimit})
	if err != nil {
		writeErr(w, r, err)
		return
	}
	applications, err := s.store.ListApplications(ctx, "")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	admins, err := s.store.CountAdmins(ctx)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, analytics.Compute(s.now(), profiles, activities, applications, admins))
}

type activityEntry struct {
	*types.ActivityLog
	Label string `json:"label"`
}

func (s *Server) handleActivityLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ActivityFilter{
		Action: q.Get("action"),
		UserID: q.Get("user"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	entries, err := s.store.ListActivity(r.Context(), filter)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	out := make([]activityEntry, len(entries))
	for i, e := range entries {
		out[i] = activityEntry{ActivityLog: e, Label: analytics.Label(e.Action)}
	}
	writeJSON(w, http.StatusOK, out)
}

type userEntry struct {
	*types.Profile
	Role types.Role `json:"role,omitempty"`
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.store.ListProfiles(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	out := make([]userEntry, len(profiles))
	for i, p := range profiles {
		role, err := s.store.RoleFor(r.Context(), p.ID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			writeErr(w, r, err)
			return
		}
		out[i] = userEntry{Profile: p, Role: role}
	}
	writeJSON(w, http.StatusOK, out)
}

type roleRequest struct {
	Role string `json:"role"`
}

func (s *Server) handleSetRole(w http.ResponseWriter, r *http.Request) {
	actor := sessionFrom(r.Context())
	userID := r.PathValue("id")

	var req roleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	role, err := types.ParseRole(req.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.store.ProfileByID(r.Context(), userID); err != nil {
		writeErr(w, r, err)
		return
	}
	if err := s.auth.SetRole(r.Context(), actor.UserID, userID, role); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleApplications(w http.ResponseWriter, r *http.Request) {
	var status types.ApplicationStatus
	if v := r.URL.Query().Get("status"); v != "" {
		parsed, err := types.ParseApplicationStatus(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		status = parsed
	}
	apps, err := s.store.ListApplications(r.Context(), status)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(apps))
}

type reviewRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	actor := sessionFrom(r.Context())

	var req reviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	status, err := types.ParseApplicationStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.membership.Review(r.Context(), actor.UserID, r.PathValue("id"), status); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdminAdvertisements(w http.ResponseWriter, r *http.Request) {
	ads, err := s.store.ListAdvertisements(r.Context(), false)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(ads))
}

func (s *Server) handleCreateAdvertisement(w http.ResponseWriter, r *http.Request) {
	actor := sessionFrom(r.Context())

	var form membership.AdvertisementForm
	if err := decodeJSON(w, r, &form); err != nil {
		writeErr(w, r, err)
		return
	}
	if err := form.Validate(); err != nil {
		writeErr(w, r, err)
		return
	}
	ad := form.Advertisement()
	ad.CreatedBy = actor.UserID
	if err := s.store.CreateAdvertisement(r.Context(), ad); err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ad)
}

func (s *Server) handleUpdateAdvertisement(w http.ResponseWriter, r *http.Request) {
	var form membership.AdvertisementForm
	if err := decodeJSON(w, r, &form); err != nil {
		writeErr(w, r, err)
		return
	}
	if err := form.Validate(); err != nil {
		writeErr(w, r, err)
		return
	}
	ad := form.Advertisement()
	ad.ID = r.PathValue("id")
	if err := s.store.UpdateAdvertisement(r.Context(), ad); err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ad)
}

func (s *Server) handleDeleteAdvertisement(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteAdvertisement(r.Context(), r.PathValue("id")); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleAdvertisement(w http.ResponseWriter, r *http.Request) {
	active, err := s.store.ToggleAdvertisement(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"is_active": active})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	unreadOnly := r.URL.Query().Get("unread") == "true"
	msgs, err := s.store.ListContactMessages(r.Context(), unreadOnly)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(msgs))
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	if err := s.store.MarkMessageRead(r.Context(), r.PathValue("id")); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Package analytics summarizes portal activity for administrators.
package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/Veraticus/member-portal/pkg/types"
)

// TopActionsLimit is the number of most frequent actions in an overview.
const TopActionsLimit = 5

// ActionCount is how often an activity action occurred.
type ActionCount struct {
	Action string `json:"action"`
	Label  string `json:"label"`
	Count  int    `json:"count"`
}

// Overview holds the admin dashboard figures.
type Overview struct {
	TotalMembers        int           `json:"total_members"`
	NewThisWeek         int           `json:"new_this_week"`
	NewThisMonth        int           `json:"new_this_month"`
	ActivitiesToday     int           `json:"activities_today"`
	PendingApplications int           `json:"pending_applications"`
	Admins              int           `json:"admins"`
	TopActions          []ActionCount `json:"top_actions"`
}

// Compute builds an overview as of now. The week and month are the trailing
// 7 and 30 days; "today" is now's calendar day in now's location.
func Compute(now time.Time, profiles []*types.Profile, activities []*types.ActivityLog, applications []*types.MembershipApplication, adminCount int) Overview {
	weekAgo := now.Add(-7 * 24 * time.Hour)
	monthAgo := now.Add(-30 * 24 * time.Hour)

	o := Overview{
		TotalMembers: len(profiles),
		Admins:       adminCount,
	}

	for _, p := range profiles {
		if !p.CreatedAt.Before(weekAgo) {
			o.NewThisWeek++
		}
		if !p.CreatedAt.Before(monthAgo) {
			o.NewThisMonth++
		}
	}

	counts := make(map[string]int)
	for _, a := range activities {
		if sameDay(a.CreatedAt.In(now.Location()), now) {
			o.ActivitiesToday++
		}
		counts[a.Action]++
	}

	for _, app := range applications {
		if app.Status == types.StatusPending {
			o.PendingApplications++
		}
	}

	o.TopActions = topActions(counts, TopActionsLimit)
	return o
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// topActions orders by count, then by action name so ties are stable.
func topActions(counts map[string]int, limit int) []ActionCount {
	out := make([]ActionCount, 0, len(counts))
	for action, n := range counts {
		out = append(out, ActionCount{Action: action, Label: Label(action), Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Action < out[j].Action
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

var labels = map[string]string{
	types.ActionUserRegistered:    "User Registered",
	types.ActionProfileUpdate:     "Profile Updated",
	types.ActionLogin:             "Login",
	types.ActionLogout:            "Logout",
	types.ActionMembershipApplied: "Membership Applied",
	types.ActionContactSubmitted:  "Contact Submitted",
	types.ActionSessionExpired:    "Session Expired",
	types.ActionRoleChanged:       "Role Changed",
	types.ActionApplicationReview: "Application Reviewed",
}

// Label returns the display name for an activity action. Unknown actions
// have their underscores replaced by spaces.
func Label(action string) string {
	if l, ok := labels[action]; ok {
		return l
	}
	return strings.ReplaceAll(action, "_", " ")
}

package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/member-portal/pkg/analytics"
	"github.com/Veraticus/member-portal/pkg/store"
	"github.com/Veraticus/member-portal/pkg/types"
)

const timeLayout = "2006-01-02 15:04"

func newUsersCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List registered members and their roles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := opts.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			profiles, err := st.ListProfiles(ctx)
			if err != nil {
				return err
			}

			type user struct {
				*types.Profile
				Role types.Role `json:"role,omitempty"`
			}
			users := make([]user, len(profiles))
			for i, p := range profiles {
				role, err := st.RoleFor(ctx, p.ID)
				if err != nil && !errors.Is(err, store.ErrNotFound) {
					return err
				}
				users[i] = user{Profile: p, Role: role}
			}

			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), users)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "EMAIL\tNAME\tROLE\tJOINED")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.Email, u.FullName, u.Role, u.CreatedAt.Local().Format(timeLayout))
			}
			return w.Flush()
		},
	}
}

func newRoleCmd(opts *options, use string, role types.Role) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <email>",
		Short: fmt.Sprintf("Give a member the %s role", role),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			p, err := st.ProfileByEmail(ctx, args[0])
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no member with email %s", args[0])
			}
			if err != nil {
				return err
			}

			if err := st.SetRole(ctx, p.ID, role); err != nil {
				return err
			}
			if err := st.LogActivity(ctx, &types.ActivityLog{
				UserID:      p.ID,
				Action:      types.ActionRoleChanged,
				Description: "Role changed from the command line",
				Metadata:    map[string]string{"user_id": p.ID, "role": string(role)},
			}); err != nil {
				return err
			}

			cmd.Printf("%s is now %s\n", p.Email, role)
			return nil
		},
	}
}

func newApplicationsCmd(opts *options) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "applications",
		Short: "List membership applications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var filter types.ApplicationStatus
			if status != "" {
				parsed, err := types.ParseApplicationStatus(status)
				if err != nil {
					return err
				}
				filter = parsed
			}

			st, err := opts.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			apps, err := st.ListApplications(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), apps)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTIER\tSTATUS\tSUBMITTED")
			for _, a := range apps {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", a.ID, a.FullName, a.Tier, a.Status, a.CreatedAt.Local().Format(timeLayout))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only show pending, approved or rejected applications")
	return cmd
}

func newActivityCmd(opts *options) *cobra.Command {
	var filter store.ActivityFilter

	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show the activity log, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := opts.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			entries, err := st.ListActivity(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), entries)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "WHEN\tACTION\tUSER\tDESCRIPTION")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.CreatedAt.Local().Format(time.DateTime), analytics.Label(e.Action), e.UserID, e.Description)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&filter.Action, "action", "", "only show this action")
	cmd.Flags().StringVar(&filter.UserID, "user", "", "only show this user's entries")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", store.DefaultActivityLimit, "maximum entries to show")
	return cmd
}

func newMessagesCmd(opts *options) *cobra.Command {
	var unread bool

	cmd := &cobra.Command{
		Use:   "messages",
		Short: "List contact form messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := opts.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			msgs, err := st.ListContactMessages(cmd.Context(), unread)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), msgs)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RECEIVED\tFROM\tEMAIL\tREAD\tMESSAGE")
			for _, m := range msgs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", m.CreatedAt.Local().Format(timeLayout), m.Name, m.Email, m.Read, firstLine(m.Message, 60))
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&unread, "unread", false, "only show unread messages")
	return cmd
}

// firstLine returns the message's first line, cut to n runes.
func firstLine(s string, n int) string {
	for i, r := range s {
		if r == '\n' {
			s = s[:i]
			break
		}
	}
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "…"
	}
	return s
}

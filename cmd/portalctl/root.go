package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Veraticus/member-portal/pkg/config"
	"github.com/Veraticus/member-portal/pkg/log"
	"github.com/Veraticus/member-portal/pkg/store"
)

type options struct {
	configPath string
	dbPath     string
	verbose    bool
	jsonOut    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "portalctl",
		Short: "Administer the member portal database",
		Long: `portalctl reads and changes the member portal's SQLite database
without going through the HTTP API. Use it to bootstrap the first admin
account and to inspect members, applications and activity.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := log.Init(log.Options{Verbose: opts.verbose, Stderr: cmd.ErrOrStderr()}); err != nil {
				cmd.PrintErrf("Warning: failed to initialize logging: %v\n", err)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file")
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "path to the SQLite database (overrides config)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	root.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "output in JSON format")

	root.AddCommand(
		newUsersCmd(opts),
		newRoleCmd(opts, "promote", "admin"),
		newRoleCmd(opts, "demote", "user"),
		newApplicationsCmd(opts),
		newActivityCmd(opts),
		newMessagesCmd(opts),
	)
	return root
}

// openStore resolves the database path from flags and configuration.
func (o *options) openStore() (*store.Store, error) {
	path := o.dbPath
	if path == "" {
		var (
			cfg *config.Config
			err error
		)
		if o.configPath != "" {
			cfg, err = config.LoadFrom(o.configPath)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return nil, err
		}
		path = cfg.DatabasePath
	}

	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	log.Debug("opened database", "path", path)
	return st, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

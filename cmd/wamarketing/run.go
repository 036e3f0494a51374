package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/LeventeLantos/sheet-messaging/internal/config"
)

func newRunCmd(root *rootOptions) *cobra.Command {
	var skipContacts bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one pass: sync contacts, then send every unsent campaign row",
		Long: "run performs a single pass and exits. It exits non-zero when configuration, " +
			"credentials, the spreadsheet or a required table cannot be loaded. Per-row " +
			"failures are logged and do not change the exit code.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadAll()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if _, err := setupLogging(os.Stderr, cfg.Log.Level, root.logFormat, "text"); err != nil {
				return err
			}
			if skipContacts {
				disabled := false
				cfg.Campaigns.Contacts.Enabled = &disabled
				if len(cfg.Campaigns.Tables) == 0 {
					return fmt.Errorf("--skip-contacts leaves nothing to do")
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runOnce(ctx, cfg)
		},
	}

	cmd.Flags().BoolVar(&skipContacts, "skip-contacts", false, "skip the contacts table and only dispatch campaign tables")
	return cmd
}

func runOnce(ctx context.Context, cfg *config.Config) error {
	a, err := buildApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	rep, err := a.runner.Run(ctx)
	if err != nil {
		return err
	}

	for _, t := range rep.Tables {
		fmt.Fprintf(os.Stdout, "%-12s rows=%d sent=%d already_sent=%d contact_missing=%d failed=%d\n",
			t.Table, t.Rows, t.Sent, t.AlreadySent, t.ContactMissing, t.Failed)
	}
	return nil
}

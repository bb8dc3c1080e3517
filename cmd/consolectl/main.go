package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/catalog-console/catalog-console/cmd/consolectl/cli"
	"github.com/catalog-console/catalog-console/internal/app"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "consolectl",
		Short:         "Operational helpers for the catalog console",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(hashPasswordCmd(), usersCmd(), jobsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func hashPasswordCmd() *cobra.Command {
	var (
		cost     int
		username string
		roles    []string
	)
	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Hash a password read from stdin for use in AUTH_USERS",
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read password: %w", err)
			}
			hash, err := cli.HashPassword(strings.TrimRight(line, "\r\n"), cost)
			if err != nil {
				return err
			}
			if username == "" {
				fmt.Fprintln(cmd.OutOrStdout(), hash)
				return nil
			}
			entry, err := cli.UserEntry(username, hash, roles)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), entry)
			return nil
		},
	}
	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	cmd.Flags().StringVarP(&username, "user", "u", "", "print a full AUTH_USERS entry for this user")
	cmd.Flags().StringSliceVarP(&roles, "role", "r", nil, "roles for the entry (repeatable)")
	return cmd
}

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Inspect static auth accounts",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate AUTH_USERS and list the accounts it defines",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			return cli.CheckUsers(cfg.AuthUsers, cmd.OutOrStdout())
		},
	})
	return cmd
}

func jobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and trigger background jobs",
	}

	var asJSON bool
	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show counters for the default queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			jobsCLI, err := newJobsCLI()
			if err != nil {
				return err
			}
			defer jobsCLI.Close()
			s, err := jobsCLI.InspectQueue()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(s)
			}
			fmt.Fprintf(out, "queue:     %s\n", s.Queue)
			fmt.Fprintf(out, "pending:   %d\n", s.Pending)
			fmt.Fprintf(out, "active:    %d\n", s.Active)
			fmt.Fprintf(out, "retry:     %d\n", s.Retry)
			fmt.Fprintf(out, "archived:  %d\n", s.Archived)
			fmt.Fprintf(out, "processed: %d\n", s.Processed)
			fmt.Fprintf(out, "failed:    %d\n", s.Failed)
			return nil
		},
	}
	stats.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	var days int
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Enqueue an audit prune now",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			if days == 0 {
				days = cfg.AuditRetentionDays
			}
			jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
			if err != nil {
				return err
			}
			defer jobsCLI.Close()
			info, err := jobsCLI.TriggerPrune(cmd.Context(), days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s (%s)\n", info.Type, info.ID)
			return nil
		},
	}
	prune.Flags().IntVar(&days, "days", 0, "retention in days (defaults to AUDIT_RETENTION_DAYS)")

	cmd.AddCommand(stats, prune)
	return cmd
}

func newJobsCLI() (*cli.JobsCLI, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, err
	}
	return cli.NewJobsCLI(cfg.RedisAddr)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"taskbuddy/internal/app"
	"taskbuddy/internal/config"
	"taskbuddy/internal/middleware"
	"taskbuddy/internal/timeparse"
)

func configPath(cmd *cobra.Command) string {
	p, _ := cmd.Flags().GetString("config")
	return p
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the reminder scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(configPath(cmd))
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one reminder sweep and print its report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath(cmd))
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, cfg.Scheduler.SweepTimeout)
			defer cancel()

			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			rep, err := a.Reminders.Sweep(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		},
	}
}

func parseCmd() *cobra.Command {
	var (
		zone   string
		now    string
		pmHour int
	)
	cmd := &cobra.Command{
		Use:   "parse [phrase]",
		Short: "Resolve a time phrase to a UTC instant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := time.Now()
			if now != "" {
				t, err := time.Parse(time.RFC3339, now)
				if err != nil {
					return fmt.Errorf("--now: %w", err)
				}
				ref = t
			}
			at, err := timeparse.New(pmHour).Resolve(args[0], ref, zone)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, timeparse.FormatInstant(at))
			fmt.Fprintf(out, "%s (%s)\n", at.In(timeparse.LoadZone(zone)).Format("Mon Jan 2, 2006 3:04 PM MST"), zone)
			return nil
		},
	}
	cmd.Flags().StringVarP(&zone, "zone", "z", "UTC", "IANA time zone of the speaker")
	cmd.Flags().StringVar(&now, "now", "", "reference instant, RFC 3339 (default: current time)")
	cmd.Flags().IntVar(&pmHour, "pm-below", timeparse.DefaultPMBelowHour, "a bare hour below this is read as PM")
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		user string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign an API token for a user id with auth.jwt_secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath(cmd))
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("auth.jwt_secret is not set")
			}
			tok, err := middleware.NewToken([]byte(cfg.Auth.JWTSecret), user, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "user id to put in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"acta-go/internal/app"
	"acta-go/internal/config"
	"acta-go/internal/model"
)

func main() {
	ctx, stop := signalContext()
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "acta:", app.Describe(err))
		os.Exit(1)
	}
}

// loadConfig reads .env files, the config file and environment overrides.
func loadConfig() (*config.Config, app.Defaults, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, defaults, fmt.Errorf("getting defaults: %w", err)
	}
	if err := config.LoadDotEnv(defaults.EnvFiles...); err != nil {
		return nil, defaults, err
	}

	cfg, err := config.ReadFromFile(defaults.ConfigPath)
	if err != nil {
		return nil, defaults, fmt.Errorf("reading config (run: acta config init): %w", err)
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, defaults, nil
}

// newApp reads the config and creates an ActaApp. The caller must defer a.Close().
// operation identifies the CLI command being run (e.g. "agenda", "archive run").
func newApp(cmd *cobra.Command, operation string, args []string) (*app.ActaApp, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}

	var opts app.Options
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		opts.Echo = os.Stderr
	}

	a, err := app.NewActaApp(cmd.Context(), cfg, operation, strings.Join(args, " "), opts)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// login starts a session from --as or the configured inspector.
func login(cmd *cobra.Command, a *app.ActaApp) error {
	as, _ := cmd.Flags().GetString("as")
	if err := a.Login(cmd.Context(), as); err != nil {
		return err
	}
	if msg := a.Store().DataError(); msg != "" {
		fmt.Fprintln(os.Stderr, "aviso:", msg)
	}
	return nil
}

var rootCmd = &cobra.Command{
	Use:           "acta",
	Short:         "Apartment handover inspections",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		deviceID := uuid.New().String()
		cfg := config.NewConfig(deviceID, defaults.BaseDir)
		cfg.Backend.WebAppURL, _ = cmd.Flags().GetString("webapp-url")
		cfg.Backend.APIKey, _ = cmd.Flags().GetString("api-key")
		cfg.Inspector, _ = cmd.Flags().GetString("inspector")

		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Device ID: %s\n", deviceID)
		fmt.Printf("Base Dir:  %s\n", defaults.BaseDir)
		if cfg.Backend.WebAppURL == "" || cfg.Backend.APIKey == "" {
			fmt.Printf("Set backend.webapp_url and backend.api_key (or %s and %s) before use.\n", config.EnvWebAppURL, config.EnvAPIKey)
		}
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, defaults, err := loadConfig()
		if err != nil {
			return err
		}

		key := "(not set)"
		if cfg.Backend.APIKey != "" {
			key = "***"
		}
		fmt.Printf("Configuration from %s:\n\n", defaults.ConfigPath)
		fmt.Printf("Device ID:  %s\n", cfg.DeviceID)
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Timezone:   %s\n", cfg.Timezone)
		fmt.Printf("Inspector:  %s\n", cfg.Inspector)
		fmt.Printf("Web app:    %s\n", cfg.Backend.WebAppURL)
		fmt.Printf("API key:    %s\n", key)
		fmt.Printf("Journal:    %s %s\n", cfg.Database.Type, cfg.Database.DataDir)
		fmt.Printf("Vault:      %s (%s)\n", cfg.Vault.Name, cfg.Vault.Type)
		fmt.Printf("Watch:      %s\n", cfg.Watch.Schedule)

		if err := cfg.Validate(); err != nil {
			fmt.Printf("\n%s\n", app.Describe(err))
		}
		return nil
	},
}

// agenda command
var agendaCmd = &cobra.Command{
	Use:   "agenda",
	Short: "List today's visits",
	RunE: func(cmd *cobra.Command, args []string) error {
		upcoming, _ := cmd.Flags().GetBool("upcoming")
		days, _ := cmd.Flags().GetInt("days")

		a, err := newApp(cmd, "agenda", args)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := login(cmd, a); err != nil {
			return err
		}

		units := a.Store().ScheduledToday()
		if upcoming {
			units = a.Store().Upcoming(days)
		}
		if len(units) == 0 {
			fmt.Println("No visits scheduled.")
			return nil
		}
		for _, u := range units {
			fmt.Println(a.UnitLine(u))
		}
		return nil
	},
}

// health command
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the backend connection",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "health", args)
		if err != nil {
			return err
		}
		defer a.Close()

		status := a.Health(cmd.Context())
		fmt.Println(status)
		if status != model.ConnectionConnected {
			if call, ok := a.LastCall(); ok && call.Error != "" {
				fmt.Println(call.Error)
			}
			return fmt.Errorf("backend unreachable")
		}
		return nil
	},
}

// shell command
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Run an interactive inspection session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "shell", args)
		if err != nil {
			return err
		}
		defer a.Close()

		if as, _ := cmd.Flags().GetString("as"); as != "" || a.Config().Inspector != "" {
			if err := login(cmd, a); err != nil {
				return err
			}
		}
		return app.NewShell(a, os.Stdin, os.Stdout).Run(cmd.Context())
	},
}

// watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll the agenda and archive actas on a schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "watch", args)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := login(cmd, a); err != nil {
			return err
		}
		fmt.Println(a.Tick(cmd.Context()))
		return a.Watch(cmd.Context(), os.Stdout)
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View journaled operations",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd, "history", args)
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.History(cmd.Context(), limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt.Valid {
				d := op.FinishedAt.Time.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-15s  %s  %-8s  %-10s  %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
				op.Parameters,
			)
		}
		return nil
	},
}

// diag command
var diagCmd = &cobra.Command{
	Use:   "diag",
	Short: "Show backend call diagnostics",
	RunE: func(cmd *cobra.Command, args []string) error {
		calls, _ := cmd.Flags().GetInt("calls")
		metrics, _ := cmd.Flags().GetBool("metrics")

		a, err := newApp(cmd, "diag", args)
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Println("health:", a.Health(cmd.Context()))

		recent, err := a.RecentCalls(cmd.Context(), calls)
		if err != nil {
			return err
		}
		for _, c := range recent {
			status := fmt.Sprint(c.Status)
			if c.Error != "" {
				status = c.Error
			}
			fmt.Printf("%s  %-6s %-16s #%d  %6s  %s\n",
				c.At.Format("2006-01-02 15:04:05"),
				c.Method,
				c.Action,
				c.Attempt,
				c.Duration.Truncate(time.Millisecond),
				status,
			)
		}

		if metrics {
			fmt.Println()
			return a.WriteMetrics(os.Stdout)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Echo log lines to stderr")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configInitCmd.Flags().String("webapp-url", "", "Scheduling web app URL")
	configInitCmd.Flags().String("api-key", "", "Web app API key")
	configInitCmd.Flags().String("inspector", "", "Default login (RUT or email)")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(agendaCmd)
	agendaCmd.Flags().String("as", "", "Log in as this RUT or email")
	agendaCmd.Flags().BoolP("upcoming", "u", false, "List upcoming visits instead of today's")
	agendaCmd.Flags().IntP("days", "d", 0, "Upcoming window in days (default from config)")
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(shellCmd)
	shellCmd.Flags().String("as", "", "Log in as this RUT or email")
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("as", "", "Log in as this RUT or email")
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
	rootCmd.AddCommand(diagCmd)
	diagCmd.Flags().IntP("calls", "n", 10, "Number of recent calls to show")
	diagCmd.Flags().Bool("metrics", false, "Print client metrics")
}

// signalContext cancels on interrupt so watch and shell stop cleanly.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

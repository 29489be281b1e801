package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/msageha/vaultd/internal/approval"
	"github.com/msageha/vaultd/internal/journal"
	"github.com/msageha/vaultd/internal/lock"
	"github.com/msageha/vaultd/internal/logging"
	"github.com/msageha/vaultd/internal/model"
	"github.com/msageha/vaultd/internal/orchestrator"
	"github.com/msageha/vaultd/internal/setup"
	"github.com/msageha/vaultd/internal/status"
	"github.com/msageha/vaultd/internal/vault"
)

const version = "0.3.0"

var (
	flagVault    string
	flagConfig   string
	flagLogLevel string
)

func main() {
	root := &cobra.Command{
		Use:           "vaultd",
		Short:         "Folder-based human-in-the-loop workflow daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagVault, "vault", "", "vault root directory (overrides config)")
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "config file path (default <vault>/vault.yaml)")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newDaemonCmd(),
		newCycleCmd(),
		newSetupCmd(),
		newStatusCmd(),
		newApproveRequestCmd(),
		newScheduleCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "vaultd: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves the config file and applies CLI flag overrides.
func loadConfig() (model.Config, error) {
	cfgPath := flagConfig
	if cfgPath == "" {
		base := flagVault
		if base == "" {
			base = os.Getenv("VAULT_PATH")
		}
		if base == "" {
			base = "./vault"
		}
		cfgPath = filepath.Join(base, setup.ConfigName)
	}

	cfg, err := model.Load(cfgPath)
	if err != nil {
		return model.Config{}, err
	}
	if flagVault != "" {
		cfg.Vault.Path = flagVault
	}
	if flagLogLevel != "" {
		cfg.Logging.Level = flagLogLevel
	}
	return cfg, nil
}

func newDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the orchestrator until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			logFile := cfg.Logging.File
			if logFile == "" {
				logFile = filepath.Join(cfg.Vault.Path, "Logs", "vaultd.log")
			}
			log, closeLog, err := logging.New(cfg.Logging.Level, logFile)
			if err != nil {
				return err
			}
			defer closeLog()

			if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
				return fmt.Errorf("create vault root: %w", err)
			}
			fl := lock.NewFileLock(filepath.Join(cfg.Vault.Path, ".vaultd.lock"))
			if err := fl.TryLock(); err != nil {
				return err
			}
			defer fl.Unlock()

			orch, err := orchestrator.New(cfg, log)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 2)
			signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
			go func() {
				sig := <-sigCh
				log.Info().Str("signal", sig.String()).Msg("shutdown requested")
				cancel()
				// Second signal forces exit.
				<-sigCh
				log.Warn().Msg("received second signal, forcing exit")
				os.Exit(1)
			}()

			orch.Run(ctx)
			return nil
		},
	}
}

func newCycleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cycle",
		Short: "Run a single processing cycle and exit (for cron)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			// Watchers stay off for a one-shot cycle.
			cfg.Watchers = model.WatchersConfig{}

			log, closeLog, err := logging.New(cfg.Logging.Level, "")
			if err != nil {
				return err
			}
			defer closeLog()

			orch, err := orchestrator.New(cfg, log)
			if err != nil {
				return err
			}

			summary := orch.RunCycle()
			if summary.Error != "" {
				return fmt.Errorf("cycle failed: %s", summary.Error)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cycle complete: %d pending, %d approved processed\n",
				summary.PendingItems, summary.ApprovedProcessed)
			return nil
		},
	}
}

func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup [dir]",
		Short: "Initialize a vault directory tree",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := flagVault
			if len(args) == 1 {
				root = args[0]
			}
			if root == "" {
				root = "./vault"
			}
			if err := setup.Run(root); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "vault initialized at %s\n", root)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show vault folder counts and today's activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			snap, err := status.Collect(cfg.Vault.Path)
			if err != nil {
				return err
			}
			return status.Write(cmd.OutOrStdout(), snap, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func newApproveRequestCmd() *cobra.Command {
	var (
		description string
		priority    string
		details     []string
	)
	cmd := &cobra.Command{
		Use:   "approve-request <action>",
		Short: "File an approval request for an action",
		Long: `File an approval request into Pending_Approval for a human decision.
Actions in the auto-approve category are journaled and pass without a
request file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, closeLog, err := logging.New(cfg.Logging.Level, "")
			if err != nil {
				return err
			}
			defer closeLog()

			store := vault.New(cfg.Vault.Path)
			if err := store.Ensure(); err != nil {
				return err
			}
			jw, err := journal.NewWriter(store.Dir(vault.Logs), log)
			if err != nil {
				return err
			}
			mgr, err := approval.NewManager(store, jw, log,
				time.Duration(cfg.Approval.ExpiresHours)*time.Hour)
			if err != nil {
				return err
			}

			var ds []approval.Detail
			for _, d := range details {
				k, v, ok := strings.Cut(d, "=")
				if !ok {
					return fmt.Errorf("invalid --detail %q, want key=value", d)
				}
				ds = append(ds, approval.Detail{Key: k, Value: v})
			}

			path, err := mgr.CreateRequest(args[0], description, ds, priority)
			if err != nil {
				return err
			}
			if path == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "action %q auto-approved\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "approval request created: %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "what this action will do")
	cmd.Flags().StringVar(&priority, "priority", "medium", "request priority: high, medium, low")
	cmd.Flags().StringArrayVar(&details, "detail", nil, "detail as key=value (repeatable)")
	return cmd
}

func newScheduleCmd() *cobra.Command {
	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Scheduling helpers",
	}
	scheduleCmd.AddCommand(&cobra.Command{
		Use:   "export",
		Short: "Print crontab entries for running vaultd externally",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			bin, err := os.Executable()
			if err != nil {
				bin = "vaultd"
			}
			fmt.Fprintf(cmd.OutOrStdout(), `# vaultd - scheduled tasks
# Add these lines to your crontab (crontab -e)

# Run a processing cycle every 5 minutes
*/5 * * * * %[1]s cycle --vault %[2]s >> %[2]s/Logs/cron.log 2>&1

# Morning briefing at %02[3]d:%02[4]d UTC (also runs inside the daemon)
%[4]d %[3]d * * * %[1]s cycle --vault %[2]s >> %[2]s/Logs/cron.log 2>&1
`, bin, cfg.Vault.Path, cfg.Scheduler.BriefingHour, cfg.Scheduler.BriefingMinute)
			return nil
		},
	})
	return scheduleCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the vaultd version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vaultd %s\n", version)
		},
	}
}

// File: cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pagepilot-ai/pagepilot/internal/config"
	"github.com/pagepilot-ai/pagepilot/internal/observability"
)

// contextKeyType is unexported so no other package can collide with the keys
// stored on the command context.
type contextKeyType string

const configKey contextKeyType = "config"

// osExit is swapped out in tests.
var osExit = os.Exit

// NewRootCommand builds a pristine root command with a fresh viper instance.
// Every invocation gets its own configuration state, so repeated executions
// (and tests) never leak flags or config between each other.
func NewRootCommand() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "pagepilot",
		Short: "PagePilot drives real browser sessions from natural-language instructions.",
		Long: `PagePilot opens Chrome sessions over the DevTools protocol and lets a
language model act on, extract from, observe and autonomously work through
real web pages. Work items are described declaratively and executed as a
batch, producing one structured record per item.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(v, cfgFile); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				// Fall back to a plain console logger so the failure is visible.
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "pagepilot"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Debug("Starting PagePilot", zap.String("version", Version))

			// Subcommands read the validated config back off the context.
			ctx := context.WithValue(cmd.Context(), configKey, cfg)
			cmd.SetContext(ctx)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./pagepilot.yaml, then ~/.pagepilot/pagepilot.yaml)")

	rootCmd.AddCommand(newRunCmd(runEngineFactory, runStoreProvider))
	rootCmd.AddCommand(newRecordsCmd(runStoreProvider))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute runs the root command under a signal-aware context. SIGINT and
// SIGTERM cancel the context, which the batch loop translates into error
// records rather than a hard abort.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand()
	err := root.ExecuteContext(ctx)
	observability.Sync()
	if err != nil {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command execution failed", zap.Error(err))
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		osExit(1)
	}
}

// initializeConfig points the viper instance at the config file and wires the
// environment. An explicit --config path must exist; discovered locations are
// optional.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".pagepilot"))
		}
		v.SetConfigName("pagepilot")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("PAGEPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			// No config file anywhere on the search path; defaults and
			// environment variables carry the run.
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// configFromContext retrieves the config placed on the context by the root
// command's PersistentPreRunE.
func configFromContext(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("configuration missing from command context")
	}
	return cfg, nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the formflow CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/formflow/internal/apierr"
	"github.com/pdiddy/formflow/internal/logging"
	"github.com/pdiddy/formflow/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// logger is built from --log-level and --log-format before any
	// subcommand runs.
	logger = logging.Discard()

	// loadedSecrets holds credentials loaded from the secrets directory.
	loadedSecrets map[string]string
)

// rootCmd is the base command for the formflow CLI.
var rootCmd = &cobra.Command{
	Use:   "formflow",
	Short: "Read and fill PDF form fields through a remote document service",
	Long: `formflow drives form-data jobs against a remote PDF service. It
authenticates, uploads a source document once, submits one job per item,
polls each job until it finishes and saves the results.

  extract  read the form field values of a PDF
  inject   fill a PDF form once per record and save every filled copy
  history  list past runs

Credentials come from flags, formflow.yaml, FORMFLOW_CLIENT_ID /
FORMFLOW_CLIENT_SECRET (or CLIENT_ID / CLIENT_SECRET), a .env file or
files in .secrets/.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(os.Stderr, viper.GetString("log_level"), logging.Format(viper.GetString("log_format")))
		if err != nil {
			return apierr.Configuration("configure logging", "%v", err)
		}
		logger = l

		s, err := secrets.Load(viper.GetString("secrets_dir"), &logger)
		if err != nil {
			return apierr.Configuration("load secrets", "%v", err)
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug().Strs("keys", keys).Msg("secrets.loaded")
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default: ./formflow.yaml or ~/.config/formflow/formflow.yaml)")
	flags.String("client-id", "", "service client id")
	flags.String("auth-url", "", "token endpoint base URL")
	flags.String("assets-url", "", "assets endpoint base URL")
	flags.String("operations-url", "", "operations endpoint base URL")
	flags.Duration("timeout", defaultTimeout, "HTTP request timeout")
	flags.Duration("poll-interval", defaultPollInterval, "wait between job status requests")
	flags.Duration("poll-timeout", defaultPollTimeout, "give up on a job after this long (0 waits forever)")
	flags.Int("poll-max-attempts", 0, "give up on a job after this many status requests (0 means no limit)")
	flags.String("history-dir", ".formflow", "directory holding the run history database")
	flags.Bool("no-history", false, "do not record this run in the history database")
	flags.String("secrets-dir", secrets.DefaultDir, "directory of credential files")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", string(logging.FormatJSON), "log format: json or console")

	for _, name := range []string{
		"client-id", "auth-url", "assets-url", "operations-url",
		"timeout", "poll-interval", "poll-timeout", "poll-max-attempts",
		"history-dir", "no-history", "secrets-dir", "log-level", "log-format",
	} {
		_ = viper.BindPFlag(configKey(name), flags.Lookup(name))
	}
}

// configKey maps a flag name to its config file and environment key.
func configKey(flag string) string {
	return strings.ReplaceAll(flag, "-", "_")
}

func initConfig() {
	// .env only fills variables the environment does not already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "warning: reading .env:", err)
	}

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("formflow")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "formflow"))
		}
	}

	viper.SetEnvPrefix("FORMFLOW")
	viper.AutomaticEnv()
	_ = viper.BindEnv("client_id", "FORMFLOW_CLIENT_ID", "CLIENT_ID")
	_ = viper.BindEnv("client_secret", "FORMFLOW_CLIENT_SECRET", "CLIENT_SECRET")

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		reportError(err)
	}
	os.Exit(apierr.ExitCode(err))
}

// reportError prints err and, for service-side failures, the payload the
// service returned.
func reportError(err error) {
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "cancelled")
		return
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	if payload := apierr.PayloadOf(err); len(payload) > 0 {
		fmt.Fprintln(os.Stderr, "service response:", strings.TrimSpace(string(payload)))
	}
}

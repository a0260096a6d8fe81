package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aristath/aegis-kr/internal/config"
	"github.com/aristath/aegis-kr/internal/domain"
	"github.com/aristath/aegis-kr/pkg/logger"
)

// Exit codes per the documented operator contract: 0 success, 1 generic
// error, 2 invalid input, 3 an external dependency was unavailable.
const (
	exitOK            = 0
	exitGeneric       = 1
	exitInvalidInput  = 2
	exitExternalUnavl = 3
)

var (
	flagLogLevel string
	flagPort     int
	flagDataDir  string

	app *App
)

var rootCmd = &cobra.Command{
	Use:   "aegis",
	Short: "AEGIS: tiered data acquisition and multi-signal decision engine for the Korean equity market",
	Long: `AEGIS fuses a four-tier data-acquisition pipeline (official libraries,
documented APIs, scraped endpoints, headless-browser capture) with a seven-
analyser fusion engine that screens, scores, and tracks buy/sell
recommendations against their own subsequent performance.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().IntVar(&flagPort, "port", 0, "status HTTP server port")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "base directory for the universe/cache/ledger databases")

	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port"))
	_ = viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	viper.SetEnvPrefix("aegis")
	viper.AutomaticEnv()

	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(tradeCmd)
	rootCmd.AddCommand(analyseCmd)
	rootCmd.AddCommand(recommendCmd)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(autoCmd)
}

// setup resolves CLI flags into the process environment ahead of
// config.Load, then builds the composition root once for whichever verb
// was invoked. Flags take precedence over an already-set environment
// variable; viper's role here is narrow by design — the rest of AEGIS's
// configuration stays on the env-var/godotenv path config.Load already
// implements.
func setup(cmd *cobra.Command, args []string) error {
	if v := viper.GetString("log_level"); v != "" {
		_ = os.Setenv("LOG_LEVEL", v)
	}
	if v := viper.GetInt("port"); v != 0 {
		_ = os.Setenv("PORT", fmt.Sprintf("%d", v))
	}
	if v := viper.GetString("data_dir"); v != "" {
		_ = os.Setenv("DATA_DIR", v)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: true})

	built, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	app = built
	return nil
}

// exitCode maps a returned error to the documented process exit code,
// inspecting domain error taxonomies where present.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}

	var perr *domain.PersistenceError
	if errors.As(err, &perr) {
		if perr.Kind == domain.PersistenceUnavailable {
			return exitExternalUnavl
		}
		return exitGeneric
	}

	var ferr *domain.FetchError
	if errors.As(err, &ferr) {
		switch ferr.Kind {
		case domain.FetchTransient, domain.FetchBlocked, domain.FetchAuth:
			return exitExternalUnavl
		case domain.FetchNotFound, domain.FetchParse:
			return exitInvalidInput
		}
		return exitGeneric
	}

	var inputErr *invalidInputError
	if errors.As(err, &inputErr) {
		return exitInvalidInput
	}

	return exitGeneric
}

// invalidInputError marks a CLI-level argument problem (bad ticker code,
// unparseable trade text) distinctly from an internal failure.
type invalidInputError struct{ msg string }

func (e *invalidInputError) Error() string { return e.msg }

func newInvalidInputError(format string, a ...any) error {
	return &invalidInputError{msg: fmt.Sprintf(format, a...)}
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	defer func() {
		if app != nil {
			app.Close()
		}
	}()
	err := rootCmd.Execute()
	return exitCode(err)
}

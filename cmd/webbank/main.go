// Command webbank logs into a French retail bank portal and prints
// accounts, history, pending card operations and investments, or makes a
// transfer between own accounts.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/grez-lucas/webbank/internal/config"
	"github.com/grez-lucas/webbank/internal/logging"
	"github.com/grez-lucas/webbank/internal/scraper"
	"github.com/grez-lucas/webbank/internal/scraper/bank"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	configPath string
	envFile    string
	verbose    bool

	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
)

var rootCmd = &cobra.Command{
	Use:   "webbank",
	Short: "Read accounts and make transfers on French bank portals",
	Long: `webbank drives the customer portal of Crédit Mutuel or Caisse d'Épargne
the way a browser would: it logs in, lists accounts, walks transaction
history page by page and reads investment positions.

Credentials come from the config file, a .env file or WEBBANK_* variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath, envFile)
		if err != nil {
			return err
		}
		level := cfg.Log.Level
		if verbose {
			level = "debug"
		}
		logger, err = logging.New(level, cfg.Log.Development)
		if err != nil {
			return err
		}
		registry = prometheus.NewRegistry()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if cfg != nil && cfg.Metrics.Enabled {
			logMetrics(logger, registry)
		}
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "webbank.yaml", "config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with credentials")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(accountsCmd, historyCmd, comingCmd, investmentsCmd, transferCmd)
}

// session opens the configured bank and logs in. The caller closes it.
func session(ctx context.Context) (bank.Capability, error) {
	c, err := scraper.Open(cfg, scraper.WithLogger(logger), scraper.WithRegisterer(registry))
	if err != nil {
		return nil, err
	}
	if err := c.Login(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// exitCode maps typed failures to distinct exit codes.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, config.ErrInvalidConfig):
		return 2
	case errors.Is(err, bank.ErrInvalidCredentials):
		return 3
	case errors.Is(err, bank.ErrServiceUnavailable):
		return 4
	case errors.Is(err, bank.ErrUnsupportedOperation):
		return 5
	default:
		return 1
	}
}

func logMetrics(logger *zap.Logger, reg prometheus.Gatherer) {
	families, err := reg.Gather()
	if err != nil {
		logger.Warn("gather metrics", zap.Error(err))
		return
	}
	for _, mf := range families {
		var total float64
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				total += float64(m.GetHistogram().GetSampleCount())
			}
		}
		logger.Info("metric", zap.String("name", mf.GetName()), zap.Float64("total", total))
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

// record-session logs into the configured bank over plain HTTP, lists the
// accounts and the first transactions of each, and saves the traffic as a
// sanitized HAR recording for replay tests.
//
// Usage:
//
//	go run ./scripts/record-session -config=webbank.yaml -scenario=login-success
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/grez-lucas/webbank/internal/config"
	"github.com/grez-lucas/webbank/internal/logging"
	"github.com/grez-lucas/webbank/internal/scraper"
	"github.com/grez-lucas/webbank/internal/scraper/testutil"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "webbank.yaml", "Config file")
	envFile := flag.String("env-file", ".env", "dotenv file with credentials")
	scenario := flag.String("scenario", "login-success", "Recording name")
	perAccount := flag.Int("transactions", 3, "Transactions to read per account (0 to skip history)")
	flag.Parse()

	if err := run(*configPath, *envFile, *scenario, *perAccount); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(configPath, envFile, scenario string, perAccount int) error {
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return err
	}
	if cfg.Browser.Enabled {
		return fmt.Errorf("recording needs the HTTP transport, disable browser mode")
	}
	logger, err := logging.New(cfg.Log.Level, true)
	if err != nil {
		return err
	}
	defer logger.Sync()

	rec := testutil.NewRecorder(nil)
	c, err := scraper.Open(cfg, scraper.WithLogger(logger), scraper.WithTransport(rec))
	if err != nil {
		return err
	}
	defer c.Close()

	// Failed logins are saved too.
	defer save(logger, rec, cfg.BankName(), scenario)

	ctx := context.Background()
	if err := c.Login(ctx); err != nil {
		return err
	}
	accounts, err := c.Accounts(ctx)
	if err != nil {
		return err
	}
	logger.Info("accounts", zap.Int("count", len(accounts)))

	if perAccount == 0 {
		return nil
	}
	for _, acc := range accounts {
		n := 0
		for _, err := range c.History(ctx, acc) {
			if err != nil {
				logger.Warn("history", zap.String("account", acc.ID), zap.Error(err))
				break
			}
			if n++; n >= perAccount {
				break
			}
		}
	}
	return nil
}

func save(logger *zap.Logger, rec *testutil.Recorder, bankName, scenario string) {
	dir := filepath.Join("internal", "scraper", "bank", bankName, "testdata", "recordings")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Error("create recordings dir", zap.Error(err))
		return
	}
	path := filepath.Join(dir, scenario+".har.json")
	har := testutil.SanitizeHAR(rec.HAR())
	if err := testutil.SaveHAR(path, har); err != nil {
		logger.Error("save recording", zap.Error(err))
		return
	}
	logger.Info("recording saved", zap.String("path", path), zap.Int("entries", len(har.Entries)))
}

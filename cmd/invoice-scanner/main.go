package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/d0npedro/mailinvoicegrabber/internal/adapters/imapmail"
	"github.com/d0npedro/mailinvoicegrabber/internal/config"
	"github.com/d0npedro/mailinvoicegrabber/internal/core"
	"github.com/d0npedro/mailinvoicegrabber/internal/di"
	"github.com/d0npedro/mailinvoicegrabber/internal/storage"
	"github.com/d0npedro/mailinvoicegrabber/internal/taxexport"
)

var (
	yearFlag     = flag.Int("year", 0, "calendar year to scan (defaults to the current year)")
	dryRunFlag   = flag.Bool("dry-run", false, "classify attachments but do not write invoice files")
	accountsFlag = flag.String("accounts", "", "path to the accounts JSON file")
	verboseFlag  = flag.Bool("verbose", false, "enable verbose console logging")
	configFlag   = flag.String("config", "", "path to config file (overrides the search paths)")
)

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Build the dependency injection container
	container, err := di.BuildContainer(ctx, di.Options{
		ConfigFile: *configFlag,
		Verbose:    *verboseFlag,
	})
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(func(
		cfg *config.Config,
		logger *zap.Logger,
		extractor core.Extractor,
		gateway *core.ClassificationGateway,
		cacheRepo core.ClassificationCache,
		classifier core.Classifier,
	) error {
		return run(ctx, cfg, logger, extractor, gateway, cacheRepo, classifier)
	}); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run drives the scan over every configured account
func run(
	ctx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
	extractor core.Extractor,
	gateway *core.ClassificationGateway,
	cacheRepo core.ClassificationCache,
	classifier core.Classifier,
) error {
	defer logger.Sync()
	defer closeResources(logger, cacheRepo, classifier)

	// Command-line flags override the configuration
	if *dryRunFlag {
		cfg.GetViper().Set("storage.dry_run", true)
	}
	if *accountsFlag != "" {
		cfg.GetViper().Set("scan.accounts_file", *accountsFlag)
	}

	year := *yearFlag
	if year == 0 {
		year = cfg.GetInt("scan.year")
	}
	if year == 0 {
		year = time.Now().Year()
	}

	accounts, err := config.LoadAccounts(cfg)
	if err != nil {
		logger.Error("Failed to load accounts", zap.Error(err))
		return err
	}

	dryRun := cfg.GetBool("storage.dry_run")
	logger.Info("Starting invoice scan",
		zap.Int("year", year),
		zap.Int("accounts", len(accounts)),
		zap.Bool("dry_run", dryRun))

	var (
		allRecords                                 []core.InvoiceRecord
		totalProcessed, totalInvoices, totalErrors int
	)

	for _, account := range accounts {
		if ctx.Err() != nil {
			logger.Warn("Scan interrupted, skipping remaining accounts")
			break
		}

		accountLog := logger.With(zap.String("account", accountName(account)))

		client, err := imapmail.Dial(account, accountLog)
		if err != nil {
			if errors.Is(err, core.ErrAuthFailed) {
				accountLog.Error("Authentication failed, skipping account", zap.Error(err))
			} else {
				accountLog.Error("Could not connect to account, skipping", zap.Error(err))
			}
			totalErrors++
			continue
		}

		store := storage.NewStore(storage.Options{
			BaseDir:       cfg.GetString("storage.output_dir"),
			ReportDir:     cfg.GetString("storage.report_dir"),
			ProcessedPath: cfg.GetString("storage.processed_file"),
			Year:          year,
			AccountLabel:  account.Label,
			DryRun:        dryRun,
		}, accountLog)

		service := core.NewScanService(client, extractor, gateway, store, accountLog)
		if err := service.ScanYear(ctx, year); err != nil {
			accountLog.Error("Scan failed", zap.Error(err))
			totalErrors++
		}

		if err := client.Close(); err != nil {
			accountLog.Warn("Logout failed", zap.Error(err))
		}

		if err := store.WriteSummary(); err != nil {
			accountLog.Error("Could not write summary report", zap.Error(err))
		}

		allRecords = append(allRecords, store.Records()...)
		totalProcessed += store.ProcessedCount()
		totalInvoices += store.InvoiceCount()
		totalErrors += store.ErrorCount()

		accountLog.Info("Account finished",
			zap.Int("messages_processed", store.ProcessedCount()),
			zap.Int("attachments_scanned", store.AttachmentCount()),
			zap.Int("invoices_found", store.InvoiceCount()),
			zap.Int("errors", store.ErrorCount()))
	}

	if cfg.GetBool("taxexport.enabled") && !dryRun {
		exporter := taxexport.NewExporter(
			cfg.GetString("storage.output_dir"),
			cfg.GetString("taxexport.output_dir"),
			logger,
		)
		summary, err := exporter.Export(allRecords)
		if err != nil {
			logger.Error("Tax export failed", zap.Error(err))
		} else {
			logger.Info("Tax export finished",
				zap.Int("total", summary.Total),
				zap.Int("deductible", summary.Deductible),
				zap.Int("not_deductible", summary.NotDeductible),
				zap.Int("errors", summary.Errors))
		}
	}

	logger.Info("Invoice scan finished",
		zap.Int("year", year),
		zap.Int("messages_processed", totalProcessed),
		zap.Int("invoices_found", totalInvoices),
		zap.Int("errors", totalErrors))
	return nil
}

func accountName(account config.Account) string {
	if account.Label != "" {
		return account.Label
	}
	return account.Username
}

func closeResources(logger *zap.Logger, cacheRepo core.ClassificationCache, classifier core.Classifier) {
	if cacheRepo != nil {
		if err := cacheRepo.Close(); err != nil {
			logger.Error("Failed to close classification cache", zap.Error(err))
		}
	}
	if closer, ok := classifier.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close classifier", zap.Error(err))
		}
	}
}

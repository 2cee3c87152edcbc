package workflow

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/contract_ledger/config"
	"bitbucket.org/mmdatafocus/contract_ledger/tablestore"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/sheets/v4"
)

// OpenStores opens the source document and, when one is configured, the
// external statement document. A failure to open the external document is
// logged and returns a nil external store so the run proceeds local-only.
func OpenStores(ctx context.Context, logger *logrus.Logger) (source, external tablestore.Store, err error) {
	kind := config.TableStoreKind()

	var svc *sheets.Service
	if kind == config.TableStoreSheets {
		svc, err = config.NewSheetsService(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("sheets service: %w", err)
		}
	}

	opts := tablestore.Options{
		Kind:          kind,
		SpreadsheetID: config.SourceSpreadsheetID(),
		XlsxPath:      config.SourceXlsxPath(),
		Sheets:        svc,
		Logger:        logger,
	}
	if config.TableCacheEnabled() {
		opts.Redis = config.GetRedisDB()
		opts.CacheTTL = config.TableCacheTTL()
	}

	source, err = tablestore.Open(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("open source store: %w", err)
	}

	extOpts := opts
	extOpts.SpreadsheetID = config.ExternalSpreadsheetID()
	extOpts.XlsxPath = config.ExternalXlsxPath()
	// statements are read back right after publishing
	extOpts.Redis = nil
	if extOpts.SpreadsheetID == "" && extOpts.XlsxPath == "" {
		logger.Warn("no external statement store configured; ledger outputs will be skipped")
		return source, nil, nil
	}
	external, err = tablestore.Open(ctx, extOpts)
	if err != nil {
		config.LogError(logger, "workflow", "OpenStores", "open external store", extOpts.SpreadsheetID+extOpts.XlsxPath, err)
		return source, nil, nil
	}
	return source, external, nil
}

// NewPipelineFromEnv builds a Pipeline from the environment: validated
// reconcile config, configured stores and the Redis run lock when connected.
func NewPipelineFromEnv(ctx context.Context, logger *logrus.Logger) (*Pipeline, error) {
	cfg, err := config.LoadReconcileConfig()
	if err != nil {
		return nil, err
	}
	source, external, err := OpenStores(ctx, logger)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		Source:         source,
		External:       external,
		Config:         cfg,
		Logger:         logger,
		Locker:         config.GetRedisLock(),
		PersistHistory: config.PersistRunHistory(),
	}, nil
}

package tablestore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/sheets/v4"
)

// Options select a backend for one document.
type Options struct {
	Kind          string // "sheets" or "xlsx"
	SpreadsheetID string
	XlsxPath      string
	Sheets        *sheets.Service
	Redis         *redis.Client
	CacheTTL      time.Duration
	Logger        *logrus.Logger
}

// Open builds the configured store, wrapped in a Redis cache when both a
// client and a TTL are given.
func Open(ctx context.Context, opts Options) (Store, error) {
	var (
		store Store
		key   string
	)
	switch opts.Kind {
	case "sheets":
		if opts.Sheets == nil || opts.SpreadsheetID == "" {
			return nil, fmt.Errorf("sheets store needs a service and a spreadsheet id")
		}
		if _, err := opts.Sheets.Spreadsheets.Get(opts.SpreadsheetID).Fields("spreadsheetId").Context(ctx).Do(); err != nil {
			return nil, fmt.Errorf("open spreadsheet %s: %w", opts.SpreadsheetID, err)
		}
		store = NewSheetsStore(opts.Sheets, opts.SpreadsheetID)
		key = opts.SpreadsheetID
	case "xlsx":
		if opts.XlsxPath == "" {
			return nil, fmt.Errorf("xlsx store needs a workbook path")
		}
		store = NewExcelStore(opts.XlsxPath)
		key = opts.XlsxPath
	default:
		return nil, fmt.Errorf("unknown table store %q", opts.Kind)
	}
	if opts.Redis != nil && opts.CacheTTL > 0 {
		store = NewCachedStore(store, opts.Redis, key, opts.CacheTTL, opts.Logger)
	}
	return store, nil
}

package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/contract_ledger/config"
	"bitbucket.org/mmdatafocus/contract_ledger/models"
	"bitbucket.org/mmdatafocus/contract_ledger/models/reports"
	"bitbucket.org/mmdatafocus/contract_ledger/tablestore"
	"bitbucket.org/mmdatafocus/contract_ledger/utils"
	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("contract-ledger/workflow")

// Report names accepted by Run.
const (
	ReportAll              = "all"
	ReportContractView     = "contract-view"
	ReportAccountStatement = "account-statement"
	ReportSummary          = "summary"
	ReportExpectedVsActual = "expected-vs-actual"
	ReportMissingInvoices  = "missing-invoices"
	ReportOutstanding      = "outstanding"
)

var Reports = []string{
	ReportAll, ReportContractView, ReportAccountStatement, ReportSummary,
	ReportExpectedVsActual, ReportMissingInvoices, ReportOutstanding,
}

func ValidReport(name string) bool {
	for _, r := range Reports {
		if r == name {
			return true
		}
	}
	return false
}

// RunStats is logged at the end of a run and stored with its history row.
type RunStats struct {
	RunId                   string             `json:"run_id"`
	Report                  string             `json:"report"`
	SiteRecords             int                `json:"site_records"`
	SheetRecords            int                `json:"sheet_records"`
	SiteGroups              int                `json:"site_groups"`
	SheetGroups             int                `json:"sheet_groups"`
	Contracts               int                `json:"contracts"`
	Invoices                int                `json:"invoices"`
	Receipts                int                `json:"receipts"`
	LedgerRows              int                `json:"ledger_rows"`
	MissingInvoices         int                `json:"missing_invoices"`
	UndeterminedSchedules   int                `json:"undetermined_schedules"`
	DuplicateInvoiceNumbers int                `json:"duplicate_invoice_numbers"`
	UnknownInvoiceRefs      int                `json:"unknown_invoice_refs"`
	UnallocatedReceipts     int                `json:"unallocated_receipts"`
	MoneyParseFailures      int                `json:"money_parse_failures"`
	DateParseFailures       int                `json:"date_parse_failures"`
	Integration             IntegrationStats   `json:"integration"`
	LocalOnly               bool               `json:"local_only"`
	SkippedInputs           []string           `json:"skipped_inputs,omitempty"`
	SkippedOutputs          []string           `json:"skipped_outputs,omitempty"`
	TablesWritten           []string           `json:"tables_written,omitempty"`
	Incremental             *IncrementalResult `json:"incremental,omitempty"`
}

// Result is everything one computation produced.
type Result struct {
	SiteGroups  []*models.ContractGroup
	SheetGroups []*models.ContractGroup
	Contracts   []*models.CanonicalContract
	Ledgers     []models.ContractLedger
	Summaries   []models.ContractSummary
	Months      []models.MonthSummary
	Allocation  AllocationResult
	Stats       RunStats
}

type RunOptions struct {
	Report        string
	Incremental   bool
	DryRun        bool
	TriggeredBy   string
	CorrelationId string
}

// Pipeline wires the stores to the engine. External may be nil, in which
// case ledger outputs are skipped and the run is local-only.
type Pipeline struct {
	Source   tablestore.Store
	External tablestore.Store
	Config   config.ReconcileConfig
	Logger   *logrus.Logger
	Locker   *redislock.Client
	Now      func() time.Time
	// PersistHistory stores ReportRun and DataQualityFlag rows when a database is connected.
	PersistHistory bool
}

func (p *Pipeline) logger() *logrus.Logger {
	if p.Logger == nil {
		return config.GetLogger()
	}
	return p.Logger
}

func (p *Pipeline) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "workflow."+name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Compute reads every input table and runs merge, integration, allocation
// and the ledger. A missing required table fails before anything is written.
func (p *Pipeline) Compute(ctx context.Context) (res *Result, err error) {
	ctx, span := startSpan(ctx, "Compute")
	defer func() { endSpan(span, err) }()
	logger := p.logger()
	cfg := p.Config
	res = &Result{}
	runId, _ := utils.GetRunIdFromContext(ctx)
	res.Stats.RunId = runId

	required := map[string]*tablestore.Table{}
	for _, name := range []string{models.TableSiteContracts, models.TableSheetContracts, models.TableInvoices, models.TableReceipts} {
		t, err := p.Source.ReadTable(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("read required table %q: %w", name, err)
		}
		required[name] = t
	}
	optional := map[string]*tablestore.Table{}
	for _, name := range []string{models.TableSkuOverrides, models.TableContractOverrides, models.TableSales, models.TablePartners} {
		t, err := tablestore.ReadOptional(ctx, p.Source, name)
		if err != nil {
			config.LogError(logger, "workflow", "Compute", "optional table unreadable, treated as empty", name, err)
			res.Stats.SkippedInputs = append(res.Stats.SkippedInputs, name)
			continue
		}
		optional[name] = t
	}

	var parse models.ParseStats
	siteRecords, err := models.LoadContracts(required[models.TableSiteContracts], models.RecordKindSite, &parse)
	if err != nil {
		return nil, err
	}
	sheetRecords, err := models.LoadContracts(required[models.TableSheetContracts], models.RecordKindSheet, &parse)
	if err != nil {
		return nil, err
	}
	invoices, err := models.LoadInvoices(required[models.TableInvoices], &parse)
	if err != nil {
		return nil, err
	}
	receipts, err := models.LoadReceipts(required[models.TableReceipts], &parse)
	if err != nil {
		return nil, err
	}
	overrides, err := models.LoadOverrides(optional[models.TableSkuOverrides], optional[models.TableContractOverrides],
		optional[models.TableSales], optional[models.TablePartners])
	if err != nil {
		config.LogError(logger, "workflow", "Compute", "override tables malformed, continuing without them", nil, err)
		res.Stats.SkippedInputs = append(res.Stats.SkippedInputs, "overrides")
		overrides, _ = models.LoadOverrides(nil, nil, nil, nil)
	}
	res.Stats.SiteRecords, res.Stats.SheetRecords = len(siteRecords), len(sheetRecords)
	res.Stats.Invoices, res.Stats.Receipts = len(invoices), len(receipts)
	res.Stats.MoneyParseFailures, res.Stats.DateParseFailures = parse.MoneyParseFailures, parse.DateParseFailures

	_, mergeSpan := startSpan(ctx, "Merge")
	res.SiteGroups = NewMerger(cfg.AuthoritativeSource, logger).Merge(siteRecords)
	res.SheetGroups = NewMerger(cfg.AuthoritativeSource, logger).Merge(sheetRecords)
	mergeSpan.SetAttributes(attribute.Int("site_groups", len(res.SiteGroups)), attribute.Int("sheet_groups", len(res.SheetGroups)))
	endSpan(mergeSpan, nil)
	res.Stats.SiteGroups, res.Stats.SheetGroups = len(res.SiteGroups), len(res.SheetGroups)

	_, integrateSpan := startSpan(ctx, "Integrate")
	integrator := NewIntegrator(cfg, NewStatusStrategy(cfg.StatusStrategy, p.now), overrides, logger)
	res.Contracts, res.Stats.Integration = integrator.Integrate(res.SiteGroups, res.SheetGroups)
	integrateSpan.SetAttributes(attribute.Int("contracts", len(res.Contracts)))
	endSpan(integrateSpan, nil)
	res.Stats.Contracts = len(res.Contracts)

	_, ledgerSpan := startSpan(ctx, "Ledger")
	ix := NewInvoiceIndex(invoices)
	res.Allocation = ix.Allocate(receipts)
	res.Ledgers = BuildLedgers(res.Contracts, ix, cfg.MonthCap, cfg.FullyPaidTolerance)
	res.Summaries = Summarise(res.Contracts, res.Ledgers, ix)
	res.Months = MonthlyComparison(res.Ledgers)
	for _, l := range res.Ledgers {
		res.Stats.LedgerRows += len(l.Entries)
		if l.ScheduleUndetermined {
			res.Stats.UndeterminedSchedules++
		}
		for _, e := range l.Entries {
			if e.IsMissing() {
				res.Stats.MissingInvoices++
			}
		}
	}
	res.Stats.DuplicateInvoiceNumbers = ix.DuplicateNumbers
	res.Stats.UnknownInvoiceRefs = res.Allocation.UnknownNumbers
	res.Stats.UnallocatedReceipts = len(res.Allocation.Unallocated)
	ledgerSpan.SetAttributes(attribute.Int("ledger_rows", res.Stats.LedgerRows))
	endSpan(ledgerSpan, nil)

	logger.WithFields(logrus.Fields{
		"run_id":           runId,
		"contracts":        res.Stats.Contracts,
		"invoices":         res.Stats.Invoices,
		"receipts":         res.Stats.Receipts,
		"rows":             res.Stats.LedgerRows,
		"missing_invoices": res.Stats.MissingInvoices,
	}).Info("reconciliation computed")
	return res, nil
}

func includes(report string, names ...string) bool {
	if report == ReportAll {
		return true
	}
	for _, n := range names {
		if n == report {
			return true
		}
	}
	return false
}

// Run computes and publishes one report (or all of them) under the run lock,
// recording run history when a database is available.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	if opts.Report == "" {
		opts.Report = ReportAll
	}
	if !ValidReport(opts.Report) {
		return nil, fmt.Errorf("unknown report %q", opts.Report)
	}
	if opts.TriggeredBy == "" {
		opts.TriggeredBy = models.TriggeredBySystem
	}
	if opts.CorrelationId == "" {
		opts.CorrelationId = uuid.NewString()
	}
	runId := uuid.NewString()
	ctx = utils.SetRunIdInContext(ctx, runId)
	ctx = utils.SetCorrelationIdInContext(ctx, opts.CorrelationId)
	ctx = utils.SetReportInContext(ctx, opts.Report)
	ctx = utils.SetTriggeredByInContext(ctx, opts.TriggeredBy)
	logger := p.logger()

	var res *Result
	err := WithRunLock(ctx, p.Locker, logger, func(ctx context.Context) error {
		var history *models.ReportRun
		if p.PersistHistory && !opts.DryRun {
			var err error
			history, err = models.StartReportRun(ctx, runId, opts.Report, opts.TriggeredBy, opts.CorrelationId, opts.Incremental)
			if err != nil {
				config.LogError(logger, "workflow", "Run", "start run history", runId, err)
			}
		}

		var runErr error
		res, runErr = p.Compute(ctx)
		if runErr == nil {
			res.Stats.Report = opts.Report
			if opts.DryRun {
				logger.WithField("run_id", runId).Info("dry run, outputs not written")
			} else {
				runErr = p.publish(ctx, res, opts)
			}
		}

		status := models.ReportRunStatusSuccess
		var stats any
		var flags []models.DataQualityFlag
		switch {
		case runErr != nil:
			status = models.ReportRunStatusFailed
		case res.Stats.LocalOnly:
			status = models.ReportRunStatusPartial
		}
		if res != nil {
			stats = res.Stats
			flags = DataQualityFlags(res)
		}
		if err := history.Finish(ctx, status, res != nil && res.Stats.LocalOnly, stats, runErr, flags); err != nil {
			config.LogError(logger, "workflow", "Run", "finish run history", runId, err)
		}
		return runErr
	})
	if err != nil {
		if !errors.Is(err, ErrRunInProgress) {
			config.LogError(logger, "workflow", "Run", "report run failed", opts, err)
		}
		return nil, err
	}

	if !opts.DryRun {
		if err := rememberLastRun(ctx, res.Stats); err != nil {
			config.LogError(logger, "workflow", "Run", "cache last run stats", runId, err)
		}
	}

	logger.WithFields(logrus.Fields{
		"run_id":          runId,
		"correlation_id":  opts.CorrelationId,
		"report":          opts.Report,
		"local_only":      res.Stats.LocalOnly,
		"tables_written":  res.Stats.TablesWritten,
		"skipped_outputs": res.Stats.SkippedOutputs,
	}).Info("report run complete")
	return res, nil
}

// publish writes the selected outputs. Local writes are fatal on error;
// external writes degrade the run to local-only.
func (p *Pipeline) publish(ctx context.Context, res *Result, opts RunOptions) (err error) {
	ctx, span := startSpan(ctx, "Publish")
	defer func() { endSpan(span, err) }()
	cfg := p.Config
	logger := p.logger()
	stats := &res.Stats

	writeLocal := func(name string, headers []string, rows []tablestore.Row) error {
		if err := tablestore.WriteRows(ctx, p.Source, name, headers, rows, cfg.WriteBatchSize); err != nil {
			return fmt.Errorf("write %q: %w", name, err)
		}
		stats.TablesWritten = append(stats.TablesWritten, name)
		return nil
	}
	external := p.External
	skipExternal := func(name string, cause error) {
		stats.LocalOnly = true
		stats.SkippedOutputs = append(stats.SkippedOutputs, name)
		if cause != nil {
			config.LogError(logger, "workflow", "publish", "external write failed, continuing local-only", name, cause)
		}
	}

	if includes(opts.Report, ReportContractView) {
		rows := reports.ContractViewRows(res.Contracts)
		if opts.Incremental {
			inc, err := ApplyIncremental(ctx, p.Source, reports.TableContractView, reports.ContractViewHeaders, rows, cfg.WriteBatchSize)
			if err != nil {
				return fmt.Errorf("incremental %q: %w", reports.TableContractView, err)
			}
			stats.Incremental = &inc
			stats.TablesWritten = append(stats.TablesWritten, reports.TableContractView)
		} else if err := writeLocal(reports.TableContractView, reports.ContractViewHeaders, rows); err != nil {
			return err
		}
		groups := append(append([]*models.ContractGroup{}, res.SiteGroups...), res.SheetGroups...)
		if err := writeLocal(reports.TableMergeLog, reports.MergeLogHeaders, reports.MergeLogRows(groups)); err != nil {
			return err
		}
	}

	if includes(opts.Report, ReportAccountStatement) {
		if external == nil {
			skipExternal(reports.TableAccountStatement, nil)
		} else {
			pages, err := tablestore.WritePaginated(ctx, external, reports.TableAccountStatement, reports.AccountStatementHeaders,
				reports.AccountStatementRows(res.Ledgers), cfg.LedgerTableRowCap, cfg.WriteBatchSize)
			if err != nil {
				skipExternal(reports.TableAccountStatement, err)
			} else {
				for n := 1; n <= pages; n++ {
					stats.TablesWritten = append(stats.TablesWritten, tablestore.PageName(reports.TableAccountStatement, n))
				}
			}
		}
	}

	if includes(opts.Report, ReportSummary) {
		if external == nil {
			skipExternal(reports.TableSummarised, nil)
		} else if err := tablestore.WriteRows(ctx, external, reports.TableSummarised, reports.SummarisedHeaders,
			reports.SummarisedRows(res.Summaries), cfg.WriteBatchSize); err != nil {
			skipExternal(reports.TableSummarised, err)
		} else {
			stats.TablesWritten = append(stats.TablesWritten, reports.TableSummarised)
		}
	}

	if includes(opts.Report, ReportExpectedVsActual) {
		if err := writeLocal(reports.TableExpectedVsActual, reports.ExpectedVsActualHeaders, reports.ExpectedVsActualRows(res.Months)); err != nil {
			return err
		}
	}
	if includes(opts.Report, ReportMissingInvoices) {
		if err := writeLocal(reports.TableMissingInvoices, reports.MissingInvoicesHeaders, reports.MissingInvoiceRows(res.Ledgers)); err != nil {
			return err
		}
	}
	if includes(opts.Report, ReportOutstanding) {
		if err := writeLocal(reports.TableOutstandingBalance, reports.OutstandingBalanceHeaders, reports.OutstandingBalanceRows(res.Ledgers)); err != nil {
			return err
		}
	}
	return nil
}

// DataQualityFlags lists the flags and missing invoices of a result for persistence.
func DataQualityFlags(res *Result) []models.DataQualityFlag {
	var out []models.DataQualityFlag
	for _, c := range res.Contracts {
		for _, f := range c.Flags {
			out = append(out, models.DataQualityFlag{FlagType: flagType(f), ContractKey: c.Key, Details: f})
		}
	}
	for _, l := range res.Ledgers {
		if l.ScheduleUndetermined {
			out = append(out, models.DataQualityFlag{FlagType: "SCHEDULE_UNDETERMINED", ContractKey: l.Contract.Key})
		}
		for _, e := range l.Entries {
			if e.IsMissing() {
				out = append(out, models.DataQualityFlag{FlagType: "MISSING_INVOICE", ContractKey: e.ContractKey, Details: e.Period})
			}
		}
	}
	return out
}

func flagType(flag string) string {
	switch {
	case strings.HasPrefix(flag, "Conflict"):
		return "CONFLICT"
	case strings.HasPrefix(flag, "Renewal"):
		return "RENEWAL"
	case strings.HasPrefix(flag, "Merged by trailing"):
		return "TRAILING_MERGE"
	case strings.HasPrefix(flag, "Numeric conflict"):
		return "NUMERIC_CONFLICT"
	case strings.HasPrefix(flag, "Replaced"):
		return "AUTHORITATIVE_REPLACE"
	case strings.HasPrefix(flag, "Duplicate key"):
		return "DUPLICATE_KEY"
	default:
		return "OTHER"
	}
}

package reportrun

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/contract_ledger/config"
	"bitbucket.org/mmdatafocus/contract_ledger/models"
	"bitbucket.org/mmdatafocus/contract_ledger/models/reports"
	"bitbucket.org/mmdatafocus/contract_ledger/tablestore"
	"bitbucket.org/mmdatafocus/contract_ledger/utils"
	"bitbucket.org/mmdatafocus/contract_ledger/workflow"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const statementLinkLifetime = 24 * time.Hour

// Handlers serve report triggers and statement lookups for one pipeline.
type Handlers struct {
	Pipeline *workflow.Pipeline
	Logger   *logrus.Logger
	// Publish enqueues a run; config.PublishReportRun when nil.
	Publish func(c *gin.Context, msg config.ReportRunMessage) (string, error)
}

func (h *Handlers) logger() *logrus.Logger {
	if h.Logger == nil {
		return config.GetLogger()
	}
	return h.Logger
}

// bindRun reads the optional body; an empty body means defaults.
func bindRun(c *gin.Context) (RunRequest, error) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		return req, err
	}
	if v := c.Query("incremental"); v != "" {
		req.Incremental, _ = strconv.ParseBool(v)
	}
	if v := c.Query("dry_run"); v != "" {
		req.DryRun, _ = strconv.ParseBool(v)
	}
	return req, nil
}

func (h *Handlers) RunHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		report := c.Param("report")
		if !workflow.ValidReport(report) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown report", "reports": workflow.Reports})
			return
		}
		req, err := bindRun(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		ctx := c.Request.Context()
		cid, _ := utils.GetCorrelationIdFromContext(ctx)
		res, err := h.Pipeline.Run(ctx, workflow.RunOptions{
			Report:        report,
			Incremental:   req.Incremental,
			DryRun:        req.DryRun,
			TriggeredBy:   models.TriggeredByHttp,
			CorrelationId: cid,
		})
		if errors.Is(err, workflow.ErrRunInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, RunResponse{Stats: res.Stats})
	}
}

func (h *Handlers) EnqueueHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		report := c.Param("report")
		if !workflow.ValidReport(report) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown report", "reports": workflow.Reports})
			return
		}
		req, err := bindRun(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		ctx := c.Request.Context()
		cid, _ := utils.GetCorrelationIdFromContext(ctx)
		subject, _ := utils.GetSubjectFromContext(ctx)
		msg := config.ReportRunMessage{
			Report:        report,
			Incremental:   req.Incremental,
			RequestedAt:   time.Now().UTC(),
			RequestedBy:   subject,
			CorrelationId: cid,
		}

		publish := h.Publish
		if publish == nil {
			publish = func(c *gin.Context, msg config.ReportRunMessage) (string, error) {
				return config.PublishReportRun(c.Request.Context(), msg)
			}
		}
		id, err := publish(c, msg)
		if err != nil {
			config.LogError(h.logger(), "reportrun", "EnqueueHandler", "publish report run", msg, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to enqueue"})
			return
		}
		c.JSON(http.StatusAccepted, EnqueueResponse{Report: report, MessageId: id})
	}
}

func (h *Handlers) RunHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		report := strings.TrimSpace(c.Query("report"))
		if config.GetDB() == nil {
			if report == "" {
				report = workflow.ReportAll
			}
			last, found, err := workflow.LastRunStats(c.Request.Context(), report)
			if err != nil || !found {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run history is not available"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"last": last})
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		runs, err := models.RecentReportRuns(c.Request.Context(), report, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, HistoryResponse{Runs: runs})
	}
}

// StatementHandler answers GET /api/statements?contract_ids=a,b. With
// format=xlsx the workbook is returned, with upload=true it is stored in GCS
// and a signed link is returned. The default is JSON.
func (h *Handlers) StatementHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ids := utils.SplitList(c.Query("contract_ids"), ',')
		if len(ids) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "contract_ids is required"})
			return
		}
		ctx := c.Request.Context()

		ledger := h.Pipeline.External
		if ledger == nil {
			ledger = h.Pipeline.Source
		}
		st, err := reports.LookupStatement(ctx, h.Pipeline.Source, ledger, ids)
		if errors.Is(err, reports.ErrNoContracts) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		if errors.Is(err, tablestore.ErrTableNotFound) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "statement tables have not been published"})
			return
		}
		if err != nil {
			config.LogError(h.logger(), "reportrun", "StatementHandler", "lookup statement", ids, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		upload, _ := strconv.ParseBool(c.Query("upload"))
		if c.Query("format") != "xlsx" && !upload {
			c.JSON(http.StatusOK, st)
			return
		}

		data, err := reports.ExportStatement(st)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if upload {
			link, err := reports.PublishStatement(ctx, st, data, statementLinkLifetime)
			if err != nil {
				config.LogError(h.logger(), "reportrun", "StatementHandler", "publish statement", ids, err)
				c.JSON(http.StatusBadGateway, gin.H{"error": "failed to upload statement"})
				return
			}
			c.JSON(http.StatusOK, link)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="statement.xlsx"`)
		c.Data(http.StatusOK, utils.XlsxContentType, data)
	}
}

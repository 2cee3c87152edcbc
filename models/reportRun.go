package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/contract_ledger/config"
)

const (
	ReportRunStatusRunning = "running"
	ReportRunStatusSuccess = "success"
	ReportRunStatusFailed  = "failed"
	ReportRunStatusPartial = "partial"
)

const (
	TriggeredByCli    = "cli"
	TriggeredByHttp   = "http"
	TriggeredByPubSub = "pubsub"
	TriggeredBySystem = "system"
)

// ReportRun records one reconciliation run.
type ReportRun struct {
	ID            uint       `gorm:"primary_key" json:"id"`
	RunId         string     `gorm:"size:64;uniqueIndex;not null" json:"run_id"`
	Report        string     `gorm:"size:50;index;not null" json:"report"`
	Status        string     `gorm:"size:20;not null" json:"status"`
	TriggeredBy   string     `gorm:"size:20" json:"triggered_by"`
	Incremental   bool       `json:"incremental"`
	LocalOnly     bool       `json:"local_only"`
	StatsJSON     []byte     `gorm:"type:json" json:"stats"`
	ErrorMessage  string     `gorm:"type:text" json:"error_message"`
	CorrelationId string     `gorm:"size:64;index" json:"correlation_id"`
	StartedAt     *time.Time `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at"`
	DurationMs    int64      `json:"duration_ms"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// DataQualityFlag is a merge conflict, renewal or missing invoice seen in a run.
type DataQualityFlag struct {
	ID          int       `gorm:"primary_key" json:"id"`
	RunId       string    `gorm:"size:64;index;not null" json:"run_id"`
	FlagType    string    `gorm:"size:50;index;not null" json:"flag_type"` // e.g. CONFLICT, RENEWAL, MISSING_INVOICE
	ContractKey string    `gorm:"size:128;index" json:"contract_key"`
	Details     string    `gorm:"type:text" json:"details"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// StartReportRun inserts a running row. Without a database it returns nil.
func StartReportRun(ctx context.Context, runId, report, triggeredBy, correlationId string, incremental bool) (*ReportRun, error) {
	db := config.GetDB()
	if db == nil {
		return nil, nil
	}
	now := time.Now()
	run := ReportRun{
		RunId:         runId,
		Report:        report,
		Status:        ReportRunStatusRunning,
		TriggeredBy:   triggeredBy,
		Incremental:   incremental,
		CorrelationId: correlationId,
		StartedAt:     &now,
	}
	if err := db.WithContext(ctx).Create(&run).Error; err != nil {
		if config.IsDuplicateKeyErr(err) {
			// redelivered trigger for the same run id
			var existing ReportRun
			if err := db.WithContext(ctx).Where("run_id = ?", runId).First(&existing).Error; err != nil {
				return nil, err
			}
			return &existing, nil
		}
		return nil, err
	}
	return &run, nil
}

// Finish stores the outcome, stats and flags of a run.
func (r *ReportRun) Finish(ctx context.Context, status string, localOnly bool, stats any, runErr error, flags []DataQualityFlag) error {
	if r == nil {
		return nil
	}
	db := config.GetDB()
	if db == nil {
		return nil
	}
	now := time.Now()
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	r.Status = status
	r.LocalOnly = localOnly
	r.StatsJSON = statsJSON
	r.FinishedAt = &now
	if r.StartedAt != nil {
		r.DurationMs = now.Sub(*r.StartedAt).Milliseconds()
	}
	if runErr != nil {
		r.ErrorMessage = runErr.Error()
	}
	tx := db.WithContext(ctx).Begin()
	if err := tx.Save(r).Error; err != nil {
		tx.Rollback()
		return err
	}
	if len(flags) > 0 {
		for i := range flags {
			flags[i].RunId = r.RunId
		}
		if err := tx.CreateInBatches(flags, 500).Error; err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit().Error
}

func RecentReportRuns(ctx context.Context, report string, limit int) ([]ReportRun, error) {
	db := config.GetDB()
	if db == nil {
		return nil, nil
	}
	var runs []ReportRun
	q := db.WithContext(ctx).Order("id DESC").Limit(limit)
	if report != "" {
		q = q.Where("report = ?", report)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

package workflow

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/contract_ledger/config"
	"bitbucket.org/mmdatafocus/contract_ledger/models"
)

var ErrIdempotencyInProgress = errors.New("idempotency in progress")

const staleIdempotencyAfter = 5 * time.Minute

// BeginIdempotency inserts STARTED for a delivered message. skip is true when
// the message already succeeded. Without a database every message runs.
func BeginIdempotency(ctx context.Context, handlerName, messageId string) (skip bool, err error) {
	db := config.GetDB()
	if db == nil || messageId == "" {
		return false, nil
	}
	tx := db.WithContext(ctx)

	key := models.IdempotencyKey{
		HandlerName: handlerName,
		MessageId:   messageId,
		Status:      models.IdempotencyStatusStarted,
	}
	if err := tx.Create(&key).Error; err == nil {
		return false, nil
	} else if !config.IsDuplicateKeyErr(err) {
		return false, err
	}

	var existing models.IdempotencyKey
	if err := tx.Where("handler_name = ? AND message_id = ?", handlerName, messageId).
		First(&existing).Error; err != nil {
		return false, err
	}

	switch existing.Status {
	case models.IdempotencyStatusSucceeded:
		return true, nil
	case models.IdempotencyStatusStarted:
		// a stale STARTED row is reclaimed
		if time.Since(existing.UpdatedAt) < staleIdempotencyAfter {
			return false, ErrIdempotencyInProgress
		}
	}
	return false, tx.Model(&models.IdempotencyKey{}).
		Where("id = ?", existing.ID).
		Updates(map[string]interface{}{"status": models.IdempotencyStatusStarted, "last_error": nil}).Error
}

// FinishIdempotency marks the message SUCCEEDED, or FAILED with runErr.
func FinishIdempotency(ctx context.Context, handlerName, messageId, runId string, runErr error) error {
	db := config.GetDB()
	if db == nil || messageId == "" {
		return nil
	}
	updates := map[string]interface{}{"status": models.IdempotencyStatusSucceeded, "last_error": nil, "run_id": runId}
	if runErr != nil {
		msg := runErr.Error()
		updates["status"] = models.IdempotencyStatusFailed
		updates["last_error"] = &msg
	}
	return db.WithContext(ctx).Model(&models.IdempotencyKey{}).
		Where("handler_name = ? AND message_id = ?", handlerName, messageId).
		Updates(updates).Error
}

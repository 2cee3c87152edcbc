package workflow

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/contract_ledger/utils"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
)

var ErrRunInProgress = errors.New("a report run is already in progress")

const (
	runLockKey = "lock:report-run"
	runLockTTL = 30 * time.Minute
)

// WithRunLock runs fn while holding the cross-instance run lock. Without a
// lock client fn runs unguarded.
func WithRunLock(ctx context.Context, locker *redislock.Client, logger *logrus.Logger, fn func(ctx context.Context) error) error {
	if locker == nil {
		logger.WithField("field", "WithRunLock").Debug("redis lock not configured; running without run lock")
		return fn(ctx)
	}
	lock, err := locker.Obtain(ctx, runLockKey, runLockTTL, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		report, _ := utils.GetReportFromContext(ctx)
		triggeredBy, _ := utils.GetTriggeredByFromContext(ctx)
		logger.WithFields(logrus.Fields{
			"field":        "WithRunLock",
			"report":       report,
			"triggered_by": triggeredBy,
		}).Warn("run lock held by another run")
		return ErrRunInProgress
	}
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := lock.Release(context.WithoutCancel(ctx)); releaseErr != nil && !errors.Is(releaseErr, redislock.ErrLockNotHeld) {
			logger.WithField("field", "WithRunLock").Warn("failed to release run lock: " + releaseErr.Error())
		}
	}()
	return fn(ctx)
}

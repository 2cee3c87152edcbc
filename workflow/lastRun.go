package workflow

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/contract_ledger/config"
)

const lastRunTTL = 7 * 24 * time.Hour

func lastRunKey(report string) string {
	return "report-run:last:" + report
}

// rememberLastRun keeps the stats of the latest completed run in Redis so
// they can be served without a database.
func rememberLastRun(ctx context.Context, stats RunStats) error {
	return config.SetRedisObject(ctx, lastRunKey(stats.Report), stats, lastRunTTL)
}

// LastRunStats returns the stats of the latest completed run of report.
func LastRunStats(ctx context.Context, report string) (*RunStats, bool, error) {
	var stats RunStats
	found, err := config.GetRedisObject(ctx, lastRunKey(report), &stats)
	if err != nil || !found {
		return nil, false, err
	}
	return &stats, true, nil
}

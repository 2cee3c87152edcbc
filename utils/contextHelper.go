package utils

import (
	"context"

	"bitbucket.org/mmdatafocus/contract_ledger/appctx"
)

var (
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
	ContextKeyRunId         = appctx.ContextKeyRunId
	ContextKeyReport        = appctx.ContextKeyReport
	ContextKeyTriggeredBy   = appctx.ContextKeyTriggeredBy
	ContextKeySubject       = appctx.ContextKeySubject
)

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func GetRunIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyRunId)
}

func GetReportFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyReport)
}

func GetTriggeredByFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyTriggeredBy)
}

func GetSubjectFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeySubject)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func SetRunIdInContext(ctx context.Context, runId string) context.Context {
	return appctx.Set(ctx, ContextKeyRunId, runId)
}

func SetReportInContext(ctx context.Context, report string) context.Context {
	return appctx.Set(ctx, ContextKeyReport, report)
}

func SetTriggeredByInContext(ctx context.Context, triggeredBy string) context.Context {
	return appctx.Set(ctx, ContextKeyTriggeredBy, triggeredBy)
}

func SetSubjectInContext(ctx context.Context, subject string) context.Context {
	return appctx.Set(ctx, ContextKeySubject, subject)
}

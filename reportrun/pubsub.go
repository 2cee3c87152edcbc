package reportrun

import (
	"encoding/json"
	"errors"
	"io"

	"bitbucket.org/mmdatafocus/contract_ledger/config"
	"bitbucket.org/mmdatafocus/contract_ledger/models"
	"bitbucket.org/mmdatafocus/contract_ledger/utils"
	"bitbucket.org/mmdatafocus/contract_ledger/workflow"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const pushHandlerName = "report-run-push"

// PubSubPushHandler runs the report named in a push delivery. It always
// answers 204 so Pub/Sub does not redeliver; failures are logged and kept in
// run history.
func (h *Handlers) PubSubPushHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !config.BoolFromEnv("ENABLE_REPORT_PUBSUB_PUSH_ENDPOINT", true) {
			c.Status(204)
			return
		}
		logger := h.logger()

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(204)
			return
		}

		var envelope PubSubPushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			logger.WithField("error", err.Error()).Warn("invalid pubsub envelope")
			c.Status(204)
			return
		}

		var msg config.ReportRunMessage
		if err := json.Unmarshal(envelope.Message.Data, &msg); err != nil {
			logger.WithFields(logrus.Fields{"message_id": envelope.Message.MessageId, "error": err.Error()}).Warn("invalid report run payload")
			c.Status(204)
			return
		}
		if !workflow.ValidReport(msg.Report) {
			logger.WithFields(logrus.Fields{"message_id": envelope.Message.MessageId, "report": msg.Report}).Warn("unknown report in pubsub message")
			c.Status(204)
			return
		}

		cid := msg.CorrelationId
		if cid == "" {
			cid, _ = utils.GetCorrelationIdFromContext(c.Request.Context())
		}
		ctx := c.Request.Context()
		if msg.RequestedBy != "" {
			ctx = utils.SetSubjectInContext(ctx, msg.RequestedBy)
		}
		fields := logrus.Fields{"message_id": envelope.Message.MessageId, "report": msg.Report, "correlation_id": cid}

		skip, err := workflow.BeginIdempotency(ctx, pushHandlerName, envelope.Message.MessageId)
		if err != nil {
			if !errors.Is(err, workflow.ErrIdempotencyInProgress) {
				config.LogError(logger, "reportrun", "PubSubPushHandler", "begin idempotency", fields, err)
			}
			c.Status(204)
			return
		}
		if skip {
			logger.WithFields(fields).Info("duplicate pubsub delivery skipped")
			c.Status(204)
			return
		}

		res, err := h.Pipeline.Run(ctx, workflow.RunOptions{
			Report:        msg.Report,
			Incremental:   msg.Incremental,
			TriggeredBy:   models.TriggeredByPubSub,
			CorrelationId: cid,
		})
		if errors.Is(err, workflow.ErrRunInProgress) {
			logger.WithFields(fields).Warn("report run already in progress; message dropped")
		}
		runId := ""
		if res != nil {
			runId = res.Stats.RunId
		}
		if ferr := workflow.FinishIdempotency(ctx, pushHandlerName, envelope.Message.MessageId, runId, err); ferr != nil {
			config.LogError(logger, "reportrun", "PubSubPushHandler", "finish idempotency", fields, ferr)
		}
		c.Status(204)
	}
}

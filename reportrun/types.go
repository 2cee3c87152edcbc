package reportrun

import (
	"time"

	"bitbucket.org/mmdatafocus/contract_ledger/models"
	"bitbucket.org/mmdatafocus/contract_ledger/workflow"
)

// RunRequest is the optional JSON body of the run and enqueue endpoints.
type RunRequest struct {
	Incremental bool `json:"incremental"`
	DryRun      bool `json:"dryRun"`
}

type RunResponse struct {
	Stats workflow.RunStats `json:"stats"`
}

type EnqueueResponse struct {
	Report    string `json:"report"`
	MessageId string `json:"messageId"`
}

type HistoryResponse struct {
	Runs []models.ReportRun `json:"runs"`
}

type PubSubPushEnvelope struct {
	Message struct {
		Data        []byte            `json:"data"`
		MessageId   string            `json:"messageId"`
		PublishTime time.Time         `json:"publishTime"`
		Attributes  map[string]string `json:"attributes"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

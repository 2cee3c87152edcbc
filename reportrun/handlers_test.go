package reportrun

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/contract_ledger/config"
	"bitbucket.org/mmdatafocus/contract_ledger/models"
	"bitbucket.org/mmdatafocus/contract_ledger/models/reports"
	"bitbucket.org/mmdatafocus/contract_ledger/tablestore"
	"bitbucket.org/mmdatafocus/contract_ledger/workflow"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func sourceStore() *tablestore.MemoryStore {
	return tablestore.NewMemoryStore(
		&tablestore.Table{
			Name:    models.TableSiteContracts,
			Headers: []string{"Site ID", "Customer Name", "Package", "Quantity", "Status", "Start Date", "Period", "Unit Price"},
			Rows: []tablestore.Row{
				{"S1", "Acme", "SRLP1", 1.0, "LIVE", "2022-01-01", 3.0, 100.0},
			},
		},
		&tablestore.Table{
			Name:    models.TableSheetContracts,
			Headers: []string{"Contract ID", "Customer Name", "Package", "Quantity", "Status", "Start Date", "Period", "Unit Price"},
			Rows: []tablestore.Row{
				{"K2", "Beta", "SAPLP2", 2.0, "LIVE", "2023-05-01", 2.0, 50.0},
			},
		},
		&tablestore.Table{
			Name:    models.TableInvoices,
			Headers: []string{"Invoice Number", "Contract ID", "Billing Period", "Amount", "Payment Status"},
			Rows: []tablestore.Row{
				{"INV-2", "K2", "2023-05", 100.0, "UNPAID"},
			},
		},
		&tablestore.Table{
			Name:    models.TableReceipts,
			Headers: []string{"Receipt Number", "Contract ID", "Payment Date", "Amount"},
		},
	)
}

type fixture struct {
	source   *tablestore.MemoryStore
	external *tablestore.MemoryStore
	handlers *Handlers
	router   *gin.Engine
}

func newFixture() *fixture {
	gin.SetMode(gin.TestMode)
	f := &fixture{source: sourceStore(), external: tablestore.NewMemoryStore()}
	f.handlers = &Handlers{
		Pipeline: &workflow.Pipeline{
			Source:   f.source,
			External: f.external,
			Config:   config.DefaultReconcileConfig(),
			Logger:   quietLogger(),
			Now:      func() time.Time { return time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC) },
		},
		Logger: quietLogger(),
	}
	r := gin.New()
	r.POST("/api/reports/:report/run", f.handlers.RunHandler())
	r.POST("/api/reports/:report/enqueue", f.handlers.EnqueueHandler())
	r.GET("/api/report-runs", f.handlers.RunHistoryHandler())
	r.GET("/api/statements", f.handlers.StatementHandler())
	r.POST("/pubsub/report-run", f.handlers.PubSubPushHandler())
	f.router = r
	return f
}

func (f *fixture) do(method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestRunHandler(t *testing.T) {
	f := newFixture()

	w := f.do(http.MethodPost, "/api/reports/bogus/run", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown report: status=%d", w.Code)
	}

	w = f.do(http.MethodPost, "/api/reports/all/run", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var resp RunResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Stats.Contracts != 2 || resp.Stats.Report != workflow.ReportAll {
		t.Fatalf("unexpected stats %+v", resp.Stats)
	}
	if _, err := f.source.ReadTable(context.Background(), reports.TableContractView); err != nil {
		t.Fatalf("contract view not written: %v", err)
	}
}

func TestRunHandler_DryRunWritesNothing(t *testing.T) {
	f := newFixture()
	w := f.do(http.MethodPost, "/api/reports/contract-view/run", []byte(`{"dryRun":true}`))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if _, err := f.source.ReadTable(context.Background(), reports.TableContractView); !errors.Is(err, tablestore.ErrTableNotFound) {
		t.Fatalf("dry run wrote the contract view: %v", err)
	}
}

func TestEnqueueHandler(t *testing.T) {
	f := newFixture()
	var got config.ReportRunMessage
	f.handlers.Publish = func(c *gin.Context, msg config.ReportRunMessage) (string, error) {
		got = msg
		return "m-1", nil
	}

	w := f.do(http.MethodPost, "/api/reports/summary/enqueue", []byte(`{"incremental":true}`))
	if w.Code != http.StatusAccepted {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var resp EnqueueResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.MessageId != "m-1" || got.Report != workflow.ReportSummary || !got.Incremental {
		t.Fatalf("resp=%+v msg=%+v", resp, got)
	}

	f.handlers.Publish = func(c *gin.Context, msg config.ReportRunMessage) (string, error) {
		return "", errors.New("topic gone")
	}
	if w := f.do(http.MethodPost, "/api/reports/summary/enqueue", nil); w.Code != http.StatusBadGateway {
		t.Fatalf("publish failure: status=%d", w.Code)
	}
}

func TestRunHistoryHandler_NoDatabase(t *testing.T) {
	f := newFixture()
	if w := f.do(http.MethodGet, "/api/report-runs", nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
}

func pushBody(t *testing.T, data []byte) []byte {
	t.Helper()
	var env PubSubPushEnvelope
	env.Message.Data = data
	env.Message.MessageId = "1"
	env.Subscription = "projects/p/subscriptions/report-run"
	b, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestPubSubPushHandler(t *testing.T) {
	cases := []struct {
		name   string
		body   []byte
		writes bool
	}{
		{"valid", pushBody(t, []byte(`{"report":"contract-view"}`)), true},
		{"bad envelope", []byte(`not json`), false},
		{"bad payload", pushBody(t, []byte(`[]`)), false},
		{"unknown report", pushBody(t, []byte(`{"report":"nope"}`)), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			w := f.do(http.MethodPost, "/pubsub/report-run", tc.body)
			if w.Code != http.StatusNoContent {
				t.Fatalf("status=%d", w.Code)
			}
			_, err := f.source.ReadTable(context.Background(), reports.TableContractView)
			if tc.writes && err != nil {
				t.Fatalf("expected contract view written: %v", err)
			}
			if !tc.writes && err == nil {
				t.Fatalf("expected no writes")
			}
		})
	}
}

func TestStatementHandler(t *testing.T) {
	f := newFixture()
	if w := f.do(http.MethodGet, "/api/statements", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("missing ids: status=%d", w.Code)
	}
	if w := f.do(http.MethodPost, "/api/reports/all/run", nil); w.Code != http.StatusOK {
		t.Fatalf("run: status=%d body=%s", w.Code, w.Body.String())
	}

	w := f.do(http.MethodGet, "/api/statements?contract_ids=k2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var st reports.CustomerStatement
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.CustomerName != "Beta" {
		t.Fatalf("customer=%q", st.CustomerName)
	}

	w = f.do(http.MethodGet, "/api/statements?contract_ids=K2&format=xlsx", nil)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("xlsx: status=%d type=%q", w.Code, w.Header().Get("Content-Type"))
	}

	if w := f.do(http.MethodGet, "/api/statements?contract_ids=NOPE", nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown contract: status=%d", w.Code)
	}
}

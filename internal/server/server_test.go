package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"chainstage/internal/model"
	"chainstage/internal/transform"
)

type fakeIngestor struct {
	receipt model.Receipt
	path    string
	body    []byte
}

func (f *fakeIngestor) Ingest(_ context.Context, path string, body []byte, _ http.Header, _, _ string) model.Receipt {
	f.path = path
	f.body = body
	return f.receipt
}

type fakeRefresher struct {
	res    model.RefreshResult
	err    error
	stream string
}

func (f *fakeRefresher) Refresh(_ context.Context, stream string) (model.RefreshResult, error) {
	f.stream = stream
	return f.res, f.err
}

type fakeDiscovery struct {
	res model.DiscoveryResult
}

func (f *fakeDiscovery) Run(_ context.Context) (model.DiscoveryResult, error) {
	return f.res, nil
}

type fakeValidator struct {
	res   model.ValidationResult
	limit int
}

func (f *fakeValidator) Run(_ context.Context, limit int) (model.ValidationResult, error) {
	f.limit = limit
	return f.res, nil
}

type fakeResolver struct {
	res   model.ReserveResult
	limit int
}

func (f *fakeResolver) Run(_ context.Context, limit int) (model.ReserveResult, error) {
	f.limit = limit
	return f.res, nil
}

func newTestServer(svc Services, cfg Config) http.Handler {
	if svc.Ingestor == nil {
		svc.Ingestor = &fakeIngestor{}
	}
	if svc.Refresher == nil {
		svc.Refresher = &fakeRefresher{}
	}
	if svc.Discovery == nil {
		svc.Discovery = &fakeDiscovery{}
	}
	if svc.Validator == nil {
		svc.Validator = &fakeValidator{}
	}
	if svc.Resolver == nil {
		svc.Resolver = &fakeResolver{}
	}
	return New(svc, cfg, zap.NewNop()).Handler()
}

func TestWebhookAlways200(t *testing.T) {
	ing := &fakeIngestor{receipt: model.Receipt{OK: false, Error: "store: connection refused"}}
	h := newTestServer(Services{Ingestor: ing}, Config{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhook/provider", bytes.NewReader([]byte(`{}`))))

	if rr.Code != http.StatusOK {
		t.Fatalf("status mismatch: %d != 200", rr.Code)
	}
	var got model.Receipt
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode receipt: %v", err)
	}
	if got.OK || got.Error != "store: connection refused" {
		t.Fatalf("receipt mismatch: %+v", got)
	}
}

func TestWebhookPathCapture(t *testing.T) {
	ing := &fakeIngestor{receipt: model.Receipt{OK: true}}
	h := newTestServer(Services{Ingestor: ing}, Config{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhook/alchemy/eth-mainnet", bytes.NewReader([]byte(`{"a":1}`))))
	if rr.Code != http.StatusOK {
		t.Fatalf("status mismatch: %d != 200", rr.Code)
	}
	if ing.path != "alchemy/eth-mainnet" {
		t.Fatalf("path mismatch: %q", ing.path)
	}
	if string(ing.body) != `{"a":1}` {
		t.Fatalf("body mismatch: %q", ing.body)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(nil)))
	if rr.Code != http.StatusOK {
		t.Fatalf("bare path status mismatch: %d != 200", rr.Code)
	}
	if ing.path != "" {
		t.Fatalf("bare path mismatch: %q", ing.path)
	}
}

func TestRefreshRoutes(t *testing.T) {
	ref := &fakeRefresher{res: model.RefreshResult{StreamName: "transactions", Status: model.StatusSuccess, RowsProcessed: 7}}
	h := newTestServer(Services{Refresher: ref}, Config{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs/refresh/transactions", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status mismatch: %d != 200", rr.Code)
	}
	if ref.stream != "transactions" {
		t.Fatalf("stream mismatch: %q", ref.stream)
	}
	var got model.RefreshResult
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if got.RowsProcessed != 7 {
		t.Fatalf("rows mismatch: %d != 7", got.RowsProcessed)
	}

	// The GET alias serves schedulers that cannot POST.
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/refresh/events", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("GET alias status mismatch: %d != 200", rr.Code)
	}
	if ref.stream != "events" {
		t.Fatalf("GET alias stream mismatch: %q", ref.stream)
	}
}

func TestRefreshUnknownStream(t *testing.T) {
	ref := &fakeRefresher{err: fmt.Errorf("%w: bogus", transform.ErrUnknownStream)}
	h := newTestServer(Services{Refresher: ref}, Config{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs/refresh/bogus", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status mismatch: %d != 404", rr.Code)
	}
}

func TestRefreshErrorStatus(t *testing.T) {
	ref := &fakeRefresher{res: model.RefreshResult{Status: model.StatusError, Error: "extract failed"}}
	h := newTestServer(Services{Refresher: ref}, Config{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs/refresh/transactions", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status mismatch: %d != 500", rr.Code)
	}
	var got model.RefreshResult
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if got.Error != "extract failed" {
		t.Fatalf("error mismatch: %q", got.Error)
	}
}

func TestJobsAuth(t *testing.T) {
	h := newTestServer(Services{}, Config{AuthToken: "secret"})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs/discover", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("missing token status: %d != 401", rr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/jobs/discover", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token status: %d != 401", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/jobs/discover", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("valid token status: %d != 200", rr.Code)
	}

	// The webhook intake is never gated.
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhook/x", bytes.NewReader([]byte(`{}`))))
	if rr.Code != http.StatusOK {
		t.Fatalf("webhook status: %d != 200", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz status: %d != 200", rr.Code)
	}
}

func TestJobsAuthDisabled(t *testing.T) {
	h := newTestServer(Services{}, Config{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs/discover", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status mismatch: %d != 200", rr.Code)
	}
}

func TestValidateLimitParam(t *testing.T) {
	val := &fakeValidator{res: model.ValidationResult{Status: model.StatusSuccess}}
	h := newTestServer(Services{Validator: val}, Config{ValidateLimit: 50})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs/validate?limit=7", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status mismatch: %d != 200", rr.Code)
	}
	if val.limit != 7 {
		t.Fatalf("limit mismatch: %d != 7", val.limit)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs/validate", nil))
	if val.limit != 50 {
		t.Fatalf("default limit mismatch: %d != 50", val.limit)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs/validate?limit=abc", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad limit status: %d != 400", rr.Code)
	}
}

func TestResolveReservesLimitParam(t *testing.T) {
	resv := &fakeResolver{res: model.ReserveResult{Status: model.StatusSuccess}}
	h := newTestServer(Services{Resolver: resv}, Config{ReserveLimit: 20})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs/resolve-reserves", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status mismatch: %d != 200", rr.Code)
	}
	if resv.limit != 20 {
		t.Fatalf("default limit mismatch: %d != 20", resv.limit)
	}
}

func TestEnrichmentDisabled(t *testing.T) {
	svc := Services{Ingestor: &fakeIngestor{}, Refresher: &fakeRefresher{}, Discovery: &fakeDiscovery{}}
	h := New(svc, Config{}, zap.NewNop()).Handler()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs/validate", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("validate status: %d != 503", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs/resolve-reserves", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("resolve status: %d != 503", rr.Code)
	}
}

func TestHealthz(t *testing.T) {
	h := newTestServer(Services{}, Config{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status mismatch: %d != 200", rr.Code)
	}
	if rr.Body.String() != "ok" {
		t.Fatalf("body mismatch: %q", rr.Body.String())
	}
}

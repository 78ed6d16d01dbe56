package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/karoonet/billing/internal/payment/domain"
	"go.uber.org/zap"
)

type fakePaymentService struct {
	err     error
	calls   int
	payload []byte
}

func (f *fakePaymentService) IngestWebhook(ctx context.Context, payload []byte) error {
	f.calls++
	f.payload = payload
	_ = ctx
	return f.err
}

func newWebhookRouter(svc paymentdomain.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)

	srv := &Server{
		log:        zap.NewNop(),
		paymentSvc: svc,
	}

	router := gin.New()
	router.Use(ErrorHandlingMiddleware())
	router.POST("/webhooks/netcash", srv.HandlePaymentWebhook)
	return router
}

func postWebhook(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/netcash", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestPaymentWebhookAcknowledgesSuccess(t *testing.T) {
	svc := &fakePaymentService{}
	router := newWebhookRouter(svc)

	resp := postWebhook(router, `{"Reference":"REF-1"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if svc.calls != 1 {
		t.Fatalf("expected one ingest call, got %d", svc.calls)
	}
	if string(svc.payload) != `{"Reference":"REF-1"}` {
		t.Fatalf("unexpected payload passed to service: %s", svc.payload)
	}
}

func TestPaymentWebhookDuplicateStillAnswers200(t *testing.T) {
	svc := &fakePaymentService{err: paymentdomain.ErrEventAlreadyProcessed}
	router := newWebhookRouter(svc)

	resp := postWebhook(router, `{"Reference":"REF-1"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 for duplicate delivery, got %d", resp.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected ok status, got %q", body["status"])
	}
}

func TestPaymentWebhookInvalidSignatureReturns401(t *testing.T) {
	svc := &fakePaymentService{err: paymentdomain.ErrInvalidSignature}
	router := newWebhookRouter(svc)

	resp := postWebhook(router, `{"Reference":"REF-1"}`)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}
}

func TestPaymentWebhookMalformedPayloadReturns400(t *testing.T) {
	svc := &fakePaymentService{err: paymentdomain.ErrInvalidPayload}
	router := newWebhookRouter(svc)

	resp := postWebhook(router, `not-json`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

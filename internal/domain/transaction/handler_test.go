package transaction

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/splitpay/splitpay-api/internal/middleware"
	"github.com/splitpay/splitpay-api/internal/pkg/response"
	"github.com/splitpay/splitpay-api/internal/pkg/stripegate"
)

// fakeService lets each handler test script exactly one service behavior.
type fakeService struct {
	createFn  func(ctx context.Context, userID uuid.UUID, req *CreateRequest) (*CreateResponse, error)
	getFn     func(ctx context.Context, callerID, id uuid.UUID, operator bool) (*Transaction, error)
	webhookFn func(ctx context.Context, event *stripegate.WebhookEvent) error
}

var _ Service = (*fakeService)(nil)

func (f *fakeService) Create(ctx context.Context, userID uuid.UUID, req *CreateRequest) (*CreateResponse, error) {
	return f.createFn(ctx, userID, req)
}

func (f *fakeService) GetByID(ctx context.Context, callerID, id uuid.UUID, operator bool) (*Transaction, error) {
	return f.getFn(ctx, callerID, id, operator)
}

func (f *fakeService) ListByUser(context.Context, uuid.UUID, int, int) ([]*Transaction, error) {
	return nil, nil
}

func (f *fakeService) GetSchedule(context.Context, uuid.UUID, uuid.UUID, bool) ([]Installment, error) {
	return nil, nil
}

func (f *fakeService) Approve(context.Context, uuid.UUID) (*Transaction, error) {
	return nil, ErrTransactionNotFound
}

func (f *fakeService) Reject(context.Context, uuid.UUID, string) (*Transaction, error) {
	return nil, ErrTransactionNotFound
}

func (f *fakeService) Cancel(context.Context, uuid.UUID, uuid.UUID, bool) (*Transaction, error) {
	return nil, ErrTransactionNotFound
}

func (f *fakeService) RetryPayment(context.Context, uuid.UUID) (*Transaction, error) {
	return nil, ErrTransactionNotFound
}

func (f *fakeService) HandleChargeWebhook(ctx context.Context, event *stripegate.WebhookEvent) error {
	if f.webhookFn != nil {
		return f.webhookFn(ctx, event)
	}
	return nil
}

func (f *fakeService) SweepDue(context.Context, time.Time, int) (int, error) { return 0, nil }

// withIdentity stands in for the auth middleware.
func withIdentity(userID uuid.UUID, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), middleware.UserIDKey, userID)
			ctx = context.WithValue(ctx, middleware.RoleKey, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newTestRouter(svc Service, userID uuid.UUID, role string) http.Handler {
	h := NewHandler(svc, "whsec_test")
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(withIdentity(userID, role))
		r.Route("/transactions", h.Routes)
	})
	r.Post("/webhooks/stripe", h.Webhook)
	return r
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var envelope response.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("invalid response body: %v\n%s", err, rec.Body.String())
	}
	return envelope
}

func createBody(plan int) []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"merchant_id":  uuid.New(),
		"amount":       "100.00",
		"payment_plan": plan,
		"items": []map[string]interface{}{
			{"name": "sneakers", "unit_price": "100.00", "quantity": 1},
		},
	})
	return body
}

func TestCreateHandlerReturnsCreated(t *testing.T) {
	userID := uuid.New()
	svc := &fakeService{
		createFn: func(_ context.Context, gotUser uuid.UUID, req *CreateRequest) (*CreateResponse, error) {
			if gotUser != userID {
				t.Errorf("user id = %s, want %s", gotUser, userID)
			}
			if req.Plan != 4 {
				t.Errorf("plan = %d, want 4", req.Plan)
			}
			return &CreateResponse{
				Transaction:  &Response{ID: uuid.New(), Status: string(StatusApproved)},
				ClientSecret: "cs_1",
			}, nil
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/transactions/", bytes.NewReader(createBody(4)))
	newTestRouter(svc, userID, "customer").ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201\n%s", rec.Code, rec.Body.String())
	}
	if envelope := decodeEnvelope(t, rec); !envelope.Success {
		t.Errorf("success = false: %+v", envelope.Error)
	}
}

func TestCreateHandlerRejectsInvalidPlan(t *testing.T) {
	svc := &fakeService{
		createFn: func(context.Context, uuid.UUID, *CreateRequest) (*CreateResponse, error) {
			t.Error("service must not be called for an invalid plan")
			return nil, nil
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/transactions/", bytes.NewReader(createBody(5)))
	newTestRouter(svc, uuid.New(), "customer").ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422\n%s", rec.Code, rec.Body.String())
	}
}

func TestCreateHandlerMapsDuplicateToConflict(t *testing.T) {
	svc := &fakeService{
		createFn: func(context.Context, uuid.UUID, *CreateRequest) (*CreateResponse, error) {
			return nil, ErrDuplicateTransaction
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/transactions/", bytes.NewReader(createBody(2)))
	newTestRouter(svc, uuid.New(), "customer").ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	envelope := decodeEnvelope(t, rec)
	if envelope.Error == nil || envelope.Error.Code != "DUPLICATE_TRANSACTION" {
		t.Errorf("error = %+v, want DUPLICATE_TRANSACTION", envelope.Error)
	}
}

func TestGetByIDMapsOwnershipToForbidden(t *testing.T) {
	svc := &fakeService{
		getFn: func(context.Context, uuid.UUID, uuid.UUID, bool) (*Transaction, error) {
			return nil, ErrNotTransactionOwner
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/transactions/"+uuid.NewString(), nil)
	newTestRouter(svc, uuid.New(), "customer").ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestOperatorRoutesBlockedForCustomers(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/transactions/"+uuid.NewString()+"/approve", nil)
	newTestRouter(&fakeService{}, uuid.New(), "customer").ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	svc := &fakeService{
		webhookFn: func(context.Context, *stripegate.WebhookEvent) error {
			t.Error("service must not see an unverified webhook")
			return nil
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Stripe-Signature", "t=1,v1=bogus")
	newTestRouter(svc, uuid.New(), "customer").ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestWebhookAcceptsSignedPayload(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"charge.succeeded","charge_id":"ch_1"}`)
	var seen *stripegate.WebhookEvent
	svc := &fakeService{
		webhookFn: func(_ context.Context, event *stripegate.WebhookEvent) error {
			seen = event
			return nil
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", stripegate.SignPayload(payload, "whsec_test", time.Now()))
	newTestRouter(svc, uuid.New(), "customer").ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\n%s", rec.Code, rec.Body.String())
	}
	if seen == nil || seen.ChargeID != "ch_1" {
		t.Errorf("service saw event %+v", seen)
	}
}

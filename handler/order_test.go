package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/coursehub/paygate/gateway"
	"github.com/coursehub/paygate/order"
	"github.com/coursehub/paygate/store"
)

type fakeOrderService struct {
	createResult *order.CreateResult
	createErr    error
	attachResult *order.AttachResult
	attachErr    error
	statusResult *order.StatusResult
	statusErr    error

	gotCreate order.CreateRequest
	gotDriver string
	gotOrder  string
}

func (f *fakeOrderService) Create(ctx context.Context, req order.CreateRequest) (*order.CreateResult, error) {
	f.gotCreate = req
	return f.createResult, f.createErr
}

func (f *fakeOrderService) AttachSourceToken(ctx context.Context, driver, externalID string) (*order.AttachResult, error) {
	f.gotDriver = driver
	f.gotOrder = externalID
	return f.attachResult, f.attachErr
}

func (f *fakeOrderService) GetStatus(ctx context.Context, driver, externalID string) (*order.StatusResult, error) {
	f.gotDriver = driver
	f.gotOrder = externalID
	return f.statusResult, f.statusErr
}

func newTestRouter(svc *fakeOrderService) http.Handler {
	h := NewOrderHandler(svc, validator.New(), "kapitalbank")

	r := chi.NewRouter()
	r.Post("/v1/order", h.CreateOrder)
	r.Get("/v1/order/{orderId}/status", h.GetOrderStatus)
	r.Post("/v1/order/{orderId}/source-token", h.AttachSourceToken)
	return r
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestCreateOrderEndpoint(t *testing.T) {
	svc := &fakeOrderService{
		createResult: &order.CreateResult{
			Order: &store.Order{
				ExternalID: "123456",
				Driver:     "kapitalbank",
				TypeRid:    "Order_SMS",
				Amount:     1500,
				Status:     "Preparing",
			},
			FormURL: "https://hpp.example.com/flex?id=123456&password=pw123",
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/order",
		strings.NewReader(`{"amount":1500,"description":"course purchase"}`))
	newTestRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "123456", data["orderId"])
	assert.Equal(t, "https://hpp.example.com/flex?id=123456&password=pw123", data["formUrl"])

	// Defaults applied when the payload omits driver and type.
	assert.Equal(t, "kapitalbank", svc.gotCreate.Driver)
	assert.Equal(t, gateway.TypePurchase, svc.gotCreate.TypeRid)
}

func TestCreateOrderValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing amount", `{"description":"x"}`},
		{"negative amount", `{"amount":-5}`},
		{"unknown type rid", `{"amount":100,"typeRid":"Order_XXX"}`},
		{"malformed json", `{"amount":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/v1/order", strings.NewReader(tt.body))
			newTestRouter(&fakeOrderService{}).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCreateOrderGatewayErrorMapped(t *testing.T) {
	svc := &fakeOrderService{
		createErr: gateway.NewInvalidRequest("kapitalbank", "amount must be positive"),
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/order", strings.NewReader(`{"amount":100}`))
	newTestRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "InvalidRequest", body["message"])
	assert.Equal(t, "amount must be positive", body["error"])
}

func TestCreateOrderTransportFailureSanitized(t *testing.T) {
	svc := &fakeOrderService{
		createErr: gateway.NewTransportFailure("kapitalbank",
			assert.AnError),
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/order", strings.NewReader(`{"amount":100}`))
	newTestRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "payment gateway unreachable", body["error"])
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}

func TestCreateOrderUnknownErrorHidden(t *testing.T) {
	svc := &fakeOrderService{createErr: assert.AnError}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/order", strings.NewReader(`{"amount":100}`))
	newTestRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}

func TestGetOrderStatusEndpoint(t *testing.T) {
	svc := &fakeOrderService{
		statusResult: &order.StatusResult{
			Order:  &store.Order{ExternalID: "123456", Driver: "kapitalbank", Status: "FullyPaid"},
			Remote: &gateway.SimpleStatus{ID: "123456", Status: gateway.StatusFullyPaid},
			Status: gateway.StatusFullyPaid,
			Paid:   true,
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/order/123456/status", nil)
	newTestRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "kapitalbank", svc.gotDriver)
	assert.Equal(t, "123456", svc.gotOrder)

	data := decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, "FullyPaid", data["status"])
	assert.Equal(t, true, data["paid"])
}

func TestGetOrderStatusNotFound(t *testing.T) {
	svc := &fakeOrderService{statusErr: gateway.NewOrderNotFound("kapitalbank")}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/order/999999/status", nil)
	newTestRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetOrderStatusDriverFromQuery(t *testing.T) {
	svc := &fakeOrderService{
		statusResult: &order.StatusResult{
			Order:  &store.Order{ExternalID: "cs_123", Driver: "stripe", Status: "Preparing"},
			Remote: &gateway.SimpleStatus{ID: "cs_123", Status: gateway.StatusPreparing},
			Status: gateway.StatusPreparing,
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/order/cs_123/status?driver=stripe", nil)
	newTestRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "stripe", svc.gotDriver)
}

func TestAttachSourceTokenEndpoint(t *testing.T) {
	tokenID := "987"
	svc := &fakeOrderService{
		attachResult: &order.AttachResult{
			Order: &store.Order{ExternalID: "123456", Driver: "kapitalbank", Status: "Preparing"},
			Response: &gateway.SetSourceTokenResponse{
				HTTPCode: 200,
				Token:    &gateway.SourceToken{ID: &tokenID},
			},
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/order/123456/source-token", nil)
	newTestRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "123456", svc.gotOrder)

	data := decodeBody(t, rec)["data"].(map[string]any)
	token := data["token"].(map[string]any)
	assert.Equal(t, "987", token["id"])
}

func TestAttachSourceTokenRejectionMapped(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid token", gateway.NewInvalidToken("kapitalbank", "bad token"), http.StatusBadRequest},
		{"invalid order state", gateway.NewInvalidOrderState("kapitalbank", "already paid"), http.StatusBadRequest},
		{"order not found", gateway.NewOrderNotFound("kapitalbank"), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeOrderService{attachErr: tt.err}

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/v1/order/123456/source-token", nil)
			newTestRouter(svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

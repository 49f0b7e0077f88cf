package kapitalbank

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/coursehub/paygate/gateway"
	"github.com/coursehub/paygate/infra/config"
	"github.com/coursehub/paygate/infra/logger"
)

const driverName = "kapitalbank"

const (
	errCodeInvalidRequest    = "InvalidRequest"
	errCodeInvalidToken      = "InvalidToken"
	errCodeInvalidOrderState = "InvalidOrderState"
)

// Gateway implements the gateway.PaymentGateway interface for the
// Kapital Bank E-commerce API (hosted payment page).
type Gateway struct {
	apiURL          string
	hppRedirectURL  string
	user            string
	pass            string
	currency        string
	language        string
	capturePurposes []string
	httpClient      *gateway.HTTPClient
}

// NewGateway creates a new Kapital Bank gateway driver
func NewGateway() gateway.PaymentGateway {
	return &Gateway{}
}

// Initialize sets up the driver from its configuration block
func (g *Gateway) Initialize(cfg config.DriverConfig) error {
	g.apiURL = cfg.APIURL
	g.hppRedirectURL = cfg.HPPRedirectURL
	g.user = cfg.User
	g.pass = cfg.Pass
	g.currency = cfg.Currency
	g.language = cfg.Language
	g.capturePurposes = cfg.CapturePurposes

	if g.apiURL == "" {
		return errors.New("kapitalbank: api url is required")
	}
	if g.hppRedirectURL == "" {
		return errors.New("kapitalbank: hpp redirect url is required")
	}
	if g.user == "" || g.pass == "" {
		return errors.New("kapitalbank: user and pass are required")
	}

	if g.currency == "" {
		g.currency = "AZN"
	}
	if g.language == "" {
		g.language = "az"
	}
	if len(g.capturePurposes) == 0 {
		g.capturePurposes = []string{"Cit"}
	}

	g.httpClient = gateway.NewHTTPClient(&gateway.ClientConfig{})
	return nil
}

// CreateOrder registers a new order and derives the hosted-payment-page URL
func (g *Gateway) CreateOrder(ctx context.Context, typeRid gateway.OrderTypeRid, amount int64, description string) (*gateway.CreateOrderResponse, error) {
	body := map[string]any{
		"order": map[string]any{
			"typeRid":               string(typeRid),
			"amount":                amount,
			"currency":              g.currency,
			"language":              g.language,
			"description":           description,
			"hppRedirectUrl":        g.hppRedirectURL,
			"hppCofCapturePurposes": g.capturePurposes,
		},
	}

	resp, err := g.httpClient.SendJSON(ctx, &gateway.Request{
		Method:  http.MethodPost,
		URL:     g.apiURL,
		Headers: g.authHeaders(),
		Body:    body,
	})
	if err != nil {
		g.logInteraction("payment/kapitalbank/create-order/"+string(typeRid), nil, 0, err)
		return nil, gateway.NewTransportFailure(driverName, err)
	}

	var payload apiEnvelope
	g.httpClient.DecodeJSON(resp, &payload)

	// Log before error classification so rejected calls leave a trace too.
	g.logInteraction("payment/kapitalbank/create-order/"+string(typeRid), &payload, resp.StatusCode, nil)

	if resp.StatusCode == http.StatusBadRequest && payload.errorCode() == errCodeInvalidRequest {
		return nil, gateway.NewInvalidRequest(driverName, payload.errorDescription())
	}
	if resp.StatusCode != http.StatusOK {
		return nil, gateway.NewGatewayError(driverName, resp.StatusCode, payload.errorCode(), payload.errorDescription())
	}
	if payload.Order == nil {
		return nil, gateway.NewGatewayError(driverName, resp.StatusCode, "", "create order response carried no order object")
	}

	order := mapOrder(payload.Order)
	return &gateway.CreateOrderResponse{
		HTTPCode: resp.StatusCode,
		Order:    order,
		FormURL:  fmt.Sprintf("%s?id=%s&password=%s", order.HppURL, order.ID, order.Password),
	}, nil
}

// SetSourceToken attaches the stored payment instrument to an existing order.
// The three 400-level rejections are mutually exclusive per response and are
// classified in a fixed order: InvalidToken, InvalidRequest, InvalidOrderState.
func (g *Gateway) SetSourceToken(ctx context.Context, orderID, orderPassword string) (*gateway.SetSourceTokenResponse, error) {
	body := map[string]any{
		"order": map[string]any{
			"initiationEnvKind": string(gateway.InitiationServer),
		},
		"token": map[string]any{
			"storedId": storedID(orderID),
		},
	}

	resp, err := g.httpClient.SendJSON(ctx, &gateway.Request{
		Method:      http.MethodPost,
		URL:         gateway.JoinURL(g.apiURL, orderID+"/set-src-token"),
		QueryParams: map[string]string{"password": orderPassword},
		Headers:     g.authHeaders(),
		Body:        body,
	})
	if err != nil {
		g.logInteraction("payment/kapitalbank/set-source-token", nil, 0, err)
		return nil, gateway.NewTransportFailure(driverName, err)
	}

	var payload apiEnvelope
	g.httpClient.DecodeJSON(resp, &payload)

	g.logInteraction("payment/kapitalbank/set-source-token", &payload, resp.StatusCode, nil)

	if resp.StatusCode == http.StatusBadRequest {
		switch payload.errorCode() {
		case errCodeInvalidToken:
			return nil, gateway.NewInvalidToken(driverName, payload.errorDescription())
		case errCodeInvalidRequest:
			return nil, gateway.NewInvalidRequest(driverName, payload.errorDescription())
		case errCodeInvalidOrderState:
			return nil, gateway.NewInvalidOrderState(driverName, payload.errorDescription())
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, gateway.NewGatewayError(driverName, resp.StatusCode, payload.errorCode(), payload.errorDescription())
	}

	return &gateway.SetSourceTokenResponse{
		HTTPCode: resp.StatusCode,
		Order:    mapSetSourceTokenOrder(payload.Order),
		Token:    mapSourceToken(payload.SrcToken),
	}, nil
}

// GetSimpleStatusByOrderID retrieves the gateway's short status view
func (g *Gateway) GetSimpleStatusByOrderID(ctx context.Context, orderID string) (*gateway.SimpleStatusResponse, error) {
	resp, err := g.httpClient.SendJSON(ctx, &gateway.Request{
		Method:  http.MethodGet,
		URL:     gateway.JoinURL(g.apiURL, orderID),
		Headers: g.authHeaders(),
	})
	if err != nil {
		g.logInteraction("payment/kapitalbank/get-simple-status", nil, 0, err)
		return nil, gateway.NewTransportFailure(driverName, err)
	}

	var payload apiEnvelope
	g.httpClient.DecodeJSON(resp, &payload)

	g.logInteraction("payment/kapitalbank/get-simple-status", &payload, resp.StatusCode, nil)

	if resp.StatusCode == http.StatusBadRequest && payload.errorCode() == errCodeInvalidRequest {
		return nil, gateway.NewInvalidRequest(driverName, payload.errorDescription())
	}
	if resp.StatusCode != http.StatusOK {
		return nil, gateway.NewGatewayError(driverName, resp.StatusCode, payload.errorCode(), payload.errorDescription())
	}
	if payload.Order == nil {
		// A success status with no order object means the gateway has no
		// such order.
		return nil, gateway.NewOrderNotFound(driverName)
	}

	return &gateway.SimpleStatusResponse{
		HTTPCode: resp.StatusCode,
		Order:    mapSimpleStatus(payload.Order),
	}, nil
}

func (g *Gateway) authHeaders() map[string]string {
	token := base64.StdEncoding.EncodeToString([]byte(g.user + ":" + g.pass))
	return map[string]string{
		"Authorization": "Basic " + token,
	}
}

// logInteraction records one structured entry per gateway exchange. The
// order password is deliberately absent from the fields.
func (g *Gateway) logInteraction(category string, payload *apiEnvelope, httpCode int, transportErr error) {
	fields := map[string]any{
		"category": category,
		"httpCode": httpCode,
	}
	if transportErr != nil {
		fields["transportError"] = transportErr.Error()
	}
	if payload != nil {
		if payload.ErrorCode != nil {
			fields["errorCode"] = *payload.ErrorCode
		}
		if payload.ErrorDescription != nil {
			fields["errorDescription"] = *payload.ErrorDescription
		}
		if payload.Order != nil {
			fields["orderId"] = formatID(payload.Order.ID)
			fields["status"] = strVal(payload.Order.Status)
			fields["hppUrl"] = strVal(payload.Order.HppURL)
			fields["cvv2AuthStatus"] = strVal(payload.Order.Cvv2AuthStatus)
		}
	}

	logger.Info("kapital bank gateway call", logger.LogContext{
		Driver: driverName,
		Fields: fields,
	})
}

// apiEnvelope is the decoded shape of every Kapital Bank response. All
// fields are optional on the wire; absence maps to nil, never to an error.
type apiEnvelope struct {
	Order            *apiOrder    `json:"order"`
	SrcToken         *apiSrcToken `json:"srcToken"`
	ErrorCode        *string      `json:"errorCode"`
	ErrorDescription *string      `json:"errorDescription"`
}

func (e *apiEnvelope) errorCode() string        { return strVal(e.ErrorCode) }
func (e *apiEnvelope) errorDescription() string { return strVal(e.ErrorDescription) }

type apiOrder struct {
	ID              *int64        `json:"id"`
	HppURL          *string       `json:"hppUrl"`
	Password        *string       `json:"password"`
	Status          *string       `json:"status"`
	Cvv2AuthStatus  *string       `json:"cvv2AuthStatus"`
	Secret          *string       `json:"secret"`
	TypeRid         *string       `json:"typeRid"`
	PrevStatus      *string       `json:"prevStatus"`
	LastStatusLogin *string       `json:"lastStatusLogin"`
	Amount          *float64      `json:"amount"`
	Currency        *string       `json:"currency"`
	CreateTime      *string       `json:"createTime"`
	FinishTime      *string       `json:"finishTime"`
	Type            *apiOrderType `json:"type"`
	TdsV1AuthStatus *string       `json:"tdsV1AuthStatus"`
	TdsV2AuthStatus *string       `json:"tdsV2AuthStatus"`
	OtpAuthStatus   *string       `json:"otpAuthStatus"`
}

type apiOrderType struct {
	Title *string `json:"title"`
}

type apiSrcToken struct {
	ID            *int64   `json:"id"`
	PaymentMethod *string  `json:"paymentMethod"`
	Role          *string  `json:"role"`
	Status        *string  `json:"status"`
	RegTime       *string  `json:"regTime"`
	DisplayName   *string  `json:"displayName"`
	Card          *apiCard `json:"card"`
}

type apiCard struct {
	Expiration *string `json:"expiration"`
	Brand      *string `json:"brand"`
}

func mapOrder(o *apiOrder) *gateway.Order {
	return &gateway.Order{
		ID:             formatID(o.ID),
		HppURL:         strVal(o.HppURL),
		Password:       strVal(o.Password),
		Status:         gateway.OrderStatus(strVal(o.Status)),
		Cvv2AuthStatus: o.Cvv2AuthStatus,
		Secret:         o.Secret,
	}
}

func mapSimpleStatus(o *apiOrder) *gateway.SimpleStatus {
	status := &gateway.SimpleStatus{
		ID:              formatID(o.ID),
		TypeRid:         o.TypeRid,
		Status:          gateway.OrderStatus(strVal(o.Status)),
		PrevStatus:      o.PrevStatus,
		LastStatusLogin: o.LastStatusLogin,
		Amount:          o.Amount,
		Currency:        o.Currency,
		CreateTime:      o.CreateTime,
		FinishTime:      o.FinishTime,
	}
	if o.Type != nil {
		status.Type = gateway.SimpleStatusType{Title: o.Type.Title}
	}
	return status
}

func mapSetSourceTokenOrder(o *apiOrder) *gateway.SetSourceTokenOrder {
	if o == nil {
		return nil
	}
	return &gateway.SetSourceTokenOrder{
		Status:          o.Status,
		Cvv2AuthStatus:  o.Cvv2AuthStatus,
		TdsV1AuthStatus: o.TdsV1AuthStatus,
		TdsV2AuthStatus: o.TdsV2AuthStatus,
		OtpAuthStatus:   o.OtpAuthStatus,
	}
}

func mapSourceToken(t *apiSrcToken) *gateway.SourceToken {
	if t == nil {
		return nil
	}
	token := &gateway.SourceToken{
		PaymentMethod: t.PaymentMethod,
		Role:          t.Role,
		Status:        t.Status,
		RegTime:       t.RegTime,
		DisplayName:   t.DisplayName,
	}
	if t.ID != nil {
		id := strconv.FormatInt(*t.ID, 10)
		token.ID = &id
	}
	if t.Card != nil {
		token.Card = &gateway.SourceTokenCard{
			Expiration: t.Card.Expiration,
			Brand:      t.Card.Brand,
		}
	}
	return token
}

// storedId is numeric on the wire when the order id is numeric
func storedID(orderID string) any {
	if n, err := strconv.ParseInt(orderID, 10, 64); err == nil {
		return n
	}
	return orderID
}

func formatID(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}

func strVal(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

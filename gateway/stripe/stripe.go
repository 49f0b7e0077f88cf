package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"github.com/coursehub/paygate/gateway"
	"github.com/coursehub/paygate/infra/config"
	"github.com/coursehub/paygate/infra/logger"
)

const driverName = "stripe"

// Gateway implements the gateway.PaymentGateway interface on top of Stripe
// Checkout. A checkout session plays the role of the hosted-payment-page
// order: the session URL is the redirect target and the session id is the
// order id. Sessions carry no separate password, so the password field stays
// empty and the session URL is already the complete form URL.
type Gateway struct {
	redirectURL string
	currency    string
	sc          *client.API
}

// NewGateway creates a new Stripe gateway driver
func NewGateway() gateway.PaymentGateway {
	return &Gateway{}
}

// Initialize sets up the driver from its configuration block
func (g *Gateway) Initialize(cfg config.DriverConfig) error {
	if cfg.APIKey == "" {
		return errors.New("stripe: api key is required")
	}
	if cfg.HPPRedirectURL == "" {
		return errors.New("stripe: hpp redirect url is required")
	}

	g.redirectURL = cfg.HPPRedirectURL
	g.currency = strings.ToLower(cfg.Currency)
	if g.currency == "" {
		g.currency = "azn"
	}

	g.sc = &client.API{}
	g.sc.Init(cfg.APIKey, nil)
	return nil
}

// CreateOrder opens a checkout session for the amount. Repeat order types
// request off-session reuse of the payment method so later merchant-initiated
// charges can run against the stored instrument.
func (g *Gateway) CreateOrder(ctx context.Context, typeRid gateway.OrderTypeRid, amount int64, description string) (*gateway.CreateOrderResponse, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(g.redirectURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(g.currency),
					UnitAmount: stripe.Int64(amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(description),
					},
				},
			},
		},
	}
	params.Context = ctx

	if typeRid == gateway.TypeRepeatPurchase || typeRid == gateway.TypeRepeatPreAuth {
		params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{
			SetupFutureUsage: stripe.String("off_session"),
		}
	}

	session, err := g.sc.CheckoutSessions.New(params)
	if err != nil {
		g.logInteraction("payment/stripe/create-order/"+string(typeRid), nil, err)
		return nil, classify(err)
	}

	g.logInteraction("payment/stripe/create-order/"+string(typeRid), session, nil)

	return &gateway.CreateOrderResponse{
		HTTPCode: 200,
		Order: &gateway.Order{
			ID:     session.ID,
			HppURL: session.URL,
			Status: mapStatus(session),
		},
		FormURL: session.URL,
	}, nil
}

// SetSourceToken surfaces the payment method Stripe stored against the
// session's payment intent. Stripe binds the instrument during checkout, so
// this is a read, not a write.
func (g *Gateway) SetSourceToken(ctx context.Context, orderID, orderPassword string) (*gateway.SetSourceTokenResponse, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent.payment_method")

	session, err := g.sc.CheckoutSessions.Get(orderID, params)
	if err != nil {
		g.logInteraction("payment/stripe/set-source-token", nil, err)
		return nil, classify(err)
	}

	g.logInteraction("payment/stripe/set-source-token", session, nil)

	status := string(mapStatus(session))
	resp := &gateway.SetSourceTokenResponse{
		HTTPCode: 200,
		Order:    &gateway.SetSourceTokenOrder{Status: &status},
	}

	if session.PaymentIntent != nil && session.PaymentIntent.PaymentMethod != nil {
		pm := session.PaymentIntent.PaymentMethod
		method := string(pm.Type)
		token := &gateway.SourceToken{
			ID:            stripe.String(pm.ID),
			PaymentMethod: &method,
		}
		if pm.Card != nil {
			expiration := fmt.Sprintf("%02d/%d", pm.Card.ExpMonth, pm.Card.ExpYear%100)
			brand := string(pm.Card.Brand)
			token.Card = &gateway.SourceTokenCard{
				Expiration: &expiration,
				Brand:      &brand,
			}
			if pm.Card.Last4 != "" {
				display := "XXXX" + pm.Card.Last4
				token.DisplayName = &display
			}
		}
		resp.Token = token
	}

	return resp, nil
}

// GetSimpleStatusByOrderID retrieves the checkout session and reduces it to
// the short status view
func (g *Gateway) GetSimpleStatusByOrderID(ctx context.Context, orderID string) (*gateway.SimpleStatusResponse, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	session, err := g.sc.CheckoutSessions.Get(orderID, params)
	if err != nil {
		g.logInteraction("payment/stripe/get-simple-status", nil, err)
		return nil, classify(err)
	}

	g.logInteraction("payment/stripe/get-simple-status", session, nil)

	amount := float64(session.AmountTotal) / 100
	currency := strings.ToUpper(string(session.Currency))

	return &gateway.SimpleStatusResponse{
		HTTPCode: 200,
		Order: &gateway.SimpleStatus{
			ID:       session.ID,
			Status:   mapStatus(session),
			Amount:   &amount,
			Currency: &currency,
		},
	}, nil
}

func (g *Gateway) logInteraction(category string, session *stripe.CheckoutSession, callErr error) {
	fields := map[string]any{
		"category": category,
	}
	if session != nil {
		fields["sessionId"] = session.ID
		fields["status"] = string(session.Status)
		fields["paymentStatus"] = string(session.PaymentStatus)
	}
	if callErr != nil {
		var se *stripe.Error
		if errors.As(callErr, &se) {
			fields["httpCode"] = se.HTTPStatusCode
			fields["errorCode"] = string(se.Code)
			fields["errorType"] = string(se.Type)
		} else {
			fields["transportError"] = callErr.Error()
		}
	}

	logger.Info("stripe gateway call", logger.LogContext{
		Driver: driverName,
		Fields: fields,
	})
}

// mapStatus reduces the session status pair to the shared order status set
func mapStatus(session *stripe.CheckoutSession) gateway.OrderStatus {
	switch session.Status {
	case stripe.CheckoutSessionStatusExpired:
		return gateway.StatusExpired
	case stripe.CheckoutSessionStatusComplete:
		if session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid ||
			session.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired {
			return gateway.StatusFullyPaid
		}
		return gateway.StatusPreparing
	default:
		return gateway.StatusPreparing
	}
}

// classify converts a Stripe client error into the shared error taxonomy
func classify(err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return gateway.NewTransportFailure(driverName, err)
	}

	switch {
	case se.Code == stripe.ErrorCodeResourceMissing:
		return gateway.NewOrderNotFound(driverName)
	case se.Type == stripe.ErrorTypeInvalidRequest:
		return gateway.NewInvalidRequest(driverName, se.Msg)
	default:
		return gateway.NewGatewayError(driverName, se.HTTPStatusCode, string(se.Code), se.Msg)
	}
}

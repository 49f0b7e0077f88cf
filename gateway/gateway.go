package gateway

import (
	"context"

	"github.com/coursehub/paygate/infra/config"
)

// OrderStatus mirrors the status reported by the external gateway. The three
// named values are the ones this system acts on; any other value is carried
// through opaque so a gateway-side addition never breaks status reads.
type OrderStatus string

const (
	StatusPreparing OrderStatus = "Preparing"
	StatusFullyPaid OrderStatus = "FullyPaid"
	StatusExpired   OrderStatus = "Expired"
)

// Terminal reports whether the status is final. A local order in a terminal
// status is never moved back to a non-terminal one by reconciliation.
func (s OrderStatus) Terminal() bool {
	return s == StatusFullyPaid || s == StatusExpired
}

// OrderTypeRid is the gateway order type discriminator
type OrderTypeRid string

const (
	TypePurchase       OrderTypeRid = "Order_SMS"
	TypePreAuth        OrderTypeRid = "Order_DMS"
	TypeRepeatPurchase OrderTypeRid = "Order_REC"
	TypeRepeatPreAuth  OrderTypeRid = "DMSN3D"
	TypeCardToCard     OrderTypeRid = "OCT"
)

// InitiationEnvKind indicates the environment kind of the order initiation
type InitiationEnvKind string

const (
	InitiationServer  InitiationEnvKind = "Server"  // merchant-initiated (MIT/recurring)
	InitiationBrowser InitiationEnvKind = "Browser" // customer-initiated (CIT)
)

// Order holds the gateway-shaped fields of a freshly created order.
// Pointer fields are nullable on the wire; a field the gateway omitted
// maps to nil, never to a decode error.
type Order struct {
	ID             string      `json:"id"`
	HppURL         string      `json:"hppUrl"`
	Password       string      `json:"password"`
	Status         OrderStatus `json:"status"`
	Cvv2AuthStatus *string     `json:"cvv2AuthStatus"`
	Secret         *string     `json:"secret"`
}

// CreateOrderResponse is the result of a create-order call.
// FormURL is present iff Order is present and the call succeeded.
type CreateOrderResponse struct {
	HTTPCode       int    `json:"httpCode"`
	Order          *Order `json:"order"`
	TransportError string `json:"transportError,omitempty"`
	FormURL        string `json:"formUrl,omitempty"`
}

// SourceTokenCard holds the card sub-record of a stored source token
type SourceTokenCard struct {
	Expiration *string `json:"expiration"`
	Brand      *string `json:"brand"`
}

// SourceToken is a gateway-issued reference to a stored payment instrument
type SourceToken struct {
	ID            *string          `json:"id"`
	PaymentMethod *string          `json:"paymentMethod"`
	Role          *string          `json:"role"`
	Status        *string          `json:"status"`
	RegTime       *string          `json:"regTime"`
	DisplayName   *string          `json:"displayName"`
	Card          *SourceTokenCard `json:"card"`
}

// SetSourceTokenOrder carries the order-side fields of a set-source-token reply
type SetSourceTokenOrder struct {
	Status          *string `json:"status"`
	Cvv2AuthStatus  *string `json:"cvv2AuthStatus"`
	TdsV1AuthStatus *string `json:"tdsV1AuthStatus"`
	TdsV2AuthStatus *string `json:"tdsV2AuthStatus"`
	OtpAuthStatus   *string `json:"otpAuthStatus"`
}

// SetSourceTokenResponse is the result of attaching a stored token to an order
type SetSourceTokenResponse struct {
	HTTPCode       int                  `json:"httpCode"`
	Order          *SetSourceTokenOrder `json:"order"`
	Token          *SourceToken         `json:"token"`
	TransportError string               `json:"transportError,omitempty"`
}

// SimpleStatusType carries the order type descriptor of a status reply
type SimpleStatusType struct {
	Title *string `json:"title"`
}

// SimpleStatus is the gateway's short status view of an order
type SimpleStatus struct {
	ID              string           `json:"id"`
	TypeRid         *string          `json:"typeRid"`
	Status          OrderStatus      `json:"status"`
	PrevStatus      *string          `json:"prevStatus"`
	LastStatusLogin *string          `json:"lastStatusLogin"`
	Amount          *float64         `json:"amount"`
	Currency        *string          `json:"currency"`
	CreateTime      *string          `json:"createTime"`
	FinishTime      *string          `json:"finishTime"`
	Type            SimpleStatusType `json:"type"`
}

// SimpleStatusResponse is the result of a status query
type SimpleStatusResponse struct {
	HTTPCode       int           `json:"httpCode"`
	Order          *SimpleStatus `json:"order"`
	TransportError string        `json:"transportError,omitempty"`
}

// PaymentGateway defines the capability set every gateway driver implements
type PaymentGateway interface {
	// Initialize sets up the driver from its environment-scoped configuration block
	Initialize(cfg config.DriverConfig) error

	// CreateOrder registers a new order with the gateway. Amount is in minor
	// currency units. The returned FormURL is the hosted-payment-page redirect.
	CreateOrder(ctx context.Context, typeRid OrderTypeRid, amount int64, description string) (*CreateOrderResponse, error)

	// SetSourceToken attaches the stored payment instrument to an existing
	// order, authenticating with the order's gateway-issued password.
	SetSourceToken(ctx context.Context, orderID, orderPassword string) (*SetSourceTokenResponse, error)

	// GetSimpleStatusByOrderID retrieves the gateway's current short status
	// view of the order.
	GetSimpleStatusByOrderID(ctx context.Context, orderID string) (*SimpleStatusResponse, error)
}

// Factory is a function type that creates a new, uninitialized PaymentGateway
type Factory func() PaymentGateway

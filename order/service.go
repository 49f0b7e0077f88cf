package order

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/coursehub/paygate/gateway"
	"github.com/coursehub/paygate/infra/config"
	"github.com/coursehub/paygate/store"
)

// AuditLogger records audit events for order operations. Implementations
// must never fail the calling operation; delivery problems are their own
// concern.
type AuditLogger interface {
	Record(ctx context.Context, category string, fields map[string]any)
}

// GatewayResolver yields the configured gateway driver instance for an
// environment. *gateway.Registry satisfies it.
type GatewayResolver interface {
	Resolve(name string, env config.Environment) (gateway.PaymentGateway, error)
}

// Service orchestrates order operations across the gateway drivers and the
// local store
type Service struct {
	resolver GatewayResolver
	store    *store.Store
	env      config.Environment
	audit    AuditLogger
}

// NewService creates a new order service
func NewService(resolver GatewayResolver, st *store.Store, env config.Environment, audit AuditLogger) *Service {
	return &Service{
		resolver: resolver,
		store:    st,
		env:      env,
		audit:    audit,
	}
}

// CreateRequest describes a new order to open with a gateway
type CreateRequest struct {
	Driver      string
	TypeRid     gateway.OrderTypeRid
	Amount      int64
	Description string
}

// CreateResult carries the persisted order and the hosted-payment-page URL
// the customer is redirected to
type CreateResult struct {
	Order   *store.Order
	FormURL string
}

// Create opens an order with the gateway, persists it, and returns the form
// URL. The order only exists locally once the gateway accepted it.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	gw, err := s.resolver.Resolve(req.Driver, s.env)
	if err != nil {
		return nil, err
	}

	resp, err := gw.CreateOrder(ctx, req.TypeRid, req.Amount, req.Description)
	if err != nil {
		s.record(ctx, "order/create/failed", map[string]any{
			"driver":  req.Driver,
			"typeRid": string(req.TypeRid),
			"amount":  req.Amount,
			"error":   err.Error(),
		})
		return nil, err
	}

	localOrder := &store.Order{
		ExternalID:  resp.Order.ID,
		Driver:      req.Driver,
		Environment: string(s.env),
		TypeRid:     string(req.TypeRid),
		Amount:      req.Amount,
		Description: req.Description,
		Status:      string(resp.Order.Status),
		HppURL:      resp.Order.HppURL,
		FormURL:     resp.FormURL,
		Password:    resp.Order.Password,
		Secret:      resp.Order.Secret,
	}

	err = s.store.WithinTx(ctx, func(tx *store.Tx) error {
		return tx.CreateOrder(ctx, localOrder)
	})
	if err != nil {
		return nil, fmt.Errorf("order accepted by gateway but not persisted: %w", err)
	}

	s.record(ctx, "order/create", map[string]any{
		"driver":  req.Driver,
		"typeRid": string(req.TypeRid),
		"amount":  req.Amount,
		"orderId": localOrder.ExternalID,
		"status":  localOrder.Status,
		"formUrl": redactedFormURL(localOrder.FormURL),
		"localId": localOrder.ID,
	})

	return &CreateResult{Order: localOrder, FormURL: resp.FormURL}, nil
}

// AttachResult carries the gateway's set-source-token reply alongside the
// refreshed local order
type AttachResult struct {
	Order    *store.Order
	Response *gateway.SetSourceTokenResponse
}

// AttachSourceToken binds the stored payment instrument to an order. The
// local store is consulted first: an order unknown locally is rejected
// without a gateway round trip.
func (s *Service) AttachSourceToken(ctx context.Context, driver, externalID string) (*AttachResult, error) {
	localOrder, err := s.store.FindOrderByExternalID(ctx, driver, externalID)
	if err != nil {
		if errors.Is(err, store.ErrOrderNotFound) {
			return nil, gateway.NewOrderNotFound(driver)
		}
		return nil, err
	}

	gw, err := s.resolver.Resolve(driver, s.env)
	if err != nil {
		return nil, err
	}

	resp, err := gw.SetSourceToken(ctx, externalID, localOrder.Password)
	if err != nil {
		s.record(ctx, "order/attach-source-token/failed", map[string]any{
			"driver":  driver,
			"orderId": externalID,
			"error":   err.Error(),
		})
		return nil, err
	}

	err = s.store.WithinTx(ctx, func(tx *store.Tx) error {
		if resp.Token != nil {
			record := &store.SourceTokenRecord{
				OrderID:       localOrder.ID,
				TokenID:       resp.Token.ID,
				PaymentMethod: resp.Token.PaymentMethod,
				Role:          resp.Token.Role,
				Status:        resp.Token.Status,
				RegTime:       resp.Token.RegTime,
				DisplayName:   resp.Token.DisplayName,
			}
			if resp.Token.Card != nil {
				record.CardBrand = resp.Token.Card.Brand
				record.CardExpiry = resp.Token.Card.Expiration
			}
			if err := tx.AttachSourceToken(ctx, record); err != nil {
				return err
			}
		}

		if resp.Order != nil && resp.Order.Status != nil {
			localStatus := gateway.OrderStatus(localOrder.Status)
			remoteStatus := gateway.OrderStatus(*resp.Order.Status)
			if !localStatus.Terminal() && remoteStatus != localStatus {
				if err := tx.UpdateOrderStatus(ctx, localOrder.ID, string(remoteStatus)); err != nil {
					return err
				}
				localOrder.Status = string(remoteStatus)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("source token accepted by gateway but not persisted: %w", err)
	}

	fields := map[string]any{
		"driver":  driver,
		"orderId": externalID,
		"status":  localOrder.Status,
	}
	if resp.Token != nil && resp.Token.DisplayName != nil {
		fields["tokenDisplayName"] = *resp.Token.DisplayName
	}
	s.record(ctx, "order/attach-source-token", fields)

	return &AttachResult{Order: localOrder, Response: resp}, nil
}

// StatusResult carries the reconciled order view. Status is the effective
// local status after reconciliation; Remote is the gateway's raw view.
type StatusResult struct {
	Order  *store.Order
	Remote *gateway.SimpleStatus
	Status gateway.OrderStatus
	Paid   bool
}

// GetStatus queries the gateway for the order's current status and
// reconciles the local record with it. A local order already in a terminal
// status is never moved to a different one; the divergence is audited
// instead.
func (s *Service) GetStatus(ctx context.Context, driver, externalID string) (*StatusResult, error) {
	localOrder, err := s.store.FindOrderByExternalID(ctx, driver, externalID)
	if err != nil {
		if errors.Is(err, store.ErrOrderNotFound) {
			return nil, gateway.NewOrderNotFound(driver)
		}
		return nil, err
	}

	gw, err := s.resolver.Resolve(driver, s.env)
	if err != nil {
		return nil, err
	}

	resp, err := gw.GetSimpleStatusByOrderID(ctx, externalID)
	if err != nil {
		s.record(ctx, "order/status/failed", map[string]any{
			"driver":  driver,
			"orderId": externalID,
			"error":   err.Error(),
		})
		return nil, err
	}

	localStatus := gateway.OrderStatus(localOrder.Status)
	remoteStatus := resp.Order.Status
	effective := localStatus

	switch {
	case remoteStatus == localStatus:
		// Nothing to reconcile.
	case localStatus.Terminal():
		// Sticky: the local terminal status wins, the divergence is audited.
		s.record(ctx, "order/status/divergence", map[string]any{
			"driver":       driver,
			"orderId":      externalID,
			"localStatus":  string(localStatus),
			"remoteStatus": string(remoteStatus),
		})
	default:
		if err := s.store.UpdateOrderStatus(ctx, driver, externalID, string(remoteStatus)); err != nil {
			return nil, fmt.Errorf("failed to reconcile order status: %w", err)
		}
		localOrder.Status = string(remoteStatus)
		effective = remoteStatus
	}

	s.record(ctx, "order/status", map[string]any{
		"driver":       driver,
		"orderId":      externalID,
		"status":       string(effective),
		"remoteStatus": string(remoteStatus),
	})

	return &StatusResult{
		Order:  localOrder,
		Remote: resp.Order,
		Status: effective,
		Paid:   effective == gateway.StatusFullyPaid,
	}, nil
}

// IsPaid reports whether the order has been fully paid, reconciling the
// local record on the way
func (s *Service) IsPaid(ctx context.Context, driver, externalID string) (bool, error) {
	result, err := s.GetStatus(ctx, driver, externalID)
	if err != nil {
		return false, err
	}
	return result.Paid, nil
}

// redactedFormURL masks the password query parameter. The clear form URL
// never leaves the operation path; audit records carry the redacted form.
func redactedFormURL(formURL string) string {
	u, err := url.Parse(formURL)
	if err != nil {
		return ""
	}
	q := u.Query()
	if q.Has("password") {
		q.Set("password", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (s *Service) record(ctx context.Context, category string, fields map[string]any) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, category, fields)
}

// Package paygate provides the order-payment integration layer for the
// course purchase flow. It opens orders with hosted-payment-page gateways,
// persists them locally with credentials encrypted at rest, binds stored
// payment instruments for recurring charges, and reconciles order status
// against the gateway.
//
// # Architecture
//
//	┌─────────────────┐    ┌─────────────────┐    ┌─────────────────┐
//	│                 │    │                 │    │                 │
//	│   Course Shop   │◄──►│    Paygate      │◄──►│   Payment       │
//	│                 │    │                 │    │   Gateways      │
//	│                 │    │                 │    │                 │
//	└─────────────────┘    └─────────────────┘    └─────────────────┘
//
// Each gateway driver registers itself with the gateway.DefaultRegistry and
// is resolved per (driver, environment) pair, so production and test
// credentials never mix.
//
// # Supported Drivers
//
//   - Kapital Bank: hosted payment page with stored-token recurring charges
//   - Stripe: checkout sessions with off-session payment method reuse
//
// # Quick Start
//
//	package main
//
//	import (
//	    "context"
//
//	    "github.com/coursehub/paygate/gateway"
//	    _ "github.com/coursehub/paygate/gateway/kapitalbank" // Import to register driver
//	    "github.com/coursehub/paygate/infra/config"
//	    "github.com/coursehub/paygate/order"
//	    "github.com/coursehub/paygate/store"
//	)
//
//	func main() {
//	    st, err := store.NewStore("data/paygate.db", "encrypt-key")
//	    if err != nil {
//	        panic(err)
//	    }
//	    defer st.Close()
//
//	    svc := order.NewService(gateway.DefaultRegistry, st, config.EnvTest, nil)
//
//	    result, err := svc.Create(context.Background(), order.CreateRequest{
//	        Driver:      "kapitalbank",
//	        TypeRid:     gateway.TypePurchase,
//	        Amount:      1500,
//	        Description: "course purchase",
//	    })
//	    if err != nil {
//	        panic(err)
//	    }
//
//	    // Redirect the customer to result.FormURL
//	    _ = result.FormURL
//	}
//
// Driver credentials come from environment variables scoped by driver and
// environment, e.g. KAPITALBANK_PROD_API, KAPITALBANK_TEST_USER,
// STRIPE_TEST_API_KEY. See infra/config for the full block layout.
package paygate

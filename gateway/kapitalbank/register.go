package kapitalbank

import "github.com/coursehub/paygate/gateway"

func init() {
	gateway.Register(driverName, NewGateway)
}

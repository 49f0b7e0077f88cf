package gateway

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coursehub/paygate/infra/config"
)

type stubGateway struct {
	cfg     config.DriverConfig
	initErr error
}

func (s *stubGateway) Initialize(cfg config.DriverConfig) error {
	s.cfg = cfg
	return s.initErr
}

func (s *stubGateway) CreateOrder(ctx context.Context, typeRid OrderTypeRid, amount int64, description string) (*CreateOrderResponse, error) {
	return nil, nil
}

func (s *stubGateway) SetSourceToken(ctx context.Context, orderID, orderPassword string) (*SetSourceTokenResponse, error) {
	return nil, nil
}

func (s *stubGateway) GetSimpleStatusByOrderID(ctx context.Context, orderID string) (*SimpleStatusResponse, error) {
	return nil, nil
}

func setStubEnv(t *testing.T) {
	t.Helper()
	t.Setenv("FAKEPAY_TEST_API", "https://test.fakepay.example.com/order")
	t.Setenv("FAKEPAY_TEST_REDIRECT_URL", "https://shop.example.com/result")
	t.Setenv("FAKEPAY_TEST_USER", "test-user")
	t.Setenv("FAKEPAY_TEST_PASS", "test-pass")
	t.Setenv("FAKEPAY_PROD_API", "https://fakepay.example.com/order")
	t.Setenv("FAKEPAY_PROD_REDIRECT_URL", "https://shop.example.com/result")
	t.Setenv("FAKEPAY_PROD_USER", "prod-user")
	t.Setenv("FAKEPAY_PROD_PASS", "prod-pass")
}

func TestResolveMemoizesPerDriverAndEnvironment(t *testing.T) {
	setStubEnv(t)

	registry := NewRegistry()
	var constructed int32
	registry.Register("fakepay", func() PaymentGateway {
		atomic.AddInt32(&constructed, 1)
		return &stubGateway{}
	})

	first, err := registry.Resolve("fakepay", config.EnvTest)
	assert.NoError(t, err)
	second, err := registry.Resolve("fakepay", config.EnvTest)
	assert.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&constructed))

	// A different environment gets its own instance with its own credentials.
	prod, err := registry.Resolve("fakepay", config.EnvProd)
	assert.NoError(t, err)
	assert.NotSame(t, first, prod)
	assert.Equal(t, int32(2), atomic.LoadInt32(&constructed))

	assert.Equal(t, "test-user", first.(*stubGateway).cfg.User)
	assert.Equal(t, "prod-user", prod.(*stubGateway).cfg.User)
}

func TestResolveUnknownDriver(t *testing.T) {
	registry := NewRegistry()

	instance, err := registry.Resolve("nope", config.EnvTest)
	assert.Nil(t, instance)
	assert.True(t, IsKind(err, KindConfiguration))
	assert.Contains(t, err.Error(), "nope")
}

func TestResolveMissingConfiguration(t *testing.T) {
	registry := NewRegistry()
	registry.Register("ghostpay", func() PaymentGateway { return &stubGateway{} })

	_, err := registry.Resolve("ghostpay", config.EnvTest)
	assert.True(t, IsKind(err, KindConfiguration))
}

func TestResolveFailedInitializeNotCached(t *testing.T) {
	setStubEnv(t)

	registry := NewRegistry()
	var constructed int32
	failing := true
	registry.Register("fakepay", func() PaymentGateway {
		atomic.AddInt32(&constructed, 1)
		if failing {
			return &stubGateway{initErr: assert.AnError}
		}
		return &stubGateway{}
	})

	_, err := registry.Resolve("fakepay", config.EnvTest)
	assert.True(t, IsKind(err, KindConfiguration))

	// The failure is retried, not served from the cache.
	failing = false
	instance, err := registry.Resolve("fakepay", config.EnvTest)
	assert.NoError(t, err)
	assert.NotNil(t, instance)
	assert.Equal(t, int32(2), atomic.LoadInt32(&constructed))
}

func TestResolveConcurrent(t *testing.T) {
	setStubEnv(t)

	registry := NewRegistry()
	var constructed int32
	registry.Register("fakepay", func() PaymentGateway {
		atomic.AddInt32(&constructed, 1)
		return &stubGateway{}
	})

	const goroutines = 50
	instances := make([]PaymentGateway, goroutines)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			instance, err := registry.Resolve("fakepay", config.EnvTest)
			assert.NoError(t, err)
			instances[idx] = instance
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&constructed))
	for i := 1; i < goroutines; i++ {
		assert.Same(t, instances[0], instances[i])
	}
}

func TestDriverNames(t *testing.T) {
	registry := NewRegistry()
	registry.Register("a", func() PaymentGateway { return &stubGateway{} })
	registry.Register("b", func() PaymentGateway { return &stubGateway{} })

	assert.ElementsMatch(t, []string{"a", "b"}, registry.DriverNames())
}

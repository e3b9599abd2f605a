package usecase_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/wekeepgrowing/order-payments/internal/adapter/repository/memory"
	"github.com/wekeepgrowing/order-payments/internal/config"
	"github.com/wekeepgrowing/order-payments/internal/domain/entity"
	"github.com/wekeepgrowing/order-payments/internal/domain/provider"
	pixProvider "github.com/wekeepgrowing/order-payments/internal/infrastructure/provider/pix"
	"github.com/wekeepgrowing/order-payments/internal/usecase"
	"go.uber.org/zap"
)

const (
	customerID    = "user-1"
	pixWebhookKey = "pix-webhook-secret"
)

// fakeGateway is a scriptable provider.Gateway.
type fakeGateway struct {
	name     provider.ProviderType
	methods  []entity.PaymentMethod
	features []provider.Feature

	create  func(ctx context.Context, order *entity.Order, data *provider.PaymentData) (*provider.PaymentResult, error)
	webhook func(payload []byte) (*provider.WebhookResult, error)

	mu       sync.Mutex
	calls    int
	refunded []string
	refundFn func() error
}

func (g *fakeGateway) Name() provider.ProviderType              { return g.name }
func (g *fakeGateway) IsConfigured() bool                       { return true }
func (g *fakeGateway) IsEnabled(context.Context) bool           { return true }
func (g *fakeGateway) SupportedMethods() []entity.PaymentMethod { return g.methods }
func (g *fakeGateway) TranslateError(err error) string          { return err.Error() }

func (g *fakeGateway) MapStatus(s string) entity.PaymentStatus {
	return entity.PaymentStatus(s)
}

func (g *fakeGateway) SupportsFeature(f provider.Feature) bool {
	for _, candidate := range g.features {
		if candidate == f {
			return true
		}
	}
	return false
}

func (g *fakeGateway) CreatePayment(ctx context.Context, order *entity.Order, amount decimal.Decimal, data *provider.PaymentData) (*provider.PaymentResult, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if err := provider.ValidateCreate(g, order, amount, data); err != nil {
		return nil, err
	}
	if g.create == nil {
		return &provider.PaymentResult{Success: true, Status: entity.PaymentStatusPending}, nil
	}
	return g.create(ctx, order, data)
}

func (g *fakeGateway) ProcessWebhook(_ context.Context, payload []byte, _ http.Header) (*provider.WebhookResult, error) {
	if g.webhook == nil {
		return &provider.WebhookResult{}, nil
	}
	return g.webhook(payload)
}

func (g *fakeGateway) Refund(_ context.Context, payment *entity.Payment, _ decimal.Decimal) (*provider.RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundFn != nil {
		if err := g.refundFn(); err != nil {
			return nil, err
		}
	}
	g.refunded = append(g.refunded, payment.ID)
	return &provider.RefundResult{RefundID: "re_" + payment.ID, Status: entity.PaymentStatusRefunded}, nil
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func cardGateway(result *provider.PaymentResult) *fakeGateway {
	return &fakeGateway{
		name:     provider.ProviderTypeStripe,
		methods:  []entity.PaymentMethod{entity.PaymentMethodCard},
		features: []provider.Feature{provider.FeatureRefunds},
		create: func(context.Context, *entity.Order, *provider.PaymentData) (*provider.PaymentResult, error) {
			return result, nil
		},
	}
}

type capturePublisher struct {
	mu     sync.Mutex
	events []entity.PaymentEvent
}

func (p *capturePublisher) Publish(_ context.Context, event entity.PaymentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) all() []entity.PaymentEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]entity.PaymentEvent(nil), p.events...)
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, entity.PaymentEvent) error {
	return errors.New("redis unavailable")
}

type journalEntry struct {
	eventID string
	outcome string
	failed  bool
}

type captureJournal struct {
	mu      sync.Mutex
	entries []journalEntry
}

func (j *captureJournal) Record(_ context.Context, event entity.WebhookEvent, outcome string, cause error) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, journalEntry{eventID: event.EventID, outcome: outcome, failed: cause != nil})
	return nil
}

func (j *captureJournal) all() []journalEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]journalEntry(nil), j.entries...)
}

// harness wires the services over in-memory repositories.
type harness struct {
	payments *memory.PaymentRepository
	orders   *memory.OrderRepository
	mappings *memory.CustomerMappingRepository
	events   *capturePublisher
	journal  *captureJournal
	service  *usecase.PaymentService
	webhooks *usecase.WebhookService
	cfg      config.PaymentsConfig
}

func newHarness(t *testing.T, cfg config.PaymentsConfig, gateways ...provider.Gateway) *harness {
	t.Helper()
	if cfg.ProviderTimeout == 0 {
		cfg.ProviderTimeout = time.Second
	}
	if cfg.Currency == "" {
		cfg.Currency = "BRL"
	}

	h := &harness{
		payments: memory.NewPaymentRepository(),
		orders:   memory.NewOrderRepository(),
		mappings: memory.NewCustomerMappingRepository(),
		events:   &capturePublisher{},
		journal:  &captureJournal{},
		cfg:      cfg,
	}
	logger := zap.NewNop()
	registry := provider.NewRegistry(gateways...)
	transitions := usecase.NewTransitioner(h.payments, h.orders, h.events, nil, logger)
	h.service = usecase.NewPaymentService(h.payments, h.orders, h.mappings, registry, nil, transitions, cfg, nil, logger)
	h.webhooks = usecase.NewWebhookService(h.payments, registry, transitions, nil, h.journal, nil, logger)
	return h
}

func (h *harness) seedOrder(t *testing.T, id, total string) *entity.Order {
	t.Helper()
	order := &entity.Order{
		ID:         id,
		CustomerID: customerID,
		Total:      decimal.RequireFromString(total),
		Currency:   "BRL",
		Status:     entity.OrderStatusPendingPayment,
		Customer:   &entity.Customer{ID: customerID, Name: "Ana Souza", Email: "ana@example.com"},
		Restaurant: &entity.Restaurant{ID: "r1", Name: "Restaurante Sao Joao", City: "Sao Paulo"},
	}
	require.NoError(t, h.orders.Put(order))
	return order
}

func (h *harness) orderStatus(t *testing.T, id string) entity.OrderStatus {
	t.Helper()
	order, err := h.orders.GetOrderWithRelations(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, order)
	return order.Status
}

func (h *harness) payment(t *testing.T, id string) *entity.Payment {
	t.Helper()
	p, err := h.payments.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

// random (EVP) keys are UUIDs, the longest common key type
const pixEVPKey = "7d9f0335-8dcc-4054-9bf9-0dbd61d36906"

func pixGateway() *pixProvider.Gateway {
	return pixProvider.NewGateway(config.PixConfig{
		Key:           pixEVPKey,
		MerchantName:  "Restaurante Sao Joao",
		MerchantCity:  "Sao Paulo",
		WebhookSecret: pixWebhookKey,
	}, 30*time.Minute, nil, zap.NewNop())
}

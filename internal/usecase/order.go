package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"store-assistant/internal/domain"
	logx "store-assistant/pkg/logger"
)

const orderAuditNote = "Order created via AI Store Assistant chatbot."

// OrderLedger persists orders. CreatePending must return
// domain.ErrDuplicateOrder when the idempotency key is already taken.
type OrderLedger interface {
	CreatePending(ctx context.Context, order domain.Order) (int64, error)
	SaveTotals(ctx context.Context, orderID int64, totals domain.OrderTotals) error
	AddNote(ctx context.Context, orderID int64, note string) error
	Delete(ctx context.Context, orderID int64) error
	FindByIdempotencyKey(ctx context.Context, key string) (*domain.OrderResult, error)
}

// ShippingQuoter picks the shipping line applied to chat orders.
type ShippingQuoter func(s domain.Settings) domain.ShippingLine

// DefaultShipping uses the configured flat rate when there is one and the
// default shipping cost otherwise.
func DefaultShipping(s domain.Settings) domain.ShippingLine {
	if s.HasFlatRate {
		return domain.ShippingLine{MethodID: "flat_rate", Title: "Flat rate", Cost: s.FlatRateCost}
	}
	return domain.ShippingLine{MethodID: "standard", Title: "Standard Shipping", Cost: s.DefaultShippingCost}
}

type MaterializerOption func(*Materializer)

func WithShippingQuoter(q ShippingQuoter) MaterializerOption {
	return func(m *Materializer) {
		if q != nil {
			m.shipping = q
		}
	}
}

func WithClock(now func() time.Time) MaterializerOption {
	return func(m *Materializer) {
		if now != nil {
			m.now = now
		}
	}
}

// Materializer turns a product list and customer data into a persisted,
// priced, pending cash-on-delivery order. It performs no deduplication.
type Materializer struct {
	catalog  ProductLookup
	ledger   OrderLedger
	shipping ShippingQuoter
	now      func() time.Time
}

type OrderRequest struct {
	Settings       domain.Settings
	Products       []domain.ProductRef
	Customer       domain.CustomerInfo
	Identity       *domain.Identity
	IdempotencyKey string
}

func NewMaterializer(catalog ProductLookup, ledger OrderLedger, opts ...MaterializerOption) (*Materializer, error) {
	if catalog == nil {
		return nil, errors.New("usecase: product lookup must not be nil")
	}
	if ledger == nil {
		return nil, errors.New("usecase: order ledger must not be nil")
	}
	m := &Materializer{
		catalog:  catalog,
		ledger:   ledger,
		shipping: DefaultShipping,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// QuoteShipping returns the shipping line an order would get right now.
func (m *Materializer) QuoteShipping(s domain.Settings) domain.ShippingLine {
	return m.shipping(s)
}

func (m *Materializer) Create(ctx context.Context, req OrderRequest) (domain.OrderResult, error) {
	s := req.Settings
	if !s.EnableOrderCreation {
		return domain.OrderResult{}, newError(ErrorFeatureDisabled, ReasonFeatureDisabled, nil)
	}
	if len(req.Products) == 0 {
		return domain.OrderResult{}, newError(ErrorInvalidInput, ReasonInvalidProducts, nil)
	}
	if req.Identity == nil {
		if verr := validateCustomer(req.Customer, false); verr != nil {
			return domain.OrderResult{}, verr
		}
	}

	lines, err := m.resolveLines(ctx, req.Products)
	if err != nil {
		return domain.OrderResult{}, err
	}
	if len(lines) == 0 {
		return domain.OrderResult{}, newError(ErrorInvalidInput, ReasonNoProducts, nil)
	}

	order := m.buildOrder(req, lines)
	id, err := m.ledger.CreatePending(ctx, order)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateOrder) {
			return domain.OrderResult{}, err
		}
		return domain.OrderResult{}, newError(ErrorInternal, ReasonBackendUnavailable, err)
	}

	totals, err := computeTotals(lines, order.ShippingLine)
	if err == nil {
		err = m.ledger.SaveTotals(ctx, id, totals)
	}
	if err != nil {
		if delErr := m.ledger.Delete(ctx, id); delErr != nil {
			logx.Error().Err(delErr).Int64("order_id", id).Msg("failed to delete unpriced order")
		}
		return domain.OrderResult{}, newError(ErrorCalculation, ReasonCalculationFailed, err)
	}

	if err := m.ledger.AddNote(ctx, id, orderAuditNote); err != nil {
		logx.Warn().Err(err).Int64("order_id", id).Msg("failed to add order note")
	}

	logx.Info().Int64("order_id", id).Str("total", totals.Total.String()).Msg("order created")
	return domain.OrderResult{
		OrderID:        id,
		Status:         domain.OrderStatusPending,
		Subtotal:       totals.Subtotal,
		ShippingTotal:  totals.Shipping,
		Total:          totals.Total,
		Currency:       s.Currency,
		CurrencySymbol: s.CurrencySymbol,
	}, nil
}

// resolveLines prices every requested product. Unknown or unpurchasable
// products are skipped; a failing catalog is an error.
func (m *Materializer) resolveLines(ctx context.Context, refs []domain.ProductRef) ([]domain.LineItem, error) {
	lines := make([]domain.LineItem, 0, len(refs))
	for _, ref := range refs {
		if ref.ID <= 0 || ref.Quantity <= 0 {
			continue
		}
		p, err := m.catalog.GetByID(ctx, ref.ID)
		if err != nil {
			return nil, newError(ErrorInternal, ReasonBackendUnavailable, err)
		}
		if p == nil || !p.Purchasable() {
			continue
		}
		lines = append(lines, domain.LineItem{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  ref.Quantity,
			UnitPrice: p.Price,
		})
	}
	return lines, nil
}

func (m *Materializer) buildOrder(req OrderRequest, lines []domain.LineItem) domain.Order {
	c := req.Customer
	country := strings.TrimSpace(c.Country)
	if country == "" {
		country = req.Settings.DefaultCountry
	}
	addr := domain.Address{
		FirstName: strings.TrimSpace(c.FirstName),
		LastName:  strings.TrimSpace(c.LastName),
		Address1:  strings.TrimSpace(c.Address1),
		City:      strings.TrimSpace(c.City),
		Postcode:  strings.TrimSpace(c.Postcode),
		Country:   country,
		Email:     strings.TrimSpace(c.Email),
		Phone:     strings.TrimSpace(c.Phone),
	}

	var customerID int64
	if id := req.Identity; id != nil {
		customerID = id.CustomerID
		if addr.Email == "" {
			addr.Email = id.Email
		}
		if addr.FirstName == "" {
			addr.FirstName = id.FirstName
		}
		if addr.LastName == "" {
			addr.LastName = id.LastName
		}
	}

	return domain.Order{
		Status:         domain.OrderStatusPending,
		CustomerID:     customerID,
		IdempotencyKey: req.IdempotencyKey,
		Billing:        addr,
		Shipping:       addr,
		Lines:          lines,
		ShippingLine:   m.shipping(req.Settings),
		PaymentMethod:  domain.PaymentMethodCOD,
		PaymentTitle:   domain.PaymentMethodCODTitle,
		Currency:       req.Settings.Currency,
		CreatedAt:      m.now().UTC(),
	}
}

func computeTotals(lines []domain.LineItem, shipping domain.ShippingLine) (domain.OrderTotals, error) {
	if shipping.Cost < 0 {
		return domain.OrderTotals{}, errors.New("usecase: negative shipping cost")
	}
	var subtotal domain.Money
	for i := range lines {
		l := &lines[i]
		if l.UnitPrice < 0 {
			return domain.OrderTotals{}, fmt.Errorf("usecase: negative price for product %d", l.ProductID)
		}
		if l.UnitPrice > 0 && int64(l.Quantity) > math.MaxInt64/int64(l.UnitPrice) {
			return domain.OrderTotals{}, fmt.Errorf("usecase: line total overflow for product %d", l.ProductID)
		}
		l.Total = l.UnitPrice * domain.Money(l.Quantity)
		if subtotal > math.MaxInt64-l.Total {
			return domain.OrderTotals{}, errors.New("usecase: subtotal overflow")
		}
		subtotal += l.Total
	}
	if subtotal > math.MaxInt64-shipping.Cost {
		return domain.OrderTotals{}, errors.New("usecase: total overflow")
	}
	return domain.OrderTotals{Subtotal: subtotal, Shipping: shipping.Cost, Total: subtotal + shipping.Cost}, nil
}

// PlaceOrderInput is an order request from the endpoint or a checkout strategy.
type PlaceOrderInput struct {
	Products            []domain.ProductRef
	Customer            domain.CustomerInfo
	Identity            *domain.Identity
	IdempotencyKey      string
	RequireFullCustomer bool
}

// OrderService fronts the materializer with settings, request validation
// and idempotency-key replay.
type OrderService struct {
	settings     SettingsProvider
	materializer *Materializer
	ledger       OrderLedger
}

func NewOrderService(settings SettingsProvider, m *Materializer, ledger OrderLedger) (*OrderService, error) {
	if settings == nil {
		return nil, errors.New("usecase: settings provider must not be nil")
	}
	if m == nil {
		return nil, errors.New("usecase: materializer must not be nil")
	}
	if ledger == nil {
		return nil, errors.New("usecase: order ledger must not be nil")
	}
	return &OrderService{settings: settings, materializer: m, ledger: ledger}, nil
}

func (s *OrderService) Place(ctx context.Context, in PlaceOrderInput) (domain.OrderResult, error) {
	settings, err := s.settings.Load(ctx)
	if err != nil {
		return domain.OrderResult{}, newError(ErrorInternal, ReasonSettingsUnavailable, err)
	}
	if !settings.EnableOrderCreation {
		return domain.OrderResult{}, newError(ErrorFeatureDisabled, ReasonFeatureDisabled, nil)
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if res, err := s.replay(ctx, key, settings); err != nil || res != nil {
			return derefResult(res), err
		}
	}

	if len(in.Products) == 0 {
		return domain.OrderResult{}, newError(ErrorInvalidInput, ReasonInvalidProducts, nil)
	}
	customer := in.Customer
	if in.Identity != nil && strings.TrimSpace(customer.Email) == "" {
		customer.Email = in.Identity.Email
	}
	if in.RequireFullCustomer {
		if verr := validateCustomer(customer, true); verr != nil {
			return domain.OrderResult{}, verr
		}
	}

	res, err := s.materializer.Create(ctx, OrderRequest{
		Settings:       settings,
		Products:       in.Products,
		Customer:       customer,
		Identity:       in.Identity,
		IdempotencyKey: key,
	})
	if errors.Is(err, domain.ErrDuplicateOrder) && key != "" {
		existing, rerr := s.replay(ctx, key, settings)
		if rerr == nil && existing != nil {
			return *existing, nil
		}
		return domain.OrderResult{}, newError(ErrorInternal, ReasonBackendUnavailable, err)
	}
	return res, err
}

// QuoteShipping exposes the materializer's shipping choice for prompts.
func (s *OrderService) QuoteShipping(settings domain.Settings) domain.ShippingLine {
	return s.materializer.QuoteShipping(settings)
}

func (s *OrderService) replay(ctx context.Context, key string, settings domain.Settings) (*domain.OrderResult, error) {
	res, err := s.ledger.FindByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, newError(ErrorInternal, ReasonBackendUnavailable, err)
	}
	if res == nil {
		return nil, nil
	}
	res.CurrencySymbol = settings.CurrencySymbol
	if res.Currency == "" {
		res.Currency = settings.Currency
	}
	return res, nil
}

func derefResult(r *domain.OrderResult) domain.OrderResult {
	if r == nil {
		return domain.OrderResult{}
	}
	return *r
}

package client

import (
	"context"
	"fmt"
	"sync"

	"waifuhospital/internal/model"
)

// StubFulfillmentGateway is the offline fulfillment implementation. It records
// every order it creates so idempotency can be asserted in tests.
type StubFulfillmentGateway struct {
	mu            sync.Mutex
	seq           int
	CreatedOrders []StubOrder

	// OrderStatuses overrides GetOrderStatus per order ID.
	OrderStatuses map[string]string
}

type StubOrder struct {
	ID         string
	ExternalID string
	Items      []FulfillmentItem
}

func NewStubFulfillmentGateway() *StubFulfillmentGateway {
	return &StubFulfillmentGateway{
		OrderStatuses: make(map[string]string),
	}
}

func (s *StubFulfillmentGateway) CalculateShippingRates(ctx context.Context, addr model.Address, items []FulfillmentItem) ([]ShippingRate, error) {
	return []ShippingRate{
		{ID: "STANDARD", Name: "Flat Rate (Estimated delivery: 5-7 business days)", Rate: 7.95, Currency: "USD", MinDeliveryDays: 5, MaxDeliveryDays: 7},
		{ID: "EXPRESS", Name: "Express (Estimated delivery: 2-3 business days)", Rate: 14.95, Currency: "USD", MinDeliveryDays: 2, MaxDeliveryDays: 3},
	}, nil
}

func (s *StubFulfillmentGateway) CreateOrder(ctx context.Context, externalID string, addr model.Address, items []FulfillmentItem) (*FulfillmentOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	order := StubOrder{
		ID:         fmt.Sprintf("pf_stub_%d", s.seq),
		ExternalID: externalID,
		Items:      items,
	}
	s.CreatedOrders = append(s.CreatedOrders, order)
	return &FulfillmentOrder{ID: order.ID, Status: "draft"}, nil
}

func (s *StubFulfillmentGateway) GetOrderStatus(ctx context.Context, orderID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status, ok := s.OrderStatuses[orderID]; ok {
		return status, nil
	}
	return "draft", nil
}

func (s *StubFulfillmentGateway) CancelOrder(ctx context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.OrderStatuses[orderID] = model.PrintfulStatusCanceled
	return nil
}

func (s *StubFulfillmentGateway) CreateProduct(ctx context.Context, req SyncProductRequest) (*SyncProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	product := &SyncProduct{ID: fmt.Sprintf("prod_stub_%d", s.seq)}

	sizes := req.Sizes
	if len(sizes) == 0 {
		sizes = []string{"M"}
	}
	colors := req.Colors
	if len(colors) == 0 {
		colors = []string{"Black"}
	}
	for _, size := range sizes {
		for _, color := range colors {
			s.seq++
			product.Variants = append(product.Variants, SyncVariant{
				VariantID:   fmt.Sprintf("var_stub_%d", s.seq),
				ExternalID:  req.ExternalID,
				RetailPrice: 19.99,
				Size:        size,
				Color:       color,
			})
		}
	}
	return product, nil
}

func (s *StubFulfillmentGateway) GetProductionCost(ctx context.Context, variantID string) (float64, error) {
	return 5.00, nil
}

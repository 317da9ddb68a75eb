package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"waifuhospital/internal/config"
	"waifuhospital/internal/model"

	"github.com/shopspring/decimal"
)

// FulfillmentGateway is the print-on-demand capability. Shipping-rate
// estimation may be substituted with a fallback by the caller; order creation
// may not.
type FulfillmentGateway interface {
	CalculateShippingRates(ctx context.Context, addr model.Address, items []FulfillmentItem) ([]ShippingRate, error)
	CreateOrder(ctx context.Context, externalID string, addr model.Address, items []FulfillmentItem) (*FulfillmentOrder, error)
	GetOrderStatus(ctx context.Context, orderID string) (string, error)
	CancelOrder(ctx context.Context, orderID string) error
	CreateProduct(ctx context.Context, req SyncProductRequest) (*SyncProduct, error)
	GetProductionCost(ctx context.Context, variantID string) (float64, error)
}

type FulfillmentItem struct {
	VariantID string
	Quantity  int
	Price     float64
}

type ShippingRate struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Rate            float64 `json:"rate"`
	Currency        string  `json:"currency"`
	MinDeliveryDays int     `json:"minDeliveryDays"`
	MaxDeliveryDays int     `json:"maxDeliveryDays"`
}

type FulfillmentOrder struct {
	ID     string
	Status string
}

type SyncProductRequest struct {
	Name       string
	ImageURL   string
	ExternalID string
	Category   string
	Sizes      []string
	Colors     []string
}

type SyncProduct struct {
	ID       string
	Variants []SyncVariant
}

type SyncVariant struct {
	VariantID   string
	ExternalID  string
	RetailPrice float64
	Size        string
	Color       string
}

type printfulClientImpl struct {
	httpClient *http.Client
	baseAPIURL string
	apiKey     string
}

func NewPrintfulClient(cfg *config.Printful) FulfillmentGateway {
	return &printfulClientImpl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseAPIURL: cfg.BaseAPIURL,
		apiKey:     cfg.APIKey,
	}
}

// do sends a request and decodes Printful's {code, result} envelope into out.
func (c *printfulClientImpl) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal req payload: %w", err)
		}
		body = bytes.NewBuffer(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseAPIURL+path, body)
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("printful error %d: %s", resp.StatusCode, string(b))
	}

	if out == nil {
		return nil
	}
	envelope := struct {
		Result interface{} `json:"result"`
	}{Result: out}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode printful response: %w", err)
	}
	return nil
}

func printfulRecipient(addr model.Address) map[string]string {
	return map[string]string{
		"name":         addr.FirstName + " " + addr.LastName,
		"address1":     addr.Street,
		"city":         addr.City,
		"state_code":   addr.State,
		"country_code": addr.Country,
		"zip":          addr.PostalCode,
		"email":        addr.Email,
		"phone":        addr.Phone,
	}
}

func (c *printfulClientImpl) CalculateShippingRates(ctx context.Context, addr model.Address, items []FulfillmentItem) ([]ShippingRate, error) {
	reqItems := make([]map[string]interface{}, len(items))
	for i, item := range items {
		reqItems[i] = map[string]interface{}{
			"variant_id": item.VariantID,
			"quantity":   item.Quantity,
		}
	}
	payload := map[string]interface{}{
		"recipient": printfulRecipient(addr),
		"items":     reqItems,
	}

	var rates []struct {
		ID              string `json:"id"`
		Name            string `json:"name"`
		Rate            string `json:"rate"`
		Currency        string `json:"currency"`
		MinDeliveryDays int    `json:"minDeliveryDays"`
		MaxDeliveryDays int    `json:"maxDeliveryDays"`
	}
	if err := c.do(ctx, http.MethodPost, "/shipping/rates", payload, &rates); err != nil {
		return nil, fmt.Errorf("calculate shipping rates: %w", err)
	}

	out := make([]ShippingRate, 0, len(rates))
	for _, r := range rates {
		rate, err := decimal.NewFromString(r.Rate)
		if err != nil {
			return nil, fmt.Errorf("parse shipping rate %q: %w", r.Rate, err)
		}
		out = append(out, ShippingRate{
			ID:              r.ID,
			Name:            r.Name,
			Rate:            rate.InexactFloat64(),
			Currency:        r.Currency,
			MinDeliveryDays: r.MinDeliveryDays,
			MaxDeliveryDays: r.MaxDeliveryDays,
		})
	}
	return out, nil
}

func (c *printfulClientImpl) CreateOrder(ctx context.Context, externalID string, addr model.Address, items []FulfillmentItem) (*FulfillmentOrder, error) {
	reqItems := make([]map[string]interface{}, len(items))
	for i, item := range items {
		reqItems[i] = map[string]interface{}{
			"sync_variant_id": item.VariantID,
			"quantity":        item.Quantity,
			"retail_price":    decimal.NewFromFloat(item.Price).StringFixed(2),
		}
	}
	payload := map[string]interface{}{
		"external_id": externalID,
		"recipient":   printfulRecipient(addr),
		"items":       reqItems,
	}

	var result struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodPost, "/orders", payload, &result); err != nil {
		return nil, fmt.Errorf("create fulfillment order: %w", err)
	}
	return &FulfillmentOrder{
		ID:     fmt.Sprintf("%d", result.ID),
		Status: result.Status,
	}, nil
}

func (c *printfulClientImpl) GetOrderStatus(ctx context.Context, orderID string) (string, error) {
	var result struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/orders/"+orderID, nil, &result); err != nil {
		return "", fmt.Errorf("get order status: %w", err)
	}
	return result.Status, nil
}

func (c *printfulClientImpl) CancelOrder(ctx context.Context, orderID string) error {
	if err := c.do(ctx, http.MethodDelete, "/orders/"+orderID, nil, nil); err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	return nil
}

func (c *printfulClientImpl) CreateProduct(ctx context.Context, req SyncProductRequest) (*SyncProduct, error) {
	payload := map[string]interface{}{
		"sync_product": map[string]interface{}{
			"name":        req.Name,
			"external_id": req.ExternalID,
		},
		"sync_variants": []map[string]interface{}{
			{
				"variant_id": catalogVariantForCategory(req.Category),
				"files": []map[string]string{
					{"url": req.ImageURL},
				},
			},
		},
	}

	var result struct {
		ID       int64 `json:"id"`
		Variants []struct {
			ID          int64  `json:"id"`
			ExternalID  string `json:"external_id"`
			RetailPrice string `json:"retail_price"`
			Size        string `json:"size"`
			Color       string `json:"color"`
		} `json:"sync_variants"`
	}
	if err := c.do(ctx, http.MethodPost, "/store/products", payload, &result); err != nil {
		return nil, fmt.Errorf("create sync product: %w", err)
	}

	product := &SyncProduct{ID: fmt.Sprintf("%d", result.ID)}
	for _, v := range result.Variants {
		price := 0.0
		if d, err := decimal.NewFromString(v.RetailPrice); err == nil {
			price = d.InexactFloat64()
		}
		product.Variants = append(product.Variants, SyncVariant{
			VariantID:   fmt.Sprintf("%d", v.ID),
			ExternalID:  v.ExternalID,
			RetailPrice: price,
			Size:        v.Size,
			Color:       v.Color,
		})
	}
	return product, nil
}

func (c *printfulClientImpl) GetProductionCost(ctx context.Context, variantID string) (float64, error) {
	var result struct {
		Variant struct {
			Price string `json:"price"`
		} `json:"variant"`
	}
	if err := c.do(ctx, http.MethodGet, "/products/variant/"+variantID, nil, &result); err != nil {
		return 0, fmt.Errorf("get production cost: %w", err)
	}
	cost, err := decimal.NewFromString(result.Variant.Price)
	if err != nil {
		return 0, fmt.Errorf("parse production cost %q: %w", result.Variant.Price, err)
	}
	return cost.InexactFloat64(), nil
}

// catalogVariantForCategory maps a merchandise category to a default catalog
// variant used when publishing the sync product.
func catalogVariantForCategory(category string) int {
	ids := map[string]int{
		"t-shirt":   505,
		"mug":       1320,
		"poster":    3876,
		"sticker":   10163,
		"hoodie":    5531,
		"hat":       15905,
		"phonecase": 8839,
	}
	if id, ok := ids[category]; ok {
		return id
	}
	return 505
}

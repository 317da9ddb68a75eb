package model

// Printful webhook event types the reconciliation handles.
const (
	PrintfulEventOrderCreated   = "order_created"
	PrintfulEventOrderUpdated   = "order_updated"
	PrintfulEventOrderShipped   = "package_shipped"
	PrintfulEventOrderFailed    = "order_failed"
	PrintfulEventOrderCancelled = "order_canceled"
)

// Printful order statuses observed on webhooks.
const (
	PrintfulStatusFulfilled = "fulfilled"
	PrintfulStatusCanceled  = "canceled"
	PrintfulStatusFailed    = "failed"
)

type PrintfulWebhook struct {
	Type string              `json:"type"`
	Data PrintfulWebhookData `json:"data"`
}

type PrintfulWebhookData struct {
	Order    PrintfulOrder    `json:"order"`
	Shipment PrintfulShipment `json:"shipment"`
	Reason   string           `json:"reason"`
}

type PrintfulOrder struct {
	ID         int64               `json:"id"`
	ExternalID string              `json:"external_id"`
	Status     string              `json:"status"`
	Items      []PrintfulOrderItem `json:"items"`
}

type PrintfulOrderItem struct {
	ID        int64  `json:"id"`
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

type PrintfulShipment struct {
	Carrier        string `json:"carrier"`
	Service        string `json:"service"`
	TrackingNumber string `json:"tracking_number"`
	TrackingURL    string `json:"tracking_url"`
}

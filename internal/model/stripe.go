package model

import "encoding/json"

// Stripe webhook event types the reconciliation handles.
const (
	StripeEventPaymentIntentSucceeded = "payment_intent.succeeded"
	StripeEventChargeSucceeded        = "charge.succeeded"
	StripeEventTransferCreated        = "transfer.created"
	StripeEventTransferPaid           = "transfer.paid"
	StripeEventAccountUpdated         = "account.updated"
)

// StripeEvent is the webhook envelope; Object is decoded per event type.
type StripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type StripePaymentIntent struct {
	ID           string            `json:"id"`
	Amount       int64             `json:"amount"`
	Currency     string            `json:"currency"`
	Status       string            `json:"status"`
	ClientSecret string            `json:"client_secret"`
	Metadata     map[string]string `json:"metadata"`
}

type StripeCharge struct {
	ID            string `json:"id"`
	Amount        int64  `json:"amount"`
	PaymentIntent string `json:"payment_intent"`
	Status        string `json:"status"`
}

type StripeTransfer struct {
	ID          string            `json:"id"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Destination string            `json:"destination"`
	Metadata    map[string]string `json:"metadata"`
}

type StripeAccount struct {
	ID               string `json:"id"`
	DetailsSubmitted bool   `json:"details_submitted"`
	PayoutsEnabled   bool   `json:"payouts_enabled"`
	ChargesEnabled   bool   `json:"charges_enabled"`
}

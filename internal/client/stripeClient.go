package client

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"waifuhospital/internal/config"
	"waifuhospital/internal/model"
)

// PaymentGateway is the payment capability consumed by the checkout engine and
// the webhook reconciliation. Failures on these calls must surface to the
// caller; no fallback values are invented for money-moving steps.
type PaymentGateway interface {
	CreatePaymentIntent(ctx context.Context, amountMinorUnits int64, currency string, metadata map[string]string) (*PaymentIntent, error)
	CreateConnectedAccount(ctx context.Context, profile AccountProfile) (string, error)
	CreateAccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error)
	GetAccountDetails(ctx context.Context, accountID string) (*AccountDetails, error)
	CreateTransfer(ctx context.Context, amountMinorUnits int64, destinationAccountID string, metadata map[string]string) (*Transfer, error)
	VerifyWebhookSignature(rawBody []byte, signatureHeader string) (*model.StripeEvent, error)
}

type PaymentIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Amount       int64  `json:"amount"`
	Status       string `json:"status"`
}

type Transfer struct {
	ID          string `json:"id"`
	Amount      int64  `json:"amount"`
	Destination string `json:"destination"`
}

type AccountProfile struct {
	UserID   string
	Email    string
	Username string
	Country  string
}

type AccountDetails struct {
	ID               string `json:"id"`
	DetailsSubmitted bool   `json:"details_submitted"`
	PayoutsEnabled   bool   `json:"payouts_enabled"`
	ChargesEnabled   bool   `json:"charges_enabled"`
}

const webhookTolerance = 5 * time.Minute

type stripeClientImpl struct {
	httpClient    *http.Client
	baseAPIURL    string
	secretKey     string
	webhookSecret string
}

func NewStripeClient(cfg *config.Stripe) PaymentGateway {
	return &stripeClientImpl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseAPIURL:    cfg.BaseAPIURL,
		secretKey:     cfg.SecretKey,
		webhookSecret: cfg.WebhookSecret,
	}
}

func (c *stripeClientImpl) postForm(ctx context.Context, path string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseAPIURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("stripe error %d: %s", resp.StatusCode, string(b))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode stripe response: %w", err)
	}
	return nil
}

func (c *stripeClientImpl) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseAPIURL+path, nil)
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("stripe error %d: %s", resp.StatusCode, string(b))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode stripe response: %w", err)
	}
	return nil
}

func (c *stripeClientImpl) CreatePaymentIntent(ctx context.Context, amountMinorUnits int64, currency string, metadata map[string]string) (*PaymentIntent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountMinorUnits, 10))
	form.Set("currency", currency)
	for k, v := range metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	var intent PaymentIntent
	if err := c.postForm(ctx, "/v1/payment_intents", form, &intent); err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	return &intent, nil
}

func (c *stripeClientImpl) CreateConnectedAccount(ctx context.Context, profile AccountProfile) (string, error) {
	country := profile.Country
	if country == "" {
		country = "US"
	}

	form := url.Values{}
	form.Set("type", "express")
	form.Set("country", country)
	form.Set("email", profile.Email)
	form.Set("business_type", "individual")
	form.Set("capabilities[card_payments][requested]", "true")
	form.Set("capabilities[transfers][requested]", "true")
	form.Set("business_profile[name]", profile.Username)
	form.Set("metadata[userId]", profile.UserID)

	var account struct {
		ID string `json:"id"`
	}
	if err := c.postForm(ctx, "/v1/accounts", form, &account); err != nil {
		return "", fmt.Errorf("create connected account: %w", err)
	}
	return account.ID, nil
}

func (c *stripeClientImpl) CreateAccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	form := url.Values{}
	form.Set("account", accountID)
	form.Set("refresh_url", refreshURL)
	form.Set("return_url", returnURL)
	form.Set("type", "account_onboarding")

	var link struct {
		URL string `json:"url"`
	}
	if err := c.postForm(ctx, "/v1/account_links", form, &link); err != nil {
		return "", fmt.Errorf("create account link: %w", err)
	}
	return link.URL, nil
}

func (c *stripeClientImpl) GetAccountDetails(ctx context.Context, accountID string) (*AccountDetails, error) {
	var details AccountDetails
	if err := c.getJSON(ctx, "/v1/accounts/"+accountID, &details); err != nil {
		return nil, fmt.Errorf("get account details: %w", err)
	}
	return &details, nil
}

func (c *stripeClientImpl) CreateTransfer(ctx context.Context, amountMinorUnits int64, destinationAccountID string, metadata map[string]string) (*Transfer, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountMinorUnits, 10))
	form.Set("currency", "usd")
	form.Set("destination", destinationAccountID)
	for k, v := range metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	var transfer Transfer
	if err := c.postForm(ctx, "/v1/transfers", form, &transfer); err != nil {
		return nil, fmt.Errorf("create transfer: %w", err)
	}
	return &transfer, nil
}

// VerifyWebhookSignature checks the Stripe-Signature header (t=...,v1=...)
// against an HMAC-SHA256 of "<t>.<body>" and rejects stale timestamps.
func (c *stripeClientImpl) VerifyWebhookSignature(rawBody []byte, signatureHeader string) (*model.StripeEvent, error) {
	var ts string
	var sigs []string
	for _, part := range strings.Split(signatureHeader, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if ts == "" || len(sigs) == 0 {
		return nil, fmt.Errorf("malformed signature header")
	}

	tsInt, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse signature timestamp: %w", err)
	}
	if d := time.Since(time.Unix(tsInt, 0)); d > webhookTolerance || d < -webhookTolerance {
		return nil, fmt.Errorf("signature timestamp outside tolerance")
	}

	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	valid := false
	for _, sig := range sigs {
		if hmac.Equal([]byte(expected), []byte(sig)) {
			valid = true
			break
		}
	}
	if !valid {
		return nil, fmt.Errorf("signature mismatch")
	}

	var event model.StripeEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return nil, fmt.Errorf("decode webhook event: %w", err)
	}
	return &event, nil
}

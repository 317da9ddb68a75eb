package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"waifuhospital/internal/model"
)

// StubPaymentGateway is the deterministic offline implementation, selected at
// startup when no secret key is configured. Tests inspect its recorded calls.
type StubPaymentGateway struct {
	mu        sync.Mutex
	seq       int
	Intents   []*PaymentIntent
	Transfers []*Transfer
	Accounts  []string

	// Onboarded controls what GetAccountDetails reports.
	Onboarded bool
}

func NewStubPaymentGateway() *StubPaymentGateway {
	return &StubPaymentGateway{}
}

func (s *StubPaymentGateway) next() int {
	s.seq++
	return s.seq
}

func (s *StubPaymentGateway) CreatePaymentIntent(ctx context.Context, amountMinorUnits int64, currency string, metadata map[string]string) (*PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.next()
	intent := &PaymentIntent{
		ID:           fmt.Sprintf("pi_stub_%d", n),
		ClientSecret: fmt.Sprintf("pi_stub_%d_secret", n),
		Amount:       amountMinorUnits,
		Status:       "requires_payment_method",
	}
	s.Intents = append(s.Intents, intent)
	return intent, nil
}

func (s *StubPaymentGateway) CreateConnectedAccount(ctx context.Context, profile AccountProfile) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := fmt.Sprintf("acct_stub_%d", s.next())
	s.Accounts = append(s.Accounts, id)
	return id, nil
}

func (s *StubPaymentGateway) CreateAccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	return "https://connect.stripe.com/setup/stub", nil
}

func (s *StubPaymentGateway) GetAccountDetails(ctx context.Context, accountID string) (*AccountDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &AccountDetails{
		ID:               accountID,
		DetailsSubmitted: s.Onboarded,
		PayoutsEnabled:   s.Onboarded,
		ChargesEnabled:   s.Onboarded,
	}, nil
}

func (s *StubPaymentGateway) CreateTransfer(ctx context.Context, amountMinorUnits int64, destinationAccountID string, metadata map[string]string) (*Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	transfer := &Transfer{
		ID:          fmt.Sprintf("tr_stub_%d", s.next()),
		Amount:      amountMinorUnits,
		Destination: destinationAccountID,
	}
	s.Transfers = append(s.Transfers, transfer)
	return transfer, nil
}

// VerifyWebhookSignature skips verification and decodes the envelope directly;
// the stub exists for offline runs where nothing signs the payload.
func (s *StubPaymentGateway) VerifyWebhookSignature(rawBody []byte, signatureHeader string) (*model.StripeEvent, error) {
	var event model.StripeEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return nil, fmt.Errorf("decode webhook event: %w", err)
	}
	return &event, nil
}

package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"waifuhospital/internal/apperr"
	"waifuhospital/internal/client"
	"waifuhospital/internal/dto"
	"waifuhospital/internal/model"
	"waifuhospital/internal/repository"

	"gorm.io/gorm"
)

type webhookFixture struct {
	db          *gorm.DB
	checkout    CheckoutService
	webhooks    WebhookService
	payments    *client.StubPaymentGateway
	fulfillment *client.StubFulfillmentGateway
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	db := newTestDB(t)
	payments := client.NewStubPaymentGateway()
	fulfillment := client.NewStubFulfillmentGateway()

	merchandiseRepo := repository.NewMerchandiseRepository(db)
	purchaseRepo := repository.NewPurchaseRepository(db)
	userRepo := repository.NewUserRepository(db)

	return &webhookFixture{
		db: db,
		checkout: NewCheckoutService(
			db, payments, fulfillment,
			merchandiseRepo, purchaseRepo, userRepo,
		),
		webhooks: NewWebhookService(
			db, payments, fulfillment,
			merchandiseRepo, purchaseRepo, userRepo,
			repository.NewWebhookEventRepository(db),
		),
		payments:    payments,
		fulfillment: fulfillment,
	}
}

// quoteAndComplete runs a single-item card checkout up to completion and
// returns the purchase ID.
func (f *webhookFixture) quoteAndComplete(t *testing.T) string {
	t.Helper()
	quote, err := f.checkout.Quote(context.Background(), "buyer-1", &dto.CheckoutRequest{
		Items:   []dto.CartItem{{MerchandiseID: "merch-1", Quantity: 2}},
		Address: testAddress(),
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if _, err := f.checkout.Complete(context.Background(), "buyer-1", quote.PurchaseID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	return quote.PurchaseID
}

func stripeEventBody(t *testing.T, eventID, eventType string, object interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(object)
	if err != nil {
		t.Fatalf("marshal event object: %v", err)
	}
	event := model.StripeEvent{ID: eventID, Type: eventType}
	event.Data.Object = raw
	body, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return body
}

func (f *webhookFixture) loadPurchase(t *testing.T, id string) *model.Purchase {
	t.Helper()
	var purchase model.Purchase
	err := f.db.Preload("Items").Preload("CreatorPayouts").First(&purchase, "id = ?", id).Error
	if err != nil {
		t.Fatalf("load purchase: %v", err)
	}
	return &purchase
}

func TestStripeWebhookRejectsBadPayload(t *testing.T) {
	f := newWebhookFixture(t)

	err := f.webhooks.HandleStripeWebhook(context.Background(), []byte("not json"), "sig")
	if apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
}

func TestPaymentIntentSucceededSettlesPurchase(t *testing.T) {
	f := newWebhookFixture(t)
	seedCreator(t, f.db, "creator-1")
	seedMerchandise(t, f.db, "merch-1", "creator-1", 20.00, 5.00, 10)

	purchaseID := f.quoteAndComplete(t)

	body := stripeEventBody(t, "evt_1", model.StripeEventPaymentIntentSucceeded, model.StripePaymentIntent{
		ID:       f.payments.Intents[0].ID,
		Metadata: map[string]string{"purchaseId": purchaseID},
	})
	if err := f.webhooks.HandleStripeWebhook(context.Background(), body, "sig"); err != nil {
		t.Fatalf("handle webhook: %v", err)
	}

	purchase := f.loadPurchase(t, purchaseID)
	if !purchase.IsPaid || purchase.PaidAt == nil {
		t.Error("purchase not marked paid")
	}
	if purchase.Status != model.PurchaseStatusProcessing {
		t.Errorf("status = %q, want processing", purchase.Status)
	}

	// Completion already created the fulfillment order; the webhook must not
	// submit a second one.
	if len(f.fulfillment.CreatedOrders) != 1 {
		t.Fatalf("expected 1 fulfillment order, got %d", len(f.fulfillment.CreatedOrders))
	}

	if len(f.payments.Transfers) != 1 {
		t.Fatalf("expected 1 transfer, got %d", len(f.payments.Transfers))
	}
	if f.payments.Transfers[0].Amount != 2400 {
		t.Errorf("transfer amount = %d, want 2400", f.payments.Transfers[0].Amount)
	}
	if purchase.CreatorPayouts[0].StripeTransferID != f.payments.Transfers[0].ID {
		t.Error("payout row not linked to the transfer")
	}
}

func TestPaymentIntentSucceededReplayIsIdempotent(t *testing.T) {
	f := newWebhookFixture(t)
	seedCreator(t, f.db, "creator-1")
	seedMerchandise(t, f.db, "merch-1", "creator-1", 20.00, 5.00, 10)

	purchaseID := f.quoteAndComplete(t)
	intent := model.StripePaymentIntent{
		ID:       f.payments.Intents[0].ID,
		Metadata: map[string]string{"purchaseId": purchaseID},
	}

	// Same event twice, then the same payment under a fresh event ID.
	for _, eventID := range []string{"evt_1", "evt_1", "evt_2"} {
		body := stripeEventBody(t, eventID, model.StripeEventPaymentIntentSucceeded, intent)
		if err := f.webhooks.HandleStripeWebhook(context.Background(), body, "sig"); err != nil {
			t.Fatalf("handle webhook %s: %v", eventID, err)
		}
	}

	if len(f.fulfillment.CreatedOrders) != 1 {
		t.Errorf("expected 1 fulfillment order, got %d", len(f.fulfillment.CreatedOrders))
	}
	if len(f.payments.Transfers) != 1 {
		t.Errorf("expected 1 transfer, got %d", len(f.payments.Transfers))
	}
}

func TestPaymentIntentSucceededBackfillsFulfillmentOrder(t *testing.T) {
	f := newWebhookFixture(t)
	seedCreator(t, f.db, "creator-1")
	seedMerchandise(t, f.db, "merch-1", "creator-1", 20.00, 5.00, 10)

	// Quote only; the synchronous fulfillment attempt at completion never ran.
	quote, err := f.checkout.Quote(context.Background(), "buyer-1", &dto.CheckoutRequest{
		Items:   []dto.CartItem{{MerchandiseID: "merch-1", Quantity: 1}},
		Address: testAddress(),
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}

	body := stripeEventBody(t, "evt_1", model.StripeEventPaymentIntentSucceeded, model.StripePaymentIntent{
		ID: f.payments.Intents[0].ID,
	})
	if err := f.webhooks.HandleStripeWebhook(context.Background(), body, "sig"); err != nil {
		t.Fatalf("handle webhook: %v", err)
	}

	if len(f.fulfillment.CreatedOrders) != 1 {
		t.Fatalf("expected webhook to submit the fulfillment order, got %d", len(f.fulfillment.CreatedOrders))
	}
	if f.fulfillment.CreatedOrders[0].ExternalID != quote.PurchaseID {
		t.Errorf("external id = %q, want purchase id", f.fulfillment.CreatedOrders[0].ExternalID)
	}

	purchase := f.loadPurchase(t, quote.PurchaseID)
	if purchase.PrintfulOrderID == "" {
		t.Error("purchase not linked to fulfillment order")
	}
}

func TestPaymentIntentSucceededSettlesUnfinishedCheckout(t *testing.T) {
	f := newWebhookFixture(t)
	seedCreator(t, f.db, "creator-1")
	seedMerchandise(t, f.db, "merch-1", "creator-1", 20.00, 5.00, 10)

	// The buyer confirms payment gateway-side and closes the tab; the
	// completion endpoint is never called.
	quote, err := f.checkout.Quote(context.Background(), "buyer-1", &dto.CheckoutRequest{
		Items:   []dto.CartItem{{MerchandiseID: "merch-1", Quantity: 2}},
		Address: testAddress(),
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}

	body := stripeEventBody(t, "evt_pi", model.StripeEventPaymentIntentSucceeded, model.StripePaymentIntent{
		ID:       f.payments.Intents[0].ID,
		Metadata: map[string]string{"purchaseId": quote.PurchaseID},
	})
	if err := f.webhooks.HandleStripeWebhook(context.Background(), body, "sig"); err != nil {
		t.Fatalf("handle webhook: %v", err)
	}

	// The webhook must have performed the full settlement before shipping:
	// stock reserved, creator credited, then order and transfer.
	var merch model.Merchandise
	if err := f.db.First(&merch, "id = ?", "merch-1").Error; err != nil {
		t.Fatalf("load merchandise: %v", err)
	}
	if merch.Stock != 8 || merch.Sold != 2 {
		t.Errorf("stock/sold = %d/%d, want 8/2", merch.Stock, merch.Sold)
	}
	var creator model.User
	if err := f.db.First(&creator, "id = ?", "creator-1").Error; err != nil {
		t.Fatalf("load creator: %v", err)
	}
	if !almostEqual(creator.Balance.Pending, 24.00) {
		t.Errorf("pending balance = %v, want 24.00", creator.Balance.Pending)
	}
	if len(f.fulfillment.CreatedOrders) != 1 {
		t.Fatalf("expected 1 fulfillment order, got %d", len(f.fulfillment.CreatedOrders))
	}
	if len(f.payments.Transfers) != 1 {
		t.Fatalf("expected 1 transfer, got %d", len(f.payments.Transfers))
	}
	purchase := f.loadPurchase(t, quote.PurchaseID)
	if !purchase.IsPaid || purchase.Status != model.PurchaseStatusProcessing {
		t.Errorf("purchase paid/status = %v/%q, want true/processing", purchase.IsPaid, purchase.Status)
	}

	// A late completion call finds the purchase settled and just returns it.
	completed, err := f.checkout.Complete(context.Background(), "buyer-1", quote.PurchaseID)
	if err != nil {
		t.Fatalf("complete after webhook settlement: %v", err)
	}
	if completed.Status != model.PurchaseStatusProcessing {
		t.Errorf("status = %q, want processing", completed.Status)
	}
	if err := f.db.First(&merch, "id = ?", "merch-1").Error; err != nil {
		t.Fatalf("reload merchandise: %v", err)
	}
	if merch.Stock != 8 {
		t.Errorf("stock = %d, want 8 (not decremented twice)", merch.Stock)
	}
	if len(f.fulfillment.CreatedOrders) != 1 {
		t.Errorf("expected 1 fulfillment order after completion, got %d", len(f.fulfillment.CreatedOrders))
	}

	// The payout then settles normally once the transfer clears.
	body = stripeEventBody(t, "evt_tr", model.StripeEventTransferPaid, model.StripeTransfer{
		ID: f.payments.Transfers[0].ID,
	})
	if err := f.webhooks.HandleStripeWebhook(context.Background(), body, "sig"); err != nil {
		t.Fatalf("handle transfer.paid: %v", err)
	}
	if err := f.db.First(&creator, "id = ?", "creator-1").Error; err != nil {
		t.Fatalf("reload creator: %v", err)
	}
	if !almostEqual(creator.Balance.Available, 24.00) || !almostEqual(creator.Balance.Pending, 0) {
		t.Errorf("available/pending = %v/%v, want 24.00/0", creator.Balance.Available, creator.Balance.Pending)
	}
}

func TestPaymentIntentConcurrentDeliveriesCreateOneOrder(t *testing.T) {
	f := newWebhookFixture(t)
	seedCreator(t, f.db, "creator-1")
	seedMerchandise(t, f.db, "merch-1", "creator-1", 20.00, 5.00, 10)

	quote, err := f.checkout.Quote(context.Background(), "buyer-1", &dto.CheckoutRequest{
		Items:   []dto.CartItem{{MerchandiseID: "merch-1", Quantity: 1}},
		Address: testAddress(),
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	intent := model.StripePaymentIntent{
		ID:       f.payments.Intents[0].ID,
		Metadata: map[string]string{"purchaseId": quote.PurchaseID},
	}

	// The gateway can deliver the same payment under two event ids at the
	// same time; only one submission may reach the fulfillment gateway.
	eventIDs := []string{"evt_a", "evt_b"}
	errs := make([]error, len(eventIDs))
	var wg sync.WaitGroup
	for i := range eventIDs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := stripeEventBody(t, eventIDs[i], model.StripeEventPaymentIntentSucceeded, intent)
			errs[i] = f.webhooks.HandleStripeWebhook(context.Background(), body, "sig")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("delivery %s failed: %v", eventIDs[i], err)
		}
	}
	if len(f.fulfillment.CreatedOrders) != 1 {
		t.Fatalf("expected exactly 1 fulfillment order, got %d", len(f.fulfillment.CreatedOrders))
	}

	var merch model.Merchandise
	if err := f.db.First(&merch, "id = ?", "merch-1").Error; err != nil {
		t.Fatalf("load merchandise: %v", err)
	}
	if merch.Stock != 9 || merch.Sold != 1 {
		t.Errorf("stock/sold = %d/%d, want 9/1", merch.Stock, merch.Sold)
	}
}

func TestStripeWebhookConcurrentSameEventRunsOnce(t *testing.T) {
	f := newWebhookFixture(t)
	seedCreator(t, f.db, "creator-1")
	seedMerchandise(t, f.db, "merch-1", "creator-1", 20.00, 5.00, 10)

	quote, err := f.checkout.Quote(context.Background(), "buyer-1", &dto.CheckoutRequest{
		Items:   []dto.CartItem{{MerchandiseID: "merch-1", Quantity: 1}},
		Address: testAddress(),
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	body := stripeEventBody(t, "evt_dup", model.StripeEventPaymentIntentSucceeded, model.StripePaymentIntent{
		ID:       f.payments.Intents[0].ID,
		Metadata: map[string]string{"purchaseId": quote.PurchaseID},
	})

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.webhooks.HandleStripeWebhook(context.Background(), body, "sig")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("delivery %d failed: %v", i, err)
		}
	}
	if len(f.fulfillment.CreatedOrders) != 1 {
		t.Errorf("expected 1 fulfillment order, got %d", len(f.fulfillment.CreatedOrders))
	}
	if len(f.payments.Transfers) != 1 {
		t.Errorf("expected 1 transfer, got %d", len(f.payments.Transfers))
	}
}

func TestPaymentIntentSucceededUnknownPurchase(t *testing.T) {
	f := newWebhookFixture(t)

	body := stripeEventBody(t, "evt_1", model.StripeEventPaymentIntentSucceeded, model.StripePaymentIntent{
		ID: "pi_unknown",
	})
	// Orphan intents are logged and acknowledged, not retried forever.
	if err := f.webhooks.HandleStripeWebhook(context.Background(), body, "sig"); err != nil {
		t.Fatalf("expected nil for unknown purchase, got %v", err)
	}
}

func TestTransferPaidMovesBalanceOnce(t *testing.T) {
	f := newWebhookFixture(t)
	seedCreator(t, f.db, "creator-1")
	seedMerchandise(t, f.db, "merch-1", "creator-1", 20.00, 5.00, 10)

	purchaseID := f.quoteAndComplete(t)
	body := stripeEventBody(t, "evt_pi", model.StripeEventPaymentIntentSucceeded, model.StripePaymentIntent{
		ID:       f.payments.Intents[0].ID,
		Metadata: map[string]string{"purchaseId": purchaseID},
	})
	if err := f.webhooks.HandleStripeWebhook(context.Background(), body, "sig"); err != nil {
		t.Fatalf("settle payment: %v", err)
	}

	transferID := f.payments.Transfers[0].ID
	for _, eventID := range []string{"evt_tr_1", "evt_tr_2"} {
		body := stripeEventBody(t, eventID, model.StripeEventTransferPaid, model.StripeTransfer{
			ID: transferID,
		})
		if err := f.webhooks.HandleStripeWebhook(context.Background(), body, "sig"); err != nil {
			t.Fatalf("handle transfer.paid %s: %v", eventID, err)
		}
	}

	var creator model.User
	if err := f.db.First(&creator, "id = ?", "creator-1").Error; err != nil {
		t.Fatalf("load creator: %v", err)
	}
	if !almostEqual(creator.Balance.Available, 24.00) {
		t.Errorf("available = %v, want 24.00 (moved exactly once)", creator.Balance.Available)
	}
	if !almostEqual(creator.Balance.Pending, 0) {
		t.Errorf("pending = %v, want 0", creator.Balance.Pending)
	}

	purchase := f.loadPurchase(t, purchaseID)
	if purchase.CreatorPayouts[0].Status != model.PayoutStatusPaid {
		t.Errorf("payout status = %q, want paid", purchase.CreatorPayouts[0].Status)
	}
	if purchase.CreatorPayouts[0].PaidAt == nil {
		t.Error("payout missing paid timestamp")
	}
}

func TestAccountUpdatedRefreshesOnboarding(t *testing.T) {
	f := newWebhookFixture(t)
	user := &model.User{
		ID:       "creator-1",
		Username: "creator",
		Email:    "creator@example.com",
		Password: "x",
		StripeConnect: model.StripeConnect{
			AccountID: "acct_1",
		},
	}
	if err := f.db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}

	body := stripeEventBody(t, "evt_1", model.StripeEventAccountUpdated, model.StripeAccount{
		ID:               "acct_1",
		DetailsSubmitted: true,
		PayoutsEnabled:   true,
	})
	if err := f.webhooks.HandleStripeWebhook(context.Background(), body, "sig"); err != nil {
		t.Fatalf("handle webhook: %v", err)
	}

	var updated model.User
	if err := f.db.First(&updated, "id = ?", "creator-1").Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	if !updated.StripeConnect.IsOnboarded || !updated.StripeConnect.PayoutsEnabled {
		t.Error("onboarding flags not refreshed")
	}
	if updated.StripeConnect.OnboardingCompleted == nil {
		t.Fatal("first submitted event should stamp completion time")
	}

	firstStamp := *updated.StripeConnect.OnboardingCompleted
	body = stripeEventBody(t, "evt_2", model.StripeEventAccountUpdated, model.StripeAccount{
		ID:               "acct_1",
		DetailsSubmitted: true,
		PayoutsEnabled:   true,
	})
	if err := f.webhooks.HandleStripeWebhook(context.Background(), body, "sig"); err != nil {
		t.Fatalf("handle webhook: %v", err)
	}
	if err := f.db.First(&updated, "id = ?", "creator-1").Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if !updated.StripeConnect.OnboardingCompleted.Equal(firstStamp) {
		t.Error("completion stamp must not move on later events")
	}
}

func TestAccountUpdatedIssuesDeferredTransfers(t *testing.T) {
	f := newWebhookFixture(t)
	// A creator with an account that cannot receive payouts yet.
	creator := &model.User{
		ID:       "creator-1",
		Username: "creator",
		Email:    "creator@example.com",
		Password: "x",
		StripeConnect: model.StripeConnect{
			AccountID: "acct_1",
		},
	}
	if err := f.db.Create(creator).Error; err != nil {
		t.Fatalf("seed creator: %v", err)
	}
	seedMerchandise(t, f.db, "merch-1", "creator-1", 20.00, 5.00, 10)

	purchaseID := f.quoteAndComplete(t)
	body := stripeEventBody(t, "evt_pi", model.StripeEventPaymentIntentSucceeded, model.StripePaymentIntent{
		ID:       f.payments.Intents[0].ID,
		Metadata: map[string]string{"purchaseId": purchaseID},
	})
	if err := f.webhooks.HandleStripeWebhook(context.Background(), body, "sig"); err != nil {
		t.Fatalf("settle payment: %v", err)
	}

	// The payment event must defer the transfer, not drop the payout.
	if len(f.payments.Transfers) != 0 {
		t.Fatalf("expected transfer to be deferred, got %d", len(f.payments.Transfers))
	}

	body = stripeEventBody(t, "evt_acct", model.StripeEventAccountUpdated, model.StripeAccount{
		ID:               "acct_1",
		DetailsSubmitted: true,
		PayoutsEnabled:   true,
	})
	if err := f.webhooks.HandleStripeWebhook(context.Background(), body, "sig"); err != nil {
		t.Fatalf("handle account.updated: %v", err)
	}

	if len(f.payments.Transfers) != 1 {
		t.Fatalf("expected deferred transfer to be issued, got %d", len(f.payments.Transfers))
	}
	if f.payments.Transfers[0].Amount != 2400 {
		t.Errorf("transfer amount = %d, want 2400", f.payments.Transfers[0].Amount)
	}
	purchase := f.loadPurchase(t, purchaseID)
	if purchase.CreatorPayouts[0].StripeTransferID != f.payments.Transfers[0].ID {
		t.Error("payout row not linked to the deferred transfer")
	}

	// A replayed account event finds the row linked and issues nothing new.
	body = stripeEventBody(t, "evt_acct_2", model.StripeEventAccountUpdated, model.StripeAccount{
		ID:               "acct_1",
		DetailsSubmitted: true,
		PayoutsEnabled:   true,
	})
	if err := f.webhooks.HandleStripeWebhook(context.Background(), body, "sig"); err != nil {
		t.Fatalf("replay account.updated: %v", err)
	}
	if len(f.payments.Transfers) != 1 {
		t.Errorf("expected no additional transfer on replay, got %d", len(f.payments.Transfers))
	}
}

func TestPrintfulOrderCreatedLinksByExternalID(t *testing.T) {
	f := newWebhookFixture(t)
	seedCreator(t, f.db, "creator-1")
	seedMerchandise(t, f.db, "merch-1", "creator-1", 20.00, 5.00, 10)

	quote, err := f.checkout.Quote(context.Background(), "buyer-1", &dto.CheckoutRequest{
		Items:   []dto.CartItem{{MerchandiseID: "merch-1", Quantity: 1}},
		Address: testAddress(),
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}

	err = f.webhooks.HandlePrintfulWebhook(context.Background(), &model.PrintfulWebhook{
		Type: model.PrintfulEventOrderCreated,
		Data: model.PrintfulWebhookData{
			Order: model.PrintfulOrder{
				ID:         42,
				ExternalID: quote.PurchaseID,
				Status:     "draft",
			},
		},
	})
	if err != nil {
		t.Fatalf("handle webhook: %v", err)
	}

	purchase := f.loadPurchase(t, quote.PurchaseID)
	if purchase.PrintfulOrderID != "42" {
		t.Errorf("printful order id = %q, want 42", purchase.PrintfulOrderID)
	}
}

func TestPrintfulOrderCreatedHeuristicFallback(t *testing.T) {
	f := newWebhookFixture(t)

	// A paid purchase with no correlation id and no linked order, the shape of
	// orders created before the external id round-trip existed.
	purchase := &model.Purchase{
		ID:     "purchase-legacy",
		UserID: "buyer-1",
		Items: []model.PurchaseItem{
			{MerchandiseID: "merch-1", Quantity: 1, Price: 20.00},
			{MerchandiseID: "merch-2", Quantity: 1, Price: 10.00},
		},
		TotalAmount:   30.00,
		PaymentMethod: model.PaymentMethodCreditCard,
		IsPaid:        true,
		Status:        model.PurchaseStatusProcessing,
	}
	if err := f.db.Create(purchase).Error; err != nil {
		t.Fatalf("seed purchase: %v", err)
	}

	err := f.webhooks.HandlePrintfulWebhook(context.Background(), &model.PrintfulWebhook{
		Type: model.PrintfulEventOrderCreated,
		Data: model.PrintfulWebhookData{
			Order: model.PrintfulOrder{
				ID:     77,
				Status: "draft",
				Items: []model.PrintfulOrderItem{
					{VariantID: "v1", Quantity: 1},
					{VariantID: "v2", Quantity: 1},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("handle webhook: %v", err)
	}

	got := f.loadPurchase(t, "purchase-legacy")
	if got.PrintfulOrderID != "77" {
		t.Errorf("printful order id = %q, want 77", got.PrintfulOrderID)
	}
}

func TestPrintfulPackageShipped(t *testing.T) {
	f := newWebhookFixture(t)

	purchase := &model.Purchase{
		ID:              "purchase-1",
		UserID:          "buyer-1",
		TotalAmount:     20.00,
		PaymentMethod:   model.PaymentMethodCreditCard,
		IsPaid:          true,
		Status:          model.PurchaseStatusProcessing,
		PrintfulOrderID: "99",
	}
	if err := f.db.Create(purchase).Error; err != nil {
		t.Fatalf("seed purchase: %v", err)
	}

	err := f.webhooks.HandlePrintfulWebhook(context.Background(), &model.PrintfulWebhook{
		Type: model.PrintfulEventOrderShipped,
		Data: model.PrintfulWebhookData{
			Order: model.PrintfulOrder{ID: 99, Status: model.PrintfulStatusFulfilled},
			Shipment: model.PrintfulShipment{
				TrackingNumber: "TRACK123",
				TrackingURL:    "https://tracking.example/TRACK123",
			},
		},
	})
	if err != nil {
		t.Fatalf("handle webhook: %v", err)
	}

	got := f.loadPurchase(t, "purchase-1")
	if !got.IsShipped || got.ShippedAt == nil {
		t.Error("purchase not marked shipped")
	}
	if got.Status != model.PurchaseStatusShipped {
		t.Errorf("status = %q, want shipped", got.Status)
	}
	if got.TrackingNumber != "TRACK123" {
		t.Errorf("tracking number = %q, want TRACK123", got.TrackingNumber)
	}
}

func TestPrintfulOrderFailedKeepsProcessing(t *testing.T) {
	f := newWebhookFixture(t)

	purchase := &model.Purchase{
		ID:              "purchase-1",
		UserID:          "buyer-1",
		TotalAmount:     20.00,
		PaymentMethod:   model.PaymentMethodCreditCard,
		IsPaid:          true,
		Status:          model.PurchaseStatusProcessing,
		PrintfulOrderID: "99",
	}
	if err := f.db.Create(purchase).Error; err != nil {
		t.Fatalf("seed purchase: %v", err)
	}

	err := f.webhooks.HandlePrintfulWebhook(context.Background(), &model.PrintfulWebhook{
		Type: model.PrintfulEventOrderFailed,
		Data: model.PrintfulWebhookData{
			Order:  model.PrintfulOrder{ID: 99, Status: model.PrintfulStatusFailed},
			Reason: "printing error",
		},
	})
	if err != nil {
		t.Fatalf("handle webhook: %v", err)
	}

	got := f.loadPurchase(t, "purchase-1")
	if got.PrintfulOrderStatus != model.PrintfulStatusFailed {
		t.Errorf("printful status = %q, want failed", got.PrintfulOrderStatus)
	}
	if got.Status != model.PurchaseStatusProcessing {
		t.Errorf("status = %q, want processing (failures are handled manually)", got.Status)
	}
}

func TestPrintfulOrderCanceledCancelsPurchase(t *testing.T) {
	f := newWebhookFixture(t)

	purchase := &model.Purchase{
		ID:              "purchase-1",
		UserID:          "buyer-1",
		TotalAmount:     20.00,
		PaymentMethod:   model.PaymentMethodCreditCard,
		IsPaid:          true,
		Status:          model.PurchaseStatusProcessing,
		PrintfulOrderID: "99",
	}
	if err := f.db.Create(purchase).Error; err != nil {
		t.Fatalf("seed purchase: %v", err)
	}

	err := f.webhooks.HandlePrintfulWebhook(context.Background(), &model.PrintfulWebhook{
		Type: model.PrintfulEventOrderCancelled,
		Data: model.PrintfulWebhookData{
			Order: model.PrintfulOrder{ID: 99, Status: model.PrintfulStatusCanceled},
		},
	})
	if err != nil {
		t.Fatalf("handle webhook: %v", err)
	}

	got := f.loadPurchase(t, "purchase-1")
	if got.Status != model.PurchaseStatusCancelled {
		t.Errorf("status = %q, want cancelled", got.Status)
	}
}

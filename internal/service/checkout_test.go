package service

import (
	"context"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"waifuhospital/internal/apperr"
	"waifuhospital/internal/client"
	"waifuhospital/internal/dto"
	"waifuhospital/internal/model"
	"waifuhospital/internal/repository"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap test db: %v", err)
	}
	// sqlite allows one writer; a single connection keeps concurrent test
	// goroutines queued instead of failing with a busy error.
	sqlDB.SetMaxOpenConns(1)
	if err := client.Migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	t.Cleanup(func() {
		sqlDB.Close()
	})

	return db
}

func seedCreator(t *testing.T, db *gorm.DB, id string) *model.User {
	t.Helper()
	user := &model.User{
		ID:       id,
		Username: "creator-" + id,
		Email:    id + "@example.com",
		Password: "x",
		StripeConnect: model.StripeConnect{
			AccountID:      "acct_" + id,
			IsOnboarded:    true,
			PayoutsEnabled: true,
		},
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed creator: %v", err)
	}
	return user
}

func seedMerchandise(t *testing.T, db *gorm.DB, id, creatorID string, price, cost float64, stock int) *model.Merchandise {
	t.Helper()
	merch := &model.Merchandise{
		ID:                    id,
		Name:                  "Tee " + id,
		Price:                 price,
		CharacterID:           "char-1",
		CreatorID:             creatorID,
		Category:              "t-shirt",
		Stock:                 stock,
		ProductionCost:        cost,
		CreatorRevenuePercent: 80,
		PlatformFeePercent:    20,
		IsApproved:            true,
		PrintfulVariants: []model.MerchandiseVariant{
			{VariantID: "var-m-black", Size: "M", Color: "Black", RetailPrice: price},
			{VariantID: "var-l-white", Size: "L", Color: "White", RetailPrice: price},
		},
	}
	if err := db.Create(merch).Error; err != nil {
		t.Fatalf("seed merchandise: %v", err)
	}
	return merch
}

func newTestCheckout(t *testing.T, db *gorm.DB) (CheckoutService, *client.StubPaymentGateway, *client.StubFulfillmentGateway) {
	t.Helper()
	payments := client.NewStubPaymentGateway()
	fulfillment := client.NewStubFulfillmentGateway()
	svc := NewCheckoutService(
		db,
		payments,
		fulfillment,
		repository.NewMerchandiseRepository(db),
		repository.NewPurchaseRepository(db),
		repository.NewUserRepository(db),
	)
	return svc, payments, fulfillment
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func testAddress() model.Address {
	return model.Address{
		FirstName:  "Ada",
		LastName:   "Lovelace",
		Street:     "1 Analytical Way",
		City:       "London",
		State:      "LDN",
		PostalCode: "E1 6AN",
		Country:    "GB",
		Email:      "ada@example.com",
	}
}

func TestQuoteRevenueSplit(t *testing.T) {
	db := newTestDB(t)
	seedCreator(t, db, "creator-1")
	seedMerchandise(t, db, "merch-1", "creator-1", 20.00, 5.00, 10)
	svc, payments, _ := newTestCheckout(t, db)

	quote, err := svc.Quote(context.Background(), "buyer-1", &dto.CheckoutRequest{
		Items: []dto.CartItem{
			{MerchandiseID: "merch-1", Quantity: 2, Size: "M", Color: "Black"},
		},
		Address: testAddress(),
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}

	if len(quote.Items) != 1 {
		t.Fatalf("expected 1 quote item, got %d", len(quote.Items))
	}
	line := quote.Items[0]
	if !almostEqual(line.ItemPrice, 40.00) {
		t.Errorf("item price = %v, want 40.00", line.ItemPrice)
	}
	if !almostEqual(line.ProductionCost, 10.00) {
		t.Errorf("production cost = %v, want 10.00", line.ProductionCost)
	}
	if !almostEqual(line.PlatformFee, 6.00) {
		t.Errorf("platform fee = %v, want 6.00", line.PlatformFee)
	}
	if !almostEqual(line.CreatorRevenue, 24.00) {
		t.Errorf("creator revenue = %v, want 24.00", line.CreatorRevenue)
	}

	// The split must reassemble the full line price.
	if !almostEqual(line.CreatorRevenue+line.PlatformFee+line.ProductionCost, line.UnitPrice*2) {
		t.Errorf("split does not sum to line price")
	}

	if !almostEqual(quote.Subtotal, 40.00) {
		t.Errorf("subtotal = %v, want 40.00", quote.Subtotal)
	}
	if !almostEqual(quote.TotalAmount, quote.Subtotal+quote.ShippingCost) {
		t.Errorf("total %v != subtotal %v + shipping %v", quote.TotalAmount, quote.Subtotal, quote.ShippingCost)
	}

	if len(payments.Intents) != 1 {
		t.Fatalf("expected 1 payment intent, got %d", len(payments.Intents))
	}
	wantMinor := int64(math.Round(quote.TotalAmount * 100))
	if payments.Intents[0].Amount != wantMinor {
		t.Errorf("intent amount = %d, want %d", payments.Intents[0].Amount, wantMinor)
	}
	if quote.ClientSecret == "" {
		t.Error("quote missing client secret")
	}
}

func TestQuoteResolvesVariantBySizeAndColor(t *testing.T) {
	db := newTestDB(t)
	seedCreator(t, db, "creator-1")
	seedMerchandise(t, db, "merch-1", "creator-1", 20.00, 5.00, 10)
	svc, _, _ := newTestCheckout(t, db)

	quote, err := svc.Quote(context.Background(), "buyer-1", &dto.CheckoutRequest{
		Items: []dto.CartItem{
			{MerchandiseID: "merch-1", Quantity: 1, Size: "L", Color: "White"},
		},
		Address: testAddress(),
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}

	var purchase model.Purchase
	if err := db.Preload("Items").First(&purchase, "id = ?", quote.PurchaseID).Error; err != nil {
		t.Fatalf("load purchase: %v", err)
	}
	if purchase.Items[0].PrintfulVariantID != "var-l-white" {
		t.Errorf("variant = %q, want var-l-white", purchase.Items[0].PrintfulVariantID)
	}
}

func TestQuoteFallsBackToFirstVariant(t *testing.T) {
	db := newTestDB(t)
	seedCreator(t, db, "creator-1")
	seedMerchandise(t, db, "merch-1", "creator-1", 20.00, 5.00, 10)
	svc, _, _ := newTestCheckout(t, db)

	quote, err := svc.Quote(context.Background(), "buyer-1", &dto.CheckoutRequest{
		Items: []dto.CartItem{
			{MerchandiseID: "merch-1", Quantity: 1, Size: "XXL", Color: "Purple"},
		},
		Address: testAddress(),
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}

	var purchase model.Purchase
	if err := db.Preload("Items").First(&purchase, "id = ?", quote.PurchaseID).Error; err != nil {
		t.Fatalf("load purchase: %v", err)
	}
	if purchase.Items[0].PrintfulVariantID != "var-m-black" {
		t.Errorf("variant = %q, want first variant var-m-black", purchase.Items[0].PrintfulVariantID)
	}
}

func TestQuoteUnknownMerchandise(t *testing.T) {
	db := newTestDB(t)
	svc, _, _ := newTestCheckout(t, db)

	_, err := svc.Quote(context.Background(), "buyer-1", &dto.CheckoutRequest{
		Items:   []dto.CartItem{{MerchandiseID: "nope", Quantity: 1}},
		Address: testAddress(),
	})
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestQuoteMultiCreatorPayouts(t *testing.T) {
	db := newTestDB(t)
	seedCreator(t, db, "creator-1")
	seedCreator(t, db, "creator-2")
	seedMerchandise(t, db, "merch-1", "creator-1", 20.00, 5.00, 10)
	seedMerchandise(t, db, "merch-2", "creator-2", 10.00, 2.00, 10)
	svc, _, _ := newTestCheckout(t, db)

	quote, err := svc.Quote(context.Background(), "buyer-1", &dto.CheckoutRequest{
		Items: []dto.CartItem{
			{MerchandiseID: "merch-1", Quantity: 2},
			{MerchandiseID: "merch-2", Quantity: 1},
		},
		Address: testAddress(),
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}

	if len(quote.Payouts) != 2 {
		t.Fatalf("expected 2 payout rows, got %d", len(quote.Payouts))
	}
	// One payment intent for the whole cart; the per-creator cuts become
	// separate transfers after payment.
	var purchase model.Purchase
	if err := db.Preload("CreatorPayouts").First(&purchase, "id = ?", quote.PurchaseID).Error; err != nil {
		t.Fatalf("load purchase: %v", err)
	}
	if len(purchase.CreatorPayouts) != 2 {
		t.Fatalf("expected 2 persisted payouts, got %d", len(purchase.CreatorPayouts))
	}
	for _, p := range purchase.CreatorPayouts {
		if p.Status != model.PayoutStatusPending {
			t.Errorf("payout status = %q, want pending", p.Status)
		}
	}
}

func TestCompleteDecrementsStockAndCreditsPending(t *testing.T) {
	db := newTestDB(t)
	creator := seedCreator(t, db, "creator-1")
	seedMerchandise(t, db, "merch-1", "creator-1", 20.00, 5.00, 10)
	svc, _, fulfillment := newTestCheckout(t, db)

	quote, err := svc.Quote(context.Background(), "buyer-1", &dto.CheckoutRequest{
		Items:   []dto.CartItem{{MerchandiseID: "merch-1", Quantity: 2}},
		Address: testAddress(),
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}

	purchase, err := svc.Complete(context.Background(), "buyer-1", quote.PurchaseID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if purchase.Status != model.PurchaseStatusProcessing {
		t.Errorf("status = %q, want processing", purchase.Status)
	}

	var merch model.Merchandise
	if err := db.First(&merch, "id = ?", "merch-1").Error; err != nil {
		t.Fatalf("load merchandise: %v", err)
	}
	if merch.Stock != 8 || merch.Sold != 2 {
		t.Errorf("stock/sold = %d/%d, want 8/2", merch.Stock, merch.Sold)
	}

	var user model.User
	if err := db.First(&user, "id = ?", creator.ID).Error; err != nil {
		t.Fatalf("load creator: %v", err)
	}
	if !almostEqual(user.Balance.Pending, 24.00) {
		t.Errorf("pending balance = %v, want 24.00", user.Balance.Pending)
	}
	if !almostEqual(user.Balance.TotalEarned, 24.00) {
		t.Errorf("total earned = %v, want 24.00", user.Balance.TotalEarned)
	}

	if len(fulfillment.CreatedOrders) != 1 {
		t.Fatalf("expected 1 fulfillment order, got %d", len(fulfillment.CreatedOrders))
	}
	if fulfillment.CreatedOrders[0].ExternalID != quote.PurchaseID {
		t.Errorf("fulfillment external id = %q, want purchase id", fulfillment.CreatedOrders[0].ExternalID)
	}
}

func TestCompleteOutOfStock(t *testing.T) {
	db := newTestDB(t)
	seedCreator(t, db, "creator-1")
	seedMerchandise(t, db, "merch-1", "creator-1", 20.00, 5.00, 1)
	svc, _, _ := newTestCheckout(t, db)

	quote, err := svc.Quote(context.Background(), "buyer-1", &dto.CheckoutRequest{
		Items:   []dto.CartItem{{MerchandiseID: "merch-1", Quantity: 2}},
		Address: testAddress(),
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}

	_, err = svc.Complete(context.Background(), "buyer-1", quote.PurchaseID)
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected Conflict, got %v", err)
	}

	// Stock untouched after the failed completion.
	var merch model.Merchandise
	if err := db.First(&merch, "id = ?", "merch-1").Error; err != nil {
		t.Fatalf("load merchandise: %v", err)
	}
	if merch.Stock != 1 || merch.Sold != 0 {
		t.Errorf("stock/sold = %d/%d, want 1/0", merch.Stock, merch.Sold)
	}
}

func TestCompleteTwiceIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	seedCreator(t, db, "creator-1")
	seedMerchandise(t, db, "merch-1", "creator-1", 20.00, 5.00, 10)
	svc, _, fulfillment := newTestCheckout(t, db)

	quote, err := svc.Quote(context.Background(), "buyer-1", &dto.CheckoutRequest{
		Items:   []dto.CartItem{{MerchandiseID: "merch-1", Quantity: 1}},
		Address: testAddress(),
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}

	if _, err := svc.Complete(context.Background(), "buyer-1", quote.PurchaseID); err != nil {
		t.Fatalf("first complete: %v", err)
	}
	// A repeated confirmation returns the settled purchase without
	// re-applying any side effects.
	purchase, err := svc.Complete(context.Background(), "buyer-1", quote.PurchaseID)
	if err != nil {
		t.Fatalf("second complete: %v", err)
	}
	if purchase.Status != model.PurchaseStatusProcessing {
		t.Errorf("status = %q, want processing", purchase.Status)
	}

	var merch model.Merchandise
	if err := db.First(&merch, "id = ?", "merch-1").Error; err != nil {
		t.Fatalf("load merchandise: %v", err)
	}
	if merch.Stock != 9 {
		t.Errorf("stock = %d, want 9 (decremented once)", merch.Stock)
	}
	if len(fulfillment.CreatedOrders) != 1 {
		t.Errorf("expected 1 fulfillment order, got %d", len(fulfillment.CreatedOrders))
	}
}

func TestCompleteConcurrentStockLimit(t *testing.T) {
	db := newTestDB(t)
	seedCreator(t, db, "creator-1")
	seedMerchandise(t, db, "merch-1", "creator-1", 20.00, 5.00, 3)
	svc, _, _ := newTestCheckout(t, db)

	purchaseIDs := make([]string, 5)
	for i := range purchaseIDs {
		quote, err := svc.Quote(context.Background(), "buyer-1", &dto.CheckoutRequest{
			Items:   []dto.CartItem{{MerchandiseID: "merch-1", Quantity: 1}},
			Address: testAddress(),
		})
		if err != nil {
			t.Fatalf("quote %d: %v", i, err)
		}
		purchaseIDs[i] = quote.PurchaseID
	}

	errs := make([]error, len(purchaseIDs))
	var wg sync.WaitGroup
	for i := range purchaseIDs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Complete(context.Background(), "buyer-1", purchaseIDs[i])
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case apperr.KindOf(err) == apperr.KindConflict:
		default:
			t.Errorf("unexpected completion error: %v", err)
		}
	}
	if succeeded != 3 {
		t.Errorf("completions succeeded = %d, want 3 (stock)", succeeded)
	}

	var merch model.Merchandise
	if err := db.First(&merch, "id = ?", "merch-1").Error; err != nil {
		t.Fatalf("load merchandise: %v", err)
	}
	if merch.Stock != 0 || merch.Sold != 3 {
		t.Errorf("stock/sold = %d/%d, want 0/3", merch.Stock, merch.Sold)
	}
}

func TestCompleteWrongUser(t *testing.T) {
	db := newTestDB(t)
	seedCreator(t, db, "creator-1")
	seedMerchandise(t, db, "merch-1", "creator-1", 20.00, 5.00, 10)
	svc, _, _ := newTestCheckout(t, db)

	quote, err := svc.Quote(context.Background(), "buyer-1", &dto.CheckoutRequest{
		Items:   []dto.CartItem{{MerchandiseID: "merch-1", Quantity: 1}},
		Address: testAddress(),
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}

	_, err = svc.Complete(context.Background(), "buyer-2", quote.PurchaseID)
	if apperr.KindOf(err) != apperr.KindForbidden {
		t.Fatalf("expected Forbidden, got %v", err)
	}
}

func TestResolveVariant(t *testing.T) {
	variants := []model.MerchandiseVariant{
		{VariantID: "v1", Size: "M", Color: "Black"},
		{VariantID: "v2", Size: "L", Color: "Black"},
		{VariantID: "v3", Size: "L", Color: "White"},
	}

	cases := []struct {
		name  string
		size  string
		color string
		want  string
	}{
		{"exact match", "L", "White", "v3"},
		{"size only", "L", "", "v2"},
		{"color only", "", "White", "v3"},
		{"no filters takes first", "", "", "v1"},
		{"no match falls back to first", "XS", "Green", "v1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := resolveVariant(variants, tc.size, tc.color); got != tc.want {
				t.Errorf("resolveVariant(%q, %q) = %q, want %q", tc.size, tc.color, got, tc.want)
			}
		})
	}

	if got := resolveVariant(nil, "M", "Black"); got != "" {
		t.Errorf("resolveVariant with no variants = %q, want empty", got)
	}
}

func TestSelectShippingRate(t *testing.T) {
	rates := []client.ShippingRate{
		{ID: "STANDARD", Rate: 7.95},
		{ID: "EXPRESS", Rate: 14.95},
	}

	if r := selectShippingRate(rates, "EXPRESS"); r.ID != "EXPRESS" {
		t.Errorf("requested method not honored, got %q", r.ID)
	}
	if r := selectShippingRate(rates, "OVERNIGHT"); r.ID != "STANDARD" {
		t.Errorf("unknown method should take first rate, got %q", r.ID)
	}
	if r := selectShippingRate(nil, ""); !almostEqual(r.Rate, 7.95) {
		t.Errorf("empty rates should use fallback, got %v", r.Rate)
	}
}

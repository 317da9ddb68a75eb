package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"

	"waifuhospital/internal/apperr"
	"waifuhospital/internal/client"
	"waifuhospital/internal/dto"
	"waifuhospital/internal/model"
	"waifuhospital/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// fallbackShippingRates is served when the fulfillment gateway cannot quote
// rates for a standalone estimation request. Checkout itself never uses these;
// a rate failure there fails the checkout.
var fallbackShippingRates = []client.ShippingRate{
	{ID: "STANDARD", Name: "Flat Rate (Estimated delivery: 5-7 business days)", Rate: 7.95, Currency: "USD", MinDeliveryDays: 5, MaxDeliveryDays: 7},
	{ID: "EXPRESS", Name: "Express (Estimated delivery: 2-3 business days)", Rate: 14.95, Currency: "USD", MinDeliveryDays: 2, MaxDeliveryDays: 3},
}

type CheckoutService interface {
	GetShippingRates(ctx context.Context, req *dto.ShippingRatesRequest) ([]client.ShippingRate, error)
	Quote(ctx context.Context, userID string, req *dto.CheckoutRequest) (*dto.CheckoutQuote, error)
	Complete(ctx context.Context, userID, purchaseID string) (*model.Purchase, error)
	GetPurchase(ctx context.Context, userID, purchaseID string) (*model.Purchase, error)
	ListPurchases(ctx context.Context, userID string) ([]*model.Purchase, error)
}

type checkoutServiceImpl struct {
	db                 *gorm.DB
	paymentGateway     client.PaymentGateway
	fulfillmentGateway client.FulfillmentGateway
	merchandiseRepo    repository.MerchandiseRepository
	purchaseRepo       repository.PurchaseRepository
	userRepo           repository.UserRepository
}

func NewCheckoutService(
	db *gorm.DB,
	paymentGateway client.PaymentGateway,
	fulfillmentGateway client.FulfillmentGateway,
	merchandiseRepo repository.MerchandiseRepository,
	purchaseRepo repository.PurchaseRepository,
	userRepo repository.UserRepository,
) CheckoutService {
	return &checkoutServiceImpl{
		db:                 db,
		paymentGateway:     paymentGateway,
		fulfillmentGateway: fulfillmentGateway,
		merchandiseRepo:    merchandiseRepo,
		purchaseRepo:       purchaseRepo,
		userRepo:           userRepo,
	}
}

// pricedLine is one cart line with its server-side cost breakdown.
type pricedLine struct {
	merch          *model.Merchandise
	quantity       int
	size           string
	color          string
	variantID      string
	itemPrice      float64
	productionCost float64
	platformFee    float64
	creatorRevenue float64
}

// priceLine resolves the variant and computes the revenue split for one line.
// The split must satisfy creatorRevenue + platformFee + productionCost ==
// unitPrice * quantity.
func priceLine(merch *model.Merchandise, item *dto.CartItem) *pricedLine {
	line := &pricedLine{
		merch:    merch,
		quantity: item.Quantity,
		size:     item.Size,
		color:    item.Color,
	}

	line.variantID = resolveVariant(merch.PrintfulVariants, item.Size, item.Color)

	line.itemPrice = merch.Price * float64(item.Quantity)
	line.productionCost = merch.ProductionCost * float64(item.Quantity)
	line.platformFee = (line.itemPrice - line.productionCost) * merch.PlatformFeePercent / 100
	line.creatorRevenue = line.itemPrice - line.productionCost - line.platformFee

	return line
}

// resolveVariant picks the fulfillment variant matching the requested size and
// color; an absent filter matches anything. Falls back to the first known
// variant, or "" when the merchandise has none (checkout proceeds without
// fulfillment integration in that case).
func resolveVariant(variants []model.MerchandiseVariant, size, color string) string {
	for _, v := range variants {
		if size != "" && v.Size != size {
			continue
		}
		if color != "" && v.Color != color {
			continue
		}
		return v.VariantID
	}
	if len(variants) > 0 {
		return variants[0].VariantID
	}
	return ""
}

func (s *checkoutServiceImpl) priceCart(ctx context.Context, items []dto.CartItem) ([]*pricedLine, error) {
	lines := make([]*pricedLine, 0, len(items))
	for i := range items {
		item := &items[i]
		if item.Quantity <= 0 {
			return nil, apperr.Validation("item quantity must be positive")
		}

		merch, err := s.merchandiseRepo.FindByID(ctx, item.MerchandiseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperr.NotFound("merchandise %s not found", item.MerchandiseID)
			}
			return nil, apperr.Internal("load merchandise", err)
		}

		lines = append(lines, priceLine(merch, item))
	}
	return lines, nil
}

func fulfillmentItems(lines []*pricedLine) []client.FulfillmentItem {
	items := make([]client.FulfillmentItem, 0, len(lines))
	for _, line := range lines {
		if line.variantID == "" {
			continue
		}
		items = append(items, client.FulfillmentItem{
			VariantID: line.variantID,
			Quantity:  line.quantity,
			Price:     line.merch.Price,
		})
	}
	return items
}

// GetShippingRates is the standalone estimation endpoint. Unlike checkout, a
// gateway failure here degrades to fixed fallback rates.
func (s *checkoutServiceImpl) GetShippingRates(ctx context.Context, req *dto.ShippingRatesRequest) ([]client.ShippingRate, error) {
	lines, err := s.priceCart(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	rates, err := s.fulfillmentGateway.CalculateShippingRates(ctx, req.Address, fulfillmentItems(lines))
	if err != nil || len(rates) == 0 {
		return fallbackShippingRates, nil
	}
	return rates, nil
}

func selectShippingRate(rates []client.ShippingRate, methodID string) *client.ShippingRate {
	if methodID != "" {
		for i := range rates {
			if rates[i].ID == methodID {
				return &rates[i]
			}
		}
	}
	if len(rates) > 0 {
		return &rates[0]
	}
	return &fallbackShippingRates[0]
}

// Quote prices the cart, creates the payment intent and persists the Purchase
// eagerly with isPaid=false and one pending payout row per creator. Stock is
// not reserved here; that happens at completion.
func (s *checkoutServiceImpl) Quote(ctx context.Context, userID string, req *dto.CheckoutRequest) (*dto.CheckoutQuote, error) {
	if len(req.Items) == 0 {
		return nil, apperr.Validation("cart is empty")
	}

	paymentMethod := req.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = model.PaymentMethodCreditCard
	}

	lines, err := s.priceCart(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	subtotal := 0.0
	creatorTotals := make(map[string]float64)
	for _, line := range lines {
		subtotal += line.itemPrice
		creatorTotals[line.merch.CreatorID] += line.creatorRevenue
	}

	rates, err := s.fulfillmentGateway.CalculateShippingRates(ctx, req.Address, fulfillmentItems(lines))
	if err != nil {
		return nil, apperr.External("printful", err)
	}
	rate := selectShippingRate(rates, req.ShippingMethod)

	shippingCost := rate.Rate
	total := subtotal + shippingCost

	purchaseID := uuid.NewString()
	intent, err := s.paymentGateway.CreatePaymentIntent(ctx,
		int64(math.Round(total*100)), "usd",
		map[string]string{
			"purchaseId": purchaseID,
			"userId":     userID,
		})
	if err != nil {
		return nil, apperr.External("stripe", err)
	}

	purchase := &model.Purchase{
		ID:                     purchaseID,
		UserID:                 userID,
		Subtotal:               subtotal,
		ShippingCost:           shippingCost,
		TaxAmount:              0,
		TotalAmount:            total,
		ShippingAddress:        req.Address,
		PaymentMethod:          paymentMethod,
		StripePaymentIntent:    intent.ID,
		PrintfulShippingMethod: rate.ID,
		Status:                 model.PurchaseStatusPending,
	}
	for _, line := range lines {
		purchase.Items = append(purchase.Items, model.PurchaseItem{
			MerchandiseID:     line.merch.ID,
			Quantity:          line.quantity,
			Size:              line.size,
			Color:             line.color,
			Price:             line.merch.Price,
			PrintfulVariantID: line.variantID,
			CreatorID:         line.merch.CreatorID,
			CreatorRevenue:    line.creatorRevenue,
			PlatformFee:       line.platformFee,
			ProductionCost:    line.productionCost,
		})
	}
	for _, creatorID := range sortedKeys(creatorTotals) {
		purchase.CreatorPayouts = append(purchase.CreatorPayouts, model.CreatorPayout{
			CreatorID: creatorID,
			Amount:    creatorTotals[creatorID],
			Status:    model.PayoutStatusPending,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.purchaseRepo.Create(ctx, tx, purchase)
	})
	if err != nil {
		return nil, apperr.Internal("store purchase", err)
	}

	quote := &dto.CheckoutQuote{
		PurchaseID:   purchase.ID,
		Subtotal:     subtotal,
		ShippingCost: shippingCost,
		TotalAmount:  total,
		ClientSecret: intent.ClientSecret,
	}
	for _, line := range lines {
		quote.Items = append(quote.Items, dto.QuoteItem{
			MerchandiseID:  line.merch.ID,
			Name:           line.merch.Name,
			Quantity:       line.quantity,
			UnitPrice:      line.merch.Price,
			ItemPrice:      line.itemPrice,
			ProductionCost: line.productionCost,
			PlatformFee:    line.platformFee,
			CreatorRevenue: line.creatorRevenue,
		})
	}
	for _, creatorID := range sortedKeys(creatorTotals) {
		quote.Payouts = append(quote.Payouts, dto.QuoteCreatorCut{
			CreatorID: creatorID,
			Amount:    creatorTotals[creatorID],
		})
	}

	return quote, nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// settlePurchase reserves stock and credits pending creator balances for a
// quoted purchase, exactly once. Both the completion endpoint and the payment
// webhook call this; whichever arrives first wins the guarded status
// transition and performs the settlement, the other finds it already done. A
// failed stock line restores the ones already taken and leaves the purchase
// pending. Returns whether this call performed the settlement.
func settlePurchase(
	ctx context.Context,
	db *gorm.DB,
	purchaseRepo repository.PurchaseRepository,
	merchandiseRepo repository.MerchandiseRepository,
	userRepo repository.UserRepository,
	purchase *model.Purchase,
) (bool, error) {
	settled := false
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		moved, err := purchaseRepo.TransitionStatus(ctx, tx, purchase.ID,
			model.PurchaseStatusPending, model.PurchaseStatusProcessing)
		if err != nil {
			return apperr.Internal("transition purchase", err)
		}
		if !moved {
			return nil
		}
		settled = true

		for i, item := range purchase.Items {
			if err := merchandiseRepo.DecrementStock(ctx, tx, item.MerchandiseID, item.Quantity); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					// Roll back the lines already reserved. The transaction
					// handles this, but being explicit keeps the path valid
					// if callers ever run without one.
					for j := 0; j < i; j++ {
						if rerr := merchandiseRepo.RestoreStock(ctx, tx, purchase.Items[j].MerchandiseID, purchase.Items[j].Quantity); rerr != nil {
							return apperr.Internal("restore stock", rerr)
						}
					}
					return apperr.Conflict("merchandise %s is out of stock", item.MerchandiseID)
				}
				return apperr.Internal("decrement stock", err)
			}
		}

		for _, payout := range purchase.CreatorPayouts {
			if err := userRepo.AddPendingBalance(ctx, tx, payout.CreatorID, payout.Amount); err != nil {
				return apperr.Internal("credit pending balance", err)
			}
		}

		return nil
	})
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return false, appErr
		}
		return false, apperr.Internal("settle purchase", err)
	}
	return settled, nil
}

// Complete finalizes a quoted checkout after the buyer confirmed payment
// client-side. The payment webhook runs the same settlement when it arrives
// first (a buyer can confirm payment and close the tab without ever calling
// this), so a purchase that is already settled is simply returned.
func (s *checkoutServiceImpl) Complete(ctx context.Context, userID, purchaseID string) (*model.Purchase, error) {
	purchase, err := s.purchaseRepo.FindByID(ctx, purchaseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("purchase not found")
		}
		return nil, apperr.Internal("load purchase", err)
	}
	if purchase.UserID != userID {
		return nil, apperr.Forbidden("purchase belongs to another user")
	}

	settled, err := settlePurchase(ctx, s.db, s.purchaseRepo, s.merchandiseRepo, s.userRepo, purchase)
	if err != nil {
		return nil, err
	}

	if settled {
		// Best effort; the payment webhook retries this when it finds the
		// purchase still unlinked.
		_, _ = submitFulfillmentOrder(ctx, s.db, s.purchaseRepo, s.fulfillmentGateway, purchase)

		// Non-card methods have no gateway webhook; settle immediately.
		if purchase.PaymentMethod != model.PaymentMethodCreditCard {
			err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				_, err := s.purchaseRepo.MarkPaid(ctx, tx, purchase.ID)
				return err
			})
			if err != nil {
				return nil, apperr.Internal("mark purchase paid", err)
			}
		}
	}

	return s.purchaseRepo.FindByID(ctx, purchase.ID)
}

// submitFulfillmentOrder sends the purchase to the fulfillment gateway with
// the purchase ID as the external correlation id, then links the returned
// order. A claim on the purchase row keeps concurrent submitters, completion
// racing a webhook delivery for instance, from creating two gateway orders;
// the claim is released on gateway failure so a later attempt can resubmit.
// Returns (nil, nil) when no line resolved a variant or another caller holds
// the submission.
func submitFulfillmentOrder(
	ctx context.Context,
	db *gorm.DB,
	purchaseRepo repository.PurchaseRepository,
	gateway client.FulfillmentGateway,
	purchase *model.Purchase,
) (*client.FulfillmentOrder, error) {
	items := make([]client.FulfillmentItem, 0, len(purchase.Items))
	for _, item := range purchase.Items {
		if item.PrintfulVariantID == "" {
			continue
		}
		items = append(items, client.FulfillmentItem{
			VariantID: item.PrintfulVariantID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	if len(items) == 0 {
		return nil, nil
	}

	claimed, err := purchaseRepo.ClaimFulfillment(ctx, purchase.ID)
	if err != nil {
		return nil, fmt.Errorf("claim fulfillment submission: %w", err)
	}
	if !claimed {
		return nil, nil
	}

	order, err := gateway.CreateOrder(ctx, purchase.ID, purchase.ShippingAddress, items)
	if err != nil {
		if rerr := purchaseRepo.ReleaseFulfillment(ctx, purchase.ID); rerr != nil {
			log.Printf("release fulfillment claim for purchase %s: %v", purchase.ID, rerr)
		}
		return nil, fmt.Errorf("create fulfillment order: %w", err)
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return purchaseRepo.SetPrintfulOrder(ctx, tx, purchase.ID, order.ID, order.Status)
	})
	if err != nil {
		return nil, fmt.Errorf("link fulfillment order: %w", err)
	}

	return order, nil
}

func (s *checkoutServiceImpl) GetPurchase(ctx context.Context, userID, purchaseID string) (*model.Purchase, error) {
	purchase, err := s.purchaseRepo.FindByID(ctx, purchaseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("purchase not found")
		}
		return nil, apperr.Internal("load purchase", err)
	}
	if purchase.UserID != userID {
		return nil, apperr.Forbidden("purchase belongs to another user")
	}
	return purchase, nil
}

func (s *checkoutServiceImpl) ListPurchases(ctx context.Context, userID string) ([]*model.Purchase, error) {
	purchases, err := s.purchaseRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("list purchases", err)
	}
	return purchases, nil
}

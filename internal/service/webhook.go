package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"time"

	"waifuhospital/internal/apperr"
	"waifuhospital/internal/client"
	"waifuhospital/internal/model"
	"waifuhospital/internal/repository"

	"gorm.io/gorm"
)

// WebhookService reconciles purchase, payout and balance state from gateway
// events. Both gateways deliver at least once, so every handler must be a
// no-op when replayed against already-reconciled state.
type WebhookService interface {
	HandleStripeWebhook(ctx context.Context, rawBody []byte, signatureHeader string) error
	HandlePrintfulWebhook(ctx context.Context, payload *model.PrintfulWebhook) error
}

type webhookServiceImpl struct {
	db                 *gorm.DB
	paymentGateway     client.PaymentGateway
	fulfillmentGateway client.FulfillmentGateway
	merchandiseRepo    repository.MerchandiseRepository
	purchaseRepo       repository.PurchaseRepository
	userRepo           repository.UserRepository
	webhookEventRepo   repository.WebhookEventRepository
}

func NewWebhookService(
	db *gorm.DB,
	paymentGateway client.PaymentGateway,
	fulfillmentGateway client.FulfillmentGateway,
	merchandiseRepo repository.MerchandiseRepository,
	purchaseRepo repository.PurchaseRepository,
	userRepo repository.UserRepository,
	webhookEventRepo repository.WebhookEventRepository,
) WebhookService {
	return &webhookServiceImpl{
		db:                 db,
		paymentGateway:     paymentGateway,
		fulfillmentGateway: fulfillmentGateway,
		merchandiseRepo:    merchandiseRepo,
		purchaseRepo:       purchaseRepo,
		userRepo:           userRepo,
		webhookEventRepo:   webhookEventRepo,
	}
}

// HandleStripeWebhook verifies, deduplicates and dispatches one payment
// gateway event. The event id is claimed before any side effects run, so two
// deliveries of the same event racing each other resolve to exactly one
// handler run. A processing failure releases the claim and returns the error
// unacknowledged, so the gateway's redelivery retries the reconciliation;
// replays against settled state are no-ops.
func (s *webhookServiceImpl) HandleStripeWebhook(ctx context.Context, rawBody []byte, signatureHeader string) error {
	event, err := s.paymentGateway.VerifyWebhookSignature(rawBody, signatureHeader)
	if err != nil {
		return apperr.Unauthorized("webhook signature verification failed: %v", err)
	}

	claimed, err := s.webhookEventRepo.Claim(ctx, event.ID, "stripe", event.Type)
	if err != nil {
		return apperr.Internal("claim webhook event", err)
	}
	if !claimed {
		return nil
	}

	switch event.Type {
	case model.StripeEventPaymentIntentSucceeded:
		err = s.handlePaymentIntentSucceeded(ctx, event)
	case model.StripeEventChargeSucceeded:
		// Informational only; the payment intent event drives state.
	case model.StripeEventTransferCreated:
		err = s.handleTransferCreated(ctx, event)
	case model.StripeEventTransferPaid:
		err = s.handleTransferPaid(ctx, event)
	case model.StripeEventAccountUpdated:
		err = s.handleAccountUpdated(ctx, event)
	default:
		log.Printf("stripe webhook: ignoring event type %s", event.Type)
	}
	if err != nil {
		if rerr := s.webhookEventRepo.Release(ctx, event.ID); rerr != nil {
			log.Printf("stripe webhook: release event %s: %v", event.ID, rerr)
		}
		return err
	}

	return nil
}

// handlePaymentIntentSucceeded settles the purchase if the buyer never called
// the completion endpoint, marks it paid, backfills the fulfillment order and
// creates the per-creator transfers. Every step is driven off persisted state
// rather than the paid transition itself, so a partial failure is repaired by
// the next delivery instead of being lost.
func (s *webhookServiceImpl) handlePaymentIntentSucceeded(ctx context.Context, event *model.StripeEvent) error {
	var intent model.StripePaymentIntent
	if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
		return apperr.Validation("decode payment intent: %v", err)
	}

	purchase, err := s.purchaseRepo.FindByPaymentIntent(ctx, intent.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if purchaseID := intent.Metadata["purchaseId"]; purchaseID != "" {
				purchase, err = s.purchaseRepo.FindByID(ctx, purchaseID)
			}
		}
		if err != nil {
			log.Printf("stripe webhook: no purchase for payment intent %s", intent.ID)
			return nil
		}
	}

	// The buyer may have confirmed payment and closed the tab without calling
	// the completion endpoint; reserve stock and credit pending balances here
	// before shipping anything. An out-of-stock settlement fails the delivery
	// so redelivery retries once stock is restored.
	if _, err := settlePurchase(ctx, s.db, s.purchaseRepo, s.merchandiseRepo, s.userRepo, purchase); err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := s.purchaseRepo.MarkPaid(ctx, tx, purchase.ID)
		return err
	})
	if err != nil {
		return apperr.Internal("mark purchase paid", err)
	}

	if purchase.PrintfulOrderID == "" {
		if _, err := submitFulfillmentOrder(ctx, s.db, s.purchaseRepo, s.fulfillmentGateway, purchase); err != nil {
			return apperr.External("printful", err)
		}
	}

	return s.createPendingTransfers(ctx, purchase)
}

// createPendingTransfers issues one gateway transfer per payout row that does
// not have one yet. Rows that already carry a transfer id are skipped, which
// is what makes a replayed payment event safe.
func (s *webhookServiceImpl) createPendingTransfers(ctx context.Context, purchase *model.Purchase) error {
	for i := range purchase.CreatorPayouts {
		payout := &purchase.CreatorPayouts[i]
		if payout.StripeTransferID != "" || payout.Status != model.PayoutStatusPending {
			continue
		}

		creator, err := s.userRepo.FindByID(ctx, payout.CreatorID)
		if err != nil {
			log.Printf("stripe webhook: payout creator %s not found, skipping transfer", payout.CreatorID)
			continue
		}
		if creator.StripeConnect.AccountID == "" || !creator.StripeConnect.PayoutsEnabled {
			log.Printf("stripe webhook: creator %s not payable yet, transfer deferred", payout.CreatorID)
			continue
		}

		transfer, err := s.paymentGateway.CreateTransfer(ctx,
			int64(math.Round(payout.Amount*100)),
			creator.StripeConnect.AccountID,
			map[string]string{
				"purchaseId": purchase.ID,
				"creatorId":  payout.CreatorID,
			})
		if err != nil {
			return apperr.External("stripe", err)
		}

		if err := s.purchaseRepo.AttachTransferID(ctx, payout.ID, transfer.ID); err != nil {
			return apperr.Internal("attach transfer id", err)
		}
		payout.StripeTransferID = transfer.ID
	}

	return nil
}

// handleTransferCreated attaches the gateway transfer id to the matching
// payout row. Usually a no-op because the id was attached when the transfer
// was made; it matters for transfers created out of band.
func (s *webhookServiceImpl) handleTransferCreated(ctx context.Context, event *model.StripeEvent) error {
	var transfer model.StripeTransfer
	if err := json.Unmarshal(event.Data.Object, &transfer); err != nil {
		return apperr.Validation("decode transfer: %v", err)
	}

	purchaseID := transfer.Metadata["purchaseId"]
	creatorID := transfer.Metadata["creatorId"]
	if purchaseID == "" || creatorID == "" {
		log.Printf("stripe webhook: transfer %s has no correlation metadata", transfer.ID)
		return nil
	}

	purchase, err := s.purchaseRepo.FindByID(ctx, purchaseID)
	if err != nil {
		log.Printf("stripe webhook: no purchase %s for transfer %s", purchaseID, transfer.ID)
		return nil
	}

	for i := range purchase.CreatorPayouts {
		payout := &purchase.CreatorPayouts[i]
		if payout.CreatorID != creatorID || payout.StripeTransferID != "" {
			continue
		}
		if err := s.purchaseRepo.AttachTransferID(ctx, payout.ID, transfer.ID); err != nil {
			return apperr.Internal("attach transfer id", err)
		}
		break
	}

	return nil
}

// handleTransferPaid settles the payout row and moves the amount from the
// creator's pending balance to available. The balance delta is applied only
// on the pending to paid transition; a replay finds the row already paid and
// leaves the balance alone.
func (s *webhookServiceImpl) handleTransferPaid(ctx context.Context, event *model.StripeEvent) error {
	var transfer model.StripeTransfer
	if err := json.Unmarshal(event.Data.Object, &transfer); err != nil {
		return apperr.Validation("decode transfer: %v", err)
	}

	payout, err := s.purchaseRepo.FindPayoutByTransferID(ctx, transfer.ID)
	if err != nil {
		log.Printf("stripe webhook: no payout for transfer %s", transfer.ID)
		return nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		settled, err := s.purchaseRepo.MarkPayoutPaid(ctx, tx, payout.ID)
		if err != nil {
			return fmt.Errorf("mark payout paid: %w", err)
		}
		if !settled {
			return nil
		}

		return s.userRepo.MoveBalancePendingToAvailable(ctx, tx, payout.CreatorID, payout.Amount)
	})
	if err != nil {
		return apperr.Internal("settle payout", err)
	}

	return nil
}

// handleAccountUpdated refreshes the creator's cached onboarding flags. The
// first event showing a submitted account stamps the completion time.
func (s *webhookServiceImpl) handleAccountUpdated(ctx context.Context, event *model.StripeEvent) error {
	var account model.StripeAccount
	if err := json.Unmarshal(event.Data.Object, &account); err != nil {
		return apperr.Validation("decode account: %v", err)
	}

	user, err := s.userRepo.FindByStripeAccountID(ctx, account.ID)
	if err != nil {
		log.Printf("stripe webhook: no user for account %s", account.ID)
		return nil
	}

	var completedAt *time.Time
	if account.DetailsSubmitted && user.StripeConnect.OnboardingCompleted == nil {
		now := time.Now()
		completedAt = &now
	}

	if err := s.userRepo.UpdateOnboardingStatus(ctx, user.ID,
		account.DetailsSubmitted, account.PayoutsEnabled, completedAt); err != nil {
		return apperr.Internal("update onboarding status", err)
	}

	// Transfers deferred while the account could not receive payouts are
	// issued now that it can.
	if account.PayoutsEnabled {
		return s.issueDeferredTransfers(ctx, user.ID, account.ID)
	}

	return nil
}

// issueDeferredTransfers sweeps the creator's payout rows that were skipped
// while the account was not payable and creates the missing transfers. Only
// rows on already-paid purchases qualify; unpaid ones get their transfer from
// the payment event as usual.
func (s *webhookServiceImpl) issueDeferredTransfers(ctx context.Context, creatorID, accountID string) error {
	payouts, err := s.purchaseRepo.ListUnsettledPayouts(ctx, creatorID)
	if err != nil {
		return apperr.Internal("list unsettled payouts", err)
	}

	for _, payout := range payouts {
		transfer, err := s.paymentGateway.CreateTransfer(ctx,
			int64(math.Round(payout.Amount*100)),
			accountID,
			map[string]string{
				"purchaseId": payout.PurchaseID,
				"creatorId":  creatorID,
			})
		if err != nil {
			return apperr.External("stripe", err)
		}

		if err := s.purchaseRepo.AttachTransferID(ctx, payout.ID, transfer.ID); err != nil {
			return apperr.Internal("attach transfer id", err)
		}
	}

	return nil
}

// HandlePrintfulWebhook dispatches one fulfillment gateway event. These carry
// no signature; the endpoint relies on the routing path staying private.
func (s *webhookServiceImpl) HandlePrintfulWebhook(ctx context.Context, payload *model.PrintfulWebhook) error {
	switch payload.Type {
	case model.PrintfulEventOrderCreated:
		return s.handlePrintfulOrderCreated(ctx, &payload.Data.Order)
	case model.PrintfulEventOrderUpdated:
		return s.handlePrintfulOrderUpdated(ctx, &payload.Data.Order)
	case model.PrintfulEventOrderShipped:
		return s.handlePrintfulShipped(ctx, &payload.Data)
	case model.PrintfulEventOrderFailed:
		return s.handlePrintfulOrderFailed(ctx, &payload.Data.Order)
	case model.PrintfulEventOrderCancelled:
		return s.handlePrintfulOrderUpdated(ctx, &payload.Data.Order)
	default:
		log.Printf("printful webhook: ignoring event type %s", payload.Type)
		return nil
	}
}

// handlePrintfulOrderCreated links the fulfillment order to its purchase.
// The external id round-trips the purchase ID, so linking is exact; the
// item-count heuristic over paid-but-unlinked purchases remains as a fallback
// for orders created before the correlation id existed.
func (s *webhookServiceImpl) handlePrintfulOrderCreated(ctx context.Context, order *model.PrintfulOrder) error {
	orderID := strconv.FormatInt(order.ID, 10)

	if order.ExternalID != "" {
		purchase, err := s.purchaseRepo.FindByID(ctx, order.ExternalID)
		if err == nil {
			if purchase.PrintfulOrderID != "" {
				return nil
			}
			return s.linkPrintfulOrder(ctx, purchase.ID, orderID, order.Status)
		}
	}

	unlinked, err := s.purchaseRepo.ListPaidUnlinked(ctx)
	if err != nil {
		return apperr.Internal("list unlinked purchases", err)
	}
	for _, purchase := range unlinked {
		if len(purchase.Items) == len(order.Items) {
			return s.linkPrintfulOrder(ctx, purchase.ID, orderID, order.Status)
		}
	}

	log.Printf("printful webhook: no purchase matched order %s", orderID)
	return nil
}

func (s *webhookServiceImpl) linkPrintfulOrder(ctx context.Context, purchaseID, orderID, status string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.purchaseRepo.SetPrintfulOrder(ctx, tx, purchaseID, orderID, status)
	})
	if err != nil {
		return apperr.Internal("link fulfillment order", err)
	}
	return nil
}

func (s *webhookServiceImpl) handlePrintfulOrderUpdated(ctx context.Context, order *model.PrintfulOrder) error {
	orderID := strconv.FormatInt(order.ID, 10)
	purchase, err := s.purchaseRepo.FindByPrintfulOrderID(ctx, orderID)
	if err != nil {
		log.Printf("printful webhook: no purchase for order %s", orderID)
		return nil
	}

	if err := s.purchaseRepo.UpdatePrintfulStatus(ctx, purchase.ID, order.Status); err != nil {
		return apperr.Internal("update fulfillment status", err)
	}

	switch order.Status {
	case model.PrintfulStatusFulfilled:
		if !purchase.IsShipped {
			if err := s.purchaseRepo.MarkShipped(ctx, purchase.ID, purchase.TrackingNumber, purchase.TrackingURL); err != nil {
				return apperr.Internal("mark purchase shipped", err)
			}
		}
	case model.PrintfulStatusCanceled:
		if err := s.purchaseRepo.UpdateStatus(ctx, purchase.ID, model.PurchaseStatusCancelled); err != nil {
			return apperr.Internal("cancel purchase", err)
		}
	}

	return nil
}

func (s *webhookServiceImpl) handlePrintfulShipped(ctx context.Context, data *model.PrintfulWebhookData) error {
	orderID := strconv.FormatInt(data.Order.ID, 10)
	purchase, err := s.purchaseRepo.FindByPrintfulOrderID(ctx, orderID)
	if err != nil {
		log.Printf("printful webhook: no purchase for shipped order %s", orderID)
		return nil
	}

	if err := s.purchaseRepo.MarkShipped(ctx, purchase.ID,
		data.Shipment.TrackingNumber, data.Shipment.TrackingURL); err != nil {
		return apperr.Internal("mark purchase shipped", err)
	}

	return nil
}

// handlePrintfulOrderFailed records the failure but keeps the purchase in
// processing; failed fulfillment needs manual intervention, not a retry loop.
func (s *webhookServiceImpl) handlePrintfulOrderFailed(ctx context.Context, order *model.PrintfulOrder) error {
	orderID := strconv.FormatInt(order.ID, 10)
	purchase, err := s.purchaseRepo.FindByPrintfulOrderID(ctx, orderID)
	if err != nil {
		log.Printf("printful webhook: no purchase for failed order %s", orderID)
		return nil
	}

	if err := s.purchaseRepo.UpdatePrintfulStatus(ctx, purchase.ID, model.PrintfulStatusFailed); err != nil {
		return apperr.Internal("update fulfillment status", err)
	}

	return nil
}

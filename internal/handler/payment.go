package handler

import (
	"io"
	"net/http"

	"waifuhospital/internal/dto"
	"waifuhospital/internal/middleware"
	"waifuhospital/internal/model"
	"waifuhospital/internal/service"

	"github.com/labstack/echo/v4"
)

type PaymentHandler struct {
	checkoutService service.CheckoutService
	webhookService  service.WebhookService
}

func NewPaymentHandler(checkoutService service.CheckoutService, webhookService service.WebhookService) *PaymentHandler {
	return &PaymentHandler{
		checkoutService: checkoutService,
		webhookService:  webhookService,
	}
}

func (h *PaymentHandler) GetShippingRates(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.ShippingRatesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	rates, err := h.checkoutService.GetShippingRates(ctx, &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, rates)
}

func (h *PaymentHandler) Checkout(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	quote, err := h.checkoutService.Quote(ctx, middleware.UserID(c), &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, quote)
}

func (h *PaymentHandler) CompleteCheckout(c echo.Context) error {
	ctx := c.Request().Context()

	purchase, err := h.checkoutService.Complete(ctx, middleware.UserID(c), c.Param("purchaseID"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, purchase)
}

func (h *PaymentHandler) GetPurchase(c echo.Context) error {
	ctx := c.Request().Context()

	purchase, err := h.checkoutService.GetPurchase(ctx, middleware.UserID(c), c.Param("purchaseID"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, purchase)
}

func (h *PaymentHandler) ListPurchases(c echo.Context) error {
	ctx := c.Request().Context()

	purchases, err := h.checkoutService.ListPurchases(ctx, middleware.UserID(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, purchases)
}

func (h *PaymentHandler) StripeWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}

	err = h.webhookService.HandleStripeWebhook(ctx, body, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		return err
	}

	return c.NoContent(http.StatusOK)
}

func (h *PaymentHandler) PrintfulWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	var payload model.PrintfulWebhook
	if err := c.Bind(&payload); err != nil {
		return c.NoContent(http.StatusBadRequest)
	}

	if err := h.webhookService.HandlePrintfulWebhook(ctx, &payload); err != nil {
		return err
	}

	return c.NoContent(http.StatusOK)
}

package handler

import (
	"net/http"

	"waifuhospital/internal/dto"
	"waifuhospital/internal/middleware"
	"waifuhospital/internal/service"

	"github.com/labstack/echo/v4"
)

type MerchandiseHandler struct {
	merchandiseService service.MerchandiseService
}

func NewMerchandiseHandler(merchandiseService service.MerchandiseService) *MerchandiseHandler {
	return &MerchandiseHandler{
		merchandiseService: merchandiseService,
	}
}

func (h *MerchandiseHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CreateMerchandiseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	merch, err := h.merchandiseService.Create(ctx, middleware.UserID(c), &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, merch)
}

func (h *MerchandiseHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	merch, err := h.merchandiseService.Get(ctx, c.Param("merchandiseID"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, merch)
}

func (h *MerchandiseHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	if characterID := c.QueryParam("characterId"); characterID != "" {
		merch, err := h.merchandiseService.ListByCharacter(ctx, characterID)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, merch)
	}

	merch, err := h.merchandiseService.ListApproved(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, merch)
}

func (h *MerchandiseHandler) ListMine(c echo.Context) error {
	ctx := c.Request().Context()

	merch, err := h.merchandiseService.ListMine(ctx, middleware.UserID(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, merch)
}

func (h *MerchandiseHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.UpdateMerchandiseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	merch, err := h.merchandiseService.Update(ctx, middleware.UserID(c), c.Param("merchandiseID"), &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, merch)
}

func (h *MerchandiseHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.merchandiseService.Delete(ctx, middleware.UserID(c), c.Param("merchandiseID")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

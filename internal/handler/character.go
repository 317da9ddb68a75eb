package handler

import (
	"net/http"

	"waifuhospital/internal/dto"
	"waifuhospital/internal/middleware"
	"waifuhospital/internal/service"

	"github.com/labstack/echo/v4"
)

type CharacterHandler struct {
	characterService service.CharacterService
}

func NewCharacterHandler(characterService service.CharacterService) *CharacterHandler {
	return &CharacterHandler{
		characterService: characterService,
	}
}

func (h *CharacterHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CreateCharacterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	character, err := h.characterService.Create(ctx, middleware.UserID(c), &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, character)
}

func (h *CharacterHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	character, err := h.characterService.Get(ctx, middleware.UserID(c), c.Param("characterID"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, character)
}

func (h *CharacterHandler) ListPublic(c echo.Context) error {
	ctx := c.Request().Context()

	characters, err := h.characterService.ListPublic(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, characters)
}

func (h *CharacterHandler) ListMine(c echo.Context) error {
	ctx := c.Request().Context()

	characters, err := h.characterService.ListMine(ctx, middleware.UserID(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, characters)
}

func (h *CharacterHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.UpdateCharacterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	character, err := h.characterService.Update(ctx, middleware.UserID(c), c.Param("characterID"), &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, character)
}

func (h *CharacterHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.characterService.Delete(ctx, middleware.UserID(c), c.Param("characterID")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *CharacterHandler) Like(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.characterService.Like(ctx, middleware.UserID(c), c.Param("characterID")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *CharacterHandler) Unlike(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.characterService.Unlike(ctx, middleware.UserID(c), c.Param("characterID")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *CharacterHandler) GenerateImage(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.GenerateCharacterImageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	result, err := h.characterService.GenerateImage(ctx, &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

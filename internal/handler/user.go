package handler

import (
	"net/http"

	"waifuhospital/internal/dto"
	"waifuhospital/internal/middleware"
	"waifuhospital/internal/service"

	"github.com/labstack/echo/v4"
)

type UserHandler struct {
	userService service.UserService
}

func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

func (h *UserHandler) Register(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	result, err := h.userService.Register(ctx, &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, result)
}

func (h *UserHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	result, err := h.userService.Login(ctx, &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

func (h *UserHandler) GetProfile(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := h.userService.GetProfile(ctx, middleware.UserID(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, user)
}

func (h *UserHandler) UpdateProfile(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	user, err := h.userService.UpdateProfile(ctx, middleware.UserID(c), &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, user)
}

func (h *UserHandler) StartOnboarding(c echo.Context) error {
	ctx := c.Request().Context()

	link, err := h.userService.StartOnboarding(ctx, middleware.UserID(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, link)
}

func (h *UserHandler) GetAccountStatus(c echo.Context) error {
	ctx := c.Request().Context()

	status, err := h.userService.GetAccountStatus(ctx, middleware.UserID(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, status)
}

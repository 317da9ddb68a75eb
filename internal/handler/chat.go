package handler

import (
	"net/http"

	"waifuhospital/internal/dto"
	"waifuhospital/internal/middleware"
	"waifuhospital/internal/service"

	"github.com/labstack/echo/v4"
)

type ChatHandler struct {
	chatService service.ChatService
}

func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
	}
}

func (h *ChatHandler) SendMessage(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	result, err := h.chatService.SendMessage(ctx, middleware.UserID(c), c.Param("characterID"), &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

func (h *ChatHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	chat, err := h.chatService.GetChat(ctx, middleware.UserID(c), c.Param("chatID"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, chat)
}

func (h *ChatHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	chats, err := h.chatService.ListChats(ctx, middleware.UserID(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, chats)
}

func (h *ChatHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.chatService.DeleteChat(ctx, middleware.UserID(c), c.Param("chatID")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

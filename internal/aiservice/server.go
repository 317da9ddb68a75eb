package aiservice

import (
	"net/http"

	"waifuhospital/internal/dto"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Server is the secondary chat/image HTTP surface consumed by the primary
// backend. It never propagates LLM failures to callers; degraded answers
// carry a fallback marker instead.
type Server struct {
	echo         *echo.Echo
	chatService  *ChatService
	imageService *ImageService
}

func NewServer(chatService *ChatService, imageService *ImageService) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:         e,
		chatService:  chatService,
		imageService: imageService,
	}

	e.GET("/api/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.POST("/api/chat", s.handleChat)
	e.POST("/api/generate-image", s.handleGenerateImage)
	e.GET("/api/characters/:characterID", s.handleGetCharacter)

	return s
}

// handleGetCharacter exposes the cached character record, mostly for
// debugging which persona the service is currently chatting as.
func (s *Server) handleGetCharacter(c echo.Context) error {
	ctx := c.Request().Context()

	character, err := s.chatService.Character(ctx, c.Param("characterID"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	return c.JSON(http.StatusOK, character)
}

func (s *Server) handleChat(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.AIChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}
	if req.CharacterID == "" || req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "characterId and message are required")
	}

	reply, fallback, err := s.chatService.GenerateReply(ctx, req.CharacterID, req.Message)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	return c.JSON(http.StatusOK, &dto.AIChatResponse{
		Reply:    reply,
		Fallback: fallback,
	})
}

func (s *Server) handleGenerateImage(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.AIImageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}
	if req.Prompt == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "prompt is required")
	}

	url, fallback := s.imageService.Generate(ctx, req.Prompt, req.ArtStyle)

	return c.JSON(http.StatusOK, &dto.AIImageResponse{
		ImageURL: url,
		Fallback: fallback,
	})
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown() error {
	return s.echo.Close()
}

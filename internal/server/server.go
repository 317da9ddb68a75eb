package server

import (
	"errors"
	"net/http"

	"waifuhospital/internal/apperr"
	"waifuhospital/internal/handler"
	appmiddleware "waifuhospital/internal/middleware"
	"waifuhospital/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Server struct {
	echo               *echo.Echo
	userHandler        *handler.UserHandler
	characterHandler   *handler.CharacterHandler
	chatHandler        *handler.ChatHandler
	merchandiseHandler *handler.MerchandiseHandler
	paymentHandler     *handler.PaymentHandler
	jwtSecret          string
}

func NewServer(
	jwtSecret string,
	userService service.UserService,
	characterService service.CharacterService,
	chatService service.ChatService,
	merchandiseService service.MerchandiseService,
	checkoutService service.CheckoutService,
	webhookService service.WebhookService,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = errorHandler(e)

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:               e,
		userHandler:        handler.NewUserHandler(userService),
		characterHandler:   handler.NewCharacterHandler(characterService),
		chatHandler:        handler.NewChatHandler(chatService),
		merchandiseHandler: handler.NewMerchandiseHandler(merchandiseService),
		paymentHandler:     handler.NewPaymentHandler(checkoutService, webhookService),
		jwtSecret:          jwtSecret,
	}

	s.setupRoutes()
	return s
}

// errorHandler maps service-level error kinds onto HTTP statuses before
// falling back to echo's default handling.
func errorHandler(e *echo.Echo) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			err = echo.NewHTTPError(apperr.HTTPStatus(appErr), appErr.Msg)
		}
		e.DefaultHTTPErrorHandler(err, c)
	}
}

func (s *Server) setupRoutes() {
	auth := appmiddleware.JWTAuth(s.jwtSecret)

	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// -------- users / auth --------
	users := api.Group("/users")
	users.POST("/register", s.userHandler.Register)
	users.POST("/login", s.userHandler.Login)
	users.GET("/me", s.userHandler.GetProfile, auth)
	users.PUT("/me", s.userHandler.UpdateProfile, auth)
	users.POST("/me/onboarding", s.userHandler.StartOnboarding, auth)
	users.GET("/me/onboarding/status", s.userHandler.GetAccountStatus, auth)

	// -------- characters --------
	characters := api.Group("/characters")
	characters.GET("", s.characterHandler.ListPublic)
	characters.GET("/:characterID", s.characterHandler.Get)
	characters.GET("/mine", s.characterHandler.ListMine, auth)
	characters.POST("", s.characterHandler.Create, auth)
	characters.PUT("/:characterID", s.characterHandler.Update, auth)
	characters.DELETE("/:characterID", s.characterHandler.Delete, auth)
	characters.POST("/:characterID/like", s.characterHandler.Like, auth)
	characters.DELETE("/:characterID/like", s.characterHandler.Unlike, auth)
	characters.POST("/generate-image", s.characterHandler.GenerateImage, auth)

	// -------- chat --------
	chat := api.Group("/chat", auth)
	chat.GET("", s.chatHandler.List)
	chat.GET("/:chatID", s.chatHandler.Get)
	chat.DELETE("/:chatID", s.chatHandler.Delete)
	chat.POST("/:characterID/messages", s.chatHandler.SendMessage)

	// -------- merchandise --------
	merch := api.Group("/merchandise")
	merch.GET("", s.merchandiseHandler.List)
	merch.GET("/mine", s.merchandiseHandler.ListMine, auth)
	merch.GET("/:merchandiseID", s.merchandiseHandler.Get)
	merch.POST("", s.merchandiseHandler.Create, auth)
	merch.PUT("/:merchandiseID", s.merchandiseHandler.Update, auth)
	merch.DELETE("/:merchandiseID", s.merchandiseHandler.Delete, auth)

	// -------- payments --------
	payments := api.Group("/payments")
	payments.POST("/shipping-rates", s.paymentHandler.GetShippingRates, auth)
	payments.POST("/checkout", s.paymentHandler.Checkout, auth)
	payments.POST("/checkout/:purchaseID/complete", s.paymentHandler.CompleteCheckout, auth)
	payments.GET("/purchases", s.paymentHandler.ListPurchases, auth)
	payments.GET("/purchases/:purchaseID", s.paymentHandler.GetPurchase, auth)

	// -------- webhooks --------
	payments.POST("/webhook/stripe", s.paymentHandler.StripeWebhook)
	s.echo.POST("/webhook/printful", s.paymentHandler.PrintfulWebhook)
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown() error {
	return s.echo.Close()
}

package dto

import "waifuhospital/internal/model"

// --- auth ---

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

type UpdateProfileRequest struct {
	Username       *string `json:"username"`
	Bio            *string `json:"bio"`
	ProfilePicture *string `json:"profilePicture"`
}

// --- characters ---

type CreateCharacterRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Personality string   `json:"personality"`
	Backstory   string   `json:"backstory"`
	Interests   []string `json:"interests"`
	Occupation  string   `json:"occupation"`
	Age         int      `json:"age"`
	ImageURL    string   `json:"imageUrl"`
	ArtStyle    string   `json:"artStyle"`
	GreedFactor int      `json:"greedFactor"`
	Public      bool     `json:"public"`
}

type UpdateCharacterRequest struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	Personality *string   `json:"personality"`
	Backstory   *string   `json:"backstory"`
	Interests   *[]string `json:"interests"`
	Occupation  *string   `json:"occupation"`
	Age         *int      `json:"age"`
	ImageURL    *string   `json:"imageUrl"`
	ArtStyle    *string   `json:"artStyle"`
	GreedFactor *int      `json:"greedFactor"`
	Public      *bool     `json:"public"`
}

type GenerateCharacterImageRequest struct {
	Prompt   string `json:"prompt"`
	ArtStyle string `json:"artStyle"`
}

type GenerateCharacterImageResponse struct {
	ImageURL string `json:"imageUrl"`
}

// --- chat ---

type SendMessageRequest struct {
	Content string `json:"content"`
}

type SendMessageResponse struct {
	UserMessage *model.Message `json:"userMessage"`
	AIMessage   *model.Message `json:"aiMessage"`
}

// AIChatRequest is the payload the backend forwards to the AI service.
type AIChatRequest struct {
	CharacterID string `json:"characterId"`
	Message     string `json:"message"`
}

type AIChatResponse struct {
	Reply    string `json:"reply"`
	Fallback bool   `json:"fallback"`
}

type AIImageRequest struct {
	Prompt   string `json:"prompt"`
	ArtStyle string `json:"artStyle"`
}

type AIImageResponse struct {
	ImageURL string `json:"imageUrl"`
	Fallback bool   `json:"fallback"`
}

// --- merchandise ---

type CreateMerchandiseRequest struct {
	CharacterID     string   `json:"characterId"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Category        string   `json:"category"`
	Price           float64  `json:"price"`
	ImageURL        string   `json:"imageUrl"`
	AvailableSizes  []string `json:"availableSizes"`
	AvailableColors []string `json:"availableColors"`
}

type UpdateMerchandiseRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Stock       *int     `json:"stock"`
	IsApproved  *bool    `json:"isApproved"`
}

// --- checkout ---

type CartItem struct {
	MerchandiseID string `json:"merchandiseId"`
	Quantity      int    `json:"quantity"`
	Size          string `json:"size"`
	Color         string `json:"color"`
}

type ShippingRatesRequest struct {
	Items   []CartItem    `json:"items"`
	Address model.Address `json:"address"`
}

type CheckoutRequest struct {
	Items          []CartItem    `json:"items"`
	Address        model.Address `json:"address"`
	ShippingMethod string        `json:"shippingMethod"`
	PaymentMethod  string        `json:"paymentMethod"`
}

// CheckoutQuote is the priced cart returned before payment confirmation.
type CheckoutQuote struct {
	PurchaseID   string            `json:"purchaseId"`
	Items        []QuoteItem       `json:"items"`
	Subtotal     float64           `json:"subtotal"`
	ShippingCost float64           `json:"shippingCost"`
	TotalAmount  float64           `json:"totalAmount"`
	ClientSecret string            `json:"clientSecret,omitempty"`
	Payouts      []QuoteCreatorCut `json:"payouts,omitempty"`
}

type QuoteItem struct {
	MerchandiseID  string  `json:"merchandiseId"`
	Name           string  `json:"name"`
	Quantity       int     `json:"quantity"`
	UnitPrice      float64 `json:"unitPrice"`
	ItemPrice      float64 `json:"itemPrice"`
	ProductionCost float64 `json:"productionCost"`
	PlatformFee    float64 `json:"platformFee"`
	CreatorRevenue float64 `json:"creatorRevenue"`
}

type QuoteCreatorCut struct {
	CreatorID string  `json:"creatorId"`
	Amount    float64 `json:"amount"`
}

// --- stripe connect ---

type OnboardingLinkResponse struct {
	URL string `json:"url"`
}

type AccountStatusResponse struct {
	AccountID      string `json:"accountId"`
	IsOnboarded    bool   `json:"isOnboarded"`
	PayoutsEnabled bool   `json:"payoutsEnabled"`
}

package model

import "time"

// Purchase lifecycle statuses.
const (
	PurchaseStatusPending    = "pending"
	PurchaseStatusProcessing = "processing"
	PurchaseStatusShipped    = "shipped"
	PurchaseStatusDelivered  = "delivered"
	PurchaseStatusCancelled  = "cancelled"
)

// Creator payout statuses.
const (
	PayoutStatusPending = "pending"
	PayoutStatusPaid    = "paid"
	PayoutStatusFailed  = "failed"
)

// Payment methods accepted at checkout.
const (
	PaymentMethodCreditCard = "credit_card"
	PaymentMethodCrypto     = "crypto"
	PaymentMethodPaypal     = "paypal"
)

type User struct {
	ID             string `gorm:"primaryKey;size:36" json:"id"`
	Username       string `gorm:"size:64;uniqueIndex;not null" json:"username"`
	Email          string `gorm:"size:128;uniqueIndex;not null" json:"email"`
	Password       string `gorm:"size:128;not null" json:"-"`
	ProfilePicture string `gorm:"size:512" json:"profilePicture"`
	Bio            string `gorm:"size:1024" json:"bio"`

	StripeConnect StripeConnect `gorm:"embedded;embeddedPrefix:stripe_" json:"stripeConnect"`
	Balance       Balance       `gorm:"embedded;embeddedPrefix:balance_" json:"balance"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StripeConnect tracks a creator's connected account with the payment gateway.
type StripeConnect struct {
	AccountID           string     `gorm:"size:64;index" json:"accountId"`
	IsOnboarded         bool       `json:"isOnboarded"`
	PayoutsEnabled      bool       `json:"payoutsEnabled"`
	OnboardingCompleted *time.Time `json:"onboardingCompleted,omitempty"`
	Country             string     `gorm:"size:2;default:US" json:"country"`
	DefaultCurrency     string     `gorm:"size:8;default:usd" json:"defaultCurrency"`
}

// Balance is a cached projection of the creator's payout rows. It is only
// moved by the checkout/payout flow, never recomputed from scratch.
type Balance struct {
	Available   float64   `json:"available"`
	Pending     float64   `json:"pending"`
	TotalEarned float64   `json:"totalEarned"`
	LastUpdated time.Time `json:"lastUpdated"`
}

type Character struct {
	ID          string   `gorm:"primaryKey;size:36" json:"id"`
	Name        string   `gorm:"size:128;not null" json:"name"`
	CreatorID   string   `gorm:"size:36;index;not null" json:"creator"`
	ImageURL    string   `gorm:"size:512" json:"imageUrl"`
	Style       string   `gorm:"size:32;default:anime" json:"style"`
	Description string   `gorm:"size:2048" json:"description"`
	Personality string   `gorm:"size:1024" json:"personality"`
	Background  string   `gorm:"size:2048" json:"background"`
	Interests   StrSlice `gorm:"type:text" json:"interests"`
	Occupation  string   `gorm:"size:128" json:"occupation"`
	Age         int      `json:"age"`
	GreedFactor int      `gorm:"default:0" json:"greedFactor"` // 0-5
	Public      bool     `gorm:"default:true" json:"public"`
	Likes       int      `gorm:"default:0" json:"likes"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CharacterLike struct {
	CharacterID string `gorm:"primaryKey;size:36"`
	UserID      string `gorm:"primaryKey;size:36"`
	CreatedAt   time.Time
}

type Chat struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	UserID      string    `gorm:"size:36;index:idx_chat_user_character,unique;not null" json:"user"`
	CharacterID string    `gorm:"size:36;index:idx_chat_user_character,unique;not null" json:"character"`
	Messages    []Message `gorm:"foreignKey:ChatID" json:"messages"`

	LastMessageAt time.Time `json:"lastMessageTimestamp"`
	CreatedAt     time.Time `json:"createdAt"`
}

type Message struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	ChatID    string    `gorm:"size:36;index;not null" json:"-"`
	Sender    string    `gorm:"size:16;not null" json:"sender"` // user, character
	Content   string    `gorm:"type:text;not null" json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type Merchandise struct {
	ID          string  `gorm:"primaryKey;size:36" json:"id"`
	Name        string  `gorm:"size:128;not null" json:"name"`
	Description string  `gorm:"size:2048" json:"description"`
	Price       float64 `gorm:"not null" json:"price"`
	ImageURL    string  `gorm:"size:512" json:"imageUrl"`
	CharacterID string  `gorm:"size:36;index;not null" json:"character"`
	CreatorID   string  `gorm:"size:36;index;not null" json:"creator"`
	Category    string  `gorm:"size:32;not null" json:"category"` // t-shirt, mug, poster, sticker, hoodie, hat, phonecase, other

	AvailableSizes  StrSlice `gorm:"type:text" json:"availableSizes"`
	AvailableColors StrSlice `gorm:"type:text" json:"availableColors"`
	Stock           int      `gorm:"default:100" json:"stock"`
	Sold            int      `gorm:"default:0" json:"sold"`

	ProductionCost        float64 `json:"productionCost"`
	CreatorRevenuePercent float64 `gorm:"default:80" json:"creatorRevenuePercent"`
	PlatformFeePercent    float64 `gorm:"default:20" json:"platformFeePercent"`

	PrintfulProductID  string               `gorm:"size:64" json:"printfulProductId"`
	PrintfulExternalID string               `gorm:"size:64;index" json:"printfulExternalId"`
	PrintfulVariants   []MerchandiseVariant `gorm:"foreignKey:MerchandiseID" json:"printfulVariants"`

	StripeConnectAccountID string `gorm:"size:64" json:"stripeConnectAccountId"`
	IsApproved             bool   `gorm:"default:false" json:"isApproved"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MerchandiseVariant is a fulfillment-provider variant known for one
// merchandise item, used to resolve size/color picks at checkout.
type MerchandiseVariant struct {
	ID            uint    `gorm:"primaryKey" json:"-"`
	MerchandiseID string  `gorm:"size:36;index;not null" json:"-"`
	VariantID     string  `gorm:"size:64;not null" json:"variantId"`
	ExternalID    string  `gorm:"size:64" json:"externalId"`
	RetailPrice   float64 `json:"retailPrice"`
	Size          string  `gorm:"size:16" json:"size"`
	Color         string  `gorm:"size:32" json:"color"`
}

type Purchase struct {
	ID     string `gorm:"primaryKey;size:36" json:"id"`
	UserID string `gorm:"size:36;index;not null" json:"user"`

	Items []PurchaseItem `gorm:"foreignKey:PurchaseID" json:"items"`

	Subtotal     float64 `json:"subtotal"`
	ShippingCost float64 `json:"shippingCost"`
	TaxAmount    float64 `json:"taxAmount"`
	TotalAmount  float64 `gorm:"not null" json:"totalAmount"`

	ShippingAddress Address `gorm:"embedded;embeddedPrefix:ship_" json:"shippingAddress"`

	PaymentMethod       string `gorm:"size:32;not null" json:"paymentMethod"`
	StripePaymentIntent string `gorm:"size:64;index" json:"stripePaymentIntent"`

	PrintfulOrderID        string `gorm:"size:64;index" json:"printfulOrderId"`
	PrintfulOrderStatus    string `gorm:"size:32" json:"printfulOrderStatus"`
	PrintfulShippingMethod string `gorm:"size:32" json:"printfulShippingMethod"`
	TrackingNumber         string `gorm:"size:64" json:"trackingNumber"`
	TrackingURL            string `gorm:"size:512" json:"trackingUrl"`

	IsPaid      bool       `json:"isPaid"`
	PaidAt      *time.Time `json:"paidAt,omitempty"`
	IsShipped   bool       `json:"isShipped"`
	ShippedAt   *time.Time `json:"shippedAt,omitempty"`
	IsDelivered bool       `json:"isDelivered"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
	Status      string     `gorm:"size:32;index;default:pending" json:"status"`

	CreatorPayouts []CreatorPayout `gorm:"foreignKey:PurchaseID" json:"creatorPayouts"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PurchaseItem snapshots one cart line at purchase time; Price is the unit
// price when the quote was made, not whatever the merchandise costs now.
type PurchaseItem struct {
	ID                uint    `gorm:"primaryKey" json:"-"`
	PurchaseID        string  `gorm:"size:36;index;not null" json:"-"`
	MerchandiseID     string  `gorm:"size:36;index;not null" json:"merchandise"`
	Quantity          int     `gorm:"not null" json:"quantity"`
	Size              string  `gorm:"size:16;default:N/A" json:"size"`
	Color             string  `gorm:"size:32" json:"color"`
	Price             float64 `gorm:"not null" json:"price"`
	PrintfulVariantID string  `gorm:"size:64" json:"printfulVariantId"`
	CreatorID         string  `gorm:"size:36;index" json:"creator"`
	CreatorRevenue    float64 `json:"creatorRevenue"`
	PlatformFee       float64 `json:"platformFee"`
	ProductionCost    float64 `json:"productionCost"`
}

type CreatorPayout struct {
	ID               uint       `gorm:"primaryKey" json:"-"`
	PurchaseID       string     `gorm:"size:36;index;not null" json:"-"`
	CreatorID        string     `gorm:"size:36;index;not null" json:"creator"`
	Amount           float64    `json:"amount"`
	Status           string     `gorm:"size:16;index;default:pending" json:"status"`
	StripeTransferID string     `gorm:"size:64;index" json:"stripeTransferId"`
	PaidAt           *time.Time `json:"paidAt,omitempty"`
}

type Address struct {
	FirstName  string `gorm:"size:64" json:"firstName"`
	LastName   string `gorm:"size:64" json:"lastName"`
	Street     string `gorm:"size:256" json:"street"`
	City       string `gorm:"size:128" json:"city"`
	State      string `gorm:"size:64" json:"state"`
	PostalCode string `gorm:"size:16" json:"postalCode"`
	Country    string `gorm:"size:2" json:"country"`
	Phone      string `gorm:"size:32" json:"phone"`
	Email      string `gorm:"size:128" json:"email"`
}

// WebhookEvent records processed gateway event IDs for duplicate suppression.
type WebhookEvent struct {
	EventID     string `gorm:"primaryKey;size:128;not null"`
	Provider    string `gorm:"size:16;index"`
	EventType   string `gorm:"size:64;index"`
	ProcessedAt time.Time
	CreatedAt   time.Time
}

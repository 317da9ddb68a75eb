package config

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	DatabaseURL string `env:"DATABASE_URL"`

	JWTSecret string `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`

	Stripe     Stripe     `envPrefix:"STRIPE_"`
	Printful   Printful   `envPrefix:"PRINTFUL_"`
	Cloudflare Cloudflare `envPrefix:"CLOUDFLARE_"`
	OpenAI     OpenAI     `envPrefix:"OPENAI_"`
	AIService  AIService  `envPrefix:"AI_SERVICE_"`
}

// Stripe is the payment gateway. An empty SecretKey selects the deterministic
// stub client at startup.
type Stripe struct {
	SecretKey     string `env:"SECRET_KEY"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`
	BaseAPIURL    string `env:"BASE_API_URL" envDefault:"https://api.stripe.com"`
}

// Printful is the fulfillment gateway. An empty APIKey selects the stub.
type Printful struct {
	APIKey     string `env:"API_KEY"`
	BaseAPIURL string `env:"BASE_API_URL" envDefault:"https://api.printful.com"`
}

// Cloudflare is the image hosting gateway. An empty APIToken selects the stub.
type Cloudflare struct {
	AccountID   string `env:"ACCOUNT_ID"`
	APIToken    string `env:"API_TOKEN"`
	AccountHash string `env:"ACCOUNT_HASH"`
	BaseAPIURL  string `env:"BASE_API_URL" envDefault:"https://api.cloudflare.com/client/v4"`
}

// OpenAI is the LLM gateway used by the AI service. Empty keys select the stub.
type OpenAI struct {
	ChatAPIKey  string `env:"CHAT_API_KEY"`
	ImageAPIKey string `env:"IMAGE_API_KEY"`
	BaseAPIURL  string `env:"BASE_API_URL" envDefault:"https://api.openai.com/v1"`
	ChatModel   string `env:"CHAT_MODEL" envDefault:"gpt-3.5-turbo"`
	ImageModel  string `env:"IMAGE_MODEL" envDefault:"dall-e-3"`
}

// AIService configures the secondary chat/image service and how it reaches
// the primary backend.
type AIService struct {
	Port            string `env:"PORT" envDefault:"5001"`
	URL             string `env:"URL" envDefault:"http://localhost:5001"`
	BackendURL      string `env:"BACKEND_URL" envDefault:"http://localhost:8080"`
	CacheTTLSeconds int    `env:"CACHE_TTL_SECONDS" envDefault:"300"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}

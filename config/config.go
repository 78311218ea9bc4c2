package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"

	notifications "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/notifications"
	payments "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/payments"
	services "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/services"
	utils "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/utils"
)

// Settings is everything read from the environment.
type Settings struct {
	Port    string `env:"PORT" envDefault:"8080"`
	GinMode string `env:"GIN_MODE" envDefault:"release"`

	MongoURI string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017/?replicaSet=rs0"`
	DBName   string `env:"DB_NAME" envDefault:"friends_gift"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	KafkaBrokers       []string `env:"KAFKA_BROKERS" envSeparator:","`
	PaymentsTopic      string   `env:"PAYMENTS_TOPIC" envDefault:"payments.signals"`
	PaymentsGroup      string   `env:"PAYMENTS_GROUP" envDefault:"event-funding"`
	NotificationsTopic string   `env:"NOTIFICATIONS_TOPIC" envDefault:"events.notifications"`

	JWTSecret     string `env:"JWT_SECRET,notEmpty"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`

	AllowPartialCheckout bool          `env:"ALLOW_PARTIAL_CHECKOUT" envDefault:"false"`
	CompletionClaimTTL   time.Duration `env:"COMPLETION_CLAIM_TTL" envDefault:"2m"`
	DedupeTTL            time.Duration `env:"DEDUPE_TTL" envDefault:"24h"`

	CORSOrigins  []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	OTELEndpoint string   `env:"OTEL_ENDPOINT"`

	ZeptoAPIURL string `env:"ZEPTO_API_URL"`
	ZeptoAPIKey string `env:"ZEPTO_API_KEY"`
	ZeptoFrom   string `env:"ZEPTO_FROM"`
	ZeptoToName string `env:"ZEPTO_TO_NAME" envDefault:"Friends Gift"`
	NotifyEmail string `env:"NOTIFY_EMAIL"`

	CloudinaryCloudName string `env:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryAPIKey    string `env:"CLOUDINARY_API_KEY"`
	CloudinaryAPISecret string `env:"CLOUDINARY_API_SECRET"`
	CloudinaryFolder    string `env:"CLOUDINARY_FOLDER" envDefault:"events"`
}

// Config is the settings plus the runtime handles controllers need.
type Config struct {
	Settings

	MongoClient *mongo.Client
	App         *services.App
	Inbox       notifications.InboxStore
	Images      utils.ImageStore
	Payments    *payments.Router
	Logger      *slog.Logger
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load .env: %w", err)
		}
		slog.Warn("no .env file found, using process environment")
	}

	cfg := &Config{}
	if err := env.Parse(&cfg.Settings); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func (s Settings) ServiceOptions(log *slog.Logger) services.Options {
	return services.Options{
		AllowPartialCheckout: s.AllowPartialCheckout,
		ClaimTTL:             s.CompletionClaimTTL,
		Logger:               log,
	}
}

func (s Settings) Mailer() *utils.Mailer {
	return &utils.Mailer{
		APIURL: s.ZeptoAPIURL,
		APIKey: s.ZeptoAPIKey,
		From:   s.ZeptoFrom,
		ToName: s.ZeptoToName,
	}
}

func (s Settings) CloudinaryEnabled() bool {
	return s.CloudinaryCloudName != "" && s.CloudinaryAPIKey != "" && s.CloudinaryAPISecret != ""
}

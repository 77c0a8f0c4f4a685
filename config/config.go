package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	StorageMemory   = "memory"
	StorageLocal    = "local"
	StoragePostgres = "postgres"
)

type Config struct {
	Port string `envconfig:"PORT" default:"3000"`

	BotToken    string `envconfig:"BOT_TOKEN"`
	BotAPIURL   string `envconfig:"BOT_API_URL" default:"https://api.telegram.org"`
	WebhookURL  string `envconfig:"WEBHOOK_URL"`
	AdminChatID string `envconfig:"ADMIN_CHAT_ID"`

	StorageBackend string `envconfig:"STORAGE_BACKEND" default:"memory"`
	StoragePath    string `envconfig:"STORAGE_PATH" default:"shop-data.json"`
	DatabaseURL    string `envconfig:"DATABASE_URL"`

	CartKey            string `envconfig:"CART_KEY" default:"telegram_shop_cart"`
	OrdersKey          string `envconfig:"ORDERS_KEY" default:"telegram_shop_orders"`
	UserPreferencesKey string `envconfig:"USER_PREFERENCES_KEY" default:"telegram_shop_preferences"`
	FavoritesKey       string `envconfig:"FAVORITES_KEY" default:"telegram_shop_favorites"`

	ProductsPerPage int      `envconfig:"PRODUCTS_PER_PAGE" default:"20"`
	MaxCartItems    int      `envconfig:"MAX_CART_ITEMS" default:"50"`
	PaymentMethods  []string `envconfig:"PAYMENT_METHODS" default:"card,cash"`
	Currency        string   `envconfig:"CURRENCY" default:"RUB"`

	Features

	StrictStatusTransitions bool          `envconfig:"STRICT_STATUS_TRANSITIONS" default:"false"`
	Timezone                string        `envconfig:"TIMEZONE" default:"Europe/Moscow"`
	RequestTimeout          time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
	LogLevel                string        `envconfig:"LOG_LEVEL" default:"info"`
}

// Features mirrors the storefront feature switches. Favorites and reviews
// are parsed but nothing is attached to them yet.
type Features struct {
	Search        bool `envconfig:"FEATURE_SEARCH" default:"true"`
	Categories    bool `envconfig:"FEATURE_CATEGORIES" default:"true"`
	Cart          bool `envconfig:"FEATURE_CART" default:"true"`
	Orders        bool `envconfig:"FEATURE_ORDERS" default:"true"`
	Favorites     bool `envconfig:"FEATURE_FAVORITES" default:"false"`
	Reviews       bool `envconfig:"FEATURE_REVIEWS" default:"false"`
	Notifications bool `envconfig:"FEATURE_NOTIFICATIONS" default:"true"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	c := &Config{}
	if err := envconfig.Process("", c); err != nil {
		return nil, errors.Wrap(err, "failed to parse env")
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	switch c.StorageBackend {
	case StorageMemory, StorageLocal:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres storage backend")
		}
	default:
		return errors.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "invalid LOG_LEVEL")
	}
	return nil
}

// Location returns the zone used for timestamps in chat messages,
// falling back to UTC when the zone database does not know Timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.WithError(err).WithField("timezone", c.Timezone).Warn("unknown timezone, using UTC")
		return time.UTC
	}
	return loc
}

// PaymentAllowed reports whether method is on the allow-list. An empty list allows anything.
func (c *Config) PaymentAllowed(method string) bool {
	if len(c.PaymentMethods) == 0 {
		return true
	}
	for _, m := range c.PaymentMethods {
		if strings.TrimSpace(m) == method {
			return true
		}
	}
	return false
}

func (c *Config) WebhookEndpoint() string {
	return strings.TrimRight(c.WebhookURL, "/") + "/webhook"
}

func (c *Config) ShopURL() string {
	return strings.TrimRight(c.WebhookURL, "/") + "/shop"
}

// ConfigureLogging applies LogLevel and picks the formatter.
func (c *Config) ConfigureLogging(json bool) {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if json {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"chefbot/internal/model"
)

type Config struct {
	// Telegram
	BotToken string
	AdminIDs []int64

	// Database
	DBUser  string
	DBPass  string
	DBHost  string
	DBPort  string
	DBName  string
	SSLMode string

	// Redis (hot balance cache)
	RedisHost string
	RedisPort string

	// NATS (internal event bus)
	NatsHost string
	NatsPort string

	// HTTP webhook server
	ApiPort string

	// Generation backend
	GenAPIKey   string
	GenFolderID string
	GenModel    string

	// Payment provider
	ShopID        string
	ShopSecretKey string
	ReturnURL     string
	PaymentsMock  bool
	Currency      string

	// Metering
	RateLimitSeconds   int
	MaxPromptLength    int
	FreeRecipesOnStart int
	GenTimeoutSeconds  int
}

// New loads and validates configuration from environment variables.
// The payment provider falls back to mock mode when no shop credentials are
// configured (or CHEFBOT_PAYMENTS_MOCK=true), so the bot stays usable without
// a merchant account.
func New() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		BotToken: os.Getenv("CHEFBOT_TELEGRAM_TOKEN"),

		DBUser:  os.Getenv("CHEFBOT_POSTGRES_USER"),
		DBPass:  os.Getenv("CHEFBOT_POSTGRES_PASSWORD"),
		DBHost:  os.Getenv("CHEFBOT_POSTGRES_HOST"),
		DBPort:  os.Getenv("CHEFBOT_POSTGRES_PORT"),
		DBName:  os.Getenv("CHEFBOT_POSTGRES_DB"),
		SSLMode: os.Getenv("CHEFBOT_POSTGRES_SSLMODE"),

		RedisHost: os.Getenv("CHEFBOT_REDIS_HOST"),
		RedisPort: os.Getenv("CHEFBOT_REDIS_PORT"),

		NatsHost: os.Getenv("CHEFBOT_NATS_HOST"),
		NatsPort: os.Getenv("CHEFBOT_NATS_PORT"),

		ApiPort: getEnvString("CHEFBOT_API_PORT", "8080"),

		GenAPIKey:   os.Getenv("CHEFBOT_YANDEX_API_KEY"),
		GenFolderID: os.Getenv("CHEFBOT_YANDEX_FOLDER_ID"),
		GenModel:    getEnvString("CHEFBOT_YANDEX_MODEL", "yandexgpt-lite"),

		ShopID:        os.Getenv("CHEFBOT_YOOKASSA_SHOP_ID"),
		ShopSecretKey: os.Getenv("CHEFBOT_YOOKASSA_SECRET_KEY"),
		ReturnURL:     getEnvString("CHEFBOT_YOOKASSA_RETURN_URL", "https://t.me"),
		PaymentsMock:  os.Getenv("CHEFBOT_PAYMENTS_MOCK") == "true",
		Currency:      getEnvString("CHEFBOT_CURRENCY", "RUB"),

		RateLimitSeconds:   getEnvInt("CHEFBOT_RATE_LIMIT_SECONDS", 30),
		MaxPromptLength:    getEnvInt("CHEFBOT_MAX_PROMPT_LENGTH", 500),
		FreeRecipesOnStart: getEnvInt("CHEFBOT_FREE_RECIPES", 3),
		GenTimeoutSeconds:  getEnvInt("CHEFBOT_GENERATION_TIMEOUT_SECONDS", 60),
	}

	ids, err := parseAdminIDs(os.Getenv("CHEFBOT_ADMIN_IDS"))
	if err != nil {
		return nil, err
	}
	cfg.AdminIDs = ids

	// Required: telegram
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("missing required env: CHEFBOT_TELEGRAM_TOKEN")
	}

	// Required: database
	if cfg.DBUser == "" || cfg.DBHost == "" || cfg.DBName == "" || cfg.SSLMode == "" {
		return nil, fmt.Errorf("missing required env for database: CHEFBOT_POSTGRES_USER/HOST/DB/SSLMODE")
	}

	// Required: redis
	if cfg.RedisHost == "" || cfg.RedisPort == "" {
		return nil, fmt.Errorf("missing required env for redis: CHEFBOT_REDIS_HOST/PORT")
	}

	// Required: nats
	if cfg.NatsHost == "" || cfg.NatsPort == "" {
		return nil, fmt.Errorf("missing required env for nats: CHEFBOT_NATS_HOST/PORT")
	}

	// Required: generation backend
	if cfg.GenAPIKey == "" || cfg.GenFolderID == "" {
		return nil, fmt.Errorf("missing required env for generation: CHEFBOT_YANDEX_API_KEY/FOLDER_ID")
	}

	// Payments: without real credentials fall back to mock mode instead of failing.
	if cfg.ShopID == "" || cfg.ShopSecretKey == "" || cfg.ShopID == "test_shop" {
		cfg.PaymentsMock = true
	}

	return cfg, nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPass, c.DBHost, c.DBPort, c.DBName, c.SSLMode)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

func (c *Config) NatsAddr() string {
	return fmt.Sprintf("nats://%s:%s", c.NatsHost, c.NatsPort)
}

func (c *Config) ApiAddr() string {
	return ":" + c.ApiPort
}

// IsAdmin reports whether the given Telegram user may run /admin.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Packages returns the purchasable catalog, cheapest first.
// Prices are whole currency units; one recipe token buys one generation.
func (c *Config) Packages() []model.Package {
	return []model.Package{
		{Key: "starter", Name: "🥄 Starter", Price: 99, Recipes: 5},
		{Key: "chef", Name: "🍳 Chef", Price: 199, Recipes: 10},
		{Key: "pro", Name: "👨‍🍳 Pro Chef", Price: 499, Recipes: 30},
	}
}

func parseAdminIDs(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid CHEFBOT_ADMIN_IDS entry %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var intVal int
	if _, err := fmt.Sscanf(val, "%d", &intVal); err != nil {
		return defaultVal
	}
	return intVal
}

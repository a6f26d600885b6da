package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	Env      string
	LogLevel string
	// Chatbot backend
	APIBaseURL   string
	RestaurantID int
	HTTPTimeout  time.Duration
	// Session identity storage
	SessionBackend string
	SessionFile    string
	SessionKey     string
	RedisURL       string
	DatabaseURL    string
	RunMigrations  bool
	// Local checkout host
	CheckoutAddr string
	// Widget profile; env quick items override the profile list
	ProfilePath string
	QuickItems  []string
	Profile     Profile
}

// Profile is the optional YAML file carrying widget copy and checkout
// display options.
type Profile struct {
	Greeting   string   `yaml:"greeting"`
	QuickItems []string `yaml:"quick_items"`
	Checkout   struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		ThemeColor  string `yaml:"theme_color"`
	} `yaml:"checkout"`
}

const defaultGreeting = "Hi! I am your restaurant assistant. You can ask for the menu, tap quick buttons, add items, view cart, and confirm your order here."

// Load reads the environment (and .env files) into a Config. envFiles are
// passed to godotenv; with none given it loads ./.env if present.
func Load(envFiles ...string) Config {
	_ = godotenv.Load(envFiles...)
	cfg := Config{
		Env:            getEnvDefault("ENV", "development"),
		LogLevel:       getEnvDefault("LOG_LEVEL", "info"),
		APIBaseURL:     strings.TrimRight(os.Getenv("ORDERBOT_API_BASE_URL"), "/"),
		RestaurantID:   getEnvIntDefault("ORDERBOT_RESTAURANT_ID", 0),
		HTTPTimeout:    getEnvDurationDefault("ORDERBOT_HTTP_TIMEOUT", 0),
		SessionBackend: strings.ToLower(getEnvDefault("ORDERBOT_SESSION_BACKEND", BackendFile)),
		SessionFile:    getEnvDefault("ORDERBOT_SESSION_FILE", "data/rb_chat_session_id.json"),
		SessionKey:     getEnvDefault("ORDERBOT_SESSION_KEY", "rb_chat_session_id"),
		RedisURL:       getEnvDefault("REDIS_URL", "redis://localhost:6379"),
		DatabaseURL:    os.Getenv("DB_URL"),
		RunMigrations:  getEnvBoolDefault("ORDERBOT_RUN_MIGRATIONS", true),
		CheckoutAddr:   getEnvDefault("ORDERBOT_CHECKOUT_ADDR", "127.0.0.1:8765"),
		ProfilePath:    getEnvDefault("ORDERBOT_PROFILE", "orderbot.yaml"),
		QuickItems:     getEnvListDefault("ORDERBOT_QUICK_ITEMS", nil),
	}
	p, err := LoadProfile(cfg.ProfilePath)
	if err != nil {
		log.Printf("warning: ignoring profile %s: %v", cfg.ProfilePath, err)
	}
	cfg.Profile = p
	if len(cfg.QuickItems) == 0 {
		cfg.QuickItems = p.QuickItems
	}
	return cfg
}

// LoadProfile parses the YAML profile at path. A missing file yields the
// default profile and no error.
func LoadProfile(path string) (Profile, error) {
	p := Profile{Greeting: defaultGreeting}
	p.Checkout.Name = "Restaurant Order"
	p.Checkout.Description = "Order Payment"
	p.Checkout.ThemeColor = "#3399cc"
	if path == "" {
		return p, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return p, nil
		}
		return p, err
	}
	if err := yaml.Unmarshal(b, &p); err != nil {
		return p, fmt.Errorf("parse profile: %w", err)
	}
	if strings.TrimSpace(p.Greeting) == "" {
		p.Greeting = defaultGreeting
	}
	return p, nil
}

// Validate reports configuration that would make the client unusable.
func (c Config) Validate() error {
	var errs []error
	if c.APIBaseURL == "" {
		errs = append(errs, errors.New("ORDERBOT_API_BASE_URL is required"))
	}
	if c.RestaurantID <= 0 {
		errs = append(errs, errors.New("ORDERBOT_RESTAURANT_ID must be a positive integer"))
	}
	switch c.SessionBackend {
	case BackendFile, BackendMemory, BackendRedis:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DB_URL is required for the postgres session backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown session backend %q", c.SessionBackend))
	}
	return errors.Join(errs...)
}

func (c Config) IsProduction() bool { return c.Env == "production" }

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvListDefault(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			s := strings.TrimSpace(p)
			if s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}

func getEnvBoolDefault(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getEnvIntDefault(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("warning: %s=%q is not an integer, using %d", key, v, def)
	}
	return def
}

func getEnvDurationDefault(key string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("warning: %s=%q is not a duration, using %s", key, v, def)
	}
	return def
}

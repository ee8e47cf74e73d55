package params

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Book struct {
	MinPrice     int64
	MaxPrice     int64 // exclusive
	Sparse       bool
	MaxOrderSize int64 // 0 means unlimited
	Instruments  []string
}

type Accounts struct {
	Traders      []string
	InitialCents int64
}

type Node struct {
	DataDir    string // empty keeps everything in memory
	LogFile    string
	LogLevel   string
	OrdersCSV  string
	APIAddr    string // empty disables the API server
	CORSOrigin []string
}

type Config struct {
	Book     Book
	Accounts Accounts
	Node     Node
}

func Default() Config {
	return Config{
		Book: Book{
			MinPrice:    0,
			MaxPrice:    11,
			Instruments: []string{"AAPL", "JNJ"},
		},
		Accounts: Accounts{
			Traders: []string{"Columbia_A", "Columbia_B"},
		},
		Node: Node{
			LogLevel:   "info",
			OrdersCSV:  "test_orders.csv",
			CORSOrigin: []string{"http://localhost:3000", "http://localhost:3001"},
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) (Config, error) {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	var err error
	if cfg.Book.MinPrice, err = getInt("BOOK_MIN_PRICE", cfg.Book.MinPrice); err != nil {
		return cfg, err
	}
	if cfg.Book.MaxPrice, err = getInt("BOOK_MAX_PRICE", cfg.Book.MaxPrice); err != nil {
		return cfg, err
	}
	if cfg.Book.MaxOrderSize, err = getInt("MAX_ORDER_SIZE", cfg.Book.MaxOrderSize); err != nil {
		return cfg, err
	}
	if cfg.Accounts.InitialCents, err = getInt("TRADER_INITIAL_CENTS", cfg.Accounts.InitialCents); err != nil {
		return cfg, err
	}

	switch ladder := strings.ToLower(getEnv("BOOK_LADDER", "dense")); ladder {
	case "dense":
		cfg.Book.Sparse = false
	case "sparse":
		cfg.Book.Sparse = true
	default:
		return cfg, fmt.Errorf("BOOK_LADDER must be dense or sparse, got %q", ladder)
	}

	cfg.Book.Instruments = getList("INSTRUMENTS", cfg.Book.Instruments)
	cfg.Accounts.Traders = getList("TRADERS", cfg.Accounts.Traders)
	cfg.Node.CORSOrigin = getList("CORS_ORIGINS", cfg.Node.CORSOrigin)

	cfg.Node.DataDir = getEnv("DATA_DIR", cfg.Node.DataDir)
	cfg.Node.LogFile = getEnv("LOG_FILE", cfg.Node.LogFile)
	cfg.Node.LogLevel = getEnv("LOG_LEVEL", cfg.Node.LogLevel)
	cfg.Node.OrdersCSV = getEnv("ORDERS_CSV", cfg.Node.OrdersCSV)
	cfg.Node.APIAddr = getEnv("API_ADDR", cfg.Node.APIAddr)

	return cfg, cfg.Validate()
}

// Validate checks the book and account settings.
func (c Config) Validate() error {
	if c.Book.MinPrice < 0 {
		return fmt.Errorf("BOOK_MIN_PRICE cannot be negative: %d", c.Book.MinPrice)
	}
	if c.Book.MaxPrice <= c.Book.MinPrice {
		return fmt.Errorf("BOOK_MAX_PRICE %d must exceed BOOK_MIN_PRICE %d", c.Book.MaxPrice, c.Book.MinPrice)
	}
	if c.Book.MaxOrderSize < 0 {
		return fmt.Errorf("MAX_ORDER_SIZE cannot be negative: %d", c.Book.MaxOrderSize)
	}
	if len(c.Book.Instruments) == 0 {
		return fmt.Errorf("INSTRUMENTS cannot be empty")
	}
	return nil
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// getList splits a comma-separated variable, dropping empty items.
func getList(key string, defaultValue []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

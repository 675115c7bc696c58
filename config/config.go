package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings consumed by the tracker.
type Config struct {
	Port             string
	MongoURI         string
	Symbol           string
	BinanceAPIKey    string
	BinanceAPISecret string
	HDPRMAWindow     int
	HDPRThreshold    float64
	Environment      string
}

var AppConfig *Config

// LoadConfig loads environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Port:             getEnv("PORT", "8080"),
		MongoURI:         getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		Symbol:           getEnv("SYMBOL", "BTC-USDT"),
		BinanceAPIKey:    getEnv("BINANCE_API_KEY", ""),
		BinanceAPISecret: getEnv("BINANCE_API_SECRET", ""),
		HDPRMAWindow:     getEnvInt("HDPR_MA_WINDOW", 50),
		HDPRThreshold:    getEnvFloat("HDPR_THRESHOLD", 3.0),
		Environment:      getEnv("ENVIRONMENT", "development"),
	}

	AppConfig = config
	return config, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid value for %s: %q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// getEnvFloat gets a float environment variable or returns a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Printf("Invalid value for %s: %q, using default %g", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

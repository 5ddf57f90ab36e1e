package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	OpenAIAPIKey     string
	WeaviateURL      string
	WeaviateAdminKey string
	WeaviateUserKey  string
	DatabaseURL      string
	HTTPPort         string
	LogLevel         string
	JWTSecret        string
	DocumentsDir     string
	PromptsDir       string

	CORSAllowedOrigins []string
	AllowedHosts       []string
}

var AppConfig Config

func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = Config{
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		WeaviateURL:      getEnv("WEAVIATE_URL", "http://localhost:8080"),
		WeaviateAdminKey: getEnv("WEAVIATE_ADMIN_KEY", ""),
		WeaviateUserKey:  getEnv("WEAVIATE_USER_KEY", ""),
		DatabaseURL:      getEnv("DATABASE_URL", "intima_backend.db"),
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		DocumentsDir:     getEnv("DOCUMENTS_DIR", "documents"),
		PromptsDir:       getEnv("PROMPTS_DIR", "prompts"),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", "*"),
		AllowedHosts:       getEnvAsList("ALLOWED_HOSTS", ""),
	}

	if AppConfig.OpenAIAPIKey == "" {
		log.Fatal("OPENAI_API_KEY environment variable is required")
	}

	if AppConfig.JWTSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated environment variable, dropping empty
// entries so a trailing comma or an unset variable yields a clean slice.
func getEnvAsList(key string, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	parts := strings.Split(raw, ",")
	var values []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}

package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config representa a configuração do serviço
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Inngest   InngestConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
	Email     EmailConfig
	Insurer   InsurerConfig
	Crypto    CryptoConfig
	Storage   StorageConfig
}

// ServerConfig representa a configuração do servidor HTTP
type ServerConfig struct {
	Port    string
	Host    string
	Env     string
	BaseURL string
}

// DatabaseConfig representa a configuração do banco de dados
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig representa a configuração do Redis
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// InngestConfig representa a configuração do Inngest
type InngestConfig struct {
	EventKey      string
	SigningKey    string
	SigningSecret string
	AppID         string
	Dev           bool
}

// RateLimitConfig representa a configuração de rate limiting
type RateLimitConfig struct {
	SubmitPerMin int
	Burst        int
}

// LoggingConfig representa a configuração de logging
type LoggingConfig struct {
	Level  string
	Format string
}

// EmailConfig representa a configuração de email
type EmailConfig struct {
	ResendAPIKey string
	FromAddress  string
}

// InsurerConfig representa os defaults de envio ao webservice das operadoras
type InsurerConfig struct {
	SOAPAction  string
	Timeout     time.Duration
	MaxRetries  int
	TISSVersion string
	AllowHTTP   bool
}

// CryptoConfig representa a configuração da chave de cifragem do cofre
type CryptoConfig struct {
	VaultKey string
}

// StorageConfig representa a configuração do arquivo de documentos (S3)
type StorageConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
}

// Load carrega a configuração a partir de variáveis de ambiente
func Load() (*Config, error) {
	// Carregar arquivo .env se existir
	if err := godotenv.Load(); err != nil {
		// Não é crítico se o arquivo .env não existe
	}

	config := &Config{
		Server: ServerConfig{
			Port:    getEnv("SERVER_PORT", "8082"),
			Host:    getEnv("SERVER_HOST", "0.0.0.0"),
			Env:     getEnv("SERVER_ENV", "development"),
			BaseURL: getEnv("SERVER_BASE_URL", "http://localhost:8082"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("PGHOST", "localhost"),
			Port:     getEnv("PGPORT", "5432"),
			User:     getEnv("PGUSER", "postgres"),
			Password: getEnv("PGPASSWORD", "postgres"),
			Name:     getEnv("PGDATABASE", "tiss"),
			SSLMode:  getEnv("DB_SSLMODE", "require"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Inngest: InngestConfig{
			EventKey:      getEnv("INNGEST_EVENT_KEY", ""),
			SigningKey:    getEnv("INNGEST_SIGNING_KEY", ""),
			SigningSecret: getEnv("INNGEST_SIGNING_SECRET", ""),
			AppID:         getEnv("INNGEST_APP_ID", "tiss-service"),
			Dev:           getEnvAsBool("INNGEST_DEV", true),
		},
		RateLimit: RateLimitConfig{
			SubmitPerMin: getEnvAsInt("RATE_LIMIT_SUBMIT_PER_MIN", 30),
			Burst:        getEnvAsInt("RATE_LIMIT_BURST", 10),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Email: EmailConfig{
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			FromAddress:  getEnv("EMAIL_FROM", "onboarding@resend.dev"),
		},
		Insurer: InsurerConfig{
			SOAPAction:  getEnv("TISS_SOAP_ACTION", "http://www.ans.gov.br/tiss/ws/tipos/envioLoteGuias"),
			Timeout:     getEnvAsDuration("TISS_TIMEOUT", 30*time.Second),
			MaxRetries:  getEnvAsInt("TISS_MAX_RETRIES", 5),
			TISSVersion: getEnv("TISS_VERSION", "4.01.00"),
			AllowHTTP:   getEnvAsBool("TISS_ALLOW_HTTP", false),
		},
		Crypto: CryptoConfig{
			VaultKey: getEnv("VAULT_ENCRYPTION_KEY", ""),
		},
		Storage: StorageConfig{
			Endpoint:        getEnv("STORAGE_ENDPOINT", ""),
			Region:          getEnv("STORAGE_REGION", "us-east-1"),
			AccessKeyID:     getEnv("STORAGE_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("STORAGE_SECRET_ACCESS_KEY", ""),
			Bucket:          getEnv("STORAGE_BUCKET", "tiss-documents"),
		},
	}

	return config, nil
}

// getEnv obtém uma variável de ambiente ou retorna um valor padrão
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt obtém uma variável de ambiente como inteiro
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool obtém uma variável de ambiente como booleano
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration obtém uma variável de ambiente como duração
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// IsDevelopment retorna true se o ambiente é de desenvolvimento
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction retorna true se o ambiente é de produção
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// GetDSN retorna a cadeia de conexão ao banco de dados
func (c *Config) GetDSN() string {
	return "host=" + c.Database.Host +
		" port=" + c.Database.Port +
		" user=" + c.Database.User +
		" password=" + c.Database.Password +
		" dbname=" + c.Database.Name +
		" sslmode=" + c.Database.SSLMode
}

// GetRedisAddr retorna o endereço do Redis
func (c *Config) GetRedisAddr() string {
	return c.Redis.Host + ":" + c.Redis.Port
}

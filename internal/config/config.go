package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"PetAlertAPI/internal/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NATS     NATSConfig
	MQTT     MQTTConfig
	SMTP     SMTPConfig
	Alerting AlertingConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	Environment     string
	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxHeaderBytes  int
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// RedisConfig is optional. With an empty Addr the trigger log stays in Postgres.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	KeyPrefix   string
	DialTimeout time.Duration
}

type NATSConfig struct {
	URL              string
	DetectSubject    string
	TriggeredSubject string
	RequestTimeout   time.Duration
}

// MQTTConfig is optional. With an empty Broker push delivery is disabled.
type MQTTConfig struct {
	Broker          string
	Port            int
	ClientID        string
	Username        string
	Password        string
	PushTopicPrefix string
	QoS             byte
	RetainMessages  bool
	KeepAlive       time.Duration
	ConnectTimeout  time.Duration
	AutoReconnect   bool
}

// SMTPConfig is optional. With an empty Host email delivery is disabled.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type AlertingConfig struct {
	SweepEnabled     bool
	SweepInterval    time.Duration
	SweepWorkers     int
	PairTimeout      time.Duration
	DetectTimeout    time.Duration
	SendTimeout      time.Duration
	DefaultRulesPath string
}

type SecurityConfig struct {
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	RateLimitPerMinute int
	EnableRateLimit    bool
}

type LoggingConfig struct {
	Level      logger.Level
	Mode       logger.Mode
	FilePath   string
	UseColors  bool
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

var requiredEnvVars = []string{
	"DB_HOST",
	"DB_PORT",
	"DB_USER",
	"DB_PASSWORD",
	"DB_NAME",
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	if err := validateRequired(); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server:   loadServerConfig(),
		Database: loadDatabaseConfig(),
		Redis:    loadRedisConfig(),
		NATS:     loadNATSConfig(),
		MQTT:     loadMQTTConfig(),
		SMTP:     loadSMTPConfig(),
		Alerting: loadAlertingConfig(),
		Security: loadSecurityConfig(),
		Logging:  loadLoggingConfig(),
	}

	return cfg, nil
}

func validateRequired() error {
	var missing []string

	for _, key := range requiredEnvVars {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	return nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("SERVER_HOST", "0.0.0.0"),
		Port:            getEnvAsInt("SERVER_PORT", 8080),
		Environment:     getEnv("ENVIRONMENT", "development"),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", "15s"),
		ReadTimeout:     getEnvAsDuration("READ_TIMEOUT", "10s"),
		WriteTimeout:    getEnvAsDuration("WRITE_TIMEOUT", "60s"),
		MaxHeaderBytes:  getEnvAsInt("MAX_HEADER_BYTES", 1048576),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "petalert"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "petalert"),
		SSLMode:         getEnv("DB_SSL_MODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", "5m"),
		ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", "5m"),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:        getEnv("REDIS_ADDR", ""),
		Password:    getEnv("REDIS_PASSWORD", ""),
		DB:          getEnvAsInt("REDIS_DB", 0),
		KeyPrefix:   getEnv("REDIS_KEY_PREFIX", "petalert"),
		DialTimeout: getEnvAsDuration("REDIS_DIAL_TIMEOUT", "5s"),
	}
}

func loadNATSConfig() NATSConfig {
	return NATSConfig{
		URL:              getEnv("NATS_URL", "nats://localhost:4222"),
		DetectSubject:    getEnv("NATS_DETECT_SUBJECT", "health.anomalies.detect"),
		TriggeredSubject: getEnv("NATS_TRIGGERED_SUBJECT", "alerts.triggered"),
		RequestTimeout:   getEnvAsDuration("NATS_REQUEST_TIMEOUT", "10s"),
	}
}

func loadMQTTConfig() MQTTConfig {
	return MQTTConfig{
		Broker:          getEnv("MQTT_BROKER", ""),
		Port:            getEnvAsInt("MQTT_PORT", 1883),
		ClientID:        getEnv("MQTT_CLIENT_ID", "petalert-push"),
		Username:        getEnv("MQTT_USERNAME", ""),
		Password:        getEnv("MQTT_PASSWORD", ""),
		PushTopicPrefix: getEnv("MQTT_PUSH_TOPIC_PREFIX", "petalert/push"),
		QoS:             byte(getEnvAsInt("MQTT_QOS", 1)),
		RetainMessages:  getEnvAsBool("MQTT_RETAIN", false),
		KeepAlive:       getEnvAsDuration("MQTT_KEEP_ALIVE", "60s"),
		ConnectTimeout:  getEnvAsDuration("MQTT_CONNECT_TIMEOUT", "10s"),
		AutoReconnect:   getEnvAsBool("MQTT_AUTO_RECONNECT", true),
	}
}

func loadSMTPConfig() SMTPConfig {
	return SMTPConfig{
		Host:     getEnv("SMTP_HOST", ""),
		Port:     getEnvAsInt("SMTP_PORT", 587),
		Username: getEnv("SMTP_USERNAME", ""),
		Password: getEnv("SMTP_PASSWORD", ""),
		From:     getEnv("SMTP_FROM", "alerts@petalert.local"),
	}
}

func loadAlertingConfig() AlertingConfig {
	return AlertingConfig{
		SweepEnabled:     getEnvAsBool("ALERT_SWEEP_ENABLED", true),
		SweepInterval:    getEnvAsDuration("ALERT_SWEEP_INTERVAL", "1h"),
		SweepWorkers:     getEnvAsInt("ALERT_SWEEP_WORKERS", 4),
		PairTimeout:      getEnvAsDuration("ALERT_PAIR_TIMEOUT", "2m"),
		DetectTimeout:    getEnvAsDuration("ALERT_DETECT_TIMEOUT", "30s"),
		SendTimeout:      getEnvAsDuration("ALERT_SEND_TIMEOUT", "10s"),
		DefaultRulesPath: getEnv("ALERT_DEFAULT_RULES_PATH", ""),
	}
}

func loadSecurityConfig() SecurityConfig {
	origins := getEnv("CORS_ALLOWED_ORIGINS", "*")
	methods := getEnv("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS")

	return SecurityConfig{
		CORSAllowedOrigins: strings.Split(origins, ","),
		CORSAllowedMethods: strings.Split(methods, ","),
		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 100),
		EnableRateLimit:    getEnvAsBool("ENABLE_RATE_LIMIT", true),
	}
}

func loadLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:      logger.ParseLevel(getEnv("LOG_LEVEL", "info")),
		Mode:       logger.ParseMode(getEnv("LOG_MODE", "normal")),
		FilePath:   getEnv("LOG_FILE_PATH", ""),
		UseColors:  getEnvAsBool("LOG_USE_COLORS", true),
		MaxSizeMB:  getEnvAsInt("LOG_MAX_SIZE_MB", 10),
		MaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 3),
		MaxAgeDays: getEnvAsInt("LOG_MAX_AGE_DAYS", 7),
		Compress:   getEnvAsBool("LOG_COMPRESS", true),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

func (c *Config) GetMQTTBroker() string {
	return fmt.Sprintf("tcp://%s:%d", c.MQTT.Broker, c.MQTT.Port)
}

func (c *Config) PushEnabled() bool {
	return c.MQTT.Broker != ""
}

func (c *Config) EmailEnabled() bool {
	return c.SMTP.Host != ""
}

func (c *Config) Validate() error {
	var errors []string

	if c.Database.Password == "" {
		errors = append(errors, "DB_PASSWORD cannot be empty")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		errors = append(errors, "DB_PORT must be between 1 and 65535")
	}

	if c.PushEnabled() && (c.MQTT.Port < 1 || c.MQTT.Port > 65535) {
		errors = append(errors, "MQTT_PORT must be between 1 and 65535")
	}

	if c.EmailEnabled() && (c.SMTP.Port < 1 || c.SMTP.Port > 65535) {
		errors = append(errors, "SMTP_PORT must be between 1 and 65535")
	}

	if c.NATS.URL == "" {
		errors = append(errors, "NATS_URL cannot be empty")
	}

	if c.Alerting.SweepWorkers < 1 {
		errors = append(errors, "ALERT_SWEEP_WORKERS must be at least 1")
	}

	if c.Alerting.SweepEnabled && c.Alerting.SweepInterval <= 0 {
		errors = append(errors, "ALERT_SWEEP_INTERVAL must be positive")
	}

	for name, d := range map[string]time.Duration{
		"ALERT_PAIR_TIMEOUT":   c.Alerting.PairTimeout,
		"ALERT_DETECT_TIMEOUT": c.Alerting.DetectTimeout,
		"ALERT_SEND_TIMEOUT":   c.Alerting.SendTimeout,
	} {
		if d <= 0 {
			errors = append(errors, name+" must be positive")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

func (c *Config) Print() {
	fmt.Println("╔══════════════════════════════════════════════════════════╗")
	fmt.Println("║              Pet Alert - Configuration                   ║")
	fmt.Println("╚══════════════════════════════════════════════════════════╝")
	fmt.Printf("Environment:     %s\n", c.Server.Environment)
	fmt.Printf("Server:          %s:%d\n", c.Server.Host, c.Server.Port)
	fmt.Printf("Database:        %s:%d/%s\n", c.Database.Host, c.Database.Port, c.Database.Database)
	fmt.Printf("NATS:            %s (%s)\n", c.NATS.URL, c.NATS.DetectSubject)
	fmt.Printf("Redis:           %s\n", orDisabled(c.Redis.Addr))
	if c.PushEnabled() {
		fmt.Printf("MQTT Push:       %s\n", c.GetMQTTBroker())
	} else {
		fmt.Printf("MQTT Push:       %s\n", orDisabled(""))
	}
	fmt.Printf("SMTP:            %s\n", orDisabled(c.SMTP.Host))
	fmt.Printf("Sweep:           every %s, %d workers\n", c.Alerting.SweepInterval, c.Alerting.SweepWorkers)
	fmt.Println("──────────────────────────────────────────────────────────")
}

func orDisabled(s string) string {
	if s == "" {
		return "disabled"
	}
	return s
}

package config

import (
	"flag"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// EnvProduction — значение APP_ENV для боевого окружения.
const EnvProduction = "production"

type Config struct {
	// HTTP и хранилище
	DatabaseDSN   string `env:"DATABASE_URI"`
	AuthSecret    string `env:"AUTH_SECRET"`
	BaseURL       string `env:"BASE_URL"`
	EnableHTTPS   bool   `env:"ENABLE_HTTPS"`
	AppEnv        string `env:"APP_ENV"`
	AllowedOrigin string `env:"ALLOWED_ORIGIN"`

	// ServerURL — внешний адрес API, вычисляется из BaseURL и EnableHTTPS.
	ServerURL string `env:"-"`

	// Платёжный шлюз
	RazorpayKeyID         string        `env:"RAZORPAY_KEY_ID"`
	RazorpayKeySecret     string        `env:"RAZORPAY_KEY_SECRET"`
	RazorpayWebhookSecret string        `env:"RAZORPAY_WEBHOOK_SECRET"`
	RazorpayBaseURL       string        `env:"RAZORPAY_BASE_URL"`
	GatewayTimeout        time.Duration `env:"GATEWAY_TIMEOUT"`

	// Почта
	ResendAPIKey string        `env:"RESEND_API_KEY"`
	MailFrom     string        `env:"MAIL_FROM"`
	MailTimeout  time.Duration `env:"MAIL_TIMEOUT"`

	// Отзыв токенов. Если пусто, используется список в памяти процесса.
	RedisURL string `env:"REDIS_URL"`

	// Подписанные ссылки на файлы в S3
	S3Region       string        `env:"S3_REGION"`
	S3BaseEndpoint string        `env:"S3_BASE_ENDPOINT"`
	S3AccessKey    string        `env:"S3_ACCESS_KEY"`
	S3SecretKey    string        `env:"S3_SECRET_KEY"`
	PresignTTL     time.Duration `env:"PRESIGN_TTL"`

	// Политика выдачи
	MaxDownloads int `env:"MAX_DOWNLOADS"`
	LinkTTLDays  int `env:"LINK_TTL_DAYS"`

	// Если SEED_CATALOG не задан, каталог заполняется везде, кроме production.
	SeedCatalogRaw string `env:"SEED_CATALOG"`
	SeedCatalog    bool   `env:"-"`

	// Лимиты запросов с одного IP
	RateLimitAPI      int `env:"RATE_LIMIT_API"`
	RateLimitPayment  int `env:"RATE_LIMIT_PAYMENT"`
	RateLimitDownload int `env:"RATE_LIMIT_DOWNLOAD"`
}

func NewConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{}
	_ = env.Parse(cfg)

	// flags работают ТОЛЬКО если переменные из env не заданы
	flag.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "строка подключения к БД (postgres:// или путь к файлу SQLite)")
	flag.StringVar(&cfg.AuthSecret, "auth-secret", cfg.AuthSecret, "секрет для подписи JWT")
	flag.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "адрес сервера в виде host:port")
	flag.BoolVar(&cfg.EnableHTTPS, "https", cfg.EnableHTTPS, "внешний адрес API работает по https")
	flag.StringVar(&cfg.AppEnv, "env", cfg.AppEnv, "окружение: development или production")

	flag.Parse()

	cfg.applyDefaults()
	return cfg
}

var hostPortRe = regexp.MustCompile(`^[A-Za-z0-9\.\-]*:\d{1,5}$`)

func (c *Config) applyDefaults() {
	c.AppEnv = strings.ToLower(strings.TrimSpace(c.AppEnv))
	if c.AppEnv == "" {
		c.AppEnv = "development"
	}
	if c.AuthSecret == "" {
		c.AuthSecret = "dev-secret-key"
	}
	if c.DatabaseDSN == "" {
		c.DatabaseDSN = "presethub.db"
	}
	// BaseURL должен быть в виде "address:port" (без схемы и пути)
	if !hostPortRe.MatchString(c.BaseURL) {
		c.BaseURL = "localhost:8081"
	}
	scheme := "http://"
	if c.EnableHTTPS {
		scheme = "https://"
	}
	host := c.BaseURL
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	c.ServerURL = scheme + host

	if c.GatewayTimeout <= 0 {
		c.GatewayTimeout = 10 * time.Second
	}
	if c.MailTimeout <= 0 {
		c.MailTimeout = 15 * time.Second
	}
	if c.MailFrom == "" {
		c.MailFrom = "PresetHub <noreply@presethub.app>"
	}
	if c.PresignTTL <= 0 {
		c.PresignTTL = 15 * time.Minute
	}
	if c.MaxDownloads <= 0 {
		c.MaxDownloads = 5
	}
	if c.LinkTTLDays <= 0 {
		c.LinkTTLDays = 30
	}
	if c.RateLimitAPI <= 0 {
		c.RateLimitAPI = 1000
	}
	if c.RateLimitPayment <= 0 {
		c.RateLimitPayment = 20
	}
	if c.RateLimitDownload <= 0 {
		c.RateLimitDownload = 30
	}

	c.SeedCatalog = !c.IsProduction()
	if v, err := strconv.ParseBool(strings.TrimSpace(c.SeedCatalogRaw)); err == nil {
		c.SeedCatalog = v
	}
}

// IsProduction сообщает, запущен ли сервер в боевом окружении.
func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

// S3Enabled — заданы ли реквизиты для подписи ссылок S3.
func (c *Config) S3Enabled() bool {
	return c.S3Region != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

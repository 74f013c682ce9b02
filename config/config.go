package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Payment  PaymentConfig
	Booking  BookingConfig
	RabbitMQ RabbitMQConfig
}

type AppConfig struct {
	Port     string
	Env      string
	Timezone string
	LogLevel string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	TimeZone string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret       string
	AccessExpiry time.Duration
}

// PaymentConfig selects the external payment provider and its credentials.
type PaymentConfig struct {
	Provider             string
	StripeSecretKey      string
	StripeWebhookSecret  string
	MidtransServerKey    string
	MidtransIsProduction bool
	SuccessURL           string
	CancelURL            string
}

type BookingConfig struct {
	NumberPrefix    string
	MinLeadTime     time.Duration
	PlatformFeeRate decimal.Decimal
}

type RabbitMQConfig struct {
	Enabled  bool
	URL      string
	Exchange string
	Queue    string
}

const (
	PaymentProviderStripe   = "stripe"
	PaymentProviderMidtrans = "midtrans"
)

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("APP_TIMEZONE", "Asia/Jakarta")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("PAYMENT_PROVIDER", PaymentProviderStripe)
	viper.SetDefault("BOOKING_NUMBER_PREFIX", "BKG")
	viper.SetDefault("BOOKING_MIN_LEAD_TIME", "30m")
	viper.SetDefault("PLATFORM_FEE_RATE", "0.20")
	viper.SetDefault("RABBITMQ_EXCHANGE", "payment.exchange")
	viper.SetDefault("RABBITMQ_QUEUE", "settlement.payment-events")

	// .env is optional, environment variables win either way
	if err := viper.ReadInConfig(); err != nil {
		var pathErr *fs.PathError
		if !errors.As(err, &pathErr) {
			return nil, err
		}
	}

	accessExpiry, err := time.ParseDuration(viper.GetString("JWT_ACCESS_EXPIRY"))
	if err != nil {
		accessExpiry = 15 * time.Minute
	}

	minLeadTime, err := time.ParseDuration(viper.GetString("BOOKING_MIN_LEAD_TIME"))
	if err != nil {
		minLeadTime = 30 * time.Minute
	}

	feeRate, err := decimal.NewFromString(viper.GetString("PLATFORM_FEE_RATE"))
	if err != nil {
		return nil, err
	}
	if feeRate.IsNegative() || feeRate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, errors.New("PLATFORM_FEE_RATE must be between 0 and 1")
	}

	config := &Config{
		App: AppConfig{
			Port:     viper.GetString("APP_PORT"),
			Env:      viper.GetString("APP_ENV"),
			Timezone: viper.GetString("APP_TIMEZONE"),
			LogLevel: viper.GetString("LOG_LEVEL"),
		},
		DB: DBConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Name:     viper.GetString("DB_NAME"),
			TimeZone: viper.GetString("APP_TIMEZONE"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:       viper.GetString("JWT_SECRET"),
			AccessExpiry: accessExpiry,
		},
		Payment: PaymentConfig{
			Provider:             strings.ToLower(viper.GetString("PAYMENT_PROVIDER")),
			StripeSecretKey:      viper.GetString("STRIPE_SECRET_KEY"),
			StripeWebhookSecret:  viper.GetString("STRIPE_WEBHOOK_SECRET"),
			MidtransServerKey:    viper.GetString("MIDTRANS_SERVER_KEY"),
			MidtransIsProduction: viper.GetBool("MIDTRANS_IS_PRODUCTION"),
			SuccessURL:           viper.GetString("CHECKOUT_SUCCESS_URL"),
			CancelURL:            viper.GetString("CHECKOUT_CANCEL_URL"),
		},
		Booking: BookingConfig{
			NumberPrefix:    viper.GetString("BOOKING_NUMBER_PREFIX"),
			MinLeadTime:     minLeadTime,
			PlatformFeeRate: feeRate,
		},
		RabbitMQ: RabbitMQConfig{
			Enabled:  viper.GetBool("RABBITMQ_ENABLED"),
			URL:      viper.GetString("RABBITMQ_URL"),
			Exchange: viper.GetString("RABBITMQ_EXCHANGE"),
			Queue:    viper.GetString("RABBITMQ_QUEUE"),
		},
	}

	return config, nil
}

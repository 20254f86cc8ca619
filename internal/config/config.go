package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	AppName  string `mapstructure:"APP_NAME"`
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	MySQLDSN  string `mapstructure:"MYSQL_DSN"`
	RedisAddr string `mapstructure:"REDIS_ADDR"`

	GatewayBaseURL   string        `mapstructure:"GATEWAY_BASE_URL"`
	GatewaySecretKey string        `mapstructure:"GATEWAY_SECRET_KEY"`
	VerifyTimeout    time.Duration `mapstructure:"VERIFY_TIMEOUT"`

	CheckoutMaxRetries      int  `mapstructure:"CHECKOUT_MAX_RETRIES"`
	CheckoutRequireSupplier bool `mapstructure:"CHECKOUT_REQUIRE_SUPPLIER"`
}

func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("app")
	viper.SetConfigType("env")

	viper.AutomaticEnv()

	viper.SetDefault("APP_NAME", "shopcore")
	viper.SetDefault("HTTP_ADDR", ":8080")
	viper.SetDefault("LOG_LEVEL", "info")

	viper.SetDefault("MYSQL_DSN", "root:root@tcp(localhost:3306)/shopcore?parseTime=true&multiStatements=true")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")

	viper.SetDefault("GATEWAY_BASE_URL", "https://api.paygateway.test/v3")
	viper.SetDefault("GATEWAY_SECRET_KEY", "")
	viper.SetDefault("VERIFY_TIMEOUT", "30s")

	viper.SetDefault("CHECKOUT_MAX_RETRIES", 3)
	viper.SetDefault("CHECKOUT_REQUIRE_SUPPLIER", false)

	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return config, fmt.Errorf("read config: %w", err)
		}
		// No config file is fine; env vars and defaults apply.
		err = nil
	}

	err = viper.Unmarshal(&config)
	return config, err
}

package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ServerPort     string        `mapstructure:"SERVER_PORT"`
	TMSAPIBaseURL  string        `mapstructure:"TMS_API_BASE_URL"`
	TMSAPIToken    string        `mapstructure:"TMS_API_TOKEN"`
	ClientOrigin   string        `mapstructure:"CLIENT_ORIGIN"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	// InflightTTL bounds how long a stop stays locked when an upstream call
	// is abandoned without a response.
	InflightTTL time.Duration `mapstructure:"INFLIGHT_TTL"`
}

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env") // Name of config file (without extension)
	viper.SetConfigType("env")

	viper.SetDefault("SERVER_PORT", "8084")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("REQUEST_TIMEOUT", "10s")
	viper.SetDefault("INFLIGHT_TTL", "30s")

	viper.AutomaticEnv() // Read in environment variables that match

	err := viper.ReadInConfig()
	if err != nil {
		// Handle errors reading the config file, but allow it if it's just "not found"
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No .env file found.")
		} else {
			return nil, err
		}
	}

	var cfg Config
	err = viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the robot client configuration
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Serial    SerialConfig    `mapstructure:"serial"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Broker    BrokerConfig    `mapstructure:"broker"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// SerialConfig represents default serial port parameters
type SerialConfig struct {
	BaudRate int           `mapstructure:"baud_rate"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// DiscoveryConfig represents board discovery inputs
type DiscoveryConfig struct {
	// ManualBoards maps a board family name to extra port paths to probe.
	ManualBoards map[string][]string `mapstructure:"manual_boards"`

	// IgnoredSerials lists asset tags discovery must skip entirely.
	IgnoredSerials []string `mapstructure:"ignored_serials"`

	// RawDevices lists passthrough devices as serial number / baud pairs.
	RawDevices []RawDeviceConfig `mapstructure:"raw_devices"`
}

// RawDeviceConfig represents one raw passthrough serial device
type RawDeviceConfig struct {
	SerialNumber string `mapstructure:"serial_number"`
	BaudRate     int    `mapstructure:"baud_rate"`
}

// BrokerConfig represents the metadata broker connection
type BrokerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	TopicPrefix string `mapstructure:"topic_prefix"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	viper.SetConfigName("robot-kit")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/robot-kit")

	viper.SetEnvPrefix("ROBOT_KIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// A missing config file is fine; defaults and environment cover it.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("app.name", "robot-kit")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.debug", false)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "console")
	viper.SetDefault("logging.output", "stdout")
	viper.SetDefault("logging.max_size", 10)
	viper.SetDefault("logging.max_backups", 3)
	viper.SetDefault("logging.max_age", 28)
	viper.SetDefault("logging.compress", true)

	viper.SetDefault("serial.baud_rate", 115200)
	viper.SetDefault("serial.timeout", "500ms")

	viper.SetDefault("broker.host", "localhost")
	viper.SetDefault("broker.port", 1883)
	viper.SetDefault("broker.topic_prefix", "astoria")
}

// validate validates the configuration
func validate(config *Config) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[config.Logging.Level] {
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}

	if config.Serial.BaudRate <= 0 {
		return fmt.Errorf("serial.baud_rate must be positive")
	}
	if config.Serial.Timeout <= 0 {
		return fmt.Errorf("serial.timeout must be positive")
	}

	if config.Broker.Port < 1 || config.Broker.Port > 65535 {
		return fmt.Errorf("invalid broker port: %d", config.Broker.Port)
	}

	for _, device := range config.Discovery.RawDevices {
		if device.SerialNumber == "" {
			return fmt.Errorf("raw device entries require a serial_number")
		}
	}
	return nil
}

// GetBrokerURL returns the MQTT broker connection URL
func (c *Config) GetBrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", c.Broker.Host, c.Broker.Port)
}

// IsDebugEnabled checks if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.App.Environment == "development"
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/thatsimonsguy/sprinkler-controller/internal/model"
)

type DatabaseConfig struct {
	Path string `yaml:"path"`
	// BusyTimeout is how long to wait on a locked database, in seconds.
	BusyTimeout int `yaml:"busy_timeout"`
}

type GPIOConfig struct {
	// SafeMode swaps the pinctrl driver for an in-memory one.
	SafeMode bool `yaml:"safe_mode"`
	// ActiveHigh is false for the usual active-low relay boards.
	ActiveHigh bool `yaml:"active_high"`
}

type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

type MQTTConfig struct {
	Enabled bool `yaml:"enabled"`
	Broker  struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		ClientID string `yaml:"client_id"`
		TLS      bool   `yaml:"tls"`
	} `yaml:"broker"`
	Auth struct {
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"auth"`
	QoS       int `yaml:"qos"`
	Reconnect struct {
		InitialDelay int `yaml:"initial_delay"`
		MaxDelay     int `yaml:"max_delay"`
	} `yaml:"reconnect"`
	TopicPrefix     string `yaml:"topic_prefix"`
	DiscoveryPrefix string `yaml:"discovery_prefix"`
	// StatusInterval and DiscoveryInterval are in seconds.
	StatusInterval    int `yaml:"status_interval"`
	DiscoveryInterval int `yaml:"discovery_interval"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type DatadogConfig struct {
	Enabled   bool     `yaml:"enabled"`
	AgentAddr string   `yaml:"agent_addr"`
	Namespace string   `yaml:"namespace"`
	Tags      []string `yaml:"tags"`
}

type NtfyConfig struct {
	Topic  string `yaml:"topic"`
	Server string `yaml:"server"`
}

type InstallConfig struct {
	BootScriptPath  string `yaml:"boot_script_path"`
	GPIOServicePath string `yaml:"gpio_service_path"`
	MainServicePath string `yaml:"main_service_path"`
	User            string `yaml:"user"`
	WorkingDir      string `yaml:"working_dir"`
	ExecStart       string `yaml:"exec_start"`
}

// ZoneSeed is a zone definition loaded into an empty database by `seed`.
type ZoneSeed struct {
	Name    string `yaml:"name"`
	GPIO    int    `yaml:"gpio"`
	Minutes int    `yaml:"time"`
	Enabled *bool  `yaml:"enabled"`
	AutoOff *bool  `yaml:"auto_off"`
}

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	GPIO     GPIOConfig     `yaml:"gpio"`
	API      APIConfig      `yaml:"api"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Logging  LoggingConfig  `yaml:"logging"`
	Datadog  DatadogConfig  `yaml:"datadog"`
	Ntfy     NtfyConfig     `yaml:"ntfy"`
	Install  InstallConfig  `yaml:"install"`
	Zones    []ZoneSeed     `yaml:"zones"`
}

// Load reads the YAML file at path over the defaults, applies SPRINKLER_*
// environment overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func Default() *Config {
	cfg := &Config{
		Database: DatabaseConfig{
			Path:        "/var/lib/sprinkler/sprinkler.db",
			BusyTimeout: 5,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    3030,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Datadog: DatadogConfig{
			AgentAddr: "127.0.0.1:8125",
			Namespace: "sprinkler.",
		},
		Install: InstallConfig{
			BootScriptPath:  "/usr/local/bin/sprinkler-gpio-init.sh",
			GPIOServicePath: "/etc/systemd/system/sprinkler-gpio-init.service",
			MainServicePath: "/etc/systemd/system/sprinkler.service",
			User:            "root",
			WorkingDir:      "/var/lib/sprinkler",
			ExecStart:       "/usr/local/bin/sprinkler daemon --config /etc/sprinkler/config.yaml",
		},
	}
	cfg.MQTT.Broker.Port = 1883
	cfg.MQTT.Broker.ClientID = "sprinkler-controller"
	cfg.MQTT.QoS = 1
	cfg.MQTT.Reconnect.InitialDelay = 1
	cfg.MQTT.Reconnect.MaxDelay = 60
	cfg.MQTT.TopicPrefix = "sprinkler"
	cfg.MQTT.DiscoveryPrefix = "homeassistant"
	cfg.MQTT.StatusInterval = 5
	cfg.MQTT.DiscoveryInterval = 300
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SPRINKLER_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("SPRINKLER_SAFE_MODE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.GPIO.SafeMode = b
		}
	}
	if v := os.Getenv("SPRINKLER_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
	if v := os.Getenv("SPRINKLER_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SPRINKLER_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SPRINKLER_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("SPRINKLER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SPRINKLER_NTFY_TOPIC"); v != "" {
		cfg.Ntfy.Topic = v
	}
}

// Validate reports every problem found, not just the first.
func (c *Config) Validate() error {
	var (
		problems  []string
		usedPins  = map[int]string{}
		conflicts []string
	)

	if c.Database.Path == "" {
		problems = append(problems, "database.path is required")
	}
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		problems = append(problems, fmt.Sprintf("api.port %d out of range", c.API.Port))
	}
	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			problems = append(problems, "mqtt.broker.host is required when mqtt is enabled")
		}
		if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
			problems = append(problems, fmt.Sprintf("mqtt.broker.port %d out of range", c.MQTT.Broker.Port))
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			problems = append(problems, fmt.Sprintf("mqtt.qos %d must be 0, 1 or 2", c.MQTT.QoS))
		}
		if c.MQTT.StatusInterval < 1 {
			problems = append(problems, "mqtt.status_interval must be at least 1 second")
		}
		if c.MQTT.DiscoveryInterval < 1 {
			problems = append(problems, "mqtt.discovery_interval must be at least 1 second")
		}
	}

	for i, z := range c.Zones {
		label := z.Name
		if label == "" {
			label = fmt.Sprintf("zones[%d]", i)
			problems = append(problems, label+".name is required")
		}
		if z.Minutes <= 0 || z.Minutes > model.MaxRunMinutes {
			problems = append(problems, fmt.Sprintf("%s.time must be between 1 and %d minutes", label, model.MaxRunMinutes))
		}
		if z.GPIO < 0 {
			problems = append(problems, fmt.Sprintf("%s.gpio must not be negative", label))
		}
		if other, exists := usedPins[z.GPIO]; exists {
			conflicts = append(conflicts, fmt.Sprintf("%s and %s both use pin %d", label, other, z.GPIO))
		} else {
			usedPins[z.GPIO] = label
		}
	}

	if len(conflicts) > 0 {
		problems = append(problems, "conflicting GPIO pins: "+strings.Join(conflicts, ", "))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) LogLevel() zerolog.Level {
	return ParseLogLevel(c.Logging.Level)
}

func (c *Config) BusyTimeout() time.Duration {
	return time.Duration(c.Database.BusyTimeout) * time.Second
}

// SeedZones converts the configured zone list into definitions for the store.
// Enabled and auto-off default to true.
func (c *Config) SeedZones() []model.Zone {
	zones := make([]model.Zone, 0, len(c.Zones))
	for _, s := range c.Zones {
		zones = append(zones, model.Zone{
			Name:        s.Name,
			Pin:         s.GPIO,
			RunDuration: model.MinutesToDuration(s.Minutes),
			Enabled:     s.Enabled == nil || *s.Enabled,
			AutoOff:     s.AutoOff == nil || *s.AutoOff,
		})
	}
	return zones
}

func ParseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

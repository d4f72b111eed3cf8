package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/brutella/hc"
)

const (
	defaultName           = "roombabridge"
	defaultRequestTimeout = 10 // seconds
	defaultMQTTPrefix     = "roomba"
	defaultMQTTPublish    = 60 // seconds
)

// Config is the primary daemon configuration...
type Config struct {
	ConfigDir      string     // passed in from CLI
	ConfigFile     string     // server.json
	HTTPAddress    string     // net.Dial address format, :port is good enough -- empty disables the control channel
	Name           string     // what this bridge shows as
	ID             string     // displayed serial number -- if you run multiple instances, make sure each has a distinct ID
	HCConfig       hc.Config  // base HomeControl configuration
	RequestTimeout int        // (seconds) how long to wait on each vacuum request -- 0 uses the default of 10
	PullRate       int        // (seconds) how frequently to refresh the HomeKit values -- 0 to disable
	MQTT           MQTTConfig // optional, disabled unless Broker is set
	Debug          bool       // set from the CLI
}

// MQTTConfig configures the optional MQTT state publisher
type MQTTConfig struct {
	Broker      string // tcp://host:1883
	ClientID    string
	Username    string
	Password    string
	Prefix      string // topic prefix, defaults to "roomba"
	PublishRate int    // (seconds) how frequently to publish state -- 0 uses the default of 60
}

var runningConfig *Config

// Get a pointer to the global config
func Get() *Config {
	return runningConfig
}

// should only be called by the bootstrap
func Set(c *Config) {
	runningConfig = c
}

// Load reads a JSON server configuration and fills in the defaults
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var c Config
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	c.ConfigFile = path
	c.applyDefaults()
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = defaultName
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.MQTT.Prefix == "" {
		c.MQTT.Prefix = defaultMQTTPrefix
	}
	if c.MQTT.PublishRate <= 0 {
		c.MQTT.PublishRate = defaultMQTTPublish
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = c.Name
	}
}

// Timeout is RequestTimeout as a duration, falling back to the default when unset
func (c *Config) Timeout() time.Duration {
	if c == nil || c.RequestTimeout <= 0 {
		return defaultRequestTimeout * time.Second
	}
	return time.Duration(c.RequestTimeout) * time.Second
}

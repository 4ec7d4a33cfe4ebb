package util

import (
	_ "embed"
	"fmt"
	"gopkg.in/yaml.v3"
	"log"
	"os"
	"strconv"
	"strings"
)

const Name = "veche"
const ConfigFileName = "config.yaml"

//go:embed config_default.yaml
var embeddedConfig []byte

type AppConfig struct {
	Conf struct {
		Host      string
		HttpPort  int    `yaml:"httpPort"`
		SslDomain string `yaml:"sslDomain"`
		WithAp    bool   `yaml:"withAp"`
		Closed    bool   `yaml:"closed"`

		Federation struct {
			Workers          int      `yaml:"workers"`
			FetchLimit       int      `yaml:"fetchLimit"`
			MaxAttempts      int      `yaml:"maxAttempts"`
			SyncDelivery     bool     `yaml:"syncDelivery"`
			AllowedInstances []string `yaml:"allowedInstances"`
			BlockedInstances []string `yaml:"blockedInstances"`
		} `yaml:"federation"`

		Queue struct {
			Backend       string `yaml:"backend"` // "memory" or "redis"
			RedisAddr     string `yaml:"redisAddr"`
			RedisPassword string `yaml:"redisPassword"`
			RedisDb       int    `yaml:"redisDb"`
		} `yaml:"queue"`
	}
}

func ReadConf() (*AppConfig, error) {

	c := &AppConfig{}

	// Try to resolve config file path (local first, then user dir)
	configPath := ResolveFilePath(ConfigFileName)

	var buf []byte
	var err error

	// Try to read from resolved path
	buf, err = os.ReadFile(configPath)
	if err != nil {
		// If file doesn't exist, use embedded config and create user config file
		log.Printf("Config file not found at %s, using embedded defaults", configPath)
		buf = embeddedConfig

		// Try to write default config to user config directory
		configDir, dirErr := GetConfigDir()
		if dirErr == nil {
			userConfigPath := configDir + "/" + ConfigFileName
			writeErr := os.WriteFile(userConfigPath, embeddedConfig, 0644)
			if writeErr != nil {
				log.Printf("Warning: could not write default config to %s: %v", userConfigPath, writeErr)
			} else {
				log.Printf("Created default config file at %s", userConfigPath)
			}
		}
	}

	err = yaml.Unmarshal(buf, c)
	if err != nil {
		return nil, fmt.Errorf("in config file: %w", err)
	}

	applyDefaults(c)
	applyEnvOverrides(c)

	return c, nil
}

func applyDefaults(c *AppConfig) {
	if c.Conf.Federation.Workers == 0 {
		c.Conf.Federation.Workers = 32
	}
	if c.Conf.Federation.FetchLimit == 0 {
		c.Conf.Federation.FetchLimit = 25
	}
	if c.Conf.Federation.MaxAttempts == 0 {
		c.Conf.Federation.MaxAttempts = 10
	}
	if c.Conf.Queue.Backend == "" {
		c.Conf.Queue.Backend = "memory"
	}
}

func applyEnvOverrides(c *AppConfig) {
	envHost := os.Getenv("VECHE_HOST")
	envHttpPort := os.Getenv("VECHE_HTTPPORT")
	envSslDomain := os.Getenv("VECHE_SSLDOMAIN")
	envWithAp := os.Getenv("VECHE_WITH_AP")
	envClosed := os.Getenv("VECHE_CLOSED")
	envWorkers := os.Getenv("VECHE_FED_WORKERS")
	envFetchLimit := os.Getenv("VECHE_FED_FETCHLIMIT")
	envQueueBackend := os.Getenv("VECHE_QUEUE_BACKEND")
	envRedisAddr := os.Getenv("VECHE_REDIS_ADDR")
	envBlocked := os.Getenv("VECHE_FED_BLOCKED")

	if envHost != "" {
		c.Conf.Host = envHost
	}

	if envHttpPort != "" {
		v, err := strconv.Atoi(envHttpPort)
		if err != nil {
			fmt.Println(err)
		}
		c.Conf.HttpPort = v
	}

	if envSslDomain != "" {
		c.Conf.SslDomain = envSslDomain
	}

	if envWithAp == "true" {
		c.Conf.WithAp = true
	}

	if envClosed == "true" {
		c.Conf.Closed = true
	}

	if envWorkers != "" {
		v, err := strconv.Atoi(envWorkers)
		if err != nil {
			fmt.Println(err)
		}
		c.Conf.Federation.Workers = v
	}

	if envFetchLimit != "" {
		v, err := strconv.Atoi(envFetchLimit)
		if err != nil {
			fmt.Println(err)
		}
		c.Conf.Federation.FetchLimit = v
	}

	if envQueueBackend != "" {
		c.Conf.Queue.Backend = envQueueBackend
	}

	if envRedisAddr != "" {
		c.Conf.Queue.RedisAddr = envRedisAddr
	}

	if envBlocked != "" {
		c.Conf.Federation.BlockedInstances = strings.Split(envBlocked, ",")
	}
}

package util

import (
	"testing"
)

func TestApplyDefaults(t *testing.T) {
	c := &AppConfig{}
	applyDefaults(c)

	if c.Conf.Federation.Workers != 32 {
		t.Errorf("Expected 32 workers, got %d", c.Conf.Federation.Workers)
	}
	if c.Conf.Federation.FetchLimit != 25 {
		t.Errorf("Expected fetch limit 25, got %d", c.Conf.Federation.FetchLimit)
	}
	if c.Conf.Federation.MaxAttempts != 10 {
		t.Errorf("Expected 10 max attempts, got %d", c.Conf.Federation.MaxAttempts)
	}
	if c.Conf.Queue.Backend != "memory" {
		t.Errorf("Expected memory queue backend, got %s", c.Conf.Queue.Backend)
	}
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	c := &AppConfig{}
	c.Conf.Federation.Workers = 4
	c.Conf.Federation.FetchLimit = 5
	c.Conf.Queue.Backend = "redis"
	applyDefaults(c)

	if c.Conf.Federation.Workers != 4 {
		t.Errorf("Explicit worker count should survive, got %d", c.Conf.Federation.Workers)
	}
	if c.Conf.Federation.FetchLimit != 5 {
		t.Errorf("Explicit fetch limit should survive, got %d", c.Conf.Federation.FetchLimit)
	}
	if c.Conf.Queue.Backend != "redis" {
		t.Errorf("Explicit queue backend should survive, got %s", c.Conf.Queue.Backend)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("VECHE_HOST", "0.0.0.0")
	t.Setenv("VECHE_HTTPPORT", "8080")
	t.Setenv("VECHE_SSLDOMAIN", "veche.example")
	t.Setenv("VECHE_WITH_AP", "true")
	t.Setenv("VECHE_FED_WORKERS", "8")
	t.Setenv("VECHE_FED_FETCHLIMIT", "10")
	t.Setenv("VECHE_QUEUE_BACKEND", "redis")
	t.Setenv("VECHE_REDIS_ADDR", "localhost:6379")
	t.Setenv("VECHE_FED_BLOCKED", "spam.example,abuse.example")

	c := &AppConfig{}
	applyEnvOverrides(c)

	if c.Conf.Host != "0.0.0.0" {
		t.Errorf("Host override failed, got %s", c.Conf.Host)
	}
	if c.Conf.HttpPort != 8080 {
		t.Errorf("Port override failed, got %d", c.Conf.HttpPort)
	}
	if c.Conf.SslDomain != "veche.example" {
		t.Errorf("Domain override failed, got %s", c.Conf.SslDomain)
	}
	if !c.Conf.WithAp {
		t.Error("WithAp override failed")
	}
	if c.Conf.Federation.Workers != 8 {
		t.Errorf("Worker override failed, got %d", c.Conf.Federation.Workers)
	}
	if c.Conf.Federation.FetchLimit != 10 {
		t.Errorf("Fetch limit override failed, got %d", c.Conf.Federation.FetchLimit)
	}
	if c.Conf.Queue.Backend != "redis" {
		t.Errorf("Queue backend override failed, got %s", c.Conf.Queue.Backend)
	}
	if c.Conf.Queue.RedisAddr != "localhost:6379" {
		t.Errorf("Redis addr override failed, got %s", c.Conf.Queue.RedisAddr)
	}
	if len(c.Conf.Federation.BlockedInstances) != 2 ||
		c.Conf.Federation.BlockedInstances[0] != "spam.example" {
		t.Errorf("Blocklist override failed, got %v", c.Conf.Federation.BlockedInstances)
	}
}

func TestApplyEnvOverridesEmpty(t *testing.T) {
	c := &AppConfig{}
	c.Conf.Host = "preset"
	applyEnvOverrides(c)

	if c.Conf.Host != "preset" {
		t.Errorf("Unset env vars should not override, got %s", c.Conf.Host)
	}
}

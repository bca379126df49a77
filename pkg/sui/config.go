package sui

import (
	"errors"
	"time"
)

// Config describes the ledger endpoint and the custody program the client
// talks to.
type Config struct {
	RPCURL            string
	PackageID         string
	GlobalPurgatoryID string
	Module            string
	ClockObjectID     string
	RequestTimeout    time.Duration
}

const (
	defaultModule         = "core"
	defaultClockObjectID  = "0x6"
	defaultRequestTimeout = 30 * time.Second
)

func (cfg *Config) validate() error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if cfg.RPCURL == "" {
		return errors.New("rpc url is required")
	}
	if cfg.PackageID == "" {
		return errors.New("package id is required")
	}
	return nil
}

func (cfg Config) withDefaults() Config {
	if cfg.Module == "" {
		cfg.Module = defaultModule
	}
	if cfg.ClockObjectID == "" {
		cfg.ClockObjectID = defaultClockObjectID
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	return cfg
}

// Package config defines flowcap's on-disk/flag/env configuration
// surface: the capture parameters handed to the driver adapter and the
// bus parameters handed to the publisher.
package config

import (
	"fmt"

	"github.com/flowmetrics/flowcap/pkg/defaults"
)

// Config stores flowcap's full configuration.
type Config struct {
	Capture CaptureConfig `mapstructure:"capture"`
	Bus     BusConfig     `mapstructure:"bus"`
	Logging LogConfig     `mapstructure:"logging"`
}

// CaptureConfig mirrors the capture section of the external interface
// contract: the fixed parameters needed to bring up one RX queue.
type CaptureConfig struct {
	Interface     string `mapstructure:"interface"`
	Promiscuous   bool   `mapstructure:"promiscuous"`
	PortID        uint16 `mapstructure:"port_id"`
	NbMbufs       int    `mapstructure:"nb_mbufs"`
	CacheSize     int    `mapstructure:"cache_size"`
	BurstSize     int    `mapstructure:"burst_size"`
	RxRingSize    int    `mapstructure:"rx_ring_size"`
	TxRingSize    int    `mapstructure:"tx_ring_size"`
	IdleExpiry    string `mapstructure:"idle_expiry"`
	SweepInterval string `mapstructure:"sweep_interval"`
}

// BusConfig mirrors the bus section of the external interface contract:
// where finished feature vectors are published.
type BusConfig struct {
	BootstrapServers []string `mapstructure:"bootstrap_servers"`
	Topic            string   `mapstructure:"topic"`
	ClientID         string   `mapstructure:"client_id"`
}

// LogConfig stores the logging configuration.
type LogConfig struct {
	Destination string `mapstructure:"destination"`
	Level       string `mapstructure:"level"`
	Encoding    string `mapstructure:"encoding"`
}

// validator is a contract to show if a concrete section is configured
// according to its predefined value range.
type validator interface {
	validate() error
}

// New returns a Config populated with the documented defaults.
func New() *Config {
	return &Config{
		Capture: CaptureConfig{
			PortID:     defaults.PortID,
			NbMbufs:    defaults.NumMbufs,
			CacheSize:  defaults.CacheSize,
			BurstSize:  defaults.BurstSize,
			RxRingSize: defaults.RxRingSize,
			TxRingSize: defaults.TxRingSize,
		},
		Bus: BusConfig{
			BootstrapServers: []string{defaults.BootstrapServers},
			Topic:            defaults.Topic,
			ClientID:         defaults.ServiceName,
		},
		Logging: LogConfig{
			Encoding: "logfmt",
			Level:    "info",
		},
	}
}

func (c CaptureConfig) validate() error {
	if c.Interface == "" {
		return fmt.Errorf("no capture interface specified")
	}
	if c.BurstSize <= 0 {
		return fmt.Errorf("burst size must be a positive number")
	}
	if c.NbMbufs <= 0 {
		return fmt.Errorf("nb_mbufs must be a positive number")
	}
	return nil
}

func (b BusConfig) validate() error {
	if len(b.BootstrapServers) == 0 {
		return fmt.Errorf("at least one bootstrap server must be specified")
	}
	if b.Topic == "" {
		return fmt.Errorf("bus topic must not be empty")
	}
	return nil
}

func (l LogConfig) validate() error {
	return nil
}

// Validate checks all config sections.
func (c *Config) Validate() error {
	for _, section := range []validator{
		c.Capture,
		c.Bus,
		c.Logging,
	} {
		if err := section.validate(); err != nil {
			return err
		}
	}
	return nil
}

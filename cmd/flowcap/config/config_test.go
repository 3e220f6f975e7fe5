package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDefaultsValidate(t *testing.T) {
	cfg := New()
	cfg.Capture.Interface = "eth0"

	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsMissingInterface(t *testing.T) {
	cfg := New()

	require.Error(t, cfg.Validate())
}

func TestValidateRejectsEmptyBootstrapServers(t *testing.T) {
	cfg := New()
	cfg.Capture.Interface = "eth0"
	cfg.Bus.BootstrapServers = nil

	require.Error(t, cfg.Validate())
}

func TestValidateRejectsEmptyTopic(t *testing.T) {
	cfg := New()
	cfg.Capture.Interface = "eth0"
	cfg.Bus.Topic = ""

	require.Error(t, cfg.Validate())
}

func TestValidateRejectsZeroBurstSize(t *testing.T) {
	cfg := New()
	cfg.Capture.Interface = "eth0"
	cfg.Capture.BurstSize = 0

	require.Error(t, cfg.Validate())
}

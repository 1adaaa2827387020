package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sessionguard/sessionguard/pkg/config"
)

type testConfig struct {
	Name    string `env:"TEST_CONFIG_NAME" envDefault:"sessionguard"`
	Max     int    `env:"TEST_CONFIG_MAX" envDefault:"3"`
	Enabled bool   `env:"TEST_CONFIG_ENABLED" envDefault:"true"`
}

func TestLoad(t *testing.T) {
	t.Run("defaults applied", func(t *testing.T) {
		var cfg testConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, "sessionguard", cfg.Name)
		assert.Equal(t, 3, cfg.Max)
		assert.True(t, cfg.Enabled)
	})

	t.Run("environment overrides defaults", func(t *testing.T) {
		t.Setenv("TEST_CONFIG_NAME", "custom")
		t.Setenv("TEST_CONFIG_MAX", "10")

		var cfg testConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, "custom", cfg.Name)
		assert.Equal(t, 10, cfg.Max)
	})

	t.Run("nil pointer rejected", func(t *testing.T) {
		err := config.Load[testConfig](nil)
		assert.ErrorIs(t, err, config.ErrNilPointer)
	})

	t.Run("invalid value returns parse error", func(t *testing.T) {
		t.Setenv("TEST_CONFIG_MAX", "not-a-number")

		var cfg testConfig
		err := config.Load(&cfg)
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})
}

func TestMustLoad(t *testing.T) {
	t.Run("panics on invalid config", func(t *testing.T) {
		t.Setenv("TEST_CONFIG_MAX", "boom")

		assert.Panics(t, func() {
			var cfg testConfig
			config.MustLoad(&cfg)
		})
	})
}

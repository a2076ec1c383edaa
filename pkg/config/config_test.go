package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dasos/peek/pkg/config"
)

type testConfig struct {
	Addr     string `env:"TEST_PEEK_ADDR" envDefault:":8000"`
	Buffer   int    `env:"TEST_PEEK_BUFFER" envDefault:"64"`
	LogJSON  bool   `env:"TEST_PEEK_LOG_JSON" envDefault:"true"`
	Required string `env:"TEST_PEEK_REQUIRED,required"`
}

type defaultsConfig struct {
	Addr   string `env:"TEST_PEEK_DEFAULT_ADDR" envDefault:":8000"`
	Buffer int    `env:"TEST_PEEK_DEFAULT_BUFFER" envDefault:"64"`
}

func TestLoad_Success(t *testing.T) {
	t.Setenv("TEST_PEEK_ADDR", ":9090")
	t.Setenv("TEST_PEEK_BUFFER", "128")
	t.Setenv("TEST_PEEK_LOG_JSON", "false")
	t.Setenv("TEST_PEEK_REQUIRED", "present")

	var cfg testConfig
	err := config.Load(&cfg)

	require.NoError(t, err, "Load should not return an error with valid environment variables")
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 128, cfg.Buffer)
	assert.Equal(t, false, cfg.LogJSON)
	assert.Equal(t, "present", cfg.Required)
}

func TestLoad_DefaultValues(t *testing.T) {
	os.Unsetenv("TEST_PEEK_DEFAULT_ADDR")
	os.Unsetenv("TEST_PEEK_DEFAULT_BUFFER")

	var cfg defaultsConfig
	err := config.Load(&cfg)

	require.NoError(t, err, "Load should not return an error when defaults cover all fields")
	assert.Equal(t, ":8000", cfg.Addr)
	assert.Equal(t, 64, cfg.Buffer)
}

func TestLoad_MissingRequired(t *testing.T) {
	os.Unsetenv("TEST_PEEK_REQUIRED")
	t.Setenv("TEST_PEEK_ADDR", ":9090")

	var cfg testConfig
	err := config.Load(&cfg)

	require.Error(t, err, "Load should fail when a required variable is missing")
	assert.ErrorIs(t, err, config.ErrParsingConfig)
}

func TestLoad_NilPointer(t *testing.T) {
	err := config.Load[testConfig](nil)
	assert.ErrorIs(t, err, config.ErrNilPointer)
}

func TestLoad_ParseError(t *testing.T) {
	t.Setenv("TEST_PEEK_BUFFER", "not-a-number")
	t.Setenv("TEST_PEEK_REQUIRED", "present")

	var cfg testConfig
	err := config.Load(&cfg)

	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrParsingConfig)
}

func TestMustLoad_PanicsOnFailure(t *testing.T) {
	os.Unsetenv("TEST_PEEK_REQUIRED")

	assert.Panics(t, func() {
		var cfg testConfig
		config.MustLoad(&cfg)
	})
}

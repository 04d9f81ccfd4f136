package main

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadConfig(nil)
		require.NoError(t, err)
		assert.Equal(t, ":8080", cfg.Addr)
		assert.Equal(t, time.Minute, cfg.SweepInterval)
		assert.Equal(t, 5*time.Minute, cfg.IdleTimeout)
	})

	t.Run("environment then flags", func(t *testing.T) {
		t.Setenv("SHEETSYNC_ADDR", ":9000")
		t.Setenv("SHEETSYNC_IDLE_TIMEOUT", "2m")
		t.Setenv("SHEETSYNC_ROWS", "500")

		cfg, err := LoadConfig([]string{"-rows", "50"})
		require.NoError(t, err)
		assert.Equal(t, ":9000", cfg.Addr)
		assert.Equal(t, 2*time.Minute, cfg.IdleTimeout)
		assert.Equal(t, 50, cfg.Rows)
	})

	t.Run("bad values", func(t *testing.T) {
		t.Setenv("SHEETSYNC_SWEEP_INTERVAL", "often")
		_, err := LoadConfig(nil)
		assert.ErrorContains(t, err, "SHEETSYNC_SWEEP_INTERVAL")
	})

	t.Run("size must be positive", func(t *testing.T) {
		_, err := LoadConfig([]string{"-cols", "0"})
		assert.Error(t, err)
	})
}

func TestHandleExitError(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, 0, HandleExitError(&out, nil))
	assert.Empty(t, out.String())

	assert.Equal(t, ExitCodeMainError, HandleExitError(&out, errors.New("boom")))
	assert.Equal(t, "boom\n", out.String())
}

package config

import (
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func TestGetDuration(t *testing.T) {
	t.Setenv("TEST_DUR_SECS", "45")
	t.Setenv("TEST_DUR_GO", "250ms")
	t.Setenv("TEST_DUR_BAD", "soon")

	assert.Equal(t, 45*time.Second, getDuration("TEST_DUR_SECS", time.Second))
	assert.Equal(t, 250*time.Millisecond, getDuration("TEST_DUR_GO", time.Second))
	assert.Equal(t, time.Second, getDuration("TEST_DUR_BAD", time.Second))
	assert.Equal(t, time.Minute, getDuration("TEST_DUR_UNSET", time.Minute))
}

func TestGetIntAndBool(t *testing.T) {
	t.Setenv("TEST_INT", "12")
	t.Setenv("TEST_INT_BAD", "twelve")
	t.Setenv("TEST_BOOL", "yes")

	assert.Equal(t, 12, getInt("TEST_INT", 1))
	assert.Equal(t, 1, getInt("TEST_INT_BAD", 1))
	assert.Equal(t, true, getBool("TEST_BOOL", false))
	assert.Equal(t, false, getBool("TEST_BOOL_UNSET", false))
}

func TestLoadClientDefaults(t *testing.T) {
	t.Setenv("BOARD_HEARTBEAT", "")
	t.Setenv("BOARD_SERVER_URL", "http://board.test")

	cfg := LoadClient()

	assert.Equal(t, 15*time.Second, cfg.Board.Heartbeat)
	assert.Equal(t, 250*time.Millisecond, cfg.Board.CursorDebounce)
	assert.Equal(t, 30*time.Second, cfg.Board.StaleAfter)
	assert.Equal(t, "http://board.test", cfg.Client.ServerURL)
	assert.Equal(t, true, cfg.Database.AutoMigrate)
}

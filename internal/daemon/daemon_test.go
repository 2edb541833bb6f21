package daemon

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gyptazy/plb/internal/config"
	"github.com/gyptazy/plb/internal/logging"
)

func testLogger() logging.Logger {
	return logging.New(io.Discard, "info")
}

func TestRunSingleCycleWhenNotDaemon(t *testing.T) {
	cfg := &config.Config{Service: config.Service{Daemon: false}}
	calls := 0
	cycle := func(ctx context.Context, c *config.Config) error {
		calls++
		return nil
	}
	reload := func() (*config.Config, error) { return cfg, nil }

	err := Run(context.Background(), cfg, testLogger(), cycle, reload)
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRunDaemonStopsOnContextCancel(t *testing.T) {
	cfg := &config.Config{Service: config.Service{
		Daemon:   true,
		Schedule: config.Schedule{Format: "minutes", Interval: 60},
	}}
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	cycle := func(ctx context.Context, c *config.Config) error {
		calls++
		cancel()
		return nil
	}
	reload := func() (*config.Config, error) { return cfg, nil }

	err := Run(ctx, cfg, testLogger(), cycle, reload)
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestScheduleDurationHoursAndMinutes(t *testing.T) {
	assert.Equal(t, 2*time.Hour, scheduleDuration(config.Schedule{Format: "hours", Interval: 2}))
	assert.Equal(t, 30*time.Minute, scheduleDuration(config.Schedule{Format: "minutes", Interval: 30}))
	assert.Equal(t, 5*time.Minute, scheduleDuration(config.Schedule{Format: "minutes", Time: 5}))
}

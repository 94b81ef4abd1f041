package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chorenote/internal/recur"
)

const sampleYAML = `
timezone: Europe/Paris
schedule: "30 6 * * *"
note:
  daily_dir: /vault/daily
  template_path: /vault/templates/daily.md
printer:
  address: 192.168.1.50
events:
  - name: Dish Washer
    start_date: 2023-07-30
    frequency: 1d
  - name: Sharky cleaning
    start_date: "2023-07-30"
    frequency: 14d
  - name: Vaccum Floor
    start_date: 2023-07-23
    frequency: "7"
`

func TestParseAndEventDefinitions(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultWidth, cfg.Printer.Width)
	assert.Equal(t, DefaultTimeout, cfg.PrinterTimeout())

	events, err := cfg.EventDefinitions()
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "Sharky cleaning", events[1].Name)
	assert.Equal(t, 14, events[1].FrequencyDays)
	assert.Equal(t, recur.MustDate(2023, time.July, 23), events[2].StartDate)
	assert.Equal(t, 7, events[2].FrequencyDays)
}

func TestEventDefinitionsRejectsWholeConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Events = append(cfg.Events,
		EventConfig{Name: "broken date", StartDate: "2023-13-01", Frequency: "2d"},
		EventConfig{Name: "broken freq", StartDate: "2023-07-01", Frequency: "0d"},
	)
	events, err := cfg.EventDefinitions()
	require.ErrorIs(t, err, recur.ErrInvalidEventDefinition)
	assert.Nil(t, events)
	assert.Contains(t, err.Error(), "events[3]")
	assert.Contains(t, err.Error(), "events[4]")
	require.Error(t, cfg.Validate())
}

func TestValidateTimezone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "Mars/Olympus_Mons"
	require.Error(t, cfg.Validate())
}

func TestValidateSchedule(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Schedule = "every morning"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule")

	cfg.Schedule = "0 7 * * 1-5"
	require.NoError(t, cfg.Validate())
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultSchedule, cfg.Schedule)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, len(cfg.Events), len(again.Events))
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvPrinterAddress, "10.0.0.9:9100")
	t.Setenv(EnvDailyNoteDir, "/tmp/daily")
	t.Setenv(EnvNoteTemplate, "")

	cfg := DefaultConfig()
	cfg.Note.TemplatePath = "/from/file.md"
	ApplyEnv(cfg)

	assert.Equal(t, "10.0.0.9:9100", cfg.Printer.Address)
	assert.Equal(t, "/tmp/daily", cfg.Note.DailyDir)
	assert.Equal(t, "/from/file.md", cfg.Note.TemplatePath)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("QUOTE_URL=https://quotes.example/today\n"), 0o600))

	old := EnvFile
	EnvFile = envPath
	t.Cleanup(func() { EnvFile = old })
	t.Setenv(EnvQuoteURL, "")
	require.NoError(t, os.Unsetenv(EnvQuoteURL))

	require.NoError(t, LoadEnvFile())
	assert.Equal(t, "https://quotes.example/today", os.Getenv(EnvQuoteURL))

	EnvFile = filepath.Join(dir, "missing.env")
	assert.NoError(t, LoadEnvFile())
}

func TestWatcherReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	initial, err := Load(path)
	require.NoError(t, err)
	w := NewWatcher(path, initial)
	w.debounce = 10 * time.Millisecond

	changed := make(chan *Config, 1)
	w.OnChange(func(c *Config) { changed <- c })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()

	// Give the watcher a moment to register the directory.
	time.Sleep(50 * time.Millisecond)

	bad := "events:\n  - name: x\n    start_date: nope\n    frequency: 1d\n"
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o600))
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, w.Current().Events, 3, "invalid reload must keep previous config")

	good := "events:\n  - name: Feed fish\n    start_date: 2023-07-23\n    frequency: 2d\n"
	require.NoError(t, os.WriteFile(path, []byte(good), 0o600))

	select {
	case c := <-changed:
		require.Len(t, c.Events, 1)
		assert.Equal(t, "Feed fish", c.Events[0].Name)
	case <-time.After(3 * time.Second):
		t.Fatal("config reload not observed")
	}
	assert.Equal(t, "Feed fish", w.Current().Events[0].Name)

	cancel()
	assert.NoError(t, <-done)
}

func TestWatcherReloadsRunOneAtATime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))
	initial, err := Load(path)
	require.NoError(t, err)
	w := NewWatcher(path, initial)

	var inFlight, maxInFlight, calls atomic.Int32
	w.OnChange(func(*Config) {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		calls.Add(1)
	})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, w.Reload())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(8), calls.Load())
	assert.Equal(t, int32(1), maxInFlight.Load())
}

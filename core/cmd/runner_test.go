package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/leadbot/core/config"
	coretelegram "github.com/m3rciful/leadbot/core/telegram"
)

type stubApp struct {
	closed bool
	optErr error
}

func (s *stubApp) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{}, s.optErr
}

func (s *stubApp) Close() error {
	s.closed = true
	return nil
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("LEADBOT_CFG", "")
	_, err := ResolveConfigPath(Options{ConfigEnvVar: "LEADBOT_CFG"})
	assert.Error(t, err)

	p, err := ResolveConfigPath(Options{ConfigEnvVar: "LEADBOT_CFG", DefaultConfigPath: "config.yaml"})
	require.NoError(t, err)
	assert.Equal(t, "config.yaml", p)

	t.Setenv("LEADBOT_CFG", "/etc/leadbot.yaml")
	p, _ = ResolveConfigPath(Options{ConfigEnvVar: "LEADBOT_CFG", DefaultConfigPath: "config.yaml"})
	assert.Equal(t, "/etc/leadbot.yaml", p)

	p, _ = ResolveConfigPath(Options{ConfigPath: "flag.yaml", ConfigEnvVar: "LEADBOT_CFG"})
	assert.Equal(t, "flag.yaml", p)
}

func TestRunWiresLifecycle(t *testing.T) {
	app := &stubApp{}
	var loadedFrom string
	var started, stopped bool

	err := Run(Options{
		ConfigPath: "x.yaml",
		LoadConfig: func(path string) (*coreconfig.Config, error) {
			loadedFrom = path
			return &coreconfig.Config{}, nil
		},
		Bootstrap:      func(*coreconfig.Config) (TelegramApp, error) { return app, nil },
		ShutdownLogger: func() error { return nil },
		RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
			require.NotNil(t, opts.OnStart)
			require.NotNil(t, opts.OnStop)
			started = opts.OnStart(ctx, coretelegram.Runtime{}) == nil
			stopped = opts.OnStop(ctx, coretelegram.Runtime{}) == nil
			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "x.yaml", loadedFrom)
	assert.True(t, started)
	assert.True(t, stopped)
	assert.True(t, app.closed)
}

func TestRunErrors(t *testing.T) {
	noop := func() error { return nil }
	load := func(string) (*coreconfig.Config, error) { return &coreconfig.Config{}, nil }

	assert.Error(t, Run(Options{}))

	err := Run(Options{
		ConfigPath:     "x",
		LoadConfig:     func(string) (*coreconfig.Config, error) { return nil, errors.New("bad yaml") },
		Bootstrap:      func(*coreconfig.Config) (TelegramApp, error) { return &stubApp{}, nil },
		ShutdownLogger: noop,
	})
	assert.ErrorContains(t, err, "bad yaml")

	err = Run(Options{
		ConfigPath:     "x",
		LoadConfig:     load,
		Bootstrap:      func(*coreconfig.Config) (TelegramApp, error) { return nil, errors.New("no db") },
		ShutdownLogger: noop,
	})
	assert.ErrorContains(t, err, "bootstrap failed")

	app := &stubApp{optErr: errors.New("nope")}
	err = Run(Options{
		ConfigPath:     "x",
		LoadConfig:     load,
		Bootstrap:      func(*coreconfig.Config) (TelegramApp, error) { return app, nil },
		ShutdownLogger: noop,
	})
	assert.ErrorContains(t, err, "telegram options")
	assert.True(t, app.closed)
}

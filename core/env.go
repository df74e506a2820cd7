package core

import (
	"strconv"

	"github.com/gobuffalo/envy"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Environment keys read by LoadConfiguration
const (
	EnvWidth             = "KORU_WIDTH"
	EnvHeight            = "KORU_HEIGHT"
	EnvFramesPerSecond   = "KORU_FPS"
	EnvEventPollDelay    = "KORU_EVENT_POLL_DELAY"
	EnvCommandBufferSize = "KORU_COMMAND_BUFFER_SIZE"
	EnvStrictHandles     = "KORU_STRICT_HANDLES"
	EnvShaderDirectory   = "KORU_SHADER_DIR"
	EnvResourceArchive   = "KORU_RESOURCE_ARCHIVE"
	EnvLogLevel          = "KORU_LOG_LEVEL"
	EnvTitle             = "KORU_TITLE"
)

// LoadConfiguration builds a Configuration from DefaultConfiguration
// overridden by the environment. The given dotenv files only fill in
// variables that are not already set.
func LoadConfiguration(files ...string) (Configuration, error) {
	cfg := DefaultConfiguration()

	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return cfg, errors.Wrap(err, "loading env files")
		}
	}
	envy.Reload()

	var err error
	if cfg.Renderer.ScreenWidth, err = envUint32(EnvWidth, cfg.Renderer.ScreenWidth); err != nil {
		return cfg, err
	}
	if cfg.Renderer.ScreenHeight, err = envUint32(EnvHeight, cfg.Renderer.ScreenHeight); err != nil {
		return cfg, err
	}
	if cfg.Time.FramesPerSecond, err = envInt(EnvFramesPerSecond, cfg.Time.FramesPerSecond); err != nil {
		return cfg, err
	}
	if cfg.Time.EventPollDelay, err = envInt(EnvEventPollDelay, cfg.Time.EventPollDelay); err != nil {
		return cfg, err
	}
	if cfg.Renderer.CommandBufferSize, err = envInt(EnvCommandBufferSize, cfg.Renderer.CommandBufferSize); err != nil {
		return cfg, err
	}
	if cfg.Renderer.CommandBufferSize <= 0 {
		return cfg, errors.Errorf("%s must be positive, got %d", EnvCommandBufferSize, cfg.Renderer.CommandBufferSize)
	}

	if v := envy.Get(EnvStrictHandles, ""); v != "" {
		strict, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, errors.Wrapf(err, "parsing %s", EnvStrictHandles)
		}
		cfg.Renderer.StrictHandles = strict
	}

	if v := envy.Get(EnvLogLevel, ""); v != "" {
		level, err := log.ParseLevel(v)
		if err != nil {
			return cfg, errors.Wrapf(err, "parsing %s", EnvLogLevel)
		}
		cfg.LogLevel = level
	}

	cfg.Resources.ShaderDirectory = envy.Get(EnvShaderDirectory, cfg.Resources.ShaderDirectory)
	cfg.Resources.Archive = envy.Get(EnvResourceArchive, cfg.Resources.Archive)
	cfg.Window.Title = envy.Get(EnvTitle, cfg.Window.Title)
	return cfg, nil
}

func envInt(key string, def int) (int, error) {
	v := envy.Get(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, errors.Wrapf(err, "parsing %s", key)
	}
	return n, nil
}

func envUint32(key string, def uint32) (uint32, error) {
	v := envy.Get(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return def, errors.Wrapf(err, "parsing %s", key)
	}
	return uint32(n), nil
}

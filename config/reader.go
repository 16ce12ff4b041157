package config

import (
	"bytes"
	"context"
	"io"

	"github.com/a8m/envsubst"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"github.com/yosuke-furukawa/json5/encoding/json5"
)

// Read reads a config from the given file, substituting environment variables first.
func Read(
	ctx context.Context,
	filePath string,
	logger golog.Logger,
) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read config file %q", filePath)
	}

	return FromReader(ctx, filePath, bytes.NewReader(buf), logger)
}

// FromReader reads a config from the given reader and specifies
// where, if applicable, the file the reader originated from.
// Fields the document leaves out keep their Default values.
func FromReader(
	ctx context.Context,
	originalPath string,
	r io.Reader,
	logger golog.Logger,
) (*Config, error) {
	cfg := Default()
	if err := json5.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to decode Config from json")
	}
	cfg.ConfigFilePath = originalPath

	if err := cfg.Validate("config"); err != nil {
		return nil, err
	}
	logger.Debugw("config loaded", "path", originalPath, "track_width", cfg.TrackWidth,
		"ticks_per_inch", cfg.TicksPerInch, "frequency_hz", cfg.FrequencyHz)
	return &cfg, nil
}

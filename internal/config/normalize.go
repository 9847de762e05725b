package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeEncoder()
	c.normalizeBrowse()
	c.normalizeLogging()
	return c.normalizePaths()
}

func (c *Config) normalizeEncoder() {
	if strings.TrimSpace(c.Encoder.FFmpegBinary) == "" {
		c.Encoder.FFmpegBinary = defaultFFmpegBinary
	}
	if strings.TrimSpace(c.Encoder.FFprobeBinary) == "" {
		c.Encoder.FFprobeBinary = defaultFFprobeBinary
	}
	if strings.TrimSpace(c.Encoder.VideoCodec) == "" {
		c.Encoder.VideoCodec = defaultVideoCodec
	}
}

func (c *Config) normalizeBrowse() {
	if len(c.Browse.VisibleExtensions) == 0 {
		c.Browse.VisibleExtensions = defaultVisibleExtensions()
		return
	}
	cleaned := make([]string, 0, len(c.Browse.VisibleExtensions))
	for _, ext := range c.Browse.VisibleExtensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			cleaned = append(cleaned, ext)
		}
	}
	c.Browse.VisibleExtensions = cleaned
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Logging.Path) == "" {
		c.Logging.Path = ""
		return nil
	}
	expanded, err := expandPath(c.Logging.Path)
	if err != nil {
		return fmt.Errorf("logging.path: %w", err)
	}
	c.Logging.Path = expanded
	return nil
}

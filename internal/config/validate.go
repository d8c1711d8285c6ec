package config

import (
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSeparation(); err != nil {
		return err
	}
	if err := c.validateDecompose(); err != nil {
		return err
	}
	if err := c.validateIcon(); err != nil {
		return err
	}
	if err := c.validateServe(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateSeparation() error {
	if c.Separation.Window < 256 {
		return fmt.Errorf("separation.window must be at least 256, got %d", c.Separation.Window)
	}
	if c.Separation.Window&(c.Separation.Window-1) != 0 {
		return fmt.Errorf("separation.window must be a power of two, got %d", c.Separation.Window)
	}
	if c.Separation.Hop <= 0 || c.Separation.Hop > c.Separation.Window {
		return fmt.Errorf("separation.hop must be in 1..%d, got %d", c.Separation.Window, c.Separation.Hop)
	}
	if c.Separation.OverlapSeconds >= c.Separation.ChunkSeconds {
		return fmt.Errorf("separation.overlap_seconds (%d) must be smaller than chunk_seconds (%d)",
			c.Separation.OverlapSeconds, c.Separation.ChunkSeconds)
	}
	return nil
}

func (c *Config) validateDecompose() error {
	if c.Decompose.Window < 256 {
		return fmt.Errorf("decompose.window_size must be at least 256, got %d", c.Decompose.Window)
	}
	if c.Decompose.Window&(c.Decompose.Window-1) != 0 {
		return fmt.Errorf("decompose.window_size must be a power of two, got %d", c.Decompose.Window)
	}
	if c.Decompose.Hop <= 0 || c.Decompose.Hop > c.Decompose.Window {
		return fmt.Errorf("decompose.hop_size must be in 1..%d, got %d", c.Decompose.Window, c.Decompose.Hop)
	}
	return nil
}

func (c *Config) validateIcon() error {
	for name, value := range map[string]string{
		"icon.background_top":    c.Icon.BackgroundTop,
		"icon.background_bottom": c.Icon.BackgroundBottom,
		"icon.wave":              c.Icon.Wave,
	} {
		if err := validateHexColor(value); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if c.Icon.CornerRatio <= 0 || c.Icon.CornerRatio > 0.5 {
		return fmt.Errorf("icon.corner_ratio must be in (0, 0.5], got %g", c.Icon.CornerRatio)
	}
	return nil
}

func validateHexColor(value string) error {
	trimmed := strings.TrimPrefix(value, "#")
	if len(trimmed) != 6 {
		return fmt.Errorf("expected #RRGGBB color, got %q", value)
	}
	for _, r := range trimmed {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return fmt.Errorf("expected #RRGGBB color, got %q", value)
		}
	}
	return nil
}

func (c *Config) validateServe() error {
	if !strings.Contains(c.Serve.Bind, ":") {
		return fmt.Errorf("serve.bind must be host:port, got %q", c.Serve.Bind)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validatePlanner(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validatePresets()
}

func (c *Config) validateEngine() error {
	if c.Engine.MaxParallelJobs < 1 || c.Engine.MaxParallelJobs > maxParallelJobsLimit {
		return fmt.Errorf("engine.max_parallel_jobs must be between 1 and %d", maxParallelJobsLimit)
	}
	if err := ensurePositiveMap(map[string]int{
		"engine.fallback_duration_seconds": c.Engine.FallbackDurationSeconds,
		"engine.probe_timeout_seconds":     c.Engine.ProbeTimeoutSeconds,
	}); err != nil {
		return err
	}
	if strings.ContainsAny(c.Engine.OutputSuffix, `/\`) {
		return errors.New("engine.output_suffix must not contain path separators")
	}
	return nil
}

func (c *Config) validatePlanner() error {
	if err := ensurePositiveMap(map[string]int{
		"planner.min_video_kbps": c.Planner.MinVideoKbps,
		"planner.max_video_kbps": c.Planner.MaxVideoKbps,
	}); err != nil {
		return err
	}
	if c.Planner.MaxVideoKbps < c.Planner.MinVideoKbps {
		return errors.New("planner.max_video_kbps must be >= planner.min_video_kbps")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.Bind == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.API.Bind); err != nil {
		return fmt.Errorf("api.bind %q: %w", c.API.Bind, err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
}

func (c *Config) validatePresets() error {
	catalog, err := c.Catalog()
	if err != nil {
		return err
	}
	if _, err := catalog.Lookup(c.Engine.DefaultPreset); err != nil {
		return fmt.Errorf("engine.default_preset: %w", err)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

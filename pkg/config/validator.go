package config

import (
	"errors"
	"fmt"
)

func (c *Config) Validate() error {
	var errs []error

	// App validation
	if c.App.Name == "" {
		errs = append(errs, errors.New("app.name is required"))
	}

	validModes := map[string]bool{"development": true, "production": true, "test": true}
	if !validModes[c.App.Mode] {
		errs = append(errs, fmt.Errorf("app.mode must be one of: development, production, test"))
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.App.LogLevel] {
		errs = append(errs, fmt.Errorf("app.log_level must be one of: debug, info, warn, error"))
	}

	// Database validation
	if c.Database.Host == "" {
		errs = append(errs, errors.New("database.host is required"))
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, errors.New("database.port must be between 1 and 65535"))
	}
	if c.Database.Name == "" {
		errs = append(errs, errors.New("database.name is required"))
	}
	if c.Database.MaxConnections <= 0 {
		errs = append(errs, errors.New("database.max_connections must be positive"))
	}

	// Controller validation
	if c.Controller.Parallelism <= 0 {
		errs = append(errs, errors.New("controller.parallelism must be positive"))
	}
	if c.Controller.TickDeadline <= 0 {
		errs = append(errs, errors.New("controller.tick_deadline must be positive"))
	}
	if c.Controller.CallTimeout <= 0 {
		errs = append(errs, errors.New("controller.call_timeout must be positive"))
	}
	if c.Controller.CallTimeout >= c.Controller.TickDeadline {
		errs = append(errs, errors.New("controller.call_timeout must be less than controller.tick_deadline"))
	}

	// Circuit validation
	if c.Circuit.ErrorThreshold <= 0 {
		errs = append(errs, errors.New("circuit.error_threshold must be positive"))
	}
	if c.Circuit.OpenFor <= 0 {
		errs = append(errs, errors.New("circuit.open_for must be positive"))
	}

	// Cloud validation
	if c.Cloud.Region == "" {
		errs = append(errs, errors.New("cloud.region is required"))
	}
	if c.App.Mode == "production" {
		if c.Cloud.AccessKeyID == "" {
			errs = append(errs, errors.New("cloud.access_key_id is required in production"))
		}
		if c.Cloud.SecretAccessKey == "" {
			errs = append(errs, errors.New("cloud.secret_access_key is required in production"))
		}
	}

	// API validation
	if c.API.Port <= 0 || c.API.Port > 65535 {
		errs = append(errs, errors.New("api.port must be between 1 and 65535"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %v", errs)
	}

	return nil
}

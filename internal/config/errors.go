package config

import (
	"errors"
	"fmt"
)

var ErrConfiguration = errors.New("configuration_error")

// ConfigurationError names a required setting that is absent.
type ConfigurationError struct {
	Setting string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s is not set", e.Setting)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

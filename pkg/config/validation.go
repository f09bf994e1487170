package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks cfg against its struct tags (required §6 fields,
// oneof constraints on Logging.Level/Format and Session.EngineType,
// port ranges) and returns a descriptive error naming every field that
// fails.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

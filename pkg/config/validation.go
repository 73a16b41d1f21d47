package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for complex rules
// that cannot be expressed in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	// Run struct tag validation
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	// Custom validation rules that can't be expressed in tags
	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	// Validate at least one adapter is enabled
	if !cfg.Adapters.WOPI.Enabled {
		return fmt.Errorf("adapters: at least one adapter must be enabled")
	}

	if err := cfg.Adapters.WOPI.Validate(); err != nil {
		return fmt.Errorf("adapters.wopi: %w", err)
	}

	// Badger locks without their own path live in the metadata database
	if cfg.Locks.Type == "badger" && stringOption(cfg.Locks.Badger, "db_path") == "" && cfg.Metadata.Type != "badger" {
		return fmt.Errorf("locks.badger: db_path is required unless metadata.type is badger")
	}

	if cfg.Content.Type == "s3" && stringOption(cfg.Content.S3, "bucket") == "" {
		return fmt.Errorf("content.s3: bucket is required")
	}

	if cfg.Proof.Enabled {
		switch cfg.Proof.Source {
		case "discovery":
			if stringOption(cfg.Proof.Discovery, "url") == "" {
				return fmt.Errorf("proof.discovery: url is required when proof is enabled")
			}
		case "static":
			if stringOption(cfg.Proof.Static, "modulus") == "" || stringOption(cfg.Proof.Static, "exponent") == "" {
				return fmt.Errorf("proof.static: modulus and exponent are required when proof is enabled")
			}
		}
	}

	return nil
}

// stringOption reads a string entry from a store-specific section.
func stringOption(section map[string]any, key string) string {
	if section == nil {
		return ""
	}
	s, _ := section[key].(string)
	return s
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		// Return the first validation error with context
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}

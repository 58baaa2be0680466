package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// CustomValidator wraps the validator with custom validation rules
type CustomValidator struct {
	validator *validator.Validate
}

var (
	validEnvironments   = []string{"development", "staging", "production"}
	validLogLevels      = []string{"debug", "info", "warn", "error"}
	validOddsSelections = []string{"min", "max", "mid"}
	validRankings       = []string{"p", "ev", "ev_then_p"}
	validReportFormats  = []string{"jsonl", "json", "table", "csv"}
)

// NewValidator creates a new validator with custom validation functions
func NewValidator() *CustomValidator {
	v := validator.New()

	mustRegister(v, "environment", oneOf(validEnvironments))
	mustRegister(v, "loglevel", oneOf(validLogLevels))
	mustRegister(v, "oddsselection", oneOf(validOddsSelections))
	mustRegister(v, "ranking", oneOf(validRankings))
	mustRegister(v, "reportformat", oneOf(validReportFormats))

	return &CustomValidator{validator: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("failed to register validation %q: %v", tag, err))
	}
}

func oneOf(allowed []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		for _, a := range allowed {
			if value == a {
				return true
			}
		}
		return false
	}
}

// Validate validates the entire configuration
func Validate(cfg *Config) error {
	return NewValidator().Validate(cfg)
}

// Validate validates the configuration using registered validation rules
func (cv *CustomValidator) Validate(cfg *Config) error {
	if err := cv.validator.Struct(cfg); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return formatValidationErrors(validationErrors)
		}
		return fmt.Errorf("validation failed: %w", err)
	}

	return validateCrossField(cfg)
}

// validateCrossField performs cross-field validations
func validateCrossField(cfg *Config) error {
	if cfg.IsProduction() && cfg.Database.SSLMode == "disable" {
		return fmt.Errorf("production environment requires SSL mode to be 'require' or 'verify-full'")
	}

	if cfg.Passing.HeadWindow > cfg.Passing.TailWindow {
		return fmt.Errorf("passing head_window (%d) cannot exceed tail_window (%d)", cfg.Passing.HeadWindow, cfg.Passing.TailWindow)
	}

	if cfg.Wagering.MinP != nil && *cfg.Wagering.MinP > 1 {
		return fmt.Errorf("wagering min_p must be between 0 and 1, got %v", *cfg.Wagering.MinP)
	}

	if cfg.Scheduler.Enabled && cfg.Scheduler.NormalizeCron == "" && cfg.Scheduler.BatchCron == "" {
		return fmt.Errorf("scheduler is enabled but no cron expression is configured")
	}

	if cfg.Feed.Enabled && cfg.Feed.URL == "" {
		return fmt.Errorf("feed is enabled but feed.url is empty")
	}

	if cfg.Secrets.Enabled && cfg.Secrets.SecretName == "" {
		return fmt.Errorf("secrets overlay is enabled but secrets.secret_name is empty")
	}

	return nil
}

// formatValidationErrors formats validation errors into a readable string
func formatValidationErrors(validationErrors validator.ValidationErrors) error {
	var b strings.Builder
	for _, fieldError := range validationErrors {
		field := fieldError.Namespace()
		tag := fieldError.Tag()
		value := fieldError.Value()

		switch tag {
		case "required":
			fmt.Fprintf(&b, "- Field '%s' is required\n", field)
		case "url":
			fmt.Fprintf(&b, "- Field '%s' must be a valid URL, got '%v'\n", field, value)
		case "min", "max":
			fmt.Fprintf(&b, "- Field '%s' validation failed: %s constraint violated\n", field, tag)
		case "gt", "gte", "lt", "lte":
			fmt.Fprintf(&b, "- Field '%s' validation failed: numeric constraint %s violated\n", field, tag)
		case "environment":
			fmt.Fprintf(&b, "- Field '%s' must be one of: %s\n", field, strings.Join(validEnvironments, ", "))
		case "loglevel":
			fmt.Fprintf(&b, "- Field '%s' must be one of: %s\n", field, strings.Join(validLogLevels, ", "))
		case "oddsselection":
			fmt.Fprintf(&b, "- Field '%s' must be one of: %s\n", field, strings.Join(validOddsSelections, ", "))
		case "ranking":
			fmt.Fprintf(&b, "- Field '%s' must be one of: %s\n", field, strings.Join(validRankings, ", "))
		case "reportformat":
			fmt.Fprintf(&b, "- Field '%s' must be one of: %s\n", field, strings.Join(validReportFormats, ", "))
		case "oneof":
			fmt.Fprintf(&b, "- Field '%s' has invalid value '%v'\n", field, value)
		default:
			fmt.Fprintf(&b, "- Field '%s' failed validation: %s\n", field, tag)
		}
	}
	return fmt.Errorf("configuration validation failed:\n%s", b.String())
}

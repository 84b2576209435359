package settings

import "fmt"

// Validate checks the settings for internally-consistent, deployable values.
func (s *Settings) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, s.validateProject()...)
	errors = append(errors, s.validatePauseBetweenStacks()...)
	errors = append(errors, s.validateSubRepo()...)
	errors = append(errors, s.validateCertValidity()...)
	errors = append(errors, s.validateLogging()...)
	errors = append(errors, s.validateRuntime()...)

	return errors
}

func (s *Settings) validateProject() []ValidationError {
	if s.Project != "" {
		return nil
	}
	return []ValidationError{{Path: "project", Message: "must not be empty"}}
}

func (s *Settings) validatePauseBetweenStacks() []ValidationError {
	if s.PauseBetweenStacksSeconds >= 0 {
		return nil
	}
	return []ValidationError{{
		Path:    "pause_between_stacks_seconds",
		Message: fmt.Sprintf("must be non-negative, got %d", s.PauseBetweenStacksSeconds),
	}}
}

func (s *Settings) validateSubRepo() []ValidationError {
	var errors []ValidationError
	if s.SubRepo.URL == "" {
		errors = append(errors, ValidationError{Path: "subrepo.url", Message: "must not be empty"})
	}
	if s.SubRepo.Ref == "" {
		errors = append(errors, ValidationError{Path: "subrepo.ref", Message: "must not be empty"})
	}
	if s.SubRepo.Subtree == "" {
		errors = append(errors, ValidationError{Path: "subrepo.subtree", Message: "must not be empty"})
	}
	return errors
}

func (s *Settings) validateCertValidity() []ValidationError {
	if s.CertValidityDays > 0 {
		return nil
	}
	return []ValidationError{{
		Path:    "cert_validity_days",
		Message: fmt.Sprintf("must be positive, got %d", s.CertValidityDays),
	}}
}

func (s *Settings) validateLogging() []ValidationError {
	var errors []ValidationError

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, s.Logging.Level) {
		errors = append(errors, ValidationError{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLevels, s.Logging.Level),
		})
	}

	validFormats := []string{"json", "text"}
	if !contains(validFormats, s.Logging.Format) {
		errors = append(errors, ValidationError{
			Path:    "logging.format",
			Message: fmt.Sprintf("must be one of %v, got %q", validFormats, s.Logging.Format),
		})
	}

	return errors
}

func (s *Settings) validateRuntime() []ValidationError {
	validRuntimes := []string{"docker", "podman", "auto"}
	if contains(validRuntimes, s.Runtime) {
		return nil
	}
	return []ValidationError{{
		Path:    "runtime",
		Message: fmt.Sprintf("must be one of %v, got %q", validRuntimes, s.Runtime),
	}}
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

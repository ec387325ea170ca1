package app

import (
	"errors"
	"fmt"
)

// ValidateSecurityConfig enforces the deployment security policy at startup.
//
// Fail-fast is intentional: silently running production with dev-only knobs
// (seeded credentials, TLS verification off, origin checks off) is unacceptable.
func ValidateSecurityConfig(cfg Config) error {
	if cfg.Env != "production" {
		return nil
	}

	var errs []error
	if cfg.DevUsers != "" {
		errs = append(errs, errors.New("security policy: LMS_DEV_USERS must not be set in production"))
	}
	if EnvBool("LMS_WS_DEV_INSECURE", false) {
		errs = append(errs, errors.New("security policy: LMS_WS_DEV_INSECURE must not be enabled in production"))
	}
	if !EnvBool("LMS_WS_ORIGIN_REQUIRED", true) {
		errs = append(errs, errors.New("security policy: LMS_WS_ORIGIN_REQUIRED must stay enabled in production"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid production config: %w", errors.Join(errs...))
	}
	return nil
}

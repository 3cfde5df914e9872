package config

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/teranos/coflow/errors"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// structValidator reports fields by their config key rather than the Go name
func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if err := structValidator().Struct(c); err != nil {
		return formatValidationError(err)
	}

	// Throttled publishes must land inside the freshness window
	if c.Presence.ThrottleInterval() >= c.Presence.ConnectionFreshness() {
		return errors.Newf("presence.throttle_ms (%d) must be below presence.connection_freshness_ms (%d)",
			c.Presence.ThrottleInterval().Milliseconds(), c.Presence.ConnectionFreshness().Milliseconds())
	}
	if c.Presence.ThrottleInterval() >= c.Presence.CursorFreshness() {
		return errors.Newf("presence.throttle_ms (%d) must be below presence.cursor_freshness_ms (%d)",
			c.Presence.ThrottleInterval().Milliseconds(), c.Presence.CursorFreshness().Milliseconds())
	}

	return nil
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return errors.Wrap(err, "config validation failed")
	}
	fe := verrs[0]
	key := strings.TrimPrefix(fe.Namespace(), "Config.")
	if fe.Param() != "" {
		return errors.Newf("%s failed %s=%s, got %v", key, fe.Tag(), fe.Param(), fe.Value())
	}
	return errors.Newf("%s failed %s, got %v", key, fe.Tag(), fe.Value())
}

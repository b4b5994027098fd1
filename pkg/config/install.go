package config

import (
	stdErrors "errors"
	"reflect"
	"strings"
	"sync"

	"github.com/core-tools/hsu-watchad/pkg/errors"

	"github.com/go-playground/validator/v10"
)

// InstallationConfig carries the install parameters. All four fields are
// required together; it is consumed by a single install and not retained.
type InstallationConfig struct {
	Domain     string `flag:"domain" validate:"required,fqdn"`
	LDAPServer string `flag:"ldap-server" validate:"required"`
	Username   string `flag:"domain-user" validate:"required"`
	Password   string `flag:"domain-passwd" validate:"required"`
}

// String never prints the password.
func (c InstallationConfig) String() string {
	return "{Domain:" + c.Domain + " LDAPServer:" + c.LDAPServer + " Username:" + c.Username + " Password:***}"
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			if name := field.Tag.Get("flag"); name != "" {
				return name
			}
			return field.Name
		})
	})
	return validate
}

// Validate returns a configuration error naming every missing or malformed parameter.
func (c InstallationConfig) Validate() error {
	err := getValidator().Struct(c)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !stdErrors.As(err, &validationErrs) {
		return errors.NewConfigurationError("invalid install parameters", err)
	}

	var missing, malformed []string
	for _, fieldErr := range validationErrs {
		if fieldErr.Tag() == "required" {
			missing = append(missing, "--"+fieldErr.Field())
		} else {
			malformed = append(malformed, "--"+fieldErr.Field()+" ("+fieldErr.Tag()+")")
		}
	}

	if len(missing) > 0 {
		return errors.NewConfigurationError("install must provide domain, server, user and password params, missing: "+strings.Join(missing, ", "), nil).
			WithContext("missing", missing)
	}
	return errors.NewConfigurationError("invalid install params: "+strings.Join(malformed, ", "), nil).
		WithContext("malformed", malformed)
}

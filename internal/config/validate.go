package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validatorInstance = validator.New(validator.WithRequiredStructEnabled())

// ValidationError holds every configuration validation failure collected in
// one pass, rather than surfacing only the first.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: %s", strings.Join(e.Errors, "; "))
}

// Is supports errors.Is for type-only matching.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// Validate runs struct-tag validation via validator/v10 and then the
// cross-field checks tags cannot express (autoscaler worker bounds,
// multiServer id and port uniqueness).
func Validate(c *ServerConfig) error {
	var errs []string

	if err := validatorInstance.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				errs = append(errs, fmt.Sprintf("%s: failed %s validation", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	errs = append(errs, validateAutoScaling(c)...)
	errs = append(errs, validateMultiServer(c)...)

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

func validateAutoScaling(c *ServerConfig) []string {
	var errs []string
	as := c.Cluster.AutoScaling
	if as.Enabled && as.MinWorkers > as.MaxWorkers {
		errs = append(errs, "cluster.autoScaling.minWorkers must be <= maxWorkers")
	}
	return errs
}

func validateMultiServer(c *ServerConfig) []string {
	var errs []string
	if !c.MultiServer.Enabled {
		return errs
	}

	seenIDs := map[string]bool{}
	seenPorts := map[int]bool{}
	for _, srv := range c.MultiServer.Servers {
		if seenIDs[srv.ID] {
			errs = append(errs, fmt.Sprintf("multiServer.servers: duplicate id %q", srv.ID))
		}
		seenIDs[srv.ID] = true

		if seenPorts[srv.Port] {
			errs = append(errs, fmt.Sprintf("multiServer.servers: duplicate port %d", srv.Port))
		}
		seenPorts[srv.Port] = true
	}
	return errs
}

package balancer

import (
	"fmt"
	"strings"
)

// UnknownStrategyError is returned when the configured strategy name is not
// recognized.
type UnknownStrategyError struct {
	// Strategy is the invalid strategy name.
	Strategy string
}

// Error implements the error interface.
func (e *UnknownStrategyError) Error() string {
	return fmt.Sprintf("unknown balancing strategy %q (valid strategies: %s)",
		e.Strategy, strings.Join(Names(), ", "))
}

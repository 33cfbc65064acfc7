// argus/pkg/logging/errors.go

package logging

import (
	"fmt"

	"github.com/rs/zerolog"
)

type ErrorType string

const (
	// ErrorTypeConfig covers malformed conditions and other fatal
	// configuration problems. These are never recovered from locally.
	ErrorTypeConfig ErrorType = "CONFIG"
	// ErrorTypeLegacy is raised when a rule in the deprecated tuple
	// format is found in a ruleset.
	ErrorTypeLegacy ErrorType = "LEGACY"
	ErrorTypeMatch  ErrorType = "MATCH"
	ErrorTypeStore  ErrorType = "STORE"
)

type ArgusError struct {
	Type    ErrorType
	Message string
	Err     error
	Fields  map[string]interface{}
}

func (e *ArgusError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *ArgusError) Unwrap() error {
	return e.Err
}

func NewError(errType ErrorType, message string, err error, fields map[string]interface{}) *ArgusError {
	return &ArgusError{
		Type:    errType,
		Message: message,
		Err:     err,
		Fields:  fields,
	}
}

func LogError(logger zerolog.Logger, err error) {
	argusErr, ok := err.(*ArgusError)
	if !ok {
		logger.Error().Err(err).Msg(err.Error())
		return
	}

	event := logger.Error().Err(argusErr.Err).
		Str("error_type", string(argusErr.Type)).
		Str("message", argusErr.Message)

	for k, v := range argusErr.Fields {
		event = event.Interface(k, v)
	}

	event.Msg(argusErr.Message)
}

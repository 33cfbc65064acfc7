// argus/pkg/logging/errors_test.go

package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewError(t *testing.T) {
	tests := []struct {
		name        string
		errType     ErrorType
		message     string
		err         error
		fields      map[string]interface{}
		expectedMsg string
	}{
		{
			name:        "Config error",
			errType:     ErrorTypeConfig,
			message:     "Invalid tag condition operator",
			err:         errors.New("unknown operator $neq"),
			fields:      map[string]interface{}{"taggroup": "criticality"},
			expectedMsg: "CONFIG: Invalid tag condition operator",
		},
		{
			name:        "Legacy error",
			errType:     ErrorTypeLegacy,
			message:     "Found old style tuple rule",
			err:         nil,
			fields:      nil,
			expectedMsg: "LEGACY: Found old style tuple rule",
		},
		{
			name:        "Store error",
			errType:     ErrorTypeStore,
			message:     "Failed to load ruleset",
			err:         errors.New("connection refused"),
			fields:      map[string]interface{}{"ruleset": "checkgroup_parameters"},
			expectedMsg: "STORE: Failed to load ruleset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			argusErr := NewError(tt.errType, tt.message, tt.err, tt.fields)

			assert.Equal(t, tt.errType, argusErr.Type)
			assert.Equal(t, tt.message, argusErr.Message)
			assert.Equal(t, tt.err, argusErr.Err)
			assert.Equal(t, tt.fields, argusErr.Fields)
			assert.Equal(t, tt.expectedMsg, argusErr.Error())

			if tt.err != nil {
				assert.Equal(t, tt.err, errors.Unwrap(argusErr))
			}
		})
	}
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	argusErr := NewError(ErrorTypeConfig, "bad condition", errors.New("boom"), map[string]interface{}{
		"rule_id": "r1",
	})
	LogError(logger, argusErr)

	var logged map[string]interface{}
	err := json.Unmarshal(buf.Bytes(), &logged)
	assert.NoError(t, err)
	assert.Equal(t, "CONFIG", logged["error_type"])
	assert.Equal(t, "bad condition", logged["message"])
	assert.Equal(t, "r1", logged["rule_id"])

	buf.Reset()
	LogError(logger, errors.New("plain error"))
	err = json.Unmarshal(buf.Bytes(), &logged)
	assert.NoError(t, err)
	assert.Equal(t, "plain error", logged["error"])
}

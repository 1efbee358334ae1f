package handlers

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventAction(t *testing.T) {
	tests := []struct {
		name  string
		event string
		ok    bool
	}{
		{"continue", `{"type":"continue"}`, true},
		{"confirm ignores value", `{"type":"confirm","value":123}`, true},
		{"option", `{"type":"select_option","value":"Blue"}`, true},
		{"memory", `{"type":"select_memory","value":"no"}`, true},
		{"payment", `{"type":"payment","value":250}`, true},
		{"confidence", `{"type":"confidence","value":0}`, true},
		{"option needs a string", `{"type":"select_option","value":3}`, false},
		{"payment needs a number", `{"type":"payment","value":"2.50"}`, false},
		{"confidence needs a value", `{"type":"confidence"}`, false},
		{"unknown type", `{"type":"skip"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ev Event
			require.NoError(t, json.Unmarshal([]byte(tt.event), &ev))

			action, err := ev.Action()
			if tt.ok {
				assert.NoError(t, err)
				assert.NotNil(t, action)
			} else {
				assert.ErrorIs(t, err, errBadEvent)
			}
		})
	}
}

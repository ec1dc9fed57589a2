package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseZoneResponse(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantZone string
		wantErr  bool
	}{
		{
			name:     "clean json",
			response: `{"zone":"red","confidence":0.9,"reasoning":"deadline today","signals":["deadline"]}`,
			wantZone: "red",
		},
		{
			name:     "json wrapped in prose",
			response: "Here is my analysis:\n{\"zone\":\"yellow\",\"confidence\":0.7,\"reasoning\":\"open question\"}\nLet me know if you need more.",
			wantZone: "yellow",
		},
		{
			name:     "no json at all",
			response: "I cannot classify this email.",
			wantErr:  true,
		},
		{
			name:     "malformed json",
			response: `{"zone":"green","confidence":`,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := parseZoneResponse(tt.response)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantZone, parsed.Zone)
		})
	}
}

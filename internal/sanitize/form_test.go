package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckForm(t *testing.T) {
	t.Parallel()

	limits := FormLimits{MaxEntries: 2, MaxKeyRunes: 8, MaxValueRunes: 5, MaxTotalBytes: 20}
	tests := []struct {
		name    string
		raw     map[string]string
		wantErr string
	}{
		{name: "empty", raw: nil},
		{name: "within limits", raw: map[string]string{"a": "12345", "b": "é"}},
		{name: "too many", raw: map[string]string{"a": "", "b": "", "c": ""}, wantErr: "maximum is 2"},
		{name: "long key", raw: map[string]string{"abcdefghi": ""}, wantErr: "field name"},
		{name: "long value", raw: map[string]string{"a": "123456"}, wantErr: `value for "a"`},
		{name: "multibyte value counts runes", raw: map[string]string{"a": "ééééé"}},
		{name: "total", raw: map[string]string{"abcdefgh": "12345", "bcdefghi": "12345"}, wantErr: "exceeds 20 bytes"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := CheckForm(tt.raw, limits)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestCheckFormDefaults(t *testing.T) {
	t.Parallel()

	assert.NoError(t, CheckForm(map[string]string{"send2crm_api_key": "abc"}, DefaultFormLimits()))
	assert.Error(t, CheckForm(map[string]string{"send2crm_api_key": strings.Repeat("x", DefaultFormMaxValueRunes+1)}, DefaultFormLimits()))
	assert.NoError(t, CheckForm(map[string]string{"k": "v"}, FormLimits{}), "zero limits disable checks")
}

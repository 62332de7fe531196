package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateGSTIN(t *testing.T) {
	info := ValidateGSTIN("27AAPFU0939F1ZV")
	assert.True(t, info.IsValid)
	assert.Equal(t, "27", info.StateCode)
	assert.Equal(t, "Maharashtra", info.StateName)
	assert.Equal(t, "AAPFU0939F", info.PAN)
	assert.Equal(t, "Proprietorship", info.EntityType)
	assert.Empty(t, info.Error)
}

func TestValidateGSTINNormalizesInput(t *testing.T) {
	info := ValidateGSTIN("  27aapfu0939f1zv ")
	assert.True(t, info.IsValid)
}

func TestValidateGSTINErrors(t *testing.T) {
	tests := []struct {
		name  string
		gstin string
		want  string
	}{
		{"empty", "", "Empty GSTIN"},
		{"short", "27AAPFU0939F", "Invalid length: 12 (expected 15)"},
		{"bad format", "XXAAPFU0939F1ZV", "Invalid format"},
		{"bad state", "99AAPFU0939F1ZV", "Invalid state code: 99"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ValidateGSTIN(tt.gstin)
			assert.False(t, info.IsValid)
			assert.Equal(t, tt.want, info.Error)
		})
	}
}

func TestValidateGSTINUnknownEntityType(t *testing.T) {
	// Entity digit 0 is not a known type but the GSTIN is still valid.
	info := ValidateGSTIN("29AAPFU0939F0ZV")
	assert.True(t, info.IsValid)
	assert.Equal(t, "Karnataka", info.StateName)
	assert.Equal(t, "Unknown", info.EntityType)
}

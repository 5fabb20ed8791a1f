package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAddressEquivalentForms(t *testing.T) {
	tests := []struct {
		a, b string
	}{
		{"123 N. Main Street, Suite 4", "123 North Main St Ste 4"},
		{"456 W Flamingo Rd", "456 West Flamingo Road"},
		{"789 SE Park Avenue #12", "789 Southeast Park Ave Unit 12"},
		{"1010 Sunset Blvd.", "1010 sunset boulevard"},
		{"22 Elm Pl, Apt 3B", "22 Elm Place"},
	}
	for _, tt := range tests {
		assert.Equal(t, NormalizeAddress(tt.a), NormalizeAddress(tt.b),
			"%q and %q should normalize identically", tt.a, tt.b)
	}
}

func TestNormalizeAddressDistinctForms(t *testing.T) {
	assert.NotEqual(t, NormalizeAddress("123 N Main St"), NormalizeAddress("124 N Main St"))
	assert.NotEqual(t, NormalizeAddress("123 N Main St"), NormalizeAddress("123 S Main St"))
}

func TestNormalizeAddressIdempotent(t *testing.T) {
	inputs := []string{
		"123 N. Main Street, Suite 4",
		"456 West Flamingo Road",
		"789 SE Park Avenue #12",
		"",
	}
	for _, in := range inputs {
		once := NormalizeAddress(in)
		assert.Equal(t, once, NormalizeAddress(once), "normalization of %q must be idempotent", in)
	}
}

func TestNormalizeAddressStripsUnitSuffix(t *testing.T) {
	assert.Equal(t, "123 main st", NormalizeAddress("123 Main St Suite 400"))
	assert.Equal(t, "123 main st", NormalizeAddress("123 Main St # 400"))
	assert.Equal(t, "123 main st", NormalizeAddress("123 Main St Floor 2"))
}

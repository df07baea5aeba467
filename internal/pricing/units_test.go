package pricing

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUnits(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"10", "10000000000000000000"},
		{"0.5", "500000000000000000"},
		{".25", "250000000000000000"},
		{"12.500", "12500000000000000000"},
		{"0", "0"},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			v, err := ParseUnits(tc.in, 18)
			require.NoError(t, err)
			assert.Equal(t, tc.want, v.String())
		})
	}
}

func TestParseUnits_Rejects(t *testing.T) {
	for _, in := range []string{"", "abc", "-1", "1.2.3", "0.0000000000000000001", "+3"} {
		_, err := ParseUnits(in, 18)
		assert.Error(t, err, in)
	}
}

func TestFormatUnits(t *testing.T) {
	assert.Equal(t, "10", FormatUnits(e18(10), 18))
	assert.Equal(t, "0.01", FormatUnits(DefaultMinimumPayment, 18))
	assert.Equal(t, "0.000000000000000001", FormatUnits(big.NewInt(1), 18))
	assert.Equal(t, "-1.5", FormatUnits(big.NewInt(-15), 1))
	assert.Equal(t, "0", FormatUnits(nil, 18))
}

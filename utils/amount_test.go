package utils

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmountWithDecimals(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		decimals int
		want     string
	}{
		{"whole units", "1", 6, "1000000"},
		{"fractional", "0.05", 6, "50000"},
		{"full precision", "0.000001", 6, "1"},
		{"eighteen decimals", "1.5", 18, "1500000000000000000"},
		{"zero", "0", 6, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmountWithDecimals(tt.amount, tt.decimals)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParseAmountWithDecimals_Errors(t *testing.T) {
	_, err := ParseAmountWithDecimals("", 6)
	assert.Error(t, err)

	_, err = ParseAmountWithDecimals("abc", 6)
	assert.Error(t, err)

	_, err = ParseAmountWithDecimals("-0.05", 6)
	assert.Error(t, err)
}

func TestFormatAmountFromBigInt(t *testing.T) {
	assert.Equal(t, "0.05", FormatAmountFromBigInt(big.NewInt(50000), 6))
	assert.Equal(t, "0.049999", FormatAmountFromBigInt(big.NewInt(49999), 6))
	assert.Equal(t, "1", FormatAmountFromBigInt(big.NewInt(1000000), 6))
	assert.Equal(t, "0", FormatAmountFromBigInt(big.NewInt(0), 6))
}

func TestValidateTransactionHash(t *testing.T) {
	valid := "0x" + strings.Repeat("ab", 32)
	assert.NoError(t, ValidateTransactionHash(valid))

	assert.Error(t, ValidateTransactionHash(""))
	assert.Error(t, ValidateTransactionHash(strings.Repeat("ab", 33)))
	assert.Error(t, ValidateTransactionHash("0x1234"))
	assert.Error(t, ValidateTransactionHash("0x"+strings.Repeat("zz", 32)))
	assert.Error(t, ValidateTransactionHash(valid+"ff"))
}

package accounting

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func line(code, debit, credit string) LineInput {
	return LineInput{AccountCode: code, Debit: decimal.RequireFromString(debit), Credit: decimal.RequireFromString(credit)}
}

func TestValidateLines(t *testing.T) {
	total, err := ValidateLines([]LineInput{
		line("1100", "600", "0"),
		line("1200", "0", "450"),
		line("4000", "0", "150"),
	})
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(600)))

	tests := []struct {
		name    string
		lines   []LineInput
		wantErr error
	}{
		{"single line", []LineInput{line("1100", "10", "0")}, ErrTooFewLines},
		{"unbalanced", []LineInput{line("1100", "10", "0"), line("4000", "0", "9.99")}, ErrUnbalanced},
		{"both sides", []LineInput{line("1100", "10", "10"), line("4000", "0", "0")}, ErrLineSide},
		{"empty line", []LineInput{line("1100", "0", "0"), line("4000", "0", "0")}, ErrLineSide},
		{"negative", []LineInput{line("1100", "-10", "0"), line("4000", "0", "-10")}, ErrNegativeLine},
		{"missing account", []LineInput{line(" ", "10", "0"), line("4000", "0", "10")}, ErrAccountCode},
		{"fifth decimal place", []LineInput{line("1100", "0.00001", "0"), line("4000", "0", "0.00001")}, ErrLinePrecision},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateLines(tt.lines)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

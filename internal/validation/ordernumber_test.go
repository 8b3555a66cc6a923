package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrderNumber(t *testing.T) {
	tests := []struct {
		in      string
		want    OrderNumber
		wantErr bool
	}{
		{in: "#1001", want: OrderNumber{Prefix: "#", Number: 1001}},
		{in: "S7", want: OrderNumber{Prefix: "S", Number: 7}},
		{in: "Ø42", want: OrderNumber{Prefix: "Ø", Number: 42}},
		{in: "1001", wantErr: true},
		{in: "#", wantErr: true},
		{in: "", wantErr: true},
		{in: "##1001", wantErr: true},
		{in: "#10a1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOrderNumber(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrOrderNumberFormat))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestParseOrderNumbers(t *testing.T) {
	prefix, numbers, err := ParseOrderNumbers([]string{"#3", "#1", "#2"})
	require.NoError(t, err)
	assert.Equal(t, "#", prefix)
	assert.Equal(t, []int64{3, 1, 2}, numbers)

	_, _, err = ParseOrderNumbers([]string{"#3", "S4"})
	assert.ErrorIs(t, err, ErrMixedOrderPrefix)

	prefix, numbers, err = ParseOrderNumbers(nil)
	require.NoError(t, err)
	assert.Empty(t, prefix)
	assert.Empty(t, numbers)
}

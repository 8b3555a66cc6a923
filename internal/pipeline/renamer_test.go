package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopinvoice/shopinvoice/internal/types"
)

func TestParseGatewayPairs(t *testing.T) {
	mapping, err := ParseGatewayPairs([]string{"stripe:Stripe", " vipps : Vipps ", "stripe:Stripe Card"})
	require.NoError(t, err)

	assert.Equal(t, GatewayMapping{"stripe": "Stripe Card", "vipps": "Vipps"}, mapping)
	assert.Equal(t, []string{"Stripe Card", "Vipps"}, mapping.Targets())
}

func TestParseGatewayPairs_Invalid(t *testing.T) {
	for _, pair := range []string{"stripe", "a:b:c", ":Stripe", "stripe: ", ""} {
		t.Run(pair, func(t *testing.T) {
			_, err := ParseGatewayPairs([]string{pair})
			assert.ErrorIs(t, err, ErrGatewayPair)
		})
	}
}

func TestGatewayMapping_TargetsDistinct(t *testing.T) {
	m := GatewayMapping{"shopify_payments": "Card", "stripe": "Card", "vipps": "Vipps"}
	assert.Equal(t, []string{"Card", "Vipps"}, m.Targets())
	assert.Empty(t, GatewayMapping{}.Targets())
}

func TestRenameGateways(t *testing.T) {
	table := types.Table{
		{OrderNo: types.String("#1"), PaymentType: types.String("stripe")},
		{OrderNo: types.String("#2"), PaymentType: types.String("Stripe")},
		{OrderNo: types.String("#3"), PaymentType: nil},
		{OrderNo: types.String("#4"), PaymentType: types.String("vipps")},
	}
	mapping := GatewayMapping{"stripe": "Stripe Card", "vipps": "Vipps"}

	got := RenameGateways(table, mapping)

	require.Len(t, got, 4)
	assert.Equal(t, "Stripe Card", *got[0].PaymentType)
	assert.Equal(t, "Stripe", *got[1].PaymentType)
	assert.Nil(t, got[2].PaymentType)
	assert.Equal(t, "Vipps", *got[3].PaymentType)
	for i := range got {
		assert.Equal(t, *table[i].OrderNo, *got[i].OrderNo)
	}

	assert.Equal(t, "stripe", *table[0].PaymentType, "input must not change")
	assert.Equal(t, "vipps", *table[3].PaymentType, "input must not change")
}

func TestRenameGateways_EmptyMapping(t *testing.T) {
	table := types.Table{{PaymentType: types.String("stripe")}}

	got := RenameGateways(table, nil)

	assert.Equal(t, table, got)
	assert.Nil(t, RenameGateways(nil, GatewayMapping{"a": "b"}))
}

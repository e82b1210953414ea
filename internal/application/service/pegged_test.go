package service

import (
	"testing"

	"github.com/damon-houk/exchange-rate-resolver/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeggedTable(t *testing.T) {
	table, rejected := NewPeggedTable([]entity.PeggedCurrency{
		{Currency: "SAR", PegTarget: "USD", Multiplier: dec("3.75")},
		{Currency: "AED", PegTarget: "USD", Multiplier: dec("3.6725")},
		{Currency: "USD", PegTarget: "USD", Multiplier: dec("1")},
		{Currency: "XOF", PegTarget: "EUR", Multiplier: dec("-655.957")},
	})

	require.Len(t, rejected, 2)
	assert.Equal(t, 2, table.Len())

	peg, ok := table.Lookup("AED")
	assert.True(t, ok)
	assert.Equal(t, entity.Currency("USD"), peg.PegTarget)

	_, ok = table.Lookup("XOF")
	assert.False(t, ok)

	all := table.All()
	require.Len(t, all, 2)
	assert.Equal(t, entity.Currency("AED"), all[0].Currency)
	assert.Equal(t, entity.Currency("SAR"), all[1].Currency)

	var empty *PeggedTable
	_, ok = empty.Lookup("AED")
	assert.False(t, ok)
	assert.Zero(t, empty.Len())
	assert.Nil(t, empty.All())
}

package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOwn(t *testing.T) {
	own := New("DE 123.456.789",
		[]string{"de02 1203 0000 0000 2020 51"},
		[]string{"https://www.meinefirma.de"})

	assert.True(t, own.IsOwnVATID("de123456789"))
	assert.True(t, own.IsOwnVATID("DE 123 456 789"))
	assert.False(t, own.IsOwnVATID("DE999999999"))
	assert.False(t, own.IsOwnVATID(""))

	assert.True(t, own.IsOwnIBAN("DE02120300000000202051"))
	assert.True(t, own.IsOwnIBAN("de02 1203 0000 0000 2020 51"))
	assert.False(t, own.IsOwnIBAN("DE00000000000000000000"))

	assert.True(t, own.IsOwnDomain("meinefirma.de"))
	assert.True(t, own.IsOwnDomain("www.meinefirma.de"))
	assert.False(t, own.IsOwnDomain("fremdefirma.de"))
}

func TestOwn_NilSafe(t *testing.T) {
	var own *Own
	assert.False(t, own.IsOwnVATID("DE123456789"))
	assert.False(t, own.IsOwnIBAN("DE02120300000000202051"))
	assert.False(t, own.IsOwnDomain("example.de"))
}

func TestOwn_EmptyVATIDNeverMatches(t *testing.T) {
	own := New("", nil, nil)
	assert.False(t, own.IsOwnVATID(""))
}

package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenHashIsDeterministicAndKeyedByInput(t *testing.T) {
	collection := HexToAddress("0x1111111111111111111111111111111111111111")
	var id [32]byte
	id[31] = 1

	h1 := TokenHash(collection, id)
	assert.Equal(t, h1, TokenHash(collection, id))
	assert.False(t, h1.IsZero())

	id[31] = 2
	assert.NotEqual(t, h1, TokenHash(collection, id))

	other := HexToAddress("0x2222222222222222222222222222222222222222")
	id[31] = 1
	assert.NotEqual(t, h1, TokenHash(other, id))
}

func TestHexRoundTrips(t *testing.T) {
	a := HexToAddress("0x1234567890abcdef1234567890abcdef12345678")
	assert.Equal(t, "0x1234567890abcdef1234567890abcdef12345678", a.Hex())

	h := HexToHash("0x" + "ab" + "00000000000000000000000000000000000000000000000000000000000000")
	assert.Equal(t, byte(0xab), h[0])
	assert.Equal(t, a, HexToAddress(a.Hex()))
}

func TestScanValueRoundTripsBytea(t *testing.T) {
	a := HexToAddress("0x1234567890abcdef1234567890abcdef12345678")
	v, err := a.Value()
	require.NoError(t, err)

	var back Address
	require.NoError(t, back.Scan(v))
	assert.Equal(t, a, back)

	require.Error(t, back.Scan("not bytes"))

	h := HexToHash("0x" + "cd" + "00000000000000000000000000000000000000000000000000000000000000")
	hv, err := h.Value()
	require.NoError(t, err)
	var hBack Hash
	require.NoError(t, hBack.Scan(hv))
	assert.Equal(t, h, hBack)
}

func TestSortAddressesReturnsAscendingCopy(t *testing.T) {
	a := HexToAddress("0x0a00000000000000000000000000000000000000")
	b := HexToAddress("0x0b00000000000000000000000000000000000000")
	c := HexToAddress("0x0c00000000000000000000000000000000000000")

	in := []Address{c, a, b}
	out := SortAddresses(in)
	assert.Equal(t, []Address{a, b, c}, out)
	// input untouched
	assert.Equal(t, []Address{c, a, b}, in)
}

package chainclient

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttc-protocol/ttc-monitor/common"
)

// word32 renders v (a hex string, left- or right-padded as given) as one
// 32-byte ABI word.
func word32(t *testing.T, hexStr string) []byte {
	t.Helper()
	b, err := hex.DecodeString(hexStr)
	require.NoError(t, err)
	require.LessOrEqual(t, len(b), word)
	out := make([]byte, word)
	copy(out[word-len(b):], b)
	return out
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestDecodeDepositedTokensSingleEntry(t *testing.T) {
	collection := strings.Repeat("00", 12) + "1111111111111111111111111111111111111111"
	owner := strings.Repeat("00", 12) + "2222222222222222222222222222222222222222"

	data := concat(
		word32(t, "20"), // offset to array = 32
		word32(t, "01"), // length = 1
		word32(t, collection),
		word32(t, "09"), // tokenID = 9
		word32(t, owner),
	)

	tokens, err := decodeDepositedTokens(data)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, common.HexToAddress("0x1111111111111111111111111111111111111111"), tokens[0].Collection)
	assert.Equal(t, common.HexToAddress("0x2222222222222222222222222222222222222222"), tokens[0].Owner)
	assert.Equal(t, byte(9), tokens[0].TokenID[31])
}

func TestDecodePreferencesSingleEntryWithTwoPrefs(t *testing.T) {
	owner := strings.Repeat("00", 12) + "3333333333333333333333333333333333333333"
	hashA := strings.Repeat("aa", 32)
	prefHash1 := strings.Repeat("cc", 32)
	prefHash2 := strings.Repeat("dd", 32)

	// Tuple layout: tokenHash(32), owner(32), prefsOffset(32), then at
	// prefsOffset: length(32), pref0(32), pref1(32).
	tuple := concat(
		word32(t, hashA),
		word32(t, owner),
		word32(t, "60"), // prefs offset = 96, relative to tuple start
		word32(t, "02"), // length = 2
		word32(t, prefHash1),
		word32(t, prefHash2),
	)

	data := concat(
		word32(t, "20"), // offset to outer array
		word32(t, "01"), // length = 1
		word32(t, "20"), // element 0's offset, relative to elems start
		tuple,
	)

	entries, err := decodePreferences(data)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, common.HexToHash("0x"+hashA), entries[0].TokenHash)
	assert.Equal(t, common.HexToAddress("0x3333333333333333333333333333333333333333"), entries[0].Owner)
	require.Len(t, entries[0].Preferences, 2)
	assert.Equal(t, common.HexToHash("0x"+prefHash1), entries[0].Preferences[0])
	assert.Equal(t, common.HexToHash("0x"+prefHash2), entries[0].Preferences[1])
}

func TestParseQuantityEmptyIsZero(t *testing.T) {
	n, err := parseQuantity("0x")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n)
}

func TestParseQuantityDecodesHex(t *testing.T) {
	n, err := parseQuantity("0x2a")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), n)
}

func TestBlockTagHexRendersMinimalHex(t *testing.T) {
	assert.Equal(t, "0x2a", BlockTagHex(42))
}

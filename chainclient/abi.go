package chainclient

import (
	"encoding/binary"
	"math/big"

	"github.com/ttc-protocol/ttc-monitor/common"
	"github.com/ttc-protocol/ttc-monitor/ttcerr"
)

const word = 32

// This file hand-decodes the handful of Solidity ABI shapes this
// module's view functions return. A general-purpose ABI package would
// cover them, but the set of return types here is small and fixed, so
// they are decoded directly against the ABI encoding rules instead.

func parseQuantity(hexStr string) (uint64, error) {
	b := common.FromHex(hexStr)
	if len(b) == 0 {
		return 0, nil
	}
	n := new(big.Int).SetBytes(b)
	if !n.IsUint64() {
		return 0, ttcerr.New(ttcerr.InvalidInput, ttcerr.TagChainUnreachable, hexStr, "quantity overflows uint64")
	}
	return n.Uint64(), nil
}

func decodeUint64(data []byte) (uint64, error) {
	if len(data) < word {
		return 0, ttcerr.New(ttcerr.Transient, ttcerr.TagChainUnreachable, "", "truncated uint64 return value")
	}
	n := new(big.Int).SetBytes(data[:word])
	if !n.IsUint64() {
		return 0, ttcerr.New(ttcerr.InvalidInput, ttcerr.TagChainUnreachable, "", "value overflows uint64")
	}
	return n.Uint64(), nil
}

func readUint64At(data []byte, offset int) (uint64, error) {
	if offset < 0 || offset+word > len(data) {
		return 0, ttcerr.New(ttcerr.Transient, ttcerr.TagChainUnreachable, "", "ABI offset out of range")
	}
	return decodeUint64(data[offset : offset+word])
}

func readAddressAt(data []byte, offset int) (common.Address, error) {
	if offset < 0 || offset+word > len(data) {
		return common.Address{}, ttcerr.New(ttcerr.Transient, ttcerr.TagChainUnreachable, "", "ABI offset out of range")
	}
	return common.BytesToAddress(data[offset+word-common.AddressLength : offset+word]), nil
}

func readHashAt(data []byte, offset int) (common.Hash, error) {
	if offset < 0 || offset+word > len(data) {
		return common.Hash{}, ttcerr.New(ttcerr.Transient, ttcerr.TagChainUnreachable, "", "ABI offset out of range")
	}
	return common.BytesToHash(data[offset : offset+word]), nil
}

// decodeDepositedTokens decodes a DepositedToken[] return value where
// every element is statically sized (address, uint256, address), so the
// array is encoded inline: [offset][length][elem0][elem1]...
func decodeDepositedTokens(data []byte) ([]DepositedToken, error) {
	arrOff, err := readUint64At(data, 0)
	if err != nil {
		return nil, err
	}
	base := int(arrOff)
	length, err := readUint64At(data, base)
	if err != nil {
		return nil, err
	}

	const elemWords = 3
	out := make([]DepositedToken, 0, length)
	elemsStart := base + word
	for i := uint64(0); i < length; i++ {
		elemOff := elemsStart + int(i)*elemWords*word

		collection, err := readAddressAt(data, elemOff)
		if err != nil {
			return nil, err
		}
		tokenIDWord, err := readHashAt(data, elemOff+word)
		if err != nil {
			return nil, err
		}
		owner, err := readAddressAt(data, elemOff+2*word)
		if err != nil {
			return nil, err
		}

		out = append(out, DepositedToken{
			Collection: collection,
			TokenID:    [32]byte(tokenIDWord),
			Owner:      owner,
		})
	}
	return out, nil
}

// decodePreferences decodes a PreferenceEntry[] return value. Each entry
// is a dynamic tuple (it embeds a dynamic bytes32[] array), so the outer
// array holds per-element offsets rather than inline data, per the
// standard ABI "head/tail" encoding for dynamic types.
func decodePreferences(data []byte) ([]PreferenceEntry, error) {
	arrOff, err := readUint64At(data, 0)
	if err != nil {
		return nil, err
	}
	base := int(arrOff)
	length, err := readUint64At(data, base)
	if err != nil {
		return nil, err
	}
	elemsStart := base + word

	out := make([]PreferenceEntry, 0, length)
	for i := uint64(0); i < length; i++ {
		relOff, err := readUint64At(data, elemsStart+int(i)*word)
		if err != nil {
			return nil, err
		}
		tupleStart := elemsStart + int(relOff)

		tokenHash, err := readHashAt(data, tupleStart)
		if err != nil {
			return nil, err
		}
		owner, err := readAddressAt(data, tupleStart+word)
		if err != nil {
			return nil, err
		}
		prefsRelOff, err := readUint64At(data, tupleStart+2*word)
		if err != nil {
			return nil, err
		}

		prefsStart := tupleStart + int(prefsRelOff)
		prefsLen, err := readUint64At(data, prefsStart)
		if err != nil {
			return nil, err
		}
		prefs := make([]common.Hash, 0, prefsLen)
		for j := uint64(0); j < prefsLen; j++ {
			h, err := readHashAt(data, prefsStart+word+int(j)*word)
			if err != nil {
				return nil, err
			}
			prefs = append(prefs, h)
		}

		out = append(out, PreferenceEntry{
			TokenHash:   tokenHash,
			Owner:       owner,
			Preferences: prefs,
		})
	}
	return out, nil
}

// BlockTagHex renders a block number as the quantity-hex string
// eth_call's pinned-block parameter expects.
func BlockTagHex(block uint64) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], block)
	n := new(big.Int).SetBytes(buf[:])
	return "0x" + n.Text(16)
}

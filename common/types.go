// Copyright 2018 The go-klaytn Authors
// This file is part of the go-klaytn library.
//
// The go-klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-klaytn library. If not, see <http://www.gnu.org/licenses/>.

package common

import (
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/crypto/sha3"
)

const (
	AddressLength = 20
	HashLength    = 32
)

// Address is a 20-byte Ethereum account or contract address.
type Address [AddressLength]byte

// Hash is a 32-byte value; within this module it is used exclusively as a
// token hash H = keccak256(collection_address || token_id).
type Hash [HashLength]byte

func BytesToAddress(b []byte) Address {
	var a Address
	copyRight(a[:], b)
	return a
}

func BytesToHash(b []byte) Hash {
	var h Hash
	copyRight(h[:], b)
	return h
}

func HexToAddress(s string) Address { return BytesToAddress(fromHex(s)) }
func HexToHash(s string) Hash       { return BytesToHash(fromHex(s)) }

// FromHex decodes a 0x-prefixed (or bare) hex string to bytes, used for
// decoding eth_call return data and ABI-encoded parameters.
func FromHex(s string) []byte { return fromHex(s) }

func copyRight(dst, src []byte) {
	if len(src) > len(dst) {
		src = src[len(src)-len(dst):]
	}
	copy(dst[len(dst)-len(src):], src)
}

func fromHex(s string) []byte {
	if len(s) >= 2 && (s[0:2] == "0x" || s[0:2] == "0X") {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, _ := hex.DecodeString(s)
	return b
}

func (a Address) Bytes() []byte { return a[:] }
func (h Hash) Bytes() []byte    { return h[:] }

func (a Address) Hex() string { return "0x" + hex.EncodeToString(a[:]) }
func (h Hash) Hex() string    { return "0x" + hex.EncodeToString(h[:]) }

func (a Address) String() string { return a.Hex() }
func (h Hash) String() string    { return h.Hex() }

func (a Address) IsZero() bool { return a == Address{} }
func (h Hash) IsZero() bool    { return h == Hash{} }

func (a Address) MarshalJSON() ([]byte, error) { return json.Marshal(a.Hex()) }
func (h Hash) MarshalJSON() ([]byte, error) { return json.Marshal(h.Hex()) }

func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*a = HexToAddress(s)
	return nil
}

func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*h = HexToHash(s)
	return nil
}

// Value/Scan let pgx bind Address/Hash directly to bytea columns.
func (a Address) Value() (driver.Value, error) { return a.Bytes(), nil }
func (h Hash) Value() (driver.Value, error)    { return h.Bytes(), nil }

func (a *Address) Scan(src interface{}) error {
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("common: cannot scan %T into Address", src)
	}
	*a = BytesToAddress(b)
	return nil
}

func (h *Hash) Scan(src interface{}) error {
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("common: cannot scan %T into Hash", src)
	}
	*h = BytesToHash(b)
	return nil
}

// TokenHash computes H = keccak256(collection ++ tokenID), the sole
// token identifier used across the solver, the job store, and the proof.
func TokenHash(collection Address, tokenID [32]byte) Hash {
	d := sha3.NewLegacyKeccak256()
	d.Write(collection.Bytes())
	d.Write(tokenID[:])
	return BytesToHash(d.Sum(nil))
}

// SortAddresses returns a new, ascending-sorted copy of addrs. Used wherever
// the output must not depend on map iteration order.
func SortAddresses(addrs []Address) []Address {
	out := make([]Address, len(addrs))
	copy(out, addrs)
	sort.Slice(out, func(i, j int) bool {
		return compareBytes(out[i][:], out[j][:]) < 0
	})
	return out
}

func compareBytes(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return len(a) - len(b)
}

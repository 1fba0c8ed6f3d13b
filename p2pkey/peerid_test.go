// Copyright 2024 The ethsentry Authors
// This file is part of the ethsentry library.
//
// The ethsentry library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The ethsentry library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the ethsentry library. If not, see <http://www.gnu.org/licenses/>.

package p2pkey

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripKey(t *testing.T) {
	sk, err := crypto.GenerateKey()
	require.NoError(t, err)

	id := FromECDSA(&sk.PublicKey)
	pub, err := ToECDSA(id)
	require.NoError(t, err)

	assert.Equal(t, sk.PublicKey, *pub)
}

func TestToECDSARejectsOffCurve(t *testing.T) {
	var garbage PubKey
	for i := range garbage {
		garbage[i] = 0xff
	}
	_, err := ToECDSA(garbage)
	assert.Error(t, err)
}

func TestParseRoundTrip(t *testing.T) {
	sk, err := crypto.GenerateKey()
	require.NoError(t, err)

	want := NodeRecord{IP: []byte{127, 0, 0, 1}, Port: 30303, ID: FromECDSA(&sk.PublicKey)}
	got, err := Parse(want.String())
	require.NoError(t, err)

	assert.Equal(t, want.Port, got.Port)
	assert.Equal(t, want.ID, got.ID)
	assert.True(t, want.IP.Equal(got.IP))
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"enode://deadbeef@127.0.0.1:30303",          // too short
		"enode://" + string(make([]byte, 128)) + "@127.0.0.1:30303", // not hex
		"not-an-enode-uri",
		"enode://" + repeatHex("ab", 64) + "@127.0.0.1:notaport",
	}
	for _, c := range cases {
		_, err := Parse(c)
		assert.ErrorIs(t, err, ErrMalformedEnode, "input %q should fail to parse", c)
	}
}

func repeatHex(pair string, n int) string {
	out := make([]byte, 0, len(pair)*n)
	for i := 0; i < n; i++ {
		out = append(out, pair...)
	}
	return string(out)
}

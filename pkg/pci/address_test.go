// SPDX-FileCopyrightText: 2025 Clyso GmbH
//
// SPDX-License-Identifier: Apache-2.0

package pci

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in   string
		want Address
	}{
		{"0000:02:00.0", Address{Domain: 0, Bus: 0x02, Device: 0x00, Function: 0}},
		{"0000:00:1d.4", Address{Domain: 0, Bus: 0x00, Device: 0x1d, Function: 4}},
		{"02:00.0", Address{Domain: 0, Bus: 0x02, Device: 0x00, Function: 0}},
		{"10002:ab:1f.7", Address{Domain: 0x10002, Bus: 0xab, Device: 0x1f, Function: 7}},
		// Separator before the function may be a colon too.
		{"0000:00:1d:4", Address{Domain: 0, Bus: 0x00, Device: 0x1d, Function: 4}},
	}
	for _, tt := range tests {
		got, err := ParseAddress(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseAddressInvalid(t *testing.T) {
	for _, in := range []string{
		"",
		"zz:00.0",
		"0000:00:20.0", // device number above 0x1f
		"0000:00:1d.8", // function above 7
		"00:1d",
		"/sys/bus/pci/devices",
	} {
		_, err := ParseAddress(in)
		assert.Error(t, err, in)
	}
}

func TestAddressString(t *testing.T) {
	a, err := ParseAddress("02:00.0")
	require.NoError(t, err)
	assert.Equal(t, "0000:02:00.0", a.String())
	assert.Equal(t, "02:00.0", a.Short())

	b, err := ParseAddress("0001:02:00.0")
	require.NoError(t, err)
	// Shortening would be ambiguous outside domain zero.
	assert.Equal(t, "0001:02:00.0", b.Short())
}

func TestAddressOrdering(t *testing.T) {
	addrs := []Address{
		{Domain: 0, Bus: 2, Device: 0, Function: 1},
		{Domain: 1, Bus: 0, Device: 0, Function: 0},
		{Domain: 0, Bus: 0, Device: 0x1d, Function: 4},
		{Domain: 0, Bus: 2, Device: 0, Function: 0},
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Less(addrs[j]) })
	got := make([]string, len(addrs))
	for i, a := range addrs {
		got[i] = a.String()
	}
	assert.Equal(t, []string{
		"0000:00:1d.4",
		"0000:02:00.0",
		"0000:02:00.1",
		"0001:00:00.0",
	}, got)
}

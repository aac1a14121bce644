// Copyright 2026 The Loomhaven Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Loom is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Loom. If not, see <http://www.gnu.org/licenses/>.

package value_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loomhaven/loom/internal/value"
)

// TestMappingLiteralSetDelete: build from a literal, add, probe
// membership, delete, and re-count keys.
func TestMappingLiteralSetDelete(t *testing.T) {
	m := value.NewMapping(
		[]value.Value{value.String("a"), value.String("b")},
		[]value.Value{value.Int(1), value.Int(2)},
	)
	m.Set(value.String("c"), value.Int(3))
	require.Len(t, m.Keys(), 3)

	got := m.Member(value.String("b"))
	require.True(t, got.Equal(value.Int(2)))

	require.True(t, m.Delete(value.String("a")))
	require.Len(t, m.Keys(), 2)
}

func TestMappingSizeMatchesChainLengths(t *testing.T) {
	m := value.EmptyMapping()
	for i := int64(0); i < 200; i++ {
		m.Set(value.Int(i), value.Int(i*i))
	}
	sum := 0
	for _, l := range m.ChainLengths() {
		sum += l
	}
	require.Equal(t, m.Size(), sum)

	for i := int64(0); i < 200; i++ {
		v, ok := m.Get(value.Int(i))
		require.True(t, ok)
		require.Equal(t, i*i, v.Int())
	}
}

func TestMappingReadAfterSetDeleteSequence(t *testing.T) {
	m := value.EmptyMapping()
	m.Set(value.String("k"), value.Int(1))
	m.Set(value.String("k"), value.Int(2))
	v, ok := m.Get(value.String("k"))
	require.True(t, ok)
	require.Equal(t, int64(2), v.Int())

	m.Delete(value.String("k"))
	_, ok = m.Get(value.String("k"))
	require.False(t, ok)
}

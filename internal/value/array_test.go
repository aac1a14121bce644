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

// TestArrayGrowthWithinDeclaredBound: writing past the current size
// but under the declared bound grows the array, zero-filling the gap.
func TestArrayGrowthWithinDeclaredBound(t *testing.T) {
	a := value.NewArray([]value.Value{value.Int(10), value.Int(20), value.Int(30)}, value.Unlimited)
	require.Equal(t, int64(3), a.Size())

	require.NoError(t, a.Set(5, value.Int(99)))
	require.Equal(t, int64(6), a.Size())

	v3, err := a.Get(3)
	require.NoError(t, err)
	require.Equal(t, int64(0), v3.Int())

	v4, err := a.Get(4)
	require.NoError(t, err)
	require.Equal(t, int64(0), v4.Int())

	v5, err := a.Get(5)
	require.NoError(t, err)
	require.Equal(t, int64(99), v5.Int())
}

func TestArrayFixedMaxSizeRejectsOutOfRangeWrites(t *testing.T) {
	a := value.NewArray(nil, 4)
	require.NoError(t, a.Set(3, value.Int(1)))
	require.Equal(t, int64(4), a.Size())

	err := a.Set(4, value.Int(2))
	require.ErrorIs(t, err, value.ErrFixedSize)
	require.Equal(t, int64(4), a.Size())
}

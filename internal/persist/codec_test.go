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

package persist_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loomhaven/loom/internal/persist"
	"github.com/loomhaven/loom/internal/value"
)

// TestValueCodecRoundTrip exercises the same composite shapes
// the textual form covers: integers, strings, arrays, and mappings,
// nested.
func TestValueCodecRoundTrip(t *testing.T) {
	arr := value.NewArray([]value.Value{value.Int(10), value.Int(20), value.Int(30)}, 10)
	mp := value.NewMapping([]value.Value{value.String("a"), value.String("b")}, []value.Value{value.Int(1), value.ArrayVal(arr)})
	globals := []value.Value{
		value.Int(-7),
		value.String("hello\nworld"),
		value.Object(value.Handle(42)),
		value.ArrayVal(arr),
		value.MappingVal(mp),
	}

	codec := persist.ValueCodec{}
	encoded, err := codec.Encode(globals)
	require.NoError(t, err)

	decoded, err := codec.Decode(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, len(globals))

	require.Equal(t, int64(-7), decoded[0].Int())
	require.Equal(t, "hello\nworld", decoded[1].Str())
	require.Equal(t, value.Handle(42), decoded[2].ObjectHandle())
	require.Equal(t, int64(3), decoded[3].Array().Size())
	require.Equal(t, int64(10), decoded[3].Array().MaxSize())
	got, ok := decoded[4].Mapping().Get(value.String("a"))
	require.True(t, ok)
	require.Equal(t, int64(1), got.Int())
	nested, ok := decoded[4].Mapping().Get(value.String("b"))
	require.True(t, ok)
	require.Equal(t, int64(3), nested.Array().Size())
}

// TestSaveValueRestoreValueRoundTrip is the textual round-trip of a
// mapping holding a mixed int/string array; the "#refno:path" object
// form is covered by TestSaveValueObjectHandleForm.
func TestSaveValueRestoreValueRoundTrip(t *testing.T) {
	arr := value.NewArray([]value.Value{value.Int(1), value.String("x")}, value.Unlimited)
	mp := value.NewMapping([]value.Value{value.Int(5)}, []value.Value{value.String("five")})
	v := value.MappingVal(value.NewMapping(
		[]value.Value{value.String("n")},
		[]value.Value{value.ArrayVal(arr)},
	))
	_ = mp

	s, err := persist.SaveValue(v, nil)
	require.NoError(t, err)

	back, err := persist.RestoreValue(s, nil)
	require.NoError(t, err)

	got, ok := back.Mapping().Get(value.String("n"))
	require.True(t, ok)
	require.Equal(t, int64(2), got.Array().Size())
	e0, _ := got.Array().Get(0)
	require.Equal(t, int64(1), e0.Int())
	e1, _ := got.Array().Get(1)
	require.Equal(t, "x", e1.Str())
}

func TestSaveValueObjectHandleForm(t *testing.T) {
	s, err := persist.SaveValue(value.Object(value.Handle(7)), nil)
	require.NoError(t, err)
	require.Equal(t, "#7:", s)

	back, err := persist.RestoreValue(s, nil)
	require.NoError(t, err)
	require.Equal(t, value.Handle(7), back.ObjectHandle())
}

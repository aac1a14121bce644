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

// Package persist implements the cache/persistence layer: the
// transaction log, the monolithic checkpoint, and the value codec both
// depend on to turn a resident object's globals into durable bytes.
package persist

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/loomhaven/loom/internal/value"
)

type tag byte

const (
	tagInt tag = iota
	tagString
	tagObject
	tagArray
	tagMapping
)

// ValueCodec is the binary encode/decode internal/cache needs to page a
// dirty object's globals out to the transaction log and back; it
// implements cache.Codec without cache importing
// persist, keeping the dependency pointed the other way (persist also
// needs to push restored payloads back into cache residency).
type ValueCodec struct{}

// Encode serializes a globals vector depth-first: arrays and mappings
// recurse into their own elements, matching the recursive structure
// save_value/restore_value (valuestring.go) present to mudlib code.
func (ValueCodec) Encode(globals []value.Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(globals))); err != nil {
		return nil, err
	}
	for _, g := range globals {
		if err := writeValue(&buf, g); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func (ValueCodec) Decode(data []byte) ([]value.Value, error) {
	r := bytes.NewReader(data)
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	out := make([]value.Value, n)
	for i := range out {
		v, err := readValue(r)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func writeValue(buf *bytes.Buffer, v value.Value) error {
	switch v.Kind() {
	case value.KindInt:
		buf.WriteByte(byte(tagInt))
		return binary.Write(buf, binary.LittleEndian, v.Int())
	case value.KindString:
		buf.WriteByte(byte(tagString))
		return writeString(buf, v.Str())
	case value.KindObject:
		buf.WriteByte(byte(tagObject))
		return binary.Write(buf, binary.LittleEndian, int32(v.ObjectHandle()))
	case value.KindArray:
		buf.WriteByte(byte(tagArray))
		arr := v.Array()
		elems := arr.Slice()
		if err := binary.Write(buf, binary.LittleEndian, arr.MaxSize()); err != nil {
			return err
		}
		if err := binary.Write(buf, binary.LittleEndian, uint32(len(elems))); err != nil {
			return err
		}
		for _, e := range elems {
			if err := writeValue(buf, e); err != nil {
				return err
			}
		}
		return nil
	case value.KindMapping:
		buf.WriteByte(byte(tagMapping))
		mp := v.Mapping()
		keys := mp.Keys()
		if err := binary.Write(buf, binary.LittleEndian, uint32(len(keys))); err != nil {
			return err
		}
		for _, k := range keys {
			val, _ := mp.Get(k)
			if err := writeValue(buf, k); err != nil {
				return err
			}
			if err := writeValue(buf, val); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("persist: %s is not a storable global", v.Kind())
	}
}

func writeString(buf *bytes.Buffer, s string) error {
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := buf.WriteString(s)
	return err
}

func readString(r *bytes.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func readValue(r *bytes.Reader) (value.Value, error) {
	t, err := r.ReadByte()
	if err != nil {
		return value.Value{}, err
	}
	switch tag(t) {
	case tagInt:
		var i int64
		if err := binary.Read(r, binary.LittleEndian, &i); err != nil {
			return value.Value{}, err
		}
		return value.Int(i), nil
	case tagString:
		s, err := readString(r)
		if err != nil {
			return value.Value{}, err
		}
		return value.String(s), nil
	case tagObject:
		var h int32
		if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
			return value.Value{}, err
		}
		return value.Object(value.Handle(h)), nil
	case tagArray:
		var maxSize int64
		if err := binary.Read(r, binary.LittleEndian, &maxSize); err != nil {
			return value.Value{}, err
		}
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return value.Value{}, err
		}
		elems := make([]value.Value, n)
		for i := range elems {
			v, err := readValue(r)
			if err != nil {
				return value.Value{}, err
			}
			elems[i] = v
		}
		return value.ArrayVal(value.NewArray(elems, maxSize)), nil
	case tagMapping:
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return value.Value{}, err
		}
		keys := make([]value.Value, n)
		vals := make([]value.Value, n)
		for i := uint32(0); i < n; i++ {
			k, err := readValue(r)
			if err != nil {
				return value.Value{}, err
			}
			v, err := readValue(r)
			if err != nil {
				return value.Value{}, err
			}
			keys[i] = k
			vals[i] = v
		}
		return value.MappingVal(value.NewMapping(keys, vals)), nil
	default:
		return value.Value{}, fmt.Errorf("persist: unknown value tag %d", t)
	}
}

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

package persist

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/loomhaven/loom/internal/object"
	"github.com/loomhaven/loom/internal/value"
)

// SaveValue renders v as the literal save_value/restore_value round-trips
// through the persistence builtins: integers and
// strings print as LPC literals, arrays as `({... })`, mappings as
// `([... ])`, and object handles as `#refno:path` so restore_value can
// resolve the handle via store without carrying a live pointer in the
// string. store may be nil when v is known not to contain an object
// reference.
func SaveValue(v value.Value, store *object.Store) (string, error) {
	var b strings.Builder
	if err := writeLiteral(&b, v, store); err != nil {
		return "", err
	}
	return b.String(), nil
}

func writeLiteral(b *strings.Builder, v value.Value, store *object.Store) error {
	switch v.Kind() {
	case value.KindInt:
		b.WriteString(strconv.FormatInt(v.Int(), 10))
		return nil
	case value.KindString:
		b.WriteString(quoteString(v.Str()))
		return nil
	case value.KindObject:
		h := v.ObjectHandle()
		path := ""
		if store != nil {
			if obj, ok := store.Get(h); ok && obj.Proto != nil {
				path = obj.Proto.Path
			}
		}
		fmt.Fprintf(b, "#%d:%s", h, path)
		return nil
	case value.KindArray:
		b.WriteString("({")
		elems := v.Array().Slice()
		for i, e := range elems {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeLiteral(b, e, store); err != nil {
				return err
			}
		}
		b.WriteString("})")
		return nil
	case value.KindMapping:
		b.WriteString("([")
		for i, k := range v.Mapping().Keys() {
			if i > 0 {
				b.WriteByte(',')
			}
			val, _ := v.Mapping().Get(k)
			if err := writeLiteral(b, k, store); err != nil {
				return err
			}
			b.WriteByte(':')
			if err := writeLiteral(b, val, store); err != nil {
				return err
			}
		}
		b.WriteString("])")
		return nil
	default:
		return fmt.Errorf("persist: %s has no save_value literal form", v.Kind())
	}
}

func quoteString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// RestoreValue parses a string produced by SaveValue back into a Value.
// A `#refno:path` object literal yields its refno as the handle
// verbatim; store is not consulted, so neither liveness nor the path
// is checked, and a nil store is accepted.
func RestoreValue(s string, store *object.Store) (value.Value, error) {
	p := &valueParser{src: s}
	v, err := p.parseValue()
	if err != nil {
		return value.Value{}, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return value.Value{}, fmt.Errorf("persist: trailing input at offset %d in restore_value", p.pos)
	}
	_ = store // object literals carry their handle verbatim; store is for future validity checks
	return v, nil
}

type valueParser struct {
	src string
	pos int
}

func (p *valueParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t' || p.src[p.pos] == '\n') {
		p.pos++
	}
}

func (p *valueParser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *valueParser) expect(c byte) error {
	if p.peek() != c {
		return fmt.Errorf("persist: restore_value expected %q at offset %d", c, p.pos)
	}
	p.pos++
	return nil
}

func (p *valueParser) parseValue() (value.Value, error) {
	p.skipSpace()
	switch {
	case p.peek() == '"':
		return p.parseString()
	case p.peek() == '#':
		return p.parseObject()
	case strings.HasPrefix(p.src[p.pos:], "({"):
		return p.parseArray()
	case strings.HasPrefix(p.src[p.pos:], "(["):
		return p.parseMapping()
	case p.peek() == '-' || isDigit(p.peek()):
		return p.parseInt()
	default:
		return value.Value{}, fmt.Errorf("persist: restore_value unrecognized literal at offset %d", p.pos)
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (p *valueParser) parseInt() (value.Value, error) {
	start := p.pos
	if p.peek() == '-' {
		p.pos++
	}
	for isDigit(p.peek()) {
		p.pos++
	}
	n, err := strconv.ParseInt(p.src[start:p.pos], 10, 64)
	if err != nil {
		return value.Value{}, fmt.Errorf("persist: restore_value bad integer literal: %w", err)
	}
	return value.Int(n), nil
}

func (p *valueParser) parseString() (value.Value, error) {
	if err := p.expect('"'); err != nil {
		return value.Value{}, err
	}
	var b strings.Builder
	for {
		if p.pos >= len(p.src) {
			return value.Value{}, fmt.Errorf("persist: restore_value unterminated string literal")
		}
		c := p.src[p.pos]
		if c == '"' {
			p.pos++
			break
		}
		if c == '\\' && p.pos+1 < len(p.src) {
			p.pos++
			switch p.src[p.pos] {
			case 'n':
				b.WriteByte('\n')
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			default:
				b.WriteByte(p.src[p.pos])
			}
			p.pos++
			continue
		}
		b.WriteByte(c)
		p.pos++
	}
	return value.String(b.String()), nil
}

func (p *valueParser) parseObject() (value.Value, error) {
	if err := p.expect('#'); err != nil {
		return value.Value{}, err
	}
	start := p.pos
	for isDigit(p.peek()) {
		p.pos++
	}
	h, err := strconv.ParseInt(p.src[start:p.pos], 10, 32)
	if err != nil {
		return value.Value{}, fmt.Errorf("persist: restore_value bad object refno: %w", err)
	}
	if err := p.expect(':'); err != nil {
		return value.Value{}, err
	}
	for p.pos < len(p.src) && p.src[p.pos] != ',' && p.src[p.pos] != ')' && p.src[p.pos] != ']' {
		p.pos++
	}
	return value.Object(value.Handle(h)), nil
}

func (p *valueParser) parseArray() (value.Value, error) {
	p.pos += 2 // "({"
	var elems []value.Value
	p.skipSpace()
	for p.peek() != '}' {
		v, err := p.parseValue()
		if err != nil {
			return value.Value{}, err
		}
		elems = append(elems, v)
		p.skipSpace()
		if p.peek() == ',' {
			p.pos++
			p.skipSpace()
		}
	}
	p.pos++ // '}'
	if err := p.expect(')'); err != nil {
		return value.Value{}, err
	}
	return value.ArrayVal(value.NewArray(elems, value.Unlimited)), nil
}

func (p *valueParser) parseMapping() (value.Value, error) {
	p.pos += 2 // "(["
	var keys, vals []value.Value
	p.skipSpace()
	for p.peek() != ']' {
		k, err := p.parseValue()
		if err != nil {
			return value.Value{}, err
		}
		p.skipSpace()
		if err := p.expect(':'); err != nil {
			return value.Value{}, err
		}
		v, err := p.parseValue()
		if err != nil {
			return value.Value{}, err
		}
		keys = append(keys, k)
		vals = append(vals, v)
		p.skipSpace()
		if p.peek() == ',' {
			p.pos++
			p.skipSpace()
		}
	}
	p.pos++ // ']'
	if err := p.expect(')'); err != nil {
		return value.Value{}, err
	}
	return value.MappingVal(value.NewMapping(keys, vals)), nil
}

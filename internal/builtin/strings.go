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

package builtin

import (
	"fmt"
	"strings"

	"github.com/loomhaven/loom/internal/value"
	"github.com/loomhaven/loom/internal/vm"
)

func registerStrings(t *Table) {
	t.register("midstr", biMidstr)
	t.register("leftstr", biLeftstr)
	t.register("rightstr", biRightstr)
	t.register("strlen", biStrlen)
	t.register("subst", biSubst)
	t.register("instr", biInstr)
	t.register("upcase", biUpcase)
	t.register("downcase", biDowncase)
	t.register("chr", biChr)
	t.register("asc", biAsc)
	t.register("implode", biImplode)
	t.register("explode", biExplode)
	t.register("sprintf", biSprintf)
	t.register("sscanf", biSscanf)
	t.register("replace_string", biReplaceString)
}

func biMidstr(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	s := []rune(arg(args, 0).Str())
	start := int(arg(args, 1).Int())
	length := int(arg(args, 2).Int())
	if start < 0 || start >= len(s) || length <= 0 {
		return value.String(""), nil
	}
	end := start + length
	if end > len(s) {
		end = len(s)
	}
	return value.String(string(s[start:end])), nil
}

func biLeftstr(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	s := []rune(arg(args, 0).Str())
	n := int(arg(args, 1).Int())
	if n < 0 {
		n = 0
	}
	if n > len(s) {
		n = len(s)
	}
	return value.String(string(s[:n])), nil
}

func biRightstr(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	s := []rune(arg(args, 0).Str())
	n := int(arg(args, 1).Int())
	if n < 0 {
		n = 0
	}
	if n > len(s) {
		n = len(s)
	}
	return value.String(string(s[len(s)-n:])), nil
}

func biStrlen(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	return value.Int(int64(len([]rune(arg(args, 0).Str())))), nil
}

// biSubst replaces the first occurrence of old with replacement,
// distinguishing it from replace_string's replace-all.
func biSubst(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	s, old, repl := arg(args, 0).Str(), arg(args, 1).Str(), arg(args, 2).Str()
	idx := strings.Index(s, old)
	if idx < 0 {
		return value.String(s), nil
	}
	return value.String(s[:idx] + repl + s[idx+len(old):]), nil
}

func biInstr(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	s, sub := arg(args, 0).Str(), arg(args, 1).Str()
	start := int(arg(args, 2).Int())
	if start < 0 {
		start = 0
	}
	if start > len(s) {
		return value.Int(-1), nil
	}
	idx := strings.Index(s[start:], sub)
	if idx < 0 {
		return value.Int(-1), nil
	}
	return value.Int(int64(start + idx)), nil
}

func biUpcase(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	return value.String(strings.ToUpper(arg(args, 0).Str())), nil
}

func biDowncase(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	return value.String(strings.ToLower(arg(args, 0).Str())), nil
}

func biChr(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	return value.String(string(rune(arg(args, 0).Int()))), nil
}

func biAsc(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	r := []rune(arg(args, 0).Str())
	if len(r) == 0 {
		return value.Int(0), nil
	}
	return value.Int(int64(r[0])), nil
}

func biImplode(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	a := arg(args, 0).Array()
	sep := arg(args, 1).Str()
	if a == nil {
		return value.String(""), nil
	}
	parts := make([]string, a.Size())
	for i, v := range a.Slice() {
		parts[i] = v.String()
	}
	return value.String(strings.Join(parts, sep)), nil
}

func biExplode(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	s, sep := arg(args, 0).Str(), arg(args, 1).Str()
	var parts []string
	if sep == "" {
		parts = strings.Split(s, "")
	} else {
		parts = strings.Split(s, sep)
	}
	out := make([]value.Value, len(parts))
	for i, p := range parts {
		out[i] = value.String(p)
	}
	return value.ArrayVal(value.NewArray(out, value.Unlimited)), nil
}

// biSprintf supports the common %d/%s/%%/%o/%x conversions via Go's
// fmt verbs directly, sufficient for the mudlib-facing formatting
// describes without reimplementing a printf engine from scratch.
func biSprintf(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	format := arg(args, 0).Str()
	rest := args[min(1, len(args)):]
	conv := make([]interface{}, 0, len(rest))
	goFormat := strings.Builder{}
	ai := 0
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' || i == len(format)-1 {
			goFormat.WriteByte(c)
			continue
		}
		next := format[i+1]
		switch next {
		case 'd', 'x', 'o', 'b':
			goFormat.WriteByte('%')
			goFormat.WriteByte(next)
			if ai < len(rest) {
				conv = append(conv, rest[ai].Int())
				ai++
			}
			i++
		case 's':
			goFormat.WriteString("%s")
			if ai < len(rest) {
				conv = append(conv, rest[ai].String())
				ai++
			}
			i++
		case '%':
			goFormat.WriteByte('%')
			goFormat.WriteByte('%')
			i++
		default:
			goFormat.WriteByte(c)
		}
	}
	return value.String(fmt.Sprintf(goFormat.String(), conv...)), nil
}

// biSscanf is a simplification of the classic by-reference sscanf:
// rather than writing through l-value arguments (not representable
// across the syscall boundary as currently wired, see DESIGN.md), it
// returns the matched fields as an array, leaving write-back to the
// caller's own assignment statements.
func biSscanf(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	s, format := arg(args, 0).Str(), arg(args, 1).Str()
	litParts := strings.Split(format, "%s")
	var out []value.Value
	remaining := s
	for i, lit := range litParts {
		if lit != "" {
			idx := strings.Index(remaining, lit)
			if idx < 0 {
				break
			}
			if i > 0 {
				out = append(out, value.String(remaining[:idx]))
			}
			remaining = remaining[idx+len(lit):]
		} else if i == len(litParts)-1 {
			out = append(out, value.String(remaining))
		}
	}
	return value.ArrayVal(value.NewArray(out, value.Unlimited)), nil
}

func biReplaceString(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	s, old, repl := arg(args, 0).Str(), arg(args, 1).Str(), arg(args, 2).Str()
	return value.String(strings.ReplaceAll(s, old, repl)), nil
}

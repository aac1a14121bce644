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
	"strings"

	"github.com/loomhaven/loom/internal/object"
	"github.com/loomhaven/loom/internal/value"
	"github.com/loomhaven/loom/internal/vm"
)

func registerVerbs(t *Table) {
	t.register("add_verb", biAddVerb)
	t.register("add_xverb", biAddXVerb)
	t.register("remove_verb", biRemoveVerb)
	t.register("next_verb", biNextVerb)
	t.register("command", biCommand)
	t.register("redirect_input", biRedirectInput)
	t.register("input_to", biInputTo)
	t.register("get_input_func", biGetInputFunc)
}

func biAddVerb(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	o := m.CurrentObject()
	if o == nil {
		return value.Int(0), nil
	}
	o.Verbs = append(o.Verbs, object.Verb{Word: arg(args, 0).Str(), Func: arg(args, 1).Str(), Exact: true})
	o.Dirty()
	return value.Int(1), nil
}

func biAddXVerb(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	o := m.CurrentObject()
	if o == nil {
		return value.Int(0), nil
	}
	o.Verbs = append(o.Verbs, object.Verb{Word: arg(args, 0).Str(), Func: arg(args, 1).Str(), Exact: false})
	o.Dirty()
	return value.Int(1), nil
}

func biRemoveVerb(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	o := m.CurrentObject()
	if o == nil {
		return value.Int(0), nil
	}
	word := arg(args, 0).Str()
	for i, v := range o.Verbs {
		if v.Word == word {
			o.Verbs = append(o.Verbs[:i], o.Verbs[i+1:]...)
			o.Dirty()
			return value.Int(1), nil
		}
	}
	return value.Int(0), nil
}

// biNextVerb enumerates the verb words of the object given as its first
// argument in declaration order,
// returning the one after the given word (empty string starts the
// enumeration), "" once exhausted.
func biNextVerb(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	obj, ok := m.Store.Get(objHandleOf(arg(args, 0)))
	if !ok {
		return value.String(""), nil
	}
	after := arg(args, 1).Str()
	if after == "" && len(obj.Verbs) > 0 {
		return value.String(obj.Verbs[0].Word), nil
	}
	for i, v := range obj.Verbs {
		if v.Word == after && i+1 < len(obj.Verbs) {
			return value.String(obj.Verbs[i+1].Word), nil
		}
	}
	return value.String(""), nil
}

// biCommand dispatches a typed command line against this_player's
// location itself, the other objects in that location, and
// this_player's own verbs, in that order, matching the first verb
// whose word equals the command's first token (exact) or prefixes it
// (xverb). The matched function is invoked with the remainder of the
// line as its sole argument.
func biCommand(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	player := m.CurrentPlayer()
	if player == nil {
		return value.Int(0), nil
	}
	line := arg(args, 0).Str()
	word, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	if word == "" {
		return value.Int(0), nil
	}

	var candidates []*object.Object
	if loc, ok := m.Store.Get(player.Location); ok {
		candidates = append(candidates, loc)
		for cur, ok := m.Store.Get(loc.Contents); ok; cur, ok = m.Store.Get(cur.NextObject) {
			if cur != player {
				candidates = append(candidates, cur)
			}
		}
	}
	candidates = append(candidates, player)

	for _, cand := range candidates {
		for _, v := range cand.Verbs {
			matched := (v.Exact && v.Word == word) || (!v.Exact && strings.HasPrefix(word, v.Word))
			if !matched {
				continue
			}
			fn, owner, _, ok := cand.Proto.Resolve(v.Func)
			if !ok {
				continue
			}
			result, err := m.Call(cand, player, cand, fn, owner, []value.Value{value.String(rest)})
			if err != nil {
				return value.Int(0), nil
			}
			if result.Truthy() {
				return value.Int(1), nil
			}
		}
	}
	return value.Int(0), nil
}

func biRedirectInput(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	target, ok := m.Store.Get(objHandleOf(arg(args, 0)))
	if !ok {
		return value.Int(0), nil
	}
	o := m.CurrentObject()
	if o == nil {
		return value.Int(0), nil
	}
	target.Input = &object.InputFunc{Object: o.Handle, Func: arg(args, 1).Str()}
	target.Dirty()
	return value.Int(1), nil
}

func biInputTo(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	player := m.CurrentPlayer()
	o := m.CurrentObject()
	if player == nil || o == nil {
		return value.Int(0), nil
	}
	player.Input = &object.InputFunc{Object: o.Handle, Func: arg(args, 0).Str()}
	player.Dirty()
	return value.Int(1), nil
}

func biGetInputFunc(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	obj, ok := m.Store.Get(objHandleOf(arg(args, 0)))
	if !ok || obj.Input == nil {
		return value.String(""), nil
	}
	return value.String(obj.Input.Func), nil
}

/*
Copyright 2016-2017 by Milo Christiansen

This software is provided 'as-is', without any express or implied warranty. In
no event will the authors be held liable for any damages arising from the use of
this software.

Permission is granted to anyone to use this software for any purpose, including
commercial applications, and to alter it and redistribute it freely, subject to
the following restrictions:

1. The origin of this software must not be misrepresented; you must not claim
that you wrote the original software. If you use this software in a product, an
acknowledgment in the product documentation would be appreciated but is not
required.

2. Altered source versions must be plainly marked as such, and must not be
misrepresented as being the original software.

3. This notice may not be removed or altered from any source distribution.
*/

package ast

import "sort"

// TableEntry is a single key/value pair in a table constructor.
type TableEntry struct {
	Key   Expr
	Value Expr

	// IsList is set for entries that came from a list store (SETLIST), these print without a key
	// if they are in sequence.
	IsList bool

	// Timestamp orders the entries, it is the program point the entry was stored at.
	Timestamp int
}

// Table represents a table constructor.
type Table struct {
	exprBase

	Entries []TableEntry
}

// AddEntry appends an entry. Entries may be added out of order, they are sorted on print.
func (e *Table) AddEntry(entry TableEntry) {
	e.Entries = append(e.Entries, entry)
}

// IsEmpty returns true for "{}".
func (e *Table) IsEmpty() bool {
	return len(e.Entries) == 0
}

func (e *Table) Print(out *Output) {
	if len(e.Entries) == 0 {
		out.Print("{}")
		return
	}

	entries := make([]TableEntry, len(e.Entries))
	copy(entries, e.Entries)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp < entries[j].Timestamp
	})

	list, hash := 0, 0
	brief := true
	for _, entry := range entries {
		if entry.IsList {
			list++
		} else {
			hash++
		}
		if !IsBrief(entry.Value) {
			brief = false
		}
	}

	var lineBreak bool
	switch {
	case hash == 0:
		lineBreak = list > 5
	case list == 0:
		lineBreak = hash > 2
	default:
		lineBreak = true
	}
	lineBreak = lineBreak || !brief

	out.Print("{")
	if lineBreak {
		out.Newline()
		out.Indent()
	}

	next := 1
	for i, entry := range entries {
		if i > 0 {
			out.Print(",")
			if lineBreak {
				out.Newline()
			} else {
				out.Print(" ")
			}
		}

		positional := false
		if entry.IsList {
			if c, ok := entry.Key.(*Constant); ok && c.Value.IsInteger() && c.Value.AsInteger() == int64(next) {
				positional = true
				next++
			}
		}

		if !positional {
			if name, ok := identifier(entry.Key); ok {
				out.Print(name)
			} else {
				out.Print("[")
				entry.Key.Print(out)
				out.Print("]")
			}
			out.Print(" = ")
		}

		if entry.Value.IsMultiple() {
			entry.Value.Print(out)
			break
		}
		last := i == len(entries)-1
		switch entry.Value.(type) {
		case *Call, *Vararg:
			printGrouped(out, entry.Value, last && positional)
		default:
			entry.Value.Print(out)
		}
	}

	if lineBreak {
		out.Newline()
		out.Dedent()
	}
	out.Print("}")
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package model

import "sort"

// SymbolSet is the published, complete set of merged symbols.
//
// Thread Safety: Immutable after NewSymbolSet; safe for concurrent reads.
type SymbolSet struct {
	ordered []*MergedSymbol
	byName  map[string]*MergedSymbol
}

// NewSymbolSet indexes symbols by name and orders them by name. Nil entries
// are ignored; on duplicate names the first symbol wins.
func NewSymbolSet(symbols []*MergedSymbol) *SymbolSet {
	s := &SymbolSet{
		ordered: make([]*MergedSymbol, 0, len(symbols)),
		byName:  make(map[string]*MergedSymbol, len(symbols)),
	}
	for _, sym := range symbols {
		if sym == nil {
			continue
		}
		if _, dup := s.byName[sym.Name]; dup {
			continue
		}
		s.byName[sym.Name] = sym
		s.ordered = append(s.ordered, sym)
	}
	sort.Slice(s.ordered, func(i, j int) bool { return s.ordered[i].Name < s.ordered[j].Name })
	return s
}

// Get returns the symbol named name.
func (s *SymbolSet) Get(name string) (*MergedSymbol, bool) {
	sym, ok := s.byName[name]
	return sym, ok
}

// Has reports whether name is a known symbol.
func (s *SymbolSet) Has(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// All returns the symbols in name order. The slice must not be modified.
func (s *SymbolSet) All() []*MergedSymbol {
	return s.ordered
}

// Names returns the symbol names in order.
func (s *SymbolSet) Names() []string {
	names := make([]string, len(s.ordered))
	for i, sym := range s.ordered {
		names[i] = sym.Name
	}
	return names
}

// Len returns the number of symbols.
func (s *SymbolSet) Len() int {
	return len(s.ordered)
}

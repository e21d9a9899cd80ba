// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package merge combines per-source method lists and derives attributes
// from accessor naming conventions.
//
// Both engines are pure: they take the stubs of one symbol and return new
// values without touching shared state, so the fusion stage can run them on
// many symbols in parallel.
package merge

import (
	"strings"

	"github.com/AleutianAI/AleutianOntology/services/ontology/model"
	"github.com/AleutianAI/AleutianOntology/services/ontology/normalize"
)

// CollisionPolicy resolves a stub whose key already exists in a MethodSet.
//
// Description:
//
//	Called with the entry already stored and the incoming stub. The policy
//	mutates existing in place. The stub has already been normalized.
//
// Inputs:
//
//	existing - The stored method. Never nil.
//	incoming - The colliding stub.
//	src - The source the incoming stub came from.
type CollisionPolicy func(existing *model.Method, incoming model.MethodStub, src model.Source)

// APIWins is the collision policy used by the fusion stage.
//
// Description:
//
//	API field values always win. A UML value only fills a field the API
//	left empty (description, return type, parameters). When the two sources
//	collide, provenance becomes "both". The outcome does not depend on which
//	source was added first.
//
//	Repeats within one source keep the first entry and only fill its empty
//	fields.
func APIWins(existing *model.Method, incoming model.MethodStub, src model.Source) {
	incomingProv := provenanceOf(src)

	if existing.Provenance == incomingProv {
		fillEmpty(existing, incoming)
		return
	}

	if src == model.SourceAPI && existing.Provenance == model.ProvenanceUML {
		// The stored entry is UML only; API values replace it.
		overwriteNonEmpty(existing, incoming)
	} else {
		fillEmpty(existing, incoming)
	}
	existing.Provenance = model.ProvenanceBoth
}

func fillEmpty(m *model.Method, stub model.MethodStub) {
	if m.ReturnType == "" {
		m.ReturnType = stub.ReturnType
	}
	if m.Description == "" {
		m.Description = stub.Description
	}
	if len(m.Parameters) == 0 && len(stub.Parameters) > 0 {
		m.Parameters = append([]string(nil), stub.Parameters...)
	}
}

func overwriteNonEmpty(m *model.Method, stub model.MethodStub) {
	if stub.ReturnType != "" {
		m.ReturnType = stub.ReturnType
	}
	if stub.Description != "" {
		m.Description = stub.Description
	}
	if len(stub.Parameters) > 0 {
		m.Parameters = append([]string(nil), stub.Parameters...)
	}
	m.IsStatic = stub.IsStatic
}

func provenanceOf(src model.Source) model.Provenance {
	if src == model.SourceAPI {
		return model.ProvenanceAPI
	}
	return model.ProvenanceUML
}

// MethodSet is a deduplicating collection of methods keyed by (name, signature).
//
// Thread Safety: Not safe for concurrent use. Each symbol gets its own set.
type MethodSet struct {
	policy     CollisionPolicy
	clean      func(string) string
	methods    map[model.MethodKey]*model.Method
	collisions int
}

// NewMethodSet creates an empty set.
//
// Inputs:
//
//	policy - Resolves key collisions. Nil means APIWins.
//	clean - Applied to descriptions before storage. Nil means identity.
//
// Outputs:
//
//	*MethodSet - Ready to use.
func NewMethodSet(policy CollisionPolicy, clean func(string) string) *MethodSet {
	if policy == nil {
		policy = APIWins
	}
	if clean == nil {
		clean = func(s string) string { return s }
	}
	return &MethodSet{
		policy:  policy,
		clean:   clean,
		methods: make(map[model.MethodKey]*model.Method),
	}
}

// Add inserts a stub or resolves it against an existing entry.
//
// Description:
//
//	Normalizes the return type, signature and description, then keys the
//	stub by (name, signature). An empty signature is synthesized as
//	"name()". Stubs without a name are ignored.
//
// Outputs:
//
//	bool - True if a new entry was created.
func (s *MethodSet) Add(stub model.MethodStub, src model.Source) bool {
	stub.Name = strings.TrimSpace(stub.Name)
	if stub.Name == "" {
		return false
	}
	stub.ReturnType = normalize.Type(stub.ReturnType)
	stub.Signature = normalize.Signature(stub.Signature)
	stub.Description = s.clean(stub.Description)
	if len(stub.Parameters) > 0 {
		params := make([]string, 0, len(stub.Parameters))
		for _, p := range stub.Parameters {
			if p = normalize.Type(p); p != "" {
				params = append(params, p)
			}
		}
		stub.Parameters = params
	}

	key := model.NewMethodKey(stub.Name, stub.Signature)
	if existing, ok := s.methods[key]; ok {
		if existing.Provenance != provenanceOf(src) && existing.Provenance != model.ProvenanceBoth {
			s.collisions++
		}
		s.policy(existing, stub, src)
		return false
	}

	m := &model.Method{
		Name:        stub.Name,
		ReturnType:  stub.ReturnType,
		Signature:   key.Signature,
		IsStatic:    stub.IsStatic,
		Description: stub.Description,
		Provenance:  provenanceOf(src),
	}
	if len(stub.Parameters) > 0 {
		m.Parameters = append([]string(nil), stub.Parameters...)
	}
	s.methods[key] = m
	return true
}

// AddAll adds every stub from one source.
func (s *MethodSet) AddAll(stubs []model.MethodStub, src model.Source) {
	for _, stub := range stubs {
		s.Add(stub, src)
	}
}

// Len returns the number of distinct keys.
func (s *MethodSet) Len() int {
	return len(s.methods)
}

// Collisions returns how many cross-source key collisions were resolved.
func (s *MethodSet) Collisions() int {
	return s.collisions
}

// Map returns the underlying keyed map. The caller takes ownership; the set
// must not be used afterwards.
func (s *MethodSet) Map() map[model.MethodKey]*model.Method {
	return s.methods
}

// Sorted returns the methods ordered by name, then signature.
func (s *MethodSet) Sorted() []*model.Method {
	out := make([]*model.Method, 0, len(s.methods))
	for _, m := range s.methods {
		out = append(out, m)
	}
	model.SortMethods(out)
	return out
}

// MergeMethods merges the API and UML method lists of one symbol.
//
// Description:
//
//	Inserts API methods first (provenance "api"), then UML methods. A UML
//	method whose key already exists upgrades the entry to "both" and only
//	contributes fields the API left empty. Remaining UML methods are tagged
//	"uml".
//
// Inputs:
//
//	api - Methods from the API record. May be nil.
//	uml - Methods from the UML class box. May be nil.
//
// Outputs:
//
//	[]*model.Method - Deduplicated methods sorted by name, then signature.
func MergeMethods(api, uml []model.MethodStub) []*model.Method {
	set := NewMethodSet(APIWins, nil)
	set.AddAll(api, model.SourceAPI)
	set.AddAll(uml, model.SourceUML)
	return set.Sorted()
}

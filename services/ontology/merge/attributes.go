// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package merge

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/AleutianAI/AleutianOntology/services/ontology/config"
	"github.com/AleutianAI/AleutianOntology/services/ontology/model"
	"github.com/AleutianAI/AleutianOntology/services/ontology/normalize"
)

// Shadowing reports a declared attribute whose type disagrees with the type
// implied by an accessor of the same name. The declared attribute is kept.
type Shadowing struct {
	Attribute    string `json:"attribute"`
	DeclaredType string `json:"declared_type"`
	InferredType string `json:"inferred_type"`
	Method       string `json:"method"`
}

// String formats the shadowing for log output.
func (s Shadowing) String() string {
	return fmt.Sprintf("%s: declared %q, %s implies %q", s.Attribute, s.DeclaredType, s.Method, s.InferredType)
}

type accessorMatcher struct {
	kind config.AccessorKind
	re   *regexp.Regexp
}

// AttributeInferrer derives attributes from accessor method names.
//
// Description:
//
//	Each accessor rule matches "<prefix><Upper>\w*". Rules are tried in
//	table order; the first match wins.
//
//	  getter    - non-void return type becomes the attribute type, has_getter
//	  setter    - has_setter; type stays "unknown" unless already known
//	  predicate - boolean attribute, has_getter
//
// Thread Safety: Immutable after construction; safe for concurrent use.
type AttributeInferrer struct {
	matchers    []accessorMatcher
	booleanType string
	voidTypes   map[string]bool
}

// NewAttributeInferrer builds an inferrer from the vocabulary accessor table.
//
// Inputs:
//
//	vocab - The relationship vocabulary. Must not be nil.
//
// Outputs:
//
//	*AttributeInferrer - Ready to use.
func NewAttributeInferrer(vocab *config.Vocabulary) *AttributeInferrer {
	ai := &AttributeInferrer{
		booleanType: vocab.BooleanType,
		voidTypes:   make(map[string]bool, len(vocab.VoidTypes)),
	}
	for _, rule := range vocab.Accessors {
		ai.matchers = append(ai.matchers, accessorMatcher{
			kind: rule.Kind,
			re:   regexp.MustCompile(`^` + regexp.QuoteMeta(rule.Prefix) + `([A-Z]\w+)$`),
		})
	}
	for _, v := range vocab.VoidTypes {
		ai.voidTypes[v] = true
	}
	return ai
}

// Match classifies a method name.
//
// Outputs:
//
//	config.AccessorKind - The kind of the first matching rule.
//	string - The name suffix after the prefix ("Terms" for "getTerms").
//	bool - False if no rule matched.
func (ai *AttributeInferrer) Match(methodName string) (config.AccessorKind, string, bool) {
	for _, m := range ai.matchers {
		if sub := m.re.FindStringSubmatch(methodName); sub != nil {
			return m.kind, sub[1], true
		}
	}
	return "", "", false
}

// IsVoid reports whether a return type implies no value.
func (ai *AttributeInferrer) IsVoid(returnType string) bool {
	return returnType == "" || ai.voidTypes[returnType]
}

// Infer merges declared attributes with those implied by methods.
//
// Description:
//
//	Declared attributes are inserted first and always take precedence: their
//	type is never replaced by an inferred one (a declared attribute without
//	a type may be filled). Accessor flags are OR-ed into any attribute of the
//	same name. For inferred attributes the merge is monotonic: a known type
//	is never downgraded to "unknown".
//
//	When a declared type and an inferred known type differ, a Shadowing is
//	reported and the declared type is kept.
//
// Inputs:
//
//	declared - Attributes declared by the UML class box. May be nil.
//	methods - The merged methods of the symbol, in any order.
//
// Outputs:
//
//	map[string]*model.Attribute - Attributes keyed by name.
//	[]Shadowing - Declared/inferred type conflicts, in method order.
func (ai *AttributeInferrer) Infer(declared []model.AttributeStub, methods []*model.Method) (map[string]*model.Attribute, []Shadowing) {
	attrs := make(map[string]*model.Attribute, len(declared))
	isDeclared := make(map[string]bool, len(declared))

	for _, d := range declared {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			continue
		}
		typ := normalize.Type(d.Type)
		if existing, ok := attrs[name]; ok {
			if !existing.HasKnownType() && typ != "" {
				existing.Type = typ
			}
			if existing.Description == "" {
				existing.Description = d.Description
			}
			continue
		}
		if typ == "" {
			typ = model.UnknownType
		}
		attrs[name] = &model.Attribute{
			Name:        name,
			Type:        typ,
			Description: d.Description,
		}
		isDeclared[name] = true
	}

	sorted := append([]*model.Method(nil), methods...)
	model.SortMethods(sorted)

	var shadowings []Shadowing
	for _, m := range sorted {
		kind, suffix, ok := ai.Match(m.Name)
		if !ok {
			continue
		}

		var typ, label string
		var getter, setter bool
		switch kind {
		case config.AccessorGetter:
			if ai.IsVoid(m.ReturnType) {
				continue
			}
			typ, label, getter = m.ReturnType, "getter", true
		case config.AccessorSetter:
			typ, label, setter = model.UnknownType, "setter", true
		case config.AccessorPredicate:
			typ, label, getter = ai.booleanType, "predicate", true
		default:
			continue
		}

		name := model.MemberName(suffix)
		attr, exists := attrs[name]
		if !exists {
			attrs[name] = &model.Attribute{
				Name:        name,
				Type:        typ,
				Description: fmt.Sprintf("Inferred from %s method %s", label, m.Name),
				Inferred:    true,
				HasGetter:   getter,
				HasSetter:   setter,
			}
			continue
		}

		attr.HasGetter = attr.HasGetter || getter
		attr.HasSetter = attr.HasSetter || setter

		known := typ != "" && typ != model.UnknownType
		if !known {
			continue
		}
		if !attr.HasKnownType() {
			attr.Type = typ
			continue
		}
		if isDeclared[name] && attr.Type != typ {
			shadowings = append(shadowings, Shadowing{
				Attribute:    name,
				DeclaredType: attr.Type,
				InferredType: typ,
				Method:       m.Name,
			})
		}
	}

	return attrs, shadowings
}

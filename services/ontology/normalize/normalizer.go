// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package normalize canonicalizes the raw text fields of symbol records.
//
// Every exported function is pure and idempotent: applying it to its own
// output returns the output unchanged. Each transform is iterated to a
// fixpoint, so rules that expose new matches (an entity decoding into a
// scrub pattern, a scrub leaving doubled spaces) are handled without
// depending on rule order for correctness.
package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/AleutianAI/AleutianOntology/services/ontology/config"
)

// maxPasses bounds fixpoint passes that do not shrink the value. A pass
// that shortens it is always followed by another, since that can repeat at
// most len(s) times; nested entities such as "&amp;amp;lt;" peel one level
// per pass.
const maxPasses = 16

var (
	whitespaceRe = regexp.MustCompile(`\s+`)

	// Pointer and reference markers: "oaNet*" -> "oaNet *", "* x" -> "*x".
	markerBeforeRe = regexp.MustCompile(`([\w>\]])\s*([*&])`)
	markerAfterRe  = regexp.MustCompile(`([*&])\s+`)

	// Template brackets: "oaCollection< oaTerm >" -> "oaCollection<oaTerm>".
	angleOpenRe  = regexp.MustCompile(`\s*<\s*`)
	angleCloseRe = regexp.MustCompile(`\s+>`)
	commaRe      = regexp.MustCompile(`\s*,\s*`)
	parenOpenRe  = regexp.MustCompile(`\(\s+`)
	parenCloseRe = regexp.MustCompile(`\s+\)`)
)

// entityReplacer decodes the HTML entities the documentation tool leaves in
// descriptions.
var entityReplacer = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&amp;", "&",
	"&quot;", `"`,
	"&#39;", "'",
	"&nbsp;", " ",
)

// compiledRule is a ScrubRule with its pattern compiled.
type compiledRule struct {
	name        string
	re          *regexp.Regexp
	replacement string
}

// Normalizer applies ordered scrub rules and canonical spacing.
//
// Thread Safety: Immutable after construction; safe for concurrent use.
type Normalizer struct {
	rules []compiledRule
}

// New compiles the scrub rules into a Normalizer.
//
// Inputs:
//
//	rules - Ordered scrub rules. May be empty.
//
// Outputs:
//
//	*Normalizer - Ready to use.
//	error - Non-nil if a pattern does not compile.
func New(rules []config.ScrubRule) (*Normalizer, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("scrub_rule[%d] (%s): %w", i, r.Name, err)
		}
		compiled = append(compiled, compiledRule{name: r.Name, re: re, replacement: r.Replacement})
	}
	return &Normalizer{rules: compiled}, nil
}

// RuleNames returns the scrub rule names in application order.
func (n *Normalizer) RuleNames() []string {
	names := make([]string, len(n.rules))
	for i, r := range n.rules {
		names[i] = r.name
	}
	return names
}

// Text cleans a description: decodes entities, strips boilerplate,
// collapses whitespace and trims.
func (n *Normalizer) Text(s string) string {
	return fixpoint(s, n.textPass)
}

func (n *Normalizer) textPass(s string) string {
	s = entityReplacer.Replace(s)
	for _, r := range n.rules {
		s = r.re.ReplaceAllString(s, r.replacement)
	}
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Type canonicalizes a C++ type string: one space before a pointer or
// reference marker, none after it, no padding inside template brackets.
//
//	"oaNet*"                 -> "oaNet *"
//	"const oaString  &"      -> "const oaString &"
//	"oaCollection< oaTerm >" -> "oaCollection<oaTerm>"
func Type(s string) string {
	return fixpoint(s, typePass)
}

func typePass(s string) string {
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = angleOpenRe.ReplaceAllString(s, "<")
	s = angleCloseRe.ReplaceAllString(s, ">")
	s = commaRe.ReplaceAllString(s, ", ")
	s = markerAfterRe.ReplaceAllString(s, "$1")
	s = markerBeforeRe.ReplaceAllString(s, "$1 $2")
	return strings.TrimSpace(s)
}

// Signature canonicalizes a parameter signature such as
// "getName( oaString&name ) const".
func Signature(s string) string {
	return fixpoint(s, signaturePass)
}

func signaturePass(s string) string {
	s = typePass(s)
	s = parenOpenRe.ReplaceAllString(s, "(")
	s = parenCloseRe.ReplaceAllString(s, ")")
	return s
}

// fixpoint applies pass until the value stops changing.
func fixpoint(s string, pass func(string) string) string {
	for grown := 0; grown < maxPasses; {
		next := pass(s)
		if next == s {
			return s
		}
		if len(next) >= len(s) {
			grown++
		}
		s = next
	}
	return s
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package index

import (
	"context"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianOntology/services/ontology/graph"
)

var tracer = otel.Tracer("ontology.index")

// searchCheckInterval is how many nodes are scored between context checks.
const searchCheckInterval = 256

// Match types reported on search hits, best first.
const (
	MatchExact     = "exact"
	MatchPrefix    = "prefix"
	MatchCamelCase = "camelCase"
	MatchSubstring = "substring"
	MatchFuzzy     = "fuzzy"
)

// SearchHit is one ranked search result.
type SearchHit struct {
	Node      *graph.Node `json:"-"`
	Name      string      `json:"name"`
	Score     int         `json:"score"`
	MatchType string      `json:"match_type"`
}

// Search ranks nodes by how well their name matches query.
//
// Description:
//
//	Scores every node: exact (case-insensitive) beats prefix, which beats
//	a camelCase word match ("Term" in "oaInstTerm"), then substring, then
//	a Levenshtein match within a third of the query length. Within a match
//	type, earlier and tighter matches rank first. Ties break by name.
//
// Inputs:
//
//	ctx - Checked periodically during the scan.
//	query - Search text. Empty returns no hits.
//	limit - Maximum hits. Zero or negative means DefaultLimit.
//
// Outputs:
//
//	[]SearchHit - Ranked hits.
//	error - Non-nil only if ctx was cancelled.
func (idx *Index) Search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	ctx, span := tracer.Start(ctx, "index.Search")
	defer span.End()
	span.SetAttributes(attribute.String("search.query", query))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	queryLower := strings.ToLower(query)
	var hits []SearchHit
	for i, name := range idx.names {
		if i%searchCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		score, matchType := matchScore(query, queryLower, name, strings.ToLower(name))
		if score < 0 {
			continue
		}
		n, _ := idx.g.GetNode(name)
		hits = append(hits, SearchHit{Node: n, Name: name, Score: score, MatchType: matchType})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score < hits[j].Score
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	span.SetAttributes(attribute.Int("search.hits", len(hits)))
	return hits, nil
}

// matchScore returns base*10000 + position*100 + length, lower is better,
// or -1 when name does not match.
func matchScore(query, queryLower, name, nameLower string) (int, string) {
	if nameLower == queryLower {
		return 0, MatchExact
	}

	var base, pos int
	var matchType string
	switch {
	case strings.HasPrefix(nameLower, queryLower):
		base, matchType = 1, MatchPrefix
	default:
		if p := camelCaseWordMatch(name, query); p >= 0 {
			base, pos, matchType = 2, p, MatchCamelCase
		} else if p := strings.Index(nameLower, queryLower); p >= 0 {
			base, pos, matchType = 3, p, MatchSubstring
		} else if levenshtein(nameLower, queryLower) <= max(2, len(queryLower)/3) {
			base, matchType = 4, MatchFuzzy
		} else {
			return -1, ""
		}
	}

	positionPenalty := 0
	if pos > 0 {
		positionPenalty = min(99, pos*100/len(name))
	}
	lengthPenalty := min(99, abs(len(name)-len(query)))
	return base*10000 + positionPenalty*100 + lengthPenalty, matchType
}

// camelCaseWordMatch returns the offset where query matches a whole
// camelCase word run of name, or -1.
func camelCaseWordMatch(name, query string) int {
	if query == "" || name == "" {
		return -1
	}
	queryLower := strings.ToLower(query)
	for i := 0; i+len(query) <= len(name); i++ {
		boundary := i == 0 || (isUpper(name[i]) && !isUpper(name[i-1]))
		if !boundary || strings.ToLower(name[i:i+len(query)]) != queryLower {
			continue
		}
		end := i + len(query)
		if end == len(name) || isUpper(name[end]) || !isLetter(name[end]) {
			return i
		}
	}
	return -1
}

func isUpper(c byte) bool {
	return c >= 'A' && c <= 'Z'
}

func isLetter(c byte) bool {
	return isUpper(c) || (c >= 'a' && c <= 'z')
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// levenshtein is the two-row edit distance.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}
	if b == "" {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

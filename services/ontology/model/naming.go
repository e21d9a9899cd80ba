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

import "unicode"

// MemberName lower-camel-cases an accessor suffix.
//
// A leading acronym is lowered as a unit, keeping the capital that starts the
// next word:
//
//	"Terms"      -> "terms"
//	"InstTerms"  -> "instTerms"
//	"ID"         -> "id"
//	"DBUnits"    -> "dbUnits"
func MemberName(suffix string) string {
	runes := []rune(suffix)
	if len(runes) == 0 {
		return ""
	}

	upper := 0
	for upper < len(runes) && unicode.IsUpper(runes[upper]) {
		upper++
	}

	switch {
	case upper == 0:
		return suffix
	case upper == 1 || upper == len(runes):
		// "Terms" or "ID": lower every leading capital.
	default:
		// "DBUnits": the last capital of the run starts the next word
		// when a lowercase letter follows it.
		if unicode.IsLower(runes[upper]) {
			upper--
		}
	}

	for i := 0; i < upper; i++ {
		runes[i] = unicode.ToLower(runes[i])
	}
	return string(runes)
}

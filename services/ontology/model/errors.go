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

import "errors"

// Sentinel errors for the recoverable failure classes of a fusion run.
//
// None of these is fatal to a run. Each stage counts occurrences and reports
// them in the run summary; the worst outcome is a smaller graph.
var (
	// ErrMissingSource is recorded when a requested name has neither an API
	// record nor a UML class entry. The name is skipped.
	ErrMissingSource = errors.New("no api or uml record for symbol")

	// ErrMalformedRecord is recorded when one input file fails to parse or
	// validate. The file is skipped and the run continues.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrDanglingRelationship is recorded when a relationship endpoint is
	// absent from the final node set. The relationship is dropped.
	ErrDanglingRelationship = errors.New("relationship endpoint not in graph")

	// ErrClassificationCycle is recorded when ancestor propagation revisits
	// a symbol. The walk stops at the repeated symbol.
	ErrClassificationCycle = errors.New("inheritance cycle during classification")

	// ErrUnknownRelationType is returned when parsing a relation type outside
	// the closed vocabulary.
	ErrUnknownRelationType = errors.New("unknown relation type")
)

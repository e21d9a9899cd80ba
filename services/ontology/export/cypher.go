// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package export

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/AleutianAI/AleutianOntology/services/ontology/graph"
)

const cypherHeader = `// Ontology graph import script.
// Run in Neo4j Browser or through cypher-shell against an empty database.

CREATE CONSTRAINT class_name IF NOT EXISTS FOR (c:Class) REQUIRE c.name IS UNIQUE;

`

var cypherEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

// CypherExporter writes a Neo4j import script. Every symbol becomes a
// :Class node keyed by name; every edge becomes a relationship whose label
// is the relation type.
type CypherExporter struct{}

func (CypherExporter) Format() string      { return "cypher" }
func (CypherExporter) Extension() string   { return ".cypher" }
func (CypherExporter) ContentType() string { return "text/plain; charset=utf-8" }

// Export writes g as Cypher statements, one per line.
func (CypherExporter) Export(w io.Writer, g *graph.SerializableGraph) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(cypherHeader)

	bw.WriteString("// Nodes\n")
	for _, n := range nodeRecords(g) {
		props := []string{
			prop("name", n.Name),
			prop("domain", n.Domain),
			prop("concept", n.Concept),
			prop("description", n.Description),
			prop("module", n.Module),
			"method_count: " + strconv.Itoa(n.MethodCount),
			"attribute_count: " + strconv.Itoa(n.AttributeCount),
			"relationship_count: " + strconv.Itoa(n.RelationshipCount),
		}
		fmt.Fprintf(bw, "CREATE (:Class {%s});\n", strings.Join(props, ", "))
	}

	bw.WriteString("\n// Relationships\n")
	for _, l := range linkRecords(g) {
		props := []string{
			"provenance: " + stringList(l.Provenance),
			"weight: " + strconv.FormatFloat(l.Weight, 'g', -1, 64),
		}
		if l.Member != "" {
			props = append(props, prop("member", l.Member))
		}
		if l.Description != "" {
			props = append(props, prop("description", l.Description))
		}
		fmt.Fprintf(bw, "MATCH (a:Class {name: %s}), (b:Class {name: %s}) CREATE (a)-[:%s {%s}]->(b);\n",
			QuoteCypher(l.Source), QuoteCypher(l.Target), l.Type, strings.Join(props, ", "))
	}
	return bw.Flush()
}

// QuoteCypher returns s as a double-quoted Cypher string literal with
// backslash, double quote and newline escaped.
func QuoteCypher(s string) string {
	return `"` + cypherEscaper.Replace(s) + `"`
}

func prop(key, value string) string {
	return key + ": " + QuoteCypher(value)
}

func stringList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = QuoteCypher(v)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

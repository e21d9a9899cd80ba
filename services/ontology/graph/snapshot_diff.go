// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/AleutianAI/AleutianOntology/services/ontology/model"
)

// Node change types reported in NodeDiff.ChangeType.
const (
	ChangeReclassified = "reclassified"
	ChangeMembers      = "members_changed"
	ChangeDescription  = "description_changed"
	ChangeSources      = "sources_changed"
)

// SnapshotDiff contains the differences between two graph snapshots.
type SnapshotDiff struct {
	// BaseSnapshotID is the ID of the base snapshot.
	BaseSnapshotID string `json:"base_snapshot_id"`

	// TargetSnapshotID is the ID of the target snapshot.
	TargetSnapshotID string `json:"target_snapshot_id"`

	// NodesAdded are node IDs present in target but not in base.
	NodesAdded []string `json:"nodes_added"`

	// NodesRemoved are node IDs present in base but not in target.
	NodesRemoved []string `json:"nodes_removed"`

	// NodesModified are nodes that changed between snapshots.
	NodesModified []NodeDiff `json:"nodes_modified"`

	// EdgesAdded are edge keys present in target but not in base.
	EdgesAdded []string `json:"edges_added"`

	// EdgesRemoved are edge keys present in base but not in target.
	EdgesRemoved []string `json:"edges_removed"`

	// EdgesChanged are edge keys in both whose provenance or weight differ.
	EdgesChanged []string `json:"edges_changed"`

	// Summary contains aggregate statistics about the diff.
	Summary DiffSummary `json:"summary"`
}

// NodeDiff describes how a single node changed between snapshots.
type NodeDiff struct {
	// NodeID is the symbol name.
	NodeID string `json:"node_id"`

	// ChangeType is the first of reclassified, members_changed,
	// sources_changed, description_changed that applies.
	ChangeType string `json:"change_type"`

	// From and To carry the classification on both sides when reclassified.
	From *model.Classification `json:"from,omitempty"`
	To   *model.Classification `json:"to,omitempty"`
}

// DiffSummary contains aggregate statistics about a diff.
type DiffSummary struct {
	// TotalChanges counts node additions, removals, modifications and edge
	// additions, removals, changes.
	TotalChanges int `json:"total_changes"`

	// DomainsAffected is the number of distinct domains touched by a node change.
	DomainsAffected int `json:"domains_affected"`

	// ChangeRatio is the fraction of nodes that changed (0.0 to 1.0).
	ChangeRatio float64 `json:"change_ratio"`
}

// DiffSnapshots computes the differences between two graphs.
//
// Description:
//
//	Compares two graphs (typically two builds of the same catalog loaded
//	from snapshots). Nodes are matched by symbol name and edges by
//	(source, target, type).
//
// Inputs:
//
//	base - The base graph for comparison. Must not be nil.
//	target - The target graph for comparison. Must not be nil.
//	baseSnapshotID - ID of the base snapshot (for labeling).
//	targetSnapshotID - ID of the target snapshot (for labeling).
//
// Outputs:
//
//	*SnapshotDiff - The computed differences, every list sorted.
//	error - Non-nil if either graph is nil.
//
// Complexity:
//
//	O(V log V + E log E).
//
// Thread Safety:
//
//	Safe for concurrent use on frozen graphs.
func DiffSnapshots(base, target *Graph, baseSnapshotID, targetSnapshotID string) (*SnapshotDiff, error) {
	if base == nil {
		return nil, fmt.Errorf("base graph must not be nil")
	}
	if target == nil {
		return nil, fmt.Errorf("target graph must not be nil")
	}

	diff := &SnapshotDiff{
		BaseSnapshotID:   baseSnapshotID,
		TargetSnapshotID: targetSnapshotID,
		NodesAdded:       []string{},
		NodesRemoved:     []string{},
		NodesModified:    []NodeDiff{},
		EdgesAdded:       []string{},
		EdgesRemoved:     []string{},
		EdgesChanged:     []string{},
	}
	affectedDomains := make(map[model.Domain]bool)

	for id, tNode := range target.nodes {
		bNode, exists := base.nodes[id]
		if !exists {
			diff.NodesAdded = append(diff.NodesAdded, id)
			affectedDomains[tNode.Symbol.Domain] = true
			continue
		}
		if nd, changed := diffNode(bNode.Symbol, tNode.Symbol); changed {
			nd.NodeID = id
			diff.NodesModified = append(diff.NodesModified, nd)
			affectedDomains[bNode.Symbol.Domain] = true
			affectedDomains[tNode.Symbol.Domain] = true
		}
	}
	for id, bNode := range base.nodes {
		if _, exists := target.nodes[id]; !exists {
			diff.NodesRemoved = append(diff.NodesRemoved, id)
			affectedDomains[bNode.Symbol.Domain] = true
		}
	}

	for key, tEdge := range target.edgeIndex {
		bEdge, exists := base.edgeIndex[key]
		switch {
		case !exists:
			diff.EdgesAdded = append(diff.EdgesAdded, key.String())
		case !reflect.DeepEqual(bEdge.Provenance, tEdge.Provenance) || bEdge.Weight != tEdge.Weight:
			diff.EdgesChanged = append(diff.EdgesChanged, key.String())
		}
	}
	for key := range base.edgeIndex {
		if _, exists := target.edgeIndex[key]; !exists {
			diff.EdgesRemoved = append(diff.EdgesRemoved, key.String())
		}
	}

	sort.Strings(diff.NodesAdded)
	sort.Strings(diff.NodesRemoved)
	sort.Slice(diff.NodesModified, func(i, j int) bool {
		return diff.NodesModified[i].NodeID < diff.NodesModified[j].NodeID
	})
	sort.Strings(diff.EdgesAdded)
	sort.Strings(diff.EdgesRemoved)
	sort.Strings(diff.EdgesChanged)

	totalNodes := len(base.nodes)
	if len(target.nodes) > totalNodes {
		totalNodes = len(target.nodes)
	}
	changedNodes := len(diff.NodesAdded) + len(diff.NodesRemoved) + len(diff.NodesModified)
	changeRatio := 0.0
	if totalNodes > 0 {
		changeRatio = float64(changedNodes) / float64(totalNodes)
	}

	diff.Summary = DiffSummary{
		TotalChanges:    changedNodes + len(diff.EdgesAdded) + len(diff.EdgesRemoved) + len(diff.EdgesChanged),
		DomainsAffected: len(affectedDomains),
		ChangeRatio:     changeRatio,
	}
	return diff, nil
}

// diffNode compares two summaries of the same symbol.
func diffNode(base, target *SymbolSummary) (NodeDiff, bool) {
	if base.Domain != target.Domain || base.Concept != target.Concept {
		from, to := base.Classification(), target.Classification()
		return NodeDiff{ChangeType: ChangeReclassified, From: &from, To: &to}, true
	}
	if base.MethodCount != target.MethodCount ||
		base.AttributeCount != target.AttributeCount ||
		base.RelationshipCount != target.RelationshipCount {
		return NodeDiff{ChangeType: ChangeMembers}, true
	}
	if base.HasAPI != target.HasAPI || !reflect.DeepEqual(base.UMLDiagrams, target.UMLDiagrams) || base.Module != target.Module {
		return NodeDiff{ChangeType: ChangeSources}, true
	}
	if base.Description != target.Description {
		return NodeDiff{ChangeType: ChangeDescription}, true
	}
	return NodeDiff{}, false
}

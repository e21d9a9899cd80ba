// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// snapshot_dump inspects the ontology graph snapshot store.
//
// Snapshots are gzip-compressed graph JSON plus metadata in BadgerDB (see
// graph.SnapshotManager). This tool opens the store read-only, walks every
// key under the snapshot prefix and prints each snapshot with its integrity
// checks: payload present, content hash, node/edge counts and the
// latest/index pointers. Keys that belong to no complete snapshot are listed
// as orphans.
//
// Usage:
//
//	snapshot_dump [--path /path/to/snapshots] [--verify=false]
//
// If --path is not given, reads ONTOLOGY_SNAPSHOT_DIR from the environment,
// falling back to ~/.aleutian/ontology/snapshots/.
//
// Exit codes:
//
//	0 - success, every snapshot verified (an empty store is a success)
//	1 - error opening or reading the database
//	2 - at least one snapshot failed verification
package main

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianOntology/services/ontology/graph"
)

// Key layout written by graph.SnapshotManager.
const (
	keyPrefixSnap   = "ontology:snap:"
	keyPrefixIndex  = "ontology:snap:index:"
	keySuffixData   = ":data"
	keySuffixMeta   = ":meta"
	keySuffixLatest = ":latest"
)

func main() {
	pathFlag := flag.String("path", "", "Path to the snapshot BadgerDB directory (overrides ONTOLOGY_SNAPSHOT_DIR)")
	verify := flag.Bool("verify", true, "Decompress and decode every payload")
	flag.Parse()

	dbPath := *pathFlag
	if dbPath == "" {
		dbPath = os.Getenv("ONTOLOGY_SNAPSHOT_DIR")
	}
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fatalf("cannot resolve home directory: %v", err)
		}
		dbPath = filepath.Join(home, ".aleutian", "ontology", "snapshots")
	}

	fmt.Printf("Snapshot store path: %s\n", dbPath)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("Store directory does not exist. Run 'ontology build' with a snapshot directory to create it.")
		os.Exit(0)
	}

	opts := dgbadger.DefaultOptions(dbPath).
		WithLogger(nil).
		WithReadOnly(true)
	db, err := dgbadger.Open(opts)
	if err != nil {
		fatalf("open BadgerDB at %s: %v", dbPath, err)
	}
	defer func() { _ = db.Close() }()

	d, err := inspect(db, *verify)
	if err != nil {
		fatalf("read BadgerDB: %v", err)
	}
	printDump(os.Stdout, d, dbPath)
	if d.failures() > 0 {
		_ = db.Close()
		os.Exit(2)
	}
}

// snapshotEntry collects every key of one snapshot.
type snapshotEntry struct {
	catalogHash string
	snapshotID  string

	meta      *graph.SnapshotMetadata
	metaErr   error
	dataSize  int
	hasData   bool
	hashOK    bool
	indexed   bool
	isLatest  bool
	nodeCount int
	edgeCount int
	decodeErr error
}

// problems lists failed checks. Empty means the snapshot is healthy.
func (e *snapshotEntry) problems(verified bool) []string {
	var out []string
	if e.meta == nil {
		if e.metaErr != nil {
			out = append(out, "metadata: "+e.metaErr.Error())
		} else {
			out = append(out, "metadata missing")
		}
	}
	if !e.hasData {
		out = append(out, "payload missing")
	}
	if !e.indexed {
		out = append(out, "reverse index missing")
	}
	if e.meta == nil || !e.hasData {
		return out
	}
	if !e.hashOK {
		out = append(out, "content hash mismatch")
	}
	if int64(e.dataSize) != e.meta.CompressedSize {
		out = append(out, fmt.Sprintf("size %d, metadata says %d", e.dataSize, e.meta.CompressedSize))
	}
	if verified {
		if e.decodeErr != nil {
			out = append(out, "decode: "+e.decodeErr.Error())
		} else if e.nodeCount != e.meta.NodeCount || e.edgeCount != e.meta.EdgeCount {
			out = append(out, fmt.Sprintf("payload has %d nodes/%d edges, metadata says %d/%d",
				e.nodeCount, e.edgeCount, e.meta.NodeCount, e.meta.EdgeCount))
		}
	}
	return out
}

// dump is the result of inspecting a store.
type dump struct {
	snapshots []*snapshotEntry
	verified  bool

	// danglingLatest maps catalog hash to a latest pointer with no snapshot.
	danglingLatest map[string]string

	// orphanIndex lists index entries whose snapshot has no metadata.
	orphanIndex []string

	unknownKeys []string
}

func (d *dump) failures() int {
	n := len(d.danglingLatest) + len(d.orphanIndex)
	for _, e := range d.snapshots {
		if len(e.problems(d.verified)) > 0 {
			n++
		}
	}
	return n
}

// inspect walks every snapshot key in db and runs the integrity checks.
func inspect(db *dgbadger.DB, verify bool) (*dump, error) {
	d := &dump{verified: verify, danglingLatest: make(map[string]string)}
	entries := make(map[string]*snapshotEntry)
	entry := func(catalogHash, id string) *snapshotEntry {
		e, ok := entries[id]
		if !ok {
			e = &snapshotEntry{catalogHash: catalogHash, snapshotID: id}
			entries[id] = e
		}
		if e.catalogHash == "" {
			e.catalogHash = catalogHash
		}
		return e
	}
	latest := make(map[string]string)
	payloads := make(map[string][]byte)

	err := db.View(func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(keyPrefixSnap)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := string(item.Key())
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("copy value of %s: %w", key, err)
			}

			if strings.HasPrefix(key, keyPrefixIndex) {
				id := strings.TrimPrefix(key, keyPrefixIndex)
				entry(string(raw), id).indexed = true
				continue
			}

			rest := strings.TrimPrefix(key, keyPrefixSnap)
			switch {
			case strings.HasSuffix(rest, keySuffixLatest):
				latest[strings.TrimSuffix(rest, keySuffixLatest)] = string(raw)
			case strings.HasSuffix(rest, keySuffixMeta):
				catalogHash, id, ok := splitSnapshotKey(strings.TrimSuffix(rest, keySuffixMeta))
				if !ok {
					d.unknownKeys = append(d.unknownKeys, key)
					continue
				}
				e := entry(catalogHash, id)
				var meta graph.SnapshotMetadata
				if err := json.Unmarshal(raw, &meta); err != nil {
					e.metaErr = err
				} else {
					e.meta = &meta
				}
			case strings.HasSuffix(rest, keySuffixData):
				catalogHash, id, ok := splitSnapshotKey(strings.TrimSuffix(rest, keySuffixData))
				if !ok {
					d.unknownKeys = append(d.unknownKeys, key)
					continue
				}
				e := entry(catalogHash, id)
				e.hasData = true
				e.dataSize = len(raw)
				payloads[id] = raw
			default:
				d.unknownKeys = append(d.unknownKeys, key)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for id, e := range entries {
		if e.meta == nil && e.metaErr == nil && !e.hasData {
			d.orphanIndex = append(d.orphanIndex, id)
			continue
		}
		if raw, ok := payloads[id]; ok && e.meta != nil {
			e.hashOK = sha256Hex(raw) == e.meta.ContentHash
			if verify {
				e.nodeCount, e.edgeCount, e.decodeErr = decodeCounts(raw)
			}
		}
		d.snapshots = append(d.snapshots, e)
	}
	for catalogHash, id := range latest {
		e, ok := entries[id]
		if !ok || e.meta == nil {
			d.danglingLatest[catalogHash] = id
			continue
		}
		e.isLatest = true
	}

	sort.Strings(d.orphanIndex)
	sort.Strings(d.unknownKeys)
	sort.Slice(d.snapshots, func(i, j int) bool {
		a, b := d.snapshots[i], d.snapshots[j]
		if a.catalogHash != b.catalogHash {
			return a.catalogHash < b.catalogHash
		}
		return a.snapshotID < b.snapshotID
	})
	return d, nil
}

// splitSnapshotKey splits "{catalogHash}:{snapshotID}".
func splitSnapshotKey(s string) (catalogHash, id string, ok bool) {
	catalogHash, id, ok = strings.Cut(s, ":")
	return catalogHash, id, ok && catalogHash != "" && id != "" && !strings.Contains(id, ":")
}

// decodeCounts gunzips and decodes a payload, returning its sizes.
func decodeCounts(raw []byte) (nodes, edges int, err error) {
	gr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return 0, 0, fmt.Errorf("gzip: %w", err)
	}
	defer func() { _ = gr.Close() }()
	var sg graph.SerializableGraph
	if err := json.NewDecoder(gr).Decode(&sg); err != nil {
		return 0, 0, fmt.Errorf("json: %w", err)
	}
	return len(sg.Nodes), len(sg.Edges), nil
}

func sha256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func printDump(w io.Writer, d *dump, dbPath string) {
	if len(d.snapshots) == 0 && len(d.orphanIndex) == 0 && len(d.unknownKeys) == 0 {
		fmt.Fprintln(w, "\nNo snapshots found.")
		return
	}

	fmt.Fprintf(w, "\nFound %d snapshot%s:\n", len(d.snapshots), plural(len(d.snapshots), "", "s"))
	fmt.Fprintln(w, strings.Repeat("─", 80))

	for i, e := range d.snapshots {
		fmt.Fprintf(w, "\n[%d] Snapshot:    %s", i+1, e.snapshotID)
		if e.isLatest {
			fmt.Fprint(w, "  (latest)")
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "    Catalog:     %s", e.catalogHash)
		if e.meta != nil {
			fmt.Fprintf(w, " (%s)", e.meta.CatalogRoot)
		}
		fmt.Fprintln(w)
		if e.meta != nil {
			if e.meta.Label != "" {
				fmt.Fprintf(w, "    Label:       %s\n", e.meta.Label)
			}
			fmt.Fprintf(w, "    Created:     %s\n", time.UnixMilli(e.meta.CreatedAtMilli).UTC().Format(time.RFC3339))
			fmt.Fprintf(w, "    Schema:      %s\n", e.meta.SchemaVersion)
			fmt.Fprintf(w, "    Graph:       %d nodes, %d edges, hash %s\n", e.meta.NodeCount, e.meta.EdgeCount, e.meta.GraphHash)
		}
		if e.hasData {
			fmt.Fprintf(w, "    Payload:     %s\n", formatBytes(e.dataSize))
		}
		if problems := e.problems(d.verified); len(problems) > 0 {
			for _, p := range problems {
				fmt.Fprintf(w, "    PROBLEM:     %s\n", p)
			}
		} else {
			fmt.Fprintln(w, "    Status:      OK")
		}
	}

	if len(d.danglingLatest) > 0 {
		fmt.Fprintln(w, "\nLatest pointers to missing snapshots:")
		hashes := make([]string, 0, len(d.danglingLatest))
		for h := range d.danglingLatest {
			hashes = append(hashes, h)
		}
		sort.Strings(hashes)
		for _, h := range hashes {
			fmt.Fprintf(w, "  %s -> %s\n", h, d.danglingLatest[h])
		}
	}
	if len(d.orphanIndex) > 0 {
		fmt.Fprintln(w, "\nIndex entries without a snapshot:")
		for _, id := range d.orphanIndex {
			fmt.Fprintf(w, "  %s\n", id)
		}
	}
	if len(d.unknownKeys) > 0 {
		fmt.Fprintln(w, "\nUnrecognized keys:")
		for _, k := range d.unknownKeys {
			fmt.Fprintf(w, "  %s\n", k)
		}
	}

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("─", 80))
	fmt.Fprintf(w, "Summary: %d snapshot%s, %d problem%s, store path: %s\n",
		len(d.snapshots), plural(len(d.snapshots), "", "s"),
		d.failures(), plural(d.failures(), "", "s"), dbPath)
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(n int) string {
	switch {
	case n >= 1024*1024:
		return fmt.Sprintf("%.1f MB (%d bytes)", float64(n)/1024/1024, n)
	case n >= 1024:
		return fmt.Sprintf("%.1f KB (%d bytes)", float64(n)/1024, n)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}

func plural(n int, singular, pluralSuffix string) string {
	if n == 1 {
		return singular
	}
	return pluralSuffix
}

// fatalf prints to stderr and exits 1.
func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "snapshot_dump: "+format+"\n", args...)
	os.Exit(1)
}

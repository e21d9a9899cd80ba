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
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerDB key prefixes for graph snapshots.
const (
	keyPrefixSnap      = "ontology:snap:"
	keyPrefixSnapIndex = "ontology:snap:index:"
	keySuffixData      = ":data"
	keySuffixMeta      = ":meta"
	keySuffixLatest    = ":latest"
)

// DefaultSnapshotListLimit caps List when the caller passes no limit.
const DefaultSnapshotListLimit = 100

// SnapshotMetadata contains metadata about a saved graph snapshot.
type SnapshotMetadata struct {
	// SnapshotID is the unique identifier for this snapshot.
	// Derived from SHA256(CatalogRoot + BuiltAtMilli)[:16].
	SnapshotID string `json:"snapshot_id"`

	// CatalogRoot identifies the input catalog.
	CatalogRoot string `json:"catalog_root"`

	// CatalogHash is SHA256(CatalogRoot)[:16] for key grouping.
	CatalogHash string `json:"catalog_hash"`

	// GraphHash is the deterministic hash of the graph structure.
	GraphHash string `json:"graph_hash"`

	// Label is an optional human-readable label.
	Label string `json:"label,omitempty"`

	// CreatedAtMilli is when the snapshot was saved (Unix milliseconds UTC).
	CreatedAtMilli int64 `json:"created_at_milli"`

	// BuiltAtMilli is when the graph was frozen.
	BuiltAtMilli int64 `json:"built_at_milli"`

	// NodeCount is the number of nodes in the graph.
	NodeCount int `json:"node_count"`

	// EdgeCount is the number of edges in the graph.
	EdgeCount int `json:"edge_count"`

	// SchemaVersion is the serialization schema version.
	SchemaVersion string `json:"schema_version"`

	// CompressedSize is the size of the gzip-compressed JSON payload in bytes.
	CompressedSize int64 `json:"compressed_size"`

	// ContentHash is the SHA256 hash of the compressed payload.
	ContentHash string `json:"content_hash"`
}

// SnapshotManager manages saving and loading graph snapshots in BadgerDB.
//
// Description:
//
//	Stores each frozen graph as gzip-compressed JSON plus metadata for
//	listing. A per-catalog "latest" pointer tracks the most recent save.
//
// Thread Safety:
//
//	Safe for concurrent use. BadgerDB handles its own concurrency control.
type SnapshotManager struct {
	db     *badger.DB
	logger *slog.Logger
}

// NewSnapshotManager creates a new SnapshotManager.
//
// Inputs:
//
//	db - An opened BadgerDB instance. Must not be nil. The caller closes it.
//	logger - Logger for diagnostic output. Must not be nil.
//
// Outputs:
//
//	*SnapshotManager - The configured manager.
//	error - Non-nil if db or logger is nil.
func NewSnapshotManager(db *badger.DB, logger *slog.Logger) (*SnapshotManager, error) {
	if db == nil {
		return nil, fmt.Errorf("badger db must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	return &SnapshotManager{db: db, logger: logger}, nil
}

// OpenSnapshotDB opens the BadgerDB store at dir. An empty dir opens an
// in-memory store that is discarded on Close.
func OpenSnapshotDB(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot store %q: %w", dir, err)
	}
	return db, nil
}

// Save persists a graph snapshot to BadgerDB.
//
// Description:
//
//	Serializes the graph to JSON, gzip-compresses it, and stores it with
//	metadata in one transaction. Updates the "latest" pointer for the
//	catalog.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//	g - The graph to snapshot. Must not be nil and should be frozen.
//	label - Optional human-readable label for the snapshot.
//
// Outputs:
//
//	*SnapshotMetadata - Metadata about the saved snapshot.
//	error - Non-nil if serialization or storage fails.
//
// Key Schema:
//
//	ontology:snap:{catalogHash}:{snapshotID}:data → gzip(JSON(SerializableGraph))
//	ontology:snap:{catalogHash}:{snapshotID}:meta → JSON(SnapshotMetadata)
//	ontology:snap:{catalogHash}:latest            → snapshotID
//	ontology:snap:index:{snapshotID}              → catalogHash
func (m *SnapshotManager) Save(ctx context.Context, g *Graph, label string) (meta *SnapshotMetadata, err error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	if g == nil {
		return nil, fmt.Errorf("graph must not be nil")
	}
	start := time.Now()
	defer func() { recordSnapshotMetrics(ctx, "save", time.Since(start), err == nil) }()

	sg := g.ToSerializable()
	jsonData, err := json.Marshal(sg)
	if err != nil {
		return nil, fmt.Errorf("marshaling graph: %w", err)
	}

	var compressed bytes.Buffer
	gw, err := gzip.NewWriterLevel(&compressed, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := gw.Write(jsonData); err != nil {
		return nil, fmt.Errorf("compressing graph: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}
	compressedData := compressed.Bytes()

	catalogHash := CatalogHash(g.CatalogRoot)
	snapshotID := hashString(fmt.Sprintf("%s:%d", g.CatalogRoot, g.BuiltAtMilli))[:16]

	meta = &SnapshotMetadata{
		SnapshotID:     snapshotID,
		CatalogRoot:    g.CatalogRoot,
		CatalogHash:    catalogHash,
		GraphHash:      sg.GraphHash,
		Label:          label,
		CreatedAtMilli: time.Now().UnixMilli(),
		BuiltAtMilli:   g.BuiltAtMilli,
		NodeCount:      g.NodeCount(),
		EdgeCount:      g.EdgeCount(),
		SchemaVersion:  GraphSchemaVersion,
		CompressedSize: int64(len(compressedData)),
		ContentHash:    hashBytes(compressedData),
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}

	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(dataKey(catalogHash, snapshotID)), compressedData); err != nil {
			return fmt.Errorf("storing data: %w", err)
		}
		if err := txn.Set([]byte(metaKey(catalogHash, snapshotID)), metaJSON); err != nil {
			return fmt.Errorf("storing metadata: %w", err)
		}
		if err := txn.Set([]byte(latestKey(catalogHash)), []byte(snapshotID)); err != nil {
			return fmt.Errorf("updating latest pointer: %w", err)
		}
		if err := txn.Set([]byte(keyPrefixSnapIndex+snapshotID), []byte(catalogHash)); err != nil {
			return fmt.Errorf("storing reverse index: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("writing snapshot to badger: %w", err)
	}

	m.logger.Info("snapshot saved",
		slog.String("snapshot_id", snapshotID),
		slog.String("catalog_root", g.CatalogRoot),
		slog.Int("node_count", meta.NodeCount),
		slog.Int("edge_count", meta.EdgeCount),
		slog.Int64("compressed_size", meta.CompressedSize),
	)
	return meta, nil
}

// Load retrieves a graph snapshot by its ID.
//
// Outputs:
//
//	*Graph - The reconstructed graph in read-only state.
//	*SnapshotMetadata - The snapshot metadata.
//	error - Wraps ErrSnapshotNotFound for an unknown ID; non-nil if
//	        integrity verification or reconstruction fails.
func (m *SnapshotManager) Load(ctx context.Context, snapshotID string) (g *Graph, meta *SnapshotMetadata, err error) {
	if ctx == nil {
		return nil, nil, fmt.Errorf("ctx must not be nil")
	}
	if snapshotID == "" {
		return nil, nil, fmt.Errorf("snapshot ID must not be empty")
	}
	start := time.Now()
	defer func() { recordSnapshotMetrics(ctx, "load", time.Since(start), err == nil) }()

	catalogHash, err := m.readString(keyPrefixSnapIndex + snapshotID)
	if err != nil {
		return nil, nil, fmt.Errorf("looking up snapshot %s: %w", snapshotID, err)
	}
	return m.loadByKeys(catalogHash, snapshotID)
}

// LoadLatest loads the most recent snapshot for a catalog.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//	catalogHash - The CatalogHash of the catalog root. Must not be empty.
//
// Outputs:
//
//	*Graph - The reconstructed graph in read-only state.
//	*SnapshotMetadata - The snapshot metadata.
//	error - Wraps ErrSnapshotNotFound if the catalog has no snapshot.
func (m *SnapshotManager) LoadLatest(ctx context.Context, catalogHash string) (*Graph, *SnapshotMetadata, error) {
	if ctx == nil {
		return nil, nil, fmt.Errorf("ctx must not be nil")
	}
	if catalogHash == "" {
		return nil, nil, fmt.Errorf("catalog hash must not be empty")
	}

	snapshotID, err := m.readString(latestKey(catalogHash))
	if err != nil {
		return nil, nil, fmt.Errorf("reading latest pointer for %s: %w", catalogHash, err)
	}
	return m.loadByKeys(catalogHash, snapshotID)
}

// List returns metadata for snapshots matching the optional catalog filter.
//
// Description:
//
//	Iterates metadata keys under the snapshot prefix. Results are ordered
//	by CreatedAtMilli descending (newest first), ties by SnapshotID.
//	Corrupt metadata entries are logged and skipped.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//	catalogHash - Optional filter. If empty, returns all snapshots.
//	limit - Maximum number of results. If <= 0, DefaultSnapshotListLimit.
//
// Outputs:
//
//	[]*SnapshotMetadata - The matching snapshots.
//	error - Non-nil if the read fails.
func (m *SnapshotManager) List(ctx context.Context, catalogHash string, limit int) ([]*SnapshotMetadata, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	if limit <= 0 {
		limit = DefaultSnapshotListLimit
	}

	prefix := keyPrefixSnap
	if catalogHash != "" {
		prefix = keyPrefixSnap + catalogHash + ":"
	}

	var results []*SnapshotMetadata
	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(prefix)); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			key := string(item.Key())
			if !strings.HasSuffix(key, keySuffixMeta) {
				continue
			}

			var meta SnapshotMetadata
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			}); err != nil {
				m.logger.Warn("skipping corrupt metadata", slog.String("key", key), slog.Any("error", err))
				continue
			}
			results = append(results, &meta)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].CreatedAtMilli != results[j].CreatedAtMilli {
			return results[i].CreatedAtMilli > results[j].CreatedAtMilli
		}
		return results[i].SnapshotID < results[j].SnapshotID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Delete removes a snapshot from BadgerDB.
//
// Description:
//
//	Removes the data, metadata and reverse index entries. If the deleted
//	snapshot was the catalog's latest, the latest pointer is removed too.
//
// Outputs:
//
//	error - Wraps ErrSnapshotNotFound for an unknown ID.
func (m *SnapshotManager) Delete(ctx context.Context, snapshotID string) (err error) {
	if ctx == nil {
		return fmt.Errorf("ctx must not be nil")
	}
	if snapshotID == "" {
		return fmt.Errorf("snapshot ID must not be empty")
	}
	start := time.Now()
	defer func() { recordSnapshotMetrics(ctx, "delete", time.Since(start), err == nil) }()

	catalogHash, err := m.readString(keyPrefixSnapIndex + snapshotID)
	if err != nil {
		return fmt.Errorf("looking up snapshot %s: %w", snapshotID, err)
	}

	err = m.db.Update(func(txn *badger.Txn) error {
		for _, key := range []string{
			dataKey(catalogHash, snapshotID),
			metaKey(catalogHash, snapshotID),
			keyPrefixSnapIndex + snapshotID,
		} {
			if err := txn.Delete([]byte(key)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("deleting %s: %w", key, err)
			}
		}

		item, err := txn.Get([]byte(latestKey(catalogHash)))
		if err != nil {
			return nil
		}
		var current string
		_ = item.Value(func(val []byte) error {
			current = string(val)
			return nil
		})
		if current == snapshotID {
			if err := txn.Delete([]byte(latestKey(catalogHash))); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("deleting latest pointer: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting snapshot %s: %w", snapshotID, err)
	}

	m.logger.Info("snapshot deleted", slog.String("snapshot_id", snapshotID))
	return nil
}

// loadByKeys loads a graph using a known catalogHash and snapshotID.
func (m *SnapshotManager) loadByKeys(catalogHash, snapshotID string) (*Graph, *SnapshotMetadata, error) {
	var compressedData, metaJSON []byte

	err := m.db.View(func(txn *badger.Txn) error {
		dataItem, err := txn.Get([]byte(dataKey(catalogHash, snapshotID)))
		if err != nil {
			return fmt.Errorf("reading data for %s: %w", snapshotID, notFound(err))
		}
		if compressedData, err = dataItem.ValueCopy(nil); err != nil {
			return fmt.Errorf("copying data for %s: %w", snapshotID, err)
		}

		metaItem, err := txn.Get([]byte(metaKey(catalogHash, snapshotID)))
		if err != nil {
			return fmt.Errorf("reading metadata for %s: %w", snapshotID, notFound(err))
		}
		if metaJSON, err = metaItem.ValueCopy(nil); err != nil {
			return fmt.Errorf("copying metadata for %s: %w", snapshotID, err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	var meta SnapshotMetadata
	if err := json.Unmarshal(metaJSON, &meta); err != nil {
		return nil, nil, fmt.Errorf("unmarshaling metadata for %s: %w", snapshotID, err)
	}
	if actual := hashBytes(compressedData); meta.ContentHash != "" && meta.ContentHash != actual {
		return nil, nil, fmt.Errorf("integrity check failed for %s: expected hash %s, got %s", snapshotID, meta.ContentHash, actual)
	}

	gr, err := gzip.NewReader(bytes.NewReader(compressedData))
	if err != nil {
		return nil, nil, fmt.Errorf("decompressing snapshot %s: %w", snapshotID, err)
	}
	defer gr.Close()

	jsonData, err := io.ReadAll(gr)
	if err != nil {
		return nil, nil, fmt.Errorf("reading decompressed data for %s: %w", snapshotID, err)
	}

	var sg SerializableGraph
	if err := json.Unmarshal(jsonData, &sg); err != nil {
		return nil, nil, fmt.Errorf("unmarshaling graph for %s: %w", snapshotID, err)
	}

	g, err := FromSerializable(&sg)
	if err != nil {
		return nil, nil, fmt.Errorf("reconstructing graph for %s: %w", snapshotID, err)
	}
	return g, &meta, nil
}

// readString reads a single string value.
func (m *SnapshotManager) readString(key string) (string, error) {
	var out string
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return notFound(err)
		}
		return item.Value(func(val []byte) error {
			out = string(val)
			return nil
		})
	})
	return out, err
}

// notFound maps badger's missing-key error onto ErrSnapshotNotFound.
func notFound(err error) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrSnapshotNotFound
	}
	return err
}

func dataKey(catalogHash, snapshotID string) string {
	return keyPrefixSnap + catalogHash + ":" + snapshotID + keySuffixData
}

func metaKey(catalogHash, snapshotID string) string {
	return keyPrefixSnap + catalogHash + ":" + snapshotID + keySuffixMeta
}

func latestKey(catalogHash string) string {
	return keyPrefixSnap + catalogHash + keySuffixLatest
}

// CatalogHash returns SHA256(catalogRoot)[:16] for use as a key prefix.
//
// Exported so handlers and the CLI can turn a catalog root into the hash
// used in storage.
func CatalogHash(catalogRoot string) string {
	return hashString(catalogRoot)[:16]
}

// hashString returns the hex-encoded SHA256 hash of a string.
func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// hashBytes returns the hex-encoded SHA256 hash of a byte slice.
func hashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

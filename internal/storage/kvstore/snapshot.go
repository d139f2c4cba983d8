// ABOUTME: Whole-store snapshots of every collection for export and import
// ABOUTME: Snapshots encode as JSON or YAML
package kvstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Snapshot is a point-in-time copy of every collection.
type Snapshot struct {
	Tool        string              `json:"tool" yaml:"tool"`
	Version     int                 `json:"version" yaml:"version"`
	ExportedAt  time.Time           `json:"exported_at" yaml:"exported_at"`
	Collections map[string][]Record `json:"collections" yaml:"collections"`
}

// Names returns the snapshot's collection names sorted.
func (s *Snapshot) Names() []string {
	names := make([]string, 0, len(s.Collections))
	for name := range s.Collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExportAll copies every declared collection.
func (s *Store) ExportAll(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{
		Tool:        "toolbox",
		Version:     s.Version(),
		ExportedAt:  time.Now().UTC(),
		Collections: map[string][]Record{},
	}
	for _, c := range s.Collections() {
		recs, err := s.GetAll(ctx, c.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to export %s: %w", c.Name, err)
		}
		snap.Collections[c.Name] = recs
	}
	return snap, nil
}

// ImportAll clears each collection named in the snapshot and re-adds its records.
// Collections missing from the snapshot are left alone.
func (s *Store) ImportAll(ctx context.Context, snap *Snapshot) error {
	if snap.Version > s.Version() {
		return fmt.Errorf("snapshot version %d is newer than store version %d", snap.Version, s.Version())
	}
	declared := map[string]bool{}
	for _, c := range s.Collections() {
		declared[c.Name] = true
	}
	names := snap.Names()
	for _, name := range names {
		if !declared[name] {
			return fmt.Errorf("%w: %s", ErrUnknownCollection, name)
		}
	}

	for _, name := range names {
		if err := s.Clear(ctx, name); err != nil {
			return err
		}
		for _, rec := range snap.Collections[name] {
			if _, err := s.Add(ctx, name, rec); err != nil {
				return fmt.Errorf("failed to import into %s: %w", name, err)
			}
		}
	}
	return nil
}

// Encode writes the snapshot as "json" or "yaml".
func (s *Snapshot) Encode(w io.Writer, format string) error {
	switch strings.ToLower(format) {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown snapshot format %q", format)
}

// DecodeSnapshot reads a JSON or YAML snapshot. JSON is detected by a leading brace.
func DecodeSnapshot(r io.Reader) (*Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap Snapshot
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&snap); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	for _, recs := range snap.Collections {
		for _, rec := range recs {
			for k, v := range rec {
				rec[k] = normalize(v)
			}
		}
	}
	return &snap, nil
}

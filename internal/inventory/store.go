package inventory

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/evanofslack/cddns/internal/provider"
	"gopkg.in/yaml.v3"
)

type Store interface {
	Load() (Inventory, error)
	Save(inv Inventory) error
}

// Annotations maps a zone or record reference to the note written beside it.
// A record note keyed by RecordKey wins over one keyed by the bare record.
type Annotations map[string]string

// RecordKey scopes a record reference to the zone it was declared with.
func RecordKey(zone, record string) string {
	return zone + "/" + record
}

// FileStore keeps the inventory as a YAML document on disk. Notes found in
// the file on Load are kept for later Saves, unless Notes already has them.
type FileStore struct {
	Path  string
	Notes Annotations
	Now   func() time.Time
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path, Now: time.Now}
}

func (s *FileStore) Load() (Inventory, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return Inventory{}, fmt.Errorf("%w: %s", ErrNotFound, s.Path)
	}
	if err != nil {
		return Inventory{}, err
	}

	inv, err := Decode(bytes.NewReader(data))
	if err != nil {
		return Inventory{}, fmt.Errorf("%s: %w", s.Path, err)
	}
	notes, err := ReadNotes(bytes.NewReader(data))
	if err != nil {
		return Inventory{}, fmt.Errorf("%s: %w", s.Path, err)
	}
	if len(notes) > 0 && s.Notes == nil {
		s.Notes = Annotations{}
	}
	for k, v := range notes {
		if _, ok := s.Notes[k]; !ok {
			s.Notes[k] = v
		}
	}
	slog.Debug("Loaded inventory", "path", s.Path, "records", len(inv.Records), "notes", len(notes))
	return inv, nil
}

// Save stamps the generation time and replaces the file atomically.
func (s *FileStore) Save(inv Inventory) error {
	if s.Now != nil {
		inv.GeneratedAt = s.Now().UTC().Truncate(time.Second)
	}

	var buf bytes.Buffer
	if err := Encode(&buf, inv, s.Notes); err != nil {
		return err
	}

	dir := filepath.Dir(s.Path)
	tmp, err := os.CreateTemp(dir, ".inventory-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write inventory: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync inventory: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return fmt.Errorf("replace inventory: %w", err)
	}
	slog.Debug("Saved inventory", "path", s.Path, "records", len(inv.Records))
	return nil
}

func Decode(r io.Reader) (Inventory, error) {
	var inv Inventory
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&inv); err != nil && !errors.Is(err, io.EOF) {
		return Inventory{}, fmt.Errorf("decode inventory: %w", err)
	}
	for i := range inv.Records {
		inv.Records[i].Type = normalizeType(inv.Records[i].Type)
	}
	if err := inv.Validate(); err != nil {
		return Inventory{}, fmt.Errorf("invalid inventory: %w", err)
	}
	return inv, nil
}

// Encode writes inv as YAML. Zone and record values found in notes get a
// trailing comment.
func Encode(w io.Writer, inv Inventory, notes Annotations) error {
	if inv.Records == nil {
		inv.Records = []Record{}
	}
	var doc yaml.Node
	if err := doc.Encode(inv); err != nil {
		return fmt.Errorf("encode inventory: %w", err)
	}
	if len(notes) > 0 {
		annotate(&doc, notes)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("encode inventory: %w", err)
	}
	return enc.Close()
}

// ReadNotes collects the trailing comments of zone and record values, keyed
// the way Encode looks them up.
func ReadNotes(r io.Reader) (Annotations, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode inventory: %w", err)
	}
	notes := Annotations{}
	eachEntry(&doc, func(zone, record *yaml.Node) {
		if note := lineNote(zone); note != "" {
			notes[zone.Value] = note
		}
		if record == nil {
			return
		}
		if note := lineNote(record); note != "" {
			notes[RecordKey(zone.Value, record.Value)] = note
		}
	})
	return notes, nil
}

func annotate(doc *yaml.Node, notes Annotations) {
	eachEntry(doc, func(zone, record *yaml.Node) {
		setNote(zone, notes[zone.Value])
		if record != nil {
			note, ok := notes[RecordKey(zone.Value, record.Value)]
			if !ok {
				note = notes[record.Value]
			}
			setNote(record, note)
		}
	})
}

// eachEntry calls fn with the zone and record value nodes of every record
// entry. record is nil when the entry has none.
func eachEntry(doc *yaml.Node, fn func(zone, record *yaml.Node)) {
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}
	records := mappingValue(doc, "records")
	if records == nil || records.Kind != yaml.SequenceNode {
		return
	}
	for _, entry := range records.Content {
		zone := mappingValue(entry, "zone")
		if zone == nil {
			continue
		}
		fn(zone, mappingValue(entry, "record"))
	}
}

func setNote(n *yaml.Node, note string) {
	if note != "" {
		n.LineComment = "# " + note
	}
}

// lineNote returns the trailing comment of a value without its marker.
func lineNote(value *yaml.Node) string {
	return strings.TrimSpace(strings.TrimPrefix(value.LineComment, "#"))
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

func normalizeType(t provider.RecordType) provider.RecordType {
	return provider.RecordType(strings.ToUpper(string(t)))
}

package normalize

import (
	"strings"
	"time"

	"github.com/custodia-labs/harvester/internal/core/domain"
)

// Kind selects the coercion applied to a mapped field.
type Kind int

const (
	// KindString keeps the first surviving scalar as a string.
	KindString Kind = iota

	// KindInt coerces to an integer, dropping the field on failure.
	KindInt

	// KindFloat coerces to a float, dropping the field on failure.
	KindFloat

	// KindList preserves the value as an ordered list of scalars.
	KindList

	// KindDate emits the paired <target>_epoch and <target>_iso fields.
	KindDate
)

// Field maps one raw source key to a canonical target field.
type Field struct {
	// Target is the canonical field name.
	Target string

	// Source is the raw key, optionally a dot path into nested objects.
	Source string

	// Kind is the coercion to apply.
	Kind Kind
}

// Schema is a declarative field map for one upstream record shape.
// Schemas are data, not code: adding a dataset means adding a table.
type Schema struct {
	// Name identifies the schema in dataset configuration.
	Name string

	// Fields are the mappings applied in order.
	Fields []Field

	// Identity lists raw source keys tried in order for the record
	// identity; the first non-empty candidate wins. When none yields a
	// value the record falls back to a content fingerprint.
	Identity []string

	// Passthrough copies every raw key through scalar normalisation
	// instead of applying Fields. Used for tabular portal datasets
	// whose columns are not known ahead of time.
	Passthrough bool
}

// Record normalises one raw record. The boolean is false when the
// record normalises to nothing at all and should be discarded.
func (s *Schema) Record(raw map[string]any, ds domain.DatasetDescriptor, sourceURL string, now time.Time) (domain.NormalizedRecord, bool) {
	fields := make(map[string]any)

	if s.Passthrough {
		for key, value := range raw {
			if v, ok := Value(value, false); ok {
				fields[key] = v
			}
		}
	} else {
		for _, f := range s.Fields {
			value := lookup(raw, f.Source)
			switch f.Kind {
			case KindInt:
				if n, ok := Int(value); ok {
					fields[f.Target] = n
				}
			case KindFloat:
				if n, ok := Float(value); ok {
					fields[f.Target] = n
				}
			case KindList:
				if v, ok := Value(value, true); ok {
					fields[f.Target] = v
				}
			case KindDate:
				if epoch, iso, ok := EpochISO(value); ok {
					fields[f.Target+"_epoch"] = epoch
					fields[f.Target+"_iso"] = iso
				}
			default:
				if v, ok := Value(value, false); ok {
					fields[f.Target] = v
				}
			}
		}
	}

	if len(fields) == 0 {
		return domain.NormalizedRecord{}, false
	}

	identity := s.resolveIdentity(raw)
	if identity == "" {
		identity = Fingerprint(fields)
	}
	if identity == "" {
		return domain.NormalizedRecord{}, false
	}

	fields["dataset_key"] = ds.Key
	fields["source_url"] = sourceURL
	fields["extracted_at_iso"] = now.UTC().Format(time.RFC3339)

	return domain.NormalizedRecord{
		Identity:   identity,
		DatasetKey: ds.Key,
		SourceURL:  sourceURL,
		Fields:     fields,
	}, true
}

// HasIdentity reports whether the raw record carries any of the
// schema's identity candidates. Connectors over mixed payloads use it
// to tell dataset records apart from unrelated embedded objects.
func (s *Schema) HasIdentity(raw map[string]any) bool {
	return s.resolveIdentity(raw) != ""
}

// SourceKeys returns the raw keys the schema maps from.
func (s *Schema) SourceKeys() []string {
	keys := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		keys = append(keys, f.Source)
	}
	return keys
}

// resolveIdentity tries the schema's identity candidates in order
// against the raw record.
func (s *Schema) resolveIdentity(raw map[string]any) string {
	for _, key := range s.Identity {
		if v, ok := String(lookup(raw, key)); ok {
			return v
		}
	}
	return ""
}

// Merge overlays enrichment fields onto a record's fields. Enrichment
// data overrides the summary value when both are present, since detail
// pages carry richer information.
func Merge(base, enrichment map[string]any) {
	for key, value := range enrichment {
		if value == nil {
			continue
		}
		base[key] = value
	}
}

// lookup resolves a source key, following dots into nested objects.
func lookup(raw map[string]any, path string) any {
	if !strings.Contains(path, ".") {
		return raw[path]
	}
	var node any = raw
	for _, key := range strings.Split(path, ".") {
		obj, ok := node.(map[string]any)
		if !ok {
			return nil
		}
		node = obj[key]
	}
	return node
}

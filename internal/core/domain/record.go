package domain

// RawDocument is the decoded payload extracted from a single fetched
// page or response. It is transient: consumed immediately by the
// normaliser and never persisted.
type RawDocument struct {
	// DatasetKey links the payload to the dataset that produced it.
	DatasetKey string

	// SourceURL is the final URL the payload was fetched from.
	SourceURL string

	// Records are the row-shaped entries located inside the payload.
	Records []map[string]any
}

// NormalizedRecord is the canonical record produced by the normaliser.
// Records are created once per raw record per run and never mutated; a
// later run's record with the same identity supersedes it wholesale in
// the index (replace, not merge).
type NormalizedRecord struct {
	// Identity is the stable record identity: an explicit source ID, an
	// external reference number, or a content fingerprint. Never empty.
	Identity string

	// DatasetKey is the owning dataset's key.
	DatasetKey string

	// SourceURL is where the record was extracted from.
	SourceURL string

	// Fields maps canonical field names to scalar or list-of-scalar
	// values. Absent fields mean "unknown"; empty values are never kept.
	Fields map[string]any
}

// IndexID returns the document ID used in the search index. When the
// dataset's identities are not globally unique the ID is qualified with
// the dataset key so repeated submission stays idempotent.
func (r NormalizedRecord) IndexID(qualify bool) string {
	if r.Identity == "" {
		return ""
	}
	if qualify && r.DatasetKey != "" {
		return r.DatasetKey + "-" + r.Identity
	}
	return r.Identity
}

// IndexDocument is the wire-level representation submitted to the
// search index. Identical identities always map to the same ID.
type IndexDocument struct {
	// Index is the target index name.
	Index string

	// ID is the document ID derived from the record identity.
	ID string

	// Source holds the record fields submitted as the document body.
	Source map[string]any
}

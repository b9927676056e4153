package domain

// SourceKind identifies the upstream access pattern for a dataset.
type SourceKind string

const (
	// SourceListing is a paginated listing site whose pages embed a
	// bootstrap JSON payload or streamed script chunks. Listing feeds are
	// sorted by recency, so pagination stops at the first known record.
	SourceListing SourceKind = "listing"

	// SourcePortal is an open-data portal page that exposes datasets
	// through its bootstrap payload, fetched incrementally by date window.
	SourcePortal SourceKind = "portal"
)

// PayloadDialect identifies how a listing page embeds its payload.
type PayloadDialect string

const (
	// DialectBootstrap is a single bootstrap script block holding one
	// JSON document for the whole page.
	DialectBootstrap PayloadDialect = "bootstrap"

	// DialectStream is the streamed chunk protocol: many script-injected
	// fragments, each wrapping an escaped JSON-ish string.
	DialectStream PayloadDialect = "stream"
)

// DatasetDescriptor describes one harvested dataset. Descriptors are
// loaded once at startup and never mutated.
type DatasetDescriptor struct {
	// Key is the stable identity used for watermark state and reporting.
	Key string

	// Label is the human-readable name, also used to locate the dataset
	// node inside portal payloads.
	Label string

	// Kind selects the upstream access pattern.
	Kind SourceKind

	// Endpoint is the source URL. For listing datasets it is a template
	// containing a {page} placeholder; for portal datasets it is the
	// portal page URL.
	Endpoint string

	// Index is the target search index name.
	Index string

	// DateField is the record field used for watermarking. Empty for
	// feeds that rely on boundary deduplication instead.
	DateField string

	// BufferDays overrides the global overlap buffer when positive.
	BufferDays int

	// QualifyIDs prefixes index document IDs with the dataset key.
	// Required when source identities are not globally unique.
	QualifyIDs bool

	// Pages caps how many listing pages are fetched per run.
	Pages int

	// Dialect selects the embedded payload shape for listing datasets.
	Dialect PayloadDialect

	// RecordPath is the dot-separated path from the bootstrap payload
	// root to the record collection (e.g. "props.pageProps.data.data.hits").
	RecordPath string

	// RecordWrapKey unwraps each collection element at this key before
	// normalisation (e.g. "fields" for search-hit shaped records).
	RecordWrapKey string

	// StreamPrefix selects entity objects out of streamed chunks by
	// their raw text prefix (e.g. `{"@type":"Car"`). Empty keeps every
	// chunk object that carries a schema identity instead.
	StreamPrefix string

	// Schema names the field-mapping table applied by the normaliser.
	// Empty selects the generic passthrough schema.
	Schema string

	// DetailURLField names the normalised field holding the detail page
	// URL. Empty disables detail enrichment.
	DetailURLField string

	// Slug locates the dataset node inside portal payloads when it
	// differs from Key.
	Slug string
}

// PortalSlug returns the slug used for dataset node discovery.
func (d DatasetDescriptor) PortalSlug() string {
	if d.Slug != "" {
		return d.Slug
	}
	return d.Key
}

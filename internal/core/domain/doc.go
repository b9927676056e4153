// Package domain contains the core types of the ingestion pipeline:
// dataset descriptors, raw and normalised records, watermark state, run
// reports, and the error taxonomy. It has no dependencies on adapters.
package domain

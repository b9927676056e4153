// Package driven defines the outbound ports of the ingestion core:
// interfaces the core depends on, implemented by adapters (HTTP fetcher,
// search index client, watermark state stores, dataset connectors).
package driven

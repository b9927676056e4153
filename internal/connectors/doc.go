// Package connectors provides implementations of the Connector
// interface for the harvested source types. Each connector knows how
// to walk one upstream shape: paginated listing sites with embedded
// payloads, or open-data portal pages fetched by date window.
package connectors

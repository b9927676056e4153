// Package listing harvests paginated listing sites. Pages embed their
// records either as a single bootstrap JSON block or as streamed script
// chunks; both dialects normalise through the dataset's schema. Feeds
// are sorted by recency, so pagination stops at the first record the
// index already knows.
package listing

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/harvester/internal/core/domain"
	"github.com/custodia-labs/harvester/internal/core/ports/driven"
	"github.com/custodia-labs/harvester/internal/extract"
	"github.com/custodia-labs/harvester/internal/logger"
	"github.com/custodia-labs/harvester/internal/normalize"
)

// pagePlaceholder marks where the page number goes in the endpoint.
const pagePlaceholder = "{page}"

// Connector harvests one listing dataset.
type Connector struct {
	ds           domain.DatasetDescriptor
	fetcher      driven.Fetcher
	schema       *normalize.Schema
	detailSchema *normalize.Schema
	now          func() time.Time
}

var _ driven.Connector = (*Connector)(nil)

// New creates a connector for the dataset. The dataset's schema name
// must resolve; detail enrichment activates when the dataset names a
// detail URL field and a companion "<schema>_detail" schema exists.
func New(ds domain.DatasetDescriptor, fetcher driven.Fetcher, now func() time.Time) (*Connector, error) {
	schema, err := normalize.ForName(ds.Schema)
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	c := &Connector{ds: ds, fetcher: fetcher, schema: schema, now: now}
	if ds.DetailURLField != "" && ds.Schema != "" {
		if detail, err := normalize.ForName(ds.Schema + "_detail"); err == nil {
			c.detailSchema = detail
		}
	}
	return c, nil
}

// Dataset returns the descriptor this connector was built for.
func (c *Connector) Dataset() domain.DatasetDescriptor {
	return c.ds
}

// Harvest walks the feed page by page until the page cap, an empty
// page, a known record or a record older than the window.
func (c *Connector) Harvest(ctx context.Context, window domain.FetchWindow, known driven.ExistsFunc) ([]domain.NormalizedRecord, int, error) {
	var records []domain.NormalizedRecord
	pageErrors := 0

	for page := 1; page <= c.ds.Pages; page++ {
		if page > 1 {
			if err := c.fetcher.Politeness(ctx); err != nil {
				return records, pageErrors, err
			}
		}

		url := pageURL(c.ds.Endpoint, page)
		markup, finalURL, err := c.fetcher.Fetch(ctx, url)
		if err != nil {
			return records, pageErrors, err
		}

		raws, err := c.extractPage(markup)
		if err != nil {
			logger.Warn("dataset %s: page %d: %v", c.ds.Key, page, err)
			pageErrors++
			continue
		}
		if len(raws) == 0 {
			// End of the feed.
			break
		}

		stop := false
		for _, raw := range raws {
			rec, ok := c.schema.Record(raw, c.ds, finalURL, c.now())
			if !ok {
				continue
			}

			if known != nil {
				exists, err := known(ctx, rec.IndexID(c.ds.QualifyIDs))
				if err != nil {
					return records, pageErrors, err
				}
				if exists {
					// Everything beyond this record is already indexed.
					logger.Debug("dataset %s: boundary hit at %s", c.ds.Key, rec.Identity)
					stop = true
					break
				}
			}
			if c.beforeWindow(rec, window) {
				stop = true
				break
			}

			if err := c.enrich(ctx, &rec); err != nil {
				if domain.IsBlocked(err) || domain.IsNetwork(err) {
					return records, pageErrors, err
				}
				logger.Warn("dataset %s: detail for %s: %v", c.ds.Key, rec.Identity, err)
				pageErrors++
			}
			records = append(records, rec)
		}
		if stop {
			break
		}

		// An endpoint without a page placeholder is a single page.
		if !strings.Contains(c.ds.Endpoint, pagePlaceholder) {
			break
		}
	}
	return records, pageErrors, nil
}

// extractPage pulls raw records out of one page's markup.
func (c *Connector) extractPage(markup string) ([]map[string]any, error) {
	switch c.ds.Dialect {
	case domain.DialectStream:
		return c.streamRecords(markup), nil
	default:
		payload, err := extract.Bootstrap(markup)
		if err != nil {
			return nil, err
		}
		return extract.CollectionAt(payload, c.ds.RecordPath, c.ds.RecordWrapKey)
	}
}

// streamRecords collects the chunk-embedded objects that match the
// dataset's entity prefix, or that carry the schema's identity when no
// prefix is configured; everything else in the stream is framework
// noise.
func (c *Connector) streamRecords(markup string) []map[string]any {
	if c.ds.StreamPrefix != "" {
		return extract.ObjectsWithPrefix(markup, c.ds.StreamPrefix)
	}

	var raws []map[string]any
	for _, chunk := range extract.DecodeChunks(markup) {
		for _, obj := range extract.Objects(chunk) {
			if c.schema.HasIdentity(obj) {
				raws = append(raws, obj)
			}
		}
	}
	return raws
}

// beforeWindow reports whether the record's watermark date falls before
// the fetch window. Records without a parseable date never stop the
// walk.
func (c *Connector) beforeWindow(rec domain.NormalizedRecord, window domain.FetchWindow) bool {
	if c.ds.DateField == "" || window.Start.IsZero() {
		return false
	}
	date, ok := normalize.ParseDate(rec.Fields[c.ds.DateField])
	if !ok {
		return false
	}
	return date.Before(window.Start)
}

// enrich merges the record's detail page fields into the record.
func (c *Connector) enrich(ctx context.Context, rec *domain.NormalizedRecord) error {
	if c.detailSchema == nil {
		return nil
	}
	detailURL, ok := rec.Fields[c.ds.DetailURLField].(string)
	if !ok || detailURL == "" {
		return nil
	}

	if err := c.fetcher.Politeness(ctx); err != nil {
		return err
	}
	markup, finalURL, err := c.fetcher.Fetch(ctx, detailURL)
	if err != nil {
		return err
	}
	payload, err := extract.Bootstrap(markup)
	if err != nil {
		return err
	}

	node := c.findDetailNode(payload)
	if node == nil {
		return &domain.ExtractionError{URL: detailURL, Reason: "no detail record in payload"}
	}
	detail, ok := c.detailSchema.Record(node, c.ds, finalURL, c.now())
	if !ok {
		return nil
	}
	normalize.Merge(rec.Fields, detail.Fields)
	return nil
}

// findDetailNode locates the payload node carrying the detail record:
// the shallowest map containing several of the detail schema's source
// keys.
func (c *Connector) findDetailNode(payload map[string]any) map[string]any {
	keys := c.detailSchema.SourceKeys()
	return extract.Walk(payload, func(node map[string]any) bool {
		matched := 0
		for _, key := range keys {
			if _, ok := node[key]; ok {
				matched++
			}
		}
		return matched >= 2
	})
}

func pageURL(endpoint string, page int) string {
	return strings.ReplaceAll(endpoint, pagePlaceholder, strconv.Itoa(page))
}

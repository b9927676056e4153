// Package elastic implements the IndexWriter port against an
// Elasticsearch-compatible HTTP API: idempotent index creation, bulk
// upserts keyed by document ID and point existence checks.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/harvester/internal/core/domain"
	"github.com/custodia-labs/harvester/internal/core/ports/driven"
	"github.com/custodia-labs/harvester/internal/logger"
)

const (
	// DefaultTimeout is the default HTTP request timeout. Bulk requests
	// against a cold index can be slow.
	DefaultTimeout = 120 * time.Second

	// DefaultBatchSize is the number of documents per bulk request.
	DefaultBatchSize = 500

	// maxFailureReasons caps the rejection reasons kept per submission.
	maxFailureReasons = 5
)

// Options configures the client.
type Options struct {
	// Endpoint is the cluster base URL.
	Endpoint string

	// Username and Password enable basic auth when set.
	Username string
	Password string

	// BatchSize overrides DefaultBatchSize when positive.
	BatchSize int

	// Timeout overrides DefaultTimeout when positive.
	Timeout time.Duration
}

// Client talks to one cluster.
type Client struct {
	http      *http.Client
	endpoint  string
	username  string
	password  string
	batchSize int
}

var _ driven.IndexWriter = (*Client)(nil)

// New creates a Client for the given cluster.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	return &Client{
		http:      &http.Client{Timeout: timeout},
		endpoint:  strings.TrimRight(opts.Endpoint, "/"),
		username:  opts.Username,
		password:  opts.Password,
		batchSize: batch,
	}
}

// EnsureIndex creates index with the harvest mapping unless it already
// exists. Concurrent creation races resolve to the existing index.
func (c *Client) EnsureIndex(ctx context.Context, index string) error {
	resp, err := c.do(ctx, http.MethodHead, "/"+index, nil, "")
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	if resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("check index %s: unexpected status %d", index, resp.StatusCode)
	}

	resp, err = c.do(ctx, http.MethodPut, "/"+index, strings.NewReader(indexBody), "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusOK {
		logger.Info("created index %s", index)
		return nil
	}
	// Another writer won the creation race.
	if resp.StatusCode == http.StatusBadRequest && bytes.Contains(body, []byte("resource_already_exists_exception")) {
		return nil
	}
	return fmt.Errorf("create index %s: status %d: %s", index, resp.StatusCode, truncate(body))
}

// BulkUpsert submits docs in batches, replacing each document by ID.
// Per-document rejections are reported in the outcome, not raised; only
// transport-level failures return an error.
func (c *Client) BulkUpsert(ctx context.Context, docs []domain.IndexDocument) (driven.BulkOutcome, error) {
	var outcome driven.BulkOutcome
	for start := 0; start < len(docs); start += c.batchSize {
		end := min(start+c.batchSize, len(docs))
		batch, err := c.bulkBatch(ctx, docs[start:end])
		if err != nil {
			return outcome, err
		}
		outcome.Add(batch)
	}
	return outcome, nil
}

func (c *Client) bulkBatch(ctx context.Context, docs []domain.IndexDocument) (driven.BulkOutcome, error) {
	var outcome driven.BulkOutcome
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	submitted := 0
	for _, doc := range docs {
		if doc.ID == "" {
			// Never let the server mint an ID; that breaks idempotence.
			outcome.Failed++
			outcome.Reasons = appendReason(outcome.Reasons, "document without ID dropped")
			continue
		}
		action := map[string]map[string]string{
			"index": {"_index": doc.Index, "_id": doc.ID},
		}
		if err := enc.Encode(action); err != nil {
			return outcome, fmt.Errorf("encode bulk action: %w", err)
		}
		if err := enc.Encode(doc.Source); err != nil {
			return outcome, fmt.Errorf("encode bulk document: %w", err)
		}
		submitted++
	}
	if submitted == 0 {
		return outcome, nil
	}

	resp, err := c.do(ctx, http.MethodPost, "/_bulk", &body, "application/x-ndjson")
	if err != nil {
		return outcome, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return outcome, fmt.Errorf("read bulk response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return outcome, fmt.Errorf("bulk request: status %d: %s", resp.StatusCode, truncate(data))
	}

	var parsed bulkResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return outcome, fmt.Errorf("decode bulk response: %w", err)
	}
	for _, item := range parsed.Items {
		result := item["index"]
		if result.Status >= 200 && result.Status < 300 {
			outcome.Indexed++
			continue
		}
		outcome.Failed++
		reason := result.Error.Reason
		if reason == "" {
			reason = fmt.Sprintf("status %d", result.Status)
		}
		outcome.Reasons = appendReason(outcome.Reasons, reason)
	}
	return outcome, nil
}

// Exists reports whether a document with the given ID is present.
func (c *Client) Exists(ctx context.Context, index, id string) (bool, error) {
	resp, err := c.do(ctx, http.MethodHead, "/"+index+"/_doc/"+id, nil, "")
	if err != nil {
		return false, err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("exists %s/%s: unexpected status %d", index, id, resp.StatusCode)
	}
}

// Ping verifies the cluster is reachable.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/", nil, "")
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", domain.ErrIndexUnavailable, resp.StatusCode)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	return resp, nil
}

type bulkResponse struct {
	Errors bool                  `json:"errors"`
	Items  []map[string]bulkItem `json:"items"`
}

type bulkItem struct {
	Status int `json:"status"`
	Error  struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

func appendReason(reasons []string, reason string) []string {
	if len(reasons) >= maxFailureReasons {
		return reasons
	}
	return append(reasons, reason)
}

func truncate(b []byte) string {
	const limit = 200
	if len(b) > limit {
		b = b[:limit]
	}
	return string(b)
}

package esindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/rs/zerolog"
)

// Client is the production Backend, a thin wrapper over
// github.com/elastic/go-elasticsearch/v8 (spec §6). cmd/gws-scanner
// builds one Client per OS process, shared by the Coordinator, the sink
// and the aggregator; Stage A never touches the backend.
type Client struct {
	es  *elasticsearch.Client
	log zerolog.Logger
}

// NewClient builds a Client from an already-constructed
// elasticsearch.Client, so cmd/ owns TLS/auth/address configuration via
// config.Config and viper (spec §6 treats those as external collaborator
// concerns).
func NewClient(es *elasticsearch.Client, log zerolog.Logger) *Client {
	return &Client{es: es, log: log.With().Str("component", "esindex").Logger()}
}

var _ Backend = (*Client)(nil)

// EnsureAlias creates alias's `{alias}-*` index template if absent and,
// if alias does not yet resolve to a backing index, creates one named
// `{alias}-YYYYMMDDHHMMSSffffff` and swaps alias onto it (spec §6).
func (c *Client) EnsureAlias(ctx context.Context, alias string) error {
	tmpl := map[string]any{
		"index_patterns": []string{alias + "-*"},
		"template": map[string]any{
			"settings": map[string]any{
				"number_of_shards":   1,
				"number_of_replicas": 1,
			},
		},
	}
	body, err := json.Marshal(tmpl)
	if err != nil {
		return err
	}
	putTmpl := esapi.IndicesPutIndexTemplateRequest{
		Name: alias + "-template",
		Body: bytes.NewReader(body),
	}
	res, err := putTmpl.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("put index template %s: %w", alias, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("put index template %s: %s", alias, res.String())
	}

	existsRes, err := (esapi.IndicesExistsAliasRequest{Name: []string{alias}}).Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("check alias %s: %w", alias, err)
	}
	defer existsRes.Body.Close()
	if existsRes.StatusCode == 200 {
		return nil
	}

	backing := BackingIndexName(alias, time.Now())
	createRes, err := (esapi.IndicesCreateRequest{Index: backing}).Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("create backing index %s: %w", backing, err)
	}
	defer createRes.Body.Close()
	if createRes.IsError() {
		return fmt.Errorf("create backing index %s: %s", backing, createRes.String())
	}

	return c.SwapAlias(ctx, alias, "", backing)
}

// SwapAlias atomically removes alias from oldIndex (if non-empty) and
// adds it to newIndex (spec §6 "atomically swap the alias").
func (c *Client) SwapAlias(ctx context.Context, alias, oldIndex, newIndex string) error {
	actions := make([]map[string]any, 0, 2)
	if oldIndex != "" {
		actions = append(actions, map[string]any{"remove": map[string]any{"index": oldIndex, "alias": alias}})
	}
	actions = append(actions, map[string]any{"add": map[string]any{"index": newIndex, "alias": alias}})

	body, err := json.Marshal(map[string]any{"actions": actions})
	if err != nil {
		return err
	}
	res, err := (esapi.IndicesUpdateAliasesRequest{Body: bytes.NewReader(body)}).Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("swap alias %s: %w", alias, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("swap alias %s: %s", alias, res.String())
	}
	return nil
}

func (c *Client) IndexDocument(ctx context.Context, alias string, doc any) (string, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	res, err := (esapi.IndexRequest{Index: alias, Body: bytes.NewReader(body)}).Do(ctx, c.es)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if res.IsError() {
		return "", fmt.Errorf("index into %s: %s", alias, res.String())
	}
	var decoded struct {
		ID string `json:"_id"`
	}
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return "", err
	}
	return decoded.ID, nil
}

func (c *Client) UpdateDocument(ctx context.Context, alias, id string, partial any) error {
	body, err := json.Marshal(map[string]any{"doc": partial})
	if err != nil {
		return err
	}
	res, err := (esapi.UpdateRequest{Index: alias, DocumentID: id, Body: bytes.NewReader(body)}).Do(ctx, c.es)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("update %s/%s: %s", alias, id, res.String())
	}
	return nil
}

// BulkIndex performs one NDJSON bulk request (spec §4.6): one action
// line plus one source line per document, all targeting alias.
func (c *Client) BulkIndex(ctx context.Context, alias string, docs []any) error {
	if len(docs) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, doc := range docs {
		action, err := json.Marshal(map[string]any{"index": map[string]any{"_index": alias}})
		if err != nil {
			return err
		}
		source, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		buf.Write(action)
		buf.WriteByte('\n')
		buf.Write(source)
		buf.WriteByte('\n')
	}

	res, err := (esapi.BulkRequest{Body: bytes.NewReader(buf.Bytes())}).Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("bulk index %d docs into %s: %w", len(docs), alias, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("bulk index %d docs into %s: %s", len(docs), alias, res.String())
	}

	var decoded struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Error *struct {
				Reason string `json:"reason"`
			} `json:"error,omitempty"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return err
	}
	if decoded.Errors {
		for _, item := range decoded.Items {
			for _, result := range item {
				if result.Error != nil {
					c.log.Warn().Str("reason", result.Error.Reason).Msg("bulk item failed")
				}
			}
		}
		return fmt.Errorf("bulk index into %s: one or more items failed", alias)
	}
	return nil
}

func (c *Client) DeleteByQuery(ctx context.Context, alias string, filter Filter) error {
	query := pathScanQuery(filter)
	body, err := json.Marshal(map[string]any{"query": query})
	if err != nil {
		return err
	}
	res, err := (esapi.DeleteByQueryRequest{
		Index:     []string{alias},
		Body:      bytes.NewReader(body),
		Conflicts: "proceed",
	}).Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("delete by query on %s: %w", alias, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("delete by query on %s: %s", alias, res.String())
	}
	return nil
}

func (c *Client) SumByBucket(ctx context.Context, alias string, filter Filter, bucketField string) (map[string]Bucket, error) {
	keys, err := c.FieldNames(ctx, alias, bucketField)
	if err != nil {
		return nil, err
	}
	aggs := make(map[string]any, len(keys)*2)
	for _, k := range keys {
		aggs[k+"_size"] = map[string]any{"sum": map[string]any{"field": fmt.Sprintf("%s.%s.size", bucketField, k)}}
		aggs[k+"_count"] = map[string]any{"sum": map[string]any{"field": fmt.Sprintf("%s.%s.count", bucketField, k)}}
	}

	reqBody := map[string]any{
		"size":  0,
		"query": pathScanQuery(filter),
		"aggs":  aggs,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}
	res, err := (esapi.SearchRequest{Index: []string{alias}, Body: bytes.NewReader(body)}).Do(ctx, c.es)
	if err != nil {
		return nil, fmt.Errorf("roll-up query on %s.%s: %w", alias, bucketField, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("roll-up query on %s.%s: %s", alias, bucketField, res.String())
	}

	var decoded struct {
		Aggregations map[string]struct {
			Value float64 `json:"value"`
		} `json:"aggregations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return nil, err
	}

	out := make(map[string]Bucket, len(keys))
	for _, k := range keys {
		b := out[k]
		if v, ok := decoded.Aggregations[k+"_size"]; ok {
			b.Size = int64(v.Value)
		}
		if v, ok := decoded.Aggregations[k+"_count"]; ok {
			b.Count = int64(v.Value)
		}
		if b.Count > 0 || b.Size > 0 {
			out[k] = b
		}
	}
	return out, nil
}

// FieldNames discovers bucketField's current sub-keys from alias's live
// mapping (spec §4.8, §9): the source of truth for dynamic filetypes and
// users buckets, never pre-declared.
func (c *Client) FieldNames(ctx context.Context, alias, bucketField string) ([]string, error) {
	res, err := (esapi.IndicesGetMappingRequest{Index: []string{alias}}).Do(ctx, c.es)
	if err != nil {
		return nil, fmt.Errorf("get mapping for %s: %w", alias, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("get mapping for %s: %s", alias, res.String())
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	var decoded map[string]struct {
		Mappings struct {
			Properties map[string]struct {
				Properties map[string]json.RawMessage `json:"properties"`
			} `json:"properties"`
		} `json:"mappings"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	for _, idx := range decoded {
		field, ok := idx.Mappings.Properties[bucketField]
		if !ok {
			continue
		}
		for key := range field.Properties {
			seen[key] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	return names, nil
}

func (c *Client) PriorScanIDs(ctx context.Context, alias, path, excludeScanID string) ([]ScanRef, error) {
	query := map[string]any{
		"bool": map[string]any{
			"must": []map[string]any{
				{"term": map[string]any{"path": path}},
			},
			"must_not": []map[string]any{
				{"term": map[string]any{"_id": excludeScanID}},
			},
		},
	}
	body, err := json.Marshal(map[string]any{"query": query, "size": 1000})
	if err != nil {
		return nil, err
	}
	res, err := (esapi.SearchRequest{Index: []string{alias}, Body: bytes.NewReader(body)}).Do(ctx, c.es)
	if err != nil {
		return nil, fmt.Errorf("prior scan lookup for %s: %w", path, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("prior scan lookup for %s: %s", path, res.String())
	}

	var decoded struct {
		Hits struct {
			Hits []struct {
				ID     string `json:"_id"`
				Source struct {
					Status string `json:"status"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	refs := make([]ScanRef, 0, len(decoded.Hits.Hits))
	for _, h := range decoded.Hits.Hits {
		refs = append(refs, ScanRef{ScanID: h.ID, Status: h.Source.Status})
	}
	return refs, nil
}

// LastScan finds the most recently started volume document for path
// (spec §9, daemon interval gating), sorting server-side so only one
// document crosses the wire.
func (c *Client) LastScan(ctx context.Context, alias, path string) (LastScan, bool, error) {
	reqBody := map[string]any{
		"size":  1,
		"query": map[string]any{"term": map[string]any{"path": path}},
		"sort":  []map[string]any{{"start_timestamp": "desc"}},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return LastScan{}, false, err
	}
	res, err := (esapi.SearchRequest{Index: []string{alias}, Body: bytes.NewReader(body)}).Do(ctx, c.es)
	if err != nil {
		return LastScan{}, false, fmt.Errorf("last scan lookup for %s: %w", path, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return LastScan{}, false, fmt.Errorf("last scan lookup for %s: %s", path, res.String())
	}

	var decoded struct {
		Hits struct {
			Hits []struct {
				ID     string `json:"_id"`
				Source struct {
					Status         string    `json:"status"`
					StartTimestamp time.Time `json:"start_timestamp"`
					EndTimestamp   time.Time `json:"end_timestamp"`
					LengthSeconds  float64   `json:"length"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return LastScan{}, false, err
	}
	if len(decoded.Hits.Hits) == 0 {
		return LastScan{}, false, nil
	}
	h := decoded.Hits.Hits[0]
	return LastScan{
		ScanID:         h.ID,
		Status:         h.Source.Status,
		StartTimestamp: h.Source.StartTimestamp,
		EndTimestamp:   h.Source.EndTimestamp,
		LengthSeconds:  h.Source.LengthSeconds,
	}, true, nil
}

// Totals sums the top-level size/count fields over every document
// matching filter, with no bucket grouping. Grounded on
// original_source/gws_volume_scanner/client/queries.py's count_size,
// which is what the volume lifecycle document's finalize step sums.
func (c *Client) Totals(ctx context.Context, alias string, filter Filter) (int64, int64, error) {
	reqBody := map[string]any{
		"size":  0,
		"query": pathScanQuery(filter),
		"aggs": map[string]any{
			"size":  map[string]any{"sum": map[string]any{"field": "size"}},
			"count": map[string]any{"sum": map[string]any{"field": "count"}},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return 0, 0, err
	}
	res, err := (esapi.SearchRequest{Index: []string{alias}, Body: bytes.NewReader(body)}).Do(ctx, c.es)
	if err != nil {
		return 0, 0, fmt.Errorf("totals query on %s: %w", alias, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, 0, fmt.Errorf("totals query on %s: %s", alias, res.String())
	}

	var decoded struct {
		Aggregations struct {
			Size  struct{ Value float64 } `json:"size"`
			Count struct{ Value float64 } `json:"count"`
		} `json:"aggregations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return 0, 0, err
	}
	return int64(decoded.Aggregations.Size.Value), int64(decoded.Aggregations.Count.Value), nil
}

func pathScanQuery(filter Filter) map[string]any {
	must := []map[string]any{
		{"match": map[string]any{"path.tree": strings.TrimSuffix(filter.PathPrefix, "/")}},
	}
	if filter.ScanID != "" {
		must = append(must, map[string]any{"term": map[string]any{"scan_id": filter.ScanID}})
	}
	return map[string]any{"bool": map[string]any{"must": must}}
}

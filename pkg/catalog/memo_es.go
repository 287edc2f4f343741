package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/klappy/bible-search-engine/pkg/core"
)

// ESMemo is an optional distributed MemoBackend, useful when multiple
// engine instances should share one descriptor memo instead of each
// warming its own in-process copy.
type ESMemo struct {
	client *elasticsearch.Client
	index  string
}

// esMemoDoc is the document shape stored per memo key.
type esMemoDoc struct {
	Descriptors []core.ResourceDescriptor `json:"descriptors"`
	ExpiresAt   time.Time                 `json:"expiresAt"`
}

// NewESMemo creates an ESMemo backend against the given Elasticsearch
// addresses, storing memo documents in index.
func NewESMemo(addresses []string, index string) (*ESMemo, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: addresses})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	return &ESMemo{client: client, index: index}, nil
}

func (m *ESMemo) Get(ctx context.Context, key string) ([]core.ResourceDescriptor, bool) {
	req := esapi.GetRequest{Index: m.index, DocumentID: key}

	resp, err := req.Do(ctx, m.client)
	if err != nil {
		slog.WarnContext(ctx, "catalog: es memo get failed", "key", key, "error", err)
		return nil, false
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return nil, false
	}

	var envelope struct {
		Source esMemoDoc `json:"_source"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		slog.WarnContext(ctx, "catalog: es memo decode failed", "key", key, "error", err)
		return nil, false
	}

	if time.Now().After(envelope.Source.ExpiresAt) {
		return nil, false
	}

	return envelope.Source.Descriptors, true
}

func (m *ESMemo) Set(ctx context.Context, key string, descriptors []core.ResourceDescriptor, ttl time.Duration) {
	doc := esMemoDoc{Descriptors: descriptors, ExpiresAt: time.Now().Add(ttl)}

	body, err := json.Marshal(doc)
	if err != nil {
		slog.WarnContext(ctx, "catalog: es memo marshal failed", "key", key, "error", err)
		return
	}

	req := esapi.IndexRequest{
		Index:      m.index,
		DocumentID: key,
		Body:       bytes.NewReader(body),
		Refresh:    "false",
	}

	// Writes are best-effort: a failed memo write just means the next
	// resolution re-fills from the catalog, never a request failure.
	resp, err := req.Do(ctx, m.client)
	if err != nil {
		slog.WarnContext(ctx, "catalog: es memo set failed", "key", key, "error", err)
		return
	}

	defer resp.Body.Close()
}

package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"immosync/internal/config"
	"immosync/internal/domain"
	"immosync/internal/ports"
)

const (
	listPageSize    = 100
	batchSize       = 10
	interBatchPause = 200 * time.Millisecond
)

// Client talks to the Airtable REST API. Mutations go out in fixed-size
// batches with a short pause in between to respect the store's rate limit;
// batches are not transactional.
type Client struct {
	endpoint string
	token    string
	table    string
	http     *http.Client
}

var _ ports.RecordStore = (*Client)(nil)

// NewClient builds a store client from configuration.
func NewClient(cfg config.AirtableConfig) *Client {
	return &Client{
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
		token:    cfg.Token,
		table:    cfg.Base + "/" + cfg.TableID,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// ListAll pages through the whole table.
func (c *Client) ListAll(ctx context.Context) ([]domain.RemoteRecord, error) {
	var (
		records []domain.RemoteRecord
		offset  string
	)

	for {
		params := url.Values{}
		params.Set("pageSize", fmt.Sprintf("%d", listPageSize))
		if offset != "" {
			params.Set("offset", offset)
		}

		var page struct {
			Records []struct {
				ID     string         `json:"id"`
				Fields map[string]any `json:"fields"`
			} `json:"records"`
			Offset string `json:"offset"`
		}
		if err := c.do(ctx, http.MethodGet, "?"+params.Encode(), nil, &page); err != nil {
			return nil, fmt.Errorf("list records: %w", err)
		}

		for _, rec := range page.Records {
			fields := rec.Fields
			if fields == nil {
				fields = map[string]any{}
			}
			records = append(records, domain.RemoteRecord{ID: rec.ID, Fields: fields})
		}

		offset = page.Offset
		if offset == "" {
			return records, nil
		}
		if err := pause(ctx); err != nil {
			return nil, err
		}
	}
}

// BatchCreate inserts records in batches of ten.
func (c *Client) BatchCreate(ctx context.Context, records []map[string]any) error {
	for start := 0; start < len(records); start += batchSize {
		batch := records[start:min(start+batchSize, len(records))]

		wrapped := make([]map[string]any, 0, len(batch))
		for _, fields := range batch {
			wrapped = append(wrapped, map[string]any{"fields": fields})
		}

		payload := map[string]any{"records": wrapped}
		if err := c.do(ctx, http.MethodPost, "", payload, nil); err != nil {
			return fmt.Errorf("create batch at %d: %w", start, err)
		}
		if err := pause(ctx); err != nil {
			return err
		}
	}
	return nil
}

// BatchUpdate patches field diffs in batches of ten.
func (c *Client) BatchUpdate(ctx context.Context, updates []domain.RecordUpdate) error {
	for start := 0; start < len(updates); start += batchSize {
		batch := updates[start:min(start+batchSize, len(updates))]

		wrapped := make([]map[string]any, 0, len(batch))
		for _, upd := range batch {
			wrapped = append(wrapped, map[string]any{"id": upd.ID, "fields": upd.Fields})
		}

		payload := map[string]any{"records": wrapped}
		if err := c.do(ctx, http.MethodPatch, "", payload, nil); err != nil {
			return fmt.Errorf("update batch at %d: %w", start, err)
		}
		if err := pause(ctx); err != nil {
			return err
		}
	}
	return nil
}

// BatchDelete removes record ids in batches of ten.
func (c *Client) BatchDelete(ctx context.Context, ids []string) error {
	for start := 0; start < len(ids); start += batchSize {
		batch := ids[start:min(start+batchSize, len(ids))]

		params := url.Values{}
		for _, id := range batch {
			params.Add("records[]", id)
		}

		if err := c.do(ctx, http.MethodDelete, "?"+params.Encode(), nil, nil); err != nil {
			return fmt.Errorf("delete batch at %d: %w", start, err)
		}
		if err := pause(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, query string, payload any, v any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+"/"+c.table+query, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("airtable error %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func pause(ctx context.Context) error {
	timer := time.NewTimer(interBatchPause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

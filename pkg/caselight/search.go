package caselight

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Search runs a single-shot search and returns the complete result.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/v1/search", req)
	if err != nil {
		return nil, err
	}

	var result SearchResult
	if err := c.do(httpReq, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SearchStream runs a streaming search. Events arrive on the returned channel
// until the terminal complete or error event; the channel closes afterwards.
// Cancel ctx to abandon the stream early.
func (c *Client) SearchStream(ctx context.Context, req SearchRequest) (<-chan Event, error) {
	params := url.Values{}
	params.Set("q", req.Query)
	if req.Limit > 0 {
		params.Set("limit", strconv.Itoa(req.Limit))
	}
	if f := req.Filters; f != nil {
		setListParam(params, "doc_types", f.DocTypes)
		setListParam(params, "people", f.People)
		setListParam(params, "locations", f.Locations)
		setListParam(params, "evidence_types", f.EvidenceTypes)
	}

	httpReq, err := c.newRequest(ctx, http.MethodGet, "/api/v1/search/stream?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("caselight: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}

	events := make(chan Event)
	go func() {
		defer close(events)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var event Event
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
				continue
			}
			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
			if event.Type == EventComplete || event.Type == EventError {
				return
			}
		}
	}()
	return events, nil
}

// Document fetches one document by ID.
func (c *Client) Document(ctx context.Context, id string) (*Document, error) {
	httpReq, err := c.newRequest(ctx, http.MethodGet, "/api/v1/documents/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	var doc Document
	if err := c.do(httpReq, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func setListParam(params url.Values, key string, values []string) {
	if len(values) > 0 {
		params.Set(key, strings.Join(values, ","))
	}
}

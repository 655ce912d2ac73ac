package sap

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ODataQuery holds the system query options of a read.
type ODataQuery struct {
	Select  []string
	Filter  string
	Expand  []string
	OrderBy string
	Top     *int
	Skip    *int
}

// Encode renders the options in the order $select, $filter, $expand,
// $orderby, $top, $skip. Option names keep their literal "$".
func (q ODataQuery) Encode() string {
	var parts []string
	add := func(k, v string) {
		parts = append(parts, k+"="+url.QueryEscape(v))
	}
	if len(q.Select) > 0 {
		add("$select", strings.Join(q.Select, ","))
	}
	if q.Filter != "" {
		add("$filter", q.Filter)
	}
	if len(q.Expand) > 0 {
		add("$expand", strings.Join(q.Expand, ","))
	}
	if q.OrderBy != "" {
		add("$orderby", q.OrderBy)
	}
	if q.Top != nil {
		add("$top", strconv.Itoa(*q.Top))
	}
	if q.Skip != nil {
		add("$skip", strconv.Itoa(*q.Skip))
	}
	return strings.Join(parts, "&")
}

// Headers returns the standard headers for client.
func Headers(client string) map[string]string {
	return map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
		"SAP-Client":   fallback(client, DefaultClient),
	}
}

// Operation is one request inside a batch.
type Operation struct {
	Method string
	URL    string
	Data   any
}

// BatchRequest is the wire form of an Operation.
type BatchRequest struct {
	ID      string            `json:"id"`
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body,omitempty"`
}

// Batch groups several requests in one call.
type Batch struct {
	Requests []BatchRequest `json:"requests"`
}

// NewBatch builds a batch. Request ids are request_0, request_1, ... Map
// payloads are Formatted before encoding; records already carry SAP keys.
func NewBatch(client string, ops []Operation) (Batch, error) {
	headers := Headers(client)
	b := Batch{Requests: make([]BatchRequest, 0, len(ops))}
	for i, op := range ops {
		req := BatchRequest{
			ID:      fmt.Sprintf("request_%d", i),
			Method:  op.Method,
			URL:     op.URL,
			Headers: headers,
		}
		if op.Data != nil {
			data := op.Data
			if m, ok := data.(map[string]any); ok {
				data = Format(m)
			}
			body, err := json.Marshal(data)
			if err != nil {
				return Batch{}, fmt.Errorf("sap: encode %s: %w", req.ID, err)
			}
			req.Body = string(body)
		}
		b.Requests = append(b.Requests, req)
	}
	return b, nil
}

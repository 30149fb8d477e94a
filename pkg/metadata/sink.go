// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-dlm.
//
// go-dlm is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package metadata forwards newly registered item metadata to an external
// metadata service. Delivery is best effort: registration never fails
// because the sink is down.
package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jeremyhahn/go-dlm/pkg/adapters"
)

// DefaultTimeout bounds one notification. The sink sits on the ingest hot
// path, so it stays short.
const DefaultTimeout = 2 * time.Second

// Sink receives metadata for newly registered data items.
type Sink interface {
	// NotifyNewItem delivers the merged metadata document of a registered
	// item. Errors are logged by implementations, never returned.
	NotifyNewItem(ctx context.Context, doc map[string]any)
}

// HTTPSink posts metadata documents to a metadata service endpoint.
type HTTPSink struct {
	url    string
	http   *http.Client
	logger adapters.Logger
}

// NewHTTPSink creates a sink posting to url + "/ingestnewmetadata".
func NewHTTPSink(url string, logger adapters.Logger) *HTTPSink {
	return &HTTPSink{
		url:    url + "/ingestnewmetadata",
		http:   &http.Client{Timeout: DefaultTimeout},
		logger: logger,
	}
}

// NotifyNewItem implements Sink.
func (s *HTTPSink) NotifyNewItem(ctx context.Context, doc map[string]any) {
	payload, err := json.Marshal(doc)
	if err != nil {
		s.logger.Warn(ctx, "metadata notification encode failed",
			adapters.Field{Key: "error", Value: err.Error()})
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		s.logger.Warn(ctx, "metadata notification request failed",
			adapters.Field{Key: "error", Value: err.Error()})
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		s.logger.Warn(ctx, "metadata service unreachable",
			adapters.Field{Key: "error", Value: err.Error()})
		return
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Warn(ctx, "metadata service rejected notification",
			adapters.Field{Key: "status", Value: resp.StatusCode})
	}
}

// NoOpSink discards notifications. Used when no metadata service is configured.
type NoOpSink struct{}

// NotifyNewItem implements Sink.
func (NoOpSink) NotifyNewItem(context.Context, map[string]any) {}

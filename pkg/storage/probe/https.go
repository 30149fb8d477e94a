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

package probe

import (
	"context"
	"net/http"
	"time"

	"github.com/jeremyhahn/go-dlm/pkg/common"
)

// HTTPSProber checks a backend reached over HTTP(S), including sftp
// backends exposing an HTTP health endpoint via check_url.
type HTTPSProber struct {
	// Client overrides the HTTP client; nil uses a 10s-timeout default.
	Client *http.Client
}

// Probe issues a HEAD request against the backend's check URL.
func (p *HTTPSProber) Probe(ctx context.Context, storage *common.Storage, config map[string]any) error {
	url := configString(config, "check_url")
	if url == "" {
		return common.E(common.KindUnmetPrecondition,
			"storage %s has no check_url configured", storage.StorageName)
	}

	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return unreachable(storage, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return unreachable(storage, err)
	}
	resp.Body.Close()

	if resp.StatusCode >= 400 {
		return common.E(common.KindUnmetPrecondition,
			"storage %s check_url returned %d", storage.StorageName, resp.StatusCode)
	}
	return nil
}

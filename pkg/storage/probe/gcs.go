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

	gcs "cloud.google.com/go/storage"
	"github.com/jeremyhahn/go-dlm/pkg/common"
	"google.golang.org/api/option"
)

// GCSProber checks a Google Cloud Storage backend. The config payload
// carries bucket and optionally service_account_credentials (JSON).
type GCSProber struct{}

// Probe fetches the configured bucket's attributes.
func (p *GCSProber) Probe(ctx context.Context, storage *common.Storage, config map[string]any) error {
	bucket := configString(config, "bucket")
	if bucket == "" {
		bucket = storage.RootDirectory
	}
	if bucket == "" {
		return common.E(common.KindUnmetPrecondition,
			"storage %s has no bucket configured", storage.StorageName)
	}

	var opts []option.ClientOption
	if creds := configString(config, "service_account_credentials"); creds != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return unreachable(storage, err)
	}
	defer client.Close()

	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		return unreachable(storage, err)
	}
	return nil
}

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

// Package probe verifies that a storage backend is reachable through its
// declared interface. Probes check reachability only; payload movement is
// the transfer agent's job.
package probe

import (
	"context"

	"github.com/jeremyhahn/go-dlm/pkg/common"
)

// Prober checks one storage backend for reachability. The config map is the
// backend's storage-config payload, keyed as the transfer agent expects it.
type Prober interface {
	Probe(ctx context.Context, storage *common.Storage, config map[string]any) error
}

// ForInterface returns the prober matching a storage_interface value.
func ForInterface(iface string) (Prober, error) {
	switch iface {
	case "posix":
		return &PosixProber{}, nil
	case "s3":
		return &S3Prober{}, nil
	case "gcs":
		return &GCSProber{}, nil
	case "https", "sftp":
		// sftp backends expose their health over the location check URL.
		return &HTTPSProber{}, nil
	}
	return nil, common.E(common.KindInvalidQueryParameters,
		"no prober for storage interface %q", iface)
}

func configString(config map[string]any, key string) string {
	if config == nil {
		return ""
	}
	if v, ok := config[key].(string); ok {
		return v
	}
	return ""
}

func unreachable(storage *common.Storage, err error) error {
	return common.Wrap(common.KindUnmetPrecondition, err,
		"storage %s unreachable", storage.StorageName)
}

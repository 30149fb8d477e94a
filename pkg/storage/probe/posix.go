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
	"os"

	"github.com/jeremyhahn/go-dlm/pkg/common"
)

// PosixProber checks a locally mounted filesystem backend.
type PosixProber struct{}

// Probe stats the backend's root directory.
func (p *PosixProber) Probe(ctx context.Context, storage *common.Storage, config map[string]any) error {
	root := storage.RootDirectory
	if root == "" {
		root = configString(config, "root_directory")
	}
	if root == "" {
		return common.E(common.KindUnmetPrecondition,
			"storage %s has no root directory", storage.StorageName)
	}
	info, err := os.Stat(root)
	if err != nil {
		return unreachable(storage, err)
	}
	if !info.IsDir() {
		return common.E(common.KindUnmetPrecondition,
			"storage %s root %q is not a directory", storage.StorageName, root)
	}
	return nil
}

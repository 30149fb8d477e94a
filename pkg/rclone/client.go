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

// Package rclone is the client for the external transfer agent's remote
// control API. All payload movement in the DLM happens through this agent;
// the DLM itself never touches item bytes.
package rclone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jeremyhahn/go-dlm/pkg/adapters"
	"github.com/jeremyhahn/go-dlm/pkg/common"
)

// DefaultTimeout bounds a single remote-control call. Copy submissions are
// asynchronous, so even large transfers return quickly with a job id.
const DefaultTimeout = 1800 * time.Second

// Agent is the transfer-agent surface consumed by the migration, ingest and
// sweeper services.
type Agent interface {
	// CopyFile submits an asynchronous single-file copy and returns the job id.
	CopyFile(ctx context.Context, srcFs, srcRemote, dstFs, dstRemote string) (int64, error)

	// SyncCopy submits an asynchronous directory copy and returns the job id.
	SyncCopy(ctx context.Context, srcFs, dstFs string) (int64, error)

	// JobStatus returns the agent's status document for a job.
	JobStatus(ctx context.Context, jobID int64) (map[string]any, error)

	// CoreStats returns transfer statistics for a job's stats group.
	CoreStats(ctx context.Context, group string) (map[string]any, error)

	// ConfigCreate registers a named remote on the agent. Re-registering an
	// existing name with the same parameters is a no-op on the agent side.
	ConfigCreate(ctx context.Context, name, remoteType string, parameters map[string]any) error

	// DeleteFile removes one remote object.
	DeleteFile(ctx context.Context, fs, remote string) error

	// About reports usage for a remote, which doubles as a reachability check.
	About(ctx context.Context, fs string) (map[string]any, error)

	// Stat returns the metadata of one remote object, or nil when the path
	// does not exist on the remote.
	Stat(ctx context.Context, fs, remote string) (map[string]any, error)
}

// Client talks to an rclone rcd instance over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	logger  adapters.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger overrides the client logger.
func WithLogger(l adapters.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a transfer-agent client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  adapters.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// call posts a JSON body to one remote-control endpoint and decodes the
// JSON response. Non-2xx responses become KindTransferAgent errors carrying
// the agent's error text.
func (c *Client) call(ctx context.Context, path string, body map[string]any) (map[string]any, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, common.Wrap(common.KindTransferAgent, err, "encoding %s request", path)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, common.Wrap(common.KindTransferAgent, err, "building %s request", path)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, common.Wrap(common.KindTransferAgent, err, "transfer agent unreachable at %s", path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, common.Wrap(common.KindTransferAgent, err, "reading %s response", path)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn(ctx, "transfer agent call failed",
			adapters.Field{Key: "path", Value: path},
			adapters.Field{Key: "status", Value: resp.StatusCode})
		return nil, common.E(common.KindTransferAgent,
			"%s returned %d: %s", path, resp.StatusCode, agentErrorText(raw))
	}

	var decoded map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil, common.Wrap(common.KindTransferAgent, err, "decoding %s response", path)
		}
	}
	return decoded, nil
}

func agentErrorText(raw []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &e) == nil && e.Error != "" {
		return e.Error
	}
	return string(raw)
}

func jobID(path string, decoded map[string]any) (int64, error) {
	id, ok := decoded["jobid"].(float64)
	if !ok {
		return 0, common.E(common.KindTransferAgent, "%s response carries no jobid", path)
	}
	return int64(id), nil
}

// CopyFile submits operations/copyfile with _async and returns the job id.
func (c *Client) CopyFile(ctx context.Context, srcFs, srcRemote, dstFs, dstRemote string) (int64, error) {
	decoded, err := c.call(ctx, "/operations/copyfile", map[string]any{
		"srcFs":     srcFs,
		"srcRemote": srcRemote,
		"dstFs":     dstFs,
		"dstRemote": dstRemote,
		"_async":    true,
	})
	if err != nil {
		return 0, err
	}
	return jobID("/operations/copyfile", decoded)
}

// SyncCopy submits sync/copy with _async and returns the job id.
func (c *Client) SyncCopy(ctx context.Context, srcFs, dstFs string) (int64, error) {
	decoded, err := c.call(ctx, "/sync/copy", map[string]any{
		"srcFs":  srcFs,
		"dstFs":  dstFs,
		"_async": true,
	})
	if err != nil {
		return 0, err
	}
	return jobID("/sync/copy", decoded)
}

// JobStatus fetches job/status for a job id.
func (c *Client) JobStatus(ctx context.Context, id int64) (map[string]any, error) {
	return c.call(ctx, "/job/status", map[string]any{"jobid": id})
}

// CoreStats fetches core/stats for a job's stats group ("job/<id>").
func (c *Client) CoreStats(ctx context.Context, group string) (map[string]any, error) {
	return c.call(ctx, "/core/stats", map[string]any{"group": group})
}

// ConfigCreate registers a named remote on the agent.
func (c *Client) ConfigCreate(ctx context.Context, name, remoteType string, parameters map[string]any) error {
	_, err := c.call(ctx, "/config/create", map[string]any{
		"name":       name,
		"type":       remoteType,
		"parameters": parameters,
	})
	return err
}

// DeleteFile removes one object from a remote.
func (c *Client) DeleteFile(ctx context.Context, fs, remote string) error {
	_, err := c.call(ctx, "/operations/deletefile", map[string]any{
		"fs":     fs,
		"remote": remote,
	})
	return err
}

// About fetches operations/about for a remote.
func (c *Client) About(ctx context.Context, fs string) (map[string]any, error) {
	return c.call(ctx, "/operations/about", map[string]any{"fs": fs})
}

// Stat fetches operations/stat for one remote object. The agent answers
// {"item": null} for a missing path, which surfaces here as a nil map.
func (c *Client) Stat(ctx context.Context, fs, remote string) (map[string]any, error) {
	decoded, err := c.call(ctx, "/operations/stat", map[string]any{
		"fs":     fs,
		"remote": remote,
	})
	if err != nil {
		return nil, err
	}
	item, _ := decoded["item"].(map[string]any)
	return item, nil
}

// StatsGroup returns the stats group name of a job, as the agent forms it.
func StatsGroup(jobID int64) string {
	return fmt.Sprintf("job/%d", jobID)
}

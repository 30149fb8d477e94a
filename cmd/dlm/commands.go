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

package main

import (
	"net/url"

	"github.com/spf13/cobra"
)

var heartbeatCmd = &cobra.Command{
	Use:   "heartbeat",
	Short: "Check server liveness",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := newAPIClient().get("/heartbeat", nil)
		if err != nil {
			return err
		}
		return printJSON(raw)
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Catalog data items",
}

var ingestRegisterCmd = &cobra.Command{
	Use:   "register <item-name>",
	Short: "Register a payload already present on a storage backend",
	Example: `  dlm ingest register obs.ms --storage vault --path archive/obs.ms
  dlm ingest register obs.ms --storage vault --checksum deadbeef --checksum-method md5`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]any{"item_name": args[0]}
		setFlagString(cmd, body, "storage", "storage_name")
		setFlagString(cmd, body, "path", "path")
		setFlagString(cmd, body, "checksum", "item_checksum")
		setFlagString(cmd, body, "checksum-method", "checksum_method")
		setFlagString(cmd, body, "owner", "item_owner")
		if tags, _ := cmd.Flags().GetStringToString("tags"); len(tags) > 0 {
			body["item_tags"] = tags
		}
		if size, _ := cmd.Flags().GetInt64("size"); size > 0 {
			body["item_size"] = size
		}
		raw, err := newAPIClient().post("/ingest/register_data_item", body)
		if err != nil {
			return err
		}
		return printJSON(raw)
	},
}

var ingestInitCmd = &cobra.Command{
	Use:   "init <item-name>",
	Short: "Create a data item in INITIALISED state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]any{"item_name": args[0]}
		setFlagString(cmd, body, "oid", "oid")
		setFlagString(cmd, body, "owner", "item_owner")
		if parents, _ := cmd.Flags().GetStringSlice("parent"); len(parents) > 0 {
			body["parents"] = parents
		}
		raw, err := newAPIClient().post("/ingest/init_data_item", body)
		if err != nil {
			return err
		}
		return printJSON(raw)
	},
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the data item catalog",
}

var queryItemCmd = &cobra.Command{
	Use:   "item",
	Short: "List data items",
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{}
		for _, param := range []string{"oid", "uid", "item-name", "state", "storage-id", "limit"} {
			if v, _ := cmd.Flags().GetString(param); v != "" {
				q.Set(queryParam(param), v)
			}
		}
		raw, err := newAPIClient().get("/request/query_data_item", q)
		if err != nil {
			return err
		}
		return printJSON(raw)
	},
}

var queryStorageOfCmd = &cobra.Command{
	Use:   "placement <item-name>",
	Short: "Show where an item's ready copies live",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{"item_name": []string{args[0]}}
		raw, err := newAPIClient().get("/request/query_item_storage", q)
		if err != nil {
			return err
		}
		return printJSON(raw)
	},
}

var queryProvenanceCmd = &cobra.Command{
	Use:   "provenance <oid>",
	Short: "Show an item's direct parents and children",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{"oid": []string{args[0]}}
		raw, err := newAPIClient().get("/request/query_provenance", q)
		if err != nil {
			return err
		}
		return printJSON(raw)
	},
}

var migrationCmd = &cobra.Command{
	Use:   "migration",
	Short: "Copy data items between storage backends",
}

var migrationCopyCmd = &cobra.Command{
	Use:   "copy <item-name> <destination-storage>",
	Short: "Submit an asynchronous copy to another backend",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]any{
			"item_name":        args[0],
			"destination_name": args[1],
		}
		setFlagString(cmd, body, "path", "path")
		raw, err := newAPIClient().post("/migration/copy_data_item", body)
		if err != nil {
			return err
		}
		return printJSON(raw)
	},
}

var migrationStatusCmd = &cobra.Command{
	Use:   "status <migration-id>",
	Short: "Show a migration with live transfer status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := newAPIClient().get("/migration/get_migration/"+args[0], nil)
		if err != nil {
			return err
		}
		return printJSON(raw)
	},
}

var migrationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{}
		for _, param := range []string{"oid", "storage-id", "after", "before"} {
			if v, _ := cmd.Flags().GetString(param); v != "" {
				q.Set(queryParam(param), v)
			}
		}
		raw, err := newAPIClient().get("/migration/query_migrations", q)
		if err != nil {
			return err
		}
		return printJSON(raw)
	},
}

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Manage locations and storage backends",
}

var storageInitLocationCmd = &cobra.Command{
	Use:   "init-location <name> <type>",
	Short: "Register a location",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]any{
			"location_name": args[0],
			"location_type": args[1],
		}
		setFlagString(cmd, body, "country", "location_country")
		setFlagString(cmd, body, "city", "location_city")
		raw, err := newAPIClient().post("/storage/init_location", body)
		if err != nil {
			return err
		}
		return printJSON(raw)
	},
}

var storageInitCmd = &cobra.Command{
	Use:   "init <name>",
	Short: "Register a storage backend",
	Example: `  dlm storage init vault --location mid-za --type objectstore --interface s3
  dlm storage init scratch --location mid-za --type filesystem --interface posix --phase GAS`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]any{"storage_name": args[0]}
		setFlagString(cmd, body, "location", "location_name")
		setFlagString(cmd, body, "type", "storage_type")
		setFlagString(cmd, body, "interface", "storage_interface")
		setFlagString(cmd, body, "phase", "storage_phase")
		raw, err := newAPIClient().post("/storage/init_storage", body)
		if err != nil {
			return err
		}
		return printJSON(raw)
	},
}

var storageListCmd = &cobra.Command{
	Use:   "list",
	Short: "List storage backends",
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{}
		if v, _ := cmd.Flags().GetString("name"); v != "" {
			q.Set("storage_name", v)
		}
		raw, err := newAPIClient().get("/storage/query_storage", q)
		if err != nil {
			return err
		}
		return printJSON(raw)
	},
}

var storageCheckCmd = &cobra.Command{
	Use:   "check <storage-name>",
	Short: "Probe a backend for reachability",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := newAPIClient().post("/storage/check_storage_access",
			map[string]any{"storage_name": args[0]})
		if err != nil {
			return err
		}
		return printJSON(raw)
	},
}

// setFlagString copies a set string flag into the request body.
func setFlagString(cmd *cobra.Command, body map[string]any, flag, field string) {
	if v, _ := cmd.Flags().GetString(flag); v != "" {
		body[field] = v
	}
}

// queryParam maps kebab-case flag names onto API query parameters.
func queryParam(flag string) string {
	switch flag {
	case "item-name":
		return "item_name"
	case "state":
		return "item_state"
	case "storage-id":
		return "storage_id"
	default:
		return flag
	}
}

func init() {
	ingestRegisterCmd.Flags().String("storage", "", "Storage backend name hosting the payload")
	ingestRegisterCmd.Flags().String("path", "", "Payload path relative to the backend root")
	ingestRegisterCmd.Flags().String("checksum", "", "Payload checksum")
	ingestRegisterCmd.Flags().String("checksum-method", "", "Checksum algorithm")
	ingestRegisterCmd.Flags().String("owner", "", "Item owner")
	ingestRegisterCmd.Flags().StringToString("tags", nil, "Item tags as key=value pairs")
	ingestRegisterCmd.Flags().Int64("size", 0, "Payload size in bytes")
	ingestCmd.AddCommand(ingestRegisterCmd)

	ingestInitCmd.Flags().String("oid", "", "Join an existing logical item")
	ingestInitCmd.Flags().String("owner", "", "Item owner")
	ingestInitCmd.Flags().StringSlice("parent", nil, "Parent oid (repeatable)")
	ingestCmd.AddCommand(ingestInitCmd)

	for _, flag := range []string{"oid", "uid", "item-name", "state", "storage-id", "limit"} {
		queryItemCmd.Flags().String(flag, "", "Filter by "+flag)
	}
	queryCmd.AddCommand(queryItemCmd)
	queryCmd.AddCommand(queryStorageOfCmd)
	queryCmd.AddCommand(queryProvenanceCmd)

	migrationCopyCmd.Flags().String("path", "", "Destination path override")
	migrationCmd.AddCommand(migrationCopyCmd)
	migrationCmd.AddCommand(migrationStatusCmd)
	for _, flag := range []string{"oid", "storage-id", "after", "before"} {
		migrationListCmd.Flags().String(flag, "", "Filter by "+flag)
	}
	migrationCmd.AddCommand(migrationListCmd)

	storageInitLocationCmd.Flags().String("country", "", "Location country")
	storageInitLocationCmd.Flags().String("city", "", "Location city")
	storageCmd.AddCommand(storageInitLocationCmd)

	storageInitCmd.Flags().String("location", "", "Location name or id")
	storageInitCmd.Flags().String("type", "", "Storage type")
	storageInitCmd.Flags().String("interface", "", "Storage interface (posix, s3, gcs, https, sftp)")
	storageInitCmd.Flags().String("phase", "", "Phase tier (GAS, LIQUID, SOLID, PLASMA)")
	storageCmd.AddCommand(storageInitCmd)

	storageListCmd.Flags().String("name", "", "Filter by storage name")
	storageCmd.AddCommand(storageListCmd)
	storageCmd.AddCommand(storageCheckCmd)
}

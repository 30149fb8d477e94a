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

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jeremyhahn/go-dlm/pkg/common"
)

// S3Prober checks an S3-compatible object store backend. The config payload
// follows the transfer agent's s3 remote keys: endpoint, region, bucket,
// access_key_id, secret_access_key.
type S3Prober struct{}

// Probe heads the configured bucket.
func (p *S3Prober) Probe(ctx context.Context, storage *common.Storage, config map[string]any) error {
	bucket := configString(config, "bucket")
	if bucket == "" {
		bucket = storage.RootDirectory
	}
	if bucket == "" {
		return common.E(common.KindUnmetPrecondition,
			"storage %s has no bucket configured", storage.StorageName)
	}

	region := configString(config, "region")
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if accessKey := configString(config, "access_key_id"); accessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				accessKey, configString(config, "secret_access_key"), "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return unreachable(storage, err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint := configString(config, "endpoint"); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
		return unreachable(storage, err)
	}
	return nil
}

// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package historian periodically exports tag snapshots to S3 as Avro
// object-container files, using the same goavro OCF encoding pattern as
// other checkpoint writers in this codebase family, with aws-sdk-go-v2
// for the upload leg. It is inert unless configured — no core operation
// depends on it; it is not a compression scheme and never load bearing.
package historian

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/linkedin/goavro/v2"

	"github.com/scadalite/engine/internal/scadaerr"
	"github.com/scadalite/engine/internal/tagstore"
	"github.com/scadalite/engine/pkg/log"
)

// tagSnapshotSchema is the Avro record schema for one exported sample.
const tagSnapshotSchema = `{
	"type": "record",
	"name": "TagSnapshot",
	"fields": [
		{"name": "key", "type": "string"},
		{"name": "timestamp", "type": "long", "logicalType": "timestamp-millis"},
		{"name": "value", "type": ["null", "boolean", "long", "double", "string"]}
	]
}`

// Config describes the S3 destination. Historian is disabled (New
// returns nil, nil) when Bucket is empty.
type Config struct {
	Bucket    string
	Prefix    string // key prefix, e.g. "scadalite/"
	Region    string
	AccessKey string // optional; falls back to the default credential chain
	SecretKey string
	Interval  time.Duration // export period, default 5m
}

// Historian periodically snapshots a TagIndex and uploads one Avro OCF
// object per export cycle.
type Historian struct {
	cfg    Config
	client *s3.Client
	codec  *goavro.Codec
	index  *tagstore.TagIndex
}

// New constructs a Historian, or returns (nil, nil) if cfg.Bucket is
// empty — the feature is opt-in.
func New(ctx context.Context, cfg Config, index *tagstore.TagIndex) (*Historian, error) {
	if cfg.Bucket == "" {
		return nil, nil
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}

	var optFns []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("historian: load aws config: %w", scadaerr.ErrTransport)
	}

	codec, err := goavro.NewCodec(tagSnapshotSchema)
	if err != nil {
		return nil, fmt.Errorf("historian: avro codec: %w", scadaerr.ErrProtocol)
	}

	return &Historian{
		cfg:    cfg,
		client: s3.NewFromConfig(awsCfg),
		codec:  codec,
		index:  index,
	}, nil
}

// Run exports a snapshot every Interval until ctx is cancelled.
func (h *Historian) Run(ctx context.Context) {
	if h == nil {
		return
	}
	ticker := time.NewTicker(h.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.exportOnce(ctx); err != nil {
				log.Errorf("historian: export: %v", err)
			}
		}
	}
}

func (h *Historian) exportOnce(ctx context.Context) error {
	now := time.Now().UTC()
	records := make([]any, 0)
	for _, t := range h.index.All() {
		records = append(records, map[string]any{
			"key":       t.Key,
			"timestamp": now.UnixMilli(),
			"value":     goavro.Union(avroBranch(t.Get()), t.Get()),
		})
	}
	if len(records) == 0 {
		return nil
	}

	var buf bytes.Buffer
	writer, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               &buf,
		Codec:           h.codec,
		CompressionName: goavro.CompressionDeflateLabel,
	})
	if err != nil {
		return fmt.Errorf("historian: ocf writer: %w", scadaerr.ErrProtocol)
	}
	if err := writer.Append(records); err != nil {
		return fmt.Errorf("historian: append: %w", scadaerr.ErrProtocol)
	}

	key := fmt.Sprintf("%s%s.avro", h.cfg.Prefix, now.Format("20060102T150405Z"))
	_, err = h.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(h.cfg.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(buf.Bytes()),
	})
	if err != nil {
		return fmt.Errorf("historian: put %s: %w", key, scadaerr.ErrTransport)
	}

	log.Infof("historian: exported %d tag snapshots to s3://%s/%s", len(records), h.cfg.Bucket, key)
	return nil
}

// avroBranch picks the union branch name matching v's Go type, for the
// nullable value field in tagSnapshotSchema.
func avroBranch(v tagstore.Value) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case int64:
		return "long"
	case float64:
		return "double"
	case string:
		return "string"
	default:
		return "string"
	}
}

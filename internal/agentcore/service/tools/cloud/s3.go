package cloud

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/kiosk404/agentcore/internal/agentcore/service/tools/local"
	"github.com/kiosk404/agentcore/pkg/logger"
)

// BucketView is one bucket in a tool answer.
type BucketView struct {
	Name         string            `json:"name"`
	Region       string            `json:"region,omitempty"`
	CreationDate string            `json:"creation_date,omitempty"`
	Versioning   string            `json:"versioning,omitempty"`
	Encryption   string            `json:"encryption,omitempty"`
	Tags         map[string]string `json:"tags,omitempty"`
}

func s3Tools(c *Clients) []local.Definition {
	return []local.Definition{
		{
			Name: "list_s3_buckets",
			Description: "List S3 buckets. Use region (e.g. 'us-east-1' or 'asia pacific'), prefix or " +
				"name_pattern whenever the user asks for specific buckets.",
			Parameters: []local.ParameterDef{
				{Name: "region", Type: "string", Description: "Region code, prefix or group such as 'europe'"},
				{Name: "prefix", Type: "string", Description: "Bucket name prefix"},
				{Name: "name_pattern", Type: "string", Description: "Case-insensitive substring of the bucket name"},
			},
			Handler: c.listBuckets,
		},
		{
			Name:        "get_s3_bucket_info",
			Description: "Get the region, versioning, encryption and tags of an S3 bucket.",
			Parameters: []local.ParameterDef{
				{Name: "bucket_name", Type: "string", Description: "Name of the S3 bucket", Required: true},
			},
			Handler: c.bucketInfo,
		},
		{
			Name:        "create_s3_bucket",
			Description: "Create an S3 bucket in a region, optionally with versioning.",
			Parameters: []local.ParameterDef{
				{Name: "bucket_name", Type: "string", Description: "Name of the S3 bucket to create", Required: true},
				{Name: "region", Type: "string", Description: "AWS region of the bucket", Required: true},
				{Name: "versioning_enabled", Type: "boolean", Description: "Enable versioning"},
			},
			Handler: c.createBucket,
		},
		{
			Name:        "delete_s3_bucket",
			Description: "Delete an empty S3 bucket.",
			Parameters: []local.ParameterDef{
				{Name: "bucket_name", Type: "string", Description: "Name of the S3 bucket to delete", Required: true},
			},
			Handler: c.deleteBucket,
		},
	}
}

func s3Region(region string) func(*s3.Options) {
	return func(o *s3.Options) {
		if region != "" {
			o.Region = region
		}
	}
}

func (c *Clients) listBuckets(ctx context.Context, params map[string]any) (any, error) {
	prefix := local.StringParam(params, "prefix")
	pattern := strings.ToLower(local.StringParam(params, "name_pattern"))
	wantRegion := local.StringParam(params, "region")

	var (
		out   []BucketView
		token *string
	)
	for {
		in := &s3.ListBucketsInput{ContinuationToken: token}
		if prefix != "" {
			in.Prefix = aws.String(prefix)
		}
		page, err := c.S3.ListBuckets(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("list buckets: %w", err)
		}
		for _, b := range page.Buckets {
			name := aws.ToString(b.Name)
			if pattern != "" && !strings.Contains(strings.ToLower(name), pattern) {
				continue
			}
			view := BucketView{Name: name, CreationDate: formatTime(b.CreationDate)}
			if view.Region = aws.ToString(b.BucketRegion); view.Region == "" {
				region, err := c.bucketRegion(ctx, name)
				if err != nil {
					logger.WarnX(moduleName, "locate bucket %s: %v", name, err)
					continue
				}
				view.Region = region
			}
			if !matchesRegion(view.Region, wantRegion) {
				continue
			}
			out = append(out, view)
		}
		if page.ContinuationToken == nil || aws.ToString(page.ContinuationToken) == "" {
			break
		}
		token = page.ContinuationToken
	}
	return map[string]any{"buckets": out, "count": len(out)}, nil
}

// bucketRegion maps the empty location constraint to us-east-1.
func (c *Clients) bucketRegion(ctx context.Context, bucket string) (string, error) {
	loc, err := c.S3.GetBucketLocation(ctx, &s3.GetBucketLocationInput{Bucket: aws.String(bucket)})
	if err != nil {
		return "", err
	}
	if loc.LocationConstraint == "" {
		return "us-east-1", nil
	}
	return string(loc.LocationConstraint), nil
}

func (c *Clients) bucketInfo(ctx context.Context, params map[string]any) (any, error) {
	name, err := requireString(params, "bucket_name")
	if err != nil {
		return nil, err
	}
	region, err := c.bucketRegion(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get bucket %s: %w", name, err)
	}
	view := BucketView{Name: name, Region: region, Versioning: "unknown", Encryption: "unknown"}
	opt := s3Region(region)

	if v, err := c.S3.GetBucketVersioning(ctx, &s3.GetBucketVersioningInput{Bucket: aws.String(name)}, opt); err == nil {
		view.Versioning = "Disabled"
		if v.Status != "" {
			view.Versioning = string(v.Status)
		}
	}
	switch enc, err := c.S3.GetBucketEncryption(ctx, &s3.GetBucketEncryptionInput{Bucket: aws.String(name)}, opt); {
	case err == nil:
		view.Encryption = "Enabled"
		if cfg := enc.ServerSideEncryptionConfiguration; cfg != nil && len(cfg.Rules) > 0 && cfg.Rules[0].ApplyServerSideEncryptionByDefault != nil {
			view.Encryption = string(cfg.Rules[0].ApplyServerSideEncryptionByDefault.SSEAlgorithm)
		}
	case apiCode(err) == "ServerSideEncryptionConfigurationNotFoundError":
		view.Encryption = "Disabled"
	}
	if tags, err := c.S3.GetBucketTagging(ctx, &s3.GetBucketTaggingInput{Bucket: aws.String(name)}, opt); err == nil {
		view.Tags = s3Tags(tags.TagSet)
	}
	return view, nil
}

func (c *Clients) createBucket(ctx context.Context, params map[string]any) (any, error) {
	name, err := requireString(params, "bucket_name")
	if err != nil {
		return nil, err
	}
	region := c.region(params)
	in := &s3.CreateBucketInput{Bucket: aws.String(name)}
	// us-east-1 rejects an explicit location constraint.
	if region != "" && region != "us-east-1" {
		in.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(region),
		}
	}
	if _, err := c.S3.CreateBucket(ctx, in, s3Region(region)); err != nil {
		return nil, fmt.Errorf("create bucket %s: %w", name, err)
	}
	versioning, _ := local.BoolParam(params, "versioning_enabled")
	if versioning {
		_, err := c.S3.PutBucketVersioning(ctx, &s3.PutBucketVersioningInput{
			Bucket:                  aws.String(name),
			VersioningConfiguration: &s3types.VersioningConfiguration{Status: s3types.BucketVersioningStatusEnabled},
		}, s3Region(region))
		if err != nil {
			return nil, fmt.Errorf("enable versioning on %s: %w", name, err)
		}
	}
	logger.InfoX(moduleName, "created bucket %s in %s", name, region)
	return map[string]any{"bucket_name": name, "region": region, "versioning": versioning}, nil
}

func (c *Clients) deleteBucket(ctx context.Context, params map[string]any) (any, error) {
	name, err := requireString(params, "bucket_name")
	if err != nil {
		return nil, err
	}
	if _, err := c.S3.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(name)}); err != nil {
		if apiCode(err) == "BucketNotEmpty" {
			return nil, fmt.Errorf("bucket %s is not empty; object deletion is not supported", name)
		}
		return nil, fmt.Errorf("delete bucket %s: %w", name, err)
	}
	logger.InfoX(moduleName, "deleted bucket %s", name)
	return map[string]any{"bucket_name": name, "deleted": true}, nil
}

func s3Tags(set []s3types.Tag) map[string]string {
	out := make(map[string]string, len(set))
	for _, t := range set {
		out[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return out
}

// apiCode returns the service error code of err, if any.
func apiCode(err error) string {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		return ae.ErrorCode()
	}
	return ""
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

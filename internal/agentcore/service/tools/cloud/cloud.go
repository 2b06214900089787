// Package cloud holds the local AWS resource tools: bucket, function and
// table management plus their CloudWatch metrics. Every tool is registered as
// a LOCAL tool, so its action id is local___<name> and the policy rules on
// deletes, regions and parameter limits apply to it like to any other call.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/kiosk404/agentcore/internal/agentcore/service/identity/secrets"
	"github.com/kiosk404/agentcore/internal/agentcore/service/tools/local"
	"github.com/kiosk404/agentcore/pkg/logger"
)

const moduleName = "tools.cloud"

// Config selects the account and region the tools act on.
type Config struct {
	Enabled bool
	// Region is the default region of every call; a tool's region argument overrides it.
	Region string
	// Profile is a shared config profile; empty uses the default chain.
	Profile string
	// AccessKeySecret and SecretKeySecret name static keys in the secret
	// store. When both are empty the default credential chain is used.
	AccessKeySecret string
	SecretKeySecret string
}

// S3API is the part of the S3 client the tools call.
type S3API interface {
	ListBuckets(ctx context.Context, in *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	GetBucketLocation(ctx context.Context, in *s3.GetBucketLocationInput, optFns ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error)
	GetBucketVersioning(ctx context.Context, in *s3.GetBucketVersioningInput, optFns ...func(*s3.Options)) (*s3.GetBucketVersioningOutput, error)
	GetBucketEncryption(ctx context.Context, in *s3.GetBucketEncryptionInput, optFns ...func(*s3.Options)) (*s3.GetBucketEncryptionOutput, error)
	GetBucketTagging(ctx context.Context, in *s3.GetBucketTaggingInput, optFns ...func(*s3.Options)) (*s3.GetBucketTaggingOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutBucketVersioning(ctx context.Context, in *s3.PutBucketVersioningInput, optFns ...func(*s3.Options)) (*s3.PutBucketVersioningOutput, error)
	DeleteBucket(ctx context.Context, in *s3.DeleteBucketInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketOutput, error)
}

// LambdaAPI is the part of the Lambda client the tools call.
type LambdaAPI interface {
	ListFunctions(ctx context.Context, in *lambda.ListFunctionsInput, optFns ...func(*lambda.Options)) (*lambda.ListFunctionsOutput, error)
	GetFunction(ctx context.Context, in *lambda.GetFunctionInput, optFns ...func(*lambda.Options)) (*lambda.GetFunctionOutput, error)
	UpdateFunctionConfiguration(ctx context.Context, in *lambda.UpdateFunctionConfigurationInput, optFns ...func(*lambda.Options)) (*lambda.UpdateFunctionConfigurationOutput, error)
	DeleteFunction(ctx context.Context, in *lambda.DeleteFunctionInput, optFns ...func(*lambda.Options)) (*lambda.DeleteFunctionOutput, error)
}

// DynamoDBAPI is the part of the DynamoDB client the tools call.
type DynamoDBAPI interface {
	ListTables(ctx context.Context, in *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	DeleteTable(ctx context.Context, in *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error)
}

// CloudWatchAPI is the part of the CloudWatch client the metric tools call.
type CloudWatchAPI interface {
	GetMetricStatistics(ctx context.Context, in *cloudwatch.GetMetricStatisticsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error)
}

// Clients are the service clients behind the tools. A nil client drops the
// tools that need it.
type Clients struct {
	S3         S3API
	Lambda     LambdaAPI
	DynamoDB   DynamoDBAPI
	CloudWatch CloudWatchAPI
	// Region is reported for calls that name none.
	Region string
	// Now is the clock of the metric windows; nil means time.Now.
	Now func() time.Time
}

// NewClients loads the AWS configuration and builds every client.
func NewClients(ctx context.Context, cfg *Config, store secrets.Store) (*Clients, error) {
	opts := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeySecret != "" || cfg.SecretKeySecret != "" {
		if store == nil {
			return nil, errors.New("static aws keys need a secret store")
		}
		opts = append(opts, config.WithCredentialsProvider(aws.NewCredentialsCache(secretCredentials(cfg, store))))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	logger.InfoX(moduleName, "aws clients ready (region=%s, profile=%q)", awsCfg.Region, cfg.Profile)
	return &Clients{
		S3:         s3.NewFromConfig(awsCfg),
		Lambda:     lambda.NewFromConfig(awsCfg),
		DynamoDB:   dynamodb.NewFromConfig(awsCfg),
		CloudWatch: cloudwatch.NewFromConfig(awsCfg),
		Region:     awsCfg.Region,
	}, nil
}

// secretCredentials resolves static keys through the secret store on every
// refresh, so a rotated secret is picked up once the cache expires.
func secretCredentials(cfg *Config, store secrets.Store) aws.CredentialsProvider {
	return aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
		ak, err := store.GetSecret(ctx, cfg.AccessKeySecret)
		if err != nil {
			return aws.Credentials{}, fmt.Errorf("aws access key: %w", err)
		}
		sk, err := store.GetSecret(ctx, cfg.SecretKeySecret)
		if err != nil {
			return aws.Credentials{}, fmt.Errorf("aws secret key: %w", err)
		}
		return credentials.NewStaticCredentialsProvider(ak, sk, "").Retrieve(ctx)
	})
}

// Tools returns the definitions backed by the non-nil clients.
func Tools(c *Clients) []local.Definition {
	var defs []local.Definition
	if c.S3 != nil {
		defs = append(defs, s3Tools(c)...)
	}
	if c.Lambda != nil {
		defs = append(defs, lambdaTools(c)...)
	}
	if c.DynamoDB != nil {
		defs = append(defs, dynamoTools(c)...)
	}
	if c.CloudWatch != nil {
		defs = append(defs, metricTools(c)...)
	}
	return defs
}

// regionParam documents the optional region override shared by most tools.
var regionParam = local.ParameterDef{
	Name:        "region",
	Type:        "string",
	Description: "AWS region such as 'us-east-1' (default: the configured region)",
}

func (c *Clients) region(params map[string]any) string {
	if r := local.StringParam(params, "region"); r != "" {
		return r
	}
	return c.Region
}

// matchesRegion accepts an exact code, a prefix such as "eu-" and the region
// groups people ask for: "asia pacific", "apac", "europe", "us".
func matchesRegion(region, requested string) bool {
	region = strings.ToLower(region)
	requested = strings.ToLower(strings.TrimSpace(requested))
	switch requested {
	case "":
		return true
	case "asia pacific", "asia", "pacific", "apac", "ap":
		return strings.HasPrefix(region, "ap-")
	case "europe", "eu":
		return strings.HasPrefix(region, "eu-")
	case "us":
		return strings.HasPrefix(region, "us-")
	}
	return strings.HasPrefix(region, requested)
}

func requireString(params map[string]any, key string) (string, error) {
	s := strings.TrimSpace(local.StringParam(params, key))
	if s == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return s, nil
}

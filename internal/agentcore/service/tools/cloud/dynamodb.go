package cloud

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamotypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/kiosk404/agentcore/internal/agentcore/service/tools/local"
	"github.com/kiosk404/agentcore/pkg/logger"
)

const defaultMaxTables = 100

// TableView is one DynamoDB table in a tool answer.
type TableView struct {
	TableName      string `json:"table_name"`
	Status         string `json:"status,omitempty"`
	BillingMode    string `json:"billing_mode,omitempty"`
	ItemCount      int64  `json:"item_count"`
	TableSizeBytes int64  `json:"table_size_bytes"`
	PartitionKey   string `json:"partition_key,omitempty"`
	SortKey        string `json:"sort_key,omitempty"`
	StreamEnabled  bool   `json:"stream_enabled"`
	CreationDate   string `json:"creation_date,omitempty"`
}

func dynamoTools(c *Clients) []local.Definition {
	return []local.Definition{
		{
			Name:        "list_dynamodb_tables",
			Description: "List DynamoDB table names, optionally filtered by a name substring.",
			Parameters: []local.ParameterDef{
				regionParam,
				{Name: "name_pattern", Type: "string", Description: "Case-insensitive substring of the table name"},
				{Name: "limit", Type: "integer", Description: "Maximum number of tables to return (default: 100)"},
			},
			Handler: c.listTables,
		},
		{
			Name:        "describe_dynamodb_table",
			Description: "Describe a DynamoDB table: status, keys, billing mode, item count and size.",
			Parameters: []local.ParameterDef{
				{Name: "table_name", Type: "string", Description: "Name of the DynamoDB table", Required: true},
				regionParam,
			},
			Handler: c.describeTable,
		},
		{
			Name:        "delete_dynamodb_table",
			Description: "Delete a DynamoDB table and all of its items.",
			Parameters: []local.ParameterDef{
				{Name: "table_name", Type: "string", Description: "Name of the DynamoDB table to delete", Required: true},
				regionParam,
			},
			Handler: c.deleteTable,
		},
	}
}

func dynamoRegion(region string) func(*dynamodb.Options) {
	return func(o *dynamodb.Options) {
		if region != "" {
			o.Region = region
		}
	}
}

func (c *Clients) listTables(ctx context.Context, params map[string]any) (any, error) {
	pattern := strings.ToLower(local.StringParam(params, "name_pattern"))
	limit := local.IntParam(params, "limit", defaultMaxTables)
	if limit <= 0 {
		limit = defaultMaxTables
	}
	opt := dynamoRegion(c.region(params))

	out := make([]string, 0)
	var start *string
	for len(out) < limit {
		page, err := c.DynamoDB.ListTables(ctx, &dynamodb.ListTablesInput{ExclusiveStartTableName: start}, opt)
		if err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}
		for _, name := range page.TableNames {
			if pattern != "" && !strings.Contains(strings.ToLower(name), pattern) {
				continue
			}
			out = append(out, name)
			if len(out) == limit {
				break
			}
		}
		if aws.ToString(page.LastEvaluatedTableName) == "" {
			break
		}
		start = page.LastEvaluatedTableName
	}
	return map[string]any{"tables": out, "count": len(out)}, nil
}

func (c *Clients) describeTable(ctx context.Context, params map[string]any) (any, error) {
	name, err := requireString(params, "table_name")
	if err != nil {
		return nil, err
	}
	res, err := c.DynamoDB.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)}, dynamoRegion(c.region(params)))
	if err != nil {
		return nil, fmt.Errorf("describe table %s: %w", name, err)
	}
	if res.Table == nil {
		return TableView{TableName: name}, nil
	}
	return tableView(res.Table), nil
}

func (c *Clients) deleteTable(ctx context.Context, params map[string]any) (any, error) {
	name, err := requireString(params, "table_name")
	if err != nil {
		return nil, err
	}
	res, err := c.DynamoDB.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: aws.String(name)}, dynamoRegion(c.region(params)))
	if err != nil {
		return nil, fmt.Errorf("delete table %s: %w", name, err)
	}
	logger.InfoX(moduleName, "deleted table %s", name)
	status := "DELETING"
	if res.TableDescription != nil && res.TableDescription.TableStatus != "" {
		status = string(res.TableDescription.TableStatus)
	}
	return map[string]any{"table_name": name, "status": status}, nil
}

func tableView(t *dynamotypes.TableDescription) TableView {
	v := TableView{
		TableName:      aws.ToString(t.TableName),
		Status:         string(t.TableStatus),
		ItemCount:      aws.ToInt64(t.ItemCount),
		TableSizeBytes: aws.ToInt64(t.TableSizeBytes),
		CreationDate:   formatTime(t.CreationDateTime),
		// Tables created before on-demand existed carry no summary.
		BillingMode: string(dynamotypes.BillingModeProvisioned),
	}
	if t.BillingModeSummary != nil {
		v.BillingMode = string(t.BillingModeSummary.BillingMode)
	}
	for _, k := range t.KeySchema {
		switch k.KeyType {
		case dynamotypes.KeyTypeHash:
			v.PartitionKey = aws.ToString(k.AttributeName)
		case dynamotypes.KeyTypeRange:
			v.SortKey = aws.ToString(k.AttributeName)
		}
	}
	if t.StreamSpecification != nil {
		v.StreamEnabled = aws.ToBool(t.StreamSpecification.StreamEnabled)
	}
	return v
}

package cloud

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/kiosk404/agentcore/internal/agentcore/service/tools/local"
	"github.com/kiosk404/agentcore/pkg/logger"
)

const defaultMaxFunctions = 100

// FunctionView is one Lambda function in a tool answer.
type FunctionView struct {
	FunctionName string            `json:"function_name"`
	Runtime      string            `json:"runtime,omitempty"`
	Handler      string            `json:"handler,omitempty"`
	MemorySize   int32             `json:"memory_size"`
	Timeout      int32             `json:"timeout"`
	CodeSize     int64             `json:"code_size,omitempty"`
	LastModified string            `json:"last_modified,omitempty"`
	State        string            `json:"state,omitempty"`
	VpcID        string            `json:"vpc_id,omitempty"`
	EnvVarsCount int               `json:"env_vars_count,omitempty"`
	Tags         map[string]string `json:"tags,omitempty"`
}

func lambdaTools(c *Clients) []local.Definition {
	return []local.Definition{
		{
			Name:        "list_lambda_functions",
			Description: "List Lambda functions, optionally filtered by name prefix, substring or runtime.",
			Parameters: []local.ParameterDef{
				regionParam,
				{Name: "prefix", Type: "string", Description: "Function name prefix"},
				{Name: "name_pattern", Type: "string", Description: "Case-insensitive substring of the function name"},
				{Name: "runtime", Type: "string", Description: "Runtime such as 'python3.12'; a prefix like 'python' matches every version"},
				{Name: "max_items", Type: "integer", Description: "Maximum number of functions to return (default: 100)"},
			},
			Handler: c.listFunctions,
		},
		{
			Name:        "get_lambda_function_info",
			Description: "Get the configuration and tags of a Lambda function.",
			Parameters: []local.ParameterDef{
				{Name: "function_name", Type: "string", Description: "Name of the Lambda function", Required: true},
				regionParam,
			},
			Handler: c.functionInfo,
		},
		{
			Name:        "update_lambda_config",
			Description: "Change the memory size or timeout of a Lambda function.",
			Parameters: []local.ParameterDef{
				{Name: "function_name", Type: "string", Description: "Name of the Lambda function", Required: true},
				{Name: "memory_size", Type: "integer", Description: "Memory size in MB"},
				{Name: "timeout", Type: "integer", Description: "Timeout in seconds"},
				regionParam,
			},
			Handler: c.updateFunction,
		},
		{
			Name:        "delete_lambda_function",
			Description: "Delete a Lambda function.",
			Parameters: []local.ParameterDef{
				{Name: "function_name", Type: "string", Description: "Name of the Lambda function to delete", Required: true},
				regionParam,
			},
			Handler: c.deleteFunction,
		},
	}
}

func lambdaRegion(region string) func(*lambda.Options) {
	return func(o *lambda.Options) {
		if region != "" {
			o.Region = region
		}
	}
}

func (c *Clients) listFunctions(ctx context.Context, params map[string]any) (any, error) {
	prefix := local.StringParam(params, "prefix")
	pattern := strings.ToLower(local.StringParam(params, "name_pattern"))
	runtime := strings.ToLower(local.StringParam(params, "runtime"))
	limit := local.IntParam(params, "max_items", defaultMaxFunctions)
	if limit <= 0 {
		limit = defaultMaxFunctions
	}
	opt := lambdaRegion(c.region(params))

	out := make([]FunctionView, 0)
	var marker *string
	for len(out) < limit {
		page, err := c.Lambda.ListFunctions(ctx, &lambda.ListFunctionsInput{Marker: marker}, opt)
		if err != nil {
			return nil, fmt.Errorf("list functions: %w", err)
		}
		for _, f := range page.Functions {
			name := aws.ToString(f.FunctionName)
			switch {
			case prefix != "" && !strings.HasPrefix(name, prefix):
				continue
			case pattern != "" && !strings.Contains(strings.ToLower(name), pattern):
				continue
			case runtime != "" && !strings.HasPrefix(strings.ToLower(string(f.Runtime)), runtime):
				continue
			}
			out = append(out, functionView(&f))
			if len(out) == limit {
				break
			}
		}
		if aws.ToString(page.NextMarker) == "" {
			break
		}
		marker = page.NextMarker
	}
	return map[string]any{"functions": out, "count": len(out)}, nil
}

func (c *Clients) functionInfo(ctx context.Context, params map[string]any) (any, error) {
	name, err := requireString(params, "function_name")
	if err != nil {
		return nil, err
	}
	res, err := c.Lambda.GetFunction(ctx, &lambda.GetFunctionInput{FunctionName: aws.String(name)}, lambdaRegion(c.region(params)))
	if err != nil {
		return nil, fmt.Errorf("get function %s: %w", name, err)
	}
	view := FunctionView{FunctionName: name}
	if res.Configuration != nil {
		view = functionView(res.Configuration)
	}
	view.Tags = res.Tags
	return view, nil
}

func (c *Clients) updateFunction(ctx context.Context, params map[string]any) (any, error) {
	name, err := requireString(params, "function_name")
	if err != nil {
		return nil, err
	}
	in := &lambda.UpdateFunctionConfigurationInput{FunctionName: aws.String(name)}
	if m := local.IntParam(params, "memory_size", 0); m > 0 {
		in.MemorySize = aws.Int32(int32(m))
	}
	if t := local.IntParam(params, "timeout", 0); t > 0 {
		in.Timeout = aws.Int32(int32(t))
	}
	if in.MemorySize == nil && in.Timeout == nil {
		return nil, fmt.Errorf("nothing to update: give memory_size or timeout")
	}
	res, err := c.Lambda.UpdateFunctionConfiguration(ctx, in, lambdaRegion(c.region(params)))
	if err != nil {
		return nil, fmt.Errorf("update function %s: %w", name, err)
	}
	logger.InfoX(moduleName, "updated function %s (memory=%d, timeout=%d)", name, aws.ToInt32(res.MemorySize), aws.ToInt32(res.Timeout))
	return FunctionView{
		FunctionName: name,
		Runtime:      string(res.Runtime),
		MemorySize:   aws.ToInt32(res.MemorySize),
		Timeout:      aws.ToInt32(res.Timeout),
		LastModified: aws.ToString(res.LastModified),
	}, nil
}

func (c *Clients) deleteFunction(ctx context.Context, params map[string]any) (any, error) {
	name, err := requireString(params, "function_name")
	if err != nil {
		return nil, err
	}
	if _, err := c.Lambda.DeleteFunction(ctx, &lambda.DeleteFunctionInput{FunctionName: aws.String(name)}, lambdaRegion(c.region(params))); err != nil {
		return nil, fmt.Errorf("delete function %s: %w", name, err)
	}
	logger.InfoX(moduleName, "deleted function %s", name)
	return map[string]any{"function_name": name, "deleted": true}, nil
}

func functionView(f *lambdatypes.FunctionConfiguration) FunctionView {
	v := FunctionView{
		FunctionName: aws.ToString(f.FunctionName),
		Runtime:      string(f.Runtime),
		Handler:      aws.ToString(f.Handler),
		MemorySize:   aws.ToInt32(f.MemorySize),
		Timeout:      aws.ToInt32(f.Timeout),
		CodeSize:     f.CodeSize,
		LastModified: aws.ToString(f.LastModified),
		State:        string(f.State),
	}
	if f.VpcConfig != nil {
		v.VpcID = aws.ToString(f.VpcConfig.VpcId)
	}
	if f.Environment != nil {
		v.EnvVarsCount = len(f.Environment.Variables)
	}
	return v
}

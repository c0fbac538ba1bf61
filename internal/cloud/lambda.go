package cloud

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
)

type invokeAPI interface {
	Invoke(ctx context.Context, in *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// LambdaClient invokes functions synchronously and returns their raw payload.
type LambdaClient struct {
	svc invokeAPI
}

func NewLambdaClient(cfg aws.Config) *LambdaClient {
	return &LambdaClient{svc: lambda.NewFromConfig(cfg)}
}

func (c *LambdaClient) Invoke(ctx context.Context, function string, payload []byte) ([]byte, error) {
	out, err := c.svc.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(function),
		Payload:        payload,
		InvocationType: types.InvocationTypeRequestResponse,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke Lambda: %w", err)
	}
	if out.FunctionError != nil {
		return nil, fmt.Errorf("lambda function error: %s: %s", aws.ToString(out.FunctionError), out.Payload)
	}
	return out.Payload, nil
}

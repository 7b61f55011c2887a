package bedrock

import (
	"context"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"

	"github.com/opschat/opschat/pkg/apperr"
)

// sdkInvoke performs the real InvokeAgent call and concatenates the
// chunk bytes of the response stream in arrival order.
func (c *Client) sdkInvoke(ctx context.Context, region string, creds *Credentials, identity Identity, sessionID, message string) (string, error) {
	optFns := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
		// Agent runs can take minutes; the SDK default client timeout
		// is far too aggressive for them.
		awsconfig.WithHTTPClient(&http.Client{Timeout: c.cfg.BedrockTimeout}),
		awsconfig.WithRetryer(func() aws.Retryer {
			return retry.AddWithMaxAttempts(retry.NewAdaptiveMode(), c.cfg.BedrockMaxRetries)
		}),
	}
	if creds != nil && creds.AccessKeyID != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return "", apperr.AgentError(providerName, 0, "failed to load AWS configuration", err)
	}

	client := bedrockagentruntime.NewFromConfig(awsCfg)
	output, err := client.InvokeAgent(ctx, &bedrockagentruntime.InvokeAgentInput{
		AgentId:      aws.String(identity.AgentID),
		AgentAliasId: aws.String(identity.AgentAliasID),
		SessionId:    aws.String(sessionID),
		InputText:    aws.String(message),
	})
	if err != nil {
		return "", apperr.AgentError(providerName, 0, err.Error(), err)
	}

	stream := output.GetStream()
	defer stream.Close()

	var sb strings.Builder
	for event := range stream.Events() {
		if chunk, ok := event.(*types.ResponseStreamMemberChunk); ok {
			sb.Write(chunk.Value.Bytes)
		}
	}
	if err := stream.Err(); err != nil {
		return "", apperr.AgentError(providerName, 0, "bedrock response stream failed", err)
	}

	return sb.String(), nil
}

package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/sirupsen/logrus"

	"github.com/macrolens/nutriresolve/internal/logging"
)

// inference profile ID, not the foundation model ID
const defaultBedrockModel = "us.anthropic.claude-3-7-sonnet-20250219-v1:0"

type bedrockRuntimeClient interface {
	Converse(context.Context, *bedrockruntime.ConverseInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Bedrock uses the Bedrock Converse API
type Bedrock struct {
	brc bedrockRuntimeClient
	cfg Config
}

func NewBedrock(brc bedrockRuntimeClient, cfg Config) *Bedrock {
	cfg = withDefaults(cfg)
	if cfg.Model == "" {
		cfg.Model = defaultBedrockModel
	}
	return &Bedrock{brc: brc, cfg: cfg}
}

func (b *Bedrock) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := b.brc.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(b.cfg.Model),
		Messages: []types.Message{{
			Role:    types.ConversationRoleUser,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: prompt}},
		}},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(int32(b.cfg.MaxTokens)),
			Temperature: aws.Float32(float32(b.cfg.Temperature)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("bedrock converse failed: %w", err)
	}

	fields := logrus.Fields{"stop_reason": out.StopReason}
	if out.Usage != nil {
		fields["input_tokens"] = aws.ToInt32(out.Usage.InputTokens)
		fields["output_tokens"] = aws.ToInt32(out.Usage.OutputTokens)
	}
	logging.Log.WithFields(fields).Debug("[AI] bedrock converse succeeded")

	return textFromOutput(out), nil
}

// textFromOutput joins the assistant's text blocks
func textFromOutput(out *bedrockruntime.ConverseOutput) string {
	if out == nil || out.Output == nil {
		return ""
	}
	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok || msg == nil {
		return ""
	}

	var texts []string
	for _, block := range msg.Value.Content {
		if t, ok := block.(*types.ContentBlockMemberText); ok && t.Value != "" {
			texts = append(texts, t.Value)
		}
	}
	return strings.Join(texts, "\n")
}

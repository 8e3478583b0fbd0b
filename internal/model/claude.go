package model

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

const (
	defaultBedrockModel = "global.anthropic.claude-sonnet-4-5-20250929-v1:0"
	defaultAWSRegion    = "eu-west-1"
)

const claudeSystemPrompt = `You classify website links for a phishing detector.
Reply with exactly one lowercase word: "good" if the link looks legitimate, "bad" if it looks like phishing or malware.
Do not add punctuation or explanation.`

// messageCreator is the slice of the Anthropic client ClaudePredictor uses.
type messageCreator interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// ClaudeOptions configures the Bedrock-hosted predictor.
type ClaudeOptions struct {
	Region string
	Model  string
}

// ClaudePredictor asks Claude on AWS Bedrock for a good/bad label per URL.
type ClaudePredictor struct {
	messages messageCreator
	model    string
}

// NewClaudePredictor builds a predictor from the default AWS credential chain.
func NewClaudePredictor(ctx context.Context, opts ClaudeOptions) (*ClaudePredictor, error) {
	if os.Getenv("AWS_ACCESS_KEY_ID") == "" && os.Getenv("AWS_PROFILE") == "" {
		return nil, fmt.Errorf("%w: AWS credentials not configured", ErrLoad)
	}
	region := opts.Region
	if region == "" {
		region = defaultAWSRegion
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("%w: aws config: %w", ErrLoad, err)
	}
	client := anthropic.NewClient(bedrock.WithConfig(awsCfg))
	return newClaudePredictor(&client.Messages, opts.Model), nil
}

func newClaudePredictor(mc messageCreator, model string) *ClaudePredictor {
	if model == "" {
		model = defaultBedrockModel
	}
	return &ClaudePredictor{messages: mc, model: model}
}

func (p *ClaudePredictor) Describe() Info {
	return Info{
		Backend:   BackendClaude,
		Source:    p.model,
		Labels:    []Label{String("good"), String("bad")},
		LabelKind: KindString.String(),
	}
}

// Classify sends one request per input. An empty reply yields None.
func (p *ClaudePredictor) Classify(ctx context.Context, inputs []string) ([]Label, error) {
	out := make([]Label, 0, len(inputs))
	for _, in := range inputs {
		msg, err := p.messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(p.model),
			MaxTokens: 8,
			System: []anthropic.TextBlockParam{
				{Text: claudeSystemPrompt},
			},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(in)),
			},
		})
		if err != nil {
			return nil, fmt.Errorf("claude: %w", err)
		}
		out = append(out, parseClaudeReply(msg))
	}
	return out, nil
}

func parseClaudeReply(msg *anthropic.Message) Label {
	if msg == nil || len(msg.Content) == 0 {
		return None
	}
	fields := strings.Fields(strings.ToLower(msg.Content[0].Text))
	if len(fields) == 0 {
		return None
	}
	return String(strings.Trim(fields[0], `."'`))
}

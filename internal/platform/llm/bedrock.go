package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

const (
	bedrockAnthropicVersion = "bedrock-2023-05-31"
	bedrockAccessDenied     = "AccessDeniedException"
)

// BedrockConfig configures the Bedrock InvokeModel adapter. With no static
// keys and UseDefaultCredentials set, the default AWS credential chain is
// used.
type BedrockConfig struct {
	Region                string
	ModelID               string
	AccessKeyID           string
	SecretAccessKey       string
	SessionToken          string
	UseDefaultCredentials bool
	// Endpoint overrides the regional bedrock-runtime endpoint.
	Endpoint  string
	MaxTokens int
	Timeout   time.Duration
}

// Bedrock calls InvokeModel for Anthropic models through the
// bedrockruntime client.
type Bedrock struct {
	cfg BedrockConfig

	clientOnce sync.Once
	client     *bedrockruntime.Client
	clientErr  error
}

// NewBedrock creates the adapter. The SDK client is built on first use.
func NewBedrock(cfg BedrockConfig) *Bedrock {
	cfg.ModelID = orDefault(cfg.ModelID, "anthropic.claude-3-haiku-20240307-v1:0")
	cfg.MaxTokens = maxTokensOr(cfg.MaxTokens)
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Bedrock{cfg: cfg}
}

func (b *Bedrock) Name() string { return NameBedrock }

func (b *Bedrock) Configured() bool {
	if b.cfg.Region == "" {
		return false
	}
	return (b.cfg.AccessKeyID != "" && b.cfg.SecretAccessKey != "") || b.cfg.UseDefaultCredentials
}

func (b *Bedrock) runtime(ctx context.Context) (*bedrockruntime.Client, error) {
	b.clientOnce.Do(func() {
		loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(b.cfg.Region)}
		if b.cfg.AccessKeyID != "" {
			loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(b.cfg.AccessKeyID, b.cfg.SecretAccessKey, b.cfg.SessionToken),
			))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			b.clientErr = fmt.Errorf("bedrock: load aws config: %w", err)
			return
		}
		b.client = bedrockruntime.NewFromConfig(awsCfg, func(o *bedrockruntime.Options) {
			if b.cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(b.cfg.Endpoint)
			}
			// The decision engine falls back on failure; one attempt per cycle.
			o.RetryMaxAttempts = 1
		})
	})
	return b.client, b.clientErr
}

type bedrockRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	System           string             `json:"system,omitempty"`
	Messages         []anthropicMessage `json:"messages"`
}

// Complete invokes the model. A 403 or an AccessDeniedException is
// reported as domain.ErrIneligible.
func (b *Bedrock) Complete(ctx context.Context, prompt string) (domain.RawReply, error) {
	client, err := b.runtime(ctx)
	if err != nil {
		return domain.RawReply{}, err
	}

	payload, err := json.Marshal(bedrockRequest{
		AnthropicVersion: bedrockAnthropicVersion,
		MaxTokens:        b.cfg.MaxTokens,
		System:           systemPrompt,
		Messages:         []anthropicMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return domain.RawReply{}, fmt.Errorf("bedrock: encode request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	out, err := client.InvokeModel(callCtx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.cfg.ModelID),
		Body:        payload,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return domain.RawReply{}, b.classify(err)
	}

	var resp anthropicResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return domain.RawReply{}, fmt.Errorf("bedrock: decode response: %w", err)
	}
	for _, block := range resp.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			return domain.RawReply{Provider: NameBedrock, Model: b.cfg.ModelID, Text: block.Text}, nil
		}
	}
	return domain.RawReply{}, fmt.Errorf("bedrock: %w", ErrEmptyReply)
}

func (b *Bedrock) classify(err error) error {
	if isAccessDenied(err) {
		return fmt.Errorf("bedrock: model %s: %w", b.cfg.ModelID, domain.ErrIneligible)
	}
	var re *smithyhttp.ResponseError
	if errors.As(err, &re) {
		return newStatusError(NameBedrock, re.HTTPStatusCode(), err.Error())
	}
	return fmt.Errorf("bedrock: invoke model: %w", err)
}

func isAccessDenied(err error) bool {
	var denied *types.AccessDeniedException
	if errors.As(err, &denied) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == bedrockAccessDenied {
		return true
	}
	var re *smithyhttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusForbidden
}

package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	openai "github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/autoclaim/internal/application/port"
	"github.com/garyjia/autoclaim/internal/domain/entity"
)

// MsgServiceUnavailable is shown when the evaluation API cannot be reached
const MsgServiceUnavailable = "Evaluation service unavailable. Please try again."

// PageRasterizer renders PDF bytes to JPEG pages
type PageRasterizer interface {
	Rasterize(data []byte) ([][]byte, error)
}

// Config configures the evaluation client
type Config struct {
	APIKey  string
	BaseURL string // empty for api.openai.com
	Model   string
	Timeout time.Duration
}

// Evaluator implements port.ClaimEvaluator against an OpenAI-compatible vision API
type Evaluator struct {
	client     *openai.Client
	model      string
	timeout    time.Duration
	prompts    *PromptConfig
	schema     *jsonschema.Schema
	rasterizer PageRasterizer
	logger     *zap.Logger
}

// NewEvaluator creates a new Evaluator. prompts may be nil for the built-in prompts.
func NewEvaluator(cfg Config, prompts *PromptConfig, rasterizer PageRasterizer, logger *zap.Logger) (*Evaluator, error) {
	schema, err := compileEvaluationSchema()
	if err != nil {
		return nil, err
	}
	if prompts == nil {
		prompts = DefaultPrompts()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Evaluator{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		timeout:    cfg.Timeout,
		prompts:    prompts,
		schema:     schema,
		rasterizer: rasterizer,
		logger:     logger,
	}, nil
}

// evaluationResponse mirrors evaluation_schema.json
type evaluationResponse struct {
	Details struct {
		Provider     string  `json:"provider"`
		BillingDate  string  `json:"billingDate"`
		TotalAmount  float64 `json:"totalAmount"`
		CustomerName string  `json:"customerName"`
	} `json:"details"`
	EligibleAmount float64 `json:"eligibleAmount"`
	Status         string  `json:"status"`
	Reasoning      string  `json:"reasoning"`
}

// Evaluate makes exactly one chat completion call for the submission
func (e *Evaluator) Evaluate(ctx context.Context, req port.EvaluationRequest) (*port.Evaluation, error) {
	monthCount := len(req.Months)
	if monthCount == 0 || len(req.Files) == 0 {
		return nil, entity.NewExtractionFailure(entity.MsgInsufficientClarity, fmt.Errorf("empty submission"))
	}

	prompt, err := e.buildPrompt(req)
	if err != nil {
		return nil, entity.NewExtractionFailure(entity.MsgInsufficientClarity, err)
	}

	parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: prompt}}
	images, err := e.imageParts(req.Files)
	if err != nil {
		e.logger.Error("Failed to prepare documents", zap.Error(err))
		return nil, entity.NewExtractionFailure(entity.MsgInsufficientClarity, err)
	}
	parts = append(parts, images...)

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	e.logger.Info("Requesting claim evaluation",
		zap.String("user", req.ExpectedName),
		zap.String("type", string(req.Type)),
		zap.Strings("months", req.Months),
		zap.Int("image_parts", len(images)))

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		MaxTokens:   e.prompts.Evaluation.MaxTokens,
		Temperature: e.prompts.Evaluation.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: e.prompts.Evaluation.System,
			},
			{
				Role:         openai.ChatMessageRoleUser,
				MultiContent: parts,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "claim_evaluation",
				Schema: json.RawMessage(evaluationSchema),
				Strict: true,
			},
		},
	})
	if err != nil {
		e.logger.Error("Evaluation API call failed", zap.Error(err))
		return nil, entity.NewExtractionFailure(MsgServiceUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return nil, entity.NewExtractionFailure(entity.MsgInsufficientClarity, fmt.Errorf("no choices in response"))
	}

	content := resp.Choices[0].Message.Content
	eval, err := e.parse(content, monthCount)
	if err != nil {
		e.logger.Error("Unusable evaluation response",
			zap.Error(err),
			zap.String("content", content))
		return nil, entity.NewExtractionFailure(entity.MsgInsufficientClarity, err)
	}

	e.logger.Info("Claim evaluated",
		zap.String("user", req.ExpectedName),
		zap.String("status", string(eval.Status)),
		zap.Float64("total_amount", eval.Details.TotalAmount),
		zap.Float64("eligible_amount", eval.EligibleAmount))

	return eval, nil
}

func (e *Evaluator) parse(content string, monthCount int) (*port.Evaluation, error) {
	raw := []byte(strings.TrimSpace(content))
	if err := validateDocument(e.schema, raw); err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var result evaluationResponse
	if err := dec.Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if err := entity.CheckEligibleAmount(result.EligibleAmount, result.Details.TotalAmount, monthCount); err != nil {
		return nil, err
	}

	return &port.Evaluation{
		Details: entity.ClaimDetails{
			Provider:     result.Details.Provider,
			BillingDate:  result.Details.BillingDate,
			TotalAmount:  result.Details.TotalAmount,
			CustomerName: result.Details.CustomerName,
		},
		EligibleAmount: result.EligibleAmount,
		Status:         entity.ClaimStatus(result.Status),
		Reasoning:      result.Reasoning,
	}, nil
}

func (e *Evaluator) buildPrompt(req port.EvaluationRequest) (string, error) {
	monthCount := len(req.Months)
	return renderTemplate(e.prompts.Evaluation.UserTemplate, promptData{
		DocumentCount: len(req.Files),
		Type:          string(req.Type),
		ExpectedName:  req.ExpectedName,
		Period:        strings.Join(req.Months, ", "),
		MonthCount:    monthCount,
		MonthlyCap:    decimal.NewFromInt(entity.MonthlyCap).StringFixed(2),
		Ceiling:       decimal.NewFromFloat(entity.MaxEligibleAmount(monthCount)).StringFixed(2),
	})
}

// imageParts turns documents into image_url parts; PDFs are rasterized first
func (e *Evaluator) imageParts(files []entity.UploadedFile) ([]openai.ChatMessagePart, error) {
	var parts []openai.ChatMessagePart
	for _, f := range files {
		if !f.IsPDF() {
			parts = append(parts, imagePart(f.MimeType, f.EncodedData))
			continue
		}

		if e.rasterizer == nil {
			return nil, fmt.Errorf("%s: PDF documents are not supported", f.OriginalName)
		}
		data, err := base64.StdEncoding.DecodeString(f.EncodedData)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid encoding: %w", f.OriginalName, err)
		}
		pages, err := e.rasterizer.Rasterize(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.OriginalName, err)
		}
		for _, page := range pages {
			parts = append(parts, imagePart("image/jpeg", base64.StdEncoding.EncodeToString(page)))
		}
	}
	return parts, nil
}

func imagePart(mimeType, encoded string) openai.ChatMessagePart {
	return openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeImageURL,
		ImageURL: &openai.ChatMessageImageURL{
			URL:    fmt.Sprintf("data:%s;base64,%s", mimeType, encoded),
			Detail: openai.ImageURLDetailHigh,
		},
	}
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iamvkosarev/hablaya/config"
	"github.com/iamvkosarev/hablaya/internal/model"
	"github.com/iamvkosarev/hablaya/internal/observe"
	"github.com/sashabaranov/go-openai"
)

// OpenAIUsecase is the single gateway to the provider. Every call is one
// round trip with no retries.
type OpenAIUsecase struct {
	cfg     config.OpenAI
	client  *openai.Client
	metrics *observe.Metrics
}

func NewOpenAIUsecase(cfg config.OpenAI, metrics *observe.Metrics) *OpenAIUsecase {
	clientConfig := openai.DefaultConfig(cfg.OpenAIAPIKey)
	clientConfig.BaseURL = cfg.OpenAIBaseURL
	if metrics == nil {
		metrics = observe.NopMetrics()
	}
	return &OpenAIUsecase{
		cfg:     cfg,
		client:  openai.NewClientWithConfig(clientConfig),
		metrics: metrics,
	}
}

func (o *OpenAIUsecase) HasAPIKey() bool {
	return o.cfg.OpenAIAPIKey != ""
}

func (o *OpenAIUsecase) APIKeyLength() int {
	return len(o.cfg.OpenAIAPIKey)
}

func (o *OpenAIUsecase) Complete(
	ctx context.Context,
	req openai.ChatCompletionRequest,
) (openai.ChatCompletionResponse, error) {
	if !o.HasAPIKey() {
		return openai.ChatCompletionResponse{}, model.ErrAPIKeyMissing
	}
	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, req)
	o.metrics.RecordProviderCall(ctx, observe.KindChat, start, err)
	if err != nil {
		return openai.ChatCompletionResponse{}, upstreamError("chat completion", err)
	}
	o.metrics.RecordTokens(ctx, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	return resp, nil
}

func (o *OpenAIUsecase) Speak(ctx context.Context, req openai.CreateSpeechRequest) (openai.RawResponse, error) {
	if !o.HasAPIKey() {
		return openai.RawResponse{}, model.ErrAPIKeyMissing
	}
	start := time.Now()
	resp, err := o.client.CreateSpeech(ctx, req)
	o.metrics.RecordProviderCall(ctx, observe.KindSpeech, start, err)
	if err != nil {
		return openai.RawResponse{}, upstreamError("speech", err)
	}
	return resp, nil
}

func (o *OpenAIUsecase) Transcribe(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error) {
	if !o.HasAPIKey() {
		return openai.AudioResponse{}, model.ErrAPIKeyMissing
	}
	start := time.Now()
	resp, err := o.client.CreateTranscription(ctx, req)
	o.metrics.RecordProviderCall(ctx, observe.KindTranscription, start, err)
	if err != nil {
		return openai.AudioResponse{}, upstreamError("transcription", err)
	}
	return resp, nil
}

// ProbeResult mirrors the health endpoint's openaiTest block.
type ProbeResult struct {
	Status int    `json:"status,omitempty"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

// Probe lists models to check that the key is accepted. Provider rejections
// are reported as a status, transport failures as an error string.
func (o *OpenAIUsecase) Probe(ctx context.Context) ProbeResult {
	start := time.Now()
	_, err := o.client.ListModels(ctx)
	o.metrics.RecordProviderCall(ctx, observe.KindHealth, start, err)
	if err == nil {
		return ProbeResult{Status: 200, OK: true}
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return ProbeResult{Status: apiErr.HTTPStatusCode}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return ProbeResult{Status: reqErr.HTTPStatusCode}
	}
	return ProbeResult{Error: err.Error()}
}

func upstreamError(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &model.UpstreamError{
			Op:         op,
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &model.UpstreamError{
			Op:         op,
			StatusCode: reqErr.HTTPStatusCode,
			Message:    fmt.Sprintf("OpenAI API error: %d", reqErr.HTTPStatusCode),
			Err:        reqErr.Err,
		}
	}
	return &model.UpstreamError{Op: op, Message: "provider request failed", Err: err}
}

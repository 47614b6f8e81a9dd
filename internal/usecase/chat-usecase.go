package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/iamvkosarev/hablaya/config"
	"github.com/iamvkosarev/hablaya/internal/model"
	"github.com/iamvkosarev/hablaya/pkg/openaitools"
	"github.com/iamvkosarev/hablaya/pkg/proficiency"
	"github.com/iamvkosarev/hablaya/pkg/prompt"
	"github.com/sashabaranov/go-openai"
)

const (
	PromptModeAdaptive = "adaptive"
	PromptModeSimple   = "simple"

	ReasonInvalidMessages = "Invalid messages array"
	ReasonInvalidRole     = "Invalid message role"
	ReasonModelNoAccess   = "Model is not allowed"
	MessageNoResponse     = "No response from AI"
)

type ChatUsecaseDeps struct {
	OpenAI *OpenAIUsecase
	Logger *slog.Logger
}

// ChatUsecase relays a conversation to the completion provider. It keeps no
// state between calls.
type ChatUsecase struct {
	ChatUsecaseDeps
	cfg           config.Chat
	defaultLevel  proficiency.Level
	allowedModels map[string]struct{}
	now           func() time.Time
}

func NewChatUsecase(deps ChatUsecaseDeps, cfg config.Chat) *ChatUsecase {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	allowedModels := make(map[string]struct{}, len(cfg.AllowedModels))
	for _, m := range cfg.AllowedModels {
		allowedModels[strings.TrimSpace(m)] = struct{}{}
	}
	defaultLevel, ok := proficiency.ParseLevel(cfg.DefaultLevel)
	if !ok || defaultLevel == proficiency.LevelAuto {
		defaultLevel = proficiency.LevelIntermediate
	}
	return &ChatUsecase{
		ChatUsecaseDeps: deps,
		cfg:             cfg,
		defaultLevel:    defaultLevel,
		allowedModels:   allowedModels,
		now:             time.Now,
	}
}

// Reply prepends a freshly built system prompt to req.Messages and returns
// the assistant's answer. A nil Messages slice is rejected.
func (c *ChatUsecase) Reply(ctx context.Context, req model.ChatRequest) (model.ChatResponse, error) {
	if req.Messages == nil {
		return model.ChatResponse{}, model.NewInputError(ReasonInvalidMessages)
	}
	for _, msg := range req.Messages {
		if _, ok := model.ParseRole(string(msg.Role)); !ok {
			return model.ChatResponse{}, &model.InputError{
				Reason:  ReasonInvalidRole,
				Details: fmt.Sprintf("unknown role %q", msg.Role),
			}
		}
	}
	chatModel := req.Model
	if chatModel == "" {
		chatModel = c.cfg.Model
	}
	if !c.isModelAllowed(chatModel) {
		return model.ChatResponse{}, &model.InputError{Reason: ReasonModelNoAccess, Details: chatModel}
	}

	now := c.now()
	level := c.effectiveLevel(req)
	focus, ok := prompt.ParseFocus(req.LearningFocus)
	if !ok {
		focus = prompt.FocusConversation
	}

	var systemPrompt string
	if c.cfg.PromptMode == PromptModeSimple {
		systemPrompt = prompt.Simple(now)
	} else {
		systemPrompt = prompt.Build(
			prompt.Input{
				Level:        prompt.Describe(level),
				Focus:        focus,
				IsVoiceInput: req.IsVoiceInput,
				SessionData:  req.SessionData,
				Now:          now,
			},
		)
	}

	history := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	history = append(
		history, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		},
	)
	for _, msg := range req.Messages {
		history = append(
			history, openai.ChatCompletionMessage{
				Role:    string(msg.Role),
				Content: msg.Content,
			},
		)
	}
	history = c.trimHistory(history, chatModel)

	resp, err := c.OpenAI.Complete(
		ctx, openai.ChatCompletionRequest{
			Model:            chatModel,
			Messages:         history,
			Temperature:      c.cfg.Temperature,
			MaxTokens:        c.cfg.MaxTokens,
			FrequencyPenalty: c.cfg.FrequencyPenalty,
			PresencePenalty:  c.cfg.PresencePenalty,
			TopP:             c.cfg.TopP,
		},
	)
	if err != nil {
		return model.ChatResponse{}, fmt.Errorf("failed to complete chat: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return model.ChatResponse{}, &model.UpstreamError{Op: "chat completion", Message: MessageNoResponse}
	}

	usedModel := resp.Model
	if usedModel == "" {
		usedModel = chatModel
	}
	return model.ChatResponse{
		Message: resp.Choices[0].Message.Content,
		Metadata: &model.ChatMetadata{
			Model:         usedModel,
			DetectedLevel: string(level),
			Focus:         string(focus),
			Timestamp:     now.UTC(),
			Usage: model.TokenUsage{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
			},
		},
	}, nil
}

// effectiveLevel prefers a declared level; "auto" or an unknown value falls
// back to estimating from the latest user message.
func (c *ChatUsecase) effectiveLevel(req model.ChatRequest) proficiency.Level {
	if declared, ok := proficiency.ParseLevel(req.UserLevel); ok && declared != proficiency.LevelAuto {
		return declared
	}
	if text, ok := model.LastUserContent(req.Messages); ok {
		if level, ok := proficiency.Estimate(text); ok {
			return level
		}
	}
	return c.defaultLevel
}

func (c *ChatUsecase) isModelAllowed(chatModel string) bool {
	if len(c.allowedModels) == 0 {
		return true
	}
	_, ok := c.allowedModels[chatModel]
	return ok
}

// trimHistory drops the oldest conversation messages until the prompt fits
// MaxContextTokens. The system prompt and the newest message always stay.
func (c *ChatUsecase) trimHistory(history []openai.ChatCompletionMessage, chatModel string) []openai.ChatCompletionMessage {
	if c.cfg.MaxContextTokens <= 0 {
		return history
	}
	for len(history) > 2 {
		tokenCount, err := openaitools.CountToken(history, chatModel)
		if err != nil {
			c.Logger.Warn("count token failed, context left untrimmed", slog.Any("error", err))
			return history
		}
		if tokenCount <= c.cfg.MaxContextTokens {
			break
		}
		history = append(history[:1], history[2:]...)
		c.Logger.Debug("history trimmed due to token limit", slog.Int("tokens", tokenCount))
	}
	return history
}

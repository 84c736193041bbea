package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nutriplanhq/nutriplan-backend/pkg/db/models"
	pkgerrors "github.com/nutriplanhq/nutriplan-backend/pkg/errors"
	"github.com/nutriplanhq/nutriplan-backend/pkg/llm"
	"github.com/nutriplanhq/nutriplan-backend/pkg/logger"
)

const (
	maxHistoryMessages = 30
	maxMessageRunes    = 4000

	rateLimitWindow = time.Minute
	rateLimitCalls  = 20
)

type modelClient interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
	Stream(ctx context.Context, req llm.Request, onDelta func(delta string) error) error
	Model() string
}

type profileSource interface {
	FindOrDefault(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
}

type rateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type ServiceParams struct {
	Profiles profileSource
	LLM      modelClient
	Limiter  rateLimiter
	Logger   *logger.Logger
}

// Service answers recipe chat turns. The caller owns the transport; streaming
// hands deltas to a callback and the api layer transcodes them to SSE.
type Service struct {
	profiles profileSource
	llm      modelClient
	limiter  rateLimiter
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Profiles == nil {
		return nil, fmt.Errorf("profile source required")
	}
	if params.LLM == nil {
		return nil, fmt.Errorf("llm client required")
	}
	if params.Limiter == nil {
		return nil, fmt.Errorf("rate limiter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		profiles: params.Profiles,
		llm:      params.LLM,
		limiter:  params.Limiter,
		logg:     params.Logger,
	}, nil
}

// Message is one wire turn as the web client sends it.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Model exposes the configured model name for the SSE chunk envelope.
func (s *Service) Model() string { return s.llm.Model() }

// Respond answers a conversation in one shot.
func (s *Service) Respond(ctx context.Context, userID uuid.UUID, history []Message) (string, error) {
	req, err := s.prepare(ctx, userID, history)
	if err != nil {
		return "", err
	}
	answer, err := s.llm.Complete(ctx, *req)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "chat completion")
	}
	return answer, nil
}

// RespondStream answers a conversation delta by delta. A callback error stops
// the stream, usually because the client went away.
func (s *Service) RespondStream(ctx context.Context, userID uuid.UUID, history []Message, onDelta func(delta string) error) error {
	req, err := s.prepare(ctx, userID, history)
	if err != nil {
		return err
	}
	if err := s.llm.Stream(ctx, *req, onDelta); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "chat stream")
	}
	return nil
}

func (s *Service) prepare(ctx context.Context, userID uuid.UUID, history []Message) (*llm.Request, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if err := validateHistory(history); err != nil {
		return nil, err
	}

	allowed, _, err := s.limiter.FixedWindowAllow(ctx, "chat:"+userID.String(), rateLimitCalls, rateLimitWindow)
	if err != nil {
		// Redis trouble should not take chat down with it.
		s.logg.Warn(s.logg.WithUserID(ctx, userID.String()), "chat rate limit check failed, allowing request")
	} else if !allowed {
		return nil, pkgerrors.New(pkgerrors.CodeRateLimited, "Demasiados mensajes, esperá un momento")
	}

	profile, err := s.profiles.FindOrDefault(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load profile")
	}

	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, llm.Message{Role: "system", Content: systemPrompt(profile)})
	for _, msg := range history {
		messages = append(messages, llm.Message{Role: msg.Role, Content: msg.Content})
	}
	return &llm.Request{Messages: messages, Temperature: 0.7}, nil
}

func validateHistory(history []Message) error {
	if len(history) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "messages are required")
	}
	if len(history) > maxHistoryMessages {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("conversation too long, at most %d messages", maxHistoryMessages))
	}
	for i, msg := range history {
		if msg.Role != "user" && msg.Role != "assistant" {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("message %d has invalid role %q", i, msg.Role))
		}
		if strings.TrimSpace(msg.Content) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("message %d is empty", i))
		}
		if len([]rune(msg.Content)) > maxMessageRunes {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("message %d exceeds %d characters", i, maxMessageRunes))
		}
	}
	if history[len(history)-1].Role != "user" {
		return pkgerrors.New(pkgerrors.CodeValidation, "last message must come from the user")
	}
	return nil
}

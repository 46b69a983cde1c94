package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"oldschool-site/internal/domain"
)

const (
	defaultModel      = "gpt-4o"
	defaultMaxTokens  = 500
	defaultMaxHistory = 20
	defaultMaxMessage = 4000
	recordTimeout     = 3 * time.Second
)

type ParamGetter interface {
	GetParameters(ctx context.Context, names []string) (map[string]string, error)
}

type LLMClient interface {
	StreamChat(ctx context.Context, req domain.CompletionRequest) (domain.CompletionStream, error)
}

type ExchangeRecorder interface {
	RecordExchange(ctx context.Context, rec domain.ExchangeRecord) error
}

// TokenSink receives the reply as it streams. WriteText is called once per
// non-empty provider chunk, in provider order; Finish only after a complete
// reply.
type TokenSink interface {
	WriteText(text string) error
	Finish(reason string, usage domain.Usage) error
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// Settings are the static chat parameters. Persona and model can be
// overridden from the parameter store under ParamPrefix.
type Settings struct {
	ParamPrefix      string
	Model            string
	Persona          string
	MaxTokens        int
	Temperature      float32
	MaxHistory       int
	MaxMessageLength int
}

type ChatService struct {
	params   ParamGetter
	llm      LLMClient
	recorder ExchangeRecorder
	settings Settings
	now      func() time.Time

	cacheMu     sync.RWMutex
	cacheLoaded bool
	persona     string
	model       string
}

type ChatInput struct {
	Messages      []domain.ChatMessage
	CorrelationID string
}

type ChatOutput struct {
	ExchangeID   string
	Model        string
	FinishReason string
	Usage        domain.Usage
	Chunks       int
	OutputBytes  int
	// Started reports whether any text reached the sink.
	Started bool
}

// NewChatService wires the chat proxy. params and recorder may be nil.
func NewChatService(params ParamGetter, llm LLMClient, recorder ExchangeRecorder, settings Settings) (*ChatService, error) {
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if settings.Temperature < 0 || settings.Temperature > 2 {
		return nil, errors.New("usecase: temperature must be between 0 and 2")
	}
	settings.ParamPrefix = strings.TrimRight(strings.TrimSpace(settings.ParamPrefix), "/")
	if strings.TrimSpace(settings.Model) == "" {
		settings.Model = defaultModel
	}
	if strings.TrimSpace(settings.Persona) == "" {
		settings.Persona = DefaultPersona
	}
	if settings.MaxTokens <= 0 {
		settings.MaxTokens = defaultMaxTokens
	}
	if settings.MaxHistory <= 0 {
		settings.MaxHistory = defaultMaxHistory
	}
	if settings.MaxMessageLength <= 0 {
		settings.MaxMessageLength = defaultMaxMessage
	}
	return &ChatService{
		params:   params,
		llm:      llm,
		recorder: recorder,
		settings: settings,
		now:      time.Now,
	}, nil
}

// Stream forwards the conversation, with the persona prepended, to the model
// and relays the reply to sink. The returned output is meaningful even when
// err is non-nil; Started tells whether the client already saw text.
func (s *ChatService) Stream(ctx context.Context, in ChatInput, sink TokenSink) (out ChatOutput, err error) {
	if sink == nil {
		return out, newError(ErrorInternal, "nil_sink", nil)
	}
	history, err := s.validate(in.Messages)
	if err != nil {
		return out, err
	}

	out.ExchangeID = newUUID()
	started := s.now()
	defer func() {
		s.record(ctx, in, out, started, err)
	}()

	persona, model, err := s.ensureConfig(ctx)
	if err != nil {
		return out, newError(ErrorInternal, "ssm_load_error", err)
	}
	out.Model = model

	stream, err := s.llm.StreamChat(ctx, domain.CompletionRequest{
		Model:       model,
		Messages:    buildPromptMessages(persona, history),
		MaxTokens:   s.settings.MaxTokens,
		Temperature: s.settings.Temperature,
	})
	if err != nil {
		return out, classifyUpstream(ctx, "openai_error", err)
	}
	defer func() { _ = stream.Close() }()

	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return out, classifyUpstream(ctx, "stream_interrupted", recvErr)
		}
		if chunk.FinishReason != "" {
			out.FinishReason = chunk.FinishReason
		}
		if chunk.Usage != nil {
			out.Usage = *chunk.Usage
		}
		if chunk.Text == "" {
			continue
		}
		if err := sink.WriteText(chunk.Text); err != nil {
			return out, newError(ErrorClientGone, "sink_write_error", err)
		}
		out.Started = true
		out.Chunks++
		out.OutputBytes += len(chunk.Text)
	}

	if err := sink.Finish(out.FinishReason, out.Usage); err != nil {
		return out, newError(ErrorClientGone, "sink_write_error", err)
	}
	return out, nil
}

func (s *ChatService) validate(msgs []domain.ChatMessage) ([]domain.ChatMessage, error) {
	if len(msgs) == 0 {
		return nil, newError(ErrorInvalidInput, "empty_messages", nil)
	}
	history := make([]domain.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		role := strings.ToLower(strings.TrimSpace(m.Role))
		if role != domain.RoleUser && role != domain.RoleAssistant {
			return nil, newError(ErrorInvalidInput, "invalid_role", nil)
		}
		if strings.TrimSpace(m.Content) == "" {
			return nil, newError(ErrorInvalidInput, "empty_message", nil)
		}
		if utf8.RuneCountInString(m.Content) > s.settings.MaxMessageLength {
			return nil, newError(ErrorInvalidInput, "message_too_long", nil)
		}
		history = append(history, domain.ChatMessage{Role: role, Content: m.Content})
	}
	if history[len(history)-1].Role != domain.RoleUser {
		return nil, newError(ErrorInvalidInput, "last_message_not_user", nil)
	}
	if len(history) > s.settings.MaxHistory {
		history = history[len(history)-s.settings.MaxHistory:]
	}
	return history, nil
}

func (s *ChatService) ensureConfig(ctx context.Context) (persona, model string, err error) {
	s.cacheMu.RLock()
	if s.cacheLoaded {
		persona, model = s.persona, s.model
		s.cacheMu.RUnlock()
		return persona, model, nil
	}
	s.cacheMu.RUnlock()

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.cacheLoaded {
		return s.persona, s.model, nil
	}

	persona, model = s.settings.Persona, s.settings.Model
	if s.params != nil && s.settings.ParamPrefix != "" {
		personaKey := s.settings.ParamPrefix + "/persona_prompt"
		modelKey := s.settings.ParamPrefix + "/config/openai_model"
		values, err := s.params.GetParameters(ctx, []string{personaKey, modelKey})
		if err != nil {
			return "", "", err
		}
		if v := strings.TrimSpace(values[personaKey]); v != "" {
			persona = v
		}
		if v := strings.TrimSpace(values[modelKey]); v != "" {
			model = v
		}
	}

	s.persona, s.model = persona, model
	s.cacheLoaded = true
	return persona, model, nil
}

func (s *ChatService) record(ctx context.Context, in ChatInput, out ChatOutput, started time.Time, err error) {
	if s.recorder == nil {
		return
	}
	rec := domain.ExchangeRecord{
		ID:               out.ExchangeID,
		CorrelationID:    in.CorrelationID,
		Model:            out.Model,
		Messages:         len(in.Messages),
		Status:           domain.ExchangeCompleted,
		FinishReason:     out.FinishReason,
		Chunks:           out.Chunks,
		OutputBytes:      out.OutputBytes,
		PromptTokens:     out.Usage.PromptTokens,
		CompletionTokens: out.Usage.CompletionTokens,
		StartedAt:        started,
		Duration:         s.now().Sub(started),
	}
	if err != nil {
		rec.Status = domain.ExchangeFailed
		_, rec.ErrorReason = Describe(err)
	}

	// The visitor may already be gone; the log entry is still written.
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if recErr := s.recorder.RecordExchange(recCtx, rec); recErr != nil {
		slog.WarnContext(ctx, "failed to record chat exchange", "exchangeId", rec.ID, "err", recErr)
	}
}

func classifyUpstream(ctx context.Context, reason string, err error) *Error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		// The request's own time budget ran out; the visitor is still there.
		return newError(ErrorUpstream, "timeout", err)
	case ctx.Err() != nil:
		return newError(ErrorClientGone, "context_canceled", err)
	}
	if status, ok := upstreamStatusCode(err); ok && status == 429 {
		return newError(ErrorRateLimited, "openai_rate_limited", err)
	}
	return newError(ErrorUpstream, reason, err)
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

var newUUID = func() string {
	return uuid.NewString()
}

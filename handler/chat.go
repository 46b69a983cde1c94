package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"oldschool-site/internal/datastream"
	"oldschool-site/internal/domain"
	"oldschool-site/internal/usecase"
)

// streamErrorMessage is what the browser sees when a reply breaks off. The
// cause is only logged.
const streamErrorMessage = "An error occurred."

type chatRequest struct {
	Messages []domain.ChatMessage `json:"messages"`
}

type errorResponse struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlationId,omitempty"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	correlationID := CorrelationID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes)
	req, err := decodeChatRequest(r.Body)
	if err != nil {
		status := http.StatusBadRequest
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			status = http.StatusRequestEntityTooLarge
		}
		slog.WarnContext(r.Context(), "invalid chat request body", "correlationId", correlationID, "status", status, "err", err)
		writeError(w, status, usecase.ErrorInvalidInput, correlationID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.RequestTimeout)
	defer cancel()

	sink := newStreamSink(w, uuid.NewString())
	out, err := h.chat.Stream(ctx, usecase.ChatInput{Messages: req.Messages, CorrelationID: correlationID}, sink)
	if err == nil {
		slog.InfoContext(ctx, "chat completed",
			"correlationId", correlationID,
			"exchangeId", out.ExchangeID,
			"model", out.Model,
			"finishReason", out.FinishReason,
			"chunks", out.Chunks,
			"promptTokens", out.Usage.PromptTokens,
			"completionTokens", out.Usage.CompletionTokens,
		)
		return
	}

	code, reason := usecase.Describe(err)
	logChatFailure(ctx, code, reason, correlationID, out, err)

	if sink.started {
		if code != usecase.ErrorClientGone {
			_ = sink.Fail(streamErrorMessage)
		}
		return
	}
	status, public := errorStatus(code)
	writeError(w, status, public, correlationID)
}

// decodeChatRequest reads exactly one JSON object from body.
func decodeChatRequest(body io.Reader) (chatRequest, error) {
	var req chatRequest
	dec := json.NewDecoder(body)
	if err := dec.Decode(&req); err != nil {
		return chatRequest{}, err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("unexpected data after request object")
		}
		return chatRequest{}, err
	}
	return req, nil
}

// errorStatus maps a usecase code to the response. Only input errors are
// reported as such; everything else is a generic server error.
func errorStatus(code usecase.ErrorCode) (int, usecase.ErrorCode) {
	if code == usecase.ErrorInvalidInput {
		return http.StatusBadRequest, usecase.ErrorInvalidInput
	}
	return http.StatusInternalServerError, usecase.ErrorInternal
}

func logChatFailure(ctx context.Context, code usecase.ErrorCode, reason, correlationID string, out usecase.ChatOutput, err error) {
	attrs := []any{
		"code", code,
		"reason", reason,
		"correlationId", correlationID,
		"exchangeId", out.ExchangeID,
		"started", out.Started,
		"err", err,
	}
	switch code {
	case usecase.ErrorInvalidInput:
		slog.WarnContext(ctx, "chat request rejected", attrs...)
	case usecase.ErrorClientGone:
		slog.InfoContext(ctx, "chat client went away", attrs...)
	default:
		slog.ErrorContext(ctx, "chat failed", attrs...)
	}
}

func writeError(w http.ResponseWriter, status int, code usecase.ErrorCode, correlationID string) {
	writeJSON(w, status, errorResponse{Error: string(code), CorrelationID: correlationID})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "err", err)
	}
}

// streamSink writes the reply as an AI SDK data stream. Headers are committed
// with the first part, so errors before any text can still become a JSON
// error response.
type streamSink struct {
	w         http.ResponseWriter
	rc        *http.ResponseController
	enc       *datastream.Encoder
	messageID string
	started   bool
}

func newStreamSink(w http.ResponseWriter, messageID string) *streamSink {
	return &streamSink{
		w:         w,
		rc:        http.NewResponseController(w),
		enc:       datastream.NewEncoder(w),
		messageID: messageID,
	}
}

func (s *streamSink) begin() error {
	if s.started {
		return nil
	}
	s.started = true
	hdr := s.w.Header()
	hdr.Set("Content-Type", datastream.ContentType)
	hdr.Set(datastream.HeaderName, datastream.HeaderVersion)
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	return s.enc.Start(s.messageID)
}

func (s *streamSink) WriteText(text string) error {
	if err := s.begin(); err != nil {
		return err
	}
	if err := s.enc.Text(text); err != nil {
		return err
	}
	return s.flush()
}

func (s *streamSink) Finish(reason string, usage domain.Usage) error {
	if err := s.begin(); err != nil {
		return err
	}
	if err := s.enc.FinishStep(reason, usage); err != nil {
		return err
	}
	if err := s.enc.Finish(reason, usage); err != nil {
		return err
	}
	return s.flush()
}

// Fail ends a started stream with an error part.
func (s *streamSink) Fail(msg string) error {
	if err := s.enc.Error(msg); err != nil {
		return err
	}
	return s.flush()
}

func (s *streamSink) flush() error {
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

// Package datastream writes the line protocol understood by AI SDK chat
// clients: one part per line, "<type>:<json>\n".
package datastream

import (
	"encoding/json"
	"fmt"
	"io"

	"oldschool-site/internal/domain"
)

const (
	HeaderName    = "X-Vercel-AI-Data-Stream"
	HeaderVersion = "v1"
	ContentType   = "text/plain; charset=utf-8"
)

// Part type prefixes.
const (
	partText       = "0"
	partError      = "3"
	partStartStep  = "f"
	partFinishStep = "e"
	partFinish     = "d"
)

type startStep struct {
	MessageID string `json:"messageId"`
}

type finishStep struct {
	FinishReason string       `json:"finishReason"`
	Usage        domain.Usage `json:"usage"`
	IsContinued  bool         `json:"isContinued"`
}

type finishMessage struct {
	FinishReason string       `json:"finishReason"`
	Usage        domain.Usage `json:"usage"`
}

// Encoder is not safe for concurrent use.
type Encoder struct {
	w io.Writer
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

func (e *Encoder) Start(messageID string) error {
	return e.write(partStartStep, startStep{MessageID: messageID})
}

func (e *Encoder) Text(s string) error {
	return e.write(partText, s)
}

func (e *Encoder) Error(msg string) error {
	return e.write(partError, msg)
}

func (e *Encoder) FinishStep(reason string, usage domain.Usage) error {
	return e.write(partFinishStep, finishStep{FinishReason: normalizeReason(reason), Usage: usage})
}

func (e *Encoder) Finish(reason string, usage domain.Usage) error {
	return e.write(partFinish, finishMessage{FinishReason: normalizeReason(reason), Usage: usage})
}

func (e *Encoder) write(kind string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("datastream: marshal %s part: %w", kind, err)
	}
	buf := make([]byte, 0, len(kind)+len(raw)+2)
	buf = append(buf, kind...)
	buf = append(buf, ':')
	buf = append(buf, raw...)
	buf = append(buf, '\n')
	if _, err := e.w.Write(buf); err != nil {
		return fmt.Errorf("datastream: write %s part: %w", kind, err)
	}
	return nil
}

// normalizeReason maps provider finish reasons onto the client vocabulary.
func normalizeReason(reason string) string {
	switch reason {
	case "", "stop":
		return "stop"
	case "length":
		return "length"
	case "content_filter":
		return "content-filter"
	case "tool_calls", "function_call":
		return "tool-calls"
	case "error":
		return "error"
	}
	return "other"
}

package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a failure for retry decisions and for the message shown to
// the user.
type Kind string

const (
	KindTransientNetwork   Kind = "transient_network"
	KindRateLimited        Kind = "rate_limited"
	KindProviderOverloaded Kind = "provider_overloaded"
	KindInvalidCredential  Kind = "invalid_credential"
	KindMalformedResponse  Kind = "malformed_response"
	KindNoDataAvailable    Kind = "no_data_available"
	KindProviderRejected   Kind = "provider_rejected"
	KindCanceled           Kind = "canceled"
)

// Retryable reports whether the failure is transient and may succeed on a
// later attempt.
func (k Kind) Retryable() bool {
	switch k {
	case KindTransientNetwork, KindRateLimited, KindProviderOverloaded:
		return true
	}
	return false
}

// Error is a classified provider failure.
type Error struct {
	Kind     Kind
	Provider string
	Status   int    // HTTP status, 0 when no response was received
	Message  string // provider supplied message, if any
	Err      error
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Provider != "" {
		sb.WriteString(e.Provider)
		sb.WriteString(": ")
	}
	sb.WriteString(string(e.Kind))
	if e.Status != 0 {
		fmt.Fprintf(&sb, " (status %d)", e.Status)
	}
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UserMessage returns the message shown in the CLI and the HTTP API.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindTransientNetwork:
		return "ネットワークエラーが発生しました。接続を確認して再度お試しください。"
	case KindRateLimited:
		return "APIの利用制限に達しました。しばらく待ってから再度お試しください。"
	case KindProviderOverloaded:
		return "AIサーバーが混雑しています。しばらく待ってから再度お試しください。"
	case KindInvalidCredential:
		return "APIキーが無効です。設定を確認してください。"
	case KindMalformedResponse:
		return "AIからの応答を解析できませんでした。"
	case KindNoDataAvailable:
		return "レースデータまたはオッズデータが見つかりません。"
	case KindCanceled:
		return "分析がタイムアウトしたか、キャンセルされました。"
	case KindProviderRejected:
		if e.Message != "" {
			return "AIサーバーがリクエストを拒否しました: " + e.Message
		}
		return "AIサーバーがリクエストを拒否しました。"
	}
	return "分析中にエラーが発生しました。"
}

// KindOf returns the Kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// classifyStatus maps a non-2xx response to an *Error.
func classifyStatus(provider string, status int, body []byte) *Error {
	msg := errorMessage(body)
	e := &Error{Provider: provider, Status: status, Message: msg}

	switch {
	case status == http.StatusTooManyRequests:
		e.Kind = KindRateLimited
	case status == http.StatusServiceUnavailable:
		e.Kind = KindProviderOverloaded
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind = KindInvalidCredential
	case status == http.StatusBadRequest && strings.Contains(msg, "API key"):
		// Gemini reports a bad key as 400 INVALID_ARGUMENT.
		e.Kind = KindInvalidCredential
	default:
		e.Kind = KindProviderRejected
	}
	return e
}

// errorMessage extracts error.message from a provider error body, falling back
// to the start of the raw body.
func errorMessage(body []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

func malformed(provider string, format string, args ...interface{}) *Error {
	return &Error{Kind: KindMalformedResponse, Provider: provider, Message: fmt.Sprintf(format, args...)}
}

func transient(provider string, err error) *Error {
	return &Error{Kind: KindTransientNetwork, Provider: provider, Err: err}
}

package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/transcript-insight/internal/metrics"
)

// ErrorType categorizes a remote failure.
type ErrorType int

const (
	// ErrTypeUnknown indicates an unknown error occurred.
	ErrTypeUnknown ErrorType = iota
	// ErrTypeInvalidKey indicates the API key is invalid or revoked.
	ErrTypeInvalidKey
	// ErrTypeQuotaExceeded indicates the API quota has been exceeded.
	ErrTypeQuotaExceeded
	// ErrTypeNetworkError indicates a network connectivity or server issue.
	ErrTypeNetworkError
)

func (t ErrorType) String() string {
	switch t {
	case ErrTypeInvalidKey:
		return "invalid_key"
	case ErrTypeQuotaExceeded:
		return "quota"
	case ErrTypeNetworkError:
		return "network"
	default:
		return "unknown"
	}
}

// RemoteError is a classified failure from a remote model API.
type RemoteError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *RemoteError) Unwrap() error { return e.Err }

// httpStatus is implemented by errors that carry an HTTP status code.
type httpStatus interface {
	HTTPStatus() int
}

// Classify analyzes an error and returns a RemoteError with the appropriate
// type. It returns nil for a nil error.
func Classify(err error) *RemoteError {
	if err == nil {
		return nil
	}
	var already *RemoteError
	if errors.As(err, &already) {
		return already
	}

	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.Code, apiErr.Message, err)
	}
	var status httpStatus
	if errors.As(err, &status) {
		return classifyStatus(status.HTTPStatus(), "", err)
	}

	errLower := strings.ToLower(err.Error())
	switch {
	case containsAny(errLower, "api key not valid", "invalid api key", "api_key_invalid", "incorrect api key", "permission denied"):
		return &RemoteError{Type: ErrTypeInvalidKey, Message: "API key is invalid or has been revoked", Err: err}
	case containsAny(errLower, "quota", "resource exhausted", "rate limit"):
		return &RemoteError{Type: ErrTypeQuotaExceeded, Message: "API quota exceeded or rate limited", Err: err}
	case containsAny(errLower, "connection", "network", "timeout", "dial", "no such host", "unreachable"):
		return &RemoteError{Type: ErrTypeNetworkError, Message: "Network error - check your internet connection", Err: err}
	default:
		return &RemoteError{Type: ErrTypeUnknown, Message: "Remote call failed", Err: err}
	}
}

func classifyStatus(code int, message string, err error) *RemoteError {
	switch code {
	case 400:
		return &RemoteError{Type: ErrTypeInvalidKey, Message: "Bad request - API key may be malformed", Err: err}
	case 401, 403:
		return &RemoteError{Type: ErrTypeInvalidKey, Message: "API key is invalid, expired, or lacks permissions", Err: err}
	case 429:
		return &RemoteError{Type: ErrTypeQuotaExceeded, Message: "API rate limit exceeded - try again later", Err: err}
	case 500, 502, 503, 504:
		return &RemoteError{Type: ErrTypeNetworkError, Message: "API server error - try again later", Err: err}
	default:
		if message == "" {
			message = "Remote call failed"
		}
		return &RemoteError{Type: ErrTypeUnknown, Message: message, Err: err}
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ValidateAPIKey verifies a Gemini key with a minimal request, so a batch
// does not start against a key that cannot work.
func ValidateAPIKey(ctx context.Context, client *genai.Client, model string) error {
	log.Debug().Str("model", model).Msg("Validating API key with Gemini API")

	start := time.Now()
	_, err := client.Models.GenerateContent(ctx, model, genai.Text("hi"), nil)
	elapsed := time.Since(start)

	result := "success"
	var remote *RemoteError
	if err != nil {
		remote = Classify(err)
		result = remote.Type.String()
	}
	metrics.New(metrics.Namespace).
		Dimension("Result", result).
		Duration("ApiKeyValidationMs", elapsed).
		Count("ApiKeyValidationResult").
		Flush()

	if remote != nil {
		log.Error().Err(err).Str("type", result).Msg("API key validation failed")
		return remote
	}
	log.Info().Dur("duration", elapsed).Msg("API key validated successfully")
	return nil
}

package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
)

// Kind is the retry class of a model error.
type Kind int

const (
	// KindTransient errors are retried with backoff.
	KindTransient Kind = iota
	// KindAuth errors end the run.
	KindAuth
	// KindQuota errors end the run.
	KindQuota
	// KindModelMissing advances the model policy.
	KindModelMissing
	// KindRejected fails the current request without a retry.
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindQuota:
		return "quota"
	case KindModelMissing:
		return "model_missing"
	case KindRejected:
		return "rejected"
	}
	return "transient"
}

// Fatal reports whether errors of this kind abort the whole run.
func (k Kind) Fatal() bool {
	return k == KindAuth || k == KindQuota || k == KindModelMissing
}

var authPhrases = []string{
	"api key not valid",
	"api_key_invalid",
	"permission_denied",
	"unauthenticated",
}

// Classify sorts a generator error into a retry class. Errors it does not
// recognize are treated as transient.
func Classify(err error) Kind {
	if err == nil {
		return KindTransient
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return classifyStatus(statusErr.Code, statusErr.Status+" "+statusErr.Message)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrEmptyResponse) {
		return KindTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient
	}

	if hasAuthPhrase(err.Error()) {
		return KindAuth
	}
	return KindTransient
}

func classifyStatus(code int, text string) Kind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindAuth
	case code == http.StatusPaymentRequired:
		return KindQuota
	case code == http.StatusNotFound:
		return KindModelMissing
	case code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500:
		return KindTransient
	case code >= 400:
		// Gemini reports a bad key as 400 INVALID_ARGUMENT.
		if hasAuthPhrase(text) {
			return KindAuth
		}
		return KindRejected
	}
	return KindTransient
}

func hasAuthPhrase(s string) bool {
	s = strings.ToLower(s)
	for _, phrase := range authPhrases {
		if strings.Contains(s, phrase) {
			return true
		}
	}
	return false
}

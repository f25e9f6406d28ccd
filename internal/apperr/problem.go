package apperr

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/moogar0880/problems"
)

const contentTypeProblemJSON = "application/problem+json"

// problemTypeSlug returns the RFC 7807 "type" URI slug for a Kind.
var problemTypeSlug = map[Kind]string{
	KindBadRequest:         "bad-request",
	KindUnauthorized:       "unauthorized",
	KindForbidden:          "forbidden",
	KindNotFound:           "not-found",
	KindMethodNotAllowed:   "method-not-allowed",
	KindPayloadTooLarge:    "payload-too-large",
	KindTooManyRequests:    "rate-limit-exceeded",
	KindInternal:           "internal-error",
	KindNotImplemented:     "not-implemented",
	KindBadGateway:         "bad-gateway",
	KindServiceUnavailable: "service-unavailable",
	KindGatewayTimeout:     "gateway-timeout",
}

const problemTypeBase = "https://xyprissgo.dev/problems/"

// Problem is the RFC 7807 wire representation, embedding the library's
// DefaultProblem for the standard fields and adding a machine-readable
// Code plus request/trace correlation, mirroring the teacher's
// contract.Problem.
type Problem struct {
	*problems.DefaultProblem

	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
}

// ToProblem converts an *Error into its wire Problem, never leaking the
// wrapped cause for 5xx/operational kinds.
func ToProblem(err *Error, requestID, traceID string) *Problem {
	status := HTTPStatus(err.Kind)

	detail := err.Message
	if status >= 500 {
		detail = "An internal error occurred"
	}

	base := problems.NewDetailedProblem(status, detail)
	base.Type = problemTypeBase + problemTypeSlug[err.Kind]
	base.Title = http.StatusText(status)

	p := &Problem{
		DefaultProblem: base,
		Code:           err.Code,
		RequestID:      requestID,
		TraceID:        traceID,
	}
	return p
}

// WriteProblem serializes a Problem as application/problem+json, setting
// Retry-After when retryAfterSeconds is positive. It writes the status
// exactly once and never panics on encode failure — the status line is
// already committed by the time encoding could fail.
func WriteProblem(w http.ResponseWriter, p *Problem, retryAfterSeconds int) {
	if p == nil {
		p = &Problem{DefaultProblem: problems.NewStatusProblem(http.StatusInternalServerError)}
	}
	if p.Status == 0 {
		p.Status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", contentTypeProblemJSON)
	if retryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// WriteError is the convenience path from a raw error to the wire: it
// extracts an *Error via errors.As, falling back to an opaque internal
// error for anything else so unexpected error types never leak detail.
func WriteError(w http.ResponseWriter, err error, requestID, traceID string) {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = New("unknown", KindInternal, "INTERNAL_ERROR", "An internal error occurred")
	}
	p := ToProblem(appErr, requestID, traceID)
	WriteProblem(w, p, appErr.RetryAfterSeconds)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"originmint/internal/chain"
	"originmint/internal/session"
	"originmint/internal/storage"
)

// Kind 是业务错误分类
type Kind string

const (
	KindInvalidRequest  Kind = "invalid_request"
	KindUpstreamFailure Kind = "upstream_failure"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindChainFailure    Kind = "chain_failure"
	KindUserRejected    Kind = "user_rejected"
	KindTimeout         Kind = "timeout"
	KindConfiguration   Kind = "configuration_error"
	KindInternal        Kind = "internal"
)

var (
	ErrInvalidRequest  = errors.New("invalid request")
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrChainFailure    = errors.New("chain failure")
	ErrUserRejected    = errors.New("transaction rejected by signer")
	ErrTimeout         = errors.New("timeout")
	ErrConfiguration   = errors.New("configuration error")
	ErrInternal        = errors.New("internal error")
)

var kindSentinels = map[Kind]error{
	KindInvalidRequest:  ErrInvalidRequest,
	KindUpstreamFailure: ErrUpstreamFailure,
	KindNotFound:        ErrNotFound,
	KindConflict:        ErrConflict,
	KindChainFailure:    ErrChainFailure,
	KindUserRejected:    ErrUserRejected,
	KindTimeout:         ErrTimeout,
	KindConfiguration:   ErrConfiguration,
	KindInternal:        ErrInternal,
}

// Error 携带分类、操作名与上游状态码。errors.Is(err, ErrNotFound) 之类的判断通过 Is 方法匹配哨兵错误。
type Error struct {
	Kind   Kind
	Op     string
	Status int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil && e.Err.Error() != e.Detail {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && target == sentinel
}

// HTTPStatus 返回错误分类对应的 HTTP 状态码
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstreamFailure, KindChainFailure:
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindUserRejected, KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// KindOf 返回错误分类，非业务错误返回空串
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// AsError 取出 *Error，非业务错误时包装为 internal
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindInternal, Op: "unknown", Err: err}
}

func newError(kind Kind, op, detail string, err error) *Error {
	return &Error{Kind: kind, Op: op, Detail: detail, Err: err}
}

func invalidRequest(op, format string, args ...any) *Error {
	return newError(KindInvalidRequest, op, fmt.Sprintf(format, args...), nil)
}

func assetNotFound(op, filename string, err error) *Error {
	return newError(KindNotFound, op, fmt.Sprintf("asset %q not found", filename), err)
}

type upstreamStatusError interface {
	UpstreamStatus() int
}

// classify 把下游错误归入业务分类，无法识别时使用 fallback
func classify(op string, fallback Kind, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return existing
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return newError(KindTimeout, op, "deadline exceeded", err)
	case chain.IsUserRejected(err):
		return newError(KindUserRejected, op, "cancelled/rejected by signer", err)
	case errors.Is(err, chain.ErrSignerNotConfigured):
		return newError(KindConfiguration, op, "signing key not configured", err)
	case errors.Is(err, chain.ErrInvalidAddress),
		errors.Is(err, chain.ErrInvalidMintTx),
		errors.Is(err, chain.ErrSenderMismatch):
		return newError(KindInvalidRequest, op, "", err)
	case errors.Is(err, session.ErrClaimed):
		return newError(KindConflict, op, "another image from this batch is being published", err)
	case errors.Is(err, session.ErrNotFound), errors.Is(err, storage.ErrObjectNotFound):
		return newError(KindNotFound, op, "", err)
	}

	var upstream upstreamStatusError
	if errors.As(err, &upstream) {
		e := newError(KindUpstreamFailure, op, "", err)
		e.Status = upstream.UpstreamStatus()
		return e
	}
	return newError(fallback, op, "", err)
}

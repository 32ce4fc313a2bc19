package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"originmint/internal/service"
)

// 错误码定义
const (
	// 通用错误码
	ErrCodeInvalidRequest     = "ERR_INVALID_REQUEST"
	ErrCodeUnauthorized       = "ERR_UNAUTHORIZED"
	ErrCodeForbidden          = "ERR_FORBIDDEN"
	ErrCodeNotFound           = "ERR_NOT_FOUND"
	ErrCodeInternalError      = "ERR_INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "ERR_SERVICE_UNAVAILABLE"
	ErrCodeMissingField       = "ERR_MISSING_FIELD"

	// 业务错误码
	ErrCodeAssetNotFound    = "ERR_ASSET_NOT_FOUND"
	ErrCodeConflict         = "ERR_CONFLICT"
	ErrCodeGenerationFailed = "ERR_GENERATION_FAILED"
	ErrCodeUploadFailed     = "ERR_UPLOAD_FAILED"
	ErrCodeUpstreamFailure  = "ERR_UPSTREAM_FAILURE"
	ErrCodeChainFailure     = "ERR_CHAIN_FAILURE"
	ErrCodeUserRejected     = "ERR_USER_REJECTED"
	ErrCodeTimeout          = "ERR_TIMEOUT"
	ErrCodeNotConfigured    = "ERR_NOT_CONFIGURED"
)

// APIError 统一的 API 错误响应结构
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// LegacyError 兼容前端已有的 {error, detail} 字段
type LegacyError struct {
	APIError
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// ErrorResponse 返回统一格式的错误响应
func ErrorResponse(c *gin.Context, status int, code string, message string) {
	c.JSON(status, APIError{
		Code:    code,
		Message: message,
	})
}

// ErrorResponseWithDetails 返回带详情的错误响应
func ErrorResponseWithDetails(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, APIError{
		Code:    code,
		Message: message,
		Details: details,
	})
}

// LegacyErrorResponse 返回同时带 code/message 与 error/detail 的错误
func LegacyErrorResponse(c *gin.Context, status int, code, message, detail string) {
	c.JSON(status, LegacyError{
		APIError: APIError{Code: code, Message: message},
		Error:    message,
		Detail:   detail,
	})
}

// BadRequest 400 错误请求
func BadRequest(c *gin.Context, code string, message string) {
	ErrorResponse(c, http.StatusBadRequest, code, message)
}

// Forbidden 403 禁止访问
func Forbidden(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusForbidden, ErrCodeForbidden, message)
}

// NotFound 404 资源不存在
func NotFound(c *gin.Context, code string, message string) {
	ErrorResponse(c, http.StatusNotFound, code, message)
}

// InternalError 500 服务器内部错误
func InternalError(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusInternalServerError, ErrCodeInternalError, message)
}

// ServiceUnavailable 503 服务不可用
func ServiceUnavailable(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, message)
}

// MissingField 缺少必填字段
func MissingField(c *gin.Context, field string) {
	ErrorResponseWithDetails(c, http.StatusBadRequest, ErrCodeMissingField, field+" is required", gin.H{"field": field})
}

// InvalidPayload 无效的请求体
func InvalidPayload(c *gin.Context) {
	ErrorResponse(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request payload")
}

// errorCode 把业务错误分类映射为错误码
func errorCode(kind service.Kind) string {
	switch kind {
	case service.KindInvalidRequest:
		return ErrCodeInvalidRequest
	case service.KindNotFound:
		return ErrCodeAssetNotFound
	case service.KindConflict:
		return ErrCodeConflict
	case service.KindUpstreamFailure:
		return ErrCodeUpstreamFailure
	case service.KindChainFailure:
		return ErrCodeChainFailure
	case service.KindUserRejected:
		return ErrCodeUserRejected
	case service.KindTimeout:
		return ErrCodeTimeout
	case service.KindConfiguration:
		return ErrCodeNotConfigured
	default:
		return ErrCodeInternalError
	}
}

// ServiceError 按错误分类返回细粒度状态码，details 中带上游状态码
func ServiceError(c *gin.Context, err error) {
	e := service.AsError(err)
	var details any
	if e.Status != 0 {
		details = gin.H{"upstream_status": e.Status}
	}
	ErrorResponseWithDetails(c, e.HTTPStatus(), errorCode(e.Kind), e.Error(), details)
}

// legacyStatus 旧接口只区分 400/404/500，同批正在发布按不存在处理
func legacyStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrConflict):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

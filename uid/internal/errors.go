package internal

import (
	"errors"
	"fmt"
)

// ErrorCode 错误码定义
type ErrorCode string

const (
	// ErrCodeFatalConfig 计数行缺失或 step 非正，重试无意义
	ErrCodeFatalConfig ErrorCode = "FATAL_CONFIG"
	// ErrCodeStoreAccess 存储不可达或查询失败，已发出的 ID 不受影响
	ErrCodeStoreAccess ErrorCode = "STORE_ACCESS"
	// ErrCodeOverflow value + step 超出 int64 上界
	ErrCodeOverflow ErrorCode = "OVERFLOW"
	// ErrCodeClosed 组件已关闭
	ErrCodeClosed ErrorCode = "CLOSED"
	// ErrCodeValidation 配置校验失败
	ErrCodeValidation ErrorCode = "VALIDATION"
)

// Error uid 组件错误类型
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Cause   error     `json:"cause,omitempty"`
}

// Error 实现 error 接口
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 支持 errors.Is / errors.As 穿透
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError 创建 uid 错误
func NewError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// HasCode 判断错误链中是否存在指定错误码
func HasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

package uid

import "github.com/ceyewan/pkseq/uid/internal"

// Error uid 组件错误类型，Code 标识错误类别，Cause 为底层错误
type Error = internal.Error

// ErrorCode 错误码
type ErrorCode = internal.ErrorCode

// 错误码
const (
	ErrCodeFatalConfig = internal.ErrCodeFatalConfig
	ErrCodeStoreAccess = internal.ErrCodeStoreAccess
	ErrCodeOverflow    = internal.ErrCodeOverflow
	ErrCodeClosed      = internal.ErrCodeClosed
	ErrCodeValidation  = internal.ErrCodeValidation
)

// HasCode 判断错误链中是否存在指定错误码
func HasCode(err error, code ErrorCode) bool {
	return internal.HasCode(err, code)
}

// IsFatalConfig 计数行缺失或 step 非正，重试无意义
func IsFatalConfig(err error) bool {
	return internal.HasCode(err, ErrCodeFatalConfig)
}

// IsStoreAccess 存储访问失败，可稍后重试
func IsStoreAccess(err error) bool {
	return internal.HasCode(err, ErrCodeStoreAccess)
}

// IsClosed 组件已关闭
func IsClosed(err error) bool {
	return internal.HasCode(err, ErrCodeClosed)
}

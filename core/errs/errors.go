// Package errs 定义业务错误类别，HTTP 层据此选择状态码。
package errs

import "errors"

var (
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)

// Error 携带面向调用方的消息，Kind 为上面的哨兵错误之一
type Error struct {
	Kind    error
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func Validation(msg string) error {
	return &Error{Kind: ErrValidation, Message: msg}
}

// ValidationFields 带字段级错误的校验失败
func ValidationFields(msg string, fields map[string]string) error {
	return &Error{Kind: ErrValidation, Message: msg, Fields: fields}
}

func Unauthorized(msg string) error {
	return &Error{Kind: ErrUnauthorized, Message: msg}
}

func Forbidden(msg string) error {
	return &Error{Kind: ErrForbidden, Message: msg}
}

func NotFound(msg string) error {
	return &Error{Kind: ErrNotFound, Message: msg}
}

func Conflict(msg string) error {
	return &Error{Kind: ErrConflict, Message: msg}
}

// Message 返回可以直接展示给客户端的消息，非业务错误返回空串
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ""
}

// Fields 返回字段级校验错误
func Fields(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}

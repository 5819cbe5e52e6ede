package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"StudySync/core/errs"
	"StudySync/logger"
)

const maxJSONBody = 1 << 20

// errorResponse 统一错误响应
type errorResponse struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// messageResponse 只包含提示信息的响应
type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("写入响应失败", logger.ErrorField(err))
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

// statusFor 业务错误到 HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrValidation), errors.Is(err, errs.ErrConflict):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, errs.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := errs.Message(err)
	if status == http.StatusInternalServerError {
		logger.Error("请求处理失败",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.ErrorField(err))
		msg = err.Error()
	}
	if msg == "" {
		msg = "Server error"
	}
	writeJSON(w, status, errorResponse{Message: msg, Errors: errs.Fields(err)})
}

// decodeJSON 解析请求体，空请求体视为空对象
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errs.Validation("Invalid request body")
	}
	return nil
}

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrStaleResponse 表示响应返回时会话已经变化，结果不再属于当前用户
var ErrStaleResponse = errors.New("response belongs to a previous session")

type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// AuthError 对应 401，会话已经由网关清除
type AuthError struct {
	Method  string
	Path    string
	Payload []byte
	Message string
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: unauthorized: %s", e.Method, e.Path, e.Message)
	}
	return fmt.Sprintf("%s %s: unauthorized", e.Method, e.Path)
}

type ServerError struct {
	Method  string
	Path    string
	Status  int
	Payload []byte
	Message string
}

func (e *ServerError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, msg)
}

// IsStatus 判断 err 是否是指定状态码的 ServerError
func IsStatus(err error, status int) bool {
	var se *ServerError
	return errors.As(err, &se) && se.Status == status
}

// errorMessage 从 {"error": "..."} 或 {"message": "..."} 中取出错误信息
func errorMessage(payload []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return strings.TrimSpace(string(payload))
	}
	if body.Error != "" {
		return body.Error
	}
	return body.Message
}

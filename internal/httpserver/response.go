package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lk2023060901/danmu-online-go/internal/json"
	"github.com/lk2023060901/danmu-online-go/pkg/log"
)

const (
	CodeSuccess = 0
	CodeFailure = -1

	contentTypeJSON = "application/json; charset=utf-8"
)

// Response 为所有 /api/online 接口统一的响应结构。
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type countData struct {
	OnlineCount int   `json:"online_count"`
	Timestamp   int64 `json:"timestamp"`
}

type loginData struct {
	SessionID   string `json:"session_id"`
	OnlineCount int    `json:"online_count"`
}

type heartbeatData struct {
	OnlineCount int `json:"online_count"`
}

type usersData struct {
	Users []string `json:"users"`
	Count int      `json:"count"`
}

type validateData struct {
	Valid       bool `json:"valid"`
	OnlineCount int  `json:"online_count"`
}

type healthData struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
	Reason    string `json:"reason,omitempty"`
}

func success(message string, data any) Response {
	return Response{Code: CodeSuccess, Message: message, Data: data}
}

func failure(message string) Response {
	return Response{Code: CodeFailure, Message: message}
}

func writeJSON(c *gin.Context, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Ctx(c.Request.Context()).Error("encode response failed", zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(status, contentTypeJSON, data)
}

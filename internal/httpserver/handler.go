package httpserver

import (
	"io"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lk2023060901/danmu-online-go/internal/json"
	"github.com/lk2023060901/danmu-online-go/pkg/log"
	"github.com/lk2023060901/danmu-online-go/pkg/util/merr"
	"github.com/lk2023060901/danmu-online-go/pkg/util/typeutil"
)

// maxBodyBytes 为请求体的最大长度。
const maxBodyBytes = 64 << 10

type loginRequest struct {
	UserID string `json:"user_id"`
}

type sessionRequest struct {
	SessionID string `json:"session_id"`
}

// decodeBody 解析请求体，格式错误返回 merr.ErrIncorrectParameterFormat。
func decodeBody(c *gin.Context, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		return merr.WrapErrIncorrectParameterFormat(err.Error(), "read request body")
	}
	if len(body) == 0 {
		return merr.WrapErrIncorrectParameterFormat("empty request body")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return merr.WrapErrIncorrectParameterFormat(err.Error(), "decode request body")
	}
	return nil
}

func decodeSessionID(c *gin.Context) (string, error) {
	var req sessionRequest
	if err := decodeBody(c, &req); err != nil {
		return "", err
	}
	if req.SessionID == "" {
		return "", merr.WrapErrParameterMissing("session_id")
	}
	return req.SessionID, nil
}

// badRequest 以 400 响应参数错误。
func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	writeJSON(c, http.StatusBadRequest, failure("invalid request: "+merr.Message(err)))
}

// failureStatus 将注册表返回的非输入类错误映射为 HTTP 状态码。
// 可重试或已停止的错误为 503，其余为 500。
func failureStatus(err error) int {
	if merr.IsRetryableErr(err) || errors.Is(err, merr.ErrServiceStopped) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) count(c *gin.Context) {
	writeJSON(c, http.StatusOK, success("success", countData{
		OnlineCount: s.registry.OnlineCount(),
		Timestamp:   s.nowMillis(),
	}))
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := decodeBody(c, &req); err != nil {
		badRequest(c, err)
		return
	}
	if req.UserID == "" {
		badRequest(c, merr.WrapErrParameterMissing("user_id"))
		return
	}

	sessionID, err := s.registry.Login(req.UserID)
	if err != nil {
		if merr.IsInputError(err) {
			badRequest(c, err)
			return
		}
		_ = c.Error(err)
		log.Ctx(c.Request.Context()).Warn("login failed",
			log.FieldUserID(req.UserID),
			zap.Int32("errorCode", merr.Code(err)),
			zap.Error(err))
		writeJSON(c, failureStatus(err), failure(merr.Message(err)))
		return
	}
	writeJSON(c, http.StatusOK, success("login success", loginData{
		SessionID:   sessionID,
		OnlineCount: s.registry.OnlineCount(),
	}))
}

func (s *Server) heartbeat(c *gin.Context) {
	sessionID, err := decodeSessionID(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	data := heartbeatData{}
	if !s.registry.Heartbeat(sessionID) {
		data.OnlineCount = s.registry.OnlineCount()
		log.Ctx(c.Request.Context()).
			WithRateGroup("httpserver.heartbeat.rejected", 1, 60).
			RatedWarn(1, "heartbeat rejected",
			zap.Error(merr.WrapErrSessionNotFound(sessionID)))
		resp := failure("invalid session")
		resp.Data = data
		writeJSON(c, http.StatusOK, resp)
		return
	}
	data.OnlineCount = s.registry.OnlineCount()
	writeJSON(c, http.StatusOK, success("heartbeat success", data))
}

func (s *Server) logout(c *gin.Context) {
	sessionID, err := decodeSessionID(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	s.registry.Logout(sessionID)
	writeJSON(c, http.StatusOK, success("logout success", nil))
}

func (s *Server) users(c *gin.Context) {
	users := typeutil.SortedCollect(s.registry.OnlineUsers())
	writeJSON(c, http.StatusOK, success("success", usersData{
		Users: users,
		Count: len(users),
	}))
}

func (s *Server) validate(c *gin.Context) {
	sessionID, err := decodeSessionID(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	data := validateData{
		Valid:       s.registry.IsValidSession(sessionID),
		OnlineCount: s.registry.OnlineCount(),
	}
	if !data.Valid {
		resp := failure("invalid session")
		resp.Data = data
		writeJSON(c, http.StatusOK, resp)
		return
	}
	writeJSON(c, http.StatusOK, success("success", data))
}

func (s *Server) health(c *gin.Context) {
	if s.opts.ready != nil && !s.opts.ready() {
		err := merr.WrapErrServiceNotReady("not serving")
		_ = c.Error(err)
		writeJSON(c, http.StatusServiceUnavailable, healthData{
			Status:    "unavailable",
			Timestamp: s.nowMillis(),
			Reason:    merr.Message(err),
		})
		return
	}
	writeJSON(c, http.StatusOK, healthData{
		Status:    "healthy",
		Timestamp: s.nowMillis(),
	})
}

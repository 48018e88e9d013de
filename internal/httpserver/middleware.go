package httpserver

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lk2023060901/danmu-online-go/pkg/log"
	"github.com/lk2023060901/danmu-online-go/pkg/metrics"
	"github.com/lk2023060901/danmu-online-go/pkg/util/merr"
)

var (
	allowMethods = strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodOptions}, ", ")
	allowHeaders = "Content-Type"
)

// cors 为所有响应附加跨域头，OPTIONS 预检请求直接以 204 返回。
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", allowMethods)
		h.Set("Access-Control-Allow-Headers", allowHeaders)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// requestMetrics 按路由模板统计请求耗时，未命中的路由统一记为 unmatched。
func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// recovery 捕获 handler 中的 panic，记录日志后以 500 响应。
func recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			p := recover()
			if p == nil {
				return
			}
			err := merr.WrapErrServiceInternal(errorFromPanic(p).Error(), "handler panicked")
			log.Ctx(c.Request.Context()).Error("http handler panicked",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
				zap.Stack("stack"))
			_ = c.Error(err)
			if !c.Writer.Written() {
				writeJSON(c, http.StatusInternalServerError, failure(merr.Message(err)))
			}
			c.Abort()
		}()
		c.Next()
	}
}

// errorFromPanic 将 recover 得到的值转换为 error。
func errorFromPanic(p any) error {
	if err, ok := p.(error); ok {
		return errors.WithStack(err)
	}
	return errors.Newf("%v", p)
}

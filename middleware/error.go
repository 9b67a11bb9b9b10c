package middleware

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/BerniceZTT/crm_stats/utils"
)

// StatusClientClosed 客户端在响应前断开连接
const StatusClientClosed = 499

// ErrorHandler 渲染处理函数通过 c.Error 上报的最后一个错误，已写出响应时不再处理
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		if errors.Is(err, context.Canceled) && c.Request.Context().Err() != nil {
			utils.Logger.Info().
				Str("path", c.Request.URL.Path).
				Str("requestId", c.GetString("requestId")).
				Msg("客户端已断开，放弃响应")
			c.AbortWithStatus(StatusClientClosed)
			return
		}
		utils.HandleError(c, err)
	}
}

package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BerniceZTT/crm_stats/controllers"
	"github.com/BerniceZTT/crm_stats/utils"
)

// HealthCheck 依赖健康检查，返回 nil 表示正常
type HealthCheck func(ctx context.Context) error

// Deps 路由依赖
type Deps struct {
	Stats  *controllers.StatsController
	Health map[string]HealthCheck
}

// RegisterRoutes 注册所有路由
func RegisterRoutes(router *gin.Engine, deps Deps) {
	RegisterStatsRoutes(router, deps.Stats)

	// 健康检查路由
	router.GET("/api/health", healthHandler(deps.Health))

	// 监控指标
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.NoRoute(func(c *gin.Context) {
		utils.HandleError(c, utils.CreateNotFoundError("接口"))
	})
}

func healthHandler(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := "ok"
		deps := gin.H{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				// 依赖不可用时统计接口仍可降级返回
				status = "degraded"
				deps[name] = err.Error()
				continue
			}
			deps[name] = "ok"
		}
		c.JSON(http.StatusOK, gin.H{"status": status, "deps": deps})
	}
}

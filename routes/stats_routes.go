package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/BerniceZTT/crm_stats/controllers"
	"github.com/BerniceZTT/crm_stats/middleware"
	"github.com/BerniceZTT/crm_stats/utils"
)

// RegisterStatsRoutes 注册数据看板相关路由
func RegisterStatsRoutes(router *gin.Engine, stats *controllers.StatsController) {
	statsRoutes := router.Group("/api/stats")
	statsRoutes.Use(middleware.AuthMiddleware())

	statsRoutes.GET("", middleware.PermissionMiddleware(utils.ResourceStats, utils.ActionRead), stats.GetStats)
	statsRoutes.POST("/advice/dismiss", middleware.PermissionMiddleware(utils.ResourceStats, utils.ActionDismiss), stats.DismissAdvice)
}

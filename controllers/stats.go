package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/BerniceZTT/crm_stats/models"
	"github.com/BerniceZTT/crm_stats/service"
	"github.com/BerniceZTT/crm_stats/utils"
)

// StatsAPI 数据看板服务
type StatsAPI interface {
	GetStatsPayload(ctx context.Context, userID string, req models.RangeRequest) (*models.StatsPayload, error)
	DismissAdvice(ctx context.Context, userID, key string, expiresAt *time.Time) error
}

// StatsController 数据看板接口
type StatsController struct {
	stats StatsAPI
}

// NewStatsController 创建数据看板接口
func NewStatsController(stats StatsAPI) *StatsController {
	return &StatsController{stats: stats}
}

// GetStats 获取数据看板
// GET /api/stats?period=&from=&to=&userId=
func (sc *StatsController) GetStats(c *gin.Context) {
	user, err := utils.GetUser(c)
	if err != nil {
		_ = c.Error(utils.CreateUnauthorizedError())
		return
	}

	var req models.RangeRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		_ = c.Error(utils.CreateBadRequestError("无效的查询参数: "+err.Error()))
		return
	}

	// 只有管理员可以查看其他用户
	targetID := user.ID
	if other := strings.TrimSpace(c.Query("userId")); other != "" && other != user.ID {
		if !utils.HasPermission(models.UserRole(user.Role), utils.ResourceStatsAll, utils.ActionRead) {
			_ = c.Error(utils.CreateForbiddenError())
			return
		}
		targetID = other
	}

	utils.LogInfo(map[string]interface{}{
		"username": user.Username,
		"target":   targetID,
		"period":   req.Period,
		"from":     req.From,
		"to":       req.To,
	}, "获取数据看板")

	payload, err := sc.stats.GetStatsPayload(c.Request.Context(), targetID, req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidUser) {
			_ = c.Error(utils.CreateBadRequestError(err.Error()))
			return
		}
		_ = c.Error(err)
		return
	}

	if len(payload.Degraded) > 0 {
		c.Header("X-Stats-Degraded", strings.Join(payload.Degraded, ","))
	}
	utils.SuccessResponse(c, payload, "")
}

// DismissAdvice 忽略一条建议
// POST /api/stats/advice/dismiss
func (sc *StatsController) DismissAdvice(c *gin.Context) {
	user, err := utils.GetUser(c)
	if err != nil {
		_ = c.Error(utils.CreateUnauthorizedError())
		return
	}

	var req models.DismissRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(utils.CreateBadRequestError("无效的请求数据: "+err.Error()))
		return
	}

	err = sc.stats.DismissAdvice(c.Request.Context(), user.ID, req.Key, req.ExpiresAt)
	switch {
	case errors.Is(err, service.ErrInvalidAdviceKey), errors.Is(err, service.ErrInvalidUser):
		_ = c.Error(utils.CreateBadRequestError(err.Error()))
		return
	case err != nil:
		_ = c.Error(err)
		return
	}

	utils.SuccessResponse(c, gin.H{"key": req.Key, "expiresAt": req.ExpiresAt}, "建议已忽略", http.StatusOK)
}

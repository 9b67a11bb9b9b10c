package utils

import (
	"fmt"
	"sync"
	"time"

	"github.com/BerniceZTT/crm_stats/models"

	"github.com/dgrijalva/jwt-go"
)

// 权限资源与操作
const (
	ResourceStats    = "stats"
	ResourceStatsAll = "stats_all"
	ActionRead       = "read"
	ActionDismiss    = "dismiss"
)

var (
	jwtMu     sync.RWMutex
	jwtSecret = []byte("your-secret-key")
)

// SetJWTSecret 设置签名密钥，启动时调用一次
func SetJWTSecret(secret string) {
	jwtMu.Lock()
	defer jwtMu.Unlock()
	jwtSecret = []byte(secret)
}

func secret() []byte {
	jwtMu.RLock()
	defer jwtMu.RUnlock()
	return jwtSecret
}

// GenerateToken 生成JWT令牌
func GenerateToken(user LoginUser, ttl time.Duration) (string, error) {
	if user.ID == "" {
		return "", fmt.Errorf("用户ID为空")
	}
	if ttl <= 0 {
		ttl = time.Hour * 24 * 30 // 30天有效期
	}

	claims := jwt.MapClaims{
		"id":       user.ID,
		"username": user.Username,
		"role":     user.Role,
		"exp":      time.Now().Add(ttl).Unix(),
		"iat":      time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(secret())
	if err != nil {
		Logger.Error().Err(err).Msg("生成token失败")
		return "", err
	}
	return tokenString, nil
}

// ParseToken 解析和验证JWT令牌
func ParseToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// 验证签名方法
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret(), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("无效的token")
}

// HasPermission 检查用户是否有权限
func HasPermission(role models.UserRole, resource string, action string) bool {
	// 超级管理员拥有所有权限
	if role == models.UserRoleSUPER_ADMIN {
		return true
	}

	own := map[string][]string{
		ResourceStats: {ActionRead, ActionDismiss},
	}
	permissions := map[models.UserRole]map[string][]string{
		models.UserRoleFACTORY_SALES:     own,
		models.UserRoleAGENT:             own,
		models.UserRoleINVENTORY_MANAGER: own,
	}

	if resourceActions, exists := permissions[role]; exists {
		if actions, hasResource := resourceActions[resource]; hasResource {
			for _, a := range actions {
				if a == action {
					return true
				}
			}
		}
	}

	return false
}

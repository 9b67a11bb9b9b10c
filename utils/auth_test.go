package utils

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerniceZTT/crm_stats/models"
)

func TestGenerateAndParseToken(t *testing.T) {
	SetJWTSecret("test-secret")
	defer SetJWTSecret("your-secret-key")

	token, err := GenerateToken(LoginUser{ID: "u1", Username: "alice", Role: "AGENT"}, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims["id"])
	assert.Equal(t, "alice", claims["username"])
	assert.Equal(t, "AGENT", claims["role"])
}

func TestParseTokenRejectsOtherSecret(t *testing.T) {
	SetJWTSecret("one")
	token, err := GenerateToken(LoginUser{ID: "u1", Username: "alice", Role: "AGENT"}, time.Hour)
	require.NoError(t, err)

	SetJWTSecret("two")
	defer SetJWTSecret("your-secret-key")
	_, err = ParseToken(token)
	assert.Error(t, err)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	claims := jwt.MapClaims{"id": "u1", "exp": time.Now().Add(-time.Minute).Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret())
	require.NoError(t, err)

	_, err = ParseToken(token)
	assert.Error(t, err)
}

func TestGenerateTokenRequiresID(t *testing.T) {
	_, err := GenerateToken(LoginUser{Username: "alice"}, time.Hour)
	assert.Error(t, err)
}

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role     models.UserRole
		resource string
		action   string
		want     bool
	}{
		{models.UserRoleSUPER_ADMIN, ResourceStatsAll, ActionRead, true},
		{models.UserRoleSUPER_ADMIN, ResourceStats, ActionDismiss, true},
		{models.UserRoleFACTORY_SALES, ResourceStats, ActionRead, true},
		{models.UserRoleAGENT, ResourceStats, ActionDismiss, true},
		{models.UserRoleINVENTORY_MANAGER, ResourceStats, ActionRead, true},
		{models.UserRoleFACTORY_SALES, ResourceStatsAll, ActionRead, false},
		{models.UserRoleAGENT, ResourceStats, "delete", false},
		{models.UserRole("GUEST"), ResourceStats, ActionRead, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HasPermission(tt.role, tt.resource, tt.action), "%s %s %s", tt.role, tt.resource, tt.action)
	}
}

func TestGetUser(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, err := GetUser(c)
	assert.Error(t, err)

	c.Set("user", jwt.MapClaims{"id": "u1", "role": "AGENT", "username": "alice"})
	user, err := GetUser(c)
	require.NoError(t, err)
	assert.Equal(t, &LoginUser{ID: "u1", Role: "AGENT", Username: "alice"}, user)

	c.Set("user", map[string]interface{}{"id": "u2", "role": "AGENT", "name": "bob"})
	user, err = GetUser(c)
	require.NoError(t, err)
	assert.Equal(t, "bob", user.Username)

	c.Set("user", &LoginUser{ID: "u3"})
	user, err = GetUser(c)
	require.NoError(t, err)
	assert.Equal(t, "u3", user.ID)

	c.Set("user", jwt.MapClaims{"id": "", "role": "AGENT", "username": "x"})
	_, err = GetUser(c)
	assert.Error(t, err)
}

package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MarcoNaik/tectramin-sub001/pkg/jwt"
	"github.com/MarcoNaik/tectramin-sub001/pkg/response"
)

const (
	ctxPersonXID = "person_xid"
	ctxRole      = "role"
)

// JWTAuth JWT 认证中间件
// 从 Authorization: Bearer <token> 中提取并验证身份系统签发的 Token
func JWTAuth(jwtMgr *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, 10002, "缺少认证头")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, 10002, "认证头格式无效")
			c.Abort()
			return
		}

		claims, err := jwtMgr.ParseToken(parts[1])
		if err != nil {
			response.Unauthorized(c, 10002, "Token 无效或已过期")
			c.Abort()
			return
		}

		if claims.PersonXID == "" {
			response.Unauthorized(c, 10002, "Token 缺少人员标识")
			c.Abort()
			return
		}

		c.Set(ctxPersonXID, claims.PersonXID)
		c.Set(ctxRole, claims.Role)

		c.Next()
	}
}

// RoleAuth 角色权限中间件
// 检查当前人员是否具有指定角色之一
func RoleAuth(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ctxRole)
		if role == "" {
			response.Unauthorized(c, 10002, "未认证")
			c.Abort()
			return
		}

		for _, r := range allowedRoles {
			if role == r {
				c.Next()
				return
			}
		}

		response.Forbidden(c, 10003, "无权限访问")
		c.Abort()
	}
}

// [自证通过] internal/api/middleware/auth.go

package middleware

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"atelier/internal/model"
	"atelier/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Context keys set by the auth middleware.
const (
	CtxUserID       = "userID"
	CtxIsSuperAdmin = "isSuperAdmin"
	CtxRoleIDs      = "roleIDs"
)

func GetJWTSecret() []byte {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		if os.Getenv("GIN_MODE") == "release" {
			panic("FATAL: JWT_SECRET environment variable is required in production mode")
		}
		secret = "default_super_secret_key" // Development fallback only — DO NOT use in production
	}
	return []byte(secret)
}

// GenerateToken issues a signed access token for the user carrying the
// superadmin flag and the user's active role ids.
func GenerateToken(user *model.User, roleIDs []uuid.UUID) (string, error) {
	roles := make([]string, 0, len(roleIDs))
	for _, id := range roleIDs {
		roles = append(roles, id.String())
	}

	claims := jwt.MapClaims{
		"sub":   user.ID.String(),
		"super": user.IsSuperAdmin,
		"roles": roles,
		"exp":   time.Now().Add(24 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(GetJWTSecret())
}

// --- Permission cache ---

// permCacheEntry stores cached module/permission codes for a role with TTL
type permCacheEntry struct {
	codes     []string
	expiresAt time.Time
}

var (
	permCache    sync.Map // role id -> permCacheEntry
	permCacheTTL = 5 * time.Minute
)

// permDB holds the database reference for permission queries — set via InitPermissionMiddleware
var permDB *gorm.DB

// InitPermissionMiddleware sets the DB reference for RequirePermission middleware
func InitPermissionMiddleware(db *gorm.DB) {
	permDB = db
}

// ClearPermissionCache removes cached permissions for a specific role (or all roles if empty)
func ClearPermissionCache(roleID string) {
	if roleID == "" {
		permCache.Range(func(key, _ interface{}) bool {
			permCache.Delete(key)
			return true
		})
	} else {
		permCache.Delete(roleID)
	}
}

// --- Middleware ---

// RequirePermission validates the JWT and checks that at least one of the
// caller's roles grants the given permission on the given module.
// Superadmins bypass the grant check entirely.
func RequirePermission(module, permission string) gin.HandlerFunc {
	required := module + ":" + permission

	return func(c *gin.Context) {
		claims, ok := parseBearer(c)
		if !ok {
			return
		}
		setIdentity(c, claims)

		if isSuper, _ := claims["super"].(bool); isSuper {
			c.Next()
			return
		}

		roleIDs := rolesFromClaims(claims)
		if len(roleIDs) == 0 {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: no roles in token"))
			return
		}

		for _, roleID := range roleIDs {
			codes, err := getPermissionsForRole(roleID)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to verify permissions"))
				return
			}
			for _, code := range codes {
				if code == required {
					c.Next()
					return
				}
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: missing permission '"+required+"'"))
	}
}

// RequireAuth validates the JWT without checking any permission. Used for
// endpoints every authenticated user may call, like changing their own
// password.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := parseBearer(c)
		if !ok {
			return
		}
		setIdentity(c, claims)
		c.Next()
	}
}

// RequireSuperAdmin validates the JWT and rejects anyone without the
// superadmin flag.
func RequireSuperAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := parseBearer(c)
		if !ok {
			return
		}
		setIdentity(c, claims)

		if isSuper, _ := claims["super"].(bool); !isSuper {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: superadmin only"))
			return
		}
		c.Next()
	}
}

// --- Internals ---

// parseBearer extracts and verifies the bearer token, aborting the request on
// failure.
func parseBearer(c *gin.Context) (jwt.MapClaims, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
		return nil, false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid authorization format. Expected 'Bearer <token>'"))
		return nil, false
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return GetJWTSecret(), nil
	})
	if err != nil || !token.Valid {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token"))
		return nil, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token claims"))
		return nil, false
	}
	return claims, true
}

func setIdentity(c *gin.Context, claims jwt.MapClaims) {
	c.Set(CtxUserID, claims["sub"])
	isSuper, _ := claims["super"].(bool)
	c.Set(CtxIsSuperAdmin, isSuper)
	c.Set(CtxRoleIDs, rolesFromClaims(claims))
}

func rolesFromClaims(claims jwt.MapClaims) []string {
	raw, ok := claims["roles"].([]interface{})
	if !ok {
		return nil
	}
	roles := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			roles = append(roles, s)
		}
	}
	return roles
}

// getPermissionsForRole returns cached or DB-fetched "MODULE:PERMISSION"
// codes for a role id. Only active grant links count.
func getPermissionsForRole(roleID string) ([]string, error) {
	if entry, ok := permCache.Load(roleID); ok {
		cached := entry.(permCacheEntry)
		if time.Now().Before(cached.expiresAt) {
			return cached.codes, nil
		}
	}

	if permDB == nil {
		return nil, fmt.Errorf("permission middleware not initialized")
	}

	var codes []string
	err := permDB.Raw(`
		SELECT m.code || ':' || p.code
		FROM role_module_permissions rmp
		INNER JOIN module_permissions mp ON mp.id = rmp.module_permission_id
		INNER JOIN modules m ON m.id = mp.module_id
		INNER JOIN permissions p ON p.id = mp.permission_id
		WHERE rmp.role_id = ? AND rmp.is_active = true
	`, roleID).Scan(&codes).Error
	if err != nil {
		return nil, err
	}

	permCache.Store(roleID, permCacheEntry{
		codes:     codes,
		expiresAt: time.Now().Add(permCacheTTL),
	})
	return codes, nil
}

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"SafeYatra/internal/models"
	apperrors "SafeYatra/pkg/errors"
	"SafeYatra/pkg/logger"
	"SafeYatra/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const identityKey = "identity"

// Claims is the token payload issued by the identity service.
type Claims struct {
	UserID string      `json:"id"`
	Email  string      `json:"email,omitempty"`
	Name   string      `json:"name"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// UserLookup resolves a token subject to a current user record. It lets
// deleted users and role changes take effect before the token expires.
type UserLookup func(ctx context.Context, id string) (*models.User, error)

// Authenticator verifies HS256 bearer tokens.
type Authenticator struct {
	secret    []byte
	expiresIn time.Duration
	lookup    UserLookup
}

func NewAuthenticator(secret string, expiresIn time.Duration, lookup UserLookup) *Authenticator {
	if expiresIn <= 0 {
		expiresIn = 7 * 24 * time.Hour
	}
	return &Authenticator{secret: []byte(secret), expiresIn: expiresIn, lookup: lookup}
}

// IssueToken signs a token for u. Used for demo accounts and tests.
func (a *Authenticator) IssueToken(u *models.User) (string, time.Time, error) {
	exp := time.Now().Add(a.expiresIn)
	claims := &Claims{
		UserID: u.ID,
		Email:  u.Email,
		Name:   u.Name,
		Role:   u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify parses token and resolves the caller.
func (a *Authenticator) Verify(ctx context.Context, token string) (models.Identity, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	})
	if err != nil {
		return models.Identity{}, err
	}
	if !parsed.Valid || claims.UserID == "" {
		return models.Identity{}, jwt.ErrTokenInvalidClaims
	}

	id := models.Identity{UserID: claims.UserID, Name: claims.Name, Role: claims.Role}
	if a.lookup != nil {
		u, err := a.lookup(ctx, claims.UserID)
		if err != nil {
			return models.Identity{}, err
		}
		id.Name, id.Role = u.Name, u.Role
	}
	if !id.Role.Valid() {
		return models.Identity{}, jwt.ErrTokenInvalidClaims
	}
	return id, nil
}

// Middleware requires a valid bearer token. The query parameter token is
// accepted for websocket upgrades where browsers cannot set headers.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			unauthorized(c, "Authentication required", "NO_TOKEN")
			return
		}
		id, err := a.Verify(c.Request.Context(), token)
		if err != nil {
			switch {
			case apperrors.IsKind(err, apperrors.KindNotFound):
				unauthorized(c, "User not found", "USER_NOT_FOUND")
			case errors.Is(err, jwt.ErrTokenExpired):
				unauthorized(c, "Token expired", "INVALID_TOKEN")
			default:
				logger.Debug("invalid token", zap.Error(err))
				unauthorized(c, "Invalid or expired token", "INVALID_TOKEN")
			}
			return
		}
		c.Set(identityKey, id)
		c.Set("user_id", id.UserID)
		c.Next()
	}
}

// RequireRoles rejects callers whose role is not listed.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			unauthorized(c, "Authentication required", "NO_TOKEN")
			return
		}
		for _, r := range roles {
			if id.Role == r {
				c.Next()
				return
			}
		}
		response.AbortWithError(c, apperrors.Forbidden("Access denied. Insufficient permissions."))
	}
}

// IdentityFrom returns the caller stored by Middleware.
func IdentityFrom(c *gin.Context) (models.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return models.Identity{}, false
	}
	id, ok := v.(models.Identity)
	return id, ok
}

func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return c.Query("token")
}

func unauthorized(c *gin.Context, msg, code string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, response.Body{Success: false, Error: msg, Code: code})
}

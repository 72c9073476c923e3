package api

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/Aaditya473/Alpha-Fitness/internal/apperror"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
)

const userIDKey = "user_id"

var errInvalidToken = errors.New("invalid token")

// Authenticator verifies HS256 bearer tokens whose subject is the numeric
// user id.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// IssueToken signs a token for userID. Used by tests and local tooling.
func (a *Authenticator) IssueToken(userID int64, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ParseUserID validates tokenStr and returns its user id
func (a *Authenticator) ParseUserID(tokenStr string) (int64, error) {
	t, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return 0, err
	}
	claims, ok := t.Claims.(*jwt.RegisteredClaims)
	if !ok || !t.Valid {
		return 0, errInvalidToken
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, errInvalidToken
	}
	return userID, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// caller's user id on the context.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenStr, found := strings.CutPrefix(header, "Bearer ")
		if !found || tokenStr == "" {
			abortUnauthenticated(c, "missing bearer token")
			return
		}

		userID, err := a.ParseUserID(tokenStr)
		if err != nil {
			abortUnauthenticated(c, "invalid or expired token")
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

func abortUnauthenticated(c *gin.Context, message string) {
	err := apperror.Unauthenticated(message)
	c.AbortWithStatusJSON(apperror.HTTPStatus(err.Kind), gin.H{
		"error": gin.H{
			"code":    err.Kind,
			"message": err.Message,
		},
	})
}

func userIDFrom(c *gin.Context) int64 {
	return c.GetInt64(userIDKey)
}

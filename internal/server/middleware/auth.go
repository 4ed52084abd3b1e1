package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

// Claims are the token claims the gateway cares about: which tenant the
// caller acts for and who the caller is.
type Claims struct {
	TeamID string `json:"team_id"`
	jwt.RegisteredClaims
}

// JWTAuth authenticates Bearer tokens signed with the shared secret and
// stores team_id and author on the request context.
func JWTAuth(secret string) echo.MiddlewareFunc {
	keyFunc := func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header format")
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, keyFunc)
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			if claims.TeamID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "token has no team")
			}

			c.Set("team_id", claims.TeamID)
			c.Set("author", claims.Subject)
			return next(c)
		}
	}
}

// TeamID returns the authenticated tenant of the request.
func TeamID(c echo.Context) string {
	teamID, _ := c.Get("team_id").(string)
	return teamID
}

// Author returns the acting user from the token subject.
func Author(c echo.Context) string {
	author, _ := c.Get("author").(string)
	return author
}

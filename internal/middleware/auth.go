package middleware

import (
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const authHeader = "x-auth-token"

// JWTAuth validates the signed token carried in x-auth-token and stores the
// subject under "user_id" for handlers.
func JWTAuth(secret string) echo.MiddlewareFunc {
	key := []byte(secret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString := c.Request().Header.Get(authHeader)
			if tokenString == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing auth token")
			}

			token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{},
				func(t *jwt.Token) (interface{}, error) {
					if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
						return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
					}
					return key, nil
				})
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid auth token")
			}

			claims, ok := token.Claims.(*jwt.RegisteredClaims)
			if !ok || claims.Subject == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid auth token")
			}

			c.Set("user_id", claims.Subject)
			return next(c)
		}
	}
}

// UserID reads the authenticated user set by JWTAuth.
func UserID(c echo.Context) string {
	id, _ := c.Get("user_id").(string)
	return id
}

package httpapi

import (
	"github.com/labstack/echo/v4"

	"horse.fit/vantage/internal/auth"
)

// requireToken gates routes behind the configured API token hash. With
// no hash configured the API is open, which is the single-user and
// local default.
func (s *Server) requireToken() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if s.opts.APITokenHash == "" {
				return next(c)
			}

			token, ok := auth.BearerToken(c.Request().Header.Get("Authorization"))
			if !ok || !auth.VerifyToken(token, s.opts.APITokenHash) {
				return unauthorizedResponse(c)
			}
			return next(c)
		}
	}
}

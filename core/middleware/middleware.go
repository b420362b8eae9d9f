package middleware

import (
	"fmt"
	"net/http"
	"time"

	"inviteflow/core/controller"
	"inviteflow/core/errors"
	"inviteflow/core/logger"

	"github.com/labstack/echo/v4"
)

type Middleware struct {
	base controller.BaseController
}

func NewMiddleware() *Middleware {
	return &Middleware{base: controller.NewBaseController()}
}

// RequestLogger logs one line per request with method, path, status and latency.
func (m *Middleware) RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}

			logger.Info("HTTP:Request",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", status,
				"latency_ms", time.Since(start).Milliseconds(),
			)
			return err
		}
	}
}

// Recover converts panics into a JSON 500 instead of tearing the worker down.
func (m *Middleware) Recover() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("HTTP:Panic", "path", c.Request().URL.Path, "panic", fmt.Sprint(r))
					err = m.base.ErrorResponse(c, errors.NewAppError(errors.ErrInternalServer, "internal server error", nil))
				}
			}()
			return next(c)
		}
	}
}

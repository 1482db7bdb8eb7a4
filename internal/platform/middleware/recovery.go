package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const maxStack = 4096

// Recovery turns a handler panic into a 500 and logs it with the caller's
// identity when the request was authenticated.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}
				err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")

				buf := make([]byte, maxStack)
				buf = buf[:runtime.Stack(buf, false)]

				req := c.Request()
				evt := logger.Error().
					Str("request_id", stringValue(c, "request_id")).
					Str("method", req.Method).
					Str("path", req.URL.Path).
					Str("panic", fmt.Sprint(r)).
					Bytes("stack", buf)
				if uid := stringValue(c, "user_id"); uid != "" {
					evt = evt.Str("user_id", uid).Str("role", stringValue(c, "user_role"))
				}
				evt.Msg("handler panic")
			}()
			return next(c)
		}
	}
}

func stringValue(c echo.Context, key string) string {
	v, _ := c.Get(key).(string)
	return v
}

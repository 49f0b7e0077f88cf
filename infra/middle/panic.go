package middle

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/coursehub/paygate/infra/logger"
	"github.com/coursehub/paygate/infra/response"
)

// PanicRecoveryMiddleware handles panics and converts them to HTTP 500
// errors. The stack trace goes to the log, never to the caller.
func PanicRecoveryMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					stack := debug.Stack()

					logger.Error("panic recovered", fmt.Errorf("%v", err), logger.LogContext{
						Fields: map[string]any{
							"method": r.Method,
							"url":    r.URL.String(),
							"stack":  string(stack),
						},
					})

					w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
					response.Error(w, http.StatusInternalServerError, "Internal server error", nil)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

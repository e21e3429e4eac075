package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/eng540/CapitalGuard-Pro-v2-sub000/pkg/utils"
)

// Recovery stops a panic in one handler from taking the whole ops surface
// down with it: logs the panic and stack trace, answers 500, and lets the
// server keep serving the next request.
func Recovery(next http.Handler) http.Handler {
	log := utils.L().WithComponent("api")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Error("panic in http handler",
					utils.String("path", r.URL.Path),
					utils.Any("panic", err),
					utils.String("stack", string(debug.Stack())))
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

package middleware

import (
	"fmt"
	"log"
	"net/http"
	"runtime/debug"

	"github.com/ayush/estate-market/internal/httpx"
)

// Recoverer turns a handler panic into the standard JSON 500 body.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			log.Printf("panic: %v\n%s", rec, debug.Stack())
			httpx.WriteError(w, r, fmt.Errorf("panic: %v", rec))
		}()
		next.ServeHTTP(w, r)
	})
}

package middleware

import (
	"net/http"
)

// MaxBodySize bounds control requests. The largest is a transaction to sign.
const MaxBodySize = 256 << 10

// LimitBody caps the request body at MaxBodySize
func LimitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)
		next.ServeHTTP(w, r)
	})
}

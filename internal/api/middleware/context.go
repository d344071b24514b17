package middleware

import (
	"context"
	"net"
	"net/http"
)

type contextKey string

const clientIDKey contextKey = "client_id"

func SetClientID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, clientIDKey, id)
}

func GetClientID(r *http.Request) (string, bool) {
	id, ok := r.Context().Value(clientIDKey).(string)
	return id, ok && id != ""
}

// Identify tags the request with the client's address for rate limiting.
func Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		next.ServeHTTP(w, r.WithContext(SetClientID(r.Context(), host)))
	})
}

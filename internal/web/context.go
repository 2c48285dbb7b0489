package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/guarantor/internal/core"
)

// clientIP returns the caller's address without the port. chi's RealIP has
// already applied X-Real-IP or X-Forwarded-For.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// withRequestMetadata adds the caller's IP and User-Agent for operation logs.
func withRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	return core.WithClient(ctx, clientIP(r), r.Header.Get("User-Agent"))
}

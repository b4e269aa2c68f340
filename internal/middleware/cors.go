package middleware

import (
	"net/http"
	"path"
)

// CORS allows the configured origin. previewPattern, when set, is a glob such
// as "https://app-*.vercel.app" admitting preview deployments as well.
func CORS(origin, previewPattern string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqOrigin := r.Header.Get("Origin")
			allowed := origin

			if reqOrigin != "" && isAllowed(reqOrigin, origin, previewPattern) {
				allowed = reqOrigin
			}

			w.Header().Set("Access-Control-Allow-Origin", allowed)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isAllowed(reqOrigin, configured, previewPattern string) bool {
	if configured == "*" || reqOrigin == configured {
		return true
	}
	if previewPattern == "" {
		return false
	}
	ok, err := path.Match(previewPattern, reqOrigin)
	return err == nil && ok
}

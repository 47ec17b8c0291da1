// internal/app/system/limits/limits.go
package limits

import "net/http"

// Request body size limits. Every form in the app is a handful of short
// fields, so anything larger is refused before it is parsed.
const (
	// MaxFormSize caps urlencoded form posts.
	MaxFormSize = 64 << 10 // 64 KB
)

// FormBody caps the request body at n bytes. Reads past the cap fail,
// which makes ParseForm return an error the handlers already report as
// a bad request.
func FormBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && r.Body != http.NoBody {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}

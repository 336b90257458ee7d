// Package audit writes one structured entry per API request: who called,
// what they asked for, and how it ended. Entries are written even when the
// handler panics.
package audit

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Level tags audit entries so they can be routed separately from diagnostic
// logging.
const Level = zerolog.InfoLevel

// Entry accumulates the auditable facts of one request. The middleware fills
// the transport fields; gates and handlers annotate identity and outcome.
type Entry struct {
	Method      string
	Path        string
	SourceIP    string
	UserAgent   string
	RequestedAt time.Time

	// Identity is set once a gate resolves a principal, e.g. "admin:7" or
	// "miniprogram:42".
	Identity string

	Status int
	Error  string
}

type entryContextKey struct{}

// Context returns a context carrying an audit entry, creating one when
// absent.
func Context(ctx context.Context) (context.Context, *Entry) {
	if entry, ok := ctx.Value(entryContextKey{}).(*Entry); ok {
		return ctx, entry
	}
	entry := &Entry{RequestedAt: time.Now()}
	return context.WithValue(ctx, entryContextKey{}, entry), entry
}

// Log returns the entry for the request, creating a detached one if the
// middleware is not installed. The detached entry is writable but will never
// be emitted, which keeps callers unconditional.
func Log(ctx context.Context) *Entry {
	_, entry := Context(ctx)
	return entry
}

// Middleware captures request metadata and emits the audit entry when the
// request completes. The write is deferred, so a panicking handler still
// produces an entry before the panic propagates.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, entry := Context(r.Context())

			entry.Method = r.Method
			entry.Path = r.URL.Path
			entry.SourceIP = sourceIP(r)
			entry.UserAgent = r.UserAgent()

			ww := &statusWriter{ResponseWriter: w}
			defer func() {
				if entry.Status == 0 {
					entry.Status = ww.status()
				}
				entry.write()
			}()

			next.ServeHTTP(ww, r.WithContext(ctx))
		})
	}
}

func (e *Entry) write() {
	ev := log.WithLevel(Level).
		Str("method", e.Method).
		Str("path", e.Path).
		Str("source_ip", e.SourceIP).
		Str("user_agent", e.UserAgent).
		Int("status", e.Status).
		Dur("duration", time.Since(e.RequestedAt))

	if e.Identity != "" {
		ev = ev.Str("identity", e.Identity)
	}
	if e.Error != "" {
		ev = ev.Str("error", e.Error)
	}

	ev.Msg("audit")
}

func sourceIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// statusWriter records the response code; an unset code means the handler
// never wrote, which the middleware reports as 200 per net/http semantics.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.code == 0 {
		w.code = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.code == 0 {
		w.code = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) status() int {
	if w.code == 0 {
		return http.StatusOK
	}
	return w.code
}

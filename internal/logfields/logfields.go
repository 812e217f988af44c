package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyJobID      = "job_id"
	KeyReviewID   = "review_id"
	KeyStep       = "step"
	KeyEvent      = "event"
	KeyStatus     = "status"
	KeyDurationMS = "duration_ms"
	KeyComponent  = "component"
	KeyRepo       = "repo_url"
	KeyImage      = "image"
	KeyQueue      = "queue"
	KeyPath       = "path"
	KeyMethod     = "method"
	KeyHTTPStatus = "http_status"
	KeyRemoteAddr = "remote_addr"
	KeyAID        = "aid"
	KeyVersion    = "version"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func JobID(id string) slog.Attr       { return slog.String(KeyJobID, id) }
func ReviewID(id string) slog.Attr    { return slog.String(KeyReviewID, id) }
func Step(name string) slog.Attr      { return slog.String(KeyStep, name) }
func Event(name string) slog.Attr     { return slog.String(KeyEvent, name) }
func Status(s string) slog.Attr       { return slog.String(KeyStatus, s) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Component(c string) slog.Attr    { return slog.String(KeyComponent, c) }
func RepoURL(u string) slog.Attr      { return slog.String(KeyRepo, u) }
func Image(tag string) slog.Attr      { return slog.String(KeyImage, tag) }
func Queue(q string) slog.Attr        { return slog.String(KeyQueue, q) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Method(m string) slog.Attr       { return slog.String(KeyMethod, m) }
func HTTPStatus(code int) slog.Attr   { return slog.Int(KeyHTTPStatus, code) }
func RemoteAddr(a string) slog.Attr   { return slog.String(KeyRemoteAddr, a) }
func AID(aid string) slog.Attr        { return slog.String(KeyAID, aid) }
func Version(v int) slog.Attr         { return slog.Int(KeyVersion, v) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

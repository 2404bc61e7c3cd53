package webserver

import (
	"net/http"
	"net/http/httptest"
)

// StaticHandler serves the document root spec.md §6 names for "/" and
// other static paths: a filesystem directory when one is configured, or an
// embedded fallback page when it isn't. It adapts net/http's own
// http.FileServer (and any other http.Handler) onto webserver.Handler by
// running it against an httptest.ResponseRecorder and replaying the result
// through Response, since Response is not itself an http.ResponseWriter.
type StaticHandler struct {
	Delegate http.Handler
}

// NewStaticHandler builds a StaticHandler rooted at dir, or backed by
// fallback (e.g. the embedded default page) when dir is empty.
func NewStaticHandler(dir string, fallback http.Handler) *StaticHandler {
	if dir == "" {
		return &StaticHandler{Delegate: fallback}
	}
	return &StaticHandler{Delegate: http.FileServer(http.Dir(dir))}
}

// Handle implements Handler.
func (h *StaticHandler) Handle(resp *Response, req *http.Request, group UserGroup) {
	rec := httptest.NewRecorder()
	h.Delegate.ServeHTTP(rec, req)

	for k, values := range rec.Header() {
		for _, v := range values {
			resp.Header().Add(k, v)
		}
	}
	resp.WriteHeader(rec.Code)
	resp.Send(rec.Body.Bytes())
}

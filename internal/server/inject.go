package server

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"
)

const reloadScriptTag = `<script src="/__reload.js" defer></script>`

// injectReloadScript rewrites HTML responses from the wrapped handler so the
// reload script loads on every page. Responses are buffered only when the
// Content-Type is HTML and the status is 200; everything else streams
// through untouched.
func injectReloadScript(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		iw := &injectingWriter{ResponseWriter: w}
		next.ServeHTTP(iw, r)
		if !iw.buffering {
			return
		}

		body := injectBeforeHead(iw.buf.Bytes())
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(iw.status)
		_, _ = w.Write(body)
	})
}

// injectBeforeHead inserts the script tag ahead of the closing head tag, or
// appends it when the document has none.
func injectBeforeHead(body []byte) []byte {
	idx := bytes.Index(bytes.ToLower(body), []byte("</head>"))
	if idx < 0 {
		return append(body, []byte("\n"+reloadScriptTag)...)
	}
	out := make([]byte, 0, len(body)+len(reloadScriptTag))
	out = append(out, body[:idx]...)
	out = append(out, []byte(reloadScriptTag)...)
	out = append(out, body[idx:]...)
	return out
}

// injectingWriter buffers HTML bodies so the script tag can be inserted and
// the Content-Length corrected before anything reaches the client.
type injectingWriter struct {
	http.ResponseWriter
	buf       bytes.Buffer
	status    int
	buffering bool
	committed bool
}

func (iw *injectingWriter) WriteHeader(code int) {
	if iw.committed {
		return
	}
	iw.committed = true
	iw.status = code
	ct := iw.Header().Get("Content-Type")
	if code == http.StatusOK && strings.HasPrefix(ct, "text/html") {
		iw.buffering = true
		iw.Header().Del("Content-Length")
		return
	}
	iw.ResponseWriter.WriteHeader(code)
}

func (iw *injectingWriter) Write(b []byte) (int, error) {
	if !iw.committed {
		iw.WriteHeader(http.StatusOK)
	}
	if iw.buffering {
		return iw.buf.Write(b)
	}
	return iw.ResponseWriter.Write(b)
}

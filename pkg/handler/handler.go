package handler

import (
	"net/http"
	"strings"
)

// Handler is a ready-to-use handler with routing already wired in. Most
// callers want this instead of UnroutedHandler directly; reach for
// UnroutedHandler only when its verb methods need to be mounted into an
// existing mux alongside other routes.
type Handler struct {
	*UnroutedHandler
	http.Handler
}

// NewHandler builds a routed Handler: it validates config, constructs the
// UnroutedHandler, and wraps it in a mux that dispatches by method and path
// the way the protocol requires (root vs. per-id OPTIONS, and one verb per
// method on a resource path).
func NewHandler(config Config) (*Handler, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	unrouted, err := NewUnroutedHandler(config)
	if err != nil {
		return nil, err
	}

	routed := &Handler{UnroutedHandler: unrouted}

	mux := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.Trim(r.URL.Path, "/")
		prefix := strings.Trim(config.Prefix, "/")

		if path == prefix {
			switch r.Method {
			case http.MethodOptions:
				unrouted.OptionsRoot(w, r)
			case http.MethodPost:
				unrouted.PostFile(w, r)
			default:
				methodNotAllowed(w, "OPTIONS, POST")
			}
			return
		}

		switch r.Method {
		case http.MethodOptions:
			unrouted.OptionsFile(w, r)
		case http.MethodHead:
			unrouted.HeadFile(w, r)
		case http.MethodPatch:
			unrouted.PatchFile(w, r)
		case http.MethodGet:
			unrouted.GetFile(w, r)
		case http.MethodDelete:
			unrouted.DelFile(w, r)
		default:
			methodNotAllowed(w, "OPTIONS, HEAD, PATCH, GET, DELETE")
		}
	})

	routed.Handler = unrouted.Middleware(mux)

	return routed, nil
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	w.WriteHeader(http.StatusMethodNotAllowed)
	w.Write([]byte(`{"error":"method not allowed"}`))
}

package http

import (
	"net/http"
	"strings"
)

type RouterConfig struct {
	Sessions *SessionHandler
	// Health answers GET /healthz outside the middleware chain when set.
	Health     http.HandlerFunc
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Sessions != nil {
		mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Sessions.List(w, r)
			case http.MethodPost:
				cfg.Sessions.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/sessions/", func(w http.ResponseWriter, r *http.Request) {
			rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/sessions/"), "/")
			if rest == "" {
				http.NotFound(w, r)
				return
			}
			id, action, _ := strings.Cut(rest, "/")
			if strings.Contains(action, "/") {
				http.NotFound(w, r)
				return
			}

			if action == "" {
				switch id {
				case "upcoming":
					if r.Method != http.MethodGet {
						methodNotAllowed(w, http.MethodGet)
						return
					}
					cfg.Sessions.Upcoming(w, r)
					return
				case "past":
					if r.Method != http.MethodGet {
						methodNotAllowed(w, http.MethodGet)
						return
					}
					cfg.Sessions.Past(w, r)
					return
				}
			}

			r = r.WithContext(ContextWithSessionID(r.Context(), id))
			routeSession(cfg.Sessions, action, w, r)
		})
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	if cfg.Health == nil {
		return handler
	}
	root := http.NewServeMux()
	root.HandleFunc("/healthz", cfg.Health)
	root.Handle("/", handler)
	return root
}

func routeSession(h *SessionHandler, action string, w http.ResponseWriter, r *http.Request) {
	switch action {
	case "":
		switch r.Method {
		case http.MethodGet:
			h.Get(w, r)
		case http.MethodDelete:
			h.Delete(w, r)
		default:
			methodNotAllowed(w, http.MethodGet, http.MethodDelete)
		}
	case "confirm", "cancel", "complete", "no-show":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		switch action {
		case "confirm":
			h.Confirm(w, r)
		case "cancel":
			h.Cancel(w, r)
		case "complete":
			h.Complete(w, r)
		default:
			h.MarkNoShow(w, r)
		}
	case "notes":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, http.MethodPut)
			return
		}
		h.UpdateNotes(w, r)
	case "reminders":
		switch r.Method {
		case http.MethodGet:
			h.ListReminders(w, r)
		case http.MethodPost:
			h.CreateReminders(w, r)
		default:
			methodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	default:
		http.NotFound(w, r)
	}
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}

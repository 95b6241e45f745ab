package http

import (
	"net/http"
	"strings"
)

type RouterConfig struct {
	Scheduling   *SchedulingHandler
	Meetings     *MeetingHandler
	Availability *AvailabilityHandler
	Participants *ParticipantHandler
	Health       *HealthHandler
	Middleware   []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Health != nil {
		mux.HandleFunc("/healthz", only(http.MethodGet, cfg.Health.Live))
		mux.HandleFunc("/readyz", only(http.MethodGet, cfg.Health.Ready))
	}

	if cfg.Scheduling != nil {
		mux.HandleFunc("/scheduling/check-conflicts", only(http.MethodPost, cfg.Scheduling.CheckConflicts))
		mux.HandleFunc("/scheduling/suggest-slots", only(http.MethodPost, cfg.Scheduling.SuggestSlots))
		mux.HandleFunc("/scheduling/next-available", only(http.MethodPost, cfg.Scheduling.NextAvailable))
		mux.HandleFunc("/participants/{id}/availability", withParticipant(only(http.MethodGet, cfg.Scheduling.Availability)))
		mux.HandleFunc("/participants/{id}/agenda", withParticipant(only(http.MethodGet, cfg.Scheduling.Agenda)))
		mux.HandleFunc("/participants/{id}/busy.ics", withParticipant(only(http.MethodGet, cfg.Scheduling.ExportCalendar)))
	}

	if cfg.Meetings != nil {
		mux.HandleFunc("/meetings", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Meetings.List(w, r)
			case http.MethodPost:
				cfg.Meetings.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/meetings/{id}", withMeeting(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Meetings.Get(w, r)
			case http.MethodPut:
				cfg.Meetings.Update(w, r)
			case http.MethodDelete:
				cfg.Meetings.Delete(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
			}
		}))
		mux.HandleFunc("/meetings/{id}/responses", withMeeting(only(http.MethodPost, cfg.Meetings.Respond)))
		mux.HandleFunc("/meetings/{id}/cancel-occurrence", withMeeting(only(http.MethodPost, cfg.Meetings.CancelOccurrence)))
		mux.HandleFunc("/meetings/{id}/status", withMeeting(only(http.MethodPut, cfg.Meetings.SetStatus)))
	}

	if cfg.Participants != nil {
		mux.HandleFunc("/participants", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Participants.List(w, r)
			case http.MethodPost:
				cfg.Participants.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/participants/{id}", withParticipant(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Participants.Get(w, r)
			case http.MethodPut:
				cfg.Participants.Update(w, r)
			case http.MethodDelete:
				cfg.Participants.Delete(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
			}
		}))
	}

	if cfg.Availability != nil {
		mux.HandleFunc("/participants/{id}/business-hours", withParticipant(only(http.MethodPut, cfg.Availability.SetBusinessHours)))
		mux.HandleFunc("/participants/{id}/windows", withParticipant(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Availability.ListWindows(w, r)
			case http.MethodPost:
				cfg.Availability.AddWindow(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		}))
		mux.HandleFunc("/participants/{id}/blocked-time", withParticipant(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Availability.ListBlockedTime(w, r)
			case http.MethodPost:
				cfg.Availability.AddBlockedTime(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		}))
		mux.HandleFunc("/participants/{id}/blocked-time/import", withParticipant(only(http.MethodPost, cfg.Availability.ImportCalendar)))
		mux.HandleFunc("/windows/{id}", withResource(only(http.MethodDelete, cfg.Availability.DeleteWindow)))
		mux.HandleFunc("/blocked-time/{id}", withResource(only(http.MethodDelete, cfg.Availability.DeleteBlockedTime)))
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

func only(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			methodNotAllowed(w, method)
			return
		}
		next(w, r)
	}
}

func withMeeting(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := ContextWithMeetingID(r.Context(), r.PathValue("id"))
		next(w, r.WithContext(ctx))
	}
}

func withParticipant(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := ContextWithParticipantID(r.Context(), r.PathValue("id"))
		next(w, r.WithContext(ctx))
	}
}

func withResource(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := ContextWithResourceID(r.Context(), r.PathValue("id"))
		next(w, r.WithContext(ctx))
	}
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}

package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/tcriess/lightspeed-meet/auth"
	"github.com/tcriess/lightspeed-meet/config"
	"github.com/tcriess/lightspeed-meet/globals"
	"github.com/tcriess/lightspeed-meet/meeting"
	"github.com/tcriess/lightspeed-meet/ws"
)

// Server holds the HTTP surface and its injected collaborators. It carries
// no own state, everything lives in the manager, the auth service and the
// relay registry, so tests can construct one per instance.
type Server struct {
	manager  *meeting.Manager
	auth     *auth.Service
	registry *ws.Registry

	corsOrigin string
	upgrader   websocket.Upgrader
}

func New(cfg *config.Config, manager *meeting.Manager, authService *auth.Service, registry *ws.Registry) *Server {
	return &Server{
		manager:    manager,
		auth:       authService,
		registry:   registry,
		corsOrigin: cfg.NotifyConfig.CORSOrigin,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Router builds the full route table.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.corsMiddleware)

	router.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/login", s.loginHandler).Methods(http.MethodPost)
	api.HandleFunc("/auth/me", s.requireHost(s.meHandler)).Methods(http.MethodGet)

	api.HandleFunc("/rooms", s.requireHost(s.createRoomHandler)).Methods(http.MethodPost)
	api.HandleFunc("/token", s.tokenHandler).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{id}", s.getRoomHandler).Methods(http.MethodGet)

	api.HandleFunc("/scheduled-meetings", s.requireHost(s.scheduleHandler)).Methods(http.MethodPost)
	api.HandleFunc("/scheduled-meetings", s.requireHost(s.listScheduledHandler)).Methods(http.MethodGet)
	api.HandleFunc("/scheduled-meetings/{id:[0-9]+}", s.requireHost(s.cancelScheduledHandler)).Methods(http.MethodDelete)
	api.HandleFunc("/scheduled-meetings/{id:[0-9]+}/start", s.requireHost(s.startScheduledHandler)).Methods(http.MethodPost)
	api.HandleFunc("/join/{room}", s.joinInfoHandler).Methods(http.MethodGet)

	api.HandleFunc("/meetings", s.listMeetingsHandler).Methods(http.MethodGet)
	api.HandleFunc("/meetings/{room}/notes", s.saveNotesHandler).Methods(http.MethodPost)
	api.HandleFunc("/meetings/{room}/notes", s.getNotesHandler).Methods(http.MethodGet)

	api.HandleFunc("/meetings/{room}/subscribe-email", s.subscribeEmailHandler).Methods(http.MethodPost)
	api.HandleFunc("/meetings/{room}/email-subscriptions", s.emailSubscriptionsHandler).Methods(http.MethodGet)
	api.HandleFunc("/meetings/{room}/unsubscribe-email", s.unsubscribeEmailHandler).Methods(http.MethodDelete)

	api.HandleFunc("/meetings/{room}/start-transcription", s.startTranscriptionHandler).Methods(http.MethodPost)
	api.HandleFunc("/meetings/{room}/end-transcription", s.endTranscriptionHandler).Methods(http.MethodPost)
	api.HandleFunc("/internal/transcript", s.receiveTranscriptHandler).Methods(http.MethodPost)

	api.HandleFunc("/meetings/{room}/start-recording", s.startRecordingHandler).Methods(http.MethodPost)
	api.HandleFunc("/meetings/{room}/stop-recording", s.stopRecordingHandler).Methods(http.MethodPost)
	api.HandleFunc("/meetings/{room}/recording-status", s.recordingStatusHandler).Methods(http.MethodGet)

	router.HandleFunc("/ws/transcription/{room:[a-z][a-z0-9_-]+}", s.transcriptionWSHandler).Methods(http.MethodGet)

	return router
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		globals.AppLogger.Error("could not write response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeErrorMsg(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeError maps the domain error taxonomy onto HTTP statuses. Internal
// details are logged, never leaked.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, meeting.ErrNotFound):
		writeErrorMsg(w, http.StatusNotFound, "not found")
	case errors.Is(err, meeting.ErrNotOwner):
		writeErrorMsg(w, http.StatusForbidden, "not your meeting")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeErrorMsg(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, meeting.ErrUpstream):
		globals.AppLogger.Error("upstream service error", "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "upstream service error")
	default:
		globals.AppLogger.Error("internal error", "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "lightspeed-meet"})
}

package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/tcriess/lightspeed-meet/globals"
	"github.com/tcriess/lightspeed-meet/types"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid request body")
		return
	}
	token, user, err := s.auth.Login(req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

func (s *Server) meHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, identityFrom(r))
}

type createRoomRequest struct {
	Name string `json:"name"`
}

func (s *Server) createRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErrorMsg(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	m, err := s.manager.CreateRoom(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"room_name":   m.RoomName,
		"room_sid":    m.RoomSid,
		"invite_link": s.manager.InviteLink(m.RoomName),
	})
}

type tokenRequest struct {
	RoomName        string `json:"room_name"`
	ParticipantName string `json:"participant_name"`
}

func (s *Server) tokenHandler(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RoomName == "" {
		writeErrorMsg(w, http.StatusBadRequest, "room_name is required")
		return
	}
	token, identity, err := s.manager.IssueToken(req.RoomName, req.ParticipantName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"token":    token,
		"identity": identity,
	})
}

func (s *Server) getRoomHandler(w http.ResponseWriter, r *http.Request) {
	roomName := mux.Vars(r)["id"]
	name, sid, participants, err := s.manager.RoomInfo(r.Context(), roomName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"room_name":        name,
		"room_sid":         sid,
		"num_participants": participants,
	})
}

type scheduleRequest struct {
	ClientName  string    `json:"client_name"`
	ClientEmail string    `json:"client_email"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

func (s *Server) scheduleHandler(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ClientName == "" || req.ScheduledAt.IsZero() {
		writeErrorMsg(w, http.StatusBadRequest, "client_name and scheduled_at are required")
		return
	}
	identity := identityFrom(r)
	sm, err := s.manager.Schedule(identity.UserID, req.ClientName, req.ClientEmail, req.ScheduledAt)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"meeting":     sm,
		"invite_link": s.manager.InviteLink(sm.RoomName),
	})
}

func (s *Server) listScheduledHandler(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	meetings, err := s.manager.ListScheduled(identity.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"meetings": meetings})
}

func (s *Server) cancelScheduledHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid meeting id")
		return
	}
	identity := identityFrom(r)
	if err := s.manager.Cancel(id, identity.UserID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *Server) startScheduledHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid meeting id")
		return
	}
	identity := identityFrom(r)
	sm, roomSid, err := s.manager.Start(r.Context(), id, identity.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"meeting":     sm,
		"room_sid":    roomSid,
		"invite_link": s.manager.InviteLink(sm.RoomName),
	})
}

func (s *Server) joinInfoHandler(w http.ResponseWriter, r *http.Request) {
	roomName := mux.Vars(r)["room"]
	sm, err := s.manager.JoinInfo(roomName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"room_name":    sm.RoomName,
		"client_name":  sm.ClientName,
		"host_name":    sm.HostName(),
		"scheduled_at": sm.ScheduledAt,
		"status":       sm.Status,
	})
}

func (s *Server) listMeetingsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	meetings, err := s.manager.ListMeetingsWithNotes(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"meetings": meetings})
}

type saveNotesRequest struct {
	Notes        string `json:"notes"`
	ModelUsed    string `json:"model_used"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

func (s *Server) saveNotesHandler(w http.ResponseWriter, r *http.Request) {
	roomName := mux.Vars(r)["room"]
	var req saveNotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Notes == "" {
		writeErrorMsg(w, http.StatusBadRequest, "notes must not be empty")
		return
	}
	notes, err := s.manager.SaveNotes(roomName, req.Notes, req.ModelUsed, req.InputTokens, req.OutputTokens)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, notes)
}

func (s *Server) getNotesHandler(w http.ResponseWriter, r *http.Request) {
	roomName := mux.Vars(r)["room"]
	notes, err := s.manager.LatestNotes(roomName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

type subscribeEmailRequest struct {
	Email           string `json:"email"`
	ParticipantName string `json:"participant_name"`
}

func (s *Server) subscribeEmailHandler(w http.ResponseWriter, r *http.Request) {
	roomName := mux.Vars(r)["room"]
	var req subscribeEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !strings.Contains(req.Email, "@") {
		writeErrorMsg(w, http.StatusBadRequest, "valid email is required")
		return
	}
	sub, err := s.manager.SubscribeEmail(roomName, req.Email, req.ParticipantName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (s *Server) emailSubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	roomName := mux.Vars(r)["room"]
	subs, err := s.manager.EmailSubscriptions(roomName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"subscriptions": subs})
}

type unsubscribeEmailRequest struct {
	Email string `json:"email"`
}

func (s *Server) unsubscribeEmailHandler(w http.ResponseWriter, r *http.Request) {
	roomName := mux.Vars(r)["room"]
	var req unsubscribeEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.manager.UnsubscribeEmail(roomName, req.Email); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unsubscribed"})
}

func (s *Server) startTranscriptionHandler(w http.ResponseWriter, r *http.Request) {
	roomName := mux.Vars(r)["room"]
	m, err := s.manager.BeginTranscription(r.Context(), roomName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "transcribing",
		"meeting_id": m.ID,
	})
}

func (s *Server) endTranscriptionHandler(w http.ResponseWriter, r *http.Request) {
	roomName := mux.Vars(r)["room"]
	if err := s.manager.EndTranscription(r.Context(), roomName); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// receiveTranscriptHandler is the ingest endpoint for the transcription
// agent. Malformed events are rejected and never reach subscribers.
func (s *Server) receiveTranscriptHandler(w http.ResponseWriter, r *http.Request) {
	var event types.TranscriptEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if event.RoomName == "" || event.Speaker == "" || event.Text == "" {
		writeErrorMsg(w, http.StatusBadRequest, "room_name, speaker and text are required")
		return
	}
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	if err := event.CreateId(); err != nil {
		globals.AppLogger.Error("could not create event id", "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.registry.Publish(&event)
	writeJSON(w, http.StatusOK, map[string]string{"status": "relayed"})
}

func (s *Server) startRecordingHandler(w http.ResponseWriter, r *http.Request) {
	roomName := mux.Vars(r)["room"]
	rec, already, err := s.manager.StartRecording(r.Context(), roomName)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusCreated
	if already {
		status = http.StatusOK
	}
	writeJSON(w, status, rec)
}

func (s *Server) stopRecordingHandler(w http.ResponseWriter, r *http.Request) {
	roomName := mux.Vars(r)["room"]
	rec, err := s.manager.StopRecording(r.Context(), roomName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) recordingStatusHandler(w http.ResponseWriter, r *http.Request) {
	roomName := mux.Vars(r)["room"]
	rec, err := s.manager.RecordingStatus(roomName)
	if err != nil {
		writeError(w, err)
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "none"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/tcriess/lightspeed-meet/globals"
	"github.com/tcriess/lightspeed-meet/ws"
)

// transcriptionWSHandler upgrades the connection and attaches the
// subscriber to the room's hub. An optional filter expression in the
// "filter" query parameter restricts which transcript events the
// subscriber receives; a broken expression rejects the subscription
// before the upgrade.
func (s *Server) transcriptionWSHandler(w http.ResponseWriter, r *http.Request) {
	roomName := mux.Vars(r)["room"]
	filterExpr := r.URL.Query().Get("filter")
	if filterExpr != "" {
		if _, err := ws.CompileFilter(filterExpr); err != nil {
			writeErrorMsg(w, http.StatusBadRequest, "invalid filter expression")
			return
		}
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		globals.AppLogger.Error("could not upgrade connection", "room", roomName, "error", err)
		return
	}
	hub := s.registry.Hub(roomName)
	client, err := ws.NewClient(hub, conn, filterExpr)
	if err != nil {
		_ = conn.Close()
		return
	}
	hub.Register(client)
	go client.WriteLoop()
	client.ReadLoop()
}

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tcriess/lightspeed-meet/config"
	"github.com/tcriess/lightspeed-meet/globals"
	"github.com/tcriess/lightspeed-meet/persistence"
	"github.com/tcriess/lightspeed-meet/types"
)

// Notifier delivers saved meeting notes to the configured webhook for mail
// delivery. It runs as a fire-and-forget side effect of the notes save, its
// errors are logged and swallowed by the caller.
type Notifier struct {
	webhookURL string
	store      persistence.Persister
	http       *http.Client
}

func New(cfg *config.Config, store persistence.Persister) *Notifier {
	return &Notifier{
		webhookURL: cfg.NotifyConfig.EmailWebhookURL,
		store:      store,
		http:       &http.Client{Timeout: 30 * time.Second},
	}
}

// webhookPayload is the JSON body sent to the webhook.
type webhookPayload struct {
	RoomName   string                     `json:"roomName"`
	Notes      string                     `json:"notes"`
	Timestamp  string                     `json:"timestamp"`
	Recipients []*types.EmailSubscription `json:"recipients"`
}

// NotesSaved posts the notes and the room's subscription list to the
// webhook. No configured webhook or no subscribers disables the path
// silently, that is not an error.
func (n *Notifier) NotesSaved(roomName string, meetingID int64, notes string) error {
	if n.webhookURL == "" {
		globals.AppLogger.Debug("no notes webhook configured, skipping", "room", roomName)
		return nil
	}
	subs, err := n.store.GetEmailSubscriptions(meetingID)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		globals.AppLogger.Debug("no subscriptions for room, skipping webhook", "room", roomName)
		return nil
	}

	payload := webhookPayload{
		RoomName:   roomName,
		Notes:      notes,
		Timestamp:  time.Now().Format(time.RFC3339),
		Recipients: subs,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := n.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("notes webhook returned status %d", res.StatusCode)
	}
	globals.AppLogger.Info("notes webhook triggered", "room", roomName, "recipients", len(subs))
	return nil
}

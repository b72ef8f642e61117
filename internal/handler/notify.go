package handler

import (
	"encoding/json"

	"github.com/dinesync/api/internal/ws"
)

// Broadcaster pushes refresh hints to subscribed staff screens. Satisfied by
// *ws.Hub; polling stays the source of truth.
type Broadcaster interface {
	Broadcast(channel string, event ws.Event)
}

func notify(hub Broadcaster, channel, eventType string, payload interface{}) {
	if hub == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	hub.Broadcast(channel, ws.Event{Type: eventType, Payload: data})
}

package operations

import "tradejournal/pkg/contracts/domain"

// ProgressEvent is broadcast to websocket subscribers while an import
// run persists trades.
type ProgressEvent struct {
	SessionID string             `json:"session_id"`
	Step      Step               `json:"step"`
	Processed int                `json:"processed"`
	Total     int                `json:"total"`
	Stats     domain.ImportStats `json:"stats"`
}

// Broadcaster pushes progress events to connected clients. The websocket
// hub implements it; a no-op implementation is fine for tests.
type Broadcaster interface {
	BroadcastProgress(event ProgressEvent)
}

// NopBroadcaster discards all events.
type NopBroadcaster struct{}

// BroadcastProgress implements Broadcaster.
func (NopBroadcaster) BroadcastProgress(ProgressEvent) {}

// Package notifications pushes back-office events, such as a finished
// document, to connected clients.
package notifications

import "time"

const (
	WSMessageTypeDocumentGenerated = "document.generated"
	WSMessageTypeDocumentSkipped   = "document.skipped"
	WSMessageTypeStatusChanged     = "cooperative.status_changed"
	WSMessageTypeExportDelivered   = "export.delivered"
	WSMessageTypeStatus            = "status"
	WSMessageTypePing              = "ping"
	WSMessageTypePong              = "pong"
)

// WebSocketMessage represents WebSocket message format
type WebSocketMessage struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Channel   string                 `json:"channel,omitempty"`
	Target    string                 `json:"target,omitempty"` // user id, or "all"
	Source    string                 `json:"source,omitempty"`
}

// DocumentEvent describes a generated, or skipped, document.
type DocumentEvent struct {
	DocumentID    string `json:"document_id,omitempty"`
	Kind          string `json:"kind"`
	Filename      string `json:"filename"`
	CooperativeID string `json:"cooperative_id,omitempty"`
	Locale        string `json:"locale,omitempty"`
	Size          int64  `json:"size,omitempty"`
	RequestedBy   string `json:"requested_by,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

func (e DocumentEvent) data() map[string]interface{} {
	data := map[string]interface{}{
		"kind":     e.Kind,
		"filename": e.Filename,
	}
	for key, value := range map[string]string{
		"document_id":    e.DocumentID,
		"cooperative_id": e.CooperativeID,
		"locale":         e.Locale,
		"reason":         e.Reason,
	} {
		if value != "" {
			data[key] = value
		}
	}
	if e.Size > 0 {
		data["size"] = e.Size
	}
	return data
}

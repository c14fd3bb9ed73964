package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/zot/bootconfd/internal/config"
	"github.com/zot/bootconfd/internal/snapshot"
)

// Handler dispatches protocol messages to the snapshot service and
// wraps every result in a response envelope. Errors are local and
// reported; none of them terminate the connection.
type Handler struct {
	cfg *config.Config
	svc *snapshot.Service
}

// NewHandler creates a new protocol handler.
func NewHandler(cfg *config.Config, svc *snapshot.Service) *Handler {
	return &Handler{cfg: cfg, svc: svc}
}

// HandleMessage handles a single request message and returns the
// response envelope.
func (h *Handler) HandleMessage(msg *Message) *Envelope {
	h.cfg.Log(2, "handling %s", msg.Type)

	switch msg.Type {
	case MsgGetConfig:
		data, err := h.svc.GetConfig()
		if err != nil {
			return Err(err)
		}
		return OK(data)

	case MsgSaveConfig:
		var req SaveConfigRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return Err(fmt.Errorf("malformed saveConfig request: %w", err))
		}
		if err := h.svc.SaveConfig(req.ValueList, req.SelectedKernel); err != nil {
			return Err(err)
		}
		return OK("ok")

	case MsgGetEntries:
		data, err := h.svc.GetEntries()
		if err != nil {
			return Err(err)
		}
		return OK(data)

	case MsgGetSnapshots:
		data, err := h.svc.ListSnapshots()
		if err != nil {
			return Err(err)
		}
		return OK(data)

	case MsgRemoveSnapshot:
		var req SnapshotIDRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return Err(fmt.Errorf("malformed removeSnapshot request: %w", err))
		}
		if err := h.svc.RemoveSnapshot(req.SnapshotID); err != nil {
			return Err(err)
		}
		return OK("ok")

	case MsgSelectSnapshot:
		var req SnapshotIDRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return Err(fmt.Errorf("malformed selectSnapshot request: %w", err))
		}
		if err := h.svc.SelectSnapshot(req.SnapshotID); err != nil {
			return Err(err)
		}
		return OK("ok")

	default:
		return Err(fmt.Errorf("unknown message type %q", msg.Type))
	}
}

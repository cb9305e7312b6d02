package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/citybuild/maprelay/internal/presence"
	"github.com/citybuild/maprelay/internal/protocol"
	"github.com/citybuild/maprelay/pkg/auth"
	"github.com/citybuild/maprelay/pkg/mapapi"
	"github.com/citybuild/maprelay/pkg/metrics"
)

// CommandRouter turns inbound frames into coordinator calls. Malformed or
// unknown input is dropped with a log line; the sender gets no error reply
// (fire-and-forget, matching the transport's own guarantees).
type CommandRouter struct {
	logger   *slog.Logger
	coord    *presence.Coordinator
	verifier auth.Verifier  // nil disables token verification
	maps     *mapapi.Client // nil disables map lookups
	metrics  *metrics.Set
}

func NewCommandRouter(logger *slog.Logger, coord *presence.Coordinator, verifier auth.Verifier, maps *mapapi.Client, m *metrics.Set) *CommandRouter {
	return &CommandRouter{
		logger:   logger.With(slog.String("component", "command_router")),
		coord:    coord,
		verifier: verifier,
		maps:     maps,
		metrics:  m,
	}
}

// HandleMessage runs on the owning connection's read goroutine, so anything
// slow here (verification, API lookups) stalls only that one session.
func (r *CommandRouter) HandleMessage(ctx context.Context, connID uuid.UUID, msg []byte) {
	event := gjson.GetBytes(msg, "event").String()
	if event == "" {
		r.logger.Warn("frame without event name, dropping", slog.String("connID", connID.String()))
		return
	}
	if r.metrics != nil {
		r.metrics.Events.WithLabelValues(event).Inc()
	}
	payload := []byte(gjson.GetBytes(msg, "payload").Raw)

	switch event {
	case protocol.EventJoinRoom:
		r.handleJoin(ctx, connID, payload)
	case protocol.EventLeaveRoom:
		r.coord.Leave(connID)
	case protocol.EventMapUpdate:
		var upd protocol.MapUpdate
		if err := json.Unmarshal(payload, &upd); err != nil || upd.Action == "" {
			r.logger.Warn("malformed map-update, dropping", slog.String("connID", connID.String()), slog.Any("error", err))
			return
		}
		r.coord.MapUpdate(connID, upd)
	default:
		r.logger.Warn("unknown event, dropping", slog.String("event", event), slog.String("connID", connID.String()))
	}
}

func (r *CommandRouter) handleJoin(ctx context.Context, connID uuid.UUID, payload []byte) {
	var cmd protocol.JoinRoom
	if err := json.Unmarshal(payload, &cmd); err != nil {
		r.logger.Warn("malformed join-room, dropping", slog.String("connID", connID.String()), slog.Any("error", err))
		return
	}
	mapID := cmd.MapID.String()
	if mapID == "" {
		r.logger.Warn("join-room without mapId, dropping", slog.String("connID", connID.String()))
		return
	}

	if r.verifier != nil {
		if _, err := r.verifier.Verify(cmd.Token); err != nil {
			r.logger.Warn("join token rejected, closing session",
				slog.String("connID", connID.String()),
				slog.Any("error", err),
			)
			r.coord.Kick(connID, fmt.Errorf("token rejected: %w", err))
			return
		}
	}

	mapName, owner := cmd.MapName, cmd.OwnerPseudonym
	if r.maps != nil && mapName == "" && owner != "" {
		// Best effort: a failed lookup just leaves the caller-supplied
		// fields in place.
		if summary, err := r.maps.MapByPseudo(ctx, cmd.Token, owner); err == nil {
			mapName = summary.Name
		} else {
			r.logger.Debug("map lookup failed", slog.String("owner", owner), slog.Any("error", err))
		}
	}

	r.coord.Join(connID, mapID, mapName, owner, cmd.VisitorPseudonym, cmd.Token)
}

package brackets

import (
	"context"
	"log/slog"

	"github.com/Dosada05/livematch/repositories"
)

const (
	TournamentsRoom        = "tournaments"
	MessageTournamentsSync = "TOURNAMENTS_UPDATED"
)

// StateSource - источник состояний репозитория турниров.
type StateSource interface {
	Subscribe() (<-chan repositories.State, func())
}

// NewStateMessage оборачивает состояние в сообщение для комнаты турниров.
func NewStateMessage(st repositories.State) WebSocketMessage {
	return WebSocketMessage{
		Type:    MessageTournamentsSync,
		Payload: st.View(),
		RoomID:  TournamentsRoom,
	}
}

// Bridge рассылает каждое новое состояние репозитория клиентам комнаты турниров,
// пока не отменён ctx или источник не закрыл канал.
func Bridge(ctx context.Context, src StateSource, hub *Hub, logger *slog.Logger) error {
	states, unsubscribe := src.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case st, ok := <-states:
			if !ok {
				logger.Info("tournament state source closed, stopping websocket bridge")
				return nil
			}
			hub.BroadcastToRoom(TournamentsRoom, NewStateMessage(st))
		}
	}
}

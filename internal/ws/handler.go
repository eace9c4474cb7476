package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"cardarena/internal/hub"
	"cardarena/internal/protocol"
	"cardarena/internal/room"
)

const writeTimeout = 3 * time.Second

// Handler upgrades the connection and relays protocol messages between the
// client and its room. Requests carrying a seq are answered with exactly one
// ack; in-room messages from a socket with no room association are logged
// and dropped.
func Handler(h *hub.Hub, log *zap.Logger, origins []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := &websocket.AcceptOptions{}
		for _, o := range origins {
			if o == "*" {
				opts.InsecureSkipVerify = true
				break
			}
			opts.OriginPatterns = append(opts.OriginPatterns, o)
		}

		conn, err := websocket.Accept(w, r, opts)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		connID := uuid.NewString()
		outbox := make(chan protocol.ServerMessage, 16)
		logc := log.With(zap.String("conn", connID))
		logc.Info("client connected")

		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for {
				select {
				case msg := <-outbox:
					payload, _ := json.Marshal(msg)
					ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
					_ = conn.Write(ctx, websocket.MessageText, payload)
					cancel()
				case <-writeCtx.Done():
					return
				}
			}
		}()

		defer func() {
			h.Inbox() <- hub.Disconnect{ConnID: connID}
			logc.Info("client disconnected")
		}()

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var cm protocol.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				outbox <- protocol.ServerMessage{Type: protocol.MsgAck, Error: "bad json"}
				continue
			}

			dispatch(h, connID, outbox, cm, logc)
		}
	}
}

func dispatch(h *hub.Hub, connID string, outbox chan protocol.ServerMessage, cm protocol.ClientMessage, log *zap.Logger) {
	switch cm.Type {
	case protocol.MsgCreateRoom:
		if cm.PlayerName == "" {
			outbox <- nack(cm.Seq, "Invalid player name")
			return
		}
		reply := make(chan hub.CreateReply, 1)
		h.Inbox() <- hub.CreateRoom{ConnID: connID, PlayerName: cm.PlayerName, Outbox: outbox, Reply: reply}
		res := <-reply
		if res.Err != nil {
			outbox <- nack(cm.Seq, "Failed to create room")
			return
		}
		outbox <- protocol.ServerMessage{
			Type: protocol.MsgAck, Seq: cm.Seq, Success: true,
			RoomID: res.RoomID, PlayerID: res.PlayerID, Room: &res.Info,
		}

	case protocol.MsgJoinRoom:
		if cm.PlayerName == "" {
			outbox <- nack(cm.Seq, "Invalid player name")
			return
		}
		reply := make(chan hub.JoinReply, 1)
		h.Inbox() <- hub.JoinRoom{ConnID: connID, RoomID: cm.RoomID, PlayerName: cm.PlayerName, Outbox: outbox, Reply: reply}
		res := <-reply
		if res.Err != nil {
			outbox <- nack(cm.Seq, joinError(res.Err))
			return
		}
		outbox <- protocol.ServerMessage{
			Type: protocol.MsgAck, Seq: cm.Seq, Success: true,
			RoomID: res.RoomID, PlayerID: res.PlayerID, Room: &res.Info,
		}

	default:
		lookup := make(chan hub.LookupReply, 1)
		h.Inbox() <- hub.Lookup{ConnID: connID, Reply: lookup}
		res := <-lookup
		if !res.OK || res.Room == nil {
			// Out-of-sequence message, e.g. a stray playCard after a
			// disconnect. Dropped without an error to any client.
			log.Warn("message without room association", zap.String("type", cm.Type))
			return
		}
		relay(res, outbox, cm)
	}
}

func relay(res hub.LookupReply, outbox chan protocol.ServerMessage, cm protocol.ClientMessage) {
	playerID := res.Ref.PlayerID

	switch cm.Type {
	case protocol.MsgPlayerReady:
		reply := make(chan protocol.RoomInfo, 1)
		res.Room.Inbox() <- room.SetReady{PlayerID: playerID, IsReady: cm.IsReady, Reply: reply}
		<-reply
		outbox <- protocol.ServerMessage{Type: protocol.MsgAck, Seq: cm.Seq, Success: true}

	case protocol.MsgSelectFighter:
		reply := make(chan protocol.RoomInfo, 1)
		res.Room.Inbox() <- room.SelectFighter{PlayerID: playerID, FighterID: cm.FighterID, Reply: reply}
		<-reply
		outbox <- protocol.ServerMessage{Type: protocol.MsgAck, Seq: cm.Seq, Success: true}

	case protocol.MsgPlayCard:
		reply := make(chan struct{}, 1)
		res.Room.Inbox() <- room.PlayCard{PlayerID: playerID, CardID: cm.CardID, TargetID: cm.TargetID, Reply: reply}
		<-reply
		outbox <- protocol.ServerMessage{Type: protocol.MsgAck, Seq: cm.Seq, Success: true}

	case protocol.MsgEndTurn:
		res.Room.Inbox() <- room.EndTurn{PlayerID: playerID}

	case protocol.MsgSyncGameState:
		res.Room.Inbox() <- room.SyncState{PlayerID: playerID, GameState: cm.GameState}

	case protocol.MsgChatMessage:
		res.Room.Inbox() <- room.Chat{PlayerID: playerID, Message: cm.Message}
	}
}

func nack(seq int64, msg string) protocol.ServerMessage {
	return protocol.ServerMessage{Type: protocol.MsgAck, Seq: seq, Error: msg}
}

func joinError(err error) string {
	switch {
	case errors.Is(err, hub.ErrRoomNotFound):
		return "Room not found"
	case errors.Is(err, room.ErrRoomFull):
		return "Room is full"
	default:
		return "Failed to join room"
	}
}

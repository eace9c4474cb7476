package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"cardarena/internal/protocol"
)

var ErrRoomFull = errors.New("room is full")

// StartDelay is the grace between both players readying up and the gameStart
// broadcast, so both clients can render the ready transition before the
// scene swap.
const StartDelay = 500 * time.Millisecond

const maxPlayers = 2

type Msg interface{ isRoomMsg() }

// Join adds a player to the room. Announce controls the playerJoined
// broadcast: joining an existing room announces, creating one does not.
type Join struct {
	ConnID   string
	Name     string
	Announce bool
	Outbox   chan protocol.ServerMessage
	Reply    chan JoinReply
}

type JoinReply struct {
	PlayerID string
	Info     protocol.RoomInfo
	Err      error
}

// Leave removes the player owning ConnID. Reply reports whether the room is
// now empty so the registry can delete it.
type Leave struct {
	ConnID string
	Reply  chan LeaveReply
}

type LeaveReply struct{ Empty bool }

type SetReady struct {
	PlayerID string
	IsReady  bool
	Reply    chan protocol.RoomInfo
}

type SelectFighter struct {
	PlayerID  string
	FighterID string
	Reply     chan protocol.RoomInfo
}

type PlayCard struct {
	PlayerID string
	CardID   string
	TargetID string
	Reply    chan struct{}
}

type EndTurn struct{ PlayerID string }

type SyncState struct {
	PlayerID  string
	GameState json.RawMessage
}

type Chat struct {
	PlayerID string
	Message  string
}

type GetInfo struct{ Reply chan protocol.RoomInfo }

type Shutdown struct{}

// startFired is the internal start-timer message. Fires carrying a stale
// generation are discarded.
type startFired struct{ gen uint64 }

func (Join) isRoomMsg()          {}
func (Leave) isRoomMsg()         {}
func (SetReady) isRoomMsg()      {}
func (SelectFighter) isRoomMsg() {}
func (PlayCard) isRoomMsg()      {}
func (EndTurn) isRoomMsg()       {}
func (SyncState) isRoomMsg()     {}
func (Chat) isRoomMsg()          {}
func (GetInfo) isRoomMsg()       {}
func (Shutdown) isRoomMsg()      {}
func (startFired) isRoomMsg()    {}

type player struct {
	id      string
	connID  string
	name    string
	ready   bool
	fighter string
	outbox  chan protocol.ServerMessage
}

// Room is the per-match actor: it owns the ordered player slots, the ready
// handshake, and all relay fan-out. The server never interprets gameState; it
// only stores and forwards it.
type Room struct {
	code  string
	inbox chan Msg

	players   []*player
	gameState json.RawMessage
	started   bool
	startGen  uint64

	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewRoom(parent context.Context, code string, log *zap.Logger) *Room {
	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		code:   code,
		inbox:  make(chan Msg, 64),
		log:    log.With(zap.String("room", code)),
		ctx:    ctx,
		cancel: cancel,
	}
	go r.loop()
	return r
}

func (r *Room) Inbox() chan<- Msg { return r.inbox }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				msg.Reply <- r.join(msg)

			case Leave:
				msg.Reply <- LeaveReply{Empty: r.leave(msg.ConnID)}

			case SetReady:
				r.setReady(msg.PlayerID, msg.IsReady)
				msg.Reply <- r.info()

			case SelectFighter:
				if p := r.playerByID(msg.PlayerID); p != nil {
					p.fighter = msg.FighterID
					r.broadcast(protocol.ServerMessage{Type: protocol.MsgRoomUpdate, Room: r.infoPtr()})
				}
				msg.Reply <- r.info()

			case PlayCard:
				// Relay only. The server performs no game-logic
				// validation; each client's combat engine is
				// responsible for correctness.
				r.broadcast(protocol.ServerMessage{
					Type:     protocol.MsgCardPlayed,
					PlayerID: msg.PlayerID,
					CardID:   msg.CardID,
					TargetID: msg.TargetID,
				})
				msg.Reply <- struct{}{}

			case EndTurn:
				r.broadcast(protocol.ServerMessage{Type: protocol.MsgTurnEnded, PlayerID: msg.PlayerID})

			case SyncState:
				r.gameState = msg.GameState
				r.broadcastExcept(msg.PlayerID, protocol.ServerMessage{
					Type:      protocol.MsgGameStateUpdate,
					GameState: msg.GameState,
				})

			case Chat:
				name := "Unknown"
				if p := r.playerByID(msg.PlayerID); p != nil {
					name = p.name
				}
				r.broadcast(protocol.ServerMessage{
					Type:       protocol.MsgChatMessage,
					PlayerName: name,
					Message:    msg.Message,
					Timestamp:  time.Now().UnixMilli(),
				})

			case GetInfo:
				msg.Reply <- r.info()

			case startFired:
				if msg.gen == r.startGen && !r.started && r.bothReady() {
					r.started = true
					r.broadcast(protocol.ServerMessage{
						Type:    protocol.MsgGameStart,
						Message: "Both players ready! Starting game...",
					})
				}

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) join(msg Join) JoinReply {
	if len(r.players) >= maxPlayers {
		return JoinReply{Err: ErrRoomFull}
	}

	p := &player{
		id:     fmt.Sprintf("player%d", len(r.players)+1),
		connID: msg.ConnID,
		name:   msg.Name,
		outbox: msg.Outbox,
	}
	r.players = append(r.players, p)
	r.log.Info("player joined", zap.String("player", p.id), zap.String("name", p.name))

	if msg.Announce {
		r.broadcast(protocol.ServerMessage{Type: protocol.MsgPlayerJoined, Room: r.infoPtr()})
	}
	return JoinReply{PlayerID: p.id, Info: r.info()}
}

func (r *Room) leave(connID string) bool {
	for i, p := range r.players {
		if p.connID != connID {
			continue
		}
		r.players = append(r.players[:i], r.players[i+1:]...)
		r.startGen++ // a pending start no longer applies

		if len(r.players) > 0 {
			r.broadcast(protocol.ServerMessage{
				Type:    protocol.MsgPlayerDisconnected,
				Message: fmt.Sprintf("%s has disconnected", p.name),
				Room:    r.infoPtr(),
			})
		}
		r.log.Info("player left", zap.String("player", p.id), zap.Int("remaining", len(r.players)))
		break
	}
	return len(r.players) == 0
}

func (r *Room) setReady(playerID string, isReady bool) {
	p := r.playerByID(playerID)
	if p == nil {
		return
	}
	p.ready = isReady
	r.broadcast(protocol.ServerMessage{Type: protocol.MsgRoomUpdate, Room: r.infoPtr()})

	// Any toggle invalidates a pending start; re-arm only if both are
	// still ready.
	r.startGen++
	if r.bothReady() && !r.started {
		gen := r.startGen
		time.AfterFunc(StartDelay, func() {
			select {
			case r.inbox <- startFired{gen: gen}:
			case <-r.ctx.Done():
			}
		})
	}
}

func (r *Room) bothReady() bool {
	if len(r.players) != maxPlayers {
		return false
	}
	for _, p := range r.players {
		if !p.ready {
			return false
		}
	}
	return true
}

func (r *Room) playerByID(id string) *player {
	for _, p := range r.players {
		if p.id == id {
			return p
		}
	}
	return nil
}

func (r *Room) info() protocol.RoomInfo {
	info := protocol.RoomInfo{
		RoomID:        r.code,
		Players:       make([]protocol.PlayerInfo, 0, len(r.players)),
		IsGameStarted: r.started,
		IsFull:        len(r.players) >= maxPlayers,
		IsReady:       r.bothReady(),
	}
	for _, p := range r.players {
		info.Players = append(info.Players, protocol.PlayerInfo{
			ID:      p.id,
			Name:    p.name,
			IsReady: p.ready,
			Fighter: p.fighter,
		})
	}
	return info
}

func (r *Room) infoPtr() *protocol.RoomInfo {
	info := r.info()
	return &info
}

func (r *Room) broadcast(msg protocol.ServerMessage) {
	r.broadcastExcept("", msg)
}

func (r *Room) broadcastExcept(senderID string, msg protocol.ServerMessage) {
	for _, p := range r.players {
		if p.id == senderID {
			continue
		}
		select {
		case p.outbox <- msg:
		default:
			// Slow consumer; drop the message, not the player.
			r.log.Warn("outbox full, dropping message",
				zap.String("player", p.id), zap.String("type", msg.Type))
		}
	}
}

func (r *Room) shutdown() {
	// Outboxes are owned by their ws handlers; the writers exit with
	// their connections.
	r.players = nil
	r.cancel()
}

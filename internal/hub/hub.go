package hub

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"

	"go.uber.org/zap"

	"cardarena/internal/protocol"
	"cardarena/internal/room"
)

var ErrRoomNotFound = errors.New("room not found")

// PlayerRef is the registry's association from a connection to its room and
// slot.
type PlayerRef struct {
	RoomID   string
	PlayerID string
}

type Msg interface{ isHubMsg() }

type CreateRoom struct {
	ConnID     string
	PlayerName string
	Outbox     chan protocol.ServerMessage
	Reply      chan CreateReply
}

type CreateReply struct {
	RoomID   string
	PlayerID string
	Info     protocol.RoomInfo
	Err      error
}

type JoinRoom struct {
	ConnID     string
	RoomID     string
	PlayerName string
	Outbox     chan protocol.ServerMessage
	Reply      chan JoinReply
}

type JoinReply struct {
	RoomID   string
	PlayerID string
	Info     protocol.RoomInfo
	Err      error
}

// Lookup resolves a connection to its room for relaying in-room messages.
type Lookup struct {
	ConnID string
	Reply  chan LookupReply
}

type LookupReply struct {
	Ref  PlayerRef
	Room *room.Room
	OK   bool
}

type Disconnect struct{ ConnID string }

type Status struct{ Reply chan StatusReply }

type StatusReply struct {
	Rooms   int
	Players int
}

type ShutdownHub struct{}

func (CreateRoom) isHubMsg()  {}
func (JoinRoom) isHubMsg()    {}
func (Lookup) isHubMsg()      {}
func (Disconnect) isHubMsg()  {}
func (Status) isHubMsg()      {}
func (ShutdownHub) isHubMsg() {}

// Hub is the room registry: a single actor owning the code->room and
// conn->player maps. Nothing else mutates them.
type Hub struct {
	inbox  chan Msg
	rooms  map[string]*room.Room
	conns  map[string]PlayerRef
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:  make(chan Msg, 64),
		rooms:  make(map[string]*room.Room),
		conns:  make(map[string]PlayerRef),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- Msg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				msg.Reply <- h.createRoom(msg)

			case JoinRoom:
				msg.Reply <- h.joinRoom(msg)

			case Lookup:
				ref, ok := h.conns[msg.ConnID]
				if !ok {
					msg.Reply <- LookupReply{}
					break
				}
				msg.Reply <- LookupReply{Ref: ref, Room: h.rooms[ref.RoomID], OK: true}

			case Disconnect:
				h.disconnect(msg.ConnID)

			case Status:
				msg.Reply <- StatusReply{Rooms: len(h.rooms), Players: len(h.conns)}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) createRoom(msg CreateRoom) CreateReply {
	var code string
	for {
		c, err := generateCode()
		if err != nil {
			return CreateReply{Err: err}
		}
		if _, taken := h.rooms[c]; !taken {
			code = c
			break
		}
		h.log.Warn("room code collision, regenerating", zap.String("code", c))
	}

	rm := room.NewRoom(h.ctx, code, h.log)
	reply := make(chan room.JoinReply, 1)
	rm.Inbox() <- room.Join{ConnID: msg.ConnID, Name: msg.PlayerName, Outbox: msg.Outbox, Reply: reply}
	jr := <-reply
	if jr.Err != nil {
		// Cannot happen on a fresh room; fail closed anyway.
		rm.Inbox() <- room.Shutdown{}
		return CreateReply{Err: jr.Err}
	}

	h.rooms[code] = rm
	h.conns[msg.ConnID] = PlayerRef{RoomID: code, PlayerID: jr.PlayerID}
	h.log.Info("room created", zap.String("room", code), zap.String("player", msg.PlayerName))

	return CreateReply{RoomID: code, PlayerID: jr.PlayerID, Info: jr.Info}
}

func (h *Hub) joinRoom(msg JoinRoom) JoinReply {
	rm, ok := h.rooms[msg.RoomID]
	if !ok {
		return JoinReply{Err: ErrRoomNotFound}
	}

	reply := make(chan room.JoinReply, 1)
	rm.Inbox() <- room.Join{ConnID: msg.ConnID, Name: msg.PlayerName, Announce: true, Outbox: msg.Outbox, Reply: reply}
	jr := <-reply
	if jr.Err != nil {
		return JoinReply{Err: jr.Err}
	}

	h.conns[msg.ConnID] = PlayerRef{RoomID: msg.RoomID, PlayerID: jr.PlayerID}
	return JoinReply{RoomID: msg.RoomID, PlayerID: jr.PlayerID, Info: jr.Info}
}

func (h *Hub) disconnect(connID string) {
	ref, ok := h.conns[connID]
	if !ok {
		return
	}
	delete(h.conns, connID)

	rm, ok := h.rooms[ref.RoomID]
	if !ok {
		return
	}
	reply := make(chan room.LeaveReply, 1)
	rm.Inbox() <- room.Leave{ConnID: connID, Reply: reply}
	if (<-reply).Empty {
		rm.Inbox() <- room.Shutdown{}
		delete(h.rooms, ref.RoomID)
		h.log.Info("room deleted", zap.String("room", ref.RoomID))
	}
	// A non-empty room stays registered even when the match is dead; the
	// remaining player's disconnect cleans it up.
}

func (h *Hub) shutdown() {
	for _, rm := range h.rooms {
		rm.Inbox() <- room.Shutdown{}
	}
	clear(h.rooms)
	clear(h.conns)
	h.cancel()
}

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generateCode is a var so tests can force collisions.
var generateCode = func() (string, error) {
	code := make([]byte, 6)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", err
		}
		code[i] = codeAlphabet[n.Int64()]
	}
	return string(code), nil
}

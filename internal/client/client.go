package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"cardarena/internal/protocol"
)

var ErrClosed = errors.New("connection closed")

const requestTimeout = 10 * time.Second

// Handlers receives room broadcasts. Nil fields are skipped. Callbacks run on
// the read pump goroutine; don't block in them.
type Handlers struct {
	PlayerJoined       func(room protocol.RoomInfo)
	RoomUpdate         func(room protocol.RoomInfo)
	GameStart          func(message string)
	CardPlayed         func(playerID, cardID, targetID string)
	TurnEnded          func(playerID string)
	GameStateUpdate    func(state json.RawMessage)
	PlayerDisconnected func(message string, room protocol.RoomInfo)
	Chat               func(playerName, message string, timestamp int64)
	Disconnected       func(err error)
}

// Client is the websocket transport for one player. Requests are correlated
// with their acks by seq; each pending request is answered exactly once.
type Client struct {
	conn     *websocket.Conn
	handlers Handlers
	log      *zap.Logger

	mu      sync.Mutex
	seq     int64
	pending map[int64]chan protocol.ServerMessage
	closed  bool

	writeMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

func Dial(ctx context.Context, url string, handlers Handlers, log *zap.Logger) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	cctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		conn:     conn,
		handlers: handlers,
		log:      log,
		pending:  make(map[int64]chan protocol.ServerMessage),
		ctx:      cctx,
		cancel:   cancel,
	}
	go c.readPump()
	return c, nil
}

func (c *Client) Close() {
	c.fail(ErrClosed)
	c.conn.Close(websocket.StatusNormalClosure, "bye")
}

func (c *Client) readPump() {
	for {
		_, data, err := c.conn.Read(c.ctx)
		if err != nil {
			c.fail(err)
			if c.handlers.Disconnected != nil {
				c.handlers.Disconnected(err)
			}
			return
		}

		var msg protocol.ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn("bad server message", zap.Error(err))
			continue
		}
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg protocol.ServerMessage) {
	if msg.Type == protocol.MsgAck {
		c.mu.Lock()
		ch, ok := c.pending[msg.Seq]
		delete(c.pending, msg.Seq)
		c.mu.Unlock()
		if ok {
			ch <- msg
		}
		return
	}

	switch msg.Type {
	case protocol.MsgPlayerJoined:
		if c.handlers.PlayerJoined != nil && msg.Room != nil {
			c.handlers.PlayerJoined(*msg.Room)
		}
	case protocol.MsgRoomUpdate:
		if c.handlers.RoomUpdate != nil && msg.Room != nil {
			c.handlers.RoomUpdate(*msg.Room)
		}
	case protocol.MsgGameStart:
		if c.handlers.GameStart != nil {
			c.handlers.GameStart(msg.Message)
		}
	case protocol.MsgCardPlayed:
		if c.handlers.CardPlayed != nil {
			c.handlers.CardPlayed(msg.PlayerID, msg.CardID, msg.TargetID)
		}
	case protocol.MsgTurnEnded:
		if c.handlers.TurnEnded != nil {
			c.handlers.TurnEnded(msg.PlayerID)
		}
	case protocol.MsgGameStateUpdate:
		if c.handlers.GameStateUpdate != nil {
			c.handlers.GameStateUpdate(msg.GameState)
		}
	case protocol.MsgPlayerDisconnected:
		if c.handlers.PlayerDisconnected != nil && msg.Room != nil {
			c.handlers.PlayerDisconnected(msg.Message, *msg.Room)
		}
	case protocol.MsgChatMessage:
		if c.handlers.Chat != nil {
			c.handlers.Chat(msg.PlayerName, msg.Message, msg.Timestamp)
		}
	default:
		c.log.Debug("unhandled message", zap.String("type", msg.Type))
	}
}

// fail answers every pending request with err and stops the pump.
func (c *Client) fail(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	pending := c.pending
	c.pending = make(map[int64]chan protocol.ServerMessage)
	c.mu.Unlock()

	c.cancel()
	for _, ch := range pending {
		ch <- protocol.ServerMessage{Type: protocol.MsgAck, Error: err.Error()}
	}
}

func (c *Client) send(msg protocol.ClientMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.Write(c.ctx, websocket.MessageText, payload)
}

// request sends msg with a fresh seq and waits for its ack.
func (c *Client) request(ctx context.Context, msg protocol.ClientMessage) (protocol.ServerMessage, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return protocol.ServerMessage{}, ErrClosed
	}
	c.seq++
	msg.Seq = c.seq
	ch := make(chan protocol.ServerMessage, 1)
	c.pending[msg.Seq] = ch
	c.mu.Unlock()

	if err := c.send(msg); err != nil {
		c.mu.Lock()
		delete(c.pending, msg.Seq)
		c.mu.Unlock()
		return protocol.ServerMessage{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	select {
	case ack := <-ch:
		if !ack.Success {
			return ack, fmt.Errorf("request %s: %s", msg.Type, ack.Error)
		}
		return ack, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, msg.Seq)
		c.mu.Unlock()
		return protocol.ServerMessage{}, ctx.Err()
	}
}

func (c *Client) CreateRoom(ctx context.Context, playerName string) (protocol.ServerMessage, error) {
	return c.request(ctx, protocol.ClientMessage{Type: protocol.MsgCreateRoom, PlayerName: playerName})
}

func (c *Client) JoinRoom(ctx context.Context, roomID, playerName string) (protocol.ServerMessage, error) {
	return c.request(ctx, protocol.ClientMessage{Type: protocol.MsgJoinRoom, RoomID: roomID, PlayerName: playerName})
}

func (c *Client) SetReady(ctx context.Context, isReady bool) error {
	_, err := c.request(ctx, protocol.ClientMessage{Type: protocol.MsgPlayerReady, IsReady: isReady})
	return err
}

func (c *Client) SelectFighter(ctx context.Context, fighterID string) error {
	_, err := c.request(ctx, protocol.ClientMessage{Type: protocol.MsgSelectFighter, FighterID: fighterID})
	return err
}

func (c *Client) PlayCard(ctx context.Context, cardID, targetID string) error {
	_, err := c.request(ctx, protocol.ClientMessage{Type: protocol.MsgPlayCard, CardID: cardID, TargetID: targetID})
	return err
}

func (c *Client) EndTurn() error {
	return c.send(protocol.ClientMessage{Type: protocol.MsgEndTurn})
}

func (c *Client) SyncGameState(state protocol.GameStateSync) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return c.send(protocol.ClientMessage{Type: protocol.MsgSyncGameState, GameState: raw})
}

func (c *Client) SendChat(message string) error {
	return c.send(protocol.ClientMessage{Type: protocol.MsgChatMessage, Message: message})
}

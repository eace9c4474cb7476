package protocol

import "encoding/json"

// Client -> server message types.
const (
	MsgCreateRoom    = "createRoom"
	MsgJoinRoom      = "joinRoom"
	MsgPlayerReady   = "playerReady"
	MsgSelectFighter = "selectFighter"
	MsgPlayCard      = "playCard"
	MsgEndTurn       = "endTurn"
	MsgSyncGameState = "syncGameState"
	MsgChatMessage   = "chatMessage"
)

// Server -> client message types. Ack answers a request carrying the same
// seq; the rest are room broadcasts.
const (
	MsgAck                = "ack"
	MsgPlayerJoined       = "playerJoined"
	MsgRoomUpdate         = "roomUpdate"
	MsgGameStart          = "gameStart"
	MsgCardPlayed         = "cardPlayed"
	MsgTurnEnded          = "turnEnded"
	MsgGameStateUpdate    = "gameStateUpdate"
	MsgPlayerDisconnected = "playerDisconnected"
)

// ClientMessage is the wire envelope for everything a client sends. Requests
// that expect an ack carry a non-zero Seq; fire-and-forget messages leave it
// empty.
type ClientMessage struct {
	Type       string          `json:"type"`
	Seq        int64           `json:"seq,omitempty"`
	PlayerName string          `json:"playerName,omitempty"`
	RoomID     string          `json:"roomId,omitempty"`
	IsReady    bool            `json:"isReady,omitempty"`
	FighterID  string          `json:"fighterId,omitempty"`
	CardID     string          `json:"cardId,omitempty"`
	TargetID   string          `json:"targetId,omitempty"`
	Message    string          `json:"message,omitempty"`
	GameState  json.RawMessage `json:"gameState,omitempty"`
}

// ServerMessage is the wire envelope for acks and room broadcasts.
type ServerMessage struct {
	Type       string          `json:"type"`
	Seq        int64           `json:"seq,omitempty"`
	Success    bool            `json:"success,omitempty"`
	Error      string          `json:"error,omitempty"`
	RoomID     string          `json:"roomId,omitempty"`
	PlayerID   string          `json:"playerId,omitempty"`
	Room       *RoomInfo       `json:"room,omitempty"`
	CardID     string          `json:"cardId,omitempty"`
	TargetID   string          `json:"targetId,omitempty"`
	Message    string          `json:"message,omitempty"`
	PlayerName string          `json:"playerName,omitempty"`
	Timestamp  int64           `json:"timestamp,omitempty"`
	GameState  json.RawMessage `json:"gameState,omitempty"`
}

// PlayerInfo is the sanitized per-player view inside a room snapshot. It
// never carries transport-level identifiers.
type PlayerInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IsReady bool   `json:"isReady"`
	Fighter string `json:"fighter,omitempty"`
}

// RoomInfo is the room snapshot shipped in acks and broadcasts.
type RoomInfo struct {
	RoomID        string       `json:"roomId"`
	Players       []PlayerInfo `json:"players"`
	IsGameStarted bool         `json:"isGameStarted"`
	IsFull        bool         `json:"isFull"`
	IsReady       bool         `json:"isReady"`
}

// FighterSync carries the authoritative per-fighter fields mirrored between
// peers. Position is for the rendering surface only.
type FighterSync struct {
	ID       string     `json:"id"`
	Health   int        `json:"health"`
	Position [3]float64 `json:"position"`
}

// GameStateSync is the opaque game snapshot relayed by the server. Seq is a
// monotonically increasing logical clock; receivers discard anything not
// strictly newer than what they already applied.
type GameStateSync struct {
	Seq          int64         `json:"seq"`
	Fighters     []FighterSync `json:"fighters"`
	Phase        string        `json:"phase"`
	CurrentTurn  int           `json:"currentTurn"`
	ActivePlayer string        `json:"activePlayer"`
	TurnTimer    int           `json:"turnTimer,omitempty"`
}

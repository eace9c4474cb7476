package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"cardarena/internal/client"
	"cardarena/internal/combat"
	"cardarena/internal/netsync"
	"cardarena/internal/protocol"
)

// Minimal stand-in for the rendering surface: prints room and combat events
// and turns typed commands into player intents.
type app struct {
	mu       sync.Mutex
	cli      *client.Client
	playerID string
	roomID   string
	room     protocol.RoomInfo
	game     *combat.Game
	sync     *netsync.Synchronizer
	log      *zap.Logger
}

func main() {
	server := flag.String("server", "ws://localhost:3001/ws", "relay server url")
	name := flag.String("name", "Player", "display name")
	join := flag.String("join", "", "room code to join (empty: create a room)")
	fighter := flag.String("fighter", "", "fighter id (ortiz, steve)")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	a := &app{log: logger}

	ctx := context.Background()
	cli, err := client.Dial(ctx, *server, client.Handlers{
		PlayerJoined: func(room protocol.RoomInfo) {
			a.setRoom(room)
			fmt.Printf("* a player joined (%d/2)\n", len(room.Players))
		},
		RoomUpdate: func(room protocol.RoomInfo) {
			a.setRoom(room)
			for _, p := range room.Players {
				fmt.Printf("* %s (%s) ready=%v fighter=%s\n", p.Name, p.ID, p.IsReady, p.Fighter)
			}
		},
		GameStart: func(message string) {
			fmt.Println("*", message)
			a.startGame()
		},
		CardPlayed: func(playerID, cardID, targetID string) {
			if s := a.synchronizer(); s != nil {
				s.HandleCardPlayed(playerID, cardID, targetID)
			}
			fmt.Printf("* %s played %s -> %s\n", playerID, cardID, targetID)
		},
		TurnEnded: func(playerID string) {
			if s := a.synchronizer(); s != nil {
				s.HandleTurnEnded(playerID)
			}
			fmt.Printf("* turn ended (%s)\n", playerID)
		},
		GameStateUpdate: func(state json.RawMessage) {
			if s := a.synchronizer(); s != nil {
				s.HandleGameStateUpdate(state)
			}
		},
		PlayerDisconnected: func(message string, room protocol.RoomInfo) {
			a.setRoom(room)
			fmt.Println("*", message)
		},
		Chat: func(playerName, message string, _ int64) {
			fmt.Printf("[%s] %s\n", playerName, message)
		},
		Disconnected: func(err error) {
			fmt.Println("* disconnected:", err)
			os.Exit(0)
		},
	}, logger)
	if err != nil {
		logger.Fatal("connect failed", zap.Error(err))
	}
	defer cli.Close()
	a.cli = cli

	var ack protocol.ServerMessage
	if *join == "" {
		ack, err = cli.CreateRoom(ctx, *name)
	} else {
		ack, err = cli.JoinRoom(ctx, strings.ToUpper(*join), *name)
	}
	if err != nil {
		logger.Fatal("room setup failed", zap.Error(err))
	}
	a.playerID = ack.PlayerID
	a.roomID = ack.RoomID
	if ack.Room != nil {
		a.setRoom(*ack.Room)
	}
	fmt.Printf("room %s, you are %s\n", a.roomID, a.playerID)

	if *fighter != "" {
		if err := cli.SelectFighter(ctx, *fighter); err != nil {
			logger.Warn("fighter select failed", zap.Error(err))
		}
	}

	a.repl(ctx)
}

func (a *app) setRoom(room protocol.RoomInfo) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.room = room
}

func (a *app) synchronizer() *netsync.Synchronizer {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sync
}

// startGame builds the local engine from the final room snapshot and hooks it
// to the relay through the synchronizer.
func (a *app) startGame() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.game != nil || len(a.room.Players) != 2 {
		return
	}

	defaults := []string{combat.FighterOrtiz, combat.FighterSteve}
	positions := []combat.Position{{X: -5, Y: 3}, {X: 5, Y: 3}}
	players := make([]*combat.Player, 2)
	for i, p := range a.room.Players {
		fighterID := p.Fighter
		if fighterID == "" {
			fighterID = defaults[i]
		}
		players[i] = &combat.Player{
			ID:      p.ID,
			Name:    p.Name,
			Fighter: combat.NewFighter(fighterID, positions[i]),
		}
	}

	a.game = combat.NewGame(players[0], players[1], nil)
	a.sync = netsync.New(a.cli, a.game, a.playerID, nil, a.log)
	fmt.Println("* match started: type 'cards' to see your deck, 'play <n>' to act")
}

func (a *app) repl(ctx context.Context) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "ready":
			a.check(a.cli.SetReady(ctx, true))
		case "unready":
			a.check(a.cli.SetReady(ctx, false))
		case "fighter":
			if len(fields) < 2 {
				fmt.Println("usage: fighter <id>")
				continue
			}
			a.check(a.cli.SelectFighter(ctx, fields[1]))
		case "cards":
			a.printCards()
		case "play":
			if len(fields) < 2 {
				fmt.Println("usage: play <card number>")
				continue
			}
			a.play(ctx, fields[1])
		case "state":
			a.printState()
		case "chat":
			a.check(a.cli.SendChat(strings.Join(fields[1:], " ")))
		case "quit":
			return
		default:
			fmt.Println("commands: ready unready fighter cards play state chat quit")
		}
	}
}

func (a *app) check(err error) {
	if err != nil {
		fmt.Println("error:", err)
	}
}

func (a *app) myFighter() (*combat.Game, combat.Fighter, combat.Fighter, bool) {
	a.mu.Lock()
	game, playerID := a.game, a.playerID
	a.mu.Unlock()
	if game == nil {
		return nil, combat.Fighter{}, combat.Fighter{}, false
	}
	snap := game.Snapshot()
	mine, theirs := snap.Players[0], snap.Players[1]
	if mine.ID != playerID {
		mine, theirs = theirs, mine
	}
	return game, mine.Fighter, theirs.Fighter, true
}

func (a *app) printCards() {
	_, mine, _, ok := a.myFighter()
	if !ok {
		fmt.Println("match has not started")
		return
	}
	for i, c := range mine.Deck {
		fmt.Printf("%d. %s (%s %d) - %s\n", i+1, c.Name, c.Type, c.Damage, c.Description)
	}
}

func (a *app) play(ctx context.Context, arg string) {
	_, mine, theirs, ok := a.myFighter()
	if !ok {
		fmt.Println("match has not started")
		return
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(mine.Deck) {
		fmt.Println("usage: play <card number>")
		return
	}
	card := mine.Deck[n-1]
	targetID := ""
	if card.Type == combat.CardAttack {
		targetID = theirs.ID
	}
	a.check(a.synchronizer().PlayCard(ctx, card.ID, targetID))
}

func (a *app) printState() {
	game, mine, theirs, ok := a.myFighter()
	if !ok {
		fmt.Println("match has not started")
		return
	}
	snap := game.Snapshot()
	fmt.Printf("turn %d, phase %s, active %s\n", snap.Turn, snap.Phase, snap.ActivePlayer)
	fmt.Printf("you:      %s %d/%d\n", mine.Name, mine.Health, mine.MaxHealth)
	fmt.Printf("opponent: %s %d/%d\n", theirs.Name, theirs.Health, theirs.MaxHealth)
}

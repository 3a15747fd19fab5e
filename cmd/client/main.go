package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rocketscienceinc/tictactoe-online/internal/entity"
	"github.com/rocketscienceinc/tictactoe-online/internal/session"
	"github.com/rocketscienceinc/tictactoe-online/transport/client"
)

const help = `commands:
  1-9        play a cell (row by row, top left is 1)
  new        open a room and wait for an opponent
  join CODE  join a room
  reset      start a new game in the same room
  leave      leave the room
  score      show the games played this session
  quit       exit`

// main - plays tic-tac-toe in the terminal, either on one device or against a remote opponent.
func main() {
	server := flag.String("server", "http://localhost:9090", "room server url")
	local := flag.Bool("local", false, "two players on this terminal, no server")
	join := flag.String("join", "", "join the room with this code on start")
	verbose := flag.Bool("v", false, "log session events to stderr")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var game *session.Session
	if *local {
		game = session.NewLocal(logger)
	} else {
		rooms, err := client.New(logger, *server)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bad server url: %v\n", err)
			os.Exit(1)
		}
		game = session.New(logger, rooms)
	}

	game.OnChange(func(state session.State) {
		render(os.Stdout, state)
	})

	fmt.Println(help)
	render(os.Stdout, game.State())

	if *join != "" {
		game.JoinRoom(ctx, *join)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			game.LeaveRoom()
			return
		case line, ok := <-lines:
			if !ok || !execute(ctx, game, line) {
				game.LeaveRoom()
				return
			}
		}
	}
}

// execute - runs one command line; false means quit.
func execute(ctx context.Context, game *session.Session, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}

	switch fields[0] {
	case "quit", "q":
		return false
	case "new", "n":
		game.CreateRoom(ctx)
	case "join", "j":
		if len(fields) < 2 {
			fmt.Println("usage: join CODE")
			return true
		}
		game.JoinRoom(ctx, fields[1])
	case "reset", "r":
		game.ResetGame(ctx)
	case "leave", "l":
		game.LeaveRoom()
	case "score", "s":
		printScore(os.Stdout, game.ScoreBoard())
	default:
		cell, err := strconv.Atoi(fields[0])
		if err != nil || cell < 1 || cell > 9 {
			fmt.Println(help)
			return true
		}
		game.SubmitMove(ctx, cell-1)
	}

	return true
}

func render(w io.Writer, state session.State) {
	var b strings.Builder

	b.WriteString("\n")
	if state.RoomCode != "" {
		fmt.Fprintf(&b, "room %s, you are %s (%s)\n", state.RoomCode, state.Mark, state.Role)
	}

	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			cell := state.Board[row*3+col]
			if cell == entity.EmptyCell {
				fmt.Fprintf(&b, " %d ", row*3+col+1)
			} else {
				fmt.Fprintf(&b, " %s ", cell)
			}
			if col < 2 {
				b.WriteString("|")
			}
		}
		b.WriteString("\n")
		if row < 2 {
			b.WriteString("---+---+---\n")
		}
	}

	b.WriteString(status(state))
	b.WriteString("\n")

	_, _ = io.WriteString(w, b.String())
}

func status(state session.State) string {
	switch state.Phase {
	case session.PhaseIdle:
		return "not in a room, type new or join CODE"
	case session.PhaseCreating:
		return "opening a room..."
	case session.PhaseJoining:
		return "joining..."
	case session.PhaseWaitingForOpponent:
		return fmt.Sprintf("waiting for an opponent, share the code %s", state.RoomCode)
	case session.PhaseFinished:
		switch state.Outcome {
		case entity.OutcomeDraw:
			return "draw, type reset to play again"
		default:
			if state.Mark != entity.EmptyCell && entity.Mark(state.Outcome) == state.Mark {
				return "you win, type reset to play again"
			}
			return fmt.Sprintf("%s wins, type reset to play again", state.Outcome)
		}
	case session.PhaseError:
		return "error: " + state.ErrorMessage
	case session.PhaseActive:
		if state.IsMyTurn() {
			return fmt.Sprintf("%s to move, your turn", state.Turn)
		}
		return fmt.Sprintf("%s to move, waiting for the opponent", state.Turn)
	}

	return string(state.Phase)
}

func printScore(w io.Writer, scores *session.ScoreBoard) {
	tally := scores.Tally()
	fmt.Fprintf(w, "X wins %d, O wins %d, draws %d\n", tally.XWins, tally.OWins, tally.Draws)

	for i, game := range scores.Games() {
		fmt.Fprintf(w, "%2d. %s  %s  %s\n", i+1, game.FinishedAt.Format("15:04:05"), game.RoomCode, game.Outcome)
	}
}

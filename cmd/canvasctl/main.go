package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/srb-saurabh/collaborative-canvas/clients/go/canvas"
	"github.com/srb-saurabh/collaborative-canvas/internal/models"
)

func main() {
	urlFlag := flag.String("url", "ws://localhost:8080/ws", "Server websocket URL")
	roomFlag := flag.String("room", "default", "Room to join")
	nameFlag := flag.String("name", "canvasctl", "Display name")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	client, err := canvas.Dial(ctx, *urlFlag, canvas.Handlers{
		OnInit: func(sessionID string, users []models.User) {
			fmt.Printf("joined as %s, %d member(s) online\n", sessionID, len(users))
		},
		OnRoster: func(users []models.User) {
			names := make([]string, len(users))
			for i, u := range users {
				names[i] = u.Name
			}
			fmt.Printf("members: %s\n", strings.Join(names, ", "))
		},
		OnRender: func(ops []models.Operation) {
			fmt.Printf("canvas: %d active op(s)\n", len(ops))
		},
	})
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	if err := client.Join(*roomFlag, *nameFlag); err != nil {
		fmt.Fprintf(os.Stderr, "Join failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("commands: undo, redo, clear, history, quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		switch strings.TrimSpace(scanner.Text()) {
		case "undo":
			if id, ok := client.UndoLast(); ok {
				fmt.Printf("undo requested for %s\n", id)
			} else {
				fmt.Println("nothing to undo")
			}
		case "redo":
			if id, ok := client.RedoFirst(); ok {
				fmt.Printf("redo requested for %s\n", id)
			} else {
				fmt.Println("nothing to redo")
			}
		case "clear":
			if err := client.Clear(); err != nil {
				fmt.Fprintf(os.Stderr, "Clear failed: %v\n", err)
			}
		case "history":
			for i, op := range client.History() {
				state := "active"
				if !op.Active() {
					state = "undone"
				}
				fmt.Printf("%3d %s %s %d point(s) %s\n", i, op.ID, op.Kind, len(op.Points), state)
			}
		case "quit", "exit":
			return
		case "":
		default:
			fmt.Println("commands: undo, redo, clear, history, quit")
		}

		select {
		case <-client.Done():
			fmt.Fprintln(os.Stderr, "Connection closed")
			os.Exit(1)
		default:
		}
	}
}

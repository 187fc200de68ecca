// Command ws_sketch is an interactive terminal client for a sketchwire
// relay. It signs in, resolves a room, keeps a live reconciler in sync and
// accepts simple drawing commands from stdin.
//
// Commands:
//
//	rect <x> <y> <w> <h>   create a rectangle
//	move <elementId> <x> <y>   move an element
//	del <elementId>        delete an element
//	ls                     list current elements
//	undo / redo            step local history
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	zl "github.com/sketchwire/sketchwire-server/internal/log"

	"github.com/sketchwire/sketchwire-server/internal/client"
	"github.com/sketchwire/sketchwire-server/internal/core"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_sketch: %v", err)
		os.Exit(1)
	}
}

func run() error {
	base := flag.String("addr", "http://localhost:8080", "server base URL")
	email := flag.String("email", "", "account email")
	password := flag.String("password", "", "account password")
	room := flag.String("room", "sketch", "room slug to join")
	cachePath := flag.String("cache", "sketchwire-cache.db", "local snapshot cache path")
	flag.Parse()

	if *email == "" || *password == "" {
		return fmt.Errorf("email and password are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	token, err := signin(ctx, *base, *email, *password)
	if err != nil {
		return fmt.Errorf("signin: %w", err)
	}

	fetcher := client.NewFetcher(*base)
	roomID, err := fetcher.ResolveRoom(ctx, *room)
	if err != nil {
		return fmt.Errorf("resolve room %q: %w", *room, err)
	}

	logger := zl.New("warn")
	rec := client.NewReconciler(roomID, nil, logger)
	socket := client.NewSocket(*base, token, rec, logger)
	rec.SetSender(socket)

	if cache, err := client.OpenCache(*cachePath); err != nil {
		log.Printf("snapshot cache unavailable: %v", err)
	} else {
		defer cache.Close()
		socket.SetCache(cache)
		if cached, err := cache.LoadRoom(roomID); err == nil && cached != nil {
			fmt.Printf("last known state: %d element(s) (refreshing from server)\n", len(cached))
		}
	}

	go func() {
		if err := socket.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("socket stopped: %v", err)
		}
	}()

	fmt.Printf("Joined room %q (#%d). Type 'help' for commands, Ctrl+C to exit.\n", *room, roomID)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		if err := dispatch(ctx, rec, strings.Fields(scanner.Text())); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
	return scanner.Err()
}

func dispatch(ctx context.Context, rec *client.Reconciler, args []string) error {
	if len(args) == 0 {
		return nil
	}
	switch args[0] {
	case "help":
		fmt.Println("rect <x> <y> <w> <h> | move <id> <x> <y> | del <id> | ls | undo | redo")
		return nil
	case "rect":
		if len(args) != 5 {
			return fmt.Errorf("usage: rect <x> <y> <w> <h>")
		}
		coords, err := parseFloats(args[1:])
		if err != nil {
			return err
		}
		return rec.CreateElement(ctx, core.Element{
			Kind:   core.KindRectangle,
			Color:  "#000",
			X:      &coords[0],
			Y:      &coords[1],
			Width:  &coords[2],
			Height: &coords[3],
		})
	case "move":
		if len(args) != 4 {
			return fmt.Errorf("usage: move <elementId> <x> <y>")
		}
		el, ok := findElement(rec, args[1])
		if !ok {
			return fmt.Errorf("no element %q", args[1])
		}
		coords, err := parseFloats(args[2:])
		if err != nil {
			return err
		}
		el.X, el.Y = &coords[0], &coords[1]
		return rec.UpdateElement(ctx, el)
	case "del":
		if len(args) != 2 {
			return fmt.Errorf("usage: del <elementId>")
		}
		el, ok := findElement(rec, args[1])
		if !ok {
			return fmt.Errorf("no element %q", args[1])
		}
		return rec.DeleteElement(ctx, el)
	case "ls":
		for _, el := range rec.Elements() {
			chatID := "-"
			if el.ChatID != nil {
				chatID = strconv.FormatInt(*el.ChatID, 10)
			}
			fmt.Printf("%s  %-10s chatId=%s\n", el.ID, el.Kind, chatID)
		}
		return nil
	case "undo":
		if !rec.Undo() {
			fmt.Println("nothing to undo")
		}
		return nil
	case "redo":
		if !rec.Redo() {
			fmt.Println("nothing to redo")
		}
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func findElement(rec *client.Reconciler, id string) (core.Element, bool) {
	for _, el := range rec.Elements() {
		if el.ID == id {
			return el, true
		}
	}
	return core.Element{}, false
}

func parseFloats(args []string) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("not a number: %q", a)
		}
		out[i] = v
	}
	return out, nil
}

func signin(ctx context.Context, base, email, password string) (string, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/signin", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Token, nil
}

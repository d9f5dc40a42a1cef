// Command wsprobe connects a socket to a running QuizRush server, registers
// a participant, and prints every event it receives. Useful for eyeballing
// game flows during development:
//
//	go run ./scripts/wsprobe -addr localhost:3000 -token <participant token> -session <session id>
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"
)

type frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func main() {
	addr := flag.String("addr", "localhost:3000", "server address")
	token := flag.String("token", "", "participant token from a start endpoint")
	session := flag.String("session", "", "session id to join as a room")
	flag.Parse()

	if *token == "" {
		log.Fatal("-token is required")
	}

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	register, _ := json.Marshal(map[string]interface{}{
		"event": "game:register-participant",
		"payload": map[string]string{
			"token":     *token,
			"sessionId": *session,
		},
	})
	if err := conn.WriteMessage(websocket.TextMessage, register); err != nil {
		log.Fatalf("register failed: %v", err)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				log.Printf("read: %v", err)
				return
			}
			var f frame
			if err := json.Unmarshal(raw, &f); err != nil {
				fmt.Printf("?? %s\n", raw)
				continue
			}
			fmt.Printf("<- %-24s %s\n", f.Event, f.Payload)
		}
	}()

	select {
	case <-done:
	case <-interrupt:
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		<-done
	}
}

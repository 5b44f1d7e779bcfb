package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"log"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"binrush.ai/internal/protocol"
	"binrush.ai/internal/sim/engine"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:3000/v1/ws", "ws url")
		apiURL   = flag.String("api", "http://localhost:3000", "http api base url")
		name     = flag.String("name", "bot", "leaderboard name")
		mistakes = flag.Float64("mistakes", 0.05, "probability of routing an item to a wrong bin")
		maxGame  = flag.Duration("max", 3*time.Minute, "submit and stop after this long even if still alive")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		Name:            *name,
	}); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	var (
		sessionID string
		deadline  time.Time
		sent      = map[string]bool{}
	)
	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			sessionID = w.SessionID
			deadline = time.Now().Add(*maxGame)
			logger.Printf("WELCOME started_at=%d spawn=%v queue=%d", w.StartedAt, w.Config.SpawnIntervalMs, w.Config.MaxSpawnQueue)

		case protocol.TypeSnapshot:
			var snap protocol.SnapshotMsg
			if err := json.Unmarshal(msg, &snap); err != nil {
				continue
			}
			st := snap.State
			if st.Lost || time.Now().After(deadline) {
				logger.Printf("game over score=%d reason=%q", st.Score, st.Reason)
				submit(logger, *apiURL, sessionID, *name, st.Score)
				return
			}
			for _, it := range st.SpawnQueue {
				if sent[it.ID] {
					continue
				}
				sent[it.ID] = true
				_ = conn.WriteJSON(protocol.MoveMsg{
					Type:            protocol.TypeMove,
					ProtocolVersion: protocol.Version,
					Category:        string(route(it.Category, *mistakes)),
					ItemID:          it.ID,
				})
			}

		case protocol.TypeError:
			var e protocol.ErrorMsg
			_ = json.Unmarshal(msg, &e)
			logger.Printf("ERROR %s: %s", e.Code, e.Message)
		}
	}
}

func route(c engine.Category, mistakes float64) engine.Category {
	if rand.Float64() >= mistakes {
		return c
	}
	return engine.Categories[rand.IntN(len(engine.Categories))]
}

func submit(logger *log.Logger, apiURL, sessionID, name string, score int) {
	body, _ := json.Marshal(protocol.SubmitRequest{SessionID: sessionID, Name: name, Score: score})
	u := strings.TrimRight(apiURL, "/") + "/api/leaderboard"
	cl := &http.Client{Timeout: 10 * time.Second}
	resp, err := cl.Post(u, "application/json", bytes.NewReader(body))
	if err != nil {
		logger.Printf("submit: %v", err)
		return
	}
	defer resp.Body.Close()
	var out protocol.SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		logger.Printf("submit: status=%d decode: %v", resp.StatusCode, err)
		return
	}
	switch {
	case out.OK:
		logger.Printf("ranked id=%d", out.ID)
	case out.Reason != "":
		logger.Printf("rejected: %s", out.Reason)
	case out.MinimumToBeat != nil:
		logger.Printf("not ranked; need %d", *out.MinimumToBeat)
	default:
		logger.Printf("not ranked")
	}
}

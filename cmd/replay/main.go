package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	persistlog "binrush.ai/internal/persistence/log"
	"binrush.ai/internal/sim/engine"
	"binrush.ai/internal/sim/tuning"
)

func main() {
	var (
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "tuning the games were played with")
		gameID     = flag.String("game", "", "print the timeline of one game")
	)
	flag.Parse()

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		tune = tuning.Defaults()
	}

	files, err := persistlog.ListFiles(filepath.Join(*dataDir, "events"), "events")
	if err != nil {
		fmt.Fprintln(os.Stderr, "list events:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no events files found under", *dataDir)
		os.Exit(1)
	}

	v := newVerifier(tune)
	for _, path := range files {
		err := persistlog.ReadJSONL(path, func(line []byte) error {
			var ev engine.Event
			if err := json.Unmarshal(line, &ev); err != nil {
				return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
			}
			if *gameID != "" && ev.GameID == *gameID {
				printEvent(ev)
			}
			v.Apply(ev)
			return nil
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
	}

	games := v.Games()
	sort.Slice(games, func(i, j int) bool { return games[i].Started.Before(games[j].Started) })
	bad := 0
	for _, g := range games {
		if *gameID != "" && g.ID != *gameID {
			continue
		}
		status := "ok"
		if len(g.Problems) > 0 {
			status = fmt.Sprintf("%d problem(s)", len(g.Problems))
			bad++
		}
		fmt.Printf("game=%s spawns=%d placed=%d misrouted=%d score=%d lost=%q %s\n",
			g.ID, g.Spawns, g.Placed, g.Misrouted, g.Score, g.LossReason, status)
		for _, p := range g.Problems {
			fmt.Printf("  - %s\n", p)
		}
	}
	if bad > 0 {
		os.Exit(1)
	}
	fmt.Printf("replay ok: games=%d\n", len(games))
}

func printEvent(ev engine.Event) {
	fmt.Printf("%s %-10s score=%-4d", ev.At.UTC().Format("15:04:05.000"), ev.Kind, ev.Score)
	if ev.Category != "" {
		fmt.Printf(" bin=%s", ev.Category)
	}
	if ev.ItemID != "" {
		fmt.Printf(" item=%s", ev.ItemID)
	}
	if ev.Misrouted {
		fmt.Printf(" misrouted")
	}
	if ev.Depth > 0 {
		fmt.Printf(" depth=%d", ev.Depth)
	}
	if ev.Cleared > 0 {
		fmt.Printf(" cleared=%d", ev.Cleared)
	}
	if ev.Detail != "" {
		fmt.Printf(" %s", ev.Detail)
	}
	fmt.Println()
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"binrush.ai/internal/leaderboard"
)

func openBoard(path string, limit int) *leaderboard.SQLite {
	path = strings.TrimSpace(path)
	if path == "" {
		fmt.Fprintln(os.Stderr, "missing -db")
		os.Exit(2)
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "db:", err)
		os.Exit(1)
	}
	st, err := leaderboard.OpenSQLite(path, leaderboard.Options{Limit: limit})
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	return st
}

func topCmd(args []string) {
	fs := flag.NewFlagSet("top", flag.ExitOnError)
	dbPath := fs.String("db", "./data/leaderboard.db", "sqlite leaderboard path")
	limit := fs.Int("limit", leaderboard.DefaultLimit, "board size")
	asJSON := fs.Bool("json", false, "print JSON instead of a table")
	_ = fs.Parse(args)

	st := openBoard(*dbPath, *limit)
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	top, err := st.Top(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(top)
		return
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSCORE\tNAME\tID\tCREATED")
	for i, e := range top {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%d\t%s\n", i+1, e.Score, e.Name, e.ID, e.CreatedAt.Format(time.RFC3339))
	}
	_ = tw.Flush()
}

func clearCmd(args []string) {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	dbPath := fs.String("db", "./data/leaderboard.db", "sqlite leaderboard path")
	yes := fs.Bool("yes", false, "confirm")
	_ = fs.Parse(args)

	if !*yes {
		fmt.Fprintln(os.Stderr, "refusing to clear without -yes")
		os.Exit(2)
	}
	st := openBoard(*dbPath, leaderboard.DefaultLimit)
	defer st.Close()
	if err := st.Clear(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "clear:", err)
		os.Exit(1)
	}
	fmt.Println("cleared")
}

package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// remoteClearCmd asks a running server to clear its board. The server only
// honours this from loopback.
func remoteClearCmd(args []string) {
	fs := flag.NewFlagSet("remote-clear", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:3000", "server base url")
	_ = fs.Parse(args)

	u := strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/admin/v1/leaderboard"
	req, _ := http.NewRequest(http.MethodDelete, u, nil)
	cl := &http.Client{Timeout: 10 * time.Second}
	resp, err := cl.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(strings.TrimSpace(string(b)))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}

package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// stateCmd fetches /admin/v1/state from a running server. The endpoint only
// answers loopback clients.
func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	timeout := fs.Duration("timeout", 5*time.Second, "request timeout")
	_ = fs.Parse(args)

	body, err := fetchState(strings.TrimSpace(*baseURL), *timeout)
	if err != nil {
		fail(1, "state:", err)
	}
	var out bytes.Buffer
	if json.Indent(&out, body, "", "  ") != nil {
		out.Reset()
		out.Write(body)
	}
	fmt.Println(out.String())
}

func fetchState(baseURL string, timeout time.Duration) ([]byte, error) {
	cl := &http.Client{Timeout: timeout}
	resp, err := cl.Get(strings.TrimRight(baseURL, "/") + "/admin/v1/state")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return b, nil
}

// Command smoke probes a running timetable API instance and reports
// per-endpoint status, for use after deploys.
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

type target struct {
	method   string
	path     string
	critical bool
}

var targets = []target{
	{method: http.MethodGet, path: "/health", critical: true},
	{method: http.MethodGet, path: "/ready", critical: true},
	{method: http.MethodGet, path: "/metrics", critical: false},
	{method: http.MethodGet, path: "/api/v1/terms", critical: true},
	{method: http.MethodGet, path: "/api/v1/teachers", critical: true},
	{method: http.MethodGet, path: "/api/v1/subjects", critical: true},
	{method: http.MethodGet, path: "/api/v1/classes", critical: true},
	{method: http.MethodGet, path: "/api/v1/classrooms", critical: true},
	{method: http.MethodGet, path: "/api/v1/courses", critical: true},
}

func main() {
	var (
		base    string
		timeout time.Duration
	)
	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	client := &http.Client{Timeout: timeout}
	failed := 0

	for _, t := range targets {
		status, err := probe(client, t.method, strings.TrimRight(base, "/")+t.path)
		switch {
		case err != nil:
			fmt.Printf("FAIL %-40s %v\n", t.path, err)
		case status >= 500:
			fmt.Printf("FAIL %-40s status=%d\n", t.path, status)
		default:
			fmt.Printf("ok   %-40s status=%d\n", t.path, status)
			continue
		}
		if t.critical {
			failed++
		}
	}

	if failed > 0 {
		fmt.Printf("%d critical endpoint(s) failing\n", failed)
		os.Exit(1)
	}
}

func probe(client *http.Client, method, url string) (int, error) {
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

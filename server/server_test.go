package server

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"irqwatch/engine"
	"irqwatch/output"
	"irqwatch/script"
	"irqwatch/sim"
)

func TestConsoleSession(t *testing.T) {
	m := sim.New(sim.Options{})
	srv := New(func(out *output.Console) *script.Env {
		cfg := engine.DefaultConfig()
		return script.New(m, &cfg, out)
	})

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := lis.Addr().String()
	lis.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, addr) }()

	var conn net.Conn
	deadline := time.Now().Add(2 * time.Second)
	for {
		conn, err = net.Dial("tcp", addr)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("HELP\nBOGUS\nQUIT\n")); err != nil {
		t.Fatal(err)
	}

	var lines []string
	scan := bufio.NewScanner(conn)
	for scan.Scan() {
		lines = append(lines, scan.Text())
	}
	all := strings.Join(lines, "\n")

	if !strings.Contains(all, "Welcome, type HELP") {
		t.Errorf("no banner:\n%s", all)
	}
	if !strings.Contains(all, "WIRQ <seconds>") {
		t.Errorf("HELP output missing:\n%s", all)
	}
	if !strings.Contains(all, "Unknown keyword: `BOGUS'") {
		t.Errorf("error reporting missing:\n%s", all)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("serve returned %v", err)
	}
}

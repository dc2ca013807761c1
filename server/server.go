// Package server exposes the script interpreter over a TCP console:
// every connection gets its own interpreter and receives the output of
// the commands it runs.
package server

import (
	"bufio"
	"context"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"

	"irqwatch/engine/log"
	"irqwatch/output"
	"irqwatch/script"
)

var modRPC = log.NewModule("rpc")

// Server accepts console connections. Commands from all connections are
// serialized: they drive one shared target, and only one observation
// session can own the vector table at a time.
type Server struct {
	mkEnv func(out *output.Console) *script.Env

	mu sync.Mutex
}

// New builds a server; mkEnv produces a fresh interpreter writing to
// the given sink, one per connection.
func New(mkEnv func(out *output.Console) *script.Env) *Server {
	return &Server{mkEnv: mkEnv}
}

// ListenAndServe serves consoles on addr until ctx is canceled. In-
// flight connections are waited for on the way out.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	lis, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	modRPC.InfoZ("console listening").
		String("addr", lis.Addr().String()).
		End()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		lis.Close()
		return nil
	})
	g.Go(func() error {
		for {
			conn, err := lis.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			g.Go(func() error {
				s.handle(conn)
				return nil
			})
		}
	})
	return g.Wait()
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	modRPC.InfoZ("connection opened").
		String("remote", conn.RemoteAddr().String()).
		End()

	out := output.New(conn)
	env := s.mkEnv(out)
	out.Printf("Welcome, type HELP for a list of commands")

	scan := bufio.NewScanner(conn)
	for line := 1; scan.Scan(); line++ {
		s.mu.Lock()
		cont := env.Interpret(scan.Text(), line)
		s.mu.Unlock()
		if !cont {
			break
		}
	}

	modRPC.InfoZ("connection closed").
		String("remote", conn.RemoteAddr().String()).
		End()
}

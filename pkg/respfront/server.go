// Package respfront is a supplemental RESP (Redis wire protocol) ingress over the same Router used by the
// HTTP ingress: PING, GET, and SET against a single key/value pair. It exists so the core can be exercised
// with any Redis client during local development; the HTTP contract remains the system of record.
package respfront

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tidwall/redcon"

	"github.com/shoalkv/shoal/pkg/router"
)

// command is one parsed RESP request.
type command struct {
	name string
	args [][]byte
}

// output is what to write back to the client connection.
type output struct {
	closeConnection bool
	writeNil        bool
	err             *string
	writeBytes      []byte
}

func writeNil() output            { return output{writeNil: true} }
func writeString(s string) output { return output{writeBytes: []byte(s)} }
func writeBytes(b []byte) output  { return output{writeBytes: b} }
func closeConn(msg string) output { return output{writeBytes: []byte(msg), closeConnection: true} }

func writeErr(err error) output {
	msg := "ERR " + err.Error()
	return output{err: &msg}
}

// Handler dispatches RESP commands against a Router.
type Handler struct {
	router *router.Router
}

// NewHandler builds a Handler bound to r.
func NewHandler(r *router.Router) (*Handler, error) {
	if r == nil {
		return nil, errors.New("respfront: router must not be nil")
	}
	return &Handler{router: r}, nil
}

func (h *Handler) handle(ctx context.Context, cmd command) output {
	switch cmd.name {
	case "PING":
		return writeString("PONG")
	case "QUIT":
		return closeConn("OK")
	case "SET":
		if len(cmd.args) != 2 {
			return writeErr(errors.New("wrong number of arguments for 'SET' command"))
		}
		key, value := string(cmd.args[0]), string(cmd.args[1])
		if err := h.router.Put(ctx, []router.Entry{{Key: key, Values: []string{value}}}); err != nil {
			return writeErr(err)
		}
		return writeString("OK")
	case "GET":
		if len(cmd.args) != 1 {
			return writeErr(errors.New("wrong number of arguments for 'GET' command"))
		}
		results, err := h.router.Get(ctx, []string{string(cmd.args[0])})
		if err != nil {
			return writeErr(err)
		}
		if !results[0].Found {
			return writeNil()
		}
		return writeBytes([]byte(results[0].Value))
	default:
		return writeErr(fmt.Errorf("unknown command %q", cmd.name))
	}
}

// Server wraps a redcon server speaking a small subset of RESP against a Router.
type Server struct {
	inner   *redcon.Server
	handler *Handler
}

// New builds a Server listening on addr.
func New(addr string, r *router.Router) (*Server, error) {
	handler, err := NewHandler(r)
	if err != nil {
		return nil, err
	}

	s := &Server{handler: handler}
	s.inner = redcon.NewServerNetwork("tcp", addr,
		func(conn redcon.Conn, raw redcon.Command) {
			cmd := command{
				name: strings.ToUpper(string(raw.Args[0])),
				args: raw.Args[1:],
			}
			out := handler.handle(context.Background(), cmd)
			switch {
			case out.closeConnection:
				conn.WriteBulk(out.writeBytes)
				if err := conn.Close(); err != nil {
					slog.Error("respfront: failed to close connection", "error", err)
				}
			case out.writeNil:
				conn.WriteNull()
			case out.err != nil:
				conn.WriteError(*out.err)
			default:
				conn.WriteBulk(out.writeBytes)
			}
		},
		func(conn redcon.Conn) bool {
			slog.Info("respfront: accepting connection", "addr", conn.NetConn().RemoteAddr().String())
			return true
		},
		func(conn redcon.Conn, err error) {},
	)
	return s, nil
}

// ListenAndServe blocks serving RESP connections until Close is called.
func (s *Server) ListenAndServe() error {
	return s.inner.ListenAndServe()
}

// Close stops the server.
func (s *Server) Close() error {
	return s.inner.Close()
}

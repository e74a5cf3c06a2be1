// Package net is the networking collaborator named in SPEC_FULL.md §3
// "internal/stdlib/net": a `net` built-in module exposing a
// `websocket_dial`/`websocket_serve` pair wrapping
// github.com/gorilla/websocket. Grounded on the teacher's
// internal/network/websocket.go (WebSocketConn/WebSocketServer bookkeeping,
// the messagesCh reader goroutine) and websocket_server.go (upgrade +
// per-connection handler dispatch), rewritten against this tree's
// object.Type/Slots dispatch: connections and servers are objects with
// getattr-dispatched bound methods instead of the teacher's free
// ws_*(conn_id, ...) builtins addressing a package-global connection table.
package net

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"kvm/internal/object"
	"kvm/internal/vm"
	"kvm/internal/vmerr"
)

// ConnType is the type of a dialed or accepted WebSocket connection.
var ConnType = object.NewType("ws_connection", object.ObjectType)

// ServerType is the type websocket_serve() returns: a handle to stop
// listening.
var ServerType = object.NewType("ws_server", object.ObjectType)

type Conn struct {
	object.Header
	conn   *websocket.Conn
	mu     sync.Mutex
	closed bool
	msgs   chan []byte
}

func wrapConn(c *websocket.Conn) *Conn {
	wc := &Conn{Header: object.NewHeader(ConnType), conn: c, msgs: make(chan []byte, 100)}
	go wc.readLoop()
	return wc
}

func (c *Conn) readLoop() {
	defer close(c.msgs)
	for {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}
		typ, msg, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.closed = true
			c.mu.Unlock()
			return
		}
		if typ == websocket.TextMessage || typ == websocket.BinaryMessage {
			select {
			case c.msgs <- msg:
			default:
				<-c.msgs
				c.msgs <- msg
			}
		}
	}
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) send(args []object.Object) (object.Object, object.Object) {
	if c.isClosed() {
		return nil, object.NewException(vmerr.ValError, "websocket connection is closed")
	}
	if len(args) != 1 {
		return nil, object.NewException(vmerr.ArgError, "send() takes exactly 1 argument")
	}
	s, ok := args[0].(*object.Str)
	if !ok {
		return nil, object.NewException(vmerr.TypeError, "send() argument must be a string")
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(s.Value())); err != nil {
		return nil, object.NewException(vmerr.OSError, err.Error())
	}
	return object.NoneVal, nil
}

func (c *Conn) sendBinary(args []object.Object) (object.Object, object.Object) {
	if c.isClosed() {
		return nil, object.NewException(vmerr.ValError, "websocket connection is closed")
	}
	if len(args) != 1 {
		return nil, object.NewException(vmerr.ArgError, "send_binary() takes exactly 1 argument")
	}
	b, ok := args[0].(*object.Bytes)
	if !ok {
		return nil, object.NewException(vmerr.TypeError, "send_binary() argument must be bytes")
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, b.Value()); err != nil {
		return nil, object.NewException(vmerr.OSError, err.Error())
	}
	return object.NoneVal, nil
}

// receive(timeout_seconds) blocks for the next message or returns none on
// timeout, matching the teacher's WebSocketReceive select-over-channel.
func (c *Conn) receive(args []object.Object) (object.Object, object.Object) {
	if len(args) != 1 {
		return nil, object.NewException(vmerr.ArgError, "receive() takes exactly 1 argument")
	}
	secs, exc := toFloat(args[0])
	if exc != nil {
		return nil, exc
	}
	select {
	case msg, ok := <-c.msgs:
		if !ok {
			return nil, object.NewException(vmerr.OSError, "websocket connection closed")
		}
		return object.NewStr(string(msg)), nil
	case <-time.After(time.Duration(secs * float64(time.Second))):
		return object.NoneVal, nil
	}
}

func (c *Conn) ping(args []object.Object) (object.Object, object.Object) {
	if c.isClosed() {
		return nil, object.NewException(vmerr.ValError, "websocket connection is closed")
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
		return nil, object.NewException(vmerr.OSError, err.Error())
	}
	return object.NoneVal, nil
}

func (c *Conn) close(args []object.Object) (object.Object, object.Object) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return object.NoneVal, nil
	}
	c.closed = true
	c.mu.Unlock()
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err := c.conn.Close(); err != nil {
		return nil, object.NewException(vmerr.OSError, err.Error())
	}
	return object.NoneVal, nil
}

func init() {
	ConnType.Methods = map[string]object.Object{
		"send":        object.NewNative("send", boundConn((*Conn).send)),
		"send_binary": object.NewNative("send_binary", boundConn((*Conn).sendBinary)),
		"receive":     object.NewNative("receive", boundConn((*Conn).receive)),
		"ping":        object.NewNative("ping", boundConn((*Conn).ping)),
		"close":       object.NewNative("close", boundConn((*Conn).close)),
	}
	ServerType.Methods = map[string]object.Object{
		"close": object.NewNative("close", boundServer((*Server).close)),
	}
}

func boundConn(fn func(*Conn, []object.Object) (object.Object, object.Object)) object.NativeFn {
	return func(args []object.Object) (object.Object, object.Object) {
		if len(args) < 1 {
			return nil, object.NewException(vmerr.InternalError, "websocket method called with no receiver")
		}
		c, ok := args[0].(*Conn)
		if !ok {
			return nil, object.NewException(vmerr.TypeError, "websocket method called on a non-connection value")
		}
		return fn(c, args[1:])
	}
}

// Server is the handle websocket_serve() returns: an HTTP server upgrading
// every request to a WebSocket and dispatching it to a script-level
// handler callable (spec §4.4's "func" object protocol), one goroutine per
// connection, matching the teacher's WebSocketListen/per-client handler.
type Server struct {
	object.Header
	httpServer *http.Server
	mu         sync.Mutex
	closed     bool
}

func boundServer(fn func(*Server, []object.Object) (object.Object, object.Object)) object.NativeFn {
	return func(args []object.Object) (object.Object, object.Object) {
		if len(args) < 1 {
			return nil, object.NewException(vmerr.InternalError, "websocket server method called with no receiver")
		}
		s, ok := args[0].(*Server)
		if !ok {
			return nil, object.NewException(vmerr.TypeError, "method called on a non-server value")
		}
		return fn(s, args[1:])
	}
}

func (s *Server) close(args []object.Object) (object.Object, object.Object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return object.NoneVal, nil
	}
	s.closed = true
	if err := s.httpServer.Close(); err != nil {
		return nil, object.NewException(vmerr.OSError, err.Error())
	}
	return object.NoneVal, nil
}

func toFloat(o object.Object) (float64, object.Object) {
	switch v := o.(type) {
	case *object.Float:
		return v.Val, nil
	case *object.Int:
		return float64(v.Val.Int64()), nil
	default:
		return 0, object.NewException(vmerr.TypeError, "expected a number")
	}
}

// Module builds the "net" built-in module. dial opens a client connection;
// serve starts a listener calling handler(conn) per accepted connection,
// on its own goroutine via the shared interpreter, matching spec §5's
// thread-per-connection concurrency story.
func Module(interp *vm.Interpreter) *object.Module {
	mod := object.NewModule("net", "<builtin net>")

	mod.Set("websocket_dial", object.NewNative("websocket_dial", func(args []object.Object) (object.Object, object.Object) {
		if len(args) != 1 {
			return nil, object.NewException(vmerr.ArgError, "websocket_dial(url) takes exactly 1 argument")
		}
		url, ok := args[0].(*object.Str)
		if !ok {
			return nil, object.NewException(vmerr.TypeError, "websocket_dial() argument must be a string")
		}
		dialer := websocket.DefaultDialer
		dialer.HandshakeTimeout = 10 * time.Second
		c, _, err := dialer.Dial(url.Value(), nil)
		if err != nil {
			return nil, object.NewException(vmerr.OSError, fmt.Sprintf("websocket dial failed: %v", err))
		}
		return wrapConn(c), nil
	}))

	mod.Set("websocket_serve", object.NewNative("websocket_serve", func(args []object.Object) (object.Object, object.Object) {
		if len(args) != 2 {
			return nil, object.NewException(vmerr.ArgError, "websocket_serve(address, handler) takes exactly 2 arguments")
		}
		addr, ok := args[0].(*object.Str)
		if !ok {
			return nil, object.NewException(vmerr.TypeError, "websocket_serve() address must be a string")
		}
		handler := args[1]

		upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
		mux := http.NewServeMux()
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			raw, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			conn := wrapConn(raw)
			go func() {
				th := object.NewThread("websocket-handler")
				if _, exc := interp.Call(th, handler, []object.Object{conn}); exc != nil {
					conn.close(nil)
				}
			}()
		})

		httpServer := &http.Server{Addr: addr.Value(), Handler: mux}
		srv := &Server{Header: object.NewHeader(ServerType), httpServer: httpServer}
		go httpServer.ListenAndServe()
		return srv, nil
	}))

	return mod
}

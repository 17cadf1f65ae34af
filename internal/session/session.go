// Package session is the Session Driver: it accepts TCP connections and
// runs a sequential read-parse-execute-write loop on each one, concurrently
// across connections, against a shared Store.
package session

import (
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/mshaverdo/kvd/internal/command"
	"github.com/mshaverdo/kvd/internal/exec"
	"github.com/mshaverdo/kvd/internal/resp"
	"github.com/mshaverdo/kvd/internal/store"
	"github.com/mshaverdo/kvd/log"
)

// Server listens for connections and serves each one concurrently against
// a shared Store.
type Server struct {
	host     string
	port     int
	store    *store.Store
	listener net.Listener
	stopChan chan struct{}
}

// New returns a new Server bound to host:port, serving s.
func New(host string, port int, s *store.Store) *Server {
	return &Server{
		host:     host,
		port:     port,
		store:    s,
		stopChan: make(chan struct{}),
	}
}

// ListenAndServe opens the listening socket and accepts connections until
// Stop is called or an unrecoverable accept error occurs.
func (srv *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", srv.host, srv.port)
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("session: listen on %s: %w", addr, err)
	}
	srv.listener = l

	log.Noticef("listening on %s", addr)

	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-srv.stopChan:
				return nil
			default:
				return fmt.Errorf("session: accept: %w", err)
			}
		}
		go srv.serve(conn)
	}
}

// Stop closes the listening socket, causing ListenAndServe to return.
// In-flight connections are not forcibly closed.
func (srv *Server) Stop() error {
	close(srv.stopChan)
	if srv.listener != nil {
		return srv.listener.Close()
	}
	return nil
}

// serve runs the read-parse-execute-write loop for one connection until a
// protocol error or EOF, per spec.md §7: protocol errors close the
// connection silently; command and type errors are written back and the
// session continues.
func (srv *Server) serve(conn net.Conn) {
	defer conn.Close()

	remote := conn.RemoteAddr()
	log.Infof("connection opened: %s", remote)
	defer log.Infof("connection closed: %s", remote)

	reader := resp.NewReader(conn)
	writer := resp.NewWriter(conn)

	for {
		elems, err := reader.ReadRequest()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debugf("%s: protocol error, closing connection: %s", remote, err)
			}
			return
		}

		reply := srv.handle(elems)

		if err := writer.WriteReply(reply); err != nil {
			log.Debugf("%s: write failed, closing connection: %s", remote, err)
			return
		}
	}
}

func (srv *Server) handle(elems []string) resp.Reply {
	cmd, err := command.Parse(elems)
	if err != nil {
		return resp.Error(err.Error())
	}
	return exec.Execute(cmd, srv.store)
}

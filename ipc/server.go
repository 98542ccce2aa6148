package ipc

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"

	"scribe/log"
	"scribe/record"
)

// Controller is the session surface the server drives. The orchestrator
// satisfies it.
type Controller interface {
	Start() error
	Stop()
	Cancel()
	Toggle() error
	Phase() record.Phase
}

// Server accepts NDJSON commands on a Unix socket and dispatches them to the
// controller. Stop is synchronous on the controller side (it includes the
// recognition tail), so each connection is served on its own goroutine.
type Server struct {
	path     string
	ctrl     Controller
	listener net.Listener

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewServer(path string, ctrl Controller) *Server {
	return &Server{path: path, ctrl: ctrl}
}

// Listen binds the socket, replacing a stale file from a previous run.
func (s *Server) Listen() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	l, err := net.Listen("unix", s.path)
	if err != nil {
		return err
	}
	s.listener = l
	return nil
}

// Serve accepts connections until Close. Blocks; run on its own goroutine.
func (s *Server) Serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return
			}
			log.Warnf("ipc accept: %v", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(conn)
		}()
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var cmd Command
		if err := json.Unmarshal(scanner.Bytes(), &cmd); err != nil {
			s.reply(conn, Response{Error: "malformed command: " + err.Error()})
			continue
		}
		s.reply(conn, s.dispatch(cmd))
	}
}

func (s *Server) dispatch(cmd Command) Response {
	switch cmd.Cmd {
	case CmdStart:
		if err := s.ctrl.Start(); err != nil {
			return Response{Phase: s.ctrl.Phase().String(), Error: err.Error()}
		}
	case CmdStop:
		s.ctrl.Stop()
	case CmdCancel:
		s.ctrl.Cancel()
	case CmdToggle:
		if err := s.ctrl.Toggle(); err != nil {
			return Response{Phase: s.ctrl.Phase().String(), Error: err.Error()}
		}
	case CmdStatus:
		// Phase alone answers it.
	default:
		return Response{Error: "unknown command: " + cmd.Cmd}
	}
	return Response{OK: true, Phase: s.ctrl.Phase().String()}
}

func (s *Server) reply(conn net.Conn, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	conn.Write(append(data, '\n'))
}

// Close stops accepting, waits for in-flight connections, and removes the
// socket file.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	os.Remove(s.path)
}

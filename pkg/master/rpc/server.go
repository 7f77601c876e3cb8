package rpc

import (
	"errors"
	"io"
	"net"
	"sync"

	"github.com/kerngraph/kerndb/pkg/master"
	"github.com/kerngraph/kerndb/pkg/walog"
)

// Server accepts replica connections and serves Coordinator diagnostics
// and commits over the length-prefixed gob frames defined in rpc.go. Grounded on
// pkg/bolt.Server's net.Listen/Accept/handleConnection shape, trimmed
// to this module's one RPC surface.
type Server struct {
	coord  *master.Coordinator
	logger walog.Logger
	auth   *master.Authenticator

	mu       sync.Mutex
	listener net.Listener
	closed   bool
}

func NewServer(coord *master.Coordinator, logger walog.Logger) *Server {
	if logger == nil {
		logger = walog.NopLogger{}
	}
	return &Server{coord: coord, logger: logger}
}

// WithAuthenticator gates every future connection on auth's cluster
// secret via a challenge/response handshake before serving any
// Request. A Server with no Authenticator serves unauthenticated,
// matching a single-process test setup or a trusted network.
func (s *Server) WithAuthenticator(auth *master.Authenticator) *Server {
	s.auth = auth
	return s
}

// ListenAndServe binds addr and serves connections until Close is
// called. It blocks the calling goroutine, matching pkg/bolt.Server's
// ListenAndServe contract.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	return s.serve(ln)
}

func (s *Server) serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() {
				return nil
			}
			return err
		}
		go s.handleConnection(conn)
	}
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close stops accepting new connections. It closes only the listener;
// connections already being served are left open.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return nil
	}
	return ln.Close()
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	if s.auth != nil {
		ok, err := s.authenticate(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Log("warn", "rpc: handshake failed", map[string]any{"error": err.Error(), "remote": conn.RemoteAddr().String()})
			}
			return
		}
		if !ok {
			s.logger.Log("warn", "rpc: rejected replica handshake", map[string]any{"remote": conn.RemoteAddr().String()})
			return
		}
	}

	// One WorkerHandle per connection, matching the source system's
	// bounded worker-thread model: every request this connection sends
	// is dispatched through the same handle, so the coordinator can
	// suspend/resume its binding across a sequence of RPCs.
	handle := &master.WorkerHandle{}
	for {
		var req Request
		if err := readFrame(conn, &req); err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Log("warn", "rpc: frame read failed", map[string]any{"error": err.Error(), "remote": conn.RemoteAddr().String()})
			}
			return
		}

		reply := s.dispatch(handle, req)
		if err := writeFrame(conn, reply); err != nil {
			s.logger.Log("warn", "rpc: frame write failed", map[string]any{"error": err.Error(), "remote": conn.RemoteAddr().String()})
			return
		}
	}
}

// authenticate runs the challenge/response handshake over conn,
// writing the final authResult before returning. It reports whether
// the client's response was accepted; a transport error is returned
// separately so the caller can distinguish "rejected" from "broken
// connection".
func (s *Server) authenticate(conn net.Conn) (bool, error) {
	nonce, _, err := s.auth.NewChallenge()
	if err != nil {
		return false, err
	}
	if err := writeFrame(conn, authChallenge{Nonce: nonce}); err != nil {
		return false, err
	}

	var resp authResponse
	if err := readFrame(conn, &resp); err != nil {
		return false, err
	}

	ok := s.auth.VerifyResponse(nonce, resp.Tag)
	result := authResult{OK: ok}
	if !ok {
		result.Err = "rpc: authentication rejected"
	}
	if err := writeFrame(conn, result); err != nil {
		return false, err
	}
	return ok, nil
}

func (s *Server) dispatch(handle *master.WorkerHandle, req Request) Reply {
	switch req.Op {
	case OpPullUpdates:
		resp := s.coord.PullUpdates(req.Context)
		return Reply{Status: resp.Status.String(), Err: errString(resp.Err), Missing: resp.Missing}

	case OpOngoingTransactions:
		return Reply{Status: "ok", Contexts: s.coord.OngoingTransactions()}

	case OpGetMasterIdForCommit:
		resp := s.coord.GetMasterIdForCommittedTx(req.TxID)
		return Reply{Status: resp.Status.String(), Err: errString(resp.Err), MachineID: resp.Result}

	case OpCommit:
		resp := s.coord.CommitSingleResourceTransaction(handle, req.Context, req.Commands)
		return Reply{Status: resp.Status.String(), Err: errString(resp.Err), Missing: resp.Missing, CommittedTxID: resp.Result}

	default:
		return Reply{Status: "failed", Err: "rpc: unknown op " + string(req.Op)}
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

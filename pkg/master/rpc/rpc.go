// Package rpc is the minimal length-prefixed gob wire framing that
// exposes pkg/master.Coordinator's diagnostics and single-resource
// commit to cmd/graphkerneld's replica subcommand. spec.md leaves RPC framing out of scope
// entirely; this is grounded in spirit on the teacher's pkg/bolt
// server (net.Listen, an Accept loop, one goroutine per connection,
// length-prefixed frames) without adopting Bolt/PackStream itself,
// which is a query-layer wire format this module has no use for.
package rpc

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/kerngraph/kerndb/pkg/master"
	"github.com/kerngraph/kerndb/pkg/record"
	"github.com/kerngraph/kerndb/pkg/walog"
)

// Op names one of the operations this RPC surface exposes: three
// diagnostics and OpCommit.
type Op string

const (
	OpPullUpdates          Op = "pull_updates"
	OpOngoingTransactions  Op = "ongoing_transactions"
	OpGetMasterIdForCommit Op = "get_master_id"
	OpCommit               Op = "commit"
)

// authChallenge is the server's first frame on an authenticated
// listener: a fresh nonce the client must answer with the matching
// HMAC tag before any Request is served.
type authChallenge struct {
	Nonce []byte
}

// authResponse answers an authChallenge.
type authResponse struct {
	Tag []byte
}

// authResult tells the client whether its response was accepted. The
// server closes the connection immediately after a rejection.
type authResult struct {
	OK  bool
	Err string
}

// Request is one RPC call's frame. Commands carries a slave's
// prepared command stream for OpCommit; every other Op leaves it nil.
type Request struct {
	Op       Op
	Context  record.SlaveContext
	TxID     uint64
	Commands []walog.Command
}

// Reply is one RPC call's response frame. Only the fields relevant to
// the request's Op are populated.
type Reply struct {
	Status        string
	Err           string
	Missing       []master.MissingTransaction
	Contexts      []record.SlaveContext
	MachineID     int32
	CommittedTxID uint64
}

func writeFrame(w io.Writer, v any) error {
	payload, err := encodeGob(v)
	if err != nil {
		return err
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

func readFrame(r io.Reader, v any) error {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return err
	}
	return decodeGob(payload, v)
}

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("rpc: encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeGob(payload []byte, v any) error {
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(v); err != nil {
		return fmt.Errorf("rpc: decode frame: %w", err)
	}
	return nil
}

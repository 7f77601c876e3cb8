package rpc

import (
	"errors"
	"net"

	"github.com/kerngraph/kerndb/pkg/master"
	"github.com/kerngraph/kerndb/pkg/record"
	"github.com/kerngraph/kerndb/pkg/walog"
)

// Client dials a Server and issues requests over its gob frames.
// Exactly one request may be in flight at a time per Client — callers
// needing concurrency should dial more than one.
type Client struct {
	conn net.Conn
}

func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// DialAuthenticated dials addr and completes the challenge/response
// handshake against clusterSecret before returning, for servers built
// with WithAuthenticator. It fails fast if the secret is wrong rather
// than letting every subsequent call fail one at a time.
func DialAuthenticated(addr, clusterSecret string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	c := &Client{conn: conn}

	auth := master.NewChallengeResponder(clusterSecret)

	var challenge authChallenge
	if err := readFrame(conn, &challenge); err != nil {
		conn.Close()
		return nil, err
	}
	tag, err := auth.RespondToChallenge(challenge.Nonce)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := writeFrame(conn, authResponse{Tag: tag}); err != nil {
		conn.Close()
		return nil, err
	}

	var result authResult
	if err := readFrame(conn, &result); err != nil {
		conn.Close()
		return nil, err
	}
	if !result.OK {
		conn.Close()
		return nil, errors.New(result.Err)
	}
	return c, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) call(req Request) (Reply, error) {
	if err := writeFrame(c.conn, req); err != nil {
		return Reply{}, err
	}
	var reply Reply
	if err := readFrame(c.conn, &reply); err != nil {
		return Reply{}, err
	}
	if reply.Err != "" {
		return reply, errors.New(reply.Err)
	}
	return reply, nil
}

// PullUpdates asks the master for every transaction ctx hasn't applied
// yet.
func (c *Client) PullUpdates(ctx record.SlaveContext) (Reply, error) {
	return c.call(Request{Op: OpPullUpdates, Context: ctx})
}

// OngoingTransactions lists every slave context the master currently
// holds an open transaction for — the replica status subcommand's
// main diagnostic.
func (c *Client) OngoingTransactions() (Reply, error) {
	return c.call(Request{Op: OpOngoingTransactions})
}

// GetMasterIdForCommittedTx asks which machine authored txID.
func (c *Client) GetMasterIdForCommittedTx(txID uint64) (Reply, error) {
	return c.call(Request{Op: OpGetMasterIdForCommit, TxID: txID})
}

// CommitSingleResourceTransaction ships ctx's prepared command stream
// to the master for injection and commit, returning the reply with
// CommittedTxID and Missing populated on success.
func (c *Client) CommitSingleResourceTransaction(ctx record.SlaveContext, commands []walog.Command) (Reply, error) {
	return c.call(Request{Op: OpCommit, Context: ctx, Commands: commands})
}

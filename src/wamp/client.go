package wamp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gammazero/nexus/v3/client"
	"github.com/gammazero/nexus/v3/wamp"
	"github.com/mosaicnetworks/disputes/src/coordinator"
	"github.com/mosaicnetworks/disputes/src/dispute"
)

// Client calls the procedures of a remote Endpoint.
type Client struct {
	client  *client.Client
	timeout time.Duration
}

// NewClient wraps a connected WAMP client. Every call is cancelled after
// timeout.
func NewClient(cli *client.Client, timeout time.Duration) *Client {
	return &Client{
		client:  cli,
		timeout: timeout,
	}
}

func (c *Client) call(proc string, args wamp.List, out interface{}) error {
	// Create a context to cancel the call after timeout.
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	result, err := c.client.Call(ctx, proc, nil, args, nil, nil)
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}

	if len(result.Arguments) != 1 {
		return fmt.Errorf("Result should contain 1 argument, not %d", len(result.Arguments))
	}

	raw, ok := wamp.AsString(result.Arguments[0])
	if !ok {
		return fmt.Errorf("Error reading result argument")
	}

	return json.Unmarshal([]byte(raw), out)
}

func jsonArgs(v interface{}) (wamp.List, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return wamp.List{string(raw)}, nil
}

// ImportStatements ...
func (c *Client) ImportStatements(session dispute.SessionIndex,
	candidate dispute.CandidateHash,
	votes []dispute.Vote) (*coordinator.ImportStatementsResponse, error) {

	args, err := jsonArgs(coordinator.ImportStatementsRequest{
		Session:   session,
		Candidate: candidate,
		Votes:     votes,
	})
	if err != nil {
		return nil, err
	}

	var resp coordinator.ImportStatementsResponse
	if err := c.call(ProcImportStatements, args, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueryCandidateVotes ...
func (c *Client) QueryCandidateVotes(queries []coordinator.CandidateKey) ([]*dispute.CandidateVotes, error) {
	args, err := jsonArgs(queries)
	if err != nil {
		return nil, err
	}

	var votes []*dispute.CandidateVotes
	if err := c.call(ProcQueryCandidateVotes, args, &votes); err != nil {
		return nil, err
	}
	return votes, nil
}

// ActiveDisputes ...
func (c *Client) ActiveDisputes() ([]coordinator.DisputeInfo, error) {
	var disputes []coordinator.DisputeInfo
	err := c.call(ProcActiveDisputes, nil, &disputes)
	return disputes, err
}

// RecentDisputes ...
func (c *Client) RecentDisputes() ([]coordinator.DisputeInfo, error) {
	var disputes []coordinator.DisputeInfo
	err := c.call(ProcRecentDisputes, nil, &disputes)
	return disputes, err
}

// NotifyNewSession ...
func (c *Client) NotifyNewSession(session dispute.SessionIndex) (*NotifyResult, error) {
	var res NotifyResult
	if err := c.call(ProcNotifyNewSession, wamp.List{int64(session)}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// IssueLocalStatement ...
func (c *Client) IssueLocalStatement(session dispute.SessionIndex, candidate dispute.CandidateHash, valid bool) error {
	args, err := jsonArgs(coordinator.IssueLocalStatementRequest{
		Session:   session,
		Candidate: candidate,
		Valid:     valid,
	})
	if err != nil {
		return err
	}
	return c.call(ProcIssueLocalStatement, args, nil)
}

// Stats ...
func (c *Client) Stats() (map[string]string, error) {
	stats := make(map[string]string)
	err := c.call(ProcStats, nil, &stats)
	return stats, err
}

package coordinator

import (
	"fmt"
	"time"

	"github.com/mosaicnetworks/disputes/src/dispute"
)

// request sends a command to the processing loop and waits for the response,
// for at most RequestTimeout.
func (c *Coordinator) request(cmd interface{}) (interface{}, error) {
	respCh := make(chan RPCResponse, 1)

	timer := time.NewTimer(c.conf.RequestTimeout)
	defer timer.Stop()

	select {
	case c.rpcCh <- RPC{Command: cmd, RespChan: respCh}:
	case <-c.shutdownCh:
		return nil, ErrShutdown
	case <-timer.C:
		return nil, ErrTimeout
	}

	select {
	case resp := <-respCh:
		return resp.Response, resp.Error
	case <-c.shutdownCh:
		return nil, ErrShutdown
	case <-timer.C:
		return nil, ErrTimeout
	}
}

func unexpectedResponse(resp interface{}) error {
	return fmt.Errorf("unexpected response type %T", resp)
}

// ImportStatements imports signed votes on a candidate and returns one result
// per vote. If the session's validator set is not known yet, the call waits
// until it is fetched.
func (c *Coordinator) ImportStatements(session dispute.SessionIndex,
	candidate dispute.CandidateHash,
	votes []dispute.Vote) (*ImportStatementsResponse, error) {

	resp, err := c.request(&ImportStatementsRequest{
		Session:   session,
		Candidate: candidate,
		Votes:     votes,
	})
	if err != nil {
		return nil, err
	}

	res, ok := resp.(*ImportStatementsResponse)
	if !ok {
		return nil, unexpectedResponse(resp)
	}
	return res, nil
}

// QueryCandidateVotes returns the vote sets of the given candidates. Unknown
// candidates, and candidates outside the window, are omitted.
func (c *Coordinator) QueryCandidateVotes(queries []CandidateKey) ([]*dispute.CandidateVotes, error) {
	resp, err := c.request(&QueryCandidateVotesRequest{Queries: queries})
	if err != nil {
		return nil, err
	}

	res, ok := resp.(*QueryCandidateVotesResponse)
	if !ok {
		return nil, unexpectedResponse(resp)
	}
	return res.Votes, nil
}

// ActiveDisputes lists the Active disputes in the window.
func (c *Coordinator) ActiveDisputes() ([]DisputeInfo, error) {
	return c.disputes(&ActiveDisputesRequest{})
}

// RecentDisputes lists all the disputes in the window.
func (c *Coordinator) RecentDisputes() ([]DisputeInfo, error) {
	return c.disputes(&RecentDisputesRequest{})
}

func (c *Coordinator) disputes(cmd interface{}) ([]DisputeInfo, error) {
	resp, err := c.request(cmd)
	if err != nil {
		return nil, err
	}

	res, ok := resp.(*DisputesResponse)
	if !ok {
		return nil, unexpectedResponse(resp)
	}
	return res.Disputes, nil
}

// NotifyNewSession advances the window to a new highest session. It returns
// ErrStaleSession if the session is not higher than the current one.
func (c *Coordinator) NotifyNewSession(session dispute.SessionIndex) (*NotifyNewSessionResponse, error) {
	resp, err := c.request(&NotifyNewSessionRequest{Session: session})
	if err != nil {
		return nil, err
	}

	res, ok := resp.(*NotifyNewSessionResponse)
	if !ok {
		return nil, unexpectedResponse(resp)
	}
	return res, nil
}

// IssueLocalStatement records a local judgement on a candidate. The node signs
// a vote for each of its validators in the session; the votes are imported and
// distributed asynchronously.
func (c *Coordinator) IssueLocalStatement(session dispute.SessionIndex, candidate dispute.CandidateHash, valid bool) error {
	_, err := c.request(&IssueLocalStatementRequest{
		Session:   session,
		Candidate: candidate,
		Valid:     valid,
	})
	return err
}

// GetStats returns a snapshot of the coordinator's counters.
func (c *Coordinator) GetStats() (map[string]string, error) {
	resp, err := c.request(&StatsRequest{})
	if err != nil {
		return nil, err
	}

	res, ok := resp.(map[string]string)
	if !ok {
		return nil, unexpectedResponse(resp)
	}
	return res, nil
}

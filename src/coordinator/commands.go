package coordinator

import (
	"github.com/mosaicnetworks/disputes/src/dispute"
	"github.com/mosaicnetworks/disputes/src/proxy"
)

// RPCResponse captures both a response and a potential error.
type RPCResponse struct {
	Response interface{}
	Error    error
}

// RPC encapsulates a request to the coordinator and provides a response
// mechanism. Internal commands, posted by background tasks, have no RespChan.
type RPC struct {
	Command  interface{}
	RespChan chan<- RPCResponse
}

// Respond is used to respond with a response, error or both. RespChan must be
// buffered so that the processing loop never blocks on a slow caller.
func (r *RPC) Respond(resp interface{}, err error) {
	if r.RespChan == nil {
		return
	}
	r.RespChan <- RPCResponse{resp, err}
}

/*******************************************************************************
Requests
*******************************************************************************/

// ImportStatementsRequest imports signed votes on a candidate.
type ImportStatementsRequest struct {
	Session   dispute.SessionIndex
	Candidate dispute.CandidateHash
	Votes     []dispute.Vote
}

// ImportStatementsResponse contains one result per submitted vote, in order,
// and the status of the dispute after the import. Status is meaningless if no
// vote set exists for the candidate.
type ImportStatementsResponse struct {
	Results []ImportResult
	Status  dispute.Status
}

// CandidateKey identifies a vote set.
type CandidateKey struct {
	Session   dispute.SessionIndex
	Candidate dispute.CandidateHash
}

// QueryCandidateVotesRequest retrieves the vote sets of a list of candidates.
type QueryCandidateVotesRequest struct {
	Queries []CandidateKey
}

// QueryCandidateVotesResponse contains the vote sets that were found, in the
// order of the queries. Unknown candidates are omitted.
type QueryCandidateVotesResponse struct {
	Votes []*dispute.CandidateVotes
}

// ActiveDisputesRequest lists the Active disputes within the window.
type ActiveDisputesRequest struct{}

// RecentDisputesRequest lists every dispute within the window, whatever its
// status.
type RecentDisputesRequest struct{}

// DisputesResponse is the response to ActiveDisputesRequest and
// RecentDisputesRequest.
type DisputesResponse struct {
	Disputes []DisputeInfo
}

// NotifyNewSessionRequest advances the window to a new highest session.
type NotifyNewSessionRequest struct {
	Session dispute.SessionIndex
}

// NotifyNewSessionResponse describes the effect of a window advance.
type NotifyNewSessionResponse struct {
	Delta    WindowDelta
	TimedOut []CandidateKey
}

// IssueLocalStatementRequest asks the coordinator to sign and import a vote
// for every validator key held locally. It is answered once the signing work
// is scheduled.
type IssueLocalStatementRequest struct {
	Session   dispute.SessionIndex
	Candidate dispute.CandidateHash
	Valid     bool
}

// StatsRequest returns a snapshot of the coordinator's counters.
type StatsRequest struct{}

/*******************************************************************************
Internal commands
*******************************************************************************/

type sessionInfoResult struct {
	session dispute.SessionIndex
	info    *sessionInfo
	err     error
}

type verdictResult struct {
	req   proxy.ValidationRequest
	valid bool
	err   error
}

type localVoteCmd struct {
	session    dispute.SessionIndex
	candidate  dispute.CandidateHash
	vote       dispute.Vote
	distribute bool
}

/*******************************************************************************
Views
*******************************************************************************/

// DisputeInfo is a summary of a dispute.
type DisputeInfo struct {
	Session          dispute.SessionIndex
	Candidate        dispute.CandidateHash
	Status           string
	ValidVotes       int
	InvalidVotes     int
	Equivocators     []dispute.ValidatorIndex
	ValidatorCount   int
	FirstSeenSession dispute.SessionIndex
	FirstSeen        int64
	ConcludedAt      dispute.SessionIndex
}

// NewDisputeInfo summarises a vote set.
func NewDisputeInfo(cv *dispute.CandidateVotes) DisputeInfo {
	return DisputeInfo{
		Session:          cv.Session,
		Candidate:        cv.Candidate,
		Status:           cv.Status.String(),
		ValidVotes:       len(cv.ValidVotes),
		InvalidVotes:     len(cv.InvalidVotes),
		Equivocators:     cv.Equivocators,
		ValidatorCount:   cv.ValidatorCount,
		FirstSeenSession: cv.FirstSeenSession,
		FirstSeen:        cv.FirstSeen,
		ConcludedAt:      cv.ConcludedAt,
	}
}

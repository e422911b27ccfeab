package coordinator

import (
	"strconv"

	cm "github.com/mosaicnetworks/disputes/src/common"
	"github.com/mosaicnetworks/disputes/src/dispute"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

func (c *Coordinator) processRPC(rpc RPC) {
	switch cmd := rpc.Command.(type) {
	case *ImportStatementsRequest:
		c.processImportStatements(rpc, cmd)
	case *QueryCandidateVotesRequest:
		c.processQueryCandidateVotes(rpc, cmd)
	case *ActiveDisputesRequest:
		c.processActiveDisputes(rpc)
	case *RecentDisputesRequest:
		c.processRecentDisputes(rpc)
	case *NotifyNewSessionRequest:
		c.processNotifyNewSession(rpc, cmd)
	case *IssueLocalStatementRequest:
		c.processIssueLocalStatement(rpc, cmd)
	case *StatsRequest:
		rpc.Respond(c.stats(), nil)
	case sessionInfoResult:
		c.onSessionInfo(cmd)
	case verdictResult:
		c.onVerdict(cmd)
	case localVoteCmd:
		c.onLocalVote(cmd)
	default:
		c.logger.WithField("cmd", rpc.Command).Error("Unexpected RPC command")
		rpc.Respond(nil, errors.New("unexpected command"))
	}
}

func (c *Coordinator) processImportStatements(rpc RPC, cmd *ImportStatementsRequest) {
	c.logger.WithFields(logrus.Fields{
		"session":   cmd.Session,
		"candidate": cmd.Candidate,
		"votes":     len(cmd.Votes),
	}).Debug("process ImportStatementsRequest")

	// Reject early rather than fetching the session of a vote we would
	// discard anyway.
	if !c.window.InWindow(cmd.Session) {
		rpc.Respond(&ImportStatementsResponse{
			Results: uniformResults(cmd.Votes, OutOfWindow),
		}, nil)
		return
	}

	c.withSessionInfo(cmd.Session, func(info *sessionInfo, err error) {
		if err != nil {
			outcome := SessionUnavailable
			if err == errSessionPruned {
				outcome = OutOfWindow
			}
			rpc.Respond(&ImportStatementsResponse{
				Results: uniformResults(cmd.Votes, outcome),
			}, nil)
			return
		}

		report, err := c.reconciler.Import(cmd.Session, cmd.Candidate, info.set, cmd.Votes)
		c.checkStorage(err)

		resp := &ImportStatementsResponse{Results: report.Results}
		if report.Votes != nil {
			resp.Status = report.Votes.Status
		}

		if report.Changed {
			c.maybeParticipate(report.Votes, info)
		}

		rpc.Respond(resp, nil)
	})
}

func (c *Coordinator) processQueryCandidateVotes(rpc RPC, cmd *QueryCandidateVotesRequest) {
	res := &QueryCandidateVotesResponse{
		Votes: []*dispute.CandidateVotes{},
	}

	for _, q := range cmd.Queries {
		if !c.window.InWindow(q.Session) {
			continue
		}

		cv, err := c.store.GetCandidateVotes(q.Session, q.Candidate)
		if cm.IsStore(err, cm.KeyNotFound) {
			continue
		}
		if err != nil {
			rpc.Respond(nil, err)
			return
		}

		res.Votes = append(res.Votes, cv)
	}

	rpc.Respond(res, nil)
}

func (c *Coordinator) processActiveDisputes(rpc RPC) {
	bounds, ok := c.window.Bounds()
	if !ok {
		rpc.Respond(&DisputesResponse{Disputes: []DisputeInfo{}}, nil)
		return
	}

	active, err := c.store.ActiveCandidateVotes(bounds.Lowest, bounds.Highest)
	if err != nil {
		rpc.Respond(nil, err)
		return
	}

	rpc.Respond(&DisputesResponse{Disputes: disputeInfos(active)}, nil)
}

func (c *Coordinator) processRecentDisputes(rpc RPC) {
	bounds, ok := c.window.Bounds()
	if !ok {
		rpc.Respond(&DisputesResponse{Disputes: []DisputeInfo{}}, nil)
		return
	}

	recent, err := c.store.RecentCandidateVotes(bounds.Lowest, bounds.Highest)
	if err != nil {
		rpc.Respond(nil, err)
		return
	}

	rpc.Respond(&DisputesResponse{Disputes: disputeInfos(recent)}, nil)
}

func disputeInfos(votes []*dispute.CandidateVotes) []DisputeInfo {
	res := make([]DisputeInfo, 0, len(votes))
	for _, cv := range votes {
		res = append(res, NewDisputeInfo(cv))
	}
	return res
}

func (c *Coordinator) processNotifyNewSession(rpc RPC, cmd *NotifyNewSessionRequest) {
	c.logger.WithField("session", cmd.Session).Debug("process NotifyNewSessionRequest")

	delta, err := c.window.Advance(cmd.Session)
	if errors.Cause(err) == ErrStaleSession {
		rpc.Respond(nil, err)
		return
	}
	c.checkStorage(err)
	if err != nil {
		rpc.Respond(nil, err)
		return
	}

	c.pruneSessions(delta.New.Lowest)
	c.pruneRequests(delta.New.Lowest)

	timedOut, err := c.reconciler.TimeoutDisputes()
	c.checkStorage(err)

	rpc.Respond(&NotifyNewSessionResponse{
		Delta:    delta,
		TimedOut: timedOut,
	}, nil)
}

func (c *Coordinator) processIssueLocalStatement(rpc RPC, cmd *IssueLocalStatementRequest) {
	c.logger.WithFields(logrus.Fields{
		"session":   cmd.Session,
		"candidate": cmd.Candidate,
		"valid":     cmd.Valid,
	}).Debug("process IssueLocalStatementRequest")

	if !c.window.InWindow(cmd.Session) {
		rpc.Respond(nil, errors.Errorf("session %d is out of the window", cmd.Session))
		return
	}

	c.issueLocalStatement(cmd.Session, cmd.Candidate, cmd.Valid)

	rpc.Respond(nil, nil)
}

func (c *Coordinator) stats() map[string]string {
	bounds, ok := c.window.Bounds()

	return map[string]string{
		"window_initialised":  strconv.FormatBool(ok),
		"lowest_session":      strconv.FormatUint(uint64(bounds.Lowest), 10),
		"highest_session":     strconv.FormatUint(uint64(bounds.Highest), 10),
		"cached_sessions":     strconv.Itoa(len(c.sessions.infos)),
		"deferred_requests":   strconv.Itoa(c.sessions.pendingCount()),
		"validation_requests": strconv.Itoa(len(c.requested)),
		"running_tasks":       strconv.Itoa(c.tasks.Count()),
		"storage_failures":    strconv.Itoa(c.storageFailures),
	}
}

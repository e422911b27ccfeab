package inmem

import (
	"context"
	"sync"

	"github.com/mosaicnetworks/disputes/src/dispute"
	"github.com/sirupsen/logrus"
)

// DistributedVote is a vote handed to an InmemDistributor.
type DistributedVote struct {
	Session   dispute.SessionIndex
	Candidate dispute.CandidateHash
	Vote      dispute.Vote
}

// InmemDistributor implements the VoteDistributor interface by recording votes
// and pushing them onto a channel.
type InmemDistributor struct {
	l      sync.Mutex
	votes  []DistributedVote
	voteCh chan DistributedVote
	logger *logrus.Entry
}

// NewInmemDistributor creates an InmemDistributor whose channel can buffer
// chanSize votes. Votes are dropped from the channel, but still recorded, when
// it is full.
func NewInmemDistributor(chanSize int, logger *logrus.Entry) *InmemDistributor {
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	return &InmemDistributor{
		voteCh: make(chan DistributedVote, chanSize),
		logger: logger,
	}
}

// VoteCh returns the channel of distributed votes.
func (d *InmemDistributor) VoteCh() <-chan DistributedVote {
	return d.voteCh
}

// Votes returns a copy of the votes distributed so far.
func (d *InmemDistributor) Votes() []DistributedVote {
	d.l.Lock()
	defer d.l.Unlock()
	res := make([]DistributedVote, len(d.votes))
	copy(res, d.votes)
	return res
}

// DistributeVote implements the VoteDistributor interface.
func (d *InmemDistributor) DistributeVote(ctx context.Context, session dispute.SessionIndex, candidate dispute.CandidateHash, vote dispute.Vote) error {
	dv := DistributedVote{
		Session:   session,
		Candidate: candidate,
		Vote:      vote,
	}

	d.l.Lock()
	d.votes = append(d.votes, dv)
	d.l.Unlock()

	select {
	case d.voteCh <- dv:
	default:
		d.logger.WithField("candidate", candidate).Debug("Distributor channel full")
	}

	return nil
}

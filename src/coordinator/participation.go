package coordinator

import (
	"github.com/google/uuid"
	"github.com/mosaicnetworks/disputes/src/common"
	"github.com/mosaicnetworks/disputes/src/dispute"
	"github.com/mosaicnetworks/disputes/src/proxy"
	"github.com/sirupsen/logrus"
)

// maybeParticipate requests a validation of the candidate if the dispute is
// Active, the node holds the key of at least one validator of the session, and
// none of those validators has voted. At most one request is in flight per
// candidate. A request that failed is forgotten, so the next import that
// changes the vote set asks again.
func (c *Coordinator) maybeParticipate(cv *dispute.CandidateVotes, info *sessionInfo) {
	if c.validator == nil || cv == nil || cv.Status != dispute.Active || len(info.local) == 0 {
		return
	}

	for _, idx := range info.local {
		if cv.HasVoteFrom(idx) {
			return
		}
	}

	key := CandidateKey{Session: cv.Session, Candidate: cv.Candidate}
	if _, ok := c.requested[key]; ok {
		return
	}
	c.requested[key] = struct{}{}

	req := proxy.ValidationRequest{
		ID:        uuid.New().String(),
		Session:   cv.Session,
		Candidate: cv.Candidate,
	}

	c.logger.WithFields(logrus.Fields{
		"id":        req.ID,
		"session":   req.Session,
		"candidate": req.Candidate,
	}).Debug("Requesting candidate validation")

	c.tasks.GoFunc(func() {
		var valid bool
		err := common.Retry(c.ctx, c.conf.RetryAttempts, c.conf.RetryBackoff, func() error {
			var err error
			valid, err = c.validator.ValidateCandidate(c.ctx, req)
			return err
		})
		c.post(verdictResult{req: req, valid: valid, err: err})
	})
}

// onVerdict turns a validation verdict into local votes. A verdict on a
// dispute that concluded in the meantime is still recorded, but not
// distributed.
func (c *Coordinator) onVerdict(res verdictResult) {
	logger := c.logger.WithFields(logrus.Fields{
		"id":        res.req.ID,
		"session":   res.req.Session,
		"candidate": res.req.Candidate,
	})

	if res.err != nil {
		logger.WithError(res.err).Error("Candidate validation failed")
		delete(c.requested, CandidateKey{Session: res.req.Session, Candidate: res.req.Candidate})
		return
	}

	logger.WithField("valid", res.valid).Debug("Candidate verdict")

	c.issueLocalStatement(res.req.Session, res.req.Candidate, res.valid)
}

// issueLocalStatement signs a statement with every local validator key of the
// session, in background tasks. The signed votes come back as localVoteCmd.
func (c *Coordinator) issueLocalStatement(session dispute.SessionIndex, candidate dispute.CandidateHash, valid bool) {
	if c.signer == nil {
		return
	}

	c.withSessionInfo(session, func(info *sessionInfo, err error) {
		if err != nil {
			c.logger.WithError(err).WithField("session", session).Warn("Cannot issue local statement")
			return
		}

		statement := dispute.NewStatement(session, candidate, valid)
		digest, err := statement.Hash()
		if err != nil {
			c.logger.WithError(err).Error("Hashing statement")
			return
		}

		for _, idx := range info.local {
			idx := idx
			pub := info.set.Validator(idx).PubKeyHex

			c.tasks.GoFunc(func() {
				var sig string
				var held bool
				err := common.Retry(c.ctx, c.conf.RetryAttempts, c.conf.RetryBackoff, func() error {
					var err error
					sig, held, err = c.signer.Sign(pub, digest)
					return err
				})
				if err != nil {
					c.logger.WithError(err).WithField("validator", idx).Error("Signing statement")
					return
				}
				if !held {
					c.logger.WithField("validator", idx).Warn("Key no longer held")
					return
				}

				c.post(localVoteCmd{
					session:   session,
					candidate: candidate,
					vote: dispute.Vote{
						Validator: idx,
						Signature: sig,
						Valid:     valid,
					},
					distribute: true,
				})
			})
		}
	})
}

// onLocalVote imports a vote signed by this node and hands it to the
// distributor if it was new and the dispute was still Active.
func (c *Coordinator) onLocalVote(cmd localVoteCmd) {
	c.withSessionInfo(cmd.session, func(info *sessionInfo, err error) {
		if err != nil {
			c.logger.WithError(err).WithField("session", cmd.session).Warn("Dropping local vote")
			return
		}

		report, err := c.reconciler.Import(cmd.session, cmd.candidate, info.set, []dispute.Vote{cmd.vote})
		c.checkStorage(err)

		outcome := report.Results[0].Outcome
		if outcome != Imported && outcome != Equivocation {
			c.logger.WithFields(logrus.Fields{
				"session":   cmd.session,
				"candidate": cmd.candidate,
				"outcome":   outcome,
			}).Debug("Local vote not imported")
			return
		}

		wasActive := report.Created || report.PrevStatus == dispute.Active
		if !cmd.distribute || !wasActive || c.distributor == nil {
			return
		}

		c.tasks.GoFunc(func() {
			err := common.Retry(c.ctx, c.conf.RetryAttempts, c.conf.RetryBackoff, func() error {
				return c.distributor.DistributeVote(c.ctx, cmd.session, cmd.candidate, cmd.vote)
			})
			if err != nil {
				c.logger.WithError(err).WithField("candidate", cmd.candidate).Error("Distributing vote")
			}
		})
	})
}

// pruneRequests forgets the validation requests below the window.
func (c *Coordinator) pruneRequests(lowest dispute.SessionIndex) {
	for k := range c.requested {
		if k.Session < lowest {
			delete(c.requested, k)
		}
	}
}

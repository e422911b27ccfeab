package inmem

import (
	"context"
	"sync"

	"github.com/mosaicnetworks/disputes/src/dispute"
	"github.com/mosaicnetworks/disputes/src/proxy"
	"github.com/sirupsen/logrus"
)

// InmemValidator implements the CandidateValidator interface natively. It
// returns preset verdicts and records every request it receives.
type InmemValidator struct {
	l        sync.Mutex
	verdicts map[dispute.CandidateHash]bool
	def      bool
	requests []proxy.ValidationRequest
	release  chan struct{}
	err      error
	logger   *logrus.Entry
}

// NewInmemValidator instantiates an InmemValidator which returns def for
// candidates without a preset verdict. If no logger, a new one is created.
func NewInmemValidator(def bool, logger *logrus.Entry) *InmemValidator {
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	return &InmemValidator{
		verdicts: make(map[dispute.CandidateHash]bool),
		def:      def,
		logger:   logger,
	}
}

// SetVerdict presets the verdict of a candidate.
func (v *InmemValidator) SetVerdict(candidate dispute.CandidateHash, valid bool) {
	v.l.Lock()
	v.verdicts[candidate] = valid
	v.l.Unlock()
}

// SetError makes every subsequent request fail with err. A nil err restores
// normal operation.
func (v *InmemValidator) SetError(err error) {
	v.l.Lock()
	v.err = err
	v.l.Unlock()
}

// Hold makes requests block until Release is called.
func (v *InmemValidator) Hold() {
	v.l.Lock()
	v.release = make(chan struct{})
	v.l.Unlock()
}

// Release unblocks the requests held since the last call to Hold.
func (v *InmemValidator) Release() {
	v.l.Lock()
	if v.release != nil {
		close(v.release)
		v.release = nil
	}
	v.l.Unlock()
}

// Requests returns a copy of the requests received so far.
func (v *InmemValidator) Requests() []proxy.ValidationRequest {
	v.l.Lock()
	defer v.l.Unlock()
	res := make([]proxy.ValidationRequest, len(v.requests))
	copy(res, v.requests)
	return res
}

// ValidateCandidate implements the CandidateValidator interface.
func (v *InmemValidator) ValidateCandidate(ctx context.Context, req proxy.ValidationRequest) (bool, error) {
	v.l.Lock()
	v.requests = append(v.requests, req)
	release := v.release
	v.l.Unlock()

	v.logger.WithFields(logrus.Fields{
		"id":        req.ID,
		"session":   req.Session,
		"candidate": req.Candidate,
	}).Debug("ValidateCandidate")

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	v.l.Lock()
	defer v.l.Unlock()

	if v.err != nil {
		return false, v.err
	}

	if valid, ok := v.verdicts[req.Candidate]; ok {
		return valid, nil
	}

	return v.def, nil
}

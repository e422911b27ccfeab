package coordinator

import (
	"time"

	cm "github.com/mosaicnetworks/disputes/src/common"
	"github.com/mosaicnetworks/disputes/src/dispute"
	"github.com/mosaicnetworks/disputes/src/runtime"
	"github.com/mosaicnetworks/disputes/src/store"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ImportOutcome is the result of importing a single vote.
type ImportOutcome uint8

const (
	// Imported means the vote was new and is now persisted.
	Imported ImportOutcome = iota
	// Duplicate means the same validator already voted with the same
	// polarity. Nothing changed.
	Duplicate
	// Equivocation means the validator had voted the other way. Both votes
	// are kept and the validator is recorded as an equivocator.
	Equivocation
	// OutOfWindow means the vote's session is not in the window.
	OutOfWindow
	// BadSignature means the signature does not verify against the
	// validator's key.
	BadSignature
	// UnknownValidator means the validator index is not in the session's
	// validator set.
	UnknownValidator
	// SessionUnavailable means the session's validator set could not be
	// obtained from the runtime.
	SessionUnavailable
	// StorageFailure means the vote was valid but could not be persisted.
	StorageFailure
)

func (o ImportOutcome) String() string {
	switch o {
	case Imported:
		return "Imported"
	case Duplicate:
		return "Duplicate"
	case Equivocation:
		return "Equivocation"
	case OutOfWindow:
		return "OutOfWindow"
	case BadSignature:
		return "BadSignature"
	case UnknownValidator:
		return "UnknownValidator"
	case SessionUnavailable:
		return "SessionUnavailable"
	case StorageFailure:
		return "StorageFailure"
	default:
		return "Unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o ImportOutcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *ImportOutcome) UnmarshalText(text []byte) error {
	for c := Imported; c <= StorageFailure; c++ {
		if c.String() == string(text) {
			*o = c
			return nil
		}
	}
	return errors.Errorf("unknown import outcome %q", text)
}

// ImportResult is the outcome of importing one vote.
type ImportResult struct {
	Validator dispute.ValidatorIndex
	Outcome   ImportOutcome
}

// ImportReport is the result of importing a batch of votes on one candidate.
type ImportReport struct {
	Results []ImportResult

	// Votes is the vote set after the import. It is nil if no vote set
	// exists for the candidate.
	Votes *dispute.CandidateVotes

	// PrevStatus is the status before the import. Created is true if the
	// import created the vote set.
	PrevStatus dispute.Status
	Created    bool

	// Changed is true if at least one vote was recorded.
	Changed bool
}

// Transitioned returns true if the import changed the dispute's status.
func (r ImportReport) Transitioned() bool {
	return r.Votes != nil && !r.Created && r.PrevStatus != r.Votes.Status
}

// Reconciler imports votes into the store, within the bounds of the session
// window, and drives the dispute state machine.
type Reconciler struct {
	store  store.Store
	window *SessionWindow
	params dispute.Params
	now    func() time.Time
	logger *logrus.Entry
}

// NewReconciler ...
func NewReconciler(st store.Store, window *SessionWindow, params dispute.Params, logger *logrus.Entry) *Reconciler {
	return &Reconciler{
		store:  st,
		window: window,
		params: params,
		now:    time.Now,
		logger: logger,
	}
}

func uniformResults(votes []dispute.Vote, o ImportOutcome) []ImportResult {
	res := make([]ImportResult, len(votes))
	for i, v := range votes {
		res[i] = ImportResult{Validator: v.Validator, Outcome: o}
	}
	return res
}

// Import verifies and records a batch of votes on a candidate. vs is the
// validator set of the candidate's session. All the accepted votes are
// committed in a single write, after the state machine has been re-evaluated.
// The returned error is non-nil only if that write, or the preceding read,
// failed; the outcomes of the affected votes are then StorageFailure and
// nothing was changed.
func (r *Reconciler) Import(session dispute.SessionIndex,
	candidate dispute.CandidateHash,
	vs *runtime.ValidatorSet,
	votes []dispute.Vote) (ImportReport, error) {

	if !r.window.InWindow(session) {
		return ImportReport{Results: uniformResults(votes, OutOfWindow)}, nil
	}

	existing, err := r.store.GetCandidateVotes(session, candidate)
	if err != nil && !cm.IsStore(err, cm.KeyNotFound) {
		return ImportReport{Results: uniformResults(votes, StorageFailure)},
			errors.Wrap(err, "reading candidate votes")
	}

	report := ImportReport{
		Results: make([]ImportResult, len(votes)),
	}

	bounds, _ := r.window.Bounds()

	// Work on a copy so that a failed write leaves nothing behind.
	var working *dispute.CandidateVotes
	if existing != nil {
		working = existing.Copy()
		report.PrevStatus = existing.Status
	}

	for i, vote := range votes {
		report.Results[i] = ImportResult{Validator: vote.Validator}

		validator := vs.Validator(vote.Validator)
		if validator == nil {
			report.Results[i].Outcome = UnknownValidator
			continue
		}

		ok, err := dispute.VerifyVote(validator.PubKey(), session, candidate, vote)
		if err != nil || !ok {
			report.Results[i].Outcome = BadSignature
			continue
		}

		if working == nil {
			working = dispute.NewCandidateVotes(session,
				candidate,
				vs.Len(),
				bounds.Highest,
				r.now().Unix())
			report.Created = true
		}

		switch working.Insert(vote) {
		case dispute.Inserted:
			report.Results[i].Outcome = Imported
			report.Changed = true
		case dispute.Equivocation:
			report.Results[i].Outcome = Equivocation
			report.Changed = true
			r.logger.WithFields(logrus.Fields{
				"session":   session,
				"candidate": candidate,
				"validator": vote.Validator,
			}).Warn("Equivocation")
		case dispute.Duplicate:
			report.Results[i].Outcome = Duplicate
		}
	}

	if !report.Changed {
		report.Votes = existing
		return report, nil
	}

	dispute.Evaluate(working, r.params, bounds.Highest)

	if err := r.store.PutCandidateVotes(working); err != nil {
		for i, res := range report.Results {
			if res.Outcome == Imported || res.Outcome == Equivocation {
				report.Results[i].Outcome = StorageFailure
			}
		}
		report.Votes = existing
		report.Created = false
		report.Changed = false
		return report, errors.Wrap(err, "writing candidate votes")
	}

	report.Votes = working

	if report.Transitioned() || (report.Created && working.Status.IsTerminal()) {
		r.logger.WithFields(logrus.Fields{
			"session":   session,
			"candidate": candidate,
			"status":    working.Status,
			"valid":     len(working.ValidVotes),
			"invalid":   len(working.InvalidVotes),
		}).Info("Dispute concluded")
	}

	return report, nil
}

// TimeoutDisputes moves the Active disputes of the window that have been open
// for too long to TimedOut. It returns the keys of the disputes that timed out.
// A write failure stops the pass; disputes not yet processed are picked up by
// the next advance.
func (r *Reconciler) TimeoutDisputes() ([]CandidateKey, error) {
	res := []CandidateKey{}

	bounds, ok := r.window.Bounds()
	if !ok || r.params.TimeoutSessions == 0 {
		return res, nil
	}

	active, err := r.store.ActiveCandidateVotes(bounds.Lowest, bounds.Highest)
	if err != nil {
		return res, errors.Wrap(err, "listing active disputes")
	}

	for _, cv := range active {
		if !dispute.CheckTimeout(cv, r.params, bounds.Highest) {
			continue
		}

		if err := r.store.PutCandidateVotes(cv); err != nil {
			return res, errors.Wrap(err, "writing timed out dispute")
		}

		r.logger.WithFields(logrus.Fields{
			"session":    cv.Session,
			"candidate":  cv.Candidate,
			"first_seen": cv.FirstSeenSession,
		}).Info("Dispute timed out")

		res = append(res, CandidateKey{Session: cv.Session, Candidate: cv.Candidate})
	}

	return res, nil
}

package dispute

// Status is the lifecycle tag of a dispute.
type Status uint8

const (
	// Active disputes are open and collecting votes.
	Active Status = iota
	// ConcludedValid means a supermajority voted the candidate valid.
	ConcludedValid
	// ConcludedInvalid means a supermajority voted the candidate invalid.
	ConcludedInvalid
	// TimedOut means no supermajority was reached within the configured
	// number of sessions. It carries no verdict.
	TimedOut
)

func (s Status) String() string {
	switch s {
	case Active:
		return "Active"
	case ConcludedValid:
		return "ConcludedValid"
	case ConcludedInvalid:
		return "ConcludedInvalid"
	case TimedOut:
		return "TimedOut"
	default:
		return "Unknown"
	}
}

// IsTerminal returns true for every status other than Active.
func (s Status) IsTerminal() bool {
	return s != Active
}

// Params configures the state machine.
type Params struct {
	// Supermajority fraction. A polarity concludes the dispute when its vote
	// count reaches ValidatorCount*Numerator/Denominator + 1.
	Numerator   int
	Denominator int

	// Number of sessions after which an Active dispute times out. 0 disables
	// timeouts.
	TimeoutSessions uint32
}

// DefaultParams uses a two-thirds supermajority.
func DefaultParams() Params {
	return Params{
		Numerator:       2,
		Denominator:     3,
		TimeoutSessions: 6,
	}
}

// Threshold returns the number of votes of one polarity required to conclude
// a dispute among validatorCount validators.
func (p Params) Threshold(validatorCount int) int {
	den := p.Denominator
	if den <= 0 {
		den = 1
	}
	return validatorCount*p.Numerator/den + 1
}

// Evaluate moves an Active vote set to a concluded state if either polarity
// has reached the threshold. highest is recorded as the conclusion session.
// If both polarities reach the threshold, which requires equivocators, the
// candidate is considered invalid. It returns true if the status changed.
func Evaluate(cv *CandidateVotes, p Params, highest SessionIndex) bool {
	if cv.Status.IsTerminal() {
		return false
	}

	threshold := p.Threshold(cv.ValidatorCount)

	switch {
	case len(cv.InvalidVotes) >= threshold:
		cv.Status = ConcludedInvalid
	case len(cv.ValidVotes) >= threshold:
		cv.Status = ConcludedValid
	default:
		return false
	}

	cv.ConcludedAt = highest

	return true
}

// CheckTimeout moves an Active vote set to TimedOut if highest is at least
// TimeoutSessions past the session it was first seen in. It returns true if
// the status changed.
func CheckTimeout(cv *CandidateVotes, p Params, highest SessionIndex) bool {
	if cv.Status.IsTerminal() || p.TimeoutSessions == 0 {
		return false
	}

	if highest < cv.FirstSeenSession ||
		uint32(highest-cv.FirstSeenSession) < p.TimeoutSessions {
		return false
	}

	cv.Status = TimedOut
	cv.ConcludedAt = highest

	return true
}

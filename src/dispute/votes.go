package dispute

import (
	"bytes"
	"sort"

	"github.com/ugorji/go/codec"
)

// InsertResult is the effect of inserting a vote into a vote set.
type InsertResult uint8

const (
	// Inserted means the vote was new and recorded.
	Inserted InsertResult = iota
	// Duplicate means the validator already voted with the same polarity. The
	// vote set is unchanged.
	Duplicate
	// Equivocation means the validator already voted with the opposite
	// polarity. Both votes are kept and the validator is marked.
	Equivocation
)

func (r InsertResult) String() string {
	switch r {
	case Inserted:
		return "Inserted"
	case Duplicate:
		return "Duplicate"
	case Equivocation:
		return "Equivocation"
	default:
		return "Unknown"
	}
}

// CandidateVotes is the vote set for one candidate within one session,
// together with the dispute record derived from it.
type CandidateVotes struct {
	Session   SessionIndex
	Candidate CandidateHash

	// Signatures indexed by validator, one map per polarity.
	ValidVotes   map[ValidatorIndex]string
	InvalidVotes map[ValidatorIndex]string

	// Sorted list of validators present in both maps.
	Equivocators []ValidatorIndex

	Status Status

	// Size of the session's validator set when the record was created.
	// Thresholds are always computed against this value.
	ValidatorCount int

	// Highest known session when the first vote was seen, and its wall time
	// in unix seconds.
	FirstSeenSession SessionIndex
	FirstSeen        int64

	// Highest known session when the record reached a terminal state.
	ConcludedAt SessionIndex
}

// NewCandidateVotes creates an empty, Active vote set.
func NewCandidateVotes(session SessionIndex,
	candidate CandidateHash,
	validatorCount int,
	firstSeenSession SessionIndex,
	firstSeen int64) *CandidateVotes {

	return &CandidateVotes{
		Session:          session,
		Candidate:        candidate,
		ValidVotes:       make(map[ValidatorIndex]string),
		InvalidVotes:     make(map[ValidatorIndex]string),
		Status:           Active,
		ValidatorCount:   validatorCount,
		FirstSeenSession: firstSeenSession,
		FirstSeen:        firstSeen,
	}
}

// Insert records a vote. It never changes Status; see Evaluate.
func (cv *CandidateVotes) Insert(vote Vote) InsertResult {
	same, other := cv.ValidVotes, cv.InvalidVotes
	if !vote.Valid {
		same, other = cv.InvalidVotes, cv.ValidVotes
	}

	if _, ok := same[vote.Validator]; ok {
		return Duplicate
	}

	same[vote.Validator] = vote.Signature

	if _, ok := other[vote.Validator]; ok {
		cv.markEquivocator(vote.Validator)
		return Equivocation
	}

	return Inserted
}

func (cv *CandidateVotes) markEquivocator(v ValidatorIndex) {
	i := sort.Search(len(cv.Equivocators), func(i int) bool {
		return cv.Equivocators[i] >= v
	})
	if i < len(cv.Equivocators) && cv.Equivocators[i] == v {
		return
	}
	cv.Equivocators = append(cv.Equivocators, 0)
	copy(cv.Equivocators[i+1:], cv.Equivocators[i:])
	cv.Equivocators[i] = v
}

// IsEquivocator returns true if the validator voted both ways.
func (cv *CandidateVotes) IsEquivocator(v ValidatorIndex) bool {
	i := sort.Search(len(cv.Equivocators), func(i int) bool {
		return cv.Equivocators[i] >= v
	})
	return i < len(cv.Equivocators) && cv.Equivocators[i] == v
}

// HasVoteFrom returns true if the validator cast a vote of either polarity.
func (cv *CandidateVotes) HasVoteFrom(v ValidatorIndex) bool {
	if _, ok := cv.ValidVotes[v]; ok {
		return true
	}
	_, ok := cv.InvalidVotes[v]
	return ok
}

// Votes returns every recorded vote, valid votes first, each group sorted by
// validator index.
func (cv *CandidateVotes) Votes() []Vote {
	res := make([]Vote, 0, len(cv.ValidVotes)+len(cv.InvalidVotes))
	res = appendSorted(res, cv.ValidVotes, true)
	res = appendSorted(res, cv.InvalidVotes, false)
	return res
}

func appendSorted(res []Vote, votes map[ValidatorIndex]string, valid bool) []Vote {
	idx := make([]ValidatorIndex, 0, len(votes))
	for v := range votes {
		idx = append(idx, v)
	}
	sort.Slice(idx, func(i, j int) bool { return idx[i] < idx[j] })
	for _, v := range idx {
		res = append(res, Vote{Validator: v, Signature: votes[v], Valid: valid})
	}
	return res
}

// Copy returns a deep copy of the vote set.
func (cv *CandidateVotes) Copy() *CandidateVotes {
	res := *cv

	res.ValidVotes = make(map[ValidatorIndex]string, len(cv.ValidVotes))
	for k, v := range cv.ValidVotes {
		res.ValidVotes[k] = v
	}

	res.InvalidVotes = make(map[ValidatorIndex]string, len(cv.InvalidVotes))
	for k, v := range cv.InvalidVotes {
		res.InvalidVotes[k] = v
	}

	if cv.Equivocators != nil {
		res.Equivocators = make([]ValidatorIndex, len(cv.Equivocators))
		copy(res.Equivocators, cv.Equivocators)
	}

	return &res
}

// Marshal returns the msgpack encoding of the vote set, as persisted by the
// stores.
func (cv *CandidateVotes) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	mh := new(codec.MsgpackHandle)
	mh.Canonical = true
	enc := codec.NewEncoder(b, mh)

	if err := enc.Encode(cv); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal decodes a vote set produced by Marshal.
func (cv *CandidateVotes) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	mh := new(codec.MsgpackHandle)
	mh.Canonical = true
	dec := codec.NewDecoder(b, mh)

	if err := dec.Decode(cv); err != nil {
		return err
	}

	if cv.ValidVotes == nil {
		cv.ValidVotes = make(map[ValidatorIndex]string)
	}
	if cv.InvalidVotes == nil {
		cv.InvalidVotes = make(map[ValidatorIndex]string)
	}

	return nil
}

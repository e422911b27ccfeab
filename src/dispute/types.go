package dispute

import (
	"fmt"

	"github.com/mosaicnetworks/disputes/src/common"
	"github.com/mosaicnetworks/disputes/src/crypto"
)

// SessionIndex identifies an epoch during which the validator set is fixed.
type SessionIndex uint32

// ValidatorIndex is the position of a validator in a session's validator set.
type ValidatorIndex uint32

// CandidateHash is the content hash of a candidate block.
type CandidateHash [32]byte

// NewCandidateHash hashes the candidate's content.
func NewCandidateHash(content []byte) CandidateHash {
	var h CandidateHash
	copy(h[:], crypto.SHA256(content))
	return h
}

// CandidateHashFromHex parses the hex representation produced by String.
func CandidateHashFromHex(s string) (CandidateHash, error) {
	var h CandidateHash

	b, err := common.DecodeFromString(s)
	if err != nil {
		return h, err
	}

	if len(b) != len(h) {
		return h, fmt.Errorf("candidate hash should be %d bytes, got %d", len(h), len(b))
	}

	copy(h[:], b)

	return h, nil
}

// String returns the 0X prefixed uppercase hex representation of the hash.
func (h CandidateHash) String() string {
	return common.EncodeToString(h[:])
}

// MarshalText implements encoding.TextMarshaler.
func (h CandidateHash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *CandidateHash) UnmarshalText(text []byte) error {
	res, err := CandidateHashFromHex(string(text))
	if err != nil {
		return err
	}
	*h = res
	return nil
}

// Window is an inclusive range of sessions. Only vote sets whose session lies
// inside the window are tracked.
type Window struct {
	Lowest  SessionIndex
	Highest SessionIndex
}

// NewWindow returns the window of the given retention ending at highest. The
// floor saturates at 0.
func NewWindow(highest SessionIndex, retention uint32) Window {
	lowest := SessionIndex(0)
	if uint32(highest) > retention {
		lowest = highest - SessionIndex(retention)
	}
	return Window{Lowest: lowest, Highest: highest}
}

// Contains returns true if session lies in [Lowest, Highest].
func (w Window) Contains(session SessionIndex) bool {
	return session >= w.Lowest && session <= w.Highest
}

func (w Window) String() string {
	return fmt.Sprintf("[%d, %d]", w.Lowest, w.Highest)
}

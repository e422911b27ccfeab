package dispute

import (
	"bytes"
	"crypto/ecdsa"

	"github.com/mosaicnetworks/disputes/src/crypto"
	"github.com/mosaicnetworks/disputes/src/crypto/keys"
	"github.com/ugorji/go/codec"
)

// Vote is a validator's signed judgement on a candidate. The signature covers
// the Statement built from the vote, its candidate and its session.
type Vote struct {
	Validator ValidatorIndex
	Signature string
	Valid     bool
}

// Statement is the payload signed by a validator when voting.
type Statement struct {
	Valid     bool
	Candidate CandidateHash
	Session   SessionIndex
}

// NewStatement ...
func NewStatement(session SessionIndex, candidate CandidateHash, valid bool) Statement {
	return Statement{
		Valid:     valid,
		Candidate: candidate,
		Session:   session,
	}
}

// Marshal returns the canonical JSON encoding of the statement.
func (s Statement) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(s); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Hash returns the SHA256 of the canonical encoding. This is the digest that
// validators sign.
func (s Statement) Hash() ([]byte, error) {
	bs, err := s.Marshal()
	if err != nil {
		return nil, err
	}
	return crypto.SHA256(bs), nil
}

// Sign produces a vote on the statement with the given key.
func (s Statement) Sign(validator ValidatorIndex, privKey *ecdsa.PrivateKey) (Vote, error) {
	digest, err := s.Hash()
	if err != nil {
		return Vote{}, err
	}

	sig, err := keys.Sign(privKey, digest)
	if err != nil {
		return Vote{}, err
	}

	return Vote{
		Validator: validator,
		Signature: sig,
		Valid:     s.Valid,
	}, nil
}

// VerifyVote checks that the vote's signature was produced by pub over the
// statement (session, candidate, vote.Valid).
func VerifyVote(pub *ecdsa.PublicKey, session SessionIndex, candidate CandidateHash, vote Vote) (bool, error) {
	if pub == nil {
		return false, nil
	}

	digest, err := NewStatement(session, candidate, vote.Valid).Hash()
	if err != nil {
		return false, err
	}

	return keys.Verify(pub, digest, vote.Signature)
}

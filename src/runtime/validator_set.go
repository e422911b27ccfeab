package runtime

import (
	"bytes"
	"encoding/json"

	"github.com/mosaicnetworks/disputes/src/crypto/keys"
	"github.com/mosaicnetworks/disputes/src/dispute"
)

// ValidatorSet is the ordered list of validators of a session. A validator's
// ValidatorIndex is its position in the list.
type ValidatorSet struct {
	Validators []*Validator

	byPubKey map[string]dispute.ValidatorIndex
}

// NewValidatorSet creates a ValidatorSet from an ordered list of validators.
func NewValidatorSet(validators []*Validator) *ValidatorSet {
	vs := &ValidatorSet{
		Validators: validators,
		byPubKey:   make(map[string]dispute.ValidatorIndex),
	}

	for i, v := range validators {
		v.PubKeyHex = cleansePubKeyHex(v.PubKeyHex)
		v.pubKey = keys.ToPublicKey(v.PubKeyBytes())
		if _, ok := vs.byPubKey[v.PubKeyHex]; !ok {
			vs.byPubKey[v.PubKeyHex] = dispute.ValidatorIndex(i)
		}
	}

	return vs
}

// NewValidatorSetFromBytes decodes a JSON array of validators.
func NewValidatorSetFromBytes(data []byte) (*ValidatorSet, error) {
	validators := []*Validator{}

	dec := json.NewDecoder(bytes.NewBuffer(data))
	if err := dec.Decode(&validators); err != nil {
		return nil, err
	}

	return NewValidatorSet(validators), nil
}

// Len returns the number of validators in the set.
func (vs *ValidatorSet) Len() int {
	return len(vs.Validators)
}

// Contains returns true if idx is a valid index in the set.
func (vs *ValidatorSet) Contains(idx dispute.ValidatorIndex) bool {
	return int(idx) < len(vs.Validators)
}

// Validator returns the validator at idx, or nil.
func (vs *ValidatorSet) Validator(idx dispute.ValidatorIndex) *Validator {
	if !vs.Contains(idx) {
		return nil
	}
	return vs.Validators[idx]
}

// IndexOf returns the index of the validator with the given public key.
func (vs *ValidatorSet) IndexOf(pubKeyHex string) (dispute.ValidatorIndex, bool) {
	idx, ok := vs.byPubKey[cleansePubKeyHex(pubKeyHex)]
	return idx, ok
}

// PubKeys returns the validators' public keys in index order.
func (vs *ValidatorSet) PubKeys() []string {
	res := make([]string, 0, len(vs.Validators))
	for _, v := range vs.Validators {
		res = append(res, v.PubKeyHex)
	}
	return res
}

// Marshal returns the JSON array of validators.
func (vs *ValidatorSet) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(vs.Validators); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

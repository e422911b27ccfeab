// Package keys implements the public key cryptography used to sign and verify
// dispute votes.
//
// Every validator of a session owns a key-pair. Its public key is published in
// the session's validator set and is used by every node to verify the votes
// that the validator casts on disputed candidates. The private key lives in the
// node's keystore and never leaves it.
//
// Keys are ECDSA keys on the secp256k1 curve.
package keys

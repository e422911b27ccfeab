// Package runtime provides the session information the dispute coordinator
// needs from the chain runtime: the validator set of each session.
//
// A validator is identified by its position in the session's validator set,
// and owns a public key used to verify its votes. The coordinator queries
// validator sets through the API interface, which may block or fail; failures
// are treated as transient and retried by the caller.
//
// JSONRuntime reads validator sets from the data directory. It expects a
// validators.<session>.json file per session, and falls back to a
// validators.json file for sessions that do not have their own. Each file
// contains a JSON array of validators:
//
//	[
//	  {"PubKeyHex": "0X04362B55F...", "Moniker": "node0"},
//	  {"PubKeyHex": "0X04F2A1C86...", "Moniker": "node1"}
//	]
package runtime

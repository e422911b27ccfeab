// Package proxy defines the interfaces between the dispute coordinator and the
// subsystems it relies on to judge candidates and to spread votes.
//
// The coordinator does not validate candidates nor gossip votes itself:
//
// - CandidateValidator: Re-executes a candidate and returns a verdict. The
// coordinator calls it when a dispute is raised on a candidate that the local
// node has not judged yet.
//
// - VoteDistributor: Sends the votes signed by the local node to other
// validators.
//
// Both have an in-memory implementation in the inmem package, and a WAMP
// implementation in the wamp package.
package proxy

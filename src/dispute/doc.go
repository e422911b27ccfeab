// Package dispute defines the data model of validator disputes over
// candidates: votes, signed statements, per-candidate vote sets and the
// lifecycle state machine that decides when a dispute is concluded.
//
// Nothing in this package is safe for concurrent use. Vote sets are owned by
// the coordinator's processing loop, which is the only writer; readers receive
// copies.
package dispute

// Package coordinator implements the dispute coordinator: the component that
// tracks validators' votes on disputed candidates, decides disputes by
// supermajority, and makes the local node take part in disputes it has not
// judged yet.
//
// The coordinator keeps state for a rolling window of sessions, from the
// highest session notified by NotifyNewSession down to Retention sessions
// below. Votes outside the window are rejected, and everything below the
// window is pruned when it moves.
//
// Requests are processed one at a time by a single goroutine reading from an
// ordered channel. Work that involves other subsystems (fetching validator
// sets from the runtime, validating candidates, signing and distributing
// votes) runs in background tasks whose results are posted back on the same
// channel. Requests that need a validator set which is not known yet are
// deferred until it arrives.
//
// When a vote is imported on a candidate for which the node holds a validator
// key but has not voted, the coordinator asks the CandidateValidator for a
// verdict, once, signs a vote with each local key, imports it like any other
// vote and hands it to the VoteDistributor.
package coordinator

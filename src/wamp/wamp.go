// Package wamp exposes a dispute coordinator over WAMP (RPC and PubSub over
// WebSockets).
//
// The Server embeds a nexus router. The Endpoint registers one procedure per
// coordinator request, with JSON-encoded arguments and results, so that other
// processes can import votes, query disputes and advance the session window.
// ValidatorClient implements the CandidateValidator interface by calling a
// procedure registered by an external validation service, and Distributor
// implements the VoteDistributor interface by publishing votes on a topic
// which a VoteListener on other nodes feeds back into their coordinator.
package wamp

const (
	// ErrProcessing indicates that the callee ran into an error while
	// processing the call.
	ErrProcessing = "io.disputes.processing_error"

	// ErrStaleSession indicates that a NotifyNewSession call did not advance
	// the window.
	ErrStaleSession = "io.disputes.stale_session"
)

// Procedures registered by the Endpoint.
const (
	ProcImportStatements    = "disputes.import_statements"
	ProcQueryCandidateVotes = "disputes.query_candidate_votes"
	ProcActiveDisputes      = "disputes.active_disputes"
	ProcRecentDisputes      = "disputes.recent_disputes"
	ProcNotifyNewSession    = "disputes.notify_new_session"
	ProcIssueLocalStatement = "disputes.issue_local_statement"
	ProcStats               = "disputes.stats"
)

// TopicVotes is the topic on which local votes are published.
const TopicVotes = "disputes.votes"

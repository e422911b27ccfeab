package wamp

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/gammazero/nexus/v3/client"
	"github.com/gammazero/nexus/v3/wamp"
	"github.com/mosaicnetworks/disputes/src/coordinator"
	"github.com/mosaicnetworks/disputes/src/dispute"
	"github.com/sirupsen/logrus"
)

// NotifyResult is the JSON result of the notify_new_session procedure.
type NotifyResult struct {
	Old          dispute.Window
	New          dispute.Window
	FirstAdvance bool
	Pruned       int
	PruneError   string `json:",omitempty"`
	TimedOut     []coordinator.CandidateKey
}

// Endpoint serves the coordinator's requests as WAMP procedures.
type Endpoint struct {
	client      *client.Client
	coordinator *coordinator.Coordinator
	procs       []string
	logger      *logrus.Entry
}

// NewEndpoint ...
func NewEndpoint(cli *client.Client, c *coordinator.Coordinator, logger *logrus.Entry) *Endpoint {
	return &Endpoint{
		client:      cli,
		coordinator: c,
		logger:      logger,
	}
}

// Register registers every procedure with the router.
func (e *Endpoint) Register() error {
	handlers := map[string]client.InvocationHandler{
		ProcImportStatements:    e.importStatements,
		ProcQueryCandidateVotes: e.queryCandidateVotes,
		ProcActiveDisputes:      e.activeDisputes,
		ProcRecentDisputes:      e.recentDisputes,
		ProcNotifyNewSession:    e.notifyNewSession,
		ProcIssueLocalStatement: e.issueLocalStatement,
		ProcStats:               e.stats,
	}

	for proc, handler := range handlers {
		if err := e.client.Register(proc, handler, nil); err != nil {
			e.logger.WithError(err).WithField("procedure", proc).Error("Failed to register procedure")
			return err
		}
		e.procs = append(e.procs, proc)
	}

	e.logger.WithField("procedures", len(e.procs)).Debug("Registered procedures with router")

	return nil
}

// Close unregisters the procedures.
func (e *Endpoint) Close() {
	for _, proc := range e.procs {
		if err := e.client.Unregister(proc); err != nil {
			e.logger.WithError(err).WithField("procedure", proc).Debug("Unregister")
		}
	}
	e.procs = nil
}

func (e *Endpoint) importStatements(ctx context.Context, inv *wamp.Invocation) client.InvokeResult {
	var req coordinator.ImportStatementsRequest
	if err := decodeArg(inv, &req); err != nil {
		return errResult(err.Error())
	}

	resp, err := e.coordinator.ImportStatements(req.Session, req.Candidate, req.Votes)
	if err != nil {
		return errResult(err.Error())
	}

	return jsonResult(resp)
}

func (e *Endpoint) queryCandidateVotes(ctx context.Context, inv *wamp.Invocation) client.InvokeResult {
	var queries []coordinator.CandidateKey
	if err := decodeArg(inv, &queries); err != nil {
		return errResult(err.Error())
	}

	votes, err := e.coordinator.QueryCandidateVotes(queries)
	if err != nil {
		return errResult(err.Error())
	}

	return jsonResult(votes)
}

func (e *Endpoint) activeDisputes(ctx context.Context, inv *wamp.Invocation) client.InvokeResult {
	disputes, err := e.coordinator.ActiveDisputes()
	if err != nil {
		return errResult(err.Error())
	}
	return jsonResult(disputes)
}

func (e *Endpoint) recentDisputes(ctx context.Context, inv *wamp.Invocation) client.InvokeResult {
	disputes, err := e.coordinator.RecentDisputes()
	if err != nil {
		return errResult(err.Error())
	}
	return jsonResult(disputes)
}

func (e *Endpoint) notifyNewSession(ctx context.Context, inv *wamp.Invocation) client.InvokeResult {
	if len(inv.Arguments) != 1 {
		return errResult(
			fmt.Sprintf("Invocation should contain 1 argument, not %d", len(inv.Arguments)))
	}

	session, ok := wamp.AsInt64(inv.Arguments[0])
	if !ok {
		return errResult("Error reading session argument")
	}
	if session < 0 || session > math.MaxUint32 {
		return errResult(fmt.Sprintf("Session %d out of range", session))
	}

	resp, err := e.coordinator.NotifyNewSession(dispute.SessionIndex(session))
	if err == coordinator.ErrStaleSession {
		return client.InvokeResult{
			Err:  ErrStaleSession,
			Args: wamp.List{err.Error()},
		}
	}
	if err != nil {
		return errResult(err.Error())
	}

	res := NotifyResult{
		Old:          resp.Delta.Old,
		New:          resp.Delta.New,
		FirstAdvance: resp.Delta.FirstAdvance,
		Pruned:       resp.Delta.Pruned,
		TimedOut:     resp.TimedOut,
	}
	if resp.Delta.PruneErr != nil {
		res.PruneError = resp.Delta.PruneErr.Error()
	}

	return jsonResult(res)
}

func (e *Endpoint) issueLocalStatement(ctx context.Context, inv *wamp.Invocation) client.InvokeResult {
	var req coordinator.IssueLocalStatementRequest
	if err := decodeArg(inv, &req); err != nil {
		return errResult(err.Error())
	}

	if err := e.coordinator.IssueLocalStatement(req.Session, req.Candidate, req.Valid); err != nil {
		return errResult(err.Error())
	}

	return client.InvokeResult{}
}

func (e *Endpoint) stats(ctx context.Context, inv *wamp.Invocation) client.InvokeResult {
	stats, err := e.coordinator.GetStats()
	if err != nil {
		return errResult(err.Error())
	}
	return jsonResult(stats)
}

// decodeArg unmarshals the single JSON string argument of an invocation.
func decodeArg(inv *wamp.Invocation, v interface{}) error {
	if len(inv.Arguments) != 1 {
		return fmt.Errorf("Invocation should contain 1 argument, not %d", len(inv.Arguments))
	}

	raw, ok := wamp.AsString(inv.Arguments[0])
	if !ok {
		return fmt.Errorf("Error reading invocation argument")
	}

	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("Error parsing invocation argument: %v", err)
	}

	return nil
}

func jsonResult(v interface{}) client.InvokeResult {
	raw, err := json.Marshal(v)
	if err != nil {
		return errResult(fmt.Sprintf("Error encoding result: %v", err))
	}

	return client.InvokeResult{
		Args: wamp.List{string(raw)},
	}
}

func errResult(msg string) client.InvokeResult {
	return client.InvokeResult{
		Err:  ErrProcessing,
		Args: wamp.List{msg},
	}
}

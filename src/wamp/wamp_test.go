package wamp

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gammazero/nexus/v3/client"
	"github.com/mosaicnetworks/disputes/src/common"
	"github.com/mosaicnetworks/disputes/src/config"
	"github.com/mosaicnetworks/disputes/src/coordinator"
	"github.com/mosaicnetworks/disputes/src/crypto/keys"
	"github.com/mosaicnetworks/disputes/src/dispute"
	"github.com/mosaicnetworks/disputes/src/keystore"
	"github.com/mosaicnetworks/disputes/src/proxy"
	"github.com/mosaicnetworks/disputes/src/proxy/inmem"
	"github.com/mosaicnetworks/disputes/src/runtime"
	"github.com/mosaicnetworks/disputes/src/store"
	"github.com/sirupsen/logrus"
)

const testRealm = "disputes"

func newTestServer(t *testing.T) *Server {
	server, err := NewServer("", testRealm, common.NewTestEntry(t, logrus.DebugLevel))
	if err != nil {
		t.Fatal(err)
	}
	return server
}

func connect(t *testing.T, server *Server) *client.Client {
	cli, err := server.ConnectLocal()
	if err != nil {
		t.Fatal(err)
	}
	return cli
}

func testValidators(t *testing.T, n int) ([]*ecdsa.PrivateKey, *runtime.ValidatorSet) {
	privs := []*ecdsa.PrivateKey{}
	validators := []*runtime.Validator{}
	for i := 0; i < n; i++ {
		key, err := keys.GenerateECDSAKey()
		if err != nil {
			t.Fatal(err)
		}
		privs = append(privs, key)
		validators = append(validators,
			runtime.NewValidator(keys.PublicKeyHex(&key.PublicKey), fmt.Sprintf("v%d", i)))
	}
	return privs, runtime.NewValidatorSet(validators)
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func newTestCoordinator(t *testing.T,
	set *runtime.ValidatorSet,
	signer keystore.Signer,
	distributor proxy.VoteDistributor) *coordinator.Coordinator {

	conf := config.NewTestConfig(t, logrus.DebugLevel)

	c, err := coordinator.New(conf,
		store.NewInmemStore(),
		runtime.NewStaticRuntime(set),
		signer,
		nil,
		distributor)
	if err != nil {
		t.Fatal(err)
	}
	c.RunAsync()

	return c
}

func TestEndpoint(t *testing.T) {
	server := newTestServer(t)
	defer server.Shutdown()

	privs, set := testValidators(t, 4)

	c := newTestCoordinator(t, set, keystore.NewLocalKeystore(), nil)
	defer c.Shutdown()

	callee := connect(t, server)
	defer callee.Close()

	endpoint := NewEndpoint(callee, c, common.NewTestEntry(t, logrus.DebugLevel))
	if err := endpoint.Register(); err != nil {
		t.Fatal(err)
	}
	defer endpoint.Close()

	caller := connect(t, server)
	defer caller.Close()

	cli := NewClient(caller, 5*time.Second)

	res, err := cli.NotifyNewSession(3)
	if err != nil {
		t.Fatal(err)
	}
	if !res.FirstAdvance || res.New.Highest != 3 {
		t.Fatalf("wrong notify result: %+v", res)
	}

	if _, err := cli.NotifyNewSession(2); err == nil || !strings.Contains(err.Error(), ErrStaleSession) {
		t.Fatalf("should get %s, not %v", ErrStaleSession, err)
	}

	candidate := dispute.NewCandidateHash([]byte("block"))

	votes := []dispute.Vote{}
	for i := 0; i < 3; i++ {
		v, err := dispute.NewStatement(3, candidate, false).Sign(dispute.ValidatorIndex(i), privs[i])
		if err != nil {
			t.Fatal(err)
		}
		votes = append(votes, v)
	}
	// signed by validator 3 but claiming to be validator 0
	forged, _ := dispute.NewStatement(3, candidate, true).Sign(0, privs[3])
	votes = append(votes, forged)

	resp, err := cli.ImportStatements(3, candidate, votes)
	if err != nil {
		t.Fatal(err)
	}
	expected := []coordinator.ImportOutcome{
		coordinator.Imported,
		coordinator.Imported,
		coordinator.Imported,
		coordinator.BadSignature,
	}
	for i, o := range expected {
		if resp.Results[i].Outcome != o {
			t.Fatalf("result %d should be %v, not %v", i, o, resp.Results[i].Outcome)
		}
	}
	if resp.Status != dispute.ConcludedInvalid {
		t.Fatalf("status should be ConcludedInvalid, not %v", resp.Status)
	}

	cvs, err := cli.QueryCandidateVotes([]coordinator.CandidateKey{{Session: 3, Candidate: candidate}})
	if err != nil {
		t.Fatal(err)
	}
	if len(cvs) != 1 || len(cvs[0].InvalidVotes) != 3 || cvs[0].Candidate != candidate {
		t.Fatalf("wrong query result: %+v", cvs)
	}

	active, err := cli.ActiveDisputes()
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 0 {
		t.Fatalf("should have no active disputes, not %d", len(active))
	}

	recent, err := cli.RecentDisputes()
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 1 || recent[0].Status != dispute.ConcludedInvalid.String() {
		t.Fatalf("wrong recent disputes: %+v", recent)
	}

	if err := cli.IssueLocalStatement(3, candidate, true); err != nil {
		t.Fatal(err)
	}

	stats, err := cli.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats["highest_session"] != "3" {
		t.Fatalf("highest_session should be 3, not %s", stats["highest_session"])
	}
}

func TestEndpointBadArguments(t *testing.T) {
	server := newTestServer(t)
	defer server.Shutdown()

	_, set := testValidators(t, 1)

	c := newTestCoordinator(t, set, nil, nil)
	defer c.Shutdown()

	callee := connect(t, server)
	defer callee.Close()

	endpoint := NewEndpoint(callee, c, common.NewTestEntry(t, logrus.DebugLevel))
	if err := endpoint.Register(); err != nil {
		t.Fatal(err)
	}
	defer endpoint.Close()

	caller := connect(t, server)
	defer caller.Close()

	cli := NewClient(caller, 5*time.Second)

	err := cli.call(ProcImportStatements, []interface{}{"{not json"}, nil)
	if err == nil || !strings.Contains(err.Error(), ErrProcessing) {
		t.Fatalf("should get %s, not %v", ErrProcessing, err)
	}

	err = cli.call(ProcNotifyNewSession, []interface{}{"three"}, nil)
	if err == nil || !strings.Contains(err.Error(), ErrProcessing) {
		t.Fatalf("should get %s, not %v", ErrProcessing, err)
	}

	if _, err := cli.NotifyNewSession(10); err != nil {
		t.Fatal(err)
	}

	// sessions that do not fit in a SessionIndex must not be truncated
	for _, session := range []int64{int64(1)<<32 + 20, -1} {
		err = cli.call(ProcNotifyNewSession, []interface{}{session}, nil)
		if err == nil || !strings.Contains(err.Error(), ErrProcessing) {
			t.Fatalf("session %d: should get %s, not %v", session, ErrProcessing, err)
		}
	}

	stats, err := cli.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats["highest_session"] != "10" || stats["lowest_session"] != "4" {
		t.Fatalf("window should not move: %v", stats)
	}
}

func TestValidatorClient(t *testing.T) {
	server := newTestServer(t)
	defer server.Shutdown()

	logger := common.NewTestEntry(t, logrus.DebugLevel)

	callee := connect(t, server)
	defer callee.Close()

	validator := inmem.NewInmemValidator(true, logger)

	candidate := dispute.NewCandidateHash([]byte("bad block"))
	validator.SetVerdict(candidate, false)

	if err := RegisterValidator(callee, "test.validate", validator); err != nil {
		t.Fatal(err)
	}

	caller := connect(t, server)
	defer caller.Close()

	vc := NewValidatorClient(caller, "test.validate", logger)

	ctx := testContext(t)

	valid, err := vc.ValidateCandidate(ctx, proxy.ValidationRequest{ID: "1", Session: 1, Candidate: candidate})
	if err != nil {
		t.Fatal(err)
	}
	if valid {
		t.Fatal("candidate should be invalid")
	}

	valid, err = vc.ValidateCandidate(ctx, proxy.ValidationRequest{ID: "2", Session: 1, Candidate: dispute.NewCandidateHash([]byte("good block"))})
	if err != nil {
		t.Fatal(err)
	}
	if !valid {
		t.Fatal("candidate should be valid")
	}

	if reqs := validator.Requests(); len(reqs) != 2 || reqs[0].ID != "1" || reqs[0].Candidate != candidate {
		t.Fatalf("wrong requests received: %+v", reqs)
	}

	validator.SetError(errors.New("validator down"))

	if _, err := vc.ValidateCandidate(ctx, proxy.ValidationRequest{ID: "3", Session: 1, Candidate: candidate}); err == nil {
		t.Fatal("ValidateCandidate should fail")
	}

	if _, err := NewValidatorClient(caller, "test.nobody", logger).ValidateCandidate(ctx, proxy.ValidationRequest{}); err == nil {
		t.Fatal("calling an unregistered procedure should fail")
	}
}

func TestVoteDistribution(t *testing.T) {
	server := newTestServer(t)
	defer server.Shutdown()

	logger := common.NewTestEntry(t, logrus.DebugLevel)

	privs, set := testValidators(t, 4)

	// node A holds the key of validator 0 and publishes its votes
	publisher := connect(t, server)
	defer publisher.Close()

	a := newTestCoordinator(t, set,
		keystore.NewLocalKeystore(privs[0]),
		NewDistributor(publisher, TopicVotes, logger))
	defer a.Shutdown()

	// node B imports the votes published on the topic
	subscriber := connect(t, server)
	defer subscriber.Close()

	b := newTestCoordinator(t, set, nil, nil)
	defer b.Shutdown()

	listener := NewVoteListener(subscriber, TopicVotes, b, logger)
	if err := listener.Listen(); err != nil {
		t.Fatal(err)
	}
	defer listener.Close()

	for _, c := range []*coordinator.Coordinator{a, b} {
		if _, err := c.NotifyNewSession(5); err != nil {
			t.Fatal(err)
		}
	}

	candidate := dispute.NewCandidateHash([]byte("block"))

	if err := a.IssueLocalStatement(5, candidate, false); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		cvs, err := b.QueryCandidateVotes([]coordinator.CandidateKey{{Session: 5, Candidate: candidate}})
		if err != nil {
			t.Fatal(err)
		}
		if len(cvs) == 1 {
			if _, ok := cvs[0].InvalidVotes[0]; !ok {
				t.Fatalf("node B should have an invalid vote from validator 0: %+v", cvs[0])
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timeout waiting for the vote to reach node B")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

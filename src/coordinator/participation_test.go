package coordinator

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/mosaicnetworks/disputes/src/common"
	"github.com/mosaicnetworks/disputes/src/dispute"
	"github.com/mosaicnetworks/disputes/src/store"
	"github.com/sirupsen/logrus"
)

func TestSingleParticipationRequest(t *testing.T) {
	node := newTestNode(t, 4, nodeOpts{local: []int{3}, participate: true})
	defer node.shutdown(t)

	c := candidate("c")
	node.validator.SetVerdict(c, false)
	node.validator.Hold()

	node.notify(t, 1)

	checkOutcomes(t, node.importVotes(t, 1, c, node.vote(t, 0, 1, c, false)), Imported)

	waitFor(t, "validation request", func() bool {
		return len(node.validator.Requests()) == 1
	})

	// more remote votes while the request is in flight
	node.importVotes(t, 1, c, node.vote(t, 1, 1, c, true))
	node.importVotes(t, 1, c, node.vote(t, 1, 1, c, true))

	reqs := node.validator.Requests()
	if len(reqs) != 1 {
		t.Fatalf("exactly one validation request should be made, got %d", len(reqs))
	}
	if reqs[0].Session != 1 || reqs[0].Candidate != c || reqs[0].ID == "" {
		t.Fatalf("wrong validation request %#v", reqs[0])
	}

	node.validator.Release()

	dv := <-node.distributor.VoteCh()
	if dv.Vote.Validator != 3 || dv.Vote.Valid || dv.Candidate != c || dv.Session != 1 {
		t.Fatalf("wrong distributed vote %#v", dv)
	}

	waitFor(t, "local vote", func() bool {
		cv := node.query(t, 1, c)
		return cv != nil && cv.HasVoteFrom(3)
	})

	cv := node.query(t, 1, c)
	if _, ok := cv.InvalidVotes[3]; !ok {
		t.Fatal("the local vote should follow the verdict")
	}

	if len(node.validator.Requests()) != 1 {
		t.Fatal("the local vote should not trigger another request")
	}
}

func TestNoParticipationWithoutLocalKey(t *testing.T) {
	node := newTestNode(t, 4, nodeOpts{participate: true})
	defer node.shutdown(t)

	node.notify(t, 1)
	c := candidate("c")
	node.importVotes(t, 1, c, node.vote(t, 0, 1, c, false))

	stats, err := node.coordinator.GetStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats["validation_requests"] != "0" || len(node.validator.Requests()) != 0 {
		t.Fatal("a node without validator keys should not request validations")
	}
}

func TestNoParticipationWhenAlreadyVoted(t *testing.T) {
	node := newTestNode(t, 4, nodeOpts{local: []int{2}, participate: true})
	defer node.shutdown(t)

	node.notify(t, 1)
	c := candidate("c")

	// our own vote, gossiped back to us
	node.importVotes(t, 1, c, node.vote(t, 2, 1, c, true))
	node.importVotes(t, 1, c, node.vote(t, 0, 1, c, false))

	stats, _ := node.coordinator.GetStats()
	if stats["validation_requests"] != "0" {
		t.Fatalf("no validation should be requested, got %s", stats["validation_requests"])
	}
}

func TestLateVerdictIsNotDistributed(t *testing.T) {
	node := newTestNode(t, 4, nodeOpts{local: []int{3}, participate: true})
	defer node.shutdown(t)

	c := candidate("c")
	node.validator.Hold()

	node.notify(t, 1)
	node.importVotes(t, 1, c, node.vote(t, 0, 1, c, true))

	waitFor(t, "validation request", func() bool {
		return len(node.validator.Requests()) == 1
	})

	resp := node.importVotes(t, 1, c,
		node.vote(t, 1, 1, c, true),
		node.vote(t, 2, 1, c, true))
	if resp.Status != dispute.ConcludedValid {
		t.Fatalf("3 of 4 should conclude valid, got %v", resp.Status)
	}

	node.validator.Release()

	waitFor(t, "late local vote", func() bool {
		cv := node.query(t, 1, c)
		return cv != nil && cv.HasVoteFrom(3)
	})

	// drain running tasks before looking at the distributor
	waitFor(t, "idle tasks", func() bool {
		stats, err := node.coordinator.GetStats()
		return err == nil && stats["running_tasks"] == "0"
	})

	if votes := node.distributor.Votes(); len(votes) != 0 {
		t.Fatalf("a late verdict should not be distributed, got %d votes", len(votes))
	}
}

func TestValidationFailureIsRequestedAgain(t *testing.T) {
	node := newTestNode(t, 4, nodeOpts{local: []int{3}, participate: true})
	defer node.shutdown(t)

	node.validator.SetError(errValidatorDown)

	node.notify(t, 1)
	c := candidate("c")
	node.importVotes(t, 1, c, node.vote(t, 0, 1, c, true))

	waitFor(t, "retried validation requests", func() bool {
		return len(node.validator.Requests()) == node.conf.RetryAttempts
	})

	waitFor(t, "idle tasks", func() bool {
		stats, err := node.coordinator.GetStats()
		return err == nil && stats["running_tasks"] == "0"
	})

	if cv := node.query(t, 1, c); cv.HasVoteFrom(3) {
		t.Fatal("no local vote should be issued without a verdict")
	}

	// a duplicate changes nothing and does not ask again
	node.importVotes(t, 1, c, node.vote(t, 0, 1, c, true))
	if n := len(node.validator.Requests()); n != node.conf.RetryAttempts {
		t.Fatalf("unchanged vote set should not be re-validated, got %d calls", n)
	}

	// the failed request was forgotten, the next new vote asks again
	node.validator.SetError(nil)
	node.importVotes(t, 1, c, node.vote(t, 1, 1, c, true))

	waitFor(t, "local vote after the second request", func() bool {
		cv := node.query(t, 1, c)
		return cv != nil && cv.HasVoteFrom(3)
	})

	if n := len(node.validator.Requests()); n != node.conf.RetryAttempts+1 {
		t.Fatalf("candidate should be validated once more, got %d calls", n)
	}
}

func TestIssueLocalStatement(t *testing.T) {
	node := newTestNode(t, 5, nodeOpts{local: []int{1, 2}, participate: true})
	defer node.shutdown(t)

	node.notify(t, 2)
	c := candidate("c")

	if err := node.coordinator.IssueLocalStatement(2, c, false); err != nil {
		t.Fatal(err)
	}

	seen := map[dispute.ValidatorIndex]bool{}
	for i := 0; i < 2; i++ {
		dv := <-node.distributor.VoteCh()
		if dv.Vote.Valid {
			t.Fatal("distributed votes should be invalid votes")
		}
		seen[dv.Vote.Validator] = true
	}
	if !seen[1] || !seen[2] {
		t.Fatalf("votes of validators 1 and 2 should be distributed, got %v", seen)
	}

	cv := node.query(t, 2, c)
	if len(cv.InvalidVotes) != 2 || cv.Status != dispute.Active {
		t.Fatalf("vote set should hold 2 invalid votes and be Active, got %d %v",
			len(cv.InvalidVotes), cv.Status)
	}

	if len(node.validator.Requests()) != 0 {
		t.Fatal("a judged candidate should not be re-validated")
	}

	if err := node.coordinator.IssueLocalStatement(9, c, false); err == nil {
		t.Fatal("statements outside the window should be refused")
	}
}

func TestPruneClearsRequests(t *testing.T) {
	node := newTestNode(t, 4, nodeOpts{local: []int{3}, participate: true})
	defer node.shutdown(t)

	node.validator.Hold()

	node.notify(t, 1)
	c := candidate("c")
	node.importVotes(t, 1, c, node.vote(t, 0, 1, c, true))

	waitFor(t, "validation request", func() bool {
		return len(node.validator.Requests()) == 1
	})

	node.notify(t, 10)

	stats, _ := node.coordinator.GetStats()
	if stats["validation_requests"] != "0" || stats["cached_sessions"] != "0" {
		t.Fatalf("pruned sessions should be forgotten, got %v", stats)
	}

	node.validator.Release()
}

func TestRestartRecoversState(t *testing.T) {
	os.Mkdir("test_data", os.ModeDir|0777)
	dir, err := ioutil.TempDir("test_data", "badger")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	st, err := store.NewBadgerStore(dir, common.NewTestEntry(t, logrus.WarnLevel))
	if err != nil {
		t.Fatal(err)
	}

	// first run: the node holds no key
	node := newTestNode(t, 4, nodeOpts{store: st})
	node.notify(t, 3)
	c := candidate("c")
	node.importVotes(t, 3, c, node.vote(t, 0, 3, c, false))
	node.shutdown(t)

	st, err = store.NewBadgerStore(dir, common.NewTestEntry(t, logrus.WarnLevel))
	if err != nil {
		t.Fatal(err)
	}

	// second run: same network, the node now holds validator 2's key
	restarted := newTestNode(t, 4, nodeOpts{
		store:       st,
		keys:        node.keys,
		local:       []int{2},
		participate: true,
	})
	defer restarted.shutdown(t)

	stats, err := restarted.coordinator.GetStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats["highest_session"] != "3" || stats["window_initialised"] != "true" {
		t.Fatalf("window should be restored, got %v", stats)
	}

	if _, err := restarted.coordinator.NotifyNewSession(3); err != ErrStaleSession {
		t.Fatalf("restored window should reject session 3, got %v", err)
	}

	cv := restarted.query(t, 3, c)
	if cv == nil || !cv.HasVoteFrom(0) {
		t.Fatal("votes should survive a restart")
	}

	waitFor(t, "recovered validation request", func() bool {
		return len(restarted.validator.Requests()) == 1
	})

	waitFor(t, "recovered local vote", func() bool {
		cv := restarted.query(t, 3, c)
		return cv != nil && cv.HasVoteFrom(2)
	})
}

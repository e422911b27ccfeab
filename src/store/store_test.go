package store

import (
	"fmt"
	"io/ioutil"
	"os"
	"reflect"
	"testing"

	"github.com/mosaicnetworks/disputes/src/common"
	"github.com/mosaicnetworks/disputes/src/dispute"
	"github.com/sirupsen/logrus"
)

func initBadgerStore(t *testing.T) *BadgerStore {
	os.Mkdir("test_data", os.ModeDir|0777)
	dir, err := ioutil.TempDir("test_data", "badger")
	if err != nil {
		t.Fatal(err)
	}

	store, err := NewBadgerStore(dir, common.NewTestEntry(t, logrus.WarnLevel))
	if err != nil {
		t.Fatal(err)
	}

	return store
}

func removeBadgerStore(store *BadgerStore, t *testing.T) {
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(store.path); err != nil {
		t.Fatal(err)
	}
}

func testVotes(session dispute.SessionIndex, name string, status dispute.Status) *dispute.CandidateVotes {
	cv := dispute.NewCandidateVotes(session, dispute.NewCandidateHash([]byte(name)), 7, session, 100)
	cv.Insert(dispute.Vote{Validator: 1, Signature: "sig1", Valid: true})
	cv.Insert(dispute.Vote{Validator: 2, Signature: "sig2", Valid: false})
	cv.Status = status
	return cv
}

// forEachStore runs the test against an InmemStore and a BadgerStore.
func forEachStore(t *testing.T, f func(t *testing.T, s Store)) {
	t.Run("Inmem", func(t *testing.T) {
		s := NewInmemStore()
		defer s.Close()
		f(t, s)
	})
	t.Run("Badger", func(t *testing.T) {
		s := initBadgerStore(t)
		defer removeBadgerStore(s, t)
		f(t, s)
	})
}

func TestGetPutCandidateVotes(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		cv := testVotes(3, "a", dispute.Active)

		_, err := s.GetCandidateVotes(cv.Session, cv.Candidate)
		if !common.IsStore(err, common.KeyNotFound) {
			t.Fatalf("err should be KeyNotFound, not %v", err)
		}

		if err := s.PutCandidateVotes(cv); err != nil {
			t.Fatal(err)
		}

		res, err := s.GetCandidateVotes(cv.Session, cv.Candidate)
		if err != nil {
			t.Fatal(err)
		}

		if !reflect.DeepEqual(cv, res) {
			t.Fatalf("res should be %#v, not %#v", cv, res)
		}

		// the returned value must not alias the stored one
		res.Insert(dispute.Vote{Validator: 5, Signature: "x", Valid: true})
		again, _ := s.GetCandidateVotes(cv.Session, cv.Candidate)
		if again.HasVoteFrom(5) {
			t.Fatal("modifying a returned vote set should not modify the store")
		}
	})
}

func TestActiveIndex(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		a := testVotes(3, "a", dispute.Active)
		b := testVotes(4, "b", dispute.Active)
		c := testVotes(5, "c", dispute.ConcludedValid)

		for _, cv := range []*dispute.CandidateVotes{a, b, c} {
			if err := s.PutCandidateVotes(cv); err != nil {
				t.Fatal(err)
			}
		}

		active, err := s.ActiveCandidateVotes(0, 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(active) != 2 || active[0].Session != 3 || active[1].Session != 4 {
			t.Fatalf("active should be [a b], got %d entries", len(active))
		}

		active, _ = s.ActiveCandidateVotes(4, 4)
		if len(active) != 1 || active[0].Candidate != b.Candidate {
			t.Fatal("active range [4, 4] should contain b only")
		}

		// Concluding a removes it from the index
		a.Status = dispute.ConcludedInvalid
		if err := s.PutCandidateVotes(a); err != nil {
			t.Fatal(err)
		}

		active, _ = s.ActiveCandidateVotes(0, 10)
		if len(active) != 1 || active[0].Candidate != b.Candidate {
			t.Fatal("a should have left the active index")
		}

		recent, err := s.RecentCandidateVotes(0, 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(recent) != 3 {
			t.Fatalf("recent should contain 3 vote sets, not %d", len(recent))
		}
		for i, exp := range []dispute.SessionIndex{3, 4, 5} {
			if recent[i].Session != exp {
				t.Fatalf("recent[%d] should be in session %d, not %d", i, exp, recent[i].Session)
			}
		}

		recent, _ = s.RecentCandidateVotes(5, 5)
		if len(recent) != 1 || recent[0].Status != dispute.ConcludedValid {
			t.Fatal("recent range [5, 5] should contain c only")
		}
	})
}

func TestOrderWithinSession(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		for i := 0; i < 5; i++ {
			if err := s.PutCandidateVotes(testVotes(1, fmt.Sprintf("c%d", i), dispute.Active)); err != nil {
				t.Fatal(err)
			}
		}

		res, err := s.ActiveCandidateVotes(0, 1)
		if err != nil {
			t.Fatal(err)
		}
		if len(res) != 5 {
			t.Fatalf("should get 5 vote sets, not %d", len(res))
		}
		for i := 1; i < len(res); i++ {
			if string(res[i-1].Candidate[:]) >= string(res[i].Candidate[:]) {
				t.Fatal("vote sets should be sorted by candidate")
			}
		}
	})
}

func TestPrune(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		for session := dispute.SessionIndex(0); session < 10; session++ {
			if err := s.PutCandidateVotes(testVotes(session, "x", dispute.Active)); err != nil {
				t.Fatal(err)
			}
			if err := s.PutCandidateVotes(testVotes(session, "y", dispute.TimedOut)); err != nil {
				t.Fatal(err)
			}
		}

		count, err := s.Prune(8)
		if err != nil {
			t.Fatal(err)
		}
		if count != 16 {
			t.Fatalf("Prune should delete 16 vote sets, not %d", count)
		}

		for session := dispute.SessionIndex(0); session < 10; session++ {
			_, err := s.GetCandidateVotes(session, dispute.NewCandidateHash([]byte("x")))
			if session < 8 && !common.IsStore(err, common.KeyNotFound) {
				t.Fatalf("session %d should be pruned, err: %v", session, err)
			}
			if session >= 8 && err != nil {
				t.Fatalf("session %d should remain, err: %v", session, err)
			}
		}

		active, _ := s.ActiveCandidateVotes(0, 100)
		if len(active) != 2 {
			t.Fatalf("2 active vote sets should remain, not %d", len(active))
		}

		count, err = s.Prune(8)
		if err != nil || count != 0 {
			t.Fatalf("second Prune should be a no-op, count %d err %v", count, err)
		}
	})
}

func TestWindow(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		if _, err := s.GetWindow(); !common.IsStore(err, common.Empty) {
			t.Fatalf("err should be Empty, not %v", err)
		}

		w := dispute.NewWindow(14, 6)
		if err := s.SetWindow(w); err != nil {
			t.Fatal(err)
		}

		res, err := s.GetWindow()
		if err != nil {
			t.Fatal(err)
		}
		if res != w {
			t.Fatalf("window should be %v, not %v", w, res)
		}
	})
}

func TestBadgerReopen(t *testing.T) {
	s := initBadgerStore(t)
	path := s.StorePath()
	defer os.RemoveAll(path)

	cv := testVotes(2, "persisted", dispute.Active)
	if err := s.PutCandidateVotes(cv); err != nil {
		t.Fatal(err)
	}
	if err := s.SetWindow(dispute.NewWindow(2, 6)); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err := NewBadgerStore(path, common.NewTestEntry(t, logrus.WarnLevel))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	res, err := s.GetCandidateVotes(cv.Session, cv.Candidate)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cv, res) {
		t.Fatalf("res should be %#v, not %#v", cv, res)
	}

	w, err := s.GetWindow()
	if err != nil || w.Highest != 2 {
		t.Fatalf("window should be reloaded, got %v err %v", w, err)
	}
}

func TestInmemClosed(t *testing.T) {
	s := NewInmemStore()
	s.Close()

	if err := s.PutCandidateVotes(testVotes(1, "a", dispute.Active)); !common.IsStore(err, common.Closed) {
		t.Fatalf("err should be Closed, not %v", err)
	}
}

package store

import (
	"bytes"
	"fmt"

	"github.com/dgraph-io/badger"
	cm "github.com/mosaicnetworks/disputes/src/common"
	"github.com/mosaicnetworks/disputes/src/dispute"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"
)

const (
	votesPrefix  = "votes"
	activePrefix = "active"
	windowKey    = "window"
)

// BadgerStore implements the Store interface with a BadgerDB.
type BadgerStore struct {
	db   *badger.DB
	path string
}

// NewBadgerStore opens an existing database or creates a new one if nothing is
// found in path.
func NewBadgerStore(path string, logger *logrus.Entry) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).
		WithSyncWrites(true).
		WithTruncate(true)

	if logger != nil {
		sub := logger.WithFields(logrus.Fields{"ns": "badger"})
		opts = opts.WithLogger(sub)
	} else {
		opts = opts.WithLogger(nil)
	}

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "opening badger db at %s", path)
	}

	store := &BadgerStore{
		db:   handle,
		path: path,
	}
	return store, nil
}

/*******************************************************************************
Keys

Sessions are zero-padded so that the lexicographic order of keys follows the
order of sessions.
*******************************************************************************/

func candidateKey(session dispute.SessionIndex, candidate dispute.CandidateHash) string {
	return fmt.Sprintf("%010d_%x", session, candidate[:])
}

func votesKey(session dispute.SessionIndex, candidate dispute.CandidateHash) []byte {
	return []byte(fmt.Sprintf("%s_%s", votesPrefix, candidateKey(session, candidate)))
}

func activeKey(session dispute.SessionIndex, candidate dispute.CandidateHash) []byte {
	return []byte(fmt.Sprintf("%s_%s", activePrefix, candidateKey(session, candidate)))
}

// sessionBound returns the smallest key with the given prefix and a session
// greater than or equal to session. session may exceed the range of
// SessionIndex by one.
func sessionBound(prefix string, session uint64) []byte {
	return []byte(fmt.Sprintf("%s_%010d_", prefix, session))
}

/*******************************************************************************
Implement the Store interface
*******************************************************************************/

// GetCandidateVotes implements the Store interface.
func (s *BadgerStore) GetCandidateVotes(session dispute.SessionIndex, candidate dispute.CandidateHash) (*dispute.CandidateVotes, error) {
	var data []byte
	key := votesKey(session, candidate)

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, mapError(err, "CandidateVotes", string(key))
	}

	cv := new(dispute.CandidateVotes)
	if err := cv.Unmarshal(data); err != nil {
		return nil, errors.Wrap(cm.NewStoreErr("CandidateVotes", cm.Corrupted, string(key)), err.Error())
	}

	return cv, nil
}

// PutCandidateVotes implements the Store interface. The record and its active
// index entry are written in the same transaction.
func (s *BadgerStore) PutCandidateVotes(votes *dispute.CandidateVotes) error {
	val, err := votes.Marshal()
	if err != nil {
		return errors.Wrap(err, "encoding candidate votes")
	}

	tx := s.db.NewTransaction(true)
	defer tx.Discard()

	//insert [votes_session_candidate] => [vote set bytes]
	if err := tx.Set(votesKey(votes.Session, votes.Candidate), val); err != nil {
		return errors.Wrap(err, "writing candidate votes")
	}

	ak := activeKey(votes.Session, votes.Candidate)
	if votes.Status == dispute.Active {
		//insert [active_session_candidate] => []
		err = tx.Set(ak, []byte{})
	} else {
		err = tx.Delete(ak)
	}
	if err != nil {
		return errors.Wrap(err, "updating active index")
	}

	return errors.Wrap(tx.Commit(), "committing candidate votes")
}

// ActiveCandidateVotes implements the Store interface.
func (s *BadgerStore) ActiveCandidateVotes(from, to dispute.SessionIndex) ([]*dispute.CandidateVotes, error) {
	res := []*dispute.CandidateVotes{}

	start := sessionBound(activePrefix, uint64(from))
	end := sessionBound(activePrefix, uint64(to)+1)
	prefix := []byte(activePrefix + "_")

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			if bytes.Compare(key, end) >= 0 {
				break
			}

			vk := append([]byte(votesPrefix), key[len(activePrefix):]...)

			item, err := txn.Get(vk)
			if err != nil {
				return mapError(err, "CandidateVotes", string(vk))
			}
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}

			cv := new(dispute.CandidateVotes)
			if err := cv.Unmarshal(data); err != nil {
				return errors.Wrap(cm.NewStoreErr("CandidateVotes", cm.Corrupted, string(vk)), err.Error())
			}
			res = append(res, cv)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return res, nil
}

// RecentCandidateVotes implements the Store interface.
func (s *BadgerStore) RecentCandidateVotes(from, to dispute.SessionIndex) ([]*dispute.CandidateVotes, error) {
	res := []*dispute.CandidateVotes{}

	start := sessionBound(votesPrefix, uint64(from))
	end := sessionBound(votesPrefix, uint64(to)+1)
	prefix := []byte(votesPrefix + "_")

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			if bytes.Compare(item.Key(), end) >= 0 {
				break
			}

			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}

			cv := new(dispute.CandidateVotes)
			if err := cv.Unmarshal(data); err != nil {
				return errors.Wrap(cm.NewStoreErr("CandidateVotes", cm.Corrupted, string(item.Key())), err.Error())
			}
			res = append(res, cv)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return res, nil
}

// Prune implements the Store interface. All the deletions are committed
// together unless they exceed the size of a single badger transaction.
func (s *BadgerStore) Prune(below dispute.SessionIndex) (int, error) {
	var keys [][]byte
	count := 0

	for _, prefix := range []string{votesPrefix, activePrefix} {
		end := sessionBound(prefix, uint64(below))
		p := []byte(prefix + "_")

		err := s.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek(p); it.ValidForPrefix(p); it.Next() {
				key := it.Item().KeyCopy(nil)
				if bytes.Compare(key, end) >= 0 {
					break
				}
				keys = append(keys, key)
				if prefix == votesPrefix {
					count++
				}
			}
			return nil
		})
		if err != nil {
			return 0, errors.Wrap(err, "scanning keys to prune")
		}
	}

	if len(keys) == 0 {
		return 0, nil
	}

	tx := s.db.NewTransaction(true)
	defer func() { tx.Discard() }()

	for _, k := range keys {
		err := tx.Delete(k)
		if err == badger.ErrTxnTooBig {
			if err := tx.Commit(); err != nil {
				return 0, errors.Wrap(err, "committing pruned keys")
			}
			tx = s.db.NewTransaction(true)
			err = tx.Delete(k)
		}
		if err != nil {
			return 0, errors.Wrap(err, "deleting pruned key")
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "committing pruned keys")
	}

	return count, nil
}

// GetWindow implements the Store interface.
func (s *BadgerStore) GetWindow() (dispute.Window, error) {
	var w dispute.Window
	var data []byte

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(windowKey))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if isDBKeyNotFound(err) {
		return w, cm.NewStoreErr("Window", cm.Empty, windowKey)
	}
	if err != nil {
		return w, err
	}

	dec := codec.NewDecoderBytes(data, new(codec.MsgpackHandle))
	if err := dec.Decode(&w); err != nil {
		return w, errors.Wrap(cm.NewStoreErr("Window", cm.Corrupted, windowKey), err.Error())
	}

	return w, nil
}

// SetWindow implements the Store interface.
func (s *BadgerStore) SetWindow(window dispute.Window) error {
	var data []byte
	enc := codec.NewEncoderBytes(&data, new(codec.MsgpackHandle))
	if err := enc.Encode(window); err != nil {
		return err
	}

	tx := s.db.NewTransaction(true)
	defer tx.Discard()

	if err := tx.Set([]byte(windowKey), data); err != nil {
		return errors.Wrap(err, "writing window")
	}

	return errors.Wrap(tx.Commit(), "committing window")
}

// Close implements the Store interface.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// StorePath implements the Store interface.
func (s *BadgerStore) StorePath() string {
	return s.path
}

func isDBKeyNotFound(err error) bool {
	return err != nil && err.Error() == badger.ErrKeyNotFound.Error()
}

func mapError(err error, name, key string) error {
	if err != nil {
		if isDBKeyNotFound(err) {
			return cm.NewStoreErr(name, cm.KeyNotFound, key)
		}
	}
	return err
}

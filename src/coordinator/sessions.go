package coordinator

import (
	"github.com/mosaicnetworks/disputes/src/common"
	"github.com/mosaicnetworks/disputes/src/dispute"
	"github.com/mosaicnetworks/disputes/src/runtime"
	"github.com/sirupsen/logrus"
)

// sessionInfo is what the coordinator knows about a session: its validator
// set and the indices of the validators whose keys are held locally.
type sessionInfo struct {
	set   *runtime.ValidatorSet
	local []dispute.ValidatorIndex
}

// sessionCallback is work deferred until a session's information is known.
// info is nil when err is not.
type sessionCallback func(info *sessionInfo, err error)

// sessionCache holds the information of the sessions in the window and the
// work waiting for sessions that are being fetched. It is only accessed from
// the processing loop.
type sessionCache struct {
	infos    map[dispute.SessionIndex]*sessionInfo
	pending  map[dispute.SessionIndex][]sessionCallback
	fetching map[dispute.SessionIndex]bool
}

func newSessionCache() *sessionCache {
	return &sessionCache{
		infos:    make(map[dispute.SessionIndex]*sessionInfo),
		pending:  make(map[dispute.SessionIndex][]sessionCallback),
		fetching: make(map[dispute.SessionIndex]bool),
	}
}

func (sc *sessionCache) pendingCount() int {
	count := 0
	for _, cbs := range sc.pending {
		count += len(cbs)
	}
	return count
}

// withSessionInfo calls f as soon as the session's information is available.
// It calls f immediately if the information is cached, and otherwise queues f
// and launches a fetch if none is in flight.
func (c *Coordinator) withSessionInfo(session dispute.SessionIndex, f sessionCallback) {
	if info, ok := c.sessions.infos[session]; ok {
		f(info, nil)
		return
	}

	c.sessions.pending[session] = append(c.sessions.pending[session], f)

	if c.sessions.fetching[session] {
		return
	}
	c.sessions.fetching[session] = true

	c.tasks.GoFunc(func() {
		info, err := c.fetchSessionInfo(session)
		c.post(sessionInfoResult{session: session, info: info, err: err})
	})
}

// fetchSessionInfo runs in a background task. It queries the runtime, with
// retries, and finds the local validators by asking the keystore.
func (c *Coordinator) fetchSessionInfo(session dispute.SessionIndex) (*sessionInfo, error) {
	var set *runtime.ValidatorSet

	err := common.Retry(c.ctx, c.conf.RetryAttempts, c.conf.RetryBackoff, func() error {
		var err error
		set, err = c.runtime.SessionInfo(c.ctx, session)
		if err != nil {
			c.logger.WithError(err).WithField("session", session).Debug("SessionInfo")
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	info := &sessionInfo{set: set}

	if c.signer != nil {
		for i, v := range set.Validators {
			if c.signer.HasKey(v.PubKeyHex) {
				info.local = append(info.local, dispute.ValidatorIndex(i))
			}
		}
	}

	return info, nil
}

// onSessionInfo is called from the loop when a fetch completes. It caches the
// information if the session is still in the window and runs the deferred
// work.
func (c *Coordinator) onSessionInfo(res sessionInfoResult) {
	delete(c.sessions.fetching, res.session)

	callbacks := c.sessions.pending[res.session]
	delete(c.sessions.pending, res.session)

	if res.err != nil {
		c.logger.WithError(res.err).WithFields(logrus.Fields{
			"session":  res.session,
			"deferred": len(callbacks),
		}).Error("Session information unavailable")

		for _, f := range callbacks {
			f(nil, res.err)
		}
		return
	}

	if c.window.InWindow(res.session) {
		c.sessions.infos[res.session] = res.info
	}

	c.logger.WithFields(logrus.Fields{
		"session":    res.session,
		"validators": res.info.set.Len(),
		"local":      len(res.info.local),
		"deferred":   len(callbacks),
	}).Debug("Session information")

	for _, f := range callbacks {
		f(res.info, nil)
	}
}

// pruneSessions forgets the sessions below the window and fails the work that
// was waiting for them.
func (c *Coordinator) pruneSessions(lowest dispute.SessionIndex) {
	for s := range c.sessions.infos {
		if s < lowest {
			delete(c.sessions.infos, s)
		}
	}

	for s, callbacks := range c.sessions.pending {
		if s >= lowest {
			continue
		}
		delete(c.sessions.pending, s)
		for _, f := range callbacks {
			f(nil, errSessionPruned)
		}
	}
}

package coordinator

import (
	"context"
	"sync"

	"github.com/mosaicnetworks/disputes/src/config"
	"github.com/mosaicnetworks/disputes/src/keystore"
	"github.com/mosaicnetworks/disputes/src/proxy"
	"github.com/mosaicnetworks/disputes/src/runtime"
	"github.com/mosaicnetworks/disputes/src/store"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Coordinator is the dispute coordinator. All the requests, and the
// completions of its background tasks, go through a single ordered channel
// consumed by one goroutine, which is the only one to touch the store, the
// window and the caches.
type Coordinator struct {
	conf *config.Config

	store      store.Store
	window     *SessionWindow
	reconciler *Reconciler
	sessions   *sessionCache

	// candidates for which a validation was requested
	requested map[CandidateKey]struct{}

	runtime     runtime.API
	signer      keystore.Signer
	validator   proxy.CandidateValidator
	distributor proxy.VoteDistributor

	tasks *taskManager

	rpcCh      chan RPC
	fatalCh    chan error
	shutdownCh chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	loopWG       sync.WaitGroup
	shutdownOnce sync.Once

	storageFailures int

	logger *logrus.Entry
}

// New creates a Coordinator. The signer, validator and distributor are
// optional: without a signer the node never votes, without a validator it
// never requests validations, and without a distributor its votes stay local.
// The persisted window, if any, is restored from the store.
func New(conf *config.Config,
	st store.Store,
	rt runtime.API,
	signer keystore.Signer,
	validator proxy.CandidateValidator,
	distributor proxy.VoteDistributor) (*Coordinator, error) {

	logger := conf.Logger().WithField("component", "coordinator")

	window, err := NewSessionWindow(st, conf.Retention, logger)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Coordinator{
		conf:        conf,
		store:       st,
		window:      window,
		reconciler:  NewReconciler(st, window, conf.Params(), logger),
		sessions:    newSessionCache(),
		requested:   make(map[CandidateKey]struct{}),
		runtime:     rt,
		signer:      signer,
		validator:   validator,
		distributor: distributor,
		tasks:       newTaskManager(taskLimit),
		rpcCh:       make(chan RPC, conf.InboxSize),
		fatalCh:     make(chan error, 1),
		shutdownCh:  make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
	}

	return c, nil
}

// Run processes requests until Shutdown is called. It blocks.
func (c *Coordinator) Run() {
	c.loopWG.Add(1)
	c.run()
}

// RunAsync runs the processing loop in a new goroutine.
func (c *Coordinator) RunAsync() {
	c.loopWG.Add(1)
	go c.run()
}

func (c *Coordinator) run() {
	defer c.loopWG.Done()

	bounds, ok := c.window.Bounds()
	c.logger.WithFields(logrus.Fields{
		"initialised": ok,
		"lowest":      bounds.Lowest,
		"highest":     bounds.Highest,
	}).Debug("Run")

	c.recoverParticipation()

	for {
		select {
		case rpc := <-c.rpcCh:
			c.processRPC(rpc)
		case <-c.shutdownCh:
			return
		}
	}
}

// Fatal returns a channel on which an unrecoverable error is sent. The
// supervisor is expected to shut the coordinator down when it receives one.
func (c *Coordinator) Fatal() <-chan error {
	return c.fatalCh
}

// Shutdown stops the processing loop, cancels and waits for background tasks,
// and closes the store. It is safe to call more than once.
func (c *Coordinator) Shutdown() error {
	var err error
	c.shutdownOnce.Do(func() {
		c.logger.Debug("Shutdown")

		close(c.shutdownCh)
		c.cancel()

		c.loopWG.Wait()
		c.tasks.WaitRoutines()

		err = c.store.Close()
	})
	return err
}

// post delivers an internal command to the processing loop. It gives up on
// shutdown.
func (c *Coordinator) post(cmd interface{}) {
	select {
	case c.rpcCh <- RPC{Command: cmd}:
	case <-c.shutdownCh:
	}
}

// checkStorage counts consecutive storage failures and reports a fatal error
// when there are too many. A nil error resets the count.
func (c *Coordinator) checkStorage(err error) {
	if err == nil {
		c.storageFailures = 0
		return
	}

	c.storageFailures++
	c.logger.WithError(err).WithField("consecutive", c.storageFailures).Error("Storage failure")

	if c.conf.MaxStorageFailures > 0 && c.storageFailures >= c.conf.MaxStorageFailures {
		select {
		case c.fatalCh <- errors.Wrap(ErrTooManyStorageFailures, err.Error()):
		default:
		}
	}
}

// recoverParticipation re-checks the Active disputes of the window after a
// restart, in case the node had not voted on some of them.
func (c *Coordinator) recoverParticipation() {
	bounds, ok := c.window.Bounds()
	if !ok || c.validator == nil {
		return
	}

	active, err := c.store.ActiveCandidateVotes(bounds.Lowest, bounds.Highest)
	if err != nil {
		c.logger.WithError(err).Error("Listing active disputes")
		return
	}

	for _, cv := range active {
		key := CandidateKey{Session: cv.Session, Candidate: cv.Candidate}
		c.withSessionInfo(key.Session, func(info *sessionInfo, err error) {
			if err != nil {
				return
			}
			// the vote set may have changed while the session was fetched
			current, err := c.store.GetCandidateVotes(key.Session, key.Candidate)
			if err != nil {
				return
			}
			c.maybeParticipate(current, info)
		})
	}
}

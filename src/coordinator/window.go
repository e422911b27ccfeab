package coordinator

import (
	cm "github.com/mosaicnetworks/disputes/src/common"
	"github.com/mosaicnetworks/disputes/src/dispute"
	"github.com/mosaicnetworks/disputes/src/store"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// WindowDelta describes a window advance.
type WindowDelta struct {
	Old dispute.Window
	New dispute.Window

	// FirstAdvance is true if the window was not initialised before.
	FirstAdvance bool

	// Number of vote sets pruned below New.Lowest, and the pruning error if
	// any. A failed prune is retried implicitly by the next advance.
	Pruned   int
	PruneErr error
}

// SessionWindow tracks the range of sessions within which disputes are
// accepted and retained. The window only moves forward. Its bounds are
// persisted before anything is pruned, so that a crash never leaves the store
// with a floor lower than the pruned data.
type SessionWindow struct {
	store     store.Store
	retention uint32

	window      dispute.Window
	initialised bool

	logger *logrus.Entry
}

// NewSessionWindow creates a SessionWindow and restores the bounds persisted
// in the store, if any.
func NewSessionWindow(st store.Store, retention uint32, logger *logrus.Entry) (*SessionWindow, error) {
	w := &SessionWindow{
		store:     st,
		retention: retention,
		logger:    logger,
	}

	bounds, err := st.GetWindow()
	switch {
	case err == nil:
		w.window = bounds
		w.initialised = true
	case cm.IsStore(err, cm.Empty):
	default:
		return nil, errors.Wrap(err, "loading session window")
	}

	return w, nil
}

// Bounds returns the current window, and false if no session was ever
// notified.
func (w *SessionWindow) Bounds() (dispute.Window, bool) {
	return w.window, w.initialised
}

// InWindow returns true if the session lies within the current window.
func (w *SessionWindow) InWindow(session dispute.SessionIndex) bool {
	return w.initialised && w.window.Contains(session)
}

// Advance moves the window so that it ends at newHighest. It returns
// ErrStaleSession, and changes nothing, if newHighest is not higher than the
// current highest session. A failure to persist the new bounds is returned and
// leaves the window unchanged. A failure to prune is only reported in the
// delta.
func (w *SessionWindow) Advance(newHighest dispute.SessionIndex) (WindowDelta, error) {
	if w.initialised && newHighest <= w.window.Highest {
		return WindowDelta{}, ErrStaleSession
	}

	nw := dispute.NewWindow(newHighest, w.retention)

	if err := w.store.SetWindow(nw); err != nil {
		return WindowDelta{}, errors.Wrap(err, "persisting session window")
	}

	delta := WindowDelta{
		Old:          w.window,
		New:          nw,
		FirstAdvance: !w.initialised,
	}

	w.window = nw
	w.initialised = true

	pruned, err := w.store.Prune(nw.Lowest)
	if err != nil {
		w.logger.WithError(err).WithField("below", nw.Lowest).Warn("Failed to prune vote sets")
		delta.PruneErr = err
	}
	delta.Pruned = pruned

	w.logger.WithFields(logrus.Fields{
		"lowest":  nw.Lowest,
		"highest": nw.Highest,
		"pruned":  pruned,
	}).Debug("Session window advanced")

	return delta, nil
}

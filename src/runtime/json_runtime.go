package runtime

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"

	"github.com/mosaicnetworks/disputes/src/dispute"
)

const (
	jsonValidatorsPath        = "validators.json"
	jsonSessionValidatorsPath = "validators.%d.json"
)

// JSONRuntime implements API with validator sets stored as JSON files in a
// base directory.
type JSONRuntime struct {
	l    sync.Mutex
	base string
}

// NewJSONRuntime creates a new JSONRuntime with reference to a base directory
// where the JSON files reside.
func NewJSONRuntime(base string) *JSONRuntime {
	return &JSONRuntime{
		base: base,
	}
}

func (j *JSONRuntime) sessionPath(session dispute.SessionIndex) string {
	return filepath.Join(j.base, fmt.Sprintf(jsonSessionValidatorsPath, session))
}

// SessionInfo implements API. It reads validators.<session>.json, or
// validators.json if the former does not exist.
func (j *JSONRuntime) SessionInfo(ctx context.Context, session dispute.SessionIndex) (*ValidatorSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	j.l.Lock()
	defer j.l.Unlock()

	buf, err := ioutil.ReadFile(j.sessionPath(session))
	if os.IsNotExist(err) {
		buf, err = ioutil.ReadFile(filepath.Join(j.base, jsonValidatorsPath))
		if os.IsNotExist(err) {
			return nil, ErrUnknownSession
		}
	}
	if err != nil {
		return nil, err
	}

	if len(buf) == 0 {
		return nil, ErrUnknownSession
	}

	return NewValidatorSetFromBytes(buf)
}

// Write persists the validator set of a session. If session is nil, it writes
// the default validators.json file.
func (j *JSONRuntime) Write(session *dispute.SessionIndex, vs *ValidatorSet) error {
	j.l.Lock()
	defer j.l.Unlock()

	path := filepath.Join(j.base, jsonValidatorsPath)
	if session != nil {
		path = j.sessionPath(*session)
	}

	data, err := vs.Marshal()
	if err != nil {
		return err
	}

	return ioutil.WriteFile(path, data, 0644)
}

package wamp

import (
	"context"
	"encoding/json"

	"github.com/gammazero/nexus/v3/client"
	"github.com/gammazero/nexus/v3/wamp"
	"github.com/mosaicnetworks/disputes/src/coordinator"
	"github.com/mosaicnetworks/disputes/src/dispute"
	"github.com/sirupsen/logrus"
)

// VoteMessage is the payload of the events published on the votes topic.
type VoteMessage struct {
	Session   dispute.SessionIndex
	Candidate dispute.CandidateHash
	Vote      dispute.Vote
}

// Distributor implements the VoteDistributor interface by publishing votes on
// a topic.
type Distributor struct {
	client *client.Client
	topic  string
	logger *logrus.Entry
}

// NewDistributor ...
func NewDistributor(cli *client.Client, topic string, logger *logrus.Entry) *Distributor {
	return &Distributor{
		client: cli,
		topic:  topic,
		logger: logger,
	}
}

// DistributeVote implements the VoteDistributor interface.
func (d *Distributor) DistributeVote(ctx context.Context,
	session dispute.SessionIndex,
	candidate dispute.CandidateHash,
	vote dispute.Vote) error {

	raw, err := json.Marshal(VoteMessage{
		Session:   session,
		Candidate: candidate,
		Vote:      vote,
	})
	if err != nil {
		return err
	}

	d.logger.WithFields(logrus.Fields{
		"session":   session,
		"candidate": candidate,
		"validator": vote.Validator,
	}).Debug("Publishing vote")

	return d.client.Publish(d.topic, nil, wamp.List{string(raw)}, nil)
}

// VoteListener subscribes to a votes topic and imports the votes it receives
// into a coordinator.
type VoteListener struct {
	client      *client.Client
	topic       string
	coordinator *coordinator.Coordinator
	logger      *logrus.Entry
}

// NewVoteListener ...
func NewVoteListener(cli *client.Client, topic string, c *coordinator.Coordinator, logger *logrus.Entry) *VoteListener {
	return &VoteListener{
		client:      cli,
		topic:       topic,
		coordinator: c,
		logger:      logger,
	}
}

// Listen subscribes to the topic.
func (l *VoteListener) Listen() error {
	if err := l.client.Subscribe(l.topic, l.onEvent, nil); err != nil {
		l.logger.WithError(err).Error("Failed to subscribe")
		return err
	}
	l.logger.WithField("topic", l.topic).Debug("Subscribed to votes")
	return nil
}

// Close unsubscribes from the topic.
func (l *VoteListener) Close() error {
	return l.client.Unsubscribe(l.topic)
}

func (l *VoteListener) onEvent(event *wamp.Event) {
	if len(event.Arguments) != 1 {
		l.logger.Debugf("Vote event should contain 1 argument, not %d", len(event.Arguments))
		return
	}

	raw, ok := wamp.AsString(event.Arguments[0])
	if !ok {
		l.logger.Debug("Error reading vote event")
		return
	}

	var msg VoteMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		l.logger.WithError(err).Debug("Error parsing vote event")
		return
	}

	resp, err := l.coordinator.ImportStatements(msg.Session, msg.Candidate, []dispute.Vote{msg.Vote})
	if err != nil {
		l.logger.WithError(err).Error("Importing distributed vote")
		return
	}

	l.logger.WithFields(logrus.Fields{
		"session":   msg.Session,
		"candidate": msg.Candidate,
		"validator": msg.Vote.Validator,
		"outcome":   resp.Results[0].Outcome,
	}).Debug("Imported distributed vote")
}

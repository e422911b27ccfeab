// Package service exposes a read-only HTTP API over a dispute coordinator.
package service

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/mosaicnetworks/disputes/src/coordinator"
	"github.com/mosaicnetworks/disputes/src/dispute"
	"github.com/sirupsen/logrus"
)

// Service ...
type Service struct {
	sync.Mutex

	bindAddress string
	coordinator *coordinator.Coordinator
	mux         *http.ServeMux
	server      *http.Server
	logger      *logrus.Entry
}

// NewService ...
func NewService(bindAddress string, c *coordinator.Coordinator, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		coordinator: c,
		mux:         http.NewServeMux(),
		logger:      logger,
	}

	service.server = &http.Server{
		Addr:    bindAddress,
		Handler: service.mux,
	}

	service.registerHandlers()

	return &service
}

func (s *Service) registerHandlers() {
	s.logger.Debug("Registering disputes API handlers")
	s.mux.HandleFunc("/stats", s.makeHandler(s.GetStats))
	s.mux.HandleFunc("/disputes/active", s.makeHandler(s.GetActiveDisputes))
	s.mux.HandleFunc("/disputes/recent", s.makeHandler(s.GetRecentDisputes))
	s.mux.HandleFunc("/votes/", s.makeHandler(s.GetCandidateVotes))
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Handler returns the http.Handler serving the API.
func (s *Service) Handler() http.Handler {
	return s.mux
}

// Serve calls ListenAndServe. This is a blocking call.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving disputes API")

	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		s.logger.Error(err)
	}
}

// Close stops the server started by Serve.
func (s *Service) Close() error {
	return s.server.Shutdown(context.Background())
}

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.coordinator.GetStats()
	if err != nil {
		s.logger.WithError(err).Error("Retrieving stats")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, stats)
}

// GetActiveDisputes ...
func (s *Service) GetActiveDisputes(w http.ResponseWriter, r *http.Request) {
	disputes, err := s.coordinator.ActiveDisputes()
	if err != nil {
		s.logger.WithError(err).Error("Retrieving active disputes")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, disputes)
}

// GetRecentDisputes ...
func (s *Service) GetRecentDisputes(w http.ResponseWriter, r *http.Request) {
	disputes, err := s.coordinator.RecentDisputes()
	if err != nil {
		s.logger.WithError(err).Error("Retrieving recent disputes")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, disputes)
}

// CandidateVotesView is the JSON representation of a vote set.
type CandidateVotesView struct {
	Session      dispute.SessionIndex
	Candidate    dispute.CandidateHash
	Status       string
	Votes        []dispute.Vote
	Equivocators []dispute.ValidatorIndex
}

// GetCandidateVotes serves /votes/<session>/<candidate>.
func (s *Service) GetCandidateVotes(w http.ResponseWriter, r *http.Request) {
	params := strings.Split(strings.TrimPrefix(r.URL.Path, "/votes/"), "/")
	if len(params) != 2 {
		http.Error(w, "expected /votes/<session>/<candidate>", http.StatusBadRequest)
		return
	}

	session, err := strconv.ParseUint(params[0], 10, 32)
	if err != nil {
		s.logger.WithError(err).Errorf("Parsing session parameter %s", params[0])
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	candidate, err := dispute.CandidateHashFromHex(params[1])
	if err != nil {
		s.logger.WithError(err).Errorf("Parsing candidate parameter %s", params[1])
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	votes, err := s.coordinator.QueryCandidateVotes([]coordinator.CandidateKey{
		{Session: dispute.SessionIndex(session), Candidate: candidate},
	})
	if err != nil {
		s.logger.WithError(err).Error("Querying candidate votes")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if len(votes) == 0 {
		http.Error(w, "no votes for candidate", http.StatusNotFound)
		return
	}

	cv := votes[0]

	writeJSON(w, CandidateVotesView{
		Session:      cv.Session,
		Candidate:    cv.Candidate,
		Status:       cv.Status.String(),
		Votes:        cv.Votes(),
		Equivocators: cv.Equivocators,
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(v)
}

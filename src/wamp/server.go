package wamp

import (
	"context"
	"net/http"

	"github.com/gammazero/nexus/v3/client"
	"github.com/gammazero/nexus/v3/router"
	"github.com/gammazero/nexus/v3/wamp"
	"github.com/sirupsen/logrus"
)

// Server implements a WAMP router through which connected clients can make RPC
// requests to one-another and publish events. Clients in the same process
// connect directly with ConnectLocal; remote clients use the websocket server.
type Server struct {
	address    string
	realm      string
	router     router.Router
	httpServer *http.Server
	logger     *logrus.Entry
}

// NewServer instantiates a new Server which can be run at a specified address.
func NewServer(address string, realm string, logger *logrus.Entry) (*Server, error) {
	// Create router instance.
	routerConfig := &router.Config{
		RealmConfigs: []*router.RealmConfig{
			{
				URI:           wamp.URI(realm),
				AnonymousAuth: true,
			},
		},
	}

	nxr, err := router.NewRouter(routerConfig, logger)
	if err != nil {
		return nil, err
	}

	wss := router.NewWebsocketServer(nxr)

	httpServer := &http.Server{
		Handler: wss,
		Addr:    address,
	}

	res := &Server{
		address:    address,
		realm:      realm,
		router:     nxr,
		httpServer: httpServer,
		logger:     logger,
	}

	return res, nil
}

// Run starts the WAMP websocket server. It blocks until Shutdown is called.
func (s *Server) Run() error {
	s.logger.WithField("address", s.address).Debug("Serving WAMP")

	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		s.logger.WithError(err).Error("Run")
		return err
	}
	return nil
}

// ConnectLocal returns a client attached directly to the router, without
// going through the websocket server.
func (s *Server) ConnectLocal() (*client.Client, error) {
	cfg := client.Config{
		Realm:  s.realm,
		Logger: s.logger,
	}
	return client.ConnectLocal(s.router, cfg)
}

// Shutdown stops the websocket server, and the wamp router
func (s *Server) Shutdown() {
	defer s.router.Close()

	if err := s.httpServer.Shutdown(context.Background()); err != nil {
		s.logger.WithError(err).Error("Shutting down http server")
	}
}

// Addr returns the address of the server
func (s *Server) Addr() string {
	return s.address
}

// Connect opens a websocket connection to a remote WAMP router.
func Connect(ctx context.Context, address string, realm string, logger *logrus.Entry) (*client.Client, error) {
	cfg := client.Config{
		Realm:  realm,
		Logger: logger,
	}
	return client.ConnectNet(ctx, "ws://"+address, cfg)
}

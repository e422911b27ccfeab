// Package disputes assembles a dispute coordinator with its store, keys,
// runtime and outer surfaces (HTTP service and WAMP endpoint) from a Config.
package disputes

import (
	"fmt"
	"os"
	"sync"

	"github.com/gammazero/nexus/v3/client"
	"github.com/mosaicnetworks/disputes/src/config"
	"github.com/mosaicnetworks/disputes/src/coordinator"
	"github.com/mosaicnetworks/disputes/src/keystore"
	"github.com/mosaicnetworks/disputes/src/proxy"
	"github.com/mosaicnetworks/disputes/src/runtime"
	"github.com/mosaicnetworks/disputes/src/service"
	"github.com/mosaicnetworks/disputes/src/store"
	"github.com/mosaicnetworks/disputes/src/wamp"
	"github.com/sirupsen/logrus"
)

// Disputes is the engine. It owns every component of a running node.
type Disputes struct {
	Config      *config.Config
	Coordinator *coordinator.Coordinator
	Store       store.Store
	Runtime     runtime.API
	Signer      keystore.Signer
	Validator   proxy.CandidateValidator
	Distributor proxy.VoteDistributor
	Service     *service.Service
	WAMPServer  *wamp.Server
	Endpoint    *wamp.Endpoint
	Listener    *wamp.VoteListener

	wampClients  []*client.Client
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	logger       *logrus.Entry
}

// NewDisputes ...
func NewDisputes(conf *config.Config) *Disputes {
	engine := &Disputes{
		Config:     conf,
		shutdownCh: make(chan struct{}),
		logger:     conf.Logger(),
	}

	return engine
}

func (d *Disputes) initStore() error {
	if !d.Config.Store {
		d.Store = store.NewInmemStore()

		d.logger.Debug("created new in-mem store")
	} else {
		var err error

		d.logger.WithField("path", d.Config.DatabaseDir).Debug("Attempting to load or create database")

		d.Store, err = store.NewBadgerStore(d.Config.DatabaseDir, d.logger)
		if err != nil {
			return err
		}
	}

	return nil
}

func (d *Disputes) initRuntime() error {
	if d.Config.Runtime != nil {
		d.Runtime = d.Config.Runtime
		return nil
	}

	d.logger.WithField("dir", d.Config.DataDir).Debug("Reading validator sets from JSON files")

	d.Runtime = runtime.NewJSONRuntime(d.Config.DataDir)

	return nil
}

func (d *Disputes) initKeys() error {
	if d.Config.Signer != nil {
		d.Signer = d.Config.Signer
		return nil
	}

	paths := []string{}
	for _, p := range d.Config.KeyfilePaths() {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			d.logger.WithField("path", p).Warn("Key file not found")
			continue
		}
		paths = append(paths, p)
	}

	ks, err := keystore.LoadLocalKeystore(paths...)
	if err != nil {
		return err
	}

	if len(ks.PubKeys()) == 0 {
		d.logger.Warn("No validator key. The node will not vote")
	} else {
		d.logger.WithField("keys", ks.PubKeys()).Debug("Loaded validator keys")
	}

	d.Signer = ks

	return nil
}

func (d *Disputes) connectWAMP() (*client.Client, error) {
	cli, err := d.WAMPServer.ConnectLocal()
	if err != nil {
		return nil, err
	}
	d.wampClients = append(d.wampClients, cli)
	return cli, nil
}

// initWAMP starts the router and the outbound WAMP collaborators. The
// endpoint itself is registered once the coordinator exists.
func (d *Disputes) initWAMP() error {
	d.Validator = d.Config.Validator
	d.Distributor = d.Config.Distributor

	if d.Config.NoWAMP {
		if d.Validator == nil && d.Config.ValidatorProcedure != "" {
			d.logger.Warn("WAMP is disabled. Ignoring validator procedure")
		}
		return nil
	}

	server, err := wamp.NewServer(d.Config.WAMPAddr,
		d.Config.WAMPRealm,
		d.logger.WithField("component", "wamp"))
	if err != nil {
		return err
	}
	d.WAMPServer = server

	if d.Validator == nil && d.Config.ValidatorProcedure != "" {
		cli, err := d.connectWAMP()
		if err != nil {
			return err
		}
		d.Validator = wamp.NewValidatorClient(cli,
			d.Config.ValidatorProcedure,
			d.logger.WithField("component", "validator-client"))
	}

	if d.Distributor == nil {
		cli, err := d.connectWAMP()
		if err != nil {
			return err
		}
		d.Distributor = wamp.NewDistributor(cli,
			wamp.TopicVotes,
			d.logger.WithField("component", "distributor"))
	}

	return nil
}

func (d *Disputes) initCoordinator() error {
	c, err := coordinator.New(d.Config,
		d.Store,
		d.Runtime,
		d.Signer,
		d.Validator,
		d.Distributor)
	if err != nil {
		return fmt.Errorf("failed to initialize coordinator: %s", err)
	}

	d.Coordinator = c

	return nil
}

func (d *Disputes) initEndpoint() error {
	if d.WAMPServer == nil {
		return nil
	}

	cli, err := d.connectWAMP()
	if err != nil {
		return err
	}

	d.Endpoint = wamp.NewEndpoint(cli, d.Coordinator, d.logger.WithField("component", "endpoint"))
	if err := d.Endpoint.Register(); err != nil {
		return err
	}

	d.Listener = wamp.NewVoteListener(cli, wamp.TopicVotes, d.Coordinator, d.logger.WithField("component", "listener"))

	return d.Listener.Listen()
}

func (d *Disputes) initService() error {
	if !d.Config.NoService {
		d.Service = service.NewService(d.Config.ServiceAddr,
			d.Coordinator,
			d.logger.WithField("component", "service"))
	}
	return nil
}

// Init creates every component. It does not start anything but the WAMP
// router, which local clients need in order to register.
func (d *Disputes) Init() error {
	d.logger.WithFields(logrus.Fields{
		"datadir":   d.Config.DataDir,
		"store":     d.Config.Store,
		"retention": d.Config.Retention,
		"timeout":   d.Config.TimeoutSessions,
	}).Debug("Init")

	if err := d.initStore(); err != nil {
		return err
	}

	if err := d.initRuntime(); err != nil {
		return err
	}

	if err := d.initKeys(); err != nil {
		return err
	}

	if err := d.initWAMP(); err != nil {
		return err
	}

	if err := d.initCoordinator(); err != nil {
		return err
	}

	if err := d.initEndpoint(); err != nil {
		return err
	}

	if err := d.initService(); err != nil {
		return err
	}

	return nil
}

// Run starts the outer surfaces and the coordinator, and blocks until
// Shutdown is called or the coordinator reports a fatal error, which is
// returned after shutting everything down.
func (d *Disputes) Run() error {
	if d.Service != nil {
		go d.Service.Serve()
	}

	if d.WAMPServer != nil && d.Config.WAMPAddr != "" {
		go d.WAMPServer.Run()
	}

	d.Coordinator.RunAsync()

	select {
	case err := <-d.Coordinator.Fatal():
		d.logger.WithError(err).Error("Fatal coordinator error")
		d.Shutdown()
		return err
	case <-d.shutdownCh:
		return nil
	}
}

// Shutdown stops every component. It is safe to call more than once.
func (d *Disputes) Shutdown() {
	d.shutdownOnce.Do(func() {
		d.logger.Debug("Shutdown")

		close(d.shutdownCh)

		if d.Listener != nil {
			if err := d.Listener.Close(); err != nil {
				d.logger.WithError(err).Debug("Closing vote listener")
			}
		}

		if d.Endpoint != nil {
			d.Endpoint.Close()
		}

		for _, cli := range d.wampClients {
			if err := cli.Close(); err != nil {
				d.logger.WithError(err).Debug("Closing WAMP client")
			}
		}

		if d.Coordinator != nil {
			if err := d.Coordinator.Shutdown(); err != nil {
				d.logger.WithError(err).Error("Shutting down coordinator")
			}
		} else if d.Store != nil {
			d.Store.Close()
		}

		if d.Service != nil {
			if err := d.Service.Close(); err != nil {
				d.logger.WithError(err).Error("Closing service")
			}
		}

		if d.WAMPServer != nil {
			d.WAMPServer.Shutdown()
		}
	})
}

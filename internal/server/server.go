// Package server orchestrates all components: peer store, NATS client, actors, dispatcher, HTTP.
package server

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	comms "github.com/nats-io/nats.go"
	"github.com/panjf2000/ants/v2"
	"github.com/spf13/afero"

	"github.com/morezero/portal-node/internal/config"
	"github.com/morezero/portal-node/internal/logging"
	"github.com/morezero/portal-node/pkg/bootstrap"
	"github.com/morezero/portal-node/pkg/commsutil"
	"github.com/morezero/portal-node/pkg/db"
	"github.com/morezero/portal-node/pkg/dispatcher"
	"github.com/morezero/portal-node/pkg/events"
	"github.com/morezero/portal-node/pkg/jsonrpc"
	"github.com/morezero/portal-node/pkg/mailbox"
	"github.com/morezero/portal-node/pkg/middleware"
	"github.com/morezero/portal-node/pkg/network"
	"github.com/morezero/portal-node/pkg/peer"
	"github.com/morezero/portal-node/pkg/transport"
)

const logPrefix = "server:server"

// routingTableLimit bounds routingTableInfo answers.
const routingTableLimit = 256

// Server is the portal-node orchestrator.
type Server struct {
	cfg   *config.Config
	local *peer.Record

	store   network.PeerStore
	pool    *pgxpool.Pool
	nc      *comms.Conn
	workers *ants.Pool

	portal  *mailbox.Mailbox[jsonrpc.PortalRequest]
	history *mailbox.Mailbox[jsonrpc.HistoryRequest]
	state   *mailbox.Mailbox[jsonrpc.StateRequest]

	overlay      *network.Overlay
	historyActor *network.Subnetwork
	stateActor   *network.Subnetwork

	handler middleware.HandlerFunc
	engine  *gin.Engine
	http    *transport.HTTPServer
	sub     *comms.Subscription

	started     bool
	actorCancel context.CancelFunc
	actors      sync.WaitGroup
	closeOnce   sync.Once
}

// Run sets up logging, starts the node and blocks until ctx is done, then
// shuts down.
func Run(ctx context.Context, cfg *config.Config, logOut io.Writer) error {
	if _, err := logging.Setup(cfg.LogLevel, cfg.LogFormat, logOut); err != nil {
		return fmt.Errorf("%s - failed to set up logging: %w", logPrefix, err)
	}
	if err := cfg.ValidateForServe(); err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("%s - Starting portal-node", logPrefix))

	s, err := New(ctx, cfg, afero.NewOsFs())
	if err != nil {
		return err
	}
	if err := s.Start(); err != nil {
		s.Close(context.Background())
		return err
	}

	slog.Info(fmt.Sprintf("%s - portal-node is ready", logPrefix))
	<-ctx.Done()
	slog.Info(fmt.Sprintf("%s - Shutting down: %v", logPrefix, context.Cause(ctx)))

	s.Close(context.Background())
	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}

// New wires every component without opening listeners. Migrations are read
// from fsys.
func New(ctx context.Context, cfg *config.Config, fsys afero.Fs) (*Server, error) {
	s := &Server{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			s.Close(context.Background())
		}
	}()

	// Step 1: Local node record
	local, err := localRecord(cfg)
	if err != nil {
		return nil, err
	}
	s.local = local
	slog.Info(fmt.Sprintf("%s - Local node %s", logPrefix, local.NodeID()))

	// Step 2: Peer store
	if err := s.openStore(ctx, fsys); err != nil {
		return nil, err
	}

	// Step 2b: Bootnodes
	if err := s.seedBootnodes(ctx, fsys); err != nil {
		return nil, err
	}

	// Step 3: NATS connection and peer event publisher
	var publisher events.PeerPublisher = &events.NoOpPublisher{}
	if cfg.NATSEnabled {
		nc, err := commsutil.Connect(cfg.NATSURL, cfg.ServiceName)
		if err != nil {
			return nil, fmt.Errorf("%s - failed to connect to NATS: %w", logPrefix, err)
		}
		s.nc = nc
		publisher = events.NewCommsPublisher(nc, &events.CommsPublisherOpts{GlobalSubject: cfg.PeerEventSubject})
		slog.Info(fmt.Sprintf("%s - Connected to NATS at %s", logPrefix, cfg.NATSURL))
	}

	// Step 4: Actors
	workers, err := network.NewPool(cfg.WorkerPoolSize)
	if err != nil {
		return nil, err
	}
	s.workers = workers

	version, err := cfg.Version()
	if err != nil {
		return nil, err
	}
	radius, err := cfg.Radius()
	if err != nil {
		return nil, err
	}
	deps := network.Deps{Local: local, Store: s.store, Publisher: publisher, TableLimit: routingTableLimit}
	s.overlay = network.NewOverlay(deps, version)
	s.historyActor = network.NewSubnetwork(network.SubnetworkHistory, deps, radius)
	s.stateActor = network.NewSubnetwork(network.SubnetworkState, deps, radius)

	s.portal = mailbox.New[jsonrpc.PortalRequest]()
	s.history = mailbox.New[jsonrpc.HistoryRequest]()
	s.state = mailbox.New[jsonrpc.StateRequest]()

	// Step 5: Dispatcher and middleware chain
	disp := dispatcher.NewDispatcher(s.portal, s.history, s.state)
	chain := middleware.Chain(
		middleware.Recover(),
		middleware.Logging(),
		middleware.Metrics(dispatcher.Methods()),
		middleware.RateLimit(cfg.RPCRateLimit, cfg.RPCRateBurst),
		middleware.Timeout(cfg.RequestTimeout),
	)
	s.handler = chain(disp.Dispatch)

	// Step 6: HTTP surface
	s.engine = transport.NewHTTPHandler(s.handler, s.Health, cfg.HealthCheckTimeout, cfg.HTTPCORSOrigins)
	s.http = transport.NewHTTPServer(s.engine, transport.WithAddress(cfg.ListenAddr()))

	ok = true
	return s, nil
}

func (s *Server) openStore(ctx context.Context, fsys afero.Fs) error {
	if s.cfg.DatabaseURL == "" {
		s.store = network.NewMemoryPeerStore()
		slog.Info(fmt.Sprintf("%s - DATABASE_URL not set, keeping peers in memory", logPrefix))
		return nil
	}

	pool, err := db.NewPool(ctx, s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("%s - failed to connect to database: %w", logPrefix, err)
	}
	s.pool = pool

	if s.cfg.RunMigrations {
		migrations, err := db.LoadMigrationFiles(fsys, s.cfg.MigrationPath)
		if err != nil {
			return fmt.Errorf("%s - failed to load migrations: %w", logPrefix, err)
		}
		if err := db.RunMigrations(ctx, pool, migrations); err != nil {
			return fmt.Errorf("%s - failed to run migrations: %w", logPrefix, err)
		}
	}

	s.store = db.NewRepository(pool)
	return nil
}

func (s *Server) seedBootnodes(ctx context.Context, fsys afero.Fs) error {
	rb, err := bootstrap.CreateResolvedBootstrap(
		bootstrap.LoadBootstrapConfig(fsys, s.cfg.BootstrapFile),
		network.SubnetworkOverlay, network.SubnetworkHistory, network.SubnetworkState,
	)
	if err != nil {
		return fmt.Errorf("%s - invalid bootstrap file: %w", logPrefix, err)
	}
	if _, err := bootstrap.Seed(ctx, s.store, rb); err != nil {
		return fmt.Errorf("%s - failed to seed bootnodes: %w", logPrefix, err)
	}
	return nil
}

// localRecord signs the local node record. The sequence number is the
// current Unix time so a restarted node supersedes its earlier record.
func localRecord(cfg *config.Config) (*peer.Record, error) {
	key, err := cfg.PrivateKey()
	if err != nil {
		return nil, err
	}
	if key == nil {
		key, err = ephemeralKey()
		if err != nil {
			return nil, err
		}
		slog.Warn(fmt.Sprintf("%s - NODE_KEY not set, using an ephemeral key", logPrefix))
	}

	rec, err := peer.NewLocal(key, uint64(time.Now().Unix()), net.ParseIP(cfg.NodeIP), cfg.NodeUDPPort)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to sign local record: %w", logPrefix, err)
	}
	return rec, nil
}

func ephemeralKey() (*ecdsa.PrivateKey, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("%s - failed to generate node key: %w", logPrefix, err)
	}
	return key, nil
}

// Start launches the actors, the NATS subscription (when connected) and the
// HTTP listener.
func (s *Server) Start() error {
	actorCtx, cancel := context.WithCancel(context.Background())
	s.actorCancel = cancel

	s.runActor("overlay", func() error { return network.Serve(actorCtx, s.portal, s.workers, s.overlay.Handle) })
	s.runActor("history", func() error { return network.Serve(actorCtx, s.history, s.workers, s.historyActor.HandleHistory) })
	s.runActor("state", func() error { return network.Serve(actorCtx, s.state, s.workers, s.stateActor.HandleState) })

	if s.nc != nil {
		sub, err := transport.SubscribeNATS(actorCtx, s.nc, s.cfg.RPCSubject, s.cfg.ServiceName, s.handler, s.cfg.RequestTimeout)
		if err != nil {
			return err
		}
		s.sub = sub
	}

	s.http.Start()
	s.started = true
	return nil
}

func (s *Server) runActor(name string, serve func() error) {
	s.actors.Add(1)
	go func() {
		defer s.actors.Done()
		if err := serve(); err != nil {
			slog.Warn(fmt.Sprintf("%s - %s actor stopped: %v", logPrefix, name, err))
		}
	}()
}

// Handler returns the JSON-RPC handler with the full middleware chain.
func (s *Server) Handler() middleware.HandlerFunc {
	return s.handler
}

// Engine returns the HTTP engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// LocalRecord returns the signed local node record.
func (s *Server) LocalRecord() *peer.Record {
	return s.local
}

// Health reports the peer store and NATS connection state.
func (s *Server) Health(ctx context.Context) *transport.HealthStatus {
	checks := map[string]bool{"peerStore": true}
	if s.pool != nil {
		checks["peerStore"] = s.pool.Ping(ctx) == nil
	}
	if s.cfg.NATSEnabled {
		checks["nats"] = s.nc != nil && s.nc.IsConnected()
	}

	status := "healthy"
	for _, ok := range checks {
		if !ok {
			status = "unhealthy"
		}
	}
	return &transport.HealthStatus{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// Close stops intake, lets the actors drain their mailboxes and releases
// every connection. It is safe to call more than once.
func (s *Server) Close(ctx context.Context) {
	s.closeOnce.Do(func() {
		if s.sub != nil {
			if err := s.sub.Unsubscribe(); err != nil {
				slog.Warn(fmt.Sprintf("%s - unsubscribe: %v", logPrefix, err))
			}
		}
		if s.started {
			if err := s.http.Shutdown(ctx); err != nil {
				slog.Warn(fmt.Sprintf("%s - HTTP shutdown: %v", logPrefix, err))
			}
		}

		closeMailbox(s.portal)
		closeMailbox(s.history)
		closeMailbox(s.state)
		s.actors.Wait()
		if s.actorCancel != nil {
			s.actorCancel()
		}

		if s.workers != nil {
			s.workers.Release()
		}
		if s.nc != nil {
			if err := s.nc.Drain(); err != nil {
				s.nc.Close()
			}
		}
		if s.pool != nil {
			s.pool.Close()
		}
	})
}

func closeMailbox[T any](mb *mailbox.Mailbox[T]) {
	if mb != nil {
		mb.Close()
	}
}

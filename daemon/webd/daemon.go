package webd

import (
	"context"
	"errors"
	"github.com/ethereum/go-ethereum/event"
	"github.com/gorilla/mux"
	"github.com/olahol/melody"
	"github.com/paulmach/orb"
	"github.com/rotblauer/livetrack/cache"
	"github.com/rotblauer/livetrack/common"
	"github.com/rotblauer/livetrack/conceptual"
	"github.com/rotblauer/livetrack/events"
	"github.com/rotblauer/livetrack/osrm"
	"github.com/rotblauer/livetrack/params"
	"github.com/rotblauer/livetrack/snap"
	"github.com/rotblauer/livetrack/state"
	"github.com/rotblauer/livetrack/tracklog"
	"github.com/rotblauer/livetrack/types/sample"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"time"
)

// WebDaemon is the push channel between publishers and consumers.
type WebDaemon struct {
	Config *params.WebDaemonConfig

	logger  *slog.Logger
	started time.Time

	melodyInstance *melody.Melody
	feed           *event.FeedOf[sample.Envelope]
	sub            event.Subscription

	// recentMalformed keeps the latest rejected publish bodies for /status.
	recentMalformed *common.RingBuffer[string]
	malformedSub    event.Subscription

	lastKnown *cache.LastKnown
	dedupe    *cache.Dedupe
	store     *state.Store
	recorder  *tracklog.Recorder
	nearest   snap.NearestProvider

	// routes holds each vehicle's current route, attached to pings which don't carry one.
	// A present nil route means the route was cleared.
	routesMu sync.Mutex
	routes   map[conceptual.VehicleID]orb.LineString
}

func NewWebDaemon(config *params.WebDaemonConfig) (*WebDaemon, error) {
	if config == nil {
		config = params.DefaultWebDaemonConfig()
	}
	s := &WebDaemon{
		Config:    config,
		logger:    slog.With("d", "web"),
		started:   time.Now(),
		feed:      &events.LiveFeed,
		lastKnown: cache.NewLastKnown(params.CacheLastKnownTTL),
		dedupe:    cache.NewDedupe(params.PublishDedupeSize),
		routes:    map[conceptual.VehicleID]orb.LineString{},

		recentMalformed: common.NewRingBuffer[string](recentMalformedSize),
	}

	if config.DataDir != "" {
		st, err := state.Open(config.DataDir, false)
		if err != nil {
			return nil, err
		}
		s.store = st
		err = st.EachLast(func(vehicle conceptual.VehicleID, smp sample.Sample) error {
			s.lastKnown.Set(vehicle, smp)
			if smp.HasRoute {
				s.routes[vehicle] = smp.Route
			}
			return nil
		})
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		s.logger.Info("Loaded last known samples", "vehicles", s.lastKnown.Len(), "datadir", config.DataDir)

		rec, err := tracklog.NewRecorder(filepath.Join(config.DataDir, params.TracksDirName))
		if err != nil {
			s.Close()
			return nil, err
		}
		s.recorder = rec
	}

	if config.Routing != nil && config.Routing.BaseURL != "" {
		client, err := osrm.NewClient(config.Routing)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.nearest = client
	}

	s.initMelody()
	s.watchMalformed()
	return s, nil
}

const recentMalformedSize = 16

func (s *WebDaemon) watchMalformed() {
	bodies := make(chan []byte, 16)
	s.malformedSub = events.MalformedFeed.Subscribe(bodies)
	go func() {
		for {
			select {
			case b := <-bodies:
				if len(b) > 120 {
					b = b[:120]
				}
				s.recentMalformed.Add(string(b))
			case <-s.malformedSub.Err():
				return
			}
		}
	}()
}

// SetNearestProvider replaces the nearest-road provider behind /roads/nearest.
func (s *WebDaemon) SetNearestProvider(p snap.NearestProvider) {
	s.nearest = p
}

// Run serves HTTP until ctx is cancelled or the server fails.
func (s *WebDaemon) Run(ctx context.Context) error {
	ln, err := net.Listen(s.Config.Network, s.Config.Address)
	if err != nil {
		return err
	}
	server := &http.Server{
		Handler:           s.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting web daemon", "network", s.Config.Network, "address", ln.Addr().String())

	errs := make(chan error, 1)
	go func() {
		errs <- server.Serve(ln)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	// Websocket connections are hijacked; Shutdown doesn't wait for them.
	_ = s.melodyInstance.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("Web daemon stopped")
	return nil
}

// Close stops broadcasting, and closes the track logs and the state database.
func (s *WebDaemon) Close() error {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	if s.malformedSub != nil {
		s.malformedSub.Unsubscribe()
	}
	if s.melodyInstance != nil && !s.melodyInstance.IsClosed() {
		_ = s.melodyInstance.Close()
	}
	if s.recorder != nil {
		if err := s.recorder.Close(); err != nil {
			s.logger.Warn("Failed to close track logs", "error", err)
		}
	}
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

func (s *WebDaemon) NewRouter() *mux.Router {
	router := mux.NewRouter().StrictSlash(false)
	router.Use(loggingMiddleware)

	// Handle websocket.
	router.Path("/socket").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = s.melodyInstance.HandleRequest(w, r)
	})

	apiRoutes := router.NewRoute().Subrouter()

	// All API routes use permissive CORS settings.
	apiRoutes.Use(permissiveCorsMiddleware)

	// /ping is a simple server healthcheck endpoint
	apiRoutes.Path("/ping").HandlerFunc(pingPong)

	apiJSONRoutes := apiRoutes.NewRoute().Subrouter()
	jsonMiddleware := contentTypeMiddlewareFunc("application/json")
	apiJSONRoutes.Use(jsonMiddleware)

	apiJSONRoutes.Path("/status").HandlerFunc(s.statusReport).Methods(http.MethodGet)
	apiJSONRoutes.Path("/v/{vehicle}/last").HandlerFunc(s.handleLast).Methods(http.MethodGet)
	apiJSONRoutes.Path("/roads/nearest").HandlerFunc(s.handleNearest).Methods(http.MethodGet)

	authenticatedAPIRoutes := apiJSONRoutes.NewRoute().Subrouter()
	authenticatedAPIRoutes.Use(tokenAuthenticationMiddleware)

	authenticatedAPIRoutes.Path("/v/{vehicle}/ping").HandlerFunc(s.handlePublish).Methods(http.MethodPost)
	authenticatedAPIRoutes.Path("/v/{vehicle}/route").HandlerFunc(s.handleRoute).Methods(http.MethodPatch, http.MethodPut)
	authenticatedAPIRoutes.Path("/v/{vehicle}/status").HandlerFunc(s.handleStatus).Methods(http.MethodPut, http.MethodPost)
	authenticatedAPIRoutes.Path("/v/{vehicle}").HandlerFunc(s.handleEndSession).Methods(http.MethodDelete)

	return router
}

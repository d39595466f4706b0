package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"net/url"
	"os"
	"reflect"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/aukilabs/quadcast/featureflag"
	quadcasthttp "github.com/aukilabs/quadcast/http"
	"github.com/aukilabs/quadcast/models"
	"github.com/aukilabs/quadcast/quadtree"
	"github.com/aukilabs/quadcast/raycast"
	"github.com/aukilabs/quadcast/signing"
	"github.com/aukilabs/quadcast/smoketest"
	qwebsocket "github.com/aukilabs/quadcast/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

var (
	// The quadcast version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "quadcast_info",
		Help:        "Quadcast information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string        `cli:""        env:"QUADCAST_ADDR"                 help:"Listening address for client connections."`
	AdminAddr          string        `cli:""        env:"QUADCAST_ADMIN_ADDR"           help:"Admin listening address."`
	PublicEndpoint     string        `cli:""        env:"QUADCAST_PUBLIC_ENDPOINT"      help:"The public endpoint where this server is reachable."`
	PrivateKey         string        `cli:""        env:"QUADCAST_PRIVATE_KEY"          help:"The private key of an Ethereum-compatible wallet used to sign cast results."`
	PrivateKeyFile     string        `cli:""        env:"QUADCAST_PRIVATE_KEY_FILE"     help:"The file that contains the private key used to sign cast results."`
	LogLevel           string        `cli:""        env:"QUADCAST_LOG_LEVEL"            help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"QUADCAST_LOG_INDENT"           help:"Indent logs."`
	Tree               treeConfig    `cli:""        env:"-"                             help:"Initial tree configuration."`
	MaxTrees           int           `cli:""        env:"QUADCAST_MAX_TREES"            help:"The maximum number of trees held in memory. 0 means no limit."`
	MaxTreeSize        int           `cli:""        env:"QUADCAST_MAX_TREE_SIZE"        help:"The maximum size of the trees built on request."`
	MaxBodySize        int64         `cli:",hidden" env:"QUADCAST_MAX_BODY_SIZE"        help:"The maximum size of a request body in bytes."`
	Auth               authConfig    `cli:""        env:"-"                             help:"Auth token configuration."`
	ClientIdleTimeout  time.Duration `cli:",hidden" env:"QUADCAST_CLIENT_IDLE_TIMEOUT"  help:"Time until an idle client will be disconnected"`
	LogSummaryInterval time.Duration `cli:",hidden" env:"QUADCAST_LOG_SUMMARY_INTERVAL" help:"The duration between each log summary by connection."`
	ShutdownTimeout    time.Duration `cli:",hidden" env:"QUADCAST_SHUTDOWN_TIMEOUT"     help:"The time given to in-flight requests on shutdown."`
	SmokeTestResultURL string        `cli:",hidden" env:"QUADCAST_SMOKE_TEST_RESULT_URL" help:"Endpoint where smoke test reports are posted."`
	Events             eventsConfig  `cli:",hidden" env:"-"                             help:"Event pusher configuration."`
	FeatureFlags       []string      `cli:",hidden" env:"QUADCAST_FEATURE_FLAGS"        help:"Comma separated feature flags"`
	Version            bool          `cli:""        env:"-"                             help:"Show version."`
	Help               bool          `cli:""        env:"-"                             help:"Show help."`
}

type treeConfig struct {
	Size      int     `cli:"" env:"QUADCAST_TREE_SIZE"      help:"The size of the initial tree. Its side is 2^size."`
	Seed      int64   `cli:"" env:"QUADCAST_TREE_SEED"      help:"The seed of the initial tree generator."`
	Subdivide float64 `cli:"" env:"QUADCAST_TREE_SUBDIVIDE" help:"The probability that a region is subdivided."`
	Solid     float64 `cli:"" env:"QUADCAST_TREE_SOLID"     help:"The probability that an undivided region is solid."`
}

type authConfig struct {
	Secret string `cli:"" env:"QUADCAST_AUTH_SECRET" help:"The HS256 secret of client tokens. Auth is disabled when empty."`
	Issuer string `cli:"" env:"QUADCAST_AUTH_ISSUER" help:"The required issuer of client tokens."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"QUADCAST_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"QUADCAST_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"QUADCAST_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"QUADCAST_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:           ":4000",
		AdminAddr:      ":18190",
		PublicEndpoint: "http://localhost:4000",
		LogLevel:       logs.InfoLevel.String(),
		Tree: treeConfig{
			Size:      6,
			Seed:      1,
			Subdivide: 0.5,
			Solid:     0.5,
		},
		MaxTrees:           64,
		MaxTreeSize:        models.DefaultMaxTreeSize,
		MaxBodySize:        1 << 20,
		ClientIdleTimeout:  time.Minute * 5,
		LogSummaryInterval: time.Minute,
		ShutdownTimeout:    time.Second * 10,
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts the quadcast server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	privateKey, err := signing.LoadPrivateKey(conf.PrivateKey, conf.PrivateKeyFile)
	if err != nil {
		logs.Fatal(errors.New("error loading private key").Wrap(err))
	}

	var signer *signing.Signer
	if privateKey != nil {
		signer = signing.NewSigner(privateKey)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	transport := metrics.HTTPTransport(http.DefaultTransport)

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     transport,
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "quadcast",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	featureFlags := featureflag.New(conf.FeatureFlags)
	for _, f := range featureFlags.Unknown() {
		logs.WithTag("feature_flag", f).Warn(errors.New("unknown feature flag"))
	}

	caster := raycast.CasterWithMetrics(raycast.CasterWithLogs(raycast.NewEngine(raycast.Options{
		LegacyStepCap: featureFlags.IsSet(featureflag.FlagLegacyStepCap),
		DisableTrace:  featureFlags.IsSet(featureflag.FlagDisableTrace),
	})))

	trees := models.TreeStore{
		MaxTrees:    conf.MaxTrees,
		MaxTreeSize: conf.MaxTreeSize,
	}
	defaultParams := models.BuildParams{
		Size:      conf.Tree.Size,
		Seed:      conf.Tree.Seed,
		Subdivide: conf.Tree.Subdivide,
		Solid:     conf.Tree.Solid,
	}

	var ready atomic.Bool
	go func() {
		tree, err := trees.Build(ctx, defaultParams)
		if err != nil {
			logs.Fatal(errors.New("building initial tree failed").Wrap(err))
		}

		stats := tree.Stats()
		logs.WithTag("tree_id", tree.ID).
			WithTag("size", tree.Size()).
			WithTag("leaves", stats.Leaves).
			WithTag("solid_leaves", stats.SolidLeaves).
			Info("initial tree published")
		ready.Store(true)
	}()
	readinessCheck := ready.Load

	verifier := quadcasthttp.TokenVerifier{
		Secret: []byte(conf.Auth.Secret),
		Issuer: conf.Auth.Issuer,
	}
	withAuth := func(h http.Handler) http.Handler {
		return quadcasthttp.HandleWithCORS(quadcasthttp.VerifyAuthTokenHandler(verifier, h))
	}

	var service http.ServeMux

	service.Handle("OPTIONS /", quadcasthttp.HandleWithCORS(http.NotFoundHandler()))
	service.Handle("GET /health", quadcasthttp.HandleWithCORS(http.HandlerFunc(quadcasthttp.HandleHealthCheck)))
	service.Handle("GET /ready", quadcasthttp.HandleWithCORS(quadcasthttp.HandleReadyCheck(readinessCheck)))
	service.Handle("GET /version", quadcasthttp.HandleWithCORS(quadcasthttp.HandleVersion(quadcasthttp.VersionInfo{
		Version:      version,
		FeatureFlags: featureFlags.Strings(),
	})))

	api := quadcasthttp.API{
		Trees:         &trees,
		Caster:        caster,
		DefaultParams: defaultParams,
		MaxBodySize:   conf.MaxBodySize,
	}
	api.Register(&service, withAuth)

	featureFlags.IfNotSet(featureflag.FlagDisableSmokeTest, func() {
		opts := smoketest.Options{
			Endpoint: conf.PublicEndpoint,
			Caster:   caster,
			Signer:   signer,
		}
		if conf.SmokeTestResultURL != "" {
			opts.SendResult = smoketest.NewResultSender(conf.SmokeTestResultURL, &http.Client{
				Transport: transport,
				Timeout:   time.Second * 10,
			})
		}

		service.Handle("POST /smoke-test", withAuth(smoketest.HandleSmokeTest(ctx, opts)))
	})

	featureFlags.IfNotSet(featureflag.FlagDisableWebSocket, func() {
		wsServer := websocket.Server{
			Handshake: quadcasthttp.VerifyAuthToken(verifier),
			Handler: func(conn *websocket.Conn) {
				defer conn.Close()

				var h qwebsocket.Handler = &qwebsocket.RealtimeHandler{
					ClientIdleTimeout: conf.ClientIdleTimeout,
					Trees:             &trees,
					Caster:            caster,
					Signer:            signer,
				}
				h = qwebsocket.HandlerWithLogs(h, conf.LogSummaryInterval)
				h = qwebsocket.HandlerWithMetrics(h)
				defer h.Close()

				qwebsocket.Handle(ctx, conn, h)
			},
		}

		service.Handle("GET /ws", wsServer)
		service.Handle("GET /trees/{id}/ws", wsServer)
	})

	service.Handle("GET /ping", websocket.Server{
		Handler: func(ws *websocket.Conn) {
			defer ws.Close()
			io.Copy(ws, ws)
		},
	})

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", quadcasthttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))
	admin.HandleFunc("/ready", quadcasthttp.HandleReadyCheck(readinessCheck))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("endpoint", conf.PublicEndpoint).
		WithTag("wallet_address", signer.Address()).
		WithTag("feature_flags", featureFlags.Strings()).
		WithTag("auth", verifier.Enabled()).
		Info("starting quadcast server")

	quadcasthttp.ListenAndServe(ctx, conf.ShutdownTimeout,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
			quadcasthttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)
}

func validateConfig(conf config) error {
	if _, err := url.ParseRequestURI(conf.PublicEndpoint); err != nil {
		return errors.New("invalid public endpoint").Wrap(err)
	}

	if len(conf.PrivateKey) != 0 &&
		len(conf.PrivateKeyFile) != 0 {
		return errors.New("have to specify either private key or private key file, not both")
	}

	if conf.MaxTreeSize < 0 || conf.MaxTreeSize > quadtree.MaxSize {
		return errors.Newf("max tree size must be within [0, %d]", quadtree.MaxSize)
	}

	initialTree := models.BuildParams{
		Size:      conf.Tree.Size,
		Subdivide: conf.Tree.Subdivide,
		Solid:     conf.Tree.Solid,
	}
	if err := initialTree.Validate(); err != nil {
		return errors.New("invalid initial tree").Wrap(err)
	}
	if err := initialTree.CheckSizeLimit(conf.MaxTreeSize); err != nil {
		return errors.New("invalid initial tree").Wrap(err)
	}

	if conf.MaxTrees < 0 {
		return errors.New("max trees must not be negative")
	}

	if conf.SmokeTestResultURL != "" {
		if _, err := url.ParseRequestURI(conf.SmokeTestResultURL); err != nil {
			return errors.New("invalid smoke test result url").Wrap(err)
		}
	}

	if conf.Auth.Issuer != "" && conf.Auth.Secret == "" {
		return errors.New("auth issuer given without auth secret")
	}

	return nil
}

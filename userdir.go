// Package userdir assembles the http server of the user directory: the
// directory api behind its access gate, metrics and the common middleware.
package userdir

import (
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/purvisolanki/userdir/api/directoryapi"
	"github.com/purvisolanki/userdir/internal/version"
	"github.com/purvisolanki/userdir/storage/model"
)

// HeaderVersion is set on every response and carries the server version
const HeaderVersion = "X-Userdir-Version"

// FiberServerConfig is the fiber.Config that is used to init the http fiber.App
var FiberServerConfig = fiber.Config{
	ReadTimeout:    3 * time.Second,
	WriteTimeout:   20 * time.Second,
	IdleTimeout:    150 * time.Second,
	ReadBufferSize: 8192,
	ErrorHandler:   handleError,
	Network:        "tcp",
}

// Options holds the optional parts of a Server
type Options struct {
	// AccessLog receives the http access log; nil uses stderr
	AccessLog io.Writer
	// CookieName enables cookie sessions with the given cookie name
	CookieName string
	// Registry enables prometheus metrics when set
	Registry *prometheus.Registry
	// MetricsPath is the path the metrics are served at, defaults to /metrics
	MetricsPath string
}

// Server is the user directory http server
type Server struct {
	server     *fiber.App
	serverConf ServerConf
}

// handleError renders errors that escaped a handler, e.g. unknown routes,
// with the same envelope the api uses
func handleError(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal server error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	} else {
		log.WithError(err).WithField("path", ctx.Path()).Error("unhandled error")
	}
	return ctx.Status(code).JSON(
		fiber.Map{
			"success": false,
			"message": message,
		},
	)
}

// NewServer creates a new Server serving the directory api under /api
func NewServer(
	serverConf ServerConf, storages model.Backends, tokens directoryapi.TokenIssuer, opts Options,
) (*Server, error) {
	conf := FiberServerConfig
	if tps := serverConf.TrustedProxies; len(tps) > 0 {
		conf.TrustedProxies = tps
		conf.EnableTrustedProxyCheck = true
	}
	conf.ProxyHeader = serverConf.ForwardedIPHeader
	server := fiber.New(conf)
	server.Use(recover.New())
	server.Use(compress.New())
	loggerConf := logger.Config{}
	if opts.AccessLog != nil {
		loggerConf.Output = opts.AccessLog
	}
	server.Use(logger.New(loggerConf))
	server.Use(requestid.New())
	server.Use(
		func(c *fiber.Ctx) error {
			c.Set(HeaderVersion, version.VERSION)
			return c.Next()
		},
	)

	var metrics *directoryapi.Metrics
	if opts.Registry != nil {
		metrics = directoryapi.NewMetrics(opts.Registry)
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		server.Get(path, adaptor.HTTPHandler(promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})))
	}

	apiURL := ""
	if serverConf.ExternalURL != "" {
		apiURL = strings.TrimSuffix(serverConf.ExternalURL, "/") + "/api"
	}
	if err := directoryapi.Register(
		server.Group("/api"), apiURL, storages, tokens, &directoryapi.Options{
			CookieName:   opts.CookieName,
			CookieSecure: serverConf.TLS.Enabled,
			Metrics:      metrics,
		},
	); err != nil {
		return nil, err
	}
	return &Server{
		server:     server,
		serverConf: serverConf,
	}, nil
}

// HttpHandlerFunc returns an http.HandlerFunc for serving all the necessary endpoints
func (s Server) HttpHandlerFunc() http.HandlerFunc {
	return adaptor.FiberApp(s.server)
}

// Listen starts an http server at the specific address for serving all the
// necessary endpoints
func (s Server) Listen(addr string) error {
	return s.server.Listen(addr)
}

// Shutdown gracefully stops the server
func (s Server) Shutdown() error {
	return s.server.Shutdown()
}

func (s Server) addr(port int) string {
	return net.JoinHostPort(s.serverConf.IPListen, strconv.Itoa(port))
}

// Start runs the server as configured and blocks
func (s Server) Start() {
	conf := s.serverConf
	if !conf.TLS.Enabled {
		port := conf.Port
		if port == 0 {
			port = 5000
		}
		log.WithField("port", port).Info("TLS is disabled starting http server")
		log.WithError(s.server.Listen(s.addr(port))).Fatal()
	}
	// TLS enabled
	if conf.TLS.RedirectHTTP {
		httpServer := fiber.New(FiberServerConfig)
		httpServer.All(
			"*", func(ctx *fiber.Ctx) error {
				//goland:noinspection HttpUrlsUsage
				return ctx.Redirect(
					strings.Replace(ctx.Request().URI().String(), "http://", "https://", 1),
					fiber.StatusPermanentRedirect,
				)
			},
		)
		log.Info("TLS and http redirect enabled, starting redirect server on port 80")
		go func() {
			log.WithError(httpServer.Listen(s.addr(80))).Fatal()
		}()
	}
	port := conf.Port
	if port == 0 {
		port = 443
	}
	time.Sleep(time.Millisecond) // This is just for a more pretty output with the tls header printed after the http one
	log.WithField("port", port).Info("TLS enabled, starting https server")
	log.WithError(s.server.ListenTLS(s.addr(port), conf.TLS.Cert, conf.TLS.Key)).Fatal()
}

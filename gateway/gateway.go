// Package gateway implements the ledger gateway service.
//
// The gateway exposes a RESTful API under /api/v1 that validates the parameters of every request, forwards it to the
// ledger query facade (see package lib/ledger) and replies its result verbatim. A websocket endpoint at /ws/events
// streams the events published on the notification bus.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/byzantinelab/gateway/lib/ledger"
	"github.com/byzantinelab/gateway/lib/log"
	"github.com/byzantinelab/gateway/lib/notify"
)

// Bus is the notification bus the gateway publishes events to and serves websocket clients from (see notify.Hub).
type Bus interface {
	http.Handler
	Publish(ev notify.Event)
	Count() int
	Published() int64
	Dropped() int64
}

// Gateway contains the data necessary to deliver the service.
type Gateway struct {
	lg         ledger.Ledger
	bus        Bus
	labChannel string // channel of the lab chaincode, used to tag lab events
	metrics    *metrics

	mu sync.Mutex
	s  *http.Server  // http server
	ss *http.Server  // https server
	ms *http.Server  // metrics server
	sc chan struct{} // closed once servers are shut down
}

// New returns a pointer to a new Gateway service.
func New(lg ledger.Ledger, bus Bus, labChannel string) *Gateway {
	g := &Gateway{
		lg:         lg,
		bus:        bus,
		labChannel: labChannel,
		sc:         make(chan struct{}),
	}
	g.metrics = newMetrics(bus)

	return g
}

// Registry returns the prometheus registry holding the gateway metrics.
func (g *Gateway) Registry() *prometheus.Registry {
	return g.metrics.reg
}

// Init sets up and starts the http/https servers for the API. If sslPort, sslCert and sslKey are informed, it will
// also start an https (TLS) server on the specified endpoint. Init blocks until StopGateway is called or one of the
// servers fails, in which case the others are shut down too.
func (g *Gateway) Init(endpoint, port, sslPort, sslCert, sslKey string) string {
	var (
		err, errTLS error
		wg          sync.WaitGroup
	)

	h := g.Router()

	g.mu.Lock()

	if port != "" {
		g.s = newServer(endpoint+":"+port, h)

		wg.Add(1)

		go func(s *http.Server) {
			defer wg.Done()

			if err = s.ListenAndServe(); err == http.ErrServerClosed {
				err = nil
			} else {
				log.Logger.Errorf("http server on %s failed: %v", s.Addr, err)
				g.StopGateway()
			}
		}(g.s)

		log.Logger.Infof("Listening to API http requests on %s:%s", endpoint, port)
	}

	if sslPort != "" && sslCert != "" && sslKey != "" {
		g.ss = newServer(endpoint+":"+sslPort, h)

		wg.Add(1)

		go func(s *http.Server) {
			defer wg.Done()

			if errTLS = s.ListenAndServeTLS(sslCert, sslKey); errTLS == http.ErrServerClosed {
				errTLS = nil
			} else {
				log.Logger.Errorf("https server on %s failed: %v", s.Addr, errTLS)
				g.StopGateway()
			}
		}(g.ss)

		log.Logger.Infof("Listening to API https requests on %s:%s", endpoint, sslPort)
	}

	g.mu.Unlock()

	// wait for servers to be shutdown
	<-g.sc
	wg.Wait()

	return fmt.Sprintf("shutdown http server: %v, https server: %v", err, errTLS)
}

// Monitor serves the gateway metrics on addr (ie. ":9100") at /metrics.
func (g *Gateway) Monitor(addr string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.ms = &http.Server{Addr: addr, Handler: g.metrics.handler()}

	go func(s *http.Server) {
		if err := s.ListenAndServe(); err != http.ErrServerClosed {
			log.Logger.Errorf("metrics server on %s failed: %v", s.Addr, err)
		}
	}(g.ms)

	log.Logger.Infof("Serving metrics on %s/metrics", addr)
}

// StopGateway shuts down the http servers. The bus and the ledger are owned by the caller.
func (g *Gateway) StopGateway() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for name, s := range map[string]*http.Server{"http": g.s, "https": g.ss, "metrics": g.ms} {
		if s == nil {
			continue
		}

		if err := s.Shutdown(context.Background()); err != nil {
			log.Logger.Warnf("Error in %s server shutdown: %v", name, err)
		}
	}

	select {
	case <-g.sc:
	default:
		close(g.sc)
	}
}

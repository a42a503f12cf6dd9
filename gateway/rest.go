package gateway

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzhttp"

	"github.com/byzantinelab/gateway/lib/log"
)

// transport timeouts of the API servers
const timeout = 240 * time.Second

// APIPrefix is the path prefix of every API route.
const APIPrefix = "/api/v1"

func newServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Handler:      h,
		Addr:         addr,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		IdleTimeout:  timeout,
	}
}

// Router returns the handler serving the API and the websocket endpoint. Any other path, or a known path requested
// with the wrong method, is answered with an empty 404.
func (g *Gateway) Router() http.Handler {
	notFound := http.HandlerFunc(notFoundHandler)

	r := mux.NewRouter()
	r.NotFoundHandler = notFound
	r.MethodNotAllowedHandler = notFound

	// live events
	r.Handle("/ws/events", g.bus).Methods(http.MethodGet)

	api := r.PathPrefix(APIPrefix).Subrouter()
	api.NotFoundHandler = notFound
	api.MethodNotAllowedHandler = notFound
	api.Use(g.metrics.instrument, gzipMiddleware)

	// lab records
	api.HandleFunc("/queryAllLabs", g.allLabsHandler).Methods(http.MethodGet)
	api.HandleFunc("/queryByState", g.byStateHandler).Methods(http.MethodGet)
	api.HandleFunc("/createLab", g.createLabHandler).Methods(http.MethodPost)
	// channel queries
	api.HandleFunc("/channel", g.channelHandler).Methods(http.MethodPost)
	api.HandleFunc("/peers", g.peersHandler).Methods(http.MethodPost)
	api.HandleFunc("/blockinfo", g.blockInfoHandler).Methods(http.MethodPost)
	api.HandleFunc("/block", g.blockHandler).Methods(http.MethodPost)
	api.HandleFunc("/blockhash", g.blockHashHandler).Methods(http.MethodPost)
	api.HandleFunc("/chaincodes", g.chaincodesHandler).Methods(http.MethodPost)
	api.HandleFunc("/channelconfig", g.channelConfigHandler).Methods(http.MethodPost)
	api.HandleFunc("/txproposalrate", g.txRateHandler).Methods(http.MethodPost)

	return r
}

func notFoundHandler(rw http.ResponseWriter, r *http.Request) {
	log.Logger.Errorf("No route for %s %s", r.Method, r.URL.Path)
	rw.WriteHeader(http.StatusNotFound)
}

func gzipMiddleware(h http.Handler) http.Handler {
	return gzhttp.GzipHandler(h)
}

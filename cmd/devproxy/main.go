// Command devproxy forwards requests from a browser frontend to a ledger
// sandbox, handling CORS and optionally injecting a fixed caller identity
// header so local frontends can act as a known address.
package main

import (
	"flag"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"

	"github.com/jstz-labs/fa2-ledger/internal/middleware"
	"github.com/jstz-labs/fa2-ledger/pkg/logger"
)

func main() {
	addr := flag.String("addr", ":8934", "listen address")
	upstream := flag.String("upstream", "http://127.0.0.1:8933", "ledger sandbox URL")
	identity := flag.String("identity", "", "caller identity to inject when the request has none")
	flag.Parse()

	log := logger.NewDefault("devproxy")

	target, err := url.Parse(*upstream)
	if err != nil {
		log.WithError(err).Error("parse upstream URL")
		os.Exit(1)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.WithError(err).Warnf("proxy %s %s failed", r.Method, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"upstream unavailable"}`))
	}

	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if *identity != "" && r.Header.Get(middleware.CallerHeader) == "" {
			r.Header.Set(middleware.CallerHeader, *identity)
		}
		proxy.ServeHTTP(w, r)
	})
	handler = middleware.CORS(handler)

	log.Infof("proxying %s -> %s", *addr, target)
	if err := http.ListenAndServe(*addr, handler); err != nil {
		log.WithError(err).Error("proxy server failed")
		os.Exit(1)
	}
}

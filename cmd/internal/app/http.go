package app

import (
	"encoding/json"
	"net/http"

	"quizlive/cmd/internal/cache"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func registerOps(mux *http.ServeMux, log Logger, reg *prometheus.Registry, sessions *cache.Cache) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	// Read-only dump of the locally cached session, for debugging a running
	// client without attaching a debugger.
	mux.HandleFunc("/sessionz", func(w http.ResponseWriter, _ *http.Request) {
		l, ok := sessions.Get()
		if !ok {
			http.Error(w, "no session", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(l); err != nil {
			log.Warn("ops.sessionz.encode.fail", "err", err)
		}
	})
}

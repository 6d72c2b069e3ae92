// Package api exposes the protocol controller over HTTP. The caller identity
// is taken from the X-Caller-Key header; authentication happens upstream.
package api

import (
	"net/http"
	"time"

	"github.com/DomeLiquid/lendcore/core"
	"github.com/DomeLiquid/lendcore/protocol"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	CallerHeader = "X-Caller-Key"

	requestLimit   = 1 << 20
	requestTimeout = 10 * time.Second
)

type Server struct {
	ctrl     *protocol.Controller
	log      core.Log
	gatherer prometheus.Gatherer

	router http.Handler
}

// New builds the router. A nil gatherer serves the default registry.
func New(ctrl *protocol.Controller, log core.Log, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{ctrl: ctrl, log: log, gatherer: gatherer}
	s.router = s.buildRouter()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(requestTimeout))

	r.Get("/healthz", s.health)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/market", s.getMarket)
		api.Get("/config", s.getConfig)
		api.Get("/accounts/{key}", s.getPosition)
		api.Get("/proposals", s.listProposals)
		api.Get("/proposals/{id}", s.getProposal)
		api.Get("/operates", s.listOperates)
		api.Get("/intents", s.listIntents)

		api.Post("/initialize", s.initialize)
		api.Post("/lend", s.lend)
		api.Post("/withdraw", s.withdraw)
		api.Post("/borrow", s.borrow)
		api.Post("/repay", s.repay)
		api.Post("/collateral/withdraw", s.withdrawCollateral)
		api.Post("/liquidate", s.liquidate)

		api.Post("/proposals", s.propose)
		api.Post("/proposals/{id}/votes", s.vote)
		api.Post("/proposals/{id}/finalize", s.finalize)
		api.Post("/proposals/{id}/execute", s.execute)

		api.Route("/admin", func(admin chi.Router) {
			admin.Post("/interest-rate", s.updateInterestRate)
			admin.Post("/risk-params", s.updateRiskParams)
			admin.Post("/governance/launch", s.launchGovernance)
			admin.Post("/insurance", s.depositInsurance)
			admin.Post("/price", s.setPrice)
		})
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

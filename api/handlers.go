package api

import (
	"net/http"
	"strconv"

	"github.com/DomeLiquid/lendcore/core"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type borrowRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Collateral    decimal.Decimal `json:"collateral"`
	RequestedRate decimal.Decimal `json:"requestedRate"`
}

type liquidateRequest struct {
	Borrower string `json:"borrower"`
	// Percentages, e.g. 150 and 10.
	MinCollateralRatio decimal.Decimal `json:"minCollateralRatio"`
	LiquidationPenalty decimal.Decimal `json:"liquidationPenalty"`
}

type rateRequest struct {
	BaseRate       decimal.Decimal `json:"baseRate"`
	RateMultiplier decimal.Decimal `json:"rateMultiplier"`
}

type priceRequest struct {
	Price decimal.Decimal `json:"price"`
}

type voteRequest struct {
	InFavor bool `json:"inFavor"`
}

// paramChangeRequest names the class as text instead of its numeric value.
type paramChangeRequest struct {
	Class string `json:"class"`

	BaseRate              decimal.NullDecimal `json:"baseRate"`
	RateMultiplier        decimal.NullDecimal `json:"rateMultiplier"`
	MinCollateralRatio    decimal.NullDecimal `json:"minCollateralRatio"`
	LiquidationThreshold  decimal.NullDecimal `json:"liquidationThreshold"`
	MaxLiquidationPenalty decimal.NullDecimal `json:"maxLiquidationPenalty"`
	InsuranceShare        decimal.NullDecimal `json:"insuranceShare"`
	ReserveFactor         decimal.NullDecimal `json:"reserveFactor"`
}

func (p paramChangeRequest) change() (core.ParamChange, error) {
	class, err := core.ParseParamClass(p.Class)
	if err != nil {
		return core.ParamChange{}, err
	}
	return core.ParamChange{
		Class:                 class,
		BaseRate:              p.BaseRate,
		RateMultiplier:        p.RateMultiplier,
		MinCollateralRatio:    p.MinCollateralRatio,
		LiquidationThreshold:  p.LiquidationThreshold,
		MaxLiquidationPenalty: p.MaxLiquidationPenalty,
		InsuranceShare:        p.InsuranceShare,
		ReserveFactor:         p.ReserveFactor,
	}, nil
}

func caller(r *http.Request) string {
	return r.Header.Get(CallerHeader)
}

func proposalId(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, errors.Wrap(core.InvalidParams, "proposal id")
	}
	return id, nil
}

func (s *Server) initialize(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r)(s.ctrl.Initialize(r.Context(), caller(r)))
}

func (s *Server) lend(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.respond(w, r)(s.ctrl.Lend(r.Context(), caller(r), req.Amount))
}

func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.respond(w, r)(s.ctrl.Withdraw(r.Context(), caller(r), req.Amount))
}

func (s *Server) borrow(w http.ResponseWriter, r *http.Request) {
	var req borrowRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.respond(w, r)(s.ctrl.Borrow(r.Context(), caller(r), req.Amount, req.Collateral, req.RequestedRate))
}

func (s *Server) repay(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.respond(w, r)(s.ctrl.Repay(r.Context(), caller(r), req.Amount))
}

func (s *Server) withdrawCollateral(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.respond(w, r)(s.ctrl.WithdrawCollateral(r.Context(), caller(r), req.Amount))
}

func (s *Server) liquidate(w http.ResponseWriter, r *http.Request) {
	var req liquidateRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.respond(w, r)(s.ctrl.Liquidate(r.Context(), caller(r), req.Borrower, req.MinCollateralRatio, req.LiquidationPenalty))
}

func (s *Server) updateInterestRate(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.respond(w, r)(s.ctrl.UpdateInterestRate(r.Context(), caller(r), req.BaseRate, req.RateMultiplier))
}

func (s *Server) updateRiskParams(w http.ResponseWriter, r *http.Request) {
	var req paramChangeRequest
	if !s.decode(w, r, &req) {
		return
	}
	change, err := req.change()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r)(s.ctrl.UpdateRiskParams(r.Context(), caller(r), change))
}

func (s *Server) launchGovernance(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r)(s.ctrl.LaunchGovernance(r.Context(), caller(r)))
}

func (s *Server) depositInsurance(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.respond(w, r)(s.ctrl.DepositToInsuranceFund(r.Context(), caller(r), req.Amount))
}

func (s *Server) setPrice(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.respond(w, r)(s.ctrl.SetCollateralPrice(r.Context(), caller(r), req.Price))
}

func (s *Server) propose(w http.ResponseWriter, r *http.Request) {
	var req paramChangeRequest
	if !s.decode(w, r, &req) {
		return
	}
	change, err := req.change()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r)(s.ctrl.Propose(r.Context(), caller(r), change))
}

func (s *Server) vote(w http.ResponseWriter, r *http.Request) {
	id, err := proposalId(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req voteRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.respond(w, r)(s.ctrl.Vote(r.Context(), caller(r), id, req.InFavor))
}

func (s *Server) finalize(w http.ResponseWriter, r *http.Request) {
	id, err := proposalId(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r)(s.ctrl.Finalize(r.Context(), caller(r), id))
}

func (s *Server) execute(w http.ResponseWriter, r *http.Request) {
	id, err := proposalId(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r)(s.ctrl.Execute(r.Context(), caller(r), id))
}

func (s *Server) getMarket(w http.ResponseWriter, r *http.Request) {
	m, err := s.ctrl.Market()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) getConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.ctrl.Config()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) getPosition(w http.ResponseWriter, r *http.Request) {
	pos, err := s.ctrl.Position(chi.URLParam(r, "key"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

func (s *Server) listProposals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Proposals())
}

func (s *Server) getProposal(w http.ResponseWriter, r *http.Request) {
	id, err := proposalId(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.ctrl.Proposal(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) listOperates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var op core.ActionType
	if v := q.Get("op"); v != "" {
		parsed, err := core.ParseActionType(v)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		op = parsed
	}
	before, err := queryInt(q.Get("before"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := queryInt(q.Get("limit"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ops, err := s.ctrl.Operates(r.Context(), q.Get("actor"), op, before, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ops)
}

func (s *Server) listIntents(w http.ResponseWriter, r *http.Request) {
	intents, err := s.ctrl.Intents(r.Context(), core.IntentStatus(r.URL.Query().Get("status")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, intents)
}

func queryInt(v string) (int64, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, errors.Wrapf(core.InvalidParams, "query value %q", v)
	}
	return n, nil
}

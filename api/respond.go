package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/DomeLiquid/lendcore/core"
	"github.com/DomeLiquid/lendcore/protocol"
	"github.com/pkg/errors"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var statusByError = []struct {
	err    error
	status int
}{
	{core.Unauthorized, http.StatusForbidden},
	{core.InvalidAmount, http.StatusBadRequest},
	{core.InvalidParams, http.StatusBadRequest},
	{core.RecordNotFound, http.StatusNotFound},
	{core.ProposalNotFound, http.StatusNotFound},
	{core.PriceUnavailable, http.StatusServiceUnavailable},
	{core.InsufficientFunds, http.StatusUnprocessableEntity},
	{core.InsufficientLiquidity, http.StatusUnprocessableEntity},
	{core.UndercollateralizedRequest, http.StatusUnprocessableEntity},
	{core.OverpaymentRejected, http.StatusUnprocessableEntity},
	{core.InsufficientReserve, http.StatusUnprocessableEntity},
	{core.AlreadyInitialized, http.StatusConflict},
	{core.NotInitialized, http.StatusConflict},
	{core.NoOutstandingDebt, http.StatusConflict},
	{core.PositionHealthy, http.StatusConflict},
	{core.DuplicateVote, http.StatusConflict},
	{core.ProposalNotOpen, http.StatusConflict},
	{core.ProposalNotPassed, http.StatusConflict},
	{core.ProposalConflict, http.StatusConflict},
	{core.VotingInProgress, http.StatusConflict},
	{core.GovernanceRequired, http.StatusConflict},
}

func statusOf(err error) int {
	for _, s := range statusByError {
		if errors.Is(err, s.err) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		s.log.Error().Msgf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, status, errorResponse{Code: core.ErrorCode(err), Message: err.Error()})
}

// decode reads a JSON body. It writes the error response itself and reports
// whether the handler may continue.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, requestLimit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.writeError(w, r, errors.Wrapf(core.InvalidParams, "decode request: %v", err))
		return false
	}
	return true
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request) func(*protocol.Receipt, error) {
	return func(receipt *protocol.Receipt, err error) {
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, receipt)
	}
}

package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	lendingv1 "microlend/api/lending/v1"
	"microlend/gateway/middleware"
	"microlend/native/lending"
	"microlend/network"
	"microlend/services/lending/engine"
	"microlend/services/lending/indexer"
)

const lendingRequestLimit = 1 << 20 // 1 MiB

// lendingRoutes serves the lending operations over HTTP/JSON. Mutating
// routes sign and verify the same request messages as the gRPC service so one
// envelope format covers both transports.
type lendingRoutes struct {
	engine   engine.Engine
	verifier *network.CallerVerifier
	events   EventSource
	timeout  time.Duration
	logger   *slog.Logger
}

type okBody struct {
	OK     bool `json:"ok"`
	Result any  `json:"result"`
}

func (lr *lendingRoutes) mount(r chi.Router) {
	r.Post("/contribute", lr.contribute)
	r.Post("/collateral/deposit", lr.depositCollateral)
	r.Post("/collateral/withdraw", lr.withdrawCollateral)
	r.Post("/loans", lr.requestLoan)
	r.Post("/loans/{id}/repay", lr.repayLoan)
	r.Post("/loans/{id}/liquidate", lr.liquidateLoan)
	r.Get("/loans/{id}", lr.getLoan)
	r.Get("/borrowers/{address}/loans", lr.listLoans)
	r.Get("/treasury", lr.getTreasury)
	r.Get("/positions/{address}", lr.getPosition)
	r.Get("/quote", lr.quote)
	r.Get("/height", lr.height)
	if lr.events != nil {
		r.Get("/events", lr.listEvents)
	}
}

func (lr *lendingRoutes) mountAdmin(r chi.Router) {
	r.Post("/mine", lr.mineBlocks)
	r.Post("/pause", lr.setPaused)
}

func (lr *lendingRoutes) context(parent context.Context) (context.Context, context.CancelFunc) {
	timeout := lr.timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(parent, timeout)
}

// callerContext verifies the envelope headers against the canonical encoding
// of msg and returns a context executing as the caller.
func (lr *lendingRoutes) callerContext(w http.ResponseWriter, r *http.Request, method string, msg any) (context.Context, context.CancelFunc, bool) {
	body, err := lendingv1.Codec{}.Marshal(msg)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, 0, "encode request")
		return nil, nil, false
	}
	caller, err := lr.verifier.Verify(method, body, r.Header.Get)
	if err != nil {
		writeCallerError(w, err)
		return nil, nil, false
	}
	ctx, cancel := lr.context(r.Context())
	return engine.WithCaller(ctx, caller), cancel, true
}

func (lr *lendingRoutes) contribute(w http.ResponseWriter, r *http.Request) {
	req := &lendingv1.ContributeRequest{}
	if err := decodeRequest(r, req); err != nil {
		writeBadRequest(w, err)
		return
	}
	ctx, cancel, ok := lr.callerContext(w, r, lendingv1.LendingService_Contribute_FullMethodName, req)
	if !ok {
		return
	}
	defer cancel()
	res := lending.ResultOf[uint64](lr.engine.Contribute(ctx, strings.TrimSpace(req.Amount)))
	writeOutcome(w, lr.logger, res, func(id uint64) any {
		return lendingv1.ContributeResponse{ContributionID: id}
	})
}

func (lr *lendingRoutes) depositCollateral(w http.ResponseWriter, r *http.Request) {
	req := &lendingv1.DepositCollateralRequest{}
	if err := decodeRequest(r, req); err != nil {
		writeBadRequest(w, err)
		return
	}
	ctx, cancel, ok := lr.callerContext(w, r, lendingv1.LendingService_DepositCollateral_FullMethodName, req)
	if !ok {
		return
	}
	defer cancel()
	res := lending.ResultOf[uint64](lr.engine.DepositCollateral(ctx, strings.TrimSpace(req.Amount)))
	writeOutcome(w, lr.logger, res, func(id uint64) any {
		return lendingv1.DepositCollateralResponse{DepositID: id}
	})
}

func (lr *lendingRoutes) withdrawCollateral(w http.ResponseWriter, r *http.Request) {
	req := &lendingv1.WithdrawCollateralRequest{}
	if err := decodeRequest(r, req); err != nil {
		writeBadRequest(w, err)
		return
	}
	ctx, cancel, ok := lr.callerContext(w, r, lendingv1.LendingService_WithdrawCollateral_FullMethodName, req)
	if !ok {
		return
	}
	defer cancel()
	res := lending.ResultOf[string](lr.engine.WithdrawCollateral(ctx, strings.TrimSpace(req.Amount)))
	writeOutcome(w, lr.logger, res, func(remaining string) any {
		return lendingv1.WithdrawCollateralResponse{Remaining: remaining}
	})
}

func (lr *lendingRoutes) requestLoan(w http.ResponseWriter, r *http.Request) {
	req := &lendingv1.RequestLoanRequest{}
	if err := decodeRequest(r, req); err != nil {
		writeBadRequest(w, err)
		return
	}
	ctx, cancel, ok := lr.callerContext(w, r, lendingv1.LendingService_RequestLoan_FullMethodName, req)
	if !ok {
		return
	}
	defer cancel()
	res := lending.ResultOf[uint64](lr.engine.RequestLoan(ctx, strings.TrimSpace(req.Principal), req.Duration))
	writeOutcome(w, lr.logger, res, func(id uint64) any {
		return lendingv1.RequestLoanResponse{LoanID: id}
	})
}

func (lr *lendingRoutes) repayLoan(w http.ResponseWriter, r *http.Request) {
	id, err := loanIDParam(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	req := &lendingv1.RepayLoanRequest{LoanID: id}
	ctx, cancel, ok := lr.callerContext(w, r, lendingv1.LendingService_RepayLoan_FullMethodName, req)
	if !ok {
		return
	}
	defer cancel()
	res := lending.ResultOf[bool](lr.engine.RepayLoan(ctx, id))
	writeOutcome(w, lr.logger, res, func(repaid bool) any {
		return lendingv1.RepayLoanResponse{Repaid: repaid}
	})
}

func (lr *lendingRoutes) liquidateLoan(w http.ResponseWriter, r *http.Request) {
	id, err := loanIDParam(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	req := &lendingv1.LiquidateLoanRequest{LoanID: id}
	ctx, cancel, ok := lr.callerContext(w, r, lendingv1.LendingService_LiquidateLoan_FullMethodName, req)
	if !ok {
		return
	}
	defer cancel()
	res := lending.ResultOf[string](lr.engine.LiquidateLoan(ctx, id))
	writeOutcome(w, lr.logger, res, func(seized string) any {
		return lendingv1.LiquidateLoanResponse{Seized: seized}
	})
}

func (lr *lendingRoutes) getLoan(w http.ResponseWriter, r *http.Request) {
	id, err := loanIDParam(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	ctx, cancel := lr.context(r.Context())
	defer cancel()
	loan, found, err := lr.engine.GetLoan(ctx, id)
	if err != nil {
		writeEngineError(w, lr.logger, err)
		return
	}
	resp := lendingv1.GetLoanResponse{Found: found}
	if found {
		resp.Loan = &loan
	}
	writeResult(w, resp)
}

func (lr *lendingRoutes) listLoans(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := lr.context(r.Context())
	defer cancel()
	loans, err := lr.engine.LoansByBorrower(ctx, chi.URLParam(r, "address"))
	if err != nil {
		writeEngineError(w, lr.logger, err)
		return
	}
	if loans == nil {
		loans = []lendingv1.Loan{}
	}
	writeResult(w, lendingv1.ListLoansResponse{Loans: loans})
}

func (lr *lendingRoutes) getTreasury(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := lr.context(r.Context())
	defer cancel()
	treasury, err := lr.engine.GetTreasury(ctx)
	if err != nil {
		writeEngineError(w, lr.logger, err)
		return
	}
	writeResult(w, lendingv1.GetTreasuryResponse{Treasury: treasury})
}

func (lr *lendingRoutes) getPosition(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := lr.context(r.Context())
	defer cancel()
	position, err := lr.engine.GetPosition(ctx, chi.URLParam(r, "address"))
	if err != nil {
		writeEngineError(w, lr.logger, err)
		return
	}
	writeResult(w, lendingv1.GetPositionResponse{Position: position})
}

func (lr *lendingRoutes) quote(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	duration, err := parseUintParam(query.Get("duration"), "duration")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	ctx, cancel := lr.context(r.Context())
	defer cancel()
	quote, err := lr.engine.Quote(ctx, strings.TrimSpace(query.Get("principal")), duration)
	if err != nil {
		writeEngineError(w, lr.logger, err)
		return
	}
	writeResult(w, lendingv1.QuoteLoanResponse{Quote: quote})
}

func (lr *lendingRoutes) height(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := lr.context(r.Context())
	defer cancel()
	height, err := lr.engine.Height(ctx)
	if err != nil {
		writeEngineError(w, lr.logger, err)
		return
	}
	writeResult(w, lendingv1.GetHeightResponse{Height: height})
}

func (lr *lendingRoutes) listEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := indexer.Filter{
		Type:    query.Get("type"),
		Account: query.Get("account"),
	}
	if raw := query.Get("loan"); raw != "" {
		id, err := parseUintParam(raw, "loan")
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		filter.LoanID = &id
	}
	if raw := query.Get("after"); raw != "" {
		after, err := parseUintParam(raw, "after")
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		filter.AfterSeq = after
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeBadRequest(w, fmt.Errorf("limit must be a non-negative integer"))
			return
		}
		filter.Limit = limit
	}
	ctx, cancel := lr.context(r.Context())
	defer cancel()
	records, err := lr.events.Events(ctx, filter)
	if err != nil {
		writeEngineError(w, lr.logger, err)
		return
	}
	writeResult(w, map[string]any{"events": eventViews(records)})
}

func (lr *lendingRoutes) mineBlocks(w http.ResponseWriter, r *http.Request) {
	req := &lendingv1.MineBlocksRequest{}
	if err := decodeRequest(r, req); err != nil {
		writeBadRequest(w, err)
		return
	}
	ctx, cancel := lr.context(r.Context())
	defer cancel()
	height, err := lr.engine.MineBlocks(ctx, req.Count)
	if err != nil {
		writeEngineError(w, lr.logger, err)
		return
	}
	lr.logger.Info("blocks mined",
		slog.Uint64("count", req.Count),
		slog.Uint64("height", height),
		slog.String("operator", middleware.SubjectFromContext(r.Context())))
	writeResult(w, lendingv1.MineBlocksResponse{Height: height})
}

func (lr *lendingRoutes) setPaused(w http.ResponseWriter, r *http.Request) {
	req := &lendingv1.SetPausedRequest{}
	if err := decodeRequest(r, req); err != nil {
		writeBadRequest(w, err)
		return
	}
	ctx, cancel := lr.context(r.Context())
	defer cancel()
	paused, err := lr.engine.SetPaused(ctx, req.Module, req.Paused)
	if err != nil {
		writeEngineError(w, lr.logger, err)
		return
	}
	lr.logger.Warn("module pause updated",
		slog.String("module", req.Module),
		slog.Bool("paused", req.Paused),
		slog.String("operator", middleware.SubjectFromContext(r.Context())))
	if paused == nil {
		paused = []string{}
	}
	writeResult(w, lendingv1.SetPausedResponse{Paused: paused})
}

type eventView struct {
	Seq        uint64            `json:"seq"`
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Account    string            `json:"account,omitempty"`
	LoanID     *uint64           `json:"loanId,omitempty"`
	Amount     string            `json:"amount,omitempty"`
	Attributes map[string]string `json:"attributes"`
	RecordedAt time.Time         `json:"recordedAt"`
}

func eventViews(records []indexer.EventRecord) []eventView {
	out := make([]eventView, 0, len(records))
	for _, record := range records {
		out = append(out, eventView{
			Seq:        record.Seq,
			ID:         record.ID.String(),
			Type:       record.Type,
			Account:    record.Account,
			LoanID:     record.LoanID,
			Amount:     record.Amount,
			Attributes: record.Attributes,
			RecordedAt: record.CreatedAt,
		})
	}
	return out
}

func decodeRequest(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body required")
	}
	defer r.Body.Close()
	limited := io.LimitReader(r.Body, lendingRequestLimit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if len(data) > lendingRequestLimit {
		return fmt.Errorf("request body exceeds %d bytes", lendingRequestLimit)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return errors.New("request body required")
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func loanIDParam(r *http.Request) (uint64, error) {
	return parseUintParam(chi.URLParam(r, "id"), "loan id")
}

func parseUintParam(raw, name string) (uint64, error) {
	value, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an unsigned integer", name)
	}
	return value, nil
}

// writeOutcome renders the tagged result of a mutation: the failure code
// through writeEngineError, the value through body.
func writeOutcome[T any](w http.ResponseWriter, logger *slog.Logger, res lending.Result[T], body func(T) any) {
	value, err := res.Unwrap()
	if err != nil {
		writeEngineError(w, logger, err)
		return
	}
	writeResult(w, body(value))
}

func writeResult(w http.ResponseWriter, result any) {
	middleware.WriteJSON(w, http.StatusOK, okBody{OK: true, Result: result})
}

func writeBadRequest(w http.ResponseWriter, err error) {
	middleware.WriteError(w, http.StatusBadRequest, 0, err.Error())
}

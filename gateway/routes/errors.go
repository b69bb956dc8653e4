package routes

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"microlend/gateway/middleware"
	"microlend/native/lending"
	"microlend/network"
	"microlend/services/lending/engine"
)

// httpStatus maps a lending code onto the HTTP status of the failed call.
func httpStatus(code lending.Code) int {
	switch code {
	case lending.CodeOK:
		return http.StatusOK
	case lending.CodeInvalidAmount, lending.CodeInvalidDuration, lending.CodeInvalidCaller, lending.CodeArithmeticOverflow:
		return http.StatusBadRequest
	case lending.CodeLoanNotFound:
		return http.StatusNotFound
	case lending.CodeLoanNotActive, lending.CodeLoanNotOverdue, lending.CodeTransferFailed:
		return http.StatusConflict
	case lending.CodeInsufficientTreasury, lending.CodeInsufficientCollateral:
		return http.StatusUnprocessableEntity
	case lending.CodeModulePaused:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeEngineError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		middleware.WriteError(w, http.StatusGatewayTimeout, 0, "request timed out")
		return
	case errors.Is(err, context.Canceled):
		middleware.WriteError(w, 499, 0, "request cancelled")
		return
	case errors.Is(err, engine.ErrInvalidAddress), errors.Is(err, engine.ErrInvalidModule), errors.Is(err, engine.ErrInvalidCount):
		middleware.WriteError(w, http.StatusBadRequest, 0, err.Error())
		return
	case errors.Is(err, engine.ErrUnavailable):
		middleware.WriteError(w, http.StatusServiceUnavailable, 0, "lending engine unavailable")
		return
	}
	code := lending.CodeOf(err)
	w.Header().Set(middleware.HeaderLendingCode, strconv.FormatUint(uint64(code), 10))
	message := err.Error()
	if code == lending.CodeInternal {
		logger.Error("lending engine error", slog.Any("error", err))
		message = "internal error"
	}
	middleware.WriteError(w, httpStatus(code), uint32(code), message)
}

func writeCallerError(w http.ResponseWriter, err error) {
	if errors.Is(err, network.ErrCallerMissing) || errors.Is(err, network.ErrCallerInvalid) {
		w.Header().Set(middleware.HeaderLendingCode, strconv.FormatUint(uint64(lending.CodeInvalidCaller), 10))
		middleware.WriteError(w, http.StatusBadRequest, uint32(lending.CodeInvalidCaller), err.Error())
		return
	}
	middleware.WriteError(w, http.StatusUnauthorized, 0, err.Error())
}

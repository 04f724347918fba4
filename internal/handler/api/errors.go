package api

import (
	"errors"

	domsvc "SignalSim/internal/domain/service"
	"SignalSim/internal/services/simulator"
	"SignalSim/internal/usecase"
	xhttp "SignalSim/pkg/http"
)

// toAppError maps domain failures onto HTTP errors.
func toAppError(err error) *xhttp.AppError {
	var se *xhttp.StatusError
	var appErr *xhttp.AppError
	switch {
	case errors.Is(err, domsvc.ErrInsufficientData):
		appErr = xhttp.UnprocessableError(xhttp.CodeInsufficientData, domsvc.ErrInsufficientData.Error())
	case errors.Is(err, domsvc.ErrDegenerateTrainingData):
		appErr = xhttp.UnprocessableError(xhttp.CodeDegenerateData, domsvc.ErrDegenerateTrainingData.Error())
	case errors.Is(err, domsvc.ErrModelNotTrained):
		appErr = xhttp.ConflictError(xhttp.CodeModelNotTrained, domsvc.ErrModelNotTrained.Error())
	case errors.Is(err, simulator.ErrInvalidRisk):
		appErr = xhttp.BadRequestError(xhttp.CodeInvalidRisk, err.Error()).WithField("risk")
	case errors.Is(err, usecase.ErrUnknownSetting), errors.Is(err, usecase.ErrInvalidSetting):
		appErr = xhttp.BadRequestError(xhttp.CodeInvalidSetting, err.Error()).WithField("settings")
	case errors.Is(err, usecase.ErrInvalidSymbol):
		appErr = xhttp.BadRequestError(xhttp.CodeInvalidSymbol, err.Error()).WithField("symbol")
	case errors.Is(err, usecase.ErrNoSymbolLister):
		appErr = xhttp.UnavailableError(err.Error())
	case errors.As(err, &se):
		appErr = xhttp.BadGatewayError("market data provider error").WithParam("status", se.Code)
	default:
		appErr = xhttp.InternalError("Something went wrong")
	}
	return appErr.WithError(err)
}

package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/adspace-marketplace/internal/service"
)

// respondError maps service errors to status codes.  Unexpected errors are
// logged and reported without detail.
func respondError(c echo.Context, log *zap.Logger, err error) error {
	var (
		verr *service.ValidationError
		terr *service.TxError
		uerr *service.UpstreamError
	)
	switch {
	case errors.As(err, &verr):
		body := echo.Map{"error": verr.Error()}
		if verr.Field != "" {
			body["field"] = verr.Field
		}
		return c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrReadOnly), errors.Is(err, service.ErrPinningUnavailable):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": err.Error()})
	case errors.As(err, &terr) && terr.Pending():
		log.Warn("transaction not yet mined", zap.String("op", terr.Op), zap.String("tx", terr.TxHash), zap.Error(terr.Err))
		return c.JSON(http.StatusAccepted, echo.Map{"status": "pending", "message": terr.Reason(), "tx_hash": terr.TxHash})
	case errors.As(err, &terr):
		log.Warn("transaction failed", zap.String("op", terr.Op), zap.String("tx", terr.TxHash), zap.Error(terr.Err))
		body := echo.Map{"error": terr.Reason()}
		if terr.TxHash != "" {
			body["tx_hash"] = terr.TxHash
		}
		return c.JSON(http.StatusBadGateway, body)
	case errors.Is(err, context.DeadlineExceeded):
		return c.JSON(http.StatusGatewayTimeout, echo.Map{"error": "upstream timeout"})
	case errors.As(err, &uerr):
		log.Warn("upstream call failed", zap.String("op", uerr.Op), zap.Error(uerr.Err))
		return c.JSON(http.StatusBadGateway, echo.Map{"error": uerr.Reason()})
	default:
		log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

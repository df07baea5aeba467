package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/adspace-marketplace/internal/ipfs"
	"github.com/iliyamo/adspace-marketplace/internal/middleware"
	"github.com/iliyamo/adspace-marketplace/internal/model"
	"github.com/iliyamo/adspace-marketplace/internal/service"
)

// Market is the service surface behind the ad space endpoints.
// *service.Marketplace satisfies it.
type Market interface {
	Listing(ctx context.Context) (*service.ListingResult, error)
	Details(ctx context.Context, id uint64) (*service.Details, error)
	CurrentAd(ctx context.Context, id uint64) (*model.CurrentAd, error)
	Rentals(ctx context.Context, id uint64) ([]model.Rental, error)
	Quote(ctx context.Context, id uint64, start, end int64) (*service.PriceQuote, error)
	Mint(ctx context.Context, userID string, req service.MintRequest) (*service.MintResult, error)
	Rent(ctx context.Context, userID string, id uint64, req service.RentRequest) (*service.RentResult, error)
	MyRentals(ctx context.Context, userID string, limit int) ([]model.RentalRecord, error)
	Dashboard(ctx context.Context, address string) (*service.Dashboard, error)
	Upload(ctx context.Context, name string, r io.Reader) (*ipfs.Pin, error)
	PinCreative(ctx context.Context, req service.CreativeRequest) (*ipfs.Pin, error)
}

var _ Market = (*service.Marketplace)(nil)

// AdSpaceHandler serves the marketplace endpoints.
type AdSpaceHandler struct {
	Market Market
	Log    *zap.Logger
}

func NewAdSpaceHandler(m Market, log *zap.Logger) *AdSpaceHandler {
	return &AdSpaceHandler{Market: m, Log: log}
}

type quoteReq struct {
	StartTime int64 `json:"start_time"`
	EndTime   int64 `json:"end_time"`
}

func tokenIDParam(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil
}

func badID(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ad space id"})
}

// List returns every readable ad space.
func (h *AdSpaceHandler) List(c echo.Context) error {
	res, err := h.Market.Listing(c.Request().Context())
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Get returns one ad space with its rental history.
func (h *AdSpaceHandler) Get(c echo.Context) error {
	id, ok := tokenIDParam(c)
	if !ok {
		return badID(c)
	}
	d, err := h.Market.Details(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, d)
}

// CurrentAd returns the creative running on a space.  current_ad is null
// when nothing is running.
func (h *AdSpaceHandler) CurrentAd(c echo.Context) error {
	id, ok := tokenIDParam(c)
	if !ok {
		return badID(c)
	}
	ad, err := h.Market.CurrentAd(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"token_id": id, "current_ad": ad})
}

func (h *AdSpaceHandler) Rentals(c echo.Context) error {
	id, ok := tokenIDParam(c)
	if !ok {
		return badID(c)
	}
	rentals, err := h.Market.Rentals(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"token_id": id, "rentals": rentals})
}

// Quote prices a rental window without sending anything.
func (h *AdSpaceHandler) Quote(c echo.Context) error {
	id, ok := tokenIDParam(c)
	if !ok {
		return badID(c)
	}
	var req quoteReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	q, err := h.Market.Quote(c.Request().Context(), id, req.StartTime, req.EndTime)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, q)
}

// Mint creates a new ad space owned by the operator.
func (h *AdSpaceHandler) Mint(c echo.Context) error {
	var req service.MintRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	res, err := h.Market.Mint(c.Request().Context(), middleware.UserID(c), req)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// Rent pays for a rental window on an ad space.
func (h *AdSpaceHandler) Rent(c echo.Context) error {
	id, ok := tokenIDParam(c)
	if !ok {
		return badID(c)
	}
	var req service.RentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	res, err := h.Market.Rent(c.Request().Context(), middleware.UserID(c), id, req)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// MyRentals lists the caller's rental records.  ?limit= caps the result.
func (h *AdSpaceHandler) MyRentals(c echo.Context) error {
	limit := 0
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "limit must be a positive integer"})
		}
		limit = n
	}
	recs, err := h.Market.MyRentals(c.Request().Context(), middleware.UserID(c), limit)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"rentals": recs})
}

// Dashboard groups spaces around a wallet address.
func (h *AdSpaceHandler) Dashboard(c echo.Context) error {
	d, err := h.Market.Dashboard(c.Request().Context(), c.Param("address"))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, d)
}

// Upload pins the multipart "file" field.
func (h *AdSpaceHandler) Upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "file is required"})
	}
	f, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "file unreadable"})
	}
	defer f.Close()

	pin, err := h.Market.Upload(c.Request().Context(), fh.Filename, f)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, pin)
}

// Creative pins ad creative metadata for use as a rental's ad_metadata_uri.
func (h *AdSpaceHandler) Creative(c echo.Context) error {
	var req service.CreativeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	pin, err := h.Market.PinCreative(c.Request().Context(), req)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, pin)
}

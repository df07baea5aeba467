package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/adspace-marketplace/internal/chain"
	"github.com/iliyamo/adspace-marketplace/internal/config"
	"github.com/iliyamo/adspace-marketplace/internal/ipfs"
	"github.com/iliyamo/adspace-marketplace/internal/middleware"
	"github.com/iliyamo/adspace-marketplace/internal/model"
	"github.com/iliyamo/adspace-marketplace/internal/pricing"
	"github.com/iliyamo/adspace-marketplace/internal/repository"
	"github.com/iliyamo/adspace-marketplace/internal/service"
	"github.com/iliyamo/adspace-marketplace/internal/utils"
)

const testSecret = "test-secret"

type fakeMarket struct {
	Market // unimplemented methods panic

	listing   *service.ListingResult
	details   *service.Details
	currentAd *model.CurrentAd
	quote     *service.PriceQuote
	rent      *service.RentResult
	records   []model.RentalRecord
	pin       *ipfs.Pin
	err       error

	gotUser   string
	gotID     uint64
	gotLimit  int
	gotRent   service.RentRequest
	gotName   string
	gotBody   string
	gotWindow [2]int64
}

func (f *fakeMarket) Listing(context.Context) (*service.ListingResult, error) {
	return f.listing, f.err
}

func (f *fakeMarket) Details(_ context.Context, id uint64) (*service.Details, error) {
	f.gotID = id
	return f.details, f.err
}

func (f *fakeMarket) CurrentAd(_ context.Context, id uint64) (*model.CurrentAd, error) {
	f.gotID = id
	return f.currentAd, f.err
}

func (f *fakeMarket) Quote(_ context.Context, id uint64, start, end int64) (*service.PriceQuote, error) {
	f.gotID, f.gotWindow = id, [2]int64{start, end}
	return f.quote, f.err
}

func (f *fakeMarket) Rent(_ context.Context, userID string, id uint64, req service.RentRequest) (*service.RentResult, error) {
	f.gotUser, f.gotID, f.gotRent = userID, id, req
	return f.rent, f.err
}

func (f *fakeMarket) MyRentals(_ context.Context, userID string, limit int) ([]model.RentalRecord, error) {
	f.gotUser, f.gotLimit = userID, limit
	return f.records, f.err
}

func (f *fakeMarket) Upload(_ context.Context, name string, r io.Reader) (*ipfs.Pin, error) {
	b, _ := io.ReadAll(r)
	f.gotName, f.gotBody = name, string(b)
	return f.pin, f.err
}

func newContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func TestRespondError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"validation", &service.ValidationError{Field: "end_time", Msg: "must be after start_time"}, http.StatusBadRequest, "end_time: must be after start_time"},
		{"not found", service.ErrNotFound, http.StatusNotFound, "ad space not found"},
		{"read only", service.ErrReadOnly, http.StatusServiceUnavailable, service.ErrReadOnly.Error()},
		{"pinning", service.ErrPinningUnavailable, http.StatusServiceUnavailable, service.ErrPinningUnavailable.Error()},
		{"tx unknown", &service.TxError{Op: "rentAdSpace", Err: errors.New("connection reset")}, http.StatusBadGateway, "unknown error"},
		{"tx revert", &service.TxError{Op: "rentAdSpace", Err: errors.New("execution reverted: Ad space not available")}, http.StatusBadGateway, "Ad space not available"},
		{"upstream revert", &service.UpstreamError{Op: "getAdSpace", Err: errors.New("execution reverted: Ad space does not exist")}, http.StatusBadGateway, "Ad space does not exist"},
		{"upstream unknown", &service.UpstreamError{Op: "price", Err: errors.New("dial tcp: i/o timeout")}, http.StatusBadGateway, "unknown error"},
		{"upstream deadline", &service.UpstreamError{Op: "getAdSpace", Err: context.DeadlineExceeded}, http.StatusGatewayTimeout, "upstream timeout"},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, "upstream timeout"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "internal error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := newContext(http.MethodGet, "/", "")
			require.NoError(t, respondError(c, zap.NewNop(), tc.err))
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.msg, decode(t, rec)["error"])
		})
	}
}

func TestAdSpace_GetBadID(t *testing.T) {
	h := NewAdSpaceHandler(&fakeMarket{}, zap.NewNop())
	c, rec := newContext(http.MethodGet, "/v1/adspaces/x", "")
	c.SetParamNames("id")
	c.SetParamValues("abc")
	require.NoError(t, h.Get(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdSpace_GetNotFound(t *testing.T) {
	m := &fakeMarket{err: service.ErrNotFound}
	h := NewAdSpaceHandler(m, zap.NewNop())
	c, rec := newContext(http.MethodGet, "/v1/adspaces/9", "")
	c.SetParamNames("id")
	c.SetParamValues("9")
	require.NoError(t, h.Get(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, uint64(9), m.gotID)
}

func TestAdSpace_CurrentAdNone(t *testing.T) {
	h := NewAdSpaceHandler(&fakeMarket{}, zap.NewNop())
	c, rec := newContext(http.MethodGet, "/v1/adspaces/1/current-ad", "")
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, h.CurrentAd(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Contains(t, body, "current_ad")
	assert.Nil(t, body["current_ad"])
}

func TestAdSpace_List(t *testing.T) {
	m := &fakeMarket{listing: &service.ListingResult{
		Items:    []model.Listing{{AdSpace: model.AdSpace{TokenID: 3, Status: model.StatusAvailable}}},
		Fallback: true,
		Warning:  "fallback",
	}}
	h := NewAdSpaceHandler(m, zap.NewNop())
	c, rec := newContext(http.MethodGet, "/v1/adspaces", "")
	require.NoError(t, h.List(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["fallback"])
	assert.Len(t, body["items"], 1)
}

func TestAdSpace_Quote(t *testing.T) {
	m := &fakeMarket{quote: &service.PriceQuote{TokenID: 2, TotalWei: "1000"}}
	h := NewAdSpaceHandler(m, zap.NewNop())
	c, rec := newContext(http.MethodPost, "/v1/adspaces/2/quote", `{"start_time":100,"end_time":3700}`)
	c.SetParamNames("id")
	c.SetParamValues("2")
	require.NoError(t, h.Quote(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, [2]int64{100, 3700}, m.gotWindow)
	assert.Equal(t, "1000", decode(t, rec)["total_wei"])
}

func TestAdSpace_RentUsesSessionUser(t *testing.T) {
	m := &fakeMarket{rent: &service.RentResult{TxHash: "0xabc"}}
	h := NewAdSpaceHandler(m, zap.NewNop())
	c, rec := newContext(http.MethodPost, "/v1/adspaces/4/rent",
		`{"start_time":10,"end_time":20,"website_url":"https://a.example","ad_metadata_uri":"ipfs://Qm"}`)
	c.SetParamNames("id")
	c.SetParamValues("4")
	c.Set(middleware.UserIDKey, "user-1")
	require.NoError(t, h.Rent(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "user-1", m.gotUser)
	assert.Equal(t, uint64(4), m.gotID)
	assert.Equal(t, "ipfs://Qm", m.gotRent.AdMetadataURI)
}

func TestAdSpace_RentRevert(t *testing.T) {
	m := &fakeMarket{err: &service.TxError{Op: "rentAdSpace", TxHash: "0xdead", Err: chain.ErrTxFailed}}
	h := NewAdSpaceHandler(m, zap.NewNop())
	c, rec := newContext(http.MethodPost, "/v1/adspaces/4/rent", `{}`)
	c.SetParamNames("id")
	c.SetParamValues("4")
	require.NoError(t, h.Rent(c))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "unknown error", body["error"])
	assert.Equal(t, "0xdead", body["tx_hash"])
}

func TestAdSpace_RentPending(t *testing.T) {
	pending := fmt.Errorf("%w: 0xfeed: %v", chain.ErrTxPending, context.DeadlineExceeded)
	m := &fakeMarket{err: &service.TxError{Op: "rentAdSpace", TxHash: "0xfeed", Err: pending}}
	h := NewAdSpaceHandler(m, zap.NewNop())
	c, rec := newContext(http.MethodPost, "/v1/adspaces/4/rent", `{}`)
	c.SetParamNames("id")
	c.SetParamValues("4")
	require.NoError(t, h.Rent(c))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, "0xfeed", body["tx_hash"])
	assert.NotContains(t, body, "error")
}

// stubChain backs a real service.Marketplace for error mapping tests.
type stubChain struct {
	chain.Marketplace // unimplemented methods panic

	next   uint64
	spaces map[uint64]model.AdSpace
	ethErr error
}

func (s *stubChain) NextTokenID(context.Context) (uint64, error) { return s.next, nil }

func (s *stubChain) AdSpace(_ context.Context, id uint64) (model.AdSpace, error) {
	sp, ok := s.spaces[id]
	if !ok {
		return model.AdSpace{}, errors.New("execution reverted: Ad space does not exist")
	}
	return sp, nil
}

func (s *stubChain) ETHForUSD(_ context.Context, usd *big.Int) (*big.Int, error) {
	if s.ethErr != nil {
		return nil, s.ethErr
	}
	return new(big.Int).Div(usd, big.NewInt(2000)), nil
}

func newQuoteHandler(t *testing.T, sc *stubChain) *AdSpaceHandler {
	t.Helper()
	calc, err := pricing.NewCalculator(sc, pricing.DefaultParams())
	require.NoError(t, err)
	market := service.New(service.Deps{Chain: sc, Calculator: calc, Log: zap.NewNop()})
	return NewAdSpaceHandler(market, zap.NewNop())
}

func quoteRequest(t *testing.T, h *AdSpaceHandler, id string) *httptest.ResponseRecorder {
	t.Helper()
	c, rec := newContext(http.MethodPost, "/v1/adspaces/"+id+"/quote", `{"start_time":1700000000,"end_time":1700003600}`)
	c.SetParamNames("id")
	c.SetParamValues(id)
	require.NoError(t, h.Quote(c))
	return rec
}

func TestAdSpace_QuoteUpstreamErrors(t *testing.T) {
	sc := &stubChain{next: 1, spaces: map[uint64]model.AdSpace{
		0: {TokenID: 0, Owner: "0x00000000000000000000000000000000000000a1", HourlyRentalRate: big.NewInt(1e18)},
	}}
	h := newQuoteHandler(t, sc)

	rec := quoteRequest(t, h, "9")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = quoteRequest(t, h, "0")
	assert.Equal(t, http.StatusOK, rec.Code)

	sc.ethErr = errors.New("execution reverted: stale price feed")
	rec = quoteRequest(t, h, "0")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "stale price feed", decode(t, rec)["error"])

	// a token below nextTokenId whose read reverts
	sc.next, sc.ethErr = 5, nil
	rec = quoteRequest(t, h, "3")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "Ad space does not exist", decode(t, rec)["error"])
}

func TestAdSpace_MyRentalsLimit(t *testing.T) {
	m := &fakeMarket{records: []model.RentalRecord{{ID: 1}}}
	h := NewAdSpaceHandler(m, zap.NewNop())

	c, rec := newContext(http.MethodGet, "/v1/my-rentals?limit=5", "")
	c.Set(middleware.UserIDKey, "u")
	require.NoError(t, h.MyRentals(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, m.gotLimit)

	c, rec = newContext(http.MethodGet, "/v1/my-rentals?limit=-1", "")
	require.NoError(t, h.MyRentals(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdSpace_Upload(t *testing.T) {
	m := &fakeMarket{pin: &ipfs.Pin{Hash: "QmX", URL: "https://gw/ipfs/QmX"}}
	h := NewAdSpaceHandler(m, zap.NewNop())

	body := "--B\r\n" +
		"Content-Disposition: form-data; name=\"file\"; filename=\"banner.png\"\r\n" +
		"Content-Type: image/png\r\n\r\n" +
		"PNGDATA\r\n" +
		"--B--\r\n"
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/uploads", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, "multipart/form-data; boundary=B")
	rec := httptest.NewRecorder()
	require.NoError(t, h.Upload(e.NewContext(req, rec)))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "banner.png", m.gotName)
	assert.Equal(t, "PNGDATA", m.gotBody)
	assert.Equal(t, "https://gw/ipfs/QmX", decode(t, rec)["url"])
}

func TestAdSpace_UploadMissingFile(t *testing.T) {
	h := NewAdSpaceHandler(&fakeMarket{}, zap.NewNop())
	c, rec := newContext(http.MethodPost, "/v1/uploads", `{}`)
	require.NoError(t, h.Upload(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/healthz", "")
	require.NoError(t, Health(func() bool { return false })(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["read_only"])
}

// ----- auth -----

type fakeUsers struct {
	byEmail map[string]model.User
	byID    map[string]model.User
	synced  *string
	deleted string
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byEmail: map[string]model.User{}, byID: map[string]model.User{}}
}

func (f *fakeUsers) Create(_ context.Context, email, password string, cost int) (string, error) {
	if _, ok := f.byEmail[email]; ok {
		return "", repository.ErrEmailExists
	}
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return "", err
	}
	u := model.User{UserID: "uid-" + email, Email: email, PasswordHash: hash}
	f.byEmail[email] = u
	f.byID[u.UserID] = u
	return u.UserID, nil
}

func (f *fakeUsers) CreateOrUpdate(_ context.Context, userID string, githubID *string) error {
	u := f.byID[userID]
	u.UserID = userID
	u.GithubID = githubID
	f.byID[userID] = u
	f.synced = githubID
	return nil
}

func (f *fakeUsers) Delete(_ context.Context, userID string) error {
	if _, ok := f.byID[userID]; !ok {
		return repository.ErrNotFound
	}
	delete(f.byID, userID)
	f.deleted = userID
	return nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetByID(_ context.Context, userID string) (model.User, error) {
	u, ok := f.byID[userID]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

type fakeTokens struct {
	active     map[string]string
	revokedAll string
}

func (f *fakeTokens) StoreRefresh(_ context.Context, userID, hash string, _ time.Time) error {
	f.active[hash] = userID
	return nil
}

func (f *fakeTokens) ValidateRefresh(_ context.Context, hash string) (string, error) {
	uid, ok := f.active[hash]
	if !ok {
		return "", repository.ErrNotFound
	}
	return uid, nil
}

func (f *fakeTokens) RevokeByHash(_ context.Context, hash string) error {
	delete(f.active, hash)
	return nil
}

func (f *fakeTokens) RevokeAllForUser(_ context.Context, userID string) error {
	f.revokedAll = userID
	for h, uid := range f.active {
		if uid == userID {
			delete(f.active, h)
		}
	}
	return nil
}

func newAuth() (*AuthHandler, *fakeUsers, *fakeTokens) {
	users := newFakeUsers()
	tokens := &fakeTokens{active: map[string]string{}}
	cfg := config.Config{JWTSecret: testSecret, AccessTTLMin: 15, RefreshTTLDays: 1, BcryptCost: 4}
	return NewAuthHandler(cfg, users, tokens, zap.NewNop()), users, tokens
}

func TestAuth_RegisterLoginRefresh(t *testing.T) {
	h, _, tokens := newAuth()

	c, rec := newContext(http.MethodPost, "/v1/auth/register", `{"email":" Ann@Example.com ","password":"pw"}`)
	require.NoError(t, h.Register(c))
	require.Equal(t, http.StatusCreated, rec.Code)
	var reg authResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reg))
	assert.Equal(t, "ann@example.com", reg.User.Email)
	sub, err := utils.ParseAccessToken(testSecret, reg.Access.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, sub)

	c, rec = newContext(http.MethodPost, "/v1/auth/register", `{"email":"ann@example.com","password":"pw"}`)
	require.NoError(t, h.Register(c))
	assert.Equal(t, http.StatusConflict, rec.Code)

	c, rec = newContext(http.MethodPost, "/v1/auth/login", `{"email":"ann@example.com","password":"nope"}`)
	require.NoError(t, h.Login(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	c, rec = newContext(http.MethodPost, "/v1/auth/login", `{"email":"ann@example.com","password":"pw"}`)
	require.NoError(t, h.Login(c))
	require.Equal(t, http.StatusOK, rec.Code)

	c, rec = newContext(http.MethodPost, "/v1/auth/refresh", `{"refresh_token":"`+reg.Refresh.Token+`"}`)
	require.NoError(t, h.Refresh(c))
	require.Equal(t, http.StatusOK, rec.Code)
	_, stillValid := tokens.active[utils.HashRefreshRaw(reg.Refresh.Token)]
	assert.False(t, stillValid, "old refresh token is rotated out")

	c, rec = newContext(http.MethodPost, "/v1/auth/refresh", `{"refresh_token":"`+reg.Refresh.Token+`"}`)
	require.NoError(t, h.Refresh(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_LogoutWithBearer(t *testing.T) {
	h, _, tokens := newAuth()
	tok, err := utils.NewAccessToken(testSecret, "u1", 5)
	require.NoError(t, err)

	c, rec := newContext(http.MethodPost, "/v1/auth/logout", "")
	c.Request().Header.Set("Authorization", "Bearer "+tok.Token)
	require.NoError(t, h.Logout(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "u1", tokens.revokedAll)

	c, rec = newContext(http.MethodPost, "/v1/auth/logout", "")
	require.NoError(t, h.Logout(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuth_SyncAndDelete(t *testing.T) {
	h, users, _ := newAuth()

	c, rec := newContext(http.MethodPost, "/v1/me/sync", `{"github_id":"gh-42"}`)
	c.Set(middleware.UserIDKey, "sub-1")
	require.NoError(t, h.Sync(c))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, users.synced)
	assert.Equal(t, "gh-42", *users.synced)
	assert.Equal(t, "gh-42", decode(t, rec)["github_id"])

	c, rec = newContext(http.MethodGet, "/v1/me", "")
	c.Set(middleware.UserIDKey, "sub-1")
	require.NoError(t, h.Me(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sub-1", decode(t, rec)["user_id"])

	c, rec = newContext(http.MethodDelete, "/v1/me", "")
	c.Set(middleware.UserIDKey, "sub-1")
	require.NoError(t, h.DeleteMe(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "sub-1", users.deleted)

	c, rec = newContext(http.MethodDelete, "/v1/me", "")
	c.Set(middleware.UserIDKey, "sub-1")
	require.NoError(t, h.DeleteMe(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

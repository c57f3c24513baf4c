// accounts.go manages tenant accounts and their credential material,
// grounded on routes_v2/accounts.py.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/evalgo/gphotoctl/internal/cookies"
	"github.com/evalgo/gphotoctl/internal/model"
	"github.com/evalgo/gphotoctl/internal/store"
)

type accountOut struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	EmailHint   string    `json:"email_hint,omitempty"`
	IsActive    bool      `json:"is_active"`
	HasAuth     bool      `json:"has_auth"`
	HasCookies  bool      `json:"has_cookies"`
	HasSession  bool      `json:"has_session"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toAccountOut(a *model.Account) accountOut {
	return accountOut{
		ID: a.ID, Label: a.Label, EmailHint: a.EmailHint, IsActive: a.IsActive,
		HasAuth: a.AuthData != "", HasCookies: len(a.CookieJar) > 0, HasSession: len(a.SessionRaw) > 0,
		CreatedAt: a.CreatedAt, UpdatedAt: a.UpdatedAt,
	}
}

type createAccountRequest struct {
	Label     string `json:"label"`
	EmailHint string `json:"email_hint"`
}

func (h *handlers) createAccount(c echo.Context) error {
	var req createAccountRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Label == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "label is required")
	}
	account := &model.Account{
		ID:        uuid.NewString(),
		Label:     req.Label,
		EmailHint: req.EmailHint,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.d.Store.SaveAccount(c.Request().Context(), account); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toAccountOut(account))
}

func (h *handlers) listAccounts(c echo.Context) error {
	db := h.d.Store.DB().WithContext(c.Request().Context())
	var accounts []model.Account
	if err := db.Order("created_at desc").Find(&accounts).Error; err != nil {
		return err
	}
	out := make([]accountOut, 0, len(accounts))
	for i := range accounts {
		out = append(out, toAccountOut(&accounts[i]))
	}
	return c.JSON(http.StatusOK, out)
}

type setGpmcRequest struct {
	AuthData string `json:"auth_data"`
}

// setGpmcAuth stores the opaque bulk-upload credential blob an operator
// pastes in from a browser devtools capture.
func (h *handlers) setGpmcAuth(c echo.Context) error {
	var req setGpmcRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.AuthData == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "auth_data is required")
	}
	account, err := h.d.Store.GetAccount(c.Request().Context(), c.Param("id"))
	if err != nil {
		if err == store.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "account not found")
		}
		return err
	}
	account.AuthData = req.AuthData
	if err := h.d.Store.SaveAccount(c.Request().Context(), account); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAccountOut(account))
}

type importCookiesResponse struct {
	AccountID   string `json:"account_id"`
	CookieCount int    `json:"cookie_count"`
}

// importCookiesFile accepts a multipart Netscape cookies.txt upload and
// clears the stale session so the next native-rpc call re-bootstraps.
func (h *handlers) importCookiesFile(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	f, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer f.Close()
	raw, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	accountID := c.Param("id")
	account, err := h.d.Store.GetAccount(c.Request().Context(), accountID)
	if err != nil {
		if err == store.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "account not found")
		}
		return err
	}

	jar := cookies.ParseNetscapeFile(string(raw))
	if len(jar) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no cookies found in uploaded file")
	}
	return h.saveCookieJar(c, account, jar)
}

type pasteCookieRequest struct {
	CookieString string `json:"cookie_string"`
	Domain       string `json:"domain"`
}

func (h *handlers) pasteCookieString(c echo.Context) error {
	var req pasteCookieRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.CookieString == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "cookie_string is required")
	}
	account, err := h.d.Store.GetAccount(c.Request().Context(), c.Param("id"))
	if err != nil {
		if err == store.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "account not found")
		}
		return err
	}
	jar := cookies.ParseCookieString(req.CookieString, req.Domain)
	if len(jar) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no cookies parsed from cookie_string")
	}
	return h.saveCookieJar(c, account, jar)
}

func (h *handlers) saveCookieJar(c echo.Context, account *model.Account, jar []model.Cookie) error {
	raw, err := json.Marshal(jar)
	if err != nil {
		return err
	}
	account.CookieJar = raw
	account.SessionRaw = nil
	if err := h.d.Store.SaveAccount(c.Request().Context(), account); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, importCookiesResponse{AccountID: account.ID, CookieCount: len(jar)})
}

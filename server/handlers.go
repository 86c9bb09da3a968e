package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/etnz/finntra"
	"github.com/etnz/finntra/auth"
	"github.com/etnz/finntra/currency"
	"github.com/etnz/finntra/importer"
	"github.com/etnz/finntra/rates"
	"github.com/etnz/finntra/report"
	"github.com/etnz/finntra/state"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type handlers struct {
	logger    *zap.Logger
	health    HealthService
	auth      *auth.Client
	registry  *Registry
	rates     *rates.Cache
	converter *currency.Converter
	monitor   *state.Monitor
	now       func() time.Time
}

// fail writes the error response matching err.
func (h *handlers) fail(c *gin.Context, err error) {
	status := statusOf(err)
	switch status {
	case http.StatusInternalServerError:
		h.logger.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		writeError(c, status, "internal error")
		return
	case http.StatusBadGateway:
		h.logger.Warn("upstream failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	writeError(c, status, err.Error())
}

// synchronizer returns the Synchronizer of the authenticated user or writes
// the error response.
func (h *handlers) synchronizer(c *gin.Context) (*state.Synchronizer, bool) {
	s, err := h.registry.Get(c.Request.Context(), claimsOf(c))
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	return s, true
}

func (h *handlers) healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	payload := gin.H{"status": "ok"}
	if h.health != nil {
		if err := h.health.Probe(ctx); err != nil {
			h.logger.Error("health probe failed", zap.Error(err))
			status = http.StatusServiceUnavailable
			payload["status"] = "degraded"
			payload["error"] = err.Error()
		}
	}
	c.JSON(status, payload)
}

type credentials struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
}

func (h *handlers) signUp(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "email and password are required")
		return
	}
	tokens, err := h.auth.SignUp(c.Request.Context(), req.Email, req.Password, strings.TrimSpace(req.Name))
	if err != nil {
		h.fail(c, err)
		return
	}
	if tokens.User.ID != "" {
		p := finntra.Profile{ID: tokens.User.ID, Email: req.Email, Name: strings.TrimSpace(req.Name)}
		// the profile is created again on the first authenticated call if this fails.
		if err := h.registry.EnsureProfile(c.Request.Context(), p); err != nil {
			h.logger.Warn("cannot create profile at sign-up", zap.String("user_id", p.ID), zap.Error(err))
		}
	}
	c.JSON(http.StatusCreated, tokens)
}

func (h *handlers) signIn(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "email and password are required")
		return
	}
	tokens, err := h.auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

func (h *handlers) signOut(c *gin.Context) {
	h.registry.Remove(claimsOf(c).Sub)
	c.Status(http.StatusNoContent)
}

func (h *handlers) snapshot(c *gin.Context) {
	s, ok := h.synchronizer(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.View())
}

func (h *handlers) refresh(c *gin.Context) {
	s, ok := h.synchronizer(c)
	if !ok {
		return
	}
	if err := s.Refresh(c.Request.Context()); err != nil {
		h.logger.Warn("refresh failed", zap.String("user_id", claimsOf(c).Sub), zap.Error(err))
		c.JSON(http.StatusBadGateway, s.View())
		return
	}
	c.JSON(http.StatusOK, s.View())
}

// bind decodes the JSON body into v or writes a 400.
func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (h *handlers) addTransaction(c *gin.Context) {
	s, ok := h.synchronizer(c)
	if !ok {
		return
	}
	var t finntra.Transaction
	if !bind(c, &t) {
		return
	}
	t, err := s.AddTransaction(c.Request.Context(), t)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *handlers) updateTransaction(c *gin.Context) {
	s, ok := h.synchronizer(c)
	if !ok {
		return
	}
	var t finntra.Transaction
	if !bind(c, &t) {
		return
	}
	t.ID = c.Param("id")
	h.done(c, s.UpdateTransaction(c.Request.Context(), t))
}

func (h *handlers) deleteTransaction(c *gin.Context) {
	s, ok := h.synchronizer(c)
	if !ok {
		return
	}
	h.done(c, s.DeleteTransaction(c.Request.Context(), c.Param("id")))
}

func (h *handlers) addBank(c *gin.Context) {
	s, ok := h.synchronizer(c)
	if !ok {
		return
	}
	var b finntra.BankAccount
	if !bind(c, &b) {
		return
	}
	b, err := s.AddBank(c.Request.Context(), b)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (h *handlers) updateBank(c *gin.Context) {
	s, ok := h.synchronizer(c)
	if !ok {
		return
	}
	var b finntra.BankAccount
	if !bind(c, &b) {
		return
	}
	b.ID = c.Param("id")
	h.done(c, s.UpdateBank(c.Request.Context(), b))
}

func (h *handlers) deleteBank(c *gin.Context) {
	s, ok := h.synchronizer(c)
	if !ok {
		return
	}
	h.done(c, s.DeleteBank(c.Request.Context(), c.Param("id")))
}

func (h *handlers) addGoal(c *gin.Context) {
	s, ok := h.synchronizer(c)
	if !ok {
		return
	}
	var g finntra.SavingsGoal
	if !bind(c, &g) {
		return
	}
	g, err := s.AddSavingsGoal(c.Request.Context(), g)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

func (h *handlers) updateGoal(c *gin.Context) {
	s, ok := h.synchronizer(c)
	if !ok {
		return
	}
	var g finntra.SavingsGoal
	if !bind(c, &g) {
		return
	}
	g.ID = c.Param("id")
	h.done(c, s.UpdateSavingsGoal(c.Request.Context(), g))
}

func (h *handlers) deleteGoal(c *gin.Context) {
	s, ok := h.synchronizer(c)
	if !ok {
		return
	}
	h.done(c, s.DeleteSavingsGoal(c.Request.Context(), c.Param("id")))
}

func (h *handlers) updateProfile(c *gin.Context) {
	s, ok := h.synchronizer(c)
	if !ok {
		return
	}
	var patch finntra.ProfilePatch
	if !bind(c, &patch) {
		return
	}
	h.done(c, s.UpdateProfile(c.Request.Context(), patch))
}

func (h *handlers) uploadPhoto(c *gin.Context) {
	s, ok := h.synchronizer(c)
	if !ok {
		return
	}
	fh, err := c.FormFile("photo")
	if err != nil {
		writeError(c, http.StatusBadRequest, "photo file is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.fail(c, err)
		return
	}
	defer f.Close()
	url, err := s.UploadPhoto(c.Request.Context(), fh.Filename, fh.Header.Get("Content-Type"), fh.Size, f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile_photo": url})
}

func (h *handlers) updateSettings(c *gin.Context) {
	s, ok := h.synchronizer(c)
	if !ok {
		return
	}
	var req struct {
		Currency string `json:"currency" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	h.done(c, s.UpdateCurrency(c.Request.Context(), req.Currency))
}

// done answers a mutation without a body.
func (h *handlers) done(c *gin.Context, err error) {
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) currencies(c *gin.Context) {
	c.JSON(http.StatusOK, currency.Supported)
}

type ratesResponse struct {
	Base      string      `json:"base"`
	Rates     rates.Table `json:"rates"`
	UpdatedAt *time.Time  `json:"updated_at,omitempty"`
}

func (h *handlers) listRates(c *gin.Context) {
	resp := ratesResponse{Base: currency.Pivot, Rates: h.rates.Table()}
	if t := h.rates.LastRefresh(); !t.IsZero() {
		resp.UpdatedAt = &t
	}
	c.JSON(http.StatusOK, resp)
}

type convertResponse struct {
	Amount    float64 `json:"amount"`
	From      string  `json:"from"`
	To        string  `json:"to"`
	Result    float64 `json:"result"`
	Formatted string  `json:"formatted"`
}

func (h *handlers) convert(c *gin.Context) {
	amount, err := strconv.ParseFloat(c.Query("amount"), 64)
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid amount")
		return
	}
	from := strings.ToUpper(strings.TrimSpace(c.DefaultQuery("from", currency.Pivot)))
	to := strings.ToUpper(strings.TrimSpace(c.DefaultQuery("to", currency.Pivot)))
	result := h.converter.Convert(amount, from, to)
	c.JSON(http.StatusOK, convertResponse{
		Amount:    amount,
		From:      from,
		To:        to,
		Result:    result,
		Formatted: currency.FormatIn(result, to),
	})
}

func (h *handlers) connectivity(c *gin.Context) {
	if h.monitor == nil {
		c.JSON(http.StatusOK, gin.H{"online": true})
		return
	}
	if force, _ := strconv.ParseBool(c.Query("check")); force {
		h.monitor.Check(c.Request.Context())
	}
	resp := gin.H{"online": h.monitor.Online()}
	if t := h.monitor.Checked(); !t.IsZero() {
		resp["checked_at"] = t
	}
	c.JSON(http.StatusOK, resp)
}

// statement builds the statement of the last snapshot loaded for the user.
func (h *handlers) statement(c *gin.Context) (report.Statement, bool) {
	s, ok := h.synchronizer(c)
	if !ok {
		return report.Statement{}, false
	}
	// a stale snapshot is rendered while reloading or after a failed reload.
	v := s.View()
	if !v.Loaded {
		msg := "snapshot is not ready"
		if v.Error != "" {
			msg += ": " + v.Error
		}
		writeError(c, http.StatusServiceUnavailable, msg)
		return report.Statement{}, false
	}
	return report.Build(v.Snapshot, h.converter, v.Snapshot.Currency(), h.now()), true
}

func (h *handlers) reportPDF(c *gin.Context) {
	st, ok := h.statement(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.PDF(&buf, st); err != nil {
		h.fail(c, fmt.Errorf("cannot render pdf: %w", err))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "statement-"+st.GeneratedAt.Format("2006-01-02")+".pdf"))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

func (h *handlers) reportHTML(c *gin.Context) {
	st, ok := h.statement(c)
	if !ok {
		return
	}
	html, err := report.HTML(st)
	if err != nil {
		h.fail(c, fmt.Errorf("cannot render html: %w", err))
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

type rejectedRow struct {
	Line  int    `json:"line"`
	Error string `json:"error"`
}

type importResponse struct {
	Transactions []finntra.Transaction `json:"transactions"`
	Rejected     []rejectedRow         `json:"rejected"`
	Imported     int                   `json:"imported"`
}

// importFile parses an uploaded bank export. With commit=true every parsed
// transaction is added for the user.
func (h *handlers) importFile(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		writeError(c, http.StatusBadRequest, "file is required")
		return
	}
	if err := importer.CheckExtension(fh.Filename); err != nil {
		h.fail(c, err)
		return
	}
	commit, _ := strconv.ParseBool(c.Query("commit"))
	var s *state.Synchronizer
	if commit {
		var ok bool
		if s, ok = h.synchronizer(c); !ok {
			return
		}
	}

	f, err := fh.Open()
	if err != nil {
		h.fail(c, err)
		return
	}
	defer f.Close()
	res, err := importer.Import(fh.Filename, f)
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := importResponse{Transactions: res.Transactions, Rejected: []rejectedRow{}}
	if resp.Transactions == nil {
		resp.Transactions = []finntra.Transaction{}
	}
	for _, r := range res.Rejected {
		resp.Rejected = append(resp.Rejected, rejectedRow{Line: r.Line, Error: r.Err.Error()})
	}
	if commit {
		for i, t := range res.Transactions {
			added, err := s.AddTransaction(c.Request.Context(), t)
			if err != nil {
				if errors.Is(err, state.ErrUnauthenticated) {
					h.fail(c, err)
					return
				}
				resp.Rejected = append(resp.Rejected, rejectedRow{Error: fmt.Sprintf("transaction %d: %v", i+1, err)})
				continue
			}
			resp.Transactions[i] = added
			resp.Imported++
		}
	}
	c.JSON(http.StatusOK, resp)
}

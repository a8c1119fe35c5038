package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"multiswap/internal/allocation"
	"multiswap/internal/engine"
	"multiswap/internal/orchestrator"
	"multiswap/internal/registry"
	"multiswap/internal/txparams"
)

// Handlers contains all dependencies for API endpoint handlers
type Handlers struct {
	Engine   *engine.Engine
	Registry *registry.Registry
	DevMode  bool // Enable detailed error responses in development
	Logger   *logrus.Logger
}

// err returns a standardized JSON error response
// In dev mode, includes additional error details for debugging
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

// withTimeout creates a context with timeout, defaulting to 10 seconds if duration <= 0
func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

// session resolves the :id path parameter into a live session
func (h *Handlers) session(c echo.Context) (*engine.Session, error) {
	s, err := h.Engine.Session(c.Param("id"))
	if err != nil {
		return nil, h.err(c, http.StatusNotFound, "session not found", nil)
	}
	return s, nil
}

// slotIndex parses the :index path parameter
func (h *Handlers) slotIndex(c echo.Context) (int, error) {
	i, err := strconv.Atoi(c.Param("index"))
	if err != nil || i < 0 {
		return 0, h.err(c, http.StatusBadRequest, "invalid slot index", nil)
	}
	return i, nil
}

// Health returns a simple health check endpoint
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{OK: true})
}

// Tokens lists every token the registry knows, sell and output side alike
func (h *Handlers) Tokens(c echo.Context) error {
	symbols := h.Registry.Symbols()
	items := make([]TokenView, 0, len(symbols))
	for _, sym := range symbols {
		cfg, err := h.Registry.Get(sym)
		if err != nil {
			continue
		}
		v := TokenView{
			Symbol:        cfg.Symbol,
			DisplaySymbol: cfg.DisplaySymbol,
			Decimals:      cfg.Decimals,
			Native:        h.Registry.IsNative(sym),
			LogoRef:       cfg.LogoRef,
		}
		if cfg.Address != (common.Address{}) {
			v.Address = cfg.Address.Hex()
		}
		items = append(items, v)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// SessionCreate opens a new session with an empty allocation
func (h *Handlers) SessionCreate(c echo.Context) error {
	s, err := h.Engine.CreateSession()
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to create session", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusCreated, s.Snapshot())
}

// SessionGet returns the render-ready view of a session
func (h *Handlers) SessionGet(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.Snapshot())
}

// SessionDelete closes a session and stops its price refresh timers
func (h *Handlers) SessionDelete(c echo.Context) error {
	if err := h.Engine.CloseSession(c.Param("id")); err != nil {
		return h.err(c, http.StatusNotFound, "session not found", nil)
	}
	return c.NoContent(http.StatusNoContent)
}

// SetSell updates sell token and/or sell amount
func (h *Handlers) SetSell(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	var req SetSellRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	if tok := strings.TrimSpace(req.Token); tok != "" {
		if err := s.SetSellToken(strings.ToUpper(tok)); err != nil {
			return h.err(c, http.StatusBadRequest, err.Error(), nil)
		}
	}
	if req.Amount != "" {
		if err := s.SetSellAmount(req.Amount); err != nil {
			return h.err(c, http.StatusBadRequest, err.Error(), nil)
		}
	}
	return c.JSON(http.StatusOK, s.Snapshot())
}

// SetMode switches between ratio and percentage input
func (h *Handlers) SetMode(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	var req SetModeRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	mode, err := allocation.ParseMode(req.Mode)
	if err != nil {
		return h.err(c, http.StatusBadRequest, err.Error(), nil)
	}
	if err := s.SetMode(mode); err != nil {
		return h.err(c, http.StatusBadRequest, err.Error(), nil)
	}
	return c.JSON(http.StatusOK, s.Snapshot())
}

// AddSlot appends an output slot; hitting the limit surfaces as a snapshot
// warning, not an error
func (h *Handlers) AddSlot(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	s.AddSlot()
	return c.JSON(http.StatusOK, s.Snapshot())
}

// SetSlot edits one output slot's token and/or weight
func (h *Handlers) SetSlot(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	index, err := h.slotIndex(c)
	if err != nil {
		return err
	}
	var req SetSlotRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	if req.Token != nil {
		tok := strings.ToUpper(strings.TrimSpace(*req.Token))
		if err := s.SetSlotToken(index, tok); err != nil {
			return h.err(c, http.StatusBadRequest, err.Error(), nil)
		}
	}
	if req.Weight != nil {
		if err := s.SetSlotWeight(index, *req.Weight); err != nil {
			return h.err(c, http.StatusBadRequest, err.Error(), nil)
		}
	}
	return c.JSON(http.StatusOK, s.Snapshot())
}

// RemoveSlot deletes an output slot (the last one is cleared, not removed)
func (h *Handlers) RemoveSlot(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	index, err := h.slotIndex(c)
	if err != nil {
		return err
	}
	if err := s.RemoveSlot(index); err != nil {
		return h.err(c, http.StatusBadRequest, err.Error(), nil)
	}
	return c.JSON(http.StatusOK, s.Snapshot())
}

// Simulate returns the estimated outputs for the current inputs
func (h *Handlers) Simulate(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"outputs": s.Simulate()})
}

// BuildParams compiles the current state into swap parameters without
// submitting anything
func (h *Handlers) BuildParams(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	params, err := s.BuildParams()
	if err != nil {
		if errors.Is(err, txparams.ErrInvalidAmount) || errors.Is(err, txparams.ErrNoOutputs) ||
			errors.Is(err, txparams.ErrIncompleteAllocation) || errors.Is(err, txparams.ErrSellTokenInOutputs) {
			return h.err(c, http.StatusUnprocessableEntity, err.Error(), nil)
		}
		return h.err(c, http.StatusInternalServerError, "failed to build params", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, params)
}

// DeepLinkGet encodes the current allocation as a shareable query string
func (h *Handlers) DeepLinkGet(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, DeepLinkResponse{Link: s.DeepLink()})
}

// DeepLinkApply replays an encoded allocation onto the session
func (h *Handlers) DeepLinkApply(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	var req DeepLinkApplyRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	if err := s.ApplyDeepLink(req.Link); err != nil {
		return h.err(c, http.StatusBadRequest, err.Error(), nil)
	}
	return c.JSON(http.StatusOK, s.Snapshot())
}

// Connect attaches a wallet address and warms its balances
func (h *Handlers) Connect(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	var req ConnectRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	if !common.IsHexAddress(req.Address) {
		return h.err(c, http.StatusBadRequest, "invalid address", map[string]any{"address": "must be a hex address"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if err := s.Connect(ctx, common.HexToAddress(req.Address)); err != nil {
		h.Logger.WithError(err).Warn("balance warmup failed on connect")
	}
	return c.JSON(http.StatusOK, s.Snapshot())
}

// Disconnect detaches the wallet
func (h *Handlers) Disconnect(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	s.Disconnect()
	return c.JSON(http.StatusOK, s.Snapshot())
}

// Price returns the cached quote for one price feed id
func (h *Handlers) Price(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	feedID := strings.TrimSpace(c.Param("feedId"))
	if feedID == "" {
		return h.err(c, http.StatusBadRequest, "invalid feed id", nil)
	}
	rec, ok := s.Price(feedID)
	if !ok {
		return h.err(c, http.StatusNotFound, "price not available", nil)
	}
	return c.JSON(http.StatusOK, rec)
}

// Submit drives the full execution sequence and blocks until confirmation
// or failure. A missing allowance stops with 409 and needs_approval state.
func (h *Handlers) Submit(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Minute)
	defer cancel()

	res, err := s.Submit(ctx)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrNotConnected), errors.Is(err, orchestrator.ErrNoChainClient):
			return h.err(c, http.StatusBadRequest, err.Error(), nil)
		case errors.Is(err, orchestrator.ErrApprovalRequired):
			return h.err(c, http.StatusConflict, err.Error(), map[string]any{"state": "needs_approval"})
		case errors.Is(err, orchestrator.ErrBusy):
			return h.err(c, http.StatusConflict, err.Error(), nil)
		case errors.Is(err, orchestrator.ErrInvalidAmount), errors.Is(err, orchestrator.ErrInsufficientBalance):
			return h.err(c, http.StatusUnprocessableEntity, err.Error(), nil)
		}
		return h.err(c, http.StatusInternalServerError, "swap failed", map[string]any{"err": err.Error()})
	}

	return c.JSON(http.StatusOK, SubmitResponse{
		TxHash:      res.TxHash.Hex(),
		BlockNumber: res.Receipt.BlockNumber,
		GasUsed:     res.Receipt.GasUsed,
	})
}

// Approve resolves a needs_approval stop from an earlier submit
func (h *Handlers) Approve(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Minute)
	defer cancel()

	if err := s.Approve(ctx); err != nil {
		switch {
		case errors.Is(err, engine.ErrNotConnected):
			return h.err(c, http.StatusBadRequest, err.Error(), nil)
		case errors.Is(err, orchestrator.ErrNotAwaitingApproval):
			return h.err(c, http.StatusConflict, err.Error(), nil)
		}
		return h.err(c, http.StatusInternalServerError, "approval failed", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, s.Snapshot())
}

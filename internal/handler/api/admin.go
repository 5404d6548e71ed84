package api

import (
	"errors"
	"time"

	"github.com/labstack/echo/v4"

	"flowgate/internal/audit"
	"flowgate/internal/console"
	"flowgate/internal/domain/models"
	"flowgate/internal/guard"
	"flowgate/pkg/httpx"
	applogger "flowgate/pkg/logger"
)

type selectTabRequest struct {
	Tab string `json:"tab" form:"tab" validate:"required,oneof=exchanges addresses sync"`
}

type createExchangeRequest struct {
	Name string `json:"name" form:"name" validate:"required"`
	Slug string `json:"slug" form:"slug" validate:"required,slug"`
}

type createAddressRequest struct {
	ExchangeID string  `json:"exchange_id" form:"exchange_id" validate:"required"`
	Chain      string  `json:"chain" form:"chain" validate:"required,oneof=EVM BTC"`
	Address    string  `json:"address" form:"address" validate:"required"`
	Label      string  `json:"label" form:"label" validate:"required,oneof=hot cold deposit reserve"`
	ClusterID  *string `json:"cluster_id" form:"cluster_id"`
	Notes      *string `json:"notes" form:"notes"`

	// Bound from JSON only. Form submissions signal the checkbox by field
	// presence, which formFlag picks up after binding.
	IsActive bool `json:"is_active"`
}

type resyncRequest struct {
	Confirmed bool `json:"confirmed"`
}

// formFlag reports whether an HTML-form checkbox was submitted at all.
// Browsers send checked boxes as "name=on" and omit unchecked ones entirely,
// so presence decides.
func formFlag(c echo.Context, name string) bool {
	form, err := c.FormParams()
	if err != nil {
		return false
	}
	_, ok := form[name]
	return ok
}

// Console returns the current console state for the calling admin. The
// controller starts its eager exchange load on first acquisition.
func (h *GatewayHandler) Console(c echo.Context) error {
	return httpx.SuccessResponse(c, h.controller(c).Snapshot())
}

// ConsoleSelectTab switches the active tab and kicks off its background
// load. The response carries the loading snapshot; clients re-poll
// GET /admin/console for the settled data.
func (h *GatewayHandler) ConsoleSelectTab(c echo.Context) error {
	req := new(selectTabRequest)
	if verr := httpx.ReadAndValidateRequest(c, req); verr != nil {
		return httpx.BadRequestResponse(c, verr)
	}
	tab, _ := console.ParseTab(req.Tab)
	snap := h.controller(c).SelectTab(c.Request().Context(), tab)
	return httpx.SuccessResponse(c, snap)
}

// ConsoleCreateExchange creates an exchange through the console form.
func (h *GatewayHandler) ConsoleCreateExchange(c echo.Context) error {
	req := new(createExchangeRequest)
	if verr := httpx.ReadAndValidateRequest(c, req); verr != nil {
		return httpx.BadRequestResponse(c, verr)
	}

	ctrl := h.controller(c)
	created, err := ctrl.CreateExchange(c.Request().Context(), models.ExchangeForm{
		Name: req.Name,
		Slug: req.Slug,
	})
	if err != nil {
		h.l.Warn("admin.exchange create_failed", applogger.String("slug", req.Slug), applogger.Error(err))
		return httpx.AppErrorResponse(c, err)
	}

	h.audit.Publish(c.Request().Context(), audit.Event{
		Action:   audit.ActionExchangeCreated,
		Actor:    guard.UserFrom(c).Email,
		EntityID: created.ID,
		At:       time.Now().UTC(),
	})
	return httpx.CreatedResponse(c, ctrl.Snapshot())
}

// ConsoleCreateAddress registers a monitored address through the console
// form.
func (h *GatewayHandler) ConsoleCreateAddress(c echo.Context) error {
	req := new(createAddressRequest)
	if verr := httpx.ReadAndValidateRequest(c, req); verr != nil {
		return httpx.BadRequestResponse(c, verr)
	}
	if formFlag(c, "is_active") {
		req.IsActive = true
	}

	ctrl := h.controller(c)
	created, err := ctrl.CreateAddress(c.Request().Context(), models.AddressForm{
		ExchangeID: req.ExchangeID,
		Chain:      models.Chain(req.Chain),
		Address:    req.Address,
		Label:      models.AddressLabel(req.Label),
		IsActive:   req.IsActive,
		ClusterID:  req.ClusterID,
		Notes:      req.Notes,
	})
	if err != nil {
		h.l.Warn("admin.address create_failed", applogger.String("exchange_id", req.ExchangeID), applogger.Error(err))
		return httpx.AppErrorResponse(c, err)
	}

	h.audit.Publish(c.Request().Context(), audit.Event{
		Action:   audit.ActionAddressCreated,
		Actor:    guard.UserFrom(c).Email,
		EntityID: created.ID,
		At:       time.Now().UTC(),
	})
	return httpx.CreatedResponse(c, ctrl.Snapshot())
}

// ConsoleResync triggers a full backend re-scan, but only when the admin
// has confirmed. A declined confirmation produces no upstream request.
func (h *GatewayHandler) ConsoleResync(c echo.Context) error {
	req := new(resyncRequest)
	if verr := httpx.ReadAndValidateRequest(c, req); verr != nil {
		return httpx.BadRequestResponse(c, verr)
	}
	if formFlag(c, "confirmed") {
		req.Confirmed = true
	}

	err := h.controller(c).TriggerResync(c.Request().Context(), req.Confirmed)
	if errors.Is(err, console.ErrResyncNotConfirmed) {
		return httpx.AppErrorResponse(c, httpx.BadRequestError("Resync requires confirmation").WithError(err))
	}
	if err != nil {
		h.l.Warn("admin.resync failed", applogger.Error(err))
		return httpx.AppErrorResponse(c, err)
	}

	h.audit.Publish(c.Request().Context(), audit.Event{
		Action: audit.ActionResyncTriggered,
		Actor:  guard.UserFrom(c).Email,
		At:     time.Now().UTC(),
	})
	return httpx.SuccessResponse(c, map[string]string{"message": "Resync triggered"})
}

// UpdateExchange patches an exchange directly, outside the console forms,
// then refreshes the caller's console state.
func (h *GatewayHandler) UpdateExchange(c echo.Context) error {
	patch := new(models.ExchangePatch)
	if verr := httpx.ReadAndValidateRequest(c, patch); verr != nil {
		return httpx.BadRequestResponse(c, verr)
	}

	id := c.Param("id")
	updated, err := h.upstream.AdminUpdateExchange(c.Request().Context(), guard.SessionFrom(c), id, *patch)
	if err != nil {
		h.l.Warn("admin.exchange update_failed", applogger.String("exchange_id", id), applogger.Error(err))
		return httpx.AppErrorResponse(c, err)
	}

	h.audit.Publish(c.Request().Context(), audit.Event{
		Action:   audit.ActionExchangeUpdated,
		Actor:    guard.UserFrom(c).Email,
		EntityID: updated.ID,
		At:       time.Now().UTC(),
	})
	h.controller(c).Refresh(c.Request().Context())
	return httpx.SuccessResponse(c, updated)
}

// UpdateAddress patches a monitored address, then refreshes the caller's
// console state.
func (h *GatewayHandler) UpdateAddress(c echo.Context) error {
	patch := new(models.AddressPatch)
	if verr := httpx.ReadAndValidateRequest(c, patch); verr != nil {
		return httpx.BadRequestResponse(c, verr)
	}

	id := c.Param("id")
	updated, err := h.upstream.AdminUpdateAddress(c.Request().Context(), guard.SessionFrom(c), id, *patch)
	if err != nil {
		h.l.Warn("admin.address update_failed", applogger.String("address_id", id), applogger.Error(err))
		return httpx.AppErrorResponse(c, err)
	}

	h.audit.Publish(c.Request().Context(), audit.Event{
		Action:   audit.ActionAddressUpdated,
		Actor:    guard.UserFrom(c).Email,
		EntityID: updated.ID,
		At:       time.Now().UTC(),
	})
	h.controller(c).Refresh(c.Request().Context())
	return httpx.SuccessResponse(c, updated)
}

package controller

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/fakturnik/fakturnik/model"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type invoiceListQuery struct {
	Status     string `query:"status"`
	TemplateID uint   `query:"template_id"`
	Month      int    `query:"month"`
	Year       int    `query:"year"`
	Limit      int    `query:"limit"`
	Cursor     string `query:"cursor"`
}

func (ctrl *controller) apiInvoiceList(c echo.Context) error {
	ownerID := apiOwnerID(c)
	var q invoiceListQuery
	if err := c.Bind(&q); err != nil {
		return respond(c, http.StatusBadRequest, apiError("bad_query", "invalid query params"))
	}
	invs, next, err := ctrl.model.ListInvoices(ownerID, model.InvoiceListQuery{
		Status:     q.Status,
		TemplateID: q.TemplateID,
		Month:      q.Month,
		Year:       q.Year,
		Limit:      q.Limit,
		Cursor:     q.Cursor,
	})
	if err != nil {
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not load invoices"))
	}

	items := make([]APIInvoice, len(invs))
	for i := range invs {
		items[i] = toAPIInvoice(&invs[i], false)
	}
	return respond(c, http.StatusOK, APIInvoiceList{Items: items, NextCursor: next})
}

func (ctrl *controller) apiInvoiceGet(c echo.Context) error {
	ownerID := apiOwnerID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return respond(c, http.StatusBadRequest, apiError("bad_request", "invalid id"))
	}
	inv, err := ctrl.model.LoadInvoice(uint(id), ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respond(c, http.StatusNotFound, apiError("not_found", "invoice not found"))
		}
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not load invoice"))
	}

	out := toAPIInvoice(inv, true)

	// optional: ETag for caching
	c.Response().Header().Set("ETag",
		`W/"inv-`+strconv.FormatUint(uint64(inv.ID), 10)+
			`-`+strconv.FormatInt(inv.UpdatedAt.Unix(), 10)+`"`)

	return respond(c, http.StatusOK, out)
}

type sendInvoiceReq struct {
	Email string `json:"email"`
}

func (ctrl *controller) apiInvoiceSend(c echo.Context) error {
	ownerID := apiOwnerID(c)
	logger := c.Get("logger").(*slog.Logger)
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return respond(c, http.StatusBadRequest, apiError("bad_request", "invalid id"))
	}
	var req sendInvoiceReq
	if err := c.Bind(&req); err != nil {
		return respond(c, http.StatusBadRequest, apiError("bad_request", "invalid payload"))
	}

	inv, err := ctrl.model.LoadInvoice(uint(id), ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respond(c, http.StatusNotFound, apiError("not_found", "invoice not found"))
		}
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not load invoice"))
	}

	recipient := req.Email
	if recipient == "" && inv.TemplateID != nil {
		if tpl, err := ctrl.model.LoadTemplate(*inv.TemplateID, ownerID); err == nil {
			recipient = tpl.RecipientEmail
		}
	}
	if recipient == "" {
		return respond(c, http.StatusBadRequest, apiError("missing_recipient", "no recipient email given"))
	}

	if _, err := ctrl.model.EnsureInvoiceDocument(inv, ctrl.renderer); err != nil {
		logger.Warn("document unavailable, sending without attachment", "invoice", inv.Number, "error", err)
	}
	if err := ctrl.model.DeliverInvoiceEmail(inv, recipient, ctrl.mailer, logger); err != nil {
		return respond(c, http.StatusBadGateway, apiError("delivery_failed", "email delivery failed"))
	}
	return respond(c, http.StatusOK, toAPIInvoice(inv, false))
}

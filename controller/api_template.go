package controller

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/fakturnik/fakturnik/model"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

func (ctrl *controller) apiTemplateList(c echo.Context) error {
	ownerID := apiOwnerID(c)
	templates, err := ctrl.model.LoadAllTemplates(ownerID)
	if err != nil {
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not load templates"))
	}
	items := make([]APITemplate, len(templates))
	for i, tpl := range templates {
		items[i] = toAPITemplate(tpl, false)
	}
	return respond(c, http.StatusOK, APITemplateList{Items: items})
}

func (ctrl *controller) apiTemplateGet(c echo.Context) error {
	ownerID := apiOwnerID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return respond(c, http.StatusBadRequest, apiError("bad_request", "invalid id"))
	}
	tpl, err := ctrl.model.LoadTemplate(uint(id), ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respond(c, http.StatusNotFound, apiError("not_found", "template not found"))
		}
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not load template"))
	}
	return respond(c, http.StatusOK, toAPITemplate(tpl, true))
}

// apiTemplateMaterialize issues the template's invoice for the current month
// on demand. Duplicate periods yield 409 with the existing invoice.
func (ctrl *controller) apiTemplateMaterialize(c echo.Context) error {
	ownerID := apiOwnerID(c)
	logger := c.Get("logger").(*slog.Logger)
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return respond(c, http.StatusBadRequest, apiError("bad_request", "invalid id"))
	}
	tpl, err := ctrl.model.LoadTemplate(uint(id), ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respond(c, http.StatusNotFound, apiError("not_found", "template not found"))
		}
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not load template"))
	}

	now := time.Now()
	inv, err := ctrl.model.MaterializeInvoice(tpl, model.PeriodOf(now), now, ctrl.renderer, logger)
	switch {
	case errors.Is(err, model.ErrDuplicateInvoice):
		if existing, ferr := ctrl.model.FindInvoiceByTemplatePeriod(tpl.ID, model.PeriodOf(now)); ferr == nil && existing != nil {
			return respond(c, http.StatusConflict, toAPIInvoice(existing, false))
		}
		return respond(c, http.StatusConflict, apiError("duplicate", "invoice for this period already exists"))
	case errors.Is(err, model.ErrSellerProfileMissing):
		return respond(c, http.StatusUnprocessableEntity, apiError("seller_profile_missing", "complete the seller profile first"))
	case err != nil:
		return respond(c, http.StatusInternalServerError, apiError("internal", "could not materialize invoice"))
	}
	return respond(c, http.StatusCreated, toAPIInvoice(inv, true))
}

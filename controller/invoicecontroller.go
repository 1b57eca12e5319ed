package controller

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fakturnik/fakturnik/model"

	"github.com/labstack/echo/v4"
)

func (ctrl *controller) invoiceInit(e *echo.Echo) {
	g := e.Group("/invoice")
	g.Use(ctrl.authMiddleware)
	g.GET("/detail/:id", ctrl.invoiceDetail)
	g.GET("/document/:id", ctrl.invoiceDocument)
	g.GET("/preview/:id.png", ctrl.invoicePreview)
	g.POST("/send/:id", ctrl.invoiceSend)
	lg := e.Group("/invoices", ctrl.authMiddleware)
	lg.GET("", ctrl.invoiceList)
}

func (ctrl *controller) invoiceList(c echo.Context) error {
	ownerID := c.Get("ownerid").(uint)
	title := "Faktury"
	status := strings.ToLower(c.QueryParam("status"))

	switch status {
	case "issued":
		title = "Faktury wystawione"
	case "sent":
		title = "Faktury wysłane"
	case "failed":
		title = "Faktury z błędem wysyłki"
	default:
		title = "Wszystkie faktury"
		status = ""
	}

	q := model.InvoiceListQuery{
		Status: status,
		Cursor: c.QueryParam("cursor"),
	}
	if tid := c.QueryParam("template_id"); tid != "" {
		if v, err := strconv.ParseUint(tid, 10, 64); err == nil {
			q.TemplateID = uint(v)
		}
	}
	if mo := c.QueryParam("month"); mo != "" {
		if v, err := strconv.Atoi(mo); err == nil && v >= 1 && v <= 12 {
			q.Month = v
		}
	}
	if yr := c.QueryParam("year"); yr != "" {
		if v, err := strconv.Atoi(yr); err == nil {
			q.Year = v
		}
	}

	invoices, next, err := ctrl.model.ListInvoices(ownerID, q)
	if err != nil {
		return ErrInvalid(err, "Błąd podczas ładowania faktur")
	}

	m := ctrl.defaultResponseMap(c, title)
	m["invoices"] = invoices
	m["nextcursor"] = next
	m["status"] = status
	return c.Render(http.StatusOK, "invoices.html", m)
}

func (ctrl *controller) invoiceDetail(c echo.Context) error {
	m := ctrl.defaultResponseMap(c, "Szczegóły faktury")
	ownerID := c.Get("ownerid").(uint)
	inv, err := ctrl.model.LoadInvoice(c.Param("id"), ownerID)
	if err != nil {
		return ErrInvalid(err, "Nie można załadować faktury")
	}
	m["title"] = "Faktura " + inv.Number
	m["invoice"] = inv
	m["haspdf"] = strings.EqualFold(filepath.Ext(inv.DocumentPath), ".pdf")
	return c.Render(http.StatusOK, "invoice_detail.html", m)
}

// invoiceDocument streams the rendered document, regenerating it first when
// it was never rendered or the file disappeared.
func (ctrl *controller) invoiceDocument(c echo.Context) error {
	ownerID := c.Get("ownerid").(uint)
	inv, err := ctrl.model.LoadInvoice(c.Param("id"), ownerID)
	if err != nil {
		return ErrInvalid(err, "Nie można załadować faktury")
	}
	path, err := ctrl.model.EnsureInvoiceDocument(inv, ctrl.renderer)
	if err != nil {
		return ErrInvalid(err, "Nie można wygenerować dokumentu faktury")
	}
	filename := "faktura-" + strings.ReplaceAll(inv.Number, "/", "-") + filepath.Ext(path)
	return c.Attachment(path, filename)
}

// invoicePreview renders the first page of the PDF document as PNG. Only
// available when the binary is built with cgo.
func (ctrl *controller) invoicePreview(c echo.Context) error {
	ownerID := c.Get("ownerid").(uint)
	inv, err := ctrl.model.LoadInvoice(c.Param("id"), ownerID)
	if err != nil {
		return ErrInvalid(err, "Nie można załadować faktury")
	}
	if !strings.EqualFold(filepath.Ext(inv.DocumentPath), ".pdf") {
		return ErrNotFound(fmt.Errorf("no PDF document for invoice %d", inv.ID))
	}
	png, err := renderPDFFirstPagePNG(inv.DocumentPath, 96)
	if err != nil {
		return ErrNotFound(fmt.Errorf("render preview: %w", err))
	}
	return c.Blob(http.StatusOK, "image/png", png)
}

// invoiceSend (re-)attempts email delivery of an existing invoice. Used both
// for failed deliveries and manual sends of invoices which were never mailed.
func (ctrl *controller) invoiceSend(c echo.Context) error {
	ownerID := c.Get("ownerid").(uint)
	logger := c.Get("logger").(*slog.Logger)
	inv, err := ctrl.model.LoadInvoice(c.Param("id"), ownerID)
	if err != nil {
		return ErrInvalid(err, "Nie można załadować faktury")
	}

	recipient := strings.TrimSpace(c.FormValue("email"))
	if recipient == "" && inv.TemplateID != nil {
		tpl, err := ctrl.model.LoadTemplate(*inv.TemplateID, ownerID)
		if err == nil {
			recipient = tpl.RecipientEmail
		}
	}
	if recipient == "" {
		_ = AddFlash(c, "warning", "Podaj adres e-mail odbiorcy.")
		return c.Redirect(http.StatusSeeOther, "/invoice/detail/"+c.Param("id"))
	}

	// Make sure the attachment exists before mailing.
	if _, err := ctrl.model.EnsureInvoiceDocument(inv, ctrl.renderer); err != nil {
		logger.Warn("document unavailable, sending without attachment", "invoice", inv.Number, "error", err)
	}

	if err := ctrl.model.DeliverInvoiceEmail(inv, recipient, ctrl.mailer, logger); err != nil {
		if errors.Is(err, model.ErrEmailDelivery) {
			_ = AddFlash(c, "error", "Wysyłka e-maila nie powiodła się. Spróbuj ponownie.")
			return c.Redirect(http.StatusSeeOther, "/invoice/detail/"+c.Param("id"))
		}
		return ErrInternal(err)
	}
	_ = AddFlash(c, "success", fmt.Sprintf("Faktura %s została wysłana na adres %s.", inv.Number, recipient))
	return c.Redirect(http.StatusSeeOther, "/invoice/detail/"+c.Param("id"))
}

// issueNow materializes an invoice from the template for the current month,
// outside of the scheduled run. The same idempotency rules apply, so a
// second click cannot create a duplicate.
func (ctrl *controller) templateIssueNow(c echo.Context) error {
	ownerID := c.Get("ownerid").(uint)
	logger := c.Get("logger").(*slog.Logger)
	tpl, err := ctrl.model.LoadTemplate(c.Param("id"), ownerID)
	if err != nil {
		return ErrInvalid(err, "Nie można załadować szablonu")
	}

	now := time.Now()
	inv, err := ctrl.model.MaterializeInvoice(tpl, model.PeriodOf(now), now, ctrl.renderer, logger)
	switch {
	case errors.Is(err, model.ErrDuplicateInvoice):
		existing, ferr := ctrl.model.FindInvoiceByTemplatePeriod(tpl.ID, model.PeriodOf(now))
		if ferr == nil && existing != nil {
			_ = AddFlash(c, "info", "Faktura za ten miesiąc już istnieje.")
			return c.Redirect(http.StatusSeeOther, fmt.Sprintf("/invoice/detail/%d", existing.ID))
		}
		_ = AddFlash(c, "info", "Faktura za ten miesiąc już istnieje.")
		return c.Redirect(http.StatusSeeOther, "/invoices")
	case errors.Is(err, model.ErrSellerProfileMissing):
		_ = AddFlash(c, "warning", "Uzupełnij dane sprzedawcy w ustawieniach przed wystawieniem faktury.")
		return c.Redirect(http.StatusSeeOther, "/settings")
	case err != nil:
		return ErrInternal(err)
	}

	_ = AddFlash(c, "success", fmt.Sprintf("Wystawiono fakturę %s.", inv.Number))
	return c.Redirect(http.StatusSeeOther, fmt.Sprintf("/invoice/detail/%d", inv.ID))
}

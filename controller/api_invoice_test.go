package controller

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/fakturnik/fakturnik/fixtures"
	"github.com/fakturnik/fakturnik/model"
	"github.com/labstack/echo/v4"
)

type apiFakeMailer struct {
	err  error
	sent []string
}

func (f *apiFakeMailer) Send(inv *model.Invoice, recipient string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, recipient)
	return nil
}

func setupTestAPI(t *testing.T) (*echo.Echo, *model.Store, *fixtures.TestData, *apiFakeMailer) {
	t.Helper()
	store := fixtures.NewTestStore(t)
	data := fixtures.SeedTestData(t, store)

	mailer := &apiFakeMailer{}
	ctrl := &controller{model: store, mailer: mailer}

	// Register routes without auth middleware for testing
	e := echo.New()
	api := e.Group("/api/v1")
	api.GET("/invoices", ctrl.apiInvoiceList)
	api.GET("/invoices/:id", ctrl.apiInvoiceGet)
	api.POST("/invoices/:id/send", ctrl.apiInvoiceSend)
	api.GET("/templates", ctrl.apiTemplateList)
	api.GET("/templates/:id", ctrl.apiTemplateGet)
	api.POST("/templates/:id/materialize", ctrl.apiTemplateMaterialize)

	return e, store, data, mailer
}

func newAPIContext(e *echo.Echo, req *http.Request, ownerID uint) (echo.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(string(ctxOwnerID), ownerID)
	c.Set("logger", slog.New(slog.NewTextHandler(io.Discard, nil)))
	return c, rec
}

func seedInvoice(t *testing.T, store *model.Store, data *fixtures.TestData) *model.Invoice {
	t.Helper()
	p := model.Period{Month: time.March, Year: 2025}
	now := time.Date(2025, time.March, 31, 18, 0, 0, 0, time.UTC)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	inv, err := store.MaterializeInvoice(data.Template, p, now, nil, logger)
	if err != nil {
		t.Fatalf("seed invoice: %v", err)
	}
	return inv
}

func TestAPIInvoiceList(t *testing.T) {
	e, store, data, _ := setupTestAPI(t)
	seedInvoice(t, store, data)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil)
	c, rec := newAPIContext(e, req, data.User.OwnerID)
	e.Router().Find(http.MethodGet, "/api/v1/invoices", c)

	if err := c.Handler()(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var result APIInvoiceList
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("json unmarshal: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(result.Items))
	}
	if result.Items[0].Number != "1/03/2025" {
		t.Errorf("number = %q, want 1/03/2025", result.Items[0].Number)
	}
	if result.Items[0].TotalGross != "18757.50" {
		t.Errorf("total_gross = %q, want 18757.50", result.Items[0].TotalGross)
	}
	// The list view omits lines.
	if len(result.Items[0].Lines) != 0 {
		t.Errorf("list items should not carry lines, got %d", len(result.Items[0].Lines))
	}
}

func TestAPIInvoiceList_ForeignOwnerSeesNothing(t *testing.T) {
	e, store, data, _ := setupTestAPI(t)
	seedInvoice(t, store, data)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil)
	c, rec := newAPIContext(e, req, data.User.OwnerID+1)
	e.Router().Find(http.MethodGet, "/api/v1/invoices", c)

	if err := c.Handler()(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var result APIInvoiceList
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("json unmarshal: %v", err)
	}
	if len(result.Items) != 0 {
		t.Errorf("foreign owner sees %d invoices", len(result.Items))
	}
}

func TestAPIInvoiceGet(t *testing.T) {
	e, store, data, _ := setupTestAPI(t)
	inv := seedInvoice(t, store, data)
	id := strconv.FormatUint(uint64(inv.ID), 10)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices/"+id, nil)
	c, rec := newAPIContext(e, req, data.User.OwnerID)
	e.Router().Find(http.MethodGet, "/api/v1/invoices/"+id, c)

	if err := c.Handler()(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var result APIInvoice
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("json unmarshal: %v", err)
	}
	if result.Number != inv.Number {
		t.Errorf("number = %q, want %q", result.Number, inv.Number)
	}
	if len(result.Lines) != 2 {
		t.Errorf("lines = %d, want 2", len(result.Lines))
	}
	if result.AmountInWords == "" {
		t.Error("amount_in_words missing")
	}
	if rec.Header().Get("ETag") == "" {
		t.Error("ETag header should be set")
	}
}

func TestAPIInvoiceGet_NotFound(t *testing.T) {
	e, _, data, _ := setupTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices/9999", nil)
	c, rec := newAPIContext(e, req, data.User.OwnerID)
	e.Router().Find(http.MethodGet, "/api/v1/invoices/9999", c)

	if err := c.Handler()(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestAPIInvoiceSend(t *testing.T) {
	e, store, data, mailer := setupTestAPI(t)
	inv := seedInvoice(t, store, data)
	id := strconv.FormatUint(uint64(inv.ID), 10)

	body := `{"email": "ksiegowosc@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/"+id+"/send", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c, rec := newAPIContext(e, req, data.User.OwnerID)
	e.Router().Find(http.MethodPost, "/api/v1/invoices/"+id+"/send", c)

	if err := c.Handler()(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d. Body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	if len(mailer.sent) != 1 || mailer.sent[0] != "ksiegowosc@example.com" {
		t.Errorf("sent = %v", mailer.sent)
	}

	var result APIInvoice
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("json unmarshal: %v", err)
	}
	if result.Status != string(model.InvoiceStatusSent) {
		t.Errorf("status = %q, want sent", result.Status)
	}
}

func TestAPIInvoiceSend_MissingRecipient(t *testing.T) {
	e, store, data, _ := setupTestAPI(t)
	inv := seedInvoice(t, store, data)
	id := strconv.FormatUint(uint64(inv.ID), 10)

	// Neither payload email nor a template recipient configured.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/"+id+"/send", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c, rec := newAPIContext(e, req, data.User.OwnerID)
	e.Router().Find(http.MethodPost, "/api/v1/invoices/"+id+"/send", c)

	if err := c.Handler()(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	var errResp APIError
	if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("json unmarshal: %v", err)
	}
	if errResp.Code != "missing_recipient" {
		t.Errorf("error code = %q, want missing_recipient", errResp.Code)
	}
}

func TestAPITemplateMaterialize(t *testing.T) {
	e, _, data, _ := setupTestAPI(t)
	id := strconv.FormatUint(uint64(data.Template.ID), 10)
	path := "/api/v1/templates/" + id + "/materialize"

	req := httptest.NewRequest(http.MethodPost, path, nil)
	c, rec := newAPIContext(e, req, data.User.OwnerID)
	e.Router().Find(http.MethodPost, path, c)

	if err := c.Handler()(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d. Body: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var created APIInvoice
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("json unmarshal: %v", err)
	}
	if created.TotalGross != "18757.50" {
		t.Errorf("total_gross = %q, want 18757.50", created.TotalGross)
	}

	// A second call for the same period conflicts and returns the existing
	// invoice.
	req = httptest.NewRequest(http.MethodPost, path, nil)
	c, rec = newAPIContext(e, req, data.User.OwnerID)
	e.Router().Find(http.MethodPost, path, c)

	if err := c.Handler()(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
	var existing APIInvoice
	if err := json.Unmarshal(rec.Body.Bytes(), &existing); err != nil {
		t.Fatalf("json unmarshal: %v", err)
	}
	if existing.Number != created.Number {
		t.Errorf("conflict body number = %q, want %q", existing.Number, created.Number)
	}
}

func TestAPITemplateList_XMLFormat(t *testing.T) {
	e, _, data, _ := setupTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/templates?format=xml", nil)
	c, rec := newAPIContext(e, req, data.User.OwnerID)
	e.Router().Find(http.MethodGet, "/api/v1/templates", c)

	if err := c.Handler()(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); !strings.Contains(ct, "xml") {
		t.Errorf("content type = %q, want XML", ct)
	}
	if body := rec.Body.String(); !strings.Contains(body, "<templates>") || !strings.Contains(body, "Abonament miesięczny") {
		t.Errorf("unexpected XML body: %s", body)
	}
}

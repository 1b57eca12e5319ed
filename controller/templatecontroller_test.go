package controller

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func bindTemplateForm(t *testing.T, values url.Values) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/template/new", strings.NewReader(values.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("ownerid", uint(1))
	return c, rec
}

func TestBindTemplate(t *testing.T) {
	values := url.Values{}
	values.Set("name", " Abonament ")
	values.Set("clientid", "3")
	values.Set("paymentdays", "21")
	values.Set("issueplace", "Warszawa")
	values.Set("isactive", "true")
	values.Set("items[0].name", "Usługi programistyczne")
	values.Set("items[0].quantity", "1")
	values.Set("items[0].unitprice", "15000,00") // comma decimal separator
	values.Set("items[0].vatrate", "23")
	// an empty row, as submitted by the blank trailing form row
	values.Set("items[1].name", "")
	values.Set("items[1].quantity", "")
	values.Set("items[1].unitprice", "")
	values.Set("items[1].vatrate", "23")
	values.Set("items[2].name", "Utrzymanie serwera")
	values.Set("items[2].quantity", "2,5")
	values.Set("items[2].unitprice", "100.00")
	values.Set("items[2].vatrate", "8")

	c, _ := bindTemplateForm(t, values)
	tpl, err := bindTemplate(c)
	if err != nil {
		t.Fatalf("bindTemplate: %v", err)
	}

	if tpl.Name != "Abonament" {
		t.Errorf("Name = %q, want trimmed %q", tpl.Name, "Abonament")
	}
	if tpl.ClientID != 3 || tpl.PaymentDays != 21 || !tpl.IsActive {
		t.Errorf("header fields = %+v", tpl)
	}
	if len(tpl.Items) != 2 {
		t.Fatalf("items = %d, want 2 (empty row dropped)", len(tpl.Items))
	}
	if got := tpl.Items[0].UnitPrice.StringFixed(2); got != "15000.00" {
		t.Errorf("item 0 unit price = %s, want 15000.00", got)
	}
	if got := tpl.Items[1].Quantity.String(); got != "2.5" {
		t.Errorf("item 1 quantity = %s, want 2.5", got)
	}
	if tpl.Items[1].VATRate != 8 {
		t.Errorf("item 1 VAT rate = %d, want 8", tpl.Items[1].VATRate)
	}
}

func TestBindTemplate_BadAmounts(t *testing.T) {
	tests := []struct {
		name      string
		quantity  string
		unitPrice string
		vatRate   string
	}{
		{"zero quantity", "0", "100,00", "23"},
		{"negative price", "1", "-5,00", "23"},
		{"garbage price", "1", "sto", "23"},
		{"vat out of range", "1", "100,00", "123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := url.Values{}
			values.Set("name", "Abonament")
			values.Set("clientid", "1")
			values.Set("paymentdays", "14")
			values.Set("items[0].name", "Usługa")
			values.Set("items[0].quantity", tt.quantity)
			values.Set("items[0].unitprice", tt.unitPrice)
			values.Set("items[0].vatrate", tt.vatRate)

			c, _ := bindTemplateForm(t, values)
			if _, err := bindTemplate(c); err == nil {
				t.Error("bindTemplate accepted invalid input")
			}
		})
	}
}

package controller

import (
	"encoding/xml"
	"strings"
	"time"

	"github.com/fakturnik/fakturnik/model"
	"github.com/labstack/echo/v4"
)

type APIError struct {
	Code    string `json:"code" xml:"code"`
	Message string `json:"message" xml:"message"`
}

func apiError(code, msg string) *APIError { return &APIError{Code: code, Message: msg} }

func wantsXML(c echo.Context) bool {
	if c.QueryParam("format") == "xml" {
		return true
	}
	accept := c.Request().Header.Get(echo.HeaderAccept)
	return strings.Contains(accept, "application/xml") || strings.Contains(accept, "text/xml")
}

func respond(c echo.Context, status int, v any) error {
	if wantsXML(c) {
		return c.XML(status, v)
	}
	return c.JSON(status, v)
}

// ---- invoice DTOs ----

type APIInvoiceLine struct {
	ID         uint   `json:"id" xml:"id"`
	SortOrder  int    `json:"sort_order" xml:"sort_order"`
	Name       string `json:"name" xml:"name"`
	Quantity   string `json:"quantity" xml:"quantity"`
	UnitPrice  string `json:"unit_price" xml:"unit_price"`
	VATRate    int    `json:"vat_rate" xml:"vat_rate"`
	ValueNet   string `json:"value_net" xml:"value_net"`
	ValueVAT   string `json:"value_vat" xml:"value_vat"`
	ValueGross string `json:"value_gross" xml:"value_gross"`
}

type APIInvoice struct {
	ID            uint             `json:"id" xml:"id"`
	Number        string           `json:"number" xml:"number"`
	Status        string           `json:"status" xml:"status"`
	Currency      string           `json:"currency" xml:"currency"`
	InvoiceMonth  int              `json:"invoice_month" xml:"invoice_month"`
	InvoiceYear   int              `json:"invoice_year" xml:"invoice_year"`
	IssueDate     time.Time        `json:"issue_date" xml:"issue_date"`
	SaleDate      time.Time        `json:"sale_date" xml:"sale_date"`
	DueDate       time.Time        `json:"due_date" xml:"due_date"`
	TotalNet      string           `json:"total_net" xml:"total_net"`
	TotalVAT      string           `json:"total_vat" xml:"total_vat"`
	TotalGross    string           `json:"total_gross" xml:"total_gross"`
	AmountInWords string           `json:"amount_in_words,omitempty" xml:"amount_in_words,omitempty"`
	BuyerName     string           `json:"buyer_name" xml:"buyer_name"`
	BuyerNIP      string           `json:"buyer_nip" xml:"buyer_nip"`
	SellerName    string           `json:"seller_name" xml:"seller_name"`
	TemplateID    *uint            `json:"template_id,omitempty" xml:"template_id,omitempty"`
	CreatedAt     time.Time        `json:"created_at" xml:"created_at"`
	Lines         []APIInvoiceLine `json:"lines,omitempty" xml:"line,omitempty"`
}

type APIInvoiceList struct {
	XMLName    xml.Name     `json:"-" xml:"invoices"`
	Items      []APIInvoice `json:"items" xml:"invoice"`
	NextCursor string       `json:"next_cursor,omitempty" xml:"next_cursor,omitempty"`
}

func toAPIInvoice(inv *model.Invoice, withLines bool) APIInvoice {
	out := APIInvoice{
		ID:            inv.ID,
		Number:        inv.Number,
		Status:        string(inv.Status),
		Currency:      inv.Currency,
		InvoiceMonth:  inv.InvoiceMonth,
		InvoiceYear:   inv.InvoiceYear,
		IssueDate:     inv.IssueDate,
		SaleDate:      inv.SaleDate,
		DueDate:       inv.DueDate,
		TotalNet:      inv.TotalNet.StringFixed(2),
		TotalVAT:      inv.TotalVAT.StringFixed(2),
		TotalGross:    inv.TotalGross.StringFixed(2),
		AmountInWords: inv.AmountInWords,
		BuyerName:     inv.BuyerName,
		BuyerNIP:      inv.BuyerNIP,
		SellerName:    inv.SellerCompanyName,
		TemplateID:    inv.TemplateID,
		CreatedAt:     inv.CreatedAt,
	}
	if withLines {
		out.Lines = make([]APIInvoiceLine, len(inv.LineItems))
		for i, li := range inv.LineItems {
			out.Lines[i] = APIInvoiceLine{
				ID:         li.ID,
				SortOrder:  li.SortOrder,
				Name:       li.Name,
				Quantity:   li.Quantity.String(),
				UnitPrice:  li.UnitPrice.StringFixed(2),
				VATRate:    li.VATRate,
				ValueNet:   li.ValueNet.StringFixed(2),
				ValueVAT:   li.ValueVAT.StringFixed(2),
				ValueGross: li.ValueGross.StringFixed(2),
			}
		}
	}
	return out
}

// ---- template DTOs ----

type APITemplateItem struct {
	SortOrder int    `json:"sort_order" xml:"sort_order"`
	Name      string `json:"name" xml:"name"`
	Quantity  string `json:"quantity" xml:"quantity"`
	UnitPrice string `json:"unit_price" xml:"unit_price"`
	VATRate   int    `json:"vat_rate" xml:"vat_rate"`
}

type APITemplate struct {
	ID             uint              `json:"id" xml:"id"`
	Name           string            `json:"name" xml:"name"`
	ClientID       uint              `json:"client_id" xml:"client_id"`
	ClientName     string            `json:"client_name,omitempty" xml:"client_name,omitempty"`
	IsActive       bool              `json:"is_active" xml:"is_active"`
	PaymentDays    int               `json:"payment_days" xml:"payment_days"`
	AutoSendEmail  bool              `json:"auto_send_email" xml:"auto_send_email"`
	RecipientEmail string            `json:"recipient_email,omitempty" xml:"recipient_email,omitempty"`
	Items          []APITemplateItem `json:"items,omitempty" xml:"item,omitempty"`
}

type APITemplateList struct {
	XMLName xml.Name      `json:"-" xml:"templates"`
	Items   []APITemplate `json:"items" xml:"template"`
}

func toAPITemplate(tpl *model.InvoiceTemplate, withItems bool) APITemplate {
	out := APITemplate{
		ID:             tpl.ID,
		Name:           tpl.Name,
		ClientID:       tpl.ClientID,
		ClientName:     tpl.Client.Name,
		IsActive:       tpl.IsActive,
		PaymentDays:    tpl.PaymentDays,
		AutoSendEmail:  tpl.AutoSendEmail,
		RecipientEmail: tpl.RecipientEmail,
	}
	if withItems {
		out.Items = make([]APITemplateItem, len(tpl.Items))
		for i, it := range tpl.Items {
			out.Items[i] = APITemplateItem{
				SortOrder: it.SortOrder,
				Name:      it.Name,
				Quantity:  it.Quantity.String(),
				UnitPrice: it.UnitPrice.StringFixed(2),
				VATRate:   it.VATRate,
			}
		}
	}
	return out
}

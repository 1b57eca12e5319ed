package controller

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/fakturnik/fakturnik/model"

	"github.com/go-playground/form/v4"
	"github.com/labstack/echo/v4"
)

// Polish forms use a comma as the decimal separator.
var commaperiod = strings.NewReplacer(",", ".")

func (ctrl *controller) templateInit(e *echo.Echo) {
	g := e.Group("/template")
	g.Use(ctrl.authMiddleware)
	g.GET("/new", ctrl.templateEdit)
	g.POST("/new", ctrl.templateEdit)
	g.GET("/edit/:id", ctrl.templateEdit)
	g.POST("/edit/:id", ctrl.templateEdit)
	g.POST("/toggle/:id", ctrl.templateToggle)
	g.DELETE("/delete/:id", ctrl.templateDelete)
	g.POST("/issue/:id", ctrl.templateIssueNow)
	lg := e.Group("/templates", ctrl.authMiddleware)
	lg.GET("", ctrl.templateList)
}

// templateitem is one line of the template form.
type templateitem struct {
	Name      string `form:"name"`
	Quantity  string `form:"quantity"`
	UnitPrice string `form:"unitprice"`
	VATRate   int    `form:"vatrate"`
}

type templateform struct {
	TemplateID        uint           `form:"templateid"`
	Name              string         `form:"name"`
	ClientID          uint           `form:"clientid"`
	PaymentDays       int            `form:"paymentdays"`
	IssuePlace        string         `form:"issueplace"`
	IsActive          bool           `form:"isactive"`
	AutoSendEmail     bool           `form:"autosendemail"`
	RecipientEmail    string         `form:"recipientemail"`
	SellerCompanyName string         `form:"sellercompanyname"`
	SellerOwnerName   string         `form:"sellerownername"`
	SellerAddress     string         `form:"selleraddress"`
	SellerNIP         string         `form:"sellernip"`
	SellerBankAccount string         `form:"sellerbankaccount"`
	SellerBankName    string         `form:"sellerbankname"`
	SellerSwift       string         `form:"sellerswift"`
	Items             []templateitem `form:"items"`
}

// bindTemplate decodes the (nested) template form into a model template.
// Empty item rows are dropped; saved items get renumbered by SaveTemplate.
func bindTemplate(c echo.Context) (*model.InvoiceTemplate, error) {
	ownerID := c.Get("ownerid").(uint)
	f := templateform{}
	dec := form.NewDecoder()
	if err := c.Request().ParseForm(); err != nil {
		return nil, err
	}
	if err := dec.Decode(&f, c.Request().Form); err != nil {
		return nil, err
	}

	tpl := &model.InvoiceTemplate{
		OwnerID:           ownerID,
		ClientID:          f.ClientID,
		Name:              strings.TrimSpace(f.Name),
		IsActive:          f.IsActive,
		PaymentDays:       f.PaymentDays,
		IssuePlace:        strings.TrimSpace(f.IssuePlace),
		AutoSendEmail:     f.AutoSendEmail,
		RecipientEmail:    strings.TrimSpace(f.RecipientEmail),
		SellerCompanyName: strings.TrimSpace(f.SellerCompanyName),
		SellerOwnerName:   strings.TrimSpace(f.SellerOwnerName),
		SellerAddress:     strings.TrimSpace(f.SellerAddress),
		SellerNIP:         strings.TrimSpace(f.SellerNIP),
		SellerBankAccount: strings.TrimSpace(f.SellerBankAccount),
		SellerBankName:    strings.TrimSpace(f.SellerBankName),
		SellerSwift:       strings.TrimSpace(f.SellerSwift),
	}
	tpl.ID = f.TemplateID

	sortOrder := 0
	for _, it := range f.Items {
		if strings.TrimSpace(it.Name) == "" && it.Quantity == "" && it.UnitPrice == "" {
			continue
		}
		qty, err := model.ParseQuantity(commaperiod.Replace(it.Quantity))
		if err != nil {
			return nil, fmt.Errorf("pozycja %q: %w", it.Name, err)
		}
		price, err := model.ParseAmount(commaperiod.Replace(it.UnitPrice))
		if err != nil {
			return nil, fmt.Errorf("pozycja %q: %w", it.Name, err)
		}
		if !model.ValidVATRate(it.VATRate) {
			return nil, fmt.Errorf("pozycja %q: nieprawidłowa stawka VAT", it.Name)
		}
		sortOrder++
		tpl.Items = append(tpl.Items, model.TemplateLineItem{
			OwnerID:   ownerID,
			SortOrder: sortOrder,
			Name:      strings.TrimSpace(it.Name),
			Quantity:  qty,
			UnitPrice: price,
			VATRate:   it.VATRate,
		})
	}
	return tpl, nil
}

func (ctrl *controller) templateList(c echo.Context) error {
	ownerID := c.Get("ownerid").(uint)
	templates, err := ctrl.model.LoadAllTemplates(ownerID)
	if err != nil {
		return ErrInvalid(err, "Błąd podczas ładowania szablonów")
	}
	m := ctrl.defaultResponseMap(c, "Szablony faktur")
	m["templates"] = templates
	return c.Render(http.StatusOK, "templates.html", m)
}

func (ctrl *controller) templateEdit(c echo.Context) error {
	ownerID := c.Get("ownerid").(uint)
	isNew := c.Param("id") == ""

	if c.Request().Method == http.MethodGet {
		title := "Nowy szablon"
		tpl := &model.InvoiceTemplate{PaymentDays: 14, IsActive: true}
		if !isNew {
			var err error
			tpl, err = ctrl.model.LoadTemplate(c.Param("id"), ownerID)
			if err != nil {
				return ErrInvalid(err, "Nie można załadować szablonu")
			}
			title = "Edycja szablonu " + tpl.Name
		}
		clients, err := ctrl.model.LoadAllClients(ownerID)
		if err != nil {
			return ErrInvalid(err, "Błąd podczas ładowania klientów")
		}
		m := ctrl.defaultResponseMap(c, title)
		m["template"] = tpl
		m["clients"] = clients
		if isNew {
			m["action"] = "/template/new"
		} else {
			m["action"] = "/template/edit/" + c.Param("id")
		}
		return c.Render(http.StatusOK, "template_form.html", m)
	}

	tpl, err := bindTemplate(c)
	if err != nil {
		return ErrInvalid(err, "Nieprawidłowe dane szablonu: "+err.Error())
	}
	if !isNew {
		existing, err := ctrl.model.LoadTemplate(c.Param("id"), ownerID)
		if err != nil {
			return ErrInvalid(err, "Nie można załadować szablonu")
		}
		tpl.ID = existing.ID
	}

	if err := ctrl.model.SaveTemplate(tpl, ownerID); err != nil {
		if errors.Is(err, model.ErrInvalidAmount) {
			return ErrInvalid(err, "Nieprawidłowa kwota lub ilość w pozycjach szablonu")
		}
		return ErrInvalid(err, "Nie można zapisać szablonu")
	}

	_ = AddFlash(c, "success", fmt.Sprintf("Szablon %q został zapisany.", tpl.Name))
	return c.Redirect(http.StatusSeeOther, "/templates")
}

func (ctrl *controller) templateToggle(c echo.Context) error {
	ownerID := c.Get("ownerid").(uint)
	id, err := parseUintParam(c, "id")
	if err != nil {
		return ErrInvalid(err, "Nieprawidłowy identyfikator szablonu")
	}
	active, err := ctrl.model.ToggleTemplate(id, ownerID)
	if err != nil {
		return ErrInvalid(err, "Nie można zmienić stanu szablonu")
	}
	if active {
		_ = AddFlash(c, "success", "Szablon został włączony.")
	} else {
		_ = AddFlash(c, "success", "Szablon został wyłączony.")
	}
	return c.Redirect(http.StatusSeeOther, "/templates")
}

func (ctrl *controller) templateDelete(c echo.Context) error {
	ownerID := c.Get("ownerid").(uint)
	id, err := parseUintParam(c, "id")
	if err != nil {
		return ErrInvalid(err, "Nieprawidłowy identyfikator szablonu")
	}
	if err := ctrl.model.DeleteTemplate(id, ownerID); err != nil {
		return ErrInvalid(err, "Nie można usunąć szablonu")
	}
	_ = AddFlash(c, "success", "Szablon został usunięty. Wystawione faktury pozostają bez zmian.")
	return c.Redirect(http.StatusSeeOther, "/templates")
}

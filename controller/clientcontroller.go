package controller

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/fakturnik/fakturnik/model"

	"github.com/labstack/echo/v4"
)

func (ctrl *controller) clientInit(e *echo.Echo) {
	g := e.Group("/client")
	g.Use(ctrl.authMiddleware)
	g.GET("/new", ctrl.clientEdit)
	g.POST("/new", ctrl.clientEdit)
	g.GET("/edit/:id", ctrl.clientEdit)
	g.POST("/edit/:id", ctrl.clientEdit)
	g.DELETE("/delete/:id", ctrl.clientDelete)
	lg := e.Group("/clients", ctrl.authMiddleware)
	lg.GET("", ctrl.clientList)
}

func (ctrl *controller) clientList(c echo.Context) error {
	ownerID := c.Get("ownerid").(uint)
	clients, err := ctrl.model.LoadAllClients(ownerID)
	if err != nil {
		return ErrInvalid(err, "Błąd podczas ładowania klientów")
	}
	m := ctrl.defaultResponseMap(c, "Klienci")
	m["clients"] = clients
	return c.Render(http.StatusOK, "clients.html", m)
}

func (ctrl *controller) clientEdit(c echo.Context) error {
	ownerID := c.Get("ownerid").(uint)
	isNew := c.Param("id") == ""

	if c.Request().Method == http.MethodGet {
		title := "Nowy klient"
		client := &model.Client{}
		if !isNew {
			var err error
			client, err = ctrl.model.LoadClient(c.Param("id"), ownerID)
			if err != nil {
				return ErrInvalid(err, "Nie można załadować klienta")
			}
			title = "Edycja klienta " + client.Name
		}
		m := ctrl.defaultResponseMap(c, title)
		m["client"] = client
		if isNew {
			m["action"] = "/client/new"
		} else {
			m["action"] = "/client/edit/" + c.Param("id")
		}
		return c.Render(http.StatusOK, "client_form.html", m)
	}

	client := &model.Client{
		OwnerID: ownerID,
		Name:    strings.TrimSpace(c.FormValue("name")),
		Address: strings.TrimSpace(c.FormValue("address")),
		Country: strings.TrimSpace(c.FormValue("country")),
		NIP:     strings.TrimSpace(c.FormValue("nip")),
	}
	if client.Name == "" {
		return ErrInvalid(fmt.Errorf("client name empty"), "Nazwa klienta nie może być pusta")
	}
	if !isNew {
		existing, err := ctrl.model.LoadClient(c.Param("id"), ownerID)
		if err != nil {
			return ErrInvalid(err, "Nie można załadować klienta")
		}
		client.ID = existing.ID
	}

	if err := ctrl.model.SaveClient(client, ownerID); err != nil {
		return ErrInvalid(err, "Nie można zapisać klienta")
	}
	_ = AddFlash(c, "success", fmt.Sprintf("Klient %q został zapisany.", client.Name))
	return c.Redirect(http.StatusSeeOther, "/clients")
}

func (ctrl *controller) clientDelete(c echo.Context) error {
	ownerID := c.Get("ownerid").(uint)
	id, err := parseUintParam(c, "id")
	if err != nil {
		return ErrInvalid(err, "Nieprawidłowy identyfikator klienta")
	}
	if err := ctrl.model.DeleteClient(id, ownerID); err != nil {
		if errors.Is(err, model.ErrNotAllowed) {
			_ = AddFlash(c, "warning", "Nie można usunąć klienta, do którego przypisane są szablony.")
			return c.Redirect(http.StatusSeeOther, "/clients")
		}
		return ErrInvalid(err, "Nie można usunąć klienta")
	}
	_ = AddFlash(c, "success", "Klient został usunięty.")
	return c.Redirect(http.StatusSeeOther, "/clients")
}

package controller

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/fakturnik/fakturnik/model"

	"github.com/labstack/echo/v4"
)

func (ctrl *controller) settingsInit(e *echo.Echo) {
	g := e.Group("/settings")
	g.Use(ctrl.authMiddleware)
	g.GET("", ctrl.settings)
	g.POST("", ctrl.settings)
	g.POST("/token", ctrl.settingsCreateToken)
	g.POST("/token/revoke/:id", ctrl.settingsRevokeToken)
}

// settings shows and saves the seller profile plus the API token list.
func (ctrl *controller) settings(c echo.Context) error {
	ownerID := c.Get("ownerid").(uint)

	if c.Request().Method == http.MethodPost {
		profile := &model.SellerProfile{
			OwnerID:     ownerID,
			CompanyName: strings.TrimSpace(c.FormValue("companyname")),
			OwnerName:   strings.TrimSpace(c.FormValue("ownername")),
			Address:     strings.TrimSpace(c.FormValue("address")),
			NIP:         strings.TrimSpace(c.FormValue("nip")),
			BankAccount: strings.TrimSpace(c.FormValue("bankaccount")),
			BankName:    strings.TrimSpace(c.FormValue("bankname")),
			Swift:       strings.TrimSpace(c.FormValue("swift")),
		}
		if err := ctrl.model.SaveSellerProfile(profile, ownerID); err != nil {
			return ErrInvalid(err, "Nie można zapisać danych sprzedawcy")
		}
		_ = AddFlash(c, "success", "Dane sprzedawcy zostały zapisane.")
		return c.Redirect(http.StatusSeeOther, "/settings")
	}

	profile, err := ctrl.model.LoadSellerProfile(ownerID)
	if err != nil {
		return ErrInvalid(err, "Błąd podczas ładowania danych sprzedawcy")
	}
	tokens, err := ctrl.model.ListAPITokensByOwner(ownerID)
	if err != nil {
		return ErrInvalid(err, "Błąd podczas ładowania tokenów API")
	}

	m := ctrl.defaultResponseMap(c, "Ustawienia")
	m["profile"] = profile
	m["tokens"] = tokens
	return c.Render(http.StatusOK, "settings.html", m)
}

// settingsCreateToken creates an API token and shows the plaintext once.
func (ctrl *controller) settingsCreateToken(c echo.Context) error {
	ownerID := c.Get("ownerid").(uint)
	name := strings.TrimSpace(c.FormValue("name"))
	if name == "" {
		name = "API token"
	}
	plain, _, err := ctrl.model.CreateAPIToken(ownerID, name, nil)
	if err != nil {
		return ErrInvalid(err, "Nie można utworzyć tokenu API")
	}
	_ = AddFlash(c, "success", fmt.Sprintf("Token %q utworzony. Zapisz go teraz, nie zostanie wyświetlony ponownie: %s", name, plain))
	return c.Redirect(http.StatusSeeOther, "/settings")
}

func (ctrl *controller) settingsRevokeToken(c echo.Context) error {
	ownerID := c.Get("ownerid").(uint)
	id, err := parseUintParam(c, "id")
	if err != nil {
		return ErrInvalid(err, "Nieprawidłowy identyfikator tokenu")
	}
	if err := ctrl.model.RevokeAPIToken(ownerID, id); err != nil {
		return ErrInvalid(err, "Nie można unieważnić tokenu")
	}
	_ = AddFlash(c, "success", "Token został unieważniony.")
	return c.Redirect(http.StatusSeeOther, "/settings")
}

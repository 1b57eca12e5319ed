package controller

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/fakturnik/fakturnik/model"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
)

// authMiddleware ensures a user is authenticated before accessing protected
// routes. It reads uid/ownerid from the session; on failure it redirects to
// /login.
func (ctrl *controller) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		sw, err := LoadSession(c)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, fmt.Errorf("cannot load session: %w", err))
		}

		var ok bool
		var uid uint
		if v, exists := sw.Values()["uid"]; exists {
			uid, ok = v.(uint)
		}
		if !ok || uid == 0 {
			return c.Redirect(http.StatusSeeOther, "/login")
		}
		c.Set("uid", uid)

		if v, exists := sw.Values()["ownerid"]; exists {
			if ownerid, ok := v.(uint); ok && ownerid != 0 {
				c.Set("ownerid", ownerid)
			} else {
				return c.Redirect(http.StatusSeeOther, "/login")
			}
		} else {
			return c.Redirect(http.StatusSeeOther, "/login")
		}
		return next(c)
	}
}

// login handles GET (render form) and POST (authenticate). On successful
// POST it stores uid/ownerid and the "persist" flag (remember me) in the
// session; the cookie MaxAge is applied by SessionWriter.Save().
func (ctrl *controller) login(c echo.Context) error {
	if c.Request().Method == http.MethodGet {
		m := ctrl.defaultResponseMap(c, "Logowanie")
		return c.Render(http.StatusOK, "login.html", m)
	}

	email := strings.TrimSpace(strings.ToLower(c.FormValue("email")))
	password := c.FormValue("password")
	remember := c.FormValue("rememberMe") != ""

	// Do not leak whether the user exists.
	user, err := ctrl.model.AuthenticateUser(email, password)
	if err != nil || user == nil {
		if err := AddFlash(c, "error", "Logowanie nie powiodło się. Sprawdź dane i spróbuj ponownie."); err != nil {
			return ErrInvalid(err, "Błąd podczas zapisywania sesji")
		}
		return c.Redirect(http.StatusSeeOther, "/login")
	}

	sw, err := LoadSession(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	sw.Values()["uid"] = user.ID
	sw.Values()["ownerid"] = func() uint {
		if user.OwnerID != 0 {
			return user.OwnerID
		}
		return user.ID // fallback for legacy data
	}()
	sw.Values()["persist"] = remember

	if err := sw.Save(); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	_ = ctrl.model.TouchLastLogin(user) // best-effort
	return c.Redirect(http.StatusSeeOther, "/")
}

// logout clears the session and deletes the cookie. We bypass SessionWriter
// here to force MaxAge = -1 regardless of "persist".
func (ctrl *controller) logout(c echo.Context) error {
	sess, err := session.Get("session", c)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}
	delete(sess.Values, "uid")
	delete(sess.Values, "ownerid")
	delete(sess.Values, "csrf")
	delete(sess.Values, "persist")

	// Force-delete the cookie for all browsers (including Safari).
	if sess.Options == nil {
		sess.Options = &sessions.Options{Path: "/"}
	}
	sess.Options.MaxAge = -1

	if err := sess.Save(c.Request(), c.Response()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}
	_ = AddFlash(c, "success", "Wylogowano pomyślnie.")
	return c.Redirect(http.StatusFound, "/login")
}

// register handles GET (render form) and POST (create the account and sign
// in). Open registration can be disabled in the config; the very first
// account can always be created.
func (ctrl *controller) register(c echo.Context) error {
	if !ctrl.model.Config.RegistrationAllowed {
		exists, err := ctrl.model.UserExists()
		if err != nil {
			return ErrInternal(err)
		}
		if exists {
			return echo.NewHTTPError(http.StatusForbidden, "Rejestracja jest wyłączona")
		}
	}
	if c.Request().Method == http.MethodGet {
		m := ctrl.defaultResponseMap(c, "Rejestracja")
		return c.Render(http.StatusOK, "register.html", m)
	}

	email := strings.TrimSpace(strings.ToLower(c.FormValue("email")))
	fullName := strings.TrimSpace(c.FormValue("fullname"))
	password := c.FormValue("password")
	confirm := c.FormValue("confirmPassword")

	if email == "" || password == "" {
		_ = AddFlash(c, "error", "Podaj adres e-mail i hasło.")
		return c.Redirect(http.StatusSeeOther, "/register")
	}
	if password != confirm {
		_ = AddFlash(c, "error", "Hasła nie są identyczne.")
		return c.Redirect(http.StatusSeeOther, "/register")
	}

	user, err := ctrl.model.RegisterUser(email, fullName, password)
	if err != nil {
		if model.IsDuplicateEmail(err) {
			_ = AddFlash(c, "error", "Konto z tym adresem e-mail już istnieje.")
			return c.Redirect(http.StatusSeeOther, "/register")
		}
		return ErrInternal(err)
	}

	sw, err := LoadSession(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}
	sw.Values()["uid"] = user.ID
	sw.Values()["ownerid"] = user.OwnerID
	if err := sw.Save(); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	_ = ctrl.model.TouchLastLogin(user)
	_ = AddFlash(c, "success", "Konto zostało utworzone. Uzupełnij dane sprzedawcy w ustawieniach.")
	return c.Redirect(http.StatusSeeOther, "/settings")
}

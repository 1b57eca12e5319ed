package controller

import (
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/fakturnik/fakturnik/model"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/shopspring/decimal"
	"github.com/xeonx/timeago"
)

type Flash struct {
	Kind    string // "success" | "error" | "warning" | "info"
	Message string
}

// FlashLoader pulls flashes out of the session (emptying it) and puts them
// into the echo context.
func FlashLoader(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, _ := session.Get("session", c)
		raw := sess.Flashes()
		_ = sess.Save(c.Request(), c.Response())

		flashes := make([]Flash, 0, len(raw))
		for _, it := range raw {
			if f, ok := it.(Flash); ok {
				flashes = append(flashes, f)
			}
		}
		c.Set("flashes", flashes)
		return next(c)
	}
}

// AddFlash stores a flash message (gorilla sessions via echo-contrib/session).
func AddFlash(c echo.Context, kind, msg string) error {
	sess, _ := session.Get("session", c)
	sess.AddFlash(Flash{Kind: kind, Message: msg})
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		return ErrInvalid(err, "Błąd podczas zapisywania sesji")
	}
	return nil
}

type appError struct {
	Code   string // stable internal error code for ops/support
	Status int    // matching HTTP status
	Err    error  // original error, never shown to the client
	Public string // safe text for users (optional)
}

func (e *appError) Error() string { return fmt.Sprintf("%s: %v", e.Code, e.Err) }
func (e *appError) Unwrap() error { return e.Err }

func ErrNotFound(err error) *appError {
	return &appError{Code: "NOT_FOUND", Status: http.StatusNotFound, Err: err}
}
func ErrInvalid(err error, public string) *appError {
	return &appError{Code: "INVALID_INPUT", Status: http.StatusBadRequest, Err: err, Public: public}
}
func ErrInternal(err error) *appError {
	return &appError{Code: "INTERNAL", Status: http.StatusInternalServerError, Err: err}
}

// Polish relative-time formatting for the dashboard.
var timeagoPolish = timeago.NoMax(timeago.Config{
	PastSuffix:   " temu",
	FuturePrefix: "za ",
	Periods: []timeago.FormatPeriod{
		{D: time.Second, One: "sekundę", Many: "%d sek."},
		{D: time.Minute, One: "minutę", Many: "%d min."},
		{D: time.Hour, One: "godzinę", Many: "%d godz."},
		{D: timeago.Day, One: "dzień", Many: "%d dni"},
		{D: timeago.Month, One: "miesiąc", Many: "%d mies."},
		{D: timeago.Year, One: "rok", Many: "%d lat"},
	},
	Zero:          "przed chwilą",
	DefaultLayout: "02.01.2006",
})

// The Template interface implements rendering functionality for echo.
type Template struct {
	templates *template.Template
}

// Render is the echo way of rendering templates.
func (t *Template) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	return t.templates.ExecuteTemplate(w, name, data)
}

type controller struct {
	model    *model.Store
	renderer model.DocumentRenderer
	mailer   model.EmailSender
}

func (ctrl *controller) defaultResponseMap(c echo.Context, title string) map[string]any {
	responseMap := map[string]any{
		"title":    title,
		"loggedin": false,
		"path":     c.Request().URL.Path,
	}

	if flashes, ok := c.Get("flashes").([]Flash); ok {
		responseMap["flashes"] = flashes
	} else {
		responseMap["flashes"] = []Flash{}
	}

	if t := c.Get(middleware.DefaultCSRFConfig.ContextKey); t != nil {
		responseMap["CSRFToken"] = t.(string)
	}

	ownerID := c.Get("ownerid")
	userID := c.Get("uid")
	if ownerID == nil || userID == nil {
		return responseMap
	}
	responseMap["ownerid"] = ownerID
	responseMap["uid"] = userID.(uint)
	user, err := ctrl.model.GetUserByID(userID)
	if err != nil {
		c.Get("logger").(*slog.Logger).Warn("cannot get user by ID", "error", err)
		responseMap["uid"] = nil
		responseMap["ownerid"] = nil
		c.Set("uid", nil)
		c.Set("ownerid", nil)
		return responseMap
	}
	if user != nil {
		responseMap["email"] = user.Email
		responseMap["fullname"] = user.FullName
		responseMap["loggedin"] = true
	}
	return responseMap
}

// root renders the dashboard: the most recent invoices, active template
// count and the date of the next scheduled generation.
func (ctrl *controller) root(c echo.Context) error {
	m := ctrl.defaultResponseMap(c, "Pulpit")

	ownerID := c.Get("ownerid")
	userID := c.Get("uid")
	if ownerID == nil || userID == nil {
		return c.Render(http.StatusOK, "login.html", m)
	}

	recent, err := ctrl.model.RecentInvoices(ownerID.(uint), 10)
	if err != nil {
		return ErrInvalid(err, "Błąd podczas ładowania faktur")
	}
	templates, err := ctrl.model.LoadAllTemplates(ownerID.(uint))
	if err != nil {
		return ErrInvalid(err, "Błąd podczas ładowania szablonów")
	}
	active := 0
	for _, tpl := range templates {
		if tpl.IsActive {
			active++
		}
	}

	now := time.Now()
	nextRun := model.LastBusinessDayOfMonth(now.Year(), now.Month(), now.Location())
	if now.After(nextRun.AddDate(0, 0, 1)) {
		next := now.AddDate(0, 1, 0)
		nextRun = model.LastBusinessDayOfMonth(next.Year(), next.Month(), now.Location())
	}

	m["recentinvoices"] = recent
	m["templatecount"] = len(templates)
	m["activetemplates"] = active
	m["nextgeneration"] = nextRun
	if len(templates) == 0 {
		m["notemplates"] = true
	}
	return c.Render(http.StatusOK, "main.html", m)
}

// NewController wires the web application and blocks serving it.
func NewController(store *model.Store, renderer model.DocumentRenderer, mailer model.EmailSender) error {
	// Prod: JSON, Info+; Dev: Text, Debug
	var logger *slog.Logger
	if store.Config.Mode == "development" {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	} else {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	gob.Register(Flash{})
	var templateFunc = template.FuncMap{
		"htmldate": func(in time.Time) string {
			return in.Format("2006-01-02")
		},
		"userdate": func(in time.Time) string {
			return in.Format("02.01.2006")
		},
		"timeago": func(in time.Time) string {
			return timeagoPolish.Format(in)
		},
		"money": func(in decimal.Decimal) string {
			return in.StringFixed(2)
		},
		"vatrate": func(in int) string {
			return fmt.Sprintf("%d%%", in)
		},
		"invoiceStatus": func(in model.InvoiceStatus) string {
			status := map[model.InvoiceStatus]string{
				model.InvoiceStatusIssued: "Wystawiona",
				model.InvoiceStatusSent:   "Wysłana",
				model.InvoiceStatusFailed: "Błąd wysyłki",
			}
			if desc, ok := status[in]; ok {
				return desc
			}
			return "nieznany"
		},
		"emailStatus": func(in model.EmailStatus) string {
			status := map[model.EmailStatus]string{
				model.EmailStatusPending: "W trakcie",
				model.EmailStatusSent:    "Wysłano",
				model.EmailStatusFailed:  "Nie wysłano",
			}
			if desc, ok := status[in]; ok {
				return desc
			}
			return "nieznany"
		},
		"period": func(month, year int) string {
			return fmt.Sprintf("%02d/%d", month, year)
		},
		"array": func(els ...any) []any {
			return els
		},
		"toJSON": func(v any) template.JS {
			b, _ := json.Marshal(v)
			return template.JS(b)
		},
		"fmtTime": func(v any) string {
			var t time.Time
			switch x := v.(type) {
			case time.Time:
				t = x
			case *time.Time:
				if x == nil {
					return ""
				}
				t = *x
			default:
				return ""
			}
			if t.IsZero() {
				return ""
			}
			return t.Format("02.01.2006 15:04")
		},
		"nl2br": func(s string) template.HTML {
			esc := html.EscapeString(s)
			return template.HTML(strings.ReplaceAll(esc, "\n", "<br>"))
		},
		"now":    time.Now,
		"before": func(a, b time.Time) bool { return a.Before(b) },
	}

	tmpl := &Template{
		templates: template.Must(template.New("t").Funcs(templateFunc).ParseGlob("public/views/*.html")),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Pre(middleware.MethodOverrideWithConfig(middleware.MethodOverrideConfig{
		Getter: middleware.MethodFromForm("_method"),
	}))
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.BodyLimit("20M"))
	e.Use(middleware.RequestID())
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		DisableStackAll:   false,
		DisablePrintStack: true,
	}))

	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			req := c.Request()
			res := c.Response()
			rid := res.Header().Get(echo.HeaderXRequestID)

			// Request-scoped logger
			reqLogger := logger.With(
				"request_id", rid,
			).WithGroup("http").With(
				"method", req.Method,
				"path", req.URL.Path,
				"remote_ip", c.RealIP(),
			)
			c.Set("logger", reqLogger)

			err := next(c)

			if shouldSkipAccessLog(c) {
				return err
			}
			latency := time.Since(start)

			attrs := []any{
				"status", res.Status,
				"latency_ms", float64(latency.Microseconds()) / 1000.0,
			}

			switch {
			case res.Status >= 500:
				reqLogger.Error("http_request", attrs...)
			case res.Status >= 400:
				reqLogger.Warn("http_request", attrs...)
			default:
				reqLogger.Info("http_request", attrs...)
			}
			return err
		}
	})

	// Log everything internally, expose only a safe payload.
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		l, _ := c.Get("logger").(*slog.Logger)
		if l == nil {
			l = logger
		}

		var ae *appError
		var he *echo.HTTPError
		switch {
		case errors.As(err, &ae):
			// already ours
		case errors.As(err, &he):
			// Only pass 4xx messages to users; mask 5xx.
			public := ""
			if he.Code >= 400 && he.Code < 500 {
				public = fmt.Sprint(he.Message)
			}
			ae = &appError{
				Code:   httpStatusToCode(he.Code),
				Status: he.Code,
				Err:    fmt.Errorf("%v", he.Message),
				Public: public,
			}
		case errors.Is(err, echo.ErrNotFound):
			ae = ErrNotFound(err)
		case errors.Is(err, echo.ErrMethodNotAllowed):
			ae = &appError{Code: "METHOD_NOT_ALLOWED", Status: http.StatusMethodNotAllowed, Err: err}
		default:
			ae = ErrInternal(err)
		}

		attrs := []any{
			"status", ae.Status,
			"code", ae.Code,
			"error", ae.Err.Error(),
		}
		if ae.Status >= 500 {
			l.Error("handler_error", attrs...)
		} else {
			l.Warn("handler_error", attrs...)
		}

		if wantsHTML(c.Request()) {
			kind := "error"
			if ae.Status >= 400 && ae.Status < 500 {
				kind = "warning"
			}
			if err = AddFlash(c, kind, userMessage(ae)); err != nil {
				l.Error("cannot add flash message", "error", err)
			}
			target := c.Request().Referer()
			if target == "" {
				target = "/"
			}
			_ = c.Redirect(http.StatusSeeOther, target)
			return
		}

		_ = c.JSON(ae.Status, map[string]any{
			"error":      userMessage(ae),
			"error_code": ae.Code,
			"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
		})
	}

	cookieStore := sessions.NewCookieStore([]byte(store.Config.CookieSecret))
	cookieStore.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	e.Use(session.Middleware(cookieStore))
	e.Use(FlashLoader)
	if store.Config.Mode == "development" {
		// Disable caching for static files
		e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				if strings.HasPrefix(c.Request().URL.Path, "/static/") {
					res := c.Response().Header()
					res.Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
					res.Set("Pragma", "no-cache")
					res.Set("Expires", "0")
				}
				return next(c)
			}
		})
	}
	e.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLength:    32,
		TokenLookup:    "form:csrf,header:X-CSRF-Token",
		CookieName:     "csrf",
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSameSite: http.SameSiteLaxMode,
		Skipper: func(c echo.Context) bool {
			if strings.HasPrefix(c.Path(), "/api/") {
				return true
			}
			if c.Request().Method == http.MethodPost && strings.HasPrefix(c.Path(), "/login") {
				return true
			}
			return false
		},
	}))

	e.Renderer = tmpl
	ctrl := controller{model: store, renderer: renderer, mailer: mailer}
	e.GET("/", ctrl.root, ctrl.authMiddleware)
	e.GET("/login", ctrl.login)
	e.POST("/login", ctrl.login)
	e.GET("/logout", ctrl.logout)
	e.GET("/register", ctrl.register)
	e.POST("/register", ctrl.register)

	e.Static("/static", "static")
	ctrl.invoiceInit(e)
	ctrl.templateInit(e)
	ctrl.clientInit(e)
	ctrl.settingsInit(e)
	ctrl.exportInit(e)
	ctrl.apiInit(e)

	if err := e.Start(fmt.Sprintf(":%d", store.Config.Port)); err != nil {
		return fmt.Errorf("cannot start application %w", err)
	}
	return nil
}

func userMessage(ae *appError) string {
	if ae.Public != "" {
		return ae.Public
	}
	switch ae.Code {
	case "INVALID_INPUT":
		return "Nieprawidłowe dane. Sprawdź formularz i spróbuj ponownie."
	case "NOT_FOUND":
		return "Nie znaleziono żądanego zasobu."
	case "METHOD_NOT_ALLOWED":
		return "Ta metoda HTTP nie jest tutaj obsługiwana."
	default:
		return "Wystąpił błąd. Spróbuj ponownie później."
	}
}

func wantsHTML(r *http.Request) bool { return strings.Contains(r.Header.Get("Accept"), "text/html") }

func httpStatusToCode(status int) string {
	switch status {
	case 400:
		return "INVALID_INPUT"
	case 401:
		return "UNAUTHORIZED"
	case 403:
		return "FORBIDDEN"
	case 404:
		return "NOT_FOUND"
	case 405:
		return "METHOD_NOT_ALLOWED"
	case 409:
		return "CONFLICT"
	default:
		if status >= 500 {
			return "INTERNAL"
		}
		return "ERROR"
	}
}

func shouldSkipAccessLog(c echo.Context) bool {
	p := c.Request().URL.Path
	if strings.HasPrefix(p, "/static/") {
		return true
	}
	switch p {
	case "/favicon.ico", "/robots.txt":
		return true
	}
	ext := strings.ToLower(path.Ext(p))
	switch ext {
	case ".css", ".js", ".map", ".png", ".jpg", ".jpeg", ".svg", ".ico", ".webp":
		return true
	}
	m := c.Request().Method
	if m == http.MethodHead || m == http.MethodOptions {
		return true
	}
	return false
}

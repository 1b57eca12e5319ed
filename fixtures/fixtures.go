// Package fixtures provides an in-memory test store and builders for the
// model types used across the test suites.
package fixtures

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/fakturnik/fakturnik/model"
)

// DefaultOwnerID is the owner all seeded records belong to.
const DefaultOwnerID uint = 1

// NewTestStore opens a fresh in-memory SQLite database with the full schema.
func NewTestStore(t *testing.T) *model.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open in-memory database: %v", err)
	}
	store, err := model.OpenStore(db, &model.Config{Mode: "test"})
	if err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return store
}

// TestData is what SeedTestData creates.
type TestData struct {
	User     *model.User
	Profile  *model.SellerProfile
	Client   *model.Client
	Template *model.InvoiceTemplate
}

// SeedTestData registers a user with a complete seller profile, one client
// and one active template with two line items.
func SeedTestData(t *testing.T, store *model.Store) *TestData {
	t.Helper()

	user, err := store.RegisterUser("jan@example.com", "Jan Testowy", "correct horse battery staple")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}

	profile := SellerProfile()
	profile.OwnerID = user.OwnerID
	if err := store.SaveSellerProfile(profile, user.OwnerID); err != nil {
		t.Fatalf("seed seller profile: %v", err)
	}

	client := Client()
	if err := store.SaveClient(client, user.OwnerID); err != nil {
		t.Fatalf("seed client: %v", err)
	}

	tpl := Template(client.ID)
	if err := store.SaveTemplate(tpl, user.OwnerID); err != nil {
		t.Fatalf("seed template: %v", err)
	}
	tpl, err = store.LoadTemplate(tpl.ID, user.OwnerID)
	if err != nil {
		t.Fatalf("reload template: %v", err)
	}

	return &TestData{User: user, Profile: profile, Client: client, Template: tpl}
}

// SellerProfile returns a complete seller profile for DefaultOwnerID.
func SellerProfile(opts ...func(*model.SellerProfile)) *model.SellerProfile {
	p := &model.SellerProfile{
		OwnerID:     DefaultOwnerID,
		CompanyName: "Testowa Firma sp. z o.o.",
		OwnerName:   "Jan Testowy",
		Address:     "ul. Przykładowa 1, 00-001 Warszawa",
		NIP:         "5260001246",
		BankAccount: "PL61109010140000071219812874",
		BankName:    "Bank Testowy",
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Client returns a client owned by DefaultOwnerID.
func Client(opts ...func(*model.Client)) *model.Client {
	c := &model.Client{
		OwnerID: DefaultOwnerID,
		Name:    "Klient Testowy S.A.",
		Address: "ul. Kliencka 5, 31-000 Kraków",
		Country: "Poland",
		NIP:     "6793087624",
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func WithClientName(name string) func(*model.Client) {
	return func(c *model.Client) { c.Name = name }
}

func WithClientCountry(country string) func(*model.Client) {
	return func(c *model.Client) { c.Country = country }
}

// Template returns an active template for the given client with two line
// items, owned by DefaultOwnerID.
func Template(clientID uint, opts ...func(*model.InvoiceTemplate)) *model.InvoiceTemplate {
	tpl := &model.InvoiceTemplate{
		OwnerID:     DefaultOwnerID,
		ClientID:    clientID,
		Name:        "Abonament miesięczny",
		IsActive:    true,
		PaymentDays: 14,
		IssuePlace:  "Warszawa",
		Items: []model.TemplateLineItem{
			{
				OwnerID:   DefaultOwnerID,
				SortOrder: 1,
				Name:      "Usługi programistyczne",
				Quantity:  decimal.NewFromInt(1),
				UnitPrice: decimal.RequireFromString("15000.00"),
				VATRate:   23,
			},
			{
				OwnerID:   DefaultOwnerID,
				SortOrder: 2,
				Name:      "Utrzymanie serwera",
				Quantity:  decimal.NewFromInt(1),
				UnitPrice: decimal.RequireFromString("250.00"),
				VATRate:   23,
			},
		},
	}
	for _, o := range opts {
		o(tpl)
	}
	return tpl
}

func WithTemplateName(name string) func(*model.InvoiceTemplate) {
	return func(tpl *model.InvoiceTemplate) { tpl.Name = name }
}

func WithTemplateInactive() func(*model.InvoiceTemplate) {
	return func(tpl *model.InvoiceTemplate) { tpl.IsActive = false }
}

func WithTemplateAutoSend(email string) func(*model.InvoiceTemplate) {
	return func(tpl *model.InvoiceTemplate) {
		tpl.AutoSendEmail = true
		tpl.RecipientEmail = email
	}
}

func WithTemplatePaymentDays(days int) func(*model.InvoiceTemplate) {
	return func(tpl *model.InvoiceTemplate) { tpl.PaymentDays = days }
}

func WithTemplateSellerOverride(company string) func(*model.InvoiceTemplate) {
	return func(tpl *model.InvoiceTemplate) { tpl.SellerCompanyName = company }
}

func WithTemplateItems(items ...model.TemplateLineItem) func(*model.InvoiceTemplate) {
	return func(tpl *model.InvoiceTemplate) { tpl.Items = items }
}

// Item returns a template line item.
func Item(name string, quantity, unitPrice string, vatRate int) model.TemplateLineItem {
	return model.TemplateLineItem{
		OwnerID:   DefaultOwnerID,
		Name:      name,
		Quantity:  decimal.RequireFromString(quantity),
		UnitPrice: decimal.RequireFromString(unitPrice),
		VATRate:   vatRate,
	}
}

package model_test

import (
	"errors"
	"testing"

	"github.com/fakturnik/fakturnik/fixtures"
	"github.com/fakturnik/fakturnik/model"
)

func TestSaveTemplate_ReplacesItems(t *testing.T) {
	store := fixtures.NewTestStore(t)
	data := fixtures.SeedTestData(t, store)
	ownerID := data.User.OwnerID

	// Saving with a different item set replaces, never merges.
	data.Template.Items = []model.TemplateLineItem{
		fixtures.Item("Nowa usługa", "2", "500.00", 23),
	}
	if err := store.SaveTemplate(data.Template, ownerID); err != nil {
		t.Fatalf("SaveTemplate: %v", err)
	}

	tpl, err := store.LoadTemplate(data.Template.ID, ownerID)
	if err != nil {
		t.Fatal(err)
	}
	if len(tpl.Items) != 1 {
		t.Fatalf("Items = %d, want 1 after replace", len(tpl.Items))
	}
	if tpl.Items[0].Name != "Nowa usługa" {
		t.Errorf("item name = %q", tpl.Items[0].Name)
	}
	if tpl.Items[0].SortOrder != 0 {
		t.Errorf("SortOrder = %d, want renumbered from 0", tpl.Items[0].SortOrder)
	}
}

func TestSaveTemplate_Validation(t *testing.T) {
	store := fixtures.NewTestStore(t)
	data := fixtures.SeedTestData(t, store)
	ownerID := data.User.OwnerID

	tests := []struct {
		name   string
		mutate func(*model.InvoiceTemplate)
	}{
		{"empty name", func(tpl *model.InvoiceTemplate) { tpl.Name = "" }},
		{"no client", func(tpl *model.InvoiceTemplate) { tpl.ClientID = 0 }},
		{"zero payment days", func(tpl *model.InvoiceTemplate) { tpl.PaymentDays = 0 }},
		{"no items", func(tpl *model.InvoiceTemplate) { tpl.Items = nil }},
		{"item without name", func(tpl *model.InvoiceTemplate) {
			tpl.Items = []model.TemplateLineItem{fixtures.Item("", "1", "100.00", 23)}
		}},
		{"zero quantity", func(tpl *model.InvoiceTemplate) {
			tpl.Items = []model.TemplateLineItem{fixtures.Item("Usługa", "0", "100.00", 23)}
		}},
		{"vat rate out of range", func(tpl *model.InvoiceTemplate) {
			tpl.Items = []model.TemplateLineItem{fixtures.Item("Usługa", "1", "100.00", 101)}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl := fixtures.Template(data.Client.ID)
			tpl.OwnerID = ownerID
			tt.mutate(tpl)
			if err := store.SaveTemplate(tpl, ownerID); err == nil {
				t.Error("SaveTemplate accepted an invalid template")
			}
		})
	}
}

func TestSaveTemplate_WrongOwner(t *testing.T) {
	store := fixtures.NewTestStore(t)
	data := fixtures.SeedTestData(t, store)

	if err := store.SaveTemplate(data.Template, data.User.OwnerID+1); !errors.Is(err, model.ErrNotAllowed) {
		t.Errorf("SaveTemplate for foreign owner = %v, want ErrNotAllowed", err)
	}
}

func TestToggleTemplate(t *testing.T) {
	store := fixtures.NewTestStore(t)
	data := fixtures.SeedTestData(t, store)
	ownerID := data.User.OwnerID

	active, err := store.ToggleTemplate(data.Template.ID, ownerID)
	if err != nil {
		t.Fatalf("ToggleTemplate: %v", err)
	}
	if active {
		t.Error("toggle of an active template should return false")
	}

	// Inactive templates drop out of the scheduler's work list.
	tpls, err := store.ListActiveTemplates()
	if err != nil {
		t.Fatal(err)
	}
	if len(tpls) != 0 {
		t.Errorf("active templates = %d, want 0", len(tpls))
	}

	active, err = store.ToggleTemplate(data.Template.ID, ownerID)
	if err != nil {
		t.Fatal(err)
	}
	if !active {
		t.Error("second toggle should re-activate")
	}
}

func TestDeleteTemplate_KeepsInvoices(t *testing.T) {
	store := fixtures.NewTestStore(t)
	data := fixtures.SeedTestData(t, store)
	ownerID := data.User.OwnerID

	inv, err := store.MaterializeInvoice(data.Template, marchPeriod, marchNow, nil, discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	if err := store.DeleteTemplate(data.Template.ID, ownerID); err != nil {
		t.Fatalf("DeleteTemplate: %v", err)
	}
	if _, err := store.LoadTemplate(data.Template.ID, ownerID); err == nil {
		t.Error("deleted template is still loadable")
	}

	loaded, err := store.LoadInvoice(inv.ID, ownerID)
	if err != nil {
		t.Fatalf("invoice must survive template deletion: %v", err)
	}
	if loaded.Number != inv.Number {
		t.Errorf("Number = %q, want %q", loaded.Number, inv.Number)
	}
}

func TestDeleteClient_BlockedByTemplate(t *testing.T) {
	store := fixtures.NewTestStore(t)
	data := fixtures.SeedTestData(t, store)
	ownerID := data.User.OwnerID

	err := store.DeleteClient(data.Client.ID, ownerID)
	if !errors.Is(err, model.ErrNotAllowed) {
		t.Fatalf("DeleteClient with referencing template = %v, want ErrNotAllowed", err)
	}

	if err := store.DeleteTemplate(data.Template.ID, ownerID); err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteClient(data.Client.ID, ownerID); err != nil {
		t.Errorf("DeleteClient after template removal: %v", err)
	}
}

func TestClientCountryNormalization(t *testing.T) {
	store := fixtures.NewTestStore(t)
	data := fixtures.SeedTestData(t, store)
	ownerID := data.User.OwnerID

	c := fixtures.Client(fixtures.WithClientName("Zagraniczny"), fixtures.WithClientCountry("germany"))
	c.OwnerID = ownerID
	if err := store.SaveClient(c, ownerID); err != nil {
		t.Fatal(err)
	}
	if c.Country != "Germany" || c.CountryCode != "DE" {
		t.Errorf("country = %q (%q), want Germany (DE)", c.Country, c.CountryCode)
	}

	// Unrecognized input is stored as typed, without a code.
	c2 := fixtures.Client(fixtures.WithClientName("Nieznany kraj"), fixtures.WithClientCountry("Atlantyda"))
	c2.OwnerID = ownerID
	if err := store.SaveClient(c2, ownerID); err != nil {
		t.Fatal(err)
	}
	if c2.Country != "Atlantyda" || c2.CountryCode != "" {
		t.Errorf("country = %q (%q), want Atlantyda with empty code", c2.Country, c2.CountryCode)
	}
}

func TestLoadTemplate_PreloadsItems(t *testing.T) {
	store := fixtures.NewTestStore(t)
	data := fixtures.SeedTestData(t, store)

	// The seeded template carries two items; loading must bring them back
	// through the relation, in sort order and pointing at their template.
	tpl, err := store.LoadTemplate(data.Template.ID, data.User.OwnerID)
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	if len(tpl.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(tpl.Items))
	}
	for i, it := range tpl.Items {
		if it.TemplateID != tpl.ID {
			t.Errorf("item %d TemplateID = %d, want %d", i, it.TemplateID, tpl.ID)
		}
	}
	if tpl.Items[0].Name != "Usługi programistyczne" {
		t.Errorf("first item = %q, want Usługi programistyczne", tpl.Items[0].Name)
	}
}

func TestSaveTemplate_InactiveStaysInactive(t *testing.T) {
	store := fixtures.NewTestStore(t)
	data := fixtures.SeedTestData(t, store)
	ownerID := data.User.OwnerID

	tpl := fixtures.Template(data.Client.ID,
		fixtures.WithTemplateName("Wyłączony od początku"),
		fixtures.WithTemplateInactive())
	tpl.OwnerID = ownerID
	if err := store.SaveTemplate(tpl, ownerID); err != nil {
		t.Fatalf("save inactive template: %v", err)
	}

	got, err := store.LoadTemplate(tpl.ID, ownerID)
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	if got.IsActive {
		t.Error("template created inactive came back active")
	}

	active, err := store.ListActiveTemplates()
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	for _, a := range active {
		if a.ID == tpl.ID {
			t.Error("inactive template listed for generation")
		}
	}
}

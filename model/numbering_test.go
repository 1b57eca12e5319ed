package model_test

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/fakturnik/fakturnik/fixtures"
	"github.com/fakturnik/fakturnik/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFormatInvoiceNumber(t *testing.T) {
	tests := []struct {
		seq  int
		p    model.Period
		want string
	}{
		{1, model.Period{Month: time.March, Year: 2025}, "1/03/2025"},
		{17, model.Period{Month: time.March, Year: 2025}, "17/03/2025"},
		{5, model.Period{Month: time.December, Year: 2024}, "5/12/2024"},
		{120, model.Period{Month: time.January, Year: 2026}, "120/01/2026"},
	}
	for _, tt := range tests {
		if got := model.FormatInvoiceNumber(tt.seq, tt.p); got != tt.want {
			t.Errorf("FormatInvoiceNumber(%d, %v) = %q, want %q", tt.seq, tt.p, got, tt.want)
		}
	}
}

func TestInvoiceNumbering_SequencePerOwnerAndYear(t *testing.T) {
	store := fixtures.NewTestStore(t)
	data := fixtures.SeedTestData(t, store)
	logger := discardLogger()
	ownerID := data.User.OwnerID

	// A second template of the same owner shares the sequence.
	other := fixtures.Template(data.Client.ID, fixtures.WithTemplateName("Drugi abonament"))
	other.OwnerID = ownerID
	if err := store.SaveTemplate(other, ownerID); err != nil {
		t.Fatalf("save second template: %v", err)
	}
	other, err := store.LoadTemplate(other.ID, ownerID)
	if err != nil {
		t.Fatal(err)
	}

	march := model.Period{Month: time.March, Year: 2025}
	now := time.Date(2025, time.March, 31, 18, 0, 0, 0, time.UTC)

	inv1, err := store.MaterializeInvoice(data.Template, march, now, nil, logger)
	if err != nil {
		t.Fatalf("materialize first: %v", err)
	}
	if inv1.Number != "1/03/2025" {
		t.Errorf("first number = %q, want 1/03/2025", inv1.Number)
	}

	inv2, err := store.MaterializeInvoice(other, march, now, nil, logger)
	if err != nil {
		t.Fatalf("materialize second: %v", err)
	}
	if inv2.Number != "2/03/2025" {
		t.Errorf("second number = %q, want 2/03/2025", inv2.Number)
	}

	// The sequence runs through the whole year, not per month.
	april := model.Period{Month: time.April, Year: 2025}
	aprilNow := time.Date(2025, time.April, 30, 18, 0, 0, 0, time.UTC)
	inv3, err := store.MaterializeInvoice(data.Template, april, aprilNow, nil, logger)
	if err != nil {
		t.Fatalf("materialize april: %v", err)
	}
	if inv3.Number != "3/04/2025" {
		t.Errorf("april number = %q, want 3/04/2025", inv3.Number)
	}
}

func TestInvoiceNumbering_ResetsEachYear(t *testing.T) {
	store := fixtures.NewTestStore(t)
	data := fixtures.SeedTestData(t, store)
	logger := discardLogger()

	december := model.Period{Month: time.December, Year: 2025}
	decNow := time.Date(2025, time.December, 31, 18, 0, 0, 0, time.UTC)
	inv, err := store.MaterializeInvoice(data.Template, december, decNow, nil, logger)
	if err != nil {
		t.Fatalf("materialize december: %v", err)
	}
	if inv.Number != "1/12/2025" {
		t.Errorf("december number = %q, want 1/12/2025", inv.Number)
	}

	january := model.Period{Month: time.January, Year: 2026}
	janNow := time.Date(2026, time.January, 30, 18, 0, 0, 0, time.UTC)
	inv, err = store.MaterializeInvoice(data.Template, january, janNow, nil, logger)
	if err != nil {
		t.Fatalf("materialize january: %v", err)
	}
	if inv.Number != "1/01/2026" {
		t.Errorf("january number = %q, want 1/01/2026", inv.Number)
	}
}

func TestInvoiceNumbering_OwnersAreIndependent(t *testing.T) {
	store := fixtures.NewTestStore(t)
	data := fixtures.SeedTestData(t, store)
	logger := discardLogger()

	// Second tenant with its own profile, client and template.
	user2, err := store.RegisterUser("anna@example.com", "Anna Druga", "zupełnie inne hasło")
	if err != nil {
		t.Fatal(err)
	}
	profile2 := fixtures.SellerProfile()
	profile2.OwnerID = user2.OwnerID
	if err := store.SaveSellerProfile(profile2, user2.OwnerID); err != nil {
		t.Fatal(err)
	}
	client2 := fixtures.Client(fixtures.WithClientName("Inny Klient"))
	client2.OwnerID = user2.OwnerID
	if err := store.SaveClient(client2, user2.OwnerID); err != nil {
		t.Fatal(err)
	}
	tpl2 := fixtures.Template(client2.ID)
	tpl2.OwnerID = user2.OwnerID
	for i := range tpl2.Items {
		tpl2.Items[i].OwnerID = user2.OwnerID
	}
	if err := store.SaveTemplate(tpl2, user2.OwnerID); err != nil {
		t.Fatal(err)
	}
	tpl2, err = store.LoadTemplate(tpl2.ID, user2.OwnerID)
	if err != nil {
		t.Fatal(err)
	}

	march := model.Period{Month: time.March, Year: 2025}
	now := time.Date(2025, time.March, 31, 18, 0, 0, 0, time.UTC)

	if _, err := store.MaterializeInvoice(data.Template, march, now, nil, logger); err != nil {
		t.Fatal(err)
	}
	inv2, err := store.MaterializeInvoice(tpl2, march, now, nil, logger)
	if err != nil {
		t.Fatal(err)
	}
	// The other owner's invoice does not advance this owner's sequence.
	if inv2.Number != "1/03/2025" {
		t.Errorf("second owner's number = %q, want 1/03/2025", inv2.Number)
	}
}

func TestInvoiceNumbering_ConcurrentAllocation(t *testing.T) {
	store := fixtures.NewTestStore(t)
	data := fixtures.SeedTestData(t, store)
	logger := discardLogger()
	ownerID := data.User.OwnerID

	other := fixtures.Template(data.Client.ID, fixtures.WithTemplateName("Drugi abonament"))
	other.OwnerID = ownerID
	if err := store.SaveTemplate(other, ownerID); err != nil {
		t.Fatalf("save second template: %v", err)
	}
	other, err := store.LoadTemplate(other.ID, ownerID)
	if err != nil {
		t.Fatal(err)
	}

	march := model.Period{Month: time.March, Year: 2025}
	now := time.Date(2025, time.March, 31, 18, 0, 0, 0, time.UTC)

	// Two templates of one owner materialized in parallel must come out
	// with distinct, consecutive numbers.
	var wg sync.WaitGroup
	invs := make([]*model.Invoice, 2)
	errs := make([]error, 2)
	for i, tpl := range []*model.InvoiceTemplate{data.Template, other} {
		wg.Add(1)
		go func(i int, tpl *model.InvoiceTemplate) {
			defer wg.Done()
			invs[i], errs[i] = store.MaterializeInvoice(tpl, march, now, nil, logger)
		}(i, tpl)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("materialize %d: %v", i, err)
		}
	}
	got := map[string]bool{invs[0].Number: true, invs[1].Number: true}
	if !got["1/03/2025"] || !got["2/03/2025"] {
		t.Errorf("numbers = %q and %q, want 1/03/2025 and 2/03/2025",
			invs[0].Number, invs[1].Number)
	}
}

func TestInvoiceNumbering_ConcurrentSameTemplate(t *testing.T) {
	store := fixtures.NewTestStore(t)
	data := fixtures.SeedTestData(t, store)
	logger := discardLogger()

	march := model.Period{Month: time.March, Year: 2025}
	now := time.Date(2025, time.March, 31, 18, 0, 0, 0, time.UTC)

	// Two racers on the same template and period: exactly one invoice
	// comes into existence, the loser sees the duplicate error and no
	// number is burnt.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.MaterializeInvoice(data.Template, march, now, nil, logger)
		}(i)
	}
	wg.Wait()

	var ok, dup int
	for i, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, model.ErrDuplicateInvoice):
			dup++
		default:
			t.Fatalf("materialize %d: %v", i, err)
		}
	}
	if ok != 1 || dup != 1 {
		t.Fatalf("got %d successes and %d duplicates, want 1 and 1", ok, dup)
	}

	inv, err := store.FindInvoiceByTemplatePeriod(data.Template.ID, march)
	if err != nil || inv == nil {
		t.Fatalf("find invoice: %v", err)
	}
	if inv.Number != "1/03/2025" {
		t.Errorf("number = %q, want 1/03/2025", inv.Number)
	}
}

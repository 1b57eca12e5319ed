package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Polish word tables. Index 0 of the plural-form arrays is unused so the
// indices line up with the grammatical forms (singular, paucal, plural).
var (
	wordsOnes = []string{"", "jeden", "dwa", "trzy", "cztery", "pięć", "sześć",
		"siedem", "osiem", "dziewięć", "dziesięć", "jedenaście", "dwanaście",
		"trzynaście", "czternaście", "piętnaście", "szesnaście", "siedemnaście",
		"osiemnaście", "dziewiętnaście"}
	wordsTens = []string{"", "", "dwadzieścia", "trzydzieści", "czterdzieści",
		"pięćdziesiąt", "sześćdziesiąt", "siedemdziesiąt", "osiemdziesiąt",
		"dziewięćdziesiąt"}
	wordsHundreds = []string{"", "sto", "dwieście", "trzysta", "czterysta",
		"pięćset", "sześćset", "siedemset", "osiemset", "dziewięćset"}

	formsThousand = [4]string{"", "tysiąc", "tysiące", "tysięcy"}
	formsMillion  = [4]string{"", "milion", "miliony", "milionów"}
	formsZloty    = [4]string{"", "złoty", "złote", "złotych"}
	formsGrosz    = [4]string{"", "grosz", "grosze", "groszy"}
)

// pluralFormPL picks the grammatical form of a noun counted by n:
// exactly 1 takes the singular; 12–14 as the last two digits always take
// the genitive plural; a last digit of 2–4 takes the paucal; everything
// else takes the genitive plural.
func pluralFormPL(n int, forms [4]string) string {
	if n == 1 {
		return forms[1]
	}
	lastTwo := n % 100
	if lastTwo >= 12 && lastTwo <= 14 {
		return forms[3]
	}
	if last := n % 10; last >= 2 && last <= 4 {
		return forms[2]
	}
	return forms[3]
}

// underThousandPL renders 0 < n < 1000. Returns "" for 0 so chunk joining
// skips empty groups.
func underThousandPL(n int) string {
	if n == 0 {
		return ""
	}
	var parts []string
	if n >= 100 {
		parts = append(parts, wordsHundreds[n/100])
		n %= 100
	}
	if n >= 20 {
		parts = append(parts, wordsTens[n/10])
		if n%10 > 0 {
			parts = append(parts, wordsOnes[n%10])
		}
	} else if n > 0 {
		parts = append(parts, wordsOnes[n])
	}
	return strings.Join(parts, " ")
}

// IntToWordsPL converts an integer with |n| < 1,000,000,000 to Polish words.
// "tysiąc" stands alone for exactly one thousand; there is no leading
// "jeden". Negative numbers get a "minus" prefix; invoice amounts never take
// that path, it exists because this is a general-purpose converter.
func IntToWordsPL(n int) string {
	if n == 0 {
		return "zero"
	}
	if n < 0 {
		return "minus " + IntToWordsPL(-n)
	}
	var parts []string
	if n >= 1_000_000 {
		m := n / 1_000_000
		parts = append(parts, underThousandPL(m), pluralFormPL(m, formsMillion))
		n %= 1_000_000
	}
	if n >= 1000 {
		th := n / 1000
		if th == 1 {
			parts = append(parts, "tysiąc")
		} else {
			parts = append(parts, underThousandPL(th), pluralFormPL(th, formsThousand))
		}
		n %= 1000
	}
	if n > 0 {
		parts = append(parts, underThousandPL(n))
	}
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

// AmountInWordsPLN renders a non-negative PLN amount with at most two
// fractional digits as "<złote words> <form> <grosze words> <form>", e.g.
// "sto dwadzieścia trzy złote czterdzieści pięć groszy". The rendered text
// is persisted on the invoice, so input outside the supported range is an
// error rather than a best effort.
func AmountInWordsPLN(amount decimal.Decimal) (string, error) {
	if amount.IsNegative() {
		return "", fmt.Errorf("%w: negative amount %s", ErrInvalidAmount, amount)
	}
	whole := amount.Floor()
	if whole.GreaterThanOrEqual(decimal.NewFromInt(1_000_000_000)) {
		return "", fmt.Errorf("%w: amount %s out of range", ErrInvalidAmount, amount)
	}
	zlote := int(whole.IntPart())
	grosze := int(amount.Sub(whole).Mul(hundred).Round(0).IntPart())
	if grosze > 99 {
		return "", fmt.Errorf("%w: more than two fractional digits in %s", ErrInvalidAmount, amount)
	}
	return fmt.Sprintf("%s %s %s %s",
		IntToWordsPL(zlote), pluralFormPL(zlote, formsZloty),
		IntToWordsPL(grosze), pluralFormPL(grosze, formsGrosz)), nil
}

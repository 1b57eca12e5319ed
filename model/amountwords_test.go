package model_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fakturnik/fakturnik/model"
)

func TestIntToWordsPL(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "zero"},
		{1, "jeden"},
		{7, "siedem"},
		{13, "trzynaście"},
		{20, "dwadzieścia"},
		{21, "dwadzieścia jeden"},
		{100, "sto"},
		{123, "sto dwadzieścia trzy"},
		{999, "dziewięćset dziewięćdziesiąt dziewięć"},
		{1000, "tysiąc"},
		{1001, "tysiąc jeden"},
		{1234, "tysiąc dwieście trzydzieści cztery"},
		{2000, "dwa tysiące"},
		{5000, "pięć tysięcy"},
		{12000, "dwanaście tysięcy"},
		{22000, "dwadzieścia dwa tysiące"},
		{1000000, "jeden milion"},
		{2000000, "dwa miliony"},
		{5000000, "pięć milionów"},
		{18757, "osiemnaście tysięcy siedemset pięćdziesiąt siedem"},
		{-42, "minus czterdzieści dwa"},
	}
	for _, tt := range tests {
		if got := model.IntToWordsPL(tt.n); got != tt.want {
			t.Errorf("IntToWordsPL(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestAmountInWordsPLN(t *testing.T) {
	tests := []struct {
		amount string
		want   string
	}{
		{"0", "zero złotych zero groszy"},
		{"1.00", "jeden złoty zero groszy"},
		{"2.02", "dwa złote dwa grosze"},
		{"5.05", "pięć złotych pięć groszy"},
		{"12.00", "dwanaście złotych zero groszy"},
		{"22.22", "dwadzieścia dwa złote dwadzieścia dwa grosze"},
		{"113.13", "sto trzynaście złotych trzynaście groszy"},
		{"123.45", "sto dwadzieścia trzy złote czterdzieści pięć groszy"},
		{"1234.56", "tysiąc dwieście trzydzieści cztery złote pięćdziesiąt sześć groszy"},
		{"18757.50", "osiemnaście tysięcy siedemset pięćdziesiąt siedem złotych pięćdziesiąt groszy"},
		{"1000000.00", "jeden milion złotych zero groszy"},
	}
	for _, tt := range tests {
		got, err := model.AmountInWordsPLN(decimal.RequireFromString(tt.amount))
		if err != nil {
			t.Errorf("AmountInWordsPLN(%s) error = %v", tt.amount, err)
			continue
		}
		if got != tt.want {
			t.Errorf("AmountInWordsPLN(%s) = %q, want %q", tt.amount, got, tt.want)
		}
	}
}

func TestAmountInWordsPLN_Rejections(t *testing.T) {
	for _, amount := range []string{"-1.00", "1000000000", "1000000000.01"} {
		_, err := model.AmountInWordsPLN(decimal.RequireFromString(amount))
		if !errors.Is(err, model.ErrInvalidAmount) {
			t.Errorf("AmountInWordsPLN(%s) error = %v, want ErrInvalidAmount", amount, err)
		}
	}
}

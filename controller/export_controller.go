package controller

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/xuri/excelize/v2"
)

func (ctrl *controller) exportInit(e *echo.Echo) {
	g := e.Group("/export")
	g.Use(ctrl.authMiddleware)
	g.GET("/invoices.xlsx", ctrl.exportInvoicesXLSX)
}

// exportInvoicesXLSX streams all invoices of the owner as a spreadsheet,
// oldest first, one row per invoice.
func (ctrl *controller) exportInvoicesXLSX(c echo.Context) error {
	ownerID := c.Get("ownerid").(uint)
	invs, err := ctrl.model.ListInvoicesForExport(ownerID)
	if err != nil {
		return ErrInvalid(err, "Błąd podczas ładowania faktur do eksportu")
	}

	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Faktury"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Numer", "Okres", "Data wystawienia", "Termin płatności",
		"Nabywca", "NIP nabywcy", "Netto", "VAT", "Brutto", "Waluta", "Status"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return ErrInternal(err)
		}
	}

	for row, inv := range invs {
		values := []any{
			inv.Number,
			fmt.Sprintf("%02d/%d", inv.InvoiceMonth, inv.InvoiceYear),
			inv.IssueDate.Format("2006-01-02"),
			inv.DueDate.Format("2006-01-02"),
			inv.BuyerName,
			inv.BuyerNIP,
			inv.TotalNet.StringFixed(2),
			inv.TotalVAT.StringFixed(2),
			inv.TotalGross.StringFixed(2),
			inv.Currency,
			string(inv.Status),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return ErrInternal(err)
			}
		}
	}

	c.Response().Header().Set(echo.HeaderContentType,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Response().Header().Set(echo.HeaderContentDisposition,
		`attachment; filename="faktury.xlsx"`)
	c.Response().WriteHeader(http.StatusOK)
	return f.Write(c.Response().Writer)
}

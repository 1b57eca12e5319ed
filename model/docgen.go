package model

import (
	"encoding/xml"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	api "github.com/speedata/publisher-api"
)

// StandardRenderer is the default DocumentRenderer. It always writes an HTML
// document; when a publishing server is configured it additionally produces
// a PDF through the speedata publisher and returns that instead.
type StandardRenderer struct {
	Config *Config
	Logger *slog.Logger
}

func NewRenderer(cfg *Config, logger *slog.Logger) *StandardRenderer {
	return &StandardRenderer{Config: cfg, Logger: logger}
}

func ensureDir(dirName string) error {
	return os.MkdirAll(dirName, 0755)
}

func attachFile(p *api.PublishRequest, filename string, destFilename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	p.Files = append(p.Files, api.PublishFile{Filename: destFilename, Contents: data})
	return nil
}

func (r *StandardRenderer) documentDir() string {
	if r.Config.DocumentDir != "" {
		return r.Config.DocumentDir
	}
	return filepath.Join(r.Config.Basedir, "documents")
}

// RenderInvoice writes the invoice document and returns its path. All
// failures come back wrapped in ErrRenderFailed; callers treat them as
// non-fatal and retry on the next document access.
func (r *StandardRenderer) RenderInvoice(inv *Invoice) (string, error) {
	dir := r.documentDir()
	if err := ensureDir(dir); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	name := "faktura-" + uuid.NewString()
	htmlPath := filepath.Join(dir, name+".html")
	if err := r.writeHTML(inv, htmlPath); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	if r.Config.PublishingServerAddress == "" {
		return htmlPath, nil
	}
	pdfPath := filepath.Join(dir, name+".pdf")
	if err := r.publishPDF(inv, pdfPath); err != nil {
		// The HTML artifact exists; serve that rather than nothing.
		r.Logger.Error("PDF publishing failed, keeping HTML document",
			"invoice", inv.Number, "error", err)
		return htmlPath, nil
	}
	return pdfPath, nil
}

// EnsureInvoiceDocument returns the path of the invoice's document,
// rendering it first if it was never generated or the file is gone.
func (s *Store) EnsureInvoiceDocument(inv *Invoice, renderer DocumentRenderer) (string, error) {
	if inv.DocumentPath != "" {
		if _, err := os.Stat(inv.DocumentPath); err == nil {
			return inv.DocumentPath, nil
		}
	}
	if renderer == nil {
		return "", fmt.Errorf("%w: no renderer configured", ErrRenderFailed)
	}
	path, err := renderer.RenderInvoice(inv)
	if err != nil {
		return "", err
	}
	if err := s.UpdateInvoiceDocumentPath(inv, path); err != nil {
		return "", err
	}
	return path, nil
}

var documentTmpl = template.Must(template.New("invoice").Funcs(template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
	"date":  func(t time.Time) string { return t.Format("02.01.2006") },
}).Parse(invoiceDocumentHTML))

func (r *StandardRenderer) writeHTML(inv *Invoice, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return documentTmpl.Execute(f, inv)
}

// --- speedata publishing -----------------------------------------------------

// invoiceXML is the data document shipped to the publishing server together
// with the layout.
type invoiceXML struct {
	XMLName       xml.Name         `xml:"invoice"`
	Number        string           `xml:"number,attr"`
	IssueDate     string           `xml:"issuedate,attr"`
	SaleDate      string           `xml:"saledate,attr"`
	DueDate       string           `xml:"duedate,attr"`
	IssuePlace    string           `xml:"issueplace,attr"`
	PaymentMethod string           `xml:"paymentmethod,attr"`
	Currency      string           `xml:"currency,attr"`
	Seller        partyXML         `xml:"seller"`
	Buyer         partyXML         `xml:"buyer"`
	Lines         []invoiceLineXML `xml:"line"`
	TotalNet      string           `xml:"totalnet"`
	TotalVAT      string           `xml:"totalvat"`
	TotalGross    string           `xml:"totalgross"`
	AmountInWords string           `xml:"amountinwords"`
}

type partyXML struct {
	Name        string `xml:"name"`
	Owner       string `xml:"owner,omitempty"`
	Address     string `xml:"address"`
	Country     string `xml:"country,omitempty"`
	NIP         string `xml:"nip"`
	BankAccount string `xml:"bankaccount,omitempty"`
	BankName    string `xml:"bankname,omitempty"`
	Swift       string `xml:"swift,omitempty"`
}

type invoiceLineXML struct {
	Name       string `xml:"name"`
	Quantity   string `xml:"quantity,attr"`
	UnitPrice  string `xml:"unitprice,attr"`
	VATRate    int    `xml:"vatrate,attr"`
	ValueNet   string `xml:"net,attr"`
	ValueVAT   string `xml:"vat,attr"`
	ValueGross string `xml:"gross,attr"`
}

func newInvoiceXML(inv *Invoice) *invoiceXML {
	doc := &invoiceXML{
		Number:        inv.Number,
		IssueDate:     inv.IssueDate.Format("2006-01-02"),
		SaleDate:      inv.SaleDate.Format("2006-01-02"),
		DueDate:       inv.DueDate.Format("2006-01-02"),
		IssuePlace:    inv.IssuePlace,
		PaymentMethod: inv.PaymentMethod,
		Currency:      inv.Currency,
		Seller: partyXML{
			Name:        inv.SellerCompanyName,
			Owner:       inv.SellerOwnerName,
			Address:     inv.SellerAddress,
			NIP:         inv.SellerNIP,
			BankAccount: inv.SellerBankAccount,
			BankName:    inv.SellerBankName,
			Swift:       inv.SellerSwift,
		},
		Buyer: partyXML{
			Name:    inv.BuyerName,
			Address: inv.BuyerAddress,
			Country: inv.BuyerCountry,
			NIP:     inv.BuyerNIP,
		},
		TotalNet:      inv.TotalNet.StringFixed(2),
		TotalVAT:      inv.TotalVAT.StringFixed(2),
		TotalGross:    inv.TotalGross.StringFixed(2),
		AmountInWords: inv.AmountInWords,
	}
	for _, li := range inv.LineItems {
		doc.Lines = append(doc.Lines, invoiceLineXML{
			Name:       li.Name,
			Quantity:   li.Quantity.String(),
			UnitPrice:  li.UnitPrice.StringFixed(2),
			VATRate:    li.VATRate,
			ValueNet:   li.ValueNet.StringFixed(2),
			ValueVAT:   li.ValueVAT.StringFixed(2),
			ValueGross: li.ValueGross.StringFixed(2),
		})
	}
	return doc
}

func (r *StandardRenderer) publishPDF(inv *Invoice, pdfPath string) error {
	ep, err := api.NewEndpoint(r.Config.PublishingServerUsername, r.Config.PublishingServerAddress)
	if err != nil {
		return err
	}
	p := ep.NewPublishRequest()
	p.Version = "5.1.25"

	data, err := xml.MarshalIndent(newInvoiceXML(inv), "", "  ")
	if err != nil {
		return err
	}
	p.Files = append(p.Files, api.PublishFile{Filename: "data.xml", Contents: data})

	layout := filepath.Join(r.Config.Basedir, "assets", "generic", "layout.xml")
	if err := attachFile(p, layout, "layout.xml"); err != nil {
		return err
	}

	resp, err := ep.Publish(p)
	if err != nil {
		return err
	}
	ps, err := resp.Wait()
	if err != nil {
		return err
	}
	if ps.Errors > 0 {
		r.Logger.Error("PDF generation done", "invoice", inv.Number, "errors", ps.Errors)
		for _, e := range ps.Errormessages {
			r.Logger.Error("error during PDF generation", "message", e.Error)
		}
	}
	f, err := os.Create(pdfPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return resp.GetPDF(f)
}

const invoiceDocumentHTML = `<!DOCTYPE html>
<html lang="pl">
<head>
<meta charset="utf-8">
<title>Faktura {{.Number}}</title>
<style>
body { font-family: sans-serif; font-size: 12px; margin: 2em; }
h1 { font-size: 18px; }
table { border-collapse: collapse; width: 100%; margin-top: 1em; }
th, td { border: 1px solid #444; padding: 4px 6px; text-align: right; }
th:first-child, td:first-child { text-align: left; }
.parties { display: flex; gap: 4em; margin-top: 1em; }
.words { margin-top: 1em; font-style: italic; }
</style>
</head>
<body>
<h1>Faktura VAT {{.Number}}</h1>
<p>
Miejsce wystawienia: {{.IssuePlace}}<br>
Data wystawienia: {{date .IssueDate}}<br>
Data sprzedaży: {{date .SaleDate}}<br>
Termin płatności: {{date .DueDate}}<br>
Sposób płatności: {{.PaymentMethod}}
</p>
<div class="parties">
<div>
<h2>Sprzedawca</h2>
{{.SellerCompanyName}}<br>
{{.SellerOwnerName}}<br>
{{.SellerAddress}}<br>
NIP: {{.SellerNIP}}<br>
{{.SellerBankName}}<br>
Konto: {{.SellerBankAccount}}
{{- if .SellerSwift}}<br>SWIFT: {{.SellerSwift}}{{end}}
</div>
<div>
<h2>Nabywca</h2>
{{.BuyerName}}<br>
{{.BuyerAddress}}<br>
{{- if .BuyerCountry}}{{.BuyerCountry}}<br>{{end}}
NIP: {{.BuyerNIP}}
</div>
</div>
<table>
<tr><th>Nazwa</th><th>Ilość</th><th>Cena netto</th><th>VAT %</th><th>Wartość netto</th><th>Kwota VAT</th><th>Wartość brutto</th></tr>
{{range .LineItems}}
<tr>
<td>{{.Name}}</td>
<td>{{.Quantity}}</td>
<td>{{money .UnitPrice}}</td>
<td>{{.VATRate}}</td>
<td>{{money .ValueNet}}</td>
<td>{{money .ValueVAT}}</td>
<td>{{money .ValueGross}}</td>
</tr>
{{end}}
<tr>
<th>Razem</th><td></td><td></td><td></td>
<td>{{money .TotalNet}}</td>
<td>{{money .TotalVAT}}</td>
<td>{{money .TotalGross}}</td>
</tr>
</table>
<p class="words">Do zapłaty: {{money .TotalGross}} {{.Currency}}<br>
Słownie: {{.AmountInWords}}</p>
</body>
</html>
`

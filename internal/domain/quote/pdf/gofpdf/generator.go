package gofpdf

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/jung-kurt/gofpdf"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"

	"quotedesk/go_backend/internal/domain/quote/pdf"
)

const (
	pageMargin  = 10.0
	rowHeight   = 7.0
	thumbHeight = 18.0
	codeSize    = 22.0
)

type column struct {
	title string
	width float64
	align string
}

var columns = []column{
	{"#", 8, "C"},
	{"Image", 22, "C"},
	{"Item", 68, "L"},
	{"Qty", 14, "R"},
	{"Unit price", 26, "R"},
	{"Discount", 22, "R"},
	{"Amount", 30, "R"},
}

// Generator renders quotations on A4 with gofpdf. With a font directory the
// DejaVu TTFs are used for full Unicode; otherwise Helvetica with a cp1252
// translation.
type Generator struct {
	fontDir string
}

func New(fontDir string) *Generator { return &Generator{fontDir: fontDir} }

func (g *Generator) Generate(in pdf.Input) ([]byte, error) {
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetMargins(pageMargin, pageMargin, pageMargin)
	doc.SetAutoPageBreak(true, 15)
	doc.SetTitle("Quotation "+in.Quotation.Serial, true)

	r := &renderer{doc: doc, in: in, family: "Helvetica", tr: func(s string) string { return s }}
	if g.fontDir != "" {
		doc.AddUTF8Font("DejaVu", "", filepath.Join(g.fontDir, "DejaVuSans.ttf"))
		doc.AddUTF8Font("DejaVu", "B", filepath.Join(g.fontDir, "DejaVuSans-Bold.ttf"))
		if err := doc.Error(); err != nil {
			return nil, errors.Wrap(err, "load fonts")
		}
		r.family = "DejaVu"
	} else {
		r.tr = doc.UnicodeTranslatorFromDescriptor("")
	}

	doc.SetFooterFunc(r.footer)
	doc.AddPage()
	r.header()
	r.customer()
	r.items()
	r.totals()

	if err := doc.Error(); err != nil {
		return nil, errors.Wrap(err, "render")
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, errors.Wrap(err, "output")
	}
	return buf.Bytes(), nil
}

type renderer struct {
	doc        *gofpdf.Fpdf
	in         pdf.Input
	family     string
	tr         func(string) string
	codeBottom float64
}

func (r *renderer) font(style string, size float64) { r.doc.SetFont(r.family, style, size) }

func (r *renderer) text(w, h float64, s, align string) {
	r.doc.CellFormat(w, h, r.tr(s), "", 0, align, false, 0, "")
}

func (r *renderer) header() {
	c := r.in.Catalog
	q := r.in.Quotation

	r.font("B", 16)
	r.text(120, 8, c.CompanyName, "L")
	r.text(0, 8, "QUOTATION", "R")
	r.doc.Ln(8)

	r.font("", 9)
	lines := []string{c.Address, c.Phone, c.Email}
	meta := []string{
		"No. " + q.Serial,
		"Date " + r.date(),
		"Status " + string(q.Status),
	}
	for i := 0; i < len(lines); i++ {
		r.text(120, 5, lines[i], "L")
		r.text(0, 5, meta[i], "R")
		r.doc.Ln(5)
	}
	r.doc.Ln(4)
}

func (r *renderer) date() string {
	t := r.in.Quotation.CreatedAt
	if t.IsZero() {
		t = r.in.GeneratedAt
	}
	return t.Format("02 Jan 2006")
}

func (r *renderer) customer() {
	cu := r.in.Customer
	r.serialCode()
	r.font("B", 11)
	r.text(0, 6, "Bill to", "L")
	r.doc.Ln(6)
	r.font("", 10)
	for _, s := range []string{cu.Name, joinNonEmpty(" / ", cu.Phone, cu.AltPhone), cu.Email} {
		if s == "" {
			continue
		}
		r.text(0, 5, s, "L")
		r.doc.Ln(5)
	}
	if q := r.in.Quotation; q.ReferrerName != "" {
		r.text(0, 5, "Referred by "+joinNonEmpty(" ", q.ReferrerName, q.ReferrerPhone), "L")
		r.doc.Ln(5)
	}
	if y := r.doc.GetY(); y < r.codeBottom {
		r.doc.SetY(r.codeBottom)
	}
	r.doc.Ln(4)
}

// serialCode places a QR code of the serial at the right edge of the
// customer block.
func (r *renderer) serialCode() {
	serialNo := r.in.Quotation.Serial
	if serialNo == "" {
		return
	}
	png, err := qrcode.Encode(serialNo, qrcode.Medium, 256)
	if err != nil {
		return
	}
	pageW, _ := r.doc.GetPageSize()
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	r.doc.RegisterImageOptionsReader("serial-code", opts, bytes.NewReader(png))
	if r.doc.Err() {
		r.doc.ClearError()
		return
	}
	y := r.doc.GetY()
	r.doc.ImageOptions("serial-code", pageW-pageMargin-codeSize, y, codeSize, codeSize, false, opts, 0, "")
	r.codeBottom = y + codeSize
}

func (r *renderer) tableHeader() {
	r.font("B", 9)
	r.doc.SetFillColor(235, 235, 235)
	for _, col := range columns {
		r.doc.CellFormat(col.width, rowHeight, r.tr(col.title), "1", 0, col.align, true, 0, "")
	}
	r.doc.Ln(-1)
	r.font("", 9)
}

func (r *renderer) items() {
	r.tableHeader()
	_, pageH := r.doc.GetPageSize()
	_, _, _, bottom := r.doc.GetMargins()

	for i, it := range r.in.Quotation.Items {
		img, hasImg := r.in.Images[i]
		h := rowHeight
		if hasImg {
			h = thumbHeight + 2
		}
		if r.doc.GetY()+h > pageH-bottom-10 {
			r.doc.AddPage()
			r.tableHeader()
		}

		x, y := r.doc.GetX(), r.doc.GetY()
		title := it.Title
		if d := r.in.Catalog.Products[it.Title].Description; d != "" {
			title += " - " + d
		}
		cells := []string{
			strconv.Itoa(i + 1),
			"",
			truncate(title, 48),
			strconv.Itoa(it.Quantity),
			r.money(it.UnitPrice),
			r.money(it.Discount),
			r.money(it.Subtotal),
		}
		for c, col := range columns {
			r.doc.CellFormat(col.width, h, r.tr(cells[c]), "1", 0, col.align, false, 0, "")
		}
		r.doc.Ln(-1)

		if hasImg {
			r.thumbnail(i, img, x+columns[0].width, y, columns[1].width, h)
		}
	}
	r.doc.Ln(2)
}

// thumbnail centres img in the given cell. An image gofpdf cannot parse is
// dropped and the document error cleared.
func (r *renderer) thumbnail(i int, img pdf.Image, x, y, w, h float64) {
	name := fmt.Sprintf("item-%d", i)
	info := r.doc.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: img.Format}, bytes.NewReader(img.Data))
	if r.doc.Err() || info == nil {
		r.doc.ClearError()
		return
	}
	iw, ih := info.Width(), info.Height()
	if iw <= 0 || ih <= 0 {
		return
	}
	maxW, maxH := w-2, h-2
	scale := maxW / iw
	if ih*scale > maxH {
		scale = maxH / ih
	}
	dw, dh := iw*scale, ih*scale
	r.doc.ImageOptions(name, x+(w-dw)/2, y+(h-dh)/2, dw, dh, false, gofpdf.ImageOptions{ImageType: img.Format}, 0, "")
}

func (r *renderer) totals() {
	q := r.in.Quotation
	labelW := 0.0
	for _, col := range columns[:len(columns)-1] {
		labelW += col.width
	}
	amountW := columns[len(columns)-1].width

	line := func(label string, v decimal.Decimal, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		r.font(style, 10)
		r.doc.CellFormat(labelW, 6, r.tr(label), "", 0, "R", false, 0, "")
		r.doc.CellFormat(amountW, 6, r.tr(r.money(v)), "", 1, "R", false, 0, "")
	}
	line("Subtotal", q.Subtotal, false)
	if !q.Discount.IsZero() {
		line("Discount", q.Discount, false)
	}
	line("Tax", q.Tax, false)
	line("Total", q.Total, true)
}

func (r *renderer) footer() {
	r.doc.SetY(-12)
	r.font("", 8)
	left := r.in.Catalog.Footer
	if left == "" {
		left = "Generated " + r.in.GeneratedAt.UTC().Format("2006-01-02 15:04 MST")
	}
	r.text(150, 5, left, "L")
	r.text(0, 5, fmt.Sprintf("Page %d", r.doc.PageNo()), "R")
}

func (r *renderer) money(d decimal.Decimal) string {
	s := d.StringFixed(2)
	if c := r.in.Catalog.Currency; c != "" {
		return c + " " + s
	}
	return s
}

func truncate(s string, max int) string {
	rs := []rune(s)
	if len(rs) <= max {
		return s
	}
	return string(rs[:max-3]) + "..."
}

func joinNonEmpty(sep string, parts ...string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += sep
		}
		out += p
	}
	return out
}

package loader

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// readHTML loads the first <table> in the document. The header is the first
// row of <thead>, or the first row of the table when there is no <thead>.
func readHTML(r io.Reader, cells cellReader) (grid, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return grid{}, fmt.Errorf("parse html: %w", err)
	}
	tbl := doc.Find("table").First()
	if tbl.Length() == 0 {
		return grid{}, fmt.Errorf("%w: no <table> element", ErrNoColumns)
	}

	rows := tbl.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
		// Rows of nested tables belong to those tables.
		return tr.Closest("table").IsSelection(tbl)
	})
	if rows.Length() == 0 {
		return grid{}, ErrNoColumns
	}

	headerRow := tbl.Find("thead tr").First()
	if headerRow.Length() == 0 {
		headerRow = rows.First()
	}

	var g grid
	headerRow.Children().Filter("th, td").Each(func(_ int, c *goquery.Selection) {
		g.header = append(g.header, cellText(c))
	})
	rows.Each(func(_ int, tr *goquery.Selection) {
		if tr.IsSelection(headerRow) || tr.ParentsFiltered("thead").Length() > 0 {
			return
		}
		var rec []string
		tr.Children().Filter("th, td").Each(func(_ int, c *goquery.Selection) {
			rec = append(rec, cellText(c))
		})
		g.rows = append(g.rows, cells.row(rec))
	})
	return g, nil
}

func cellText(c *goquery.Selection) string {
	return strings.Join(strings.Fields(c.Text()), " ")
}

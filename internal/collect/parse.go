package collect

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hpungsan/p3seq/internal/draw"
	"github.com/hpungsan/p3seq/internal/errors"
)

const (
	// TableID is the id of the chart table on the source page.
	TableID = "chartsTable"

	// PrizeHeader marks the header cell of the winning-number column.
	PrizeHeader = "奖号"
)

// ParseTable extracts draws from the chart table markup. content may be the
// table alone or a whole page. The first row is the header; the prize column
// is the first header cell containing PrizeHeader. Data rows are kept only
// when the issue (first cell) is all digits and the prize is exactly three
// digits, in table order.
func ParseTable(content string) ([]draw.Record, error) {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, errors.NewSourceLayout("parse chart html: " + err.Error())
	}

	table := findByID(doc, TableID)
	if table == nil {
		return nil, errors.NewSourceLayout("table #" + TableID + " not found")
	}

	rows := collect(table, atom.Tr, atom.Table)
	if len(rows) == 0 {
		return nil, errors.NewSourceLayout("table #" + TableID + " has no rows")
	}

	prizeIdx := -1
	for i, th := range cells(rows[0], atom.Th) {
		if strings.Contains(text(th), PrizeHeader) {
			prizeIdx = i
			break
		}
	}
	if prizeIdx < 0 {
		return nil, errors.NewSourceLayout("prize column " + PrizeHeader + " not found")
	}

	records := make([]draw.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		tds := cells(row, atom.Td)
		if len(tds) <= prizeIdx {
			continue
		}
		issue := strings.TrimSpace(text(tds[0]))
		prize := strings.TrimSpace(text(tds[prizeIdx]))
		if !draw.IsDigits(issue) || len(prize) != 3 || !draw.IsDigits(prize) {
			continue
		}
		r, err := draw.ParsePrize(issue, prize)
		if err != nil {
			continue
		}
		records = append(records, r)
	}
	return records, nil
}

// findByID returns the first element with the given id attribute.
func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		for _, a := range n.Attr {
			if a.Key == "id" && a.Val == id {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

// collect returns descendants of root with the given tag in document order,
// without descending into nested elements of type stop.
func collect(root *html.Node, tag, stop atom.Atom) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			if c.DataAtom == tag {
				out = append(out, c)
				continue
			}
			if c.DataAtom == stop {
				continue
			}
			walk(c)
		}
	}
	walk(root)
	return out
}

// cells returns the direct cell children of a row.
func cells(row *html.Node, tag atom.Atom) []*html.Node {
	var out []*html.Node
	for c := row.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == tag {
			out = append(out, c)
		}
	}
	return out
}

// text concatenates the text content under n.
func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

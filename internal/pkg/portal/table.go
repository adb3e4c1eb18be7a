package portal

import (
	"bytes"
	"regexp"
	"strconv"

	"github.com/PuerkitoBio/goquery"
	"github.com/tecolab/ssptime-go/internal/domain/attendance"
	"github.com/tecolab/ssptime-go/internal/pkg/validator"
)

// The anomaly GridView is rendered inside the second tab panel. Data
// rows carry RowStyle or AlternatingRowStyle; header, pager and grouping
// rows do not.
const (
	tabPanelSelector = "div#tabs-2"
	tableSelector    = "table#ContentPlaceHolder1_gvWeb012"
	tableFallback    = `table[id*="gvWeb012"]`
	dataRowSelector  = "tr.RowStyle, tr.AlternatingRowStyle"
	pagerRowSelector = "tr.PagerStyle"

	dateSpanSelector = `span[id*="lblWork_Date"]`
	timeSpanSelector = `span[id*="lblCard_Time"]`

	// date, punch range, anomaly reason
	expectedColumns = 3
)

var postbackHrefRegex = regexp.MustCompile(`__doPostBack\('([^']*)','([^']*)'\)`)

// PagerEvent is the synthetic event a pagination link would raise.
type PagerEvent struct {
	Target   string
	Argument string
}

// ExtractRows returns the data rows of the anomaly table in document
// order. Rows that do not match the expected schema (grouping headers,
// total rows) are excluded here, silently; rows with the right shape but
// bad content are the parser's concern. The second return value reports
// whether the table was present at all.
func ExtractRows(body []byte) ([]attendance.RawRow, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, false
	}

	table := findTable(doc)
	if table == nil {
		return nil, false
	}

	var rows []attendance.RawRow
	table.Find(dataRowSelector).Each(func(_ int, tr *goquery.Selection) {
		if row, ok := extractRow(tr); ok {
			rows = append(rows, row)
		}
	})
	return rows, true
}

func findTable(doc *goquery.Document) *goquery.Selection {
	scope := doc.Selection
	if panel := doc.Find(tabPanelSelector); panel.Length() > 0 {
		scope = panel
	}
	table := scope.Find(tableSelector)
	if table.Length() == 0 {
		table = scope.Find(tableFallback)
	}
	if table.Length() == 0 {
		return nil
	}
	return table.First()
}

func extractRow(tr *goquery.Selection) (attendance.RawRow, bool) {
	cells := tr.Find("td")

	// The portal renders date and punch range as labelled spans, usually
	// sharing the first cell. Prefer those when present.
	date := validator.CleanCellText(tr.Find(dateSpanSelector).First().Text())
	timeRange := validator.CleanCellText(tr.Find(timeSpanSelector).First().Text())
	if date != "" && timeRange != "" {
		reason := ""
		if cells.Length() >= 2 {
			reason = validator.CleanCellText(cells.Last().Text())
		}
		return attendance.RawRow{date, timeRange, reason}, true
	}

	// No labelled spans: take the cells as-is, keeping only rows with
	// the expected column count.
	var row attendance.RawRow
	cells.Each(func(_ int, td *goquery.Selection) {
		row = append(row, validator.CleanCellText(td.Text()))
	})
	if len(row) != expectedColumns {
		return nil, false
	}
	return row, true
}

// FindPager locates the link that moves the GridView from currentPage to
// the next page. It returns nil when the current page is the last one:
// either there is no pager row, or no link for currentPage+1 exists (the
// current page number is rendered as plain text, not a link).
func FindPager(body []byte, currentPage int) *PagerEvent {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}
	table := findTable(doc)
	if table == nil {
		return nil
	}
	pager := table.Find(pagerRowSelector)
	if pager.Length() == 0 {
		return nil
	}

	var event *PagerEvent
	pager.Find("a").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		page, err := strconv.Atoi(validator.CleanCellText(link.Text()))
		if err != nil || page != currentPage+1 {
			return true
		}
		href, _ := link.Attr("href")
		if m := postbackHrefRegex.FindStringSubmatch(href); m != nil {
			event = &PagerEvent{Target: m[1], Argument: m[2]}
			return false
		}
		return true
	})
	return event
}

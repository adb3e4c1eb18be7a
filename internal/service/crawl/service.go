package crawl

import (
	"context"
	"fmt"

	"github.com/tecolab/ssptime-go/internal/domain/attendance"
	"github.com/tecolab/ssptime-go/internal/pkg/portal"
	"go.uber.org/zap"
)

// Crawler walks every page of the anomaly list. Postbacks are strictly
// sequential: each page's state is consumed by exactly one request for
// the next page.
type Crawler struct {
	client   *portal.Client
	maxPages int
	log      *zap.Logger
}

func NewCrawler(client *portal.Client, maxPages int, log *zap.Logger) *Crawler {
	return &Crawler{
		client:   client,
		maxPages: maxPages,
		log:      log,
	}
}

// Crawl accumulates the raw rows of all pages, in server order. The loop
// is bounded by the pager control disappearing, with maxPages as a hard
// safety cap against a server that always advertises a next page. The
// portal occasionally re-serves rows across pages; duplicates keep their
// first occurrence.
func (c *Crawler) Crawl(ctx context.Context, sess *portal.Session) ([]attendance.RawRow, error) {
	state, body, err := c.client.OpenAttendance(ctx, sess)
	if err != nil {
		return nil, err
	}

	var all []attendance.RawRow
	seen := make(map[string]struct{})

	for page := 1; ; page++ {
		rows, found := portal.ExtractRows(body)
		if !found && page > 1 {
			// The pager promised this page; a missing table means the
			// conversation desynchronized.
			return nil, fmt.Errorf("%w: page %d has no anomaly table", attendance.ErrUnexpectedPageShape, page)
		}

		fresh := 0
		for _, row := range rows {
			key := dedupKey(row)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			all = append(all, row)
			fresh++
		}
		c.log.Info("processed page",
			zap.Int("page", page),
			zap.Int("rows", len(rows)),
			zap.Int("new_rows", fresh))

		pager := portal.FindPager(body, page)
		if pager == nil {
			c.log.Info("crawl complete", zap.Int("pages", page), zap.Int("rows", len(all)))
			return all, nil
		}
		if page >= c.maxPages {
			return nil, fmt.Errorf("%w: still paginating after %d pages", attendance.ErrTooManyPages, c.maxPages)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		state, body, err = c.client.Postback(ctx, sess, state.WithEvent(pager.Target, pager.Argument), nil)
		if err != nil {
			return nil, err
		}
	}
}

func dedupKey(row attendance.RawRow) string {
	if len(row) >= 2 {
		return row[0] + "_" + row[1]
	}
	if len(row) == 1 {
		return row[0]
	}
	return ""
}

package crawl_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tecolab/ssptime-go/internal/domain/attendance"
	"github.com/tecolab/ssptime-go/internal/pkg/portal"
	"github.com/tecolab/ssptime-go/internal/pkg/portal/portaltest"
	"github.com/tecolab/ssptime-go/internal/service/crawl"
	"go.uber.org/zap"
)

func setup(t *testing.T, cfg portaltest.Config, maxPages int) (*portaltest.Server, *crawl.Crawler, *portal.Session) {
	t.Helper()
	cfg.Account = "A123456"
	cfg.Secret = "hunter2"

	srv := portaltest.New(cfg)
	t.Cleanup(srv.Close)

	client, err := portal.NewClient(portal.Config{
		BaseURL:        srv.URL,
		LoginPath:      portaltest.LoginPath,
		AttendancePath: portaltest.AttendancePath,
		Timeout:        5 * time.Second,
		RetryAttempts:  1,
		RetryBaseDelay: time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)

	sess, err := client.Login(context.Background(), "A123456", "hunter2")
	require.NoError(t, err)

	return srv, crawl.NewCrawler(client, maxPages, zap.NewNop()), sess
}

func TestCrawler_AllPagesInOrder(t *testing.T) {
	pages := [][]portaltest.Row{
		{
			{Date: "2024/1/15", Range: "08:30:00~18:45:00", Reason: "忘刷卡"},
			{Date: "2024/1/16", Range: "08:40:00~19:00:00", Reason: "遲到"},
		},
		{
			{Date: "2024/1/17", Range: "09:10:00~20:00:00", Reason: "遲到"},
		},
		{
			{Date: "2024/1/18", Range: "08:00:00~17:00:00", Reason: "忘刷卡"},
		},
	}
	_, crawler, sess := setup(t, portaltest.Config{Pages: pages}, 200)

	rows, err := crawler.Crawl(context.Background(), sess)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	// Page order and in-page order are both preserved.
	assert.Equal(t, "2024/1/15", rows[0][0])
	assert.Equal(t, "2024/1/16", rows[1][0])
	assert.Equal(t, "2024/1/17", rows[2][0])
	assert.Equal(t, "2024/1/18", rows[3][0])
}

func TestCrawler_EmptyFirstPage(t *testing.T) {
	_, crawler, sess := setup(t, portaltest.Config{}, 200)

	rows, err := crawler.Crawl(context.Background(), sess)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCrawler_PageCap(t *testing.T) {
	pages := [][]portaltest.Row{
		{{Date: "2024/1/15", Range: "08:30:00~18:45:00", Reason: "r"}},
		{{Date: "2024/1/16", Range: "08:30:00~18:45:00", Reason: "r"}},
	}
	srv, crawler, sess := setup(t, portaltest.Config{Pages: pages, AlwaysNextPage: true}, 5)

	_, err := crawler.Crawl(context.Background(), sess)
	require.Error(t, err)
	assert.True(t, errors.Is(err, attendance.ErrTooManyPages))

	// 5 pages visited means 4 postbacks before giving up.
	assert.Equal(t, 4, srv.Postbacks())
}

func TestCrawler_DeduplicatesReservedRows(t *testing.T) {
	pages := [][]portaltest.Row{
		{
			{Date: "2024/1/15", Range: "08:30:00~18:45:00", Reason: "忘刷卡"},
			{Date: "2024/1/16", Range: "08:40:00~19:00:00", Reason: "遲到"},
		},
		{
			// The portal sometimes re-serves the previous page's tail.
			{Date: "2024/1/16", Range: "08:40:00~19:00:00", Reason: "遲到"},
			{Date: "2024/1/17", Range: "09:10:00~20:00:00", Reason: "遲到"},
		},
	}
	_, crawler, sess := setup(t, portaltest.Config{Pages: pages}, 200)

	rows, err := crawler.Crawl(context.Background(), sess)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "2024/1/16", rows[1][0])
	assert.Equal(t, "2024/1/17", rows[2][0])
}

func TestCrawler_SkipsGroupingRows(t *testing.T) {
	pages := [][]portaltest.Row{
		{{Date: "2024/1/15", Range: "08:30:00~18:45:00", Reason: "r"}},
	}
	_, crawler, sess := setup(t, portaltest.Config{Pages: pages, GroupingRows: true}, 200)

	rows, err := crawler.Crawl(context.Background(), sess)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestCrawler_Cancellation(t *testing.T) {
	pages := [][]portaltest.Row{
		{{Date: "2024/1/15", Range: "08:30:00~18:45:00", Reason: "r"}},
		{{Date: "2024/1/16", Range: "08:30:00~18:45:00", Reason: "r"}},
	}
	srv, crawler, sess := setup(t, portaltest.Config{Pages: pages}, 200)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rows, err := crawler.Crawl(ctx, sess)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	// Partial results are discarded and no postback was issued.
	assert.Nil(t, rows)
	assert.Equal(t, 0, srv.Postbacks())
}

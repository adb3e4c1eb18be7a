package fetch

import (
	"context"
	"sync/atomic"

	"github.com/tecolab/ssptime-go/internal/domain/attendance"
	"github.com/tecolab/ssptime-go/internal/pkg/portal"
	"github.com/tecolab/ssptime-go/internal/service/crawl"
	"github.com/tecolab/ssptime-go/internal/service/overtime"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type FetchServiceImpl struct {
	client      *portal.Client
	crawler     *crawl.Crawler
	overtimeCfg attendance.OvertimeConfig
	log         *zap.Logger

	group    singleflight.Group
	inFlight atomic.Bool
}

func NewFetchService(
	client *portal.Client,
	crawler *crawl.Crawler,
	overtimeCfg attendance.OvertimeConfig,
	log *zap.Logger,
) attendance.FetchService {
	return &FetchServiceImpl{
		client:      client,
		crawler:     crawler,
		overtimeCfg: overtimeCfg,
		log:         log,
	}
}

// Fetch implements attendance.FetchService. Concurrent calls for the
// same account share one crawl; a call while a different fetch is in
// flight is rejected, never interleaved, because each session's postback
// states are only valid for one sequential conversation.
func (s *FetchServiceImpl) Fetch(ctx context.Context, req attendance.FetchRequest) (attendance.FetchResult, error) {
	if err := req.Validate(); err != nil {
		return attendance.FetchResult{}, err
	}

	v, err, _ := s.group.Do(req.Account, func() (interface{}, error) {
		if !s.inFlight.CompareAndSwap(false, true) {
			return nil, attendance.ErrFetchInProgress
		}
		defer s.inFlight.Store(false)
		return s.fetch(ctx, req)
	})
	if err != nil {
		return attendance.FetchResult{}, err
	}
	return v.(attendance.FetchResult), nil
}

// Start implements attendance.FetchService.
func (s *FetchServiceImpl) Start(ctx context.Context, req attendance.FetchRequest) (<-chan attendance.FetchOutcome, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	done := make(chan attendance.FetchOutcome, 1)
	go func() {
		result, err := s.Fetch(ctx, req)
		if err != nil {
			done <- attendance.FetchOutcome{Err: err}
			return
		}
		done <- attendance.FetchOutcome{Result: result}
	}()
	return done, nil
}

func (s *FetchServiceImpl) fetch(ctx context.Context, req attendance.FetchRequest) (attendance.FetchResult, error) {
	sess, err := s.client.Login(ctx, req.Account, req.Secret)
	if err != nil {
		return attendance.FetchResult{}, err
	}

	rows, err := s.crawler.Crawl(ctx, sess)
	if err != nil {
		return attendance.FetchResult{}, err
	}

	records, warnings := overtime.ParseRows(rows)
	if len(warnings) > 0 {
		s.log.Warn("some rows could not be parsed",
			zap.Int("rows", len(rows)),
			zap.Int("skipped", len(warnings)))
	}

	results := overtime.ComputeAll(records, s.overtimeCfg)
	if warnings == nil {
		warnings = []attendance.ParseWarning{}
	}

	return attendance.FetchResult{
		Results:  results,
		Warnings: warnings,
		Summary:  overtime.Summarize(results),
	}, nil
}

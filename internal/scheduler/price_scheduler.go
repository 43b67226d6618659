package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ikkim/gold-portfolio-backend/internal/app/model"
	"github.com/ikkim/gold-portfolio-backend/internal/app/service"
	"github.com/ikkim/gold-portfolio-backend/pkg/logger"
	"github.com/robfig/cron/v3"
)

const (
	// HourlyPriceJobID 시세 기록 작업 식별자
	HourlyPriceJobID = "hourly_price_check"

	defaultCronSpec = "0 * * * *"
	cycleTimeout    = 2 * time.Minute
)

// PriceScheduler 시세 자동 기록 스케줄러 (UTC+7 기준)
type PriceScheduler struct {
	cron         *cron.Cron
	priceHistory service.PriceHistoryService
	spec         string

	mu      sync.Mutex
	entries map[string]cron.EntryID
	started bool
	stopped bool
}

// NewPriceScheduler 시세 스케줄러 생성. spec 이 비어 있으면 매시 정각
func NewPriceScheduler(priceHistory service.PriceHistoryService, spec string) *PriceScheduler {
	if spec == "" {
		spec = defaultCronSpec
	}
	l := cronLogger{}
	return &PriceScheduler{
		cron: cron.New(
			cron.WithLocation(model.JakartaZone),
			cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
			cron.WithLogger(l),
		),
		priceHistory: priceHistory,
		spec:         spec,
		entries:      make(map[string]cron.EntryID),
	}
}

// Start 한 번 즉시 기록한 뒤 cron 작업을 등록하고 시작한다
func (s *PriceScheduler) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	logger.Info("Running initial price check", nil)
	s.RunOnce()

	if err := s.Register(HourlyPriceJobID, s.spec, s.RunOnce); err != nil {
		logger.Error("Failed to add cron job for price check", err)
		return err
	}

	s.cron.Start()
	logger.Info("Price scheduler started", logger.Fields{
		"spec":     s.spec,
		"timezone": model.ZoneLabel,
	})
	return nil
}

// Register 같은 id 로 등록된 작업이 있으면 제거하고 새로 등록
func (s *PriceScheduler) Register(id, spec string, job func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entries[id]; ok {
		s.cron.Remove(old)
		delete(s.entries, id)
	}

	entryID, err := s.cron.AddFunc(spec, job)
	if err != nil {
		return fmt.Errorf("register job %s: %w", id, err)
	}
	s.entries[id] = entryID
	return nil
}

// NextRun 작업의 다음 실행 시각
func (s *PriceScheduler) NextRun(id string) (time.Time, bool) {
	s.mu.Lock()
	entryID, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(entryID).Next, true
}

// RunOnce 시세 기록 한 주기. 에러는 로그만 남긴다
func (s *PriceScheduler) RunOnce() {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Scheduled price check panicked", fmt.Errorf("%v", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
	defer cancel()

	result, err := s.priceHistory.RecordHourly(ctx)
	if err != nil {
		logger.Error("Scheduled price check failed", err)
		return
	}
	logger.Debug("Scheduled price check finished", logger.Fields{
		"changed": result.Changed,
	})
}

// Stop 스케줄러 중지. 실행 중인 작업이 끝날 때까지 기다린다
func (s *PriceScheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	logger.Info("Stopping price scheduler...", nil)
	<-s.cron.Stop().Done()
	logger.Info("Price scheduler stopped", nil)
}

// cronLogger cron 내부 로그를 zerolog 로 전달
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debug("cron: "+msg, kvFields(keysAndValues))
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Error("cron: "+msg, err, kvFields(keysAndValues))
}

func kvFields(keysAndValues []interface{}) logger.Fields {
	fields := logger.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}

package db

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ikkim/gold-portfolio-backend/internal/app/model"
	"github.com/ikkim/gold-portfolio-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const syncBatchSize = 200

// ReplicaOptions 원격 동기화 설정
type ReplicaOptions struct {
	SyncTimeout time.Duration
	Debounce    time.Duration
}

// ReplicatedStore 로컬 SQLite 에 쓰고, 커밋 후 원격 복제본으로 비동기 미러링한다.
// 원격 동기화 실패는 로그와 카운터로만 남기며 로컬 쓰기는 유지된다
type ReplicatedStore struct {
	local  *gorm.DB
	remote *gorm.DB
	opts   ReplicaOptions

	trigger chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once

	syncCount    atomic.Int64
	syncFailures atomic.Int64
	lastErr      atomic.Value // string
}

// NewReplicatedStore 커밋 콜백을 등록하고 동기화 루프를 시작한다
func NewReplicatedStore(local, remote *gorm.DB, opts ReplicaOptions) (*ReplicatedStore, error) {
	if opts.SyncTimeout <= 0 {
		opts.SyncTimeout = 10 * time.Second
	}

	s := &ReplicatedStore{
		local:   local,
		remote:  remote,
		opts:    opts,
		trigger: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	s.lastErr.Store("")

	if err := s.registerCallbacks(); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go s.run()

	return s, nil
}

func (s *ReplicatedStore) registerCallbacks() error {
	notify := func(tx *gorm.DB) {
		if tx.Error == nil && tx.RowsAffected > 0 {
			s.Notify()
		}
	}

	cb := s.local.Callback()
	if err := cb.Create().After("gorm:commit_or_rollback_transaction").Register("replica:after_create", notify); err != nil {
		return fmt.Errorf("register replica create callback: %w", err)
	}
	if err := cb.Update().After("gorm:commit_or_rollback_transaction").Register("replica:after_update", notify); err != nil {
		return fmt.Errorf("register replica update callback: %w", err)
	}
	if err := cb.Delete().After("gorm:commit_or_rollback_transaction").Register("replica:after_delete", notify); err != nil {
		return fmt.Errorf("register replica delete callback: %w", err)
	}
	return nil
}

func (s *ReplicatedStore) DB() *gorm.DB {
	return s.local
}

// Notify 동기화 요청. 이미 대기 중인 요청이 있으면 합쳐진다
func (s *ReplicatedStore) Notify() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *ReplicatedStore) run() {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return
		case <-s.trigger:
		}

		if s.opts.Debounce > 0 {
			select {
			case <-s.done:
				return
			case <-time.After(s.opts.Debounce):
			}
		}

		s.syncOnce()
	}
}

func (s *ReplicatedStore) syncOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.SyncTimeout)
	defer cancel()

	start := time.Now()
	if err := s.Sync(ctx); err != nil {
		failures := s.syncFailures.Add(1)
		s.lastErr.Store(err.Error())
		logger.Warn("Replica sync failed, local data kept", map[string]interface{}{
			"error":    err.Error(),
			"failures": failures,
		})
		return
	}

	s.syncCount.Add(1)
	s.lastErr.Store("")
	logger.Debug("Replica sync completed", map[string]interface{}{
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

// Sync 로컬 상태를 원격으로 미러링한다.
// holdings 는 전체 교체, 추가 전용 테이블은 원격 최대 id 이후 행만 보낸다
func (s *ReplicatedStore) Sync(ctx context.Context) error {
	var holdings []model.Holding
	if err := s.local.WithContext(ctx).Find(&holdings).Error; err != nil {
		return fmt.Errorf("read local holdings: %w", err)
	}

	remote := s.remote.WithContext(ctx)

	transactions, err := newerRows[model.Transaction](ctx, s.local, remote)
	if err != nil {
		return fmt.Errorf("read local transactions: %w", err)
	}
	history, err := newerRows[model.PriceHistory](ctx, s.local, remote)
	if err != nil {
		return fmt.Errorf("read local price history: %w", err)
	}

	return remote.Transaction(func(tx *gorm.DB) error {
		ids := make([]string, 0, len(holdings))
		for _, h := range holdings {
			ids = append(ids, h.ID)
		}

		del := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		if len(ids) > 0 {
			del = tx.Where("id NOT IN ?", ids)
		}
		if err := del.Delete(&model.Holding{}).Error; err != nil {
			return fmt.Errorf("prune remote holdings: %w", err)
		}

		if len(holdings) > 0 {
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).
				CreateInBatches(holdings, syncBatchSize).Error; err != nil {
				return fmt.Errorf("upsert remote holdings: %w", err)
			}
		}
		if len(transactions) > 0 {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				CreateInBatches(transactions, syncBatchSize).Error; err != nil {
				return fmt.Errorf("append remote transactions: %w", err)
			}
		}
		if len(history) > 0 {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				CreateInBatches(history, syncBatchSize).Error; err != nil {
				return fmt.Errorf("append remote price history: %w", err)
			}
		}
		return nil
	})
}

// newerRows 원격에 없는 (id 가 더 큰) 로컬 행
func newerRows[T any](ctx context.Context, local, remote *gorm.DB) ([]T, error) {
	var maxID uint
	if err := remote.Model(new(T)).Select("COALESCE(MAX(id), 0)").Scan(&maxID).Error; err != nil {
		return nil, err
	}

	var rows []T
	if err := local.WithContext(ctx).Where("id > ?", maxID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Hydrate 로컬 DB가 비어 있으면 원격 복제본의 데이터로 채운다.
// 시각 컬럼은 모델의 BeforeCreate 에서 로컬 저장 형태로 바뀐다
func (s *ReplicatedStore) Hydrate(ctx context.Context) error {
	local := s.local.WithContext(ctx)
	remote := s.remote.WithContext(ctx)

	for _, m := range Models() {
		var count int64
		if err := local.Model(m).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
	}

	var holdings []model.Holding
	var transactions []model.Transaction
	var history []model.PriceHistory
	if err := remote.Find(&holdings).Error; err != nil {
		return fmt.Errorf("read remote holdings: %w", err)
	}
	if err := remote.Order("id ASC").Find(&transactions).Error; err != nil {
		return fmt.Errorf("read remote transactions: %w", err)
	}
	if err := remote.Order("id ASC").Find(&history).Error; err != nil {
		return fmt.Errorf("read remote price history: %w", err)
	}

	if len(holdings)+len(transactions)+len(history) == 0 {
		return nil
	}

	err := local.Transaction(func(tx *gorm.DB) error {
		if len(holdings) > 0 {
			if err := tx.CreateInBatches(holdings, syncBatchSize).Error; err != nil {
				return err
			}
		}
		if len(transactions) > 0 {
			if err := tx.CreateInBatches(transactions, syncBatchSize).Error; err != nil {
				return err
			}
		}
		if len(history) > 0 {
			if err := tx.CreateInBatches(history, syncBatchSize).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write hydrated rows: %w", err)
	}

	logger.Info("Local database hydrated from replica", map[string]interface{}{
		"holdings":      len(holdings),
		"transactions":  len(transactions),
		"price_history": len(history),
	})
	return nil
}

func (s *ReplicatedStore) Status() StoreStatus {
	lastErr, _ := s.lastErr.Load().(string)
	return StoreStatus{
		Mode:          "replicated",
		SyncCount:     s.syncCount.Load(),
		SyncFailures:  s.syncFailures.Load(),
		LastSyncError: lastErr,
	}
}

// Close 동기화 루프를 멈추고 마지막으로 한 번 동기화한 뒤 두 연결을 닫는다
func (s *ReplicatedStore) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()

		s.syncOnce()

		err = errors.Join(closeDB(s.local), closeDB(s.remote))
	})
	return err
}

package db

import (
	"context"
	"fmt"
	"time"

	"github.com/ikkim/gold-portfolio-backend/config"
	appLogger "github.com/ikkim/gold-portfolio-backend/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store 저장소 연결. 로컬 전용(LocalStore)과 원격 복제(ReplicatedStore) 구현이 있다
type Store interface {
	// DB 모든 읽기/쓰기가 향하는 로컬 DB
	DB() *gorm.DB
	Status() StoreStatus
	Close() error
}

// StoreStatus 헬스 체크에 노출되는 저장소 상태
type StoreStatus struct {
	Mode          string `json:"mode"` // local, replicated
	SyncCount     int64  `json:"sync_count,omitempty"`
	SyncFailures  int64  `json:"sync_failures,omitempty"`
	LastSyncError string `json:"last_sync_error,omitempty"`
}

// Initialize 로컬 DB를 열고, 복제본이 설정되어 있으면 ReplicatedStore 로 감싼다.
// 원격 연결 실패는 치명적이지 않으며 로컬 전용으로 동작한다
func Initialize(cfg *config.DatabaseConfig) (Store, error) {
	appLogger.Info("Opening local database", map[string]interface{}{
		"file": cfg.File,
	})

	local, err := OpenLocal(cfg.File)
	if err != nil {
		return nil, err
	}
	if err := Migrate(local); err != nil {
		return nil, err
	}

	if !cfg.ReplicationEnabled() {
		return NewLocalStore(local), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ReplicaSyncTimeout)
	defer cancel()

	remote, err := OpenRemote(ctx, cfg.ReplicaDSN())
	if err == nil {
		err = Migrate(remote.WithContext(ctx))
	}
	if err != nil {
		appLogger.Warn("Replica unavailable, running with local database only", map[string]interface{}{
			"error": err.Error(),
		})
		return NewLocalStore(local), nil
	}

	store, err := NewReplicatedStore(local, remote, ReplicaOptions{
		SyncTimeout: cfg.ReplicaSyncTimeout,
		Debounce:    cfg.ReplicaDebounce,
	})
	if err != nil {
		return nil, err
	}

	if err := store.Hydrate(ctx); err != nil {
		appLogger.Warn("Failed to hydrate local database from replica", map[string]interface{}{
			"error": err.Error(),
		})
	}
	store.Notify()

	return store, nil
}

// OpenLocal SQLite 파일 DB 열기
func OpenLocal(path string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // Use silent mode, we'll use our own logger
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open local database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(4)

	return db, nil
}

// OpenRemote 원격 PostgreSQL 복제본 연결
func OpenRemote(ctx context.Context, dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to replica: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get replica instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping replica: %w", err)
	}

	appLogger.Info("Replica connection established successfully", nil)
	return db, nil
}

// LocalStore 로컬 SQLite 만 사용하는 저장소
type LocalStore struct {
	db *gorm.DB
}

func NewLocalStore(db *gorm.DB) *LocalStore {
	return &LocalStore{db: db}
}

func (s *LocalStore) DB() *gorm.DB {
	return s.db
}

func (s *LocalStore) Status() StoreStatus {
	return StoreStatus{Mode: "local"}
}

// Close closes the database connection
func (s *LocalStore) Close() error {
	return closeDB(s.db)
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

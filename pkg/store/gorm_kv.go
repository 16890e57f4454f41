package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// KVRecord is the single-table GORM model backing GormKV. Every portal
// value is JSON, so the value column is jsonb.
type KVRecord struct {
	Key       string         `gorm:"primaryKey;column:key"`
	Value     datatypes.JSON `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time
}

// GormKV backs the store with a Postgres key/value table. Change events
// are process-local fanout only; cross-instance freshness relies on the
// watch feed's periodic re-fetch.
type GormKV struct {
	db *gorm.DB

	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
}

// NewGormKV opens the database and migrates the kv table.
func NewGormKV(dsn string) (*GormKV, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&KVRecord{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormKV{db: db, subs: make(map[int]chan Event)}, nil
}

// Get returns the value under key and whether it exists.
func (g *GormKV) Get(ctx context.Context, key string) (string, bool, error) {
	var rec KVRecord
	err := g.db.WithContext(ctx).First(&rec, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return string(rec.Value), true, nil
}

// Set upserts value under key and notifies local subscribers.
func (g *GormKV) Set(ctx context.Context, key, value string) error {
	rec := KVRecord{Key: key, Value: datatypes.JSON(value), UpdatedAt: time.Now().UTC()}
	err := g.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	g.publish(Event{Key: key, Value: value})
	return nil
}

// Remove deletes key and notifies local subscribers.
func (g *GormKV) Remove(ctx context.Context, key string) error {
	if err := g.db.WithContext(ctx).Delete(&KVRecord{}, "key = ?", key).Error; err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	g.publish(Event{Key: key, Removed: true})
	return nil
}

// Subscribe registers a process-local change listener.
func (g *GormKV) Subscribe(_ context.Context) (<-chan Event, func(), error) {
	ch := make(chan Event, 64)
	g.mu.Lock()
	id := g.nextID
	g.nextID++
	g.subs[id] = ch
	g.mu.Unlock()

	cancel := func() {
		g.mu.Lock()
		if sub, ok := g.subs[id]; ok {
			delete(g.subs, id)
			close(sub)
		}
		g.mu.Unlock()
	}
	return ch, cancel, nil
}

func (g *GormKV) publish(ev Event) {
	g.mu.Lock()
	for _, ch := range g.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	g.mu.Unlock()
}

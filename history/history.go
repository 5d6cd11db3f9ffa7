// Package history persists the per-turn chat audit trail and serves the
// domain metadata of each index (description, intro, disclaimer).
package history

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/neuralmind-ai/nsx-chatbot/common/errs"
	"github.com/neuralmind-ai/nsx-chatbot/config"
)

// Fields of the domain metadata.
const (
	FieldDomain     = "domain"
	FieldIntro      = "intro"
	FieldDisclaimer = "disclaimer"
)

const (
	DefaultIntro      = "Olá! Sou o assistente virtual da NeuralMind. Vou pesquisar a resposta para a sua pergunta, só um instante."
	DefaultDisclaimer = "As respostas são geradas automaticamente a partir de documentos oficiais e podem conter erros. Em caso de dúvida, consulte os documentos."
)

// Fallback is the value used when an index has no stored value for field.
func Fallback(index, field string) string {
	switch field {
	case FieldDomain:
		return index
	case FieldIntro:
		return DefaultIntro
	case FieldDisclaimer:
		return DefaultDisclaimer
	default:
		return ""
	}
}

// ChatRecord is one audited turn.
type ChatRecord struct {
	ID          uint      `gorm:"primaryKey"`
	TurnID      string    `gorm:"size:36;uniqueIndex"`
	UserID      string    `gorm:"size:128;index:idx_user_index"`
	Index       string    `gorm:"column:index_name;size:128;index:idx_user_index"`
	Timestamp   time.Time `gorm:"index"`
	UserMessage string    `gorm:"type:text"`
	Answer      string    `gorm:"type:text"`
	Reasoning   string    `gorm:"type:text"`
	// Latency is the JSON-encoded stage ledger, in seconds.
	Latency string `gorm:"type:text"`
}

func (ChatRecord) TableName() string { return "chat_history" }

// SetLatency stores the stage ledger.
func (r *ChatRecord) SetLatency(stages map[string]float64) {
	b, _ := json.Marshal(stages)
	r.Latency = string(b)
}

// IndexInfo is the domain metadata of one index.
type IndexInfo struct {
	ID         string `gorm:"primaryKey;size:128" yaml:"id"`
	Domain     string `gorm:"type:text" yaml:"domain"`
	Intro      string `gorm:"type:text" yaml:"intro"`
	Disclaimer string `gorm:"type:text" yaml:"disclaimer"`
}

func (IndexInfo) TableName() string { return "index_infos" }

func (i IndexInfo) field(name string) string {
	switch name {
	case FieldDomain:
		return i.Domain
	case FieldIntro:
		return i.Intro
	case FieldDisclaimer:
		return i.Disclaimer
	default:
		return ""
	}
}

// Store is the chat-history database.
type Store interface {
	// UpsertChatHistory writes rec, replacing a row with the same TurnID.
	UpsertChatHistory(ctx context.Context, rec *ChatRecord) error
	// IndexInformation returns field of index, or its Fallback when unset.
	IndexInformation(ctx context.Context, index, field string) (string, error)
	Close() error
}

// GormStore implements Store on any gorm dialect.
type GormStore struct {
	db *gorm.DB
}

func dialector(cfg config.HistoryConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "file::memory:?cache=shared"
		}
		return sqlite.Open(dsn), nil
	case "postgres":
		return postgres.Open(cfg.DSN), nil
	case "mysql":
		return mysql.Open(cfg.DSN), nil
	default:
		return nil, errs.Ef(errs.KindConfig, "history", "unknown driver %q", cfg.Driver)
	}
}

// Open connects to the configured database, migrates the schema and seeds
// the index metadata file when set. Driver "none" returns a NopStore.
func Open(ctx context.Context, cfg config.HistoryConfig) (Store, error) {
	if cfg.Driver == "" || cfg.Driver == "none" {
		infos, err := LoadIndexInfos(cfg.IndexInfoFile)
		if err != nil {
			return nil, err
		}
		return NewNopStore(infos), nil
	}
	d, err := dialector(cfg)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(d, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, errs.E(errs.KindConfig, "history open", err)
	}
	s, err := NewGormStore(ctx, db)
	if err != nil {
		return nil, err
	}
	if cfg.IndexInfoFile != "" {
		infos, err := LoadIndexInfos(cfg.IndexInfoFile)
		if err != nil {
			return nil, err
		}
		if err := s.SaveIndexInfos(ctx, infos); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// NewGormStore migrates the schema on db.
func NewGormStore(ctx context.Context, db *gorm.DB) (*GormStore, error) {
	if err := db.WithContext(ctx).AutoMigrate(&ChatRecord{}, &IndexInfo{}); err != nil {
		return nil, errs.E(errs.KindConfig, "history migrate", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) UpsertChatHistory(ctx context.Context, rec *ChatRecord) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "turn_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"timestamp", "user_message", "answer", "reasoning", "latency"}),
	}).Create(rec).Error
	if err != nil {
		return errs.E(errs.KindMemory, "history upsert", err)
	}
	return nil
}

// Records returns the audited turns of (user, index), oldest first.
func (s *GormStore) Records(ctx context.Context, user, index string) ([]ChatRecord, error) {
	var out []ChatRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND index_name = ?", user, index).
		Order("timestamp, id").
		Find(&out).Error
	if err != nil {
		return nil, errs.E(errs.KindMemory, "history records", err)
	}
	return out, nil
}

func (s *GormStore) IndexInformation(ctx context.Context, index, field string) (string, error) {
	var info IndexInfo
	res := s.db.WithContext(ctx).Where("id = ?", index).Limit(1).Find(&info)
	if res.Error != nil {
		return "", errs.E(errs.KindMemory, "index information", res.Error)
	}
	if res.RowsAffected == 0 {
		return Fallback(index, field), nil
	}
	if v := info.field(field); v != "" {
		return v, nil
	}
	return Fallback(index, field), nil
}

// SaveIndexInfos upserts metadata rows by id.
func (s *GormStore) SaveIndexInfos(ctx context.Context, infos []IndexInfo) error {
	if len(infos) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&infos).Error
	if err != nil {
		return errs.E(errs.KindConfig, "seed index infos", err)
	}
	return nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

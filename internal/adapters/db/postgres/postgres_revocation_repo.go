package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/adapters/db/envelope"
	customErrors "github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/errors"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/model"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// RevocationRow is the revocations table. The migration in
// scripts/db/migrations is authoritative for postgres; AutoMigrate of this
// struct is only used by tests against sqlite.
type RevocationRow struct {
	ID        string `gorm:"primaryKey;size:26"`
	Type      string `gorm:"size:16;not null"`
	Data      string `gorm:"not null"`
	RevokedAt int64  `gorm:"not null;index:idx_revocations_revoked_at"`
}

func (RevocationRow) TableName() string {
	return "revocations"
}

type PostgresRevocationRepo struct {
	db *gorm.DB
}

func NewPostgresRevocationRepo(db *gorm.DB) *PostgresRevocationRepo {
	return &PostgresRevocationRepo{db: db}
}

func (p *PostgresRevocationRepo) StoreRevocation(ctx context.Context, rec model.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	env, err := envelope.Wrap(rec)
	if err != nil {
		return err
	}

	row := RevocationRow{
		ID:        env.ID,
		Type:      env.Type,
		Data:      string(env.Data),
		RevokedAt: env.RevokedAt,
	}
	if err := p.db.WithContext(ctx).Create(&row).Error; err != nil {
		return classify(err, "StoreRevocation")
	}
	return nil
}

// GetRevocations runs a single SELECT; postgres gives every statement its own
// snapshot, so rows deleted by a concurrent purge are either all there or gone.
func (p *PostgresRevocationRepo) GetRevocations(ctx context.Context, since int64) ([]model.Record, error) {
	var rows []RevocationRow
	res := p.db.WithContext(ctx).Where("revoked_at >= ?", since).Find(&rows)
	if err := res.Error; err != nil {
		return nil, classify(err, "GetRevocations")
	}

	out := make([]model.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := envelope.Envelope{
			ID:        row.ID,
			Type:      row.Type,
			Data:      []byte(row.Data),
			RevokedAt: row.RevokedAt,
		}.Record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (p *PostgresRevocationRepo) PurgeBefore(ctx context.Context, cutoff int64) (int64, error) {
	res := p.db.WithContext(ctx).Where("revoked_at < ?", cutoff).Delete(&RevocationRow{})
	if err := res.Error; err != nil {
		return 0, classify(err, "PurgeBefore")
	}
	return res.RowsAffected, nil
}

func (p *PostgresRevocationRepo) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return customErrors.WrapUnavailable(err, "db handle")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return customErrors.WrapUnavailable(err, "db ping")
	}
	return nil
}

// classify maps data (22) and integrity (23) SQLSTATE classes to invalid
// argument; everything else means the database could not serve the call.
func classify(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if strings.HasPrefix(pgErr.Code, "22") || strings.HasPrefix(pgErr.Code, "23") {
			return customErrors.NewInvalidArgument(op + ": " + pgErr.Message)
		}
	}
	return customErrors.WrapUnavailable(err, op)
}

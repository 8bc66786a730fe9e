package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	domainerrors "plenum/contexts/governance/role-directory/domain/errors"
	"plenum/contexts/governance/role-directory/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type roleMemberModel struct {
	Role      string    `gorm:"column:role;primaryKey"`
	Principal string    `gorm:"column:principal;primaryKey"`
	GrantedBy string    `gorm:"column:granted_by"`
	GrantedAt time.Time `gorm:"column:granted_at"`
}

func (roleMemberModel) TableName() string { return "role_members" }

type outboxModel struct {
	ID           string     `gorm:"column:id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string { return "role_directory_outbox" }

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{db: db, logger: logger}
}

func (r *Repository) Grant(ctx context.Context, role string, principal string, grantedBy string, grantedAt time.Time) (bool, error) {
	row := roleMemberModel{
		Role:      strings.TrimSpace(role),
		Principal: strings.TrimSpace(principal),
		GrantedBy: strings.TrimSpace(grantedBy),
		GrantedAt: grantedAt.UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "role"}, {Name: "principal"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		if isUniqueViolation(create.Error) {
			return false, nil
		}
		return false, r.logError("roles_repo_grant_failed", create.Error,
			"role", row.Role,
			"principal", row.Principal,
		)
	}
	return create.RowsAffected > 0, nil
}

func (r *Repository) Revoke(ctx context.Context, role string, principal string) (bool, error) {
	del := r.db.WithContext(ctx).
		Where("role = ?", strings.TrimSpace(role)).
		Where("principal = ?", strings.TrimSpace(principal)).
		Delete(&roleMemberModel{})
	if del.Error != nil {
		return false, r.logError("roles_repo_revoke_failed", del.Error,
			"role", strings.TrimSpace(role),
			"principal", strings.TrimSpace(principal),
		)
	}
	return del.RowsAffected > 0, nil
}

func (r *Repository) HasRole(ctx context.Context, role string, principal string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&roleMemberModel{}).
		Where("role = ?", strings.TrimSpace(role)).
		Where("principal = ?", strings.TrimSpace(principal)).
		Count(&count).Error
	if err != nil {
		return false, r.logError("roles_repo_has_role_failed", err,
			"role", strings.TrimSpace(role),
			"principal", strings.TrimSpace(principal),
		)
	}
	return count > 0, nil
}

func (r *Repository) Members(ctx context.Context, role string) ([]string, error) {
	var rows []roleMemberModel
	err := r.db.WithContext(ctx).
		Where("role = ?", strings.TrimSpace(role)).
		Order("granted_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, r.logError("roles_repo_members_failed", err, "role", strings.TrimSpace(role))
	}
	members := make([]string, 0, len(rows))
	for _, row := range rows {
		members = append(members, row.Principal)
	}
	return members, nil
}

func (r *Repository) RolesOf(ctx context.Context, principal string) ([]string, error) {
	var rows []roleMemberModel
	err := r.db.WithContext(ctx).
		Where("principal = ?", strings.TrimSpace(principal)).
		Order("role ASC").
		Find(&rows).Error
	if err != nil {
		return nil, r.logError("roles_repo_roles_of_failed", err, "principal", strings.TrimSpace(principal))
	}
	roles := make([]string, 0, len(rows))
	for _, row := range rows {
		roles = append(roles, row.Role)
	}
	return roles, nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	row := outboxModel{
		ID:           outboxID,
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("roles_repo_append_outbox_failed", create.Error, "outbox_id", outboxID)
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, r.logError("roles_repo_list_outbox_failed", err)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.ID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      row.Payload,
			CreatedAt:    row.CreatedAt,
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	at := publishedAt.UTC()
	update := r.db.WithContext(ctx).Model(&outboxModel{}).
		Where("id = ?", strings.TrimSpace(outboxID)).
		Where("status = ?", outboxStatusPending).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": &at,
		})
	if update.Error != nil {
		return r.logError("roles_repo_mark_outbox_failed", update.Error, "outbox_id", outboxID)
	}
	if update.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) logError(event string, err error, args ...any) error {
	fields := append([]any{
		"event", event,
		"module", "governance/role-directory",
		"layer", "adapter",
		"error", err.Error(),
	}, args...)
	r.logger.Error("role directory repository operation failed", fields...)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

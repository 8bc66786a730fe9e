package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"plenum/contexts/governance/ballot-engine/domain/entities"
	domainerrors "plenum/contexts/governance/ballot-engine/domain/errors"
	"plenum/contexts/governance/ballot-engine/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type sessionModel struct {
	SessionID  uint64    `gorm:"column:session_id;primaryKey"`
	Name       string    `gorm:"column:name"`
	Creator    string    `gorm:"column:creator"`
	Kind       string    `gorm:"column:kind"`
	StartTime  int64     `gorm:"column:start_time"`
	EndTime    int64     `gorm:"column:end_time"`
	Opening    bool      `gorm:"column:opening"`
	Closed     bool      `gorm:"column:closed"`
	TotalVotes uint64    `gorm:"column:total_votes"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (sessionModel) TableName() string { return "ballot_sessions" }

type proposalModel struct {
	SessionID     uint64 `gorm:"column:session_id;primaryKey"`
	ProposalIndex int    `gorm:"column:proposal_index;primaryKey"`
	Name          string `gorm:"column:name"`
	VoteCount     uint64 `gorm:"column:vote_count"`
}

func (proposalModel) TableName() string { return "ballot_proposals" }

type voterWeightModel struct {
	SessionID     uint64 `gorm:"column:session_id;primaryKey"`
	ProposalIndex int    `gorm:"column:proposal_index;primaryKey"`
	Voter         string `gorm:"column:voter;primaryKey"`
	Weight        uint64 `gorm:"column:weight"`
}

func (voterWeightModel) TableName() string { return "ballot_voter_weights" }

type permissionModel struct {
	SessionID uint64    `gorm:"column:session_id;primaryKey"`
	Principal string    `gorm:"column:principal;primaryKey"`
	GrantedAt time.Time `gorm:"column:granted_at"`
}

func (permissionModel) TableName() string { return "ballot_permissions" }

type outboxModel struct {
	ID           string     `gorm:"column:id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string { return "ballot_outbox" }

// Repository is the durable session arena. Tally mutations run inside a
// single database transaction so the proposal count, the voter's cumulative
// weight, and the session total never diverge.
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

func (r *Repository) CreateSession(ctx context.Context, session entities.VotingSession) (uint64, error) {
	var assigned uint64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The arena is append-only, so the row count is the next dense id.
		var count int64
		if err := tx.Model(&sessionModel{}).Count(&count).Error; err != nil {
			return err
		}
		assigned = uint64(count)

		row := sessionModel{
			SessionID:  assigned,
			Name:       session.Name,
			Creator:    session.Creator,
			Kind:       string(session.Kind),
			StartTime:  session.StartTime,
			EndTime:    session.EndTime,
			Opening:    session.Opening,
			Closed:     session.Closed,
			TotalVotes: session.TotalVotes,
			CreatedAt:  session.CreatedAt.UTC(),
			UpdatedAt:  session.UpdatedAt.UTC(),
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}

		for i, proposal := range session.Proposals {
			prow := proposalModel{
				SessionID:     assigned,
				ProposalIndex: i,
				Name:          proposal.Name,
				VoteCount:     proposal.VoteCount,
			}
			if err := tx.Create(&prow).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, r.logError("ballot_repo_create_session_failed", err, "creator", session.Creator)
	}
	return assigned, nil
}

func (r *Repository) GetSession(ctx context.Context, sessionID uint64) (entities.VotingSession, error) {
	return r.loadSession(ctx, r.db.WithContext(ctx), sessionID)
}

func (r *Repository) SessionCount(ctx context.Context) (uint64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&sessionModel{}).Count(&count).Error
	if err != nil {
		return 0, r.logError("ballot_repo_session_count_failed", err)
	}
	return uint64(count), nil
}

func (r *Repository) ListSessions(ctx context.Context) ([]entities.VotingSession, error) {
	return r.listSessions(ctx, r.db.WithContext(ctx).Order("session_id ASC"))
}

func (r *Repository) ListSessionsByCreator(ctx context.Context, creator string) ([]entities.VotingSession, error) {
	query := r.db.WithContext(ctx).
		Where("creator = ?", strings.TrimSpace(creator)).
		Order("session_id ASC")
	return r.listSessions(ctx, query)
}

func (r *Repository) ApplyVote(ctx context.Context, vote ports.VoteApplication) (uint64, error) {
	var cumulative uint64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session sessionModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("session_id = ?", vote.SessionID).
			First(&session).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainerrors.ErrInvalidSessionID
		}
		if err != nil {
			return err
		}
		if session.Closed {
			return domainerrors.ErrSessionClosed
		}

		update := tx.Model(&proposalModel{}).
			Where("session_id = ?", vote.SessionID).
			Where("proposal_index = ?", vote.ProposalIndex).
			Update("vote_count", gorm.Expr("vote_count + ?", vote.Weight))
		if update.Error != nil {
			return update.Error
		}
		if update.RowsAffected == 0 {
			return domainerrors.ErrUnknownProposal
		}

		weightRow := voterWeightModel{
			SessionID:     vote.SessionID,
			ProposalIndex: vote.ProposalIndex,
			Voter:         vote.Voter,
			Weight:        vote.Weight,
		}
		err = tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "session_id"}, {Name: "proposal_index"}, {Name: "voter"},
			},
			DoUpdates: clause.Assignments(map[string]any{
				"weight": gorm.Expr("ballot_voter_weights.weight + ?", vote.Weight),
			}),
		}).Create(&weightRow).Error
		if err != nil {
			return err
		}

		err = tx.Model(&sessionModel{}).
			Where("session_id = ?", vote.SessionID).
			Updates(map[string]any{
				"total_votes": gorm.Expr("total_votes + ?", vote.Weight),
				"updated_at":  vote.CastAt.UTC(),
			}).Error
		if err != nil {
			return err
		}

		var stored voterWeightModel
		err = tx.Where("session_id = ?", vote.SessionID).
			Where("proposal_index = ?", vote.ProposalIndex).
			Where("voter = ?", vote.Voter).
			First(&stored).Error
		if err != nil {
			return err
		}
		cumulative = stored.Weight
		return nil
	})
	if err != nil {
		if isDomainError(err) {
			return 0, err
		}
		return 0, r.logError("ballot_repo_apply_vote_failed", err,
			"session_id", vote.SessionID,
			"proposal_index", vote.ProposalIndex,
		)
	}
	return cumulative, nil
}

func (r *Repository) CloseSession(ctx context.Context, sessionID uint64, closedAt time.Time) (entities.VotingSession, error) {
	var closed entities.VotingSession
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session sessionModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("session_id = ?", sessionID).
			First(&session).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainerrors.ErrInvalidSessionID
		}
		if err != nil {
			return err
		}
		if session.Closed {
			return domainerrors.ErrAlreadyClosed
		}

		err = tx.Model(&sessionModel{}).
			Where("session_id = ?", sessionID).
			Updates(map[string]any{
				"closed":     true,
				"updated_at": closedAt.UTC(),
			}).Error
		if err != nil {
			return err
		}

		closed, err = r.loadSession(ctx, tx, sessionID)
		return err
	})
	if err != nil {
		if isDomainError(err) {
			return entities.VotingSession{}, err
		}
		return entities.VotingSession{}, r.logError("ballot_repo_close_session_failed", err, "session_id", sessionID)
	}
	return closed, nil
}

func (r *Repository) GrantPermission(ctx context.Context, sessionID uint64, principal string, grantedAt time.Time) (bool, error) {
	row := permissionModel{
		SessionID: sessionID,
		Principal: strings.TrimSpace(principal),
		GrantedAt: grantedAt.UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "principal"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		if isUniqueViolation(create.Error) {
			return false, nil
		}
		return false, r.logError("ballot_repo_grant_permission_failed", create.Error,
			"session_id", sessionID,
			"principal", row.Principal,
		)
	}
	return create.RowsAffected > 0, nil
}

func (r *Repository) HasPermission(ctx context.Context, sessionID uint64, principal string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&permissionModel{}).
		Where("session_id = ?", sessionID).
		Where("principal = ?", strings.TrimSpace(principal)).
		Count(&count).Error
	if err != nil {
		return false, r.logError("ballot_repo_has_permission_failed", err,
			"session_id", sessionID,
			"principal", strings.TrimSpace(principal),
		)
	}
	return count > 0, nil
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
		return r.logError("ballot_repo_append_outbox_failed", create.Error, "outbox_id", outboxID)
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
		return nil, r.logError("ballot_repo_list_outbox_failed", err)
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
		return r.logError("ballot_repo_mark_outbox_failed", update.Error, "outbox_id", outboxID)
	}
	if update.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) listSessions(ctx context.Context, query *gorm.DB) ([]entities.VotingSession, error) {
	var rows []sessionModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, r.logError("ballot_repo_list_sessions_failed", err)
	}
	sessions := make([]entities.VotingSession, 0, len(rows))
	for _, row := range rows {
		session, err := r.loadSession(ctx, r.db.WithContext(ctx), row.SessionID)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

func (r *Repository) loadSession(ctx context.Context, tx *gorm.DB, sessionID uint64) (entities.VotingSession, error) {
	var row sessionModel
	err := tx.Where("session_id = ?", sessionID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.VotingSession{}, domainerrors.ErrInvalidSessionID
	}
	if err != nil {
		return entities.VotingSession{}, r.logError("ballot_repo_get_session_failed", err, "session_id", sessionID)
	}

	var proposalRows []proposalModel
	err = tx.Where("session_id = ?", sessionID).
		Order("proposal_index ASC").
		Find(&proposalRows).Error
	if err != nil {
		return entities.VotingSession{}, r.logError("ballot_repo_get_proposals_failed", err, "session_id", sessionID)
	}

	var weightRows []voterWeightModel
	err = tx.Where("session_id = ?", sessionID).Find(&weightRows).Error
	if err != nil {
		return entities.VotingSession{}, r.logError("ballot_repo_get_weights_failed", err, "session_id", sessionID)
	}

	proposals := make([]entities.Proposal, len(proposalRows))
	for i, prow := range proposalRows {
		proposals[i] = entities.Proposal{
			Name:         prow.Name,
			VoteCount:    prow.VoteCount,
			VoterWeights: make(map[string]uint64),
		}
	}
	for _, wrow := range weightRows {
		if wrow.ProposalIndex < 0 || wrow.ProposalIndex >= len(proposals) {
			continue
		}
		proposals[wrow.ProposalIndex].VoterWeights[wrow.Voter] = wrow.Weight
	}

	return entities.VotingSession{
		SessionID:  row.SessionID,
		Name:       row.Name,
		Creator:    row.Creator,
		Kind:       entities.SessionKind(row.Kind),
		Proposals:  proposals,
		StartTime:  row.StartTime,
		EndTime:    row.EndTime,
		Opening:    row.Opening,
		Closed:     row.Closed,
		TotalVotes: row.TotalVotes,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}, nil
}

func (r *Repository) logError(event string, err error, args ...any) error {
	fields := append([]any{
		"event", event,
		"module", "governance/ballot-engine",
		"layer", "adapter",
		"error", err.Error(),
	}, args...)
	r.logger.Error("ballot repository operation failed", fields...)
	return err
}

func isDomainError(err error) bool {
	return errors.Is(err, domainerrors.ErrInvalidSessionID) ||
		errors.Is(err, domainerrors.ErrSessionClosed) ||
		errors.Is(err, domainerrors.ErrAlreadyClosed) ||
		errors.Is(err, domainerrors.ErrUnknownProposal)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

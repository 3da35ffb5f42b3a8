package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/workforce-api/internal/domain"
	"github.com/phrazzld/workforce-api/internal/platform/logger"
	"github.com/phrazzld/workforce-api/internal/store"
)

// PostgresAgentStore implements the store.AgentStore interface
// using a PostgreSQL database as the storage backend.
type PostgresAgentStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresAgentStore creates a new PostgreSQL implementation of the AgentStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresAgentStore(db store.DBTX, logger *slog.Logger) *PostgresAgentStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresAgentStore{
		db:     db,
		logger: logger.With(slog.String("component", "agent_store")),
	}
}

// Ensure PostgresAgentStore implements store.AgentStore interface
var _ store.AgentStore = (*PostgresAgentStore)(nil)

// UpsertAgent implements store.AgentStore.UpsertAgent
func (s *PostgresAgentStore) UpsertAgent(ctx context.Context, agent *domain.Agent) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if agent.ID == uuid.Nil {
		return store.NewStoreError("agent", "upsert", "agent id cannot be empty", store.ErrInvalidEntity)
	}

	config, err := encodeJSONB(agent.Config)
	if err != nil {
		return store.NewStoreError("agent", "upsert", "invalid config", err)
	}

	query := `
		INSERT INTO agents (id, name, type, description, status, config, created_at,
			tasks_completed, tasks_failed, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8, $9, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			config = EXCLUDED.config,
			tasks_completed = EXCLUDED.tasks_completed,
			tasks_failed = EXCLUDED.tasks_failed,
			updated_at = NOW()
	`
	_, err = s.db.ExecContext(
		ctx,
		query,
		agent.ID,
		agent.Name,
		string(agent.Type),
		agent.Description,
		string(agent.Status),
		config,
		agent.CreatedAt.UTC(),
		agent.TasksCompleted,
		agent.TasksFailed,
	)
	if err != nil {
		log.Error("failed to upsert agent",
			slog.String("error", err.Error()),
			slog.String("agent_id", agent.ID.String()))
		return store.NewStoreError("agent", "upsert", "failed to upsert agent", MapError(err))
	}

	log.Debug("agent upserted",
		slog.String("agent_id", agent.ID.String()),
		slog.String("status", string(agent.Status)))
	return nil
}

// UpdateAgentStatus implements store.AgentStore.UpdateAgentStatus
func (s *PostgresAgentStore) UpdateAgentStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.AgentStatus,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx,
		`UPDATE agents SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, string(status))
	if err != nil {
		log.Error("failed to update agent status",
			slog.String("error", err.Error()),
			slog.String("agent_id", id.String()),
			slog.String("status", string(status)))
		return store.NewStoreError("agent", "update", "failed to update status", MapError(err))
	}

	if err := CheckRowsAffected(result, store.ErrAgentNotFound); err != nil {
		return err
	}
	return nil
}

// UpdateAgentCounters implements store.AgentStore.UpdateAgentCounters
func (s *PostgresAgentStore) UpdateAgentCounters(
	ctx context.Context,
	id uuid.UUID,
	completed, failed int,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx,
		`UPDATE agents
		SET tasks_completed = GREATEST(tasks_completed, $2),
			tasks_failed = GREATEST(tasks_failed, $3),
			updated_at = NOW()
		WHERE id = $1`,
		id, completed, failed)
	if err != nil {
		log.Error("failed to update agent counters",
			slog.String("error", err.Error()),
			slog.String("agent_id", id.String()))
		return store.NewStoreError("agent", "update", "failed to update counters", MapError(err))
	}

	return CheckRowsAffected(result, store.ErrAgentNotFound)
}

// ListAgents implements store.AgentStore.ListAgents
func (s *PostgresAgentStore) ListAgents(
	ctx context.Context,
	excludeIDs []uuid.UUID,
	limit int,
) ([]domain.Agent, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if limit <= 0 {
		return []domain.Agent{}, nil
	}

	query := `
		SELECT id, name, type, description, status, config, created_at,
			tasks_completed, tasks_failed
		FROM agents
		WHERE id <> ALL($1::uuid[])
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, uuidArray(excludeIDs), limit)
	if err != nil {
		log.Error("failed to list agents", slog.String("error", err.Error()))
		return nil, store.NewStoreError("agent", "list", "failed to query agents", MapError(err))
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			log.Warn("failed to close agent rows", slog.String("error", cerr.Error()))
		}
	}()

	agents := make([]domain.Agent, 0)
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, store.NewStoreError("agent", "list", "failed to scan agent", err)
		}
		agents = append(agents, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("agent", "list", "failed to iterate agents", MapError(err))
	}

	return agents, nil
}

// TerminateOrphaned implements store.AgentStore.TerminateOrphaned
func (s *PostgresAgentStore) TerminateOrphaned(ctx context.Context, liveIDs []uuid.UUID) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx,
		`UPDATE agents
		SET status = $1, updated_at = NOW()
		WHERE status <> $1 AND id <> ALL($2::uuid[])`,
		string(domain.AgentStatusTerminated), uuidArray(liveIDs))
	if err != nil {
		log.Error("failed to terminate orphaned agents", slog.String("error", err.Error()))
		return 0, store.NewStoreError("agent", "update", "failed to terminate orphans", MapError(err))
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// uuidArray renders ids in the text form the driver binds to a uuid[]
// parameter. A nil slice becomes an empty array.
func uuidArray(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (domain.Agent, error) {
	var (
		agent     domain.Agent
		agentType string
		status    string
		config    []byte
		createdAt time.Time
	)

	err := row.Scan(
		&agent.ID,
		&agent.Name,
		&agentType,
		&agent.Description,
		&status,
		&config,
		&createdAt,
		&agent.TasksCompleted,
		&agent.TasksFailed,
	)
	if err != nil {
		return domain.Agent{}, MapError(err)
	}

	agent.Type = domain.AgentType(agentType)
	agent.Status = domain.AgentStatus(status)
	agent.CreatedAt = createdAt.UTC()
	agent.Config, err = decodeJSONBMap(config)
	if err != nil {
		return domain.Agent{}, err
	}

	return agent, nil
}

// scanNullString converts a nullable text column into an optional string.
func scanNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// scanNullTime converts a nullable timestamp column into an optional time.
func scanNullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	v := nt.Time.UTC()
	return &v
}

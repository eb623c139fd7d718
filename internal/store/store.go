package store

import (
	"context"

	"github.com/rendis/flowcore/pkg/schema"
)

// Store defines the persistence layer contract.
// All implementations must be safe for concurrent use.
type Store interface {
	// Runs
	SaveRun(ctx context.Context, rec *schema.RunRecord) error
	GetRun(ctx context.Context, id string) (*schema.RunRecord, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*schema.RunRecord, error)

	// Agent sessions
	SaveAgentSession(ctx context.Context, sess *AgentSession) error
	GetAgentSession(ctx context.Context, id string) (*AgentSession, error)
	ListAgentSessions(ctx context.Context, filter SessionFilter) ([]*AgentSession, error)
	SaveAgentIteration(ctx context.Context, it *AgentIteration) error
	ListAgentIterations(ctx context.Context, sessionID string) ([]*AgentIteration, error)

	// Secrets
	StoreSecret(ctx context.Context, key string, value []byte) error
	GetSecret(ctx context.Context, key string) ([]byte, error)
	DeleteSecret(ctx context.Context, key string) error
	ListSecrets(ctx context.Context) ([]string, error)

	// Maintenance
	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error

	// Lifecycle
	Close() error
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/flowcore/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, storeErr("open libsql", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	if err := runMigrations(ctx, s.db); err != nil {
		return storeErr("migrate", err)
	}
	return nil
}

// Vacuum runs VACUUM on the database.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// --- Runs ---

// SaveRun writes rec and replaces its node logs. Saving the same run twice
// leaves one copy.
func (s *LibSQLStore) SaveRun(ctx context.Context, rec *schema.RunRecord) error {
	input, err := nullJSON(rec.Input)
	if err != nil {
		return storeErr("marshal run input", err)
	}
	output, err := nullJSON(rec.FinalOutput)
	if err != nil {
		return storeErr("marshal run output", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin save run", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, graph_id, status, input, final_output, error, failed_node, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   status=excluded.status, input=excluded.input, final_output=excluded.final_output,
		   error=excluded.error, failed_node=excluded.failed_node, finished_at=excluded.finished_at`,
		rec.ID, nullStr(rec.GraphID), string(rec.Status), input, output,
		nullStr(rec.Error), nullStr(rec.FailedNode), timeOrNow(rec.StartedAt), nullTime(rec.FinishedAt),
	)
	if err != nil {
		return storeErr("insert run", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM node_logs WHERE run_id = ?`, rec.ID); err != nil {
		return storeErr("clear node logs", err)
	}

	for i, l := range rec.Logs {
		in, err := nullJSON(l.Input)
		if err != nil {
			return storeErr("marshal node input", err)
		}
		out, err := nullJSON(l.Output)
		if err != nil {
			return storeErr("marshal node output", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO node_logs (run_id, seq, node_id, node_type, status, input, output, handle, error, error_route, started_at, finished_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, i, l.NodeID, l.NodeType, string(l.Status), in, out,
			nullStr(l.Handle), nullStr(l.Error), boolInt(l.ErrorRoute), timeOrNow(l.StartedAt), nullTime(l.FinishedAt),
		)
		if err != nil {
			return storeErr("insert node log", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeErr("commit run", err)
	}
	return nil
}

func (s *LibSQLStore) GetRun(ctx context.Context, id string) (*schema.RunRecord, error) {
	rec, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT id, graph_id, status, input, final_output, error, failed_node, started_at, finished_at
		 FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeNotFound("run", id)
	}
	if err != nil {
		return nil, storeErr("get run", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT node_id, node_type, status, input, output, handle, error, error_route, started_at, finished_at
		 FROM node_logs WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, storeErr("get node logs", err)
	}
	defer rows.Close()

	rec.Logs = []schema.ExecutionLogEntry{}
	for rows.Next() {
		var (
			l                         schema.ExecutionLogEntry
			status                    string
			in, out, handle, errorMsg sql.NullString
			errorRoute                int
			finishedAt                sql.NullTime
		)
		if err := rows.Scan(&l.NodeID, &l.NodeType, &status, &in, &out, &handle, &errorMsg, &errorRoute, &l.StartedAt, &finishedAt); err != nil {
			return nil, storeErr("scan node log", err)
		}
		l.Status = schema.NodeStatus(status)
		l.Input = jsonValue(in)
		l.Output = jsonValue(out)
		l.Handle = handle.String
		l.Error = errorMsg.String
		l.ErrorRoute = errorRoute != 0
		if finishedAt.Valid {
			l.FinishedAt = finishedAt.Time
		}
		rec.Logs = append(rec.Logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("read node logs", err)
	}
	return rec, nil
}

// ListRuns returns runs newest first, without their logs.
func (s *LibSQLStore) ListRuns(ctx context.Context, filter RunFilter) ([]*schema.RunRecord, error) {
	var where []string
	var args []any

	if filter.GraphID != "" {
		where = append(where, "graph_id = ?")
		args = append(args, filter.GraphID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Since != nil {
		where = append(where, "started_at >= ?")
		args = append(args, *filter.Since)
	}

	query := `SELECT id, graph_id, status, input, final_output, error, failed_node, started_at, finished_at FROM runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list runs", err)
	}
	defer rows.Close()

	var runs []*schema.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, storeErr("scan run", err)
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("read runs", err)
	}
	return runs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*schema.RunRecord, error) {
	rec := &schema.RunRecord{}
	var (
		graphID, input, output, errorMsg, failedNode sql.NullString
		status                                       string
		finishedAt                                   sql.NullTime
	)
	if err := row.Scan(&rec.ID, &graphID, &status, &input, &output, &errorMsg, &failedNode, &rec.StartedAt, &finishedAt); err != nil {
		return nil, err
	}
	rec.GraphID = graphID.String
	rec.Status = schema.RunStatus(status)
	rec.Input = jsonValue(input)
	rec.FinalOutput = jsonValue(output)
	rec.Error = errorMsg.String
	rec.FailedNode = failedNode.String
	if finishedAt.Valid {
		rec.FinishedAt = finishedAt.Time
	}
	return rec, nil
}

// --- Agent sessions ---

// SaveAgentSession upserts sess. CreatedAt is kept from the first save.
func (s *LibSQLStore) SaveAgentSession(ctx context.Context, sess *AgentSession) error {
	state, err := nullJSON(sess.FinalState)
	if err != nil {
		return storeErr("marshal session state", err)
	}
	actions, err := nullJSON(sess.ActionsTaken)
	if err != nil {
		return storeErr("marshal session actions", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO agent_sessions (id, goal, status, iterations, final_state, actions_taken, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   status=excluded.status, iterations=excluded.iterations, final_state=excluded.final_state,
		   actions_taken=excluded.actions_taken, error=excluded.error, updated_at=excluded.updated_at`,
		sess.ID, sess.Goal, string(sess.Status), sess.Iterations, state, actions,
		nullStr(sess.Error), timeOrNow(sess.CreatedAt), timeOrNow(sess.UpdatedAt),
	)
	if err != nil {
		return storeErr("save agent session", err)
	}
	return nil
}

const sessionColumns = `id, goal, status, iterations, final_state, actions_taken, error, created_at, updated_at`

func (s *LibSQLStore) GetAgentSession(ctx context.Context, id string) (*AgentSession, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM agent_sessions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeNotFound("agent session", id)
	}
	if err != nil {
		return nil, storeErr("get agent session", err)
	}
	return sess, nil
}

// ListAgentSessions returns sessions most recently updated first.
func (s *LibSQLStore) ListAgentSessions(ctx context.Context, filter SessionFilter) ([]*AgentSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM agent_sessions`
	var args []any
	if filter.Status != "" {
		query += " WHERE status = ?"
		args = append(args, string(filter.Status))
	}
	query += " ORDER BY updated_at DESC, id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list agent sessions", err)
	}
	defer rows.Close()

	var sessions []*AgentSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, storeErr("scan agent session", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("read agent sessions", err)
	}
	return sessions, nil
}

func scanSession(row rowScanner) (*AgentSession, error) {
	sess := &AgentSession{}
	var (
		status                  string
		state, actions, errText sql.NullString
	)
	if err := row.Scan(&sess.ID, &sess.Goal, &status, &sess.Iterations, &state, &actions, &errText, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		return nil, err
	}
	sess.Status = schema.AgentStatus(status)
	sess.Error = errText.String
	if err := unmarshalNull(state, &sess.FinalState); err != nil {
		return nil, err
	}
	if err := unmarshalNull(actions, &sess.ActionsTaken); err != nil {
		return nil, err
	}
	return sess, nil
}

// SaveAgentIteration records one pass. The session row must exist when
// foreign keys are enforced.
func (s *LibSQLStore) SaveAgentIteration(ctx context.Context, it *AgentIteration) error {
	state, err := nullJSON(it.State)
	if err != nil {
		return storeErr("marshal iteration state", err)
	}
	history, err := nullJSON(it.History)
	if err != nil {
		return storeErr("marshal iteration history", err)
	}
	actions, err := nullJSON(it.ActionsTaken)
	if err != nil {
		return storeErr("marshal iteration actions", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO agent_iterations (session_id, iteration, phase, status, state, history, actions_taken, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id, iteration) DO UPDATE SET
		   phase=excluded.phase, status=excluded.status, state=excluded.state,
		   history=excluded.history, actions_taken=excluded.actions_taken, recorded_at=excluded.recorded_at`,
		it.SessionID, it.Iteration, it.Phase, string(it.Status), state, history, actions, timeOrNow(it.RecordedAt),
	)
	if err != nil {
		return storeErr("save agent iteration", err)
	}
	return nil
}

func (s *LibSQLStore) ListAgentIterations(ctx context.Context, sessionID string) ([]*AgentIteration, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, iteration, phase, status, state, history, actions_taken, recorded_at
		 FROM agent_iterations WHERE session_id = ? ORDER BY iteration`, sessionID)
	if err != nil {
		return nil, storeErr("list agent iterations", err)
	}
	defer rows.Close()

	var out []*AgentIteration
	for rows.Next() {
		it := &AgentIteration{}
		var (
			status                  string
			state, history, actions sql.NullString
		)
		if err := rows.Scan(&it.SessionID, &it.Iteration, &it.Phase, &status, &state, &history, &actions, &it.RecordedAt); err != nil {
			return nil, storeErr("scan agent iteration", err)
		}
		it.Status = schema.AgentStatus(status)
		if err := unmarshalNull(state, &it.State); err != nil {
			return nil, storeErr("unmarshal iteration state", err)
		}
		if err := unmarshalNull(history, &it.History); err != nil {
			return nil, storeErr("unmarshal iteration history", err)
		}
		if err := unmarshalNull(actions, &it.ActionsTaken); err != nil {
			return nil, storeErr("unmarshal iteration actions", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("read agent iterations", err)
	}
	return out, nil
}

// --- Secrets ---

func (s *LibSQLStore) StoreSecret(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO secrets (key, value, created_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value, rotated_at=CURRENT_TIMESTAMP`,
		key, value,
	)
	if err != nil {
		return storeErr("store secret", err)
	}
	return nil
}

func (s *LibSQLStore) GetSecret(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM secrets WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeNotFound("secret", key)
	}
	if err != nil {
		return nil, storeErr("get secret", err)
	}
	return value, nil
}

func (s *LibSQLStore) DeleteSecret(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM secrets WHERE key = ?`, key)
	if err != nil {
		return storeErr("delete secret", err)
	}
	return checkRowsAffected(res, "secret", key)
}

func (s *LibSQLStore) ListSecrets(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM secrets ORDER BY key`)
	if err != nil {
		return nil, storeErr("list secrets", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, storeErr("scan secret key", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// --- Helpers ---

func storeNotFound(resource, id string) *schema.FlowError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func storeErr(op string, err error) *schema.FlowError {
	return schema.NewErrorf(schema.ErrCodeStore, "%s: %s", op, err.Error()).WithCause(err)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("rows affected", err)
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullJSON encodes v, mapping nil to SQL NULL.
func nullJSON(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return nil, nil
	}
	return string(data), nil
}

// jsonValue decodes a stored JSON column into a generic value.
func jsonValue(ns sql.NullString) any {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(ns.String), &v); err != nil {
		return ns.String
	}
	return v
}

func unmarshalNull(ns sql.NullString, dst any) error {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(ns.String), dst)
}

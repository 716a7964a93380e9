package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	pkgdb "studysync/pkg/database"
	"studysync/pkg/interfaces"
	"studysync/pkg/types"
)

const writeQueueSize = 1000

// writeOp is a queued mutation. done is nil for fire-and-forget writes;
// Flush uses it as a barrier.
type writeOp struct {
	label string
	fn    func(db *sql.DB) error
	done  chan<- error
}

// Manager owns the sqlite store. All mutations funnel through a single
// writer goroutine so WAL readers never contend with writers; reads go
// straight to the pool. Event-path writes are fire-and-forget: enqueueing
// succeeds and failures surface only in the log.
type Manager struct {
	db     *sql.DB
	writes chan writeOp
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewManager opens the database, applies pragmas, initializes the schema
// and starts the writer goroutine.
func NewManager(config *pkgdb.Config, logger *slog.Logger) (*Manager, error) {
	if config == nil {
		config = pkgdb.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(config.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxConnections)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := pkgdb.ApplyOptimizations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply sqlite optimizations: %w", err)
	}
	if err := pkgdb.InitializeSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	m := &Manager{
		db:     db,
		writes: make(chan writeOp, writeQueueSize),
		logger: logger.With("component", "database"),
	}

	m.wg.Add(1)
	go m.writeLoop()

	return m, nil
}

func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for op := range m.writes {
		err := op.fn(m.db)
		if op.done != nil {
			op.done <- err
			continue
		}
		if err != nil {
			m.logger.Error("write failed", "op", op.label, "error", err)
		}
	}
}

func (m *Manager) enqueue(label string, fn func(db *sql.DB) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return interfaces.ErrStoreClosed
	}

	select {
	case m.writes <- writeOp{label: label, fn: fn}:
		return nil
	default:
		return ErrWriteQueueFull
	}
}

// GetActor resolves an actor from the user directory.
func (m *Manager) GetActor(ctx context.Context, actorID string) (*types.Actor, error) {
	var actor types.Actor
	err := m.db.QueryRowContext(ctx,
		`SELECT id, role, display_name FROM users WHERE id = ?`, actorID,
	).Scan(&actor.ID, &actor.Role, &actor.DisplayName)
	if err == sql.ErrNoRows {
		return nil, interfaces.ErrActorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query actor %s: %w", actorID, err)
	}
	return &actor, nil
}

// ActiveCourseForStudent returns the student's active course assignment.
func (m *Manager) ActiveCourseForStudent(ctx context.Context, studentID string) (*types.CourseAssignment, error) {
	var assignment types.CourseAssignment
	err := m.db.QueryRowContext(ctx,
		`SELECT course_id, teacher_id FROM course_assignments
		 WHERE student_id = ? AND status = 'active'
		 ORDER BY course_id LIMIT 1`, studentID,
	).Scan(&assignment.CourseID, &assignment.TeacherID)
	if err == sql.ErrNoRows {
		return nil, interfaces.ErrNoActiveCourse
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query assignment for student %s: %w", studentID, err)
	}
	return &assignment, nil
}

// ActiveCourseForTeacher returns the course the teacher currently leads.
func (m *Manager) ActiveCourseForTeacher(ctx context.Context, teacherID string) (*types.CourseAssignment, error) {
	var assignment types.CourseAssignment
	err := m.db.QueryRowContext(ctx,
		`SELECT course_id, teacher_id FROM course_assignments
		 WHERE teacher_id = ? AND status = 'active'
		 ORDER BY course_id LIMIT 1`, teacherID,
	).Scan(&assignment.CourseID, &assignment.TeacherID)
	if err == sql.ErrNoRows {
		return nil, interfaces.ErrNoActiveCourse
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query assignment for teacher %s: %w", teacherID, err)
	}
	return &assignment, nil
}

// AddAnnotation queues an annotation insert.
func (m *Manager) AddAnnotation(ctx context.Context, annotation *types.Annotation) error {
	a := *annotation
	return m.enqueue("add_annotation", func(db *sql.DB) error {
		_, err := db.Exec(
			`INSERT INTO annotations (id, course_id, owner_id, type, span_start, span_end, note_text, color, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.CourseID, a.OwnerID, a.Type, a.SpanStart, a.SpanEnd,
			a.NoteText, a.Color, a.CreatedAt, a.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert annotation %s: %w", a.ID, err)
		}
		return nil
	})
}

// UpdateAnnotation queues an update. The owner check is part of the
// statement, so a non-owner update touches zero rows.
func (m *Manager) UpdateAnnotation(ctx context.Context, annotation *types.Annotation, actorID string) error {
	a := *annotation
	return m.enqueue("update_annotation", func(db *sql.DB) error {
		result, err := db.Exec(
			`UPDATE annotations
			 SET type = ?, span_start = ?, span_end = ?, note_text = ?, color = ?, updated_at = ?
			 WHERE id = ? AND owner_id = ?`,
			a.Type, a.SpanStart, a.SpanEnd, a.NoteText, a.Color, a.UpdatedAt,
			a.ID, actorID)
		if err != nil {
			return fmt.Errorf("failed to update annotation %s: %w", a.ID, err)
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return fmt.Errorf("annotation %s: %w", a.ID, interfaces.ErrAnnotationNotFound)
		}
		return nil
	})
}

// DeleteAnnotation queues a delete scoped to the owner.
func (m *Manager) DeleteAnnotation(ctx context.Context, annotationID, actorID string) error {
	return m.enqueue("delete_annotation", func(db *sql.DB) error {
		result, err := db.Exec(
			`DELETE FROM annotations WHERE id = ? AND owner_id = ?`,
			annotationID, actorID)
		if err != nil {
			return fmt.Errorf("failed to delete annotation %s: %w", annotationID, err)
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return fmt.Errorf("annotation %s: %w", annotationID, interfaces.ErrAnnotationNotFound)
		}
		return nil
	})
}

// RecordProgress queues a progress event append.
func (m *Manager) RecordProgress(ctx context.Context, actorID, sessionID string, progress map[string]interface{}) error {
	data, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("failed to encode progress for %s: %w", actorID, err)
	}
	now := time.Now().UTC()
	return m.enqueue("record_progress", func(db *sql.DB) error {
		_, err := db.Exec(
			`INSERT INTO progress_events (actor_id, session_id, progress, created_at)
			 VALUES (?, ?, ?, ?)`,
			actorID, sessionID, string(data), now)
		if err != nil {
			return fmt.Errorf("failed to record progress for %s: %w", actorID, err)
		}
		return nil
	})
}

// Flush blocks until every write queued before the call has been applied.
func (m *Manager) Flush(ctx context.Context) error {
	done := make(chan error, 1)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return interfaces.ErrStoreClosed
	}
	select {
	case m.writes <- writeOp{label: "flush", fn: func(*sql.DB) error { return nil }, done: done}:
		m.mu.Unlock()
	default:
		m.mu.Unlock()
		return ErrWriteQueueFull
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HealthCheck verifies database connectivity.
func (m *Manager) HealthCheck(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// GetDB exposes the underlying pool for read-only queries and test setup.
func (m *Manager) GetDB() *sql.DB {
	return m.db
}

// Close drains the write queue and closes the database.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.writes)
	m.mu.Unlock()

	m.wg.Wait()
	return m.db.Close()
}

package database

import (
	"database/sql"
	"fmt"
)

// Schema for the coordinator's sqlite store. Sessions are deliberately
// absent: they live only in memory and die with the process.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id           TEXT PRIMARY KEY,
	role         TEXT NOT NULL CHECK (role IN ('admin', 'teacher', 'student')),
	display_name TEXT NOT NULL,
	created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS course_assignments (
	course_id  TEXT NOT NULL,
	student_id TEXT NOT NULL,
	teacher_id TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'active',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (course_id, student_id)
);

CREATE INDEX IF NOT EXISTS idx_assignments_student
	ON course_assignments(student_id, status);

CREATE INDEX IF NOT EXISTS idx_assignments_teacher
	ON course_assignments(teacher_id, status);

CREATE TABLE IF NOT EXISTS annotations (
	id         TEXT PRIMARY KEY,
	course_id  TEXT,
	owner_id   TEXT NOT NULL,
	type       TEXT NOT NULL CHECK (type IN ('highlight', 'note', 'comment', 'question')),
	span_start INTEGER NOT NULL DEFAULT 0,
	span_end   INTEGER NOT NULL DEFAULT 0,
	note_text  TEXT NOT NULL DEFAULT '',
	color      TEXT NOT NULL DEFAULT '#FFD700',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_annotations_course
	ON annotations(course_id);

CREATE INDEX IF NOT EXISTS idx_annotations_owner
	ON annotations(owner_id);

CREATE TABLE IF NOT EXISTS progress_events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	actor_id   TEXT NOT NULL,
	session_id TEXT NOT NULL,
	progress   TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_progress_actor
	ON progress_events(actor_id);
`

// InitializeSchema creates all tables and indexes if they do not exist.
func InitializeSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

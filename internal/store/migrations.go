package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Sessions table - one row per live run or replayed video
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			epsilon REAL NOT NULL,
			frames INTEGER NOT NULL DEFAULT 0,
			started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			ended_at DATETIME
		)`,

		// Note events table - note-on and note-off edges within a session
		`CREATE TABLE IF NOT EXISTS note_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			note TEXT NOT NULL CHECK(note IN ('do', 're', 'mi', 'fa', 'sol', 'la', 'si')),
			state TEXT NOT NULL CHECK(state IN ('on', 'off')),
			frame INTEGER NOT NULL,
			timestamp_ms INTEGER NOT NULL
		)`,

		// Bindings table - plugin action to run when a note turns on
		`CREATE TABLE IF NOT EXISTS bindings (
			id TEXT PRIMARY KEY,
			note TEXT NOT NULL UNIQUE CHECK(note IN ('do', 're', 'mi', 'fa', 'sol', 'la', 'si')),
			plugin_name TEXT NOT NULL,
			action_name TEXT NOT NULL,
			config TEXT NOT NULL DEFAULT '{}',
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_note_events_session_id ON note_events(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}

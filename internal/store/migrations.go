package store

// migration is one forward-only schema step. Versions are applied in
// slice order and never edited once released.
type migration struct {
	Version int
	Name    string
	SQL     string
}

var migrations = []migration{
	{
		Version: 1,
		Name:    "create chat summaries",
		SQL: `
			CREATE TABLE chat_summaries (
				id           TEXT PRIMARY KEY,
				customer_id  TEXT NOT NULL,
				session_id   TEXT NOT NULL,
				session_date TEXT NOT NULL,
				summary      TEXT NOT NULL,
				sentiment    TEXT NOT NULL DEFAULT 'neutral',
				topics       TEXT NOT NULL DEFAULT '[]',
				created_at   TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_summaries_customer ON chat_summaries (customer_id, created_at);
			CREATE UNIQUE INDEX idx_summaries_session ON chat_summaries (customer_id, session_id);
		`,
	},
	{
		Version: 2,
		Name:    "create chat summary FTS5 index",
		SQL: `
			CREATE VIRTUAL TABLE chat_summaries_fts USING fts5(
				summary,
				topics,
				content='chat_summaries',
				content_rowid='rowid'
			);

			CREATE TRIGGER chat_summaries_ai AFTER INSERT ON chat_summaries BEGIN
				INSERT INTO chat_summaries_fts(rowid, summary, topics)
				VALUES (new.rowid, new.summary, new.topics);
			END;

			CREATE TRIGGER chat_summaries_ad AFTER DELETE ON chat_summaries BEGIN
				INSERT INTO chat_summaries_fts(chat_summaries_fts, rowid, summary, topics)
				VALUES ('delete', old.rowid, old.summary, old.topics);
			END;

			CREATE TRIGGER chat_summaries_au AFTER UPDATE ON chat_summaries BEGIN
				INSERT INTO chat_summaries_fts(chat_summaries_fts, rowid, summary, topics)
				VALUES ('delete', old.rowid, old.summary, old.topics);
				INSERT INTO chat_summaries_fts(rowid, summary, topics)
				VALUES (new.rowid, new.summary, new.topics);
			END;
		`,
	},
}

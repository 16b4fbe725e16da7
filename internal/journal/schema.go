package journal

const schema = `
-- One row per session history entry: decisions and skips alike.
-- review_id is 0 for skips, matching the in-memory history shape.
CREATE TABLE IF NOT EXISTS history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    reviewer_id INTEGER NOT NULL,
    review_id INTEGER NOT NULL DEFAULT 0,
    question_id INTEGER NOT NULL,
    question TEXT NOT NULL,
    action TEXT NOT NULL,
    modified DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS history_by_reviewer ON history (reviewer_id, id);
`

package storage

// Times are stored as unix seconds so due-date comparisons are numeric.
const schema = `
-- The 'sources' table tracks where decks and lessons come from, either a local directory or a git repository.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL DEFAULT 'local',
    last_scanned INTEGER
);

CREATE TABLE IF NOT EXISTS decks (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    source_id INTEGER,

    FOREIGN KEY(source_id) REFERENCES sources(id)
);

-- The 'cards' table stores each flashcard and when it is next due.
CREATE TABLE IF NOT EXISTS cards (
    id TEXT PRIMARY KEY,
    deck_id TEXT NOT NULL,
    front TEXT NOT NULL,
    back TEXT NOT NULL,
    hint TEXT NOT NULL DEFAULT '',
    image TEXT NOT NULL DEFAULT '',
    order_index INTEGER NOT NULL DEFAULT 0,
    due_at INTEGER NOT NULL,
    last_review INTEGER,
    review_count INTEGER NOT NULL DEFAULT 0,
    source_id INTEGER,

    FOREIGN KEY(deck_id) REFERENCES decks(id),
    FOREIGN KEY(source_id) REFERENCES sources(id)
);

CREATE INDEX IF NOT EXISTS idx_cards_deck_due ON cards(deck_id, due_at);

CREATE TABLE IF NOT EXISTS reviews (
    id TEXT PRIMARY KEY,
    card_id TEXT NOT NULL,
    difficulty TEXT NOT NULL,
    reviewed_at INTEGER NOT NULL,
    next_due INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reviews_card ON reviews(card_id);

-- Quiz ids are "<lesson>:<quiz>" so authoring ids only need to be unique per lesson.
CREATE TABLE IF NOT EXISTS quizzes (
    id TEXT PRIMARY KEY,
    lesson_id TEXT NOT NULL,
    timestamp REAL NOT NULL,
    question TEXT NOT NULL,
    options TEXT NOT NULL, -- JSON array of strings
    correct_answer INTEGER NOT NULL,
    points INTEGER NOT NULL DEFAULT 0,
    is_required INTEGER NOT NULL DEFAULT 0,
    pause_video INTEGER NOT NULL DEFAULT 0,
    explanation TEXT NOT NULL DEFAULT '',
    source_id INTEGER,

    FOREIGN KEY(source_id) REFERENCES sources(id)
);

CREATE INDEX IF NOT EXISTS idx_quizzes_lesson ON quizzes(lesson_id, timestamp);

CREATE TABLE IF NOT EXISTS quiz_answers (
    id TEXT PRIMARY KEY,
    quiz_id TEXT NOT NULL,
    answer INTEGER NOT NULL,
    is_correct INTEGER NOT NULL,
    time_spent INTEGER NOT NULL,
    points_awarded INTEGER NOT NULL,
    answered_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_quiz_answers_quiz ON quiz_answers(quiz_id, answered_at);
`

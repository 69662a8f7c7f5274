package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/mwhitby/lingoduel/internal/errors"
	"github.com/mwhitby/lingoduel/internal/models"
	"github.com/mwhitby/lingoduel/internal/rating"
)

// Repository provides data access methods
type Repository struct {
	db *sql.DB
}

// New creates a new Repository
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}

	// SQLite works best with a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	repo := &Repository{db: db}

	if err := repo.migrate(); err != nil {
		return nil, err
	}

	return repo, nil
}

// NewWithDB wraps an existing database handle (used by sqlmock tests)
func NewWithDB(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// DB returns the underlying database connection
func (r *Repository) DB() *sql.DB {
	return r.db
}

// Close closes the database connection
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks if the database connection is alive
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// migrate runs database migrations
func (r *Repository) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS matches (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			status TEXT NOT NULL,
			language TEXT NOT NULL,
			participants TEXT NOT NULL,
			questions TEXT NOT NULL,
			question_duration INTEGER,
			is_async BOOLEAN NOT NULL DEFAULT 0,
			current_turn_user_id TEXT,
			turn_deadline_at DATETIME,
			connection_state TEXT NOT NULL,
			power_up_state TEXT,
			invite_code TEXT,
			started_at DATETIME,
			ended_at DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS match_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			match_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			score INTEGER NOT NULL,
			correct_count INTEGER NOT NULL,
			total_time_ms INTEGER NOT NULL,
			answers TEXT NOT NULL,
			rating_change INTEGER,
			power_up_usages INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(match_id, user_id),
			FOREIGN KEY (match_id) REFERENCES matches(id)
		)`,
		`CREATE TABLE IF NOT EXISTS language_ratings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			language TEXT NOT NULL,
			rating INTEGER NOT NULL,
			division TEXT NOT NULL,
			matches INTEGER NOT NULL DEFAULT 0,
			wins INTEGER NOT NULL DEFAULT 0,
			losses INTEGER NOT NULL DEFAULT 0,
			draws INTEGER NOT NULL DEFAULT 0,
			UNIQUE(user_id, language)
		)`,
		`CREATE TABLE IF NOT EXISTS questions (
			id TEXT PRIMARY KEY,
			language TEXT NOT NULL,
			difficulty TEXT NOT NULL,
			prompt TEXT NOT NULL,
			options TEXT NOT NULL,
			correct_index INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_questions_language_difficulty ON questions(language, difficulty)`,
		`CREATE INDEX IF NOT EXISTS idx_match_results_match ON match_results(match_id)`,
	}

	for _, migration := range migrations {
		if _, err := r.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// isUniqueViolation reports whether err is a sqlite unique-constraint error
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return stderrors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// ===== Matches =====

// CreateMatch inserts a new match row
func (r *Repository) CreateMatch(ctx context.Context, m *models.Match) error {
	participants, err := json.Marshal(m.Participants)
	if err != nil {
		return errors.Internal(err)
	}
	questions, err := json.Marshal(m.Questions)
	if err != nil {
		return errors.Internal(err)
	}
	connState, err := json.Marshal(m.ConnectionState)
	if err != nil {
		return errors.Internal(err)
	}

	var powerUps interface{}
	if m.PowerUpState != nil {
		b, err := json.Marshal(m.PowerUpState)
		if err != nil {
			return errors.Internal(err)
		}
		powerUps = string(b)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO matches (id, kind, status, language, participants, questions,
			question_duration, is_async, current_turn_user_id, turn_deadline_at,
			connection_state, power_up_state, invite_code, started_at, ended_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, string(m.Kind), string(m.Status), m.Language, string(participants), string(questions),
		m.QuestionDurationSeconds, m.IsAsync, m.CurrentTurnUserID, m.TurnDeadlineAt,
		string(connState), powerUps, m.InviteCode, m.StartedAt, m.EndedAt, m.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return errors.Wrap(err, errors.ErrUnavailable, "create match")
	}
	return nil
}

// GetMatch fetches a match by id
func (r *Repository) GetMatch(ctx context.Context, id string) (*models.Match, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, kind, status, language, participants, questions, question_duration,
			is_async, current_turn_user_id, turn_deadline_at, connection_state,
			power_up_state, invite_code, started_at, ended_at, created_at
		FROM matches WHERE id = ?`, id)
	return scanMatch(row)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMatch(row rowScanner) (*models.Match, error) {
	var (
		m             models.Match
		kind, status  string
		participants  string
		questions     string
		connState     string
		powerUps      sql.NullString
		invite        sql.NullString
		turnUser      sql.NullString
		turnDeadline  sql.NullTime
		duration      sql.NullInt64
		startedAt     sql.NullTime
		endedAt       sql.NullTime
	)

	err := row.Scan(&m.ID, &kind, &status, &m.Language, &participants, &questions,
		&duration, &m.IsAsync, &turnUser, &turnDeadline, &connState,
		&powerUps, &invite, &startedAt, &endedAt, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrUnavailable, "get match")
	}

	m.Kind = models.MatchKind(kind)
	m.Status = models.MatchStatus(status)
	if err := json.Unmarshal([]byte(participants), &m.Participants); err != nil {
		return nil, errors.Internal(err)
	}
	if err := json.Unmarshal([]byte(questions), &m.Questions); err != nil {
		return nil, errors.Internal(err)
	}
	if err := json.Unmarshal([]byte(connState), &m.ConnectionState); err != nil {
		return nil, errors.Internal(err)
	}
	if powerUps.Valid && powerUps.String != "" {
		if err := json.Unmarshal([]byte(powerUps.String), &m.PowerUpState); err != nil {
			return nil, errors.Internal(err)
		}
	}
	if invite.Valid {
		m.InviteCode = invite.String
	}
	if duration.Valid {
		d := int(duration.Int64)
		m.QuestionDurationSeconds = &d
	}
	if turnUser.Valid {
		m.CurrentTurnUserID = &turnUser.String
	}
	if turnDeadline.Valid {
		m.TurnDeadlineAt = &turnDeadline.Time
	}
	if startedAt.Valid {
		m.StartedAt = &startedAt.Time
	}
	if endedAt.Valid {
		m.EndedAt = &endedAt.Time
	}
	return &m, nil
}

// UpdateMatch applies a partial update to a match row
func (r *Repository) UpdateMatch(ctx context.Context, id string, u MatchUpdate) error {
	var sets []string
	var args []interface{}

	if u.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*u.Status))
	}
	if u.StartedAt != nil {
		sets = append(sets, "started_at = ?")
		args = append(args, *u.StartedAt)
	}
	if u.EndedAt != nil {
		sets = append(sets, "ended_at = ?")
		args = append(args, *u.EndedAt)
	}
	if u.ConnectionState != nil {
		b, err := json.Marshal(u.ConnectionState)
		if err != nil {
			return errors.Internal(err)
		}
		sets = append(sets, "connection_state = ?")
		args = append(args, string(b))
	}
	if u.PowerUpState != nil {
		b, err := json.Marshal(u.PowerUpState)
		if err != nil {
			return errors.Internal(err)
		}
		sets = append(sets, "power_up_state = ?")
		args = append(args, string(b))
	}
	if u.ClearTurn {
		sets = append(sets, "current_turn_user_id = NULL", "turn_deadline_at = NULL")
	} else {
		if u.CurrentTurnUserID != nil {
			sets = append(sets, "current_turn_user_id = ?")
			args = append(args, *u.CurrentTurnUserID)
		}
		if u.TurnDeadlineAt != nil {
			sets = append(sets, "turn_deadline_at = ?")
			args = append(args, *u.TurnDeadlineAt)
		}
	}

	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	query := "UPDATE matches SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, errors.ErrUnavailable, "update match")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListMatchesNeedingRatings returns completed rated-kind matches where at
// least one result still has no rating change recorded. Used by the
// reconciliation pass.
func (r *Repository) ListMatchesNeedingRatings(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT m.id
		FROM matches m
		JOIN match_results mr ON mr.match_id = m.id
		WHERE m.status = ? AND m.kind IN (?, ?) AND mr.rating_change IS NULL`,
		string(models.StatusCompleted), string(models.KindRanked), string(models.KindBattle))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrUnavailable, "list matches needing ratings")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Internal(err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListMatchesWithExpiredTurn returns in-progress matches whose async turn
// deadline passed before the given time. Used by the turn sweep.
func (r *Repository) ListMatchesWithExpiredTurn(ctx context.Context, before time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM matches
		WHERE status = ? AND turn_deadline_at IS NOT NULL AND turn_deadline_at < ?`,
		string(models.StatusInProgress), before)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrUnavailable, "list matches with expired turn")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Internal(err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ===== Match results =====

// CreateMatchResult inserts a participant's result. Results are immutable
// once created, except for the rating change attached later.
func (r *Repository) CreateMatchResult(ctx context.Context, res *models.MatchResult) error {
	answers, err := json.Marshal(res.Answers)
	if err != nil {
		return errors.Internal(err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO match_results (match_id, user_id, score, correct_count,
			total_time_ms, answers, rating_change, power_up_usages, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.MatchID, res.UserID, res.Score, res.CorrectCount,
		res.TotalTimeMs, string(answers), res.RatingChange, res.PowerUpUsages, res.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return errors.Wrap(err, errors.ErrUnavailable, "create match result")
	}
	return nil
}

// GetMatchResult fetches one participant's result for a match
func (r *Repository) GetMatchResult(ctx context.Context, matchID, userID string) (*models.MatchResult, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT match_id, user_id, score, correct_count, total_time_ms, answers,
			rating_change, power_up_usages, created_at
		FROM match_results WHERE match_id = ? AND user_id = ?`, matchID, userID)
	return scanResult(row)
}

func scanResult(row rowScanner) (*models.MatchResult, error) {
	var (
		res          models.MatchResult
		answers      string
		ratingChange sql.NullInt64
	)
	err := row.Scan(&res.MatchID, &res.UserID, &res.Score, &res.CorrectCount,
		&res.TotalTimeMs, &answers, &ratingChange, &res.PowerUpUsages, &res.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrUnavailable, "get match result")
	}
	if err := json.Unmarshal([]byte(answers), &res.Answers); err != nil {
		return nil, errors.Internal(err)
	}
	if ratingChange.Valid {
		d := int(ratingChange.Int64)
		res.RatingChange = &d
	}
	return &res, nil
}

// ListMatchResults fetches all results for a match, oldest first
func (r *Repository) ListMatchResults(ctx context.Context, matchID string) ([]models.MatchResult, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT match_id, user_id, score, correct_count, total_time_ms, answers,
			rating_change, power_up_usages, created_at
		FROM match_results WHERE match_id = ? ORDER BY created_at ASC, id ASC`, matchID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrUnavailable, "list match results")
	}
	defer rows.Close()

	var results []models.MatchResult
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *res)
	}
	return results, rows.Err()
}

// SetResultRatingChange attaches the computed rating delta to a result
func (r *Repository) SetResultRatingChange(ctx context.Context, matchID, userID string, delta int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE match_results SET rating_change = ? WHERE match_id = ? AND user_id = ?`,
		delta, matchID, userID)
	if err != nil {
		return errors.Wrap(err, errors.ErrUnavailable, "set rating change")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ===== Language ratings =====

// GetOrCreateLanguageRating fetches the (user, language) rating record,
// creating it with the seed rating on first need.
func (r *Repository) GetOrCreateLanguageRating(ctx context.Context, userID, language string) (*models.LanguageRating, error) {
	seed := rating.Classify(rating.SeedRating)
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO language_ratings (user_id, language, rating, division)
		VALUES (?, ?, ?, ?)`, userID, language, rating.SeedRating, seed.DisplayName)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrUnavailable, "create language rating")
	}

	var lr models.LanguageRating
	err = r.db.QueryRowContext(ctx, `
		SELECT user_id, language, rating, division, matches, wins, losses, draws
		FROM language_ratings WHERE user_id = ? AND language = ?`, userID, language).
		Scan(&lr.UserID, &lr.Language, &lr.Rating, &lr.Division,
			&lr.Matches, &lr.Wins, &lr.Losses, &lr.Draws)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrUnavailable, "get language rating")
	}
	return &lr, nil
}

// outcomeCounters expands an outcome into win/loss/draw increments
func outcomeCounters(outcome Outcome) (int, int, int, error) {
	switch outcome {
	case OutcomeWin:
		return 1, 0, 0, nil
	case OutcomeLoss:
		return 0, 1, 0, nil
	case OutcomeDraw:
		return 0, 0, 1, nil
	default:
		return 0, 0, 0, errors.Validationf("unknown outcome %q", outcome)
	}
}

// ApplyRatingResult applies a rating delta and outcome counters to the
// (user, language) record. Ratings never drop below zero.
func (r *Repository) ApplyRatingResult(ctx context.Context, userID, language string, delta int, outcome Outcome, division string) error {
	winInc, lossInc, drawInc, err := outcomeCounters(outcome)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE language_ratings
		SET rating = MAX(0, rating + ?),
			division = ?,
			matches = matches + 1,
			wins = wins + ?,
			losses = losses + ?,
			draws = draws + ?
		WHERE user_id = ? AND language = ?`,
		delta, division, winInc, lossInc, drawInc, userID, language)
	if err != nil {
		return errors.Wrap(err, errors.ErrUnavailable, "apply rating result")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyMatchRatings applies every participant's rating delta and stamps it
// on their match result in a single transaction: the ladder and the stored
// deltas move together or not at all. A result whose rating change is
// already set aborts the batch, so one match can never hit the ladder
// twice.
func (r *Repository) ApplyMatchRatings(ctx context.Context, matchID, language string, updates []RatingUpdate) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrUnavailable, "begin rating update")
	}
	defer tx.Rollback()

	for _, u := range updates {
		winInc, lossInc, drawInc, err := outcomeCounters(u.Outcome)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE language_ratings
			SET rating = MAX(0, rating + ?),
				division = ?,
				matches = matches + 1,
				wins = wins + ?,
				losses = losses + ?,
				draws = draws + ?
			WHERE user_id = ? AND language = ?`,
			u.Delta, u.Division, winInc, lossInc, drawInc, u.UserID, language)
		if err != nil {
			return errors.Wrap(err, errors.ErrUnavailable, "apply rating result")
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrNotFound
		}

		res, err = tx.ExecContext(ctx, `
			UPDATE match_results SET rating_change = ?
			WHERE match_id = ? AND user_id = ? AND rating_change IS NULL`,
			u.Delta, matchID, u.UserID)
		if err != nil {
			return errors.Wrap(err, errors.ErrUnavailable, "set rating change")
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrNotFound
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrUnavailable, "commit rating update")
	}
	return nil
}

// ===== Questions =====

// CreateQuestion inserts a question into the bank
func (r *Repository) CreateQuestion(ctx context.Context, q *models.Question) error {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return errors.Internal(err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO questions (id, language, difficulty, prompt, options, correct_index)
		VALUES (?, ?, ?, ?, ?, ?)`,
		q.ID, q.Language, string(q.Difficulty), q.Prompt, string(options), q.CorrectIndex)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return errors.Wrap(err, errors.ErrUnavailable, "create question")
	}
	return nil
}

// questionFilterClause builds the WHERE clause shared by Find and Count
func questionFilterClause(f QuestionFilter) (string, []interface{}) {
	where := "language = ?"
	args := []interface{}{f.Language}

	if len(f.Difficulties) > 0 {
		placeholders := make([]string, len(f.Difficulties))
		for i, d := range f.Difficulties {
			placeholders[i] = "?"
			args = append(args, string(d))
		}
		where += " AND difficulty IN (" + strings.Join(placeholders, ", ") + ")"
	}
	if len(f.ExcludeIDs) > 0 {
		placeholders := make([]string, len(f.ExcludeIDs))
		for i, id := range f.ExcludeIDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		where += " AND id NOT IN (" + strings.Join(placeholders, ", ") + ")"
	}
	return where, args
}

// FindQuestions returns questions matching the filter
func (r *Repository) FindQuestions(ctx context.Context, f QuestionFilter) ([]models.Question, error) {
	where, args := questionFilterClause(f)
	query := `SELECT id, language, difficulty, prompt, options, correct_index FROM questions WHERE ` + where
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrUnavailable, "find questions")
	}
	defer rows.Close()

	var questions []models.Question
	for rows.Next() {
		var (
			q          models.Question
			difficulty string
			options    string
		)
		if err := rows.Scan(&q.ID, &q.Language, &difficulty, &q.Prompt, &options, &q.CorrectIndex); err != nil {
			return nil, errors.Internal(err)
		}
		q.Difficulty = models.Difficulty(difficulty)
		if err := json.Unmarshal([]byte(options), &q.Options); err != nil {
			return nil, errors.Internal(err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// CountQuestions returns the size of the eligible pool for a filter
func (r *Repository) CountQuestions(ctx context.Context, f QuestionFilter) (int, error) {
	where, args := questionFilterClause(f)
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions WHERE `+where, args...).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrUnavailable, "count questions")
	}
	return count, nil
}

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/codebuildervaibhav/meeting-stt/internal/types"
)

// MetadataDB handles SQLite persistence of chunk states and their cues
type MetadataDB struct {
	db *sql.DB
}

// MeetingSummary is one row of the meeting listing
type MeetingSummary struct {
	MeetingID       int64     `json:"meetingId"`
	TotalChunks     int       `json:"totalChunks"`
	CompletedChunks int       `json:"completedChunks"`
	CreatedAt       time.Time `json:"createdAt"`
}

// NewMetadataDB opens the database and creates the schema if needed.
func NewMetadataDB(dbPath string) (*MetadataDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: writers never race and cue replacement is never
	// observed half done.
	db.SetMaxOpenConns(1)

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS stt_chunks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		meeting_id INTEGER NOT NULL,
		chunk_seq INTEGER NOT NULL,
		job_handle TEXT NOT NULL,
		audio_ref TEXT NOT NULL,
		duration_ms INTEGER,
		status TEXT NOT NULL,
		transcript TEXT,
		error_message TEXT,
		language_code TEXT,
		created_date TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME,
		UNIQUE (meeting_id, chunk_seq)
	);

	CREATE TABLE IF NOT EXISTS stt_chunk_cues (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		meeting_id INTEGER NOT NULL,
		chunk_id INTEGER NOT NULL,
		chunk_seq INTEGER NOT NULL,
		cue_index INTEGER NOT NULL,
		start_ms INTEGER NOT NULL,
		end_ms INTEGER NOT NULL,
		text TEXT NOT NULL,
		speaker TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chunk_cue_meeting_chunk ON stt_chunk_cues(meeting_id, chunk_id, chunk_seq, cue_index);
	CREATE INDEX IF NOT EXISTS idx_chunk_cue_chunk ON stt_chunk_cues(chunk_id, cue_index);
	`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &MetadataDB{db: db}, nil
}

// NextChunkSeq returns the sequence number the next chunk of a meeting gets.
func (mdb *MetadataDB) NextChunkSeq(ctx context.Context, meetingID int64) (int, error) {
	var next int
	err := mdb.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(chunk_seq), 0) + 1 FROM stt_chunks WHERE meeting_id = ?`, meetingID,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to compute next chunk seq: %w", err)
	}
	return next, nil
}

// InsertChunks stores new chunk rows in one transaction and fills in their IDs.
func (mdb *MetadataDB) InsertChunks(ctx context.Context, chunks []*types.ChunkState) error {
	tx, err := mdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
	INSERT INTO stt_chunks (meeting_id, chunk_seq, job_handle, audio_ref, duration_ms, status,
		transcript, error_message, language_code, created_date, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	for _, c := range chunks {
		res, err := tx.ExecContext(ctx, query, c.MeetingID, c.ChunkSeq, c.JobHandle, c.AudioRef,
			c.DurationMs, string(c.Status), c.Transcript, c.ErrorMessage, c.LanguageCode,
			c.CreatedDate, now)
		if err != nil {
			return fmt.Errorf("failed to save chunk %d of meeting %d: %w", c.ChunkSeq, c.MeetingID, err)
		}
		if c.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to read chunk id: %w", err)
		}
		c.CreatedAt = now
	}
	return tx.Commit()
}

// ListChunks returns a meeting's chunks ordered by chunk_seq.
func (mdb *MetadataDB) ListChunks(ctx context.Context, meetingID int64) ([]types.ChunkState, error) {
	query := `
	SELECT id, meeting_id, chunk_seq, job_handle, audio_ref, duration_ms, status, transcript,
		error_message, language_code, created_date, created_at, updated_at
	FROM stt_chunks WHERE meeting_id = ? ORDER BY chunk_seq ASC
	`

	rows, err := mdb.db.QueryContext(ctx, query, meetingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	var chunks []types.ChunkState
	for rows.Next() {
		var (
			c                  types.ChunkState
			status             string
			duration           sql.NullInt64
			transcript, errMsg sql.NullString
			language           sql.NullString
			updatedAt          sql.NullTime
		)
		if err := rows.Scan(&c.ID, &c.MeetingID, &c.ChunkSeq, &c.JobHandle, &c.AudioRef, &duration,
			&status, &transcript, &errMsg, &language, &c.CreatedDate, &c.CreatedAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		c.Status = types.ChunkStatus(status)
		c.DurationMs = duration.Int64
		c.LanguageCode = language.String
		c.UpdatedAt = updatedAt.Time
		if transcript.Valid {
			c.Transcript = &transcript.String
		}
		if errMsg.Valid {
			c.ErrorMessage = &errMsg.String
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	return chunks, nil
}

// MarkResubmitted points a chunk at a new job after its previous job failed.
func (mdb *MetadataDB) MarkResubmitted(ctx context.Context, chunkID int64, jobHandle, errorMessage string) error {
	_, err := mdb.db.ExecContext(ctx, `
	UPDATE stt_chunks SET job_handle = ?, status = ?, error_message = ?, updated_at = ?
	WHERE id = ?
	`, jobHandle, string(types.StatusProcessing), errorMessage, time.Now(), chunkID)
	if err != nil {
		return fmt.Errorf("failed to update chunk %d: %w", chunkID, err)
	}
	return nil
}

// MarkDone stores the chunk transcript and replaces its cue set in one transaction.
func (mdb *MetadataDB) MarkDone(ctx context.Context, chunk types.ChunkState, transcript string, cues []types.Cue) error {
	tx, err := mdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	if _, err := tx.ExecContext(ctx, `
	UPDATE stt_chunks SET status = ?, transcript = ?, error_message = NULL, updated_at = ?
	WHERE id = ?
	`, string(types.StatusDone), transcript, now, chunk.ID); err != nil {
		return fmt.Errorf("failed to update chunk %d: %w", chunk.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM stt_chunk_cues WHERE chunk_id = ?`, chunk.ID); err != nil {
		return fmt.Errorf("failed to delete cues of chunk %d: %w", chunk.ID, err)
	}

	insert := `
	INSERT INTO stt_chunk_cues (meeting_id, chunk_id, chunk_seq, cue_index, start_ms, end_ms, text, speaker, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for i, cue := range cues {
		if _, err := tx.ExecContext(ctx, insert, chunk.MeetingID, chunk.ID, chunk.ChunkSeq, i+1,
			cue.StartMs, cue.EndMs, cue.Text, cue.Speaker, now); err != nil {
			return fmt.Errorf("failed to save cue %d of chunk %d: %w", i+1, chunk.ID, err)
		}
	}
	return tx.Commit()
}

// ChunkCues returns a chunk's cues ordered by cue_index.
func (mdb *MetadataDB) ChunkCues(ctx context.Context, chunkID int64) ([]types.Cue, error) {
	rows, err := mdb.db.QueryContext(ctx, `
	SELECT start_ms, end_ms, text, speaker FROM stt_chunk_cues
	WHERE chunk_id = ? ORDER BY cue_index ASC
	`, chunkID)
	if err != nil {
		return nil, fmt.Errorf("failed to read cues: %w", err)
	}
	defer rows.Close()

	var cues []types.Cue
	for rows.Next() {
		var (
			c       types.Cue
			speaker sql.NullString
		)
		if err := rows.Scan(&c.StartMs, &c.EndMs, &c.Text, &speaker); err != nil {
			return nil, fmt.Errorf("failed to scan cue: %w", err)
		}
		c.Speaker = speaker.String
		cues = append(cues, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cues: %w", err)
	}
	return cues, nil
}

// ListMeetings returns the most recently started meetings.
func (mdb *MetadataDB) ListMeetings(ctx context.Context, limit int) ([]MeetingSummary, error) {
	query := `
	SELECT meeting_id, COUNT(*), SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), MIN(created_at)
	FROM stt_chunks GROUP BY meeting_id ORDER BY MIN(created_at) DESC, meeting_id DESC LIMIT ?
	`

	rows, err := mdb.db.QueryContext(ctx, query, string(types.StatusDone), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list meetings: %w", err)
	}
	defer rows.Close()

	var meetings []MeetingSummary
	for rows.Next() {
		var (
			m         MeetingSummary
			createdAt any
		)
		if err := rows.Scan(&m.MeetingID, &m.TotalChunks, &m.CompletedChunks, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan meeting: %w", err)
		}
		m.CreatedAt = sqliteTime(createdAt)
		meetings = append(meetings, m)
	}
	return meetings, rows.Err()
}

// Close closes the database connection
func (mdb *MetadataDB) Close() error {
	return mdb.db.Close()
}

// sqliteTime converts an aggregate time value, which the driver may hand back
// as text rather than time.Time.
func sqliteTime(v any) time.Time {
	var s string
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return time.Time{}
	}
	if i := strings.Index(s, " m="); i >= 0 {
		s = s[:i]
	}
	for _, layout := range []string{
		"2006-01-02 15:04:05.999999999 -0700 MST",
		"2006-01-02 15:04:05.999999999-07:00",
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

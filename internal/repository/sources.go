package repository

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/cv-extractor/internal/common"
	"github.com/joseph-ayodele/cv-extractor/internal/entity"
)

const sourcesTable = "source_texts"

var sourceColumns = []string{"ref", "user_id", "filename", "body", "content_hash", "created_at"}

// SourceRepository stores pre-extracted CV text. Text satisfies
// extract.TextSource so the queue worker can load job input by ref.
type SourceRepository interface {
	// UpsertByHash stores text for userID unless the same content is already
	// stored for that user, in which case the existing row is returned with dedup=true.
	UpsertByHash(ctx context.Context, userID, filename, text string, at time.Time) (src *entity.SourceText, dedup bool, err error)
	Get(ctx context.Context, ref string) (*entity.SourceText, error)
	Text(ctx context.Context, ref string) (string, error)
}

type sourceRepo struct {
	db  *DB
	log *slog.Logger
}

func NewSourceRepository(db *DB, log *slog.Logger) SourceRepository {
	return &sourceRepo{db: db, log: common.LoggerOrDefault(log)}
}

// HashText returns the hex sha256 of the trimmed text.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}

func (r *sourceRepo) UpsertByHash(ctx context.Context, userID, filename, text string, at time.Time) (*entity.SourceText, bool, error) {
	hash := HashText(text)
	b := r.db.builder()

	existing, err := scanSource(queryRow(ctx, r.db.SQL(),
		b.Select(sourceColumns...).From(b.Table(sourcesTable)).
			Where(entsql.And(entsql.EQ("user_id", userID), entsql.EQ("content_hash", hash)))))
	switch {
	case err == nil:
		r.log.Debug("source text deduplicated", "ref", existing.Ref, "user_id", userID)
		return existing, true, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, false, fmt.Errorf("lookup source text: %w", err)
	}

	src := &entity.SourceText{
		Ref:       uuid.NewString(),
		UserID:    userID,
		Filename:  filename,
		Text:      text,
		HashHex:   hash,
		CreatedAt: at.UTC().Truncate(time.Microsecond),
	}
	ins := b.Insert(sourcesTable).
		Columns(sourceColumns...).
		Values(src.Ref, src.UserID, src.Filename, src.Text, src.HashHex, src.CreatedAt)
	if _, err := exec(ctx, r.db.SQL(), ins); err != nil {
		r.log.Error("source text insert failed", "user_id", userID, "error", err)
		return nil, false, fmt.Errorf("insert source text: %w", err)
	}
	r.log.Info("source text stored", "ref", src.Ref, "user_id", userID, "chars", len(text))
	return src, false, nil
}

func (r *sourceRepo) Get(ctx context.Context, ref string) (*entity.SourceText, error) {
	b := r.db.builder()
	src, err := scanSource(queryRow(ctx, r.db.SQL(),
		b.Select(sourceColumns...).From(b.Table(sourcesTable)).Where(entsql.EQ("ref", ref))))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("source %s: %w", ref, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get source text: %w", err)
	}
	return src, nil
}

func (r *sourceRepo) Text(ctx context.Context, ref string) (string, error) {
	src, err := r.Get(ctx, ref)
	if err != nil {
		return "", err
	}
	return src.Text, nil
}

func scanSource(s rowScanner) (*entity.SourceText, error) {
	var src entity.SourceText
	if err := s.Scan(&src.Ref, &src.UserID, &src.Filename, &src.Text, &src.HashHex, &src.CreatedAt); err != nil {
		return nil, err
	}
	src.CreatedAt = src.CreatedAt.UTC()
	return &src, nil
}

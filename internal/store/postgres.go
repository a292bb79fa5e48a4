// Package store is the Postgres persistence layer for the coordination
// service: bases, chunks, fields, claims and submissions.
package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/wasabipesto/niceengine/pkg/models"
)

//go:embed schema.sql
var schemaSQL string

type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect initializes the connection pool to PostgreSQL using pgx.
func Connect(connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping failed: %v", err)
	}

	log.Println("[store] connected to postgres")
	return &PostgresStore{pool: pool}, nil
}

// Close gracefully closes the connection pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema creates the bases/chunks/fields/claims/submissions tables if
// they do not already exist.
func (s *PostgresStore) InitSchema() error {
	if _, err := s.pool.Exec(context.Background(), schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %v", err)
	}
	log.Println("[store] schema initialized")
	return nil
}

// GetPool exposes the connection pool for subsystems that need raw access
// (metrics collection, health checks).
func (s *PostgresStore) GetPool() *pgxpool.Pool {
	return s.pool
}

// CreateBase inserts a new base search space and returns its assigned ID.
func (s *PostgresStore) CreateBase(ctx context.Context, base models.Base) (int64, error) {
	const sql = `
		INSERT INTO bases (b, range_start, range_end, checked_detailed, checked_niceonly, minimum_cl, niceness_mean, niceness_stdev)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id;
	`
	var id int64
	err := s.pool.QueryRow(ctx, sql, base.B, base.RangeStart, base.RangeEnd,
		base.CheckedDetailed, base.CheckedNiceOnly, base.MinimumCL, base.NicenessMean, base.NicenessStdev).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert base: %v", err)
	}
	return id, nil
}

// ListBases returns every base, ordered by b.
func (s *PostgresStore) ListBases(ctx context.Context) ([]models.Base, error) {
	const sql = `
		SELECT id, b, range_start, range_end, checked_detailed, checked_niceonly, minimum_cl,
		       niceness_mean, niceness_stdev, distribution, numbers
		FROM bases ORDER BY b;
	`
	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to list bases: %v", err)
	}
	defer rows.Close()

	var bases []models.Base
	for rows.Next() {
		var b models.Base
		var distJSON, numJSON []byte
		if err := rows.Scan(&b.ID, &b.B, &b.RangeStart, &b.RangeEnd, &b.CheckedDetailed, &b.CheckedNiceOnly,
			&b.MinimumCL, &b.NicenessMean, &b.NicenessStdev, &distJSON, &numJSON); err != nil {
			return nil, fmt.Errorf("failed to scan base row: %v", err)
		}
		if err := unmarshalRollup(distJSON, numJSON, &b.Distribution, &b.Numbers); err != nil {
			return nil, err
		}
		bases = append(bases, b)
	}
	if bases == nil {
		bases = []models.Base{}
	}
	return bases, nil
}

// GetBase fetches a single base by ID.
func (s *PostgresStore) GetBase(ctx context.Context, baseID int64) (models.Base, error) {
	const sql = `
		SELECT id, b, range_start, range_end, checked_detailed, checked_niceonly, minimum_cl,
		       niceness_mean, niceness_stdev, distribution, numbers
		FROM bases WHERE id = $1;
	`
	var b models.Base
	var distJSON, numJSON []byte
	err := s.pool.QueryRow(ctx, sql, baseID).Scan(&b.ID, &b.B, &b.RangeStart, &b.RangeEnd, &b.CheckedDetailed,
		&b.CheckedNiceOnly, &b.MinimumCL, &b.NicenessMean, &b.NicenessStdev, &distJSON, &numJSON)
	if err != nil {
		return models.Base{}, fmt.Errorf("failed to fetch base %d: %v", baseID, err)
	}
	if err := unmarshalRollup(distJSON, numJSON, &b.Distribution, &b.Numbers); err != nil {
		return models.Base{}, err
	}
	return b, nil
}

// unmarshalRollup decodes the JSONB distribution/numbers columns shared by
// bases and chunks.
func unmarshalRollup(distJSON, numJSON []byte, dist *[]models.DistEntry, nums *[]models.NiceNumber) error {
	if len(distJSON) > 0 {
		if err := json.Unmarshal(distJSON, dist); err != nil {
			return fmt.Errorf("failed to decode rollup distribution: %v", err)
		}
	}
	if len(numJSON) > 0 {
		if err := json.Unmarshal(numJSON, nums); err != nil {
			return fmt.Errorf("failed to decode rollup numbers: %v", err)
		}
	}
	return nil
}

// CreateChunk inserts a new chunk belonging to a base.
func (s *PostgresStore) CreateChunk(ctx context.Context, chunk models.Chunk) (int64, error) {
	const sql = `
		INSERT INTO chunks (base_id, range_start, range_end, checked_detailed, checked_niceonly, minimum_cl, niceness_mean, niceness_stdev)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id;
	`
	var id int64
	err := s.pool.QueryRow(ctx, sql, chunk.BaseID, chunk.RangeStart, chunk.RangeEnd,
		chunk.CheckedDetailed, chunk.CheckedNiceOnly, chunk.MinimumCL, chunk.NicenessMean, chunk.NicenessStdev).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert chunk: %v", err)
	}
	return id, nil
}

// ListChunks returns every chunk belonging to a base, ordered by range_start.
func (s *PostgresStore) ListChunks(ctx context.Context, baseID int64) ([]models.Chunk, error) {
	const sql = `
		SELECT id, base_id, range_start, range_end, checked_detailed, checked_niceonly, minimum_cl,
		       niceness_mean, niceness_stdev, distribution, numbers
		FROM chunks WHERE base_id = $1 ORDER BY range_start;
	`
	rows, err := s.pool.Query(ctx, sql, baseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %v", err)
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var c models.Chunk
		var distJSON, numJSON []byte
		if err := rows.Scan(&c.ID, &c.BaseID, &c.RangeStart, &c.RangeEnd, &c.CheckedDetailed, &c.CheckedNiceOnly,
			&c.MinimumCL, &c.NicenessMean, &c.NicenessStdev, &distJSON, &numJSON); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %v", err)
		}
		if err := unmarshalRollup(distJSON, numJSON, &c.Distribution, &c.Numbers); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	if chunks == nil {
		chunks = []models.Chunk{}
	}
	return chunks, nil
}

// ListAllChunks returns every chunk across all bases, ordered by base then
// range.
func (s *PostgresStore) ListAllChunks(ctx context.Context) ([]models.Chunk, error) {
	const sql = `
		SELECT id, base_id, range_start, range_end, checked_detailed, checked_niceonly, minimum_cl,
		       niceness_mean, niceness_stdev, distribution, numbers
		FROM chunks ORDER BY base_id, range_start;
	`
	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %v", err)
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var c models.Chunk
		var distJSON, numJSON []byte
		if err := rows.Scan(&c.ID, &c.BaseID, &c.RangeStart, &c.RangeEnd, &c.CheckedDetailed, &c.CheckedNiceOnly,
			&c.MinimumCL, &c.NicenessMean, &c.NicenessStdev, &distJSON, &numJSON); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %v", err)
		}
		if err := unmarshalRollup(distJSON, numJSON, &c.Distribution, &c.Numbers); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	if chunks == nil {
		chunks = []models.Chunk{}
	}
	return chunks, nil
}

// SeedFields bulk-inserts contiguous Fields for a chunk in a single
// transaction, one row per field.
func (s *PostgresStore) SeedFields(ctx context.Context, fields []models.Field) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const sql = `
		INSERT INTO fields (base_id, chunk_id, range_start, range_end, check_level, prioritize)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	for _, f := range fields {
		if _, err := tx.Exec(ctx, sql, f.BaseID, f.ChunkID, f.RangeStart, f.RangeEnd, f.CheckLevel, f.Prioritize); err != nil {
			return fmt.Errorf("failed to insert field: %v", err)
		}
	}
	return tx.Commit(ctx)
}

// ErrNoFieldAvailable is returned by ClaimField when no field satisfies the
// requested selection policy.
var ErrNoFieldAvailable = fmt.Errorf("no field available for claim")

// ClaimField atomically selects and leases one field for the given mode,
// using SELECT ... FOR UPDATE SKIP LOCKED so concurrent claimants never
// double-assign the same field. selectSQL must project id, base_id,
// chunk_id, range_start, range_end, check_level and prioritize, in that
// order, for at most one field, and is provided by the caller (coordinator
// package) so it can encode Normal/Thin/Prioritized selection policy without
// this package knowing about request-level concerns.
func (s *PostgresStore) ClaimField(ctx context.Context, mode models.Mode, userIP string, selectSQL string, args ...any) (models.Field, int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return models.Field{}, 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var f models.Field
	row := tx.QueryRow(ctx, selectSQL, args...)
	if err := row.Scan(&f.ID, &f.BaseID, &f.ChunkID, &f.RangeStart, &f.RangeEnd, &f.CheckLevel, &f.Prioritize); err != nil {
		if err == pgx.ErrNoRows {
			return models.Field{}, 0, ErrNoFieldAvailable
		}
		return models.Field{}, 0, fmt.Errorf("failed to select field for claim: %v", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE fields SET last_claim_time = NOW() WHERE id = $1`, f.ID); err != nil {
		return models.Field{}, 0, fmt.Errorf("failed to stamp claim time: %v", err)
	}

	var claimID int64
	const insertClaim = `
		INSERT INTO claims (field_id, search_mode, user_ip)
		VALUES ($1, $2, $3)
		RETURNING id;
	`
	if err := tx.QueryRow(ctx, insertClaim, f.ID, string(mode), userIP).Scan(&claimID); err != nil {
		return models.Field{}, 0, fmt.Errorf("failed to insert claim: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Field{}, 0, err
	}
	now := time.Now()
	f.LastClaimTime = &now
	return f, claimID, nil
}

// GetField fetches a single field by ID.
func (s *PostgresStore) GetField(ctx context.Context, fieldID int64) (models.Field, error) {
	const sql = `
		SELECT id, base_id, chunk_id, range_start, range_end, check_level, canon_submission_id, last_claim_time, prioritize
		FROM fields WHERE id = $1;
	`
	var f models.Field
	err := s.pool.QueryRow(ctx, sql, fieldID).Scan(&f.ID, &f.BaseID, &f.ChunkID, &f.RangeStart, &f.RangeEnd,
		&f.CheckLevel, &f.CanonSubmissionID, &f.LastClaimTime, &f.Prioritize)
	if err != nil {
		return models.Field{}, fmt.Errorf("failed to fetch field %d: %v", fieldID, err)
	}
	return f, nil
}

// GetClaim fetches a single claim by ID.
func (s *PostgresStore) GetClaim(ctx context.Context, claimID int64) (models.Claim, error) {
	const sql = `SELECT id, field_id, search_mode, claim_time, user_ip FROM claims WHERE id = $1;`
	var c models.Claim
	var mode string
	err := s.pool.QueryRow(ctx, sql, claimID).Scan(&c.ID, &c.FieldID, &mode, &c.ClaimTime, &c.UserIP)
	if err != nil {
		return models.Claim{}, fmt.Errorf("failed to fetch claim %d: %v", claimID, err)
	}
	c.SearchMode = models.Mode(mode)
	return c, nil
}

// ListSubmissionsForField returns every non-disqualified submission on a
// field for a given mode, used by the consensus check in the submit path.
func (s *PostgresStore) ListSubmissionsForField(ctx context.Context, fieldID int64, mode models.Mode) ([]models.Submission, error) {
	const sql = `
		SELECT id, claim_id, field_id, search_mode, submit_time, elapsed_secs, username, client_version, disqualified, distribution, numbers
		FROM submissions WHERE field_id = $1 AND search_mode = $2 AND disqualified = FALSE
		ORDER BY submit_time;
	`
	rows, err := s.pool.Query(ctx, sql, fieldID, string(mode))
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %v", err)
	}
	defer rows.Close()

	var subs []models.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (models.Submission, error) {
	var sub models.Submission
	var mode string
	var distJSON, numJSON []byte
	err := row.Scan(&sub.ID, &sub.ClaimID, &sub.FieldID, &mode, &sub.SubmitTime, &sub.ElapsedSecs,
		&sub.Username, &sub.ClientVersion, &sub.Disqualified, &distJSON, &numJSON)
	if err != nil {
		return models.Submission{}, fmt.Errorf("failed to scan submission: %v", err)
	}
	sub.SearchMode = models.Mode(mode)
	if len(distJSON) > 0 {
		if err := json.Unmarshal(distJSON, &sub.Distribution); err != nil {
			return models.Submission{}, fmt.Errorf("failed to decode submission distribution: %v", err)
		}
	}
	if err := json.Unmarshal(numJSON, &sub.Numbers); err != nil {
		return models.Submission{}, fmt.Errorf("failed to decode submission numbers: %v", err)
	}
	return sub, nil
}

// InsertSubmission persists a submitted result, marking it disqualified if
// the caller already determined it fails validation against the claim or an
// existing canonical submission.
func (s *PostgresStore) InsertSubmission(ctx context.Context, sub models.Submission) (int64, error) {
	distJSON, err := json.Marshal(sub.Distribution)
	if err != nil {
		return 0, fmt.Errorf("failed to encode distribution: %v", err)
	}
	numJSON, err := json.Marshal(sub.Numbers)
	if err != nil {
		return 0, fmt.Errorf("failed to encode numbers: %v", err)
	}

	const sql = `
		INSERT INTO submissions (claim_id, field_id, search_mode, elapsed_secs, username, client_version, disqualified, distribution, numbers)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id;
	`
	var id int64
	err = s.pool.QueryRow(ctx, sql, sub.ClaimID, sub.FieldID, string(sub.SearchMode), sub.ElapsedSecs,
		sub.Username, sub.ClientVersion, sub.Disqualified, distJSON, numJSON).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert submission: %v", err)
	}
	return id, nil
}

// ErrNoCanonSubmission is returned by GetCanonSubmission when the field has
// not yet been promoted to a canonical result.
var ErrNoCanonSubmission = fmt.Errorf("field has no canonical submission")

// GetCanonSubmission fetches the submission currently pointed to by a
// field's canon_submission_id, used by the claim/submit API's cross-client
// validation lookup.
func (s *PostgresStore) GetCanonSubmission(ctx context.Context, fieldID int64) (models.Submission, error) {
	const sql = `
		SELECT s.id, s.claim_id, s.field_id, s.search_mode, s.submit_time, s.elapsed_secs,
		       s.username, s.client_version, s.disqualified, s.distribution, s.numbers
		FROM submissions s
		JOIN fields f ON f.canon_submission_id = s.id
		WHERE f.id = $1;
	`
	var sub models.Submission
	var mode string
	var distJSON, numJSON []byte
	err := s.pool.QueryRow(ctx, sql, fieldID).Scan(&sub.ID, &sub.ClaimID, &sub.FieldID, &mode, &sub.SubmitTime,
		&sub.ElapsedSecs, &sub.Username, &sub.ClientVersion, &sub.Disqualified, &distJSON, &numJSON)
	if err != nil {
		if err == pgx.ErrNoRows {
			return models.Submission{}, ErrNoCanonSubmission
		}
		return models.Submission{}, fmt.Errorf("failed to fetch canon submission for field %d: %v", fieldID, err)
	}
	sub.SearchMode = models.Mode(mode)
	if len(distJSON) > 0 {
		if err := json.Unmarshal(distJSON, &sub.Distribution); err != nil {
			return models.Submission{}, fmt.Errorf("failed to decode canon distribution: %v", err)
		}
	}
	if err := json.Unmarshal(numJSON, &sub.Numbers); err != nil {
		return models.Submission{}, fmt.Errorf("failed to decode canon numbers: %v", err)
	}
	return sub, nil
}

// PromoteCanon marks submissionID as the canonical result for fieldID and
// advances the field's check_level. Both updates happen in one transaction
// so a crash can never leave check_level advanced without a canon pointer.
func (s *PostgresStore) PromoteCanon(ctx context.Context, fieldID, submissionID int64, newLevel int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const sql = `UPDATE fields SET canon_submission_id = $1, check_level = $2 WHERE id = $3;`
	if _, err := tx.Exec(ctx, sql, submissionID, newLevel, fieldID); err != nil {
		return fmt.Errorf("failed to promote canon submission: %v", err)
	}
	return tx.Commit(ctx)
}

// notableNumbersPerChunk and notableNumbersPerBase bound how many near-miss
// and nice numbers a chunk/base rollup carries. Numbers are downsampled by
// keeping the HIGHEST num_uniques (niceness), never by magnitude, so the
// dashboard always surfaces the closest-to-nice finds first.
const (
	notableNumbersPerChunk = 25
	notableNumbersPerBase  = 50
)

// mergeDistribution folds one num_uniques histogram into a running total
// keyed by bucket, so chunk-field and chunk-base rollups can combine many
// submissions' histograms without re-scanning raw candidates.
func mergeDistribution(totals map[int]int64, dist []models.DistEntry) {
	for _, d := range dist {
		totals[d.NumUniques] += d.Count
	}
}

// distributionStats computes the mean and standard deviation of niceness
// (num_uniques / b) from a num_uniques histogram, weighting each bucket by
// its count so the result matches what a flat scan over every candidate
// would produce.
func distributionStats(totals map[int]int64, b int64) (mean, stdev float64) {
	var count, sum, sumSq float64
	for numUniques, n := range totals {
		niceness := float64(numUniques) / float64(b)
		weight := float64(n)
		count += weight
		sum += niceness * weight
		sumSq += niceness * niceness * weight
	}
	if count == 0 {
		return 0, 0
	}
	mean = sum / count
	variance := sumSq/count - mean*mean
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance)
}

// sortedDistribution returns totals as a slice ordered by num_uniques,
// suitable for JSON encoding into the distribution column.
func sortedDistribution(totals map[int]int64) []models.DistEntry {
	out := make([]models.DistEntry, 0, len(totals))
	for numUniques, n := range totals {
		out = append(out, models.DistEntry{NumUniques: numUniques, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NumUniques < out[j].NumUniques })
	return out
}

// topNotableNumbers keeps the k numbers with the highest NumUniques,
// deduplicating by decimal string so a number resubmitted across canon
// promotions doesn't crowd out distinct finds.
func topNotableNumbers(numbers []models.NiceNumber, k int) []models.NiceNumber {
	seen := make(map[string]bool, len(numbers))
	dedup := make([]models.NiceNumber, 0, len(numbers))
	for _, n := range numbers {
		key := n.Number.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		dedup = append(dedup, n)
	}
	sort.Slice(dedup, func(i, j int) bool { return dedup[i].NumUniques > dedup[j].NumUniques })
	if len(dedup) > k {
		dedup = dedup[:k]
	}
	return dedup
}

// RecomputeChunkStats folds the canon submissions of every field in a chunk
// into the chunk's rolled-up checked ranges, niceness statistics,
// distribution histogram and notable numbers. It is idempotent: running it
// twice with no new canon submissions leaves the chunk row unchanged.
func (s *PostgresStore) RecomputeChunkStats(ctx context.Context, chunkID int64) error {
	const selectBase = `SELECT b.b FROM chunks c JOIN bases b ON b.id = c.base_id WHERE c.id = $1;`
	var b int64
	if err := s.pool.QueryRow(ctx, selectBase, chunkID).Scan(&b); err != nil {
		return fmt.Errorf("failed to load chunk's base: %v", err)
	}

	const selectFields = `
		SELECT f.range_start, f.range_end, f.check_level, s.distribution, s.numbers
		FROM fields f
		LEFT JOIN submissions s ON s.id = f.canon_submission_id
		WHERE f.chunk_id = $1;
	`
	rows, err := s.pool.Query(ctx, selectFields, chunkID)
	if err != nil {
		return fmt.Errorf("failed to load chunk fields: %v", err)
	}
	defer rows.Close()

	checkedDetailed := decimal.Zero
	checkedNiceOnly := decimal.Zero
	minLevel := -1
	distTotals := make(map[int]int64)
	var numbers []models.NiceNumber

	for rows.Next() {
		var rangeStart, rangeEnd decimal.Decimal
		var level int
		var distJSON, numJSON []byte
		if err := rows.Scan(&rangeStart, &rangeEnd, &level, &distJSON, &numJSON); err != nil {
			return fmt.Errorf("failed to scan chunk field row: %v", err)
		}
		size := rangeEnd.Sub(rangeStart)
		if level >= 1 {
			checkedNiceOnly = checkedNiceOnly.Add(size)
		}
		if level >= 2 {
			checkedDetailed = checkedDetailed.Add(size)
			var dist []models.DistEntry
			if len(distJSON) > 0 {
				_ = json.Unmarshal(distJSON, &dist)
			}
			mergeDistribution(distTotals, dist)
		}
		if len(numJSON) > 0 {
			var fieldNumbers []models.NiceNumber
			if err := json.Unmarshal(numJSON, &fieldNumbers); err == nil {
				numbers = append(numbers, fieldNumbers...)
			}
		}
		if minLevel == -1 || level < minLevel {
			minLevel = level
		}
	}
	if minLevel == -1 {
		minLevel = 0
	}

	mean, stdev := distributionStats(distTotals, b)
	distJSON, err := json.Marshal(sortedDistribution(distTotals))
	if err != nil {
		return fmt.Errorf("failed to encode chunk distribution: %v", err)
	}
	numJSON, err := json.Marshal(topNotableNumbers(numbers, notableNumbersPerChunk))
	if err != nil {
		return fmt.Errorf("failed to encode chunk numbers: %v", err)
	}

	const update = `
		UPDATE chunks SET checked_detailed = $1, checked_niceonly = $2, minimum_cl = $3,
		                   niceness_mean = $4, niceness_stdev = $5, distribution = $6, numbers = $7
		WHERE id = $8;
	`
	if _, err := s.pool.Exec(ctx, update, checkedDetailed, checkedNiceOnly, minLevel,
		mean, stdev, distJSON, numJSON, chunkID); err != nil {
		return fmt.Errorf("failed to update chunk stats: %v", err)
	}
	return nil
}

// RecomputeBaseStats folds every chunk belonging to a base into the base's
// own rolled-up statistics, re-deriving niceness_mean/niceness_stdev from the
// merged distribution rather than averaging the chunks' means, since a
// straight mean-of-means would misweight chunks with unequal checked ranges.
// Like RecomputeChunkStats, safe to run repeatedly with no intervening
// writes.
func (s *PostgresStore) RecomputeBaseStats(ctx context.Context, baseID int64) error {
	var b int64
	if err := s.pool.QueryRow(ctx, `SELECT b FROM bases WHERE id = $1;`, baseID).Scan(&b); err != nil {
		return fmt.Errorf("failed to load base: %v", err)
	}

	const sql = `SELECT checked_detailed, checked_niceonly, minimum_cl, distribution, numbers FROM chunks WHERE base_id = $1;`
	rows, err := s.pool.Query(ctx, sql, baseID)
	if err != nil {
		return fmt.Errorf("failed to load base's chunks: %v", err)
	}
	defer rows.Close()

	checkedDetailed := decimal.Zero
	checkedNiceOnly := decimal.Zero
	minLevel := -1
	distTotals := make(map[int]int64)
	var numbers []models.NiceNumber

	for rows.Next() {
		var cd, cn decimal.Decimal
		var level int
		var distJSON, numJSON []byte
		if err := rows.Scan(&cd, &cn, &level, &distJSON, &numJSON); err != nil {
			return fmt.Errorf("failed to scan base chunk row: %v", err)
		}
		checkedDetailed = checkedDetailed.Add(cd)
		checkedNiceOnly = checkedNiceOnly.Add(cn)
		if minLevel == -1 || level < minLevel {
			minLevel = level
		}
		var dist []models.DistEntry
		if len(distJSON) > 0 {
			_ = json.Unmarshal(distJSON, &dist)
		}
		mergeDistribution(distTotals, dist)
		if len(numJSON) > 0 {
			var chunkNumbers []models.NiceNumber
			if err := json.Unmarshal(numJSON, &chunkNumbers); err == nil {
				numbers = append(numbers, chunkNumbers...)
			}
		}
	}
	if minLevel == -1 {
		minLevel = 0
	}

	mean, stdev := distributionStats(distTotals, b)
	distJSON, err := json.Marshal(sortedDistribution(distTotals))
	if err != nil {
		return fmt.Errorf("failed to encode base distribution: %v", err)
	}
	numJSON, err := json.Marshal(topNotableNumbers(numbers, notableNumbersPerBase))
	if err != nil {
		return fmt.Errorf("failed to encode base numbers: %v", err)
	}

	const update = `
		UPDATE bases SET checked_detailed = $1, checked_niceonly = $2, minimum_cl = $3,
		                  niceness_mean = $4, niceness_stdev = $5, distribution = $6, numbers = $7
		WHERE id = $8;
	`
	if _, err := s.pool.Exec(ctx, update, checkedDetailed, checkedNiceOnly, minLevel,
		mean, stdev, distJSON, numJSON, baseID); err != nil {
		return fmt.Errorf("failed to update base stats: %v", err)
	}
	return nil
}

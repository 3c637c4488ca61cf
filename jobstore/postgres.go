package jobstore

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ttc-protocol/ttc-monitor/common"
	"github.com/ttc-protocol/ttc-monitor/log"
	"github.com/ttc-protocol/ttc-monitor/ttcerr"
)

var logger = log.NewModuleLogger(log.JobStore)

const uniqueViolation = "23505"

// PostgresJobStore is the production JobStore, backed by pgx's native
// connection pool. The queue depends on two Postgres-specific
// primitives: LISTEN/NOTIFY for change propagation and
// SELECT ... FOR UPDATE SKIP LOCKED for the claim path.
type PostgresJobStore struct {
	pool     *pgxpool.Pool
	listener *Listener
}

func DialPostgres(ctx context.Context, dsn string) (*PostgresJobStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, ttcerr.Wrap(err, ttcerr.FatalProcess, ttcerr.TagSchemaMissing, "")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, ttcerr.Wrap(err, ttcerr.FatalProcess, ttcerr.TagSchemaMissing, "")
	}
	return &PostgresJobStore{pool: pool, listener: newListener(dsn)}, nil
}

func (s *PostgresJobStore) Close() {
	if s.listener != nil {
		s.listener.Close()
	}
	s.pool.Close()
}

func (s *PostgresJobStore) CreateJob(ctx context.Context, address common.Address, chainID uint64, block uint64) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO prover_jobs (contract_address, chain_id, block_number, status)
		VALUES ($1, $2, $3, 'pending')
		RETURNING id`,
		address.Bytes(), chainID, block,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, ttcerr.New(ttcerr.InvalidInput, ttcerr.TagDuplicateJob, address.Hex(),
				"a pending or in-progress job already exists for block %d", block)
		}
		return 0, ttcerr.Wrap(err, ttcerr.Transient, ttcerr.TagSchemaMissing, address.Hex())
	}
	return id, nil
}

// ClaimNext nests the SELECT ... FOR UPDATE SKIP LOCKED inside the
// status-flipping UPDATE so both commit atomically: two workers racing
// this query never land on the same row.
func (s *PostgresJobStore) ClaimNext(ctx context.Context) (*Job, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE prover_jobs
		SET status = 'in_progress', updated_at = now()
		WHERE id = (
			SELECT id FROM prover_jobs
			WHERE status = 'pending'
			ORDER BY created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, contract_address, chain_id, block_number, status,
		          created_at, updated_at, proof_blob, journal_blob, error_text`)

	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, ttcerr.Wrap(err, ttcerr.Transient, ttcerr.TagSchemaMissing, "")
	}
	return job, nil
}

func (s *PostgresJobStore) Complete(ctx context.Context, id int64, proof, journal []byte) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE prover_jobs
		SET status = 'completed', proof_blob = $2, journal_blob = $3, updated_at = now()
		WHERE id = $1 AND status = 'in_progress'`,
		id, proof, journal)
	if err != nil {
		return ttcerr.Wrap(err, ttcerr.Transient, ttcerr.TagSchemaMissing, idStr(id))
	}
	if tag.RowsAffected() == 0 {
		return ttcerr.New(ttcerr.InvalidInput, ttcerr.TagNotInProgress, idStr(id), "job is not in progress")
	}
	return nil
}

func (s *PostgresJobStore) Fail(ctx context.Context, id int64, errText string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE prover_jobs
		SET status = 'failed', error_text = $2, updated_at = now()
		WHERE id = $1 AND status = 'in_progress'`,
		id, errText)
	if err != nil {
		return ttcerr.Wrap(err, ttcerr.Transient, ttcerr.TagSchemaMissing, idStr(id))
	}
	if tag.RowsAffected() == 0 {
		return ttcerr.New(ttcerr.InvalidInput, ttcerr.TagNotInProgress, idStr(id), "job is not in progress")
	}
	return nil
}

func (s *PostgresJobStore) Get(ctx context.Context, id int64) (*Job, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, contract_address, chain_id, block_number, status,
		       created_at, updated_at, proof_blob, journal_blob, error_text
		FROM prover_jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ttcerr.New(ttcerr.InvalidInput, ttcerr.TagUnknownJob, idStr(id), "no such job")
	}
	if err != nil {
		return nil, ttcerr.Wrap(err, ttcerr.Transient, ttcerr.TagSchemaMissing, idStr(id))
	}
	return job, nil
}

func (s *PostgresJobStore) FindByKey(ctx context.Context, key Key) (*Job, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, contract_address, chain_id, block_number, status,
		       created_at, updated_at, proof_blob, journal_blob, error_text
		FROM prover_jobs
		WHERE contract_address = $1 AND block_number = $2
		ORDER BY created_at DESC LIMIT 1`,
		key.ContractAddress.Bytes(), key.BlockNumber)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ttcerr.New(ttcerr.InvalidInput, ttcerr.TagUnknownJob, key.ContractAddress.Hex(), "no such job")
	}
	if err != nil {
		return nil, ttcerr.Wrap(err, ttcerr.Transient, ttcerr.TagSchemaMissing, key.ContractAddress.Hex())
	}
	return job, nil
}

// ReclaimStale recovers rows left InProgress by a worker that crashed
// mid-job. There are no worker heartbeats; recovery is age-based.
func (s *PostgresJobStore) ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE prover_jobs
		SET status = 'pending', updated_at = now()
		WHERE status = 'in_progress' AND updated_at < now() - $1::interval`,
		olderThan.String())
	if err != nil {
		return 0, ttcerr.Wrap(err, ttcerr.Transient, ttcerr.TagSchemaMissing, "")
	}
	n := int(tag.RowsAffected())
	if n > 0 {
		logger.Warn("reclaimed stale in-progress jobs", "count", n, "olderThan", olderThan)
	}
	return n, nil
}

func (s *PostgresJobStore) Subscribe(ctx context.Context) (<-chan StatusEvent, error) {
	return s.listener.Subscribe(ctx)
}

func (s *PostgresJobStore) PendingCount(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM prover_jobs WHERE status = 'pending'`).Scan(&n)
	if err != nil {
		return 0, ttcerr.Wrap(err, ttcerr.Transient, ttcerr.TagSchemaMissing, "")
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		j        Job
		addr     []byte
		statusS  string
		proof    []byte
		journal  []byte
		errText  *string
	)
	err := row.Scan(&j.ID, &addr, &j.ChainID, &j.BlockNumber, &statusS,
		&j.CreatedAt, &j.UpdatedAt, &proof, &journal, &errText)
	if err != nil {
		return nil, err
	}
	j.ContractAddress = common.BytesToAddress(addr)
	j.Status = Status(statusS)
	j.ProofBlob = proof
	j.JournalBlob = journal
	if errText != nil {
		j.ErrorText = *errText
	}
	return &j, nil
}

func idStr(id int64) string {
	return strconv.FormatInt(id, 10)
}

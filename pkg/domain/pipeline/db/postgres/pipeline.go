package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"

	kpool "github.com/modelyard/modelyard/pkg/conn/db/postgres/pool"
	"github.com/modelyard/modelyard/pkg/domain"
	kdb "github.com/modelyard/modelyard/pkg/domain/pipeline/db"
	xe "github.com/modelyard/modelyard/pkg/errors"
)

// a struct for DB operations related to pipeline records
type pipelinePG struct { // implements kdb.PipelineInterface
	pool kpool.Pool
}

func New(pool kpool.Pool) *pipelinePG {
	return &pipelinePG{pool: pool}
}

var _ kdb.PipelineInterface = &pipelinePG{}

const selectColumns = `
	"asset_type_id", "component_id", "feature_attributes", "data_threshold",
	"run_frequency", "current_run", "last_run", "last_pipeline_run", "init_artifacts"
`

func (m *pipelinePG) GetAll(ctx context.Context) ([]domain.PipelineRecord, error) {
	rows, err := m.pool.Query(
		ctx, `select `+selectColumns+` from "ml_pipelines";`,
	)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer rows.Close()

	records := []domain.PipelineRecord{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, xe.Wrap(err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, xe.Wrap(err)
	}
	return records, nil
}

func (m *pipelinePG) Get(ctx context.Context, assetTypeId, componentId string) (domain.PipelineRecord, error) {
	row := m.pool.QueryRow(
		ctx,
		`select `+selectColumns+` from "ml_pipelines"
		where "asset_type_id" = $1 and "component_id" = $2;`,
		assetTypeId, componentId,
	)
	r, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PipelineRecord{}, fmt.Errorf(
				"%w: pipeline %s/%s", domain.ErrMissing, assetTypeId, componentId,
			)
		}
		return domain.PipelineRecord{}, xe.Wrap(err)
	}
	return r, nil
}

func (m *pipelinePG) Create(ctx context.Context, record domain.PipelineRecord) error {
	attrs := textArray(record.FeatureAttributes)

	_, err := m.pool.Exec(
		ctx,
		`insert into "ml_pipelines" (
			"asset_type_id", "component_id", "feature_attributes", "data_threshold",
			"run_frequency", "current_run", "last_run", "last_pipeline_run", "init_artifacts"
		) values ($1, $2, $3, $4, $5, $6, $7, $8, $9);`,
		record.AssetTypeId, record.ComponentId, attrs, record.DataThreshold,
		string(record.RunFrequency), record.RunId.CurrentRun, record.RunId.LastRun,
		record.LastPipelineRun, record.InitArtifacts,
	)
	if err != nil {
		pgerr := new(pgconn.PgError)
		if errors.As(err, &pgerr) && pgerr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf(
				"%w: pipeline %s/%s", domain.ErrAlreadyExists,
				record.AssetTypeId, record.ComponentId,
			)
		}
		return xe.Wrap(err)
	}
	return nil
}

func (m *pipelinePG) Update(
	ctx context.Context, assetTypeId, componentId string, attributes domain.PipelineAttributes,
) error {
	sets := []string{}
	params := []interface{}{assetTypeId, componentId}

	if attributes.FeatureAttributes != nil {
		params = append(params, textArray(attributes.FeatureAttributes))
		sets = append(sets, fmt.Sprintf(`"feature_attributes" = $%d`, len(params)))
	}
	if attributes.DataThreshold != nil {
		params = append(params, *attributes.DataThreshold)
		sets = append(sets, fmt.Sprintf(`"data_threshold" = $%d`, len(params)))
	}
	if attributes.RunFrequency != nil {
		params = append(params, string(*attributes.RunFrequency))
		sets = append(sets, fmt.Sprintf(`"run_frequency" = $%d`, len(params)))
	}
	if len(sets) == 0 {
		// nothing to update. check existence only.
		_, err := m.Get(ctx, assetTypeId, componentId)
		return err
	}

	tag, err := m.pool.Exec(
		ctx,
		`update "ml_pipelines" set `+strings.Join(sets, ", ")+`
		where "asset_type_id" = $1 and "component_id" = $2;`,
		params...,
	)
	if err != nil {
		return xe.Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: pipeline %s/%s", domain.ErrMissing, assetTypeId, componentId)
	}
	return nil
}

func (m *pipelinePG) UpdateAll(ctx context.Context, records []domain.PipelineRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return xe.Wrap(err)
	}
	defer tx.Rollback(ctx)

	for _, r := range records {
		if _, err := tx.Exec(
			ctx,
			`update "ml_pipelines" set
				"feature_attributes" = $3, "data_threshold" = $4, "run_frequency" = $5,
				"current_run" = $6, "last_run" = $7, "last_pipeline_run" = $8,
				"init_artifacts" = $9
			where "asset_type_id" = $1 and "component_id" = $2;`,
			r.AssetTypeId, r.ComponentId, textArray(r.FeatureAttributes), r.DataThreshold,
			string(r.RunFrequency), r.RunId.CurrentRun, r.RunId.LastRun,
			r.LastPipelineRun, r.InitArtifacts,
		); err != nil {
			return xe.Wrap(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return xe.Wrap(err)
	}
	return nil
}

func (m *pipelinePG) SetInitArtifacts(
	ctx context.Context, assetTypeId, componentId string, initArtifacts bool,
) error {
	tag, err := m.pool.Exec(
		ctx,
		`update "ml_pipelines" set "init_artifacts" = $3
		where "asset_type_id" = $1 and "component_id" = $2;`,
		assetTypeId, componentId, initArtifacts,
	)
	if err != nil {
		return xe.Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: pipeline %s/%s", domain.ErrMissing, assetTypeId, componentId)
	}
	return nil
}

func (m *pipelinePG) Delete(ctx context.Context, assetTypeId, componentId string) error {
	_, err := m.pool.Exec(
		ctx,
		`delete from "ml_pipelines"
		where "asset_type_id" = $1 and "component_id" = $2;`,
		assetTypeId, componentId,
	)
	if err != nil {
		return xe.Wrap(err)
	}
	return nil
}

func scanRecord(row pgx.Row) (domain.PipelineRecord, error) {
	r := domain.PipelineRecord{}

	var attrs pgtype.TextArray
	var frequency string
	var threshold *int
	var lastRun *time.Time

	if err := row.Scan(
		&r.AssetTypeId, &r.ComponentId, &attrs, &threshold,
		&frequency, &r.RunId.CurrentRun, &r.RunId.LastRun, &lastRun, &r.InitArtifacts,
	); err != nil {
		return domain.PipelineRecord{}, err
	}

	if err := attrs.AssignTo(&r.FeatureAttributes); err != nil {
		return domain.PipelineRecord{}, err
	}
	f, err := domain.AsRunFrequency(frequency)
	if err != nil {
		return domain.PipelineRecord{}, err
	}
	r.RunFrequency = f
	r.DataThreshold = threshold
	r.LastPipelineRun = lastRun

	return r, nil
}

func textArray(elements []string) pgtype.TextArray {
	ta := pgtype.TextArray{}
	if elements == nil {
		elements = []string{}
	}
	// Set on []string never fails.
	_ = ta.Set(elements)
	return ta
}

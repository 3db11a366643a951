// Package lifecycle sweeps the pipeline fleet once per task invocation and
// moves every record towards its desired state:
//
//   - orphaned records (no feature attributes) get their jobs killed and the
//     record deleted,
//   - healthy records start a new training run when enough telemetry has
//     accumulated and the schedule allows, superseding the previous run.
//
// Remote side effects are applied record by record; a record whose side
// effects fail is skipped and picked up again next sweep. Database state is
// persisted in one batch at the end of the sweep, and only that persist
// failure makes the sweep itself fail.
package lifecycle

import (
	"context"
	"log"
	"time"

	"github.com/modelyard/modelyard/cmd/loops/recurring"
	"github.com/modelyard/modelyard/pkg/domain"
	"github.com/modelyard/modelyard/pkg/domain/analytics"
	"github.com/modelyard/modelyard/pkg/domain/schedule"
	"github.com/modelyard/modelyard/pkg/domain/trainer"
	"github.com/modelyard/modelyard/pkg/utils/pointer"

	kdb "github.com/modelyard/modelyard/pkg/domain/pipeline/db"
)

func Seed() struct{} {
	return struct{}{}
}

type Manager struct {
	pipelines kdb.PipelineInterface
	threshold *analytics.ThresholdEvaluator
	trainer   trainer.Interface
	logger    *log.Logger
	now       func() time.Time
}

func NewManager(
	pipelines kdb.PipelineInterface,
	threshold *analytics.ThresholdEvaluator,
	trainer trainer.Interface,
	logger *log.Logger,
) *Manager {
	return &Manager{
		pipelines: pipelines,
		threshold: threshold,
		trainer:   trainer,
		logger:    logger,
		now:       time.Now,
	}
}

// SetClock replaces the manager's clock. For testing schedule decisions.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// Task wraps one fleet sweep as a recurring task.
func Task(m *Manager) recurring.Task[struct{}] {
	return func(ctx context.Context, value struct{}) (struct{}, bool, error) {
		updated, err := m.Cycle(ctx)
		return value, updated, err
	}
}

// Cycle sweeps every pipeline record once.
//
// # Returns
//
// - bool: true when any record was started, torn down, or otherwise changed
//
// - error: fetching the fleet or persisting the batched updates failed.
// Per-record trouble is logged and deferred to the next sweep instead.
func (m *Manager) Cycle(ctx context.Context) (bool, error) {
	records, err := m.pipelines.GetAll(ctx)
	if err != nil {
		return false, err
	}

	updated := []domain.PipelineRecord{}
	tornDown := false
	for _, record := range records {
		if record.Orphaned() {
			if m.teardown(ctx, record) {
				tornDown = true
			}
			continue
		}

		next, changed := m.train(ctx, record)
		if changed {
			updated = append(updated, next)
		}
	}

	if len(updated) == 0 {
		return tornDown, nil
	}
	if err := m.pipelines.UpdateAll(ctx, updated); err != nil {
		return true, err
	}
	return true, nil
}

// teardown kills both tracked jobs of an orphaned record, then deletes it.
// Reports whether the record is gone.
func (m *Manager) teardown(ctx context.Context, record domain.PipelineRecord) bool {
	m.logger.Printf("tearing down orphaned %s", record.String())

	for _, jobId := range []string{record.RunId.CurrentRun, record.RunId.LastRun} {
		msg, err := m.trainer.Kill(ctx, jobId)
		if err != nil {
			m.logger.Printf("teardown of %s postponed: kill %s: %s", record.String(), jobId, err)
			return false
		}
		m.logger.Printf("teardown of %s: %s", record.String(), msg)
	}

	if err := m.pipelines.Delete(ctx, record.AssetTypeId, record.ComponentId); err != nil {
		m.logger.Printf("teardown of %s postponed: delete: %s", record.String(), err)
		return false
	}
	return true
}

// train starts a new run for a record when it is due, superseding the
// previous one. Returns the updated record and whether it changed.
func (m *Manager) train(ctx context.Context, record domain.PipelineRecord) (domain.PipelineRecord, bool) {
	if !m.threshold.IsMet(ctx, record) {
		return record, false
	}
	if !schedule.IsDue(record.LastPipelineRun, record.RunFrequency, m.now()) {
		return record, false
	}

	// the run about to fall off the end of the pair goes first, so that at
	// most two jobs per pipeline ever exist
	msg, err := m.trainer.Kill(ctx, record.RunId.LastRun)
	if err != nil {
		m.logger.Printf("run of %s postponed: kill %s: %s", record.String(), record.RunId.LastRun, err)
		return record, false
	}
	m.logger.Printf("%s: %s", record.String(), msg)

	jobId, err := m.trainer.Start(ctx, trainer.JobSpec{
		AssetTypeId: record.AssetTypeId,
		ComponentId: record.ComponentId,
		Features:    record.FeatureAttributes,
	})
	if err != nil {
		m.logger.Printf("run of %s postponed: start: %s", record.String(), err)
		return record, false
	}
	m.logger.Printf("%s: started job %s", record.String(), jobId)

	record.RunId.LastRun = record.RunId.CurrentRun
	record.RunId.CurrentRun = jobId
	record.LastPipelineRun = pointer.Ref(m.now())
	record.InitArtifacts = true
	if record.DataThreshold == nil {
		record.DataThreshold = pointer.Ref(record.EffectiveThreshold())
	}
	return record, true
}

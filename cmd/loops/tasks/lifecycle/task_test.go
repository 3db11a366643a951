package lifecycle_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/modelyard/modelyard/cmd/loops/tasks/lifecycle"
	"github.com/modelyard/modelyard/pkg/domain"
	"github.com/modelyard/modelyard/pkg/domain/analytics"
	mock_analytics "github.com/modelyard/modelyard/pkg/domain/analytics/mock"
	mock_db "github.com/modelyard/modelyard/pkg/domain/pipeline/db/mock"
	"github.com/modelyard/modelyard/pkg/domain/trainer"
	mock_trainer "github.com/modelyard/modelyard/pkg/domain/trainer/mock"
	"github.com/modelyard/modelyard/pkg/utils/cmp"
	"github.com/modelyard/modelyard/pkg/utils/pointer"
)

func discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func evaluatorWithCount(count int) *analytics.ThresholdEvaluator {
	warehouse := mock_analytics.NewAnalytics()
	warehouse.Impl.CountRecords = func(ctx context.Context, assetTypeId string, attributes []string) (int, error) {
		return count, nil
	}
	return analytics.NewThresholdEvaluator(warehouse, discard())
}

func fleetOf(records ...domain.PipelineRecord) *mock_db.PipelineInterface {
	pipelines := mock_db.NewPipelineInterface()
	pipelines.Impl.GetAll = func(ctx context.Context) ([]domain.PipelineRecord, error) {
		return records, nil
	}
	pipelines.Impl.UpdateAll = func(ctx context.Context, records []domain.PipelineRecord) error {
		return nil
	}
	pipelines.Impl.Delete = func(ctx context.Context, assetTypeId, componentId string) error {
		return nil
	}
	return pipelines
}

func TestManager_Teardown(t *testing.T) {
	orphan := domain.PipelineRecord{
		AssetTypeId:       "pump-station",
		ComponentId:       "anomaly",
		FeatureAttributes: nil,
		RunId:             domain.PipelineRunId{CurrentRun: "job-current", LastRun: "job-last"},
	}

	t.Run("an orphaned record gets both jobs killed, current first, then is deleted", func(t *testing.T) {
		pipelines := fleetOf(orphan)

		jobs := mock_trainer.NewTrainer()
		jobs.Impl.Kill = func(ctx context.Context, jobId string) (string, error) {
			return "killed", nil
		}

		testee := lifecycle.NewManager(pipelines, evaluatorWithCount(0), jobs, discard())

		updated, err := testee.Cycle(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !updated {
			t.Error("the sweep should report work done")
		}

		if !cmp.SliceEq(jobs.Calls.Kill, []string{"job-current", "job-last"}) {
			t.Errorf("kills: got %v, want [job-current job-last]", jobs.Calls.Kill)
		}
		wantDeleted := []mock_db.PipelineKey{{AssetTypeId: "pump-station", ComponentId: "anomaly"}}
		if !cmp.SliceEq(pipelines.Calls.Delete, wantDeleted) {
			t.Errorf("deletes: got %v, want %v", pipelines.Calls.Delete, wantDeleted)
		}
		if pipelines.Calls.UpdateAll.Times() != 0 {
			t.Error("teardown should not go through the update batch")
		}
	})

	t.Run("when the second kill fails, the record is left untouched and undeleted", func(t *testing.T) {
		pipelines := fleetOf(orphan)

		jobs := mock_trainer.NewTrainer()
		jobs.Impl.Kill = func(ctx context.Context, jobId string) (string, error) {
			if jobId == "job-last" {
				return "", errors.New("fake backend error")
			}
			return "killed", nil
		}

		testee := lifecycle.NewManager(pipelines, evaluatorWithCount(0), jobs, discard())

		updated, err := testee.Cycle(context.Background())
		if err != nil {
			t.Fatalf("per-record trouble should not fail the sweep: %v", err)
		}
		if updated {
			t.Error("nothing should be reported as done")
		}

		if pipelines.Calls.Delete.Times() != 0 {
			t.Error("the record should not be deleted after a failed kill")
		}
		if pipelines.Calls.UpdateAll.Times() != 0 {
			t.Error("the record should not be updated either")
		}
	})
}

func TestManager_Train(t *testing.T) {
	now := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

	t.Run("a record below threshold is left alone", func(t *testing.T) {
		record := domain.PipelineRecord{
			AssetTypeId:       "pump-station",
			ComponentId:       "anomaly",
			FeatureAttributes: []string{"temp"},
			DataThreshold:     pointer.Ref(10),
			RunFrequency:      domain.Monthly,
		}
		pipelines := fleetOf(record)
		jobs := mock_trainer.NewTrainer()

		testee := lifecycle.NewManager(pipelines, evaluatorWithCount(9), jobs, discard())
		testee.SetClock(func() time.Time { return now })

		updated, err := testee.Cycle(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if updated {
			t.Error("nothing should be reported as done")
		}
		if len(jobs.Calls.Kill) != 0 || len(jobs.Calls.Start) != 0 {
			t.Error("no job should be killed or started")
		}
		if pipelines.Calls.UpdateAll.Times() != 0 {
			t.Error("no update should be persisted")
		}
	})

	t.Run("a due record over threshold supersedes its run", func(t *testing.T) {
		record := domain.PipelineRecord{
			AssetTypeId:       "pump-station",
			ComponentId:       "anomaly",
			FeatureAttributes: []string{"temp"},
			DataThreshold:     pointer.Ref(10),
			RunFrequency:      domain.Monthly,
			RunId:             domain.PipelineRunId{CurrentRun: "job-1", LastRun: ""},
			LastPipelineRun:   pointer.Ref(now.AddDate(0, 0, -40)),
		}
		pipelines := fleetOf(record)

		jobs := mock_trainer.NewTrainer()
		jobs.Impl.Kill = func(ctx context.Context, jobId string) (string, error) {
			return "nothing to kill", nil
		}
		jobs.Impl.Start = func(ctx context.Context, spec trainer.JobSpec) (string, error) {
			return "job-2", nil
		}

		testee := lifecycle.NewManager(pipelines, evaluatorWithCount(10), jobs, discard())
		testee.SetClock(func() time.Time { return now })

		updated, err := testee.Cycle(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !updated {
			t.Error("the sweep should report work done")
		}

		// the empty last_run is killed as a no-op before starting
		if !cmp.SliceEq(jobs.Calls.Kill, []string{""}) {
			t.Errorf("kills: got %v, want [\"\"]", jobs.Calls.Kill)
		}
		if len(jobs.Calls.Start) != 1 {
			t.Fatalf("starts: got %d, want 1", len(jobs.Calls.Start))
		}
		wantSpec := trainer.JobSpec{
			AssetTypeId: "pump-station",
			ComponentId: "anomaly",
			Features:    []string{"temp"},
		}
		gotSpec := jobs.Calls.Start[0]
		if gotSpec.AssetTypeId != wantSpec.AssetTypeId ||
			gotSpec.ComponentId != wantSpec.ComponentId ||
			!cmp.SliceEq(gotSpec.Features, wantSpec.Features) {
			t.Errorf("start spec: got %+v, want %+v", gotSpec, wantSpec)
		}

		if pipelines.Calls.UpdateAll.Times() != 1 {
			t.Fatalf("UpdateAll: called %d times, want 1", pipelines.Calls.UpdateAll.Times())
		}
		batch := pipelines.Calls.UpdateAll[0]
		if len(batch) != 1 {
			t.Fatalf("batch: got %d records, want 1", len(batch))
		}
		got := batch[0]
		if got.RunId != (domain.PipelineRunId{CurrentRun: "job-2", LastRun: "job-1"}) {
			t.Errorf("run ids: got %+v", got.RunId)
		}
		if !got.InitArtifacts {
			t.Error("init_artifacts should be set")
		}
		if got.LastPipelineRun == nil || !got.LastPipelineRun.Equal(now) {
			t.Errorf("last_pipeline_run: got %v, want %v", got.LastPipelineRun, now)
		}
		if got.DataThreshold == nil || *got.DataThreshold != 10 {
			t.Errorf("data_threshold: got %v, want 10", got.DataThreshold)
		}
	})

	t.Run("a record which never ran is due immediately and gets its threshold normalized", func(t *testing.T) {
		record := domain.PipelineRecord{
			AssetTypeId:       "pump-station",
			ComponentId:       "anomaly",
			FeatureAttributes: []string{"temp"},
			RunFrequency:      domain.Weekly,
		}
		pipelines := fleetOf(record)

		jobs := mock_trainer.NewTrainer()
		jobs.Impl.Kill = func(ctx context.Context, jobId string) (string, error) { return "", nil }
		jobs.Impl.Start = func(ctx context.Context, spec trainer.JobSpec) (string, error) {
			return "job-1", nil
		}

		testee := lifecycle.NewManager(pipelines, evaluatorWithCount(domain.DefaultDataThreshold), jobs, discard())
		testee.SetClock(func() time.Time { return now })

		if _, err := testee.Cycle(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		batch := pipelines.Calls.UpdateAll[0]
		if batch[0].DataThreshold == nil || *batch[0].DataThreshold != domain.DefaultDataThreshold {
			t.Errorf("data_threshold: got %v, want the default", batch[0].DataThreshold)
		}
	})

	t.Run("a record not yet due is left alone even over threshold", func(t *testing.T) {
		record := domain.PipelineRecord{
			AssetTypeId:       "pump-station",
			ComponentId:       "anomaly",
			FeatureAttributes: []string{"temp"},
			DataThreshold:     pointer.Ref(10),
			RunFrequency:      domain.Monthly,
			LastPipelineRun:   pointer.Ref(now.AddDate(0, 0, -10)),
		}
		pipelines := fleetOf(record)
		jobs := mock_trainer.NewTrainer()

		testee := lifecycle.NewManager(pipelines, evaluatorWithCount(100), jobs, discard())
		testee.SetClock(func() time.Time { return now })

		updated, err := testee.Cycle(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if updated {
			t.Error("nothing should be reported as done")
		}
		if len(jobs.Calls.Start) != 0 {
			t.Error("no job should be started")
		}
	})

	t.Run("when the start fails, the record keeps its run ids for the next sweep", func(t *testing.T) {
		record := domain.PipelineRecord{
			AssetTypeId:       "pump-station",
			ComponentId:       "anomaly",
			FeatureAttributes: []string{"temp"},
			DataThreshold:     pointer.Ref(10),
			RunFrequency:      domain.Weekly,
			RunId:             domain.PipelineRunId{CurrentRun: "job-1"},
		}
		pipelines := fleetOf(record)

		jobs := mock_trainer.NewTrainer()
		jobs.Impl.Kill = func(ctx context.Context, jobId string) (string, error) { return "", nil }
		jobs.Impl.Start = func(ctx context.Context, spec trainer.JobSpec) (string, error) {
			return "", errors.New("fake backend error")
		}

		testee := lifecycle.NewManager(pipelines, evaluatorWithCount(100), jobs, discard())
		testee.SetClock(func() time.Time { return now })

		updated, err := testee.Cycle(context.Background())
		if err != nil {
			t.Fatalf("per-record trouble should not fail the sweep: %v", err)
		}
		if updated {
			t.Error("nothing should be reported as done")
		}
		if pipelines.Calls.UpdateAll.Times() != 0 {
			t.Error("no update should be persisted")
		}
	})
}

func TestManager_Cycle(t *testing.T) {
	now := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

	dueRecord := func(assetTypeId string) domain.PipelineRecord {
		return domain.PipelineRecord{
			AssetTypeId:       assetTypeId,
			ComponentId:       "anomaly",
			FeatureAttributes: []string{"temp"},
			DataThreshold:     pointer.Ref(10),
			RunFrequency:      domain.Weekly,
		}
	}

	t.Run("one record's failure does not stop the others", func(t *testing.T) {
		pipelines := fleetOf(dueRecord("broken"), dueRecord("healthy"))

		jobs := mock_trainer.NewTrainer()
		jobs.Impl.Kill = func(ctx context.Context, jobId string) (string, error) { return "", nil }
		jobs.Impl.Start = func(ctx context.Context, spec trainer.JobSpec) (string, error) {
			if spec.AssetTypeId == "broken" {
				return "", errors.New("fake backend error")
			}
			return fmt.Sprintf("job-%s", spec.AssetTypeId), nil
		}

		testee := lifecycle.NewManager(pipelines, evaluatorWithCount(100), jobs, discard())
		testee.SetClock(func() time.Time { return now })

		updated, err := testee.Cycle(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !updated {
			t.Error("the healthy record's work should be reported")
		}

		if len(jobs.Calls.Start) != 2 {
			t.Errorf("starts: got %d, want 2 (both attempted)", len(jobs.Calls.Start))
		}
		batch := pipelines.Calls.UpdateAll[0]
		if len(batch) != 1 || batch[0].AssetTypeId != "healthy" {
			t.Errorf("batch: got %v, want only the healthy record", batch)
		}
	})

	t.Run("only the batch persist failure fails the sweep", func(t *testing.T) {
		wantErr := errors.New("fake db error")

		pipelines := fleetOf(dueRecord("pump-station"))
		pipelines.Impl.UpdateAll = func(ctx context.Context, records []domain.PipelineRecord) error {
			return wantErr
		}

		jobs := mock_trainer.NewTrainer()
		jobs.Impl.Kill = func(ctx context.Context, jobId string) (string, error) { return "", nil }
		jobs.Impl.Start = func(ctx context.Context, spec trainer.JobSpec) (string, error) {
			return "job-1", nil
		}

		testee := lifecycle.NewManager(pipelines, evaluatorWithCount(100), jobs, discard())
		testee.SetClock(func() time.Time { return now })

		if _, err := testee.Cycle(context.Background()); !errors.Is(err, wantErr) {
			t.Errorf("error: got %v, want %v", err, wantErr)
		}
	})

	t.Run("when fetching the fleet fails, the sweep fails", func(t *testing.T) {
		wantErr := errors.New("fake db error")

		pipelines := mock_db.NewPipelineInterface()
		pipelines.Impl.GetAll = func(ctx context.Context) ([]domain.PipelineRecord, error) {
			return nil, wantErr
		}

		testee := lifecycle.NewManager(
			pipelines, evaluatorWithCount(0), mock_trainer.NewTrainer(), discard(),
		)

		if _, err := testee.Cycle(context.Background()); !errors.Is(err, wantErr) {
			t.Errorf("error: got %v, want %v", err, wantErr)
		}
	})
}

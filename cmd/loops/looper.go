package main

import (
	"context"
	"log"
	"time"

	"github.com/modelyard/modelyard/cmd/loops/recurring"
	"github.com/modelyard/modelyard/cmd/loops/tasks/lifecycle"
	"github.com/modelyard/modelyard/pkg/configs"
	kpool "github.com/modelyard/modelyard/pkg/conn/db/postgres/pool"
	"github.com/modelyard/modelyard/pkg/domain/analytics"
	"github.com/modelyard/modelyard/pkg/domain/credential"
	dbpipeline "github.com/modelyard/modelyard/pkg/domain/pipeline/db/postgres"
	"github.com/modelyard/modelyard/pkg/domain/trainer"
	"github.com/modelyard/modelyard/pkg/loop"
)

type LoggerOptions func(*log.Logger) *log.Logger

func byLogger(l *log.Logger, opt ...LoggerOptions) *log.Logger {
	for _, o := range opt {
		l = o(l)
	}
	return l
}

func Copied() LoggerOptions {
	return func(l *log.Logger) *log.Logger {
		return log.New(l.Writer(), l.Prefix(), l.Flags())
	}
}

func WithPrefix(pre string) LoggerOptions {
	return func(l *log.Logger) *log.Logger {
		l.SetPrefix(pre)
		return l
	}
}

// Wrapper for monitoring loop tasks
//
//	Log the start and end of each time a task is executed. Essentially, it executes a task.
func monitor[T any](logger *log.Logger, task loop.Task[T]) loop.Task[T] {
	// counter for execution of the task
	var counter uint64
	return func(ctx context.Context, t T) (ret T, next loop.Next) {
		counter += 1
		timestamp := time.Now()

		logger.Printf("task start: #0x%X: ", counter)

		// log at the end of the task
		defer func() {
			logger.Printf(
				"task end: #0x%X (takes %s): %s",
				counter, time.Since(timestamp), next,
			)
		}()

		ret, next = task(ctx, t)
		return
	}
}

// Manifest for starting a loop, which determines how the loop should behave.
type LoopManifest struct {
	// Policy for the looping
	Policy recurring.Policy
}

// Everything a loop task may need, wired once in main.
type LoopDeps struct {
	Pool    kpool.Pool
	Creds   credential.Provider
	Trainer trainer.Interface
	Config  *configs.Config
}

func StartLifecycleLoop(
	ctx context.Context,
	logger *log.Logger,
	deps LoopDeps,
	manifest LoopManifest,
) error {
	l := byLogger(logger, Copied(), WithPrefix("[lifecycle loop]"))

	ac := deps.Config.Analytics()
	warehouse := analytics.New(
		ac.Endpoint(), ac.Project(), ac.Dataset(), ac.Timeout(), deps.Creds,
	)

	manager := lifecycle.NewManager(
		dbpipeline.New(deps.Pool),
		analytics.NewThresholdEvaluator(warehouse, l),
		deps.Trainer,
		l,
	)

	_, err := loop.Start(
		ctx, lifecycle.Seed(),
		monitor(l, lifecycle.Task(manager).Applied(manifest.Policy)),
		loop.WithTimeout(30*time.Minute),
	)
	return err
}

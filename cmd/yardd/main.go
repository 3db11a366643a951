package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/modelyard/modelyard/cmd/yardd/handlers"
	"github.com/modelyard/modelyard/pkg/configs"
	kpool "github.com/modelyard/modelyard/pkg/conn/db/postgres/pool"
	kconn "github.com/modelyard/modelyard/pkg/conn/k8s"
	"github.com/modelyard/modelyard/pkg/domain/analytics"
	arest "github.com/modelyard/modelyard/pkg/domain/artifacts/rest"
	"github.com/modelyard/modelyard/pkg/domain/credential"
	"github.com/modelyard/modelyard/pkg/domain/inference"
	dbpipeline "github.com/modelyard/modelyard/pkg/domain/pipeline/db/postgres"
	"github.com/modelyard/modelyard/pkg/domain/trainer"
	trainerk8s "github.com/modelyard/modelyard/pkg/domain/trainer/k8s"
	"github.com/modelyard/modelyard/pkg/domain/trainer/vertex"
	"github.com/modelyard/modelyard/pkg/utils/echoutil"
	"github.com/modelyard/modelyard/pkg/utils/filewatch"
	"github.com/modelyard/modelyard/pkg/utils/try"

	"github.com/modelyard/modelyard/cmd/loops/tasks/lifecycle"
)

func main() {
	logger := log.Default()

	configPath := flag.String(
		"config", os.Getenv("MODELYARD_CONFIG"), "path to config file",
	)
	kubeconfig := flag.String(
		"kubeconfig", os.Getenv("KUBECONFIG"),
		"path to kubeconfig. when empty, in-cluster config is used",
	)
	flag.Parse()

	conf := try.To(configs.Load(*configPath)).OrFatal(logger)

	e := echo.New()
	e.Pre(middleware.AddTrailingSlash())

	// set log
	echoutil.SetLevel(e, conf.LogLevel())
	e.HTTPErrorHandler = func(err error, ctx echo.Context) {
		e.DefaultHTTPErrorHandler(err, ctx)
		e.Logger.Error(err)
	}
	e.Use(echoutil.LogHandlerFunc)

	{
		// quit when the config file changes; the next boot picks it up
		ctx, cancel, err := filewatch.UntilModifyContext(context.Background(), *configPath)
		if err != nil {
			logger.Fatalf("can not watch configration: %s", err)
		}
		defer cancel()
		context.AfterFunc(ctx, func() {
			logger.Println("config file is updated. quit to restart server.")
			graceful, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := e.Shutdown(graceful); err != nil {
				logger.Printf("error on shutdown by config update: %s", err)
			}
		})
	}

	ctx := context.Background()
	pgpool := try.To(kpool.New(ctx, conf.Database())).OrFatal(logger)
	defer pgpool.Close()

	cluster := try.To(kconn.ConnectToK8s(*kubeconfig)).OrFatal(logger)
	creds := credential.New(
		cluster, conf.Credentials().Namespace(), conf.Credentials().Secret(),
	)

	pipelines := dbpipeline.New(pgpool)

	ac := conf.Analytics()
	warehouse := analytics.New(
		ac.Endpoint(), ac.Project(), ac.Dataset(), ac.Timeout(), creds,
	)

	modelhost := arest.New(conf.Artifacts().ModelHost(), conf.Artifacts().Timeout())
	engine := inference.NewEngine(modelhost, modelhost, pipelines, logger)

	manager := lifecycle.NewManager(
		pipelines,
		analytics.NewThresholdEvaluator(warehouse, logger),
		trainerFor(conf, creds, cluster),
		logger,
	)

	// handlers
	{
		e.POST("/api/pipelines/", handlers.InstallPipelineHandler(pipelines))
		e.GET("/api/pipelines/", handlers.FindPipelineHandler(pipelines))

		e.GET(
			"/api/pipelines/:assetType/:component/",
			handlers.GetPipelineHandler(pipelines, "assetType", "component"),
		)
		e.PUT(
			"/api/pipelines/:assetType/:component/",
			handlers.UpdatePipelineHandler(pipelines, "assetType", "component"),
		)
		e.DELETE(
			"/api/pipelines/:assetType/:component/",
			handlers.UninstallPipelineHandler(pipelines, warehouse, "assetType", "component"),
		)

		e.POST("/api/cycle/", handlers.CycleHandler(manager))
		e.POST("/api/score/:component/", handlers.ScoreHandler(engine, "component"))
	}

	logger.Println("registred routes:")
	for _, r := range e.Routes() {
		logger.Println(r.Method, r.Path)
	}

	e.Logger.Fatal(e.Start(fmt.Sprintf(":%d", conf.Port())))
}

// trainerFor builds the job orchestration client the config asks for.
func trainerFor(
	conf *configs.Config, creds credential.Provider, cluster kconn.K8sClient,
) trainer.Interface {
	tc := conf.Trainer()
	switch tc.Mode() {
	case configs.TrainerModeK8s:
		k := tc.K8s()
		return trainerk8s.New(
			trainerk8s.Config{
				Namespace:      k.Namespace(),
				Image:          k.Image(),
				ServiceAccount: k.ServiceAccount(),
			},
			cluster,
		)
	default:
		r := tc.Rest()
		return vertex.New(
			vertex.Config{
				Endpoint:        r.Endpoint(),
				Project:         r.Project(),
				Location:        r.Location(),
				TemplateUri:     r.Template(),
				ServiceAccount:  r.ServiceAccount(),
				OutputDirectory: r.OutputDirectory(),
				SystemKey:       conf.SystemKey(),
				Timeout:         tc.Timeout(),
			},
			creds,
		)
	}
}

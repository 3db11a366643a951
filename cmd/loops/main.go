package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelyard/modelyard/cmd/loops/recurring"
	"github.com/modelyard/modelyard/pkg/configs"
	kpool "github.com/modelyard/modelyard/pkg/conn/db/postgres/pool"
	kconn "github.com/modelyard/modelyard/pkg/conn/k8s"
	"github.com/modelyard/modelyard/pkg/domain/credential"
	"github.com/modelyard/modelyard/pkg/domain/trainer"
	trainerk8s "github.com/modelyard/modelyard/pkg/domain/trainer/k8s"
	"github.com/modelyard/modelyard/pkg/domain/trainer/vertex"
	"github.com/modelyard/modelyard/pkg/utils/args"
	"github.com/modelyard/modelyard/pkg/utils/filewatch"
	"github.com/modelyard/modelyard/pkg/utils/try"
)

func main() {
	logger := log.Default()
	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, os.Kill, syscall.SIGTERM,
	)
	// call cancel() when this function exits
	defer cancel()

	// define command line flags
	//-- path to config file
	pconfig := flag.String(
		"config", os.Getenv("MODELYARD_CONFIG"), "path to config file",
	)
	pkubeconfig := flag.String(
		"kubeconfig", os.Getenv("KUBECONFIG"),
		"path to kubeconfig. when empty, in-cluster config is used",
	)
	//-- loop policy
	policy := args.Parser(recurring.ParsePolicy)
	flag.Var(
		policy, "policy",
		`loop policy (syntax: forever[:COOLDOWN]|backlog).`+
			` "forever[:COOLDOWN]" = run forever until error. When backlog is over, `+
			`wait COOLDOWN (optional duration. default: 0) as inteval.`+
			` "backlog" = run until error or backlog is over.`,
	)
	// parse command line flags
	flag.Parse()

	pol := policy.Value()
	if !policy.IsSet() {
		pol = recurring.Forever(30 * time.Second)
	}

	{
		// watch config; restarting on modification picks the new one up
		wctx, cancel, err := filewatch.UntilModifyContext(ctx, *pconfig)
		if err != nil {
			logger.Fatal(err)
		}
		defer cancel()
		ctx = wctx
	}

	conf := try.To(configs.Load(*pconfig)).OrFatal(logger)
	pgpool := try.To(kpool.New(ctx, conf.Database())).OrFatal(logger)
	defer pgpool.Close()

	cluster := try.To(kconn.ConnectToK8s(*pkubeconfig)).OrFatal(logger)
	creds := credential.New(
		cluster, conf.Credentials().Namespace(), conf.Credentials().Secret(),
	)

	logger.Printf(`start lifecycle loop /w policy "%s"`, pol.String())

	err := StartLifecycleLoop(
		ctx, logger,
		LoopDeps{
			Pool:    pgpool,
			Creds:   creds,
			Trainer: trainerFor(conf, creds, cluster),
			Config:  conf,
		},
		LoopManifest{Policy: recurring.UntilError(pol)},
	)

	if err == nil {
		return
	} else if errors.Is(err, context.Canceled) {
		logger.Fatal(err, "(loop context is cancelled by:", context.Cause(ctx), ")")
	}

	if ctx.Err() != nil {
		logger.Fatal(err)
	}
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

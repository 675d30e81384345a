package controller

import (
	"context"
	"fmt"
	"net/http"

	"github.com/reugn/go-quartz/quartz"

	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"

	headwindv1alpha1 "github.com/headwind-sh/headwind/pkg/apis/headwind.sh/v1alpha1"

	"github.com/headwind-sh/headwind/internal/controller/corereconcile"
	"github.com/headwind-sh/headwind/internal/controller/deploymentupdate"
	"github.com/headwind-sh/headwind/internal/controller/helmreleaseupdate"
	"github.com/headwind-sh/headwind/internal/controller/updaterequestwatch"
	"github.com/headwind-sh/headwind/internal/crdinstall"
	"github.com/headwind-sh/headwind/internal/discovery"
	"github.com/headwind-sh/headwind/internal/intake"
	"github.com/headwind-sh/headwind/internal/metrics"
	"github.com/headwind-sh/headwind/internal/notify"
	"github.com/headwind-sh/headwind/internal/rollback"
	"github.com/headwind-sh/headwind/internal/updaterequeststore"
)

var scheme = runtime.NewScheme()

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(headwindv1alpha1.AddToScheme(scheme))
	//+kubebuilder:scaffold:scheme
}

// start builds the controller-runtime manager, wires every
// collaborator (C1-C8) together, and blocks until ctx is cancelled.
// Grounded on the teacher's internal/cmd/controller/operator.go start
// function: manager construction, reconciler registration order,
// healthz/readyz, and the go-quartz scheduler lifecycle
// (sched.Start/sched.Stop bracketing mgr.Start) are kept the same
// shape, generalized from Fleet's bundle/cluster/content reconcilers
// to Headwind's Deployment/HelmRelease/UpdateRequest set. sched itself
// is handed to rollback.NewSupervisor, which schedules one quartz.Job
// per (workload, slot) supervision the way the teacher's
// ImageScanReconciler schedules a TagScanJob per ImageScan.
func start(ctx context.Context, restCfg *rest.Config, cfg *Config) error {
	if !cfg.DisableCRDInstall {
		setupLog.Info("installing CRDs")
		if err := crdinstall.Install(ctx, restCfg); err != nil {
			return fmt.Errorf("installing CRDs: %w", err)
		}
	}

	mgr, err := ctrl.NewManager(restCfg, ctrl.Options{
		Scheme:                  scheme,
		Metrics:                 metricsserver.Options{BindAddress: cfg.MetricsAddr},
		HealthProbeBindAddress:  cfg.HealthProbeAddr,
		LeaderElection:          cfg.LeaderElection,
		LeaderElectionID:        "headwind-controller-leader-election",
		LeaderElectionNamespace: cfg.Namespace,
	})
	if err != nil {
		setupLog.Error(err, "unable to start manager")
		return err
	}

	metrics.Register()

	sched, err := quartz.NewStdScheduler()
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}

	var notifier notify.Notifier = notify.Noop{}
	if cfg.SlackWebhookURL != "" {
		notifier = notify.SlackNotifier{WebhookURL: cfg.SlackWebhookURL}
	}

	store := updaterequeststore.New(mgr.GetClient())
	pipeline := &corereconcile.Pipeline{
		Client:            mgr.GetClient(),
		Discovery:         discovery.NewBreakerRegistry(),
		CredentialFetcher: secretCredentialFetcher(mgr.GetClient()),
		Store:             store,
		Log:               ctrl.Log.WithName("pipeline"),
	}
	pipeline.Rollback = rollback.NewSupervisor(mgr.GetClient(), pipeline, notifier, sched, ctrl.Log.WithName("rollback"))

	dispatcher := intake.NewDispatcher(mgr.GetClient(), ctrl.Log.WithName("intake"))

	if err = (&deploymentupdate.Reconciler{
		Client:       mgr.GetClient(),
		Pipeline:     pipeline,
		IntakeEvents: dispatcher.DeploymentEvents,
	}).SetupWithManager(mgr); err != nil {
		setupLog.Error(err, "unable to create controller", "controller", "Deployment")
		return err
	}

	if err = (&helmreleaseupdate.Reconciler{
		Client:       mgr.GetClient(),
		Pipeline:     pipeline,
		IntakeEvents: dispatcher.HelmReleaseEvents,
	}).SetupWithManager(mgr); err != nil {
		setupLog.Error(err, "unable to create controller", "controller", "HelmRelease")
		return err
	}

	if err = (&updaterequestwatch.Reconciler{
		Client:   mgr.GetClient(),
		Pipeline: pipeline,
		Store:    store,
	}).SetupWithManager(mgr); err != nil {
		setupLog.Error(err, "unable to create controller", "controller", "UpdateRequest")
		return err
	}

	//+kubebuilder:scaffold:builder

	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up health check")
		return err
	}
	if err := mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up ready check")
		return err
	}

	go dispatcher.Run(ctx)

	intakeSrv := &http.Server{
		Addr:    cfg.IntakeAddr,
		Handler: &intake.Handler{Dispatcher: dispatcher, Log: ctrl.Log.WithName("intake-http")},
	}
	go func() {
		<-ctx.Done()
		_ = intakeSrv.Close()
	}()
	go func() {
		setupLog.Info("starting intake webhook server", "address", cfg.IntakeAddr)
		if err := intakeSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			setupLog.Error(err, "intake webhook server failed")
		}
	}()

	setupLog.Info("starting job scheduler")
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	sched.Start(jobCtx)

	setupLog.Info("starting manager")
	if err := mgr.Start(ctx); err != nil {
		setupLog.Error(err, "problem running manager")
		return err
	}

	sched.Stop()
	return nil
}

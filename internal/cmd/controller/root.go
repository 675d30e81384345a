// Package controller wires the headwind-controller process: CLI flags,
// logging, and the manager bootstrap that registers every reconciler.
// Grounded on the teacher's internal/cmd/controller/root.go
// FleetManager/Run shape, generalized from Fleet's sharded
// multi-controller startup (gitops/cleanup/agentmanagement
// subcommands, shard IDs) down to Headwind's single-cluster, three-
// reconciler process; the zap logging setup and cobra command
// construction are kept verbatim in spirit.
package controller

import (
	"flag"
	"fmt"

	"github.com/spf13/cobra"

	ctrl "sigs.k8s.io/controller-runtime"
	clog "sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// Config holds the flags the headwind-controller command accepts.
type Config struct {
	Kubeconfig        string
	Namespace         string
	MetricsAddr       string
	HealthProbeAddr   string
	IntakeAddr        string
	LeaderElection    bool
	SlackWebhookURL   string
	DisableCRDInstall bool
}

var (
	setupLog = ctrl.Log.WithName("setup")
	zopts    = zap.Options{Development: true}
)

// NewCommand builds the headwind-controller cobra command.
func NewCommand() *cobra.Command {
	cfg := &Config{}

	cmd := &cobra.Command{
		Use:   "headwind-controller",
		Short: "Runs the Headwind update operator",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl.SetLogger(zap.New(zap.UseFlagOptions(&zopts)))
			ctx := clog.IntoContext(cmd.Context(), ctrl.Log)

			restCfg, err := buildRestConfig(cfg.Kubeconfig)
			if err != nil {
				return fmt.Errorf("building kube client config: %w", err)
			}

			if err := start(ctx, restCfg, cfg); err != nil {
				return err
			}
			<-cmd.Context().Done()
			return nil
		},
	}

	fs := flag.NewFlagSet("", flag.ExitOnError)
	zopts.BindFlags(fs)
	cmd.Flags().AddGoFlagSet(fs)

	cmd.Flags().StringVar(&cfg.Kubeconfig, "kubeconfig", "", "path to a kubeconfig; empty uses in-cluster config")
	cmd.Flags().StringVar(&cfg.Namespace, "namespace", "headwind-system", "namespace used for leader election")
	cmd.Flags().StringVar(&cfg.MetricsAddr, "metrics-bind-address", ":8080", "metrics endpoint bind address")
	cmd.Flags().StringVar(&cfg.HealthProbeAddr, "health-probe-bind-address", ":8081", "healthz/readyz bind address")
	cmd.Flags().StringVar(&cfg.IntakeAddr, "intake-bind-address", ":9090", "registry webhook intake bind address")
	cmd.Flags().BoolVar(&cfg.LeaderElection, "leader-elect", false, "enable leader election for controller manager HA")
	cmd.Flags().StringVar(&cfg.SlackWebhookURL, "slack-webhook-url", "", "Slack incoming webhook for rollback notifications; empty disables notifications")
	cmd.Flags().BoolVar(&cfg.DisableCRDInstall, "disable-crd-install", false, "skip installing/updating the UpdateRequest and HelmRelease CRDs at startup")

	return cmd
}

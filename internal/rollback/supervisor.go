// Package rollback implements the Rollback Supervisor (C7): a
// health-sampling loop started after every direct mutation, which
// rolls a workload back to its previous recorded version on sustained
// failure or timeout. Grounded on the teacher's
// internal/cmd/controller/imagescan/tagscan_job.go TagScanJob and its
// reconciler's DeleteJob-then-ScheduleJob call site
// (imagescan_controller.go): each (workload, slot) pair's sampling loop
// is a quartz.Job scheduled on the shared quartz.Scheduler rather than
// a goroutine driven by time.Ticker, and a cascading rollback (spec
// §4.7's "a second failure can roll back further") supersedes the
// in-flight job the same way the teacher supersedes a stale tag-scan:
// delete the old job under its key, schedule a new one.
package rollback

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/reugn/go-quartz/quartz"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/headwind-sh/headwind/internal/controller/corereconcile"
	"github.com/headwind-sh/headwind/internal/history"
	"github.com/headwind-sh/headwind/internal/metrics"
	"github.com/headwind-sh/headwind/internal/notify"
	"github.com/headwind-sh/headwind/internal/schedule"
	"github.com/headwind-sh/headwind/internal/workloadpolicy"
)

// sampleInterval is the health-sampling period, spec §4.7.
const sampleInterval = 10 * time.Second

// sampleJitterPercent staggers resampling across workloads sharing an
// interval, the same reason schedule.ImmediateTrigger supports jitter.
const sampleJitterPercent = 10

const defaultTimeout = 300 * time.Second

// Supervisor implements corereconcile.RollbackStarter.
type Supervisor struct {
	Client    client.Client
	Pipeline  *corereconcile.Pipeline
	Notifier  notify.Notifier
	Scheduler quartz.Scheduler
	Log       logr.Logger
}

// NewSupervisor builds a Supervisor. Pipeline is used to re-apply a
// rollback through the same mutation path ordinary updates take, which
// also naturally restarts supervision for the rolled-back version.
// Scheduler is the process-wide quartz.Scheduler started alongside the
// manager; a nil Notifier is replaced with notify.Noop.
func NewSupervisor(c client.Client, pipeline *corereconcile.Pipeline, notifier notify.Notifier, sched quartz.Scheduler, log logr.Logger) *Supervisor {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Supervisor{
		Client:    c,
		Pipeline:  pipeline,
		Notifier:  notifier,
		Scheduler: sched,
		Log:       log,
	}
}

func supervisionName(wl corereconcile.Workload, slotName string) string {
	return wl.GetNamespace() + "/" + wl.GetName() + "/" + slotName
}

// Start begins health-sampling wl's slotName. If a supervision job is
// already scheduled for the same (workload, slot), it is deleted first
// so the new one (typically a cascading rollback's own supervision)
// takes over cleanly, the same DeleteJob-before-ScheduleJob idiom the
// teacher's ImageScanReconciler uses to avoid duplicate tag-scan jobs.
func (s *Supervisor) Start(ctx context.Context, wl corereconcile.Workload, slotName string, cfg workloadpolicy.RollbackConfig) {
	if !cfg.Enabled {
		return
	}
	if _, ok := wl.(corereconcile.HealthChecker); !ok {
		s.Log.V(1).Info("workload kind has no health signal, skipping rollback supervision",
			"workload", wl.GetNamespace()+"/"+wl.GetName())
		return
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := cfg.Retries
	if retries <= 0 {
		retries = 1
	}

	name := supervisionName(wl, slotName)
	key := quartz.NewJobKey(name)
	// Make sure no duplicate job is scheduled: a cascading rollback
	// calls Start again for the version it just rolled back to.
	_ = s.Scheduler.DeleteJob(key)

	job := &rollbackJob{
		sup:      s,
		key:      key,
		name:     name,
		wl:       wl,
		slotName: slotName,
		cfg:      cfg,
		deadline: time.Now().Add(timeout),
		retries:  retries,
	}
	trigger := schedule.NewImmediateTrigger(sampleInterval, sampleJitterPercent)
	if err := s.Scheduler.ScheduleJob(quartz.NewJobDetail(job, key), trigger); err != nil {
		s.Log.Error(err, "scheduling rollback supervision job failed",
			"workload", wl.GetNamespace()+"/"+wl.GetName(), "slot", slotName)
	}
}

// rollbackJob is the quartz.Job that samples one (workload, slot)'s
// health on schedule.ImmediateTrigger's cadence, grounded on
// TagScanJob.Execute's shape (read current state, act, return nil;
// errors are logged and swallowed so a single failed sample doesn't
// abort the schedule). Unlike TagScanJob it removes itself from the
// scheduler once it reaches a terminal outcome, since nothing external
// calls DeleteJob for it the way the ImageScan reconciler does on
// delete/suspend.
type rollbackJob struct {
	sup      *Supervisor
	key      *quartz.JobKey
	name     string
	slotName string
	cfg      workloadpolicy.RollbackConfig
	deadline time.Time
	retries  int

	mu       sync.Mutex
	wl       corereconcile.Workload
	failures int
}

var _ quartz.Job = (*rollbackJob)(nil)

func (j *rollbackJob) Description() string {
	return "rollback-" + j.name
}

func (j *rollbackJob) Execute(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if time.Now().After(j.deadline) {
		metrics.Rollbacks.WithLabelValues("timeout").Inc()
		j.sup.triggerRollback(j.wl, j.slotName, j.cfg, "timeout waiting for health")
		j.stop()
		return nil
	}

	fresh, err := j.wl.Refresh(ctx, j.sup.Client)
	if err != nil {
		j.sup.Log.Error(err, "refreshing workload for health check failed")
		return nil
	}
	checker, ok := fresh.(corereconcile.HealthChecker)
	if !ok {
		j.stop()
		return nil
	}
	status, err := checker.CheckHealth(ctx)
	if err != nil {
		j.sup.Log.Error(err, "health check failed")
		return nil
	}

	switch status.State {
	case corereconcile.Healthy:
		metrics.Rollbacks.WithLabelValues("healthy").Inc()
		j.stop()
	case corereconcile.Progressing:
		j.wl = fresh
		j.failures = 0
	case corereconcile.Failed:
		j.wl = fresh
		j.failures++
		if j.failures >= j.retries {
			j.sup.triggerRollback(fresh, j.slotName, j.cfg, status.Reason)
			j.stop()
		}
	}
	return nil
}

// stop deletes this job from the scheduler so it stops re-firing once
// it has reached a terminal outcome (healthy, rolled back, or the
// workload lost its health signal mid-supervision).
func (j *rollbackJob) stop() {
	_ = j.sup.Scheduler.DeleteJob(j.key)
}

// triggerRollback looks up the previous recorded version via C4 and,
// if one exists, re-applies it through the ordinary mutation path
// (spec §4.7: "same mutation path as C6"). Absent a previous version,
// it logs and leaves the workload as-is (the notification collaborator
// is the external surface for this; see internal/notify).
func (s *Supervisor) triggerRollback(wl corereconcile.Workload, slotName string, cfg workloadpolicy.RollbackConfig, reason string) {
	log := s.Log.WithValues("workload", wl.GetNamespace()+"/"+wl.GetName(), "slot", slotName)

	prevVersion, ok := history.PreviousImage(wl, slotName)
	if !ok {
		metrics.Rollbacks.WithLabelValues("no_previous_version").Inc()
		log.Info("no previous version recorded; cannot roll back", "reason", reason)
		if err := s.Notifier.Notify(context.Background(), notify.Message{
			Severity: notify.SeverityCritical,
			Title:    "rollback could not proceed",
			Text:     "workload failed health checks but no previous version is recorded to roll back to",
			Fields: map[string]string{
				"workload": wl.GetNamespace() + "/" + wl.GetName(),
				"slot":     slotName,
				"reason":   reason,
			},
		}); err != nil {
			log.Error(err, "notifying about stalled rollback failed")
		}
		return
	}

	log.Info("rolling back", "to", prevVersion, "reason", reason)

	ctx := context.Background()
	slot := corereconcile.Slot{Name: slotName}
	if err := s.Pipeline.Mutate(ctx, wl, slot, prevVersion, "", "", cfg); err != nil {
		log.Error(err, "rollback mutation failed")
		return
	}
	metrics.Rollbacks.WithLabelValues("rolled_back").Inc()
}

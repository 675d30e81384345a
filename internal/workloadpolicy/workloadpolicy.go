// Package workloadpolicy derives a ResourcePolicy and the
// auto-rollback configuration from a workload's annotations (spec §6),
// each reconcile. Patterned after the teacher's pkg/config
// annotation/default-handling style, without its global mutable
// config cache and OnChange callback machinery — spec §9 explicitly
// marks that cross-cutting global state as not needed here;
// ResourcePolicy is a plain value derived per-reconcile.
package workloadpolicy

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/headwind-sh/headwind/internal/herrors"
	"github.com/headwind-sh/headwind/internal/policy"
)

const (
	AnnotationPolicy          = "headwind.sh/policy"
	AnnotationPattern         = "headwind.sh/pattern"
	AnnotationRequireApproval = "headwind.sh/require-approval"
	AnnotationMinInterval     = "headwind.sh/min-update-interval"
	AnnotationImages          = "headwind.sh/images"
	AnnotationAutoRollback    = "headwind.sh/auto-rollback"
	AnnotationRollbackTimeout = "headwind.sh/rollback-timeout"
	AnnotationHealthRetries   = "headwind.sh/health-check-retries"
)

const (
	defaultRequireApproval     = true
	defaultMinUpdateIntervalS  = 300
	defaultAutoRollback        = false
	defaultRollbackTimeoutS    = 300
	defaultHealthCheckRetries  = 3
)

var kindByToken = map[string]policy.Kind{
	"patch": policy.KindPatch,
	"minor": policy.KindMinor,
	"major": policy.KindMajor,
	"all":   policy.KindAll,
	"glob":  policy.KindGlob,
	"force": policy.KindForce,
	"none":  policy.KindNone,
}

// ResourcePolicy is the per-workload decision configuration, derived
// fresh from annotations each reconcile; it is never persisted on its
// own (spec §3).
type ResourcePolicy struct {
	Policy               policy.Policy
	RequireApproval      bool
	MinUpdateIntervalSec int
	// Images governs which container names this policy applies to;
	// empty means all containers.
	Images map[string]bool
}

// RollbackConfig is the auto-rollback configuration parsed alongside
// ResourcePolicy (spec §4.6 step 3e, §4.7).
type RollbackConfig struct {
	Enabled        bool
	TimeoutSeconds int
	Retries        int
}

// FromAnnotations derives a ResourcePolicy from a workload's
// annotations. Defaults apply for every unset annotation. An unknown
// policy token, or a Glob policy missing its pattern, is a
// ConfigurationError (spec §7): callers must treat the policy as None
// for the pass, requeue long, and never create an UpdateRequest from
// it.
func FromAnnotations(annotations map[string]string) (ResourcePolicy, error) {
	rp := ResourcePolicy{
		RequireApproval:      defaultRequireApproval,
		MinUpdateIntervalSec: defaultMinUpdateIntervalS,
	}

	token := strings.ToLower(strings.TrimSpace(annotations[AnnotationPolicy]))
	if token == "" {
		token = "none"
	}
	kind, ok := kindByToken[token]
	if !ok {
		return ResourcePolicy{Policy: policy.Policy{Kind: policy.KindNone}}, herrors.Configuration(
			"parse "+AnnotationPolicy, fmt.Errorf("unknown policy token %q", token))
	}
	rp.Policy.Kind = kind
	rp.Policy.Pattern = annotations[AnnotationPattern]

	if kind == policy.KindGlob && rp.Policy.Pattern == "" {
		return ResourcePolicy{Policy: policy.Policy{Kind: policy.KindNone}}, herrors.Configuration(
			"parse "+AnnotationPattern, fmt.Errorf("glob policy requires %s", AnnotationPattern))
	}

	if raw, ok := annotations[AnnotationRequireApproval]; ok {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return ResourcePolicy{Policy: policy.Policy{Kind: policy.KindNone}}, herrors.Configuration(
				"parse "+AnnotationRequireApproval, err)
		}
		rp.RequireApproval = v
	}

	if raw, ok := annotations[AnnotationMinInterval]; ok {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return ResourcePolicy{Policy: policy.Policy{Kind: policy.KindNone}}, herrors.Configuration(
				"parse "+AnnotationMinInterval, err)
		}
		rp.MinUpdateIntervalSec = v
	}

	if raw, ok := annotations[AnnotationImages]; ok && raw != "" {
		rp.Images = map[string]bool{}
		for _, name := range strings.Split(raw, ",") {
			name = strings.TrimSpace(name)
			if name != "" {
				rp.Images[name] = true
			}
		}
	}

	return rp, nil
}

// Governs reports whether this ResourcePolicy applies to containerName
// (spec §3: "empty means all").
func (rp ResourcePolicy) Governs(containerName string) bool {
	if len(rp.Images) == 0 {
		return true
	}
	return rp.Images[containerName]
}

// RollbackFromAnnotations derives the auto-rollback configuration.
func RollbackFromAnnotations(annotations map[string]string) (RollbackConfig, error) {
	rc := RollbackConfig{
		Enabled:        defaultAutoRollback,
		TimeoutSeconds: defaultRollbackTimeoutS,
		Retries:        defaultHealthCheckRetries,
	}

	if raw, ok := annotations[AnnotationAutoRollback]; ok {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return rc, herrors.Configuration("parse "+AnnotationAutoRollback, err)
		}
		rc.Enabled = v
	}
	if raw, ok := annotations[AnnotationRollbackTimeout]; ok {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return rc, herrors.Configuration("parse "+AnnotationRollbackTimeout, err)
		}
		rc.TimeoutSeconds = v
	}
	if raw, ok := annotations[AnnotationHealthRetries]; ok {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return rc, herrors.Configuration("parse "+AnnotationHealthRetries, err)
		}
		rc.Retries = v
	}
	return rc, nil
}

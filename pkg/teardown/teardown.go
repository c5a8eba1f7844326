// Package teardown reverses provisioning and everything the stack started.
package teardown

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rzbill/localai/pkg/compose"
	"github.com/rzbill/localai/pkg/log"
	"github.com/rzbill/localai/pkg/runner"
)

// ErrDeclined is returned when the operator does not confirm the teardown.
var ErrDeclined = errors.New("teardown declined")

// Plan enumerates what a teardown removes. Paths are relative to the work dir.
type Plan struct {
	Project      string   `yaml:"-" mapstructure:"-"`
	ComposeFiles []string `yaml:"-" mapstructure:"-"`
	Volumes      []string `yaml:"volumes" mapstructure:"volumes"`
	Images       []string `yaml:"images" mapstructure:"images"`
	Dirs         []string `yaml:"dirs" mapstructure:"dirs"`
	Files        []string `yaml:"files" mapstructure:"files"`
	SystemPrune  bool     `yaml:"system_prune" mapstructure:"system_prune"`
}

// DefaultPlan lists the volumes, images and generated paths of the stack.
// Version-controlled inputs such as the template and compose files are not listed.
func DefaultPlan() Plan {
	return Plan{
		Volumes: []string{
			"localai_n8n_storage", "localai_ollama_storage", "localai_qdrant_storage",
			"localai_open-webui", "localai_flowise", "localai_caddy-data", "localai_caddy-config",
			"localai_valkey-data", "localai_db-config",
		},
		Images: []string{
			"n8nio/n8n", "ollama/ollama", "qdrant/qdrant", "ghcr.io/open-webui/open-webui",
			"flowiseai/flowise", "searxng/searxng", "cloudflare/cloudflared",
		},
		Dirs: []string{
			"supabase", "n8n-data", "ollama-data", "flowise-data", "webui-data",
			"searxng-data", "shared", "n8n", "n8n-tool-workflows", ".localai",
		},
		Files:       []string{".env", "cloudflared", "cloudflared.exe", filepath.Join("searxng", "settings.yml")},
		SystemPrune: true,
	}
}

// Confirmer gates a teardown. Only an explicit yes may return true.
type Confirmer interface {
	ConfirmExact(question string) (bool, error)
}

// Downer is the compose call used to stop the project.
type Downer interface {
	Down(ctx context.Context, opts compose.DownOptions) error
}

// StepResult is the outcome of one teardown step.
type StepResult struct {
	Step   string
	Target string
	Err    error
	Note   string
}

// Report collects every step outcome.
type Report struct {
	Steps []StepResult
}

// Failed returns the steps that ended in an error.
func (r *Report) Failed() []StepResult {
	var out []StepResult
	for _, s := range r.Steps {
		if s.Err != nil {
			out = append(out, s)
		}
	}
	return out
}

// Reverser runs a teardown plan.
type Reverser struct {
	compose Downer
	engine  runner.Engine
	workDir string
	logger  log.Logger

	removeAll func(string) error
}

// NewReverser creates a Reverser. engine may be nil, in which case only the
// compose and filesystem steps run.
func NewReverser(d Downer, engine runner.Engine, workDir string, logger log.Logger) *Reverser {
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	return &Reverser{
		compose:   d,
		engine:    engine,
		workDir:   workDir,
		logger:    logger.WithComponent("teardown"),
		removeAll: os.RemoveAll,
	}
}

// Run asks for confirmation and then attempts every step in order. Step
// failures are recorded and logged; they never stop later steps. Only
// declining or cancellation returns an error.
func (r *Reverser) Run(ctx context.Context, plan Plan, confirmer Confirmer) (*Report, error) {
	if confirmer == nil {
		return nil, fmt.Errorf("%w: confirmation required", ErrDeclined)
	}
	ok, err := confirmer.ConfirmExact("This will delete all generated configuration, containers, volumes and data. Continue?")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrDeclined
	}

	report := &Report{}
	steps := []func(context.Context, Plan, *Report){
		r.stopContainers,
		r.removeVolumes,
		r.removeImages,
		r.pruneNetworks,
		r.removeDirs,
		r.removeFiles,
		r.systemPrune,
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		step(ctx, plan, report)
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (r *Reverser) record(report *Report, res StepResult) {
	report.Steps = append(report.Steps, res)
	switch {
	case res.Err != nil:
		r.logger.Warn("Teardown step failed, continuing", log.Step(res.Step), log.Str("target", res.Target), log.Err(res.Err))
	case res.Note != "":
		r.logger.Info(res.Note, log.Step(res.Step), log.Str("target", res.Target))
	default:
		r.logger.Info("Removed", log.Step(res.Step), log.Str("target", res.Target))
	}
}

func (r *Reverser) stopContainers(ctx context.Context, plan Plan, report *Report) {
	if r.compose != nil {
		err := r.compose.Down(ctx, compose.DownOptions{Files: plan.ComposeFiles, Volumes: true, RemoveOrphans: true})
		res := StepResult{Step: "stop", Target: plan.Project}
		if err != nil {
			res.Note = "No running containers to stop"
		}
		r.record(report, res)
	}
	if r.engine == nil {
		return
	}
	removed, err := r.engine.RemoveContainers(ctx, plan.Project)
	res := StepResult{Step: "containers", Target: plan.Project, Err: err}
	if err == nil {
		res.Note = fmt.Sprintf("Removed %d leftover containers", len(removed))
	}
	r.record(report, res)
}

func (r *Reverser) removeVolumes(ctx context.Context, plan Plan, report *Report) {
	if r.engine == nil {
		return
	}
	for _, v := range plan.Volumes {
		r.record(report, absentOK("volume", v, r.engine.RemoveVolume(ctx, v)))
	}
	pr, err := r.engine.PruneVolumes(ctx, plan.Project)
	r.record(report, pruned("volumes", pr, err))
}

func (r *Reverser) removeImages(ctx context.Context, plan Plan, report *Report) {
	if r.engine == nil {
		return
	}
	for _, img := range plan.Images {
		r.record(report, absentOK("image", img, r.engine.RemoveImage(ctx, img)))
	}
	pr, err := r.engine.PruneImages(ctx)
	r.record(report, pruned("images", pr, err))
}

func (r *Reverser) pruneNetworks(ctx context.Context, plan Plan, report *Report) {
	if r.engine == nil {
		return
	}
	pr, err := r.engine.PruneNetworks(ctx)
	r.record(report, pruned("networks", pr, err))
}

func (r *Reverser) systemPrune(ctx context.Context, plan Plan, report *Report) {
	if r.engine == nil || !plan.SystemPrune {
		return
	}
	prunes := []struct {
		name string
		fn   func(context.Context) (runner.PruneReport, error)
	}{
		{"system-containers", r.engine.PruneContainers},
		{"system-networks", r.engine.PruneNetworks},
		{"system-images", r.engine.PruneImages},
		{"system-build-cache", r.engine.PruneBuildCache},
	}
	for _, p := range prunes {
		pr, err := p.fn(ctx)
		r.record(report, pruned(p.name, pr, err))
	}
}

func absentOK(step, target string, err error) StepResult {
	res := StepResult{Step: step, Target: target}
	switch {
	case errors.Is(err, runner.ErrNotFound):
		res.Note = "Already absent"
	case err != nil:
		res.Err = err
	}
	return res
}

func pruned(step string, pr runner.PruneReport, err error) StepResult {
	if err != nil {
		return StepResult{Step: "prune", Target: step, Err: err}
	}
	return StepResult{Step: "prune", Target: step, Note: fmt.Sprintf("Pruned %d, reclaimed %d bytes", len(pr.Deleted), pr.SpaceReclaimed)}
}

// resolve joins rel onto the work dir and refuses paths that leave it.
func (r *Reverser) resolve(rel string) (string, error) {
	if rel == "" || filepath.IsAbs(rel) {
		return "", fmt.Errorf("refusing path %q: must be relative to the work dir", rel)
	}
	full := filepath.Join(r.workDir, rel)
	back, err := filepath.Rel(r.workDir, full)
	if err != nil || back == "." || back == ".." || strings.HasPrefix(back, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("refusing path %q: outside the work dir", rel)
	}
	return full, nil
}

func (r *Reverser) removeDirs(ctx context.Context, plan Plan, report *Report) {
	for _, d := range plan.Dirs {
		res := StepResult{Step: "dir", Target: d}
		path, err := r.resolve(d)
		if err != nil {
			res.Err = err
			r.record(report, res)
			continue
		}
		if _, err := os.Lstat(path); errors.Is(err, fs.ErrNotExist) {
			res.Note = "Already absent"
			r.record(report, res)
			continue
		}
		if err := r.removeAll(path); err != nil {
			r.logger.Debug("Removal failed, forcing permissions", log.Str("dir", d), log.Err(err))
			if ferr := r.forceRemove(path); ferr != nil {
				res.Err = fmt.Errorf("%v; forced removal: %w", err, ferr)
			} else {
				res.Note = "Removed after forcing permissions"
			}
		}
		r.record(report, res)
	}
}

// forceRemove makes the tree writable by the owner and retries.
func (r *Reverser) forceRemove(path string) error {
	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			_ = os.Chmod(p, 0o700)
		} else if d.Type().IsRegular() {
			_ = os.Chmod(p, 0o600)
		}
		return nil
	})
	return r.removeAll(path)
}

func (r *Reverser) removeFiles(ctx context.Context, plan Plan, report *Report) {
	for _, f := range plan.Files {
		res := StepResult{Step: "file", Target: f}
		path, err := r.resolve(f)
		if err != nil {
			res.Err = err
			r.record(report, res)
			continue
		}
		err = os.Remove(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			res.Note = "Already absent"
		case err != nil:
			res.Err = err
		}
		r.record(report, res)
	}
}

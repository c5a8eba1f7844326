package provision

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rzbill/localai/pkg/crypto"
	"github.com/rzbill/localai/pkg/envfile"
	"github.com/rzbill/localai/pkg/log"
)

// Options configures a Provisioner. Relative paths resolve against WorkDir.
type Options struct {
	WorkDir          string
	EnvFile          string
	Template         string
	TemplateRequired bool
	Mirrors          []string
	Exclude          string
	Fields           []FieldSpec
	Token            TokenOptions

	// Force regenerates an existing snapshot.
	Force bool

	// Now defaults to time.Now.
	Now func() time.Time
}

// Result describes what Provision did.
type Result struct {
	Path    string
	Created bool
	Keys    []string
}

// Provisioner creates the snapshot and mirrors it.
type Provisioner struct {
	opts   Options
	logger log.Logger
}

// New creates a Provisioner.
func New(opts Options, logger log.Logger) *Provisioner {
	if opts.Exclude == "" {
		opts.Exclude = crypto.DefaultExclude
	}
	if opts.Fields == nil {
		opts.Fields = DefaultFields()
	}
	if opts.Token == (TokenOptions{}) {
		opts.Token = DefaultTokenOptions()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	return &Provisioner{opts: opts, logger: logger.WithComponent("provision")}
}

func (p *Provisioner) path(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(p.opts.WorkDir, name)
}

// EnvPath returns the absolute location of the canonical snapshot.
func (p *Provisioner) EnvPath() string {
	return p.path(p.opts.EnvFile)
}

// MirrorPaths returns the resolved mirror locations.
func (p *Provisioner) MirrorPaths() []string {
	out := make([]string, 0, len(p.opts.Mirrors))
	for _, m := range p.opts.Mirrors {
		out = append(out, p.path(m))
	}
	return out
}

// Generate produces a fresh snapshot in field order.
func (p *Provisioner) Generate() (*envfile.Snapshot, error) {
	if err := Validate(p.opts.Fields); err != nil {
		return nil, err
	}
	now := p.opts.Now()
	s := envfile.New()
	for _, f := range p.opts.Fields {
		v, err := generateValue(f, p.opts.Exclude, s, p.opts.Token, now)
		if err != nil {
			return nil, fmt.Errorf("failed to generate %s: %w", f.Name, err)
		}
		if err := s.Set(f.Name, v); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Provision writes a new snapshot unless one already exists. An existing
// snapshot is left untouched unless Force is set.
func (p *Provisioner) Provision(ctx context.Context) (*Result, error) {
	path := p.EnvPath()
	if envfile.Exists(path) && !p.opts.Force {
		p.logger.Info("Snapshot already exists, keeping current values", log.Str("path", path))
		return &Result{Path: path}, nil
	}

	var template []byte
	if p.opts.Template != "" {
		data, err := envfile.ReadTemplate(p.path(p.opts.Template))
		switch {
		case err == nil:
			template = data
		case errors.Is(err, envfile.ErrTemplateNotFound) && !p.opts.TemplateRequired:
			p.logger.Warn("Template not found, writing a flat snapshot", log.Str("template", p.opts.Template))
		default:
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s, err := p.Generate()
	if err != nil {
		return nil, err
	}
	if err := envfile.Persist(s, path, template); err != nil {
		return nil, err
	}

	if p.opts.Force {
		p.logger.Warn("Snapshot regenerated; running services still hold the old values", log.Str("path", path))
	} else {
		p.logger.Info("Snapshot created", log.Str("path", path), log.Int("fields", s.Len()))
	}
	return &Result{Path: path, Created: true, Keys: s.Keys()}, nil
}

// Propagate copies the canonical snapshot to every mirror.
func (p *Provisioner) Propagate() error {
	mirrors := p.MirrorPaths()
	if len(mirrors) == 0 {
		return nil
	}
	if err := envfile.Propagate(p.EnvPath(), mirrors); err != nil {
		return err
	}
	p.logger.Debug("Snapshot propagated", log.Strs("mirrors", mirrors))
	return nil
}

// AppendFields adds fields to the canonical snapshot without touching
// existing values, then resyncs the mirrors when anything changed.
func (p *Provisioner) AppendFields(fields *envfile.Snapshot) (envfile.AppendResult, error) {
	res, err := envfile.AppendFields(p.EnvPath(), fields)
	if err != nil {
		return res, err
	}
	for _, k := range res.Skipped {
		p.logger.Warn("Field already set, keeping existing value", log.Str("field", k))
	}
	if !res.Changed() {
		return res, nil
	}
	return res, p.Propagate()
}

// StaleMirrors returns the configured mirrors whose content no longer matches
// the canonical snapshot. It returns nothing when no snapshot exists yet.
func (p *Provisioner) StaleMirrors() ([]string, error) {
	if !envfile.Exists(p.EnvPath()) {
		return nil, nil
	}
	diverged, err := envfile.Diverged(p.EnvPath(), p.MirrorPaths())
	if err != nil {
		return nil, err
	}
	stale := make(map[string]bool, len(diverged))
	for _, d := range diverged {
		stale[d] = true
	}
	var out []string
	for _, m := range p.opts.Mirrors {
		if stale[p.path(m)] {
			out = append(out, m)
		}
	}
	return out, nil
}

// Load reads the canonical snapshot.
func (p *Provisioner) Load() (*envfile.Snapshot, error) {
	return envfile.ReadFile(p.EnvPath())
}

// Verify checks that every token field in the snapshot is signed by the
// current signing key and carries its configured role.
func (p *Provisioner) Verify(s *envfile.Snapshot) error {
	key := s.Value(p.opts.Token.SigningKey)
	for _, f := range p.opts.Fields {
		if f.Kind != KindToken {
			continue
		}
		if key == "" {
			return fmt.Errorf("%w: %s", ErrSigningKeyMissing, p.opts.Token.SigningKey)
		}
		role, err := TokenRole(s.Value(f.Name), key)
		if err != nil {
			return fmt.Errorf("token %s does not verify: %w", f.Name, err)
		}
		if role != f.Role {
			return fmt.Errorf("token %s has role %q, want %q", f.Name, role, f.Role)
		}
	}
	return nil
}

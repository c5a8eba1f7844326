package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/rzbill/localai/pkg/checkout"
	"github.com/rzbill/localai/pkg/cli/format"
	"github.com/rzbill/localai/pkg/envfile"
	"github.com/rzbill/localai/pkg/journal"
	"github.com/rzbill/localai/pkg/lifecycle"
	"github.com/rzbill/localai/pkg/log"
	"github.com/rzbill/localai/pkg/probes"
	"github.com/rzbill/localai/pkg/provision"
	"github.com/rzbill/localai/pkg/version"
	"github.com/spf13/cobra"
)

type startOptions struct {
	profile  string
	noPrompt bool
	force    bool
}

func newStartCmd(app *App) *cobra.Command {
	opts := &startOptions{}
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Provision secrets and start the stack",
		Long: `Generate the environment file on first run, fetch the core database
component, propagate the environment to it and start the core component
followed by every selected optional component.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runStart(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.profile, "profile", "p", "", "hardware profile (cpu, gpu-nvidia, gpu-amd, none)")
	cmd.Flags().BoolVarP(&opts.noPrompt, "no-prompt", "y", false, "accept every default without asking")
	cmd.Flags().BoolVar(&opts.force, "force-regenerate", false, "overwrite an existing environment file with new secrets")
	return cmd
}

func (a *App) runStart(ctx context.Context, opts *startOptions) (err error) {
	r := a.reporter
	rec := journal.NewRecord("start", a.Now())
	rec.ID = a.runID
	state := string(lifecycle.StateNotStarted)
	defer func() {
		rec.Finish(state, err, a.Now())
		a.record(ctx, rec)
	}()

	r.Banner(fmt.Sprintf("localai %s", version.Version))

	profile, err := a.chooseProfile(opts)
	if err != nil {
		return err
	}
	rec.Profile = profile

	r.Step("Provisioning environment")
	prov := a.provisioner(opts.force)
	res, err := prov.Provision(ctx)
	if err != nil {
		return err
	}
	if res.Created {
		r.Success("Generated %s with %d keys", a.cfg.Env.File, len(res.Keys))
	} else {
		r.Info("Keeping existing %s", a.cfg.Env.File)
		a.verifySnapshot(prov)
	}

	r.Step("Fetching core component")
	action, err := checkout.NewManager(a.Exec, a.cfg.WorkDir, a.logger).Ensure(ctx, a.cfg.Checkout)
	if err != nil {
		return err
	}
	r.Success("%s %s", a.cfg.Checkout.Dir, action)

	if err := prov.Propagate(); err != nil {
		return fmt.Errorf("failed to propagate environment: %w", err)
	}

	if a.cfg.SearXNG.Enabled {
		if err := a.ensureSearXNG(); err != nil {
			return err
		}
	}

	tunnel, err := a.configureTunnel(prov, opts.noPrompt)
	if err != nil {
		return err
	}

	var confirmer lifecycle.Confirmer
	if !opts.noPrompt {
		r.Section("Components")
		confirmer = a.prompter
	}
	sel, err := lifecycle.SelectComponents(a.cfg.Catalog, nil, confirmer)
	if err != nil {
		return err
	}
	rec.Components = sel.Enabled()

	engine, err := a.engine()
	if err != nil {
		return err
	}
	defer engine.Close()

	snap, err := prov.Load()
	if err != nil {
		return err
	}
	prober, err := probes.NewProber(a.cfg.Core.Readiness, probes.Deps{
		Engine:   engine,
		Password: snap.Value("POSTGRES_PASSWORD"),
		Database: snap.Value("POSTGRES_DB"),
	})
	if err != nil {
		return err
	}

	plan := lifecycle.Plan{
		Catalog:   a.cfg.Catalog,
		Selection: sel,
		Profile:   profile,
	}
	if tunnel {
		plan.ExtraProfiles = append(plan.ExtraProfiles, a.cfg.Tunnel.Profile)
		plan.ExtraServices = append(plan.ExtraServices, a.cfg.Tunnel.Services...)
	}

	r.Step("Starting %s (profile %s)", a.cfg.Project, profile)
	ctrl := a.controller(engine, prober)
	err = ctrl.Start(ctx, plan)
	state = string(ctrl.State())
	if err != nil {
		return err
	}

	r.Success("Stack is running")
	return r.AccessSummary(accessEntries(a.cfg.Catalog, sel))
}

// verifySnapshot warns when a kept snapshot carries tokens that its signing
// key no longer verifies.
func (a *App) verifySnapshot(prov *provision.Provisioner) {
	s, err := prov.Load()
	if err == nil {
		err = prov.Verify(s)
	}
	if err != nil {
		a.logger.Warn("Existing snapshot does not verify", log.Err(err))
		a.reporter.Warn("%s does not verify: %v", a.cfg.Env.File, err)
		a.reporter.Warn("run `localai start --force-regenerate` to rebuild it")
	}
}

func (a *App) chooseProfile(opts *startOptions) (string, error) {
	profile := opts.profile
	if profile == "" {
		profile = a.cfg.Profile
		if !opts.noPrompt {
			chosen, err := a.prompter.Choose("Hardware profile", lifecycle.Profiles, profile)
			if err != nil {
				return "", err
			}
			profile = chosen
		}
	}
	if err := lifecycle.ValidateProfile(profile); err != nil {
		return "", err
	}
	return profile, nil
}

func (a *App) ensureSearXNG() error {
	changed, err := provision.EnsureSearXNGKey(a.cfg.Resolve(a.cfg.SearXNG.Base), a.cfg.Resolve(a.cfg.SearXNG.Settings))
	switch {
	case errors.Is(err, provision.ErrBaseSettingsNotFound):
		a.logger.Warn("SearXNG base settings not found, skipping secret key", log.Str("path", a.cfg.SearXNG.Base))
		a.reporter.Warn("SearXNG settings not generated: %s is missing", a.cfg.SearXNG.Base)
		return nil
	case err != nil:
		return err
	case changed:
		a.reporter.Success("Generated SearXNG secret key")
	}
	return nil
}

// configureTunnel reports whether the tunnel is enabled, asking for a token
// when none is stored yet.
func (a *App) configureTunnel(prov *provision.Provisioner, noPrompt bool) (bool, error) {
	key := a.cfg.Tunnel.TokenKey
	if key == "" {
		return false, nil
	}
	snap, err := prov.Load()
	if err != nil {
		return false, err
	}
	if snap.Value(key) != "" {
		a.logger.Debug("Tunnel token present", log.Str("key", key))
		return true, nil
	}
	if noPrompt {
		return false, nil
	}

	ok, err := a.prompter.Confirm("Expose the stack through a Cloudflare tunnel?", false)
	if err != nil || !ok {
		return false, err
	}
	token, err := a.prompter.Secret("Tunnel token")
	if err != nil {
		return false, err
	}
	if token == "" {
		a.reporter.Warn("No token given, continuing without a tunnel")
		return false, nil
	}
	if err := a.setTunnelToken(prov, token); err != nil {
		return false, err
	}
	return true, nil
}

func (a *App) setTunnelToken(prov *provision.Provisioner, token string) error {
	fields, err := envfile.FromPairs(a.cfg.Tunnel.TokenKey, token)
	if err != nil {
		return fmt.Errorf("invalid tunnel token: %w", err)
	}
	res, err := prov.AppendFields(fields)
	if err != nil {
		return err
	}
	if len(res.Skipped) > 0 {
		a.reporter.Warn("%s is already set; remove it from %s to replace it", a.cfg.Tunnel.TokenKey, a.cfg.Env.File)
		return nil
	}
	a.reporter.Success("Stored %s", a.cfg.Tunnel.TokenKey)
	return nil
}

func accessEntries(catalog []lifecycle.Component, sel lifecycle.Selection) []format.AccessEntry {
	var out []format.AccessEntry
	for _, c := range catalog {
		if sel[c.ID] {
			out = append(out, format.AccessEntry{Name: c.Name, URL: c.URL, Port: c.Port})
		}
	}
	return out
}

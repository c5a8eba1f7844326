package provision

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzbill/localai/pkg/crypto"
	"github.com/rzbill/localai/pkg/envfile"
	"github.com/rzbill/localai/pkg/log"
)

func newTestProvisioner(t *testing.T, dir string, mutate func(*Options)) (*Provisioner, *log.TestLogger) {
	t.Helper()
	logger := log.NewTestLogger()
	opts := Options{
		WorkDir: dir,
		EnvFile: ".env",
		Mirrors: []string{filepath.Join("supabase", "docker", ".env")},
	}
	if mutate != nil {
		mutate(&opts)
	}
	return New(opts, logger), logger
}

func fieldNames(fields []FieldSpec) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.Name)
	}
	return out
}

func TestGenerate_DefaultFields(t *testing.T) {
	p, _ := newTestProvisioner(t, t.TempDir(), nil)

	s, err := p.Generate()
	require.NoError(t, err)
	assert.Equal(t, fieldNames(DefaultFields()), s.Keys())

	charset := crypto.NewCharset(crypto.DefaultExclude)
	for _, f := range DefaultFields() {
		v := s.Value(f.Name)
		require.NotEmpty(t, v, f.Name)

		switch f.Kind {
		case KindSecret:
			assert.Len(t, v, f.Length, f.Name)
			assert.True(t, strings.ContainsAny(v, charset.Letters), f.Name)
			assert.True(t, strings.ContainsAny(v, charset.Digits), f.Name)
			assert.True(t, strings.ContainsAny(v, charset.Symbols), f.Name)
			assert.False(t, strings.ContainsAny(v, crypto.DefaultExclude), f.Name)
		case KindAlphanumeric:
			assert.Len(t, v, f.Length, f.Name)
		case KindFixed:
			assert.Equal(t, f.Value, v)
		}
	}

	assert.Equal(t, "admin", s.Value("DASHBOARD_USERNAME"))
	assert.Len(t, s.Value("POOLER_TENANT_ID"), 4)
}

func TestGenerate_TokensSignedWithJWTSecret(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	p, _ := newTestProvisioner(t, t.TempDir(), func(o *Options) {
		o.Now = func() time.Time { return now }
	})

	s, err := p.Generate()
	require.NoError(t, err)
	require.NoError(t, p.Verify(s))

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(s.Value("ANON_KEY"), claims, func(*jwt.Token) (interface{}, error) {
		return []byte(s.Value("JWT_SECRET")), nil
	}, jwt.WithTimeFunc(func() time.Time { return now }))
	require.NoError(t, err)

	assert.Equal(t, "anon", claims["role"])
	assert.Equal(t, "supabase", claims["iss"])
	assert.EqualValues(t, now.Unix(), claims["iat"])
	assert.EqualValues(t, now.Add(10*365*24*time.Hour).Unix(), claims["exp"])

	role, err := TokenRole(s.Value("SERVICE_ROLE_KEY"), s.Value("JWT_SECRET"))
	require.NoError(t, err)
	assert.Equal(t, "service_role", role)
}

func TestMintToken_FailsWithoutSigningKey(t *testing.T) {
	token, err := MintToken("", "anon", "supabase", time.Now(), time.Hour)
	assert.ErrorIs(t, err, ErrSigningKeyMissing)
	assert.Empty(t, token)
}

func TestGenerate_TokenBeforeSigningKeyFails(t *testing.T) {
	p, _ := newTestProvisioner(t, t.TempDir(), func(o *Options) {
		o.Fields = []FieldSpec{
			{Name: "ANON_KEY", Kind: KindToken, Role: "anon"},
			{Name: "JWT_SECRET", Kind: KindSecret, Length: 64},
		}
	})
	_, err := p.Generate()
	assert.ErrorIs(t, err, ErrSigningKeyMissing)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		fields []FieldSpec
	}{
		{"bad name", []FieldSpec{{Name: "A B", Kind: KindFixed}}},
		{"duplicate", []FieldSpec{{Name: "A", Kind: KindFixed}, {Name: "A", Kind: KindFixed}}},
		{"short secret", []FieldSpec{{Name: "A", Kind: KindSecret, Length: 2}}},
		{"bad range", []FieldSpec{{Name: "A", Kind: KindRange, Min: 5, Max: 1}}},
		{"token without role", []FieldSpec{{Name: "A", Kind: KindToken}}},
		{"unknown kind", []FieldSpec{{Name: "A", Kind: "nope"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, Validate(tt.fields))
		})
	}
	assert.NoError(t, Validate(DefaultFields()))
}

func TestProvision_CreatesExactlyEnumeratedKeys(t *testing.T) {
	dir := t.TempDir()
	p, _ := newTestProvisioner(t, dir, nil)

	res, err := p.Provision(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Created)

	s, err := envfile.ReadFile(filepath.Join(dir, ".env"))
	require.NoError(t, err)
	assert.Equal(t, fieldNames(DefaultFields()), s.Keys())
	for _, k := range s.Keys() {
		assert.NotEmpty(t, s.Value(k), k)
	}
}

func TestProvision_IsIdempotent(t *testing.T) {
	dir := t.TempDir()
	p, logger := newTestProvisioner(t, dir, nil)

	_, err := p.Provision(context.Background())
	require.NoError(t, err)
	before, err := os.ReadFile(filepath.Join(dir, ".env"))
	require.NoError(t, err)

	res, err := p.Provision(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Created)

	after, err := os.ReadFile(filepath.Join(dir, ".env"))
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.True(t, logger.AssertLogged(log.InfoLevel, "already exists"))
}

func TestProvision_ForceRegenerates(t *testing.T) {
	dir := t.TempDir()
	p, _ := newTestProvisioner(t, dir, nil)
	_, err := p.Provision(context.Background())
	require.NoError(t, err)
	first, err := p.Load()
	require.NoError(t, err)

	forced, logger := newTestProvisioner(t, dir, func(o *Options) { o.Force = true })
	res, err := forced.Provision(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Created)

	second, err := forced.Load()
	require.NoError(t, err)
	assert.NotEqual(t, first.Value("JWT_SECRET"), second.Value("JWT_SECRET"))
	assert.True(t, logger.AssertLogged(log.WarnLevel, "regenerated"))
}

func TestProvision_SplicesTemplate(t *testing.T) {
	dir := t.TempDir()
	template := "# Secrets\nJWT_SECRET=change-me\nSUPABASE_ANON_KEY=unrelated\nANON_KEY=\n\n# Ports\nN8N_PORT=5678\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.example"), []byte(template), 0o644))

	p, _ := newTestProvisioner(t, dir, func(o *Options) {
		o.Template = ".env.example"
		o.TemplateRequired = true
	})
	_, err := p.Provision(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, ".env"))
	require.NoError(t, err)
	content := string(data)
	assert.True(t, strings.HasPrefix(content, "# Secrets\nJWT_SECRET="))
	assert.Contains(t, content, "SUPABASE_ANON_KEY=unrelated\n")
	assert.Contains(t, content, "\n# Ports\nN8N_PORT=5678\n")
	assert.NotContains(t, content, "change-me")

	s, err := p.Load()
	require.NoError(t, err)
	assert.Equal(t, "unrelated", s.Value("SUPABASE_ANON_KEY"))
	require.NoError(t, p.Verify(s))
}

func TestProvision_MissingRequiredTemplateHasNoSideEffects(t *testing.T) {
	dir := t.TempDir()
	p, _ := newTestProvisioner(t, dir, func(o *Options) {
		o.Template = ".env.example"
		o.TemplateRequired = true
	})
	_, err := p.Provision(context.Background())
	assert.ErrorIs(t, err, envfile.ErrTemplateNotFound)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProvision_OptionalTemplateFallsBackToFlat(t *testing.T) {
	dir := t.TempDir()
	p, logger := newTestProvisioner(t, dir, func(o *Options) { o.Template = ".env.example" })
	_, err := p.Provision(context.Background())
	require.NoError(t, err)
	assert.True(t, logger.AssertLogged(log.WarnLevel, "Template not found"))
}

func TestProvision_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	p, _ := newTestProvisioner(t, dir, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Provision(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, filepath.Join(dir, ".env"))
}

func TestPersistThenPropagate_MirrorsAreIdentical(t *testing.T) {
	dir := t.TempDir()
	p, _ := newTestProvisioner(t, dir, func(o *Options) {
		o.Mirrors = append(o.Mirrors, filepath.Join("extra", "copy.env"))
	})
	_, err := p.Provision(context.Background())
	require.NoError(t, err)
	require.NoError(t, p.Propagate())

	canonical, err := os.ReadFile(p.EnvPath())
	require.NoError(t, err)
	for _, m := range p.MirrorPaths() {
		mirror, err := os.ReadFile(m)
		require.NoError(t, err)
		assert.Equal(t, canonical, mirror)
	}
}

func TestAppendFields_ResyncsMirrors(t *testing.T) {
	dir := t.TempDir()
	p, logger := newTestProvisioner(t, dir, nil)
	_, err := p.Provision(context.Background())
	require.NoError(t, err)
	require.NoError(t, p.Propagate())

	before, err := p.Load()
	require.NoError(t, err)

	fields, err := envfile.FromPairs("CLOUDFLARED_TUNNEL_TOKEN", "tok", "JWT_SECRET", "ignored")
	require.NoError(t, err)
	res, err := p.AppendFields(fields)
	require.NoError(t, err)
	assert.Equal(t, []string{"CLOUDFLARED_TUNNEL_TOKEN"}, res.Appended)
	assert.Equal(t, []string{"JWT_SECRET"}, res.Skipped)
	assert.True(t, logger.AssertLogged(log.WarnLevel, "already set"))

	after, err := p.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok", after.Value("CLOUDFLARED_TUNNEL_TOKEN"))
	for _, k := range before.Keys() {
		assert.Equal(t, before.Value(k), after.Value(k), k)
	}

	stale, err := p.StaleMirrors()
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestStaleMirrors(t *testing.T) {
	dir := t.TempDir()
	mirror := filepath.Join("supabase", "docker", ".env")
	p, _ := newTestProvisioner(t, dir, nil)

	stale, err := p.StaleMirrors()
	require.NoError(t, err)
	assert.Empty(t, stale, "no snapshot yet")

	_, err = p.Provision(context.Background())
	require.NoError(t, err)
	stale, err = p.StaleMirrors()
	require.NoError(t, err)
	assert.Equal(t, []string{mirror}, stale, "mirror missing")

	require.NoError(t, p.Propagate())
	stale, err = p.StaleMirrors()
	require.NoError(t, err)
	assert.Empty(t, stale)

	require.NoError(t, os.WriteFile(filepath.Join(dir, mirror), []byte("JWT_SECRET=old\n"), 0o600))
	stale, err = p.StaleMirrors()
	require.NoError(t, err)
	assert.Equal(t, []string{mirror}, stale)
}

func TestVerify_DetectsStaleTokens(t *testing.T) {
	p, _ := newTestProvisioner(t, t.TempDir(), nil)
	s, err := p.Generate()
	require.NoError(t, err)

	require.NoError(t, s.Set("JWT_SECRET", "rotated-by-hand-0123456789"))
	assert.Error(t, p.Verify(s))
}

func TestSecretFieldNames(t *testing.T) {
	names := SecretFieldNames(DefaultFields())
	assert.Contains(t, names, "JWT_SECRET")
	assert.Contains(t, names, "ANON_KEY")
	assert.NotContains(t, names, "DASHBOARD_USERNAME")
	assert.NotContains(t, names, "POOLER_TENANT_ID")
}

func TestEnsureSearXNGKey(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "searxng", "settings-base.yml")
	settings := filepath.Join(dir, "searxng", "settings.yml")

	_, err := EnsureSearXNGKey(base, settings)
	assert.ErrorIs(t, err, ErrBaseSettingsNotFound)

	require.NoError(t, os.MkdirAll(filepath.Dir(base), 0o755))
	require.NoError(t, os.WriteFile(base, []byte("server:\n  secret_key: \"ultrasecretkey\"\n  port: 8080\n"), 0o644))

	wrote, err := EnsureSearXNGKey(base, settings)
	require.NoError(t, err)
	assert.True(t, wrote)

	data, err := os.ReadFile(settings)
	require.NoError(t, err)
	assert.NotContains(t, string(data), SearXNGPlaceholder)
	assert.Regexp(t, `secret_key: "[0-9a-f]{64}"`, string(data))

	wrote, err = EnsureSearXNGKey(base, settings)
	require.NoError(t, err)
	assert.False(t, wrote)

	again, err := os.ReadFile(settings)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

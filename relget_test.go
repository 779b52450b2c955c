package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zyedidia/relget/release"
	"github.com/zyedidia/relget/release/releasetest"
)

const testToken = "ghp_valid"

// isolate keeps the user's environment and config files out of a test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("RELGET_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))
	t.Setenv("RELGET_GITHUB_TOKEN", "")
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("RELGET_API_URL", "")
}

func newServer(t *testing.T) *releasetest.Server {
	t.Helper()
	srv := releasetest.NewServer(testToken)
	t.Cleanup(srv.Close)
	srv.AddRepo(releasetest.Repo{
		Owner:  "acme",
		Name:   "widget",
		Latest: "v3.0.0",
		Releases: []releasetest.Release{
			{ID: 2, Tag: "v2.0.0", Tarball: []byte("tarball v2.0.0"), Assets: []releasetest.Asset{
				{ID: 20, Name: "server-darwin-arm64", Data: []byte("darwin bytes")},
				{ID: 21, Name: "server-linux-amd64", Data: []byte("linux bytes")},
			}},
			{ID: 3, Tag: "v3.0.0", Tarball: []byte("tarball v3.0.0")},
		},
	})
	return srv
}

type runResult struct {
	code   int
	stdout string
	stderr string
}

func runCLI(args ...string) runResult {
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return runResult{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func assertNoFile(t *testing.T, path string) {
	t.Helper()
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "%s should not exist", path)
}

func TestRunLatestTarball(t *testing.T) {
	isolate(t)
	srv := newServer(t)
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.tar.gz")

	res := runCLI("--api-url", srv.URL, "--token", testToken, "-q", "--tag", "latest", "--to", dest, "acme/widget")
	require.Equal(t, exitOK, res.code, res.stderr)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "tarball v3.0.0", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	assert.True(t, srv.Requested("/repos/acme/widget/tarball/v3.0.0"))
	assert.False(t, srv.Requested("/repos/acme/widget/releases/assets/"))
}

func TestRunNamedAsset(t *testing.T) {
	isolate(t)
	srv := newServer(t)
	dest := filepath.Join(t.TempDir(), "server")

	res := runCLI("--api-url", srv.URL, "--token", testToken, "-t", "v2.0.0", "-a", "server-linux-amd64", "-o", dest, "acme/widget")
	require.Equal(t, exitOK, res.code, res.stderr)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "linux bytes", string(data))
	assert.Contains(t, res.stdout, "server-linux-amd64")
	assert.False(t, srv.Requested("/repos/acme/widget/tarball/"))
}

func TestRunReleaseNotFound(t *testing.T) {
	isolate(t)
	srv := newServer(t)
	dest := filepath.Join(t.TempDir(), "out.tar.gz")

	res := runCLI("--api-url", srv.URL, "--token", testToken, "--tag", "v1.0.0", "--to", dest, "acme/widget")
	assert.Equal(t, exitFail, res.code)
	assert.Contains(t, res.stderr, "acme/widget")
	assert.Contains(t, res.stderr, "v1.0.0")
	assertNoFile(t, dest)
}

func TestRunAssetNotFound(t *testing.T) {
	isolate(t)
	srv := newServer(t)
	dest := filepath.Join(t.TempDir(), "server")

	res := runCLI("--api-url", srv.URL, "--token", testToken, "--tag", "v2.0.0", "--asset", "server-windows-amd64.exe", "--to", dest, "acme/widget")
	assert.Equal(t, exitFail, res.code)
	assert.Contains(t, res.stderr, "server-windows-amd64.exe")
	assertNoFile(t, dest)
	assert.False(t, srv.Requested("/repos/acme/widget/tarball/"))
}

func TestRunBadToken(t *testing.T) {
	isolate(t)
	srv := newServer(t)
	dest := filepath.Join(t.TempDir(), "out.tar.gz")

	res := runCLI("--api-url", srv.URL, "--token", "ghp_revoked", "--tag", "latest", "--to", dest, "acme/missing")
	assert.Equal(t, exitFail, res.code)
	assert.Contains(t, res.stderr, "failed to authenticate")
	assert.NotContains(t, res.stderr, "acme/missing")
	assert.NotContains(t, res.stderr, "ghp_revoked")
	assert.Equal(t, []string{"GET /user"}, srv.Requests())
	assertNoFile(t, dest)
}

func TestRunRepositoryNotFound(t *testing.T) {
	isolate(t)
	srv := newServer(t)

	res := runCLI("--api-url", srv.URL, "--token", testToken, "--tag", "latest", "--to", filepath.Join(t.TempDir(), "x"), "acme/gadget")
	assert.Equal(t, exitFail, res.code)
	assert.Contains(t, res.stderr, "repository acme/gadget doesn't exist")
}

func TestRunTokenFromEnv(t *testing.T) {
	isolate(t)
	srv := newServer(t)
	t.Setenv("GITHUB_TOKEN", testToken)
	t.Setenv("RELGET_API_URL", srv.URL)
	dest := filepath.Join(t.TempDir(), "out.tar.gz")

	res := runCLI("-q", "--tag", "v2.0.0", "--to", dest, "acme/widget")
	require.Equal(t, exitOK, res.code, res.stderr)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "tarball v2.0.0", string(data))
}

func TestRunCheckMode(t *testing.T) {
	isolate(t)
	srv := newServer(t)
	dest := filepath.Join(t.TempDir(), "out.tar.gz")

	res := runCLI("--check", "--api-url", srv.URL, "--token", "anything", "--tag", "latest", "--to", dest, "acme/widget")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "check mode")
	assert.NotContains(t, res.stdout, "anything")
	assert.Empty(t, srv.Requests())
	assertNoFile(t, dest)
}

func TestRunCheckModeStillValidates(t *testing.T) {
	isolate(t)

	res := runCLI("--check", "--token", "x", "--to", "/tmp/out", "acme/widget")
	assert.Equal(t, exitUsage, res.code)
	assert.Contains(t, res.stderr, "no release given")
}

func TestRunUsageErrors(t *testing.T) {
	isolate(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no target", []string{"--tag", "latest"}, "expected exactly one target"},
		{"bad target", []string{"--token", "x", "--tag", "latest", "--to", "out", "widget"}, "owner/repo"},
		{"no dest", []string{"--token", "x", "--tag", "latest", "acme/widget"}, "no destination"},
		{"no token", []string{"--tag", "latest", "--to", "out", "acme/widget"}, "no GitHub token"},
		{"unknown flag", []string{"--nope"}, "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runCLI(tt.args...)
			assert.Equal(t, exitUsage, res.code)
			assert.Contains(t, res.stderr, tt.want)
		})
	}
}

func TestRunDependencyUnavailable(t *testing.T) {
	isolate(t)

	res := runCLI("--api-url", "api.github.com", "--token", "x", "--tag", "latest", "--to", "out", "acme/widget")
	assert.Equal(t, exitFail, res.code)
	assert.Contains(t, res.stderr, "missing required capability")
}

func TestRunJSON(t *testing.T) {
	isolate(t)
	srv := newServer(t)
	dest := filepath.Join(t.TempDir(), "server")

	res := runCLI("--json", "--sha256", "--api-url", srv.URL, "--token", testToken, "--tag", "v2.0.0", "--asset", "server-darwin-arm64", "--to", dest, "acme/widget")
	require.Equal(t, exitOK, res.code, res.stderr)

	var got result
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &got))
	assert.True(t, got.Changed)
	assert.False(t, got.Failed)
	assert.Equal(t, "v2.0.0", got.Release)
	assert.Equal(t, "server-darwin-arm64", got.Asset)
	assert.Equal(t, dest, got.Dest)
	assert.Len(t, got.SHA256, 64)

	res = runCLI("--json", "--api-url", srv.URL, "--token", testToken, "--tag", "v9", "--to", dest, "acme/widget")
	assert.Equal(t, exitFail, res.code)
	got = result{}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &got))
	assert.True(t, got.Failed)
	assert.Contains(t, got.Msg, "doesn't have release v9")
}

func TestRunSHA256(t *testing.T) {
	isolate(t)
	srv := newServer(t)
	dest := filepath.Join(t.TempDir(), "server")

	res := runCLI("-q", "--sha256", "--api-url", srv.URL, "--token", testToken, "--tag", "v2.0.0", "--asset", "server-linux-amd64", "--to", dest, "acme/widget")
	require.Equal(t, exitOK, res.code, res.stderr)
	// sha256 of "linux bytes"
	assert.Regexp(t, `^[0-9a-f]{64}\n$`, res.stdout)
}

func TestRunRate(t *testing.T) {
	isolate(t)
	srv := newServer(t)

	res := runCLI("--rate", "--api-url", srv.URL, "--token", testToken)
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Limit: 5000, Remaining: 4999")
}

func TestRunRateJSON(t *testing.T) {
	isolate(t)
	srv := newServer(t)

	res := runCLI("--rate", "--json", "--api-url", srv.URL, "--token", testToken)
	require.Equal(t, exitOK, res.code, res.stderr)

	var rl release.RateLimit
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &rl))
	assert.Equal(t, 5000, rl.Limit)
	assert.Equal(t, 4999, rl.Remaining)
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestRunJSONWriteFailure(t *testing.T) {
	isolate(t)
	dest := filepath.Join(t.TempDir(), "out.tar.gz")

	var stderr bytes.Buffer
	code := run([]string{"--json", "--check", "--token", "x", "--tag", "latest", "--to", dest, "acme/widget"}, failingWriter{}, &stderr)
	assert.Equal(t, exitFail, code)
	assert.Contains(t, stderr.String(), "broken pipe")
}

func TestRunVersion(t *testing.T) {
	res := runCLI("--version")
	assert.Equal(t, exitOK, res.code)
	assert.Equal(t, "relget version "+Version+"\n", res.stdout)
}

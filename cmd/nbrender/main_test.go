package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func notebookServer(t *testing.T) *httptest.Server {
	t.Helper()
	sample, err := os.ReadFile(filepath.Join("..", "..", "internal", "notebook", "testdata", "sample.ipynb"))
	require.NoError(t, err)
	mux := http.NewServeMux()
	mux.HandleFunc("/sample.ipynb", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(sample)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestEnsureLogDir(t *testing.T) {
	require.NoError(t, ensureLogDir(""), "empty path should be noop")
	require.NoError(t, ensureLogDir("app.log"), "file in current dir should be noop")

	dir := filepath.Join(t.TempDir(), "nested", "logs")
	require.NoError(t, ensureLogDir(filepath.Join(dir, "nbrender.log")))
	st, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, st.IsDir())
}

func TestRenderCommand_Stdout(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	srv := notebookServer(t)

	var stdout, stderr bytes.Buffer
	cliApp := newCLI()
	cliApp.Writer = &stdout
	cliApp.ErrWriter = &stderr

	require.NoError(t, cliApp.Run([]string{"nbrender", "render", srv.URL + "/sample.ipynb"}))
	assert.True(t, strings.HasPrefix(stdout.String(), "<!DOCTYPE html>"))
	assert.Contains(t, stdout.String(), "Analysis Report")
	assert.NotContains(t, stdout.String(), "In&nbsp;[")
	assert.Contains(t, stderr.String(), "Notebook rendered")
}

func TestRenderCommand_OutFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	srv := notebookServer(t)
	out := filepath.Join(t.TempDir(), "report.html")

	var stdout bytes.Buffer
	cliApp := newCLI()
	cliApp.Writer = &stdout
	cliApp.ErrWriter = &bytes.Buffer{}

	require.NoError(t, cliApp.Run([]string{"nbrender", "render", "--out", out, srv.URL + "/sample.ipynb"}))
	assert.Empty(t, stdout.String())

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Analysis Report")
}

func TestRenderCommand_Failure(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	srv := notebookServer(t)

	cliApp := newCLI()
	cliApp.Writer = &bytes.Buffer{}
	cliApp.ErrWriter = &bytes.Buffer{}

	err := cliApp.Run([]string{"nbrender", "render", srv.URL + "/missing.ipynb"})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "fetch failed: 404 Not Found"), err.Error())
}

func TestServe_GracefulShutdownOnSignal(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
server:
  host: "127.0.0.1"
  port: ":0"
logger:
  file: "`+filepath.Join(dir, "logs", "nbrender.log")+`"
  level: "warn"
`), 0o600))

	cliApp := newCLI()
	cliApp.Writer = &bytes.Buffer{}
	cliApp.ErrWriter = &bytes.Buffer{}

	done := make(chan error, 1)
	go func() {
		done <- cliApp.Run([]string{"nbrender", "--config", cfgPath, "serve"})
	}()

	time.Sleep(300 * time.Millisecond)
	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down after SIGTERM")
	}

	_, err := os.Stat(filepath.Join(dir, "logs", "nbrender.log"))
	assert.NoError(t, err)
}

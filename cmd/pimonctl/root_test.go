package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, srvURL string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--addr", srvURL}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestServiceCommand(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"result":"Stopped cockpit"}`))
	}))
	defer srv.Close()

	out, err := runCLI(t, srv.URL, "service", "cockpit", "stop")

	require.NoError(t, err)
	assert.Equal(t, "/service/cockpit/stop", gotPath)
	assert.Equal(t, "Stopped cockpit\n", out)
}

func TestServiceCommandRejectsBadActionLocally(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer srv.Close()

	_, err := runCLI(t, srv.URL, "service", "ssh", "enable")

	assert.Error(t, err)
	assert.False(t, called)
}

func TestPowerScheduleValidatesMinutes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	_, err := runCLI(t, srv.URL, "power", "schedule", "-3")
	assert.Error(t, err)

	out, err := runCLI(t, srv.URL, "power", "schedule", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "5 minute")
}

func TestStatusCommandPrintsSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"hostname":"pi","ip":"10.0.0.2","cpu":12.5,"ram":40,"disk":50,"temp":"48.3'C","services":{"SSH":"active"},"alerts_enabled":true}`))
	}))
	defer srv.Close()

	out, err := runCLI(t, srv.URL, "status")

	require.NoError(t, err)
	assert.Contains(t, out, "pi (10.0.0.2)")
	assert.Contains(t, out, "12.5%")
	assert.Contains(t, out, "service SSH")
}

func TestProvisionRequiresFlags(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	_, err := runCLI(t, srv.URL, "provision", "install", "--fqdn", "host.example.com")
	assert.Error(t, err)

	out, err := runCLI(t, srv.URL, "provision", "install", "--fqdn", "host.example.com", "--auth-id", "x")
	require.NoError(t, err)
	assert.Contains(t, out, "queued")
}

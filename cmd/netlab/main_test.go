// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTopology = `
tickInterval: 5ms
devices:
  - name: a
    kind: l2
    interfaces: [{name: eth0, mac: "02:00:00:00:00:0a"}]
  - name: b
    kind: l2
    interfaces: [{name: eth0, mac: "02:00:00:00:00:0b"}]
cables:
  - {a: a/eth0, b: b/eth0}
`

func TestRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lab.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testTopology), 0600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pcapDir := filepath.Join(t.TempDir(), "pcaps")
	ready := make(chan string, 1)
	errch := make(chan error, 1)
	go func() {
		args := []string{"-config", path, "-metrics-addr", "127.0.0.1:0", "-log-level", "error", "-pcap-dir", pcapDir}
		errch <- run(ctx, args, io.Discard, ready)
	}()

	var addr string
	select {
	case addr = <-ready:
	case err := <-errch:
		t.Fatal(err)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for the lab to start")
	}

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		return err == nil && strings.Contains(string(body), `netlab_ticks_total{device="a"}`)
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errch:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for run to return")
	}
	assert.FileExists(t, filepath.Join(pcapDir, "a_eth0.pcap"))
	assert.FileExists(t, filepath.Join(pcapDir, "b_eth0.pcap"))
}

func TestRunErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lab.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testTopology), 0600))
	ctx := context.Background()

	cases := map[string][]string{
		"missing config":  {},
		"unknown flag":    {"-nope"},
		"missing file":    {"-config", filepath.Join(t.TempDir(), "missing.yaml")},
		"bad log format":  {"-config", path, "-log-format", "xml"},
		"bad metrics addr": {"-config", path, "-metrics-addr", "256.0.0.1:http"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, run(ctx, args, io.Discard, nil))
		})
	}
}

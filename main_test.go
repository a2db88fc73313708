package main

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bootConfig() Config {
	cfg := validConfig()
	cfg.HTTPAddr = "127.0.0.1:0"
	return cfg
}

func TestBoot_BadCredentialsNeverServes(t *testing.T) {
	st := &fakeStation{assocErrs: []error{&ConnectionError{SSID: "office", Reason: ReasonBadCredentials}}}
	out := newFakeDrawer(128, 64)

	d, err := boot(context.Background(), bootConfig(), st, out, clockwork.NewFakeClock(), discardLogger())

	var ce *ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ReasonBadCredentials, ce.Reason)
	assert.Nil(t, d)
	assert.Equal(t, 2, out.count(), "connecting splash and failure splash")
}

func TestBoot_ServesUntilCancelled(t *testing.T) {
	st := &fakeStation{addr: stationAddr}
	out := newFakeDrawer(128, 64)

	d, err := boot(context.Background(), bootConfig(), st, out, clockwork.NewFakeClock(), discardLogger())
	require.NoError(t, err)
	assert.Equal(t, stationAddr, d.addr)
	assert.Equal(t, Snapshot{}, d.status.Read())

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- d.serve(ctx) }()

	require.Eventually(t, func() bool { return out.count() == 2 }, time.Second, time.Millisecond)
	want := composeFrame(Snapshot{}, stationAddr)
	assert.Equal(t, paintLines(out.bounds, want[:]).Pix, out.last().Pix)

	cancel()
	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestStart_FailedBootLeavesMessageOnPanel(t *testing.T) {
	st := &fakeStation{assocErrs: []error{&ConnectionError{SSID: "office", Reason: ReasonBadCredentials}}}
	out := newFakeDrawer(128, 64)

	err := start(context.Background(), bootConfig(), st, out, clockwork.NewFakeClock(), discardLogger())

	var ce *ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.False(t, out.isHalted())
	assert.Equal(t, paintLines(out.bounds, []string{"WiFi failed"}).Pix, out.last().Pix)
}

func TestStart_HaltsPanelOnShutdown(t *testing.T) {
	st := &fakeStation{addr: stationAddr}
	out := newFakeDrawer(128, 64)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := start(ctx, bootConfig(), st, out, clockwork.NewFakeClock(), discardLogger())

	assert.NoError(t, err)
	assert.True(t, out.isHalted())
}

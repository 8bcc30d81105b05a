package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/streamvault/internal/recorder"
	"github.com/jmylchreest/streamvault/internal/source"
)

func fakeRunner(blockUntilCancel bool) RecorderFunc {
	return func(ctx context.Context, opts recorder.Options) recorder.Result {
		mgr := source.NewManager(opts.Strategy, opts.Sources)
		if opts.OnStart != nil {
			opts.OnStart(opts.ID, mgr)
		}
		if blockUntilCancel {
			<-ctx.Done()
			return recorder.Result{ID: opts.ID, SourceURL: opts.Sources[0].URL, Err: ctx.Err()}
		}
		return recorder.Result{ID: opts.ID, SourceURL: opts.Sources[0].URL, OutputFiles: []string{"out-0.flv"}, TotalBytes: 42}
	}
}

func TestStartAndGetRecording(t *testing.T) {
	srv := NewServer(fakeRunner(false), recorder.Options{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	body := strings.NewReader(`{"sources":["http://example.com/live.flv"]}`)
	resp, err := http.Post(ts.URL+"/recordings", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var started map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&started))
	id := started["id"]
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		r, err := http.Get(ts.URL + "/recordings/" + id)
		require.NoError(t, err)
		defer r.Body.Close()
		var status RecordingStatus
		require.NoError(t, json.NewDecoder(r.Body).Decode(&status))
		return status.State == "completed"
	}, time.Second, 5*time.Millisecond)
}

func TestStopRecording(t *testing.T) {
	srv := NewServer(fakeRunner(true), recorder.Options{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	body := strings.NewReader(`{"sources":["http://example.com/live.flv"],"strategy":"round_robin"}`)
	resp, err := http.Post(ts.URL+"/recordings", "application/json", body)
	require.NoError(t, err)
	var started map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&started))
	resp.Body.Close()
	id := started["id"]

	stopResp, err := http.Post(ts.URL+"/recordings/"+id+"/stop", "application/json", nil)
	require.NoError(t, err)
	stopResp.Body.Close()
	require.Equal(t, http.StatusAccepted, stopResp.StatusCode)

	require.Eventually(t, func() bool {
		r, err := http.Get(ts.URL + "/recordings/" + id)
		require.NoError(t, err)
		defer r.Body.Close()
		var status RecordingStatus
		require.NoError(t, json.NewDecoder(r.Body).Decode(&status))
		return status.State == "failed"
	}, time.Second, 5*time.Millisecond)
}

func TestStartRecordingRejectsEmptySources(t *testing.T) {
	srv := NewServer(fakeRunner(false), recorder.Options{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/recordings", "application/json", strings.NewReader(`{"sources":[]}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRecordingSourcesReportsHealth(t *testing.T) {
	srv := NewServer(fakeRunner(true), recorder.Options{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/recordings", "application/json", strings.NewReader(`{"sources":["http://example.com/live.flv"]}`))
	require.NoError(t, err)
	var started map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&started))
	resp.Body.Close()
	id := started["id"]

	require.Eventually(t, func() bool {
		r, err := http.Get(ts.URL + "/recordings/" + id + "/sources")
		require.NoError(t, err)
		defer r.Body.Close()
		var health map[string]source.Health
		require.NoError(t, json.NewDecoder(r.Body).Decode(&health))
		_, ok := health["http://example.com/live.flv"]
		return ok
	}, time.Second, 5*time.Millisecond)
}

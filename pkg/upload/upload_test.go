package upload

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heavenprotocol/publisher/pkg/puberr"
	"github.com/heavenprotocol/publisher/pkg/tagcodec"
)

func TestUploadOctetStream(t *testing.T) {
	var gotContentType string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"id":"item-1"}`))
	}))
	defer server.Close()

	o := New(server.URL, server.Client())
	receipt, err := o.Upload(context.Background(), []byte("payload bytes"), nil, time.Second)
	require.NoError(t, err)

	assert.Equal(t, "item-1", receipt.ID)
	assert.Equal(t, "ar://item-1", receipt.Locator)
	assert.Equal(t, "application/octet-stream", gotContentType)
	assert.Equal(t, []byte("payload bytes"), gotBody)
}

func TestUploadMultipartWhenTagged(t *testing.T) {
	var gotFile []byte
	var gotTags []tagcodec.Tag
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))

		file, _, err := r.FormFile("file")
		require.NoError(t, err)
		gotFile, _ = io.ReadAll(file)
		_ = file.Close()

		require.NoError(t, json.Unmarshal([]byte(r.FormValue("tags")), &gotTags))
		_, _ = w.Write([]byte(`{"id":"item-2"}`))
	}))
	defer server.Close()

	tags := []tagcodec.Tag{{Name: "Content-Type", Value: "audio/mpeg"}}
	o := New(server.URL, server.Client())
	receipt, err := o.Upload(context.Background(), []byte("tagged payload"), tags, time.Second)
	require.NoError(t, err)

	assert.Equal(t, "item-2", receipt.ID)
	assert.Equal(t, []byte("tagged payload"), gotFile)
	assert.Equal(t, tags, gotTags)
}

func TestUploadRejectsInvalidTags(t *testing.T) {
	o := New("http://unused.invalid", nil)
	_, err := o.Upload(context.Background(), []byte("x"), []tagcodec.Tag{{Name: "", Value: "v"}}, time.Second)
	assert.True(t, puberr.IsKind(err, puberr.KindValidation))
}

func TestExtractUploadIDPrecedence(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"top level id", `{"id":"a"}`, "a"},
		{"top level snake", `{"dataitem_id":"b"}`, "b"},
		{"top level camel", `{"dataitemId":"c"}`, "c"},
		{"nested id", `{"result":{"id":"d"}}`, "d"},
		{"nested snake", `{"result":{"dataitem_id":"e"}}`, "e"},
		{"nested camel", `{"result":{"dataitemId":"f"}}`, "f"},
		{"id beats snake", `{"id":"a","dataitem_id":"b"}`, "a"},
		{"snake beats camel", `{"dataitem_id":"b","dataitemId":"c"}`, "b"},
		{"top level beats nested", `{"dataitemId":"c","result":{"id":"d"}}`, "c"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := ExtractUploadID([]byte(tc.body))
			require.NoError(t, err)
			assert.Equal(t, tc.want, id)
		})
	}
}

func TestExtractUploadIDFailures(t *testing.T) {
	for name, body := range map[string]string{
		"no id anywhere": `{"status":"ok","result":{}}`,
		"empty strings":  `{"id":"","result":{"id":""}}`,
		"not json":       `<html>gateway error</html>`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ExtractUploadID([]byte(body))
			assert.True(t, puberr.IsKind(err, puberr.KindProtocol))
		})
	}
}

func TestUploadStatusClassification(t *testing.T) {
	cases := []struct {
		status    int
		retryable bool
	}{
		{http.StatusBadRequest, false},
		{http.StatusForbidden, false},
		{http.StatusInternalServerError, true},
		{http.StatusServiceUnavailable, true},
	}
	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte("detail"))
		}))

		o := New(server.URL, server.Client())
		_, err := o.Upload(context.Background(), []byte("x"), nil, time.Second)
		server.Close()

		require.Error(t, err, "status %d", tc.status)
		var perr *puberr.Error
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, puberr.KindNetwork, perr.Kind)
		assert.Equal(t, tc.status, perr.StatusCode)
		assert.Equal(t, tc.retryable, perr.Retryable(), "status %d", tc.status)
	}
}

func TestUploadTimesOutAtDeadline(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer func() {
		close(release)
		server.Close()
	}()

	const deadline = 150 * time.Millisecond
	o := New(server.URL, server.Client())

	start := time.Now()
	_, err := o.Upload(context.Background(), []byte("x"), nil, deadline)
	elapsed := time.Since(start)

	var perr *puberr.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, puberr.KindNetwork, perr.Kind)
	assert.True(t, perr.Timeout)
	assert.True(t, perr.Retryable())
	assert.GreaterOrEqual(t, elapsed, deadline, "must not fail before the deadline")
	assert.Less(t, elapsed, deadline+time.Second)
}

func TestUploadDedupAfterAbandonedSuccess(t *testing.T) {
	var requests atomic.Int32
	done := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"id":"slow-item"}`))
		close(done)
	}))
	defer server.Close()

	o := New(server.URL, server.Client())
	payload := []byte("idempotent payload")

	_, err := o.Upload(context.Background(), payload, nil, 50*time.Millisecond)
	var perr *puberr.Error
	require.ErrorAs(t, err, &perr)
	require.True(t, perr.Timeout)

	// The abandoned attempt finishes server-side; wait for it to land in
	// the dedup cache.
	<-done
	time.Sleep(50 * time.Millisecond)

	receipt, err := o.Upload(context.Background(), payload, nil, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "slow-item", receipt.ID)
	assert.Equal(t, int32(1), requests.Load(), "retry must reuse the receipt, not re-submit")
}

func TestUploadWithRetryRecoversFrom5xx(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"id":"eventually"}`))
	}))
	defer server.Close()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 10 * time.Millisecond

	o := New(server.URL, server.Client())
	receipt, err := o.UploadWithRetry(context.Background(), []byte("retry me"), nil, time.Second, policy)
	require.NoError(t, err)
	assert.Equal(t, "eventually", receipt.ID)
	assert.Equal(t, int32(2), requests.Load())
}

func TestUploadWithRetryStopsOn4xx(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	o := New(server.URL, server.Client())
	_, err := o.UploadWithRetry(context.Background(), []byte("no retry"), nil, time.Second, DefaultBackoff())

	var perr *puberr.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusBadRequest, perr.StatusCode)
	assert.Equal(t, int32(1), requests.Load())
}

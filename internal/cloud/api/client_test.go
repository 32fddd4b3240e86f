package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(endpoint string) *Client {
	c := NewClient(Config{
		Region:          "ap-southeast-1",
		AccessKeyID:     "AKTEST",
		SecretAccessKey: "secret",
		RequestTimeout:  2 * time.Second,
		Endpoint:        endpoint,
	})
	c.now = func() time.Time { return time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestCallSignsRequest(t *testing.T) {
	var got *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(r.Context())
		w.Write([]byte(`{"ResponseMetadata": {"RequestId": "req-1"}, "Result": {"Value": 1}}`))
	}))
	defer server.Close()

	var out struct {
		Value int `json:"Value"`
	}
	err := testClient(server.URL).Call(context.Background(), ServiceAutoScaling, "DescribeScalingGroups", "2020-01-01", nil, &out)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Value)

	require.NotNil(t, got)
	assert.Equal(t, "DescribeScalingGroups", got.URL.Query().Get("Action"))
	assert.Equal(t, "2020-01-01", got.URL.Query().Get("Version"))
	assert.Equal(t, "20260824T120000Z", got.Header.Get("X-Date"))

	auth := got.Header.Get("Authorization")
	assert.True(t, strings.HasPrefix(auth, "HMAC-SHA256 Credential=AKTEST/20260824/ap-southeast-1/auto_scaling/request"), auth)
	assert.Contains(t, auth, "SignedHeaders=content-type;host;x-date")
	assert.Contains(t, auth, "Signature=")
}

func TestCallMapsProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"ResponseMetadata": {"Error": {"Code": "AccessDenied", "Message": "no permission"}}}`))
	}))
	defer server.Close()

	err := testClient(server.URL).Call(context.Background(), ServiceAutoScaling, "ModifyScalingGroup", "2020-01-01", nil, nil)
	require.Error(t, err)

	apiErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "AccessDenied", apiErr.Code)
	assert.Contains(t, apiErr.Error(), "no permission")
}

func TestCallRetriesServerErrorOnce(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"ResponseMetadata": {"Error": {"Code": "InternalError", "Message": "try again"}}}`))
			return
		}
		w.Write([]byte(`{"ResponseMetadata": {"RequestId": "req-2"}}`))
	}))
	defer server.Close()

	err := testClient(server.URL).Call(context.Background(), ServiceCloudMonitor, "GetMetricData", "2018-01-01", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCallDoesNotRetryClientError(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ResponseMetadata": {"Error": {"Code": "InvalidParameter", "Message": "bad"}}}`))
	}))
	defer server.Close()

	err := testClient(server.URL).Call(context.Background(), ServiceAutoScaling, "DescribeScalingGroups", "2020-01-01", nil, nil)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestCallUnknownService(t *testing.T) {
	err := testClient("").Call(context.Background(), "nope", "Action", "v1", nil, nil)
	assert.Error(t, err)
}

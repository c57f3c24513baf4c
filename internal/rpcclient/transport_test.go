package rpcclient

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransportDoGET(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("hello"))
	}))
	defer server.Close()

	tr := NewTransport(5 * time.Second)
	resp, err := tr.Do(&Request{Method: "GET", URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "hello", string(resp.Body))
	assert.True(t, resp.IsSuccess())
}

func TestTransportDoPOSTBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/x-www-form-urlencoded;charset=UTF-8", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	tr := NewTransport(5 * time.Second)
	resp, err := tr.Do(&Request{
		Method:  "POST",
		URL:     server.URL,
		Headers: map[string]string{"Content-Type": "application/x-www-form-urlencoded;charset=UTF-8"},
		RawBody: []byte("f.req=x"),
	})
	require.NoError(t, err)
	assert.True(t, resp.IsUnauthorized())
}

func TestResponseStatusClasses(t *testing.T) {
	cases := []struct {
		code                             int
		success, client, server, unauth bool
	}{
		{200, true, false, false, false},
		{401, false, true, false, true},
		{403, false, true, false, true},
		{404, false, true, false, false},
		{500, false, false, true, false},
	}
	for _, c := range cases {
		resp := &Response{StatusCode: c.code}
		assert.Equal(t, c.success, resp.IsSuccess())
		assert.Equal(t, c.client, resp.IsClientError())
		assert.Equal(t, c.server, resp.IsServerError())
		assert.Equal(t, c.unauth, resp.IsUnauthorized())
	}
}

func TestLinearBackoff(t *testing.T) {
	base := 1500 * time.Millisecond
	assert.Equal(t, 1500*time.Millisecond, LinearBackoff(base, 1))
	assert.Equal(t, 3000*time.Millisecond, LinearBackoff(base, 2))
	assert.Equal(t, 4500*time.Millisecond, LinearBackoff(base, 3))
}

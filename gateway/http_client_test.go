package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSendJSONReturnsResponseForErrorStatuses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errorCode":"InvalidRequest"}`))
	}))
	defer server.Close()

	client := NewHTTPClient(nil)

	resp, err := client.SendJSON(context.Background(), &Request{
		Method: http.MethodGet,
		URL:    server.URL,
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "InvalidRequest")
}

func TestSendJSONTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewHTTPClient(nil)

	resp, err := client.SendJSON(context.Background(), &Request{
		Method: http.MethodGet,
		URL:    server.URL,
	})
	assert.Error(t, err)
	assert.Nil(t, resp)
}

func TestSendJSONSetsHeadersAndQuery(t *testing.T) {
	var gotAccept, gotContentType, gotCustom, gotQuery string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		gotContentType = r.Header.Get("Content-Type")
		gotCustom = r.Header.Get("Authorization")
		gotQuery = r.URL.Query().Get("password")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewHTTPClient(&ClientConfig{Timeout: 5 * time.Second})

	_, err := client.SendJSON(context.Background(), &Request{
		Method:      http.MethodPost,
		URL:         server.URL,
		Headers:     map[string]string{"Authorization": "Basic abc"},
		QueryParams: map[string]string{"password": "pw"},
		Body:        map[string]string{"k": "v"},
	})
	assert.NoError(t, err)
	assert.Equal(t, "application/json", gotAccept)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "Basic abc", gotCustom)
	assert.Equal(t, "pw", gotQuery)
}

func TestSendJSONContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer server.Close()

	client := NewHTTPClient(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.SendJSON(ctx, &Request{Method: http.MethodGet, URL: server.URL})
	assert.Error(t, err)
}

func TestDecodeJSONTolerance(t *testing.T) {
	client := NewHTTPClient(nil)

	var target struct {
		Name *string `json:"name"`
	}

	client.DecodeJSON(&Response{Body: nil}, &target)
	assert.Nil(t, target.Name)

	client.DecodeJSON(&Response{Body: []byte("not json at all")}, &target)
	assert.Nil(t, target.Name)

	client.DecodeJSON(&Response{Body: []byte(`{"name":"x"}`)}, &target)
	assert.Equal(t, "x", *target.Name)
}

func TestJoinURL(t *testing.T) {
	tests := []struct {
		base, endpoint, want string
	}{
		{"https://api.test/order", "123", "https://api.test/order/123"},
		{"https://api.test/order/", "123", "https://api.test/order/123"},
		{"https://api.test/order/", "/123", "https://api.test/order/123"},
		{"https://api.test/order", "/123", "https://api.test/order/123"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, JoinURL(tt.base, tt.endpoint))
	}
}

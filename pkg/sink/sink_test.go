package sink

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/samply/golang-fhir-models/fhir-models/fhir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	key     string
	value   []byte
	headers map[string]string
}

func (r *recordingPublisher) Publish(ctx context.Context, key string, value []byte, headers map[string]string) error {
	r.key, r.value, r.headers = key, value, headers
	return nil
}

func sampleBundle() *fhir.Bundle {
	id := "b-1"
	return &fhir.Bundle{Id: &id, Type: fhir.BundleTypeTransaction}
}

func TestKafkaDeliverPublishesBundleJSON(t *testing.T) {
	pub := &recordingPublisher{}
	require.NoError(t, NewKafka(pub).Deliver(context.Background(), "H/20223/00001", sampleBundle()))

	assert.Equal(t, "H/20223/00001", pub.key)
	assert.Equal(t, "b-1", pub.headers["bundle-id"])

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(pub.value, &decoded))
	assert.Equal(t, "Bundle", decoded["resourceType"])
	assert.Equal(t, "transaction", decoded["type"])
}

func TestFHIRDeliverUsesClientCredentials(t *testing.T) {
	tokens := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok","token_type":"bearer","expires_in":3600}`))
	}))
	defer tokens.Close()

	var gotAuth, gotType string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink, err := NewFHIR(FHIRConfig{
		BaseURL:      server.URL + "/fhir/",
		TokenURL:     tokens.URL,
		ClientID:     "patho",
		ClientSecret: "secret",
		Timeout:      5 * time.Second,
	})
	require.NoError(t, err)
	require.NoError(t, sink.Deliver(context.Background(), "k", sampleBundle()))

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "application/fhir+json", gotType)
	assert.Contains(t, string(gotBody), `"resourceType":"Bundle"`)
}

func TestFHIRDeliverReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "conditional match failed", http.StatusPreconditionFailed)
	}))
	defer server.Close()

	sink, err := NewFHIR(FHIRConfig{BaseURL: server.URL, Timeout: time.Second})
	require.NoError(t, err)

	err = sink.Deliver(context.Background(), "k", sampleBundle())
	assert.ErrorContains(t, err, "412")
}

func TestNewFHIRRequiresBaseURL(t *testing.T) {
	_, err := NewFHIR(FHIRConfig{})
	assert.Error(t, err)
}

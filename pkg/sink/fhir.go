package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/samply/golang-fhir-models/fhir-models/fhir"
	"github.com/synaptica-ai/patho-fhir/pkg/common/httpclient"
	"github.com/synaptica-ai/patho-fhir/pkg/common/logger"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const fhirJSON = "application/fhir+json"

type FHIRConfig struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Timeout      time.Duration
}

// FHIR posts transaction bundles to a FHIR server's base endpoint. With a
// token URL configured, requests carry client-credentials bearer tokens.
type FHIR struct {
	baseURL string
	client  *http.Client
}

func NewFHIR(cfg FHIRConfig) (*FHIR, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("fhir sink: base url required")
	}
	client := httpclient.New(cfg.Timeout)
	if cfg.TokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, client)
		client = cc.Client(ctx)
		client.Timeout = cfg.Timeout
	}
	return &FHIR{baseURL: strings.TrimRight(cfg.BaseURL, "/"), client: client}, nil
}

func (f *FHIR) Deliver(ctx context.Context, key string, b *fhir.Bundle) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal bundle: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", fhirJSON)
	req.Header.Set("Accept", fhirJSON)

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("post bundle: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("fhir server answered %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	logger.Log.WithFields(map[string]interface{}{
		"key":    key,
		"status": resp.StatusCode,
	}).Debug("Bundle accepted by FHIR server")
	return nil
}

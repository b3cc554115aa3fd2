package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/samply/golang-fhir-models/fhir-models/fhir"
)

type publisher interface {
	Publish(ctx context.Context, key string, value []byte, headers map[string]string) error
}

// Kafka publishes bundles as FHIR JSON, keyed by order number so all
// revisions of one order stay in sequence.
type Kafka struct {
	producer publisher
}

func NewKafka(producer publisher) *Kafka {
	return &Kafka{producer: producer}
}

func (k *Kafka) Deliver(ctx context.Context, key string, b *fhir.Bundle) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal bundle: %w", err)
	}
	headers := map[string]string{"content-type": "application/fhir+json"}
	if b.Id != nil {
		headers["bundle-id"] = *b.Id
	}
	return k.producer.Publish(ctx, key, payload, headers)
}

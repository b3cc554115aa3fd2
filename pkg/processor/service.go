package processor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/samply/golang-fhir-models/fhir-models/fhir"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/synaptica-ai/patho-fhir/pkg/common/kafka"
	"github.com/synaptica-ai/patho-fhir/pkg/common/logger"
	"github.com/synaptica-ai/patho-fhir/pkg/common/models"
	"github.com/synaptica-ai/patho-fhir/pkg/observability/metrics"
	"github.com/synaptica-ai/patho-fhir/pkg/pathology"
)

// Sink delivers an assembled bundle downstream.
type Sink interface {
	Deliver(ctx context.Context, key string, b *fhir.Bundle) error
}

// Publisher receives copies of rejected records.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte, headers map[string]string) error
}

type RejectionStore interface {
	Save(ctx context.Context, rec *RejectionModel) error
	ListByRecord(ctx context.Context, kind models.RecordKind, recordID string) ([]RejectionModel, error)
}

type StatusStore interface {
	Save(ctx context.Context, outcome models.Outcome) error
	Get(ctx context.Context, kind models.RecordKind, recordID string) (*models.Outcome, error)
}

// Service runs records from the transport through the engine and hands the
// result to the sink. Rejected records never reach the sink. The reject
// publisher, rejection store and status store are optional.
type Service struct {
	engine     *Engine
	sink       Sink
	dlq        Publisher
	rejections RejectionStore
	status     StatusStore
}

func NewService(engine *Engine, sink Sink, dlq Publisher, rejections RejectionStore, status StatusStore) *Service {
	return &Service{
		engine:     engine,
		sink:       sink,
		dlq:        dlq,
		rejections: rejections,
		status:     status,
	}
}

func (s *Service) Engine() *Engine {
	return s.engine
}

// ProcessReport maps and delivers one report. Rejections are recorded before
// they are returned.
func (s *Service) ProcessReport(ctx context.Context, rec *pathology.Report, payload []byte) (*fhir.Bundle, error) {
	metrics.ObserveReceived()
	b, err := s.engine.MapReport(ctx, rec)
	return s.finish(ctx, models.RecordKindReport, rec.Keys(), payload, b, err)
}

func (s *Service) ProcessSpecimen(ctx context.Context, rec *pathology.Specimen, payload []byte) (*fhir.Bundle, error) {
	metrics.ObserveReceived()
	b, err := s.engine.MapSpecimen(ctx, rec)
	return s.finish(ctx, models.RecordKindSpecimen, rec.Keys(), payload, b, err)
}

func (s *Service) finish(ctx context.Context, kind models.RecordKind, keys pathology.BusinessKeys, payload []byte, b *fhir.Bundle, err error) (*fhir.Bundle, error) {
	if err != nil {
		if pathology.IsRejection(err) {
			s.reject(ctx, kind, keys.RecordID, payload, err)
		}
		return nil, err
	}

	bundleID := ""
	if b.Id != nil {
		bundleID = *b.Id
	}
	log := logger.Log.WithFields(map[string]interface{}{
		"record_id":    keys.RecordID,
		"order_number": keys.OrderNumber,
		"kind":         kind,
		"bundle_id":    bundleID,
		"entries":      len(b.Entry),
	})

	if err := s.sink.Deliver(ctx, keys.OrderNumber, b); err != nil {
		metrics.ObserveDeliveryFailure()
		log.WithError(err).Error("Failed to deliver bundle")
		s.saveStatus(ctx, models.Outcome{
			RecordID: keys.RecordID,
			Kind:     kind,
			Status:   models.OutcomeFailed,
			BundleID: bundleID,
			Reason:   err.Error(),
		})
		return nil, err
	}

	metrics.ObserveMapped(len(b.Entry))
	log.Info("Bundle delivered")
	s.saveStatus(ctx, models.Outcome{RecordID: keys.RecordID, Kind: kind, Status: models.OutcomeMapped, BundleID: bundleID})
	return b, nil
}

func (s *Service) reject(ctx context.Context, kind models.RecordKind, recordID string, payload []byte, cause error) {
	errorKind := pathology.RejectionKind(cause)
	metrics.ObserveRejected(errorKind)
	logger.Log.WithError(cause).WithFields(map[string]interface{}{
		"record_id":  recordID,
		"kind":       kind,
		"error_kind": errorKind,
	}).Warn("Record rejected")

	if s.dlq != nil {
		headers := map[string]string{
			"record-kind":   string(kind),
			"reject-kind":   errorKind,
			"reject-reason": cause.Error(),
		}
		if err := s.dlq.Publish(ctx, recordID, payload, headers); err != nil {
			logger.Log.WithError(err).WithField("record_id", recordID).Error("Failed to publish rejected record")
		}
	}

	if s.rejections != nil {
		row := &RejectionModel{
			RecordID:   recordID,
			RecordKind: string(kind),
			ErrorKind:  errorKind,
			Reason:     cause.Error(),
			Payload:    payloadMap(payload),
		}
		if err := s.rejections.Save(ctx, row); err != nil {
			logger.Log.WithError(err).WithField("record_id", recordID).Error("Failed to store rejected record")
		}
	}

	s.saveStatus(ctx, models.Outcome{
		RecordID:  recordID,
		Kind:      kind,
		Status:    models.OutcomeRejected,
		ErrorKind: errorKind,
		Reason:    cause.Error(),
	})
}

func (s *Service) saveStatus(ctx context.Context, outcome models.Outcome) {
	if s.status == nil {
		return
	}
	outcome.UpdatedAt = time.Now().UTC()
	if err := s.status.Save(ctx, outcome); err != nil {
		logger.Log.WithError(err).WithField("record_id", outcome.RecordID).Warn("Failed to store record status")
	}
}

func (s *Service) Status(ctx context.Context, kind models.RecordKind, recordID string) (*models.Outcome, error) {
	if s.status == nil {
		return nil, ErrNotFound
	}
	return s.status.Get(ctx, kind, recordID)
}

// Rejections lists the audit rows of one record. Without an audit store
// nothing is known about past rejections.
func (s *Service) Rejections(ctx context.Context, kind models.RecordKind, recordID string) ([]RejectionModel, error) {
	if s.rejections == nil {
		return nil, ErrNotFound
	}
	rows, err := s.rejections.ListByRecord(ctx, kind, recordID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows, nil
}

// ReportHandler consumes report messages. Rejected and undecodable records
// are committed; delivery failures are not.
func (s *Service) ReportHandler() kafka.MessageHandler {
	return func(ctx context.Context, message kafkago.Message) error {
		var rec pathology.Report
		if err := json.Unmarshal(message.Value, &rec); err != nil {
			s.reject(ctx, models.RecordKindReport, string(message.Key), message.Value, undecodable(string(message.Key), err))
			return nil
		}
		_, err := s.ProcessReport(ctx, &rec, message.Value)
		return transportError(err)
	}
}

func (s *Service) SpecimenHandler() kafka.MessageHandler {
	return func(ctx context.Context, message kafkago.Message) error {
		var rec pathology.Specimen
		if err := json.Unmarshal(message.Value, &rec); err != nil {
			s.reject(ctx, models.RecordKindSpecimen, string(message.Key), message.Value, undecodable(string(message.Key), err))
			return nil
		}
		_, err := s.ProcessSpecimen(ctx, &rec, message.Value)
		return transportError(err)
	}
}

func undecodable(recordID string, err error) error {
	return &pathology.InvalidInputError{RecordID: recordID, Reason: "payload is not a valid record: " + err.Error()}
}

func transportError(err error) error {
	if err == nil || pathology.IsRejection(err) {
		return nil
	}
	return err
}

package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/samply/golang-fhir-models/fhir-models/fhir"
	"github.com/synaptica-ai/patho-fhir/pkg/bundle"
	"github.com/synaptica-ai/patho-fhir/pkg/mapper"
	"github.com/synaptica-ai/patho-fhir/pkg/pathology"
	"github.com/synaptica-ai/patho-fhir/pkg/revision"
	"golang.org/x/sync/errgroup"
)

// Engine validates a record, derives its shared values once, runs the
// mappers and assembles their output. It holds no per-record state.
type Engine struct {
	env         *mapper.Env
	assembler   *bundle.Assembler
	parallelism int
}

func NewEngine(env *mapper.Env, assembler *bundle.Assembler, parallelism int) *Engine {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Engine{env: env, assembler: assembler, parallelism: parallelism}
}

func (e *Engine) MapReport(ctx context.Context, rec *pathology.Report) (*fhir.Bundle, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	keys := rec.Keys()

	rev, err := revision.Parse(rec.RevisionType)
	if err != nil {
		var unknown *pathology.UnknownRevisionTypeError
		if errors.As(err, &unknown) {
			unknown.RecordID = keys.RecordID
		}
		return nil, err
	}
	in := &mapper.ReportInput{Report: rec, Keys: keys, Revision: rev, Status: rev.Status()}

	mappers := mapper.ReportMappers()
	groups := make([][]mapper.Resource, len(mappers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for i, m := range mappers {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := m.Map(e.env, in)
			if err != nil {
				return fmt.Errorf("%s mapper: %w", m.Kind, err)
			}
			groups[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return e.assembler.Assemble(bundle.ID("report", keys.RecordID, rev.Token()), rev, groups...)
}

func (e *Engine) MapSpecimen(ctx context.Context, rec *pathology.Specimen) (*fhir.Bundle, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := mapper.MapSpecimen(e.env, rec)
	if err != nil {
		return nil, err
	}
	keys := rec.Keys()
	return e.assembler.Assemble(bundle.ID("specimen", keys.OrderNumber, keys.RecordID), revision.Revision{}, []mapper.Resource{res})
}

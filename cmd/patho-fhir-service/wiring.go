package main

import (
	"context"

	"github.com/synaptica-ai/patho-fhir/pkg/bundle"
	"github.com/synaptica-ai/patho-fhir/pkg/common/config"
	"github.com/synaptica-ai/patho-fhir/pkg/identifier"
	"github.com/synaptica-ai/patho-fhir/pkg/mapper"
	"github.com/synaptica-ai/patho-fhir/pkg/processor"
	"github.com/synaptica-ai/patho-fhir/pkg/terminology"
)

func vocabularySources(cfg *config.Config) []terminology.Source {
	return []terminology.Source{
		{Table: terminology.SpecimenType, Location: cfg.MappingSpecimenType},
		{Table: terminology.ExtractionMethod, Location: cfg.MappingExtractionMethod},
		{Table: terminology.ContainerType, Location: cfg.MappingContainerType},
	}
}

// buildEngine loads every table and the identifier systems. Any error here
// is fatal: the engine must not run on partial configuration.
func buildEngine(ctx context.Context, cfg *config.Config) (*processor.Engine, error) {
	registry, err := terminology.NewLoader(cfg.MappingFetchTimeout).Load(ctx, vocabularySources(cfg))
	if err != nil {
		return nil, err
	}
	systems, err := identifier.LoadSystems(cfg.FHIRSystemsFile)
	if err != nil {
		return nil, err
	}
	env := mapper.NewEnv(systems, registry)
	return processor.NewEngine(env, bundle.NewAssembler(bundle.DefaultSource), cfg.MapperParallelism), nil
}

package extraction

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/neurostore/pkg/engram"
	"github.com/theapemachine/neurostore/pkg/provider"
)

/*
systemPrompt instructs the completion provider to decompose input into
atomic facts, classify the memory, and surface entity/attribute/value
triples whose values change over time.
*/
const systemPrompt = `You are a fact extraction engine. Given a piece of text, extract atomic facts, classify the memory type, and identify any temporal facts (things that change over time).

Rules:
1. Break the input into atomic, self-contained facts
2. Each fact should be a single, clear statement
3. Preserve important context and specifics
4. Remove redundancy
5. Classify the overall memory into one strand: factual, experiential, procedural, preferential, relational, general
6. Identify temporal facts: things with an entity, an attribute, and a current value that may change over time. Examples:
   - "I switched to iPhone" -> entity: speaker, attribute: phone, value: iPhone
   - "John lives in Berlin" -> entity: John, attribute: city, value: Berlin
   Only extract temporal facts when there is a clear entity-attribute-value relationship.

Respond with JSON:
{
  "facts": ["fact1", "fact2", ...],
  "strand": "factual|experiential|procedural|preferential|relational|general",
  "temporalFacts": [
    { "entity": "entity_name", "attribute": "attribute_name", "value": "current_value" }
  ]
}`

/*
Result is what one extraction call yields.  Facts is never empty.
*/
type Result struct {
	Facts         []string
	Strand        engram.Strand
	TemporalFacts []engram.TemporalFact
}

/*
Extractor turns raw input text into atomic facts via a completion
provider.  Any provider failure degrades to the raw content as a single
general fact, so ingestion always has at least one memory to store.
*/
type Extractor struct {
	completion provider.Completion
}

func New(completion provider.Completion) *Extractor {
	return &Extractor{completion: completion}
}

func (extractor *Extractor) Extract(
	ctx context.Context, content string,
) Result {
	var shaped provider.ExtractionShape

	err := extractor.completion.CompleteJSON(ctx, systemPrompt, content, &shaped)

	if err != nil {
		log.Warn("fact extraction failed, using raw content", "error", err)
		return fallback(content)
	}

	facts := make([]string, 0, len(shaped.Facts))

	for _, fact := range shaped.Facts {
		if fact != "" {
			facts = append(facts, fact)
		}
	}

	if len(facts) == 0 {
		facts = append(facts, content)
	}

	temporal := make([]engram.TemporalFact, 0, len(shaped.TemporalFacts))

	for _, tf := range shaped.TemporalFacts {
		if tf.Entity == "" || tf.Attribute == "" || tf.Value == "" {
			continue
		}

		temporal = append(temporal, engram.TemporalFact{
			Entity:    tf.Entity,
			Attribute: tf.Attribute,
			Value:     tf.Value,
		})
	}

	log.Debug(
		"extracted facts",
		"count", len(facts),
		"strand", shaped.Strand,
		"temporal", len(temporal),
	)

	return Result{
		Facts:         facts,
		Strand:        engram.ParseStrand(shaped.Strand),
		TemporalFacts: temporal,
	}
}

func fallback(content string) Result {
	return Result{
		Facts:         []string{content},
		Strand:        engram.StrandGeneral,
		TemporalFacts: []engram.TemporalFact{},
	}
}

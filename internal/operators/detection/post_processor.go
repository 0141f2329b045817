package detection

import (
	"context"
	"fmt"

	"github.com/alexisbeaulieu97/detectflow/internal/model"
	"github.com/alexisbeaulieu97/detectflow/internal/operator"
	"github.com/alexisbeaulieu97/detectflow/internal/pipeline"
)

const PostProcessorType = "PostProcessor"

// PostProcessor runs a post-processor component over its inputs. Combiner
// inputs are split into their constituents before the call and rebuilt
// afterwards, so components only ever see a flat map. If two combiners
// hold the same constituent key the last one in key order wins.
type PostProcessor struct {
	operator.Base
	processor pipeline.PostProcessor
}

// NewPostProcessor is the registry factory.
func NewPostProcessor() operator.Operator {
	return &PostProcessor{}
}

func (p *PostProcessor) Init(_ context.Context, opCtx *operator.Context) error {
	if err := p.Bind(opCtx); err != nil {
		return err
	}
	spec, err := p.ComponentSpec("type")
	if err != nil {
		return err
	}
	processor, err := p.Components().PostProcessors.New(spec)
	if err != nil {
		return err
	}
	p.processor = processor
	return nil
}

func (p *PostProcessor) Execute(ctx context.Context) error {
	flat, origins, combinerKeys := splitCombiners(p.Inputs())

	processed, err := p.processor.PostProcess(ctx, p.Pipeline().Interval, flat)
	if err != nil {
		return fmt.Errorf("post-processor %s: %w", p.processor.Name(), err)
	}

	for _, result := range processed {
		stampLabels(result, p.processor.Name(), p.Node().Name)
	}

	for key, result := range remerge(processed, origins, combinerKeys) {
		p.SetOutput(key, result)
	}
	return nil
}

// splitCombiners flattens combiner inputs into their constituents and
// records the input key each constituent came from. Anomalies are cloned so
// the component never mutates an upstream result.
func splitCombiners(inputs map[string]model.OperatorResult) (map[string]model.OperatorResult, map[string]string, []string) {
	flat := make(map[string]model.OperatorResult)
	origins := make(map[string]string)
	var combinerKeys []string

	for _, key := range model.SortedKeys(inputs) {
		input := inputs[key]
		combiner, ok := input.(*model.CombinerResult)
		if !ok {
			flat[key] = detach(input)
			continue
		}
		combinerKeys = append(combinerKeys, key)
		for _, constituent := range combiner.Keys() {
			value, _ := combiner.Get(constituent)
			flat[constituent] = detach(value)
			origins[constituent] = key
		}
	}
	return flat, origins, combinerKeys
}

func detach(result model.OperatorResult) model.OperatorResult {
	switch r := result.(type) {
	case *model.CombinerResult:
		nested := make(map[string]model.OperatorResult, r.Len())
		for _, key := range r.Keys() {
			value, _ := r.Get(key)
			nested[key] = detach(value)
		}
		return model.NewCombinerResult(nested)
	case *model.Result:
		anomalies, ok := r.Anomalies()
		if !ok {
			return r
		}
		return model.NewResult(append(r.Options(), model.WithAnomalies(model.CloneAnomalies(anomalies)))...)
	default:
		return result
	}
}

// remerge rebuilds a fresh combiner at every original combiner key from the
// processed constituents. Keys without an origin pass through.
func remerge(processed map[string]model.OperatorResult, origins map[string]string, combinerKeys []string) map[string]model.OperatorResult {
	out := make(map[string]model.OperatorResult, len(processed))
	grouped := make(map[string]map[string]model.OperatorResult, len(combinerKeys))
	for _, key := range combinerKeys {
		grouped[key] = make(map[string]model.OperatorResult)
	}

	for key, result := range processed {
		if origin, ok := origins[key]; ok {
			grouped[origin][key] = result
			continue
		}
		out[key] = result
	}
	for _, key := range combinerKeys {
		out[key] = model.NewCombinerResult(grouped[key])
	}
	return out
}

// stampLabels records provenance on every label that has none yet.
func stampLabels(result model.OperatorResult, processor, node string) {
	if combiner, ok := result.(*model.CombinerResult); ok {
		for _, key := range combiner.Keys() {
			nested, _ := combiner.Get(key)
			stampLabels(nested, processor, node)
		}
		return
	}
	if result == nil {
		return
	}
	anomalies, ok := result.Anomalies()
	if !ok {
		return
	}
	for _, anomaly := range anomalies {
		for i := range anomaly.Labels {
			if anomaly.Labels[i].SourcePostProcessor != "" {
				continue
			}
			anomaly.Labels[i].SourcePostProcessor = processor
			anomaly.Labels[i].SourceNodeName = node
		}
	}
}

package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	detecterrors "github.com/alexisbeaulieu97/detectflow/pkg/errors"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	nodeNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		_ = v.RegisterValidation("node_name", func(fl validator.FieldLevel) bool {
			return nodeNamePattern.MatchString(fl.Field().String())
		})

		validateInst = v
	})

	return validateInst
}

// GetValidator returns the shared validator, for settings and component
// parameter structs outside this package.
func GetValidator() *validator.Validate {
	return validatorInstance()
}

// ValidateTemplate performs schema and graph validation: unique names,
// inputs that reference existing nodes, fork-join sub-plan references and
// an acyclic dependency graph.
func ValidateTemplate(tpl *Template) error {
	if tpl == nil {
		return detecterrors.NewValidationError("template", "template is nil", nil)
	}

	if err := validatorInstance().Struct(tpl); err != nil {
		return convertValidationError(err)
	}

	index := make(map[string]int, len(tpl.Nodes))
	for i, node := range tpl.Nodes {
		if _, exists := index[node.Name]; exists {
			return detecterrors.NewValidationError(fieldForNode(i, "name"), fmt.Sprintf("duplicate node name %q", node.Name), nil)
		}
		index[node.Name] = i
	}

	for i, node := range tpl.Nodes {
		for j, in := range node.Inputs {
			if _, ok := index[in.SourcePlanNode]; !ok {
				return detecterrors.NewValidationError(
					fmt.Sprintf("nodes[%d].inputs[%d].sourcePlanNode", i, j),
					fmt.Sprintf("references unknown node %q", in.SourcePlanNode),
					nil,
				)
			}
		}
		seen := make(map[string]struct{}, len(node.Outputs))
		for j, out := range node.Outputs {
			if _, dup := seen[out.OutputKey]; dup {
				return detecterrors.NewValidationError(
					fmt.Sprintf("nodes[%d].outputs[%d].outputKey", i, j),
					fmt.Sprintf("output key %q renamed twice", out.OutputKey),
					nil,
				)
			}
			seen[out.OutputKey] = struct{}{}
		}
		if node.Type == ForkJoinType {
			if err := node.Params.Require(node.Name, ParamEnumerator, ParamRoot, ParamCombiner); err != nil {
				return err
			}
			for _, ref := range SubPlanReferences(node) {
				if _, ok := index[ref]; !ok {
					return detecterrors.NewValidationError(fieldForNode(i, "params"), fmt.Sprintf("references unknown node %q", ref), nil)
				}
			}
		}
	}

	if cycle := detectCycle(tpl.Nodes); len(cycle) > 0 {
		return detecterrors.NewValidationError("nodes", fmt.Sprintf("dependency cycle detected: %s", strings.Join(cycle, " -> ")), nil)
	}

	return nil
}

// ValidateStruct runs tag validation on any struct and converts failures
// into a ValidationError.
func ValidateStruct(value any) error {
	if err := validatorInstance().Struct(value); err != nil {
		return convertValidationError(err)
	}
	return nil
}

func convertValidationError(err error) error {
	if err == nil {
		return nil
	}

	var ves validator.ValidationErrors
	if errors.As(err, &ves) && len(ves) > 0 {
		ve := ves[0]
		field := yamlishFieldName(ve)
		msg := fmt.Sprintf("%s failed validation for tag '%s'", field, ve.Tag())
		return detecterrors.NewValidationError(field, msg, err)
	}

	return detecterrors.NewValidationError("template", err.Error(), err)
}

func yamlishFieldName(fe validator.FieldError) string {
	ns := fe.StructNamespace()
	parts := strings.Split(ns, ".")
	lowered := make([]string, 0, len(parts))
	for _, part := range parts {
		lowered = append(lowered, strings.ToLower(part))
	}
	return strings.Join(lowered, ".")
}

func fieldForNode(index int, field string) string {
	return fmt.Sprintf("nodes[%d].%s", index, field)
}

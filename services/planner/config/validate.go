// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/AleutianPlanner/services/planner/heuristic"
	"github.com/AleutianAI/AleutianPlanner/services/planner/pq"
	"github.com/AleutianAI/AleutianPlanner/services/planner/search"
)

// configValidate is the validator instance for planner configuration.
// Initialized in init() with custom validators.
var configValidate *validator.Validate

func init() {
	configValidate = validator.New()
	_ = configValidate.RegisterValidation("heuristic", validateHeuristic)
}

// validateHeuristic accepts the names heuristic.New understands.
func validateHeuristic(fl validator.FieldLevel) bool {
	return slices.Contains(heuristic.Names(), strings.ToLower(strings.TrimSpace(fl.Field().String())))
}

// Validate checks struct tags and cross-field rules.
//
// Description:
//
//	Tag validation covers ranges and enumerations on every section.
//	Cross-field rules:
//	  - queue kinds must be known;
//	  - the radix heap needs non-decreasing keys, which greedy and weighted
//	    A* do not produce;
//	  - weighted A* needs a weight of at least 1;
//	  - enabled persistent storage needs a path.
//
// Outputs:
//   - error: Wraps ErrInvalidConfig, or nil.
func (c Config) Validate() error {
	var errs []error

	if err := configValidate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Errorf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
		} else {
			errs = append(errs, err)
		}
	}

	queues := []struct {
		name string
		kind pq.Kind
	}{
		{"search.queue", c.Search.Queue},
		{"enumeration.queue", c.Enumeration.Queue},
	}
	for _, q := range queues {
		if q.kind == "" {
			continue
		}
		if _, err := pq.ParseKind(string(q.kind)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", q.name, err))
		}
	}

	switch c.Search.Algorithm {
	case search.AlgorithmGreedy, search.AlgorithmWeightedAStar:
		if c.Search.Queue == pq.KindRadix {
			errs = append(errs, fmt.Errorf("search.queue: radix requires monotone keys, not %s", c.Search.Algorithm))
		}
	}
	if c.Search.Algorithm == search.AlgorithmWeightedAStar && c.Search.Weight < 1 {
		errs = append(errs, fmt.Errorf("search.weight must be >= 1 for weighted-astar, got %v", c.Search.Weight))
	}

	if c.Storage.Enabled && !c.Storage.Badger.InMemory && c.Storage.Badger.Path == "" {
		errs = append(errs, errors.New("storage.badger.path is required when storage is enabled"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

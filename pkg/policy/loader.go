package policy

import (
	"context"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/open-policy-agent/opa/v1/rego"
)

// loadQueries loads all Rego files from policyDir and prepares one query per
// gate. Both queries are prepared from the same module set; a gate whose
// package is absent simply evaluates to undefined and stays disabled.
func loadQueries(ctx context.Context, policyDir string) (retention, privacy *rego.PreparedEvalQuery, err error) {
	files, err := filepath.Glob(filepath.Join(policyDir, "*.rego"))
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to glob policy files")
	}

	if len(files) == 0 {
		// No policy files found, every gate stays disabled
		return nil, nil, nil
	}

	modules := make([]func(*rego.Rego), 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to read policy file", goerr.V("path", file))
		}
		modules = append(modules, rego.Module(file, string(data)))
	}

	retention, err = prepareQuery(ctx, modules, "data.retention")
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to prepare retention query")
	}

	privacy, err = prepareQuery(ctx, modules, "data.privacy")
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to prepare privacy query")
	}

	return retention, privacy, nil
}

// prepareQuery prepares a Rego query with all loaded modules
func prepareQuery(ctx context.Context, modules []func(*rego.Rego), query string) (*rego.PreparedEvalQuery, error) {
	options := make([]func(*rego.Rego), 0, len(modules)+1)
	options = append(options, rego.Query(query))
	options = append(options, modules...)

	r := rego.New(options...)

	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare query", goerr.V("query", query))
	}

	return &prepared, nil
}

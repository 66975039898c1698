// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/civictrace/pkg/types"
)

// LocalStore matches queries against a curated vendor file (tier 0).
type LocalStore struct {
	Path   string
	Logger *zap.Logger
}

// NewLocalStore returns the tier-0 adapter for the vendor file in cfg.
func NewLocalStore(cfg types.LocalConfig, log *zap.Logger) *LocalStore {
	return &LocalStore{Path: cfg.Path, Logger: orNop(log)}
}

// Name returns the source identifier.
func (s *LocalStore) Name() string { return string(types.KindLocal) }

// Fetch returns every vendor whose name contains query, case-insensitively.
// The file is read on each call; read or parse failures yield no results.
func (s *LocalStore) Fetch(_ context.Context, query string) []types.SearchResult {
	return guard(orNop(s.Logger), s.Name(), func() ([]types.SearchResult, error) {
		vendors, err := LoadVendors(s.Path)
		if err != nil {
			return nil, err
		}
		return matchVendors(vendors, query), nil
	})
}

func matchVendors(vendors []types.Vendor, query string) []types.SearchResult {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil
	}
	at := now()
	var results []types.SearchResult
	for _, v := range vendors {
		if !strings.Contains(strings.ToLower(v.Name), needle) {
			continue
		}
		results = append(results, types.NewResult(types.KindLocal, string(types.KindLocal), v.Name, v.SourceURL, v.Description, at))
	}
	return results
}

// LoadVendors reads a JSON or YAML vendor file holding either a bare list of
// vendors or a document with a "vendors" list.
func LoadVendors(path string) ([]types.Vendor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading vendor store %s", path)
	}

	var list []types.Vendor
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var doc struct {
		Vendors []types.Vendor `yaml:"vendors"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "parsing vendor store %s", path)
	}
	return doc.Vendors, nil
}

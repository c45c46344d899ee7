package repositoryimpl

import (
	"context"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/taskdeck/taskdeck/internal/bundle"
	"github.com/taskdeck/taskdeck/pkg/cerr"
	"github.com/taskdeck/taskdeck/pkg/storage"
)

const bundlesPrefix = "bundles"

type YAMLRepository struct {
	storage storage.Storage
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

func path(id string) string {
	return fmt.Sprintf("%s/%s.yaml", bundlesPrefix, id)
}

func (r *YAMLRepository) Create(ctx context.Context, b *bundle.Bundle) error {
	exists, err := r.storage.Exists(ctx, path(b.ID))
	if err != nil {
		return cerr.WrapStorageWriteError("bundle", err)
	}
	if exists {
		return cerr.NewError(cerr.AlreadyExists, "bundle already exists", nil)
	}
	data, err := yaml.Marshal(b)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal bundle: %w", err))
	}
	if err := r.storage.Write(ctx, path(b.ID), data); err != nil {
		return cerr.WrapStorageWriteError("bundle", err)
	}
	return nil
}

func (r *YAMLRepository) Get(ctx context.Context, id string) (*bundle.Bundle, error) {
	data, err := r.storage.Read(ctx, path(id))
	if err != nil {
		return nil, cerr.WrapStorageReadError("bundle", err)
	}
	var b bundle.Bundle
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal bundle: %w", err))
	}
	return &b, nil
}

func (r *YAMLRepository) List(ctx context.Context) ([]*bundle.Bundle, error) {
	paths, err := r.storage.List(ctx, bundlesPrefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError("bundles", err)
	}

	sort.Strings(paths)

	var all []*bundle.Bundle
	for _, p := range paths {
		data, err := r.storage.Read(ctx, p)
		if err != nil {
			continue
		}
		var b bundle.Bundle
		if err := yaml.Unmarshal(data, &b); err != nil {
			continue
		}
		all = append(all, &b)
	}
	return all, nil
}

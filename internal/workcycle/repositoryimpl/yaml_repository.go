package repositoryimpl

import (
	"context"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/taskdeck/taskdeck/internal/workcycle"
	"github.com/taskdeck/taskdeck/pkg/cerr"
	"github.com/taskdeck/taskdeck/pkg/storage"
)

const cyclesPrefix = "workcycles"

type YAMLRepository struct {
	storage storage.Storage
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

func path(id string) string {
	return fmt.Sprintf("%s/%s.yaml", cyclesPrefix, id)
}

func (r *YAMLRepository) Create(ctx context.Context, c *workcycle.WorkCycle) error {
	exists, err := r.storage.Exists(ctx, path(c.ID))
	if err != nil {
		return cerr.WrapStorageWriteError("work cycle", err)
	}
	if exists {
		return cerr.NewError(cerr.AlreadyExists, "work cycle already exists", nil)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal work cycle: %w", err))
	}
	if err := r.storage.Write(ctx, path(c.ID), data); err != nil {
		return cerr.WrapStorageWriteError("work cycle", err)
	}
	return nil
}

func (r *YAMLRepository) Get(ctx context.Context, id string) (*workcycle.WorkCycle, error) {
	data, err := r.storage.Read(ctx, path(id))
	if err != nil {
		return nil, cerr.WrapStorageReadError("work cycle", err)
	}
	var c workcycle.WorkCycle
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal work cycle: %w", err))
	}
	return &c, nil
}

func (r *YAMLRepository) List(ctx context.Context) ([]*workcycle.WorkCycle, error) {
	paths, err := r.storage.List(ctx, cyclesPrefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError("work cycles", err)
	}

	sort.Strings(paths)

	var all []*workcycle.WorkCycle
	for _, p := range paths {
		data, err := r.storage.Read(ctx, p)
		if err != nil {
			continue
		}
		var c workcycle.WorkCycle
		if err := yaml.Unmarshal(data, &c); err != nil {
			continue
		}
		all = append(all, &c)
	}
	return all, nil
}

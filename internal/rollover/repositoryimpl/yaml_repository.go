package repositoryimpl

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/taskdeck/taskdeck/internal/rollover"
	"github.com/taskdeck/taskdeck/pkg/cerr"
	"github.com/taskdeck/taskdeck/pkg/storage"
)

const markersPrefix = "rollover_markers"

type YAMLRepository struct {
	storage storage.Storage
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

func path(userID string) string {
	return fmt.Sprintf("%s/%s.yaml", markersPrefix, userID)
}

func (r *YAMLRepository) Get(ctx context.Context, userID string) (*rollover.Marker, error) {
	data, err := r.storage.Read(ctx, path(userID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, cerr.WrapStorageReadError("rollover marker", err)
	}
	var m rollover.Marker
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal rollover marker: %w", err))
	}
	return &m, nil
}

func (r *YAMLRepository) Put(ctx context.Context, m *rollover.Marker) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal rollover marker: %w", err))
	}
	if err := r.storage.Write(ctx, path(m.UserID), data); err != nil {
		return cerr.WrapStorageWriteError("rollover marker", err)
	}
	return nil
}

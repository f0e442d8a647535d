package metadata

import (
	"context"
	"log/slog"

	"github.com/Liiesl/EasyScanlate/pkg/common"
	"github.com/Liiesl/EasyScanlate/pkg/lazyjson"
)

type document struct {
	Installations map[string]common.InstallationState `json:"installations"`
}

func emptyDocument() *document {
	return &document{Installations: map[string]common.InstallationState{}}
}

// Mutable
type jsonStore struct {
	doc lazyjson.Manager[document]
}

// NewJSONStore keeps all records in one JSON document at path. The file is
// removed once the last record is erased.
func NewJSONStore(path string) Store {
	return &jsonStore{
		doc: lazyjson.New(path,
			lazyjson.WithDefaultValue(emptyDocument),
			lazyjson.WithRemoveWhenEmpty(func(d *document) bool { return len(d.Installations) == 0 }),
		),
	}
}

func (s *jsonStore) Write(ctx context.Context, state common.InstallationState) error {
	if err := validate(state); err != nil {
		return err
	}
	return s.update(func(d *document) {
		d.Installations[state.AppID] = state
	})
}

func (s *jsonStore) Erase(ctx context.Context, appID string) error {
	return s.update(func(d *document) {
		delete(d.Installations, appID)
	})
}

func (s *jsonStore) Read(ctx context.Context, appID string) (*common.InstallationState, error) {
	if err := s.doc.Reload(); err != nil {
		return nil, err
	}
	d, err := s.doc.Get()
	if err != nil {
		return nil, err
	}
	state, ok := d.Installations[appID]
	if !ok {
		return nil, ErrNotFound
	}
	return &state, nil
}

func (s *jsonStore) Close() error { return nil }

// update re-reads the document so changes made by other runs are kept.
func (s *jsonStore) update(fn func(*document)) error {
	if err := s.doc.Reload(); err != nil {
		return err
	}
	err := s.doc.Modify(func(d *document) error {
		if d.Installations == nil {
			d.Installations = map[string]common.InstallationState{}
		}
		fn(d)
		return nil
	})
	if err != nil {
		return err
	}
	slog.Debug("Saving installation record", "path", s.doc.Path())
	return s.doc.Save()
}

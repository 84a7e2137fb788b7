package capture

import (
	"github.com/m-mizutani/giji/pkg/model"
)

// UpdateMetadata applies a partial metadata update. Nil fields are left
// unchanged; see model.Session.UpdateMetadata for the normalization rules.
func (s *Store) UpdateMetadata(id model.SessionID, title *string, agenda *[]string) (*model.Session, error) {
	e, err := s.entryOf(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.session.UpdateMetadata(title, agenda)
	return e.session.Clone(), nil
}

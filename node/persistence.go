package node

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
)

// CreationStore persists the last creation number a node used, so a
// restarted node picks a fresh value rather than colliding with a
// peer's stale cached view of the crashed instance (spec.md §3, §5.4).
// Grounded on the teacher's FilePersister: one small JSON file, loaded
// then immediately bumped and rewritten.
type CreationStore struct {
	path string
}

type persistedCreation struct {
	Creation uint32 `json:"creation"`
}

// NewCreationStore opens (without yet reading) the creation file under
// dir, creating dir if necessary.
func NewCreationStore(dir string) (*CreationStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return &CreationStore{path: filepath.Join(dir, "creation.json")}, nil
}

// Next loads the last persisted creation, increments it, persists the
// new value, and returns it. A missing file starts from 1, since 0 is
// reserved for unregistered/offline nodes (spec.md §9).
func (s *CreationStore) Next() (uint32, error) {
	var pc persistedCreation
	data, err := ioutil.ReadFile(s.path)
	if err == nil {
		if jsonErr := json.Unmarshal(data, &pc); jsonErr != nil {
			pc.Creation = 0
		}
	}
	pc.Creation++
	out, err := json.Marshal(pc)
	if err != nil {
		return 0, err
	}
	if err := ioutil.WriteFile(s.path, out, 0700); err != nil {
		return 0, err
	}
	return pc.Creation, nil
}

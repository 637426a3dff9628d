package core

import (
	"encoding/json"
	"maps"
	"os"
	"sync"
	"time"
)

// Record is what is remembered about one transferred file.
type Record struct {
	TransferredAt time.Time `json:"transferred_at"`
	Size          int64     `json:"size"`
}

type TaskHistory struct {
	mu      sync.RWMutex
	Records map[string]Record `json:"records"` // keyed by path relative to the source root
}

func (th *TaskHistory) MarshalJSON() ([]byte, error) {
	th.mu.RLock()
	defer th.mu.RUnlock()
	return json.Marshal(struct {
		Records map[string]Record `json:"records"`
	}{th.Records})
}

func (th *TaskHistory) Add(path string, size int64) {
	th.mu.Lock()
	defer th.mu.Unlock()
	th.Records[path] = Record{TransferredAt: time.Now(), Size: size}
}

func (th *TaskHistory) Get(path string) (Record, bool) {
	th.mu.RLock()
	defer th.mu.RUnlock()
	rec, ok := th.Records[path]
	return rec, ok
}

func (th *TaskHistory) Remove(path string) {
	th.mu.Lock()
	defer th.mu.Unlock()
	delete(th.Records, path)
}

// Snapshot copies the records so callers can iterate without the lock.
func (th *TaskHistory) Snapshot() map[string]Record {
	th.mu.RLock()
	defer th.mu.RUnlock()
	return maps.Clone(th.Records)
}

// HistoryManager persists the history of every task as one JSON file.
type HistoryManager struct {
	mu    sync.RWMutex
	Path  string
	Tasks map[string]*TaskHistory
}

func NewHistoryManager(path string) *HistoryManager {
	return &HistoryManager{
		Tasks: make(map[string]*TaskHistory),
		Path:  path,
	}
}

// Load reads the history file; a missing file is an empty history.
func (hm *HistoryManager) Load() error {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	data, err := os.ReadFile(hm.Path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	tasks := make(map[string]*TaskHistory)
	if err := json.Unmarshal(data, &tasks); err != nil {
		return err
	}
	for _, th := range tasks {
		if th.Records == nil {
			th.Records = make(map[string]Record)
		}
	}
	hm.Tasks = tasks
	return nil
}

// Save writes the history through a temporary file. Saves are serialised
// since they share the temporary file name.
func (hm *HistoryManager) Save() error {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	data, err := json.MarshalIndent(hm.Tasks, "", "  ")
	if err != nil {
		return err
	}

	tmp := hm.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, hm.Path)
}

func (hm *HistoryManager) GetTaskHistory(taskName string) *TaskHistory {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	if _, ok := hm.Tasks[taskName]; !ok {
		hm.Tasks[taskName] = &TaskHistory{Records: make(map[string]Record)}
	}
	return hm.Tasks[taskName]
}

package core

import (
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"time"

	"filedrive/config"
	"filedrive/protocols"
)

// TaskResult counts what one run of a task did.
type TaskResult struct {
	Transferred int
	Skipped     int
	Failed      int
	Deleted     int
	// ListErr is set when listing the source stopped early.
	ListErr error
}

// TransferManager mirrors the files of a source storage into a target storage.
type TransferManager struct {
	HistoryManager *HistoryManager
	Logger         *slog.Logger

	newStorage func(config.Endpoint) (protocols.Storage, error)
}

func NewTransferManager(hm *HistoryManager, logger *slog.Logger) *TransferManager {
	return &TransferManager{
		HistoryManager: hm,
		Logger:         logger,
		newStorage:     NewStorage,
	}
}

func (tm *TransferManager) RunTask(task config.Task) (*TaskResult, error) {
	log := tm.Logger.With("task", task.Name)
	log.Info("starting task")

	regex, err := regexp.Compile(task.SourceRegex)
	if err != nil {
		return nil, fmt.Errorf("invalid source_regex: %w", err)
	}

	src, err := tm.newStorage(task.Source())
	if err != nil {
		return nil, fmt.Errorf("failed to init source storage: %w", err)
	}
	defer src.Close()

	dst, err := tm.newStorage(task.Target())
	if err != nil {
		return nil, fmt.Errorf("failed to init target storage: %w", err)
	}
	defer dst.Close()

	history := tm.HistoryManager.GetTaskHistory(task.Name)
	result := &TaskResult{}

	// A listing failure still lets cleanup and the history save run.
	if err := tm.transferAll(src, dst, task, regex, history, result, log); err != nil {
		log.Error("listing source failed", "error", err)
		result.ListErr = err
	}

	if task.RetentionDays > 0 {
		tm.cleanup(dst, task, history, result, log)
	}

	if err := tm.HistoryManager.Save(); err != nil {
		log.Error("failed to save history", "error", err)
	}
	log.Info("finished task",
		"transferred", result.Transferred,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"deleted", result.Deleted,
	)
	return result, nil
}

func (tm *TransferManager) transferAll(src, dst protocols.Storage, task config.Task, regex *regexp.Regexp, history *TaskHistory, result *TaskResult, log *slog.Logger) error {
	var cutoff time.Time
	if task.SourceNewerDays > 0 {
		cutoff = time.Now().AddDate(0, 0, -task.SourceNewerDays)
	}

	for entry, err := range src.ListAll("") {
		if err != nil {
			return err
		}

		if !regex.MatchString(path.Base(entry.Path)) {
			result.Skipped++
			continue
		}

		stat, err := src.Stat(entry.Path)
		if err != nil {
			log.Warn("failed to stat source file", "path", entry.Path, "error", err)
			result.Failed++
			continue
		}
		if !cutoff.IsZero() && stat.Modified.Before(cutoff) {
			result.Skipped++
			continue
		}

		// Unchanged size since the last transfer means the file is already there.
		if rec, ok := history.Get(entry.Path); ok && rec.Size == stat.Size {
			log.Debug("already transferred", "path", entry.Path)
			result.Skipped++
			continue
		}

		if err := tm.transferFile(src, dst, entry.Path); err != nil {
			log.Error("failed to transfer file", "path", entry.Path, "error", err)
			result.Failed++
			continue
		}
		log.Info("transferred file", "path", entry.Path, "size", stat.Size)
		history.Add(entry.Path, stat.Size)
		result.Transferred++
	}
	return nil
}

func (tm *TransferManager) transferFile(src, dst protocols.Storage, relPath string) error {
	r, err := src.OpenReadStream(relPath)
	if err != nil {
		return err
	}
	defer r.Close()

	_, err = dst.Write(relPath, r)
	return err
}

// cleanup deletes target files whose transfer is older than the retention.
// Records are kept so the source file is not transferred again.
func (tm *TransferManager) cleanup(dst protocols.Storage, task config.Task, history *TaskHistory, result *TaskResult, log *slog.Logger) {
	cutoff := time.Now().AddDate(0, 0, -task.RetentionDays)

	for relPath, rec := range history.Snapshot() {
		if !rec.TransferredAt.Before(cutoff) {
			continue
		}

		exists, err := dst.Exists(relPath)
		if err != nil {
			log.Warn("failed to check target file", "path", relPath, "error", err)
			continue
		}
		if !exists.Exists {
			continue
		}

		log.Info("cleaning up old file", "path", relPath, "transferred_at", rec.TransferredAt)
		if _, err := dst.Delete(relPath); err != nil {
			log.Error("failed to remove file", "path", relPath, "error", err)
			continue
		}
		result.Deleted++
	}
}

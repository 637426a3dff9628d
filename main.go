package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"

	"filedrive/config"
	"filedrive/core"
	"filedrive/logger"
	"filedrive/protocols"
)

var (
	app        = kingpin.New("filedrive", "Storage operations over local, SFTP, FTP and MinIO backends.")
	configPath = app.Flag("config", "Path to config file (.toml, .yaml)").Short('c').Default("config.toml").String()
	logLevel   = app.Flag("log-level", "Log level").Default("").Enum("", "debug", "info", "warn", "error")

	runCmd      = app.Command("run", "Schedule all tasks and run until interrupted.")
	historyPath = runCmd.Flag("history", "Path to history file").Default("history.json").String()

	syncCmd     = app.Command("sync", "Run one task once.")
	syncTask    = syncCmd.Arg("task", "Task name").Required().String()
	syncHistory = syncCmd.Flag("history", "Path to history file").Default("history.json").String()

	lsCmd     = app.Command("ls", "List files recursively.")
	lsStorage = lsCmd.Arg("storage", "Storage name").Required().String()
	lsPrefix  = lsCmd.Arg("prefix", "Path prefix").Default("").String()

	catCmd      = app.Command("cat", "Print a file as text.")
	catStorage  = catCmd.Arg("storage", "Storage name").Required().String()
	catPath     = catCmd.Arg("path", "File path").Required().String()
	catEncoding = catCmd.Flag("encoding", "Text encoding").Default("utf-8").String()

	getCmd     = app.Command("get", "Download a file.")
	getStorage = getCmd.Arg("storage", "Storage name").Required().String()
	getPath    = getCmd.Arg("path", "Remote path").Required().String()
	getLocal   = getCmd.Arg("local", "Local file").Required().String()

	putCmd     = app.Command("put", "Upload a file.")
	putStorage = putCmd.Arg("storage", "Storage name").Required().String()
	putPath    = putCmd.Arg("path", "Remote path").Required().String()
	putLocal   = putCmd.Arg("local", "Local file").Required().ExistingFile()

	statCmd     = app.Command("stat", "Show size and modification time.")
	statStorage = statCmd.Arg("storage", "Storage name").Required().String()
	statPath    = statCmd.Arg("path", "File path").Required().String()

	existsCmd     = app.Command("exists", "Report whether a path exists.")
	existsStorage = existsCmd.Arg("storage", "Storage name").Required().String()
	existsPath    = existsCmd.Arg("path", "File path").Required().String()

	rmCmd     = app.Command("rm", "Delete a file.")
	rmStorage = rmCmd.Arg("storage", "Storage name").Required().String()
	rmPath    = rmCmd.Arg("path", "File path").Required().String()

	cpCmd     = app.Command("cp", "Copy a file within a storage.")
	cpStorage = cpCmd.Arg("storage", "Storage name").Required().String()
	cpSrc     = cpCmd.Arg("src", "Source path").Required().String()
	cpDest    = cpCmd.Arg("dest", "Destination path").Required().String()

	mvCmd     = app.Command("mv", "Move a file within a storage (copy, then delete).")
	mvStorage = mvCmd.Arg("storage", "Storage name").Required().String()
	mvSrc     = mvCmd.Arg("src", "Source path").Required().String()
	mvDest    = mvCmd.Arg("dest", "Destination path").Required().String()
)

func main() {
	app.HelpFlag.Short('h')
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	level := *logLevel
	if level == "" {
		level = cfg.LogLevel
	}
	log := logger.NewLogger(level)

	if err := dispatch(cmd, cfg, log); err != nil {
		log.Error("command failed", "command", cmd, "error", err)
		os.Exit(1)
	}
}

func dispatch(cmd string, cfg *config.Config, log *slog.Logger) error {
	switch cmd {
	case runCmd.FullCommand():
		return runDaemon(cfg, log)
	case syncCmd.FullCommand():
		return runOnce(cfg, log)
	case lsCmd.FullCommand():
		return withStorage(cfg, *lsStorage, func(s protocols.Storage) error {
			for entry, err := range s.ListAll(*lsPrefix) {
				if err != nil {
					return err
				}
				fmt.Println(entry.Path)
			}
			return nil
		})
	case catCmd.FullCommand():
		return withStorage(cfg, *catStorage, func(s protocols.Storage) error {
			res, err := s.ReadText(*catPath, *catEncoding)
			if err != nil {
				return err
			}
			_, err = io.WriteString(os.Stdout, res.Content)
			return err
		})
	case getCmd.FullCommand():
		return withStorage(cfg, *getStorage, func(s protocols.Storage) error {
			return download(s, *getPath, *getLocal)
		})
	case putCmd.FullCommand():
		return withStorage(cfg, *putStorage, func(s protocols.Storage) error {
			f, err := os.Open(*putLocal)
			if err != nil {
				return err
			}
			defer f.Close()
			_, err = s.Write(*putPath, f)
			return err
		})
	case statCmd.FullCommand():
		return withStorage(cfg, *statStorage, func(s protocols.Storage) error {
			res, err := s.Stat(*statPath)
			if err != nil {
				return err
			}
			fmt.Printf("size: %d\nmodified: %s\n", res.Size, res.Modified.Format("2006-01-02 15:04:05 MST"))
			return nil
		})
	case existsCmd.FullCommand():
		return withStorage(cfg, *existsStorage, func(s protocols.Storage) error {
			res, err := s.Exists(*existsPath)
			if err != nil {
				return err
			}
			fmt.Println(res.Exists)
			return nil
		})
	case rmCmd.FullCommand():
		return withStorage(cfg, *rmStorage, func(s protocols.Storage) error {
			_, err := s.Delete(*rmPath)
			return err
		})
	case cpCmd.FullCommand():
		return withStorage(cfg, *cpStorage, func(s protocols.Storage) error {
			_, err := s.Copy(*cpSrc, *cpDest)
			return err
		})
	case mvCmd.FullCommand():
		return withStorage(cfg, *mvStorage, func(s protocols.Storage) error {
			_, err := s.Move(*mvSrc, *mvDest)
			return err
		})
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func withStorage(cfg *config.Config, name string, fn func(protocols.Storage) error) error {
	ep, err := cfg.Storage(name)
	if err != nil {
		return err
	}
	s, err := core.NewStorage(ep)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func download(s protocols.Storage, remote, local string) error {
	r, err := s.OpenReadStream(remote)
	if err != nil {
		return err
	}
	defer r.Close()

	f, err := os.Create(local)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func runDaemon(cfg *config.Config, log *slog.Logger) error {
	hm := core.NewHistoryManager(*historyPath)
	if err := hm.Load(); err != nil {
		log.Warn("failed to load history", "path", *historyPath, "error", err)
	}

	tm := core.NewTransferManager(hm, log)
	runner := core.NewRunner(cfg, tm, log)
	runner.Start()
	log.Info("filedrive started", "tasks", len(cfg.Tasks))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down")
	runner.Stop()
	return hm.Save()
}

func runOnce(cfg *config.Config, log *slog.Logger) error {
	hm := core.NewHistoryManager(*syncHistory)
	if err := hm.Load(); err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	for _, task := range cfg.Tasks {
		if task.Name != *syncTask {
			continue
		}
		res, err := core.NewTransferManager(hm, log).RunTask(task)
		if err != nil {
			return err
		}
		if res.ListErr != nil {
			return res.ListErr
		}
		if res.Failed > 0 {
			return fmt.Errorf("%d files failed to transfer", res.Failed)
		}
		return nil
	}
	return fmt.Errorf("task %q is not configured", *syncTask)
}

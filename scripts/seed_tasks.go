package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"tasksync/internal/database"
	"tasksync/internal/service"
	syncengine "tasksync/internal/sync"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type SeedConfig struct {
	Tasks []seedTask `yaml:"tasks"`
}

type seedTask struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Completed   bool   `yaml:"completed"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		seedPath = flag.String("tasks", "configs/seed_tasks.yaml", "path to seed_tasks.yaml")
		dbPath   = flag.String("db", "./data/tasksync.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*seedPath)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var cfg SeedConfig
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}
	if len(cfg.Tasks) == 0 {
		return fmt.Errorf("no tasks in yaml")
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	queue := syncengine.NewQueue(db, &logger)
	tasks := service.NewTaskService(db, queue, &logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	created := 0
	updated := 0
	for _, t := range cfg.Tasks {
		if t.Title == "" {
			continue
		}

		if t.ID != "" {
			_, err = db.GetTask(ctx, t.ID)
			if err == nil {
				title := t.Title
				description := t.Description
				completed := t.Completed
				if _, err = tasks.UpdateTask(ctx, t.ID, service.UpdateTaskInput{
					Title:       &title,
					Description: &description,
					Completed:   &completed,
				}); err != nil {
					return fmt.Errorf("update %s: %w", t.ID, err)
				}
				updated++
				continue
			}
			if !errors.Is(err, database.ErrTaskNotFound) {
				return fmt.Errorf("get %s: %w", t.ID, err)
			}
		}

		if _, err = tasks.CreateTask(ctx, service.CreateTaskInput{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
		}); err != nil {
			return fmt.Errorf("create %q: %w", t.Title, err)
		}
		created++
	}

	fmt.Printf("done: created=%d updated=%d\n", created, updated)
	return nil
}

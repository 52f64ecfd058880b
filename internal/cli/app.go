package cli

import (
	"fmt"

	"github.com/taskfleet/taskfleet/internal/board"
	"github.com/taskfleet/taskfleet/internal/config"
	"github.com/taskfleet/taskfleet/internal/developer"
	"github.com/taskfleet/taskfleet/internal/git"
	"github.com/taskfleet/taskfleet/internal/gitlock"
	"github.com/taskfleet/taskfleet/internal/hosting"
	_ "github.com/taskfleet/taskfleet/internal/hosting/github"
	_ "github.com/taskfleet/taskfleet/internal/hosting/gitlab"
	"github.com/taskfleet/taskfleet/internal/jira"
	"github.com/taskfleet/taskfleet/internal/model"
	"github.com/taskfleet/taskfleet/internal/planner"
	"github.com/taskfleet/taskfleet/internal/repocache"
	"github.com/taskfleet/taskfleet/internal/resultparser"
	"github.com/taskfleet/taskfleet/internal/review"
	"github.com/taskfleet/taskfleet/internal/router"
	"github.com/taskfleet/taskfleet/internal/store"
	"github.com/taskfleet/taskfleet/internal/worker"
	"github.com/taskfleet/taskfleet/internal/workspace"
)

// App holds the wired dependency graph shared by the run/status/worker
// commands.
type App struct {
	Config  *config.Config
	Store   *store.Store
	Board   board.Provider
	Pool    *worker.Pool
	Router  *router.Router
	Planner *planner.Planner
}

// buildApp wires the full pipeline (store, locks, cache, workspace,
// developer backend, board, pool, router, planner) from cfg.
func buildApp(cfg *config.Config) (*App, error) {
	st, err := store.Open(cfg.StateDir)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}

	locks := gitlock.New()
	cache := repocache.New(cfg.RepositoryDir, st, locks, cfg.RepositoryCacheTimeout)
	ws := workspace.New(cfg.WorkspaceDir, st, cache, locks)
	validator := workspace.NewValidator(ws)

	boardProvider, err := buildBoard(cfg)
	if err != nil {
		return nil, fmt.Errorf("build board provider: %w", err)
	}

	backendFactory := func() developer.Backend {
		if cfg.Developer.Kind == "mock" {
			return &developer.Mock{Outputs: []string{"task complete"}}
		}
		devCfg := developer.DefaultConfig()
		devCfg.BinaryName = cfg.Developer.BackendPath
		devCfg.Model = cfg.Developer.Model
		devCfg.Timeout = cfg.Developer.Timeout
		return developer.New(devCfg)
	}

	pool := worker.NewPool(worker.PoolConfig{
		MinWorkers:    cfg.Pool.Min,
		MaxWorkers:    cfg.Pool.Max,
		IdleTimeout:   cfg.Pool.IdleTimeout,
		DeveloperKind: cfg.Developer.Kind,
	}, backendFactory, ws, st, buildPrompt)

	r := router.New(pool, st, validator)

	reviewFor := func(repositoryID string) (review.Provider, error) {
		repo, ok := st.GetRepository(repositoryID)
		if !ok || repo.LocalPath == "" {
			return nil, fmt.Errorf("no local clone known for repository %q", repositoryID)
		}
		hp, err := hosting.NewProvider(repo.LocalPath, hosting.Config{Provider: "auto"})
		if err != nil {
			return nil, err
		}
		gitRepo, err := git.Open(repo.LocalPath, "")
		defaultBranchFunc := func() (string, error) {
			if err != nil {
				return "main", nil
			}
			return gitRepo.DefaultBranch(), nil
		}
		return review.New(hp, defaultBranchFunc), nil
	}

	p := planner.New(planner.Config{
		BoardID:          cfg.BoardID,
		MonitoringPeriod: cfg.PollingInterval,
	}, boardProvider, r, st, reviewFor)

	return &App{Config: cfg, Store: st, Board: boardProvider, Pool: pool, Router: r, Planner: p}, nil
}

func buildBoard(cfg *config.Config) (board.Provider, error) {
	switch cfg.BoardKind {
	case config.BoardJira:
		return board.NewJiraProvider(board.JiraConfig{
			ClientConfig: jira.ClientConfig{
				BaseURL:  cfg.Jira.BaseURL,
				Email:    cfg.Jira.Email,
				APIToken: cfg.Jira.APIToken,
			},
			ProjectKey: cfg.Jira.ProjectKey,
			Columns:    board.DefaultJiraColumns(),
		})
	case config.BoardGitHub:
		return board.NewGitHubProvider(board.GitHubConfig{
			Owner: cfg.GitHub.Owner,
			Repo:  cfg.GitHub.Repo,
			Token: cfg.GitHub.Token,
		})
	case config.BoardMock:
		return board.NewMock(), nil
	default:
		return nil, fmt.Errorf("unknown board kind %q", cfg.BoardKind)
	}
}

// buildPrompt renders the instruction text handed to the developer
// backend for one task action. It intentionally stays plain Go string
// construction rather than a file-based template: the task carries no
// content that needs more than a few conditional sections.
func buildPrompt(t *model.WorkerTask) (string, error) {
	switch t.Action {
	case model.ActionStartNewTask, model.ActionResumeTask:
		title := ""
		if t.BoardItem != nil {
			title = t.BoardItem.Title
		}
		return fmt.Sprintf(
			"Implement the following task and open a pull request when done.\n\nTask: %s\nID: %s\n",
			title, t.TaskID), nil
	case model.ActionProcessFeedback:
		prompt := "Address the following review feedback on the currently open pull request:\n\n"
		for _, c := range t.Comments {
			prompt += "- " + c + "\n"
		}
		return prompt, nil
	case model.ActionMergeRequest:
		return fmt.Sprintf("Merge the pull request at %s once CI is green.\n", t.PullRequestURL), nil
	default:
		return "", fmt.Errorf("no prompt builder for action %q", t.Action)
	}
}

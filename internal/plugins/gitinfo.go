package plugins

import (
	"context"
	"errors"
	"log/slog"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/gitinfo"
	"git.home.luguber.info/inful/sitebuilder/internal/page"
	"git.home.luguber.info/inful/sitebuilder/internal/plugin"
)

type gitInfoSettings struct {
	RepoDir string `yaml:"repo_dir"`
}

// gitInfoPlugin fills the page's Git sub-record from repository history.
// History is optional enrichment: a source tree outside any repository
// degrades the plugin to a pass-through, and a file without commits is
// skipped quietly.
type gitInfoPlugin struct {
	repo   *gitinfo.Repo // nil when the source tree is not in a repository
	logger *slog.Logger
}

func newGitInfo(deps plugin.Deps, cfg config.PluginConfig) (plugin.NotePlugin, error) {
	var settings gitInfoSettings
	if err := decodeSettings(cfg.Settings, &settings); err != nil {
		return nil, err
	}
	dir := settings.RepoDir
	if dir == "" {
		dir = deps.Config.Paths.Source
	}

	repo, err := gitinfo.Open(dir)
	if err != nil {
		deps.Logger.Warn("git history unavailable", "dir", dir, "error", err)
		return &gitInfoPlugin{logger: deps.Logger}, nil
	}
	return &gitInfoPlugin{repo: repo, logger: deps.Logger}, nil
}

func (p *gitInfoPlugin) Name() string { return "gitinfo" }

func (p *gitInfoPlugin) Process(_ context.Context, pg *page.Context) (*page.Context, error) {
	if p.repo == nil {
		return pg, nil
	}
	data, err := p.repo.FileHistory(pg.SourcePath)
	if err != nil {
		if errors.Is(err, gitinfo.ErrNoHistory) {
			p.logger.Debug("no git history for page", "page", pg.RelativePath)
		} else {
			p.logger.Warn("git history lookup failed",
				"page", pg.RelativePath, "error", err)
		}
		return pg, nil
	}
	pg.Git = data
	return pg, nil
}

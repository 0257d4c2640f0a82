package plugins

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/page"
	"git.home.luguber.info/inful/sitebuilder/internal/plugin"
)

// The asset compilers shell out to the node toolchain. Subprocess failures
// surface the tool's combined output so the build log shows the compiler's
// own diagnostics.

type tailwindSettings struct {
	Input  string   `yaml:"input"`
	Watch  bool     `yaml:"watch"`
	Minify bool     `yaml:"minify"`
	Flags  []string `yaml:"flags"`
}

// tailwindPlugin compiles the configured input stylesheet to
// {output}/styles.css with the Tailwind CLI.
type tailwindPlugin struct {
	settings tailwindSettings
	output   string
	logger   *slog.Logger
}

func newTailwind(deps plugin.Deps, cfg config.PluginConfig) (plugin.BuildPlugin, error) {
	settings := tailwindSettings{Minify: true}
	if err := decodeSettings(cfg.Settings, &settings); err != nil {
		return nil, errors.ConfigErrorf("tailwind settings: %v", err)
	}
	if settings.Input == "" {
		return nil, errors.ConfigError("tailwind plugin requires input")
	}
	return &tailwindPlugin{
		settings: settings,
		output:   deps.Config.Paths.Output,
		logger:   deps.Logger,
	}, nil
}

func (p *tailwindPlugin) Name() string { return "tailwind" }

func (p *tailwindPlugin) Execute(ctx context.Context, _ []*page.Context) error {
	outPath := filepath.Join(p.output, "styles.css")
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	args := []string{"@tailwindcss/cli", "-i", p.settings.Input, "-o", outPath}
	if p.settings.Watch {
		args = append(args, "--watch")
	}
	if p.settings.Minify {
		args = append(args, "--minify")
	}
	args = append(args, p.settings.Flags...)

	out, err := runNpx(ctx, args)
	if err != nil {
		return fmt.Errorf("tailwind compilation failed: %w: %s", err, out)
	}
	p.logger.Info("tailwind css compiled", "output", outPath)
	return nil
}

type typescriptSettings struct {
	Source           string   `yaml:"source"`
	Output           string   `yaml:"output"`
	Target           string   `yaml:"target"`
	Module           string   `yaml:"module"`
	ModuleResolution string   `yaml:"module_resolution"`
	Strict           bool     `yaml:"strict"`
	SourceMap        bool     `yaml:"source_map"`
	Declaration      bool     `yaml:"declaration"`
	Watch            bool     `yaml:"watch"`
	Flags            []string `yaml:"flags"`
}

func defaultTypescriptSettings() typescriptSettings {
	return typescriptSettings{
		Output:    "scripts",
		Target:    "es2020",
		Module:    "es2020",
		Strict:    true,
		SourceMap: true,
	}
}

// typescriptPlugin compiles a TypeScript source tree into a subdirectory of
// the build output with tsc.
type typescriptPlugin struct {
	settings typescriptSettings
	output   string
	logger   *slog.Logger
}

func newTypeScript(deps plugin.Deps, cfg config.PluginConfig) (plugin.BuildPlugin, error) {
	settings := defaultTypescriptSettings()
	if err := decodeSettings(cfg.Settings, &settings); err != nil {
		return nil, errors.ConfigErrorf("typescript settings: %v", err)
	}
	if settings.Source == "" {
		return nil, errors.ConfigError("typescript plugin requires source")
	}
	return &typescriptPlugin{
		settings: settings,
		output:   deps.Config.Paths.Output,
		logger:   deps.Logger,
	}, nil
}

func (p *typescriptPlugin) Name() string { return "typescript" }

func (p *typescriptPlugin) Execute(ctx context.Context, _ []*page.Context) error {
	sources, err := collectTypescriptSources(p.settings.Source)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		p.logger.Warn("no typescript files found", "source", p.settings.Source)
		return nil
	}

	outDir := filepath.Join(p.output, p.settings.Output)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	args := append([]string{"tsc"}, sources...)
	args = append(args, "--outDir", outDir, "--target", p.settings.Target, "--module", p.settings.Module)
	if p.settings.ModuleResolution != "" {
		args = append(args, "--moduleResolution", p.settings.ModuleResolution)
	}
	if p.settings.Strict {
		args = append(args, "--strict")
	}
	if p.settings.SourceMap {
		args = append(args, "--sourceMap")
	}
	if p.settings.Declaration {
		args = append(args, "--declaration")
	}
	if p.settings.Watch {
		args = append(args, "--watch")
	}
	args = append(args, p.settings.Flags...)

	out, err := runNpx(ctx, args)
	if err != nil {
		return fmt.Errorf("typescript compilation failed: %w: %s", err, out)
	}
	p.logger.Info("typescript compiled", "output", outDir, "files", len(sources))
	return nil
}

// collectTypescriptSources resolves the source setting to the .ts files to
// compile: a file is taken as-is, a directory is walked recursively.
func collectTypescriptSources(source string) ([]string, error) {
	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("typescript source not found: %s", source)
	}
	if !info.IsDir() {
		return []string{source}, nil
	}

	var sources []string
	err = filepath.WalkDir(source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".ts") {
			sources = append(sources, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan typescript sources: %w", err)
	}
	return sources, nil
}

// runNpx executes an npx command and returns its combined output.
func runNpx(ctx context.Context, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, "npx", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if stderrors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("npx not found, install Node.js to run asset builds")
		}
		return string(out), err
	}
	return string(out), nil
}

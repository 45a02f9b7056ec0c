package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/k11v/telebuild/internal/appenv"
	"github.com/k11v/telebuild/internal/auth"
	"github.com/k11v/telebuild/internal/build"
	"github.com/k11v/telebuild/internal/project"
)

type CLI struct {
	EnvFile   []string `name:"env-file" help:"Dotenv files to read configuration from." default:".env"`
	LogLevel  string   `name:"log-level" help:"Log level." enum:"debug,info,warn,error" default:"info"`
	LogFormat string   `name:"log-format" help:"Log format." enum:"text,json" default:"text"`

	Build    BuildCmd    `cmd:"" help:"Run one build session of a project."`
	Projects ProjectsCmd `cmd:"" help:"List the projects that can be built."`
	Token    TokenCmd    `cmd:"" help:"Issue an API token for a chat user."`
}

// AfterApply sets up the default logger after flags are parsed.
func (c *CLI) AfterApply() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return err
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if c.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// config holds the configuration read from the environment.
type config struct {
	Auth     auth.Config    `envPrefix:"TELEBUILD_AUTH_"`
	Build    build.Config   `envPrefix:"TELEBUILD_BUILD_"`
	Projects project.Config `envPrefix:"TELEBUILD_PROJECTS_"`
}

func (c *CLI) config() (*config, error) {
	environ, err := appenv.Environ(os.Environ(), c.EnvFile...)
	if err != nil {
		return nil, err
	}

	var cfg config
	if err = env.ParseWithOptions(&cfg, env.Options{Environment: env.ToMap(environ)}); err != nil {
		return nil, err
	}
	if cfg.Projects.Dir == "" {
		cfg.Projects.Dir = "."
	}
	return &cfg, nil
}

type BuildCmd struct {
	Project      string             `arg:"" help:"Name of the project directory."`
	Platform     build.Platform     `short:"p" help:"Target platform (AndroidDevelopment, AndroidRelease)." default:"AndroidDevelopment"`
	LogBehaviour build.LogBehaviour `name:"log-behaviour" help:"Where the build tool's output goes (Stdout, StdoutFile, File). Overrides TELEBUILD_BUILD_LOG_BEHAVIOUR."`
}

func (b *BuildCmd) Run(ctx context.Context, cli *CLI) error {
	cfg, err := cli.config()
	if err != nil {
		return err
	}
	if b.LogBehaviour != "" {
		cfg.Build.LogBehaviour = b.LogBehaviour
	}

	p, err := project.NewLister(&cfg.Projects).Get(b.Project)
	if err != nil {
		return err
	}

	req, err := build.NewRequest(&build.RequestParams{
		ProjectName:   p.Name,
		ProjectPath:   p.Path,
		WorkspacePath: p.WorkspacePath,
		Platform:      b.Platform,
		Entry:         cfg.Build.Entry,
		Secret:        cfg.Build.Secret,
	})
	if err != nil {
		return err
	}

	runner, err := build.NewRunner(&build.RunnerParams{
		Config: &cfg.Build,
		Log:    slog.Default(),
	})
	if err != nil {
		return err
	}

	result, s, err := runner.Run(ctx, req)
	if err != nil {
		if s != nil {
			slog.Info("session ended", "session_id", s.ID, "state", s.State())
		}
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 1, ' ', 0)
	_, _ = fmt.Fprintf(w, "session\t%s\n", result.SessionID)
	_, _ = fmt.Fprintf(w, "platform\t%s\n", result.Platform)
	_, _ = fmt.Fprintf(w, "artifact\t%s\n", result.ArtifactPath)
	if result.LogPath != "" {
		_, _ = fmt.Fprintf(w, "log\t%s\n", result.LogPath)
	}
	_, _ = fmt.Fprintf(w, "exit code\t%d\n", result.ExitCode)
	if err = w.Flush(); err != nil {
		return err
	}

	if result.ExitCode != 0 {
		return &build.ExitError{ExitCode: result.ExitCode}
	}
	return nil
}

type ProjectsCmd struct {
	Columns int `short:"n" help:"Number of projects per row." default:"3"`
}

func (p *ProjectsCmd) Run(cli *CLI) error {
	cfg, err := cli.config()
	if err != nil {
		return err
	}

	projects, err := project.NewLister(&cfg.Projects).List()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, row := range project.Rows(projects, p.Columns) {
		names := make([]string, 0, len(row))
		for _, pr := range row {
			names = append(names, pr.Name)
		}
		_, _ = fmt.Fprintln(w, strings.Join(names, "\t"))
	}
	return w.Flush()
}

type TokenCmd struct {
	UserID int64         `arg:"" name:"user-id" help:"Chat platform user ID the token is issued for."`
	TTL    time.Duration `name:"ttl" help:"How long the token is valid." default:"1h"`
}

func (t *TokenCmd) Run(cli *CLI) error {
	cfg, err := cli.config()
	if err != nil {
		return err
	}
	if cfg.Auth.SignatureKeyFile == "" {
		return errors.Join(build.ErrConfiguration, errors.New("missing TELEBUILD_AUTH_SIGNATURE_KEY_FILE"))
	}
	if t.TTL <= 0 {
		return errors.Join(build.ErrConfiguration, fmt.Errorf("ttl %v isn't positive", t.TTL))
	}

	key, err := auth.ReadSignatureKeyFile(cfg.Auth.SignatureKeyFile)
	if err != nil {
		return err
	}
	token, err := auth.NewToken(key, t.UserID, t.TTL)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(os.Stdout, token)
	return err
}

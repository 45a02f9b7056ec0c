// Package project lists the projects that can be built.
//
// Every directory directly under the projects directory is a project.
// The listing is read-only and may be shared across sessions.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var ErrNotFound = errors.New("project not found")

// Config holds the projects configuration.
type Config struct {
	Dir string `env:"DIR"`

	// WorkspaceDir is where the build tool sees the projects
	// when it runs with a different view of the filesystem.
	WorkspaceDir string `env:"WORKSPACE_DIR"`
}

type Project struct {
	Name          string
	Path          string
	WorkspacePath string // empty if the build tool uses Path
}

type Lister struct {
	dir          string
	workspaceDir string
}

func NewLister(cfg *Config) *Lister {
	return &Lister{dir: cfg.Dir, workspaceDir: cfg.WorkspaceDir}
}

// List returns the projects sorted by name.
func (l *Lister) List() ([]*Project, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("project.Lister: %w", err)
	}

	projects := make([]*Project, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		projects = append(projects, l.project(e.Name()))
	}
	slices.SortFunc(projects, func(a, b *Project) int { return strings.Compare(a.Name, b.Name) })

	return projects, nil
}

// Get returns the project with the given name.
// It returns ErrNotFound if name isn't a directory directly under the projects directory.
func (l *Lister) Get(name string) (*Project, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("project.Lister: %q: %w", name, ErrNotFound)
	}

	info, err := os.Stat(filepath.Join(l.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("project.Lister: %q: %w", name, ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("project.Lister: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project.Lister: %q: %w", name, ErrNotFound)
	}

	return l.project(name), nil
}

func (l *Lister) project(name string) *Project {
	p := &Project{Name: name, Path: filepath.Join(l.dir, name)}
	if l.workspaceDir != "" {
		p.WorkspacePath = filepath.Join(l.workspaceDir, name)
	}
	return p
}

// Rows splits projects into rows of at most n projects, in order.
// It is used to lay out project choices for a chat keyboard.
func Rows(projects []*Project, n int) [][]*Project {
	if n <= 0 {
		n = 1
	}
	var rows [][]*Project
	for chunk := range slices.Chunk(projects, n) {
		rows = append(rows, chunk)
	}
	return rows
}

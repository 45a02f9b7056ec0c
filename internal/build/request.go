package build

import (
	"errors"
	"fmt"
	"path/filepath"
)

// RequestParams holds the fields of a Request before validation.
type RequestParams struct {
	ProjectName   string   // required
	ProjectPath   string   // required
	WorkspacePath string   // optional, defaults to ProjectPath; made absolute like ProjectPath
	Platform      Platform // required
	Entry         string   // required
	Secret        string   // required
}

// Request is a validated build request.
// It is immutable; use NewRequest to create one.
type Request struct {
	projectName   string
	projectPath   string
	workspacePath string
	platform      Platform
	entry         string
	secret        string
}

// NewRequest validates params and returns a Request.
// A missing or invalid field is reported as ErrConfiguration.
func NewRequest(params *RequestParams) (*Request, error) {
	var errs []error
	if params.ProjectName == "" {
		errs = append(errs, errors.New("missing project name"))
	}
	if params.ProjectPath == "" {
		errs = append(errs, errors.New("missing project path"))
	}
	if params.Platform == "" {
		errs = append(errs, errors.New("missing platform"))
	} else if _, known := ParsePlatform(string(params.Platform)); !known {
		errs = append(errs, fmt.Errorf("unknown platform %q", params.Platform))
	}
	if params.Entry == "" {
		errs = append(errs, errors.New("missing entry"))
	}
	if params.Secret == "" {
		errs = append(errs, errors.New("missing secret"))
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("build.NewRequest: %w", errors.Join(ErrConfiguration, errors.Join(errs...)))
	}

	projectPath, err := filepath.Abs(params.ProjectPath)
	if err != nil {
		return nil, fmt.Errorf("build.NewRequest: %w", errors.Join(ErrConfiguration, err))
	}
	workspacePath := projectPath
	if params.WorkspacePath != "" {
		workspacePath, err = filepath.Abs(params.WorkspacePath)
		if err != nil {
			return nil, fmt.Errorf("build.NewRequest: %w", errors.Join(ErrConfiguration, err))
		}
	}

	return &Request{
		projectName:   params.ProjectName,
		projectPath:   projectPath,
		workspacePath: workspacePath,
		platform:      params.Platform,
		entry:         params.Entry,
		secret:        params.Secret,
	}, nil
}

func (r *Request) ProjectName() string   { return r.projectName }
func (r *Request) ProjectPath() string   { return r.projectPath }
func (r *Request) WorkspacePath() string { return r.workspacePath }
func (r *Request) Platform() Platform    { return r.platform }
func (r *Request) Entry() string         { return r.entry }
func (r *Request) Secret() string        { return r.secret }

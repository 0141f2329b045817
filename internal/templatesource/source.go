// Package templatesource loads pipeline templates from local files or from
// a path inside a git repository.
package templatesource

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/alexisbeaulieu97/detectflow/internal/config"
	"github.com/alexisbeaulieu97/detectflow/internal/logger"
	detecterrors "github.com/alexisbeaulieu97/detectflow/pkg/errors"
)

const gitPrefix = "git::"

// Ref locates a template inside a git repository:
//
//	git::<repository-url>//<path/in/repo>[@<branch>]
type Ref struct {
	Repository string
	Path       string
	Branch     string
}

func (r Ref) String() string {
	s := gitPrefix + r.Repository + "//" + r.Path
	if r.Branch != "" {
		s += "@" + r.Branch
	}
	return s
}

// IsGit reports whether location uses the git:: form.
func IsGit(location string) bool {
	return strings.HasPrefix(location, gitPrefix)
}

// ParseRef parses a git:: location.
func ParseRef(location string) (Ref, error) {
	if !IsGit(location) {
		return Ref{}, fmt.Errorf("template location %q is not a git reference", location)
	}
	rest := strings.TrimPrefix(location, gitPrefix)

	// The repository URL may itself contain "//" after the scheme.
	searchFrom := 0
	if i := strings.Index(rest, "://"); i >= 0 {
		searchFrom = i + len("://")
	}
	sep := strings.Index(rest[searchFrom:], "//")
	if sep < 0 {
		return Ref{}, detecterrors.NewValidationError("template", fmt.Sprintf("git reference %q has no //<path> part", location), nil)
	}
	sep += searchFrom

	ref := Ref{Repository: rest[:sep]}
	file := rest[sep+2:]
	if at := strings.LastIndex(file, "@"); at >= 0 {
		ref.Branch = file[at+1:]
		file = file[:at]
	}

	cleaned := path.Clean(file)
	if ref.Repository == "" || file == "" || cleaned == "." || strings.HasPrefix(cleaned, "../") || cleaned == ".." || path.IsAbs(cleaned) {
		return Ref{}, detecterrors.NewValidationError("template", fmt.Sprintf("git reference %q has an invalid path", location), nil)
	}
	ref.Path = cleaned
	return ref, nil
}

// Load parses the template at location. Git locations are cloned into a
// scratch directory that is removed before Load returns.
func Load(ctx context.Context, location string, log *logger.Logger) (*config.Template, error) {
	if !IsGit(location) {
		return config.ParseTemplate(location)
	}

	ref, err := ParseRef(location)
	if err != nil {
		return nil, err
	}
	data, err := fetch(ctx, ref, log)
	if err != nil {
		return nil, err
	}
	return config.ParseTemplateBytes(ref.String(), data)
}

func fetch(ctx context.Context, ref Ref, log *logger.Logger) ([]byte, error) {
	scratch, err := os.MkdirTemp("", "detectflow-template-")
	if err != nil {
		return nil, fmt.Errorf("create clone directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	opts := &git.CloneOptions{URL: ref.Repository}
	if ref.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(ref.Branch)
		opts.SingleBranch = true
	}

	log.WithFields(map[string]any{"repository": ref.Repository, "branch": ref.Branch}).Debug("cloning template repository")
	if _, err := git.PlainCloneContext(ctx, scratch, false, opts); err != nil {
		return nil, detecterrors.NewParseError(ref.String(), 0, fmt.Errorf("clone %s: %w", ref.Repository, err))
	}

	data, err := os.ReadFile(filepath.Join(scratch, filepath.FromSlash(ref.Path)))
	if err != nil {
		return nil, detecterrors.NewParseError(ref.String(), 0, err)
	}
	return data, nil
}

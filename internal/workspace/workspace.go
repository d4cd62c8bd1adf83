// Package workspace canonicalizes filesystem paths into the stable
// identifier the Persistent Store keys workspaces by.
package workspace

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// Info describes a canonicalized workspace location.
type Info struct {
	Path     string  // canonical absolute path, the Persistent Store's unique key
	Worktree string  // git worktree root, if any
	VCSDir   *string `json:"vcsDir,omitempty"`
}

var (
	cacheMu sync.RWMutex
	cache   = make(map[string]*Info)
)

// Canonicalize resolves directory to an absolute, symlink-free path and
// detects the enclosing git worktree, if any. Two different callers
// passing different relative paths to the same directory resolve to the
// same Info.Path, which is the invariant the Persistent Store's unique
// (workspaces.path) constraint depends on.
func Canonicalize(directory string) (*Info, error) {
	abs, err := filepath.Abs(directory)
	if err != nil {
		return nil, err
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// Directory may not exist yet (e.g. a session created before
		// its working directory is materialized); fall back to abs.
		real = abs
	}

	cacheMu.RLock()
	if info, ok := cache[real]; ok {
		cacheMu.RUnlock()
		return info, nil
	}
	cacheMu.RUnlock()

	info := &Info{Path: real}
	if gitDir := findGitDir(real); gitDir != "" {
		worktree := filepath.Dir(gitDir)
		if out, err := exec.Command("git", "-C", worktree, "rev-parse", "--show-toplevel").Output(); err == nil {
			worktree = strings.TrimSpace(string(out))
		}
		info.Worktree = worktree
		info.VCSDir = &gitDir
	}

	cacheMu.Lock()
	cache[real] = info
	cacheMu.Unlock()

	return info, nil
}

// ClearCache clears the canonicalization cache. Useful for testing.
func ClearCache() {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	cache = make(map[string]*Info)
}

// findGitDir walks up from start looking for a .git directory or worktree pointer file.
func findGitDir(start string) string {
	current := start
	for {
		gitPath := filepath.Join(current, ".git")
		if info, err := os.Stat(gitPath); err == nil {
			if info.IsDir() {
				return gitPath
			}
			// .git is a file for worktrees/submodules: "gitdir: <path>"
			if content, err := os.ReadFile(gitPath); err == nil {
				line := strings.TrimSpace(string(content))
				if rest, ok := strings.CutPrefix(line, "gitdir: "); ok {
					if !filepath.IsAbs(rest) {
						rest = filepath.Join(current, rest)
					}
					return rest
				}
			}
		}
		parent := filepath.Dir(current)
		if parent == current {
			return ""
		}
		current = parent
	}
}

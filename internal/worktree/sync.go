package worktree

import (
	"context"
	"errors"
	"strings"

	"github.com/ducks/arf/internal/arferr"
)

// SyncStep is the outcome of one pull or push.
type SyncStep struct {
	Op      string // "pull" or "push"
	OK      bool
	Message string
}

// Sync pulls and/or pushes the storage branch against origin. With neither
// flag set both run. Remote failures are reported per step, not returned.
func Sync(ctx context.Context, mountDir, branch string, pull, push bool) ([]SyncStep, error) {
	if !isMounted(mountDir) {
		return nil, arferr.Uninitialized(mountDir)
	}
	if !pull && !push {
		pull, push = true, true
	}

	var steps []SyncStep
	if pull {
		step := SyncStep{Op: "pull"}
		_, err := runGit(ctx, mountDir, "pull", "origin", branch)
		switch {
		case err == nil:
			step.OK = true
		case errors.Is(err, ErrGitNotFound):
			return nil, err
		case strings.Contains(err.Error(), "couldn't find remote ref"):
			step.Message = "No remote ARF branch yet"
		default:
			step.Message = gitMessage(err)
		}
		steps = append(steps, step)
	}

	if push {
		step := SyncStep{Op: "push"}
		_, err := runGit(ctx, mountDir, "push", "-u", "origin", branch)
		switch {
		case err == nil:
			step.OK = true
		case errors.Is(err, ErrGitNotFound):
			return nil, err
		default:
			step.Message = gitMessage(err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func gitMessage(err error) string {
	var ge *GitError
	if errors.As(err, &ge) {
		return ge.Stderr
	}
	return err.Error()
}

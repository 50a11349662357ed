package report

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"

	"github.com/G-Research/timingscan/internal/timingscan/domain"
)

// OutputLocation resolves the directory a run writes to. Resolution happens at most once; every
// later call returns the same result.
type OutputLocation struct {
	root  string
	runId string

	once sync.Once
	dir  string
	err  error
}

// NewOutputLocation creates a location under root for a new run. An empty runId generates one.
func NewOutputLocation(root string, runId string) *OutputLocation {
	if runId == "" {
		runId = uuid.New().String()
	}
	return &OutputLocation{root: root, runId: runId}
}

func (l *OutputLocation) RunId() string {
	return l.runId
}

// Root returns the expanded root directory, creating it if needed.
func (l *OutputLocation) Root() (string, error) {
	l.once.Do(func() {
		root, err := homedir.Expand(l.root)
		if err != nil {
			l.err = errors.WithStack(err)
			return
		}
		root, err = filepath.Abs(root)
		if err != nil {
			l.err = errors.WithStack(err)
			return
		}
		if err := os.MkdirAll(filepath.Join(root, l.runId), 0o755); err != nil {
			l.err = errors.WithStack(err)
			return
		}
		l.dir = root
	})
	return l.dir, l.err
}

// ComparisonDir returns the directory comparison files for one (target, subtask) pair are written to.
func (l *OutputLocation) ComparisonDir(target string, subtask string) (string, error) {
	root, err := l.Root()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, l.runId, "comparisons", domain.PathComponent(target), domain.PathComponent(subtask)), nil
}

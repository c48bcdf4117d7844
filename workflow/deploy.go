package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Deployer publishes a rendered webpage and returns its access URL.
type Deployer interface {
	Deploy(ctx context.Context, html string) (url string, err error)
}

// LocalDeployer writes pages to a directory on the local filesystem and
// returns file:// URLs. Suitable for development and single-machine use.
type LocalDeployer struct {
	// Dir is the deployment directory, created on first use.
	Dir string

	// now is swappable for tests.
	now func() time.Time
}

// NewLocalDeployer creates a deployer writing into dir.
func NewLocalDeployer(dir string) *LocalDeployer {
	return &LocalDeployer{Dir: dir, now: time.Now}
}

// Deploy writes the HTML to a timestamped file and returns its file:// URL.
func (d *LocalDeployer) Deploy(_ context.Context, html string) (string, error) {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create deploy dir: %w", err)
	}

	now := time.Now
	if d.now != nil {
		now = d.now
	}
	name := fmt.Sprintf("lesson_%s.html", now().Format("20060102_150405"))
	path := filepath.Join(d.Dir, name)

	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return "", fmt.Errorf("write page: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return "file://" + abs, nil
}

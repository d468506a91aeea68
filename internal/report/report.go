// Package report assembles the results page of a project: the interventions
// implemented so far with their scores, and the report artifacts the backend
// renders for it.
package report

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"greenpath/internal/api"
	"greenpath/internal/logging"
	"greenpath/internal/recommend"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Fetcher downloads one artifact of a project.
type Fetcher interface {
	DownloadArtifact(ctx context.Context, projectID string, artifact api.Artifact) ([]byte, error)
}

// File is the outcome of one artifact download. Err is set when the
// artifact could not be fetched; the other artifacts are unaffected.
type File struct {
	Artifact api.Artifact
	Path     string
	Size     int
	Body     []byte
	Err      error
}

// Download fetches artifacts concurrently into dir. An empty dir keeps the
// bodies in memory only. A failing artifact is reported in its File; only a
// local write failure aborts the batch.
func Download(ctx context.Context, f Fetcher, projectID, dir string, artifacts []api.Artifact) ([]File, error) {
	timer := logging.StartTimer(logging.CategoryReport, "Download")
	defer timer.Stop()

	log := logging.Get(logging.CategoryReport).With(zap.String("project_id", projectID))
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "failed to create output directory")
		}
	}

	files := make([]File, len(artifacts))
	g, gctx := errgroup.WithContext(ctx)
	for i, artifact := range artifacts {
		g.Go(func() error {
			body, err := f.DownloadArtifact(gctx, projectID, artifact)
			out := File{Artifact: artifact, Body: body, Size: len(body), Err: err}
			if err != nil {
				log.Warn("artifact unavailable", zap.String("artifact", string(artifact)), zap.Error(err))
			} else if dir != "" {
				out.Path = filepath.Join(dir, fileName(projectID, artifact))
				if werr := os.WriteFile(out.Path, body, 0o644); werr != nil {
					return errors.Wrapf(werr, "failed to write %s", artifact)
				}
			}
			files[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

// fileName is the local name of an artifact. The project id is escaped so
// it can never leave the output directory.
func fileName(projectID string, artifact api.Artifact) string {
	return url.PathEscape(projectID) + "-" + string(artifact)
}

// Find returns the file for artifact.
func Find(files []File, artifact api.Artifact) (File, bool) {
	for _, f := range files {
		if f.Artifact == artifact {
			return f, true
		}
	}
	return File{}, false
}

// Markdown renders the results page. reportText is the report body already
// converted to markdown; it may be empty.
func Markdown(projectID string, implemented []recommend.Implemented, reportText string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Results for project %s\n\n", projectID)

	sb.WriteString("## Implemented interventions\n\n")
	if len(implemented) == 0 {
		sb.WriteString("No interventions have been implemented yet.\n\n")
	} else {
		sb.WriteString("| # | Intervention | Score |\n|---|---|---|\n")
		for i, item := range implemented {
			fmt.Fprintf(&sb, "| %d | %s | %s |\n", i+1, escapeCell(item.Label()), recommend.FormatScore(item.Score))
		}
		sb.WriteString("\n")
	}

	if reportText != "" {
		sb.WriteString("## Report\n\n")
		sb.WriteString(reportText)
		sb.WriteString("\n")
	}
	return sb.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

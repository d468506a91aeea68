package report

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"greenpath/internal/api"
	"greenpath/internal/recommend"

	"github.com/cockroachdb/errors"
	"github.com/guregu/null/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeFetcher struct {
	bodies map[api.Artifact]string
	calls  atomic.Int32
}

func (f *fakeFetcher) DownloadArtifact(_ context.Context, _ string, artifact api.Artifact) ([]byte, error) {
	f.calls.Add(1)
	body, ok := f.bodies[artifact]
	if !ok {
		return nil, errors.Mark(errors.New("Not Found"), api.ErrTransport)
	}
	return []byte(body), nil
}

func TestDownload_WritesEveryAvailableArtifact(t *testing.T) {
	dir := t.TempDir()
	f := &fakeFetcher{bodies: map[api.Artifact]string{
		api.ArtifactGraph: "<svg/>",
		api.ArtifactHTML:  "<h1>Report</h1>",
	}}

	files, err := Download(context.Background(), f, "42", dir, api.Artifacts)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.EqualValues(t, 3, f.calls.Load())

	graph, ok := Find(files, api.ArtifactGraph)
	require.True(t, ok)
	require.NoError(t, graph.Err)
	assert.Equal(t, filepath.Join(dir, "42-graph.svg"), graph.Path)
	data, err := os.ReadFile(graph.Path)
	require.NoError(t, err)
	assert.Equal(t, "<svg/>", string(data))

	pdf, ok := Find(files, api.ArtifactPDF)
	require.True(t, ok)
	assert.True(t, errors.Is(pdf.Err, api.ErrTransport))
	assert.Empty(t, pdf.Path)
}

func TestDownload_ProjectIDStaysInsideDir(t *testing.T) {
	dir := t.TempDir()
	f := &fakeFetcher{bodies: map[api.Artifact]string{api.ArtifactGraph: "<svg/>"}}

	for _, id := range []string{"../../escape", "a/b", "..", `c\d`} {
		files, err := Download(context.Background(), f, id, dir, []api.Artifact{api.ArtifactGraph})
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, dir, filepath.Dir(files[0].Path), id)
		_, err = os.Stat(files[0].Path)
		assert.NoError(t, err, id)
	}
	assert.Equal(t, "..%2F..%2Fescape-graph.svg", fileName("../../escape", api.ArtifactGraph))
	assert.Equal(t, "42-report.pdf", fileName("42", api.ArtifactPDF))
}

func TestDownload_InMemory(t *testing.T) {
	f := &fakeFetcher{bodies: map[api.Artifact]string{api.ArtifactHTML: "<p>hi</p>"}}

	files, err := Download(context.Background(), f, "7", "", []api.Artifact{api.ArtifactHTML})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "<p>hi</p>", string(files[0].Body))
	assert.Empty(t, files[0].Path)
}

func TestHTMLToMarkdown(t *testing.T) {
	doc := `<html><head><title>ignored</title><style>p{}</style></head><body>
<h1>Sustainability report</h1>
<script>alert(1)</script>
<p>Project   <b>Tower</b> scored well.</p>
<ul><li>Solar panels</li><li>Rainwater tanks</li></ul>
<table><tr><th>Theme</th><th>Weight</th></tr><tr><td>Energy</td><td>80</td></tr></table>
</body></html>`

	md, err := HTMLToMarkdown(doc)
	require.NoError(t, err)

	assert.Contains(t, md, "# Sustainability report")
	assert.Contains(t, md, "Project **Tower")
	assert.Contains(t, md, "- Solar panels")
	assert.Contains(t, md, "- Rainwater tanks")
	assert.Contains(t, md, "| Theme | Weight |")
	assert.Contains(t, md, "| Energy | 80 |")
	assert.NotContains(t, md, "alert")
	assert.NotContains(t, md, "ignored")
	assert.NotContains(t, md, "\n\n\n")
}

func TestMarkdown(t *testing.T) {
	items := []recommend.Implemented{
		{InterventionID: "3", Name: "Green roof", Score: null.FloatFrom(9.5)},
		{InterventionID: "8", Score: null.Float{}},
	}

	md := Markdown("42", items, "Body text")
	assert.Contains(t, md, "# Results for project 42")
	assert.Contains(t, md, "| 1 | Green roof | 9.50 |")
	assert.Contains(t, md, "| 2 | Intervention #8 | - |")
	assert.Contains(t, md, "## Report\n\nBody text")

	empty := Markdown("42", nil, "")
	assert.Contains(t, empty, "No interventions have been implemented yet.")
	assert.NotContains(t, empty, "## Report")
}

package api

import (
	"context"
	"net/http"
)

var artifactAccept = map[Artifact]string{
	ArtifactGraph: "image/svg+xml",
	ArtifactHTML:  "text/html",
	ArtifactPDF:   "application/pdf",
}

// DownloadArtifact fetches one report file of a project.
func (c *Client) DownloadArtifact(ctx context.Context, projectID string, artifact Artifact) ([]byte, error) {
	return c.do(ctx, request{
		method: http.MethodGet,
		path:   projectPath(projectID, string(artifact)),
		accept: artifactAccept[artifact],
	})
}

// Package domain holds the request, result and failure types shared by the
// render pipeline and its transports. It has no HTTP or infrastructure imports.
package domain

// RenderRequest is the body of POST /render.
type RenderRequest struct {
	NotebookURL string `json:"notebook_url"`
}

// RenderResult is the success body of POST /render.
type RenderResult struct {
	HTML string `json:"html"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// Package api provides an HTTP API server for searching the image index.
package api

import (
	apisearch "github.com/papercomputeco/lookbook/api/search"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8090")
	ListenAddr string

	// Searcher serves /v1/search and /v1/keyword. Search endpoints answer
	// 503 when it is nil.
	Searcher *apisearch.Searcher

	// ImageRoot is the directory /v1/images serves from.
	ImageRoot string
}

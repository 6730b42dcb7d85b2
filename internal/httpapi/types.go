package httpapi

import (
	"dongpa/internal/domain"
	"dongpa/internal/store"
)

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status string `json:"status"`
	Symbol string `json:"symbol"`
}

// BarsResponse is returned by GET /api/bars.
type BarsResponse struct {
	Symbol string       `json:"symbol"`
	Bars   []domain.Bar `json:"bars"`
}

// RunsResponse is returned by GET /api/dongpa/runs.
type RunsResponse struct {
	Runs []store.Run `json:"runs"`
}

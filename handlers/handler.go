// Package handlers is the HTTP boundary over the ingestion orchestrator
// and the query engine.
package handlers

import (
	"github.com/codewidneha/kitchenhub/ingestion"
	"github.com/codewidneha/kitchenhub/query"
	"github.com/codewidneha/kitchenhub/utils"
)

type Handler struct {
	ingestor *ingestion.Orchestrator
	engine   *query.Engine
	clock    utils.Clock
}

func New(ingestor *ingestion.Orchestrator, engine *query.Engine, clock utils.Clock) *Handler {
	return &Handler{
		ingestor: ingestor,
		engine:   engine,
		clock:    clock,
	}
}

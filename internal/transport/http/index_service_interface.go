package http

import (
	"context"

	"github.com/LASER-IDEA/white-paper-sub000/internal/engine"
	"github.com/LASER-IDEA/white-paper-sub000/internal/schema"
	"github.com/LASER-IDEA/white-paper-sub000/internal/services"
)

// IndexService is the part of services.IndexService the handlers use
type IndexService interface {
	Compute(ctx context.Context, raw schema.RawTable, req services.ComputeRequest) (*engine.RunResult, error)
	Catalog() []services.CatalogEntry
	Lookup(id string) (services.CatalogEntry, error)
}

var _ IndexService = (*services.IndexService)(nil)

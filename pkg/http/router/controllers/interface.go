package controllers

import (
	"context"

	"github.com/lintang-b-s/courierx/pkg/http/usecases"
)

type PlannerService interface {
	Plan(ctx context.Context, in usecases.PlanInput, emit usecases.EmitRouteFunc) (*usecases.PlanResult, error)
	Matrix(ctx context.Context, in usecases.DemandInput) (*usecases.MatrixResult, error)
	Nearest(lat, lon float64) (*usecases.NearestResult, error)
}

package controllers

import (
	"context"

	"github.com/lintang-b-s/campusnav/pkg/geo"
	"github.com/lintang-b-s/campusnav/pkg/http/usecases"
	"github.com/lintang-b-s/campusnav/pkg/navigation"
)

type NavigationService interface {
	CreateSession(ctx context.Context, params navigation.Params) (*navigation.Session, error)
	GetSession(id string) (*navigation.Session, error)
	DeleteSession(ctx context.Context, id string) error
	DecodeGeometry(geometry string) ([]geo.Coordinate, error)
	EstimateRoutes(queries []usecases.RouteQuery) []usecases.RouteEstimate
}

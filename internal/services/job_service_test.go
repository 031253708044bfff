package services

import (
	"errors"
	"testing"

	types "github.com/classforge/classforge-backend/internal/domain"
	pkgerrors "github.com/classforge/classforge-backend/internal/pkg/errors"
)

func TestJobTypeForRoute(t *testing.T) {
	cases := map[string]string{
		types.RouteAHS:           JobTypeContentBuild,
		types.RouteRemedyContent: JobTypeContentBuild,
		types.RouteRemedy:        JobTypeRemedyBuild,
		types.RouteAssessment:    JobTypeAssessmentBuild,
	}
	for route, want := range cases {
		got, err := JobTypeForRoute(route)
		if err != nil || got != want {
			t.Fatalf("route %s: got (%q, %v), want %q", route, got, err, want)
		}
	}

	if _, err := JobTypeForRoute("DASHBOARD"); !errors.Is(err, pkgerrors.ErrInvalidArgument) {
		t.Fatalf("expected invalid-argument sentinel for unknown route, got %v", err)
	}
}

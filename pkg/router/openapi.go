package router

import (
	"os"
	"path/filepath"

	"radiance/backend/pkg/validator"
)

// AddOpenAPIValidation validates REST requests against the schema at
// schemaPath and serves the schema under /api/docs. Must run before
// SetupRoutes so the middleware applies to the API routes.
func (r *Router) AddOpenAPIValidation(schemaPath string) {
	if _, err := os.Stat(schemaPath); os.IsNotExist(err) {
		r.Logger.Warn("OpenAPI schema file not found, skipping validation", "path", schemaPath)
		return
	}

	v, err := validator.NewOpenAPIValidator(schemaPath)
	if err != nil {
		r.Logger.Error("Failed to initialize OpenAPI validator", "error", err)
		return
	}

	r.Engine.Use(v.Middleware())
	r.Logger.Info("OpenAPI validation enabled", "schema", schemaPath)

	r.Engine.StaticFile("/api/docs/"+filepath.Base(schemaPath), schemaPath)
}

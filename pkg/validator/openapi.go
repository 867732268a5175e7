package validator

import (
	"fmt"
	"sync"

	apperrors "radiance/backend/pkg/errors"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/gin-gonic/gin"
)

// OpenAPIValidator validates requests against an OpenAPI document
type OpenAPIValidator struct {
	swagger    *openapi3.T
	router     routers.Router
	schemaPath string
	mutex      sync.RWMutex
}

// NewOpenAPIValidator creates a new OpenAPI validator
func NewOpenAPIValidator(schemaPath string) (*OpenAPIValidator, error) {
	swagger, router, err := load(schemaPath)
	if err != nil {
		return nil, err
	}

	return &OpenAPIValidator{
		swagger:    swagger,
		router:     router,
		schemaPath: schemaPath,
	}, nil
}

func load(path string) (*openapi3.T, routers.Router, error) {
	loader := openapi3.NewLoader()
	swagger, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load OpenAPI schema from %s: %w", path, err)
	}

	if err := swagger.Validate(loader.Context); err != nil {
		return nil, nil, fmt.Errorf("invalid OpenAPI schema: %w", err)
	}

	router, err := gorillamux.NewRouter(swagger)
	if err != nil {
		return nil, nil, fmt.Errorf("error creating OpenAPI router: %w", err)
	}

	return swagger, router, nil
}

// ReloadSchema reloads the OpenAPI schema from disk
func (v *OpenAPIValidator) ReloadSchema() error {
	swagger, router, err := load(v.schemaPath)
	if err != nil {
		return err
	}

	v.mutex.Lock()
	defer v.mutex.Unlock()

	v.swagger = swagger
	v.router = router
	return nil
}

// Middleware rejects requests that do not match the schema. Routes the
// schema does not describe, such as the websocket endpoint, pass through.
// Authentication is left to the JWT middleware.
func (v *OpenAPIValidator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		v.mutex.RLock()
		router := v.router
		v.mutex.RUnlock()

		route, pathParams, err := router.FindRoute(c.Request)
		if err != nil {
			c.Next()
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    c.Request,
			PathParams: pathParams,
			Route:      route,
			Options: &openapi3filter.Options{
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
				MultiError:         false,
			},
		}

		if err := openapi3filter.ValidateRequest(c.Request.Context(), input); err != nil {
			c.Error(apperrors.NewBadRequestError(apperrors.CodeInvalidPayload, "Request does not match the API schema").
				WithDetails(err.Error()))
			c.Abort()
			return
		}

		c.Next()
	}
}

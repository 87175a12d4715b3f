package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"capworks/internal/domain"
	"capworks/internal/engine"
	"capworks/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"already_in_progress"`
	Message string         `json:"message" example:"automatic loading already in progress for program book pb-1"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the capworks API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors are 400 bad_request; 422 is
			// reserved for domain rejections.
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Capworks API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerAnnualPrograms(group, cfg.Engine)
	registerProgramBooks(group, cfg.Engine)
	registerProjects(group, cfg.Engine)
	registerInterventions(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var lip engine.LoadingInProgressError
	if errors.As(err, &lip) {
		return newAPIError(http.StatusUnprocessableEntity, "already_in_progress", err.Error(), map[string]any{"program_book_id": lip.ProgramBookID})
	}
	var ise engine.InvalidStatusError
	if errors.As(err, &ise) {
		return newAPIError(http.StatusUnprocessableEntity, "invalid_status", err.Error(), map[string]any{"status": ise.Status})
	}
	var ve engine.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "unprocessable"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerAnnualPrograms(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-annual-program",
		Method:        http.MethodPost,
		Path:          "/annual-programs",
		Summary:       "Create annual program",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CreateAnnualProgramRequest `json:"body"`
	}) (*struct {
		Body domain.AnnualProgram `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ap, err := e.CreateAnnualProgram(ctx, engine.AnnualProgramCreateOptions{
			ID:          stringOrEmpty(input.Body.ID),
			Year:        input.Body.Year,
			ExecutorID:  input.Body.ExecutorID,
			Status:      stringOrEmpty(input.Body.Status),
			Description: stringOrEmpty(input.Body.Description),
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.AnnualProgram `json:"body"`
		}{Body: ap}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-annual-programs",
		Method:      http.MethodGet,
		Path:        "/annual-programs",
		Summary:     "List annual programs",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.AnnualProgram `json:"body"`
	}, error) {
		programs, err := e.Repo.ListAnnualPrograms(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.AnnualProgram `json:"body"`
		}{Body: programs}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-annual-program",
		Method:      http.MethodGet,
		Path:        "/annual-programs/{annual_program_id}",
		Summary:     "Get annual program",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AnnualProgramID string `path:"annual_program_id"`
	}) (*struct {
		Body domain.AnnualProgram `json:"body"`
	}, error) {
		ap, err := e.Repo.GetAnnualProgram(ctx, input.AnnualProgramID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.AnnualProgram `json:"body"`
		}{Body: ap}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-annual-program-status",
		Method:      http.MethodPut,
		Path:        "/annual-programs/{annual_program_id}/status",
		Summary:     "Set annual program status",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AnnualProgramID string           `path:"annual_program_id"`
		Body            SetStatusRequest `json:"body"`
	}) (*struct {
		Body domain.AnnualProgram `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.SetAnnualProgramStatus(ctx, input.AnnualProgramID, input.Body.Status, actorID); err != nil {
			return nil, handleError(err)
		}
		ap, err := e.Repo.GetAnnualProgram(ctx, input.AnnualProgramID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.AnnualProgram `json:"body"`
		}{Body: ap}, nil
	})
}

func registerProgramBooks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-program-book",
		Method:        http.MethodPost,
		Path:          "/annual-programs/{annual_program_id}/program-books",
		Summary:       "Create program book",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AnnualProgramID string                   `path:"annual_program_id"`
		Body            CreateProgramBookRequest `json:"body"`
	}) (*struct {
		Body domain.ProgramBook `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		pb, err := e.CreateProgramBook(ctx, engine.ProgramBookCreateOptions{
			ID:              stringOrEmpty(input.Body.ID),
			AnnualProgramID: input.AnnualProgramID,
			Name:            input.Body.Name,
			Status:          stringOrEmpty(input.Body.Status),
			InCharge:        stringOrEmpty(input.Body.InCharge),
			ProjectTypes:    input.Body.ProjectTypes,
			ProgramTypes:    input.Body.ProgramTypes,
			BoroughIDs:      input.Body.BoroughIDs,
			ActorID:         actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ProgramBook `json:"body"`
		}{Body: pb}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-program-books",
		Method:      http.MethodGet,
		Path:        "/program-books",
		Summary:     "List program books",
	}, func(ctx context.Context, input *struct {
		AnnualProgramID string `query:"annual_program_id"`
	}) (*struct {
		Body []ProgramBookSummary `json:"body"`
	}, error) {
		books, err := e.Repo.ListProgramBooks(ctx, input.AnnualProgramID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ProgramBookSummary `json:"body"`
		}{Body: programBookSummaries(books)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-program-book",
		Method:      http.MethodGet,
		Path:        "/program-books/{program_book_id}",
		Summary:     "Get program book",
		Description: "Includes the persisted loading flag; poll it to detect completion of an automatic-loading run.",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProgramBookID string `path:"program_book_id"`
	}) (*struct {
		Body domain.ProgramBook `json:"body"`
	}, error) {
		pb, err := e.Repo.GetProgramBook(ctx, input.ProgramBookID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ProgramBook `json:"body"`
		}{Body: pb}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-program-book-status",
		Method:      http.MethodPut,
		Path:        "/program-books/{program_book_id}/status",
		Summary:     "Set program book status",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProgramBookID string           `path:"program_book_id"`
		Body          SetStatusRequest `json:"body"`
	}) (*struct {
		Body domain.ProgramBook `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.SetProgramBookStatus(ctx, input.ProgramBookID, input.Body.Status, actorID); err != nil {
			return nil, handleError(err)
		}
		pb, err := e.Repo.GetProgramBook(ctx, input.ProgramBookID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ProgramBook `json:"body"`
		}{Body: pb}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "load-program-book",
		Method:        http.MethodPost,
		Path:          "/program-books/{program_book_id}/load",
		Summary:       "Trigger automatic loading",
		Description:   "Scans the project universe and appends every eligible project to the book's active priority scenario. Returns as soon as the loading lock is acquired; the run continues in the background.",
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ProgramBookID string `path:"program_book_id"`
	}) (*struct {
		Body LoadAckResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.TriggerAutomaticLoading(ctx, input.ProgramBookID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LoadAckResponse `json:"body"`
		}{Body: LoadAckResponse{ProgramBookID: input.ProgramBookID, Status: "loading"}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reset-program-book-loading",
		Method:      http.MethodPost,
		Path:        "/program-books/{program_book_id}/load/reset",
		Summary:     "Reset a stuck loading lock",
		Description: "Administrative escape hatch for a book left locked by a crashed run.",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProgramBookID string `path:"program_book_id"`
	}) (*struct {
		Body ProgramBookSummary `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.ResetLoading(ctx, input.ProgramBookID, actorID); err != nil {
			return nil, handleError(err)
		}
		pb, err := e.Repo.GetProgramBook(ctx, input.ProgramBookID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProgramBookSummary `json:"body"`
		}{Body: programBookSummary(pb)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-program-book-scenario",
		Method:      http.MethodGet,
		Path:        "/program-books/{program_book_id}/scenario",
		Summary:     "Get active priority scenario",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProgramBookID string `path:"program_book_id"`
	}) (*struct {
		Body domain.PriorityScenario `json:"body"`
	}, error) {
		pb, err := e.Repo.GetProgramBook(ctx, input.ProgramBookID)
		if err != nil {
			return nil, handleError(err)
		}
		scenario := pb.ActiveScenario()
		if scenario == nil {
			return nil, newAPIError(http.StatusNotFound, "not_found", "program book has no priority scenario", nil)
		}
		return &struct {
			Body domain.PriorityScenario `json:"body"`
		}{Body: *scenario}, nil
	})
}

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.CreateProject(ctx, engine.ProjectCreateOptions{
			ID:            stringOrEmpty(input.Body.ID),
			Name:          input.Body.Name,
			Status:        stringOrEmpty(input.Body.Status),
			ExecutorID:    input.Body.ExecutorID,
			ProjectTypeID: input.Body.ProjectTypeID,
			BoroughID:     input.Body.BoroughID,
			StartYear:     input.Body.StartYear,
			EndYear:       input.Body.EndYear,
			ActorID:       actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
	}, func(ctx context.Context, input *struct {
		ExecutorID string `query:"executor_id"`
		Status     string `query:"status"`
		BoroughID  string `query:"borough_id"`
		Year       int    `query:"year"`
	}) (*struct {
		Body []domain.Project `json:"body"`
	}, error) {
		projects, err := e.Repo.ListProjects(ctx, repo.ProjectFilter{
			ExecutorID:  input.ExecutorID,
			Status:      input.Status,
			BoroughID:   input.BoroughID,
			YearOverlap: input.Year,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Project `json:"body"`
		}{Body: projects}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}",
		Summary:     "Get project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		p, err := e.Repo.GetProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-compatible-program-books",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/compatible-program-books",
		Summary:     "List program books compatible with a project",
		Description: "Applies the same eligibility predicate as automatic loading, one project against every candidate book.",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body []ProgramBookSummary `json:"body"`
	}, error) {
		books, err := e.CompatibleProgramBooks(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ProgramBookSummary `json:"body"`
		}{Body: programBookSummaries(books)}, nil
	})
}

func registerInterventions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-intervention",
		Method:        http.MethodPost,
		Path:          "/interventions",
		Summary:       "Create intervention",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CreateInterventionRequest `json:"body"`
	}) (*struct {
		Body domain.Intervention `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		iv, err := e.CreateIntervention(ctx, engine.InterventionCreateOptions{
			ID:        stringOrEmpty(input.Body.ID),
			Name:      stringOrEmpty(input.Body.Name),
			ProjectID: stringOrEmpty(input.Body.ProjectID),
			ProgramID: input.Body.ProgramID,
			BoroughID: stringOrEmpty(input.Body.BoroughID),
			ActorID:   actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Intervention `json:"body"`
		}{Body: iv}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-intervention",
		Method:      http.MethodPut,
		Path:        "/interventions/{intervention_id}/project",
		Summary:     "Assign intervention to a project",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		InterventionID string                    `path:"intervention_id"`
		Body           AssignInterventionRequest `json:"body"`
	}) (*struct {
		Body domain.Intervention `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.AssignIntervention(ctx, input.InterventionID, input.Body.ProjectID, actorID); err != nil {
			return nil, handleError(err)
		}
		iv, err := e.Repo.GetIntervention(ctx, input.InterventionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Intervention `json:"body"`
		}{Body: iv}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-project-interventions",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/interventions",
		Summary:     "List a project's interventions",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body []domain.Intervention `json:"body"`
	}, error) {
		if _, err := e.Repo.GetProject(ctx, input.ProjectID); err != nil {
			return nil, handleError(err)
		}
		interventions, err := e.Repo.ListInterventionsByProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Intervention `json:"body"`
		}{Body: interventions}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Tail the event log",
	}, func(ctx context.Context, input *struct {
		EntityID string `query:"entity_id"`
		Limit    int    `query:"limit" default:"50"`
	}) (*struct {
		Body []domain.Event `json:"body"`
	}, error) {
		evts, err := e.Repo.ListEvents(ctx, input.EntityID, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Event `json:"body"`
		}{Body: evts}, nil
	})
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	healthPath := path.Join(basePath, "health")
	if !strings.HasPrefix(healthPath, "/") {
		healthPath = "/" + healthPath
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Capworks API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

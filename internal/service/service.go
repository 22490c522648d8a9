package service

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"gitlab.com/dirk.krummacker/personas-service/internal/config"
	"gitlab.com/dirk.krummacker/personas-service/internal/database"
	"gitlab.com/dirk.krummacker/personas-service/internal/persona"
	"gitlab.com/dirk.krummacker/personas-service/pkg/model"
)

// Messages of the error responses.
const (
	msgCredentials = "database connection error (invalid credentials)"
	msgConnect     = "cannot connect to the database server"
	msgNotFound    = "no records found"
	msgInternal    = "internal server error"
	msgInvalidJSON = "invalid JSON"
	msgUnderage    = "unauthorized: underage"
	msgGroupDenied = "unauthorized: group access denied"
)

const (
	adminGroupPath  = "/admin"
	personasPath    = "/personas"
	personaByIDPath = "/personas/:id"
)

// Handler translates HTTP requests into store operations and store results into responses.
type Handler struct {
	store               *persona.Store
	log                 zerolog.Logger
	writeFailureStatus  int
	sanitizeWriteErrors bool
}

// NewHandler returns a handler serving the personas of store. Failed writes are answered with
// the status and error body policy of cfg.
func NewHandler(store *persona.Store, cfg *config.Config, logger zerolog.Logger) *Handler {
	return &Handler{
		store:               store,
		log:                 logger,
		writeFailureStatus:  cfg.WriteFailureStatus,
		sanitizeWriteErrors: cfg.SanitizeWriteErrors,
	}
}

// SetupHttpRouter initializes the REST API router and registers all endpoints below the
// configured prefix. The registry is exposed on /metrics when it is not nil.
func SetupHttpRouter(h *Handler, cfg *config.Config, registry *prometheus.Registry) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if strings.EqualFold(cfg.GinLogging, "off") {
		h.log.Info().Msg("turning off HTTP request logging")
	} else {
		router.Use(RequestLogger(h.log))
	}
	router.Use(cors.New(corsConfig(cfg.CORSAllowedOrigins)))

	api := router.Group(cfg.APIPrefix)
	h.registerPersonas(api)

	// Everything below the admin group is rejected before it reaches a handler.
	admin := api.Group(adminGroupPath, RejectGroup())
	h.registerPersonas(admin)

	if registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}
	return router
}

func (h *Handler) registerPersonas(group *gin.RouterGroup) {
	group.GET(personasPath, h.findPersonas)
	group.GET(personaByIDPath, h.findPersonaByID)
	group.POST(personasPath, AgeGate(), h.createPersona)
	group.PUT(personaByIDPath, AgeGate(), h.updatePersonaByID)
	group.DELETE(personaByIDPath, h.deletePersonaByID)
}

func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}

// findPersonas responds with the list of all personas as JSON. An empty table is answered with
// NOT FOUND rather than an empty list.
//
// Example REST API call:
//
//	> curl http://localhost:8080/api/personas
func (h *Handler) findPersonas(c *gin.Context) {
	res := h.store.List(c.Request.Context())
	switch res.Kind {
	case database.KindRows:
		h.log.Info().Str("outcome", "success").Int("count", len(res.Value)).Msg("personas listed")
		c.IndentedJSON(http.StatusOK, res.Value)
	case database.KindEmpty:
		h.log.Info().Str("outcome", "empty").Msg("no personas to list")
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": msgNotFound})
	default:
		h.logDriverError(res.Err, "listing personas failed")
		switch res.Err.Code {
		case database.CodeAccessDenied:
			c.IndentedJSON(http.StatusInternalServerError, gin.H{"error": msgCredentials})
		case database.CodeConnectionRefused:
			c.IndentedJSON(http.StatusInternalServerError, gin.H{"error": msgConnect})
		default:
			c.IndentedJSON(http.StatusInternalServerError, gin.H{"error": msgInternal})
		}
	}
}

// findPersonaByID responds with a list holding the persona whose id matches the id parameter
// of the request URL.
//
// Example REST API call:
//
//	> curl http://localhost:8080/api/personas/12345678Z
func (h *Handler) findPersonaByID(c *gin.Context) {
	id := c.Param("id")
	res := h.store.Get(c.Request.Context(), id)
	switch res.Kind {
	case database.KindRows:
		h.log.Info().Str("outcome", "success").Str("id", id).Msg("persona found")
		c.IndentedJSON(http.StatusOK, res.Value)
	case database.KindEmpty:
		h.log.Warn().Str("outcome", "empty").Str("id", id).Msg("persona not found")
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": msgNotFound})
	default:
		h.logDriverError(res.Err, "finding persona failed")
		if res.Err.Code == database.CodeAccessDenied {
			c.IndentedJSON(http.StatusInternalServerError, gin.H{"error": msgCredentials})
			return
		}
		c.IndentedJSON(http.StatusInternalServerError, gin.H{"error": msgInternal + ": " + res.Err.Error()})
	}
}

// createPersona inserts the persona specified in the request's JSON and responds with the
// driver's acknowledgment. Fields missing from the JSON are stored as NULL, which the database
// may reject.
//
// Example REST API call:
//
//	> curl http://localhost:8080/api/personas --request "POST" --include --header "Content-Type: application/json" --data '{"id": "123", "name": "Ana", "secret": "x", "phone": "555"}'
func (h *Handler) createPersona(c *gin.Context) {
	var submitted model.Persona
	if !bindPersona(c, &submitted) {
		return
	}
	res := h.store.Insert(c.Request.Context(), submitted)
	h.respondWrite(c, res, http.StatusCreated, "persona inserted", "inserting persona failed")
}

// updatePersonaByID rewrites name, secret and phone of the persona whose id matches the id
// parameter of the request URL. An id in the JSON is ignored.
//
// Example REST API call:
//
//	> curl http://localhost:8080/api/personas/123 --request "PUT" --include --header "Content-Type: application/json" --data '{"name": "Ana", "secret": "y", "phone": "556"}'
func (h *Handler) updatePersonaByID(c *gin.Context) {
	var submitted model.Persona
	if !bindPersona(c, &submitted) {
		return
	}
	res := h.store.Update(c.Request.Context(), c.Param("id"), submitted)
	h.respondWrite(c, res, http.StatusAccepted, "persona updated", "updating persona failed")
}

// deletePersonaByID deletes the persona whose id matches the id parameter of the request URL.
// Deleting an unknown id is acknowledged with zero affected rows.
//
// Example REST API call:
//
//	> curl http://localhost:8080/api/personas/123 --request "DELETE"
func (h *Handler) deletePersonaByID(c *gin.Context) {
	res := h.store.Delete(c.Request.Context(), c.Param("id"))
	h.respondWrite(c, res, http.StatusAccepted, "persona deleted", "deleting persona failed")
}

// respondWrite answers a write with the acknowledgment, or with the configured failure status
// and the driver error.
func (h *Handler) respondWrite(c *gin.Context, res database.Result[database.Acknowledgment], status int, success string, failure string) {
	if res.Kind == database.KindAck {
		h.log.Info().
			Str("outcome", "success").
			Int64("affected_rows", res.Value.AffectedRows).
			Msg(success)
		c.IndentedJSON(status, res.Value)
		return
	}
	h.logDriverError(res.Err, failure)
	if h.sanitizeWriteErrors {
		c.IndentedJSON(h.writeFailureStatus, gin.H{"code": res.Err.Code})
		return
	}
	c.IndentedJSON(h.writeFailureStatus, res.Err)
}

func (h *Handler) logDriverError(err *database.DriverError, msg string) {
	h.log.Error().
		Str("outcome", "error").
		Str("code", string(err.Code)).
		Str("error", err.Message).
		Msg(msg)
}

// bindPersona decodes the request body into p. An empty body counts as an empty object. It
// responds with BAD REQUEST and returns false if the body is not valid JSON.
func bindPersona(c *gin.Context, p *model.Persona) bool {
	body, err := readBody(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": msgInvalidJSON})
		return false
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return true
	}
	if err := binding.JSON.BindBody(body, p); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": msgInvalidJSON})
		return false
	}
	return true
}

// readBody returns the request body. The body is cached in the context so that middleware and
// handler can both read it.
func readBody(c *gin.Context) ([]byte, error) {
	if cached, ok := c.Get(gin.BodyBytesKey); ok {
		if body, ok := cached.([]byte); ok {
			return body, nil
		}
	}
	body, err := c.GetRawData()
	if err != nil {
		return nil, err
	}
	c.Set(gin.BodyBytesKey, body)
	return body, nil
}

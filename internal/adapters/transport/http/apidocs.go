package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"
)

const (
	SwaggerPath         = "/swagger.json"
	SchemaDiscoveryPath = "/.well-known/schema-discovery"
)

type schemaDiscovery struct {
	SchemaURL  string `json:"schema_url"`
	SchemaType string `json:"schema_type"`
}

// APIDocs serves the API definition as JSON and points schema discovery at it.
type APIDocs struct {
	swagger   []byte
	discovery schemaDiscovery
}

// NewAPIDocs converts a YAML swagger definition once at startup.
func NewAPIDocs(definition []byte) (*APIDocs, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(definition, &doc); err != nil {
		return nil, fmt.Errorf("parse api definition: %w", err)
	}
	version, ok := doc["swagger"].(string)
	if !ok || version == "" {
		return nil, fmt.Errorf("api definition has no swagger version")
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode api definition: %w", err)
	}
	return &APIDocs{
		swagger: body,
		discovery: schemaDiscovery{
			SchemaURL:  SwaggerPath,
			SchemaType: "swagger-" + version,
		},
	}, nil
}

func (d *APIDocs) Swagger(c *gin.Context) {
	c.Data(http.StatusOK, "application/json; charset=utf-8", d.swagger)
}

func (d *APIDocs) SchemaDiscovery(c *gin.Context) {
	c.JSON(http.StatusOK, d.discovery)
}

func RegisterAPIDocs(r gin.IRouter, d *APIDocs) {
	r.GET(SwaggerPath, d.Swagger)
	r.GET(SchemaDiscoveryPath, d.SchemaDiscovery)
}

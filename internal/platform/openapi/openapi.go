// Package openapi describes the registered HTTP routes as an OpenAPI 3.0
// document. Paths, methods, path parameters, tags and security come from
// the router; bodies are not described.
package openapi

import (
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"
)

const apiPrefix = "/api/v1"

// Generator renders the document for the routes of one echo instance. The
// document is built on first request, after all routes are registered.
type Generator struct {
	e       *echo.Echo
	title   string
	version string
	public  func(path string) bool

	once sync.Once
	doc  map[string]interface{}
}

// NewGenerator documents e. public reports routes that need no bearer token.
func NewGenerator(e *echo.Echo, title, version string, public func(path string) bool) *Generator {
	if public == nil {
		public = func(string) bool { return false }
	}
	return &Generator{e: e, title: title, version: version, public: public}
}

func (g *Generator) Spec() map[string]interface{} {
	g.once.Do(func() { g.doc = g.build(g.e.Routes()) })
	return g.doc
}

var documented = map[string]bool{
	http.MethodGet: true, http.MethodPost: true, http.MethodPut: true,
	http.MethodPatch: true, http.MethodDelete: true,
}

func (g *Generator) build(routes []*echo.Route) map[string]interface{} {
	paths := map[string]map[string]interface{}{}
	tagSet := map[string]bool{}

	for _, r := range routes {
		if !documented[r.Method] {
			continue
		}
		path, params := convertPath(r.Path)
		tag := tagFor(r.Path)
		tagSet[tag] = true

		op := map[string]interface{}{
			"operationId": operationID(r.Method, r.Path),
			"tags":        []string{tag},
			"responses":   responses(r.Method),
		}
		if len(params) > 0 {
			op["parameters"] = params
		}
		if g.public(r.Path) {
			op["security"] = []interface{}{}
		}
		if paths[path] == nil {
			paths[path] = map[string]interface{}{}
		}
		paths[path][strings.ToLower(r.Method)] = op
	}

	tags := make([]string, 0, len(tagSet))
	for t := range tagSet {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	tagList := make([]map[string]string, 0, len(tags))
	for _, t := range tags {
		tagList = append(tagList, map[string]string{"name": t})
	}

	return map[string]interface{}{
		"openapi": "3.0.3",
		"info": map[string]interface{}{
			"title":   g.title,
			"version": g.version,
		},
		"tags":  tagList,
		"paths": paths,
		"components": map[string]interface{}{
			"securitySchemes": map[string]interface{}{
				"bearerAuth": map[string]interface{}{
					"type":         "http",
					"scheme":       "bearer",
					"bearerFormat": "JWT",
				},
			},
			"schemas": map[string]interface{}{
				"Error": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"message": map[string]string{"type": "string"},
						"field":   map[string]string{"type": "string"},
					},
				},
			},
		},
		"security": []map[string][]string{{"bearerAuth": {}}},
	}
}

// convertPath turns /patients/:id into /patients/{id} and lists the
// parameters. A trailing * becomes {path}.
func convertPath(path string) (string, []map[string]interface{}) {
	segs := strings.Split(path, "/")
	var params []map[string]interface{}
	for i, s := range segs {
		name := ""
		switch {
		case strings.HasPrefix(s, ":"):
			name = s[1:]
		case s == "*":
			name = "path"
		default:
			continue
		}
		segs[i] = "{" + name + "}"
		params = append(params, map[string]interface{}{
			"name":     name,
			"in":       "path",
			"required": true,
			"schema":   map[string]string{"type": "string"},
		})
	}
	return strings.Join(segs, "/"), params
}

// tagFor groups routes by their first segment after the API prefix.
func tagFor(path string) string {
	rest := strings.TrimPrefix(path, apiPrefix)
	rest = strings.TrimPrefix(rest, "/")
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" {
		return "root"
	}
	return rest
}

func operationID(method, path string) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(method))
	for _, s := range strings.Split(strings.TrimPrefix(path, apiPrefix), "/") {
		s = strings.Trim(s, ":*")
		for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '-' || r == '.' || r == '_' }) {
			b.WriteString(strings.ToUpper(part[:1]) + part[1:])
		}
	}
	return b.String()
}

func responses(method string) map[string]interface{} {
	errRef := map[string]interface{}{
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{
				"schema": map[string]string{"$ref": "#/components/schemas/Error"},
			},
		},
	}
	withDesc := func(desc string) map[string]interface{} {
		out := map[string]interface{}{"description": desc}
		for k, v := range errRef {
			out[k] = v
		}
		return out
	}

	ok := map[string]interface{}{"200": map[string]string{"description": "OK"}}
	switch method {
	case http.MethodPost:
		ok = map[string]interface{}{
			"200": map[string]string{"description": "OK"},
			"201": map[string]string{"description": "Created"},
		}
	case http.MethodDelete:
		ok = map[string]interface{}{"204": map[string]string{"description": "Deleted"}}
	}
	ok["400"] = withDesc("Validation error")
	ok["401"] = withDesc("Missing or invalid token")
	ok["403"] = withDesc("Role not allowed")
	ok["404"] = withDesc("Not found")
	return ok
}

// RegisterRoutes serves the document at /openapi.json on g.
func (g *Generator) RegisterRoutes(api *echo.Group) {
	api.GET("/openapi.json", func(c echo.Context) error {
		return c.JSON(http.StatusOK, g.Spec())
	})
}

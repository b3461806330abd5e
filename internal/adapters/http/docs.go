package http

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gofiber/fiber/v2"
)

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Travel Time API - Swagger UI</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
  <style>body{margin:0;background:#fafafa}</style>
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: '/docs/openapi.json',
      dom_id: '#swagger-ui',
      deepLinking: true,
      presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
      layout: 'BaseLayout',
    });
  </script>
</body>
</html>`

// apiDoc is the OpenAPI document, loaded and validated on first request.
type apiDoc struct {
	path string

	once sync.Once
	raw  []byte
	js   []byte
	err  error
}

func (d *apiDoc) load() ([]byte, []byte, error) {
	d.once.Do(func() {
		raw, err := os.ReadFile(d.path)
		if err != nil {
			d.err = err
			return
		}
		doc, err := openapi3.NewLoader().LoadFromData(raw)
		if err != nil {
			d.err = fmt.Errorf("parse %s: %w", d.path, err)
			return
		}
		if err := doc.Validate(context.Background()); err != nil {
			d.err = fmt.Errorf("validate %s: %w", d.path, err)
			return
		}
		d.js, d.err = json.Marshal(doc)
		d.raw = raw
	})
	return d.raw, d.js, d.err
}

// SetupDocs registers Swagger UI at /docs and the OpenAPI document at
// /docs/openapi.yaml and /docs/openapi.json. An unreadable or invalid
// document is answered with 404.
func SetupDocs(app *fiber.App, deps *Dependencies) {
	doc := &apiDoc{path: deps.openAPIPath()}

	app.Get("/docs", func(c *fiber.Ctx) error {
		c.Set("Content-Type", "text/html; charset=utf-8")
		return c.SendString(swaggerUIHTML)
	})

	serve := func(contentType string, pick func(raw, js []byte) []byte) fiber.Handler {
		return func(c *fiber.Ctx) error {
			raw, js, err := doc.load()
			if err != nil {
				LoggerFromCtx(c.UserContext()).Warn("openapi document unavailable", "error", err)
				return newError(c, 404, "not_found", "openapi document not available")
			}
			c.Set("Content-Type", contentType)
			return c.Send(pick(raw, js))
		}
	}
	app.Get("/docs/openapi.yaml", serve("application/yaml", func(raw, _ []byte) []byte { return raw }))
	app.Get("/docs/openapi.json", serve("application/json", func(_, js []byte) []byte { return js }))
}

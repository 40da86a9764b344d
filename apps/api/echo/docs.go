package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	appfs "github.com/trezcool/ratiba/fs"
)

var openAPIPath = "assets/openapi.yaml"

const docsPage = `<!DOCTYPE html>
<html>
<head>
  <title>API docs</title>
  <meta charset="utf-8">
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>SwaggerUIBundle({url: "/api/docs/openapi.yaml", dom_id: "#swagger-ui"});</script>
</body>
</html>`

func registerDocsAPI(g *echo.Group, authed echo.MiddlewareFunc) {
	dg := g.Group("/docs", authed, adminMiddleware())
	dg.GET("", docsUI)
	dg.GET("/openapi.yaml", openAPIDocument)
}

func docsUI(ctx echo.Context) error {
	return ctx.HTML(http.StatusOK, docsPage)
}

func openAPIDocument(ctx echo.Context) error {
	doc, err := appfs.FS.ReadFile(openAPIPath)
	if err != nil {
		return errors.Wrap(err, "reading openapi document")
	}
	return ctx.Blob(http.StatusOK, "application/yaml", doc)
}

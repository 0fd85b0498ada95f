package docs

import "github.com/swaggo/swag"

const docTemplate = `{
  "swagger": "2.0",
  "info": {
    "title": "GlassWallet Lead Router",
    "description": "Scores available agents against a lead and returns a routing decision",
    "version": "1.0"
  },
  "basePath": "/",
  "tags": [
    {"name": "agents"},
    {"name": "routing"},
    {"name": "leads"},
    {"name": "import"},
    {"name": "debug"}
  ],
  "paths": {}
}`

func init() {
	swag.Register(swag.Name, &spec{})
}

type spec struct{}

func (s *spec) ReadDoc() string {
	return docTemplate
}

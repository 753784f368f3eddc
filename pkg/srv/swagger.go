/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package srv

import (
	"encoding/json"

	"github.com/go-openapi/loads"
)

const swaggerJSON = `{
  "swagger": "2.0",
  "info": {
    "title": "go-xrit status API",
    "description": "Reception state and products of an LRIT/HRIT receiver",
    "version": "2.1.0"
  },
  "basePath": "/api",
  "produces": ["application/json"],
  "paths": {
    "/": {
      "get": {
        "summary": "Receiver configuration",
        "responses": {"200": {"description": "Configuration summary", "schema": {"$ref": "#/definitions/Info"}}}
      }
    },
    "/current/vcid": {
      "get": {
        "summary": "Virtual channel of the last frame",
        "responses": {"200": {"description": "VCID, -1 before the first frame"}}
      }
    },
    "/current/progress": {
      "get": {
        "summary": "Products under reassembly",
        "responses": {"200": {"description": "One entry per virtual channel", "schema": {"type": "array", "items": {"$ref": "#/definitions/Progress"}}}}
      }
    },
    "/current/partial": {
      "get": {
        "summary": "Previews of incomplete images",
        "responses": {"200": {"description": "Previews by category"}}
      }
    },
    "/latest": {
      "get": {
        "summary": "Most recent image of any category",
        "responses": {
          "200": {"description": "Image", "schema": {"$ref": "#/definitions/Image"}},
          "404": {"description": "No image received yet"}
        }
      }
    },
    "/latest/xrit": {
      "get": {
        "summary": "Most recent xRIT file",
        "responses": {
          "200": {"description": "File", "schema": {"$ref": "#/definitions/File"}},
          "404": {"description": "No file received yet"}
        }
      }
    },
    "/latest/{type}": {
      "get": {
        "summary": "Most recent image of a category",
        "parameters": [{"$ref": "#/parameters/type"}],
        "responses": {
          "200": {"description": "Image", "schema": {"$ref": "#/definitions/Image"}},
          "404": {"description": "Unknown category or no image yet"}
        }
      }
    },
    "/latest/{type}/image": {
      "get": {
        "summary": "Most recent image file of a category",
        "produces": ["image/jpeg"],
        "parameters": [{"$ref": "#/parameters/type"}],
        "responses": {"200": {"description": "JPEG image"}, "404": {"description": "No image yet"}}
      }
    },
    "/latest/{type}/partial": {
      "get": {
        "summary": "Preview of the image of a category being received",
        "produces": ["image/jpeg"],
        "parameters": [{"$ref": "#/parameters/type"}],
        "responses": {"200": {"description": "JPEG image"}, "404": {"description": "No preview"}}
      }
    },
    "/stats": {
      "get": {
        "summary": "Reception counters",
        "responses": {"200": {"description": "Counters since start"}}
      }
    },
    "/products/{type}": {
      "get": {
        "summary": "Catalog of saved products, newest first",
        "parameters": [
          {"$ref": "#/parameters/type"},
          {"name": "limit", "in": "query", "type": "integer", "default": 50}
        ],
        "responses": {"200": {"description": "Records"}, "404": {"description": "Unknown category"}}
      }
    },
    "/received/{path}": {
      "get": {
        "summary": "File below the output directory",
        "produces": ["application/octet-stream"],
        "parameters": [{"name": "path", "in": "path", "required": true, "type": "string"}],
        "responses": {"200": {"description": "File content"}, "404": {"description": "Not found"}}
      }
    },
    "/ws": {
      "get": {
        "summary": "Websocket streaming a status snapshot every dashboard interval",
        "responses": {"101": {"description": "Switching protocols"}}
      }
    }
  },
  "parameters": {
    "type": {
      "name": "type",
      "in": "path",
      "required": true,
      "type": "string",
      "enum": ["FD", "ENH", "LSH", "LA", "ELA", "ADD", "ANT", "XRIT"]
    }
  },
  "definitions": {
    "Info": {
      "type": "object",
      "properties": {
        "version": {"type": "string"},
        "spacecraft": {"type": "string"},
        "downlink": {"type": "string"},
        "input": {"type": "string"},
        "output": {"type": "string"},
        "images": {"type": "boolean"},
        "xrit": {"type": "boolean"},
        "ignore_vcids": {"type": "array", "items": {"type": "integer"}},
        "interval": {"type": "number"}
      }
    },
    "Progress": {
      "type": "object",
      "properties": {
        "vcid": {"type": "integer"},
        "name": {"type": "string"},
        "received": {"type": "integer"},
        "length": {"type": "integer"},
        "percent": {"type": "number"}
      }
    },
    "Image": {
      "type": "object",
      "properties": {
        "name": {"type": "string"},
        "category": {"type": "string"},
        "image": {"type": "string"},
        "xrit": {"type": "string"},
        "hash": {"type": "string"},
        "composite": {"type": "boolean"},
        "time": {"type": "string", "format": "date-time"}
      }
    },
    "File": {
      "type": "object",
      "properties": {
        "name": {"type": "string"},
        "category": {"type": "string"},
        "path": {"type": "string"},
        "hash": {"type": "string"},
        "size": {"type": "integer"},
        "encrypted": {"type": "boolean"},
        "time": {"type": "string", "format": "date-time"}
      }
    }
  }
}`

// loadSwagger parses the API description served at /api/swagger.json
func loadSwagger() (*loads.Document, error) {
	return loads.Analyzed(json.RawMessage(swaggerJSON), "")
}

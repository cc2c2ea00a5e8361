//go:build swagger

package httpapi

import "github.com/swaggo/swag"

// SwaggerInfo is the document served at /swagger/doc.json. Regenerate the
// template with `swag init -g cmd/voxd/docs.go` when handlers change.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "voxd API",
	Description:      "OpenAI-compatible speech synthesis with on-demand model residency, custom voices and PCM streaming.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "license": {"name": "MIT", "url": "https://opensource.org/licenses/MIT"},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/v1/audio/speech": {
            "post": {
                "summary": "Synthesize speech",
                "consumes": ["application/json"],
                "produces": ["audio/wav", "audio/mpeg", "audio/opus", "audio/aac", "audio/flac", "audio/pcm"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/types.SpeechRequest"}}],
                "responses": {
                    "200": {"description": "audio bytes"},
                    "400": {"description": "invalid request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "415": {"description": "unsupported media type", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "500": {"description": "generation failure", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "503": {"description": "model unavailable", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/v1/models": {"get": {"summary": "List quality profiles", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}},
        "/v1/voices": {"get": {"summary": "List voices", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}},
        "/v1/voices/custom": {"get": {"summary": "List custom voices", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}},
        "/v1/voices/create": {
            "post": {
                "summary": "Create a custom voice",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"in": "formData", "name": "audio", "type": "file", "required": true},
                    {"in": "formData", "name": "name", "type": "string"},
                    {"in": "formData", "name": "text", "type": "string"}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "invalid upload"}}
            }
        },
        "/v1/voices/{id}": {
            "get": {"summary": "Get a voice", "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "not found"}}},
            "delete": {"summary": "Delete a custom voice", "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}], "responses": {"200": {"description": "OK"}, "403": {"description": "preset"}, "404": {"description": "not found"}}}
        },
        "/api/tts": {"post": {"summary": "Form synthesis with optional reference upload", "consumes": ["multipart/form-data"], "produces": ["audio/wav"], "responses": {"200": {"description": "WAV"}}}},
        "/api/gpu/offload": {"post": {"summary": "Evict the model", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}},
        "/api/gpu/status": {"get": {"summary": "Model residency and accelerator memory", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}},
        "/health": {"get": {"summary": "Health", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}}
    },
    "definitions": {
        "types.SpeechRequest": {
            "type": "object",
            "required": ["input"],
            "properties": {
                "model": {"type": "string", "example": "tts-1"},
                "input": {"type": "string"},
                "voice": {"type": "string", "example": "alloy"},
                "response_format": {"type": "string", "example": "mp3"},
                "speed": {"type": "number"},
                "cfg_value": {"type": "number"},
                "inference_timesteps": {"type": "integer"},
                "normalize": {"type": "boolean"},
                "denoise": {"type": "boolean"}
            }
        },
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "code": {"type": "integer"},
                "kind": {"type": "string"}
            }
        }
    }
}`

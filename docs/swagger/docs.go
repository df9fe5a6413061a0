// Package swagger registers the OpenAPI document served at /swagger/.
package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/chat": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Authenticates, rate limits, validates and moderates the conversation, then returns the model answer with a legal disclaimer",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Chat"],
                "summary": "Chat completion",
                "parameters": [
                    {"type": "string", "description": "Bearer token", "name": "Authorization", "in": "header", "required": true},
                    {"description": "Conversation", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.ChatRequestBody"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/chat.Response"}},
                    "400": {"description": "Invalid input or blocked content", "schema": {"$ref": "#/definitions/http.ErrorResponseBody"}},
                    "401": {"description": "Missing or invalid token", "schema": {"$ref": "#/definitions/http.ErrorResponseBody"}},
                    "429": {"description": "Rate limit exceeded", "schema": {"$ref": "#/definitions/http.ErrorResponseBody"}},
                    "500": {"description": "Service misconfigured", "schema": {"$ref": "#/definitions/http.ErrorResponseBody"}},
                    "502": {"description": "Upstream error", "schema": {"$ref": "#/definitions/http.ErrorResponseBody"}}
                }
            }
        },
        "/stream": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Same pipeline as /chat. Emits data events {\"text\"}, then {\"done\":true,\"usage\",\"model\"}, or {\"error\"}. Pipeline failures before the stream starts are returned as JSON errors.",
                "consumes": ["application/json"],
                "produces": ["text/event-stream"],
                "tags": ["Chat"],
                "summary": "Streaming chat completion",
                "parameters": [
                    {"type": "string", "description": "Bearer token", "name": "Authorization", "in": "header", "required": true},
                    {"description": "Conversation", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.ChatRequestBody"}}
                ],
                "responses": {
                    "200": {"description": "Event stream"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/http.ErrorResponseBody"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/http.ErrorResponseBody"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/http.ErrorResponseBody"}}
                }
            }
        },
        "/ask": {
            "post": {
                "description": "Single-turn question without a token, limited per client IP and answered from the FAQ cache when possible",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Chat"],
                "summary": "Guest question",
                "parameters": [
                    {"description": "Single user message", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.ChatRequestBody"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/chat.Response"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/http.ErrorResponseBody"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/http.ErrorResponseBody"}}
                }
            }
        },
        "/usage": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Token, request and cost totals for the caller (default: trailing 30 days) plus today's quota status",
                "produces": ["application/json"],
                "tags": ["Usage"],
                "summary": "Usage summary",
                "parameters": [
                    {"type": "string", "description": "Bearer token", "name": "Authorization", "in": "header", "required": true},
                    {"type": "string", "description": "Period start (RFC3339)", "name": "start", "in": "query"},
                    {"type": "string", "description": "Period end (RFC3339)", "name": "end", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.UsageResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/http.ErrorResponseBody"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/http.ErrorResponseBody"}}
                }
            }
        },
        "/health": {
            "get": {
                "description": "Returns OK if the service is running",
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Liveness check",
                "responses": {"200": {"description": "status: ok", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}}
            }
        },
        "/health/live": {
            "get": {
                "description": "Returns OK if the service is running",
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Liveness check",
                "responses": {"200": {"description": "status: ok", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}}
            }
        },
        "/health/ready": {
            "get": {
                "description": "Checks that the rate limit store and upstream configuration are ready",
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "status: ok", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "503": {"description": "status: unhealthy, error: message", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/version": {
            "get": {
                "description": "Returns the version information for the lexgate service",
                "produces": ["application/json"],
                "tags": ["System"],
                "summary": "Get service version",
                "responses": {"200": {"description": "Version information", "schema": {"$ref": "#/definitions/http.VersionResponse"}}}
            }
        }
    },
    "definitions": {
        "chat.Response": {
            "type": "object",
            "properties": {
                "cached": {"type": "boolean"},
                "content": {"type": "string"},
                "filtered": {"type": "boolean"},
                "model": {"type": "string"},
                "usage": {"$ref": "#/definitions/chat.Usage"}
            }
        },
        "chat.Usage": {
            "type": "object",
            "properties": {
                "inputTokens": {"type": "integer"},
                "outputTokens": {"type": "integer"}
            }
        },
        "http.ChatRequestBody": {
            "type": "object",
            "properties": {
                "context": {"type": "string", "example": "employment"},
                "maxTokens": {"type": "integer", "example": 1024},
                "messages": {"type": "array", "items": {"type": "object"}},
                "temperature": {"type": "number", "example": 0.7}
            }
        },
        "http.ErrorResponseBody": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "RATE_LIMITED"},
                "error": {"type": "string", "example": "Too many requests. Please try again later."}
            }
        },
        "http.UsageResponse": {
            "type": "object",
            "properties": {
                "quota": {"$ref": "#/definitions/usage.QuotaStatus"},
                "usage": {"$ref": "#/definitions/usage.Summary"}
            }
        },
        "http.VersionResponse": {
            "type": "object",
            "properties": {
                "service": {"type": "string", "example": "lexgate"},
                "version": {"type": "string", "example": "1.0.0"}
            }
        },
        "usage.QuotaStatus": {
            "type": "object",
            "properties": {
                "currentUsage": {"type": "integer"},
                "limit": {"type": "integer"},
                "withinQuota": {"type": "boolean"}
            }
        },
        "usage.Summary": {
            "type": "object",
            "properties": {
                "avgLatencyMs": {"type": "integer"},
                "cachedRequests": {"type": "integer"},
                "estimatedCost": {"type": "number"},
                "failedRequests": {"type": "integer"},
                "inputTokens": {"type": "integer"},
                "outputTokens": {"type": "integer"},
                "periodEnd": {"type": "string"},
                "periodStart": {"type": "string"},
                "totalRequests": {"type": "integer"},
                "totalTokens": {"type": "integer"},
                "userId": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "JWT issued by the account service. Format: Bearer {token}",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "lexgate API",
	Description:      "AI request pipeline for legal guidance: auth, rate limiting, validation, moderation, caching, retries and usage accounting around an upstream model API.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

// Package docs registers the OpenAPI document served at /swagger/*any.
// Regenerate with: swag init -g cmd/server/main.go -o docs
package docs

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
        "/accounts": {
            "post": {
                "description": "Validates the payload and creates an account. A registered email yields EMAIL_TAKEN.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Accounts"],
                "summary": "Register an account",
                "operationId": "createAccount",
                "parameters": [
                    {
                        "description": "Account payload",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/handlers.CreateAccountRequest"}
                    }
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/domain.Account"}},
                    "400": {"description": "Validation error or email taken", "schema": {"$ref": "#/definitions/errorhandler.Envelope"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/errorhandler.Envelope"}}
                }
            }
        },
        "/accounts/{id}": {
            "get": {
                "description": "Returns the account when the caller owns it or is an admin.",
                "produces": ["application/json"],
                "tags": ["Accounts"],
                "summary": "Fetch an account",
                "operationId": "getAccount",
                "parameters": [
                    {"type": "string", "description": "Caller account id (demo header)", "name": "X-User-ID", "in": "header", "required": true},
                    {"type": "string", "description": "Account id (UUID)", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Account"}},
                    "400": {"description": "Malformed id", "schema": {"$ref": "#/definitions/errorhandler.Envelope"}},
                    "401": {"description": "Missing caller", "schema": {"$ref": "#/definitions/errorhandler.Envelope"}},
                    "403": {"description": "Caller may not read this account", "schema": {"$ref": "#/definitions/errorhandler.Envelope"}},
                    "404": {"description": "Unknown account", "schema": {"$ref": "#/definitions/errorhandler.Envelope"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/errorhandler.Envelope"}}
                }
            }
        }
    },
    "definitions": {
        "apierror.Body": {
            "type": "object",
            "properties": {
                "name": {"type": "string", "example": "BadRequestError"},
                "message": {"type": "string", "example": "Validation Error"},
                "statusCode": {"type": "integer", "example": 400},
                "code": {"type": "string", "example": "VALIDATION_ERROR"},
                "details": {"type": "object", "additionalProperties": true},
                "source": {"type": "string", "example": "/api/v1/accounts"},
                "timestamp": {"type": "string", "example": "2025-03-04T05:06:07.890Z"},
                "stack": {"type": "string"}
            }
        },
        "domain.Account": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "email": {"type": "string"},
                "name": {"type": "string"},
                "role": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "errorhandler.Envelope": {
            "type": "object",
            "properties": {
                "error": {"$ref": "#/definitions/apierror.Body"},
                "path": {"type": "string", "example": "/api/v1/accounts"},
                "requestId": {"type": "string", "example": "123e4567-e89b-12d3-a456-426614174000"},
                "ip": {"type": "string", "example": "203.0.113.7"}
            }
        },
        "handlers.CreateAccountRequest": {
            "type": "object",
            "required": ["email", "name"],
            "properties": {
                "email": {"type": "string", "maxLength": 320, "example": "jane@example.com"},
                "name": {"type": "string", "maxLength": 255, "minLength": 1, "example": "Jane Doe"},
                "role": {"type": "string", "enum": ["member", "admin"], "example": "member"}
            }
        },
        "handlers.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "UP"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "go-api-errors",
	Description:      "Demo API showing the uniform error envelope and request correlation.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

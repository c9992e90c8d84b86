// Package docs registers the OpenAPI document served at /api/v1/swagger.json
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
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "paths": {
        "/api/v1/communications/send": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Communications"],
                "summary": "Send Communication",
                "parameters": [
                    {
                        "description": "Communication data",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/dto.SendCommunicationRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "Communication sent or scheduled", "schema": {"$ref": "#/definitions/dto.SendCommunicationResponse"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "403": {"description": "Sender is not an admin or coach of the organization", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "409": {"description": "Communication is already being dispatched", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "500": {"description": "Processing failure", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/communications/{uuid}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Communications"],
                "summary": "Get Communication",
                "parameters": [
                    {"type": "string", "description": "Communication UUID", "name": "uuid", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Communication retrieved", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "404": {"description": "Communication not found", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/communications/{uuid}/deliveries": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Communications"],
                "summary": "List Communication Deliveries",
                "parameters": [
                    {"type": "string", "description": "Communication UUID", "name": "uuid", "in": "path", "required": true},
                    {"type": "string", "description": "Delivery status (pending, sent, failed)", "name": "status", "in": "query"},
                    {"type": "string", "description": "Delivery channel (email, sms)", "name": "channel", "in": "query"},
                    {"type": "integer", "description": "Page number (default 1)", "name": "page", "in": "query"},
                    {"type": "integer", "description": "Page size (default 20, max 100)", "name": "page_size", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Deliveries retrieved", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "400": {"description": "Invalid query", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "404": {"description": "Communication not found", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/communications/{uuid}/deliveries/export": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "tags": ["Communications"],
                "summary": "Export Communication Deliveries",
                "parameters": [
                    {"type": "string", "description": "Communication UUID", "name": "uuid", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Delivery report", "schema": {"type": "file"}},
                    "403": {"description": "Only admins and coaches can export", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "404": {"description": "Communication not found", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        }
    },
    "definitions": {
        "dto.APIResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "data": {},
                "error": {}
            }
        },
        "dto.SendCommunicationRequest": {
            "type": "object",
            "required": ["organizationId", "subject", "content"],
            "properties": {
                "organizationId": {"type": "string", "format": "uuid"},
                "subject": {"type": "string", "maxLength": 500, "minLength": 1},
                "content": {"type": "string"},
                "messageType": {"type": "string", "enum": ["announcement", "reminder", "emergency", "update"]},
                "priority": {"type": "string", "enum": ["low", "normal", "high", "urgent"]},
                "targetAllOrg": {"type": "boolean"},
                "targetTeams": {"type": "array", "items": {"type": "string", "format": "uuid"}},
                "targetGroups": {"type": "array", "items": {"type": "string", "format": "uuid"}},
                "targetPlayers": {"type": "array", "items": {"type": "string", "format": "uuid"}},
                "sendEmail": {"type": "boolean"},
                "sendSms": {"type": "boolean"},
                "scheduledSendAt": {"type": "string", "format": "date-time"}
            }
        },
        "dto.SendCommunicationResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "communicationId": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Rally Communications API",
	Description:      "Communication dispatch for sports organizations",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

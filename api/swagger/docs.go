// Package swagger registers the API description served at /swagger.
// Regenerate with: swag init -g cmd/api/main.go -o api/swagger
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
        "/api/submissions": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["submissions"], "summary": "Create submission", "responses": {"201": {"description": "Created"}}},
            "get": {"security": [{"BearerAuth": []}], "tags": ["submissions"], "summary": "List submissions", "responses": {"200": {"description": "OK"}}}
        },
        "/api/submissions/unbatched": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["submissions"], "summary": "List unbatched submissions", "responses": {"200": {"description": "OK"}}}
        },
        "/api/submissions/{id}": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["submissions"], "summary": "Get submission", "responses": {"200": {"description": "OK"}}}
        },
        "/api/submissions/{id}/publish": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["submissions"], "summary": "Publish draft", "responses": {"200": {"description": "OK"}}}
        },
        "/api/submissions/{id}/answers": {
            "put": {"security": [{"BearerAuth": []}], "tags": ["submissions"], "summary": "Replace answers", "responses": {"200": {"description": "OK"}}},
            "get": {"security": [{"BearerAuth": []}], "tags": ["submissions"], "summary": "List answers", "responses": {"200": {"description": "OK"}}}
        },
        "/api/submissions/{id}/history": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["submissions"], "summary": "Answer history", "responses": {"200": {"description": "OK"}}}
        },
        "/api/batches": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["batches"], "summary": "Create batch", "responses": {"201": {"description": "Created"}}},
            "get": {"security": [{"BearerAuth": []}], "tags": ["batches"], "summary": "List own batches", "responses": {"200": {"description": "OK"}}}
        },
        "/api/batches/{id}": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["batches"], "summary": "Get batch", "responses": {"200": {"description": "OK"}}}
        },
        "/api/batches/{id}/comments": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["batches"], "summary": "Batch comments", "responses": {"200": {"description": "OK"}}}
        },
        "/api/approvals": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["approvals"], "summary": "List approvals", "responses": {"200": {"description": "OK"}}}
        },
        "/api/approvals/{id}/approve": {
            "put": {"security": [{"BearerAuth": []}], "tags": ["approvals"], "summary": "Approve slot", "responses": {"200": {"description": "OK"}}}
        },
        "/api/approvals/{id}/reject": {
            "put": {"security": [{"BearerAuth": []}], "tags": ["approvals"], "summary": "Reject slot", "responses": {"200": {"description": "OK"}}}
        },
        "/api/audit-logs": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["audit"], "summary": "Get audit logs", "responses": {"200": {"description": "OK"}}}
        },
        "/api/me": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["users"], "summary": "Current user", "responses": {"200": {"description": "OK"}}}
        },
        "/api/statistics": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["statistics"], "summary": "Get Dashboard Statistics", "responses": {"200": {"description": "OK"}, "400": {"description": "Invalid date format"}}}
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Data Collector API",
	Description:      "Hierarchical submission and approval service.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

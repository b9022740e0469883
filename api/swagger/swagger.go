package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Section Allocator API",
        "description": "Allocates eligible students to course sections under capacity and faculty constraints",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Allocations", "description": "Generate and reoptimize section allocations"},
        {"name": "Observability", "description": "Health, readiness and metrics"}
    ],
    "paths": {
        "/health": {
            "get": {
                "tags": ["Observability"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "tags": ["Observability"],
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Dependencies reachable"},
                    "503": {"description": "A dependency failed its check"}
                }
            }
        },
        "/metrics": {
            "get": {
                "tags": ["Observability"],
                "summary": "Prometheus metrics",
                "produces": ["text/plain"],
                "responses": {
                    "200": {"description": "Prometheus exposition format"}
                }
            }
        },
        "/api/v1/metrics/summary": {
            "get": {
                "tags": ["Observability"],
                "summary": "Aggregated runtime counters",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/allocations/generate": {
            "post": {
                "tags": ["Allocations"],
                "summary": "Allocate every eligible student to a section",
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "body", "required": false, "schema": {"$ref": "#/definitions/GenerateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/AllocationEnvelope"}},
                    "400": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "500": {"description": "Solver or persistence failure", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/allocations/reoptimize": {
            "post": {
                "tags": ["Allocations"],
                "summary": "Recompute allocations for the affected students only",
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "parameters": [
                    {"in": "query", "name": "async", "type": "boolean", "required": false},
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/ReoptimizeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/AllocationEnvelope"}},
                    "202": {"description": "Queued", "schema": {"$ref": "#/definitions/ReoptimizeAccepted"}},
                    "400": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "429": {"description": "Queue saturated", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Queue stopped or run cancelled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/allocations/jobs/{id}": {
            "get": {
                "tags": ["Allocations"],
                "summary": "Get the state of a queued reoptimization",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown job", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/allocations/export": {
            "get": {
                "tags": ["Allocations"],
                "summary": "Download the current roster",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"in": "query", "name": "format", "type": "string", "enum": ["csv", "pdf"], "required": false}
                ],
                "responses": {
                    "200": {"description": "Roster file"},
                    "400": {"description": "Unsupported format", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "GenerateRequest": {
            "type": "object",
            "properties": {
                "semester": {"type": "string"},
                "seed": {"type": "integer", "format": "int64"},
                "refreshDemand": {"type": "boolean"}
            }
        },
        "ReoptimizeRequest": {
            "type": "object",
            "properties": {
                "affectedStudentIds": {"type": "array", "items": {"type": "string"}},
                "seed": {"type": "integer", "format": "int64"},
                "async": {"type": "boolean"}
            }
        },
        "ReoptimizeAccepted": {
            "type": "object",
            "properties": {
                "jobId": {"type": "string"},
                "status": {"type": "string"}
            }
        },
        "SolverSummary": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "matched": {"type": "integer"},
                "assigned": {"type": "integer"},
                "durationMs": {"type": "integer"},
                "reason": {"type": "string"}
            }
        },
        "AllocationResult": {
            "type": "object",
            "properties": {
                "runId": {"type": "string"},
                "mode": {"type": "string", "enum": ["generate", "reoptimize"]},
                "status": {"type": "string", "enum": ["completed", "infeasible", "empty"]},
                "semester": {"type": "string"},
                "seed": {"type": "integer", "format": "int64"},
                "assignments": {"type": "object", "additionalProperties": {"type": "string", "x-nullable": true}},
                "ineligible": {"type": "array", "items": {"type": "string"}},
                "unknownStudents": {"type": "array", "items": {"type": "string"}},
                "unassignableSections": {"type": "array", "items": {"type": "string"}},
                "search": {"type": "object"},
                "solver": {"$ref": "#/definitions/SolverSummary"},
                "demandFallback": {"type": "boolean"}
            }
        },
        "AllocationEnvelope": {
            "type": "object",
            "properties": {
                "data": {"$ref": "#/definitions/AllocationResult"},
                "meta": {"type": "object"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}

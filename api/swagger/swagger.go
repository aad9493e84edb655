package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Clinic Queue API",
        "description": "Walk-in patient registration, department tokens and the consultation queue.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Patients", "description": "Registration desk and visit lifecycle"},
        {"name": "Queue", "description": "Staff queue operations and polling snapshot"},
        {"name": "Dashboard", "description": "Staff overview counters"},
        {"name": "Reports", "description": "Token slips and daily visit reports"},
        {"name": "System", "description": "Runtime metrics"}
    ],
    "paths": {
        "/patients": {
            "post": {
                "tags": ["Patients"],
                "summary": "Register a walk-in patient",
                "parameters": [
                    {"name": "Idempotency-Key", "in": "header", "type": "string", "description": "Retry key; replays return the original registration"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterPatientRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/PatientEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ErrorEnvelope"}},
                    "409": {"description": "Registration with this key in progress", "schema": {"$ref": "#/definitions/ErrorEnvelope"}},
                    "503": {"description": "Token allocation failed", "schema": {"$ref": "#/definitions/ErrorEnvelope"}},
                    "504": {"description": "Timed out; re-query before retrying", "schema": {"$ref": "#/definitions/ErrorEnvelope"}}
                }
            }
        },
        "/patients/{id}": {
            "get": {
                "tags": ["Patients"],
                "summary": "Get a patient visit",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/PatientEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ErrorEnvelope"}}
                }
            }
        },
        "/patients/{id}/complete": {
            "post": {
                "tags": ["Patients"],
                "summary": "Complete the consultation of a patient",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/PatientEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ErrorEnvelope"}},
                    "409": {"description": "Patient is not in consultation", "schema": {"$ref": "#/definitions/ErrorEnvelope"}}
                }
            }
        },
        "/patients/{id}/slip": {
            "get": {
                "tags": ["Reports"],
                "summary": "Printable token slip",
                "produces": ["application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "PDF document", "schema": {"type": "file"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ErrorEnvelope"}}
                }
            }
        },
        "/queue": {
            "get": {
                "tags": ["Queue"],
                "summary": "List the queue in display order",
                "parameters": [
                    {"name": "department", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/PatientListEnvelope"}}
                }
            }
        },
        "/queue/next": {
            "get": {
                "tags": ["Queue"],
                "summary": "Show who will be called next",
                "responses": {
                    "200": {"description": "OK; data is null when nobody waits", "schema": {"$ref": "#/definitions/PatientEnvelope"}}
                }
            },
            "post": {
                "tags": ["Queue"],
                "summary": "Call the next waiting patient into consultation",
                "responses": {
                    "200": {"description": "OK; data is null when nobody waits", "schema": {"$ref": "#/definitions/PatientEnvelope"}},
                    "409": {"description": "A patient is already in consultation", "schema": {"$ref": "#/definitions/ErrorEnvelope"}},
                    "504": {"description": "Timed out", "schema": {"$ref": "#/definitions/ErrorEnvelope"}}
                }
            }
        },
        "/queue/current": {
            "get": {
                "tags": ["Queue"],
                "summary": "Show the patient in consultation",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/PatientEnvelope"}}
                }
            }
        },
        "/queue/completed": {
            "get": {
                "tags": ["Queue"],
                "summary": "List recently completed visits",
                "parameters": [
                    {"name": "limit", "in": "query", "type": "integer", "description": "Default 10, at most 100"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/PatientListEnvelope"}},
                    "400": {"description": "Invalid limit", "schema": {"$ref": "#/definitions/ErrorEnvelope"}}
                }
            }
        },
        "/queue/snapshot": {
            "get": {
                "tags": ["Queue"],
                "summary": "Polling snapshot of the whole queue",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/QueueSnapshotItem"}}}
                }
            }
        },
        "/dashboard": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Staff dashboard counters",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/departments/sequences": {
            "get": {
                "tags": ["Queue"],
                "summary": "Department token counters",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/visits": {
            "get": {
                "tags": ["Reports"],
                "summary": "Visits registered on one day",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "date", "in": "query", "type": "string", "description": "YYYY-MM-DD in clinic time, defaults to today"},
                    {"name": "department", "in": "query", "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Document", "schema": {"type": "file"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ErrorEnvelope"}}
                }
            }
        },
        "/system/metrics": {
            "get": {
                "tags": ["System"],
                "summary": "Aggregated runtime counters",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "RegisterPatientRequest": {
            "type": "object",
            "required": ["name", "department", "symptoms"],
            "properties": {
                "name": {"type": "string", "maxLength": 100},
                "department": {"type": "string", "maxLength": 50},
                "symptoms": {"type": "string", "maxLength": 2000}
            }
        },
        "PatientRecord": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "token": {"type": "string", "example": "CARDI-001"},
                "name": {"type": "string"},
                "department": {"type": "string"},
                "symptoms": {"type": "string"},
                "status": {"type": "string", "enum": ["Waiting", "In Consultation", "Completed"]},
                "timeIn": {"type": "string", "format": "date-time"},
                "timeOut": {"type": "string", "format": "date-time", "x-nullable": true}
            }
        },
        "QueueSnapshotItem": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "token": {"type": "string"},
                "name": {"type": "string"},
                "department": {"type": "string"},
                "symptoms": {"type": "string"},
                "status": {"type": "string", "enum": ["Waiting", "In Consultation", "Completed"]},
                "timeIn": {"type": "string", "example": "2024-03-01 09:00:00"},
                "timeOut": {"type": "string", "example": "2024-03-01 09:20:00", "x-nullable": true}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "field": {"type": "string"}
            }
        },
        "ErrorEnvelope": {
            "type": "object",
            "properties": {
                "error": {"$ref": "#/definitions/APIError"}
            }
        },
        "PatientEnvelope": {
            "type": "object",
            "properties": {
                "data": {"$ref": "#/definitions/PatientRecord"},
                "meta": {"type": "object"}
            }
        },
        "PatientListEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "array", "items": {"$ref": "#/definitions/PatientRecord"}},
                "meta": {"type": "object"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
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

package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Grouping API",
        "description": "Scenario generation and satisfaction analytics for activity group assignment",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Partitions", "description": "Partition lifecycle per activity"},
        {"name": "Candidates", "description": "Side-by-side partition candidates"},
        {"name": "Analytics", "description": "Satisfaction scoring"},
        {"name": "Placements", "description": "Published placement history"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/api/v1/activities/{id}/partition/generate": {
            "post": {
                "tags": ["Partitions"],
                "summary": "Generate a draft partition",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GeneratePartitionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Active partition exists", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Infeasible constraints", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/activities/{id}/partition/reset": {
            "post": {
                "tags": ["Partitions"],
                "summary": "Discard the draft and regenerate",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GeneratePartitionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Partition is not a draft", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/activities/{id}/partition/publish": {
            "post": {
                "tags": ["Partitions"],
                "summary": "Publish the draft and snapshot placements",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No active partition", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Partition is not a draft", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/activities/{id}/partition/archive": {
            "post": {
                "tags": ["Partitions"],
                "summary": "Archive the published partition",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "409": {"description": "Partition is not published", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/activities/{id}/partition": {
            "get": {
                "tags": ["Partitions"],
                "summary": "Get the current partition with score",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No active partition", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/activities/{id}/partition/score": {
            "get": {
                "tags": ["Analytics"],
                "summary": "Score the current partition",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/partitions/score": {
            "post": {
                "tags": ["Analytics"],
                "summary": "Score an arbitrary partition shape",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ScorePartitionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/activities/{id}/candidates": {
            "post": {
                "tags": ["Candidates"],
                "summary": "Generate a candidate set",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateCandidatesRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "get": {
                "tags": ["Candidates"],
                "summary": "Get the cached candidate set",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No candidate set", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/activities/{id}/candidates/{candidateId}/adopt": {
            "post": {
                "tags": ["Candidates"],
                "summary": "Adopt one candidate as the draft",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "candidateId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Active partition exists", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/activities/{id}/placements": {
            "get": {
                "tags": ["Placements"],
                "summary": "List published placements",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "GroupSpec": {
            "type": "object",
            "properties": {
                "key": {"type": "string"},
                "name": {"type": "string"},
                "capacity": {"type": "integer"}
            },
            "required": ["name"]
        },
        "GeneratePartitionRequest": {
            "type": "object",
            "properties": {
                "groups": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/GroupSpec"}
                },
                "groupCount": {"type": "integer"},
                "targetGroupSize": {"type": "integer"},
                "seed": {"type": "integer"},
                "algorithm": {"type": "string", "enum": ["balanced", "random-shuffle", "round-robin", "preference-first"]}
            }
        },
        "GenerateCandidatesRequest": {
            "type": "object",
            "properties": {
                "groups": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/GroupSpec"}
                },
                "groupCount": {"type": "integer"},
                "targetGroupSize": {"type": "integer"},
                "seed": {"type": "integer"},
                "algorithm": {"type": "string"},
                "count": {"type": "integer"}
            }
        },
        "ScorePartitionRequest": {
            "type": "object",
            "properties": {
                "groups": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "key": {"type": "string"},
                            "name": {"type": "string"},
                            "members": {"type": "array", "items": {"type": "string"}}
                        }
                    }
                },
                "preferences": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "studentId": {"type": "string"},
                            "rankedGroups": {"type": "array", "items": {"type": "string"}},
                            "avoidStudents": {"type": "array", "items": {"type": "string"}},
                            "avoidGroups": {"type": "array", "items": {"type": "string"}}
                        }
                    }
                },
                "snapshot": {"type": "array", "items": {"type": "string"}}
            },
            "required": ["groups", "snapshot"]
        },
        "SatisfactionScore": {
            "type": "object",
            "properties": {
                "percentAssignedTopChoice": {"type": "number"},
                "percentAssignedTop2": {"type": "number"},
                "averagePreferenceRankAssigned": {"type": "number"}
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

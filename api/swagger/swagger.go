package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "DRTC Mesa de Partes API",
        "description": "Tramite documentario de la Direccion Regional de Transportes y Comunicaciones",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Documentos", "description": "Registro y consulta de documentos"},
        {"name": "Derivaciones", "description": "Derivacion de documentos entre areas"},
        {"name": "Archivo", "description": "Archivo fisico y retencion"},
        {"name": "Importar", "description": "Importacion masiva del padron"},
        {"name": "Integraciones", "description": "Conectores con sistemas externos"},
        {"name": "Notificaciones", "description": "Notificaciones del usuario"}
    ],
    "paths": {
        "/documentos": {
            "get": {
                "tags": ["Documentos"],
                "summary": "Listar documentos",
                "parameters": [
                    {"name": "expediente", "in": "query", "type": "string"},
                    {"name": "remitente", "in": "query", "type": "string"},
                    {"name": "asunto", "in": "query", "type": "string"},
                    {"name": "estado", "in": "query", "type": "string"},
                    {"name": "prioridad", "in": "query", "type": "string"},
                    {"name": "solo_vencidos", "in": "query", "type": "boolean"},
                    {"name": "solo_urgentes", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Documentos"],
                "summary": "Registrar documento",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateDocumentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/documentos/{id}": {
            "get": {
                "tags": ["Documentos"],
                "summary": "Detalle de documento",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "patch": {
                "tags": ["Documentos"],
                "summary": "Actualizar documento",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateDocumentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/documentos/expediente/{expediente}": {
            "get": {
                "tags": ["Documentos"],
                "summary": "Detalle por numero de expediente",
                "parameters": [
                    {"name": "expediente", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/documentos/{id}/adjuntos": {
            "post": {
                "tags": ["Documentos"],
                "summary": "Adjuntar archivo",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "file", "in": "formData", "required": true, "type": "file"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/documentos/{id}/cargo": {
            "get": {
                "tags": ["Documentos"],
                "summary": "Cargo de recepcion en PDF",
                "produces": ["application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/documentos/{id}/qr": {
            "get": {
                "tags": ["Documentos"],
                "summary": "Codigo QR del documento",
                "produces": ["image/png"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/documentos/{id}/derivaciones": {
            "get": {
                "tags": ["Derivaciones"],
                "summary": "Historial de derivaciones del documento",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/consulta/{token}": {
            "get": {
                "tags": ["Documentos"],
                "summary": "Consulta publica por token QR",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/derivaciones": {
            "post": {
                "tags": ["Derivaciones"],
                "summary": "Derivar documento",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateDerivationRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/derivaciones/{id}/recepcion": {
            "post": {
                "tags": ["Derivaciones"],
                "summary": "Aceptar o rechazar derivacion",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReceiveDerivationRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/derivaciones/{id}/atencion": {
            "post": {
                "tags": ["Derivaciones"],
                "summary": "Atender derivacion",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AttendDerivationRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/derivaciones/bandeja": {
            "get": {
                "tags": ["Derivaciones"],
                "summary": "Bandeja de derivaciones pendientes del area",
                "parameters": [
                    {"name": "area", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/derivaciones/vencidas": {
            "get": {
                "tags": ["Derivaciones"],
                "summary": "Derivaciones con plazo vencido",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/derivaciones/urgentes": {
            "get": {
                "tags": ["Derivaciones"],
                "summary": "Derivaciones urgentes pendientes",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/derivaciones/lote": {
            "post": {
                "tags": ["Derivaciones"],
                "summary": "Derivar lote de documentos",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkDeriveRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/archivo": {
            "get": {
                "tags": ["Archivo"],
                "summary": "Listar entradas archivadas",
                "parameters": [
                    {"name": "clasificacion", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Archivo"],
                "summary": "Archivar documento",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ArchiveDocumentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/archivo/{id}": {
            "get": {
                "tags": ["Archivo"],
                "summary": "Detalle de entrada de archivo",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/archivo/por-vencer": {
            "get": {
                "tags": ["Archivo"],
                "summary": "Entradas con retencion por vencer",
                "parameters": [
                    {"name": "dias", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/archivo/vencidos": {
            "get": {
                "tags": ["Archivo"],
                "summary": "Entradas con retencion vencida",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/archivo/destruir": {
            "post": {
                "tags": ["Archivo"],
                "summary": "Destruir lote de entradas vencidas",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkArchiveOpRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/archivo/migrar": {
            "post": {
                "tags": ["Archivo"],
                "summary": "Migrar lote de entradas a custodia externa",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkArchiveOpRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/importar/{entidad}": {
            "post": {
                "tags": ["Importar"],
                "summary": "Importar hoja de calculo del padron",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "entidad", "in": "path", "required": true, "type": "string"},
                    {"name": "file", "in": "formData", "required": true, "type": "file"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/importar/{entidad}/plantilla": {
            "get": {
                "tags": ["Importar"],
                "summary": "Descargar plantilla de importacion",
                "parameters": [
                    {"name": "entidad", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/integraciones": {
            "get": {
                "tags": ["Integraciones"],
                "summary": "Listar integraciones",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Integraciones"],
                "summary": "Registrar integracion",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SaveIntegrationRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/integraciones/{id}": {
            "get": {
                "tags": ["Integraciones"],
                "summary": "Detalle de integracion",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Integraciones"],
                "summary": "Actualizar integracion",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SaveIntegrationRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Integraciones"],
                "summary": "Eliminar integracion",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/integraciones/{id}/probar": {
            "post": {
                "tags": ["Integraciones"],
                "summary": "Probar conexion",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/integraciones/{id}/enviar": {
            "post": {
                "tags": ["Integraciones"],
                "summary": "Enviar documento al sistema externo",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SendDocumentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/integraciones/{id}/recibir": {
            "post": {
                "tags": ["Integraciones"],
                "summary": "Recibir documento del sistema externo",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReceiveDocumentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/integraciones/{id}/documentos/{externalId}": {
            "get": {
                "tags": ["Integraciones"],
                "summary": "Consultar estado de documento enviado",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "externalId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/integraciones/{id}/logs": {
            "get": {
                "tags": ["Integraciones"],
                "summary": "Log de sincronizacion",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/integraciones/{id}/estadisticas": {
            "get": {
                "tags": ["Integraciones"],
                "summary": "Contadores de sincronizacion",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/notificaciones": {
            "get": {
                "tags": ["Notificaciones"],
                "summary": "Listar notificaciones del usuario",
                "parameters": [
                    {"name": "solo_no_leidas", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/notificaciones/no-leidas": {
            "get": {
                "tags": ["Notificaciones"],
                "summary": "Contador de no leidas",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/notificaciones/{id}/leida": {
            "post": {
                "tags": ["Notificaciones"],
                "summary": "Marcar notificacion como leida",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/notificaciones/leidas": {
            "post": {
                "tags": ["Notificaciones"],
                "summary": "Marcar todas como leidas",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "CreateDocumentRequest": {
            "type": "object",
            "properties": {
                "sender": {"type": "string"},
                "subject": {"type": "string"},
                "doc_type_id": {"type": "string"},
                "priority": {"type": "string"},
                "deadline": {"type": "string"},
                "labels": {"type": "array", "items": {"type": "string"}},
                "received_at": {"type": "string"}
            },
            "required": ["sender", "subject", "doc_type_id"]
        },
        "UpdateDocumentRequest": {
            "type": "object",
            "properties": {
                "subject": {"type": "string"},
                "priority": {"type": "string"},
                "deadline": {"type": "string"},
                "labels": {"type": "array", "items": {"type": "string"}},
                "state": {"type": "string"}
            }
        },
        "CreateDerivationRequest": {
            "type": "object",
            "properties": {
                "document_id": {"type": "string"},
                "dest_area_ids": {"type": "array", "items": {"type": "string"}},
                "deadline": {"type": "string"},
                "urgent": {"type": "boolean"},
                "requires_response": {"type": "boolean"},
                "instructions": {"type": "string"}
            },
            "required": ["document_id", "dest_area_ids"]
        },
        "ReceiveDerivationRequest": {
            "type": "object",
            "properties": {
                "accept": {"type": "boolean"},
                "reason": {"type": "string"}
            }
        },
        "AttendDerivationRequest": {
            "type": "object",
            "properties": {
                "observations": {"type": "string"},
                "next_area_id": {"type": "string"},
                "next_deadline": {"type": "string"}
            }
        },
        "BulkDeriveRequest": {
            "type": "object",
            "properties": {
                "document_ids": {"type": "array", "items": {"type": "string"}},
                "dest_area_id": {"type": "string"},
                "deadline": {"type": "string"},
                "urgent": {"type": "boolean"},
                "requires_response": {"type": "boolean"},
                "instructions": {"type": "string"}
            },
            "required": ["document_ids", "dest_area_id"]
        },
        "ArchiveDocumentRequest": {
            "type": "object",
            "properties": {
                "document_id": {"type": "string"},
                "classification": {"type": "string"},
                "retention": {"type": "string"},
                "observations": {"type": "string"}
            },
            "required": ["document_id", "classification", "retention"]
        },
        "BulkArchiveOpRequest": {
            "type": "object",
            "properties": {
                "entry_ids": {"type": "array", "items": {"type": "string"}},
                "observations": {"type": "string"}
            },
            "required": ["entry_ids"]
        },
        "SaveIntegrationRequest": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "name": {"type": "string"},
                "base_url": {"type": "string"},
                "auth_kind": {"type": "string"},
                "credentials": {"type": "string"},
                "headers": {"type": "object"},
                "allows_send": {"type": "boolean"},
                "allows_receive": {"type": "boolean"},
                "field_mapping": {"type": "object"},
                "webhook_url": {"type": "string"},
                "max_attempts": {"type": "integer"},
                "retry_interval": {"type": "string"},
                "timeout": {"type": "string"}
            },
            "required": ["code", "name", "base_url"]
        },
        "SendDocumentRequest": {
            "type": "object",
            "properties": {
                "document_id": {"type": "string"}
            },
            "required": ["document_id"]
        },
        "ReceiveDocumentRequest": {
            "type": "object",
            "properties": {
                "payload": {"type": "object"}
            },
            "required": ["payload"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
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
                "pagination": {"$ref": "#/definitions/Pagination"},
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

// Package docs registers the OpenAPI description served under /swagger/.
// Regenerate with `swag init -g cmd/api/main.go` after changing controller annotations.
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
		"/registrations": {
			"post": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"registrations"
				],
				"summary": "Register the current user for an event",
				"responses": {
					"201": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/controllers.RegisterSuccessResponse"
						}
					},
					"400": {
						"description": "error.code: bad_request, invalid_payment_method",
						"schema": {
							"$ref": "#/definitions/helpers.APIResponse"
						}
					},
					"401": {
						"description": "error.code: unauthorized",
						"schema": {
							"$ref": "#/definitions/helpers.APIResponse"
						}
					},
					"404": {
						"description": "error.code: not_found",
						"schema": {
							"$ref": "#/definitions/helpers.APIResponse"
						}
					},
					"409": {
						"description": "error.code: already_registered, registration_closed, event_full, fee_mismatch",
						"schema": {
							"$ref": "#/definitions/helpers.APIResponse"
						}
					},
					"502": {
						"description": "error.code: gateway_unavailable",
						"schema": {
							"$ref": "#/definitions/helpers.APIResponse"
						}
					},
					"500": {
						"description": "error.code: internal_error",
						"schema": {
							"$ref": "#/definitions/helpers.APIResponse"
						}
					}
				},
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"description": "Request body",
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/controllers.RegisterRequest"
						}
					}
				]
			},
			"get": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"registrations"
				],
				"summary": "List registrations",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/controllers.ListRegistrationsSuccessResponse"
						}
					},
					"401": {
						"description": "error.code: unauthorized",
						"schema": {
							"$ref": "#/definitions/helpers.APIResponse"
						}
					},
					"500": {
						"description": "error.code: internal_error",
						"schema": {
							"$ref": "#/definitions/helpers.APIResponse"
						}
					}
				},
				"parameters": [
					{
						"type": "integer",
						"description": "Page (1-based)",
						"name": "page",
						"in": "query"
					},
					{
						"type": "integer",
						"description": "Page size (max 100)",
						"name": "page_size",
						"in": "query"
					}
				]
			}
		},
		"/registrations/confirm/stripe": {
			"post": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"registrations"
				],
				"summary": "Confirm a hosted checkout payment",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/controllers.ConfirmSuccessResponse"
						}
					},
					"400": {
						"description": "error.code: bad_request",
						"schema": {
							"$ref": "#/definitions/helpers.APIResponse"
						}
					},
					"401": {
						"description": "error.code: unauthorized",
						"schema": {
							"$ref": "#/definitions/helpers.APIResponse"
						}
					},
					"402": {
						"description": "error.code: payment_not_confirmed",
						"schema": {
							"$ref": "#/definitions/helpers.APIResponse"
						}
					},
					"404": {
						"description": "error.code: not_found",
						"schema": {
							"$ref": "#/definitions/helpers.APIResponse"
						}
					},
					"502": {
						"description": "error.code: gateway_unavailable",
						"schema": {
							"$ref": "#/definitions/helpers.APIResponse"
						}
					},
					"500": {
						"description": "error.code: internal_error",
						"schema": {
							"$ref": "#/definitions/helpers.APIResponse"
						}
					}
				},
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"description": "Request body",
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/controllers.ConfirmStripeRequest"
						}
					}
				]
			}
		},
		"/registrations/confirm/razorpay": {
			"post": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"registrations"
				],
				"summary": "Confirm an order payment",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/controllers.ConfirmSuccessResponse"
						}
					},
					"400": {
						"description": "error.code: bad_request, signature_invalid",
						"schema": {
							"$ref": "#/definitions/helpers.APIResponse"
						}
					},
					"401": {
						"description": "error.code: unauthorized",
						"schema": {
							"$ref": "#/definitions/helpers.APIResponse"
						}
					},
					"402": {
						"description": "error.code: payment_not_confirmed",
						"schema": {
							"$ref": "#/definitions/helpers.APIResponse"
						}
					},
					"404": {
						"description": "error.code: not_found",
						"schema": {
							"$ref": "#/definitions/helpers.APIResponse"
						}
					},
					"502": {
						"description": "error.code: gateway_unavailable",
						"schema": {
							"$ref": "#/definitions/helpers.APIResponse"
						}
					},
					"500": {
						"description": "error.code: internal_error",
						"schema": {
							"$ref": "#/definitions/helpers.APIResponse"
						}
					}
				},
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"description": "Request body",
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/controllers.ConfirmRazorpayRequest"
						}
					}
				]
			}
		},
		"/registrations/unregister": {
			"post": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"registrations"
				],
				"summary": "Cancel the current user's registration",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/controllers.UnregisterSuccessResponse"
						}
					},
					"400": {
						"description": "error.code: bad_request",
						"schema": {
							"$ref": "#/definitions/helpers.APIResponse"
						}
					},
					"401": {
						"description": "error.code: unauthorized",
						"schema": {
							"$ref": "#/definitions/helpers.APIResponse"
						}
					},
					"404": {
						"description": "error.code: not_registered",
						"schema": {
							"$ref": "#/definitions/helpers.APIResponse"
						}
					},
					"500": {
						"description": "error.code: internal_error",
						"schema": {
							"$ref": "#/definitions/helpers.APIResponse"
						}
					}
				},
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"description": "Request body",
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/controllers.UnregisterRequest"
						}
					}
				]
			}
		},
		"/registrations/sweep/run": {
			"post": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"jobs"
				],
				"summary": "Reconcile stale pending registrations now",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/controllers.RunSweepSuccessResponse"
						}
					},
					"401": {
						"description": "error.code: unauthorized",
						"schema": {
							"$ref": "#/definitions/helpers.APIResponse"
						}
					},
					"403": {
						"description": "error.code: forbidden",
						"schema": {
							"$ref": "#/definitions/helpers.APIResponse"
						}
					},
					"500": {
						"description": "error.code: internal_error",
						"schema": {
							"$ref": "#/definitions/helpers.APIResponse"
						}
					}
				}
			}
		},
		"/attendee/registrations": {
			"get": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"registrations"
				],
				"summary": "List the current user's registrations",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/controllers.ListMyRegistrationsSuccessResponse"
						}
					},
					"401": {
						"description": "error.code: unauthorized",
						"schema": {
							"$ref": "#/definitions/helpers.APIResponse"
						}
					},
					"500": {
						"description": "error.code: internal_error",
						"schema": {
							"$ref": "#/definitions/helpers.APIResponse"
						}
					}
				}
			}
		},
		"/notifications/reminders/run": {
			"post": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"jobs"
				],
				"summary": "Send due event reminders now",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/controllers.RunRemindersSuccessResponse"
						}
					},
					"401": {
						"description": "error.code: unauthorized",
						"schema": {
							"$ref": "#/definitions/helpers.APIResponse"
						}
					},
					"403": {
						"description": "error.code: forbidden",
						"schema": {
							"$ref": "#/definitions/helpers.APIResponse"
						}
					},
					"500": {
						"description": "error.code: internal_error",
						"schema": {
							"$ref": "#/definitions/helpers.APIResponse"
						}
					}
				}
			}
		},
		"/events/{eventID}": {
			"get": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"events"
				],
				"summary": "Get an event's registration details",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/controllers.GetEventSuccessResponse"
						}
					},
					"400": {
						"description": "error.code: bad_request",
						"schema": {
							"$ref": "#/definitions/helpers.APIResponse"
						}
					},
					"401": {
						"description": "error.code: unauthorized",
						"schema": {
							"$ref": "#/definitions/helpers.APIResponse"
						}
					},
					"404": {
						"description": "error.code: not_found",
						"schema": {
							"$ref": "#/definitions/helpers.APIResponse"
						}
					},
					"500": {
						"description": "error.code: internal_error",
						"schema": {
							"$ref": "#/definitions/helpers.APIResponse"
						}
					}
				},
				"parameters": [
					{
						"type": "string",
						"description": "Event ID (UUID)",
						"name": "eventID",
						"in": "path",
						"required": true
					}
				]
			},
			"delete": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"events"
				],
				"summary": "Delete an event",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/controllers.DeleteEventSuccessResponse"
						}
					},
					"400": {
						"description": "error.code: bad_request",
						"schema": {
							"$ref": "#/definitions/helpers.APIResponse"
						}
					},
					"401": {
						"description": "error.code: unauthorized",
						"schema": {
							"$ref": "#/definitions/helpers.APIResponse"
						}
					},
					"403": {
						"description": "error.code: forbidden",
						"schema": {
							"$ref": "#/definitions/helpers.APIResponse"
						}
					},
					"404": {
						"description": "error.code: not_found",
						"schema": {
							"$ref": "#/definitions/helpers.APIResponse"
						}
					},
					"500": {
						"description": "error.code: internal_error",
						"schema": {
							"$ref": "#/definitions/helpers.APIResponse"
						}
					}
				},
				"parameters": [
					{
						"type": "string",
						"description": "Event ID (UUID)",
						"name": "eventID",
						"in": "path",
						"required": true
					}
				]
			}
		}
	},
	"definitions": {
		"helpers.APIError": {
			"type": "object",
			"properties": {
				"code": {
					"type": "string"
				},
				"message": {
					"type": "string"
				}
			}
		},
		"helpers.APIResponse": {
			"type": "object",
			"properties": {
				"data": {},
				"error": {
					"$ref": "#/definitions/helpers.APIError"
				}
			}
		},
		"helpers.PaginationMeta": {
			"type": "object",
			"properties": {
				"page": {
					"type": "integer"
				},
				"page_size": {
					"type": "integer"
				},
				"total": {
					"type": "integer"
				},
				"total_pages": {
					"type": "integer"
				}
			}
		},
		"domain.Registration": {
			"type": "object",
			"properties": {
				"id": {
					"type": "string"
				},
				"user_id": {
					"type": "string"
				},
				"event_id": {
					"type": "string"
				},
				"roll_number": {
					"type": "string"
				},
				"contact": {
					"type": "string"
				},
				"status": {
					"type": "string"
				},
				"payment_method": {
					"type": "string"
				},
				"notification_sent": {
					"type": "boolean"
				},
				"created_at": {
					"type": "string"
				},
				"updated_at": {
					"type": "string"
				}
			}
		},
		"domain.PaymentIntent": {
			"type": "object",
			"properties": {
				"provider": {
					"type": "string"
				},
				"id": {
					"type": "string"
				},
				"redirect_url": {
					"type": "string"
				},
				"amount": {
					"type": "integer"
				},
				"currency": {
					"type": "string"
				},
				"key_id": {
					"type": "string"
				}
			}
		},
		"domain.Event": {
			"type": "object",
			"properties": {
				"id": {
					"type": "string"
				},
				"title": {
					"type": "string"
				},
				"owner_id": {
					"type": "string"
				},
				"venue_id": {
					"type": "string"
				},
				"start_date": {
					"type": "string"
				},
				"end_date": {
					"type": "string"
				},
				"registration_deadline": {
					"type": "string"
				},
				"registration_fee": {
					"type": "string"
				},
				"max_participants": {
					"type": "integer"
				},
				"registered_count": {
					"type": "integer"
				}
			}
		},
		"domain.SweepResult": {
			"type": "object",
			"properties": {
				"scanned": {
					"type": "integer"
				},
				"confirmed": {
					"type": "integer"
				},
				"deleted": {
					"type": "integer"
				},
				"skipped": {
					"type": "integer"
				}
			}
		},
		"controllers.RegisterRequest": {
			"type": "object",
			"properties": {
				"user_id": {
					"type": "string"
				},
				"event_id": {
					"type": "string"
				},
				"roll_number": {
					"type": "string"
				},
				"contact": {
					"type": "string"
				},
				"fee": {
					"type": "string"
				},
				"payment_method": {
					"type": "string",
					"enum": [
						"stripe",
						"razorpay"
					]
				}
			}
		},
		"controllers.RegisterResponse": {
			"type": "object",
			"properties": {
				"success": {
					"type": "boolean"
				},
				"message": {
					"type": "string"
				},
				"outcome": {
					"type": "string"
				},
				"registration_id": {
					"type": "string"
				},
				"status": {
					"type": "string"
				},
				"session_url": {
					"type": "string"
				},
				"order": {
					"$ref": "#/definitions/domain.PaymentIntent"
				}
			}
		},
		"controllers.RegisterSuccessResponse": {
			"type": "object",
			"properties": {
				"data": {
					"$ref": "#/definitions/controllers.RegisterResponse"
				},
				"error": {
					"$ref": "#/definitions/helpers.APIError"
				}
			}
		},
		"controllers.ConfirmStripeRequest": {
			"type": "object",
			"properties": {
				"registration_id": {
					"type": "string"
				},
				"event_id": {
					"type": "string"
				},
				"user_id": {
					"type": "string"
				},
				"success": {
					"type": "boolean"
				}
			}
		},
		"controllers.ConfirmRazorpayRequest": {
			"type": "object",
			"properties": {
				"registration_id": {
					"type": "string"
				},
				"event_id": {
					"type": "string"
				},
				"user_id": {
					"type": "string"
				},
				"order_id": {
					"type": "string"
				},
				"payment_id": {
					"type": "string"
				},
				"signature": {
					"type": "string"
				}
			}
		},
		"controllers.ConfirmResponse": {
			"type": "object",
			"properties": {
				"success": {
					"type": "boolean"
				},
				"message": {
					"type": "string"
				},
				"registration_id": {
					"type": "string"
				},
				"status": {
					"type": "string"
				},
				"already_settled": {
					"type": "boolean"
				}
			}
		},
		"controllers.ConfirmSuccessResponse": {
			"type": "object",
			"properties": {
				"data": {
					"$ref": "#/definitions/controllers.ConfirmResponse"
				},
				"error": {
					"$ref": "#/definitions/helpers.APIError"
				}
			}
		},
		"controllers.UnregisterRequest": {
			"type": "object",
			"properties": {
				"user_id": {
					"type": "string"
				},
				"event_id": {
					"type": "string"
				},
				"fee": {
					"type": "string"
				}
			}
		},
		"controllers.UnregisterResponse": {
			"type": "object",
			"properties": {
				"success": {
					"type": "boolean"
				},
				"message": {
					"type": "string"
				},
				"refund_pending": {
					"type": "boolean"
				}
			}
		},
		"controllers.UnregisterSuccessResponse": {
			"type": "object",
			"properties": {
				"data": {
					"$ref": "#/definitions/controllers.UnregisterResponse"
				},
				"error": {
					"$ref": "#/definitions/helpers.APIError"
				}
			}
		},
		"controllers.ListRegistrationsResponse": {
			"type": "object",
			"properties": {
				"items": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/domain.Registration"
					}
				},
				"pagination": {
					"$ref": "#/definitions/helpers.PaginationMeta"
				}
			}
		},
		"controllers.ListRegistrationsSuccessResponse": {
			"type": "object",
			"properties": {
				"data": {
					"$ref": "#/definitions/controllers.ListRegistrationsResponse"
				},
				"error": {
					"$ref": "#/definitions/helpers.APIError"
				}
			}
		},
		"controllers.ListMyRegistrationsSuccessResponse": {
			"type": "object",
			"properties": {
				"data": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/domain.Registration"
					}
				},
				"error": {
					"$ref": "#/definitions/helpers.APIError"
				}
			}
		},
		"controllers.RunRemindersResponse": {
			"type": "object",
			"properties": {
				"message": {
					"type": "string"
				},
				"candidates": {
					"type": "integer"
				},
				"sent": {
					"type": "integer"
				},
				"failed": {
					"type": "integer"
				}
			}
		},
		"controllers.RunRemindersSuccessResponse": {
			"type": "object",
			"properties": {
				"data": {
					"$ref": "#/definitions/controllers.RunRemindersResponse"
				},
				"error": {
					"$ref": "#/definitions/helpers.APIError"
				}
			}
		},
		"controllers.RunSweepSuccessResponse": {
			"type": "object",
			"properties": {
				"data": {
					"$ref": "#/definitions/domain.SweepResult"
				},
				"error": {
					"$ref": "#/definitions/helpers.APIError"
				}
			}
		},
		"controllers.GetEventSuccessResponse": {
			"type": "object",
			"properties": {
				"data": {
					"$ref": "#/definitions/domain.Event"
				},
				"error": {
					"$ref": "#/definitions/helpers.APIError"
				}
			}
		},
		"controllers.DeleteEventResponse": {
			"type": "object",
			"properties": {
				"status": {
					"type": "string"
				}
			}
		},
		"controllers.DeleteEventSuccessResponse": {
			"type": "object",
			"properties": {
				"data": {
					"$ref": "#/definitions/controllers.DeleteEventResponse"
				},
				"error": {
					"$ref": "#/definitions/helpers.APIError"
				}
			}
		}
	},
	"securityDefinitions": {
		"BearerAuth": {
			"type": "apiKey",
			"name": "Authorization",
			"in": "header"
		}
	}
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:		  "1.0",
	Host:			 "",
	BasePath:		 "/",
	Schemes:		  []string{},
	Title:			"Event Settlement API",
	Description:	  "Event registration, payment settlement and reminder notifications.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:		"{{",
	RightDelim:	   "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

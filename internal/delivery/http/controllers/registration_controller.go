package controllers

import (
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"eventsettlement/internal/delivery/http/helpers"
	"eventsettlement/internal/domain"
)

type RegistrationController struct {
	Logger  *slog.Logger
	Service domain.RegistrationService
}

func NewRegistrationController(logger *slog.Logger, svc domain.RegistrationService) *RegistrationController {
	return &RegistrationController{
		Logger:  logger,
		Service: svc,
	}
}

// RegisterRequest is the request body for POST /registrations.
// Fee is the registration fee the client displayed; it must match the current fee.
type RegisterRequest struct {
	UserID        string          `json:"user_id,omitempty"`
	EventID       string          `json:"event_id" validate:"required,uuid"`
	RollNumber    string          `json:"roll_number" validate:"required,max=64"`
	Contact       string          `json:"contact" validate:"omitempty,email"`
	Fee           decimal.Decimal `json:"fee"`
	PaymentMethod string          `json:"payment_method,omitempty" validate:"omitempty,oneof=stripe razorpay"`
}

// Validate implements helpers.Validator.
func (r *RegisterRequest) Validate() []string {
	errs := helpers.StructErrors(r)
	if r.Fee.IsNegative() {
		errs = append(errs, "fee must not be negative")
	}
	return errs
}

// RegisterResponse is the data payload of POST /registrations. SessionURL is set
// when the client must be redirected to a hosted checkout, Order when it must
// complete the payment itself.
type RegisterResponse struct {
	Success        bool                      `json:"success"`
	Message        string                    `json:"message"`
	Outcome        domain.OutcomeKind        `json:"outcome"`
	RegistrationID string                    `json:"registration_id"`
	Status         domain.RegistrationStatus `json:"status"`
	SessionURL     string                    `json:"session_url,omitempty"`
	Order          *domain.PaymentIntent     `json:"order,omitempty"`
}

// RegisterSuccessResponse is the success response envelope for POST /registrations (201).
type RegisterSuccessResponse struct {
	Data  RegisterResponse  `json:"data"`
	Error *helpers.APIError `json:"error"`
}

// Register godoc
// @Summary Register the current user for an event
// @Description Free events are confirmed immediately. Paid events create a Pending registration and open a payment with the chosen provider: stripe returns session_url, razorpay returns order.
// @Tags registrations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body RegisterRequest true "Registration"
// @Success 201 {object} controllers.RegisterSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request, invalid_payment_method"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: already_registered, registration_closed, event_full, fee_mismatch"
// @Failure 502 {object} helpers.APIResponse "error.code: gateway_unavailable"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /registrations [post]
func (c *RegistrationController) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	userID, ok := currentUser(w, r, req.UserID)
	if !ok {
		return
	}

	out, err := c.Service.Register(r.Context(), domain.RegisterInput{
		UserID:        userID,
		EventID:       req.EventID,
		RollNumber:    req.RollNumber,
		Contact:       req.Contact,
		Fee:           req.Fee,
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, RegisterResponse{
		Success:        true,
		Message:        out.Message,
		Outcome:        out.Kind,
		RegistrationID: out.Registration.ID,
		Status:         out.Registration.Status,
		SessionURL:     out.RedirectURL,
		Order:          out.Intent,
	})
}

// ConfirmResponse is the data payload of both confirm endpoints.
type ConfirmResponse struct {
	Success        bool                      `json:"success"`
	Message        string                    `json:"message"`
	RegistrationID string                    `json:"registration_id"`
	Status         domain.RegistrationStatus `json:"status"`
	AlreadySettled bool                      `json:"already_settled"`
}

// ConfirmSuccessResponse is the success response envelope for the confirm endpoints (200).
type ConfirmSuccessResponse struct {
	Data  ConfirmResponse   `json:"data"`
	Error *helpers.APIError `json:"error"`
}

func confirmResponse(out *domain.ConfirmOutcome) ConfirmResponse {
	return ConfirmResponse{
		Success:        true,
		Message:        out.Message,
		RegistrationID: out.Registration.ID,
		Status:         out.Registration.Status,
		AlreadySettled: out.AlreadySettled,
	}
}

// ConfirmStripeRequest is the request body for POST /registrations/confirm/stripe,
// built from the checkout redirect query.
type ConfirmStripeRequest struct {
	RegistrationID string `json:"registration_id" validate:"required,uuid"`
	EventID        string `json:"event_id" validate:"required,uuid"`
	UserID         string `json:"user_id,omitempty"`
	Success        bool   `json:"success"`
}

// Validate implements helpers.Validator.
func (r *ConfirmStripeRequest) Validate() []string { return helpers.StructErrors(r) }

// ConfirmStripe godoc
// @Summary Confirm a hosted checkout payment
// @Description Called after the checkout redirect. success=false releases the Pending registration. success=true is checked against the checkout session before the registration is marked Paid. Repeated calls on a settled registration succeed without side effects.
// @Tags registrations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body ConfirmStripeRequest true "Redirect result"
// @Success 200 {object} controllers.ConfirmSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request, invalid_payment_method"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 402 {object} helpers.APIResponse "error.code: payment_not_confirmed"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 502 {object} helpers.APIResponse "error.code: gateway_unavailable"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /registrations/confirm/stripe [post]
func (c *RegistrationController) ConfirmStripe(w http.ResponseWriter, r *http.Request) {
	var req ConfirmStripeRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	userID, ok := currentUser(w, r, req.UserID)
	if !ok {
		return
	}
	out, err := c.Service.ConfirmStripe(r.Context(), domain.StripeConfirmInput{
		RegistrationID: req.RegistrationID,
		EventID:        req.EventID,
		UserID:         userID,
		Success:        req.Success,
	})
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, confirmResponse(out))
}

// ConfirmRazorpayRequest is the request body for POST /registrations/confirm/razorpay,
// as returned by the checkout widget.
type ConfirmRazorpayRequest struct {
	RegistrationID string `json:"registration_id" validate:"required,uuid"`
	EventID        string `json:"event_id" validate:"required,uuid"`
	UserID         string `json:"user_id,omitempty"`
	OrderID        string `json:"order_id" validate:"required"`
	PaymentID      string `json:"payment_id" validate:"required"`
	Signature      string `json:"signature" validate:"required,hexadecimal"`
}

// Validate implements helpers.Validator.
func (r *ConfirmRazorpayRequest) Validate() []string { return helpers.StructErrors(r) }

// ConfirmRazorpay godoc
// @Summary Confirm an order payment
// @Description Verifies the checkout signature, then asks the provider whether the order is paid. An unpaid order releases the Pending registration.
// @Tags registrations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body ConfirmRazorpayRequest true "Checkout result"
// @Success 200 {object} controllers.ConfirmSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request, signature_invalid, invalid_payment_method"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 402 {object} helpers.APIResponse "error.code: payment_not_confirmed"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 502 {object} helpers.APIResponse "error.code: gateway_unavailable"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /registrations/confirm/razorpay [post]
func (c *RegistrationController) ConfirmRazorpay(w http.ResponseWriter, r *http.Request) {
	var req ConfirmRazorpayRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	userID, ok := currentUser(w, r, req.UserID)
	if !ok {
		return
	}
	out, err := c.Service.ConfirmRazorpay(r.Context(), domain.RazorpayConfirmInput{
		RegistrationID: req.RegistrationID,
		EventID:        req.EventID,
		UserID:         userID,
		OrderID:        req.OrderID,
		PaymentID:      req.PaymentID,
		Signature:      req.Signature,
	})
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, confirmResponse(out))
}

// UnregisterRequest is the request body for POST /registrations/unregister.
type UnregisterRequest struct {
	UserID  string          `json:"user_id,omitempty"`
	EventID string          `json:"event_id" validate:"required,uuid"`
	Fee     decimal.Decimal `json:"fee"`
}

// Validate implements helpers.Validator.
func (r *UnregisterRequest) Validate() []string {
	errs := helpers.StructErrors(r)
	if r.Fee.IsNegative() {
		errs = append(errs, "fee must not be negative")
	}
	return errs
}

// UnregisterResponse is the data payload of POST /registrations/unregister.
type UnregisterResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	RefundPending bool   `json:"refund_pending"`
}

// UnregisterSuccessResponse is the success response envelope for POST /registrations/unregister (200).
type UnregisterSuccessResponse struct {
	Data  UnregisterResponse `json:"data"`
	Error *helpers.APIError  `json:"error"`
}

// Unregister godoc
// @Summary Cancel the current user's registration
// @Description Removes the registration and releases its seat. Paid registrations report refund_pending.
// @Tags registrations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body UnregisterRequest true "Event to leave"
// @Success 200 {object} controllers.UnregisterSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_registered"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /registrations/unregister [post]
func (c *RegistrationController) Unregister(w http.ResponseWriter, r *http.Request) {
	var req UnregisterRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	userID, ok := currentUser(w, r, req.UserID)
	if !ok {
		return
	}
	out, err := c.Service.Unregister(r.Context(), userID, req.EventID, req.Fee)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, UnregisterResponse{
		Success:       true,
		Message:       out.Message,
		RefundPending: out.RefundPending,
	})
}

// ListRegistrationsResponse is the data payload of GET /registrations.
type ListRegistrationsResponse struct {
	Items      []*domain.Registration `json:"items"`
	Pagination helpers.PaginationMeta `json:"pagination"`
}

// ListRegistrationsSuccessResponse is the success response envelope for GET /registrations (200).
type ListRegistrationsSuccessResponse struct {
	Data  ListRegistrationsResponse `json:"data"`
	Error *helpers.APIError         `json:"error"`
}

// ListRegistrations godoc
// @Summary List registrations
// @Description Newest first. Without page or page_size every registration is returned in one page.
// @Tags registrations
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page (1-based)"
// @Param page_size query int false "Page size (max 100)"
// @Success 200 {object} controllers.ListRegistrationsSuccessResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /registrations [get]
func (c *RegistrationController) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r, ""); !ok {
		return
	}
	page := helpers.ParsePagination(r)
	out, err := c.Service.ListRegistrations(r.Context(), page)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, ListRegistrationsResponse{
		Items:      out.Items,
		Pagination: helpers.NewPaginationMeta(page, out.Total),
	})
}

// ListMyRegistrationsSuccessResponse is the success response envelope for GET /attendee/registrations (200).
type ListMyRegistrationsSuccessResponse struct {
	Data  []*domain.Registration `json:"data"`
	Error *helpers.APIError      `json:"error"`
}

// ListMyRegistrations godoc
// @Summary List the current user's registrations
// @Tags registrations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} controllers.ListMyRegistrationsSuccessResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /attendee/registrations [get]
func (c *RegistrationController) ListMyRegistrations(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, "")
	if !ok {
		return
	}
	regs, err := c.Service.ListMyRegistrations(r.Context(), userID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, regs)
}

package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nutriplanhq/nutriplan-backend/api/middleware"
	"github.com/nutriplanhq/nutriplan-backend/api/responses"
	"github.com/nutriplanhq/nutriplan-backend/api/validators"
	"github.com/nutriplanhq/nutriplan-backend/internal/checkout"
	"github.com/nutriplanhq/nutriplan-backend/pkg/db/models"
	"github.com/nutriplanhq/nutriplan-backend/pkg/enums"
	pkgerrors "github.com/nutriplanhq/nutriplan-backend/pkg/errors"
	"github.com/nutriplanhq/nutriplan-backend/pkg/logger"
)

type checkoutUserSource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type checkoutRequest struct {
	Plan string `json:"plan" validate:"required,oneof=weekly monthly"`
}

// CheckoutController serves the purchase endpoints for both gateways.
type CheckoutController struct {
	svc   *checkout.Service
	users checkoutUserSource
	logg  *logger.Logger
}

func NewCheckoutController(svc *checkout.Service, users checkoutUserSource, logg *logger.Logger) (*CheckoutController, error) {
	if svc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "checkout service is required")
	}
	if users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user source is required")
	}
	return &CheckoutController{svc: svc, users: users, logg: logg}, nil
}

// StripeCheckout opens a hosted Stripe subscription checkout session.
func (c *CheckoutController) StripeCheckout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		user, plan, err := c.resolve(ctx, r)
		if err != nil {
			responses.WriteError(ctx, c.logg, w, err)
			return
		}
		result, err := c.svc.StripeCheckout(ctx, user, plan)
		if err != nil {
			responses.WriteError(ctx, c.logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// MercadoPagoPreference starts a one-time Mercado Pago purchase.
func (c *CheckoutController) MercadoPagoPreference() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		user, plan, err := c.resolve(ctx, r)
		if err != nil {
			responses.WriteError(ctx, c.logg, w, err)
			return
		}
		result, err := c.svc.CreatePreference(ctx, user, plan)
		if err != nil {
			responses.WriteError(ctx, c.logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// MercadoPagoSubscription starts a recurring Mercado Pago preapproval.
func (c *CheckoutController) MercadoPagoSubscription() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		user, plan, err := c.resolve(ctx, r)
		if err != nil {
			responses.WriteError(ctx, c.logg, w, err)
			return
		}
		result, err := c.svc.CreateSubscription(ctx, user, plan)
		if err != nil {
			responses.WriteError(ctx, c.logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// CheckMercadoPagoPayment polls the pending purchase and promotes the
// subscription if the payment cleared. Clients call it from the back URL
// because Mercado Pago webhooks can lag the redirect.
func (c *CheckoutController) CheckMercadoPagoPayment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID := middleware.UserUUIDFromContext(ctx)
		if userID == uuid.Nil {
			responses.WriteError(ctx, c.logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		result, err := c.svc.CheckPayment(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, c.logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// resolve authenticates the request, parses the plan body and loads the
// user row. Identity lives with the auth provider, so a missing row is
// answered from the token claims instead of failing the purchase.
func (c *CheckoutController) resolve(ctx context.Context, r *http.Request) (*models.User, enums.Plan, error) {
	userID := middleware.UserUUIDFromContext(ctx)
	if userID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}

	var req checkoutRequest
	if err := validators.DecodeJSONBody(r, &req); err != nil {
		return nil, "", err
	}
	plan, err := enums.ParsePlan(req.Plan)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid plan")
	}

	user, err := c.users.FindByID(ctx, userID)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			return &models.User{ID: userID, Email: middleware.EmailFromContext(ctx)}, plan, nil
		}
		return nil, "", err
	}
	return user, plan, nil
}

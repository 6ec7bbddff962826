package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-ordering/internal/middleware"
	"github.com/iliyamo/restaurant-ordering/internal/model"
	"github.com/iliyamo/restaurant-ordering/internal/repository"
	"github.com/iliyamo/restaurant-ordering/internal/service"
)

// UserHandler serves /users: sign-in, self-service, shifts and user
// administration.
type UserHandler struct {
	Accounts *service.Accounts
}

// NewUserHandler returns the handler for /api/v1/users.
func NewUserHandler(a *service.Accounts) *UserHandler {
	return &UserHandler{Accounts: a}
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type passwordReq struct {
	PasswordCurrent string `json:"passwordCurrent"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// Signup: create a user and return tokens immediately.
func (h *UserHandler) Signup(c echo.Context) error {
	var req service.SignupInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	s, err := h.Accounts.Signup(ctx, req)
	if err != nil {
		return err
	}
	return created(c, s)
}

// Login: verify credentials and return a new token pair.
func (h *UserHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	s, err := h.Accounts.Login(ctx, req.Email, req.Password)
	if err != nil {
		return err
	}
	return success(c, s)
}

// Refresh rotates the refresh token.
func (h *UserHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	s, err := h.Accounts.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return err
	}
	return success(c, s)
}

// RefreshAccess issues a new access token and keeps the refresh token.
func (h *UserHandler) RefreshAccess(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	s, err := h.Accounts.RefreshAccess(ctx, req.RefreshToken)
	if err != nil {
		return err
	}
	return success(c, s)
}

// Logout: revoke all refresh tokens of the current user.
func (h *UserHandler) Logout(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Accounts.Logout(ctx, middleware.Principal(c)); err != nil {
		return err
	}
	return message(c, "logged out")
}

// ForgotPassword: issue a reset token for the email, if the account exists.
func (h *UserHandler) ForgotPassword(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	raw, err := h.Accounts.ForgotPassword(ctx, req.Email)
	if err != nil {
		return err
	}
	data := map[string]any{"message": "Token sent to email!"}
	if raw != "" {
		data["reset_token"] = raw
	}
	return success(c, data)
}

// ResetPassword: set a new password with the token from ForgotPassword and log in.
func (h *UserHandler) ResetPassword(c echo.Context) error {
	var req passwordReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	s, err := h.Accounts.ResetPassword(ctx, c.Param("token"), req.Password, req.PasswordConfirm)
	if err != nil {
		return err
	}
	return success(c, s)
}

// UpdateMyPassword: change the password after checking the current one.
func (h *UserHandler) UpdateMyPassword(c echo.Context) error {
	var req passwordReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	s, err := h.Accounts.UpdateMyPassword(ctx, middleware.Principal(c), req.PasswordCurrent, req.Password, req.PasswordConfirm)
	if err != nil {
		return err
	}
	return success(c, s)
}

// Me: the current user.
func (h *UserHandler) Me(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.Accounts.Me(ctx, middleware.Principal(c))
	if err != nil {
		return err
	}
	return success(c, u)
}

// UpdateMe: change name or email of the current user.
func (h *UserHandler) UpdateMe(c echo.Context) error {
	var req service.ProfileInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.Accounts.UpdateMe(ctx, middleware.Principal(c), req)
	if err != nil {
		return err
	}
	return success(c, u)
}

// DeleteMe: deactivate the current user.
func (h *UserHandler) DeleteMe(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Accounts.DeleteMe(ctx, middleware.Principal(c)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// StartShift: open a shift for the current waiter.
func (h *UserHandler) StartShift(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.Accounts.StartShift(ctx, middleware.Principal(c))
	if err != nil {
		return err
	}
	return success(c, u)
}

// EndShift: close the open shift and return it.
func (h *UserHandler) EndShift(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	s, err := h.Accounts.EndShift(ctx, middleware.Principal(c))
	if err != nil {
		return err
	}
	return success(c, s)
}

// ----- administration -----

// List handles GET /api/v1/users for admins, filtered by restaurant_id and role.
func (h *UserHandler) List(c echo.Context) error {
	pg, err := pagination(c)
	if err != nil {
		return err
	}
	rid, err := queryID(c, "restaurant_id")
	if err != nil {
		return err
	}
	q := repository.UserQuery{RestaurantID: rid, Role: model.Role(c.QueryParam("role")), Pagination: pg}
	ctx, cancel := reqCtx(c)
	defer cancel()
	page, err := h.Accounts.ListUsers(ctx, middleware.Principal(c), q)
	if err != nil {
		return err
	}
	return success(c, page)
}

// Create handles POST /api/v1/users.
func (h *UserHandler) Create(c echo.Context) error {
	var req service.UserInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.Accounts.CreateUser(ctx, middleware.Principal(c), req)
	if err != nil {
		return err
	}
	return created(c, u)
}

// Get handles GET /api/v1/users/:id.
func (h *UserHandler) Get(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.Accounts.GetUser(ctx, middleware.Principal(c), id)
	if err != nil {
		return err
	}
	return success(c, u)
}

// Update handles PATCH /api/v1/users/:id.
func (h *UserHandler) Update(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req service.UserInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.Accounts.UpdateUser(ctx, middleware.Principal(c), id, req)
	if err != nil {
		return err
	}
	return success(c, u)
}

// Delete handles DELETE /api/v1/users/:id and answers 204.
func (h *UserHandler) Delete(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Accounts.DeleteUser(ctx, middleware.Principal(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

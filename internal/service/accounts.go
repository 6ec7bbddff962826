package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/restaurant-ordering/internal/apperr"
	"github.com/iliyamo/restaurant-ordering/internal/model"
	"github.com/iliyamo/restaurant-ordering/internal/policy"
	"github.com/iliyamo/restaurant-ordering/internal/repository"
	"github.com/iliyamo/restaurant-ordering/internal/utils"
)

// ResetTokenTTL is how long a password reset token stays valid.
const ResetTokenTTL = 10 * time.Minute

// AccountsConfig holds token lifetimes and hashing cost.
type AccountsConfig struct {
	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int
	// ExposeResetToken returns the raw reset token to the caller. Outbound
	// email is not built, so non-prod environments hand it back directly.
	ExposeResetToken bool
}

// Accounts covers sign-in, self-service, user administration and waiter
// shifts.
type Accounts struct {
	cfg    AccountsConfig
	users  UserStore
	tokens TokenStore
	now    clock
}

// NewAccounts returns the account service.
func NewAccounts(cfg AccountsConfig, users UserStore, tokens TokenStore) *Accounts {
	return &Accounts{cfg: cfg, users: users, tokens: tokens, now: utcNow}
}

// TokenPart is one issued token with its expiry.
type TokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

// Session is returned by every operation issuing credentials.
type Session struct {
	User    *model.User `json:"user"`
	Access  TokenPart   `json:"access"`
	Refresh *TokenPart  `json:"refresh,omitempty"`
}

var errBadCredentials = apperr.Unauthorized("Incorrect email or password")

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func validEmail(s string) bool {
	at := strings.IndexByte(s, '@')
	return at > 0 && at < len(s)-1 && !strings.ContainsAny(s, " \t")
}

func (s *Accounts) hash(plain string) (string, error) {
	if err := utils.CheckPassword(plain); err != nil {
		return "", apperr.Invalid("Password must have at least %d characters", utils.MinPasswordLength)
	}
	h, err := utils.HashPassword(plain, s.cfg.BcryptCost)
	if err != nil {
		return "", apperr.Internal(err, "Something went very wrong!")
	}
	return h, nil
}

// issue signs an access token and, when withRefresh, stores a new refresh
// token.
func (s *Accounts) issue(ctx context.Context, u *model.User, withRefresh bool) (*Session, error) {
	access, err := utils.NewAccessToken(s.cfg.JWTSecret, u.ID, string(u.Role), s.cfg.AccessTTLMin)
	if err != nil {
		return nil, apperr.Internal(err, "Could not issue access token")
	}
	out := &Session{User: u, Access: TokenPart{Token: access.Token, Expires: access.Exp}}
	if !withRefresh {
		return out, nil
	}
	refresh, err := utils.NewRefreshToken(s.cfg.RefreshTTLDays)
	if err != nil {
		return nil, apperr.Internal(err, "Could not issue refresh token")
	}
	if err := s.tokens.StoreRefresh(ctx, u.ID, utils.HashToken(refresh.Raw), refresh.Exp); err != nil {
		return nil, apperr.Internal(err, "Could not store refresh token")
	}
	out.Refresh = &TokenPart{Token: refresh.Raw, Expires: refresh.Exp}
	return out, nil
}

// SignupInput is the body of signup. New accounts get the plain user role.
type SignupInput struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// Signup registers a plain user account and signs it in.
func (s *Accounts) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	email := normalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	if name == "" || !validEmail(email) {
		return nil, apperr.Invalid("Please provide a name and a valid email")
	}
	if in.PasswordConfirm != "" && in.PasswordConfirm != in.Password {
		return nil, apperr.Invalid("Passwords are not the same")
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}
	u := &model.User{Name: name, Email: email, PasswordHash: hash, Role: model.RoleUser, Active: true}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.Duplicate("Email already in use")
		}
		return nil, storeErr(err, "user")
	}
	return s.issue(ctx, u, true)
}

// Login checks the credentials of an active user and issues a token pair.
func (s *Accounts) Login(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.Invalid("Please provide email and password!")
	}
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, storeErr(err, "user")
	}
	if !u.Active || !utils.VerifyPassword(u.PasswordHash, password) {
		return nil, errBadCredentials
	}
	return s.issue(ctx, u, true)
}

func (s *Accounts) refreshUser(ctx context.Context, raw string) (*model.User, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, "", apperr.Invalid("refresh_token required")
	}
	hash := utils.HashToken(raw)
	uid, err := s.tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", apperr.Unauthorized("Invalid or expired refresh token")
		}
		return nil, "", storeErr(err, "token")
	}
	u, err := s.users.GetByID(ctx, uid)
	if err != nil || !u.Active {
		return nil, "", apperr.Unauthorized("Invalid or expired refresh token")
	}
	return u, hash, nil
}

// Refresh rotates the refresh token: the presented one is revoked and a new
// pair is issued.
func (s *Accounts) Refresh(ctx context.Context, raw string) (*Session, error) {
	u, hash, err := s.refreshUser(ctx, raw)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.RevokeByHash(ctx, hash); err != nil {
		return nil, storeErr(err, "token")
	}
	return s.issue(ctx, u, true)
}

// RefreshAccess issues a new access token and keeps the refresh token.
func (s *Accounts) RefreshAccess(ctx context.Context, raw string) (*Session, error) {
	u, _, err := s.refreshUser(ctx, raw)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, u, false)
}

// Logout revokes every refresh token of the user.
func (s *Accounts) Logout(ctx context.Context, p *policy.Principal) error {
	if err := authenticated(p); err != nil {
		return err
	}
	return storeErr(s.tokens.RevokeAllForUser(ctx, p.UserID), "token")
}

// Authenticate resolves a bearer token to its principal. Inactive users and
// tokens issued before the last password change are refused.
func (s *Accounts) Authenticate(ctx context.Context, raw string) (*policy.Principal, *model.User, error) {
	claims, err := utils.ParseAccessToken(s.cfg.JWTSecret, raw)
	if err != nil {
		return nil, nil, apperr.Unauthorized("Invalid token. Please log in again!")
	}
	uid, _ := claims.UserID()
	u, err := s.users.GetByID(ctx, uid)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, apperr.Unauthorized("The user belonging to this token no longer exists.")
	}
	if err != nil {
		return nil, nil, storeErr(err, "user")
	}
	if !u.Active {
		return nil, nil, apperr.Unauthorized("The user belonging to this token no longer exists.")
	}
	if u.PasswordChangedAfter(claims.IssuedAtTime()) {
		return nil, nil, apperr.Unauthorized("User recently changed password! Please log in again.")
	}
	return &policy.Principal{UserID: u.ID, Role: u.Role, RestaurantID: u.RestaurantID}, u, nil
}

// ForgotPassword stores a reset token hash on the user. The raw token is
// returned only when ExposeResetToken is set.
func (s *Accounts) ForgotPassword(ctx context.Context, email string) (string, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return "", apperr.NotFound("There is no user with that email address.")
	}
	if err != nil {
		return "", storeErr(err, "user")
	}
	raw, hash, err := utils.NewResetToken()
	if err != nil {
		return "", apperr.Internal(err, "Could not create reset token")
	}
	exp := s.now().Add(ResetTokenTTL)
	u.PasswordResetHash, u.PasswordResetExpiry = &hash, &exp
	if err := s.users.Update(ctx, u); err != nil {
		return "", storeErr(err, "user")
	}
	log.Infof("password reset requested for user %d", u.ID)
	if !s.cfg.ExposeResetToken {
		return "", nil
	}
	return raw, nil
}

// setPassword stores a new hash. changedAt lags one second so that a token
// issued right after the change still passes PasswordChangedAfter.
func (s *Accounts) setPassword(ctx context.Context, u *model.User, plain string) error {
	hash, err := s.hash(plain)
	if err != nil {
		return err
	}
	changed := s.now().Add(-time.Second)
	u.PasswordHash = hash
	u.PasswordChangedAt = &changed
	u.PasswordResetHash, u.PasswordResetExpiry = nil, nil
	if err := s.users.Update(ctx, u); err != nil {
		return storeErr(err, "user")
	}
	return storeErr(s.tokens.RevokeAllForUser(ctx, u.ID), "token")
}

// ResetPassword consumes an unexpired reset token and sets a new password.
func (s *Accounts) ResetPassword(ctx context.Context, rawToken, password, confirm string) (*Session, error) {
	u, err := s.users.GetByResetHash(ctx, utils.HashToken(strings.TrimSpace(rawToken)), s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Invalid("Token is invalid or has expired")
	}
	if err != nil {
		return nil, storeErr(err, "user")
	}
	if confirm != "" && confirm != password {
		return nil, apperr.Invalid("Passwords are not the same")
	}
	if err := s.setPassword(ctx, u, password); err != nil {
		return nil, err
	}
	return s.issue(ctx, u, true)
}

// UpdateMyPassword replaces the password after verifying the current one and revokes older sessions.
func (s *Accounts) UpdateMyPassword(ctx context.Context, p *policy.Principal, current, next, confirm string) (*Session, error) {
	u, err := s.Me(ctx, p)
	if err != nil {
		return nil, err
	}
	if !utils.VerifyPassword(u.PasswordHash, current) {
		return nil, apperr.Unauthorized("Your current password is wrong.")
	}
	if confirm != "" && confirm != next {
		return nil, apperr.Invalid("Passwords are not the same")
	}
	if err := s.setPassword(ctx, u, next); err != nil {
		return nil, err
	}
	return s.issue(ctx, u, true)
}

// Me returns the current user.
func (s *Accounts) Me(ctx context.Context, p *policy.Principal) (*model.User, error) {
	if err := authenticated(p); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		return nil, storeErr(err, "user")
	}
	return u, nil
}

// ProfileInput carries the self-service profile fields.
type ProfileInput struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// UpdateMe changes name and email only; passwords go through
// UpdateMyPassword.
func (s *Accounts) UpdateMe(ctx context.Context, p *policy.Principal, in ProfileInput) (*model.User, error) {
	if in.Password != nil {
		return nil, apperr.Invalid("This route is not for password updates. Please use /updateMyPassword.")
	}
	u, err := s.Me(ctx, p)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		if n := strings.TrimSpace(*in.Name); n != "" {
			u.Name = n
		}
	}
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		if !validEmail(email) {
			return nil, apperr.Invalid("Please provide a valid email")
		}
		u.Email = email
	}
	if err := s.users.Update(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.Duplicate("Email already in use")
		}
		return nil, storeErr(err, "user")
	}
	return u, nil
}

// DeleteMe deactivates the account and revokes its refresh tokens.
func (s *Accounts) DeleteMe(ctx context.Context, p *policy.Principal) error {
	u, err := s.Me(ctx, p)
	if err != nil {
		return err
	}
	u.Active = false
	if err := s.users.Update(ctx, u); err != nil {
		return storeErr(err, "user")
	}
	return storeErr(s.tokens.RevokeAllForUser(ctx, u.ID), "token")
}

// Shifts

func (s *Accounts) waiter(ctx context.Context, p *policy.Principal) (*model.User, error) {
	u, err := s.Me(ctx, p)
	if err != nil {
		return nil, err
	}
	if u.Role != model.RoleWaiter {
		return nil, apperr.Forbidden("Only waiters have shifts")
	}
	return u, nil
}

// StartShift opens a shift for the calling waiter. Only one shift may be open.
func (s *Accounts) StartShift(ctx context.Context, p *policy.Principal) (*model.User, error) {
	u, err := s.waiter(ctx, p)
	if err != nil {
		return nil, err
	}
	if u.ShiftStartedAt != nil {
		return nil, apperr.Rejected("A shift is already in progress")
	}
	now := s.now()
	u.ShiftStartedAt = &now
	if err := s.users.Update(ctx, u); err != nil {
		return nil, storeErr(err, "user")
	}
	return u, nil
}

// EndShift closes the open shift and returns the closed record.
func (s *Accounts) EndShift(ctx context.Context, p *policy.Principal) (*model.Shift, error) {
	u, err := s.waiter(ctx, p)
	if err != nil {
		return nil, err
	}
	if u.ShiftStartedAt == nil {
		return nil, apperr.Rejected("There is no shift in progress")
	}
	shift := model.NewShift(*u.ShiftStartedAt, s.now())
	if err := s.users.CloseShift(ctx, u.ID, shift); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Rejected("There is no shift in progress")
		}
		return nil, storeErr(err, "user")
	}
	return &shift, nil
}

// User administration

// UserInput is the body of admin user create and update. Nil fields are left unchanged.
type UserInput struct {
	Name         *string `json:"name"`
	Email        *string `json:"email"`
	Password     *string `json:"password"`
	Role         *string `json:"role"`
	RestaurantID *uint64 `json:"restaurant_id"`
	Active       *bool   `json:"active"`
}

// manageUsers admits super-admins everywhere and restaurant admins inside
// their restaurant.
func manageUsers(p *policy.Principal, restaurantID *uint64) error {
	if err := authenticated(p); err != nil {
		return err
	}
	if p.Role == model.RoleSuperAdmin {
		return nil
	}
	var rid uint64
	if restaurantID != nil {
		rid = *restaurantID
	}
	if rid == 0 && p.RestaurantID != nil {
		return apperr.Forbidden("You can only manage users of your own restaurant")
	}
	return policy.Authorize(p, policy.ManageRestaurant, policy.Restaurant(rid))
}

func (s *Accounts) applyUser(u *model.User, in UserInput, p *policy.Principal) error {
	if in.Name != nil {
		u.Name = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		u.Email = normalizeEmail(*in.Email)
	}
	if in.Role != nil {
		r := model.Role(strings.TrimSpace(*in.Role))
		if !r.Valid() {
			return apperr.Invalid("Invalid role %q", *in.Role)
		}
		if p.Role != model.RoleSuperAdmin && r != model.RoleWaiter {
			return apperr.Forbidden("Restaurant admins can only manage waiters")
		}
		u.Role = r
	}
	if in.RestaurantID != nil {
		u.RestaurantID = in.RestaurantID
		if *in.RestaurantID == 0 {
			u.RestaurantID = nil
		}
	}
	if in.Active != nil {
		u.Active = *in.Active
	}
	if in.Password != nil {
		hash, err := s.hash(*in.Password)
		if err != nil {
			return err
		}
		changed := s.now().Add(-time.Second)
		u.PasswordHash, u.PasswordChangedAt = hash, &changed
	}
	if u.Name == "" || !validEmail(u.Email) {
		return apperr.Invalid("Please provide a name and a valid email")
	}
	return nil
}

// CreateUser adds a user. Restaurant-admins may only add waiters.
func (s *Accounts) CreateUser(ctx context.Context, p *policy.Principal, in UserInput) (*model.User, error) {
	if in.RestaurantID == nil && p != nil && p.Role == model.RoleRestaurantAdmin {
		in.RestaurantID = p.RestaurantID
	}
	if err := manageUsers(p, in.RestaurantID); err != nil {
		return nil, err
	}
	if in.Password == nil {
		return nil, apperr.Invalid("A password is required")
	}
	u := &model.User{Role: model.RoleWaiter, Active: true}
	if p.Role == model.RoleSuperAdmin {
		u.Role = model.RoleUser
	}
	if err := s.applyUser(u, in, p); err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.Duplicate("Email already in use")
		}
		return nil, storeErr(err, "user")
	}
	return u, nil
}

func (s *Accounts) loadUser(ctx context.Context, p *policy.Principal, id uint64) (*model.User, error) {
	if err := authenticated(p); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "user")
	}
	if err := manageUsers(p, u.RestaurantID); err != nil {
		return nil, err
	}
	if p.Role != model.RoleSuperAdmin && u.Role != model.RoleWaiter {
		return nil, apperr.Forbidden("Restaurant admins can only manage waiters")
	}
	return u, nil
}

// GetUser returns a user visible to the caller.
func (s *Accounts) GetUser(ctx context.Context, p *policy.Principal, id uint64) (*model.User, error) {
	return s.loadUser(ctx, p, id)
}

// ListUsers scopes restaurant admins to their own staff.
func (s *Accounts) ListUsers(ctx context.Context, p *policy.Principal, q repository.UserQuery) (Page[*model.User], error) {
	if err := authenticated(p); err != nil {
		return Page[*model.User]{}, err
	}
	if p.Role != model.RoleSuperAdmin {
		q.RestaurantID = policy.ScopeRestaurant(p, q.RestaurantID)
		if err := manageUsers(p, &q.RestaurantID); err != nil {
			return Page[*model.User]{}, err
		}
	}
	items, total, err := s.users.List(ctx, q)
	if err != nil {
		return Page[*model.User]{}, storeErr(err, "user")
	}
	return newPage(items, total, q.Pagination), nil
}

// UpdateUser applies in to a user visible to the caller.
func (s *Accounts) UpdateUser(ctx context.Context, p *policy.Principal, id uint64, in UserInput) (*model.User, error) {
	u, err := s.loadUser(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if p.Role != model.RoleSuperAdmin && in.RestaurantID != nil && !p.BoundTo(*in.RestaurantID) {
		return nil, apperr.Forbidden("You can only manage users of your own restaurant")
	}
	if err := s.applyUser(u, in, p); err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.Duplicate("Email already in use")
		}
		return nil, storeErr(err, "user")
	}
	return u, nil
}

// DeleteUser removes a user visible to the caller.
func (s *Accounts) DeleteUser(ctx context.Context, p *policy.Principal, id uint64) error {
	u, err := s.loadUser(ctx, p, id)
	if err != nil {
		return err
	}
	if u.ID == p.UserID {
		return apperr.Rejected("Use /deleteMe to deactivate your own account")
	}
	return storeErr(s.users.Delete(ctx, u.ID), "user")
}

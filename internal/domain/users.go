package domain

import (
	"slices"
	"time"
)

type Permission string

const (
	PermManageUsers      Permission = "manage_users"
	PermViewStock        Permission = "view_stock"
	PermChangeStock      Permission = "change_stock"
	PermMakeSales        Permission = "make_sales"
	PermRegisterProducts Permission = "register_products"
	PermViewReports      Permission = "view_reports"
	PermManagePreSales   Permission = "manage_presales"
	PermPlaceOrders      Permission = "place_orders"
)

type UserKind string

const (
	KindAdmin       UserKind = "admin"
	KindHR          UserKind = "hr"
	KindCashier     UserKind = "cashier"
	KindStockkeeper UserKind = "stockkeeper"
	KindCataloguer  UserKind = "cataloguer"
	KindCustomer    UserKind = "customer"
)

var kindPermissions = map[UserKind][]Permission{
	KindAdmin: {
		PermManageUsers, PermViewStock, PermChangeStock, PermMakeSales,
		PermRegisterProducts, PermViewReports, PermManagePreSales,
	},
	KindHR:          {PermViewStock, PermViewReports},
	KindCashier:     {PermMakeSales},
	KindStockkeeper: {PermChangeStock},
	KindCataloguer:  {PermRegisterProducts},
	KindCustomer:    {PermPlaceOrders},
}

// PermissionsFor returns the default permission set of a user kind.
func PermissionsFor(kind UserKind) []Permission {
	return slices.Clone(kindPermissions[kind])
}

func (k UserKind) Valid() bool {
	_, ok := kindPermissions[k]
	return ok
}

type User struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	Email        string       `json:"email"`
	TaxID        string       `json:"tax_id,omitempty"`
	Phone        string       `json:"phone,omitempty"`
	PasswordHash string       `json:"password_hash"`
	Kind         UserKind     `json:"kind"`
	Permissions  []Permission `json:"permissions"`
	Protected    bool         `json:"protected,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// UserView is the user shape returned to API callers.
type UserView struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Email       string       `json:"email"`
	Kind        UserKind     `json:"kind"`
	Permissions []Permission `json:"permissions"`
	CreatedAt   time.Time    `json:"created_at"`
}

func (u User) View() UserView {
	return UserView{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Kind:        u.Kind,
		Permissions: u.Permissions,
		CreatedAt:   u.CreatedAt,
	}
}

// Actor is the authenticated caller attached to a request.
type Actor struct {
	ID          int64
	Name        string
	Email       string
	Kind        UserKind
	Permissions []Permission
}

// Can reports whether the actor holds perm. Admins hold everything and
// customers are limited to placing orders.
func (a Actor) Can(perm Permission) bool {
	switch a.Kind {
	case KindAdmin:
		return true
	case KindCustomer:
		return perm == PermPlaceOrders
	}
	return slices.Contains(a.Permissions, perm)
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string   `json:"access_token"`
	User        UserView `json:"user"`
	ExpiresAt   string   `json:"expires_at"`
}

type UserCreateRequest struct {
	Name     string   `json:"name" validate:"required"`
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,min=6"`
	Kind     UserKind `json:"kind" validate:"required"`
}

type CustomerRegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	TaxID    string `json:"tax_id" validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
	Phone    string `json:"phone"`
}

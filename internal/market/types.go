package market

import (
	"encoding/json"
	"fmt"

	"github.com/bazarhq/bazar/internal/store"
)

// Collection file layout relative to the data root. One file per logical
// collection group.
const (
	UsersFile    = "users/users.json"
	ProductsFile = "listings/products.json"
	ServicesFile = "listings/services.json"
	OrdersFile   = "orders/orders.json"
	ImagesFile   = "images/images.json"
	SettingsFile = "system/settings.json"

	usersKey    = "users"
	productsKey = "products"
	servicesKey = "services"
	ordersKey   = "orders"
	imagesKey   = "images"
)

// User account types
const (
	UserTypeBuyer  = "buyer"
	UserTypeSeller = "seller"
	UserTypeBoth   = "both"
	UserTypeAdmin  = "admin"
)

// Account statuses
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

// Listing types
const (
	ListingTypeProduct = "product"
	ListingTypeService = "service"
)

// Order statuses
const (
	OrderStatusPending    = "pending"
	OrderStatusApproved   = "approved"
	OrderStatusInProgress = "in_progress"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
)

// Location is a stored coordinate with an optional display address.
type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

// User is a marketplace account.
type User struct {
	ID            string   `json:"id,omitempty"`
	Username      string   `json:"username"`
	Type          string   `json:"type"`
	Email         string   `json:"email,omitempty"`
	Phone         string   `json:"phone,omitempty"`
	Location      Location `json:"location"`
	Rating        float64  `json:"rating"`
	TotalRatings  int      `json:"total_ratings"`
	Status        string   `json:"status"`
	LastActive    string   `json:"last_active,omitempty"`
	SuspendedAt   string   `json:"suspended_at,omitempty"`
	SuspendReason string   `json:"suspend_reason,omitempty"`
	CreatedAt     string   `json:"created_at,omitempty"`
	UpdatedAt     string   `json:"updated_at,omitempty"`
}

// IsAdmin reports whether the user has the admin type.
func (u *User) IsAdmin() bool {
	return u.Type == UserTypeAdmin
}

// IsSeller reports whether the user may create listings.
func (u *User) IsSeller() bool {
	switch u.Type {
	case UserTypeSeller, UserTypeBoth, UserTypeAdmin:
		return true
	}
	return false
}

// IsBuyer reports whether the user may place orders.
func (u *User) IsBuyer() bool {
	switch u.Type {
	case UserTypeBuyer, UserTypeBoth, UserTypeAdmin:
		return true
	}
	return false
}

// ProductDetails holds product-specific listing fields.
type ProductDetails struct {
	Condition string `json:"condition"`
	Brand     string `json:"brand,omitempty"`
	Model     string `json:"model,omitempty"`
	Warranty  bool   `json:"warranty"`
	Shipping  bool   `json:"shipping"`
	Pickup    bool   `json:"pickup"`
}

// ServiceDetails holds service-specific listing fields.
type ServiceDetails struct {
	Duration       string   `json:"duration,omitempty"`
	Availability   []string `json:"availability,omitempty"`
	ServiceArea    []string `json:"service_area,omitempty"`
	Certifications []string `json:"certifications,omitempty"`
}

// Listing is a product or service offer.
type Listing struct {
	ID             string          `json:"id,omitempty"`
	UserID         string          `json:"user_id"`
	Type           string          `json:"type"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Price          float64         `json:"price"`
	Currency       string          `json:"currency"`
	CategoryID     string          `json:"category_id"`
	Tags           []string        `json:"tags"`
	Location       Location        `json:"location"`
	Images         []string        `json:"images"`
	Status         string          `json:"status"`
	Featured       bool            `json:"featured"`
	Views          int             `json:"views"`
	Favorites      int             `json:"favorites"`
	Rating         float64         `json:"rating"`
	TotalRatings   int             `json:"total_ratings"`
	Distance       *float64        `json:"distance,omitempty"`
	ProductDetails *ProductDetails `json:"product_details,omitempty"`
	ServiceDetails *ServiceDetails `json:"service_details,omitempty"`
	CreatedAt      string          `json:"created_at,omitempty"`
	UpdatedAt      string          `json:"updated_at,omitempty"`
}

// StatusChange is one entry of an order's status history.
type StatusChange struct {
	Status    string `json:"status"`
	ChangedBy string `json:"changed_by"`
	ChangedAt string `json:"changed_at"`
	Notes     string `json:"notes,omitempty"`
}

// OrderServiceDetails holds scheduling fields for service orders.
type OrderServiceDetails struct {
	ServiceDate     string `json:"service_date,omitempty"`
	ServiceTime     string `json:"service_time,omitempty"`
	ServiceDuration string `json:"service_duration,omitempty"`
	ServiceLocation string `json:"service_location,omitempty"`
}

// Order is a purchase of a listing. Listing fields are snapshotted at
// creation time so later listing edits do not rewrite order history.
type Order struct {
	ID             string               `json:"id,omitempty"`
	BuyerID        string               `json:"buyer_id"`
	SellerID       string               `json:"seller_id"`
	ListingID      string               `json:"listing_id"`
	ListingType    string               `json:"listing_type"`
	ListingTitle   string               `json:"listing_title"`
	Quantity       int                  `json:"quantity"`
	UnitPrice      float64              `json:"unit_price"`
	TotalPrice     float64              `json:"total_price"`
	Currency       string               `json:"currency"`
	Status         string               `json:"status"`
	PaymentStatus  string               `json:"payment_status"`
	PaymentMethod  string               `json:"payment_method"`
	DeliveryMethod string               `json:"delivery_method"`
	DeliveryAddr   string               `json:"delivery_address,omitempty"`
	Notes          string               `json:"notes,omitempty"`
	CancelReason   string               `json:"cancel_reason,omitempty"`
	StatusHistory  []StatusChange       `json:"status_history,omitempty"`
	ServiceDetails *OrderServiceDetails `json:"service_details,omitempty"`
	CreatedAt      string               `json:"created_at,omitempty"`
	UpdatedAt      string               `json:"updated_at,omitempty"`
}

// toRecord converts a typed entity into an untyped store record.
func toRecord(v any) (store.Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}

	var rec store.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

// fromRecord converts an untyped store record into a typed entity.
func fromRecord[T any](rec store.Record) (*T, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}

	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return out, nil
}

func fromRecords[T any](recs []store.Record) ([]*T, error) {
	out := make([]*T, 0, len(recs))
	for _, rec := range recs {
		entity, err := fromRecord[T](rec)
		if err != nil {
			return nil, err
		}
		out = append(out, entity)
	}
	return out, nil
}

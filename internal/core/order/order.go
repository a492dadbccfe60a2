// Package order holds the order model shared by the ledger, the realtime
// bridge and the REST client.
package order

import "time"

// Rider is the delivery rider assigned to an order.
type Rider struct {
	ID    string `json:"_id" validate:"required"`
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Location is a coordinate pair reported by a rider's device.
type Location struct {
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
}

// Item is one line of an order.
type Item struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name,omitempty"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// Address is the delivery address.
type Address struct {
	Line1   string    `json:"line1,omitempty"`
	Line2   string    `json:"line2,omitempty"`
	City    string    `json:"city,omitempty"`
	Pincode string    `json:"pincode,omitempty"`
	Coords  *Location `json:"coords,omitempty"`
}

// Order is a customer order as held by the ledger.
type Order struct {
	ID            string    `json:"_id" validate:"required"`
	OrderNumber   string    `json:"orderNumber,omitempty"`
	OrderStatus   Status    `json:"orderStatus" validate:"omitempty,order_status"`
	DeliveryRider *Rider    `json:"deliveryRider,omitempty"`
	RiderLocation *Location `json:"riderLocation,omitempty"`
	Items         []Item    `json:"items"`
	TotalPrice    float64   `json:"totalPrice"`
	Address       *Address  `json:"address,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ShortID returns the last six characters of the id, the form operators
// read out over the phone.
func (o Order) ShortID() string {
	return ShortID(o.ID)
}

// ShortID shortens an order id to its last six characters.
func ShortID(id string) string {
	if len(id) <= 6 {
		return id
	}
	return id[len(id)-6:]
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	OrderStatus   *Status    `json:"orderStatus,omitempty"`
	DeliveryRider *Rider     `json:"deliveryRider,omitempty"`
	RiderLocation *Location  `json:"riderLocation,omitempty"`
	Items         []Item     `json:"items,omitempty"`
	TotalPrice    *float64   `json:"totalPrice,omitempty"`
	Address       *Address   `json:"address,omitempty"`
	UpdatedAt     *time.Time `json:"updatedAt,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.OrderStatus == nil &&
		p.DeliveryRider == nil &&
		p.RiderLocation == nil &&
		p.Items == nil &&
		p.TotalPrice == nil &&
		p.Address == nil &&
		p.UpdatedAt == nil
}

// Apply returns a copy of o with the non-nil patch fields merged in.
func (p Patch) Apply(o Order) Order {
	if p.OrderStatus != nil {
		o.OrderStatus = *p.OrderStatus
	}
	if p.DeliveryRider != nil {
		r := *p.DeliveryRider
		o.DeliveryRider = &r
	}
	if p.RiderLocation != nil {
		l := *p.RiderLocation
		o.RiderLocation = &l
	}
	if p.Items != nil {
		o.Items = append([]Item(nil), p.Items...)
	}
	if p.TotalPrice != nil {
		o.TotalPrice = *p.TotalPrice
	}
	if p.Address != nil {
		a := *p.Address
		o.Address = &a
	}
	if p.UpdatedAt != nil {
		o.UpdatedAt = *p.UpdatedAt
	}
	return o
}

// Counts is the terminal-status aggregate over a set of orders.
type Counts struct {
	Delivered int `json:"delivered"`
	Rejected  int `json:"rejected"`
	Cancelled int `json:"cancelled"`
}

// CountTerminal tallies delivered, rejected and cancelled orders in one pass.
// Other statuses are not counted.
func CountTerminal(orders []Order) Counts {
	var c Counts
	for _, o := range orders {
		switch o.OrderStatus {
		case StatusDelivered:
			c.Delivered++
		case StatusRejected:
			c.Rejected++
		case StatusCancelled:
			c.Cancelled++
		}
	}
	return c
}

package firestore

import (
	"time"

	domain "github.com/hanko-field/commerce/internal/domain"
)

const (
	productsCollection   = "products"
	usersCollection      = "users"
	ordersCollection     = "orders"
	cartsCollection      = "carts"
	cartOwnersCollection = "cartOwners"
)

type productDocument struct {
	Title     string    `firestore:"title"`
	Price     int64     `firestore:"price"`
	Inventory int       `firestore:"inventory"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func (d productDocument) toDomain(id string) domain.Product {
	return domain.Product{
		ID:        id,
		Title:     d.Title,
		Price:     d.Price,
		Inventory: d.Inventory,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

type userDocument struct {
	Email       string    `firestore:"email"`
	DisplayName string    `firestore:"displayName"`
	CreatedAt   time.Time `firestore:"createdAt"`
}

// orderDocument embeds the lines so an order is read and written as one document.
type orderDocument struct {
	UserID     string              `firestore:"userId"`
	Status     string              `firestore:"status"`
	Lines      []orderLineDocument `firestore:"lines"`
	TotalPrice int64               `firestore:"totalPrice"`
	Shipping   *shippingDocument   `firestore:"shipping,omitempty"`
	CreatedAt  time.Time           `firestore:"createdAt"`
	UpdatedAt  time.Time           `firestore:"updatedAt"`
}

type orderLineDocument struct {
	ProductID        string `firestore:"productId"`
	Quantity         int    `firestore:"quantity"`
	UnitPrice        int64  `firestore:"unitPrice"`
	ReservedQuantity int    `firestore:"reservedQuantity"`
}

type shippingDocument struct {
	Address     string `firestore:"address"`
	City        string `firestore:"city"`
	Country     string `firestore:"country"`
	PostCode    string `firestore:"postCode,omitempty"`
	PhoneNumber string `firestore:"phoneNumber,omitempty"`
}

func newOrderDocument(order domain.Order) orderDocument {
	doc := orderDocument{
		UserID:     order.UserID,
		Status:     string(order.Status),
		Lines:      make([]orderLineDocument, 0, len(order.Lines)),
		TotalPrice: order.TotalPrice,
		CreatedAt:  order.CreatedAt.UTC(),
		UpdatedAt:  order.UpdatedAt.UTC(),
	}
	for _, line := range order.Lines {
		doc.Lines = append(doc.Lines, orderLineDocument{
			ProductID:        line.ProductID,
			Quantity:         line.Quantity,
			UnitPrice:        line.UnitPrice,
			ReservedQuantity: line.ReservedQuantity,
		})
	}
	if info := order.ShippingInfo; info != nil {
		doc.Shipping = &shippingDocument{
			Address:     info.Address,
			City:        info.City,
			Country:     info.Country,
			PostCode:    info.PostCode,
			PhoneNumber: info.PhoneNumber,
		}
	}
	return doc
}

func (d orderDocument) toDomain(id string) domain.Order {
	order := domain.Order{
		ID:         id,
		UserID:     d.UserID,
		Status:     domain.OrderStatus(d.Status),
		Lines:      make([]domain.OrderLine, 0, len(d.Lines)),
		TotalPrice: d.TotalPrice,
		CreatedAt:  d.CreatedAt.UTC(),
		UpdatedAt:  d.UpdatedAt.UTC(),
	}
	for _, line := range d.Lines {
		order.Lines = append(order.Lines, domain.OrderLine{
			ProductID:        line.ProductID,
			Quantity:         line.Quantity,
			UnitPrice:        line.UnitPrice,
			ReservedQuantity: line.ReservedQuantity,
		})
	}
	if d.Shipping != nil {
		order.ShippingInfo = &domain.ShippingInfo{
			Address:     d.Shipping.Address,
			City:        d.Shipping.City,
			Country:     d.Shipping.Country,
			PostCode:    d.Shipping.PostCode,
			PhoneNumber: d.Shipping.PhoneNumber,
		}
	}
	return order
}

type cartDocument struct {
	UserID    string             `firestore:"userId"`
	Lines     []cartLineDocument `firestore:"lines"`
	CreatedAt time.Time          `firestore:"createdAt"`
	UpdatedAt time.Time          `firestore:"updatedAt"`
}

type cartLineDocument struct {
	ProductID string `firestore:"productId"`
	Quantity  int    `firestore:"quantity"`
}

// cartOwnerDocument is keyed by user id; creating it claims the user's single cart slot.
type cartOwnerDocument struct {
	CartID string `firestore:"cartId"`
}

func newCartDocument(cart domain.Cart) cartDocument {
	doc := cartDocument{
		UserID:    cart.UserID,
		Lines:     make([]cartLineDocument, 0, len(cart.Lines)),
		CreatedAt: cart.CreatedAt.UTC(),
		UpdatedAt: cart.UpdatedAt.UTC(),
	}
	for _, line := range cart.Lines {
		doc.Lines = append(doc.Lines, cartLineDocument{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	return doc
}

func (d cartDocument) toDomain(id string) domain.Cart {
	cart := domain.Cart{
		ID:        id,
		UserID:    d.UserID,
		Lines:     make([]domain.CartLine, 0, len(d.Lines)),
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
	for _, line := range d.Lines {
		cart.Lines = append(cart.Lines, domain.CartLine{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	return cart
}

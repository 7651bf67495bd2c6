package domain

import (
	"context"

	"gorm.io/gorm"
)

// Repository reads full snapshots for the sync engine and performs the keyed writes
// the ingestion service needs. Find methods return nil, nil when no row matches.
type Repository interface {
	ListCustomers(ctx context.Context, db *gorm.DB) ([]Customer, error)
	ListRestaurants(ctx context.Context, db *gorm.DB) ([]Restaurant, error)
	ListDeliveryPersons(ctx context.Context, db *gorm.DB) ([]DeliveryPerson, error)
	ListOrders(ctx context.Context, db *gorm.DB) ([]Order, error)

	FindCustomer(ctx context.Context, db *gorm.DB, customerID int64) (*Customer, error)
	FindRestaurant(ctx context.Context, db *gorm.DB, name, cuisine string) (*Restaurant, error)
	FindDay(ctx context.Context, db *gorm.DB, dayName string) (*Day, error)
	FindDeliveryPerson(ctx context.Context, db *gorm.DB, deliveryPersonID int64) (*DeliveryPerson, error)
	OrderExists(ctx context.Context, db *gorm.DB, orderID int64) (bool, error)

	InsertCustomer(ctx context.Context, db *gorm.DB, customer *Customer) error
	UpdateCustomerContact(ctx context.Context, db *gorm.DB, customer *Customer) error
	InsertRestaurant(ctx context.Context, db *gorm.DB, restaurant *Restaurant) error
	InsertDay(ctx context.Context, db *gorm.DB, day *Day) error
	InsertDeliveryPerson(ctx context.Context, db *gorm.DB, person *DeliveryPerson) error
	InsertOrder(ctx context.Context, db *gorm.DB, order *Order) error
}

package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/ordersync/internal/operational/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) ListCustomers(ctx context.Context, db *gorm.DB) ([]domain.Customer, error) {
	var customers []domain.Customer
	if err := db.WithContext(ctx).Order("customer_id").Find(&customers).Error; err != nil {
		return nil, err
	}
	return customers, nil
}

func (r *repo) ListRestaurants(ctx context.Context, db *gorm.DB) ([]domain.Restaurant, error) {
	var restaurants []domain.Restaurant
	if err := db.WithContext(ctx).Order("restaurant_id").Find(&restaurants).Error; err != nil {
		return nil, err
	}
	return restaurants, nil
}

func (r *repo) ListDeliveryPersons(ctx context.Context, db *gorm.DB) ([]domain.DeliveryPerson, error) {
	var persons []domain.DeliveryPerson
	if err := db.WithContext(ctx).Order("delivery_person_id").Find(&persons).Error; err != nil {
		return nil, err
	}
	return persons, nil
}

func (r *repo) ListOrders(ctx context.Context, db *gorm.DB) ([]domain.Order, error) {
	var orders []domain.Order
	if err := db.WithContext(ctx).Order("id").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repo) FindCustomer(ctx context.Context, db *gorm.DB, customerID int64) (*domain.Customer, error) {
	var customer domain.Customer
	err := db.WithContext(ctx).Where("customer_id = ?", customerID).Take(&customer).Error
	return found(&customer, err)
}

func (r *repo) FindRestaurant(ctx context.Context, db *gorm.DB, name, cuisine string) (*domain.Restaurant, error) {
	var restaurant domain.Restaurant
	err := db.WithContext(ctx).
		Where("restaurant_name = ? AND cuisine_type = ?", name, cuisine).
		Take(&restaurant).Error
	return found(&restaurant, err)
}

func (r *repo) FindDay(ctx context.Context, db *gorm.DB, dayName string) (*domain.Day, error) {
	var day domain.Day
	err := db.WithContext(ctx).Where("day_name = ?", dayName).Take(&day).Error
	return found(&day, err)
}

func (r *repo) FindDeliveryPerson(ctx context.Context, db *gorm.DB, deliveryPersonID int64) (*domain.DeliveryPerson, error) {
	var person domain.DeliveryPerson
	err := db.WithContext(ctx).Where("delivery_person_id = ?", deliveryPersonID).Take(&person).Error
	return found(&person, err)
}

func (r *repo) OrderExists(ctx context.Context, db *gorm.DB, orderID int64) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("order_id = ?", orderID).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) InsertCustomer(ctx context.Context, db *gorm.DB, customer *domain.Customer) error {
	return db.WithContext(ctx).Create(customer).Error
}

// UpdateCustomerContact rewrites the name and contact columns of an existing customer.
func (r *repo) UpdateCustomerContact(ctx context.Context, db *gorm.DB, customer *domain.Customer) error {
	return db.WithContext(ctx).
		Model(&domain.Customer{}).
		Where("customer_id = ?", customer.CustomerID).
		Updates(map[string]any{
			"first_name": customer.FirstName,
			"last_name":  customer.LastName,
			"email":      customer.Email,
			"phone":      customer.Phone,
			"address":    customer.Address,
			"city":       customer.City,
		}).Error
}

func (r *repo) InsertRestaurant(ctx context.Context, db *gorm.DB, restaurant *domain.Restaurant) error {
	return db.WithContext(ctx).Create(restaurant).Error
}

func (r *repo) InsertDay(ctx context.Context, db *gorm.DB, day *domain.Day) error {
	return db.WithContext(ctx).Create(day).Error
}

func (r *repo) InsertDeliveryPerson(ctx context.Context, db *gorm.DB, person *domain.DeliveryPerson) error {
	return db.WithContext(ctx).Create(person).Error
}

func (r *repo) InsertOrder(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	return db.WithContext(ctx).Create(order).Error
}

func found[T any](row *T, err error) (*T, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

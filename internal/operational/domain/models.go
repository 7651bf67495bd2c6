package domain

import "time"

// Customer is an operational customer row. Empty strings stand in for NULL text columns.
type Customer struct {
	CustomerID       int64      `gorm:"column:customer_id;primaryKey;autoIncrement:false" json:"customer_id"`
	FirstName        string     `gorm:"column:first_name;size:100" json:"first_name"`
	LastName         string     `gorm:"column:last_name;size:100" json:"last_name"`
	Email            string     `gorm:"column:email;size:255" json:"email"`
	Phone            string     `gorm:"column:phone;size:20" json:"phone"`
	Address          string     `gorm:"column:address;size:255" json:"address"`
	City             string     `gorm:"column:city;size:100" json:"city"`
	RegistrationDate *time.Time `gorm:"column:registration_date" json:"registration_date,omitempty"`
}

func (Customer) TableName() string { return "customers" }

// Restaurant is identified by (restaurant_name, cuisine_type); restaurant_id is minted at ingestion.
type Restaurant struct {
	RestaurantID    int64      `gorm:"column:restaurant_id;primaryKey;autoIncrement:false" json:"restaurant_id"`
	RestaurantName  string     `gorm:"column:restaurant_name;size:255;uniqueIndex:ux_restaurants_name_cuisine" json:"restaurant_name"`
	CuisineType     string     `gorm:"column:cuisine_type;size:100;uniqueIndex:ux_restaurants_name_cuisine" json:"cuisine_type"`
	Address         string     `gorm:"column:address;size:255" json:"address"`
	City            string     `gorm:"column:city;size:100" json:"city"`
	Phone           string     `gorm:"column:phone;size:20" json:"phone"`
	Website         string     `gorm:"column:website;size:255" json:"website"`
	PriceRange      string     `gorm:"column:price_range;size:10" json:"price_range"`
	RatingAvg       *float64   `gorm:"column:rating_avg" json:"rating_avg,omitempty"`
	OpeningHour     string     `gorm:"column:opening_hour;size:8" json:"opening_hour"`
	ClosingHour     string     `gorm:"column:closing_hour;size:8" json:"closing_hour"`
	EstablishedDate *time.Time `gorm:"column:established_date" json:"established_date,omitempty"`
}

func (Restaurant) TableName() string { return "restaurants" }

type Day struct {
	DayID     int64  `gorm:"column:day_id;primaryKey;autoIncrement:false" json:"day_id"`
	DayName   string `gorm:"column:day_name;size:50;uniqueIndex:ux_days_day_name" json:"day_name"`
	IsWeekend *bool  `gorm:"column:is_weekend" json:"is_weekend,omitempty"`
	IsHoliday *bool  `gorm:"column:is_holiday" json:"is_holiday,omitempty"`
}

func (Day) TableName() string { return "days" }

type DeliveryPerson struct {
	DeliveryPersonID int64      `gorm:"column:delivery_person_id;primaryKey;autoIncrement:false" json:"delivery_person_id"`
	FirstName        string     `gorm:"column:first_name;size:100" json:"first_name"`
	LastName         string     `gorm:"column:last_name;size:100" json:"last_name"`
	Phone            string     `gorm:"column:phone;size:20" json:"phone"`
	Email            string     `gorm:"column:email;size:255" json:"email"`
	VehicleType      string     `gorm:"column:vehicle_type;size:20" json:"vehicle_type"`
	HireDate         *time.Time `gorm:"column:hire_date" json:"hire_date,omitempty"`
	Rating           *float64   `gorm:"column:rating" json:"rating,omitempty"`
}

func (DeliveryPerson) TableName() string { return "delivery_person" }

// Order carries a surrogate key; order_id is the natural key used for warehouse matching.
// Money columns hold minor units.
type Order struct {
	ID                  int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	OrderID             int64  `gorm:"column:order_id;not null;index:ix_orders_order_id" json:"order_id"`
	CustomerID          int64  `gorm:"column:customer_id;not null;index" json:"customer_id"`
	RestaurantID        int64  `gorm:"column:restaurant_id;not null;index" json:"restaurant_id"`
	DayID               int64  `gorm:"column:day_id;not null" json:"day_id"`
	DeliveryPersonID    *int64 `gorm:"column:delivery_person_id" json:"delivery_person_id,omitempty"`
	CostOfTheOrder      int64  `gorm:"column:cost_of_the_order;not null;default:0" json:"cost_of_the_order"`
	Rating              *int   `gorm:"column:rating" json:"rating,omitempty"`
	FoodPreparationTime *int   `gorm:"column:food_preparation_time" json:"food_preparation_time,omitempty"`
	DeliveryTime        *int   `gorm:"column:delivery_time" json:"delivery_time,omitempty"`
	TipAmount           int64  `gorm:"column:tip_amount;not null;default:0" json:"tip_amount"`
}

func (Order) TableName() string { return "orders" }

// Models lists every operational table in dependency order.
func Models() []any {
	return []any{&Customer{}, &Restaurant{}, &Day{}, &DeliveryPerson{}, &Order{}}
}

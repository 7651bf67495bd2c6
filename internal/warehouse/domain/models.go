package domain

import "time"

const (
	TableDimCustomer       = "dim_customer"
	TableDimRestaurant     = "dim_restaurant"
	TableDimDate           = "dim_date"
	TableDimLocation       = "dim_location"
	TableDimTimeSlot       = "dim_timeslot"
	TableDimDeliveryPerson = "dim_deliveryperson"
	TableFactOrders        = "fact_orders"
)

type DimCustomer struct {
	CustomerID       int64      `gorm:"column:customer_id;primaryKey;autoIncrement:false" json:"customer_id"`
	CustomerName     string     `gorm:"column:customer_name;size:255" json:"customer_name"`
	Segment          string     `gorm:"column:segment;size:50" json:"segment"`
	RegistrationDate *time.Time `gorm:"column:registration_date" json:"registration_date,omitempty"`
}

func (DimCustomer) TableName() string { return TableDimCustomer }

type DimRestaurant struct {
	RestaurantID   int64    `gorm:"column:restaurant_id;primaryKey;autoIncrement:false" json:"restaurant_id"`
	RestaurantName string   `gorm:"column:restaurant_name;size:255" json:"restaurant_name"`
	CuisineType    string   `gorm:"column:cuisine_type;size:100" json:"cuisine_type"`
	RatingAvg      *float64 `gorm:"column:rating_avg" json:"rating_avg,omitempty"`
}

func (DimRestaurant) TableName() string { return TableDimRestaurant }

// DimDate is keyed by the YYYYMMDD form of FullDate.
type DimDate struct {
	DateID    int       `gorm:"column:date_id;primaryKey;autoIncrement:false" json:"date_id"`
	FullDate  time.Time `gorm:"column:full_date;not null;uniqueIndex:ux_dim_date_full_date" json:"full_date"`
	DayOfWeek string    `gorm:"column:day_of_week;size:20" json:"day_of_week"`
	MonthName string    `gorm:"column:month_name;size:20" json:"month_name"`
	Quarter   int       `gorm:"column:quarter" json:"quarter"`
	Year      int       `gorm:"column:year" json:"year"`
}

func (DimDate) TableName() string { return TableDimDate }

type DimLocation struct {
	LocationID   int64  `gorm:"column:location_id;primaryKey;autoIncrement:false" json:"location_id"`
	Neighborhood string `gorm:"column:neighborhood;size:100" json:"neighborhood"`
	PostalCode   string `gorm:"column:postal_code;size:20" json:"postal_code"`
	City         string `gorm:"column:city;size:100;index:ix_dim_location_city" json:"city"`
	Region       string `gorm:"column:region;size:100" json:"region"`
}

func (DimLocation) TableName() string { return TableDimLocation }

type DimTimeSlot struct {
	TimeSlotID int    `gorm:"column:time_slot_id;primaryKey;autoIncrement:false" json:"time_slot_id"`
	SlotName   string `gorm:"column:slot_name;size:50" json:"slot_name"`
	StartTime  string `gorm:"column:start_time;size:8" json:"start_time"`
	EndTime    string `gorm:"column:end_time;size:8" json:"end_time"`
}

func (DimTimeSlot) TableName() string { return TableDimTimeSlot }

type DimDeliveryPerson struct {
	DeliveryPersonID   int64  `gorm:"column:delivery_person_id;primaryKey;autoIncrement:false" json:"delivery_person_id"`
	DeliveryPersonName string `gorm:"column:delivery_person_name;size:255" json:"delivery_person_name"`
	OperationZone      string `gorm:"column:operation_zone;size:100" json:"operation_zone"`
	TenureMonths       int    `gorm:"column:tenure_months" json:"tenure_months"`
}

func (DimDeliveryPerson) TableName() string { return TableDimDeliveryPerson }

// FactOrder references one row in each of the six dimensions. OrderCost holds minor units.
type FactOrder struct {
	OrderID             int64     `gorm:"column:order_id;primaryKey;autoIncrement:false" json:"order_id"`
	CustomerID          int64     `gorm:"column:customer_id;not null;index" json:"customer_id"`
	RestaurantID        int64     `gorm:"column:restaurant_id;not null;index" json:"restaurant_id"`
	DeliveryPersonID    int64     `gorm:"column:delivery_person_id;not null" json:"delivery_person_id"`
	DateID              int       `gorm:"column:date_id;not null;index" json:"date_id"`
	LocationID          int64     `gorm:"column:location_id;not null" json:"location_id"`
	TimeSlotID          int       `gorm:"column:time_slot_id;not null" json:"time_slot_id"`
	OrderDate           time.Time `gorm:"column:order_date;not null" json:"order_date"`
	OrderTime           string    `gorm:"column:order_time;size:8;not null" json:"order_time"`
	OrderCost           int64     `gorm:"column:order_cost;not null" json:"order_cost"`
	Rating              *int      `gorm:"column:rating" json:"rating,omitempty"`
	FoodPreparationTime *int      `gorm:"column:food_preparation_time" json:"food_preparation_time,omitempty"`
	DeliveryTime        *int      `gorm:"column:delivery_time" json:"delivery_time,omitempty"`
	TotalTime           int       `gorm:"column:total_time;not null" json:"total_time"`
}

func (FactOrder) TableName() string { return TableFactOrders }

// Tables lists every warehouse table, dimensions first.
func Tables() []string {
	return []string{
		TableDimCustomer,
		TableDimRestaurant,
		TableDimDate,
		TableDimLocation,
		TableDimTimeSlot,
		TableDimDeliveryPerson,
		TableFactOrders,
	}
}

// Models lists the warehouse models in the same order as Tables.
func Models() []any {
	return []any{
		&DimCustomer{},
		&DimRestaurant{},
		&DimDate{},
		&DimLocation{},
		&DimTimeSlot{},
		&DimDeliveryPerson{},
		&FactOrder{},
	}
}

package domain

import "time"

// Record is one denormalized CSV row after parsing.
type Record struct {
	OrderID             int64
	CustomerID          int64
	DeliveryPersonID    *int64
	CostOfTheOrder      int64
	TipAmount           int64
	FoodPreparationTime *int
	DeliveryTime        *int
	Rating              *int

	DayOfTheWeek string
	IsWeekend    bool
	IsHoliday    bool

	CustFirstName        string
	CustLastName         string
	CustEmail            string
	CustPhone            string
	CustAddress          string
	CustCity             string
	CustRegistrationDate *time.Time

	RestaurantName      string
	CuisineType         string
	RestAddress         string
	RestCity            string
	RestPhone           string
	RestWebsite         string
	RestPriceRange      string
	RestRatingAvg       *float64
	RestOpeningHour     string
	RestClosingHour     string
	RestEstablishedDate *time.Time

	DelFirstName string
	DelLastName  string
	DelPhone     string
	DelEmail     string
	DelVehicle   string
	DelHireDate  *time.Time
	DelRating    *float64
}

// RequiredColumns must be present in the CSV header.
var RequiredColumns = []string{"order_id", "customer_id", "restaurant_name"}

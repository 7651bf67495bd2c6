package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/ordersync/internal/ingestion/domain"
)

var (
	dateLayouts = []string{"2006-01-02", "01/02/2006", "02/01/2006"}
	timeLayouts = []string{"15:04", "15:04:05", "3:04 PM"}
)

const ratingNotGiven = "not given"

// header maps normalized column names to their position in a row.
type header map[string]int

func newHeader(columns []string) (header, error) {
	h := make(header, len(columns))
	for i, column := range columns {
		name := strings.ToLower(strings.TrimSpace(column))
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if name == "" {
			continue
		}
		if _, dup := h[name]; !dup {
			h[name] = i
		}
	}
	for _, required := range domain.RequiredColumns {
		if _, ok := h[required]; !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrMissingColumn, required)
		}
	}
	return h, nil
}

// row reads cells by column name; absent columns read as empty.
type row struct {
	h      header
	fields []string
}

func (r row) get(column string) string {
	i, ok := r.h[column]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

func parseRecord(r row) (domain.Record, error) {
	orderID, err := strconv.ParseInt(r.get("order_id"), 10, 64)
	if err != nil || orderID <= 0 {
		return domain.Record{}, fmt.Errorf("%w: %q", domain.ErrInvalidOrderID, r.get("order_id"))
	}
	customerID, err := strconv.ParseInt(r.get("customer_id"), 10, 64)
	if err != nil || customerID <= 0 {
		return domain.Record{}, fmt.Errorf("%w: %q", domain.ErrInvalidCustomerID, r.get("customer_id"))
	}
	restaurantName := r.get("restaurant_name")
	if restaurantName == "" {
		return domain.Record{}, domain.ErrInvalidRestaurant
	}

	cost, err := parseMoney(r.get("cost_of_the_order"))
	if err != nil {
		return domain.Record{}, err
	}
	tip, err := parseMoney(r.get("tip_amount"))
	if err != nil {
		return domain.Record{}, err
	}
	rating, err := parseRating(r.get("rating"))
	if err != nil {
		return domain.Record{}, err
	}

	return domain.Record{
		OrderID:             orderID,
		CustomerID:          customerID,
		DeliveryPersonID:    parseOptionalID(r.get("delivery_person_id")),
		CostOfTheOrder:      cost,
		TipAmount:           tip,
		FoodPreparationTime: parseOptionalInt(r.get("food_preparation_time")),
		DeliveryTime:        parseOptionalInt(r.get("delivery_time")),
		Rating:              rating,

		DayOfTheWeek: r.get("day_of_the_week"),
		IsWeekend:    parseBool(r.get("is_weekend")),
		IsHoliday:    parseBool(r.get("is_holiday")),

		CustFirstName:        r.get("cust_first_name"),
		CustLastName:         r.get("cust_last_name"),
		CustEmail:            r.get("cust_email"),
		CustPhone:            r.get("cust_phone"),
		CustAddress:          r.get("cust_address"),
		CustCity:             r.get("cust_city"),
		CustRegistrationDate: parseDate(r.get("cust_registration_date")),

		RestaurantName:      restaurantName,
		CuisineType:         r.get("cuisine_type"),
		RestAddress:         r.get("rest_address"),
		RestCity:            r.get("rest_city"),
		RestPhone:           r.get("rest_phone"),
		RestWebsite:         r.get("rest_website"),
		RestPriceRange:      r.get("rest_price_range"),
		RestRatingAvg:       parseOptionalFloat(r.get("rest_rating_avg")),
		RestOpeningHour:     parseClock(r.get("rest_opening_hour")),
		RestClosingHour:     parseClock(r.get("rest_closing_hour")),
		RestEstablishedDate: parseDate(r.get("rest_established_date")),

		DelFirstName: r.get("del_first_name"),
		DelLastName:  r.get("del_last_name"),
		DelPhone:     r.get("del_phone"),
		DelEmail:     r.get("del_email"),
		DelVehicle:   r.get("del_vehicle"),
		DelHireDate:  parseDate(r.get("del_hire_date")),
		DelRating:    parseOptionalFloat(r.get("del_rating")),
	}, nil
}

// parseMoney converts a decimal amount into minor units, rounding half up past two places.
func parseMoney(value string) (int64, error) {
	raw := value
	value = strings.TrimPrefix(strings.TrimSpace(value), "$")
	if value == "" {
		return 0, nil
	}
	negative := strings.HasPrefix(value, "-")
	value = strings.TrimPrefix(value, "-")

	whole, frac, _ := strings.Cut(value, ".")
	if whole == "" {
		whole = "0"
	}
	units, err := strconv.ParseUint(whole, 10, 63)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidAmount, raw)
	}
	for _, c := range frac {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: %q", domain.ErrInvalidAmount, raw)
		}
	}

	roundUp := len(frac) > 2 && frac[2] >= '5'
	frac = (frac + "00")[:2]
	cents, _ := strconv.ParseInt(frac, 10, 64)

	amount := int64(units)*100 + cents
	if roundUp {
		amount++
	}
	if negative {
		amount = -amount
	}
	return amount, nil
}

func parseRating(value string) (*int, error) {
	if value == "" || strings.EqualFold(value, ratingNotGiven) {
		return nil, nil
	}
	rating, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidRating, value)
	}
	return &rating, nil
}

func parseOptionalInt(value string) *int {
	if value == "" {
		return nil
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return nil
	}
	return &v
}

func parseOptionalID(value string) *int64 {
	if value == "" {
		return nil
	}
	v, err := strconv.ParseInt(value, 10, 64)
	if err != nil || v <= 0 {
		return nil
	}
	return &v
}

func parseOptionalFloat(value string) *float64 {
	if value == "" {
		return nil
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseBool(value string) bool {
	switch strings.ToLower(value) {
	case "true", "1", "yes", "y":
		return true
	default:
		return false
	}
}

// parseDate tries each accepted layout in order. Unparseable dates read as absent.
func parseDate(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return &t
		}
	}
	return nil
}

// parseClock normalizes a time of day to HH:MM:SS, or empty when it cannot be read.
func parseClock(value string) string {
	if value == "" {
		return ""
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, strings.ToUpper(value)); err == nil {
			return t.Format(time.TimeOnly)
		}
	}
	return ""
}

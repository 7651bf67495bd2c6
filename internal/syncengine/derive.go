package syncengine

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/smallbiznis/ordersync/internal/config"
	warehousedomain "github.com/smallbiznis/ordersync/internal/warehouse/domain"
)

const (
	SegmentNew     = "New"
	SegmentRegular = "Regular"
	SegmentLoyal   = "Loyal"
	SegmentUnknown = "Unknown"

	ZoneWideRange    = "Wide Range"
	ZoneLocal        = "Local"
	ZoneNeighborhood = "Neighborhood"

	RegionCentral = "Central"
	Unknown       = "Unknown"

	DefaultPostalCode = "00000"
)

const (
	TimeSlotEarlyMorning = 1
	TimeSlotMorning      = 2
	TimeSlotLunch        = 3
	TimeSlotAfternoon    = 4
	TimeSlotDinner       = 5
	TimeSlotLateNight    = 6
)

// defaultPrepMinutes stands in for a missing food preparation time when bucketing.
const defaultPrepMinutes = 30

var postalCodePattern = regexp.MustCompile(`\b\d{5}\b`)

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CustomerSegment buckets a customer by registration age in years.
func CustomerSegment(registered *time.Time, today time.Time) string {
	if registered == nil {
		return SegmentUnknown
	}
	days := DateOnly(today).Sub(DateOnly(*registered)).Hours() / 24
	years := days / 365.25
	switch {
	case years < 1:
		return SegmentNew
	case years < 3:
		return SegmentRegular
	default:
		return SegmentLoyal
	}
}

// FullName joins name parts, tolerating empty parts.
func FullName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}

// OperationZone maps a vehicle type to its delivery range.
func OperationZone(vehicle string) string {
	switch strings.ToLower(strings.TrimSpace(vehicle)) {
	case "car", "motorcycle":
		return ZoneWideRange
	case "bicycle", "scooter":
		return ZoneLocal
	default:
		return ZoneNeighborhood
	}
}

// TenureMonths counts calendar months between hire and today, never negative.
func TenureMonths(hired *time.Time, today time.Time) int {
	if hired == nil {
		return 0
	}
	months := (today.Year()-hired.Year())*12 + int(today.Month()) - int(hired.Month())
	if months < 0 {
		return 0
	}
	return months
}

// DateID renders a date as its YYYYMMDD integer key.
func DateID(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

func Quarter(m time.Month) int {
	return (int(m)-1)/3 + 1
}

func NewDimDate(t time.Time) warehousedomain.DimDate {
	day := DateOnly(t)
	return warehousedomain.DimDate{
		DateID:    DateID(day),
		FullDate:  day,
		DayOfWeek: day.Weekday().String(),
		MonthName: day.Month().String(),
		Quarter:   Quarter(day.Month()),
		Year:      day.Year(),
	}
}

// Neighborhood is the address text before the first comma, or the whole address when it has none.
func Neighborhood(address string) string {
	address = strings.TrimSpace(address)
	if address == "" {
		return Unknown
	}
	before, _, _ := strings.Cut(address, ",")
	before = strings.TrimSpace(before)
	if before == "" {
		return Unknown
	}
	return before
}

// PostalCode returns the first standalone five digit number in the address.
func PostalCode(address string) string {
	if code := postalCodePattern.FindString(address); code != "" {
		return code
	}
	return DefaultPostalCode
}

// Region matches the city against each rule's keywords in order.
func Region(city string, rules []config.RegionRule) string {
	city = strings.ToLower(strings.TrimSpace(city))
	if city == "" {
		return Unknown
	}
	for _, rule := range rules {
		for _, keyword := range rule.Cities {
			keyword = strings.ToLower(strings.TrimSpace(keyword))
			if keyword != "" && strings.Contains(city, keyword) {
				return rule.Name
			}
		}
	}
	return RegionCentral
}

// TimeSlotForPrep buckets an order by preparation time. Only three slots are reachable.
func TimeSlotForPrep(prep *int) int {
	minutes := defaultPrepMinutes
	if prep != nil {
		minutes = *prep
	}
	switch {
	case minutes < 20:
		return TimeSlotEarlyMorning
	case minutes < 30:
		return TimeSlotLunch
	default:
		return TimeSlotDinner
	}
}

// TotalTime adds preparation and delivery minutes, counting missing parts as zero.
func TotalTime(prep, delivery *int) int {
	total := 0
	if prep != nil {
		total += *prep
	}
	if delivery != nil {
		total += *delivery
	}
	return total
}

// TimeSlots is the fixed reference set of delivery windows.
func TimeSlots() []warehousedomain.DimTimeSlot {
	return []warehousedomain.DimTimeSlot{
		{TimeSlotID: TimeSlotEarlyMorning, SlotName: "Early Morning", StartTime: clockTime(6), EndTime: clockTime(9)},
		{TimeSlotID: TimeSlotMorning, SlotName: "Morning", StartTime: clockTime(9), EndTime: clockTime(12)},
		{TimeSlotID: TimeSlotLunch, SlotName: "Lunch", StartTime: clockTime(12), EndTime: clockTime(15)},
		{TimeSlotID: TimeSlotAfternoon, SlotName: "Afternoon", StartTime: clockTime(15), EndTime: clockTime(18)},
		{TimeSlotID: TimeSlotDinner, SlotName: "Dinner", StartTime: clockTime(18), EndTime: clockTime(22)},
		{TimeSlotID: TimeSlotLateNight, SlotName: "Late Night", StartTime: clockTime(22), EndTime: clockTime(6)},
	}
}

func clockTime(hour int) string {
	return fmt.Sprintf("%02d:00:00", hour)
}

func dateOnlyPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	day := DateOnly(*t)
	return &day
}

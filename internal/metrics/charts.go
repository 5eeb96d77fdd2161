package metrics

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Query bounds shared by the chart endpoints.
const (
	MinWindowHours = 1
	MaxWindowHours = 168
	MinWindowDays  = 1
	MaxWindowDays  = 30

	DefaultWindowHours = 24
	DefaultWindowDays  = 7
)

// TimelinePoint is one hourly bucket of the vehicle timeline.
type TimelinePoint struct {
	Label       string  `json:"label"`
	AvgVehicles float64 `json:"avg_vehicles"`
}

// Timeline holds the line-chart payload for vehicles over time.
type Timeline struct {
	Labels []string  `json:"labels"`
	Data   []float64 `json:"data"`
}

// LocationComparison holds the bar-chart payload comparing locations.
type LocationComparison struct {
	LocationIDs []int64   `json:"location_ids"`
	Labels      []string  `json:"labels"`
	Data        []float64 `json:"data"`
}

// VehicleTypes holds the pie-chart payload of detection class counts.
type VehicleTypes struct {
	Labels []string `json:"labels"`
	Data   []int64  `json:"data"`
}

// Heatmap holds a 7x24 matrix of average vehicle counts. Row 0 is Sunday,
// matching Mongo's $dayOfWeek numbering shifted down by one.
type Heatmap struct {
	Hours []int       `json:"hours"`
	Days  []string    `json:"days"`
	Data  [][]float64 `json:"data"`
}

// Summary holds the dashboard KPI payload for the current day.
type Summary struct {
	TotalSamples      int64   `json:"total_samples"`
	AvgVehiclesToday  float64 `json:"avg_vehicles_today"`
	PeakHour          string  `json:"peak_hour"`
	MostCommonVehicle string  `json:"most_common_vehicle"`
}

// heatmapDayNames indexes Mongo dayOfWeek minus one.
var heatmapDayNames = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// vehicleDisplayNames maps detector class names to chart labels.
var vehicleDisplayNames = map[string]string{
	"car":        "Cars",
	"motorcycle": "Motorcycles",
	"bus":        "Buses",
	"truck":      "Trucks",
	"person":     "Pedestrians",
	"bicycle":    "Bicycles",
}

// ClampWindowHours forces an hour window into the accepted range.
func ClampWindowHours(hours int) int {
	if hours < MinWindowHours {
		return MinWindowHours
	}
	if hours > MaxWindowHours {
		return MaxWindowHours
	}
	return hours
}

// ClampWindowDays forces a day window into the accepted range.
func ClampWindowDays(days int) int {
	if days < MinWindowDays {
		return MinWindowDays
	}
	if days > MaxWindowDays {
		return MaxWindowDays
	}
	return days
}

// VehicleTimeline averages vehicle counts per hour over the window,
// optionally scoped to one location.
func (m *Manager) VehicleTimeline(ctx context.Context, locationID uint64, hours int) (*Timeline, error) {
	coll, errColl := m.collection(ctx)
	if errColl != nil {
		return nil, errColl
	}
	hours = ClampWindowHours(hours)
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	match := bson.D{{Key: "timestamp", Value: bson.D{{Key: "$gte", Value: since}}}}
	if locationID > 0 {
		match = append(match, bson.E{Key: "location_id", Value: locationID})
	}

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: match}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{
				{Key: "year", Value: bson.D{{Key: "$year", Value: "$timestamp"}}},
				{Key: "month", Value: bson.D{{Key: "$month", Value: "$timestamp"}}},
				{Key: "day", Value: bson.D{{Key: "$dayOfMonth", Value: "$timestamp"}}},
				{Key: "hour", Value: bson.D{{Key: "$hour", Value: "$timestamp"}}},
			}},
			{Key: "avg_vehicles", Value: bson.D{{Key: "$avg", Value: "$vehicle_count"}}},
			{Key: "total_vehicles", Value: bson.D{{Key: "$sum", Value: "$vehicle_count"}}},
			{Key: "sample_count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}

	cursor, errAggregate := coll.Aggregate(ctx, pipeline)
	if errAggregate != nil {
		return nil, fmt.Errorf("metrics: vehicle timeline: %w", errAggregate)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID struct {
			Year  int `bson:"year"`
			Month int `bson:"month"`
			Day   int `bson:"day"`
			Hour  int `bson:"hour"`
		} `bson:"_id"`
		AvgVehicles float64 `bson:"avg_vehicles"`
	}
	if errDecode := cursor.All(ctx, &rows); errDecode != nil {
		return nil, fmt.Errorf("metrics: vehicle timeline decode: %w", errDecode)
	}

	timeline := &Timeline{Labels: make([]string, 0, len(rows)), Data: make([]float64, 0, len(rows))}
	for _, row := range rows {
		timeline.Labels = append(timeline.Labels, timelineLabel(row.ID.Day, row.ID.Month, row.ID.Hour))
		timeline.Data = append(timeline.Data, round1(row.AvgVehicles))
	}
	return timeline, nil
}

// LocationComparison averages vehicle counts per location over the window,
// most congested first.
func (m *Manager) LocationComparison(ctx context.Context, hours int) (*LocationComparison, error) {
	coll, errColl := m.collection(ctx)
	if errColl != nil {
		return nil, errColl
	}
	hours = ClampWindowHours(hours)
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{{Key: "timestamp", Value: bson.D{{Key: "$gte", Value: since}}}}}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$location_id"},
			{Key: "avg_vehicles", Value: bson.D{{Key: "$avg", Value: "$vehicle_count"}}},
			{Key: "total_samples", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "avg_vehicles", Value: -1}}}},
	}

	cursor, errAggregate := coll.Aggregate(ctx, pipeline)
	if errAggregate != nil {
		return nil, fmt.Errorf("metrics: location comparison: %w", errAggregate)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		LocationID  int64   `bson:"_id"`
		AvgVehicles float64 `bson:"avg_vehicles"`
	}
	if errDecode := cursor.All(ctx, &rows); errDecode != nil {
		return nil, fmt.Errorf("metrics: location comparison decode: %w", errDecode)
	}

	comparison := &LocationComparison{
		LocationIDs: make([]int64, 0, len(rows)),
		Labels:      make([]string, 0, len(rows)),
		Data:        make([]float64, 0, len(rows)),
	}
	for _, row := range rows {
		comparison.LocationIDs = append(comparison.LocationIDs, row.LocationID)
		comparison.Labels = append(comparison.Labels, fmt.Sprintf("Location %d", row.LocationID))
		comparison.Data = append(comparison.Data, round1(row.AvgVehicles))
	}
	return comparison, nil
}

// VehicleTypes counts detections per class over the window, optionally
// scoped to one location.
func (m *Manager) VehicleTypes(ctx context.Context, locationID uint64, hours int) (*VehicleTypes, error) {
	coll, errColl := m.collection(ctx)
	if errColl != nil {
		return nil, errColl
	}
	hours = ClampWindowHours(hours)
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	match := bson.D{{Key: "timestamp", Value: bson.D{{Key: "$gte", Value: since}}}}
	if locationID > 0 {
		match = append(match, bson.E{Key: "location_id", Value: locationID})
	}

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: match}},
		bson.D{{Key: "$unwind", Value: "$detections"}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$detections.class_name"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}}}},
	}

	cursor, errAggregate := coll.Aggregate(ctx, pipeline)
	if errAggregate != nil {
		return nil, fmt.Errorf("metrics: vehicle types: %w", errAggregate)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ClassName string `bson:"_id"`
		Count     int64  `bson:"count"`
	}
	if errDecode := cursor.All(ctx, &rows); errDecode != nil {
		return nil, fmt.Errorf("metrics: vehicle types decode: %w", errDecode)
	}

	types := &VehicleTypes{Labels: make([]string, 0, len(rows)), Data: make([]int64, 0, len(rows))}
	for _, row := range rows {
		types.Labels = append(types.Labels, vehicleLabel(row.ClassName))
		types.Data = append(types.Data, row.Count)
	}
	return types, nil
}

// HourlyHeatmap averages vehicle counts per weekday and hour for one
// location over the window.
func (m *Manager) HourlyHeatmap(ctx context.Context, locationID uint64, days int) (*Heatmap, error) {
	coll, errColl := m.collection(ctx)
	if errColl != nil {
		return nil, errColl
	}
	days = ClampWindowDays(days)
	since := time.Now().AddDate(0, 0, -days)

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{
			{Key: "location_id", Value: locationID},
			{Key: "timestamp", Value: bson.D{{Key: "$gte", Value: since}}},
		}}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{
				{Key: "dayOfWeek", Value: bson.D{{Key: "$dayOfWeek", Value: "$timestamp"}}},
				{Key: "hour", Value: bson.D{{Key: "$hour", Value: "$timestamp"}}},
			}},
			{Key: "avg_vehicles", Value: bson.D{{Key: "$avg", Value: "$vehicle_count"}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "_id.dayOfWeek", Value: 1}, {Key: "_id.hour", Value: 1}}}},
	}

	cursor, errAggregate := coll.Aggregate(ctx, pipeline)
	if errAggregate != nil {
		return nil, fmt.Errorf("metrics: hourly heatmap: %w", errAggregate)
	}
	defer cursor.Close(ctx)

	var rows []heatmapRow
	if errDecode := cursor.All(ctx, &rows); errDecode != nil {
		return nil, fmt.Errorf("metrics: hourly heatmap decode: %w", errDecode)
	}
	return buildHeatmap(rows), nil
}

// DashboardSummary computes the KPI block for today, optionally scoped to
// one location.
func (m *Manager) DashboardSummary(ctx context.Context, locationID uint64) (*Summary, error) {
	coll, errColl := m.collection(ctx)
	if errColl != nil {
		return nil, errColl
	}

	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	match := bson.D{{Key: "timestamp", Value: bson.D{{Key: "$gte", Value: startOfDay}}}}
	if locationID > 0 {
		match = append(match, bson.E{Key: "location_id", Value: locationID})
	}

	summary := &Summary{PeakHour: "N/A", MostCommonVehicle: "N/A"}

	total, errCount := coll.CountDocuments(ctx, match)
	if errCount != nil {
		return nil, fmt.Errorf("metrics: summary count: %w", errCount)
	}
	summary.TotalSamples = total

	avgPipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: match}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "avg_vehicles", Value: bson.D{{Key: "$avg", Value: "$vehicle_count"}}},
		}}},
	}
	var avgRows []struct {
		AvgVehicles float64 `bson:"avg_vehicles"`
	}
	cursor, errAvg := coll.Aggregate(ctx, avgPipeline)
	if errAvg != nil {
		return nil, fmt.Errorf("metrics: summary average: %w", errAvg)
	}
	if errDecode := cursor.All(ctx, &avgRows); errDecode != nil {
		return nil, fmt.Errorf("metrics: summary average decode: %w", errDecode)
	}
	if len(avgRows) > 0 {
		summary.AvgVehiclesToday = round1(avgRows[0].AvgVehicles)
	}

	peakPipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: match}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$hour", Value: "$timestamp"}}},
			{Key: "avg_vehicles", Value: bson.D{{Key: "$avg", Value: "$vehicle_count"}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "avg_vehicles", Value: -1}}}},
		bson.D{{Key: "$limit", Value: 1}},
	}
	var peakRows []struct {
		Hour int `bson:"_id"`
	}
	cursor, errPeak := coll.Aggregate(ctx, peakPipeline)
	if errPeak != nil {
		return nil, fmt.Errorf("metrics: summary peak hour: %w", errPeak)
	}
	if errDecode := cursor.All(ctx, &peakRows); errDecode != nil {
		return nil, fmt.Errorf("metrics: summary peak hour decode: %w", errDecode)
	}
	if len(peakRows) > 0 {
		summary.PeakHour = fmt.Sprintf("%02d:00", peakRows[0].Hour)
	}

	commonPipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: match}},
		bson.D{{Key: "$unwind", Value: "$detections"}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$detections.class_name"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}}}},
		bson.D{{Key: "$limit", Value: 1}},
	}
	var commonRows []struct {
		ClassName string `bson:"_id"`
	}
	cursor, errCommon := coll.Aggregate(ctx, commonPipeline)
	if errCommon != nil {
		return nil, fmt.Errorf("metrics: summary common vehicle: %w", errCommon)
	}
	if errDecode := cursor.All(ctx, &commonRows); errDecode != nil {
		return nil, fmt.Errorf("metrics: summary common vehicle decode: %w", errDecode)
	}
	if len(commonRows) > 0 {
		summary.MostCommonVehicle = commonRows[0].ClassName
	}

	return summary, nil
}

// heatmapRow is one aggregated (weekday, hour) bucket.
type heatmapRow struct {
	ID struct {
		DayOfWeek int `bson:"dayOfWeek"`
		Hour      int `bson:"hour"`
	} `bson:"_id"`
	AvgVehicles float64 `bson:"avg_vehicles"`
}

// buildHeatmap assembles the fixed 7x24 matrix. Mongo numbers weekdays from
// 1 (Sunday), so rows index dayOfWeek minus one. Out-of-range buckets are
// dropped.
func buildHeatmap(rows []heatmapRow) *Heatmap {
	heatmap := &Heatmap{
		Hours: make([]int, 24),
		Days:  heatmapDayNames,
		Data:  make([][]float64, 7),
	}
	for hour := range heatmap.Hours {
		heatmap.Hours[hour] = hour
	}
	for day := range heatmap.Data {
		heatmap.Data[day] = make([]float64, 24)
	}
	for _, row := range rows {
		day := row.ID.DayOfWeek - 1
		hour := row.ID.Hour
		if day < 0 || day > 6 || hour < 0 || hour > 23 {
			continue
		}
		heatmap.Data[day][hour] = round1(row.AvgVehicles)
	}
	return heatmap
}

// timelineLabel formats an hourly bucket as "DD/MM HH:00".
func timelineLabel(day, month, hour int) string {
	return fmt.Sprintf("%02d/%02d %02d:00", day, month, hour)
}

// vehicleLabel maps a detector class name to its chart label, falling back
// to the raw class name.
func vehicleLabel(className string) string {
	if label, ok := vehicleDisplayNames[className]; ok {
		return label
	}
	return className
}

// round1 rounds to one decimal place.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

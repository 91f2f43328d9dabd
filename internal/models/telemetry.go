package models

import "time"

// TelemetrySample is one reading from the telemetry feed.
type TelemetrySample struct {
	DeviceID  string    `json:"device_id"`
	Tag       string    `json:"tag"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Device is reference data resolved through the device registry collaborator.
type Device struct {
	ID           string `json:"id" gorm:"primaryKey"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	LocationID   string `json:"location_id"`
	LocationName string `json:"location_name"`
}

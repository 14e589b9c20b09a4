package domain

import "time"

type VehicleType string

const (
	VehicleSedan VehicleType = "sedan"
	VehicleSUV   VehicleType = "suv"
	VehicleTruck VehicleType = "truck"
)

type Lead struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	Name        string      `gorm:"size:120;not null" json:"name"`
	Phone       string      `gorm:"size:40" json:"phone,omitempty"`
	Email       string      `gorm:"size:120" json:"email,omitempty"`
	OriginZip   string      `gorm:"size:20" json:"origin_zip,omitempty"`
	DestZip     string      `gorm:"size:20" json:"dest_zip,omitempty"`
	DistanceKM  float64     `json:"distance_km"`
	VehicleType VehicleType `gorm:"size:20" json:"vehicle_type"`
	Operable    bool        `gorm:"default:true" json:"operable"`
	CreatedBy   uint        `gorm:"not null;index" json:"created_by"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

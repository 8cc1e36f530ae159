package model

import "time"

// CustomerProfile holds the checkout details a signed-in customer saved last time.
type CustomerProfile struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"first_name" validate:"max=100"`
	LastName     string    `json:"last_name" validate:"max=100"`
	Cedula       string    `json:"cedula" validate:"max=20"`
	Phone        string    `json:"phone" validate:"max=40"`
	Country      string    `json:"country" validate:"max=100"`
	State        string    `json:"state" validate:"max=100"`
	City         string    `json:"city" validate:"max=100"`
	AddressLine1 string    `json:"address_line1" validate:"max=300"`
	UpdatedAt    time.Time `json:"updated_at"`
}

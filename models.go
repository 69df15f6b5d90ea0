package main

// MeterInfo identifies an electricity meter and the tariff on its latest agreement.
type MeterInfo struct {
	ProductCode  string
	TariffCode   string
	SerialNumber string
	Mpan         string
	Export       bool
}

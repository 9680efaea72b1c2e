package integration

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceIssuedEvent is emitted by billing when a customer invoice is issued.
// Gross includes tax when TaxCode is set.
type InvoiceIssuedEvent struct {
	TenantID int64           `json:"tenant_id"`
	ID       int64           `json:"id"`
	Number   string          `json:"number"`
	IssuedAt time.Time       `json:"issued_at"`
	Gross    decimal.Decimal `json:"gross"`
	TaxCode  string          `json:"tax_code,omitempty"`
	Taxable  bool            `json:"taxable"`
}

// PaymentReceivedEvent is emitted by billing when a customer payment settles.
type PaymentReceivedEvent struct {
	TenantID   int64           `json:"tenant_id"`
	ID         int64           `json:"id"`
	Reference  string          `json:"reference"`
	ReceivedAt time.Time       `json:"received_at"`
	Amount     decimal.Decimal `json:"amount"`
}

// PayrollRunEvent is emitted by payroll once a run is paid out.
// Gross must equal Withholding plus Net.
type PayrollRunEvent struct {
	TenantID    int64           `json:"tenant_id"`
	ID          int64           `json:"id"`
	RunCode     string          `json:"run_code"`
	PaidAt      time.Time       `json:"paid_at"`
	Gross       decimal.Decimal `json:"gross"`
	Withholding decimal.Decimal `json:"withholding"`
	Net         decimal.Decimal `json:"net"`
}

// DonationReceivedEvent is emitted by fundraising.
type DonationReceivedEvent struct {
	TenantID   int64           `json:"tenant_id"`
	ID         int64           `json:"id"`
	Reference  string          `json:"reference"`
	ReceivedAt time.Time       `json:"received_at"`
	Amount     decimal.Decimal `json:"amount"`
	Restricted bool            `json:"restricted"`
}

// ShipmentFeeEvent is emitted by logistics when a delivery fee is billed.
type ShipmentFeeEvent struct {
	TenantID int64           `json:"tenant_id"`
	ID       int64           `json:"id"`
	Waybill  string          `json:"waybill"`
	BilledAt time.Time       `json:"billed_at"`
	Fee      decimal.Decimal `json:"fee"`
	TaxCode  string          `json:"tax_code,omitempty"`
	Taxable  bool            `json:"taxable"`
}

package issuance

type priceRequest struct {
	Price string `json:"price" validate:"required,numeric"`
}

type entryAmountRequest struct {
	Amount string `json:"amount" validate:"required,numeric"`
}

// PaymentApprovedRequest is posted by the payment-approval flow.
type PaymentApprovedRequest struct {
	OwnerID     string `json:"owner_id" validate:"required,max=128"`
	DisplayName string `json:"display_name" validate:"omitempty,max=128"`
	PaymentRef  string `json:"payment_ref" validate:"omitempty,max=128"`
	FiatAmount  string `json:"fiat_amount" validate:"omitempty,numeric"`
}

type creditRequest struct {
	OwnerID string `json:"owner_id" validate:"required,max=128"`
	Amount  string `json:"amount" validate:"required,numeric"`
	Reason  string `json:"reason" validate:"omitempty,max=256"`
}

// RateResponse is the public view of the issuance rate.
type RateResponse struct {
	PricePerUnit    string `json:"price_per_unit"`
	EntryFiatAmount string `json:"entry_fiat_amount"`
	TotalIssued     string `json:"total_issued"`
	UpdatedAt       string `json:"updated_at"`
}

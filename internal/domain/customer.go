package domain

// CustomerInfo is the contact and delivery data collected for an order.
type CustomerInfo struct {
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address1  string `json:"address_1"`
	City      string `json:"city"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"`
}

// Identity is an authenticated storefront customer, carried by the request nonce.
type Identity struct {
	CustomerID int64
	Email      string
	FirstName  string
	LastName   string
}

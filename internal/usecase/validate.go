package usecase

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"store-assistant/internal/domain"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func validEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// checkoutField is one step of deterministic data collection.
type checkoutField struct {
	key      string
	label    string
	question string
	minLen   int
	email    bool
	assign   func(c *domain.CustomerInfo, v string)
}

func (f checkoutField) valid(v string) bool {
	v = strings.TrimSpace(v)
	if f.email {
		return validEmail(v)
	}
	return utf8.RuneCountInString(v) >= f.minLen
}

var checkoutFields = []checkoutField{
	{key: "email", label: "email address", question: "What is your email address?", email: true,
		assign: func(c *domain.CustomerInfo, v string) { c.Email = v }},
	{key: "phone", label: "phone number", question: "What is your phone number?", minLen: 6,
		assign: func(c *domain.CustomerInfo, v string) { c.Phone = v }},
	{key: "first_name", label: "first name", question: "What is your first name?", minLen: 2,
		assign: func(c *domain.CustomerInfo, v string) { c.FirstName = v }},
	{key: "last_name", label: "last name", question: "What is your last name?", minLen: 2,
		assign: func(c *domain.CustomerInfo, v string) { c.LastName = v }},
	{key: "address_1", label: "street address", question: "What is your street address and house number?", minLen: 5,
		assign: func(c *domain.CustomerInfo, v string) { c.Address1 = v }},
	{key: "city", label: "city", question: "Which city should we deliver to?", minLen: 2,
		assign: func(c *domain.CustomerInfo, v string) { c.City = v }},
	{key: "postcode", label: "postal code", question: "What is your postal code?", minLen: 3,
		assign: func(c *domain.CustomerInfo, v string) { c.Postcode = v }},
}

// validateCustomer checks customer data in the order clients expect errors
// to be reported. full additionally requires name, city and postcode.
func validateCustomer(c domain.CustomerInfo, full bool) *Error {
	blank := func(s string) bool { return strings.TrimSpace(s) == "" }
	switch {
	case !validEmail(c.Email):
		return newError(ErrorInvalidInput, ReasonInvalidEmail, nil)
	case blank(c.Phone):
		return newError(ErrorInvalidInput, ReasonInvalidPhone, nil)
	case full && blank(c.FirstName):
		return newError(ErrorInvalidInput, ReasonInvalidName, nil)
	case blank(c.Address1):
		return newError(ErrorInvalidInput, ReasonInvalidAddress, nil)
	case full && blank(c.City):
		return newError(ErrorInvalidInput, ReasonInvalidCity, nil)
	case full && blank(c.Postcode):
		return newError(ErrorInvalidInput, ReasonInvalidPostcode, nil)
	}
	return nil
}

func validateMessages(messages []domain.Message) *Error {
	if len(messages) == 0 {
		return newError(ErrorInvalidInput, ReasonInvalidMessages, nil)
	}
	for _, m := range messages {
		if !m.Role.Valid() {
			return newError(ErrorInvalidInput, ReasonInvalidMessages, nil)
		}
	}
	last := messages[len(messages)-1]
	if last.Role != domain.RoleUser || strings.TrimSpace(last.Content) == "" {
		return newError(ErrorInvalidInput, ReasonInvalidMessages, nil)
	}
	return nil
}

package sanitize

// Address holds the postal and contact fields of a billing or shipping
// address.
type Address struct {
	FirstName string
	LastName  string
	Company   string
	Address1  string
	Address2  string
	City      string
	State     string
	Postcode  string
	Country   string
	Email     string
	Phone     string
}

// IsZero reports whether no field of the address is set.
func (a Address) IsZero() bool {
	return a == Address{}
}

// CleanAddress applies Text to every field of a.
func CleanAddress(a Address) Address {
	return Address{
		FirstName: Text(a.FirstName),
		LastName:  Text(a.LastName),
		Company:   Text(a.Company),
		Address1:  Text(a.Address1),
		Address2:  Text(a.Address2),
		City:      Text(a.City),
		State:     Text(a.State),
		Postcode:  Text(a.Postcode),
		Country:   Text(a.Country),
		Email:     Text(a.Email),
		Phone:     Text(a.Phone),
	}
}

package models

// Profile holds the client-declared attributes of a connection.
// All fields are free-form; the server never verifies them.
type Profile struct {
	Name     string `json:"name"`
	Age      string `json:"age,omitempty"`
	Gender   string `json:"gender,omitempty"`
	Job      string `json:"job,omitempty"`
	Room     string `json:"room"`
	Photo    string `json:"photo,omitempty"`
	Location string `json:"location,omitempty"`
}

// PartnerProfile is what each side of a new pair learns about the other.
type PartnerProfile struct {
	ID string `json:"id"`
	Profile
}

package models

// DirectoryUser is an addressable user from the company directory, whether or
// not a conversation with them exists yet.
type DirectoryUser struct {
	ID   string `json:"user_id"`
	Name string `json:"name"`
}

package dto

// CreateContactRequest is the public contact form.
type CreateContactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// UpdateContactRequest toggles the admin flags.
type UpdateContactRequest struct {
	IsRead    *bool `json:"is_read"`
	IsReplied *bool `json:"is_replied"`
}
